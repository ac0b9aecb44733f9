package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aman-zulfiqar/sql-query-buddy/internal/constants"
	"github.com/aman-zulfiqar/sql-query-buddy/internal/models"
	"github.com/aman-zulfiqar/sql-query-buddy/internal/storage"

	"github.com/redis/go-redis/v9"
)

// AnswerCache stores generated answers in Redis keyed by a hash of the
// normalized question. A non-positive TTL disables writes.
type AnswerCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

var _ storage.AnswerCache = (*AnswerCache)(nil)

func NewAnswerCache(client redis.Cmdable, ttl time.Duration) (*AnswerCache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &AnswerCache{client: client, ttl: ttl}, nil
}

func (c *AnswerCache) Get(ctx context.Context, question string) (*models.QueryResult, error) {
	val, err := c.client.Get(ctx, answerKey(question)).Result()
	if err == redis.Nil {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cached answer: %w", err)
	}

	var res models.QueryResult
	if err := json.Unmarshal([]byte(val), &res); err != nil {
		return nil, fmt.Errorf("unmarshal cached answer: %w", err)
	}
	return &res, nil
}

func (c *AnswerCache) Set(ctx context.Context, question string, result *models.QueryResult) error {
	if c.ttl <= 0 || result == nil {
		return nil
	}

	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}

	key := answerKey(question)
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, key, b, c.ttl)
	pipe.SAdd(ctx, constants.RedisKeyAnswerIndex, key)
	pipe.Expire(ctx, constants.RedisKeyAnswerIndex, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache answer: %w", err)
	}
	return nil
}

// purgeScript deletes every indexed answer and the index atomically.
var purgeScript = redis.NewScript(`
local keys = redis.call('SMEMBERS', KEYS[1])
for _, k in ipairs(keys) do
	redis.call('DEL', k)
end
redis.call('DEL', KEYS[1])
return #keys
`)

// Purge removes every indexed answer along with the index itself.
func (c *AnswerCache) Purge(ctx context.Context) error {
	if err := purgeScript.Run(ctx, c.client, []string{constants.RedisKeyAnswerIndex}).Err(); err != nil {
		return fmt.Errorf("purge answers: %w", err)
	}
	return nil
}

// normalizeQuestion lowercases q and collapses whitespace.
func normalizeQuestion(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

func answerKey(question string) string {
	sum := sha256.Sum256([]byte(normalizeQuestion(question)))
	return constants.RedisKeyAnswerPrefix + hex.EncodeToString(sum[:])
}
