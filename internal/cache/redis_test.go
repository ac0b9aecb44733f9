package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aman-zulfiqar/sql-query-buddy/internal/constants"
	"github.com/aman-zulfiqar/sql-query-buddy/internal/models"
	"github.com/aman-zulfiqar/sql-query-buddy/internal/storage"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	require.NoError(t, client.FlushDB(ctx).Err())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.FlushDB(ctx).Err()
		_ = client.Close()
	})
	return client
}

func TestAnswerKey_NormalizesQuestion(t *testing.T) {
	assert.Equal(t, answerKey("How many  users?"), answerKey("  how MANY users? "))
	assert.NotEqual(t, answerKey("how many users?"), answerKey("how many orders?"))
	assert.Contains(t, answerKey("q"), constants.RedisKeyAnswerPrefix)
}

func TestNewAnswerCache_NilClient(t *testing.T) {
	_, err := NewAnswerCache(nil, time.Minute)
	assert.Error(t, err)
}

func TestAnswerCache_SetGetPurge(t *testing.T) {
	client := setupTestRedis(t)
	c, err := NewAnswerCache(client, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.Get(ctx, "how many users?")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	want := &models.QueryResult{SQLQuery: "SELECT COUNT(*) FROM users", Explanation: "e", Optimization: "o"}
	require.NoError(t, c.Set(ctx, "How many users?", want))

	got, err := c.Get(ctx, "how many   users?")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	ttl, err := client.TTL(ctx, answerKey("how many users?")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, c.Purge(ctx))
	_, err = c.Get(ctx, "how many users?")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Purging an empty cache is fine.
	assert.NoError(t, c.Purge(ctx))
}

func TestAnswerCache_ZeroTTLDisablesWrites(t *testing.T) {
	client := setupTestRedis(t)
	c, err := NewAnswerCache(client, 0)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "q", &models.QueryResult{SQLQuery: "SELECT 1"}))
	_, err = c.Get(ctx, "q")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAnswerCache_PurgeDuringSetsLeavesNoUnindexedAnswer(t *testing.T) {
	client := setupTestRedis(t)
	c, err := NewAnswerCache(client, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, c.Set(ctx, fmt.Sprintf("question %d", i), &models.QueryResult{SQLQuery: "SELECT 1"}))
		}(i)
		if i%10 == 0 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, c.Purge(ctx))
			}()
		}
	}
	wg.Wait()

	keys, err := client.Keys(ctx, constants.RedisKeyAnswerPrefix+"*").Result()
	require.NoError(t, err)
	indexed, err := client.SMembers(ctx, constants.RedisKeyAnswerIndex).Result()
	require.NoError(t, err)
	assert.Subset(t, indexed, keys, "every stored answer stays reachable by Purge")

	require.NoError(t, c.Purge(ctx))
	keys, err = client.Keys(ctx, constants.RedisKeyAnswerPrefix+"*").Result()
	require.NoError(t, err)
	assert.Empty(t, keys)
}
