package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/aman-zulfiqar/sql-query-buddy/internal/constants"
	"github.com/aman-zulfiqar/sql-query-buddy/internal/models"
	"github.com/aman-zulfiqar/sql-query-buddy/internal/storage"

	"github.com/redis/go-redis/v9"
)

var tableNameRe = regexp.MustCompile(fmt.Sprintf(`^[A-Za-z_][A-Za-z0-9_.$-]{0,%d}$`, constants.MaxTableNameLength-1))

// Store keeps table metadata in Redis: one JSON value per table plus an index set.
type Store struct {
	client redis.Cmdable
	now    func() time.Time
}

var _ storage.MetadataStore = (*Store)(nil)

func NewStore(client redis.Cmdable) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &Store{client: client, now: time.Now}, nil
}

// ValidateTableName accepts identifiers, optionally schema-qualified, up to
// constants.MaxTableNameLength characters.
func ValidateTableName(name string) error {
	if !tableNameRe.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

// Upsert stores meta after trimming its fields. Schema info is required.
func (s *Store) Upsert(ctx context.Context, meta models.TableMetadata) (*models.TableMetadata, error) {
	meta.TableName = strings.TrimSpace(meta.TableName)
	meta.SchemaInfo = strings.TrimSpace(meta.SchemaInfo)
	meta.Description = strings.TrimSpace(meta.Description)

	if err := ValidateTableName(meta.TableName); err != nil {
		return nil, err
	}
	if meta.SchemaInfo == "" {
		return nil, fmt.Errorf("schema info is required for table %q", meta.TableName)
	}
	meta.UpdatedAt = s.now().UTC()

	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal table metadata: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, tableKey(meta.TableName), b, 0)
	pipe.SAdd(ctx, constants.RedisKeyTableIndex, meta.TableName)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("upsert table metadata: %w", err)
	}

	return &meta, nil
}

func (s *Store) Get(ctx context.Context, tableName string) (*models.TableMetadata, error) {
	if err := ValidateTableName(tableName); err != nil {
		return nil, err
	}

	val, err := s.client.Get(ctx, tableKey(tableName)).Result()
	if err == redis.Nil {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get table metadata: %w", err)
	}

	var m models.TableMetadata
	if err := json.Unmarshal([]byte(val), &m); err != nil {
		return nil, fmt.Errorf("unmarshal table metadata: %w", err)
	}
	return &m, nil
}

// List returns all tables sorted by name. Unreadable entries are skipped.
func (s *Store) List(ctx context.Context) ([]models.TableMetadata, error) {
	names, err := s.client.SMembers(ctx, constants.RedisKeyTableIndex).Result()
	if err != nil {
		return nil, fmt.Errorf("list table index: %w", err)
	}

	keys := make([]string, 0, len(names))
	for _, n := range names {
		if err := ValidateTableName(n); err != nil {
			continue
		}
		keys = append(keys, tableKey(n))
	}
	if len(keys) == 0 {
		return []models.TableMetadata{}, nil
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget table metadata: %w", err)
	}

	out := make([]models.TableMetadata, 0, len(vals))
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var m models.TableMetadata
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			continue
		}
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].TableName < out[j].TableName })
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func tableKey(name string) string {
	return constants.RedisKeyTablePrefix + name
}
