package metadata

import (
	"context"
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
		DB:   1, // Use different DB for tests
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

func TestNewStore_NilClient(t *testing.T) {
	_, err := NewStore(nil)
	assert.Error(t, err)
}

func TestValidateTableName(t *testing.T) {
	for _, ok := range []string{"clientes", "public.orders", "_tmp", "Sales_2024"} {
		assert.NoError(t, ValidateTableName(ok), ok)
	}
	for _, bad := range []string{"", "1table", "drop table;", "a b", string(make([]byte, 70))} {
		assert.Error(t, ValidateTableName(bad), bad)
	}
}

func TestStore_UpsertAndGet(t *testing.T) {
	client := setupTestRedis(t)
	store, err := NewStore(client)
	require.NoError(t, err)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	ctx := context.Background()

	saved, err := store.Upsert(ctx, models.TableMetadata{
		TableName:   "  clientes ",
		SchemaInfo:  "id INT, nombre TEXT",
		Description: "Clientes registrados",
	})
	require.NoError(t, err)
	assert.Equal(t, "clientes", saved.TableName)
	assert.Equal(t, fixed, saved.UpdatedAt)

	got, err := store.Get(ctx, "clientes")
	require.NoError(t, err)
	assert.Equal(t, *saved, *got)

	// Replacing keeps one index entry.
	_, err = store.Upsert(ctx, models.TableMetadata{TableName: "clientes", SchemaInfo: "id BIGINT"})
	require.NoError(t, err)
	got, err = store.Get(ctx, "clientes")
	require.NoError(t, err)
	assert.Equal(t, "id BIGINT", got.SchemaInfo)

	n, err := client.SCard(ctx, constants.RedisKeyTableIndex).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestStore_UpsertRejectsInvalid(t *testing.T) {
	client := setupTestRedis(t)
	store, err := NewStore(client)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Upsert(ctx, models.TableMetadata{TableName: "bad name", SchemaInfo: "id INT"})
	assert.Error(t, err)

	_, err = store.Upsert(ctx, models.TableMetadata{TableName: "ok", SchemaInfo: "   "})
	assert.Error(t, err)
}

func TestStore_GetNotFound(t *testing.T) {
	client := setupTestRedis(t)
	store, err := NewStore(client)
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_ListSortedAndSkipsCorrupt(t *testing.T) {
	client := setupTestRedis(t)
	store, err := NewStore(client)
	require.NoError(t, err)
	ctx := context.Background()

	empty, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, name := range []string{"pedidos", "clientes", "productos"} {
		_, err := store.Upsert(ctx, models.TableMetadata{TableName: name, SchemaInfo: "id INT"})
		require.NoError(t, err)
	}
	require.NoError(t, client.Set(ctx, tableKey("broken"), "{not json", 0).Err())
	require.NoError(t, client.SAdd(ctx, constants.RedisKeyTableIndex, "broken", "gone").Err())

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "clientes", list[0].TableName)
	assert.Equal(t, "pedidos", list[1].TableName)
	assert.Equal(t, "productos", list[2].TableName)
}

func TestStore_Ping(t *testing.T) {
	client := setupTestRedis(t)
	store, err := NewStore(client)
	require.NoError(t, err)
	assert.NoError(t, store.Ping(context.Background()))
}
