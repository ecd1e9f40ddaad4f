package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreFromClient(client)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestRedisStore_SetGetRoundtrip(t *testing.T) {
	store := setupTestRedisStore(t)
	ctx := context.Background()

	err := store.Set(ctx, map[string][]byte{
		KeySearches: []byte(`{"s1":{}}`),
		KeySettings: []byte(`{"enabled":true}`),
	})
	require.NoError(t, err)

	values, err := store.Get(ctx, []string{KeySearches, KeySettings})
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"s1":{}}`), values[KeySearches])
	assert.Equal(t, []byte(`{"enabled":true}`), values[KeySettings])
}

func TestRedisStore_MissingKeysOmitted(t *testing.T) {
	store := setupTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, map[string][]byte{KeyEvents: []byte(`[]`)}))

	values, err := store.Get(ctx, []string{KeyEvents, KeyCandidates})
	require.NoError(t, err)
	assert.Contains(t, values, KeyEvents)
	assert.NotContains(t, values, KeyCandidates)
}

func TestRedisStore_EmptyArguments(t *testing.T) {
	store := setupTestRedisStore(t)
	ctx := context.Background()

	values, err := store.Get(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, values)

	assert.NoError(t, store.Set(ctx, nil))
}

func TestRedisStore_OverwriteKey(t *testing.T) {
	store := setupTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, map[string][]byte{KeySettings: []byte(`v1`)}))
	require.NoError(t, store.Set(ctx, map[string][]byte{KeySettings: []byte(`v2`)}))

	values, err := store.Get(ctx, []string{KeySettings})
	require.NoError(t, err)
	assert.Equal(t, []byte(`v2`), values[KeySettings])
}
