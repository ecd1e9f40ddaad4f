package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deal-scanner/internal/config"
	"github.com/deal-scanner/internal/logging"
	"github.com/deal-scanner/internal/registry"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.LevelError, logging.FormatText)
}

func TestOpenStore_RedisDownStartsDegraded(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		Store: config.StoreConfig{
			Backend: "redis",
			Redis: config.RedisConfig{
				// Nothing listens here; the store must still come up
				Host:           "127.0.0.1",
				Port:           "1",
				MaxConnections: 1,
			},
		},
	}

	store, closeStore, err := openStore(ctx, cfg, testLogger())
	require.NoError(t, err, "an unreachable backend must not abort startup")
	require.NotNil(t, store)
	defer closeStore()

	r := registry.New(ctx, store, testLogger())
	assert.True(t, r.Degraded())
	assert.False(t, r.Settings().Enabled, "automation must come up disabled without persisted state")
}

func TestOpenStore_MemoryBackend(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Backend: "memory"}}

	store, closeStore, err := openStore(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	require.NotNil(t, store)
	closeStore()
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Backend: "etcd"}}

	_, _, err := openStore(context.Background(), cfg, testLogger())
	assert.Error(t, err)
}
