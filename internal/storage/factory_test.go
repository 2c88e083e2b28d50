package storage_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiercache/internal/storage"
	_ "tiercache/internal/storage/redis"
	_ "tiercache/internal/storage/sqlite"
)

func TestNewUnknownBackend(t *testing.T) {
	_, err := storage.New(&storage.BackendConfig{Backend: "dynamo"})
	assert.Error(t, err)
}

func TestNewSQLite(t *testing.T) {
	store, err := storage.New(&storage.BackendConfig{
		Backend:    "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "cache.db"),
	})
	require.NoError(t, err)
	assert.NotNil(t, store)
}

func TestNewRedis(t *testing.T) {
	store, err := storage.New(&storage.BackendConfig{
		Backend:      "redis",
		RedisAddress: "localhost:6379",
	})
	require.NoError(t, err)
	assert.NotNil(t, store)
}

func TestRecordExpired(t *testing.T) {
	now := time.Now()

	rec := &storage.Record{Key: "k"}
	assert.False(t, rec.Expired(now), "zero expiry never expires")

	rec.ExpiresAt = now.Add(-1)
	assert.True(t, rec.Expired(now))

	rec.ExpiresAt = now
	assert.True(t, rec.Expired(now), "expiry boundary is inclusive")

	rec.ExpiresAt = now.Add(1)
	assert.False(t, rec.Expired(now))
}
