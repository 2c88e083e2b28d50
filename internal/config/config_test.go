package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, int64(50*1024*1024), cfg.MaxMemorySize)
	assert.Equal(t, int64(200*1024*1024), cfg.MaxPersistentSize)
	assert.Equal(t, 30*time.Minute, cfg.DefaultTTL)
	assert.Equal(t, "lru", cfg.EvictionPolicy)
	assert.Equal(t, "none", cfg.CompressionType)
	assert.Equal(t, 1024, cfg.CompressionThreshold)
	assert.Equal(t, 5*time.Minute, cfg.CleanupInterval)
	assert.True(t, cfg.EnablePersistence)
	assert.False(t, cfg.DedupeLoads)
	assert.Equal(t, "sqlite", cfg.StorageBackend)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CACHE_MAX_MEMORY_SIZE", "1048576")
	t.Setenv("CACHE_DEFAULT_TTL", "1h")
	t.Setenv("CACHE_EVICTION_POLICY", "lfu")
	t.Setenv("CACHE_COMPRESSION_TYPE", "gzip")
	t.Setenv("CACHE_ENABLE_PERSISTENCE", "false")
	t.Setenv("CACHE_DEDUPE_LOADS", "true")
	t.Setenv("STORAGE_BACKEND", "redis")
	t.Setenv("REDIS_ADDRESS", "redis.internal:6379")

	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, int64(1048576), cfg.MaxMemorySize)
	assert.Equal(t, time.Hour, cfg.DefaultTTL)
	assert.Equal(t, "lfu", cfg.EvictionPolicy)
	assert.Equal(t, "gzip", cfg.CompressionType)
	assert.False(t, cfg.EnablePersistence)
	assert.True(t, cfg.DedupeLoads)
	assert.Equal(t, "redis", cfg.StorageBackend)
	assert.Equal(t, "redis.internal:6379", cfg.RedisAddress)

	require.NoError(t, cfg.Validate())
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("CACHE_MAX_MEMORY_SIZE", "lots")
	t.Setenv("CACHE_DEFAULT_TTL", "soon")
	t.Setenv("CACHE_ENABLE_PERSISTENCE", "maybe")

	cfg := Load()
	assert.Equal(t, int64(50*1024*1024), cfg.MaxMemorySize)
	assert.Equal(t, 30*time.Minute, cfg.DefaultTTL)
	assert.True(t, cfg.EnablePersistence)
}

func TestValidate(t *testing.T) {
	base := func() *Config { return Load() }

	t.Run("rejects non-positive memory size", func(t *testing.T) {
		cfg := base()
		cfg.MaxMemorySize = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects unknown eviction policy", func(t *testing.T) {
		cfg := base()
		cfg.EvictionPolicy = "random"
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects unknown compression type", func(t *testing.T) {
		cfg := base()
		cfg.CompressionType = "zstd"
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects sub-second cleanup interval", func(t *testing.T) {
		cfg := base()
		cfg.CleanupInterval = 100 * time.Millisecond
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects unknown backend when persistence enabled", func(t *testing.T) {
		cfg := base()
		cfg.StorageBackend = "dynamo"
		assert.Error(t, cfg.Validate())
	})

	t.Run("ignores backend when persistence disabled", func(t *testing.T) {
		cfg := base()
		cfg.EnablePersistence = false
		cfg.StorageBackend = "dynamo"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("requires sqlite path", func(t *testing.T) {
		cfg := base()
		cfg.StorageBackend = "sqlite"
		cfg.SQLitePath = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("requires postgres connection settings", func(t *testing.T) {
		cfg := base()
		cfg.StorageBackend = "postgres"
		cfg.PostgresHost = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("requires redis address", func(t *testing.T) {
		cfg := base()
		cfg.StorageBackend = "redis"
		cfg.RedisAddress = ""
		assert.Error(t, cfg.Validate())
	})
}
