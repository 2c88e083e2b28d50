// Package config provides configuration management for the cache engine.
// It handles loading configuration from environment variables with sensible
// defaults and validates the configuration so the process starts safely.
//
// Environment Variables:
//
// Application settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//
// Cache settings:
//   - CACHE_MAX_MEMORY_SIZE: L1 capacity in bytes (default: 52428800, 50 MiB)
//   - CACHE_MAX_PERSISTENT_SIZE: L2 capacity hint in bytes (default: 209715200, 200 MiB)
//   - CACHE_DEFAULT_TTL: default entry TTL, 0 = never expires (default: 30m)
//   - CACHE_EVICTION_POLICY: lru, lfu, fifo or ttl (default: lru)
//   - CACHE_COMPRESSION_TYPE: none or gzip (default: none)
//   - CACHE_COMPRESSION_THRESHOLD: compress payloads at or above this many bytes (default: 1024)
//   - CACHE_CLEANUP_INTERVAL: expired-entry sweep interval (default: 5m)
//   - CACHE_ENABLE_PERSISTENCE: enable the durable L2 tier (default: true)
//   - CACHE_DEDUPE_LOADS: collapse concurrent GetOrSet misses per key (default: false)
//
// Storage backend (L2):
//   - STORAGE_BACKEND: sqlite, postgres or redis (default: sqlite)
//   - SQLITE_PATH: SQLite database file path (default: ./tiercache.db)
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_DB, POSTGRES_USER,
//     POSTGRES_PASSWORD, POSTGRES_SSL_MODE: PostgreSQL connection settings
//   - REDIS_ADDRESS, REDIS_PASSWORD, REDIS_DB, REDIS_POOL_SIZE: Redis settings
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the cache engine.
type Config struct {
	// Application settings
	Port     string
	LogLevel string

	// Cache engine settings
	MaxMemorySize        int64
	MaxPersistentSize    int64
	DefaultTTL           time.Duration
	EvictionPolicy       string
	CompressionType      string
	CompressionThreshold int
	CleanupInterval      time.Duration
	EnablePersistence    bool
	DedupeLoads          bool

	// Storage backend selection for the persistent tier
	StorageBackend string
	SQLitePath     string

	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string

	RedisAddress  string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int
}

// Load creates a new Config instance with values loaded from environment
// variables. It does not validate; call Validate() on the result.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		MaxMemorySize:        getInt64Env("CACHE_MAX_MEMORY_SIZE", 50*1024*1024),
		MaxPersistentSize:    getInt64Env("CACHE_MAX_PERSISTENT_SIZE", 200*1024*1024),
		DefaultTTL:           getDurationEnv("CACHE_DEFAULT_TTL", 30*time.Minute),
		EvictionPolicy:       getEnv("CACHE_EVICTION_POLICY", "lru"),
		CompressionType:      getEnv("CACHE_COMPRESSION_TYPE", "none"),
		CompressionThreshold: getIntEnv("CACHE_COMPRESSION_THRESHOLD", 1024),
		CleanupInterval:      getDurationEnv("CACHE_CLEANUP_INTERVAL", 5*time.Minute),
		EnablePersistence:    getBoolEnv("CACHE_ENABLE_PERSISTENCE", true),
		DedupeLoads:          getBoolEnv("CACHE_DEDUPE_LOADS", false),

		StorageBackend: getEnv("STORAGE_BACKEND", "sqlite"),
		SQLitePath:     getEnv("SQLITE_PATH", "./tiercache.db"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "tiercache"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),

		RedisAddress:  getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		RedisPoolSize: getIntEnv("REDIS_POOL_SIZE", 10),
	}
}

// Validate checks that the loaded configuration is usable.
func (c *Config) Validate() error {
	if c.MaxMemorySize <= 0 {
		return fmt.Errorf("CACHE_MAX_MEMORY_SIZE must be positive, got %d", c.MaxMemorySize)
	}
	if c.MaxPersistentSize <= 0 {
		return fmt.Errorf("CACHE_MAX_PERSISTENT_SIZE must be positive, got %d", c.MaxPersistentSize)
	}

	switch c.EvictionPolicy {
	case "lru", "lfu", "fifo", "ttl":
	default:
		return fmt.Errorf("unsupported eviction policy: %s", c.EvictionPolicy)
	}

	switch c.CompressionType {
	case "none", "gzip":
	default:
		return fmt.Errorf("unsupported compression type: %s", c.CompressionType)
	}

	if c.CompressionThreshold < 0 {
		return fmt.Errorf("CACHE_COMPRESSION_THRESHOLD must not be negative, got %d", c.CompressionThreshold)
	}

	if c.CleanupInterval < time.Second {
		return fmt.Errorf("CACHE_CLEANUP_INTERVAL must be at least 1s, got %s", c.CleanupInterval)
	}

	if c.EnablePersistence {
		switch c.StorageBackend {
		case "sqlite":
			if c.SQLitePath == "" {
				return fmt.Errorf("SQLITE_PATH is required for the sqlite backend")
			}
		case "postgres":
			if c.PostgresHost == "" || c.PostgresDB == "" || c.PostgresUser == "" {
				return fmt.Errorf("POSTGRES_HOST, POSTGRES_DB and POSTGRES_USER are required for the postgres backend")
			}
		case "redis":
			if c.RedisAddress == "" {
				return fmt.Errorf("REDIS_ADDRESS is required for the redis backend")
			}
		default:
			return fmt.Errorf("unsupported storage backend: %s", c.StorageBackend)
		}
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getInt64Env(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
