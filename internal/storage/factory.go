package storage

import (
	"fmt"

	"tiercache/internal/common/errors"
)

// BackendConfig carries the settings a factory needs to build a Store.
// Exactly one backend section is consulted, selected by Backend.
type BackendConfig struct {
	Backend string

	SQLitePath string

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

// Factory builds a Store for a named backend. Concrete backends register
// their constructors with Register from an init function in main.
type Factory func(cfg *BackendConfig) (Store, error)

var factories = map[string]Factory{}

// Register installs a factory for a backend name. Later registrations
// replace earlier ones.
func Register(name string, factory Factory) {
	factories[name] = factory
}

// New creates an unopened Store for the configured backend.
func New(cfg *BackendConfig) (Store, error) {
	factory, ok := factories[cfg.Backend]
	if !ok {
		return nil, errors.ConfigError(fmt.Sprintf("unsupported storage backend: %s", cfg.Backend))
	}
	return factory(cfg)
}
