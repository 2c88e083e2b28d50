package postgres

import (
	"tiercache/internal/storage"
)

func init() {
	storage.Register("postgres", func(cfg *storage.BackendConfig) (storage.Store, error) {
		return New(&Config{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			Database: cfg.PostgresDB,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPassword,
			SSLMode:  cfg.PostgresSSLMode,
		})
	})
}
