package sqlite

import (
	"tiercache/internal/storage"
)

func init() {
	storage.Register("sqlite", func(cfg *storage.BackendConfig) (storage.Store, error) {
		return New(&Config{Path: cfg.SQLitePath})
	})
}
