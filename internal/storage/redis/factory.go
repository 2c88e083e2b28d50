package redis

import (
	"tiercache/internal/storage"
)

func init() {
	storage.Register("redis", func(cfg *storage.BackendConfig) (storage.Store, error) {
		return New(&Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			PoolSize: cfg.RedisPoolSize,
		})
	})
}
