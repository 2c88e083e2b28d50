package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"tiercache/internal/cache"
	"tiercache/internal/common/logging"
	"tiercache/internal/config"
	"tiercache/internal/handlers"
	"tiercache/internal/middleware"
	"tiercache/internal/server"
	"tiercache/internal/storage"
	_ "tiercache/internal/storage/postgres"
	_ "tiercache/internal/storage/redis"
	_ "tiercache/internal/storage/sqlite"
)

func main() {
	_ = godotenv.Load()
	logging.InitGlobalLogger()
	defer logging.MustSync()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logging.Error("Invalid configuration", err)
		os.Exit(1)
	}

	var store storage.Store
	if cfg.EnablePersistence {
		var err error
		store, err = storage.New(&storage.BackendConfig{
			Backend:          cfg.StorageBackend,
			SQLitePath:       cfg.SQLitePath,
			PostgresHost:     cfg.PostgresHost,
			PostgresPort:     cfg.PostgresPort,
			PostgresDB:       cfg.PostgresDB,
			PostgresUser:     cfg.PostgresUser,
			PostgresPassword: cfg.PostgresPassword,
			PostgresSSLMode:  cfg.PostgresSSLMode,
			RedisAddress:     cfg.RedisAddress,
			RedisPassword:    cfg.RedisPassword,
			RedisDB:          cfg.RedisDB,
			RedisPoolSize:    cfg.RedisPoolSize,
		})
		if err != nil {
			logging.Error("Failed to build storage backend", err)
			os.Exit(1)
		}
	}

	service, err := cache.NewService(cache.Config{
		MaxMemorySize:        cfg.MaxMemorySize,
		DefaultTTL:           cfg.DefaultTTL,
		EvictionPolicy:       cache.Policy(cfg.EvictionPolicy),
		CompressionType:      cfg.CompressionType,
		CompressionThreshold: cfg.CompressionThreshold,
		CleanupInterval:      cfg.CleanupInterval,
		DedupeLoads:          cfg.DedupeLoads,
	}, store)
	if err != nil {
		logging.Error("Failed to create cache service", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := service.Start(ctx); err != nil {
		cancel()
		logging.Error("Failed to start cache service", err)
		os.Exit(1)
	}
	cancel()
	defer service.Close()

	h := handlers.New(service)

	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/cache/{key}", h.HandleGet).Methods("GET")
	api.HandleFunc("/cache/{key}", h.HandleSet).Methods("PUT")
	api.HandleFunc("/cache/{key}", h.HandleHas).Methods("HEAD")
	api.HandleFunc("/cache/{key}", h.HandleDelete).Methods("DELETE")
	api.HandleFunc("/clear", h.HandleClear).Methods("POST")
	api.HandleFunc("/invalidate/{tag}", h.HandleInvalidateTag).Methods("POST")
	api.HandleFunc("/warm", h.HandleWarm).Methods("POST")
	api.HandleFunc("/preload", h.HandlePreload).Methods("POST")
	api.HandleFunc("/stats", h.HandleStats).Methods("GET")
	api.HandleFunc("/stats/reset", h.HandleResetStats).Methods("POST")

	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	srv := server.New(router, cfg.Port)
	srv.Start()
	logging.Info("Cache server started",
		logging.Field{Key: "port", Value: cfg.Port},
		logging.Field{Key: "backend", Value: cfg.StorageBackend},
		logging.Field{Key: "persistence", Value: cfg.EnablePersistence},
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("Server shutdown failed", err)
	}
}
