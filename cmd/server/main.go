package main

import (
	"context"

	"imagegen/internal/config"
	"imagegen/internal/core"
	logpkg "imagegen/internal/log"
	"imagegen/internal/server"
	"imagegen/internal/storage"

	"github.com/joho/godotenv"
)

func main() {
	dotenvErr := godotenv.Load()

	logger := logpkg.CreateLogger()
	defer func() {
		if appLog, ok := logger.(*logpkg.AppLogger); ok {
			_ = appLog.Close()
		}
	}()

	if dotenvErr != nil {
		logger.Warn("No .env file found, using system environment variables")
	}
	logger.Info("Logger initialized")

	cfg, err := config.LoadServerConfigFromEnv(logger)
	if err != nil {
		logger.Fatal("Failed to load server configuration: %v", err)
	}

	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), core.ProbeTimeout)
		client, err := storage.NewRedisClient(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			logger.Warn("Failed to connect to Redis, falling back to local quota and file storage: %v", err)
		} else {
			logger.Info("Connected to Redis")
			cfg.RedisClient = client
			defer func() { _ = client.Close() }()
		}
	}

	storageInstance := storage.InitStorage(logger, cfg.RedisClient)
	defer func() { _ = storageInstance.Close() }()

	cfg.Storage = storageInstance
	cfg.Logger = logger

	srv, err := server.NewServer(cfg)
	if err != nil {
		logger.Fatal("Failed to create server: %v", err)
	}
	defer func() { _ = srv.Close() }()

	logger.Info("Starting server on port %s", cfg.Port)
	if err := srv.Run(); err != nil {
		logger.Fatal("Server error: %v", err)
	}
}
