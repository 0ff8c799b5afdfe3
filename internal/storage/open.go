package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"remindme/internal/config"
	"remindme/internal/db"
	"remindme/internal/db/migrate"
)

// Open returns the Store selected by cfg.SessionStore. The postgres store runs pending migrations first.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.SessionStore {
	case config.StoreMemory:
		return NewMemoryStore(), nil
	case config.StoreFile, "":
		return NewFileStore(cfg.SessionFilePath())
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("storage: redis ping %s: %w", cfg.RedisAddr, err)
		}
		return NewRedisStore(client, cfg.RedisKeyPrefix), nil
	case config.StorePostgres:
		if err := migrate.Run(cfg.DatabaseURL, "up"); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return nil, fmt.Errorf("storage: migrate: %w", err)
		}
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("storage: postgres: %w", err)
		}
		return NewPostgresStore(conn), nil
	default:
		return nil, fmt.Errorf("storage: unknown store %q", cfg.SessionStore)
	}
}
