package stash

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	coreconfig "github.com/m3rciful/hackbot/core/config"
	"github.com/m3rciful/hackbot/core/logger"
)

const keyPrefix = "hackbot:payload:"

type redisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedis connects to Redis and verifies the connection with a ping.
func NewRedis(ctx context.Context, cfg coreconfig.StashConfig) (Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("stash: redis ping %s: %w", cfg.RedisAddr, err)
	}
	logger.Info(ctx, "stash", "connect",
		slog.String("status", "ok"),
		slog.String("backend", "redis"),
		slog.String("addr", cfg.RedisAddr),
	)
	return &redisStore{rdb: rdb, ttl: time.Duration(cfg.TTLSeconds) * time.Second}, nil
}

func (r *redisStore) Put(ctx context.Context, value string) (string, error) {
	key := newKey()
	if err := r.rdb.Set(ctx, keyPrefix+key, value, r.ttl).Err(); err != nil {
		return "", fmt.Errorf("stash: redis set: %w", err)
	}
	return key, nil
}

func (r *redisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.rdb.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("stash: redis get: %w", err)
	}
	return val, nil
}

func (r *redisStore) Close() error {
	return r.rdb.Close()
}

// Open selects the Redis store when an address is configured and the
// in-memory store otherwise.
func Open(ctx context.Context, cfg coreconfig.StashConfig) (Store, error) {
	if cfg.RedisAddr == "" {
		logger.Info(ctx, "stash", "connect",
			slog.String("status", "ok"),
			slog.String("backend", "memory"),
		)
		return NewMemory(time.Duration(cfg.TTLSeconds) * time.Second), nil
	}
	return NewRedis(ctx, cfg)
}
