package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/simonkvalheim/hm9-console/internal/queue"
	"github.com/simonkvalheim/hm9-console/internal/tokenstore"
)

// Stores are the backing stores shared by every session
type Stores struct {
	Tokens tokenstore.Store
	Notes  queue.Queue

	client *redis.Client // nil when running in memory
}

// Initialize connects the session stores.
// This should be called on server startup before any request is served.
// An empty redisURL selects in-memory stores, which only work for a single instance.
func Initialize(ctx context.Context, redisURL, redisPassword string, logger *slog.Logger) (*Stores, error) {
	if redisURL == "" {
		logger.Warn("running with in-memory session stores; set REDIS_URL to share sessions across instances")
		return &Stores{
			Tokens: tokenstore.NewMemoryStore(),
			Notes:  queue.NewMemoryQueue(),
		}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     redisURL,
		Password: redisPassword,
		DB:       0,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// Verify connection works
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("unable to ping redis: %w", err)
	}
	logger.Info("connected to redis", "addr", redisURL)

	return &Stores{
		Tokens: tokenstore.NewRedisStore(client),
		Notes:  queue.NewRedisQueue(client),
		client: client,
	}, nil
}

// Ping checks the stores are reachable
func (s *Stores) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Ping(ctx).Err()
}

// Backend names the store implementation, for health output
func (s *Stores) Backend() string {
	if s.client == nil {
		return "memory"
	}
	return "redis"
}

// Close releases the Redis connection, if any
func (s *Stores) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
