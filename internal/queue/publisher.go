// Package queue holds per-session notification queues, the console's equivalent of toasts
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KeyPrefix is the Redis list key prefix for pending notifications
	KeyPrefix = "console:notifications:"
	// MaxPending caps how many notifications a session keeps
	MaxPending = 50
	// Retention is how long unread notifications survive
	Retention = 24 * time.Hour
)

// Level is the severity of a notification
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notification is a short message for the user, typically the outcome of an autosave
type Notification struct {
	Level     Level     `json:"level"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Queue stores notifications until the browser collects them
type Queue interface {
	Publish(ctx context.Context, sessionID string, n Notification) error
	Drain(ctx context.Context, sessionID string) ([]Notification, error)
	Discard(ctx context.Context, sessionID string) error
}

// RedisQueue keeps each session's notifications in a Redis list
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue creates a new RedisQueue
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

// Publish appends n to the session's queue
func (q *RedisQueue) Publish(ctx context.Context, sessionID string, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	key := KeyPrefix + sessionID

	// RPUSH keeps FIFO order; LTRIM drops the oldest beyond MaxPending
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		pipe.LTrim(ctx, key, -MaxPending, -1)
		pipe.Expire(ctx, key, Retention)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Drain returns and removes every pending notification, oldest first
func (q *RedisQueue) Drain(ctx context.Context, sessionID string) ([]Notification, error) {
	key := KeyPrefix + sessionID

	var lrange *redis.StringSliceCmd
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		lrange = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to drain notifications: %w", err)
	}

	raw := lrange.Val()
	out := make([]Notification, 0, len(raw))
	for _, r := range raw {
		var n Notification
		if err := json.Unmarshal([]byte(r), &n); err != nil {
			// Skip entries written by an incompatible version
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// Discard drops the session's queue, e.g. on logout
func (q *RedisQueue) Discard(ctx context.Context, sessionID string) error {
	return q.client.Del(ctx, KeyPrefix+sessionID).Err()
}

// MemoryQueue keeps notifications in process memory
type MemoryQueue struct {
	mu      sync.Mutex
	pending map[string][]Notification
}

// NewMemoryQueue creates a new MemoryQueue
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{pending: make(map[string][]Notification)}
}

// Publish appends n to the session's queue
func (q *MemoryQueue) Publish(_ context.Context, sessionID string, n Notification) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	list := append(q.pending[sessionID], n)
	if len(list) > MaxPending {
		list = list[len(list)-MaxPending:]
	}
	q.pending[sessionID] = list
	return nil
}

// Drain returns and removes every pending notification, oldest first
func (q *MemoryQueue) Drain(_ context.Context, sessionID string) ([]Notification, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	list := q.pending[sessionID]
	delete(q.pending, sessionID)
	if list == nil {
		list = []Notification{}
	}
	return list, nil
}

// Discard drops the session's queue
func (q *MemoryQueue) Discard(_ context.Context, sessionID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pending, sessionID)
	return nil
}
