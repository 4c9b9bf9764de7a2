// Package cache publishes the latest regime status to Redis with a TTL so
// operational dashboards can read it without touching the state store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sawpanic/alphatilt/internal/persistence"
)

const statusKey = "alphatilt:regime:status"

// ErrMiss indicates no cached status is present
var ErrMiss = errors.New("cache: status missing")

// StatusCache is a TTL'd regime-status publisher
type StatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStatusCache connects a status cache to Redis
func NewStatusCache(addr string, ttl time.Duration) *StatusCache {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	return &StatusCache{client: client, ttl: ttl}
}

// Publish stores the latest regime status under the status key
func (c *StatusCache) Publish(ctx context.Context, status persistence.RegimeStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal regime status: %w", err)
	}
	if err := c.client.Set(ctx, statusKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("publish regime status: %w", err)
	}
	return nil
}

// Fetch reads the cached regime status, or ErrMiss when absent or expired
func (c *StatusCache) Fetch(ctx context.Context) (*persistence.RegimeStatus, error) {
	data, err := c.client.Get(ctx, statusKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("fetch regime status: %w", err)
	}

	var status persistence.RegimeStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("parse cached status: %w", err)
	}
	return &status, nil
}

// Close releases the Redis connection
func (c *StatusCache) Close() error {
	return c.client.Close()
}
