// Package redisguard backs the cart merge transition guard with Redis.
package redisguard

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/millbrook-supply/api/internal/repositories"
)

// Guard claims transition keys with SET NX so a merge runs once per
// guest-to-user transition even across replicas.
type Guard struct {
	client *redis.Client
	prefix string
}

// NewGuard builds a Guard over an established Redis client.
func NewGuard(client *redis.Client, prefix string) (*Guard, error) {
	if client == nil {
		return nil, errors.New("redisguard: client is required")
	}
	if prefix == "" {
		prefix = "millbrook"
	}
	return &Guard{client: client, prefix: prefix}, nil
}

var _ repositories.TransitionGuard = (*Guard)(nil)

// Acquire claims the key for ttl. The first caller gets true; anyone else
// inside the ttl gets false.
func (g *Guard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	ok, err := g.client.SetNX(ctx, g.prefix+":"+key, "1", ttl).Result()
	if err != nil {
		return false, repositories.NewStoreError(repositories.ErrorUnavailable, "Guard.Acquire", "redis setnx failed", err)
	}
	return ok, nil
}
