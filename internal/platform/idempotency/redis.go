package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps idempotency records in Redis, relying on key TTLs for expiry.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps the given client. The prefix namespaces keys alongside
// other application state in the same database.
func NewRedisStore(client *redis.Client, prefix string) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("idempotency: redis client is required")
	}
	if prefix == "" {
		prefix = "millbrook"
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) storageKey(key string) string {
	return s.prefix + ":idem:" + hashKey(key)
}

// Reserve claims the key with a pending marker. When the key is already held
// it reports whether the stored response is ready to replay.
func (s *RedisStore) Reserve(ctx context.Context, key, fingerprint string, ttl time.Duration) (Reservation, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	pending, err := json.Marshal(Record{Fingerprint: fingerprint})
	if err != nil {
		return Reservation{}, fmt.Errorf("idempotency: encode pending record: %w", err)
	}

	storageKey := s.storageKey(key)
	claimed, err := s.client.SetNX(ctx, storageKey, pending, ttl).Result()
	if err != nil {
		return Reservation{}, fmt.Errorf("idempotency: reserve: %w", err)
	}
	if claimed {
		return Reservation{State: ReservationNew}, nil
	}

	raw, err := s.client.Get(ctx, storageKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Expired between SETNX and GET; treat as a fresh claim next attempt.
			return Reservation{State: ReservationPending}, nil
		}
		return Reservation{}, fmt.Errorf("idempotency: load record: %w", err)
	}

	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return Reservation{}, fmt.Errorf("idempotency: decode record: %w", err)
	}
	if record.Fingerprint != fingerprint {
		return Reservation{}, ErrFingerprintMismatch
	}
	if !record.Completed {
		return Reservation{State: ReservationPending}, nil
	}
	return Reservation{State: ReservationCompleted, Record: record}, nil
}

// SaveResponse stores the completed response under the key, refreshing the TTL.
func (s *RedisStore) SaveResponse(ctx context.Context, key string, record Record, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	record.Completed = true
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("idempotency: encode record: %w", err)
	}
	if err := s.client.Set(ctx, s.storageKey(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("idempotency: save response: %w", err)
	}
	return nil
}

// Release drops the claim so a retry can run the handler again.
func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.storageKey(key)).Err(); err != nil {
		return fmt.Errorf("idempotency: release: %w", err)
	}
	return nil
}
