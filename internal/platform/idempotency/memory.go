package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and single-node development.
type MemoryStore struct {
	mu      sync.Mutex
	clock   func() time.Time
	records map[string]memoryRecord
}

type memoryRecord struct {
	record    Record
	expiresAt time.Time
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{clock: time.Now, records: map[string]memoryRecord{}}
}

func (s *MemoryStore) Reserve(_ context.Context, key, fingerprint string, ttl time.Duration) (Reservation, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	hashed := hashKey(key)
	entry, ok := s.records[hashed]
	if ok && now.Before(entry.expiresAt) {
		if entry.record.Fingerprint != fingerprint {
			return Reservation{}, ErrFingerprintMismatch
		}
		if !entry.record.Completed {
			return Reservation{State: ReservationPending}, nil
		}
		return Reservation{State: ReservationCompleted, Record: entry.record}, nil
	}

	s.records[hashed] = memoryRecord{
		record:    Record{Fingerprint: fingerprint},
		expiresAt: now.Add(ttl),
	}
	return Reservation{State: ReservationNew}, nil
}

func (s *MemoryStore) SaveResponse(_ context.Context, key string, record Record, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	record.Completed = true
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[hashKey(key)] = memoryRecord{record: record, expiresAt: s.clock().Add(ttl)}
	return nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, hashKey(key))
	return nil
}
