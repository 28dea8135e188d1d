// Package idempotency replays stored responses for retried mutating requests
// that carry an Idempotency-Key header.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

// DefaultTTL bounds how long a stored response can be replayed.
const DefaultTTL = 24 * time.Hour

// ReservationState describes the outcome of claiming an idempotency key.
type ReservationState int

const (
	// ReservationNew means the key was unclaimed and the caller should run the handler.
	ReservationNew ReservationState = iota
	// ReservationCompleted means a stored response exists and should be replayed.
	ReservationCompleted
	// ReservationPending means another request currently holds the key.
	ReservationPending
)

// Record is the persisted response for a completed idempotency key.
type Record struct {
	Fingerprint string              `json:"fingerprint"`
	Completed   bool                `json:"completed"`
	Status      int                 `json:"status,omitempty"`
	Headers     map[string][]string `json:"headers,omitempty"`
	Body        []byte              `json:"body,omitempty"`
}

// Reservation is the result of Reserve: the state plus the stored record when completed.
type Reservation struct {
	State  ReservationState
	Record Record
}

// Store persists idempotency claims and completed responses. Implementations
// expire records on their own; there is no explicit cleanup.
type Store interface {
	Reserve(ctx context.Context, key, fingerprint string, ttl time.Duration) (Reservation, error)
	SaveResponse(ctx context.Context, key string, record Record, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// ErrFingerprintMismatch reports a key reused with a different request payload.
var ErrFingerprintMismatch = errors.New("idempotency: key reused with a different request")

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(key)))
	return hex.EncodeToString(sum[:])
}

func filterHeaders(header http.Header) map[string][]string {
	if len(header) == 0 {
		return nil
	}
	out := make(map[string][]string, len(header))
	for name, values := range header {
		canonical := http.CanonicalHeaderKey(name)
		switch canonical {
		case "Content-Length", "Date", "Connection", "Transfer-Encoding":
			continue
		}
		copied := make([]string, len(values))
		copy(copied, values)
		out[canonical] = copied
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
