package idempotency

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/millbrook-supply/api/internal/platform/httpx"
	"github.com/millbrook-supply/api/internal/platform/requestctx"
)

const (
	headerName       = "Idempotency-Key"
	replayHeaderName = "X-Idempotent-Replay"
)

// Middleware replays stored responses for mutating requests that repeat an
// Idempotency-Key. Requests without the header pass through untouched.
func Middleware(store Store, ttl time.Duration) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !mutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			key := strings.TrimSpace(r.Header.Get(headerName))
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			body, err := bufferBody(r)
			if err != nil {
				httpx.WriteError(r.Context(), w, httpx.NewError("request_body_unreadable", "unable to read request body", http.StatusBadRequest))
				return
			}

			scoped := scopeKey(r.Context(), key)
			fingerprint := requestFingerprint(r, body)

			reservation, err := store.Reserve(r.Context(), scoped, fingerprint, ttl)
			if err != nil {
				if errors.Is(err, ErrFingerprintMismatch) {
					httpx.WriteError(r.Context(), w, httpx.NewError("idempotency_key_conflict", "idempotency key already used for a different request", http.StatusConflict))
					return
				}
				httpx.WriteError(r.Context(), w, httpx.NewError("idempotency_unavailable", "unable to process idempotency key", http.StatusServiceUnavailable))
				return
			}

			switch reservation.State {
			case ReservationCompleted:
				replay(w, reservation.Record)
				return
			case ReservationPending:
				httpx.WriteError(r.Context(), w, httpx.NewError("idempotency_in_progress", "another request is processing this idempotency key", http.StatusConflict))
				return
			}

			recorder := &bufferedResponse{header: http.Header{}}
			next.ServeHTTP(recorder, r)

			record := Record{
				Fingerprint: fingerprint,
				Status:      recorder.status(),
				Headers:     filterHeaders(recorder.header),
				Body:        recorder.body.Bytes(),
			}
			if err := store.SaveResponse(r.Context(), scoped, record, ttl); err != nil {
				requestctx.Logger(r.Context()).Warn("idempotency: persist response failed")
				// Let a retry run the handler again rather than serve a half-saved record.
				_ = store.Release(r.Context(), scoped)
			}
			recorder.flush(w)
		})
	}
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func bufferBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

// scopeKey binds the key to the caller so two users cannot collide on the
// same client-chosen value.
func scopeKey(ctx context.Context, key string) string {
	owner := "anonymous"
	if identity, ok := requestctx.IdentityFrom(ctx); ok && identity.UserID != "" {
		owner = identity.UserID
	}
	return key + "|" + owner
}

func requestFingerprint(r *http.Request, body []byte) string {
	parts := strings.Join([]string{
		r.Method,
		r.URL.Path,
		r.URL.RawQuery,
		r.Header.Get("Content-Type"),
	}, "|")
	sum := sha256.Sum256(append([]byte(parts+"|"), body...))
	return hex.EncodeToString(sum[:])
}

func replay(w http.ResponseWriter, record Record) {
	for name, values := range record.Headers {
		for _, value := range values {
			w.Header().Add(name, value)
		}
	}
	w.Header().Set(replayHeaderName, "true")
	status := record.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(record.Body) > 0 {
		_, _ = w.Write(record.Body)
	}
}

type bufferedResponse struct {
	header     http.Header
	statusCode int
	body       bytes.Buffer
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(status int) {
	if b.statusCode == 0 && status > 0 {
		b.statusCode = status
	}
}

func (b *bufferedResponse) Write(data []byte) (int, error) {
	if b.statusCode == 0 {
		b.statusCode = http.StatusOK
	}
	return b.body.Write(data)
}

func (b *bufferedResponse) status() int {
	if b.statusCode == 0 {
		return http.StatusOK
	}
	return b.statusCode
}

func (b *bufferedResponse) flush(w http.ResponseWriter) {
	for name, values := range b.header {
		for _, value := range values {
			w.Header().Add(name, value)
		}
	}
	w.WriteHeader(b.status())
	if b.body.Len() > 0 {
		_, _ = w.Write(b.body.Bytes())
	}
}
