package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/millbrook-supply/api/internal/platform/httpx"
)

// ReadinessCheck probes one dependency; a non-nil error marks it unready.
type ReadinessCheck func(ctx context.Context) error

// HealthHandlers serves liveness and readiness endpoints.
type HealthHandlers struct {
	started time.Time
	checks  map[string]ReadinessCheck
}

// NewHealthHandlers builds a HealthHandlers with the given dependency checks.
func NewHealthHandlers() *HealthHandlers {
	return &HealthHandlers{started: time.Now(), checks: map[string]ReadinessCheck{}}
}

// AddCheck registers a named readiness probe.
func (h *HealthHandlers) AddCheck(name string, check ReadinessCheck) {
	if name == "" || check == nil {
		return
	}
	h.checks[name] = check
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(r.Context(), w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    time.Since(h.started).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Readyz runs every registered probe and reports per-dependency status.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := map[string]string{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	body := map[string]any{"status": "ok", "dependencies": deps}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	httpx.WriteJSON(ctx, w, status, body)
}
