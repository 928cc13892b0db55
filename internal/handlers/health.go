package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/bloom-bouquet/api/internal/platform/httpx"
)

// ReadyCheck probes a backing dependency ahead of serving traffic.
type ReadyCheck func(ctx context.Context) error

// HealthHandlers serves the /healthz and /readyz monitoring endpoints.
type HealthHandlers struct {
	started time.Time
	clock   func() time.Time
	checks  map[string]ReadyCheck
}

// HealthOption customises the health handlers.
type HealthOption func(*HealthHandlers)

// WithHealthClock overrides the time source, primarily for tests.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// WithReadyCheck registers a named readiness probe run on every /readyz call.
func WithReadyCheck(name string, check ReadyCheck) HealthOption {
	return func(h *HealthHandlers) {
		if name == "" || check == nil {
			return
		}
		h.checks[name] = check
	}
}

// NewHealthHandlers constructs health handlers with optional readiness probes.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{
		started: time.Now(),
		clock:   time.Now,
		checks:  make(map[string]ReadyCheck),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Healthz reports liveness with process uptime.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock()
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    now.Sub(h.started).String(),
		"timestamp": now.UTC().Format(time.RFC3339),
	})
}

// Readyz runs every registered readiness probe and reports per-check results.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	results := make(map[string]string, len(h.checks))
	ready := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			ready = false
			continue
		}
		results[name] = "ok"
	}

	if !ready {
		httpx.WriteError(ctx, w, httpx.NewError("not_ready", "dependency check failed", http.StatusServiceUnavailable).WithDetails(map[string]any{
			"checks": results,
		}))
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status": "ok",
		"checks": results,
	})
}
