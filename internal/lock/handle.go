package lock

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"table-lock/internal/domain"
	"table-lock/internal/metrics"
)

// State is the phase of one acquisition episode. A handle moves strictly
// forward: Idle → Attempting → Acquired or Exhausted, and Acquired →
// Released. A handle is built fresh per episode and never reused.
type State int

const (
	StateIdle State = iota
	StateAttempting
	StateAcquired
	StateExhausted
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAttempting:
		return "attempting"
	case StateAcquired:
		return "acquired"
	case StateExhausted:
		return "exhausted"
	case StateReleased:
		return "released"
	default:
		return "unknown"
	}
}

// Handle is a per-resource lock bound to one backend. It owns the backend's
// token exclusively and is not safe for concurrent use by multiple
// goroutines without external synchronization.
type Handle struct {
	name          string
	backend       domain.Backend
	kind          domain.BackendKind
	retryCount    int
	retryInterval time.Duration
	state         State
	logger        *slog.Logger
	tracer        trace.Tracer
}

// NewHandle binds a handle to an already-chosen backend. Most callers should
// use New, which also picks the backend.
func NewHandle(name string, backend domain.Backend, kind domain.BackendKind, retryCount int, retryInterval time.Duration, logger *slog.Logger) *Handle {
	return &Handle{
		name:          name,
		backend:       backend,
		kind:          kind,
		retryCount:    retryCount,
		retryInterval: retryInterval,
		state:         StateIdle,
		logger:        logger.With("component", "lock-handle", "lock_name", name, "backend", kind.String()),
		tracer:        otel.Tracer("table-lock"),
	}
}

// LockWithRetries polls the backend up to the configured attempt count,
// sleeping a fixed interval between consecutive attempts. It returns true as
// soon as an attempt acquires; context cancellation during the sleep
// abandons the remaining attempts and returns false.
func (h *Handle) LockWithRetries(ctx context.Context) bool {
	if h.state != StateIdle {
		h.logger.Warn("lock handle reused after a finished episode", "state", h.state.String())
		return false
	}
	h.state = StateAttempting

	ctx, span := h.tracer.Start(ctx, "lock.LockWithRetries",
		trace.WithAttributes(
			attribute.String("lock.name", h.name),
			attribute.String("lock.backend", h.kind.String()),
		))
	defer span.End()

	start := time.Now()
	for attempt := 1; attempt <= h.retryCount; attempt++ {
		outcome := h.backend.TryAcquire(ctx)
		metrics.AcquireAttemptsTotal.WithLabelValues(h.kind.String(), outcome.String()).Inc()

		if outcome == domain.Acquired {
			h.state = StateAcquired
			span.SetAttributes(attribute.Int("lock.attempts", attempt))
			metrics.AcquisitionsTotal.WithLabelValues(h.kind.String(), "acquired").Inc()
			metrics.AcquireDurationSeconds.WithLabelValues(h.kind.String()).Observe(time.Since(start).Seconds())
			metrics.HeldLocks.WithLabelValues(h.kind.String()).Inc()
			h.logger.Info("lock acquired", "attempt", attempt)
			return true
		}

		h.logger.Debug("lock attempt failed", "attempt", attempt, "outcome", outcome.String())
		if attempt == h.retryCount {
			break
		}

		select {
		case <-time.After(h.retryInterval):
		case <-ctx.Done():
			h.state = StateExhausted
			metrics.AcquisitionsTotal.WithLabelValues(h.kind.String(), "cancelled").Inc()
			h.logger.Warn("lock acquisition cancelled", "attempts", attempt)
			return false
		}
	}

	h.state = StateExhausted
	metrics.AcquisitionsTotal.WithLabelValues(h.kind.String(), "exhausted").Inc()
	metrics.AcquireDurationSeconds.WithLabelValues(h.kind.String()).Observe(time.Since(start).Seconds())
	h.logger.Warn("lock attempts exhausted", "attempts", h.retryCount)
	return false
}

// Unlock dispatches to the backend that acquired the lock. When the handle
// does not hold the lock it reports false without touching the backend.
func (h *Handle) Unlock(ctx context.Context) bool {
	if h.state != StateAcquired {
		return false
	}

	err := h.backend.Release(ctx)
	h.state = StateReleased

	if err != nil {
		// The substrate may still hold the lock, so the gauge keeps
		// counting it; only the failure counter moves.
		metrics.UnlockFailuresTotal.WithLabelValues(h.kind.String()).Inc()
		h.logger.Error("failed to release lock", "error", err)
		return false
	}
	metrics.HeldLocks.WithLabelValues(h.kind.String()).Dec()
	h.logger.Info("lock released")
	return true
}

// IsLocked reports whether this handle currently holds the lock.
func (h *Handle) IsLocked() bool {
	return h.state == StateAcquired
}

// Kind returns the backend kind recorded at construction time.
func (h *Handle) Kind() domain.BackendKind {
	return h.kind
}

// CurrentState returns the handle's phase, mainly for diagnostics.
func (h *Handle) CurrentState() State {
	return h.state
}
