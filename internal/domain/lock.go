package domain

import (
	"context"
	"errors"
)

// ErrNotHeld is returned when a release is requested for a lock that the
// handle does not currently hold.
var ErrNotHeld = errors.New("lock not held")

// ErrSessionClosed is returned by the coordination backend when the shared
// session has not been connected or has already been closed.
var ErrSessionClosed = errors.New("coordination session closed")

// Outcome is the result of a single non-blocking acquisition attempt.
// Backends report it so the retry loop can distinguish "locked elsewhere"
// from "the substrate is broken", even though the public surface collapses
// both into a boolean.
type Outcome int

const (
	// Acquired means the attempt succeeded and the caller now holds the lock.
	Acquired Outcome = iota
	// Busy means the lock is held elsewhere; a later attempt may succeed.
	Busy
	// BackendUnavailable means the backend could not be reached or used at
	// all (I/O error, missing session). Retrying is unlikely to help.
	BackendUnavailable
	// ProtocolError means the coordination service rejected or failed the
	// operation mid-protocol.
	ProtocolError
)

func (o Outcome) String() string {
	switch o {
	case Acquired:
		return "acquired"
	case Busy:
		return "busy"
	case BackendUnavailable:
		return "backend_unavailable"
	case ProtocolError:
		return "protocol_error"
	default:
		return "unknown"
	}
}

// BackendKind identifies which exclusion substrate a handle is bound to.
type BackendKind int

const (
	// KindLocal uses an OS advisory lock on a local file.
	KindLocal BackendKind = iota
	// KindAppend uses a distributed filesystem's single-append-writer guarantee.
	KindAppend
	// KindCoordinationMutex uses ephemeral sequential nodes on the
	// coordination service.
	KindCoordinationMutex
)

func (k BackendKind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindAppend:
		return "append"
	case KindCoordinationMutex:
		return "coordination"
	default:
		return "unknown"
	}
}

// Backend performs a single instantaneous acquisition attempt against one
// exclusion substrate. Implementations must never block waiting for the lock.
type Backend interface {
	// TryAcquire makes one non-blocking attempt. On Acquired the backend
	// retains whatever token (descriptor, stream, node key) is needed to
	// release later.
	TryAcquire(ctx context.Context) Outcome

	// Release gives the lock back. Releasing a lock that was never acquired
	// returns ErrNotHeld.
	Release(ctx context.Context) error
}

// Lock is the caller-facing contract of a resource lock handle.
type Lock interface {
	// LockWithRetries polls the backend until it acquires the lock or the
	// configured attempt budget is exhausted. Context cancellation during
	// the inter-attempt sleep aborts remaining attempts and reports failure.
	LockWithRetries(ctx context.Context) bool

	// Unlock releases the lock. It reports false, without touching the
	// backend, when the handle does not hold the lock.
	Unlock(ctx context.Context) bool

	// IsLocked reports whether this handle currently holds the lock.
	IsLocked() bool
}
