package fs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofrs/flock"

	"table-lock/internal/domain"
)

// localBackend implements domain.Backend with a non-blocking flock on the
// lock file. Exclusion only spans holders on the same machine locking the
// same path through the same mechanism; the lock is advisory.
type localBackend struct {
	location string
	storage  domain.Storage
	logger   *slog.Logger
	fl       *flock.Flock
}

// NewLocalBackend creates a backend that locks location with an OS advisory
// lock.
func NewLocalBackend(location string, storage domain.Storage, logger *slog.Logger) domain.Backend {
	return &localBackend{
		location: location,
		storage:  storage,
		logger:   logger.With("component", "local-lock", "location", location),
	}
}

// TryAcquire requests an exclusive non-blocking flock on the lock file. A
// lock held elsewhere reports Busy immediately.
func (b *localBackend) TryAcquire(ctx context.Context) domain.Outcome {
	if err := ensureLockFile(b.storage, b.location); err != nil {
		b.logger.Error("failed to create lock file", "error", err)
		return domain.BackendUnavailable
	}

	fl := flock.New(localPath(b.location))
	locked, err := fl.TryLock()
	if err != nil {
		b.logger.Error("flock failed", "error", err)
		return domain.BackendUnavailable
	}
	if !locked {
		return domain.Busy
	}

	b.fl = fl
	return domain.Acquired
}

// Release drops the advisory lock and closes the descriptor.
func (b *localBackend) Release(ctx context.Context) error {
	if b.fl == nil {
		return domain.ErrNotHeld
	}
	fl := b.fl
	b.fl = nil

	if err := fl.Unlock(); err != nil {
		return fmt.Errorf("failed to release flock on %s: %w", b.location, err)
	}
	return nil
}

// ensureLockFile creates the placeholder lock file if it is missing, going
// through the storage collaborator so the same pre-step works on every
// filesystem kind.
func ensureLockFile(storage domain.Storage, location string) error {
	exists, err := storage.Exists(location)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return storage.Create(location)
}
