package fs

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"table-lock/internal/domain"
)

// appendBackend implements domain.Backend on a distributed filesystem that
// allows at most one append-mode writer per file. Holding the append stream
// open is the lock; closing it is the release.
type appendBackend struct {
	location string
	storage  domain.Storage
	logger   *slog.Logger
	stream   io.WriteCloser
}

// NewAppendBackend creates a backend that locks location by holding its
// single append stream.
func NewAppendBackend(location string, storage domain.Storage, logger *slog.Logger) domain.Backend {
	return &appendBackend{
		location: location,
		storage:  storage,
		logger:   logger.With("component", "append-lock", "location", location),
	}
}

// TryAcquire ensures the lock file exists, then opens it for append. The
// substrate rejects a second concurrent append writer, so an open failure is
// reported as Busy.
func (b *appendBackend) TryAcquire(ctx context.Context) domain.Outcome {
	if err := ensureLockFile(b.storage, b.location); err != nil {
		b.logger.Error("failed to create lock file", "error", err)
		return domain.BackendUnavailable
	}

	w, err := b.storage.OpenAppend(b.location)
	if err != nil {
		// The filesystem does not say whether the open failed because
		// another writer holds the stream or because of an I/O fault.
		b.logger.Debug("append open failed", "error", err)
		return domain.Busy
	}

	b.stream = w
	return domain.Acquired
}

// Release closes the append stream, letting the next writer in.
func (b *appendBackend) Release(ctx context.Context) error {
	if b.stream == nil {
		return domain.ErrNotHeld
	}
	w := b.stream
	b.stream = nil

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close append stream for %s: %w", b.location, err)
	}
	return nil
}
