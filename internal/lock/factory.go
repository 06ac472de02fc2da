package lock

import (
	"log/slog"
	"time"

	"table-lock/internal/domain"
	"table-lock/internal/infra/etcd"
	"table-lock/internal/infra/fs"
)

// Options describes one lock to be built. Location and Name together form
// the resource identity and must match across every process contending for
// the same lock.
type Options struct {
	// Location is the path or URI of the protected resource's lock file.
	Location string
	// Name is the logical lock label shared by all competitors.
	Name string
	// RetryCount is the maximum number of acquisition attempts.
	RetryCount int
	// RetryInterval is the fixed sleep between consecutive attempts.
	RetryInterval time.Duration
	// UseCoordination routes the lock through the coordination service
	// instead of the filesystem. Requires a connected session manager.
	UseCoordination bool
}

// New picks the backend for the resource and returns a ready handle. With
// coordination enabled the lock name is arbitrated by the coordination
// service; otherwise the location's storage kind decides between the OS
// advisory lock and the append-stream lock.
func New(opts Options, storage domain.Storage, sessions *etcd.SessionManager, logger *slog.Logger) *Handle {
	var backend domain.Backend
	var kind domain.BackendKind

	switch {
	case opts.UseCoordination:
		backend = etcd.NewMutexBackend(sessions, opts.Name, logger)
		kind = domain.KindCoordinationMutex
	case storage.KindOf(opts.Location) == domain.StorageLocal:
		backend = fs.NewLocalBackend(opts.Location, storage, logger)
		kind = domain.KindLocal
	default:
		backend = fs.NewAppendBackend(opts.Location, storage, logger)
		kind = domain.KindAppend
	}

	return NewHandle(opts.Name, backend, kind, opts.RetryCount, opts.RetryInterval, logger)
}
