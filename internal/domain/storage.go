package domain

import "io"

// StorageKind classifies where a resource location lives.
type StorageKind int

const (
	// StorageLocal is the machine-local filesystem.
	StorageLocal StorageKind = iota
	// StorageDistributed is a remote, append-exclusive distributed filesystem.
	StorageDistributed
)

func (k StorageKind) String() string {
	if k == StorageLocal {
		return "local"
	}
	return "distributed"
}

// Storage is the raw file-access collaborator the file-based lock backends
// depend on. Implementations provide byte-stream semantics only; the lock
// layer makes no assumptions about content or format.
type Storage interface {
	// Exists reports whether a file is present at location.
	Exists(location string) (bool, error)

	// Create creates an empty placeholder file at location. Creating an
	// already-existing file is not an error.
	Create(location string) error

	// OpenAppend opens the file at location for appending. On a distributed
	// filesystem at most one append writer may hold the file open at a time,
	// so a successful open doubles as an exclusion grant.
	OpenAppend(location string) (io.WriteCloser, error)

	// KindOf classifies a location as local or distributed.
	KindOf(location string) StorageKind
}
