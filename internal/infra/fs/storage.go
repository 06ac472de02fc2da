package fs

import (
	"errors"
	"io"
	"os"
	"strings"

	"table-lock/internal/domain"
)

// LocalStorage implements domain.Storage against the machine-local
// filesystem. Distributed locations are classified but not served; access to
// a distributed filesystem comes from its own client behind the same
// interface.
type LocalStorage struct{}

// NewLocalStorage creates a Storage backed by the local filesystem.
func NewLocalStorage() *LocalStorage {
	return &LocalStorage{}
}

// Exists reports whether a file is present at location.
func (s *LocalStorage) Exists(location string) (bool, error) {
	_, err := os.Stat(localPath(location))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Create creates an empty placeholder file. An already-existing file is
// left untouched.
func (s *LocalStorage) Create(location string) error {
	f, err := os.OpenFile(localPath(location), os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

// OpenAppend opens the file for appending, creating it if needed.
func (s *LocalStorage) OpenAppend(location string) (io.WriteCloser, error) {
	return os.OpenFile(localPath(location), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
}

// KindOf classifies a location by its URI scheme: bare paths and file://
// URIs are local, every other scheme is treated as a distributed filesystem.
func (s *LocalStorage) KindOf(location string) domain.StorageKind {
	scheme, _, found := strings.Cut(location, "://")
	if !found || scheme == "file" {
		return domain.StorageLocal
	}
	return domain.StorageDistributed
}

// localPath strips the optional file:// scheme so a local URI location can be
// handed to the OS as a plain path.
func localPath(location string) string {
	return strings.TrimPrefix(location, "file://")
}
