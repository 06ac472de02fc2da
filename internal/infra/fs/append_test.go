package fs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"table-lock/internal/domain"
)

type fakeStream struct {
	closed   bool
	closeErr error
}

func (s *fakeStream) Write(p []byte) (int, error) { return len(p), nil }

func (s *fakeStream) Close() error {
	s.closed = true
	return s.closeErr
}

// fakeAppendStorage models a distributed filesystem that grants the append
// stream to at most one writer.
type fakeAppendStorage struct {
	files     map[string]bool
	stream    *fakeStream
	openErr   error
	existsErr error
	createErr error
	creates   int
}

func newFakeAppendStorage() *fakeAppendStorage {
	return &fakeAppendStorage{files: map[string]bool{}, stream: &fakeStream{}}
}

func (s *fakeAppendStorage) Exists(location string) (bool, error) {
	if s.existsErr != nil {
		return false, s.existsErr
	}
	return s.files[location], nil
}

func (s *fakeAppendStorage) Create(location string) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.creates++
	s.files[location] = true
	return nil
}

func (s *fakeAppendStorage) OpenAppend(location string) (io.WriteCloser, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return s.stream, nil
}

func (s *fakeAppendStorage) KindOf(location string) domain.StorageKind {
	return domain.StorageDistributed
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAppendBackendAcquireCreatesMissingFile(t *testing.T) {
	storage := newFakeAppendStorage()
	b := NewAppendBackend("hdfs://nn/locks/t1.lock", storage, discardLogger())

	assert.Equal(t, domain.Acquired, b.TryAcquire(context.Background()))
	assert.Equal(t, 1, storage.creates)
	require.NoError(t, b.Release(context.Background()))
	assert.True(t, storage.stream.closed)
}

func TestAppendBackendExistingFileNotRecreated(t *testing.T) {
	storage := newFakeAppendStorage()
	storage.files["hdfs://nn/locks/t1.lock"] = true
	b := NewAppendBackend("hdfs://nn/locks/t1.lock", storage, discardLogger())

	assert.Equal(t, domain.Acquired, b.TryAcquire(context.Background()))
	assert.Zero(t, storage.creates)
}

func TestAppendBackendBusyWhenStreamHeld(t *testing.T) {
	storage := newFakeAppendStorage()
	storage.openErr = errors.New("lease on file already held")
	b := NewAppendBackend("hdfs://nn/locks/t1.lock", storage, discardLogger())

	assert.Equal(t, domain.Busy, b.TryAcquire(context.Background()))
}

func TestAppendBackendUnavailableOnStorageFault(t *testing.T) {
	storage := newFakeAppendStorage()
	storage.existsErr = errors.New("namenode unreachable")
	b := NewAppendBackend("hdfs://nn/locks/t1.lock", storage, discardLogger())

	assert.Equal(t, domain.BackendUnavailable, b.TryAcquire(context.Background()))
}

func TestAppendBackendReleaseReportsCloseFailure(t *testing.T) {
	storage := newFakeAppendStorage()
	storage.stream.closeErr = errors.New("close failed")
	b := NewAppendBackend("hdfs://nn/locks/t1.lock", storage, discardLogger())

	require.Equal(t, domain.Acquired, b.TryAcquire(context.Background()))
	assert.Error(t, b.Release(context.Background()))
}

func TestAppendBackendReleaseWithoutAcquire(t *testing.T) {
	b := NewAppendBackend("hdfs://nn/locks/t1.lock", newFakeAppendStorage(), discardLogger())
	assert.ErrorIs(t, b.Release(context.Background()), domain.ErrNotHeld)
}
