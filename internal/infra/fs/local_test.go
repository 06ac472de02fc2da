package fs_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"table-lock/internal/domain"
	"table-lock/internal/infra/fs"
	"table-lock/internal/lock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLocalBackendMutualExclusion(t *testing.T) {
	location := filepath.Join(t.TempDir(), "table1.lock")
	storage := fs.NewLocalStorage()
	ctx := context.Background()

	first := fs.NewLocalBackend(location, storage, testLogger())
	second := fs.NewLocalBackend(location, storage, testLogger())

	require.Equal(t, domain.Acquired, first.TryAcquire(ctx))
	// The flock is held per open file description, so a second handle in
	// the same process contends just like another process would.
	assert.Equal(t, domain.Busy, second.TryAcquire(ctx))

	require.NoError(t, first.Release(ctx))
}

func TestLocalBackendLivenessAfterRelease(t *testing.T) {
	location := filepath.Join(t.TempDir(), "table1.lock")
	storage := fs.NewLocalStorage()
	ctx := context.Background()

	a := fs.NewLocalBackend(location, storage, testLogger())
	b := fs.NewLocalBackend(location, storage, testLogger())

	require.Equal(t, domain.Acquired, a.TryAcquire(ctx))
	require.Equal(t, domain.Busy, b.TryAcquire(ctx))
	require.NoError(t, a.Release(ctx))

	assert.Equal(t, domain.Acquired, b.TryAcquire(ctx), "next attempt after a clean release must win")
	require.NoError(t, b.Release(ctx))
}

func TestLocalBackendReleaseWithoutAcquire(t *testing.T) {
	location := filepath.Join(t.TempDir(), "table1.lock")
	b := fs.NewLocalBackend(location, fs.NewLocalStorage(), testLogger())

	assert.ErrorIs(t, b.Release(context.Background()), domain.ErrNotHeld)
}

func TestLocalBackendCreatesPlaceholder(t *testing.T) {
	location := filepath.Join(t.TempDir(), "table1.lock")
	storage := fs.NewLocalStorage()

	exists, err := storage.Exists(location)
	require.NoError(t, err)
	require.False(t, exists)

	b := fs.NewLocalBackend(location, storage, testLogger())
	require.Equal(t, domain.Acquired, b.TryAcquire(context.Background()))
	defer b.Release(context.Background())

	exists, err = storage.Exists(location)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLocalBackendFileURILocation(t *testing.T) {
	plain := filepath.Join(t.TempDir(), "table1.lock")
	location := "file://" + plain
	storage := fs.NewLocalStorage()
	ctx := context.Background()

	require.Equal(t, domain.StorageLocal, storage.KindOf(location))

	a := fs.NewLocalBackend(location, storage, testLogger())
	require.Equal(t, domain.Acquired, a.TryAcquire(ctx), "a file:// location must lock like a plain path")

	// The URI and the plain path name the same lock file.
	b := fs.NewLocalBackend(plain, storage, testLogger())
	assert.Equal(t, domain.Busy, b.TryAcquire(ctx))

	require.NoError(t, a.Release(ctx))
	assert.Equal(t, domain.Acquired, b.TryAcquire(ctx))
	require.NoError(t, b.Release(ctx))
}

func TestLocalBackendManyCompetitorsSingleWinner(t *testing.T) {
	location := filepath.Join(t.TempDir(), "table1.lock")
	storage := fs.NewLocalStorage()

	const competitors = 100
	outcomes := make([]domain.Outcome, competitors)
	backends := make([]domain.Backend, competitors)
	var wg sync.WaitGroup

	for i := 0; i < competitors; i++ {
		backends[i] = fs.NewLocalBackend(location, storage, testLogger())
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			outcomes[idx] = backends[idx].TryAcquire(context.Background())
		}(i)
	}
	wg.Wait()

	winners := 0
	for i, o := range outcomes {
		if o == domain.Acquired {
			winners++
			require.NoError(t, backends[i].Release(context.Background()))
		} else {
			assert.Equal(t, domain.Busy, o)
		}
	}
	assert.Equal(t, 1, winners, "exactly one of the concurrent attempts may hold the lock")
}

func TestConcurrentHandlesSerializeCriticalSection(t *testing.T) {
	location := filepath.Join(t.TempDir(), "table1.lock")
	storage := fs.NewLocalStorage()

	const competitors = 10
	var inside atomic.Int32
	var succeeded atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < competitors; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := lock.New(lock.Options{
				Location:      location,
				Name:          "table1",
				RetryCount:    1000,
				RetryInterval: time.Millisecond,
			}, storage, nil, testLogger())

			if !h.LockWithRetries(context.Background()) {
				return
			}
			succeeded.Add(1)

			holders := inside.Add(1)
			assert.Equal(t, int32(1), holders, "at most one holder at a time")
			time.Sleep(time.Millisecond)
			inside.Add(-1)

			assert.True(t, h.Unlock(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(competitors), succeeded.Load(), "every competitor must eventually acquire")
}
