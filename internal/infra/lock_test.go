package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humaxai2025/flowmode/internal/domain"
)

func newTestLock(t *testing.T) (domain.SessionLock, *mockProcessManager, string) {
	t.Helper()
	pm := newMockProcessManager()
	path := filepath.Join(t.TempDir(), "data", LockFileName)
	return NewFileLockWithPath(path, pm), pm, path
}

func TestFileLock_AcquireReadRelease(t *testing.T) {
	lock, _, path := newTestLock(t)

	holder, err := lock.Read()
	require.NoError(t, err)
	assert.Nil(t, holder, "free lock reads as nil")

	started := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, lock.Acquire(domain.LockEntry{PID: 4242, StartedAt: started, Task: "deep work"}))

	holder, err = lock.Read()
	require.NoError(t, err)
	require.NotNil(t, holder)
	assert.Equal(t, 4242, holder.PID)
	assert.Equal(t, "deep work", holder.Task)
	assert.True(t, started.Equal(holder.StartedAt))

	require.NoError(t, lock.Release())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, lock.Release(), "second release is a no-op")
}

func TestFileLock_LiveHolderRejected(t *testing.T) {
	lock, pm, _ := newTestLock(t)
	require.NoError(t, lock.Acquire(domain.LockEntry{PID: 100}))
	pm.SetRunning(100, true)

	other := NewFileLockWithPath(lock.Path(), pm)
	err := other.Acquire(domain.LockEntry{PID: 200})
	assert.ErrorIs(t, err, domain.ErrAlreadyActive)

	holder, err := other.Read()
	require.NoError(t, err)
	assert.Equal(t, 100, holder.PID, "live lock left untouched")
}

func TestFileLock_StaleHolderReplaced(t *testing.T) {
	lock, pm, _ := newTestLock(t)
	require.NoError(t, lock.Acquire(domain.LockEntry{PID: 100}))
	pm.SetRunning(100, false)

	other := NewFileLockWithPath(lock.Path(), pm)
	require.NoError(t, other.Acquire(domain.LockEntry{PID: 200}))

	holder, err := other.Read()
	require.NoError(t, err)
	assert.Equal(t, 200, holder.PID)
}

func TestFileLock_CorruptLockReplaced(t *testing.T) {
	lock, _, path := newTestLock(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := lock.Read()
	assert.Error(t, err)

	require.NoError(t, lock.Acquire(domain.LockEntry{PID: 300}))
	holder, err := lock.Read()
	require.NoError(t, err)
	assert.Equal(t, 300, holder.PID)
}

func TestFileLock_ReleaseKeepsForeignLock(t *testing.T) {
	lock, pm, path := newTestLock(t)
	require.NoError(t, lock.Acquire(domain.LockEntry{PID: 100}))

	// A later session replaced our stale lock.
	other := NewFileLockWithPath(path, pm)
	require.NoError(t, other.Acquire(domain.LockEntry{PID: 200}))

	require.NoError(t, lock.Release())
	holder, err := other.Read()
	require.NoError(t, err)
	require.NotNil(t, holder)
	assert.Equal(t, 200, holder.PID)
}
