package infra

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/humaxai2025/flowmode/internal/domain"
)

// FileLock implements domain.SessionLock with an O_EXCL-created PID file.
// It is the well-known marker `flowmode stop` uses to find the session.
type FileLock struct {
	path           string
	processManager domain.ProcessManager

	mu    sync.Mutex
	owner int
}

// NewFileLock creates the session lock inside the data directory.
func NewFileLock(mode *ExecModeConfig, pm domain.ProcessManager) domain.SessionLock {
	return NewFileLockWithPath(mode.Path(LockFileName), pm)
}

// NewFileLockWithPath creates a lock at a specific path (for testing).
func NewFileLockWithPath(path string, pm domain.ProcessManager) domain.SessionLock {
	return &FileLock{path: path, processManager: pm}
}

// Path returns the lock file location.
func (l *FileLock) Path() string {
	return l.path
}

// Acquire claims the lock for entry.PID. A lock held by a live process
// yields domain.ErrAlreadyActive; a stale one is replaced.
func (l *FileLock) Acquire(entry domain.LockEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := ensureDir(filepath.Dir(l.path)); err != nil {
		return err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			if _, err := f.Write(data); err != nil {
				f.Close()
				_ = os.Remove(l.path)
				return fmt.Errorf("failed to write lock file: %w", err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to write lock file: %w", err)
			}
			l.owner = entry.PID
			return nil
		}
		if !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("failed to create lock file: %w", err)
		}

		holder, rerr := l.read()
		if rerr == nil && holder != nil && holder.PID != entry.PID &&
			l.processManager.IsRunning(holder.PID) {
			return fmt.Errorf("%w (pid %d)", domain.ErrAlreadyActive, holder.PID)
		}

		// Stale or unreadable lock: remove and retry once.
		if err := removeIfExists(l.path); err != nil {
			return fmt.Errorf("failed to remove stale lock: %w", err)
		}
	}

	return fmt.Errorf("%w: lock file %s keeps reappearing", domain.ErrAlreadyActive, l.path)
}

// Release removes the lock if this process still owns it.
func (l *FileLock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.owner == 0 {
		return nil
	}

	holder, err := l.read()
	if err == nil && holder != nil && holder.PID != l.owner {
		// Someone else replaced our lock; leave theirs in place.
		l.owner = 0
		return nil
	}

	if err := removeIfExists(l.path); err != nil {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	l.owner = 0
	return nil
}

// Read returns the current lock holder, or nil if the lock is free.
func (l *FileLock) Read() (*domain.LockEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}

func (l *FileLock) read() (*domain.LockEntry, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entry domain.LockEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("corrupt lock file %s: %w", l.path, err)
	}
	return &entry, nil
}

// Ensure FileLock implements domain.SessionLock.
var _ domain.SessionLock = (*FileLock)(nil)
