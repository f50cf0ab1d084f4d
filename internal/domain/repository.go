package domain

import "context"

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// List returns all processes visible to the current user.
	List(ctx context.Context) ([]ProcessInfo, error)

	// Kill terminates a process by PID (SIGKILL).
	Kill(pid int) error

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// CurrentUID returns the uid processes must belong to in order to be killed.
	CurrentUID() int
}

// HostsGuard is the only entry point that mutates the hosts file.
type HostsGuard interface {
	// Acquire snapshots the hosts file and writes the blocked version.
	Acquire(ctx context.Context, req BlockRequest) (*HostsBackup, error)

	// Release restores the snapshot. Calling it twice is an error.
	Release(backup *HostsBackup) error

	// Path returns the hosts file location.
	Path() string
}

// ProcessWarden terminates running instances of blocked applications.
type ProcessWarden interface {
	// Sweep never fails as a whole; per-process outcomes are in the report.
	Sweep(ctx context.Context, apps []string) SweepReport
}

// SessionLogger persists session history.
type SessionLogger interface {
	// SessionStarted is called once the session reaches running.
	SessionStarted(ctx context.Context, rec SessionRecord) error

	// Record is called exactly once per terminal transition.
	Record(ctx context.Context, rec SessionRecord) error
}

// Notifier reacts to phase boundaries (mute/unmute, desktop popups).
type Notifier interface {
	OnPhaseChange(ctx context.Context, phase Phase) error
}

// WebhookSink receives session summaries. Fire-and-forget: implementations
// must not block and handle their own delivery failures.
type WebhookSink interface {
	SessionStarted(rec SessionRecord)
	SessionEnded(rec SessionRecord)
}

// AudioController mutes and unmutes system sound.
// Implementations are platform specific.
type AudioController interface {
	Mute(ctx context.Context) error
	Unmute(ctx context.Context) error
}

// MarkerStore persists the crash-recovery marker of a live hosts backup.
type MarkerStore interface {
	// Save writes the marker and the original hosts bytes.
	Save(marker Marker, original []byte) error

	// Load returns the current marker, or ErrNoMarker.
	Load() (*Marker, error)

	// Clear removes the marker and the stored original bytes.
	Clear() error

	// BackupPath returns where the original bytes are kept.
	BackupPath() string
}

// SessionLock is the well-known PID marker of the running session.
type SessionLock interface {
	// Acquire claims the lock; a live holder yields ErrAlreadyActive.
	Acquire(entry LockEntry) error

	// Release removes the lock.
	Release() error

	// Read returns the current holder, or nil if unlocked.
	Read() (*LockEntry, error)

	// Path returns the lock file location.
	Path() string
}

// KeyProvider abstracts encryption key retrieval for the history database.
type KeyProvider interface {
	// GetKey returns the 32-byte database key.
	GetKey() ([]byte, error)

	// StoreKey persists a key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been stored.
	KeyExists() bool
}

// HistoryReader lists persisted session records, oldest first.
type HistoryReader interface {
	List(ctx context.Context) ([]SessionRecord, error)
}
