// Package domain contains core business entities and interfaces.
// This is the innermost layer - no external dependencies.
package domain

import "time"

// PomodoroConfig holds the interval parameters of a Pomodoro session.
// A zero ShortBreak or LongBreak disables that kind of break.
type PomodoroConfig struct {
	Work                  time.Duration
	ShortBreak            time.Duration
	LongBreak             time.Duration
	CyclesBeforeLongBreak int
}

// AcquirePolicy decides what happens when the hosts file cannot be written.
type AcquirePolicy string

const (
	// PolicyDegrade continues with a timer-only session (no website blocking).
	PolicyDegrade AcquirePolicy = "degrade"
	// PolicyAbort fails the start.
	PolicyAbort AcquirePolicy = "abort"
)

// SessionConfig is built once from CLI flags and the config file and is
// immutable for the lifetime of a session.
type SessionConfig struct {
	Total    time.Duration
	Task     string
	Pomodoro *PomodoroConfig // nil => single unstructured countdown

	Domains   []string // domains to redirect
	AllowList []string // non-empty only in allow-list mode
	AllowMode bool
	Apps      []string // application names to sweep

	OnAcquireFailure AcquirePolicy
}

// BlocksWebsites reports whether the session touches the hosts file at all.
func (c SessionConfig) BlocksWebsites() bool {
	return c.AllowMode || len(c.Domains) > 0
}

// PhaseKind is the tag of a Pomodoro phase.
type PhaseKind string

const (
	PhaseWork       PhaseKind = "work"
	PhaseShortBreak PhaseKind = "short_break"
	PhaseLongBreak  PhaseKind = "long_break"
	PhaseFinished   PhaseKind = "finished"
)

// Phase is the active Pomodoro sub-interval.
// Cycle is the index of the current work interval (for breaks, the index of
// the work interval that preceded them).
type Phase struct {
	Kind      PhaseKind
	Remaining time.Duration
	Cycle     int
}

// Status is the coarse state of the session engine.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusBlocking  Status = "blocking"
	StatusRunning   Status = "running"
	StatusStopping  Status = "stopping"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions can happen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Active reports whether a session currently owns system resources.
func (s Status) Active() bool {
	return s == StatusBlocking || s == StatusRunning || s == StatusStopping
}

// SessionState is a snapshot of the engine state.
type SessionState struct {
	Status Status
	Phase  Phase  // meaningful only while running
	Reason string // set when Status == StatusFailed
}

// Outcome is how a session ended.
type Outcome string

const (
	OutcomeRunning   Outcome = "running"
	OutcomeCompleted Outcome = "completed"
	OutcomeStopped   Outcome = "stopped"
	OutcomeFailed    Outcome = "failed"
)

// SessionRecord is handed to the session logger on every terminal transition.
type SessionRecord struct {
	ID           string
	Task         string
	StartedAt    time.Time
	EndedAt      time.Time
	Outcome      Outcome
	Reason       string
	ReleaseError string
	Degraded     bool // website blocking was skipped
	Killed       int
	KillFailures int
}

// Elapsed returns the wall-clock length of the session.
func (r SessionRecord) Elapsed() time.Duration {
	if r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// HostsBackup is the snapshot of the hosts file captured by an acquire.
// It is live until released; at most one exists per session.
type HostsBackup struct {
	Path     string
	Original []byte
	Mode     uint32
	// Absent is set when there was no hosts file to snapshot; restoring
	// then removes the file instead of writing Original.
	Absent     bool
	AcquiredAt time.Time
	released   bool
}

// Released reports whether the backup has already been restored.
func (b *HostsBackup) Released() bool {
	return b.released
}

// MarkReleased flags the backup as consumed.
func (b *HostsBackup) MarkReleased() {
	b.released = true
}

// BlockRequest is what the hosts guard needs to compute the new content.
type BlockRequest struct {
	Domains   []string
	AllowList []string
	AllowMode bool
}

// ProcessInfo describes one running process as seen by the process manager.
type ProcessInfo struct {
	PID        int
	Name       string
	UID        int
	OwnerKnown bool
}

// KillOutcome is the per-process result of a sweep.
type KillOutcome string

const (
	KillKilled           KillOutcome = "killed"
	KillNotFound         KillOutcome = "not_found"
	KillPermissionDenied KillOutcome = "permission_denied"
	KillError            KillOutcome = "error"
)

// SweepEntry is one line of a SweepReport. PID is zero for apps that had no
// running instance.
type SweepEntry struct {
	App     string
	PID     int
	Name    string
	Outcome KillOutcome
	Err     error
}

// SweepReport captures what happened during a single sweep.
type SweepReport struct {
	Entries    []SweepEntry
	ExecutedAt time.Time
	DurationMs int64
}

// Killed returns the number of processes terminated.
func (r SweepReport) Killed() int {
	return r.count(KillKilled)
}

// Failed returns the number of matched processes that survived the sweep.
func (r SweepReport) Failed() int {
	return r.count(KillPermissionDenied) + r.count(KillError)
}

func (r SweepReport) count(o KillOutcome) int {
	n := 0
	for _, e := range r.Entries {
		if e.Outcome == o {
			n++
		}
	}
	return n
}

// Marker records that a hosts backup is live, for crash recovery.
type Marker struct {
	Version     int       `json:"version"`
	PID         int       `json:"pid"`
	HostsPath   string    `json:"hosts_path"`
	BackupPath  string    `json:"backup_path"`
	AcquiredAt  time.Time `json:"acquired_at"`
	HostsAbsent bool      `json:"hosts_absent,omitempty"` // no hosts file existed at acquire time
}

// LockEntry is the PID marker of the running session.
type LockEntry struct {
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	Task      string    `json:"task,omitempty"`
}
