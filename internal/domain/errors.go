package domain

import "errors"

var (
	ErrInvalidDuration   = errors.New("invalid duration")
	ErrConfigInvalid     = errors.New("invalid session config")
	ErrAcquisitionFailed = errors.New("hosts file acquisition failed")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrAlreadyActive     = errors.New("a flowmode session is already active")
	ErrNotActive         = errors.New("no active session")
	ErrReleaseFailed     = errors.New("hosts file restore failed")

	// ErrBackupReleased is returned when a backup is released twice.
	ErrBackupReleased = errors.New("hosts backup already released")
	// ErrBackupLive is returned by a second acquire without a release.
	ErrBackupLive = errors.New("hosts backup already live")
	// ErrNoMarker means there is nothing to recover.
	ErrNoMarker = errors.New("no recovery marker found")
	// ErrProcessGone is returned when killing a process that already exited.
	ErrProcessGone = errors.New("process not found")
)
