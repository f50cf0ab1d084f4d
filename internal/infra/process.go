// Package infra implements infrastructure concerns (hosts file, processes,
// history store, notifications).
package infra

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/humaxai2025/flowmode/internal/domain"
)

// ProcessManagerImpl implements domain.ProcessManager using gopsutil.
type ProcessManagerImpl struct {
	uid int
}

// NewProcessManager creates a new process manager for the current user.
func NewProcessManager() domain.ProcessManager {
	return &ProcessManagerImpl{uid: os.Getuid()}
}

// List returns every process whose name can be read. Processes that exit
// while being listed are skipped.
func (pm *ProcessManagerImpl) List(ctx context.Context) ([]domain.ProcessInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	result := make([]domain.ProcessInfo, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue // Process may have exited
		}

		info := domain.ProcessInfo{PID: int(p.Pid), Name: name}
		// Uids is unsupported on Windows; ownership stays unknown there.
		if uids, err := p.UidsWithContext(ctx); err == nil && len(uids) > 0 {
			info.UID = int(uids[0])
			info.OwnerKnown = true
		}
		result = append(result, info)
	}

	return result, nil
}

// Kill terminates a process by PID using SIGKILL.
// Errors wrap domain.ErrProcessGone or domain.ErrPermissionDenied when the
// cause is known.
func (pm *ProcessManagerImpl) Kill(pid int) error {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return fmt.Errorf("pid %d: %w", pid, domain.ErrProcessGone)
		}
		return err
	}

	if err := p.Kill(); err != nil {
		switch {
		case errors.Is(err, syscall.ESRCH), errors.Is(err, os.ErrProcessDone):
			return fmt.Errorf("pid %d: %w", pid, domain.ErrProcessGone)
		case errors.Is(err, os.ErrPermission):
			return fmt.Errorf("pid %d: %w", pid, domain.ErrPermissionDenied)
		}
		return err
	}
	return nil
}

// IsRunning checks if a PID exists and is running.
func (pm *ProcessManagerImpl) IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	ok, err := process.PidExists(int32(pid))
	return err == nil && ok
}

// CurrentUID returns the uid of the user running flowmode.
func (pm *ProcessManagerImpl) CurrentUID() int {
	return pm.uid
}

// Ensure ProcessManagerImpl implements domain.ProcessManager.
var _ domain.ProcessManager = (*ProcessManagerImpl)(nil)
