// Package usecase contains application business logic.
package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/humaxai2025/flowmode/internal/blocklist"
	"github.com/humaxai2025/flowmode/internal/domain"
)

// Warden implements domain.ProcessWarden.
type Warden struct {
	processManager domain.ProcessManager
	logger         *zap.Logger
	now            func() time.Time
}

// NewWarden creates a new process warden.
func NewWarden(pm domain.ProcessManager, logger *zap.Logger) domain.ProcessWarden {
	return &Warden{
		processManager: pm,
		logger:         logger,
		now:            time.Now,
	}
}

// Sweep terminates every running process whose name matches one of apps
// and that belongs to the current user. Partial failure is reported in the
// returned SweepReport, never as an error.
func (w *Warden) Sweep(ctx context.Context, apps []string) domain.SweepReport {
	start := w.now()
	report := domain.SweepReport{ExecutedAt: start}

	if len(apps) == 0 {
		return report
	}

	procs, err := w.processManager.List(ctx)
	if err != nil {
		w.logger.Warn("failed to list processes", zap.Error(err))
		for _, app := range apps {
			report.Entries = append(report.Entries, domain.SweepEntry{
				App: app, Outcome: domain.KillError, Err: err,
			})
		}
		report.DurationMs = w.now().Sub(start).Milliseconds()
		return report
	}

	uid := w.processManager.CurrentUID()

	for _, app := range apps {
		key := blocklist.AppKey(app)
		matched := false

		for _, p := range procs {
			if blocklist.AppKey(p.Name) != key {
				continue
			}
			matched = true
			report.Entries = append(report.Entries, w.terminate(app, p, uid))
		}

		if !matched {
			report.Entries = append(report.Entries, domain.SweepEntry{
				App: app, Outcome: domain.KillNotFound,
			})
		}
	}

	report.DurationMs = w.now().Sub(start).Milliseconds()

	if failed := report.Failed(); failed > 0 {
		w.logger.Warn("some blocked applications could not be terminated",
			zap.Int("killed", report.Killed()),
			zap.Int("failed", failed))
	}
	return report
}

func (w *Warden) terminate(app string, p domain.ProcessInfo, uid int) domain.SweepEntry {
	entry := domain.SweepEntry{App: app, PID: p.PID, Name: p.Name}

	if p.OwnerKnown && p.UID != uid {
		w.logger.Info("skipping process owned by another user",
			zap.String("app", app),
			zap.Int("pid", p.PID),
			zap.Int("uid", p.UID))
		entry.Outcome = domain.KillPermissionDenied
		return entry
	}

	err := w.processManager.Kill(p.PID)
	switch {
	case err == nil:
		w.logger.Info("killed process",
			zap.String("app", app),
			zap.Int("pid", p.PID),
			zap.String("name", p.Name))
		entry.Outcome = domain.KillKilled
	case errors.Is(err, domain.ErrProcessGone):
		entry.Outcome = domain.KillNotFound
	case errors.Is(err, domain.ErrPermissionDenied):
		w.logger.Warn("cannot kill process (permission denied)",
			zap.String("app", app),
			zap.Int("pid", p.PID))
		entry.Outcome = domain.KillPermissionDenied
		entry.Err = err
	default:
		w.logger.Warn("failed to kill process",
			zap.String("app", app),
			zap.Int("pid", p.PID),
			zap.Error(err))
		entry.Outcome = domain.KillError
		entry.Err = err
	}
	return entry
}

// Ensure Warden implements domain.ProcessWarden.
var _ domain.ProcessWarden = (*Warden)(nil)
