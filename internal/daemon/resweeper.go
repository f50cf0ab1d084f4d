// Package daemon implements background loops that run alongside a session.
package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/humaxai2025/flowmode/internal/domain"
)

// ResweeperConfig holds re-sweep loop configuration.
type ResweeperConfig struct {
	Interval time.Duration // How often to sweep again; <= 0 disables the loop
	Apps     []string      // Application names to terminate

	// Ticks overrides the ticker, used by tests.
	Ticks func(d time.Duration) (<-chan time.Time, func())
}

// Resweeper repeats the process sweep on a schedule so that blocked
// applications relaunched mid-session are terminated again.
type Resweeper struct {
	config ResweeperConfig
	warden domain.ProcessWarden
	logger *zap.Logger

	sweeps int
}

// NewResweeper creates a new re-sweep loop.
func NewResweeper(config ResweeperConfig, warden domain.ProcessWarden, logger *zap.Logger) *Resweeper {
	if config.Ticks == nil {
		config.Ticks = func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		}
	}
	return &Resweeper{
		config: config,
		warden: warden,
		logger: logger,
	}
}

// Enabled reports whether Run would do any work.
func (r *Resweeper) Enabled() bool {
	return r.config.Interval > 0 && len(r.config.Apps) > 0
}

// Run sweeps every interval until ctx is canceled.
// The initial sweep belongs to session start, so the first one here happens
// after one interval.
func (r *Resweeper) Run(ctx context.Context) error {
	if !r.Enabled() {
		return nil
	}

	r.logger.Info("resweeper started",
		zap.Duration("interval", r.config.Interval),
		zap.Strings("apps", r.config.Apps))

	ticks, stop := r.config.Ticks(r.config.Interval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("resweeper stopping", zap.Int("sweeps", r.sweeps))
			return ctx.Err()

		case <-ticks:
			r.runSweep(ctx)
		}
	}
}

// Sweeps returns how many sweeps have run. Only safe after Run returns.
func (r *Resweeper) Sweeps() int {
	return r.sweeps
}

func (r *Resweeper) runSweep(ctx context.Context) {
	r.logger.Debug("running resweep")
	r.sweeps++

	report := r.warden.Sweep(ctx, r.config.Apps)
	killed, failed := report.Killed(), report.Failed()

	if killed > 0 {
		r.logger.Info("resweep completed", zap.Int("processes_killed", killed))
	}
	if failed > 0 {
		r.logger.Warn("resweep could not terminate some processes", zap.Int("failures", failed))
	}
}
