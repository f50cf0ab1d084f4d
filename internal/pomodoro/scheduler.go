// Package pomodoro drives the Work/ShortBreak/LongBreak phase sequence of a
// focus session, bounded by the overall session length.
package pomodoro

import (
	"time"

	"github.com/humaxai2025/flowmode/internal/domain"
)

// Scheduler is a pure state machine advanced by elapsed time.
// It is not safe for concurrent use; the session engine owns it.
type Scheduler struct {
	cfg     domain.PomodoroConfig
	total   time.Duration
	elapsed time.Duration
	phase   domain.Phase
}

// New creates a scheduler in its initial Work phase. With a nil cfg the
// session is a single Work phase lasting the whole total.
func New(total time.Duration, cfg *domain.PomodoroConfig) *Scheduler {
	s := &Scheduler{total: total}
	if cfg == nil || cfg.Work <= 0 {
		s.cfg = domain.PomodoroConfig{Work: total}
	} else {
		s.cfg = *cfg
	}

	s.phase = domain.Phase{Kind: domain.PhaseWork, Remaining: s.cfg.Work, Cycle: 0}
	if total <= 0 {
		s.phase = domain.Phase{Kind: domain.PhaseFinished}
	}
	return s
}

// Current returns the active phase.
func (s *Scheduler) Current() domain.Phase {
	return s.phase
}

// Elapsed returns the cumulative time consumed across all phases.
func (s *Scheduler) Elapsed() time.Duration {
	return s.elapsed
}

// Finished reports whether the session ceiling has been reached.
func (s *Scheduler) Finished() bool {
	return s.phase.Kind == domain.PhaseFinished
}

// Advance consumes d of elapsed time and returns every phase entered along
// the way, in order. The last returned phase is the new current phase. An
// empty result means no boundary was crossed.
func (s *Scheduler) Advance(d time.Duration) []domain.Phase {
	var entered []domain.Phase

	for d > 0 && !s.Finished() {
		step := d
		if s.phase.Remaining < step {
			step = s.phase.Remaining
		}
		if left := s.total - s.elapsed; left < step {
			step = left
		}

		s.elapsed += step
		s.phase.Remaining -= step
		d -= step

		if s.elapsed >= s.total {
			s.phase = domain.Phase{Kind: domain.PhaseFinished, Cycle: s.phase.Cycle}
			entered = append(entered, s.phase)
			break
		}
		if s.phase.Remaining <= 0 {
			s.phase = s.next()
			entered = append(entered, s.phase)
		}
	}

	return entered
}

func (s *Scheduler) next() domain.Phase {
	cycle := s.phase.Cycle

	if s.phase.Kind != domain.PhaseWork {
		return domain.Phase{Kind: domain.PhaseWork, Remaining: s.cfg.Work, Cycle: cycle + 1}
	}

	n := s.cfg.CyclesBeforeLongBreak
	if n > 0 && (cycle+1)%n == 0 && s.cfg.LongBreak > 0 {
		return domain.Phase{Kind: domain.PhaseLongBreak, Remaining: s.cfg.LongBreak, Cycle: cycle}
	}
	if s.cfg.ShortBreak > 0 {
		return domain.Phase{Kind: domain.PhaseShortBreak, Remaining: s.cfg.ShortBreak, Cycle: cycle}
	}
	return domain.Phase{Kind: domain.PhaseWork, Remaining: s.cfg.Work, Cycle: cycle + 1}
}
