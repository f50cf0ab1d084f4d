package infra

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"

	"github.com/humaxai2025/flowmode/internal/domain"
	"github.com/humaxai2025/flowmode/internal/duration"
)

// NotifyFunc shows a desktop notification.
type NotifyFunc func(title, message, icon string) error

// NotifierOptions selects which side effects a PhaseNotifier performs.
type NotifierOptions struct {
	MuteDuringWork bool
	Desktop        bool
	Icon           string
}

// PhaseNotifier implements domain.Notifier: it mutes system sound while a
// Work phase is active and pops a desktop notification on each boundary.
type PhaseNotifier struct {
	audio  domain.AudioController
	notify NotifyFunc
	opts   NotifierOptions
	logger *zap.Logger

	mu    sync.Mutex
	muted bool
}

// NewPhaseNotifier creates a notifier backed by beeep.
func NewPhaseNotifier(audio domain.AudioController, opts NotifierOptions, logger *zap.Logger) *PhaseNotifier {
	return NewPhaseNotifierWithDeps(audio, beeep.Notify, opts, logger)
}

// NewPhaseNotifierWithDeps creates a notifier with an injectable notify func (for testing)
func NewPhaseNotifierWithDeps(audio domain.AudioController, notify NotifyFunc, opts NotifierOptions, logger *zap.Logger) *PhaseNotifier {
	return &PhaseNotifier{
		audio:  audio,
		notify: notify,
		opts:   opts,
		logger: logger,
	}
}

// OnPhaseChange mutes on Work and unmutes on anything else. Both actions
// are attempted; their errors are joined.
func (n *PhaseNotifier) OnPhaseChange(ctx context.Context, phase domain.Phase) error {
	var errs []error

	if n.opts.MuteDuringWork && n.audio != nil {
		if err := n.setMuted(ctx, phase.Kind == domain.PhaseWork); err != nil {
			errs = append(errs, err)
		}
	}

	if n.opts.Desktop && n.notify != nil {
		title, msg := phaseMessage(phase)
		if err := n.notify(title, msg, n.opts.Icon); err != nil {
			errs = append(errs, fmt.Errorf("desktop notification: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Muted reports whether this notifier currently holds the sound muted.
func (n *PhaseNotifier) Muted() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.muted
}

func (n *PhaseNotifier) setMuted(ctx context.Context, mute bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.muted == mute {
		return nil
	}

	var err error
	if mute {
		err = n.audio.Mute(ctx)
	} else {
		err = n.audio.Unmute(ctx)
	}
	if err != nil {
		return fmt.Errorf("set mute=%t: %w", mute, err)
	}

	n.muted = mute
	n.logger.Debug("system sound toggled", zap.Bool("muted", mute))
	return nil
}

func phaseMessage(p domain.Phase) (string, string) {
	switch p.Kind {
	case domain.PhaseWork:
		return "Focus time", fmt.Sprintf("Work interval %d started (%s).", p.Cycle+1, duration.Format(p.Remaining))
	case domain.PhaseShortBreak:
		return "Short break", fmt.Sprintf("Take %s off.", duration.Format(p.Remaining))
	case domain.PhaseLongBreak:
		return "Long break", fmt.Sprintf("Well done. Take %s off.", duration.Format(p.Remaining))
	default:
		return "Session complete", "Flow mode is over; blocking has been lifted."
	}
}

// Ensure PhaseNotifier implements domain.Notifier.
var _ domain.Notifier = (*PhaseNotifier)(nil)
