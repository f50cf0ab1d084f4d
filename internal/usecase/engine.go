package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/humaxai2025/flowmode/internal/domain"
	"github.com/humaxai2025/flowmode/internal/pomodoro"
)

// DefaultTickInterval is how often the running session advances its timer.
const DefaultTickInterval = time.Second

// TickSource returns a channel of tick times and a function that stops it.
type TickSource func(d time.Duration) (<-chan time.Time, func())

// EngineDeps are the collaborators of the session engine.
// Notifier and Webhook are optional.
type EngineDeps struct {
	Guard    domain.HostsGuard
	Warden   domain.ProcessWarden
	History  domain.SessionLogger
	Notifier domain.Notifier
	Webhook  domain.WebhookSink
	Logger   *zap.Logger
}

// EngineConfig holds timing knobs, mostly overridden in tests.
type EngineConfig struct {
	TickInterval time.Duration
	Ticks        TickSource
	Clock        func() time.Time
	NewID        func() string
}

// DefaultEngineConfig returns wall-clock settings.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TickInterval: DefaultTickInterval,
		Ticks: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
		Clock: time.Now,
		NewID: uuid.NewString,
	}
}

type requestKind int

const (
	requestStop requestKind = iota
	requestAbort
)

type request struct {
	kind   requestKind
	reason string
}

// session is the per-start bookkeeping. Only the loop goroutine touches
// backup, sched and record once the loop is running.
type session struct {
	cfg      domain.SessionConfig
	record   domain.SessionRecord
	backup   *domain.HostsBackup
	sched    *pomodoro.Scheduler
	requests chan request
	done     chan struct{}

	result    domain.SessionRecord
	resultErr error
}

// Engine owns the lifecycle of a single focus session. All state
// transitions after Running are serialised through one loop goroutine that
// consumes both timer ticks and stop/abort requests.
type Engine struct {
	deps EngineDeps
	cfg  EngineConfig
	log  *zap.Logger

	mu      sync.Mutex
	state   domain.SessionState
	current *session
}

// NewEngine creates an idle engine.
func NewEngine(deps EngineDeps, cfg EngineConfig) *Engine {
	def := DefaultEngineConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.Ticks == nil {
		cfg.Ticks = def.Ticks
	}
	if cfg.Clock == nil {
		cfg.Clock = def.Clock
	}
	if cfg.NewID == nil {
		cfg.NewID = def.NewID
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		deps:  deps,
		cfg:   cfg,
		log:   log,
		state: domain.SessionState{Status: domain.StatusIdle},
	}
}

// State returns a snapshot of the session state.
func (e *Engine) State() domain.SessionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Start validates cfg, acquires blocking resources and starts the timer
// loop. It returns once the session is Running (or has failed).
func (e *Engine) Start(ctx context.Context, cfg domain.SessionConfig) (err error) {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s := &session{
		cfg:      cfg,
		requests: make(chan request, 2),
		done:     make(chan struct{}),
	}

	e.mu.Lock()
	if e.state.Status.Active() {
		e.mu.Unlock()
		return domain.ErrAlreadyActive
	}
	e.current = s
	e.state = domain.SessionState{Status: domain.StatusBlocking}
	e.mu.Unlock()

	s.record = domain.SessionRecord{
		ID:        e.cfg.NewID(),
		Task:      cfg.Task,
		StartedAt: e.cfg.Clock(),
		Outcome:   domain.OutcomeRunning,
	}

	started := false
	// Finalisation for every exit before the loop owns the session.
	defer func() {
		if started {
			return
		}
		if s.backup != nil {
			b := s.backup
			s.backup = nil
			if rerr := e.deps.Guard.Release(b); rerr != nil {
				e.log.Error("failed to restore hosts file after aborted start", zap.Error(rerr))
				s.record.ReleaseError = rerr.Error()
			}
		}
		reason := "start failed"
		if err != nil {
			reason = err.Error()
		}
		e.fail(s, reason)
	}()

	if cfg.BlocksWebsites() {
		backup, aerr := e.deps.Guard.Acquire(ctx, domain.BlockRequest{
			Domains:   cfg.Domains,
			AllowList: cfg.AllowList,
			AllowMode: cfg.AllowMode,
		})
		switch {
		case aerr == nil:
			s.backup = backup
		case errors.Is(aerr, domain.ErrPermissionDenied) && cfg.Policy() == domain.PolicyDegrade:
			e.log.Warn("website blocking unavailable, continuing timer-only",
				zap.String("hosts", e.deps.Guard.Path()),
				zap.Error(aerr))
			s.record.Degraded = true
		default:
			return fmt.Errorf("%w: %w", domain.ErrAcquisitionFailed, aerr)
		}
	}

	report := e.deps.Warden.Sweep(ctx, cfg.Apps)
	s.record.Killed = report.Killed()
	s.record.KillFailures = report.Failed()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.sched = pomodoro.New(cfg.Total, cfg.Pomodoro)
	first := s.sched.Current()

	e.mu.Lock()
	e.state = domain.SessionState{Status: domain.StatusRunning, Phase: first}
	e.mu.Unlock()
	started = true

	if herr := e.deps.History.SessionStarted(ctx, s.record); herr != nil {
		e.log.Warn("failed to record session start", zap.Error(herr))
	}
	if e.deps.Webhook != nil {
		e.deps.Webhook.SessionStarted(s.record)
	}
	e.notify(first)

	e.log.Info("session started",
		zap.String("id", s.record.ID),
		zap.String("task", cfg.Task),
		zap.Duration("total", cfg.Total),
		zap.Bool("pomodoro", cfg.Pomodoro != nil),
		zap.Bool("degraded", s.record.Degraded),
		zap.Int("killed", s.record.Killed))

	go e.loop(s)
	return nil
}

// Stop ends the session early with outcome Stopped and waits for the
// release to finish.
func (e *Engine) Stop(ctx context.Context) (domain.SessionRecord, error) {
	return e.request(ctx, request{kind: requestStop})
}

// Abort ends the session with outcome Failed, e.g. on a fatal signal.
func (e *Engine) Abort(ctx context.Context, reason string) (domain.SessionRecord, error) {
	return e.request(ctx, request{kind: requestAbort, reason: reason})
}

// Wait blocks until the current session reaches a terminal state.
func (e *Engine) Wait(ctx context.Context) (domain.SessionRecord, error) {
	e.mu.Lock()
	s := e.current
	e.mu.Unlock()
	if s == nil {
		return domain.SessionRecord{}, domain.ErrNotActive
	}

	select {
	case <-s.done:
		return s.result, s.resultErr
	case <-ctx.Done():
		return domain.SessionRecord{}, ctx.Err()
	}
}

func (e *Engine) request(ctx context.Context, req request) (domain.SessionRecord, error) {
	e.mu.Lock()
	s := e.current
	active := e.state.Status.Active()
	e.mu.Unlock()
	if s == nil || !active {
		return domain.SessionRecord{}, domain.ErrNotActive
	}

	select {
	case s.requests <- req:
	default:
		// A request is already queued; the loop will end the session.
	}
	return e.Wait(ctx)
}

func (e *Engine) loop(s *session) {
	ticks, stopTicks := e.cfg.Ticks(e.cfg.TickInterval)
	defer stopTicks()

	last := e.cfg.Clock()
	outcome := domain.OutcomeCompleted
	reason := ""

run:
	for {
		select {
		case req := <-s.requests:
			if req.kind == requestAbort {
				outcome, reason = domain.OutcomeFailed, req.reason
			} else {
				outcome = domain.OutcomeStopped
			}
			break run

		case now := <-ticks:
			elapsed := now.Sub(last)
			if elapsed <= 0 {
				continue
			}
			last = now

			for _, p := range s.sched.Advance(elapsed) {
				if p.Kind == domain.PhaseFinished {
					break
				}
				e.log.Info("phase changed",
					zap.String("phase", string(p.Kind)),
					zap.Int("cycle", p.Cycle),
					zap.Duration("length", p.Remaining))
				e.notify(p)
			}

			if s.sched.Finished() {
				break run
			}

			e.mu.Lock()
			e.state.Phase = s.sched.Current()
			e.mu.Unlock()
		}
	}

	e.finalize(s, outcome, reason)
}

// finalize runs exactly once per started session: it releases the hosts
// backup, unmutes, records history and publishes the terminal state.
func (e *Engine) finalize(s *session, outcome domain.Outcome, reason string) {
	e.mu.Lock()
	e.state.Status = domain.StatusStopping
	e.mu.Unlock()

	var releaseErr error
	if s.backup != nil {
		b := s.backup
		s.backup = nil
		if err := e.deps.Guard.Release(b); err != nil {
			if !errors.Is(err, domain.ErrReleaseFailed) {
				err = fmt.Errorf("%w: %w", domain.ErrReleaseFailed, err)
			}
			releaseErr = err
			s.record.ReleaseError = err.Error()
			e.log.Error("hosts file was NOT restored; run `flowmode recover`",
				zap.String("hosts", b.Path),
				zap.Error(err))
		}
	}

	e.notify(domain.Phase{Kind: domain.PhaseFinished})

	s.record.EndedAt = e.cfg.Clock()
	s.record.Outcome = outcome
	s.record.Reason = reason
	e.record(s)

	if e.deps.Webhook != nil {
		e.deps.Webhook.SessionEnded(s.record)
	}

	status := domain.StatusCompleted
	if outcome == domain.OutcomeFailed {
		status = domain.StatusFailed
	}

	e.log.Info("session ended",
		zap.String("id", s.record.ID),
		zap.String("outcome", string(outcome)),
		zap.Duration("elapsed", s.record.Elapsed()),
		zap.Bool("restored", releaseErr == nil))

	s.result = s.record
	s.resultErr = releaseErr

	e.mu.Lock()
	e.state = domain.SessionState{Status: status, Reason: reason}
	e.mu.Unlock()
	close(s.done)
}

// fail moves a session that never reached Running to Failed.
func (e *Engine) fail(s *session, reason string) {
	s.record.EndedAt = e.cfg.Clock()
	s.record.Outcome = domain.OutcomeFailed
	s.record.Reason = reason
	e.record(s)

	s.result = s.record
	s.resultErr = errors.New(reason)

	e.mu.Lock()
	e.state = domain.SessionState{Status: domain.StatusFailed, Reason: reason}
	e.mu.Unlock()
	close(s.done)
}

func (e *Engine) record(s *session) {
	if err := e.deps.History.Record(context.Background(), s.record); err != nil {
		e.log.Error("failed to record session", zap.String("id", s.record.ID), zap.Error(err))
	}
}

// notify forwards phase changes; notifier failures never affect the session.
func (e *Engine) notify(p domain.Phase) {
	if e.deps.Notifier == nil {
		return
	}
	if err := e.deps.Notifier.OnPhaseChange(context.Background(), p); err != nil {
		e.log.Warn("phase notification failed",
			zap.String("phase", string(p.Kind)),
			zap.Error(err))
	}
}
