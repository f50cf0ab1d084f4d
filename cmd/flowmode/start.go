package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/humaxai2025/flowmode/internal/config"
	"github.com/humaxai2025/flowmode/internal/daemon"
	"github.com/humaxai2025/flowmode/internal/domain"
	"github.com/humaxai2025/flowmode/internal/duration"
	"github.com/humaxai2025/flowmode/internal/infra"
	"github.com/humaxai2025/flowmode/internal/usecase"
)

// webhookFlushTimeout bounds how long exit waits for Slack deliveries.
const webhookFlushTimeout = 5 * time.Second

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a focus session",
	Long: `Starts a focus session in the foreground. Websites from block_list are
redirected through the hosts file, applications from app_block_list are
closed, and the hosts file is restored when the session ends.

Press Ctrl-C to stop early. Use --pomodoro (or any other pomodoro flag) to
split the session into work intervals and breaks.`,
	Example: `  flowmode start -d 1h30m -t "write report"
  flowmode start -d 2h --pomodoro 25m --break 5m --long-break 15m --cycles 4
  sudo flowmode start -d 45m --whitelist`,
	RunE: runStart,
}

var (
	startDuration  string
	startTask      string
	startWhitelist bool
	startSlackURL  string
	startPomodoro  string
	startBreak     string
	startLongBreak string
	startCycles    int
)

func init() {
	f := startCmd.Flags()
	f.StringVarP(&startDuration, "duration", "d", "", "Session duration (e.g. 25m, 1h, 1h30m)")
	f.StringVarP(&startTask, "task", "t", "", "Task description for the session history")
	f.BoolVar(&startWhitelist, "whitelist", false, "Block common distractions except the sites in whitelist")
	f.StringVarP(&startSlackURL, "slack-webhook-url", "s", "", "Slack webhook URL for status messages")
	f.StringVar(&startPomodoro, "pomodoro", "", "Pomodoro work interval (e.g. 25m)")
	f.StringVar(&startBreak, "break", "", "Short break length (e.g. 5m)")
	f.StringVar(&startLongBreak, "long-break", "", "Long break length (e.g. 15m)")
	f.IntVar(&startCycles, "cycles", 4, "Work intervals before a long break")
	_ = startCmd.MarkFlagRequired("duration")
}

func runStart(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	opts := config.StartOptions{
		Duration:  startDuration,
		Task:      startTask,
		Whitelist: startWhitelist,
		Pomodoro:  startPomodoro,
		Break:     startBreak,
		LongBreak: startLongBreak,
	}
	if cmd.Flags().Changed("cycles") {
		opts.Cycles = &startCycles
	}

	// Nothing has been touched yet; bad input stops here.
	sessionCfg, err := config.BuildSessionConfig(opts, a.file)
	if err != nil {
		return err
	}
	resweep, err := a.file.Resweep()
	if err != nil {
		return err
	}

	// Signal handling must be in place before any mutation.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)
	defer signal.Stop(signals)

	pending := make(chan os.Signal, 1)
	go func() {
		select {
		case sig := <-signals:
			a.logger.Info("received signal", zap.String("signal", sig.String()))
			pending <- sig
			cancel()
		case <-ctx.Done():
		}
	}()

	lock := a.lock()
	if err := lock.Acquire(domain.LockEntry{PID: os.Getpid(), StartedAt: time.Now(), Task: sessionCfg.Task}); err != nil {
		if errors.Is(err, domain.ErrAlreadyActive) {
			return fmt.Errorf("a flowmode session is already running: %w", err)
		}
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			a.logger.Warn("failed to release session lock", zap.Error(err))
		}
	}()

	hosts := a.hosts()
	selfCheck(hosts, a.logger)

	deps, cleanup, err := a.engineDeps(hosts)
	if err != nil {
		return err
	}
	defer cleanup()

	engine := usecase.NewEngine(deps, usecase.DefaultEngineConfig())

	if err := engine.Start(ctx, sessionCfg); err != nil {
		if ctx.Err() != nil {
			pterm.Warning.Println("Interrupted before the session started; nothing was left blocked.")
		}
		return err
	}
	printStarted(a, sessionCfg)

	runCtx, stopResweep := context.WithCancel(context.Background())
	defer stopResweep()
	resweeper := daemon.NewResweeper(daemon.ResweeperConfig{
		Interval: resweep,
		Apps:     sessionCfg.Apps,
	}, deps.Warden, a.logger)
	go func() { _ = resweeper.Run(runCtx) }()

	type result struct {
		rec domain.SessionRecord
		err error
	}
	finished := make(chan result, 1)
	go func() {
		rec, err := engine.Wait(context.Background())
		finished <- result{rec, err}
	}()

	var res result
	select {
	case r := <-finished:
		res = r
	case sig := <-pending:
		res.rec, res.err = endOnSignal(engine, sig)
	}
	stopResweep()

	return printEnded(res.rec, res.err, a)
}

// endOnSignal maps a signal to the session outcome: SIGINT and SIGTERM stop
// the session, anything else aborts it as failed.
func endOnSignal(engine *usecase.Engine, sig os.Signal) (domain.SessionRecord, error) {
	switch sig {
	case syscall.SIGINT, syscall.SIGTERM:
		pterm.Info.Println("Stopping session...")
		return engine.Stop(context.Background())
	default:
		pterm.Warning.Printfln("Aborting session on %s...", sig)
		return engine.Abort(context.Background(), "received "+sig.String())
	}
}

// selfCheck restores a hosts file left blocked by a crashed session.
func selfCheck(hosts *infra.HostsFile, logger *zap.Logger) {
	marker, err := hosts.Recover(false)
	switch {
	case err == nil:
		pterm.Warning.Printfln("Restored %s left blocked by a previous session (pid %d).", marker.HostsPath, marker.PID)
	case errors.Is(err, domain.ErrNoMarker):
	default:
		logger.Warn("startup recovery check failed", zap.Error(err))
		pterm.Warning.Printfln("A previous hosts backup could not be restored (%v). Website blocking will be refused until you run `flowmode recover --force`.", err)
	}
}

// engineDeps builds the engine collaborators. cleanup flushes webhooks and
// closes the history database.
func (a *app) engineDeps(hosts *infra.HostsFile) (usecase.EngineDeps, func(), error) {
	deps := usecase.EngineDeps{
		Guard:  hosts,
		Warden: usecase.NewWarden(a.pm, a.logger),
		Logger: a.logger,
	}
	var closers []func()

	audio, err := infra.NewAudioController(a.file.MuteCommand, a.file.UnmuteCommand, a.logger)
	if err != nil {
		return deps, func() {}, err
	}

	store, err := a.history()
	if err != nil {
		a.logger.Warn("session history unavailable", zap.Error(err))
		pterm.Warning.Printfln("Session history unavailable: %s", err)
		deps.History = discardHistory{}
	} else {
		deps.History = store
		closers = append(closers, func() { _ = store.Close() })
	}

	deps.Notifier = &terminalNotifier{next: infra.NewPhaseNotifier(audio, infra.NotifierOptions{
		MuteDuringWork: a.file.MuteDuringWork,
		Desktop:        a.file.DesktopNotifications,
	}, a.logger)}

	url := startSlackURL
	if url == "" {
		url = a.file.SlackWebhookURL
	}
	if url != "" {
		slack := infra.NewSlackSink(url, a.logger)
		deps.Webhook = slack
		closers = append([]func(){func() {
			if !slack.Flush(webhookFlushTimeout) {
				a.logger.Warn("slack messages still in flight at exit")
			}
		}}, closers...)
	}

	return deps, func() {
		for _, c := range closers {
			c()
		}
	}, nil
}

func printStarted(a *app, cfg domain.SessionConfig) {
	pterm.Success.Printfln("Flow mode on for %s.", duration.Format(cfg.Total))
	if cfg.Task != "" {
		pterm.Info.Printfln("Task: %s", cfg.Task)
	}
	if cfg.Pomodoro != nil {
		p := cfg.Pomodoro
		pterm.Info.Printfln("Pomodoro: %s work, %s break, %s long break every %d cycles",
			duration.Format(p.Work), duration.Format(p.ShortBreak), duration.Format(p.LongBreak), p.CyclesBeforeLongBreak)
	}
	pterm.Info.Printfln("Hosts file: %s (%s)", a.mode.HostsPath, a.mode.Mode)
	pterm.Info.Println("Press Ctrl-C to stop early.")
}

func printEnded(rec domain.SessionRecord, err error, a *app) error {
	if err != nil {
		if errors.Is(err, domain.ErrReleaseFailed) {
			pterm.Error.Printfln("The hosts file %s was NOT restored: %s", a.mode.HostsPath, err)
			pterm.Error.Printfln("A backup is kept at %s. Run `flowmode recover` to restore it.",
				a.mode.Path(infra.BackupFileName))
		}
		return err
	}

	elapsed := duration.Format(rec.Elapsed())
	switch rec.Outcome {
	case domain.OutcomeCompleted:
		pterm.Success.Printfln("Session completed after %s.", elapsed)
	case domain.OutcomeStopped:
		pterm.Info.Printfln("Session stopped after %s.", elapsed)
	default:
		pterm.Warning.Printfln("Session ended (%s) after %s: %s", rec.Outcome, elapsed, rec.Reason)
	}
	if rec.Degraded {
		pterm.Warning.Println("Websites were not blocked: the hosts file was not writable (try sudo).")
	}
	if rec.KillFailures > 0 {
		pterm.Warning.Printfln("%d application(s) could not be closed.", rec.KillFailures)
	}
	return nil
}

// terminalNotifier prints phase changes before forwarding them.
type terminalNotifier struct {
	next domain.Notifier
}

func (n *terminalNotifier) OnPhaseChange(ctx context.Context, p domain.Phase) error {
	switch p.Kind {
	case domain.PhaseWork:
		pterm.Info.Printfln("Work interval %d: %s", p.Cycle+1, duration.Format(p.Remaining))
	case domain.PhaseShortBreak:
		pterm.Info.Printfln("Short break: %s", duration.Format(p.Remaining))
	case domain.PhaseLongBreak:
		pterm.Info.Printfln("Long break: %s", duration.Format(p.Remaining))
	}
	return n.next.OnPhaseChange(ctx, p)
}

// discardHistory keeps a session running when the history database cannot
// be opened.
type discardHistory struct{}

func (discardHistory) SessionStarted(context.Context, domain.SessionRecord) error { return nil }
func (discardHistory) Record(context.Context, domain.SessionRecord) error         { return nil }
