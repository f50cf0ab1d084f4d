package config

import (
	"fmt"
	"time"

	"github.com/humaxai2025/flowmode/internal/blocklist"
	"github.com/humaxai2025/flowmode/internal/domain"
	"github.com/humaxai2025/flowmode/internal/duration"
)

// StartOptions are the raw `flowmode start` flags.
type StartOptions struct {
	Duration  string
	Task      string
	Whitelist bool

	// Pomodoro fields; empty strings and a nil Cycles mean "not given".
	Pomodoro  string
	Break     string
	LongBreak string
	Cycles    *int
}

func (o StartOptions) pomodoroRequested() bool {
	return o.Pomodoro != "" || o.Break != "" || o.LongBreak != "" || o.Cycles != nil
}

// BuildSessionConfig turns start flags and file settings into a validated
// SessionConfig. Nothing on the system is touched. Every error matches
// domain.ErrConfigInvalid; malformed durations also match
// domain.ErrInvalidDuration.
func BuildSessionConfig(opts StartOptions, f *File) (domain.SessionConfig, error) {
	if f == nil {
		f = Default()
	}

	total, err := duration.ParseSession(opts.Duration)
	if err != nil {
		return domain.SessionConfig{}, fmt.Errorf("%w: %w", domain.ErrConfigInvalid, err)
	}

	var allow []string
	if opts.Whitelist {
		allow = f.Whitelist
	}
	store := blocklist.New(f.BlockList, f.AppBlockList, allow)

	cfg := domain.SessionConfig{
		Total:            total,
		Task:             opts.Task,
		Domains:          store.Domains(),
		AllowList:        store.AllowList(),
		AllowMode:        opts.Whitelist,
		Apps:             store.Apps(),
		OnAcquireFailure: f.Policy(),
	}

	if opts.pomodoroRequested() || f.PomodoroDefaults.Auto {
		p, err := buildPomodoro(opts, f.PomodoroDefaults)
		if err != nil {
			return domain.SessionConfig{}, fmt.Errorf("%w: %w", domain.ErrConfigInvalid, err)
		}
		cfg.Pomodoro = p
	}

	if err := cfg.Validate(); err != nil {
		return domain.SessionConfig{}, err
	}
	return cfg, nil
}

func buildPomodoro(opts StartOptions, def PomodoroDefaults) (*domain.PomodoroConfig, error) {
	work, err := pick("pomodoro", opts.Pomodoro, def.Pomodoro)
	if err != nil {
		return nil, err
	}
	short, err := pick("break", opts.Break, def.Break)
	if err != nil {
		return nil, err
	}
	long, err := pick("long break", opts.LongBreak, def.LongBreak)
	if err != nil {
		return nil, err
	}

	cycles := def.Cycles
	if opts.Cycles != nil {
		cycles = *opts.Cycles
	}

	return &domain.PomodoroConfig{
		Work:                  work,
		ShortBreak:            short,
		LongBreak:             long,
		CyclesBeforeLongBreak: cycles,
	}, nil
}

// pick parses the flag value if given, else the config default. An empty
// default means zero, which disables that break.
func pick(name, flag, fallback string) (d time.Duration, err error) {
	text, source := flag, "flag"
	if text == "" {
		text, source = fallback, "config"
	}
	if text == "" {
		return 0, nil
	}
	d, err = duration.Parse(text)
	if err != nil {
		return 0, fmt.Errorf("%s duration (%s): %w", name, source, err)
	}
	return d, nil
}
