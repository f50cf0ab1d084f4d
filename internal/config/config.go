// Package config loads flowmode settings from config.toml and the
// environment, and turns command line options into a session description.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/humaxai2025/flowmode/internal/blocklist"
	"github.com/humaxai2025/flowmode/internal/domain"
	"github.com/humaxai2025/flowmode/internal/duration"
	"github.com/humaxai2025/flowmode/internal/infra"
)

// AppName names the config and data directories.
const AppName = "flowmode"

const (
	keyBlockList            = "block_list"
	keyAppBlockList         = "app_block_list"
	keyWhitelist            = "whitelist"
	keyRedirectAddress      = "redirect_address"
	keyOnAcquireFailure     = "on_acquire_failure"
	keyMuteDuringWork       = "mute_during_work"
	keyDesktopNotifications = "desktop_notifications"
	keyMuteCommand          = "mute_command"
	keyUnmuteCommand        = "unmute_command"
	keySlackWebhookURL      = "slack_webhook_url"
	keyResweepInterval      = "resweep_interval"
	keyPomodoroWork         = "pomodoro_defaults.pomodoro"
	keyPomodoroBreak        = "pomodoro_defaults.break"
	keyPomodoroLongBreak    = "pomodoro_defaults.long_break"
	keyPomodoroCycles       = "pomodoro_defaults.cycles"
	keyPomodoroAuto         = "pomodoro_defaults.auto"
)

// PomodoroDefaults are used for pomodoro fields not given on the command line.
type PomodoroDefaults struct {
	Pomodoro  string `mapstructure:"pomodoro"`
	Break     string `mapstructure:"break"`
	LongBreak string `mapstructure:"long_break"`
	Cycles    int    `mapstructure:"cycles"`
	Auto      bool   `mapstructure:"auto"`
}

// File is the decoded config.toml.
type File struct {
	BlockList            []string         `mapstructure:"block_list"`
	AppBlockList         []string         `mapstructure:"app_block_list"`
	Whitelist            []string         `mapstructure:"whitelist"`
	RedirectAddress      string           `mapstructure:"redirect_address"`
	OnAcquireFailure     string           `mapstructure:"on_acquire_failure"`
	MuteDuringWork       bool             `mapstructure:"mute_during_work"`
	DesktopNotifications bool             `mapstructure:"desktop_notifications"`
	MuteCommand          string           `mapstructure:"mute_command"`
	UnmuteCommand        string           `mapstructure:"unmute_command"`
	SlackWebhookURL      string           `mapstructure:"slack_webhook_url"`
	ResweepInterval      string           `mapstructure:"resweep_interval"`
	PomodoroDefaults     PomodoroDefaults `mapstructure:"pomodoro_defaults"`

	// Source is the file the settings were read from; empty means defaults.
	Source string `mapstructure:"-"`
}

// Default returns the settings used when no config file exists.
func Default() *File {
	f, err := decode(newViper())
	if err != nil {
		// Defaults are static and always decode.
		panic(err)
	}
	return f
}

// Load reads the config file. An explicit path must exist; otherwise
// ./config.toml and then $XDG_CONFIG_HOME/flowmode/config.toml are tried and
// a missing file yields the defaults.
func Load(path string) (*File, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, AppName))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: reading config file failed: %w", domain.ErrConfigInvalid, err)
		}
	}

	f, err := decode(v)
	if err != nil {
		return nil, err
	}
	f.Source = v.ConfigFileUsed()
	return f, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("toml")

	v.SetDefault(keyBlockList, blocklist.DefaultDomains)
	v.SetDefault(keyAppBlockList, blocklist.DefaultApps)
	v.SetDefault(keyWhitelist, []string{})
	v.SetDefault(keyRedirectAddress, infra.DefaultRedirectAddress)
	v.SetDefault(keyOnAcquireFailure, string(domain.PolicyDegrade))
	v.SetDefault(keyMuteDuringWork, true)
	v.SetDefault(keyDesktopNotifications, true)
	v.SetDefault(keyMuteCommand, "")
	v.SetDefault(keyUnmuteCommand, "")
	v.SetDefault(keySlackWebhookURL, "")
	v.SetDefault(keyResweepInterval, "")
	v.SetDefault(keyPomodoroWork, "25m")
	v.SetDefault(keyPomodoroBreak, "5m")
	v.SetDefault(keyPomodoroLongBreak, "15m")
	v.SetDefault(keyPomodoroCycles, 4)
	v.SetDefault(keyPomodoroAuto, false)

	return v
}

func decode(v *viper.Viper) (*File, error) {
	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("%w: decoding config failed: %w", domain.ErrConfigInvalid, err)
	}
	return &f, nil
}

// Resweep returns the parsed resweep_interval; empty means disabled.
func (f *File) Resweep() (time.Duration, error) {
	if f.ResweepInterval == "" {
		return 0, nil
	}
	d, err := duration.Parse(f.ResweepInterval)
	if err != nil {
		return 0, fmt.Errorf("%w: resweep_interval: %w", domain.ErrConfigInvalid, err)
	}
	return d, nil
}

// Policy returns the configured acquire failure policy.
func (f *File) Policy() domain.AcquirePolicy {
	return domain.AcquirePolicy(f.OnAcquireFailure)
}
