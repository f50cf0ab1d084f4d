package infra

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"

	"github.com/humaxai2025/flowmode/internal/domain"
)

// CommandRunner abstracts command execution for testing
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// RealCommandRunner executes real system commands
type RealCommandRunner struct{}

// Run executes a command and waits for it to complete
func (r *RealCommandRunner) Run(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil && len(out) > 0 {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return err
}

// FileChecker abstracts file system checks for testing
type FileChecker interface {
	Exists(path string) bool
}

// RealFileChecker checks real filesystem
type RealFileChecker struct{}

// Exists checks if a file exists
func (r *RealFileChecker) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// nircmdLocations are probed before falling back to PATH.
var nircmdLocations = []string{`.\nircmd.exe`, `.\assets\nircmd.exe`}

// CommandAudio implements domain.AudioController by shelling out to the
// platform mixer. The first candidate command that succeeds wins.
type CommandAudio struct {
	goos      string
	runner    CommandRunner
	files     FileChecker
	muteCmd   []string
	unmuteCmd []string
	logger    *zap.Logger
}

// NewAudioController creates a controller for the current platform.
// Non-empty muteCmd/unmuteCmd are shell-quoted overrides that replace the
// built-in commands.
func NewAudioController(muteCmd, unmuteCmd string, logger *zap.Logger) (domain.AudioController, error) {
	mute, err := splitCommand(muteCmd)
	if err != nil {
		return nil, fmt.Errorf("%w: mute_command: %w", domain.ErrConfigInvalid, err)
	}
	unmute, err := splitCommand(unmuteCmd)
	if err != nil {
		return nil, fmt.Errorf("%w: unmute_command: %w", domain.ErrConfigInvalid, err)
	}
	return NewAudioControllerWithDeps(runtime.GOOS, &RealCommandRunner{}, &RealFileChecker{}, mute, unmute, logger), nil
}

// NewAudioControllerWithDeps creates a controller with injectable dependencies (for testing)
func NewAudioControllerWithDeps(
	goos string,
	runner CommandRunner,
	files FileChecker,
	muteCmd, unmuteCmd []string,
	logger *zap.Logger,
) *CommandAudio {
	return &CommandAudio{
		goos:      goos,
		runner:    runner,
		files:     files,
		muteCmd:   muteCmd,
		unmuteCmd: unmuteCmd,
		logger:    logger,
	}
}

// Mute silences system output.
func (a *CommandAudio) Mute(ctx context.Context) error {
	return a.run(ctx, true)
}

// Unmute restores system output.
func (a *CommandAudio) Unmute(ctx context.Context) error {
	return a.run(ctx, false)
}

func (a *CommandAudio) run(ctx context.Context, mute bool) error {
	candidates := a.candidates(mute)
	if len(candidates) == 0 {
		return fmt.Errorf("audio control not supported on %s", a.goos)
	}

	var errs []error
	for _, cmd := range candidates {
		err := a.runner.Run(ctx, cmd[0], cmd[1:]...)
		if err == nil {
			a.logger.Debug("audio command succeeded",
				zap.Strings("command", cmd),
				zap.Bool("mute", mute))
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", cmd[0], err))
	}
	return errors.Join(errs...)
}

func (a *CommandAudio) candidates(mute bool) [][]string {
	if mute && len(a.muteCmd) > 0 {
		return [][]string{a.muteCmd}
	}
	if !mute && len(a.unmuteCmd) > 0 {
		return [][]string{a.unmuteCmd}
	}

	flag, word := "0", "unmute"
	if mute {
		flag, word = "1", "mute"
	}

	switch a.goos {
	case "linux", "freebsd", "openbsd":
		return [][]string{
			{"pactl", "set-sink-mute", "@DEFAULT_SINK@", flag},
			{"amixer", "-q", "sset", "Master", word},
		}
	case "darwin":
		return [][]string{
			{"osascript", "-e", fmt.Sprintf("set volume output muted %t", mute)},
		}
	case "windows":
		var cmds [][]string
		for _, p := range nircmdLocations {
			if a.files.Exists(p) {
				cmds = append(cmds, []string{p, "mutesysvolume", flag})
			}
		}
		return append(cmds, []string{"nircmd.exe", "mutesysvolume", flag})
	}
	return nil
}

func splitCommand(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	return shellquote.Split(s)
}

// Ensure CommandAudio implements domain.AudioController.
var _ domain.AudioController = (*CommandAudio)(nil)
