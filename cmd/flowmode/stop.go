package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/humaxai2025/flowmode/internal/domain"
)

const (
	stopWaitTimeout  = 10 * time.Second
	stopPollInterval = 200 * time.Millisecond
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running focus session",
	Long: `Asks the running session to stop, waits for it to restore the hosts file,
and restores it here if the session process died without cleaning up.`,
	RunE: runStop,
}

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Restore a hosts file left blocked by a crashed session",
	Long: `Restores the hosts file from the backup recorded when a session started.
Only needed when a session process was killed before it could clean up.
Use --force if the recorded process id now belongs to an unrelated program.`,
	RunE: runRecover,
}

var recoverForce bool

func init() {
	recoverCmd.Flags().BoolVar(&recoverForce, "force", false, "Restore even if the recorded session process appears alive")
}

func runStop(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	lock := a.lock()
	holder, err := lock.Read()
	if err != nil {
		return err
	}

	if holder != nil && holder.PID != os.Getpid() && a.pm.IsRunning(holder.PID) {
		pterm.Info.Printfln("Stopping session (pid %d)...", holder.PID)
		if err := signalStop(holder.PID); err != nil {
			return fmt.Errorf("failed to signal session process %d: %w", holder.PID, err)
		}
		if !waitForRelease(lock, holder.PID) {
			pterm.Warning.Printfln("Session process %d did not exit within %s.", holder.PID, stopWaitTimeout)
		}
	} else {
		pterm.Info.Println("No running session found.")
	}

	marker, err := a.hosts().Recover(false)
	switch {
	case err == nil:
		pterm.Success.Printfln("Restored %s from the crash-recovery backup.", marker.HostsPath)
	case errors.Is(err, domain.ErrNoMarker):
		pterm.Success.Println("Flow mode is off.")
	default:
		a.logger.Error("recovery after stop failed", zap.Error(err))
		return err
	}
	return nil
}

// signalStop asks the session to stop. Windows has no SIGTERM delivery, so
// the process is killed and the marker restores the hosts file.
func signalStop(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if runtime.GOOS == "windows" {
		return p.Kill()
	}
	return p.Signal(syscall.SIGTERM)
}

// waitForRelease polls until pid no longer holds the lock.
func waitForRelease(lock domain.SessionLock, pid int) bool {
	deadline := time.Now().Add(stopWaitTimeout)
	for time.Now().Before(deadline) {
		holder, err := lock.Read()
		if err == nil && (holder == nil || holder.PID != pid) {
			return true
		}
		time.Sleep(stopPollInterval)
	}
	return false
}

func runRecover(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	marker, err := a.hosts().Recover(recoverForce)
	switch {
	case err == nil:
		pterm.Success.Printfln("Restored %s (backup from session pid %d, %s).",
			marker.HostsPath, marker.PID, marker.AcquiredAt.Format(time.RFC3339))
		return nil
	case errors.Is(err, domain.ErrNoMarker):
		pterm.Info.Println("Nothing to recover: no blocked hosts file on record.")
		return nil
	case errors.Is(err, domain.ErrAlreadyActive):
		return fmt.Errorf("%w; use `flowmode stop`, or --force if that process is not flowmode", err)
	default:
		return err
	}
}
