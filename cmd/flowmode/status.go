package main

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/humaxai2025/flowmode/internal/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a focus session is running",
	Long:  `Shows the running session, any hosts file backup on record, and where flowmode keeps its files.`,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	fmt.Println("\n=== flowmode Status ===")

	holder, err := a.lock().Read()
	switch {
	case err != nil:
		pterm.Warning.Printfln("Session lock unreadable: %s", err)
	case holder != nil && a.pm.IsRunning(holder.PID):
		task := holder.Task
		if task == "" {
			task = "(no task)"
		}
		fmt.Printf("Status: RUNNING (pid %d, started %s)\n", holder.PID, humanize.Time(holder.StartedAt))
		fmt.Printf("Task: %s\n", task)
	case holder != nil:
		fmt.Printf("Status: NOT RUNNING (stale lock from pid %d)\n", holder.PID)
	default:
		fmt.Println("Status: NOT RUNNING")
	}

	marker, err := a.markers().Load()
	switch {
	case errors.Is(err, domain.ErrNoMarker):
		fmt.Println("Hosts file: not blocked")
	case err != nil:
		pterm.Warning.Printfln("Recovery marker unreadable: %s", err)
	case a.pm.IsRunning(marker.PID):
		fmt.Printf("Hosts file: blocked by pid %d since %s\n", marker.PID, humanize.Time(marker.AcquiredAt))
	default:
		fmt.Printf("Hosts file: LEFT BLOCKED by pid %d; run `flowmode recover`\n", marker.PID)
	}

	fmt.Printf("\nExecution mode: %s\n", a.mode.Mode)
	fmt.Printf("Hosts path: %s\n", a.mode.HostsPath)
	fmt.Printf("Data dir: %s\n", a.mode.DataDir)
	if a.file.Source != "" {
		fmt.Printf("Config: %s\n", a.file.Source)
	} else {
		fmt.Println("Config: built-in defaults")
	}
	fmt.Println("=======================")
	return nil
}
