package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/humaxai2025/flowmode/internal/domain"
	"github.com/humaxai2025/flowmode/internal/duration"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show past focus sessions",
	Long:  `Lists recorded sessions with their task, timing and outcome. Use --csv for spreadsheet export.`,
	RunE:  runReport,
}

var reportCSV bool

func init() {
	reportCmd.Flags().BoolVar(&reportCSV, "csv", false, "Write sessions as CSV to stdout")
}

func runReport(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	store, err := a.history()
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(cmd.Context())
	if err != nil {
		return err
	}

	if reportCSV {
		return writeCSV(os.Stdout, records)
	}

	if len(records) == 0 {
		pterm.Info.Println("No sessions recorded yet.")
		return nil
	}
	printTable(os.Stdout, records, time.Now())
	return nil
}

var csvHeader = []string{"id", "task", "start", "end", "outcome", "elapsed_seconds", "reason", "websites_blocked", "apps_closed", "app_failures"}

// writeCSV writes one row per session with RFC 3339 timestamps.
func writeCSV(w io.Writer, records []domain.SessionRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		end := ""
		if !r.EndedAt.IsZero() {
			end = r.EndedAt.Format(time.RFC3339)
		}
		row := []string{
			r.ID,
			r.Task,
			r.StartedAt.Format(time.RFC3339),
			end,
			string(r.Outcome),
			strconv.FormatInt(int64(r.Elapsed()/time.Second), 10),
			reasonText(r),
			strconv.FormatBool(!r.Degraded),
			strconv.Itoa(r.Killed),
			strconv.Itoa(r.KillFailures),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// tableRows renders sessions for the terminal, relative to now.
func tableRows(records []domain.SessionRecord, now time.Time) [][]string {
	rows := [][]string{{"#", "TASK", "STARTED", "LENGTH", "OUTCOME", "NOTES"}}
	for i, r := range records {
		task := r.Task
		if task == "" {
			task = "-"
		}
		length := "-"
		if !r.EndedAt.IsZero() {
			length = duration.Format(r.Elapsed())
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			task,
			humanize.RelTime(r.StartedAt, now, "ago", "from now"),
			length,
			string(r.Outcome),
			notes(r),
		})
	}
	return rows
}

func printTable(w io.Writer, records []domain.SessionRecord, now time.Time) {
	table := pterm.DefaultTable
	table.Boxed = true

	str, err := table.WithHasHeader().WithData(tableRows(records, now)).Srender()
	if err != nil {
		pterm.Error.Printfln("Failed to output session table: %s", err.Error())
		return
	}
	fmt.Fprintln(w, str)

	var focused time.Duration
	completed := 0
	for _, r := range records {
		if r.Outcome == domain.OutcomeCompleted {
			completed++
		}
		if !r.EndedAt.IsZero() {
			focused += r.Elapsed()
		}
	}
	fmt.Fprintf(w, "%s, %s completed, %s in flow mode\n",
		english.Plural(len(records), "session", ""),
		humanize.Comma(int64(completed)),
		duration.Format(focused))
}

func notes(r domain.SessionRecord) string {
	var out string
	add := func(s string) {
		if out != "" {
			out += "; "
		}
		out += s
	}
	if r.Degraded {
		add("sites not blocked")
	}
	if r.Killed > 0 {
		add(english.Plural(r.Killed, "app", "") + " closed")
	}
	if r.KillFailures > 0 {
		add(fmt.Sprintf("%d not closed", r.KillFailures))
	}
	if reason := reasonText(r); reason != "" {
		add(reason)
	}
	return out
}

func reasonText(r domain.SessionRecord) string {
	if r.ReleaseError != "" {
		return "hosts not restored: " + r.ReleaseError
	}
	return r.Reason
}
