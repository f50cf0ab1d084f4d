package main

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humaxai2025/flowmode/internal/domain"
)

var reportNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func sampleRecords() []domain.SessionRecord {
	start := reportNow.Add(-3 * time.Hour)
	return []domain.SessionRecord{
		{
			ID:        "a",
			Task:      "write report",
			StartedAt: start,
			EndedAt:   start.Add(90 * time.Minute),
			Outcome:   domain.OutcomeCompleted,
			Killed:    2,
		},
		{
			ID:           "b",
			StartedAt:    start.Add(2 * time.Hour),
			EndedAt:      start.Add(2*time.Hour + 10*time.Minute),
			Outcome:      domain.OutcomeFailed,
			Reason:       "received hangup",
			Degraded:     true,
			KillFailures: 1,
		},
		{
			ID:        "c",
			Task:      "still going",
			StartedAt: reportNow.Add(-5 * time.Minute),
			Outcome:   domain.OutcomeRunning,
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeCSV(&buf, sampleRecords()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{
		"a", "write report", "2026-03-02T09:00:00Z", "2026-03-02T10:30:00Z",
		"completed", "5400", "", "true", "2", "0",
	}, rows[1])
	assert.Equal(t, "received hangup", rows[2][6])
	assert.Equal(t, "false", rows[2][7], "degraded sessions did not block websites")
	assert.Equal(t, "", rows[3][3], "running session has no end")
	assert.Equal(t, "0", rows[3][5])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeCSV(&buf, nil))
	assert.Equal(t, "id,task,start,end,outcome,elapsed_seconds,reason,websites_blocked,apps_closed,app_failures\n", buf.String())
}

func TestTableRows(t *testing.T) {
	rows := tableRows(sampleRecords(), reportNow)
	require.Len(t, rows, 4)

	assert.Equal(t, []string{"1", "write report", "3 hours ago", "1h30m", "completed", "2 apps closed"}, rows[1])
	assert.Equal(t, "-", rows[2][1], "empty task placeholder")
	assert.Equal(t, "sites not blocked; 1 not closed; received hangup", rows[2][5])
	assert.Equal(t, "-", rows[3][3], "running session has no length yet")
}

func TestReasonText_PrefersReleaseError(t *testing.T) {
	r := domain.SessionRecord{Reason: "stopped", ReleaseError: "read-only file system"}
	assert.Equal(t, "hosts not restored: read-only file system", reasonText(r))
}

func TestPrintTable_Summary(t *testing.T) {
	var buf bytes.Buffer
	printTable(&buf, sampleRecords(), reportNow)

	assert.Contains(t, buf.String(), "3 sessions, 1 completed, 1h40m in flow mode")
}
