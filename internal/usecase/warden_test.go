package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/humaxai2025/flowmode/internal/domain"
)

const testUID = 1000

// mockProcessManager implements domain.ProcessManager for testing
type mockProcessManager struct {
	procs      []domain.ProcessInfo
	listErr    error
	killErrs   map[int]error
	killedPIDs []int
	running    map[int]bool
}

func (m *mockProcessManager) List(ctx context.Context) ([]domain.ProcessInfo, error) {
	return m.procs, m.listErr
}

func (m *mockProcessManager) Kill(pid int) error {
	if err := m.killErrs[pid]; err != nil {
		return err
	}
	m.killedPIDs = append(m.killedPIDs, pid)
	return nil
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	return m.running[pid]
}

func (m *mockProcessManager) CurrentUID() int {
	return testUID
}

func TestWarden_SkipsOtherUsersProcesses(t *testing.T) {
	pm := &mockProcessManager{procs: []domain.ProcessInfo{
		{PID: 10, Name: "discord", UID: testUID, OwnerKnown: true},
		{PID: 11, Name: "discord", UID: 0, OwnerKnown: true},
	}}
	w := NewWarden(pm, zap.NewNop())

	report := w.Sweep(context.Background(), []string{"discord"})

	require.Len(t, report.Entries, 2)
	assert.Equal(t, domain.KillKilled, report.Entries[0].Outcome)
	assert.Equal(t, 10, report.Entries[0].PID)
	assert.Equal(t, domain.KillPermissionDenied, report.Entries[1].Outcome)
	assert.Equal(t, 11, report.Entries[1].PID)
	assert.Equal(t, []int{10}, pm.killedPIDs, "never signals another user's process")
	assert.Equal(t, 1, report.Killed())
	assert.Equal(t, 1, report.Failed())
}

func TestWarden_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		procs   []domain.ProcessInfo
		killErr map[int]error
		apps    []string
		want    []domain.KillOutcome
	}{
		{
			name:  "case-insensitive and .exe agnostic",
			procs: []domain.ProcessInfo{{PID: 1, Name: "Slack.exe", UID: testUID, OwnerKnown: true}},
			apps:  []string{"slack"},
			want:  []domain.KillOutcome{domain.KillKilled},
		},
		{
			name:  "substring does not match",
			procs: []domain.ProcessInfo{{PID: 1, Name: "slack-helper", UID: testUID, OwnerKnown: true}},
			apps:  []string{"slack"},
			want:  []domain.KillOutcome{domain.KillNotFound},
		},
		{
			name:  "unknown owner is attempted",
			procs: []domain.ProcessInfo{{PID: 1, Name: "discord.exe"}},
			apps:  []string{"Discord.exe"},
			want:  []domain.KillOutcome{domain.KillKilled},
		},
		{
			name:    "process exited before kill",
			procs:   []domain.ProcessInfo{{PID: 1, Name: "discord", UID: testUID, OwnerKnown: true}},
			killErr: map[int]error{1: fmt.Errorf("pid 1: %w", domain.ErrProcessGone)},
			apps:    []string{"discord"},
			want:    []domain.KillOutcome{domain.KillNotFound},
		},
		{
			name:    "kill denied by os",
			procs:   []domain.ProcessInfo{{PID: 1, Name: "discord"}},
			killErr: map[int]error{1: fmt.Errorf("pid 1: %w", domain.ErrPermissionDenied)},
			apps:    []string{"discord"},
			want:    []domain.KillOutcome{domain.KillPermissionDenied},
		},
		{
			name:    "unexpected kill error",
			procs:   []domain.ProcessInfo{{PID: 1, Name: "discord", UID: testUID, OwnerKnown: true}},
			killErr: map[int]error{1: errors.New("boom")},
			apps:    []string{"discord"},
			want:    []domain.KillOutcome{domain.KillError},
		},
		{
			name: "multiple apps, one missing",
			procs: []domain.ProcessInfo{
				{PID: 1, Name: "slack", UID: testUID, OwnerKnown: true},
				{PID: 2, Name: "slack", UID: testUID, OwnerKnown: true},
			},
			apps: []string{"slack", "discord"},
			want: []domain.KillOutcome{domain.KillKilled, domain.KillKilled, domain.KillNotFound},
		},
		{
			name: "no apps configured",
			apps: nil,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pm := &mockProcessManager{procs: tt.procs, killErrs: tt.killErr}
			report := NewWarden(pm, zap.NewNop()).Sweep(context.Background(), tt.apps)

			var got []domain.KillOutcome
			for _, e := range report.Entries {
				got = append(got, e.Outcome)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWarden_ListFailureIsReportedNotReturned(t *testing.T) {
	pm := &mockProcessManager{listErr: errors.New("proc unavailable")}

	report := NewWarden(pm, zap.NewNop()).Sweep(context.Background(), []string{"slack", "discord"})

	require.Len(t, report.Entries, 2)
	for _, e := range report.Entries {
		assert.Equal(t, domain.KillError, e.Outcome)
		assert.Error(t, e.Err)
	}
	assert.Equal(t, 2, report.Failed())
}
