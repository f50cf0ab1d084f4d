package infra

import (
	"context"
	"os"

	"github.com/humaxai2025/flowmode/internal/domain"
)

// mockProcessManager is a test double for ProcessManager
type mockProcessManager struct {
	runningPIDs map[int]bool
	killedPIDs  []int
}

func newMockProcessManager() *mockProcessManager {
	return &mockProcessManager{
		runningPIDs: make(map[int]bool),
	}
}

func (m *mockProcessManager) List(ctx context.Context) ([]domain.ProcessInfo, error) {
	return nil, nil
}

func (m *mockProcessManager) Kill(pid int) error {
	m.killedPIDs = append(m.killedPIDs, pid)
	delete(m.runningPIDs, pid)
	return nil
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	return m.runningPIDs[pid]
}

func (m *mockProcessManager) CurrentUID() int {
	return os.Getuid()
}

func (m *mockProcessManager) SetRunning(pid int, running bool) {
	m.runningPIDs[pid] = running
}

// Ensure mockProcessManager implements domain.ProcessManager
var _ domain.ProcessManager = (*mockProcessManager)(nil)
