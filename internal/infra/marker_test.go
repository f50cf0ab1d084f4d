package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humaxai2025/flowmode/internal/domain"
)

func TestMarkerFile_SaveLoadClear(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	markers := NewMarkerFileWithPath(filepath.Join(dir, MarkerFileName), filepath.Join(dir, BackupFileName))

	_, err := markers.Load()
	require.ErrorIs(t, err, domain.ErrNoMarker)

	acquired := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	original := []byte("127.0.0.1 localhost\n")
	require.NoError(t, markers.Save(domain.Marker{PID: 77, HostsPath: "/etc/hosts", AcquiredAt: acquired}, original))

	m, err := markers.Load()
	require.NoError(t, err)
	assert.Equal(t, 1, m.Version)
	assert.Equal(t, 77, m.PID)
	assert.Equal(t, "/etc/hosts", m.HostsPath)
	assert.Equal(t, markers.BackupPath(), m.BackupPath)
	assert.True(t, acquired.Equal(m.AcquiredAt))

	backup, err := os.ReadFile(markers.BackupPath())
	require.NoError(t, err)
	assert.Equal(t, original, backup)

	info, err := os.Stat(markers.BackupPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	require.NoError(t, markers.Clear())
	_, err = markers.Load()
	assert.ErrorIs(t, err, domain.ErrNoMarker)
	_, err = os.Stat(markers.BackupPath())
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, markers.Clear(), "clearing nothing is fine")
}

func TestMarkerFile_CorruptMarker(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, MarkerFileName)
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0600))

	_, err := NewMarkerFileWithPath(path, filepath.Join(dir, BackupFileName)).Load()
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNoMarker)
}
