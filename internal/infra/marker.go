package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/humaxai2025/flowmode/internal/domain"
)

const markerVersion = 1

// MarkerFile implements domain.MarkerStore with a JSON file next to a copy
// of the original hosts bytes. Both are written atomically (write + rename).
type MarkerFile struct {
	path       string
	backupPath string
}

// NewMarkerFile creates a marker store inside the data directory.
func NewMarkerFile(mode *ExecModeConfig) domain.MarkerStore {
	return &MarkerFile{
		path:       mode.Path(MarkerFileName),
		backupPath: mode.Path(BackupFileName),
	}
}

// NewMarkerFileWithPath creates a marker store at specific paths (for testing).
func NewMarkerFileWithPath(path, backupPath string) domain.MarkerStore {
	return &MarkerFile{path: path, backupPath: backupPath}
}

// BackupPath returns where the original hosts bytes are stored.
func (m *MarkerFile) BackupPath() string {
	return m.backupPath
}

// Save stores the original bytes first, then the marker pointing at them,
// so a marker never references a missing backup.
func (m *MarkerFile) Save(marker domain.Marker, original []byte) error {
	if err := ensureDir(filepath.Dir(m.path)); err != nil {
		return err
	}

	if marker.Version == 0 {
		marker.Version = markerVersion
	}
	marker.BackupPath = m.backupPath

	data, err := json.Marshal(marker)
	if err != nil {
		return err
	}

	if err := writeFileAtomic(m.backupPath, original, 0600); err != nil {
		return fmt.Errorf("failed to write hosts backup: %w", err)
	}
	if err := writeFileAtomic(m.path, data, 0600); err != nil {
		_ = removeIfExists(m.backupPath)
		return fmt.Errorf("failed to write marker: %w", err)
	}
	return nil
}

// Load returns the current marker or domain.ErrNoMarker.
func (m *MarkerFile) Load() (*domain.Marker, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNoMarker
		}
		return nil, err
	}

	var marker domain.Marker
	if err := json.Unmarshal(data, &marker); err != nil {
		return nil, fmt.Errorf("corrupt marker %s: %w", m.path, err)
	}
	return &marker, nil
}

// Clear removes the marker before the backup copy; a crash in between
// leaves only an orphaned backup, never a dangling marker.
func (m *MarkerFile) Clear() error {
	if err := removeIfExists(m.path); err != nil {
		return fmt.Errorf("failed to remove marker: %w", err)
	}
	if err := removeIfExists(m.backupPath); err != nil {
		return fmt.Errorf("failed to remove hosts backup: %w", err)
	}
	return nil
}

// Ensure MarkerFile implements domain.MarkerStore.
var _ domain.MarkerStore = (*MarkerFile)(nil)
