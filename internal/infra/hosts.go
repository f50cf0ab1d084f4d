package infra

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/humaxai2025/flowmode/internal/blocklist"
	"github.com/humaxai2025/flowmode/internal/domain"
)

// HostsSentinel tags every line flowmode appends to the hosts file.
const HostsSentinel = "# flowmode"

// DefaultRedirectAddress is where blocked domains resolve to.
const DefaultRedirectAddress = "127.0.0.1"

// HostsFile implements domain.HostsGuard. It is the only code that writes
// the hosts file.
type HostsFile struct {
	path           string
	redirect       string
	markers        domain.MarkerStore
	processManager domain.ProcessManager
	logger         *zap.Logger
	now            func() time.Time

	mu   sync.Mutex
	live *domain.HostsBackup
}

// NewHostsFile creates a guard for the hosts file at path.
func NewHostsFile(
	path, redirect string,
	markers domain.MarkerStore,
	pm domain.ProcessManager,
	logger *zap.Logger,
) *HostsFile {
	if redirect == "" {
		redirect = DefaultRedirectAddress
	}
	return &HostsFile{
		path:           path,
		redirect:       redirect,
		markers:        markers,
		processManager: pm,
		logger:         logger,
		now:            time.Now,
	}
}

// Path returns the guarded hosts file.
func (h *HostsFile) Path() string {
	return h.path
}

// Acquire snapshots the hosts file, records the crash-recovery marker and
// then atomically writes the blocked version. An existing marker, readable
// or not, means a previous snapshot has not been restored yet; Acquire
// refuses rather than overwrite it with a possibly blocked file.
func (h *HostsFile) Acquire(ctx context.Context, req domain.BlockRequest) (*domain.HostsBackup, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.live != nil {
		return nil, domain.ErrBackupLive
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch stale, err := h.markers.Load(); {
	case err == nil:
		return nil, fmt.Errorf("%w: unrestored backup from pid %d, run `flowmode recover --force`",
			domain.ErrBackupLive, stale.PID)
	case !errors.Is(err, domain.ErrNoMarker):
		return nil, fmt.Errorf("%w: %w", domain.ErrBackupLive, err)
	}

	original, mode, exists, err := readFileOrEmpty(h.path)
	if err != nil {
		return nil, classifyIOError("read hosts file", err)
	}

	updated := RenderHosts(original, req, h.redirect)

	backup := &domain.HostsBackup{
		Path:       h.path,
		Original:   original,
		Mode:       uint32(mode),
		Absent:     !exists,
		AcquiredAt: h.now(),
	}

	marker := domain.Marker{
		PID:         os.Getpid(),
		HostsPath:   h.path,
		AcquiredAt:  backup.AcquiredAt,
		HostsAbsent: !exists,
	}
	if err := h.markers.Save(marker, original); err != nil {
		return nil, classifyIOError("save recovery marker", err)
	}

	if err := writeFileAtomic(h.path, updated, mode); err != nil {
		if cerr := h.markers.Clear(); cerr != nil {
			h.logger.Warn("failed to clear marker after aborted acquire", zap.Error(cerr))
		}
		return nil, classifyIOError("write hosts file", err)
	}

	h.live = backup
	h.logger.Info("hosts file updated",
		zap.String("path", h.path),
		zap.Int("domains", len(req.Domains)),
		zap.Bool("allow_mode", req.AllowMode))

	return backup, nil
}

// Release writes the original bytes back and removes the marker.
// Releasing the same backup twice is a programming error.
func (h *HostsFile) Release(backup *domain.HostsBackup) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if backup == nil {
		return fmt.Errorf("%w: nil backup", domain.ErrReleaseFailed)
	}
	if backup.Released() {
		h.logger.DPanic("hosts backup released twice", zap.String("path", backup.Path))
		return domain.ErrBackupReleased
	}

	mode := os.FileMode(backup.Mode)
	if mode == 0 {
		mode = 0644
	}
	if err := restoreHosts(backup.Path, backup.Original, mode, backup.Absent); err != nil {
		// Marker stays so `flowmode recover` can finish the job.
		return fmt.Errorf("%w: %w", domain.ErrReleaseFailed, classifyIOError("restore hosts file", err))
	}

	backup.MarkReleased()
	if h.live == backup {
		h.live = nil
	}

	if err := h.markers.Clear(); err != nil {
		h.logger.Warn("hosts file restored but marker not removed", zap.Error(err))
	}

	h.logger.Info("hosts file restored", zap.String("path", backup.Path))
	return nil
}

// Recover restores the hosts file from the marker left behind by a session
// that exited without releasing. A marker owned by a live process yields
// domain.ErrAlreadyActive unless force is set.
func (h *HostsFile) Recover(force bool) (*domain.Marker, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.live != nil {
		return nil, domain.ErrAlreadyActive
	}

	marker, err := h.markers.Load()
	if err != nil {
		return nil, err
	}

	if !force && marker.PID != os.Getpid() && h.processManager.IsRunning(marker.PID) {
		return marker, fmt.Errorf("%w (pid %d)", domain.ErrAlreadyActive, marker.PID)
	}

	original, err := os.ReadFile(marker.BackupPath)
	if err != nil {
		return marker, fmt.Errorf("%w: read backup %s: %w", domain.ErrReleaseFailed, marker.BackupPath, err)
	}

	target := marker.HostsPath
	if target == "" {
		target = h.path
	}
	_, mode, _, err := readFileOrEmpty(target)
	if err != nil {
		return marker, fmt.Errorf("%w: %w", domain.ErrReleaseFailed, classifyIOError("stat hosts file", err))
	}
	if err := restoreHosts(target, original, mode, marker.HostsAbsent); err != nil {
		return marker, fmt.Errorf("%w: %w", domain.ErrReleaseFailed, classifyIOError("restore hosts file", err))
	}

	if err := h.markers.Clear(); err != nil {
		return marker, err
	}

	h.logger.Info("hosts file recovered from marker",
		zap.String("path", target),
		zap.Int("stale_pid", marker.PID))
	return marker, nil
}

// restoreHosts puts path back the way it was found: removed when it did not
// exist, otherwise rewritten with the original bytes.
func restoreHosts(path string, original []byte, mode os.FileMode, absent bool) error {
	if absent {
		return removeIfExists(path)
	}
	return writeFileAtomic(path, original, mode)
}

// RenderHosts returns the hosts content for req applied on top of original.
// Lines already present (tagged or not) are never duplicated; unrelated
// lines are kept byte-identical.
func RenderHosts(original []byte, req domain.BlockRequest, redirect string) []byte {
	content := string(original)
	eol := "\n"
	if strings.Contains(content, "\r\n") {
		eol = "\r\n"
	}

	lines := strings.SplitAfter(content, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	deny := blocklist.New(req.Domains, nil, nil).Domains()

	var kept []string
	present := make(map[string]struct{}, len(lines))
	if req.AllowMode {
		allow := blocklist.New(nil, nil, req.AllowList).AllowList()
		var tagged []string
		for _, line := range lines {
			trimmed := strings.TrimSpace(line)
			if strings.HasSuffix(trimmed, HostsSentinel) {
				d := blocklist.NormaliseDomain(trimmed)
				if blocklist.IsAllowed(d, allow) {
					continue // allow-listed: drop our own redirect
				}
				tagged = append(tagged, d)
			}
			kept = append(kept, line)
			present[trimmed] = struct{}{}
		}

		candidates := append(append(append([]string{}, blocklist.DefaultDistractions...), deny...), tagged...)
		deny = deny[:0]
		for _, d := range blocklist.New(candidates, nil, nil).Domains() {
			if !blocklist.IsAllowed(d, allow) {
				deny = append(deny, d)
			}
		}
	} else {
		kept = lines
		for _, line := range lines {
			present[strings.TrimSpace(line)] = struct{}{}
		}
	}

	var appended []string
	for _, d := range deny {
		plain := redirect + " " + d
		tagged := plain + " " + HostsSentinel
		if _, ok := present[plain]; ok {
			continue
		}
		if _, ok := present[tagged]; ok {
			continue
		}
		present[tagged] = struct{}{}
		appended = append(appended, tagged+eol)
	}

	var b strings.Builder
	b.Grow(len(content) + len(appended)*32)
	for _, line := range kept {
		b.WriteString(line)
	}
	if len(appended) > 0 {
		if n := len(kept); n > 0 && !strings.HasSuffix(kept[n-1], "\n") {
			b.WriteString(eol)
		}
		for _, line := range appended {
			b.WriteString(line)
		}
	}
	return []byte(b.String())
}

// classifyIOError maps permission-like failures to domain.ErrPermissionDenied.
func classifyIOError(op string, err error) error {
	if errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EROFS) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrPermissionDenied, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Ensure HostsFile implements domain.HostsGuard.
var _ domain.HostsGuard = (*HostsFile)(nil)
