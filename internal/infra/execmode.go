package infra

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"

	"github.com/adrg/xdg"
)

// ExecMode represents the execution mode of the application.
type ExecMode string

const (
	// ExecModeUser runs without elevated privileges; website blocking will
	// usually be denied and the session degrades to timer-only.
	ExecModeUser ExecMode = "user"
	// ExecModeSystem runs as root/Administrator and can edit the hosts file.
	ExecModeSystem ExecMode = "system"
)

const appName = "flowmode"

// State file names inside the data directory.
const (
	MarkerFileName  = "hosts.marker"
	BackupFileName  = "hosts.backup"
	LockFileName    = "flowmode.pid"
	HistoryFileName = "history.db"
	LogDirName      = "log"
)

// ExecModeConfig holds paths and settings based on execution mode.
type ExecModeConfig struct {
	Mode      ExecMode
	HostsPath string // System hosts file to guard
	DataDir   string // Marker, backup, lock, history and key live here
	IsRoot    bool   // Whether running as root
}

// DefaultHostsPath returns the platform hosts file location.
func DefaultHostsPath() string {
	if runtime.GOOS == "windows" {
		root := os.Getenv("SystemRoot")
		if root == "" {
			root = `C:\Windows`
		}
		return filepath.Join(root, "System32", "drivers", "etc", "hosts")
	}
	return "/etc/hosts"
}

// DetectExecMode determines paths based on effective UID.
// Non-empty overrides take precedence over the detected locations.
func DetectExecMode(hostsOverride, dataDirOverride string) *ExecModeConfig {
	isRoot := os.Geteuid() == 0

	cfg := &ExecModeConfig{
		Mode:      ExecModeUser,
		HostsPath: DefaultHostsPath(),
		DataDir:   filepath.Join(xdg.DataHome, appName),
		IsRoot:    isRoot,
	}

	if isRoot && runtime.GOOS != "windows" {
		cfg.Mode = ExecModeSystem
		cfg.DataDir = filepath.Join("/var/lib", appName)
		// Under sudo, keep state with the invoking user so that `report`
		// without sudo sees the same history.
		if home := sudoUserHome(); home != "" {
			cfg.DataDir = filepath.Join(home, ".local", "share", appName)
		}
	}

	if hostsOverride != "" {
		cfg.HostsPath = hostsOverride
	}
	if dataDirOverride != "" {
		cfg.DataDir = dataDirOverride
	}
	return cfg
}

// Path joins name onto the data directory.
func (c *ExecModeConfig) Path(name string) string {
	return filepath.Join(c.DataDir, name)
}

// String returns a human-readable description of the mode.
func (m ExecMode) String() string {
	switch m {
	case ExecModeSystem:
		return "system (root)"
	case ExecModeUser:
		return "user (non-root)"
	default:
		return "unknown"
	}
}

// sudoUserHome returns the invoking user's home when running under sudo.
func sudoUserHome() string {
	sudoUser := os.Getenv("SUDO_USER")
	if sudoUser == "" {
		return ""
	}
	u, err := user.Lookup(sudoUser)
	if err != nil {
		return ""
	}
	return u.HomeDir
}
