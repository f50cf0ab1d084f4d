package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humaxai2025/flowmode/internal/blocklist"
	"github.com/humaxai2025/flowmode/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	f := Default()

	assert.Equal(t, blocklist.DefaultDomains, f.BlockList)
	assert.Equal(t, blocklist.DefaultApps, f.AppBlockList)
	assert.Empty(t, f.Whitelist)
	assert.Equal(t, "127.0.0.1", f.RedirectAddress)
	assert.Equal(t, domain.PolicyDegrade, f.Policy())
	assert.True(t, f.MuteDuringWork)
	assert.True(t, f.DesktopNotifications)
	assert.Equal(t, PomodoroDefaults{Pomodoro: "25m", Break: "5m", LongBreak: "15m", Cycles: 4}, f.PomodoroDefaults)
	assert.Empty(t, f.Source)
}

func TestLoad_ExplicitFile(t *testing.T) {
	path := writeConfig(t, `
block_list = ["127.0.0.1 news.ycombinator.com", "lobste.rs"]
app_block_list = ["steam"]
whitelist = ["github.com"]
on_acquire_failure = "abort"
mute_during_work = false
mute_command = "pamixer --mute"
resweep_interval = "2m"

[pomodoro_defaults]
pomodoro = "50m"
break = "10m"
long_break = "30m"
cycles = 2
auto = true
`)

	f, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, f.Source)
	assert.Equal(t, []string{"127.0.0.1 news.ycombinator.com", "lobste.rs"}, f.BlockList)
	assert.Equal(t, []string{"steam"}, f.AppBlockList)
	assert.Equal(t, []string{"github.com"}, f.Whitelist)
	assert.Equal(t, domain.PolicyAbort, f.Policy())
	assert.False(t, f.MuteDuringWork)
	assert.True(t, f.DesktopNotifications, "unset keys keep their defaults")
	assert.Equal(t, "pamixer --mute", f.MuteCommand)
	assert.Equal(t, PomodoroDefaults{Pomodoro: "50m", Break: "10m", LongBreak: "30m", Cycles: 2, Auto: true}, f.PomodoroDefaults)

	resweep, err := f.Resweep()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, resweep)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.ErrorIs(t, err, domain.ErrConfigInvalid)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := writeConfig(t, "block_list = [\n")

	_, err := Load(path)
	assert.ErrorIs(t, err, domain.ErrConfigInvalid)
}

func TestLoad_SearchPathFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	f, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, blocklist.DefaultApps, f.AppBlockList)
}

func TestLoad_SearchPathFindsWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`app_block_list = ["zoom"]`), 0644))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	f, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"zoom"}, f.AppBlockList)
}

func TestFile_Resweep(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    time.Duration
		wantErr bool
	}{
		{"disabled", "", 0, false},
		{"minutes", "5m", 5 * time.Minute, false},
		{"garbage", "often", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &File{ResweepInterval: tt.value}
			got, err := f.Resweep()
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrConfigInvalid)
				assert.ErrorIs(t, err, domain.ErrInvalidDuration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("FLOWMODE_HOSTS_FILE", "")
	t.Setenv("FLOWMODE_TEST_HOSTS_FILE", "/tmp/legacy-hosts")
	t.Setenv("FLOWMODE_DATA_DIR", "/tmp/flowmode-data")
	t.Setenv("FLOWMODE_LOG_LEVEL", "debug")

	e, err := LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/legacy-hosts", e.HostsOverride())
	assert.Equal(t, "/tmp/flowmode-data", e.DataDir)
	assert.Equal(t, "debug", e.LogLevel)

	t.Setenv("FLOWMODE_HOSTS_FILE", "/tmp/hosts")
	e, err = LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/hosts", e.HostsOverride(), "new variable wins over the legacy one")
}

func TestLoadEnv_DefaultLogLevel(t *testing.T) {
	t.Setenv("FLOWMODE_LOG_LEVEL", "")
	os.Unsetenv("FLOWMODE_LOG_LEVEL")

	e, err := LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, "info", e.LogLevel)
}
