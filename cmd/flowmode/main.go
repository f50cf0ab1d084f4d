// Package main is the CLI entry point for flowmode.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/humaxai2025/flowmode/internal/config"
	"github.com/humaxai2025/flowmode/internal/domain"
	"github.com/humaxai2025/flowmode/internal/infra"
)

var (
	// Version info (set via ldflags)
	Version   = "0.3.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "flowmode",
	Short: "Focus sessions that block distracting sites and apps",
	Long: `flowmode runs a timed focus session. While it runs, distracting websites
are redirected through the hosts file, distracting applications are closed,
and optional Pomodoro breaks are scheduled. Everything is put back when the
session ends, is stopped, or is interrupted.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	configPath string
	jsonOutput bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.toml")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(versionCmd)
}

// app bundles what every subcommand needs.
type app struct {
	env    config.Env
	file   *config.File
	mode   *infra.ExecModeConfig
	logger *zap.Logger
	pm     domain.ProcessManager
}

func newApp() (*app, error) {
	env, err := config.LoadEnv()
	if err != nil {
		return nil, err
	}
	file, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	mode := infra.DetectExecMode(env.HostsOverride(), env.DataDir)

	return &app{
		env:    env,
		file:   file,
		mode:   mode,
		logger: createLogger(mode.Path(infra.LogDirName), env.LogLevel),
		pm:     infra.NewProcessManager(),
	}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

func (a *app) markers() domain.MarkerStore {
	return infra.NewMarkerFile(a.mode)
}

func (a *app) hosts() *infra.HostsFile {
	return infra.NewHostsFile(a.mode.HostsPath, a.file.RedirectAddress, a.markers(), a.pm, a.logger)
}

func (a *app) lock() domain.SessionLock {
	return infra.NewFileLock(a.mode, a.pm)
}

func (a *app) history() (*infra.HistoryStore, error) {
	key, err := infra.LoadOrCreateHistoryKey(infra.NewHistoryKeyFile(a.mode.DataDir))
	if err != nil {
		return nil, fmt.Errorf("failed to load history key: %w", err)
	}
	return infra.NewHistoryStore(a.mode.DataDir, key, a.logger)
}

// createLogger writes JSON logs to <dir>/flowmode.log with rotation.
func createLogger(dir, level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		// Fallback to stderr if file logging is unavailable
		logger, _ := zap.NewProduction()
		return logger
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(dir, "flowmode.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	})
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), sink, lvl)
	return zap.New(core, zap.AddCaller())
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("flowmode %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
