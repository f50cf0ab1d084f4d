package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env holds the environment overrides.
type Env struct {
	HostsFile     string `env:"FLOWMODE_HOSTS_FILE"`
	TestHostsFile string `env:"FLOWMODE_TEST_HOSTS_FILE"`
	DataDir       string `env:"FLOWMODE_DATA_DIR"`
	LogLevel      string `env:"FLOWMODE_LOG_LEVEL" envDefault:"info"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadEnv parses the flowmode environment variables.
func LoadEnv() (Env, error) {
	var e Env
	if err := ParseEnv(&e); err != nil {
		return Env{}, err
	}
	return e, nil
}

// HostsOverride returns the hosts file override, preferring
// FLOWMODE_HOSTS_FILE over the older FLOWMODE_TEST_HOSTS_FILE.
func (e Env) HostsOverride() string {
	if e.HostsFile != "" {
		return e.HostsFile
	}
	return e.TestHostsFile
}
