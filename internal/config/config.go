// Package config holds the process-wide settings of the follower dashboard.
//
// A Config is built once at startup (defaults, then an optional YAML file,
// then environment overrides, then command-line flags) and handed to the
// page. Nothing below this package reads the environment.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// polling
	PollInterval   time.Duration `yaml:"poll_interval"`
	APIHost        string        `yaml:"api_host"`
	APIPort        int           `yaml:"api_port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// history
	Retention int `yaml:"retention"`

	// render
	SeriesWindow  int           `yaml:"series_window"`
	RawTransition time.Duration `yaml:"raw_transition"`
	AltScreen     bool          `yaml:"alt_screen"`
	Headless      bool          `yaml:"headless"`

	// diagnostics
	DiagnosticsWindow int `yaml:"diagnostics_window"`
	DiagnosticsTopK   int `yaml:"diagnostics_top_k"`

	// output
	LogFile       string `yaml:"log_file"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`
	ExportDir     string `yaml:"export_dir"`
}

const (
	EnvConfigFile   = "FOLLOWER_CONFIG"
	EnvPollInterval = "FOLLOWER_POLL_INTERVAL_MS"
	EnvAPIHost      = "FOLLOWER_API_HOST"
	EnvAPIPort      = "FOLLOWER_API_PORT"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		PollInterval:   time.Second,
		APIHost:        "127.0.0.1",
		APIPort:        5077,
		RequestTimeout: 5 * time.Second,

		Retention: 0,

		SeriesWindow:  120,
		RawTransition: 300 * time.Millisecond,
		AltScreen:     true,
		Headless:      false,

		DiagnosticsWindow: 60,
		DiagnosticsTopK:   3,

		LogFile:       "follower-dashboard.log",
		LogMaxSizeMB:  10,
		LogMaxBackups: 3,
		ExportDir:     ".",
	}
}

// Load returns the defaults overlaid with the YAML file at path (if path is
// non-empty) and then with environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		if err := loadFromFile(&cfg, path); err != nil {
			return cfg, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg, os.Getenv)
	return cfg, nil
}

func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides reads the variables through getenv so tests can supply
// their own lookup. Unparsable numbers leave the current value untouched.
func applyEnvOverrides(cfg *Config, getenv func(string) string) {
	if v := getenv(EnvPollInterval); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.PollInterval = time.Duration(ms) * time.Millisecond
		}
	}
	if v := getenv(EnvAPIHost); v != "" {
		cfg.APIHost = v
	}
	if v := getenv(EnvAPIPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.APIPort = port
		}
	}
}

// BaseURL is the fixed address both telemetry endpoints are resolved against.
func (c Config) BaseURL() string {
	return "http://" + net.JoinHostPort(c.APIHost, strconv.Itoa(c.APIPort))
}

func (c Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("-interval must be > 0")
	}
	if c.APIHost == "" {
		return fmt.Errorf("-host must not be empty")
	}
	if c.APIPort < 1 || c.APIPort > 65535 {
		return fmt.Errorf("-port must be in [1,65535] (got %d)", c.APIPort)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("-timeout must be >= 0")
	}
	if c.Retention < 0 {
		return fmt.Errorf("-retention must be >= 0")
	}
	if c.SeriesWindow < 2 {
		return fmt.Errorf("-series-window must be >= 2")
	}
	if c.RawTransition < 0 {
		return fmt.Errorf("-raw-transition must be >= 0")
	}
	if c.DiagnosticsWindow < 1 {
		return fmt.Errorf("-diag-window must be >= 1")
	}
	if c.DiagnosticsTopK < 1 {
		return fmt.Errorf("-diag-top-k must be >= 1")
	}
	if c.LogMaxSizeMB < 1 {
		return fmt.Errorf("-log-max-size must be >= 1")
	}
	if c.LogMaxBackups < 0 {
		return fmt.Errorf("-log-max-backups must be >= 0")
	}
	return nil
}
