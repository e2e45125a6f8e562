// Package config builds the immutable Config record the control plane
// constructs once at startup and passes explicitly to every component.
// There is no process-wide mutable global; every reader of configuration
// receives this value directly.
package config

import (
	"os"
	"strconv"
	"time"

	huberrors "github.com/mcp-hub/proxy/pkg/errors"
)

// Config is the fully resolved, immutable configuration for one proxy
// instance.
type Config struct {
	Port                 int
	ComposeFile          string
	LogLevel             string
	ProbeIntervalSeconds int
	FailThreshold        int
	RequestDeadline      time.Duration
	ShutdownGrace        time.Duration
	ProbeTimeout         time.Duration
	CapabilityTimeout    time.Duration
}

// Defaults mirrors the documented defaults for every environment-backed
// setting.
func Defaults() Config {
	return Config{
		Port:                 3000,
		ComposeFile:          "./docker-compose.yml",
		LogLevel:             "INFO",
		ProbeIntervalSeconds: 30,
		FailThreshold:        3,
		RequestDeadline:      30 * time.Second,
		ShutdownGrace:        10 * time.Second,
		ProbeTimeout:         5 * time.Second,
		CapabilityTimeout:    5 * time.Second,
	}
}

// FromEnv resolves Config from the documented environment variables,
// falling back to Defaults() for anything unset. Flags bound by the CLI
// layer are applied afterward by the caller, which overwrites the
// corresponding fields, so precedence is flag > env > default.
func FromEnv() (Config, error) {
	cfg := Defaults()

	if v, ok := os.LookupEnv("PROXY_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, huberrors.Wrap(huberrors.KindConfig, "PROXY_PORT is not a valid integer", err)
		}
		cfg.Port = port
	}
	if v, ok := os.LookupEnv("MCP_COMPOSE_FILE"); ok && v != "" {
		cfg.ComposeFile = v
	}
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv("PROXY_PROBE_INTERVAL_SECONDS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, huberrors.Wrap(huberrors.KindConfig, "PROXY_PROBE_INTERVAL_SECONDS is not a valid integer", err)
		}
		cfg.ProbeIntervalSeconds = n
	}
	if v, ok := os.LookupEnv("PROXY_FAIL_THRESHOLD"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, huberrors.Wrap(huberrors.KindConfig, "PROXY_FAIL_THRESHOLD is not a valid integer", err)
		}
		cfg.FailThreshold = n
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects a Config with nonsensical values before it reaches any
// component.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return huberrors.New(huberrors.KindConfig, "port must be between 1 and 65535")
	}
	if c.ProbeIntervalSeconds <= 0 {
		return huberrors.New(huberrors.KindConfig, "probe interval must be positive")
	}
	if c.FailThreshold < 1 {
		return huberrors.New(huberrors.KindConfig, "fail threshold must be >= 1")
	}
	return nil
}

// ProbeInterval converts ProbeIntervalSeconds to a time.Duration for the
// health monitor.
func (c Config) ProbeInterval() time.Duration {
	return time.Duration(c.ProbeIntervalSeconds) * time.Second
}
