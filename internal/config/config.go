// Package config loads runtime configuration from a YAML file with
// sensible defaults for every field, so a missing file is not an error.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fieldops/fieldsync/internal/errors"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" as well as integer nanoseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return errors.Wrap(errors.ErrInvalid, "invalid duration "+s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := value.Decode(&n); err != nil {
		return errors.New(errors.ErrInvalid, "duration must be a string like \"30s\"")
	}
	*d = Duration(n)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// APIConfig configures the remote endpoint.
type APIConfig struct {
	BaseURL        string   `yaml:"base_url"`
	TokenEnv       string   `yaml:"token_env"`
	RequestTimeout Duration `yaml:"request_timeout"`
}

// ConnectivityConfig configures the heartbeat monitor.
type ConnectivityConfig struct {
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`
	ProbeTimeout      Duration `yaml:"probe_timeout"`
}

// SyncConfig configures the drain engine.
type SyncConfig struct {
	MaxRetries int `yaml:"max_retries"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Config is the full runtime configuration.
type Config struct {
	API          APIConfig          `yaml:"api"`
	DataDir      string             `yaml:"data_dir"`
	Connectivity ConnectivityConfig `yaml:"connectivity"`
	Sync         SyncConfig         `yaml:"sync"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        "http://localhost:8080",
			TokenEnv:       "FIELDSYNC_TOKEN",
			RequestTimeout: Duration(10 * time.Second),
		},
		DataDir: defaultDataDir(),
		Connectivity: ConnectivityConfig{
			HeartbeatInterval: Duration(5 * time.Second),
			ProbeTimeout:      Duration(5 * time.Second),
		},
		Sync: SyncConfig{
			MaxRetries: 5,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from path, layered over defaults. An empty path
// or a missing file yields the defaults; a malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrap(errors.ErrInternal, "failed to read config file", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(errors.ErrInvalid, "failed to parse config file", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Token resolves the API token from the configured environment variable.
func (c *Config) Token() string {
	return os.Getenv(c.API.TokenEnv)
}

func (c *Config) validate() error {
	if c.API.BaseURL == "" {
		return errors.New(errors.ErrValidation, "api.base_url must not be empty")
	}
	if c.API.RequestTimeout <= 0 {
		return errors.New(errors.ErrValidation, "api.request_timeout must be positive")
	}
	if c.Connectivity.HeartbeatInterval <= 0 {
		return errors.New(errors.ErrValidation, "connectivity.heartbeat_interval must be positive")
	}
	if c.Connectivity.ProbeTimeout <= 0 {
		return errors.New(errors.ErrValidation, "connectivity.probe_timeout must be positive")
	}
	if c.Sync.MaxRetries < 1 {
		return errors.New(errors.ErrValidation, "sync.max_retries must be at least 1")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.New(errors.ErrValidation,
			fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".fieldsync"
	}
	return home + string(os.PathSeparator) + ".fieldsync"
}
