package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// EnvOverrides holds values read from the process environment. Environment
// variables sit between the config file and CLI flags in precedence.
type EnvOverrides struct {
	ConfigPath   string
	ClientID     string
	ClientSecret string
	URL          string
	DBPath       string
}

// ReadEnvOverrides reads the ZENODO_* environment variables.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:   os.Getenv("ZENODO_CONFIG"),
		ClientID:     os.Getenv("ZENODO_CLIENT_ID"),
		ClientSecret: os.Getenv("ZENODO_CLIENT_SECRET"),
		URL:          os.Getenv("ZENODO_URL"),
		DBPath:       os.Getenv("ZENODO_DB"),
	}
}

// DefaultConfigPath returns the per-user config file location.
func DefaultConfigPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "zenodo-go.toml"
	}

	return filepath.Join(base, "zenodo-go", "config.toml")
}

// DefaultDBPath returns the per-user database location.
func DefaultDBPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "zenodo-go.db"
	}

	return filepath.Join(base, "zenodo-go", "zenodo-go.db")
}

// Load reads and parses a TOML config file and validates it.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values, supporting a zero-config
// first run (credentials can come from the environment).
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve applies the override chain:
// defaults -> config file -> environment variables -> CLI flags.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Config, error) {
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	if env.ClientID != "" {
		cfg.Provider.ClientID = env.ClientID
	}

	if env.ClientSecret != "" {
		cfg.Provider.ClientSecret = env.ClientSecret
	}

	if env.URL != "" {
		cfg.Provider.URL = env.URL
	}

	if env.DBPath != "" {
		cfg.Storage.DBPath = env.DBPath
	}

	if cli.DBPath != "" {
		cfg.Storage.DBPath = cli.DBPath
	}

	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = DefaultDBPath()
	}

	return cfg, nil
}

// Validate checks the parts of the config that would otherwise fail
// obscurely at first use.
func Validate(cfg *Config) error {
	if cfg.Provider.URL == "" {
		return errors.New("provider.url must not be empty")
	}

	if !strings.HasPrefix(cfg.Provider.URL, "http://") && !strings.HasPrefix(cfg.Provider.URL, "https://") {
		return fmt.Errorf("provider.url %q must be an http(s) URL", cfg.Provider.URL)
	}

	if cfg.Network.Timeout != "" {
		d, err := time.ParseDuration(cfg.Network.Timeout)
		if err != nil {
			return fmt.Errorf("network.timeout %q: %w", cfg.Network.Timeout, err)
		}

		if d <= 0 {
			return fmt.Errorf("network.timeout %q must be positive", cfg.Network.Timeout)
		}
	}

	switch cfg.Logging.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.log_level %q: must be debug, info, warn, or error", cfg.Logging.LogLevel)
	}

	switch cfg.Logging.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.log_format %q: must be text or json", cfg.Logging.LogFormat)
	}

	return nil
}
