// Package config implements TOML configuration loading and validation for
// zenodo-go, with a defaults -> config file -> environment -> CLI flags
// override chain.
package config

import "time"

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Provider ProviderConfig `toml:"provider"`
	Storage  StorageConfig  `toml:"storage"`
	Network  NetworkConfig  `toml:"network"`
	Logging  LoggingConfig  `toml:"logging"`
}

// ProviderConfig holds the repository provider settings. Everything below
// client_secret is passed through to the metadata mapping and attachment
// rendering; the workflow itself never interprets those fields.
type ProviderConfig struct {
	ClientID          string            `toml:"client_id"`
	ClientSecret      string            `toml:"client_secret"`
	URL               string            `toml:"url"`
	ExportFormat      string            `toml:"export_format"`
	ExportFilename    string            `toml:"export_filename"`
	AddProjectMembers bool              `toml:"add_project_members"`
	Publisher         string            `toml:"publisher"`
	Language          string            `toml:"language"`
	Funding           string            `toml:"funding"`
	ResourceType      string            `toml:"resource_type"`
	UploadType        string            `toml:"upload_type"`
	Rights            map[string]string `toml:"rights"`
}

// StorageConfig locates the local database backing sessions, project
// values, and snapshots.
type StorageConfig struct {
	DBPath string `toml:"db_path"`
}

// NetworkConfig controls HTTP client behavior.
type NetworkConfig struct {
	Timeout string `toml:"timeout"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// HTTPTimeout returns the parsed network timeout. Unparseable values were
// already rejected by Validate; unset falls back to the default.
func (c *Config) HTTPTimeout() time.Duration {
	d, err := time.ParseDuration(c.Network.Timeout)
	if err != nil || d <= 0 {
		return defaultHTTPTimeout
	}

	return d
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings.
type CLIOverrides struct {
	ConfigPath string // --config flag (empty = use default)
	DBPath     string // --db flag
}
