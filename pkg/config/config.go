// Package config loads CLI defaults for ustar.
//
// Configuration comes from a single YAML file named by the --config flag
// or, failing that, the USTAR_CONFIG environment variable. There is no
// automatic discovery: without either, Default() is used as is.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"ustar/pkg/compress"
	"ustar/pkg/core"
)

// EnvVar names the environment variable holding the config file path
const EnvVar = "USTAR_CONFIG"

// Config holds the defaults the CLI applies when flags are not given
type Config struct {
	// ArchiveName is the base name for pack output. Default: archive
	ArchiveName string `yaml:"archive_name"`

	// Compression is the pack transform: none, gzip, lz4 or zstd.
	// Default: none
	Compression string `yaml:"compression"`

	// Overwrite is the unpack policy for existing directories: prompt,
	// recreate, skip or fail. Default: prompt
	Overwrite string `yaml:"overwrite"`

	// SortEntries makes pack output reproducible. Default: false
	SortEntries bool `yaml:"sort_entries"`

	// ResolveAccounts fills owner and group names from the system
	// account database. Default: true
	ResolveAccounts bool `yaml:"resolve_accounts"`

	// LogLevel is debug, info, warn or error. Default: info
	LogLevel string `yaml:"log_level"`

	// Progress enables periodic progress records. Default: true
	Progress bool `yaml:"progress"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		ArchiveName:     "archive",
		Compression:     "none",
		Overwrite:       "prompt",
		ResolveAccounts: true,
		LogLevel:        "info",
		Progress:        true,
	}
}

// Load reads the config file at path, or the one named by USTAR_CONFIG when
// path is empty. With neither set it returns Default().
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	c := Default()
	if path == "" {
		return c, nil
	}
	if err := c.loadFile(path); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

// loadFile overlays the file's values on c
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks that every enumerated field holds a known value
func (c *Config) Validate() error {
	var errs []error
	if c.ArchiveName == "" {
		errs = append(errs, errors.New("archive_name must not be empty"))
	}
	if _, err := compress.ParseScheme(c.Compression); err != nil {
		errs = append(errs, err)
	}
	if c.Overwrite != "prompt" {
		if _, err := core.ParseOverwritePolicy(c.Overwrite); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Scheme returns the configured compression scheme
func (c *Config) Scheme() compress.Scheme {
	s, _ := compress.ParseScheme(c.Compression)
	return s
}

// Level returns the configured log level
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}
