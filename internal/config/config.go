// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"

	"github.com/morganforge/muse/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete muse configuration.
type Config struct {
	// DataDir holds persisted records and the log file.
	DataDir string `toml:"data_dir" env:"MUSE_DATA_DIR"`

	Storage StorageConfig `toml:"storage"`
	Network NetworkConfig `toml:"network"`
	UI      UIConfig      `toml:"ui"`
	Log     LogConfig     `toml:"log"`
	Roster  RosterConfig  `toml:"roster"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Backend is one of "file", "sqlite" or "memory".
	Backend string `toml:"backend" env:"MUSE_STORAGE"`

	// SQLitePath overrides <data_dir>/muse.db.
	SQLitePath string `toml:"sqlite_path" env:"MUSE_SQLITE_PATH"`
}

// NetworkConfig controls the chat transport.
type NetworkConfig struct {
	ConnectTimeout    Duration `toml:"connect_timeout" env:"MUSE_CONNECT_TIMEOUT"`
	IdleTimeout       Duration `toml:"idle_timeout" env:"MUSE_IDLE_TIMEOUT"`
	MaxRetries        int      `toml:"max_retries" env:"MUSE_MAX_RETRIES"`
	RequestsPerMinute int      `toml:"requests_per_minute" env:"MUSE_REQUESTS_PER_MINUTE"`
}

// UIConfig contains display preferences.
type UIConfig struct {
	WordWrap int  `toml:"word_wrap" env:"MUSE_WORD_WRAP"`
	Markdown bool `toml:"markdown" env:"MUSE_MARKDOWN"`
}

// LogConfig controls the application log.
type LogConfig struct {
	Level string `toml:"level" env:"MUSE_LOG_LEVEL"`
	// File defaults to <data_dir>/muse.log.
	File string `toml:"file" env:"MUSE_LOG_FILE"`
}

// RosterConfig points at an optional user roster.
type RosterConfig struct {
	Path  string `toml:"path" env:"MUSE_ROSTER"`
	Watch bool   `toml:"watch" env:"MUSE_ROSTER_WATCH"`
}

// =============================================================================
// DURATION
// =============================================================================

// Duration is a time.Duration that reads and writes as "30s" in TOML and
// environment variables.
type Duration struct {
	time.Duration
}

// NewDuration wraps d.
func NewDuration(d time.Duration) Duration {
	return Duration{Duration: d}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with sensible default values. DataDir is left
// empty when the home directory cannot be determined; Validate reports it.
func Default() *Config {
	dataDir := ""
	if dir, err := ConfigDir(); err == nil {
		dataDir = filepath.Join(dir, "data")
	}

	return &Config{
		DataDir: dataDir,
		Storage: StorageConfig{
			Backend: "file",
		},
		Network: NetworkConfig{
			ConnectTimeout:    NewDuration(30 * time.Second),
			IdleTimeout:       NewDuration(60 * time.Second),
			MaxRetries:        3,
			RequestsPerMinute: 30,
		},
		UI: UIConfig{
			WordWrap: 80,
			Markdown: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// SetDefaults fills empty fields with default values.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.DataDir == "" {
		c.DataDir = defaults.DataDir
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaults.Storage.Backend
	}
	if c.Network.ConnectTimeout.Duration == 0 {
		c.Network.ConnectTimeout = defaults.Network.ConnectTimeout
	}
	if c.Network.IdleTimeout.Duration == 0 {
		c.Network.IdleTimeout = defaults.Network.IdleTimeout
	}
	if c.UI.WordWrap == 0 {
		c.UI.WordWrap = defaults.UI.WordWrap
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}

	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the muse configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".muse"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// LogPath returns the configured log file or <data_dir>/muse.log.
func (c *Config) LogPath() string {
	if c.Log.File != "" {
		return c.Log.File
	}
	return filepath.Join(c.DataDir, "muse.log")
}

// SQLitePath returns the configured database path or <data_dir>/muse.db.
func (c *Config) SQLitePath() string {
	if c.Storage.SQLitePath != "" {
		return c.Storage.SQLitePath
	}
	return filepath.Join(c.DataDir, "muse.db")
}

// ensureSecurePermissions tightens a config file to 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads ~/.muse/config.toml when it exists, otherwise starts from the
// defaults. Environment overrides are applied last.
func Load() (*Config, error) {
	return LoadWith("")
}

// LoadFromPath loads configuration from a specific TOML file.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := decodeFile(cfg, path); err != nil {
		return nil, err
	}
	return finish(cfg)
}

// LoadWith loads path, or the default file when path is empty, and runs
// overrides after the environment and before validation. Command-line
// flags are applied this way.
func LoadWith(path string, overrides ...func(*Config)) (*Config, error) {
	cfg := Default()
	if path == "" {
		if p, err := ConfigPath(); err == nil {
			if _, statErr := os.Stat(p); statErr == nil {
				path = p
			}
		}
	}
	if path != "" {
		if err := decodeFile(cfg, path); err != nil {
			return nil, err
		}
	}
	return finish(cfg, overrides...)
}

func decodeFile(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		fmt.Fprintf(os.Stderr, "Warning: unknown config keys in %s: %v\n", path, undecoded)
	}
	return nil
}

func finish(cfg *Config, overrides ...func(*Config)) (*Config, error) {
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	for _, override := range overrides {
		override(cfg)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverrides applies MUSE_* environment variables to the config.
// Unset variables leave fields unchanged.
func (c *Config) ApplyEnvOverrides() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to path atomically with 0600 permissions.
func Save(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# muse configuration file\n")
	buf.WriteString("# Generated by muse - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// MaxRetriesLimit bounds network.max_retries.
const MaxRetriesLimit = 10

// Validate checks the configuration and returns ValidateErrors on failure.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.DataDir == "" {
		add("data_dir", "must be set")
	}

	switch strings.ToLower(c.Storage.Backend) {
	case "file", "sqlite", "memory":
	default:
		add("storage.backend", "invalid backend '%s', must be one of: file, sqlite, memory", c.Storage.Backend)
	}

	if c.Network.ConnectTimeout.Duration < 0 {
		add("network.connect_timeout", "must not be negative")
	}
	if c.Network.IdleTimeout.Duration < 0 {
		add("network.idle_timeout", "must not be negative")
	}
	if c.Network.MaxRetries < 0 || c.Network.MaxRetries > MaxRetriesLimit {
		add("network.max_retries", "must be between 0 and %d", MaxRetriesLimit)
	}
	if c.Network.RequestsPerMinute < 0 {
		add("network.requests_per_minute", "must not be negative (0 disables pacing)")
	}

	if c.UI.WordWrap < 0 {
		add("ui.word_wrap", "must not be negative")
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		add("log.level", "invalid level '%s'", c.Log.Level)
	}

	if c.Roster.Watch && c.Roster.Path == "" {
		add("roster.watch", "requires roster.path")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
