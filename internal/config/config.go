// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

// Package config loads config.toml and applies defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/wingetpro/wingetpro/internal/platform"
	"github.com/wingetpro/wingetpro/internal/winget"
)

var (
	// ErrInvalidConfig indicates a config value outside its allowed range.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrInvalidDuration indicates a duration that time.ParseDuration rejects.
	ErrInvalidDuration = errors.New("invalid duration")
)

// Defaults.
const (
	DefaultQueryTimeout         = 2 * time.Minute
	DefaultActionTimeout        = 30 * time.Minute
	DefaultMaxConcurrentQueries = 2
	DefaultLogLevel             = "info"
)

// Duration is a time.Duration written as a Go duration string ("90s").
type Duration time.Duration

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDuration, string(text))
	}

	*d = Duration(parsed)

	return nil
}

// MarshalText renders the duration as a string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full configuration.
type Config struct {
	Tool     ToolConfig     `toml:"tool"`
	Actions  ActionsConfig  `toml:"actions"`
	Upgrades UpgradesConfig `toml:"upgrades"`
	Store    StoreConfig    `toml:"store"`
	Log      LogConfig      `toml:"log"`
}

// ToolConfig controls how winget is launched.
type ToolConfig struct {
	Path                 string   `toml:"path"`
	QueryTimeout         Duration `toml:"query_timeout"`
	ActionTimeout        Duration `toml:"action_timeout"`
	MaxConcurrentQueries int      `toml:"max_concurrent_queries"`
}

// ActionsConfig holds flags passed to install, upgrade and uninstall.
type ActionsConfig struct {
	Silent                bool `toml:"silent"`
	AcceptAgreements      bool `toml:"accept_agreements"`
	UninstallWingetSource bool `toml:"uninstall_winget_source"`
	DisableInteractivity  bool `toml:"disable_interactivity"`
}

// UpgradesConfig controls the upgrade listing.
type UpgradesConfig struct {
	IncludeUnknown bool `toml:"include_unknown"`
	IncludePinned  bool `toml:"include_pinned"`
}

// StoreConfig locates the pin store.
type StoreConfig struct {
	PinsFile string `toml:"pins_file"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Tool: ToolConfig{
			Path:                 winget.DefaultTool,
			QueryTimeout:         Duration(DefaultQueryTimeout),
			ActionTimeout:        Duration(DefaultActionTimeout),
			MaxConcurrentQueries: DefaultMaxConcurrentQueries,
		},
		Actions: ActionsConfig{
			AcceptAgreements:      true,
			UninstallWingetSource: true,
		},
		Store: StoreConfig{PinsFile: platform.DefaultPinsPath()},
		Log:   LogConfig{Level: DefaultLogLevel, File: platform.DefaultLogPath()},
	}
}

// Load reads path on top of the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	// #nosec G304 - path is chosen by the user
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := Parse(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes TOML data into cfg, keeping values the data does not set,
// and validates the result. Unknown keys are rejected.
func Parse(data []byte, cfg *Config) error {
	decoder := toml.NewDecoder(strings.NewReader(string(data)))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strict.String())
		}

		return fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.Store.PinsFile = platform.ExpandPath(cfg.Store.PinsFile)
	cfg.Log.File = platform.ExpandPath(cfg.Log.File)

	return cfg.Validate()
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Tool.Path) == "" {
		return fmt.Errorf("%w: tool.path is empty", ErrInvalidConfig)
	}

	if c.Tool.QueryTimeout.Std() <= 0 || c.Tool.ActionTimeout.Std() <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	}

	if c.Tool.MaxConcurrentQueries < 1 {
		return fmt.Errorf("%w: tool.max_concurrent_queries must be at least 1", ErrInvalidConfig)
	}

	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log.level %q", ErrInvalidConfig, c.Log.Level)
	}

	return nil
}

// Encode renders cfg as TOML, used by "wingetpro doctor --config".
func Encode(cfg *Config) ([]byte, error) {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}

	return data, nil
}
