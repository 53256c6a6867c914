// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for chatline.
//
// Configuration lives in ~/.chatline/config.toml with sensible defaults,
// environment variable overrides, and validation.
package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/chatline/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete chatline configuration.
type Config struct {
	// DefaultModel is the chat model sent with every request.
	DefaultModel string `toml:"default_model"`

	API  APIConfig  `toml:"api"`
	Chat ChatConfig `toml:"chat"`
	UI   UIConfig   `toml:"ui"`
}

// APIConfig configures the completions endpoint and credential lookup.
type APIConfig struct {
	// BaseURL is the completions API base URL.
	BaseURL string `toml:"base_url"`
	// KeyFile is the fallback credential file consulted when the
	// environment variable is unset.
	KeyFile string `toml:"key_file"`
	// TimeoutSecs is the per-request timeout in seconds.
	TimeoutSecs int `toml:"timeout_secs"`
}

// ChatConfig configures generation parameters and turn policy.
type ChatConfig struct {
	// Temperature is the sampling temperature sent with each request.
	// 0 selects the default (0.7), the same "0 means default" convention
	// as MaxTokens; the wire format omits zero values, so an explicit 0
	// would never reach the server anyway.
	Temperature float64 `toml:"temperature"`
	// MaxTokens caps the completion length (0 = server default).
	MaxTokens int `toml:"max_tokens"`
	// RetainFailedTurns keeps the user message in the transcript when a
	// call fails. When false the message is rolled back so a retry does
	// not resend an unanswered turn.
	RetainFailedTurns bool `toml:"retain_failed_turns"`
}

// UIConfig configures the interactive surface.
type UIConfig struct {
	// Markdown renders assistant replies as markdown on a TTY.
	Markdown bool `toml:"markdown"`
	// ShowTokens prints per-turn token usage.
	ShowTokens bool `toml:"show_tokens"`
	// Verbose dumps raw request and response bodies around each call.
	Verbose bool `toml:"verbose"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		DefaultModel: "gpt-3.5-turbo",
		API: APIConfig{
			BaseURL:     "https://api.openai.com/v1",
			KeyFile:     "open_ai_auth_key.txt",
			TimeoutSecs: 60,
		},
		Chat: ChatConfig{
			Temperature:       0.7,
			MaxTokens:         0,
			RetainFailedTurns: true,
		},
		UI: UIConfig{
			Markdown:   true,
			ShowTokens: true,
			Verbose:    false,
		},
	}
}

// =============================================================================
// PATH HELPERS
// =============================================================================

// ConfigDir returns the chatline configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".chatline"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions tightens config file permissions to 0600.
// The file can hold credential paths and should not be world-readable.
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
// LOAD / SAVE
// =============================================================================

// Load loads configuration from the default config file, falling back to
// defaults when no file exists or the home directory cannot be resolved.
// Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}
	cfg := Default()
	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file with full
// validation.
func LoadFromPath(path string) (*Config, error) {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	cfg.fillDefaults()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to the default config file atomically with
// owner-only permissions.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the configuration to path atomically.
func SaveTo(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# chatline configuration file\n")
	buf.WriteString("# Generated by chatline - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// fillDefaults fills in any missing values with defaults.
func (c *Config) fillDefaults() {
	defaults := Default()

	if c.DefaultModel == "" {
		c.DefaultModel = defaults.DefaultModel
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = defaults.API.BaseURL
	}
	if c.API.KeyFile == "" {
		c.API.KeyFile = defaults.API.KeyFile
	}
	if c.API.TimeoutSecs == 0 {
		c.API.TimeoutSecs = defaults.API.TimeoutSecs
	}
	if c.Chat.Temperature == 0 {
		c.Chat.Temperature = defaults.Chat.Temperature
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError is a configuration validation error.
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

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.DefaultModel == "" {
		errs = append(errs, ValidationError{
			Field:   "default_model",
			Message: "must not be empty",
		})
	}

	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "api.base_url",
			Message: fmt.Sprintf("invalid URL %q", c.API.BaseURL),
		})
	}

	if c.API.TimeoutSecs <= 0 || c.API.TimeoutSecs > 600 {
		errs = append(errs, ValidationError{
			Field:   "api.timeout_secs",
			Message: fmt.Sprintf("must be 1-600, got %d", c.API.TimeoutSecs),
		})
	}

	if c.Chat.Temperature < 0 || c.Chat.Temperature > 2 {
		errs = append(errs, ValidationError{
			Field:   "chat.temperature",
			Message: fmt.Sprintf("must be 0.0-2.0, got %g", c.Chat.Temperature),
		})
	}

	if c.Chat.MaxTokens < 0 {
		errs = append(errs, ValidationError{
			Field:   "chat.max_tokens",
			Message: "must be non-negative",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - CHATLINE_MODEL: overrides default_model
//   - CHATLINE_BASE_URL: overrides api.base_url
//   - CHATLINE_KEY_FILE: overrides api.key_file
//   - CHATLINE_VERBOSE: set to "1" or "true" to enable verbose wire dumps
func (c *Config) ApplyEnvOverrides() {
	if model := os.Getenv("CHATLINE_MODEL"); model != "" {
		c.DefaultModel = model
	}
	if base := os.Getenv("CHATLINE_BASE_URL"); base != "" {
		c.API.BaseURL = base
	}
	if keyFile := os.Getenv("CHATLINE_KEY_FILE"); keyFile != "" {
		c.API.KeyFile = keyFile
	}
	if verbose := os.Getenv("CHATLINE_VERBOSE"); verbose != "" {
		c.UI.Verbose = verbose == "1" || strings.EqualFold(verbose, "true")
	}
}

// Clone creates a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
