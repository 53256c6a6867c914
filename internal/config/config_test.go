// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func clearEnvOverrides(t *testing.T) {
	t.Helper()
	t.Setenv("CHATLINE_MODEL", "")
	t.Setenv("CHATLINE_BASE_URL", "")
	t.Setenv("CHATLINE_KEY_FILE", "")
	t.Setenv("CHATLINE_VERBOSE", "")
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.DefaultModel != "gpt-3.5-turbo" {
		t.Errorf("DefaultModel = %q, want gpt-3.5-turbo", cfg.DefaultModel)
	}
	if cfg.API.BaseURL != "https://api.openai.com/v1" {
		t.Errorf("API.BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.Chat.Temperature != 0.7 {
		t.Errorf("Chat.Temperature = %g, want 0.7", cfg.Chat.Temperature)
	}
	if !cfg.Chat.RetainFailedTurns {
		t.Error("Chat.RetainFailedTurns should default to true")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromPath(t *testing.T) {
	clearEnvOverrides(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
default_model = "gpt-4"

[api]
base_url = "https://example.test/v1"
timeout_secs = 30

[chat]
temperature = 0.2
max_tokens = 512

[ui]
verbose = true
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}

	if cfg.DefaultModel != "gpt-4" {
		t.Errorf("DefaultModel = %q, want gpt-4", cfg.DefaultModel)
	}
	if cfg.API.BaseURL != "https://example.test/v1" {
		t.Errorf("API.BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.Chat.MaxTokens != 512 {
		t.Errorf("Chat.MaxTokens = %d, want 512", cfg.Chat.MaxTokens)
	}
	if !cfg.UI.Verbose {
		t.Error("UI.Verbose should be true")
	}
	// Unset fields picked up defaults.
	if cfg.API.KeyFile != "open_ai_auth_key.txt" {
		t.Errorf("API.KeyFile = %q, want default", cfg.API.KeyFile)
	}
}

func TestLoadFromPath_ZeroTemperatureMeansDefault(t *testing.T) {
	clearEnvOverrides(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[chat]
temperature = 0.0
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	// 0 follows the same "0 means default" convention as max_tokens.
	if cfg.Chat.Temperature != 0.7 {
		t.Errorf("Chat.Temperature = %g, want the 0.7 default", cfg.Chat.Temperature)
	}
}

func TestLoadFromPath_FixesPermissions(t *testing.T) {
	clearEnvOverrides(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`default_model = "m"`), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFromPath(path); err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions = %o, want 0600", perm)
	}
}

func TestLoadFromPath_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("default_model = [broken"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFromPath(path); err == nil {
		t.Error("LoadFromPath() should reject malformed TOML")
	}
}

func TestSaveAndReload(t *testing.T) {
	clearEnvOverrides(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	cfg.DefaultModel = "gpt-4o-mini"
	cfg.Chat.RetainFailedTurns = false

	if err := SaveTo(cfg, path); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("saved permissions = %o, want 0600", perm)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if loaded.DefaultModel != "gpt-4o-mini" {
		t.Errorf("DefaultModel = %q after round trip", loaded.DefaultModel)
	}
	if loaded.Chat.RetainFailedTurns {
		t.Error("RetainFailedTurns = true after round trip, want false")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "empty model",
			mutate:  func(c *Config) { c.DefaultModel = "" },
			wantErr: "default_model",
		},
		{
			name:    "bad base URL",
			mutate:  func(c *Config) { c.API.BaseURL = "not a url" },
			wantErr: "api.base_url",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.API.TimeoutSecs = 0 },
			wantErr: "api.timeout_secs",
		},
		{
			name:    "temperature out of range",
			mutate:  func(c *Config) { c.Chat.Temperature = 3.5 },
			wantErr: "chat.temperature",
		},
		{
			name:    "negative max tokens",
			mutate:  func(c *Config) { c.Chat.MaxTokens = -1 },
			wantErr: "chat.max_tokens",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Validate() = %q, want mention of %q", err, tc.wantErr)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("CHATLINE_MODEL", "gpt-4-turbo")
	t.Setenv("CHATLINE_BASE_URL", "http://localhost:8080/v1")
	t.Setenv("CHATLINE_KEY_FILE", "/tmp/key.txt")
	t.Setenv("CHATLINE_VERBOSE", "true")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.DefaultModel != "gpt-4-turbo" {
		t.Errorf("DefaultModel = %q", cfg.DefaultModel)
	}
	if cfg.API.BaseURL != "http://localhost:8080/v1" {
		t.Errorf("API.BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.KeyFile != "/tmp/key.txt" {
		t.Errorf("API.KeyFile = %q", cfg.API.KeyFile)
	}
	if !cfg.UI.Verbose {
		t.Error("UI.Verbose should be true")
	}
}

func TestApplyEnvOverrides_EmptyIgnored(t *testing.T) {
	clearEnvOverrides(t)

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.DefaultModel != "gpt-3.5-turbo" {
		t.Errorf("empty env vars should not override: DefaultModel = %q", cfg.DefaultModel)
	}
}
