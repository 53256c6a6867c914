// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth resolves the API credential used for completion calls.
//
// Resolution precedence:
//  1. the OPENAI_API_KEY environment variable
//  2. the trimmed contents of a local key file (open_ai_auth_key.txt)
//
// The credential is not validated up front; an invalid key surfaces as an
// authentication failure on the first completion call.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

const (
	// EnvAPIKey is the environment variable checked first for the API key.
	EnvAPIKey = "OPENAI_API_KEY"

	// DefaultKeyFile is the fallback key file checked when the environment
	// variable is unset.
	DefaultKeyFile = "open_ai_auth_key.txt"
)

// Token returns the API key from the environment or the default key file.
func Token() (string, error) {
	return TokenFromFile(DefaultKeyFile)
}

// TokenFromFile returns the API key from the environment, falling back to
// the trimmed contents of keyFile. An error names both sources so the user
// knows what to fix.
func TokenFromFile(keyFile string) (string, error) {
	if key := strings.TrimSpace(os.Getenv(EnvAPIKey)); key != "" {
		return key, nil
	}

	data, err := os.ReadFile(keyFile)
	if err != nil {
		return "", fmt.Errorf("no API key in $%s and key file unreadable: %w", EnvAPIKey, err)
	}

	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("no API key in $%s and key file %s is empty", EnvAPIKey, keyFile)
	}

	return key, nil
}

// Fingerprint returns a short sha256-based identifier for a key, safe to log.
func Fingerprint(key string) string {
	if key == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:4])
}

// Masked returns a display form of the key that never exposes key material.
func Masked(key string) string {
	if key == "" {
		return "[not set]"
	}
	return fmt.Sprintf("[REDACTED, length=%d, fingerprint=%s]", len(key), Fingerprint(key))
}
