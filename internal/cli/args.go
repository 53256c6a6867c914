// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// args.go - Argument parsing for the chatline command line.
//
// Supported flag formats:
//
//	--flag value     Long flag with space-separated value
//	--flag=value     Long flag with equals sign
//	-f value         Short flag with space-separated value
//	--flag           Boolean flag (no value)

package cli

import (
	"strings"
)

// Args holds the parsed command-line options.
type Args struct {
	// Model overrides the configured chat model.
	Model string
	// ConfigPath overrides the default config file location.
	ConfigPath string
	// Verbose dumps raw request and response bodies around each call.
	Verbose bool
	// Quiet suppresses hints and status lines.
	Quiet bool
	// ShowVersion prints the version and exits.
	ShowVersion bool
	// ShowHelp prints usage and exits.
	ShowHelp bool
}

// ParseArgs parses raw command-line arguments into Args. Unknown flags are
// ignored rather than rejected so older invocations keep working.
func ParseArgs(raw []string) Args {
	var args Args

	i := 0
	for i < len(raw) {
		arg := raw[i]

		name := arg
		value := ""
		hasValue := false
		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			parts := strings.SplitN(arg, "=", 2)
			name = parts[0]
			value = parts[1]
			hasValue = true
		}

		switch name {
		case "--model", "-m":
			if !hasValue && i+1 < len(raw) {
				value = raw[i+1]
				i++
			}
			args.Model = value

		case "--config":
			if !hasValue && i+1 < len(raw) {
				value = raw[i+1]
				i++
			}
			args.ConfigPath = value

		case "--verbose", "-v":
			args.Verbose = true

		case "--quiet", "-q":
			args.Quiet = true

		case "--version":
			args.ShowVersion = true

		case "--help", "-h":
			args.ShowHelp = true
		}

		i++
	}

	return args
}

// Usage returns the command usage text.
func Usage() string {
	return `chatline - interactive chat with an OpenAI-compatible completions API

Usage:
  chatline [flags]

Flags:
  -m, --model NAME    Use a specific model (overrides config)
      --config PATH   Use a specific config file
  -v, --verbose       Dump raw request/response bodies
  -q, --quiet         Minimal output
      --version       Print version and exit
  -h, --help          Show this help

Interactive controls:
  q          Exit the session
  c          Clear the chat history
  (empty)    Show the usage hint

Configuration:
  ~/.chatline/config.toml, overridden by CHATLINE_MODEL, CHATLINE_BASE_URL,
  CHATLINE_KEY_FILE, and CHATLINE_VERBOSE.

Credentials:
  OPENAI_API_KEY, or the key file named in the config.
`
}
