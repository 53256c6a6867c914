// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Centralized styling for chatline output.
//
// All terminal output styles live here so the chat loop and error paths
// stay consistent. Colors are automatically disabled for non-TTY output
// via the lipgloss color profile set in init.

package cli

import (
	"github.com/charmbracelet/lipgloss"
)

// init configures lipgloss color profile based on terminal capabilities.
func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	// promptStyle is used for the input prompt.
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")). // Cyan
			Bold(true)

	// replyLabelStyle is used for the assistant reply label.
	replyLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")). // Purple
			Bold(true)

	// infoStyle is used for hints and status lines.
	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")) // Light gray

	// commandStyle is used for control acknowledgements.
	commandStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")) // Green

	// errorStyle is used for error messages.
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")). // Red
			Bold(true)

	// warningStyle is used for recoverable problems.
	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // Yellow/Orange

	// dimStyle is used for secondary detail like token counts.
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242")) // Dim gray
)
