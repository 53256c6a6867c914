// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// markdown.go - Markdown rendering for assistant replies.
//
// Replies are rendered with glamour only when stdout is a TTY; piped
// output gets the raw text so downstream tools see exactly what the
// server sent.

package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/glamour"
)

// markdownRenderer is the shared glamour renderer for reply output.
var markdownRenderer *glamour.TermRenderer

func init() {
	// Wrap to the terminal, capped so very wide windows stay readable.
	wrap := GetTerminalWidth()
	if wrap > 100 {
		wrap = 100
	}

	var err error
	markdownRenderer, err = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		// Fall back to plain text if renderer initialization fails.
		markdownRenderer = nil
	}
}

// renderMarkdown renders markdown content for terminal display. Returns
// the original content if rendering fails or the renderer is unavailable.
func renderMarkdown(content string) string {
	if markdownRenderer == nil {
		return content
	}
	rendered, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// displayReply prints an assistant reply, markdown-rendered on a TTY and
// verbatim otherwise.
func displayReply(w io.Writer, content string, markdown bool) {
	if markdown && IsStdoutTTY() {
		fmt.Fprint(w, renderMarkdown(content))
		return
	}
	fmt.Fprintln(w, content)
}
