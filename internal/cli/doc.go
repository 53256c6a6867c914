// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the interactive chatline surface: the REPL loop,
// input controls, styled output, and the turn orchestration that ties the
// transcript to the completions client.
//
// The chat loop owns the conversation lifecycle. Each submitted line
// appends a user message, sends the complete transcript to the API, and
// appends the reply on success. Control inputs are checked before any
// message handling:
//
//	q          exit the session
//	c          clear the transcript
//	(empty)    reprint the usage hint
//
// All I/O formatting lives here; the chat and openai packages stay free
// of terminal concerns.
package cli
