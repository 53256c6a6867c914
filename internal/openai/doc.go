// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package openai implements the chat-completions wire protocol: request
// assembly from a transcript snapshot, the HTTP client that performs one
// synchronous exchange per turn, and the error taxonomy the chat loop
// relies on to tell configuration, transport, server, and protocol
// failures apart.
//
// The remote API is stateless. Every call carries the full message history
// and the full credential; nothing is cached or retried here beyond a
// client-side politeness rate limit.
package openai
