// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat contains the conversation state core: messages and the
// transcript that orders them.
//
// The transcript is the single source of truth for a conversation. The
// remote completions API is stateless, so the full transcript is resent
// with every request; anything not in the transcript does not exist as
// far as the model is concerned.
package chat
