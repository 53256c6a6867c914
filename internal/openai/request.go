// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package openai

import (
	"fmt"

	"github.com/jeranaias/chatline/internal/chat"
)

// =============================================================================
// REQUEST BUILDER
// =============================================================================

// Params are the optional generation parameters carried into a request.
// Zero values are omitted from the wire form.
type Params struct {
	Temperature float64
	MaxTokens   int
}

// BuildRequest turns a transcript snapshot into a completion request.
//
// Pure: same snapshot, model, and params always produce an equivalent
// request; no I/O and no retained references into the snapshot. The empty
// role check is defensive — the transcript's invariants make it unreachable
// in normal operation.
func BuildRequest(snapshot []chat.Message, model string, params Params) (ChatRequest, error) {
	if model == "" {
		return ChatRequest{}, fmt.Errorf("build request: empty model identifier")
	}

	messages := make([]ChatMessage, 0, len(snapshot))
	for i, msg := range snapshot {
		if !msg.Role.Valid() {
			return ChatRequest{}, fmt.Errorf("build request: message %d has invalid role %q", i, msg.Role)
		}
		messages = append(messages, ChatMessage{
			Role:    msg.Role.String(),
			Content: msg.Content,
		})
	}

	return ChatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	}, nil
}
