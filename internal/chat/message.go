// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-runewidth"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role identifies the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the wire representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "GPT"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// Valid reports whether the role is one of the recognized roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single turn's worth of text. Content is never mutated after
// construction; once appended to a Transcript a Message is immutable.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// TokenCount is the total token usage reported by the API for the
	// exchange that produced this message. Only set on assistant messages.
	TokenCount int `json:"token_count,omitempty"`
}

// NewMessage creates a message with a generated ID.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        "msg_" + uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates an assistant message carrying the token usage
// reported for its exchange.
func NewAssistantMessage(content string, tokens int) Message {
	m := NewMessage(RoleAssistant, content)
	m.TokenCount = tokens
	return m
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return NewMessage(RoleSystem, content)
}

// IsEmpty reports whether the message has no content.
func (m Message) IsEmpty() bool {
	return len(m.Content) == 0
}

// Preview returns the message content truncated to maxWidth display columns.
// Width-aware truncation keeps CJK and other wide characters intact.
func (m Message) Preview(maxWidth int) string {
	if runewidth.StringWidth(m.Content) <= maxWidth {
		return m.Content
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(m.Content, maxWidth, "")
	}
	return runewidth.Truncate(m.Content, maxWidth, "...")
}

// EstimateTokens gives a rough token estimate for the message content.
// Uses the common ~4 characters per token approximation.
func (m Message) EstimateTokens() int {
	return (len(m.Content) + 3) / 4
}
