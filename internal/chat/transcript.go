// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "fmt"

// =============================================================================
// TRANSCRIPT TYPE
// =============================================================================

// Transcript is the ordered history of all messages since the last clear.
// Insertion order is the conversation order sent to the remote API, so no
// reordering or deduplication is ever performed.
//
// The chat loop is single-threaded; Transcript is not safe for concurrent
// use and does not need to be.
type Transcript struct {
	messages []Message
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{messages: make([]Message, 0)}
}

// =============================================================================
// MUTATION
// =============================================================================

// Append adds msg as the new last element.
func (t *Transcript) Append(msg Message) {
	t.messages = append(t.messages, msg)
}

// AppendUser creates a user message from content, appends it, and returns it.
func (t *Transcript) AppendUser(content string) Message {
	msg := NewUserMessage(content)
	t.Append(msg)
	return msg
}

// AppendAssistant creates an assistant message with its reported token usage,
// appends it, and returns it.
func (t *Transcript) AppendAssistant(content string, tokens int) Message {
	msg := NewAssistantMessage(content, tokens)
	t.Append(msg)
	return msg
}

// Clear removes all messages. Subsequent requests carry no prior context.
func (t *Transcript) Clear() {
	t.messages = t.messages[:0]
}

// DropLast removes the most recent message, if any, and reports whether a
// message was removed. Used by the roll-back-on-failure turn policy.
func (t *Transcript) DropLast() bool {
	if len(t.messages) == 0 {
		return false
	}
	t.messages = t.messages[:len(t.messages)-1]
	return true
}

// =============================================================================
// READ ACCESS
// =============================================================================

// Snapshot returns a copy of all current messages in chronological order.
// The copy cannot be used to mutate the transcript.
func (t *Transcript) Snapshot() []Message {
	snap := make([]Message, len(t.messages))
	copy(snap, t.messages)
	return snap
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	return len(t.messages)
}

// IsEmpty reports whether the transcript holds no messages.
func (t *Transcript) IsEmpty() bool {
	return len(t.messages) == 0
}

// Last returns the most recent message and true, or a zero Message and false
// when the transcript is empty.
func (t *Transcript) Last() (Message, bool) {
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// History returns one preview line per message in chronological order,
// numbered and truncated to maxWidth display cells.
func (t *Transcript) History(maxWidth int) []string {
	lines := make([]string, 0, len(t.messages))
	for i, msg := range t.messages {
		lines = append(lines, fmt.Sprintf("%d. %s: %s", i+1, msg.Role.DisplayName(), msg.Preview(maxWidth)))
	}
	return lines
}

// EstimateTokens estimates the total token count of the transcript, with a
// small per-message overhead for the wire framing.
func (t *Transcript) EstimateTokens() int {
	total := 0
	for _, msg := range t.messages {
		total += msg.EstimateTokens() + 4
	}
	return total
}
