// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jeranaias/chatline/internal/auth"
	"github.com/jeranaias/chatline/internal/chat"
	"github.com/jeranaias/chatline/internal/config"
	"github.com/jeranaias/chatline/internal/openai"
)

// fakeCompleter records each request and returns scripted replies or a
// scripted error.
type fakeCompleter struct {
	requests []openai.ChatRequest
	replies  []string
	tokens   int
	err      error
}

func (f *fakeCompleter) Complete(ctx context.Context, req openai.ChatRequest) (*openai.ChatResponse, error) {
	f.requests = append(f.requests, req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}

	reply := "ok"
	if n := len(f.requests) - 1; n < len(f.replies) {
		reply = f.replies[n]
	}
	tokens := f.tokens
	if tokens == 0 {
		tokens = 10
	}
	return &openai.ChatResponse{
		Choices: []openai.Choice{{Message: openai.NewAssistantMessage(reply)}},
		Usage:   openai.Usage{TotalTokens: tokens},
	}, nil
}

func newTestSession(completer Completer) (*ChatSession, *bytes.Buffer) {
	cfg := config.Default()
	cfg.UI.Markdown = false
	session := NewChatSession(completer, cfg)
	var out bytes.Buffer
	session.Out = &out
	return session, &out
}

// =============================================================================
// TURN PROCESSING
// =============================================================================

func TestHandleLine_TranscriptGrowsTwoPerTurn(t *testing.T) {
	fake := &fakeCompleter{replies: []string{"one", "two", "three"}}
	session, _ := newTestSession(fake)
	ctx := context.Background()

	for i, input := range []string{"first", "second", "third"} {
		if got := session.HandleLine(ctx, input); got != ActionContinue {
			t.Fatalf("HandleLine() = %v, want ActionContinue", got)
		}
		want := 2 * (i + 1)
		if session.Transcript.Len() != want {
			t.Fatalf("after turn %d transcript has %d messages, want %d", i+1, session.Transcript.Len(), want)
		}
	}

	// Order: user/assistant alternating.
	msgs := session.Transcript.Snapshot()
	for i, msg := range msgs {
		wantRole := chat.RoleUser
		if i%2 == 1 {
			wantRole = chat.RoleAssistant
		}
		if msg.Role != wantRole {
			t.Errorf("message %d role = %v, want %v", i, msg.Role, wantRole)
		}
	}
}

func TestHandleLine_FullHistorySentEachTurn(t *testing.T) {
	fake := &fakeCompleter{}
	session, _ := newTestSession(fake)
	ctx := context.Background()

	session.HandleLine(ctx, "first")
	session.HandleLine(ctx, "second")

	if len(fake.requests) != 2 {
		t.Fatalf("completer saw %d requests, want 2", len(fake.requests))
	}
	// First call: just the user message. Second: user, assistant, user.
	if got := len(fake.requests[0].Messages); got != 1 {
		t.Errorf("first request carried %d messages, want 1", got)
	}
	if got := len(fake.requests[1].Messages); got != 3 {
		t.Errorf("second request carried %d messages, want 3", got)
	}
	if fake.requests[1].Messages[2].Content != "second" {
		t.Errorf("second request last message = %q, want the new user input", fake.requests[1].Messages[2].Content)
	}
}

func TestHandleLine_ReplyPrintedWithTokenCount(t *testing.T) {
	fake := &fakeCompleter{replies: []string{"Hello back"}, tokens: 1234}
	session, out := newTestSession(fake)

	session.HandleLine(context.Background(), "Hello")

	got := out.String()
	if !strings.Contains(got, "GPT") {
		t.Errorf("output %q missing reply label", got)
	}
	// Thousands separator in the usage count.
	if !strings.Contains(got, "[1,234 tokens used for this context and prompt]:") {
		t.Errorf("output %q missing formatted token usage", got)
	}
	if !strings.Contains(got, "Hello back") {
		t.Errorf("output %q missing reply text", got)
	}
}

func TestHandleLine_SendingNotice(t *testing.T) {
	fake := &fakeCompleter{}
	session, out := newTestSession(fake)

	session.HandleLine(context.Background(), "hi")

	if !strings.Contains(out.String(), "[Sending chat to gpt-3.5-turbo...]") {
		t.Errorf("output %q missing sending notice", out.String())
	}

	// Quiet mode suppresses it.
	out.Reset()
	session.Quiet = true
	session.HandleLine(context.Background(), "hi again")
	if strings.Contains(out.String(), "[Sending chat to") {
		t.Errorf("quiet output %q should not contain sending notice", out.String())
	}
}

// =============================================================================
// FAILED TURNS
// =============================================================================

func TestHandleLine_FailedTurnRetainsUserMessage(t *testing.T) {
	fake := &fakeCompleter{err: errors.New("boom")}
	session, _ := newTestSession(fake)

	session.HandleLine(context.Background(), "doomed")

	// Default policy keeps the user message; no assistant reply appears.
	if session.Transcript.Len() != 1 {
		t.Fatalf("transcript has %d messages after failed turn, want 1", session.Transcript.Len())
	}
	last, _ := session.Transcript.Last()
	if last.Role != chat.RoleUser || last.Content != "doomed" {
		t.Errorf("retained message = %+v, want the user message", last)
	}
}

func TestHandleLine_FailedTurnRollbackPolicy(t *testing.T) {
	fake := &fakeCompleter{err: errors.New("boom")}
	session, _ := newTestSession(fake)
	session.Config.Chat.RetainFailedTurns = false

	session.HandleLine(context.Background(), "doomed")

	if !session.Transcript.IsEmpty() {
		t.Errorf("transcript has %d messages, want rollback to empty", session.Transcript.Len())
	}
}

func TestHandleLine_FailedTurnDoesNotCountStats(t *testing.T) {
	fake := &fakeCompleter{err: openai.ErrRateLimited}
	session, _ := newTestSession(fake)

	session.HandleLine(context.Background(), "hi")

	if session.Turns != 0 || session.TotalTokens != 0 {
		t.Errorf("failed turn counted: turns=%d tokens=%d", session.Turns, session.TotalTokens)
	}
}

func TestHandleLine_ErrorsGoToErrWriter(t *testing.T) {
	fake := &fakeCompleter{err: errors.New("boom")}
	session, out := newTestSession(fake)
	var errOut bytes.Buffer
	session.Err = &errOut

	session.HandleLine(context.Background(), "doomed")

	if !strings.Contains(errOut.String(), "[Error]") {
		t.Errorf("error output %q missing error label", errOut.String())
	}
	if strings.Contains(out.String(), "[Error]") {
		t.Errorf("standard output %q should not carry the error", out.String())
	}
}

func TestHandleLine_RateLimitWarnsInsteadOfErroring(t *testing.T) {
	fake := &fakeCompleter{err: openai.ErrRateLimited}
	session, _ := newTestSession(fake)
	var errOut bytes.Buffer
	session.Err = &errOut

	session.HandleLine(context.Background(), "hi")

	if !strings.Contains(errOut.String(), "[Warning]") {
		t.Errorf("error output %q missing warning label", errOut.String())
	}
	if strings.Contains(errOut.String(), "[Error]") {
		t.Errorf("rate limiting labeled as error: %q", errOut.String())
	}
}

func TestHandleLine_CancelledTurnDoesNotPoisonSession(t *testing.T) {
	fake := &fakeCompleter{replies: []string{"", "recovered"}}
	session, out := newTestSession(fake)
	var errOut bytes.Buffer
	session.Err = &errOut

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	session.HandleLine(cancelled, "interrupted")

	// The cancelled turn failed but retained its user message.
	if session.Transcript.Len() != 1 {
		t.Fatalf("transcript has %d messages after cancelled turn, want 1", session.Transcript.Len())
	}

	// The next turn runs on a fresh context and succeeds.
	out.Reset()
	session.HandleLine(context.Background(), "try again")

	if !strings.Contains(out.String(), "recovered") {
		t.Errorf("output %q missing reply from the turn after cancellation", out.String())
	}
	last := fake.requests[len(fake.requests)-1]
	if len(last.Messages) != 2 {
		t.Errorf("post-cancel request carried %d messages, want retained + new", len(last.Messages))
	}
}

func TestHandleLine_VerboseSendingNoticeShowsContextEstimate(t *testing.T) {
	fake := &fakeCompleter{}
	session, out := newTestSession(fake)
	session.Config.UI.Verbose = true

	session.HandleLine(context.Background(), "hello there")

	if !strings.Contains(out.String(), "context tokens)]") {
		t.Errorf("verbose output %q missing context size estimate", out.String())
	}
}

// =============================================================================
// CONTROL INPUTS
// =============================================================================

func TestHandleLine_QuitControl(t *testing.T) {
	fake := &fakeCompleter{}
	session, out := newTestSession(fake)

	if got := session.HandleLine(context.Background(), "q"); got != ActionExit {
		t.Fatalf("HandleLine(q) = %v, want ActionExit", got)
	}
	if !strings.Contains(out.String(), "[Exiting]") {
		t.Errorf("output %q missing exit notice", out.String())
	}
	if len(fake.requests) != 0 {
		t.Error("control input must not reach the API")
	}
}

func TestHandleLine_ClearControl(t *testing.T) {
	fake := &fakeCompleter{}
	session, out := newTestSession(fake)
	ctx := context.Background()

	session.HandleLine(ctx, "remember this")
	if session.Transcript.Len() != 2 {
		t.Fatalf("setup failed: transcript has %d messages", session.Transcript.Len())
	}

	if got := session.HandleLine(ctx, "c"); got != ActionContinue {
		t.Fatalf("HandleLine(c) = %v, want ActionContinue", got)
	}
	if !session.Transcript.IsEmpty() {
		t.Errorf("transcript has %d messages after clear, want 0", session.Transcript.Len())
	}
	if !strings.Contains(out.String(), "[Clearing chat history]") {
		t.Errorf("output %q missing clear notice", out.String())
	}

	// The turn after a clear starts a fresh conversation on the wire.
	session.HandleLine(ctx, "fresh start")
	last := fake.requests[len(fake.requests)-1]
	if len(last.Messages) != 1 || last.Messages[0].Content != "fresh start" {
		t.Errorf("post-clear request carried %+v, want only the new message", last.Messages)
	}
}

func TestHandleLine_EmptyInputShowsHint(t *testing.T) {
	fake := &fakeCompleter{}
	session, out := newTestSession(fake)

	for _, line := range []string{"", "   ", "\t"} {
		out.Reset()
		if got := session.HandleLine(context.Background(), line); got != ActionContinue {
			t.Fatalf("HandleLine(%q) = %v, want ActionContinue", line, got)
		}
		if !strings.Contains(out.String(), helpText) {
			t.Errorf("output for %q missing usage hint", line)
		}
	}
	if len(fake.requests) != 0 {
		t.Error("empty input must not reach the API")
	}
	if !session.Transcript.IsEmpty() {
		t.Error("empty input must not touch the transcript")
	}
}

func TestHandleLine_ControlsRequireExactMatch(t *testing.T) {
	fake := &fakeCompleter{}
	session, _ := newTestSession(fake)
	ctx := context.Background()

	// Words containing the control letters are ordinary messages.
	session.HandleLine(ctx, "quit")
	session.HandleLine(ctx, "can you help")

	if len(fake.requests) != 2 {
		t.Errorf("completer saw %d requests, want 2", len(fake.requests))
	}

	// Surrounding whitespace still matches a control.
	if got := session.HandleLine(ctx, "  q  "); got != ActionExit {
		t.Errorf("HandleLine(padded q) = %v, want ActionExit", got)
	}
}

// =============================================================================
// WELCOME BANNER
// =============================================================================

func TestPrintWelcome_MasksCredential(t *testing.T) {
	const key = "sk-super-secret-key-material"

	fake := &fakeCompleter{}
	session, out := newTestSession(fake)
	session.KeyDisplay = auth.Masked(key)

	printWelcome(session)

	got := out.String()
	if !strings.Contains(got, "REDACTED") {
		t.Errorf("banner %q missing masked key display", got)
	}
	if strings.Contains(got, key) {
		t.Error("banner leaked key material")
	}
	if !strings.Contains(got, helpText) {
		t.Errorf("banner %q missing usage hint", got)
	}
}

// =============================================================================
// ERROR DESCRIPTIONS
// =============================================================================

func TestDescribeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not configured", openai.ErrNotConfigured, "OPENAI_API_KEY"},
		{"auth failed", openai.ErrAuthFailed, "rejected the API key"},
		{"rate limited", openai.ErrRateLimited, "rate limited"},
		{"server rejection", &openai.APIError{Status: 400, Message: "bad"}, "rejected the request"},
		{"decode failure", &openai.DecodeError{Reason: "no choices"}, "parse the server response"},
		{"transport", errors.New("send request: connection refused"), "request failed"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := describeError(tc.err)
			if !strings.Contains(got, tc.want) {
				t.Errorf("describeError(%v) = %q, want mention of %q", tc.err, got, tc.want)
			}
		})
	}
}

// =============================================================================
// ARG PARSING
// =============================================================================

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name string
		raw  []string
		want Args
	}{
		{"empty", nil, Args{}},
		{"model long", []string{"--model", "gpt-4"}, Args{Model: "gpt-4"}},
		{"model short", []string{"-m", "gpt-4"}, Args{Model: "gpt-4"}},
		{"model equals", []string{"--model=gpt-4"}, Args{Model: "gpt-4"}},
		{"verbose and quiet", []string{"-v", "-q"}, Args{Verbose: true, Quiet: true}},
		{"config path", []string{"--config", "/tmp/c.toml"}, Args{ConfigPath: "/tmp/c.toml"}},
		{"version", []string{"--version"}, Args{ShowVersion: true}},
		{"help", []string{"-h"}, Args{ShowHelp: true}},
		{"unknown ignored", []string{"--bogus", "--model", "m"}, Args{Model: "m"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ParseArgs(tc.raw); got != tc.want {
				t.Errorf("ParseArgs(%v) = %+v, want %+v", tc.raw, got, tc.want)
			}
		})
	}
}
