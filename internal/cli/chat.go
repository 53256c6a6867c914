// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat loop for the chatline CLI.
//
// The loop reads one line per turn. Control inputs are matched against the
// trimmed line before anything touches the transcript:
//
//	q          exit the session
//	c          clear the chat history
//	(empty)    reprint the usage hint
//
// Everything else becomes a user message: it is appended to the transcript,
// the complete transcript is sent to the completions API, and the reply is
// appended and printed with its token usage. A failed call prints an error
// identifying the failing step and leaves the transcript policy to
// chat.retain_failed_turns.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterh/liner"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jeranaias/chatline/internal/chat"
	"github.com/jeranaias/chatline/internal/config"
	"github.com/jeranaias/chatline/internal/openai"
)

// helpText is the hint shown at startup and on empty input.
const helpText = "Enter text. Enter `c` to clear the chat history and `q` to exit."

// =============================================================================
// COMPLETER
// =============================================================================

// Completer is the slice of the API client the chat loop depends on.
// Tests substitute a fake; production wires *openai.Client.
type Completer interface {
	Complete(ctx context.Context, req openai.ChatRequest) (*openai.ChatResponse, error)
}

// Action tells the REPL what to do after a handled line.
type Action int

const (
	// ActionContinue keeps the loop running.
	ActionContinue Action = iota
	// ActionExit ends the session.
	ActionExit
)

// =============================================================================
// SESSION STATE
// =============================================================================

// ChatSession holds the state for an interactive chat session.
type ChatSession struct {
	// Transcript is the in-memory conversation, the single source of
	// truth for what the API sees each turn.
	Transcript *chat.Transcript

	// Completer performs the completion calls.
	Completer Completer

	// Config drives model, generation params, and output behavior.
	Config *config.Config

	Model string
	Quiet bool

	// Out receives session output; Err receives turn errors. Tests
	// capture both.
	Out io.Writer
	Err io.Writer

	// KeyDisplay is the masked credential shown in the welcome banner.
	// Never holds key material.
	KeyDisplay string

	// Session tracking.
	StartTime   time.Time
	Turns       int
	TotalTokens int

	// numPrinter formats token counts with thousands separators.
	numPrinter *message.Printer
}

// NewChatSession creates a chat session around a completer and config.
func NewChatSession(completer Completer, cfg *config.Config) *ChatSession {
	return &ChatSession{
		Transcript: chat.NewTranscript(),
		Completer:  completer,
		Config:     cfg,
		Model:      cfg.DefaultModel,
		Out:        os.Stdout,
		Err:        os.Stderr,
		StartTime:  time.Now(),
		numPrinter: message.NewPrinter(language.English),
	}
}

// =============================================================================
// LINE HANDLING
// =============================================================================

// HandleLine processes one line of input. Control inputs are matched
// exactly after trimming; anything else is sent as a chat turn.
func (s *ChatSession) HandleLine(ctx context.Context, line string) Action {
	input := strings.TrimSpace(line)

	switch input {
	case "q":
		fmt.Fprintln(s.Out, commandStyle.Render("[Exiting]"))
		return ActionExit

	case "c":
		s.Transcript.Clear()
		fmt.Fprintln(s.Out, commandStyle.Render("[Clearing chat history]"))
		return ActionContinue

	case "":
		fmt.Fprintln(s.Out, infoStyle.Render(helpText))
		return ActionContinue
	}

	if err := s.processTurn(ctx, input); err != nil {
		// Rate limiting is recoverable; everything else is an error.
		label := errorStyle.Render("[Error]")
		if errors.Is(err, openai.ErrRateLimited) {
			label = warningStyle.Render("[Warning]")
		}
		fmt.Fprintf(s.Err, "%s %s\n", label, describeError(err))
	}
	return ActionContinue
}

// processTurn runs one request/reply exchange. The user message is
// appended first so the request snapshot includes it; on failure the
// retain_failed_turns policy decides whether it stays.
func (s *ChatSession) processTurn(ctx context.Context, input string) error {
	s.Transcript.AppendUser(input)

	req, err := openai.BuildRequest(s.Transcript.Snapshot(), s.Model, openai.Params{
		Temperature: s.Config.Chat.Temperature,
		MaxTokens:   s.Config.Chat.MaxTokens,
	})
	if err != nil {
		s.Transcript.DropLast()
		return fmt.Errorf("build request: %w", err)
	}

	if !s.Quiet {
		notice := fmt.Sprintf("[Sending chat to %s...]", s.Model)
		if s.Config.UI.Verbose {
			notice = fmt.Sprintf("[Sending chat to %s... (~%d context tokens)]",
				s.Model, s.Transcript.EstimateTokens())
		}
		fmt.Fprintln(s.Out, infoStyle.Render(notice))
	}

	resp, err := s.Completer.Complete(ctx, req)
	if err != nil {
		if !s.Config.Chat.RetainFailedTurns {
			s.Transcript.DropLast()
		}
		return err
	}

	content := resp.GetContent()
	tokens := resp.Usage.TotalTokens
	s.Transcript.AppendAssistant(content, tokens)
	s.Turns++
	s.TotalTokens += tokens

	s.printReply(content, tokens)
	return nil
}

// printReply prints the assistant reply with its token usage.
func (s *ChatSession) printReply(content string, tokens int) {
	if s.Config.UI.ShowTokens {
		fmt.Fprintf(s.Out, "%s %s ",
			replyLabelStyle.Render("GPT"),
			dimStyle.Render(s.numPrinter.Sprintf("[%d tokens used for this context and prompt]:", tokens)))
	} else {
		fmt.Fprintf(s.Out, "%s ", replyLabelStyle.Render("GPT:"))
	}
	displayReply(s.Out, content, s.Config.UI.Markdown)
}

// describeError turns a completion error into a user-facing message that
// names the failing step.
func describeError(err error) string {
	switch {
	case errors.Is(err, openai.ErrNotConfigured):
		return "no API key configured; set OPENAI_API_KEY or create the key file"
	case errors.Is(err, openai.ErrAuthFailed):
		return fmt.Sprintf("the server rejected the API key: %v", err)
	case errors.Is(err, openai.ErrRateLimited):
		return fmt.Sprintf("rate limited by the server; wait and retry: %v", err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("the server rejected the request: %v", apiErr)
	}

	var decodeErr *openai.DecodeError
	if errors.As(err, &decodeErr) {
		return fmt.Sprintf("could not parse the server response: %v", decodeErr)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Sprintf("request cancelled: %v", err)
	}

	return fmt.Sprintf("request failed: %v", err)
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// HandleChatCommand runs the interactive chat loop until the user exits.
func HandleChatCommand(session *ChatSession, watcher *config.Watcher) error {
	// No banner when input is piped; the transcript loop still works.
	if !session.Quiet && IsTTY() {
		printWelcome(session)
	}

	input := NewChatCLI()
	defer input.Close()

	for {
		// Config edits apply at the turn boundary, never mid-call.
		if watcher != nil {
			if cfg := watcher.Latest(); cfg != nil {
				session.Config = cfg
				if session.Model != cfg.DefaultModel {
					session.Model = cfg.DefaultModel
					fmt.Fprintln(session.Out, infoStyle.Render(
						fmt.Sprintf("[Config reloaded, model is now %s]", session.Model)))
				}
			}
		}

		line, err := input.ReadInput(promptStyle.Render("> "))
		if err != nil {
			// Ctrl+C at the prompt or Ctrl+D: exit gracefully.
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Fprintln(session.Out)
				printExitSummary(session)
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		// Ctrl+C during a call cancels that call, not the session. The
		// signal scope ends with the turn, so a later interrupt always
		// hits the context of the call actually in flight.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		action := session.HandleLine(ctx, line)
		stop()

		if action == ActionExit {
			printExitSummary(session)
			return nil
		}
	}
}

// =============================================================================
// DISPLAY
// =============================================================================

// printWelcome prints the startup banner and usage hint.
func printWelcome(session *ChatSession) {
	fmt.Fprintln(session.Out)
	fmt.Fprintln(session.Out, promptStyle.Render("chatline"))
	fmt.Fprintf(session.Out, "%s %s\n",
		infoStyle.Render("Model:"),
		commandStyle.Render(session.Model))
	if session.KeyDisplay != "" {
		fmt.Fprintf(session.Out, "%s %s\n",
			infoStyle.Render("Key:"),
			dimStyle.Render(session.KeyDisplay))
	}
	fmt.Fprintln(session.Out)
	fmt.Fprintln(session.Out, infoStyle.Render(helpText))
	fmt.Fprintln(session.Out)
}

// printExitSummary prints the session summary on exit.
func printExitSummary(session *ChatSession) {
	if session.Turns == 0 {
		fmt.Fprintln(session.Out, infoStyle.Render("Goodbye!"))
		return
	}

	elapsed := time.Since(session.StartTime).Round(time.Second)

	fmt.Fprintln(session.Out)
	fmt.Fprintf(session.Out, "  %s %d\n",
		infoStyle.Render("Turns:"),
		session.Turns)
	fmt.Fprintf(session.Out, "  %s %s\n",
		infoStyle.Render("Tokens:"),
		session.numPrinter.Sprintf("%d", session.TotalTokens))
	fmt.Fprintf(session.Out, "  %s %s\n",
		infoStyle.Render("Duration:"),
		elapsed.String())
	fmt.Fprintln(session.Out)
	fmt.Fprintln(session.Out, infoStyle.Render("Goodbye!"))
}

// VerboseObserver returns an observer that dumps raw wire payloads to
// stderr. Installed when verbose mode is on.
func VerboseObserver() openai.Observer {
	return openai.ObserverFuncs{
		OnRequest: func(body []byte) {
			fmt.Fprintf(os.Stderr, "%s %s\n", dimStyle.Render("[request]"), body)
		},
		OnResponse: func(body []byte) {
			fmt.Fprintf(os.Stderr, "%s %s\n", dimStyle.Render("[response]"), body)
		},
	}
}
