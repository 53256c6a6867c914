// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package openai

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Configuration constants for the completions API.
const (
	// DefaultBaseURL is the base URL for the chat completions API.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is the chat model used when the config names none.
	DefaultModel = "gpt-3.5-turbo"

	// DefaultTimeout is the default timeout for API requests.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize caps the response body read. Larger bodies are
	// treated as protocol errors rather than read into memory.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB

	// userAgent identifies the client on the wire.
	userAgent = "chatline/0.1.0"
)

// Shared HTTP client with connection pooling for all completion requests.
var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	},
	Timeout: DefaultTimeout,
}

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

// Error variables the chat loop distinguishes with errors.Is.
var (
	// ErrNotConfigured indicates no API key was resolved. Fatal at first
	// use; every call fails until the environment is fixed.
	ErrNotConfigured = errors.New("API key not configured")

	// ErrAuthFailed indicates the server rejected the credential.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")
)

// APIError is a server-reported rejection carrying the server's detail text.
type APIError struct {
	Code    string
	Message string
	Status  int
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error [%s] (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("API error (HTTP %d): %s", e.Status, e.Message)
}

// DecodeError indicates the response body did not match the expected shape.
// Distinct from APIError: it flags a protocol mismatch, not a request the
// server rejected.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("response decode: %s: %v", e.Reason, e.Err)
	}
	return "response decode: " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// =============================================================================
// CLIENT
// =============================================================================

// Client performs synchronous chat completion calls. The full credential is
// sent with every call and no state is kept between calls.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	params     Params
	httpClient *http.Client
	limiter    *rate.Limiter
	observer   Observer
}

// NewClient creates a client with the given API key. An empty key is
// allowed; calls will fail with ErrNotConfigured until one is set.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		params:     Params{Temperature: 0.7},
		httpClient: sharedHTTPClient,
		// Politeness limit: at most two calls per second, no bursts.
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
	}
}

// WithBaseURL sets a custom base URL for the API.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = strings.TrimSuffix(url, "/")
	return c
}

// WithModel sets the model used by BuildDefaultRequest and Chat.
func (c *Client) WithModel(model string) *Client {
	if model != "" {
		c.model = model
	}
	return c
}

// WithParams sets the generation parameters sent with each request.
func (c *Client) WithParams(params Params) *Client {
	c.params = params
	return c
}

// WithTimeout sets the request timeout. This swaps in a dedicated HTTP
// client so the shared pooled client keeps its default.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	pooled := *sharedHTTPClient
	pooled.Timeout = timeout
	c.httpClient = &pooled
	return c
}

// WithObserver installs a wire observer invoked with raw request and
// response bodies around each call.
func (c *Client) WithObserver(obs Observer) *Client {
	c.observer = obs
	return c
}

// Model returns the model identifier the client sends by default.
func (c *Client) Model() string {
	return c.model
}

// Params returns the generation parameters the client sends by default.
func (c *Client) Params() Params {
	return c.params
}

// IsConfigured reports whether the client has an API key.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// =============================================================================
// COMPLETION CALL
// =============================================================================

// Complete sends one fully formed request and returns the parsed response.
// The caller owns retry policy; this performs exactly one exchange.
func (c *Client) Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	if c.observer != nil {
		c.observer.RequestSent(body)
	}

	url := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(httpReq)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	// Status and duration only; never headers or bodies.
	log.Printf("API response: %d %s (%v)", resp.StatusCode, http.StatusText(resp.StatusCode),
		time.Since(start).Round(time.Millisecond))

	respBody, err := readResponse(resp)
	if err != nil {
		return nil, err
	}

	if c.observer != nil {
		c.observer.ResponseReceived(respBody)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp.StatusCode, respBody)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, &DecodeError{Reason: "unexpected body shape", Err: err}
	}
	if len(chatResp.Choices) == 0 {
		return nil, &DecodeError{Reason: "response contained no choices"}
	}

	return &chatResp, nil
}

// Chat is a convenience wrapper that builds a request from the client's
// default model and params and completes it.
func (c *Client) Chat(ctx context.Context, messages []ChatMessage) (*ChatResponse, error) {
	req := ChatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.params.Temperature,
		MaxTokens:   c.params.MaxTokens,
	}
	return c.Complete(ctx, req)
}

// setHeaders sets the required headers. The credential rides on every call.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
}

// readResponse reads the response body with the size cap applied. The
// extra byte distinguishes a body of exactly MaxResponseSize, which is
// valid, from one that overflows the cap.
func readResponse(resp *http.Response) ([]byte, error) {
	limited := io.LimitReader(resp.Body, MaxResponseSize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, &DecodeError{Reason: fmt.Sprintf("response exceeded %d bytes", MaxResponseSize)}
	}
	return body, nil
}

// handleErrorResponse converts HTTP error responses to the error taxonomy.
func handleErrorResponse(statusCode int, body []byte) error {
	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		switch statusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrAuthFailed, envelope.Error.Message)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", ErrRateLimited, envelope.Error.Message)
		default:
			return &APIError{
				Code:    envelope.Error.Code,
				Message: envelope.Error.Message,
				Status:  statusCode,
			}
		}
	}

	// Unparseable error body: still map the well-known statuses.
	switch statusCode {
	case http.StatusUnauthorized:
		return ErrAuthFailed
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return &APIError{
			Message: strings.TrimSpace(string(body)),
			Status:  statusCode,
		}
	}
}
