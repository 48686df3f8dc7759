package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

var (
	// ErrCompletionFailed matches every failure of the completion call.
	ErrCompletionFailed = errors.New("completion failed")
)

// CompletionUserMessage is the single message shown to users for any
// completion failure.
const CompletionUserMessage = "API Key missing or invalid. Please check your Groq console."

// ErrorKind classifies completion failures.
type ErrorKind string

const (
	KindAuth      ErrorKind = "auth"
	KindRateLimit ErrorKind = "rate_limit"
	KindTransport ErrorKind = "transport"
	KindService   ErrorKind = "service"
	KindMalformed ErrorKind = "malformed_response"
	KindUnknown   ErrorKind = "unknown"
)

// CompletionError keeps the cause of a failed completion call.
type CompletionError struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *CompletionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("completion failed (%s, status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("completion failed (%s): %v", e.Kind, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

func (e *CompletionError) Is(target error) bool { return target == ErrCompletionFailed }

// ChatCompleter is the part of the go-openai client the completion client uses.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// CompletionClient sends one prompt to an OpenAI-compatible chat-completion
// endpoint and returns the generated text.
type CompletionClient struct {
	client  ChatCompleter
	model   string
	timeout time.Duration
	hasKey  bool
}

// NewCompletionClient builds a client for baseURL authenticated by apiKey.
// An empty key is accepted here and reported when Complete is called.
func NewCompletionClient(apiKey, baseURL, model string, timeout time.Duration) *CompletionClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &CompletionClient{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
		hasKey:  apiKey != "",
	}
}

// NewCompletionClientWith wraps an existing ChatCompleter.
func NewCompletionClientWith(client ChatCompleter, model string, timeout time.Duration) *CompletionClient {
	return &CompletionClient{client: client, model: model, timeout: timeout, hasKey: true}
}

// Model returns the default model identifier.
func (c *CompletionClient) Model() string {
	return c.model
}

// Complete performs a single round-trip. model overrides the default when
// non-empty. Failures are returned as *CompletionError.
func (c *CompletionClient) Complete(ctx context.Context, system, user, model string) (string, error) {
	if !c.hasKey {
		return "", &CompletionError{Kind: KindAuth, Err: errors.New("api key not configured")}
	}
	if model == "" {
		model = c.model
	}

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: system,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: user,
			},
		},
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classifyCompletionError(err)
	}
	if len(resp.Choices) == 0 {
		return "", &CompletionError{Kind: KindMalformed, Err: errors.New("response has no choices")}
	}
	return resp.Choices[0].Message.Content, nil
}

func classifyCompletionError(err error) *CompletionError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &CompletionError{Kind: kindForStatus(apiErr.HTTPStatusCode), StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &CompletionError{Kind: kindForStatus(reqErr.HTTPStatusCode), StatusCode: reqErr.HTTPStatusCode, Err: err}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return &CompletionError{Kind: KindMalformed, Err: err}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &CompletionError{Kind: KindTransport, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &CompletionError{Kind: KindTransport, Err: err}
	}
	return &CompletionError{Kind: KindUnknown, Err: err}
}

func kindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status >= 500:
		return KindService
	case status >= 400:
		return KindUnknown
	default:
		return KindMalformed
	}
}

// CompletionKind returns the kind of a completion failure, or "" when err is
// not one.
func CompletionKind(err error) ErrorKind {
	var cErr *CompletionError
	if errors.As(err, &cErr) {
		return cErr.Kind
	}
	return ""
}
