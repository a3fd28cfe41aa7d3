package llm

import (
	"context"
	"errors"
)

// ErrUnavailable marks upstream transport failures, timeouts and 5xx
// responses. Recoverable: callers own the retry policy, the clients
// themselves never retry.
var ErrUnavailable = errors.New("llm: completion service unavailable")

// PermanentError indicates an upstream rejection that will not resolve
// with retries (e.g. context length exceeded).
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// Message is one prior conversation turn passed as completion context.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Options carries per-call generation parameters. Each conversation stage
// uses its own model class, token budget and temperature.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float32
}

// Client is the completion gateway consumed by the conversation stages.
// It only focuses on the API call itself; cross-cutting concerns (logging,
// per-call timeouts) are applied via Middleware or by the caller.
type Client interface {
	Name() string
	Close() error
	Complete(ctx context.Context, systemPrompt string, history []Message, input string, opts Options) (string, error)
}

// Middleware wraps a Client with additional behavior.
type Middleware func(next Client) Client

// Chain applies middlewares around base so the first middleware is the
// outermost layer.
func Chain(base Client, mws ...Middleware) Client {
	c := base
	for i := len(mws) - 1; i >= 0; i-- {
		c = mws[i](c)
	}
	return c
}
