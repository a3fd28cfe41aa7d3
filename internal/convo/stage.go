package convo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"daggy/internal/llm"
)

// Default per-stage call parameters, matching the model classes the
// pipeline was tuned on. Overridable through StageConfig.
var (
	defaultJournalOpts = llm.Options{Model: "anthropic/claude-3-haiku", MaxTokens: 400, Temperature: 0.1}
	defaultDetailOpts  = llm.Options{Model: "anthropic/claude-3-haiku", MaxTokens: 700, Temperature: 0.2}
	defaultYamlOpts    = llm.Options{Model: "anthropic/claude-3-5-sonnet", MaxTokens: 1600, Temperature: 0}
)

const defaultCallTimeout = 20 * time.Second

// StageConfig overrides per-stage completion parameters.
type StageConfig struct {
	Opts    llm.Options
	Timeout time.Duration
}

func (c StageConfig) orDefaults(opts llm.Options) (llm.Options, time.Duration) {
	out := c.Opts
	if strings.TrimSpace(out.Model) == "" {
		out.Model = opts.Model
	}
	if out.MaxTokens == 0 {
		out.MaxTokens = opts.MaxTokens
	}
	if out.Temperature == 0 {
		out.Temperature = opts.Temperature
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return out, timeout
}

// completeWithRetry performs one completion call with a per-call timeout,
// retrying exactly once when the service is unavailable. Permanent errors
// and extraction concerns are the caller's problem; this helper only owns
// the transport-level retry policy.
func completeWithRetry(ctx context.Context, client llm.Client, timeout time.Duration, systemPrompt string, history []llm.Message, input string, opts llm.Options) (string, error) {
	if client == nil {
		return "", fmt.Errorf("convo: completion client is nil")
	}
	if strings.TrimSpace(input) == "" {
		return "", fmt.Errorf("convo: input is empty")
	}

	call := func() (string, error) {
		cctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return client.Complete(cctx, systemPrompt, history, input, opts)
	}

	out, err := call()
	if err == nil {
		return out, nil
	}
	var perm *llm.PermanentError
	if errors.As(err, &perm) {
		return "", err
	}
	if !errors.Is(err, llm.ErrUnavailable) && !errors.Is(err, context.DeadlineExceeded) {
		return "", err
	}
	return call()
}
