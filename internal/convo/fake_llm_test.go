package convo

import (
	"context"
	"sync"

	"daggy/internal/llm"
)

// scriptClient replays a fixed sequence of completions and records every
// call it receives.
type scriptClient struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     []scriptCall
}

type scriptCall struct {
	system string
	input  string
	opts   llm.Options
}

func (s *scriptClient) Complete(_ context.Context, systemPrompt string, _ []llm.Message, input string, opts llm.Options) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.calls)
	s.calls = append(s.calls, scriptCall{system: systemPrompt, input: input, opts: opts})
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	if len(s.responses) > 0 {
		return s.responses[len(s.responses)-1], nil
	}
	return "", llm.ErrUnavailable
}

func (s *scriptClient) Name() string { return "script" }

func (s *scriptClient) Close() error { return nil }

func (s *scriptClient) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func fencedJSON(body string) string {
	return "```json\n" + body + "\n```"
}

func fencedYAML(body string) string {
	return "```yaml\n" + body + "\n```"
}
