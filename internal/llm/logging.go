package llm

import (
	"context"
	"log"
)

// WithLogging logs request size and errors. Provide a custom logger or nil
// to use log.Default().
func WithLogging(logger *log.Logger) Middleware {
	if logger == nil {
		logger = log.Default()
	}
	return func(next Client) Client {
		return &logging{next: next, log: logger}
	}
}

type logging struct {
	next Client
	log  *log.Logger
}

func (l *logging) Name() string { return l.next.Name() }
func (l *logging) Close() error { return l.next.Close() }

func (l *logging) Complete(ctx context.Context, systemPrompt string, history []Message, input string, opts Options) (string, error) {
	size := len(systemPrompt) + len(input)
	for _, m := range history {
		size += len(m.Content)
	}
	l.log.Printf("LLM request (%s): %d bytes, model=%s", l.next.Name(), size, opts.Model)
	out, err := l.next.Complete(ctx, systemPrompt, history, input, opts)
	if err != nil {
		l.log.Printf("LLM error (%s): %v", l.next.Name(), err)
	}
	return out, err
}
