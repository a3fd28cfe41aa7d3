package llm

import (
	"context"
	"fmt"
	"strings"

	genai "google.golang.org/genai"
)

// GeminiClient is a thin wrapper around the official genai client, used as
// the alternate completion provider. The genai client reads its API key
// from the environment.
type GeminiClient struct {
	cli   *genai.Client
	model string
}

func NewGeminiClient(ctx context.Context, model string) (*GeminiClient, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(model) == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiClient{cli: cli, model: model}, nil
}

func (g *GeminiClient) Name() string { return "Gemini:" + g.model }
func (g *GeminiClient) Close() error { return nil }

// Complete flattens system prompt, history and input into a single text
// request. Gemini has no per-call model alias for the OpenRouter model
// names, so opts.Model is ignored here and the configured model is used.
func (g *GeminiClient) Complete(ctx context.Context, systemPrompt string, history []Message, input string, opts Options) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", fmt.Errorf("gemini: input is empty")
	}

	var b strings.Builder
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		b.WriteString("[")
		b.WriteString(strings.ToUpper(m.Role))
		b.WriteString("]\n")
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}
	b.WriteString("[USER]\n")
	b.WriteString(input)

	cfg := &genai.GenerateContentConfig{}
	if strings.TrimSpace(systemPrompt) != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}}
	}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	temp := opts.Temperature
	cfg.Temperature = &temp

	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: b.String()}}}},
		cfg,
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: empty completion")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
