package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// OpenRouterClient calls the OpenRouter Chat Completions API
// (OpenAI-compatible). See: https://openrouter.ai/docs/api-reference
type OpenRouterClient struct {
	http    *http.Client
	apiKey  string
	baseURL string
	model   string
}

// NewOpenRouterClient creates an OpenRouter client. If apiKey is empty, it
// falls back to the OPENROUTER_API_KEY env var. model is the default used
// when a call does not override it.
func NewOpenRouterClient(apiKey, model string) (*OpenRouterClient, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openrouter: api key is required")
	}
	if strings.TrimSpace(model) == "" {
		model = "anthropic/claude-3-haiku"
	}
	return &OpenRouterClient{
		http:    &http.Client{Timeout: 60 * time.Second},
		apiKey:  apiKey,
		baseURL: "https://openrouter.ai/api/v1/chat/completions",
		model:   model,
	}, nil
}

// SetBaseURL overrides the endpoint, used by tests.
func (c *OpenRouterClient) SetBaseURL(u string) {
	if strings.TrimSpace(u) != "" {
		c.baseURL = u
	}
}

func (c *OpenRouterClient) Name() string { return "OpenRouter:" + c.model }
func (c *OpenRouterClient) Close() error { return nil }

type chatReq struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResp struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete assembles system + history + user messages and returns the raw
// assistant text. Transport errors and 5xx responses wrap ErrUnavailable.
func (c *OpenRouterClient) Complete(ctx context.Context, systemPrompt string, history []Message, input string, opts Options) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", fmt.Errorf("openrouter: input is empty")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = c.model
	}

	msgs := make([]chatMessage, 0, len(history)+2)
	if strings.TrimSpace(systemPrompt) != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: systemPrompt})
	}
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		msgs = append(msgs, chatMessage{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: input})

	b, _ := json.Marshal(chatReq{
		Model:       model,
		Messages:    msgs,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		const max = 2048
		if len(body) > max {
			body = body[:max]
		}
		err := fmt.Errorf("openrouter: unexpected status %s: %s", resp.Status, string(body))
		if resp.StatusCode == 400 && strings.Contains(string(body), "context_length_exceeded") {
			return "", NewPermanentError(err)
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var out chatResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("openrouter: decode response: %w", err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openrouter: empty completion")
	}
	return out.Choices[0].Message.Content, nil
}
