package convo

import (
	"context"
	"strings"
	"time"

	"daggy/internal/extract"
	"daggy/internal/llm"
)

const (
	journalFallback = "Noted."
	problemAck      = "I detected a problem worth automating. I'll dig into details."
)

// Classifier decides journal-vs-problem for each utterance. The model
// proposes, the heuristic gate over the original user text disposes.
type Classifier struct {
	llm     llm.Client
	prompt  string
	opts    llm.Options
	timeout time.Duration
}

func NewClassifier(client llm.Client, prompt string, cfg StageConfig) *Classifier {
	opts, timeout := cfg.orDefaults(defaultJournalOpts)
	return &Classifier{llm: client, prompt: prompt, opts: opts, timeout: timeout}
}

// Classification is the outcome of one classify call. Exactly one of the
// two modes applies: Brief is nil for journal turns.
type Classification struct {
	Problem bool
	Summary string
	Brief   *ProblemBrief
}

// Classify runs the dual-mode completion and gates any ProblemBrief
// result through the keyword heuristic. Every failure path degrades to a
// journal response; classification never returns an error to the caller.
func (c *Classifier) Classify(ctx context.Context, history []llm.Message, userText string) Classification {
	raw, err := completeWithRetry(ctx, c.llm, c.timeout, c.prompt, history, userText, c.opts)
	if err != nil {
		return Classification{Summary: journalFallback}
	}

	var brief ProblemBrief
	if err := extract.DecodeJSON(raw, &brief); err == nil && brief.Type == typeProblemBrief {
		signals := ProblemSignals(userText)
		if len(signals) == 0 {
			// Heuristic rejection: the model saw a problem, the
			// user's own words don't back it up. Downgrade without
			// a second query.
			return Classification{Summary: localSummary(raw)}
		}
		if brief.Category == "" {
			brief.Category = "automation"
		}
		brief.Signals = unionStrings(brief.Signals, signals)
		return Classification{Problem: true, Summary: problemAck, Brief: &brief}
	}

	return Classification{Summary: localSummary(raw)}
}

// localSummary builds the journal response from the completion prose:
// fences stripped, at most the first three non-empty lines.
func localSummary(raw string) string {
	prose := extract.PlainText(raw)
	if prose == "" {
		return journalFallback
	}
	var lines []string
	for _, ln := range strings.Split(prose, "\n") {
		ln = strings.TrimSpace(ln)
		if ln == "" {
			continue
		}
		lines = append(lines, ln)
		if len(lines) == 3 {
			break
		}
	}
	if len(lines) == 0 {
		return journalFallback
	}
	return strings.Join(lines, "\n")
}
