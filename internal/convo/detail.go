package convo

import (
	"context"
	"encoding/json"
	"time"

	"daggy/internal/extract"
	"daggy/internal/llm"
)

const detailFallbackQuestion = "Could you clarify a couple details (service, frequency, action)?"

// DetailStage merges each new utterance into the cumulative DetailSpec,
// or asks a bounded follow-up when the model reports unresolved fields.
type DetailStage struct {
	llm     llm.Client
	prompt  string
	opts    llm.Options
	timeout time.Duration
}

func NewDetailStage(client llm.Client, prompt string, cfg StageConfig) *DetailStage {
	opts, timeout := cfg.orDefaults(defaultDetailOpts)
	return &DetailStage{llm: client, prompt: prompt, opts: opts, timeout: timeout}
}

// ElicitResult holds exactly one of: a complete merged spec, or a
// follow-up that keeps the conversation in the detail phase.
type ElicitResult struct {
	Spec     *DetailSpec
	FollowUp *FollowUpQuestion
}

// Elicit sends brief + prior spec + the latest user text to the model. A
// returned DetailSpec is merged into prior with union semantics; a
// returned FollowUpQuestion is terminal for this turn. Failures degrade
// to a generic clarification request, never an error.
func (d *DetailStage) Elicit(ctx context.Context, brief ProblemBrief, prior DetailSpec, userText string) ElicitResult {
	input := buildElicitInput(brief, prior, userText)
	raw, err := completeWithRetry(ctx, d.llm, d.timeout, d.prompt, nil, input, d.opts)
	if err != nil {
		return fallbackFollowUp()
	}

	tag, err := extract.TypeTag(raw)
	if err != nil {
		// No usable fence. The model sometimes answers with a bare
		// question in prose; surface that rather than a canned line.
		if prose := extract.PlainText(raw); prose != "" {
			return ElicitResult{FollowUp: &FollowUpQuestion{
				Type:      typeFollowUp,
				Questions: []string{prose},
			}}
		}
		return fallbackFollowUp()
	}

	switch tag {
	case typeFollowUp:
		var q FollowUpQuestion
		if err := extract.DecodeJSON(raw, &q); err != nil {
			return fallbackFollowUp()
		}
		q = q.bounded()
		return ElicitResult{FollowUp: &q}
	case typeDetailSpec:
		var in DetailSpec
		if err := extract.DecodeJSON(raw, &in); err != nil {
			return fallbackFollowUp()
		}
		merged := prior.Merge(in)
		return ElicitResult{Spec: &merged}
	default:
		return fallbackFollowUp()
	}
}

func buildElicitInput(brief ProblemBrief, prior DetailSpec, userText string) string {
	pieces := []string{"ProblemBrief:"}
	if b, err := json.Marshal(brief); err == nil {
		pieces = append(pieces, string(b))
	}
	if !isZeroSpec(prior) {
		if b, err := json.Marshal(prior); err == nil {
			pieces = append(pieces, "Current DetailSpec:", string(b))
		}
	}
	if userText != "" {
		pieces = append(pieces, "Recent user message:", userText)
	}
	out := pieces[0]
	for _, p := range pieces[1:] {
		out += "\n" + p
	}
	return out
}

func isZeroSpec(s DetailSpec) bool {
	return len(s.TargetServices) == 0 && len(s.Resources) == 0 &&
		s.ScheduleSeconds == 0 && len(s.Actions) == 0 &&
		s.Notification == nil && !s.LLMNeeded &&
		len(s.StorageKeys) == 0 && len(s.RateLimits) == 0 &&
		len(s.RequiredScopes) == 0
}

func fallbackFollowUp() ElicitResult {
	return ElicitResult{FollowUp: &FollowUpQuestion{
		Type:          typeFollowUp,
		Questions:     []string{detailFallbackQuestion},
		DesiredFields: []string{"target_services", "schedule_seconds", "actions"},
	}}
}
