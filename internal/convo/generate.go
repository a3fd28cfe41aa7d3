package convo

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"daggy/internal/agentyaml"
	"daggy/internal/extract"
	"daggy/internal/llm"
)

const yamlFallbackQuestion = "I need one more detail to finalize the YAML (service, schedule, or actions)."

// GenerateStage turns a complete DetailSpec into a validated agent
// configuration document, or a follow-up when it cannot.
type GenerateStage struct {
	llm     llm.Client
	prompt  string
	opts    llm.Options
	timeout time.Duration
}

func NewGenerateStage(client llm.Client, prompt string, cfg StageConfig) *GenerateStage {
	opts, timeout := cfg.orDefaults(defaultYamlOpts)
	return &GenerateStage{llm: client, prompt: prompt, opts: opts, timeout: timeout}
}

// GenerateResult holds exactly one of: a validated artifact, or a
// follow-up that sends the conversation back to the detail phase.
type GenerateResult struct {
	Artifact *GeneratedArtifact
	FollowUp *FollowUpQuestion
}

// Generate requests the configuration document and validates it
// structurally. A document failing validation is re-requested once with
// an explicit correction note; a second failure falls back to asking the
// user about the two most failure-prone fields. Broken artifacts are
// never surfaced.
func (g *GenerateStage) Generate(ctx context.Context, spec DetailSpec) GenerateResult {
	if len(spec.Actions) == 0 && len(spec.Resources) == 0 {
		return GenerateResult{FollowUp: &FollowUpQuestion{
			Type:          typeFollowUp,
			Questions:     []string{"What should the agent actually do?", "Which service or resource should it act on?"},
			DesiredFields: []string{"actions", "resources"},
		}}
	}

	req := agentyaml.Requirements{}
	if spec.Notification != nil {
		req.NotificationChannel = spec.Notification.Channel
	}

	input := specInput(spec)
	var correction string
	for attempt := 0; attempt < 2; attempt++ {
		callInput := input
		if correction != "" {
			callInput += "\n\nThe previous document was rejected: " + correction +
				"\nRegenerate the full YAML and fix every violation."
		}

		raw, err := completeWithRetry(ctx, g.llm, g.timeout, g.prompt, nil, callInput, g.opts)
		if err != nil {
			return hardFallback()
		}

		yamlText, yerr := extract.YAMLBlock(raw)
		if yerr != nil {
			if q, ok := missingInfo(raw); ok {
				return GenerateResult{FollowUp: q}
			}
			correction = "the response did not contain a single yaml fence"
			continue
		}

		if verr := agentyaml.Validate(yamlText, req); verr != nil {
			var ve *agentyaml.ValidationError
			if errors.As(verr, &ve) {
				correction = strings.Join(ve.Violations, "; ")
			} else {
				correction = verr.Error()
			}
			continue
		}

		return GenerateResult{Artifact: &GeneratedArtifact{YAML: yamlText, Validated: true}}
	}

	return GenerateResult{FollowUp: &FollowUpQuestion{
		Type: typeFollowUp,
		Questions: []string{
			"Which exact resource should the agent watch?",
			"Where should notifications be delivered?",
		},
		DesiredFields: []string{"resources", "notification"},
	}}
}

func specInput(spec DetailSpec) string {
	spec.Type = typeDetailSpec
	b, err := json.Marshal(spec)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// missingInfo maps the model's MissingInfoRequest envelope onto a
// follow-up question.
func missingInfo(raw string) (*FollowUpQuestion, bool) {
	tag, err := extract.TypeTag(raw)
	if err != nil || tag != typeMissingInfo {
		return nil, false
	}
	var q FollowUpQuestion
	if err := extract.DecodeJSON(raw, &q); err != nil {
		return &FollowUpQuestion{
			Type:      typeFollowUp,
			Questions: []string{yamlFallbackQuestion},
		}, true
	}
	q.Type = typeFollowUp
	q = q.bounded()
	return &q, true
}

func hardFallback() GenerateResult {
	return GenerateResult{FollowUp: &FollowUpQuestion{
		Type:          typeFollowUp,
		Questions:     []string{yamlFallbackQuestion},
		DesiredFields: []string{"target_services", "schedule_seconds", "actions"},
	}}
}
