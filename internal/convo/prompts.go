package convo

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// PromptSet carries the system prompt template for each stage. Templates
// are configuration, not logic: deployments override them via a YAML file
// and the stages inject them into every completion call unchanged.
type PromptSet struct {
	Journal string `yaml:"journal"`
	Detail  string `yaml:"detail"`
	Yaml    string `yaml:"yaml"`
}

type promptFile struct {
	Prompts PromptSet `yaml:"prompts"`
}

// LoadPrompts reads a prompt override file of the form:
//
//	prompts:
//	  journal: |
//	    ...
//	  detail: |
//	    ...
//	  yaml: |
//	    ...
//
// Missing keys keep their built-in defaults. An empty path returns the
// defaults unchanged.
func LoadPrompts(path string) (PromptSet, error) {
	out := DefaultPrompts()
	path = strings.TrimSpace(path)
	if path == "" {
		return out, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return out, fmt.Errorf("read prompt file: %w", err)
	}
	var pf promptFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return out, fmt.Errorf("parse prompt file: %w", err)
	}
	if strings.TrimSpace(pf.Prompts.Journal) != "" {
		out.Journal = pf.Prompts.Journal
	}
	if strings.TrimSpace(pf.Prompts.Detail) != "" {
		out.Detail = pf.Prompts.Detail
	}
	if strings.TrimSpace(pf.Prompts.Yaml) != "" {
		out.Yaml = pf.Prompts.Yaml
	}
	return out, nil
}

// DefaultPrompts returns the built-in stage prompts.
func DefaultPrompts() PromptSet {
	return PromptSet{
		Journal: journalPrompt,
		Detail:  detailPrompt,
		Yaml:    yamlPrompt,
	}
}

const journalPrompt = `You are Daggy, a voice assistant for developers keeping a work journal.
Analyze the user's input and respond in exactly one of two modes.

Mode 1 - Journal: the input is a normal status update, reflection or note.
Respond with a short bulleted summary, at most 3 lines, no markdown fences.

Mode 2 - Problem: the input describes a concrete recurring problem that
could be solved by an automation agent (repeated failures, manual chores,
missing monitoring or alerting). Respond with ONLY a fenced JSON object:

` + "```json" + `
{"type": "ProblemBrief", "category": "automation", "summary": "<one sentence describing the problem>", "signals": ["<tag>", ...]}
` + "```" + `

Rules:
- Never mix the modes in one response.
- In Mode 2 output nothing outside the single json fence.
- Do not invent problems; prefer Mode 1 when in doubt.`

const detailPrompt = `You are a requirements gathering system for automation agents.
You receive a ProblemBrief, the DetailSpec gathered so far (may be partial)
and the user's latest message. Decide between two outputs.

If enough is known to describe the automation completely, output ONLY:

` + "```json" + `
{"type": "DetailSpec", "target_services": [...], "resources": [...], "schedule_seconds": 300, "actions": [...], "notification": {"channel": "slack", "destination": "#alerts"}, "llm_needed": false, "storage_keys": [...], "rate_limits": [{"resource": "api", "per_minute": 30}], "required_scopes": [...]}
` + "```" + `

Otherwise output ONLY:

` + "```json" + `
{"type": "FollowUpQuestion", "questions": ["<question>"], "desired_fields": ["<missing DetailSpec field>", ...]}
` + "```" + `

Rules:
- Ask at most TWO questions, each targeting an unresolved field only.
- Include every fact already present in the current DetailSpec; never drop
  a confirmed value.
- Omit DetailSpec fields you know nothing about instead of guessing.
- Use strict JSON. Output nothing outside the single json fence.`

const yamlPrompt = `You are a YAML generator for Fetch.ai-style automation agents.
You receive a DetailSpec as JSON. Produce a complete agent configuration.

Required sections:
- agent: name, seed, port, endpoint, log_level
- protocols: message definitions for agent communication
- metadata: description (non-empty), version, capabilities
- intervals: at least one periodic task (period in seconds)

Include when the DetailSpec implies them:
- storage: keys from storage_keys
- integrations: external APIs, llm config, notification channels
- behavior: rules and rate_limits

Security requirements:
- NEVER emit a literal credential. Reference secrets only by indirection:
  api_key_env: OPENWEATHER_API_KEY or token: ${GITHUB_TOKEN}.
- Only populate sections from fields present in the DetailSpec.

If the DetailSpec is missing something essential, output ONLY:

` + "```json" + `
{"type": "MissingInfoRequest", "questions": ["<question>"]}
` + "```" + `

Otherwise output ONLY the configuration inside a single yaml fence:

` + "```yaml" + `
agent:
  name: ...
` + "```"
