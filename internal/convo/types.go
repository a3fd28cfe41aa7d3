// Package convo implements the conversation orchestrator: a phased
// pipeline that classifies developer utterances as journaling or an
// automatable problem, elicits the missing details, and generates an
// agent configuration document once the DetailSpec is complete.
package convo

import "fmt"

// Phase is the orchestrator's position in the classify -> detail ->
// generate cycle for one topic.
type Phase string

const (
	PhaseNone        Phase = "none"
	PhaseDetail      Phase = "detail"
	PhaseYamlPending Phase = "yaml_pending"
)

// Wire discriminators used in fenced JSON envelopes.
const (
	typeProblemBrief = "ProblemBrief"
	typeDetailSpec   = "DetailSpec"
	typeFollowUp     = "FollowUpQuestion"
	typeMissingInfo  = "MissingInfoRequest"
)

// ProblemBrief identifies an automatable problem. Produced once by the
// classifier, immutable afterwards.
type ProblemBrief struct {
	Type     string   `json:"type,omitempty"`
	Category string   `json:"category,omitempty"`
	Summary  string   `json:"summary"`
	Signals  []string `json:"signals,omitempty"`
}

func (b *ProblemBrief) Validate() error {
	if b.Summary == "" {
		return fmt.Errorf("summary is required")
	}
	return nil
}

// Notification names where agent alerts should go.
type Notification struct {
	Channel     string `json:"channel"`
	Destination string `json:"destination"`
}

// RateLimit bounds how hard the agent may hit one resource.
type RateLimit struct {
	Resource  string `json:"resource,omitempty"`
	PerMinute int    `json:"per_minute,omitempty"`
}

// DetailSpec is the cumulative description of what the automation must
// do. It is built incrementally across elicitation turns; Merge never
// discards an already-confirmed fact.
type DetailSpec struct {
	Type            string        `json:"type,omitempty"`
	TargetServices  []string      `json:"target_services,omitempty"`
	Resources       []string      `json:"resources,omitempty"`
	ScheduleSeconds int           `json:"schedule_seconds,omitempty"`
	Actions         []string      `json:"actions,omitempty"`
	Notification    *Notification `json:"notification,omitempty"`
	LLMNeeded       bool          `json:"llm_needed,omitempty"`
	StorageKeys     []string      `json:"storage_keys,omitempty"`
	RateLimits      []RateLimit   `json:"rate_limits,omitempty"`
	RequiredScopes  []string      `json:"required_scopes,omitempty"`
}

func (s *DetailSpec) Validate() error {
	// Every field may arrive across several turns; nothing is
	// individually required at extraction time.
	return nil
}

// Merge folds in into s with union semantics: arrays are set-unioned
// preserving first-seen order, scalars fill only if previously unset.
// Idempotent: merging the same fragment twice equals merging it once.
func (s DetailSpec) Merge(in DetailSpec) DetailSpec {
	out := s
	out.Type = typeDetailSpec
	out.TargetServices = unionStrings(s.TargetServices, in.TargetServices)
	out.Resources = unionStrings(s.Resources, in.Resources)
	out.Actions = unionStrings(s.Actions, in.Actions)
	out.StorageKeys = unionStrings(s.StorageKeys, in.StorageKeys)
	out.RequiredScopes = unionStrings(s.RequiredScopes, in.RequiredScopes)
	if out.ScheduleSeconds == 0 {
		out.ScheduleSeconds = in.ScheduleSeconds
	}
	if out.Notification == nil && in.Notification != nil {
		n := *in.Notification
		out.Notification = &n
	}
	out.LLMNeeded = s.LLMNeeded || in.LLMNeeded
	out.RateLimits = unionRateLimits(s.RateLimits, in.RateLimits)
	return out
}

func unionStrings(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, lst := range [][]string{a, b} {
		for _, v := range lst {
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

func unionRateLimits(a, b []RateLimit) []RateLimit {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	type key struct {
		resource string
		perMin   int
	}
	seen := make(map[key]struct{}, len(a)+len(b))
	out := make([]RateLimit, 0, len(a)+len(b))
	for _, lst := range [][]RateLimit{a, b} {
		for _, rl := range lst {
			k := key{rl.Resource, rl.PerMinute}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, rl)
		}
	}
	return out
}

// FollowUpQuestion is a bounded clarification request emitted instead of
// a complete result. Transient: it exists for one response cycle only.
type FollowUpQuestion struct {
	Type          string   `json:"type,omitempty"`
	Questions     []string `json:"questions"`
	DesiredFields []string `json:"desired_fields,omitempty"`
}

func (q *FollowUpQuestion) Validate() error {
	if len(q.Questions) == 0 {
		return fmt.Errorf("questions are required")
	}
	return nil
}

// bounded caps the follow-up at two questions.
func (q FollowUpQuestion) bounded() FollowUpQuestion {
	if len(q.Questions) > 2 {
		q.Questions = q.Questions[:2]
	}
	return q
}

// GeneratedArtifact is the final configuration document for one topic.
type GeneratedArtifact struct {
	YAML      string
	Validated bool
}

// State is the externally visible snapshot of one conversation.
type State struct {
	Phase            Phase
	Brief            *ProblemBrief
	Spec             *DetailSpec
	PendingQuestions []string
	ReadyArtifact    string
}
