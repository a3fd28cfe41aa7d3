package convo

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"daggy/internal/llm"
)

const artifactReadyText = "Your agent configuration is ready. Review it and deploy when you are."

// maxHistory caps the completion context per conversation, matching the
// voice-sized turn window the prompts were tuned for.
const maxHistory = 6

// JournalSink receives one record per conversational turn. Persistence is
// fire-and-forget: a sink failure never affects the phase transition.
type JournalSink interface {
	Record(ctx context.Context, conversationID, userText, response string) error
}

// ArtifactSink stores generated configuration documents.
type ArtifactSink interface {
	SaveArtifact(ctx context.Context, conversationID, document string) error
}

// Orchestrator owns per-conversation phase state and routes each inbound
// message to the stage the current phase selects. Conversations are
// isolated: requests for different ids run in parallel, requests for the
// same id serialize on the conversation's own mutex, because DetailSpec
// merge is not commutative under interleaving.
type Orchestrator struct {
	classifier *Classifier
	detail     *DetailStage
	generate   *GenerateStage

	journal   JournalSink
	artifacts ArtifactSink
	logger    *log.Logger

	mu    sync.RWMutex
	convs map[string]*conversation
}

type conversation struct {
	mu      sync.Mutex
	state   State
	history []llm.Message
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithJournal(j JournalSink) Option {
	return func(o *Orchestrator) { o.journal = j }
}

func WithArtifacts(a ArtifactSink) Option {
	return func(o *Orchestrator) { o.artifacts = a }
}

func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func New(classifier *Classifier, detail *DetailStage, generate *GenerateStage, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		classifier: classifier,
		detail:     detail,
		generate:   generate,
		logger:     log.Default(),
		convs:      make(map[string]*conversation),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Reply is the outcome of one submitted message.
type Reply struct {
	Text             string
	Phase            Phase
	PendingQuestions []string
	Artifact         string // set only on the turn that produced it
}

// Submit routes text through the stage selected by the conversation's
// current phase and applies the resulting transition.
func (o *Orchestrator) Submit(ctx context.Context, conversationID, text string) (Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, fmt.Errorf("convo: text is empty")
	}
	conversationID = normalizeID(conversationID)

	conv := o.conversation(conversationID)
	conv.mu.Lock()
	defer conv.mu.Unlock()

	var reply Reply
	switch conv.state.Phase {
	case PhaseDetail, PhaseYamlPending:
		// YamlPending is normally transient within one turn. Should a
		// conversation ever persist in it, the message still carries
		// information, so it goes through elicitation before the
		// DetailSpec is regenerated.
		reply = o.runDetail(ctx, conv, conversationID, text)
	default:
		reply = o.runClassify(ctx, conv, text)
	}

	conv.history = append(conv.history,
		llm.Message{Role: llm.RoleUser, Content: text},
		llm.Message{Role: llm.RoleAssistant, Content: reply.Text},
	)
	if len(conv.history) > maxHistory {
		conv.history = conv.history[len(conv.history)-maxHistory:]
	}

	// Every turn is journaled as a {user text, response} pair,
	// whichever stage produced the response.
	o.recordJournal(ctx, conversationID, text, reply.Text)

	return reply, nil
}

// Reset returns the conversation to its initial state. It does not cancel
// an in-flight completion call: the old conversation object is detached
// from the map, so a submission racing the reset writes into a discarded
// state.
func (o *Orchestrator) Reset(conversationID string) {
	conversationID = normalizeID(conversationID)
	o.mu.Lock()
	delete(o.convs, conversationID)
	o.mu.Unlock()
}

// Snapshot returns a copy of the conversation state for inspection.
func (o *Orchestrator) Snapshot(conversationID string) (State, bool) {
	conversationID = normalizeID(conversationID)
	o.mu.RLock()
	conv, ok := o.convs[conversationID]
	o.mu.RUnlock()
	if !ok {
		return State{Phase: PhaseNone}, false
	}
	conv.mu.Lock()
	defer conv.mu.Unlock()
	return copyState(conv.state), true
}

func (o *Orchestrator) conversation(id string) *conversation {
	o.mu.RLock()
	conv, ok := o.convs[id]
	o.mu.RUnlock()
	if ok {
		return conv
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if conv, ok = o.convs[id]; ok {
		return conv
	}
	conv = &conversation{state: State{Phase: PhaseNone}}
	o.convs[id] = conv
	return conv
}

func (o *Orchestrator) runClassify(ctx context.Context, conv *conversation, text string) Reply {
	cls := o.classifier.Classify(ctx, conv.history, text)

	if !cls.Problem {
		return Reply{Text: cls.Summary, Phase: conv.state.Phase}
	}

	conv.state.Brief = cls.Brief
	conv.state.Spec = nil
	conv.state.PendingQuestions = nil
	conv.state.Phase = PhaseDetail
	return Reply{Text: cls.Summary, Phase: PhaseDetail}
}

func (o *Orchestrator) runDetail(ctx context.Context, conv *conversation, id, text string) Reply {
	brief := ProblemBrief{}
	if conv.state.Brief != nil {
		brief = *conv.state.Brief
	}
	prior := DetailSpec{}
	if conv.state.Spec != nil {
		prior = *conv.state.Spec
	}

	res := o.detail.Elicit(ctx, brief, prior, text)
	if res.FollowUp != nil {
		conv.state.PendingQuestions = res.FollowUp.Questions
		return Reply{
			Text:             strings.Join(res.FollowUp.Questions, "\n"),
			Phase:            PhaseDetail,
			PendingQuestions: res.FollowUp.Questions,
		}
	}

	conv.state.Spec = res.Spec
	conv.state.PendingQuestions = nil
	conv.state.Phase = PhaseYamlPending
	// The DetailSpec is complete; generation needs no further user input, so
	// it runs in the same turn.
	return o.runGenerate(ctx, conv, id)
}

func (o *Orchestrator) runGenerate(ctx context.Context, conv *conversation, id string) Reply {
	spec := DetailSpec{}
	if conv.state.Spec != nil {
		spec = *conv.state.Spec
	}

	res := o.generate.Generate(ctx, spec)
	if res.FollowUp != nil {
		conv.state.Phase = PhaseDetail
		conv.state.PendingQuestions = res.FollowUp.Questions
		return Reply{
			Text:             strings.Join(res.FollowUp.Questions, "\n"),
			Phase:            PhaseDetail,
			PendingQuestions: res.FollowUp.Questions,
		}
	}

	conv.state.ReadyArtifact = res.Artifact.YAML
	conv.state.Brief = nil
	conv.state.Spec = nil
	conv.state.PendingQuestions = nil
	conv.state.Phase = PhaseNone

	o.saveArtifact(ctx, id, res.Artifact.YAML)

	return Reply{Text: artifactReadyText, Phase: PhaseNone, Artifact: res.Artifact.YAML}
}

func (o *Orchestrator) recordJournal(ctx context.Context, id, userText, response string) {
	if o.journal == nil {
		return
	}
	if err := o.journal.Record(ctx, id, userText, response); err != nil {
		o.logger.Printf("journal record failed (conversation=%s): %v", id, err)
	}
}

func (o *Orchestrator) saveArtifact(ctx context.Context, id, document string) {
	if o.artifacts == nil {
		return
	}
	if err := o.artifacts.SaveArtifact(ctx, id, document); err != nil {
		o.logger.Printf("artifact save failed (conversation=%s): %v", id, err)
	}
}

func normalizeID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return "default"
	}
	return id
}

func copyState(s State) State {
	out := State{
		Phase:         s.Phase,
		ReadyArtifact: s.ReadyArtifact,
	}
	if s.Brief != nil {
		b := *s.Brief
		out.Brief = &b
	}
	if s.Spec != nil {
		sp := *s.Spec
		out.Spec = &sp
	}
	out.PendingQuestions = append([]string(nil), s.PendingQuestions...)
	return out
}
