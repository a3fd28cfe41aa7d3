package convo

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"daggy/internal/llm"
)

type captureSink struct {
	mu        sync.Mutex
	records   []string
	artifacts []string
}

func (c *captureSink) Record(_ context.Context, conversationID, userText, response string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, conversationID+"|"+userText+"|"+response)
	return nil
}

func (c *captureSink) SaveArtifact(_ context.Context, conversationID, document string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.artifacts = append(c.artifacts, conversationID+"|"+document)
	return nil
}

func newTestOrchestrator(classify, detail, generate *scriptClient, sink *captureSink) *Orchestrator {
	opts := []Option{}
	if sink != nil {
		opts = append(opts, WithJournal(sink), WithArtifacts(sink))
	}
	return New(
		NewClassifier(classify, "classify", StageConfig{}),
		NewDetailStage(detail, "detail", StageConfig{}),
		NewGenerateStage(generate, "yaml", StageConfig{}),
		opts...,
	)
}

func TestSubmit_JournalTurnStaysInNone(t *testing.T) {
	classify := &scriptClient{responses: []string{"Sounds like a productive day."}}
	o := newTestOrchestrator(classify, &scriptClient{}, &scriptClient{}, nil)

	reply, err := o.Submit(context.Background(), "c1", "Shipped the settings page today")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if reply.Phase != PhaseNone {
		t.Fatalf("phase = %s", reply.Phase)
	}
	if reply.Text != "Sounds like a productive day." {
		t.Fatalf("text = %q", reply.Text)
	}
}

func TestSubmit_ProblemEntersDetailNeverSkipsToGeneration(t *testing.T) {
	classify := &scriptClient{responses: []string{fencedJSON(problemBriefJSON)}}
	generate := &scriptClient{}
	o := newTestOrchestrator(classify, &scriptClient{}, generate, nil)

	reply, err := o.Submit(context.Background(), "c1", "My job fails every night and I restart it manually")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if reply.Phase != PhaseDetail {
		t.Fatalf("phase = %s, classification must enter detail first", reply.Phase)
	}
	if reply.Text != problemAck {
		t.Fatalf("text = %q", reply.Text)
	}
	if generate.callCount() != 0 {
		t.Fatal("generation must not run before a complete spec exists")
	}
}

func TestSubmit_FullTopicLifecycle(t *testing.T) {
	classify := &scriptClient{responses: []string{fencedJSON(problemBriefJSON)}}
	detail := &scriptClient{responses: []string{
		fencedJSON(`{"type":"FollowUpQuestion","questions":["How often should it check?"],"desired_fields":["schedule_seconds"]}`),
		fencedJSON(`{"type":"DetailSpec","target_services":["ci"],"resources":["nightly-job"],"schedule_seconds":3600,"actions":["restart_job"],"notification":{"channel":"slack","destination":"#ops"}}`),
	}}
	generate := &scriptClient{responses: []string{fencedYAML(validAgentYAML)}}
	sink := &captureSink{}
	o := newTestOrchestrator(classify, detail, generate, sink)
	ctx := context.Background()

	if reply, _ := o.Submit(ctx, "c1", "my nightly job fails and I restart it manually"); reply.Phase != PhaseDetail {
		t.Fatalf("after classify: phase = %s", reply.Phase)
	}

	reply, err := o.Submit(ctx, "c1", "it's the nightly CI job")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if reply.Phase != PhaseDetail || len(reply.PendingQuestions) != 1 {
		t.Fatalf("follow-up turn: %+v", reply)
	}

	reply, err = o.Submit(ctx, "c1", "every hour, restart it, ping #ops on slack")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if reply.Phase != PhaseNone {
		t.Fatalf("completed topic must return to none, got %s", reply.Phase)
	}
	if reply.Artifact == "" || !strings.Contains(reply.Artifact, "ci-restarter") {
		t.Fatalf("artifact = %q", reply.Artifact)
	}

	state, ok := o.Snapshot("c1")
	if !ok {
		t.Fatal("conversation should exist")
	}
	if state.Phase != PhaseNone || state.Brief != nil || state.Spec != nil {
		t.Fatalf("topic state must be cleared: %+v", state)
	}
	if state.ReadyArtifact == "" {
		t.Fatal("ready artifact must survive the topic")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.artifacts) != 1 || !strings.HasPrefix(sink.artifacts[0], "c1|") {
		t.Fatalf("artifacts = %v", sink.artifacts)
	}
	if len(sink.records) == 0 {
		t.Fatal("journal sink received nothing")
	}
}

func TestSubmit_GenerationFollowUpReturnsToDetail(t *testing.T) {
	classify := &scriptClient{responses: []string{fencedJSON(problemBriefJSON)}}
	detail := &scriptClient{responses: []string{
		fencedJSON(`{"type":"DetailSpec","target_services":["ci"],"actions":["restart_job"]}`),
		fencedJSON(`{"type":"FollowUpQuestion","questions":["Where should alerts go?"]}`),
	}}
	generate := &scriptClient{responses: []string{fencedJSON(
		`{"type":"MissingInfoRequest","questions":["Where should alerts go?"],"desired_fields":["notification"]}`,
	)}}
	o := newTestOrchestrator(classify, detail, generate, nil)
	ctx := context.Background()

	o.Submit(ctx, "c1", "the build fails all the time")
	reply, err := o.Submit(ctx, "c1", "watch ci and restart the job")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if reply.Phase != PhaseDetail {
		t.Fatalf("generation follow-up must loop to detail, got %s", reply.Phase)
	}
	if reply.Artifact != "" {
		t.Fatal("no artifact may surface on a follow-up turn")
	}

	// The next message must route to the detail stage again.
	reply, err = o.Submit(ctx, "c1", "still deciding")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if detail.callCount() != 2 {
		t.Fatalf("detail calls = %d", detail.callCount())
	}
	if reply.Phase != PhaseDetail {
		t.Fatalf("phase = %s", reply.Phase)
	}
}

func TestSubmit_SpecAccumulatesAcrossTurns(t *testing.T) {
	classify := &scriptClient{responses: []string{fencedJSON(problemBriefJSON)}}
	detail := &scriptClient{responses: []string{
		fencedJSON(`{"type":"DetailSpec","target_services":["ci"],"actions":["restart_job"]}`),
		fencedJSON(`{"type":"DetailSpec","notification":{"channel":"slack","destination":"#ops"},"schedule_seconds":3600}`),
	}}
	// First generation asks for more; second succeeds.
	generate := &scriptClient{responses: []string{
		fencedJSON(`{"type":"MissingInfoRequest","questions":["Which slack channel?"]}`),
		fencedYAML(validAgentYAML),
	}}
	o := newTestOrchestrator(classify, detail, generate, nil)
	ctx := context.Background()

	o.Submit(ctx, "c1", "ci keeps failing, automate the restart")
	o.Submit(ctx, "c1", "watch ci, restart the job")

	state, _ := o.Snapshot("c1")
	if state.Spec == nil || len(state.Spec.TargetServices) == 0 {
		t.Fatalf("spec must survive a generation follow-up: %+v", state.Spec)
	}

	reply, err := o.Submit(ctx, "c1", "slack, #ops, hourly")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if reply.Phase != PhaseNone || reply.Artifact == "" {
		t.Fatalf("expected completed topic, got %+v", reply)
	}

	// The final generation input carries facts from both detail turns.
	last := generate.calls[generate.callCount()-1].input
	for _, want := range []string{"ci", "restart_job", "#ops", "3600"} {
		if !strings.Contains(last, want) {
			t.Fatalf("generation input missing %q:\n%s", want, last)
		}
	}
}

func TestReset_ClearsConversation(t *testing.T) {
	classify := &scriptClient{responses: []string{fencedJSON(problemBriefJSON), "Noted, thanks."}}
	o := newTestOrchestrator(classify, &scriptClient{}, &scriptClient{}, nil)
	ctx := context.Background()

	o.Submit(ctx, "c1", "deploys fail and I fix them manually")
	if state, _ := o.Snapshot("c1"); state.Phase != PhaseDetail {
		t.Fatalf("precondition: phase = %s", state.Phase)
	}

	o.Reset("c1")
	if _, ok := o.Snapshot("c1"); ok {
		t.Fatal("reset must drop the conversation")
	}

	// A fresh message starts over at classification.
	reply, err := o.Submit(ctx, "c1", "quiet day, mostly code review")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if reply.Phase != PhaseNone {
		t.Fatalf("phase = %s", reply.Phase)
	}
}

func TestSubmit_ConversationsAreIsolated(t *testing.T) {
	classify := &scriptClient{responses: []string{fencedJSON(problemBriefJSON)}}
	o := newTestOrchestrator(classify, &scriptClient{}, &scriptClient{}, nil)
	ctx := context.Background()

	o.Submit(ctx, "a", "the exporter crashes nightly, automate a restart")
	if state, _ := o.Snapshot("a"); state.Phase != PhaseDetail {
		t.Fatalf("a: phase = %s", state.Phase)
	}
	if _, ok := o.Snapshot("b"); ok {
		t.Fatal("b must not exist yet")
	}
}

func TestSubmit_RejectsEmptyText(t *testing.T) {
	o := newTestOrchestrator(&scriptClient{}, &scriptClient{}, &scriptClient{}, nil)
	if _, err := o.Submit(context.Background(), "c1", "   "); err == nil {
		t.Fatal("expected error for blank text")
	}
}

func TestSubmit_EveryTurnIsJournaled(t *testing.T) {
	classify := &scriptClient{responses: []string{fencedJSON(problemBriefJSON)}}
	detail := &scriptClient{responses: []string{
		fencedJSON(`{"type":"FollowUpQuestion","questions":["How often should it check?"]}`),
		fencedJSON(`{"type":"DetailSpec","target_services":["ci"],"resources":["nightly-job"],"schedule_seconds":3600,"actions":["restart_job"],"notification":{"channel":"slack","destination":"#ops"}}`),
	}}
	generate := &scriptClient{responses: []string{fencedYAML(validAgentYAML)}}
	sink := &captureSink{}
	o := newTestOrchestrator(classify, detail, generate, sink)
	ctx := context.Background()

	o.Submit(ctx, "c1", "my nightly job fails and I restart it manually")
	o.Submit(ctx, "c1", "it's the nightly CI job")
	o.Submit(ctx, "c1", "every hour, restart it, ping #ops on slack")

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.records) != 3 {
		t.Fatalf("records = %d, every turn must be journaled: %v", len(sink.records), sink.records)
	}
	if !strings.Contains(sink.records[1], "it's the nightly CI job") ||
		!strings.Contains(sink.records[1], "How often should it check?") {
		t.Fatalf("follow-up turn record lost its user/response pair: %q", sink.records[1])
	}
	if !strings.HasPrefix(sink.records[2], "c1|every hour, restart it, ping #ops on slack|") {
		t.Fatalf("completion turn record lost the user text: %q", sink.records[2])
	}
	if !strings.Contains(sink.records[2], artifactReadyText) {
		t.Fatalf("completion turn record lost the response: %q", sink.records[2])
	}
}

func TestSubmit_StaleYamlPendingTurnFeedsDetail(t *testing.T) {
	detail := &scriptClient{responses: []string{fencedJSON(
		`{"type":"DetailSpec","notification":{"channel":"slack","destination":"#ops"}}`,
	)}}
	generate := &scriptClient{responses: []string{fencedYAML(validAgentYAML)}}
	o := newTestOrchestrator(&scriptClient{}, detail, generate, nil)

	conv := o.conversation("c1")
	conv.state.Phase = PhaseYamlPending
	conv.state.Spec = &DetailSpec{TargetServices: []string{"ci"}, Actions: []string{"restart_job"}}

	reply, err := o.Submit(context.Background(), "c1", "send alerts to #ops on slack")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if detail.callCount() != 1 {
		t.Fatalf("detail calls = %d, the message must go through elicitation", detail.callCount())
	}
	if !strings.Contains(detail.calls[0].input, "send alerts to #ops on slack") {
		t.Fatalf("elicitation input dropped the message:\n%s", detail.calls[0].input)
	}
	if reply.Phase != PhaseNone || reply.Artifact == "" {
		t.Fatalf("expected regenerated artifact, got %+v", reply)
	}
}

// blockingClient parks every completion call until release is closed and
// tracks how many calls are in flight at once.
type blockingClient struct {
	mu        sync.Mutex
	active    int
	maxActive int
	started   chan struct{}
	release   chan struct{}
}

func newBlockingClient() *blockingClient {
	return &blockingClient{
		started: make(chan struct{}, 8),
		release: make(chan struct{}),
	}
}

func (b *blockingClient) Complete(ctx context.Context, _ string, _ []llm.Message, _ string, _ llm.Options) (string, error) {
	b.mu.Lock()
	b.active++
	if b.active > b.maxActive {
		b.maxActive = b.active
	}
	b.mu.Unlock()
	b.started <- struct{}{}
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	b.mu.Lock()
	b.active--
	b.mu.Unlock()
	return "Noted.", nil
}

func (b *blockingClient) Name() string { return "blocking" }
func (b *blockingClient) Close() error { return nil }

func (b *blockingClient) max() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxActive
}

func TestSubmit_SameConversationSerializes(t *testing.T) {
	client := newBlockingClient()
	o := newTestOrchestrator(&scriptClient{}, &scriptClient{}, &scriptClient{}, nil)
	o.classifier = NewClassifier(client, "classify", StageConfig{})
	ctx := context.Background()

	done := make(chan struct{}, 2)
	go func() {
		o.Submit(ctx, "c1", "first note")
		done <- struct{}{}
	}()
	<-client.started

	go func() {
		o.Submit(ctx, "c1", "second note")
		done <- struct{}{}
	}()
	select {
	case <-client.started:
		t.Fatal("second same-conversation submission reached the model while the first was in flight")
	case <-time.After(100 * time.Millisecond):
	}

	close(client.release)
	<-done
	<-done
	if client.max() != 1 {
		t.Fatalf("max in-flight calls = %d, same-conversation submissions must serialize", client.max())
	}
}

func TestSubmit_DistinctConversationsRunConcurrently(t *testing.T) {
	client := newBlockingClient()
	o := newTestOrchestrator(&scriptClient{}, &scriptClient{}, &scriptClient{}, nil)
	o.classifier = NewClassifier(client, "classify", StageConfig{})
	ctx := context.Background()

	done := make(chan struct{}, 2)
	go func() {
		o.Submit(ctx, "a", "note for a")
		done <- struct{}{}
	}()
	<-client.started

	go func() {
		o.Submit(ctx, "b", "note for b")
		done <- struct{}{}
	}()
	select {
	case <-client.started:
	case <-time.After(2 * time.Second):
		t.Fatal("distinct conversations must not block each other")
	}
	if client.max() != 2 {
		t.Fatalf("max in-flight calls = %d, distinct conversations should overlap", client.max())
	}

	close(client.release)
	<-done
	<-done
}
