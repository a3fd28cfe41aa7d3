package convo

import (
	"reflect"
	"testing"
)

func TestDetailSpecMerge_Union(t *testing.T) {
	prior := DetailSpec{
		TargetServices:  []string{"github"},
		ScheduleSeconds: 3600,
		Actions:         []string{"restart"},
	}
	in := DetailSpec{
		TargetServices: []string{"github", "slack"},
		Actions:        []string{"notify"},
		Notification:   &Notification{Channel: "slack", Destination: "#ops"},
		LLMNeeded:      true,
	}

	got := prior.Merge(in)
	if !reflect.DeepEqual(got.TargetServices, []string{"github", "slack"}) {
		t.Fatalf("target_services = %v", got.TargetServices)
	}
	if !reflect.DeepEqual(got.Actions, []string{"restart", "notify"}) {
		t.Fatalf("actions = %v", got.Actions)
	}
	if got.ScheduleSeconds != 3600 {
		t.Fatalf("schedule_seconds = %d, first write must win", got.ScheduleSeconds)
	}
	if got.Notification == nil || got.Notification.Destination != "#ops" {
		t.Fatalf("notification not filled: %+v", got.Notification)
	}
	if !got.LLMNeeded {
		t.Fatal("llm_needed must be sticky once set")
	}
}

func TestDetailSpecMerge_ScalarFirstWriteWins(t *testing.T) {
	prior := DetailSpec{
		ScheduleSeconds: 600,
		Notification:    &Notification{Channel: "email", Destination: "ops@example.com"},
	}
	in := DetailSpec{
		ScheduleSeconds: 30,
		Notification:    &Notification{Channel: "slack", Destination: "#alerts"},
	}

	got := prior.Merge(in)
	if got.ScheduleSeconds != 600 {
		t.Fatalf("schedule_seconds = %d", got.ScheduleSeconds)
	}
	if got.Notification.Channel != "email" {
		t.Fatalf("notification channel overwritten: %s", got.Notification.Channel)
	}
}

func TestDetailSpecMerge_Idempotent(t *testing.T) {
	in := DetailSpec{
		TargetServices: []string{"ci"},
		Resources:      []string{"build-queue"},
		Actions:        []string{"retry"},
		RateLimits:     []RateLimit{{Resource: "ci", PerMinute: 10}},
	}

	once := DetailSpec{}.Merge(in)
	twice := once.Merge(in)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("merge not idempotent:\nonce  %+v\ntwice %+v", once, twice)
	}
}

func TestDetailSpecMerge_DoesNotMutateReceiver(t *testing.T) {
	prior := DetailSpec{TargetServices: []string{"github"}}
	_ = prior.Merge(DetailSpec{TargetServices: []string{"slack"}})
	if !reflect.DeepEqual(prior.TargetServices, []string{"github"}) {
		t.Fatalf("receiver mutated: %v", prior.TargetServices)
	}
}

func TestFollowUpQuestion_Bounded(t *testing.T) {
	q := FollowUpQuestion{Questions: []string{"a?", "b?", "c?", "d?"}}
	if got := q.bounded(); len(got.Questions) != 2 {
		t.Fatalf("bounded kept %d questions", len(got.Questions))
	}
}
