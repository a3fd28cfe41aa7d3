package artifactstore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestMemoryStore_SaveAndList(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.SaveArtifact(ctx, "c1", "agent:\n  name: a\n"); err != nil {
		t.Fatalf("SaveArtifact: %v", err)
	}
	if err := s.SaveArtifact(ctx, "c1", "agent:\n  name: b\n"); err != nil {
		t.Fatalf("SaveArtifact: %v", err)
	}
	if err := s.SaveArtifact(ctx, "c2", "agent:\n  name: other\n"); err != nil {
		t.Fatalf("SaveArtifact: %v", err)
	}

	got, err := s.List(ctx, "c1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("artifacts = %d", len(got))
	}
	for _, a := range got {
		if a.ID == "" || a.ConversationID != "c1" || a.CreatedAt.IsZero() {
			t.Fatalf("incomplete artifact: %+v", a)
		}
	}
}

func TestMemoryStore_Get(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.SaveArtifact(ctx, "c1", "agent: {}\n")

	list, _ := s.List(ctx, "c1")
	got, err := s.Get(ctx, "c1", list[0].ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.YAML != "agent: {}\n" {
		t.Fatalf("yaml = %q", got.YAML)
	}

	if _, err := s.Get(ctx, "c1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_RejectsEmpty(t *testing.T) {
	s := NewMemoryStore()
	if err := s.SaveArtifact(context.Background(), "", "doc"); err == nil {
		t.Fatal("expected error for empty conversation id")
	}
	if err := s.SaveArtifact(context.Background(), "c1", "  "); err == nil {
		t.Fatal("expected error for empty document")
	}
}

func TestObjectKeyRoundTrip(t *testing.T) {
	a := Artifact{
		ID:             "abc-123",
		ConversationID: "conv-9",
		CreatedAt:      time.Date(2026, 8, 28, 15, 4, 5, 0, time.UTC),
	}
	got, ok := parseKey(objectKey(a))
	if !ok {
		t.Fatal("parseKey failed")
	}
	if got.ID != a.ID || got.ConversationID != a.ConversationID || !got.CreatedAt.Equal(a.CreatedAt) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestObjectKeyEscapesSlashInConversationID(t *testing.T) {
	a := Artifact{
		ID:             "abc-123",
		ConversationID: "team/ops",
		CreatedAt:      time.Date(2026, 8, 28, 15, 4, 5, 0, time.UTC),
	}
	key := objectKey(a)
	if strings.Count(key, "/") != 1 {
		t.Fatalf("conversation id leaked extra separators into key %q", key)
	}
	got, ok := parseKey(key)
	if !ok {
		t.Fatal("parseKey failed")
	}
	if got.ConversationID != "team/ops" || got.ID != a.ID || !got.CreatedAt.Equal(a.CreatedAt) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if !strings.HasPrefix(key, conversationPrefix("team/ops")) {
		t.Fatalf("key %q does not start with the listing prefix", key)
	}
}

func TestParseKeyRejectsForeignObjects(t *testing.T) {
	for _, key := range []string{"noslash.yaml", "conv/", "conv/garbage.yaml", "conv/20260828T150405Z-"} {
		if _, ok := parseKey(key); ok {
			t.Fatalf("parseKey accepted %q", key)
		}
	}
}
