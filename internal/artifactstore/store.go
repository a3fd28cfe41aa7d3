// Package artifactstore persists generated agent configuration
// documents so they can be listed and fetched after the conversation
// that produced them has moved on.
package artifactstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("artifact not found")

// Artifact is one stored configuration document.
type Artifact struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	CreatedAt      time.Time `json:"created_at"`
	YAML           string    `json:"yaml"`
}

// Store is the persistence surface the server wires in. Both backends
// also satisfy the orchestrator's artifact sink through SaveArtifact.
type Store interface {
	SaveArtifact(ctx context.Context, conversationID, document string) error
	Get(ctx context.Context, conversationID, id string) (Artifact, error)
	List(ctx context.Context, conversationID string) ([]Artifact, error)
}

// MemoryStore keeps artifacts in process memory. The default backend
// when no object storage is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	byConv map[string][]Artifact
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byConv: make(map[string][]Artifact)}
}

func (m *MemoryStore) SaveArtifact(_ context.Context, conversationID, document string) error {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return errors.New("conversation id is required")
	}
	if strings.TrimSpace(document) == "" {
		return errors.New("document is empty")
	}
	a := Artifact{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		CreatedAt:      time.Now().UTC(),
		YAML:           document,
	}
	m.mu.Lock()
	m.byConv[conversationID] = append(m.byConv[conversationID], a)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, conversationID, id string) (Artifact, error) {
	conversationID = strings.TrimSpace(conversationID)
	id = strings.TrimSpace(id)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.byConv[conversationID] {
		if a.ID == id {
			return a, nil
		}
	}
	return Artifact{}, ErrNotFound
}

func (m *MemoryStore) List(_ context.Context, conversationID string) ([]Artifact, error) {
	conversationID = strings.TrimSpace(conversationID)
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]Artifact(nil), m.byConv[conversationID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
