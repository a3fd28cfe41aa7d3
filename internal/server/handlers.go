package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"daggy/internal/artifactstore"
	"daggy/internal/convo"
	"daggy/internal/journal"
)

// Handler serves the conversation API plus the journal and artifact
// review endpoints.
type Handler struct {
	orchestrator *convo.Orchestrator
	journal      *journal.Store
	artifacts    artifactstore.Store
}

func NewHandler(o *convo.Orchestrator, j *journal.Store, a artifactstore.Store) *Handler {
	return &Handler{orchestrator: o, journal: j, artifacts: a}
}

type conversationRequest struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

type conversationResponse struct {
	Response         string   `json:"response"`
	Phase            string   `json:"phase"`
	PendingQuestions []string `json:"pending_questions,omitempty"`
	Artifact         string   `json:"artifact,omitempty"`
}

// resetPhrases are spoken commands that reset the conversation instead of
// being submitted as a turn.
var resetPhrases = []string{
	"reset conversation",
	"reset the conversation",
	"clear conversation",
	"start over",
}

func isResetPhrase(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	t = strings.TrimRight(t, ".!")
	for _, p := range resetPhrases {
		if t == p {
			return true
		}
	}
	return false
}

const resetAckText = "Okay, starting fresh."

func (h *Handler) HandleConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req conversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if isResetPhrase(req.Text) {
		h.orchestrator.Reset(req.ConversationID)
		writeJSON(w, http.StatusOK, conversationResponse{
			Response: resetAckText,
			Phase:    string(convo.PhaseNone),
		})
		return
	}

	reply, err := h.orchestrator.Submit(r.Context(), req.ConversationID, req.Text)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, conversationResponse{
		Response:         reply.Text,
		Phase:            string(reply.Phase),
		PendingQuestions: reply.PendingQuestions,
		Artifact:         reply.Artifact,
	})
}

type resetRequest struct {
	ConversationID string `json:"conversation_id"`
}

func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	h.orchestrator.Reset(req.ConversationID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) HandleJournal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	convID := strings.TrimSpace(r.URL.Query().Get("conversation_id"))

	var (
		entries []journal.Entry
		err     error
	)
	if convID != "" {
		entries, err = h.journal.Conversation(r.Context(), date, convID)
	} else {
		entries, err = h.journal.Day(r.Context(), date)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "journal read failed")
		log.Printf("journal read failed: %v", err)
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) HandleArtifacts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	convID := strings.TrimSpace(r.URL.Query().Get("conversation_id"))
	if convID == "" {
		writeError(w, http.StatusBadRequest, "conversation_id is required")
		return
	}

	if id := strings.TrimSpace(r.URL.Query().Get("id")); id != "" {
		a, err := h.artifacts.Get(r.Context(), convID, id)
		if errors.Is(err, artifactstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "artifact not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "artifact read failed")
			log.Printf("artifact read failed: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write([]byte(a.YAML))
		return
	}

	list, err := h.artifacts.List(r.Context(), convID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "artifact list failed")
		log.Printf("artifact list failed: %v", err)
		return
	}
	if list == nil {
		list = []artifactstore.Artifact{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"artifacts": list})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response failed: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
