package server

import "net/http"

func NewMux(h *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/conversation", h.HandleConversation)
	mux.HandleFunc("/reset-conversation", h.HandleReset)
	mux.HandleFunc("/ws/conversation", h.HandleConversationWS)

	mux.HandleFunc("/journal", h.HandleJournal)
	mux.HandleFunc("/artifacts", h.HandleArtifacts)
	mux.HandleFunc("/health", h.HandleHealth)

	return cors(mux)
}
