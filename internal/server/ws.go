package server

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type wsInbound struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId,omitempty"`
	Text           string `json:"text,omitempty"`
}

type wsOutbound struct {
	Type             string   `json:"type"`
	ConversationID   string   `json:"conversationId,omitempty"`
	Response         string   `json:"response,omitempty"`
	Phase            string   `json:"phase,omitempty"`
	PendingQuestions []string `json:"pendingQuestions,omitempty"`
	Artifact         string   `json:"artifact,omitempty"`
	Code             string   `json:"code,omitempty"`
	Message          string   `json:"message,omitempty"`
}

// HandleConversationWS streams one conversation over a websocket. The
// conversation id is fixed at upgrade time via the query string.
func (h *Handler) HandleConversationWS(w http.ResponseWriter, r *http.Request) {
	convID := strings.TrimSpace(r.URL.Query().Get("conversation_id"))
	if convID == "" {
		http.Error(w, "conversation_id is required", http.StatusBadRequest)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		log.Printf("conversation ws set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	writeCh := make(chan wsOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(wsPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	pushWS(writeCh, wsOutbound{Type: "subscribed", ConversationID: convID})

	for {
		var in wsInbound
		if err := conn.ReadJSON(&in); err != nil {
			cancel()
			<-writerDone
			return
		}
		// Model calls run inline; the pong-extended read deadline would
		// otherwise expire under a slow completion.
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

		msgType := strings.ToLower(strings.TrimSpace(in.Type))
		switch msgType {
		case "ping":
			pushWS(writeCh, wsOutbound{Type: "pong"})
		case "message":
			if isResetPhrase(in.Text) {
				h.orchestrator.Reset(convID)
				pushWS(writeCh, wsOutbound{
					Type:           "reply",
					ConversationID: convID,
					Response:       resetAckText,
					Phase:          "none",
				})
				continue
			}
			reply, err := h.orchestrator.Submit(ctx, convID, in.Text)
			if err != nil {
				pushWS(writeCh, wsOutbound{
					Type:    "error",
					Code:    "invalid_argument",
					Message: err.Error(),
				})
				continue
			}
			pushWS(writeCh, wsOutbound{
				Type:             "reply",
				ConversationID:   convID,
				Response:         reply.Text,
				Phase:            string(reply.Phase),
				PendingQuestions: reply.PendingQuestions,
				Artifact:         reply.Artifact,
			})
		case "reset":
			h.orchestrator.Reset(convID)
			pushWS(writeCh, wsOutbound{Type: "reset_ack", ConversationID: convID})
		default:
			pushWS(writeCh, wsOutbound{
				Type:    "error",
				Code:    "invalid_argument",
				Message: "unsupported type: " + msgType,
			})
		}
	}
}

// pushWS never blocks the caller: when the buffer is full the oldest
// pending frame is dropped in favor of the new one.
func pushWS(writeCh chan wsOutbound, out wsOutbound) {
	if writeCh == nil {
		return
	}
	select {
	case writeCh <- out:
		return
	default:
	}
	select {
	case <-writeCh:
	default:
	}
	select {
	case writeCh <- out:
	default:
	}
}
