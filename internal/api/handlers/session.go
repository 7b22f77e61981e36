package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lumenkb/lumen/internal/api"
	"github.com/lumenkb/lumen/internal/domain"
)

type ConversationService interface {
	Turns(ctx context.Context, sessionID string) ([]*domain.ConversationTurn, error)
}

type SessionHandler struct {
	svc ConversationService
}

func NewSessionHandler(svc ConversationService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

type TurnResponse struct {
	ID            string `json:"id"`
	Seq           int64  `json:"seq"`
	Role          string `json:"role"`
	Content       string `json:"content"`
	AttachmentKey string `json:"attachment_key,omitempty"`
	CreatedAt     string `json:"created_at"`
}

type TurnsResponse struct {
	SessionID string         `json:"session_id"`
	Turns     []TurnResponse `json:"turns"`
}

func (h *SessionHandler) ListTurns(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if sessionID == "" {
		api.Error(w, http.StatusBadRequest, "session id is required")
		return
	}

	turns, err := h.svc.Turns(r.Context(), sessionID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := TurnsResponse{
		SessionID: sessionID,
		Turns:     make([]TurnResponse, 0, len(turns)),
	}
	for _, t := range turns {
		resp.Turns = append(resp.Turns, TurnResponse{
			ID:            t.ID,
			Seq:           t.Seq,
			Role:          string(t.Role),
			Content:       t.Content,
			AttachmentKey: t.AttachmentKey,
			CreatedAt:     t.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}

	api.Success(w, http.StatusOK, resp)
}
