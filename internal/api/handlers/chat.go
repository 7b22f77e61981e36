package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/lumenkb/lumen/internal/api"
	"github.com/lumenkb/lumen/internal/service"
)

type ChatService interface {
	Chat(ctx context.Context, input service.ChatInput) (*service.ChatOutput, error)
}

type ChatHandler struct {
	svc ChatService
}

func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type ChatRequest struct {
	SessionID     string `json:"session_id"`
	Message       string `json:"message"`
	AttachmentKey string `json:"attachment_key"`
}

type SourceResponse struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Filepath   string  `json:"filepath,omitempty"`
	Score      float64 `json:"score"`
}

type ChatResponse struct {
	SessionID string           `json:"session_id"`
	Seq       int64            `json:"seq,omitempty"`
	Reply     string           `json:"reply"`
	Sources   []SourceResponse `json:"sources"`
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Message) == "" && req.AttachmentKey == "" {
		api.Error(w, http.StatusBadRequest, "message or attachment_key is required")
		return
	}

	output, err := h.svc.Chat(r.Context(), service.ChatInput{
		SessionID:     req.SessionID,
		Message:       req.Message,
		AttachmentKey: req.AttachmentKey,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	sources := make([]SourceResponse, 0, len(output.Sources))
	for _, p := range output.Sources {
		sources = append(sources, SourceResponse{
			DocumentID: p.Chunk.DocumentID,
			Filename:   p.Chunk.Filename,
			Filepath:   p.Chunk.Filepath,
			Score:      p.Score,
		})
	}

	api.Success(w, http.StatusOK, ChatResponse{
		SessionID: output.SessionID,
		Seq:       output.Seq,
		Reply:     output.Reply,
		Sources:   sources,
	})
}
