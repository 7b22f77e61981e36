package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/lumenkb/lumen/internal/api"
	"github.com/lumenkb/lumen/internal/domain"
)

// maxAttachmentBytes caps uploaded images at 10MB.
const maxAttachmentBytes = 10 * 1024 * 1024

type AttachmentStore interface {
	Put(ctx context.Context, key string, contentType string, data []byte) error
}

type AttachmentHandler struct {
	store AttachmentStore
}

func NewAttachmentHandler(store AttachmentStore) *AttachmentHandler {
	return &AttachmentHandler{store: store}
}

type AttachmentResponse struct {
	Key string `json:"key"`
}

// Upload stores an image and returns the key to reference it from a chat
// turn. The body is the raw image; Content-Type must be an image type.
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		api.Error(w, http.StatusServiceUnavailable, "attachment storage not configured")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		api.HandleError(w, domain.ErrInvalidAttachment)
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxAttachmentBytes+1))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(data) == 0 {
		api.HandleError(w, domain.ErrInvalidAttachment)
		return
	}
	if len(data) > maxAttachmentBytes {
		api.HandleError(w, domain.ErrAttachmentTooLarge)
		return
	}

	key := "attachments/" + uuid.NewString()
	if err := h.store.Put(r.Context(), key, contentType, data); err != nil {
		api.Error(w, http.StatusInternalServerError, "failed to store attachment")
		return
	}

	api.Success(w, http.StatusCreated, AttachmentResponse{Key: key})
}
