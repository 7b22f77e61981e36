package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/lumenkb/lumen/internal/api"
	"github.com/lumenkb/lumen/internal/pagination"
	"github.com/lumenkb/lumen/internal/service"
)

type DocumentLister interface {
	ListDocumentsWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*service.DocumentPageResult, error)
}

type DocumentsHandler struct {
	repo DocumentLister
}

func NewDocumentsHandler(repo DocumentLister) *DocumentsHandler {
	return &DocumentsHandler{repo: repo}
}

type DocumentResponse struct {
	DocumentID       string `json:"document_id"`
	Filename         string `json:"filename"`
	Filepath         string `json:"filepath,omitempty"`
	ChunkCount       int    `json:"chunk_count"`
	SourceModifiedAt string `json:"source_modified_at"`
}

type DocumentListResponse struct {
	Items      []DocumentResponse `json:"items"`
	NextCursor string             `json:"next_cursor,omitempty"`
	HasMore    bool               `json:"has_more"`
}

func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 100 {
			api.Error(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	cursor, err := pagination.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid cursor")
		return
	}

	page, err := h.repo.ListDocumentsWithCursor(r.Context(), cursor, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := DocumentListResponse{
		Items:      make([]DocumentResponse, 0, len(page.Items)),
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	}
	for _, d := range page.Items {
		resp.Items = append(resp.Items, DocumentResponse{
			DocumentID:       d.DocumentID,
			Filename:         d.Filename,
			Filepath:         d.Filepath,
			ChunkCount:       d.ChunkCount,
			SourceModifiedAt: d.SourceModifiedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}

	api.Success(w, http.StatusOK, resp)
}
