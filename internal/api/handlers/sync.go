package handlers

import (
	"context"
	"net/http"

	"github.com/lumenkb/lumen/internal/api"
	"github.com/lumenkb/lumen/internal/domain"
)

type IndexerService interface {
	Sync(ctx context.Context) (*domain.IndexReport, error)
	LatestReport(ctx context.Context) (*domain.IndexReport, error)
}

type SyncHandler struct {
	svc IndexerService
}

func NewSyncHandler(svc IndexerService) *SyncHandler {
	return &SyncHandler{svc: svc}
}

type FailureResponse struct {
	DocumentID string `json:"document_id"`
	Name       string `json:"name"`
	Reason     string `json:"reason"`
}

type SyncReportResponse struct {
	RunID      string            `json:"run_id"`
	StartedAt  string            `json:"started_at"`
	FinishedAt string            `json:"finished_at"`
	Added      int               `json:"added"`
	Updated    int               `json:"updated"`
	Removed    int               `json:"removed"`
	Skipped    int               `json:"skipped"`
	Failed     []FailureResponse `json:"failed"`
}

func reportToResponse(report *domain.IndexReport) *SyncReportResponse {
	resp := &SyncReportResponse{
		RunID:      report.RunID,
		StartedAt:  report.StartedAt.UTC().Format("2006-01-02T15:04:05Z"),
		FinishedAt: report.FinishedAt.UTC().Format("2006-01-02T15:04:05Z"),
		Added:      report.Added,
		Updated:    report.Updated,
		Removed:    report.Removed,
		Skipped:    report.Skipped,
		Failed:     make([]FailureResponse, 0, len(report.Failed)),
	}
	for _, f := range report.Failed {
		resp.Failed = append(resp.Failed, FailureResponse{
			DocumentID: f.DocumentID,
			Name:       f.Name,
			Reason:     f.Reason,
		})
	}
	return resp
}

// Trigger runs a sync against the document source and returns its report.
// Concurrent triggers are serialized by the indexer.
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Sync(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, reportToResponse(report))
}

// Latest returns the report of the most recent completed sync run.
func (h *SyncHandler) Latest(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.LatestReport(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, reportToResponse(report))
}
