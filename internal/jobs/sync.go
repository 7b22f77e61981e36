package jobs

import (
	"context"
	"log"

	"github.com/lumenkb/lumen/internal/domain"
	"github.com/lumenkb/lumen/internal/telemetry"
)

// Syncer runs one index sync against the document source.
type Syncer interface {
	Sync(ctx context.Context) (*domain.IndexReport, error)
}

// SyncProcessor drives scheduled index syncs from the worker loop.
type SyncProcessor struct {
	indexer Syncer
}

func NewSyncProcessor(indexer Syncer) *SyncProcessor {
	return &SyncProcessor{indexer: indexer}
}

// ProcessJobs runs one sync pass. Per-document failures are part of the
// report and do not fail the pass.
func (p *SyncProcessor) ProcessJobs(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "jobs.sync", telemetry.SpanAttributes{Operation: "scheduled_sync"})
	defer span.End()

	report, err := p.indexer.Sync(ctx)
	if err != nil {
		span.SetError(err)
		return err
	}

	log.Printf("sync run %s: added=%d updated=%d removed=%d skipped=%d failed=%d",
		report.RunID, report.Added, report.Updated, report.Removed, report.Skipped, len(report.Failed))

	if !report.Clean() {
		for _, f := range report.Failed {
			log.Printf("sync run %s: document %s (%s) failed: %s", report.RunID, f.DocumentID, f.Name, f.Reason)
		}
		telemetry.CaptureMessage(ctx, "sync completed with document failures")
	}

	return nil
}
