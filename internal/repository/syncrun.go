package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumenkb/lumen/internal/domain"
)

// SyncRunRepository stores the reports of completed index sync runs.
type SyncRunRepository struct {
	db dbtx
}

func NewSyncRunRepository(pool *pgxpool.Pool) *SyncRunRepository {
	return &SyncRunRepository{db: pool}
}

func (r *SyncRunRepository) Create(ctx context.Context, report *domain.IndexReport) error {
	failures := report.Failed
	if failures == nil {
		failures = []domain.DocumentFailure{}
	}
	payload, err := json.Marshal(failures)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO sync_runs (id, started_at, finished_at, added, updated, removed, skipped, failures)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		report.RunID,
		report.StartedAt,
		report.FinishedAt,
		report.Added,
		report.Updated,
		report.Removed,
		report.Skipped,
		payload,
	)
	return err
}

// Latest returns the most recently finished sync run.
func (r *SyncRunRepository) Latest(ctx context.Context) (*domain.IndexReport, error) {
	var report domain.IndexReport
	var payload []byte
	err := r.db.QueryRow(ctx,
		`SELECT id, started_at, finished_at, added, updated, removed, skipped, failures
		 FROM sync_runs
		 ORDER BY finished_at DESC, id DESC
		 LIMIT 1`,
	).Scan(
		&report.RunID, &report.StartedAt, &report.FinishedAt,
		&report.Added, &report.Updated, &report.Removed, &report.Skipped,
		&payload,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoSyncRun
		}
		return nil, err
	}

	if err := json.Unmarshal(payload, &report.Failed); err != nil {
		return nil, err
	}
	if len(report.Failed) == 0 {
		report.Failed = nil
	}

	return &report, nil
}
