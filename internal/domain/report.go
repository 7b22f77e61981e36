package domain

import "time"

// DocumentFailure records one document the sync could not index. The rest of
// the run is unaffected.
type DocumentFailure struct {
	DocumentID string
	Name       string
	Reason     string
}

// IndexReport summarizes one sync run against the document source.
type IndexReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Added      int
	Updated    int
	Removed    int
	Skipped    int
	Failed     []DocumentFailure
}

// Total returns the number of source documents the run considered.
func (r *IndexReport) Total() int {
	return r.Added + r.Updated + r.Skipped + len(r.Failed)
}

// Clean reports whether the run completed without per-document failures.
func (r *IndexReport) Clean() bool {
	return len(r.Failed) == 0
}
