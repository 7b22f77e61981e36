package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumenkb/lumen/internal/domain"
)

// DocumentSource enumerates the documents of an external store and fetches
// their content. Enumeration returns metadata only; content is loaded per
// document during indexing.
type DocumentSource interface {
	ListDocuments(ctx context.Context) ([]*domain.Document, error)
	FetchContent(ctx context.Context, doc *domain.Document) (string, error)
}

// BatchEmbedder generates embeddings for batches of chunk texts.
type BatchEmbedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkWriter replaces the indexed chunks of a document.
type ChunkWriter interface {
	ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error
}

// ChunkIndex reads and prunes the set of indexed documents.
type ChunkIndex interface {
	ListIndexedDocuments(ctx context.Context) ([]*domain.IndexedDocument, error)
	DeleteByDocument(ctx context.Context, documentID string) error
}

// SyncRunStore persists completed sync reports.
type SyncRunStore interface {
	Create(ctx context.Context, report *domain.IndexReport) error
	Latest(ctx context.Context) (*domain.IndexReport, error)
}

// IndexerService keeps the vector index in step with the document source.
// Unchanged documents are skipped by modification time, changed ones are
// re-chunked and re-embedded, and documents gone from the source are pruned.
type IndexerService struct {
	source   DocumentSource
	embedder BatchEmbedder
	chunks   ChunkIndex
	tx       TxRunner
	runs     SyncRunStore
	chunkCfg ChunkConfig

	// mu serializes sync runs; concurrent callers block until the
	// in-flight run finishes.
	mu sync.Mutex
}

func NewIndexerService(source DocumentSource, embedder BatchEmbedder, chunks ChunkIndex, tx TxRunner, runs SyncRunStore, chunkCfg ChunkConfig) *IndexerService {
	if chunkCfg.ChunkSize <= 0 {
		chunkCfg = DefaultChunkConfig()
	}
	return &IndexerService{
		source:   source,
		embedder: embedder,
		chunks:   chunks,
		tx:       tx,
		runs:     runs,
		chunkCfg: chunkCfg,
	}
}

// Sync runs one full pass against the document source and returns the run
// report. A failure to enumerate the source fails the whole run; a failure
// on a single document is recorded in the report and leaves that document's
// previously indexed chunks intact.
func (s *IndexerService) Sync(ctx context.Context) (*domain.IndexReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := &domain.IndexReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}

	docs, err := s.source.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceListing, err)
	}

	indexed, err := s.chunks.ListIndexedDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexed documents: %w", err)
	}

	indexedByID := make(map[string]*domain.IndexedDocument, len(indexed))
	for _, d := range indexed {
		indexedByID[d.DocumentID] = d
	}

	seen := make(map[string]bool, len(docs))
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seen[doc.ID] = true

		existing, ok := indexedByID[doc.ID]
		if ok && !doc.ModifiedAt.After(existing.SourceModifiedAt) {
			report.Skipped++
			continue
		}

		if err := s.indexDocument(ctx, doc); err != nil {
			log.Printf("sync: failed to index document %s (%s): %v", doc.ID, doc.Name, err)
			report.Failed = append(report.Failed, domain.DocumentFailure{
				DocumentID: doc.ID,
				Name:       doc.Name,
				Reason:     err.Error(),
			})
			continue
		}

		if ok {
			report.Updated++
		} else {
			report.Added++
		}
	}

	for id, d := range indexedByID {
		if seen[id] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.chunks.DeleteByDocument(ctx, id); err != nil {
			log.Printf("sync: failed to remove document %s: %v", id, err)
			report.Failed = append(report.Failed, domain.DocumentFailure{
				DocumentID: id,
				Name:       d.Filename,
				Reason:     fmt.Sprintf("removal failed: %v", err),
			})
			continue
		}
		report.Removed++
	}

	report.FinishedAt = time.Now().UTC()

	if err := s.runs.Create(ctx, report); err != nil {
		log.Printf("sync: failed to persist run %s: %v", report.RunID, err)
	}

	return report, nil
}

// indexDocument fetches, chunks, embeds and stores one document. The chunk
// replacement runs in a transaction: on any error the old chunks survive.
func (s *IndexerService) indexDocument(ctx context.Context, doc *domain.Document) error {
	content, err := s.source.FetchContent(ctx, doc)
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}
	doc.Content = content

	chunks := splitDocument(doc, s.chunkCfg)

	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Content
		}

		embeddings, err := s.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding failed: %w", err)
		}

		for i := range chunks {
			chunks[i].ID = uuid.NewString()
			chunks[i].Embedding = embeddings[i]
		}
	}

	return s.tx.WithTx(ctx, func(repos TxRepositories) error {
		return repos.Chunks().ReplaceChunks(ctx, doc.ID, chunks)
	})
}

// LatestReport returns the report of the most recent completed run.
func (s *IndexerService) LatestReport(ctx context.Context) (*domain.IndexReport, error) {
	return s.runs.Latest(ctx)
}
