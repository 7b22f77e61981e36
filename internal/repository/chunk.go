package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/lumenkb/lumen/internal/domain"
	"github.com/lumenkb/lumen/internal/pagination"
	"github.com/lumenkb/lumen/internal/service"
)

// ChunkRepository handles persistence of embedded document chunks.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// ReplaceChunks deletes existing chunks for a document and inserts new ones.
// Callers run this inside a transaction so a mid-write failure leaves the
// previously indexed chunks untouched.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	_, err := r.db.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return err
	}

	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO document_chunks
				(id, document_id, chunk_index, content, filename, filepath, category, source_modified_at, embedding, created_at)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			c.ID,
			c.DocumentID,
			c.Index,
			c.Content,
			c.Filename,
			nullableString(c.Filepath),
			nullableString(c.Category),
			c.SourceModifiedAt,
			pgvector.NewVector(c.Embedding),
			createdAt,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// DeleteByDocument removes all chunks of a document that no longer exists in
// the source.
func (r *ChunkRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID)
	return err
}

// ListIndexedDocuments returns one entry per indexed document with its chunk
// count and the source modification time recorded at indexing.
func (r *ChunkRepository) ListIndexedDocuments(ctx context.Context) ([]*domain.IndexedDocument, error) {
	rows, err := r.db.Query(ctx,
		`SELECT document_id, min(filename), min(filepath), count(*), max(source_modified_at)
		 FROM document_chunks
		 GROUP BY document_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanIndexedDocuments(rows)
}

// EmbeddingDimension reports the vector width of the embedding column. For
// pgvector columns atttypmod holds the declared dimension.
func (r *ChunkRepository) EmbeddingDimension(ctx context.Context) (int, error) {
	var dim int
	err := r.db.QueryRow(ctx,
		`SELECT atttypmod
		 FROM pg_attribute
		 WHERE attrelid = 'document_chunks'::regclass AND attname = 'embedding'`,
	).Scan(&dim)
	if err != nil {
		return 0, err
	}
	return dim, nil
}

// ListDocumentsWithCursor pages through indexed documents ordered by source
// modification time, newest first.
func (r *ChunkRepository) ListDocumentsWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*service.DocumentPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT document_id, min(filename), min(filepath), count(*), max(source_modified_at) AS modified
			 FROM document_chunks
			 GROUP BY document_id
			 HAVING (max(source_modified_at), document_id) < ($1, $2)
			 ORDER BY modified DESC, document_id DESC
			 LIMIT $3`,
			cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT document_id, min(filename), min(filepath), count(*), max(source_modified_at) AS modified
			 FROM document_chunks
			 GROUP BY document_id
			 ORDER BY modified DESC, document_id DESC
			 LIMIT $1`,
			limit+1,
		)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanIndexedDocuments(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(last.DocumentID, last.SourceModifiedAt)
	}

	return &service.DocumentPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// SearchByEmbedding returns the chunks nearest to the query embedding by
// cosine similarity, capped at limit. Only scores strictly above minScore
// qualify; ties are broken by insertion order.
func (r *ChunkRepository) SearchByEmbedding(ctx context.Context, embedding []float32, limit int, minScore float32) ([]*service.ScoredPassage, error) {
	if limit <= 0 {
		return []*service.ScoredPassage{}, nil
	}

	vec := pgvector.NewVector(embedding)

	rows, err := r.db.Query(ctx,
		`SELECT id, document_id, chunk_index, content, filename, filepath, category, source_modified_at, created_at,
		        1 - (embedding <=> $1) AS score
		 FROM document_chunks
		 WHERE 1 - (embedding <=> $1) > $2
		 ORDER BY embedding <=> $1, created_at, chunk_index
		 LIMIT $3`,
		vec, minScore, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]*service.ScoredPassage, 0)
	for rows.Next() {
		var p service.ScoredPassage
		var filepath, category *string
		if err := rows.Scan(
			&p.Chunk.ID, &p.Chunk.DocumentID, &p.Chunk.Index, &p.Chunk.Content,
			&p.Chunk.Filename, &filepath, &category, &p.Chunk.SourceModifiedAt,
			&p.Chunk.CreatedAt, &p.Score,
		); err != nil {
			return nil, err
		}
		if filepath != nil {
			p.Chunk.Filepath = *filepath
		}
		if category != nil {
			p.Chunk.Category = *category
		}
		results = append(results, &p)
	}

	return results, rows.Err()
}

func scanIndexedDocuments(rows pgx.Rows) ([]*domain.IndexedDocument, error) {
	var results []*domain.IndexedDocument
	for rows.Next() {
		var d domain.IndexedDocument
		var filepath *string
		if err := rows.Scan(&d.DocumentID, &d.Filename, &filepath, &d.ChunkCount, &d.SourceModifiedAt); err != nil {
			return nil, err
		}
		if filepath != nil {
			d.Filepath = *filepath
		}
		results = append(results, &d)
	}
	return results, rows.Err()
}
