package domain

import (
	"fmt"
	"time"
)

// Document represents a source artifact observed by the indexer. Documents
// are owned by the external source; the indexer reads them and never writes
// back.
type Document struct {
	ID         string
	Name       string
	Path       string
	MimeType   string
	Category   string
	ModifiedAt time.Time
	Content    string
}

// Chunk is a contiguous slice of a document's text, the unit of embedding
// and retrieval. Chunks for one document are ordered by Index; adjacent
// chunks overlap by the configured number of characters.
type Chunk struct {
	ID               string
	DocumentID       string
	Index            int
	Content          string
	Filename         string
	Filepath         string
	Category         string
	SourceModifiedAt time.Time
	Embedding        []float32
	CreatedAt        time.Time
}

// IndexedDocument is the index-side view of a document: identity plus the
// bookkeeping the incremental sync needs.
type IndexedDocument struct {
	DocumentID       string
	Filename         string
	Filepath         string
	ChunkCount       int
	SourceModifiedAt time.Time
}

// ValidateChunk validates a Chunk before it is written to the index.
func ValidateChunk(c *Chunk) error {
	if c == nil {
		return fmt.Errorf("chunk cannot be nil")
	}
	if c.DocumentID == "" {
		return ErrMissingDocumentID
	}
	if c.Index < 0 {
		return fmt.Errorf("chunk Index must not be negative")
	}
	if c.Content == "" {
		return fmt.Errorf("chunk Content is required")
	}
	if len(c.Embedding) == 0 {
		return fmt.Errorf("chunk Embedding is required")
	}
	return nil
}
