package service

import (
	"context"
	"fmt"

	"github.com/lumenkb/lumen/internal/domain"
)

// ScoredPassage is one retrieved chunk with its cosine similarity to the
// query, in [0, 1].
type ScoredPassage struct {
	Chunk domain.Chunk
	Score float64
}

// DocumentPageResult is one page of the indexed document listing.
type DocumentPageResult struct {
	Items      []*domain.IndexedDocument
	NextCursor string
	HasMore    bool
}

// QueryEmbedder embeds a single query text.
type QueryEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// PassageSearcher finds the chunks nearest to an embedding.
type PassageSearcher interface {
	SearchByEmbedding(ctx context.Context, embedding []float32, limit int, minScore float32) ([]*ScoredPassage, error)
}

// RetrieverService resolves a query to its most similar indexed passages.
type RetrieverService struct {
	embedder      QueryEmbedder
	searcher      PassageSearcher
	topK          int
	minSimilarity float32
}

func NewRetrieverService(embedder QueryEmbedder, searcher PassageSearcher, topK int, minSimilarity float32) *RetrieverService {
	return &RetrieverService{
		embedder:      embedder,
		searcher:      searcher,
		topK:          topK,
		minSimilarity: minSimilarity,
	}
}

// Search embeds the query and returns up to TopK passages strictly above the
// similarity threshold, best first. A TopK of zero disables retrieval
// without calling the embedding API. An empty result is a valid outcome,
// not an error.
func (s *RetrieverService) Search(ctx context.Context, query string) ([]*ScoredPassage, error) {
	if s.topK == 0 || query == "" {
		return []*ScoredPassage{}, nil
	}

	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	passages, err := s.searcher.SearchByEmbedding(ctx, embedding, s.topK, s.minSimilarity)
	if err != nil {
		return nil, fmt.Errorf("passage search failed: %w", err)
	}

	return passages, nil
}
