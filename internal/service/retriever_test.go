package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lumenkb/lumen/internal/domain"
)

// MockQueryEmbedder is a mock implementation of QueryEmbedder
type MockQueryEmbedder struct {
	mock.Mock
}

func (m *MockQueryEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockPassageSearcher is a mock implementation of PassageSearcher
type MockPassageSearcher struct {
	mock.Mock
}

func (m *MockPassageSearcher) SearchByEmbedding(ctx context.Context, embedding []float32, limit int, minScore float32) ([]*ScoredPassage, error) {
	args := m.Called(ctx, embedding, limit, minScore)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ScoredPassage), args.Error(1)
}

func TestRetrieverService_Search_ReturnsPassages(t *testing.T) {
	ctx := context.Background()
	embedder := new(MockQueryEmbedder)
	searcher := new(MockPassageSearcher)
	svc := NewRetrieverService(embedder, searcher, 4, 0.7)

	embedding := []float32{0.1, 0.2, 0.3}
	passages := []*ScoredPassage{
		{Chunk: domain.Chunk{DocumentID: "doc-1", Content: "best match"}, Score: 0.93},
		{Chunk: domain.Chunk{DocumentID: "doc-2", Content: "second"}, Score: 0.81},
	}

	embedder.On("EmbedText", ctx, "how do I reset my password").Return(embedding, nil)
	searcher.On("SearchByEmbedding", ctx, embedding, 4, float32(0.7)).Return(passages, nil)

	got, err := svc.Search(ctx, "how do I reset my password")

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "doc-1", got[0].Chunk.DocumentID)
	assert.GreaterOrEqual(t, got[0].Score, got[1].Score)
	embedder.AssertExpectations(t)
	searcher.AssertExpectations(t)
}

func TestRetrieverService_Search_TopKZeroSkipsEmbedding(t *testing.T) {
	ctx := context.Background()
	embedder := new(MockQueryEmbedder)
	searcher := new(MockPassageSearcher)
	svc := NewRetrieverService(embedder, searcher, 0, 0.7)

	got, err := svc.Search(ctx, "anything")

	require.NoError(t, err)
	assert.Empty(t, got)
	embedder.AssertNotCalled(t, "EmbedText")
	searcher.AssertNotCalled(t, "SearchByEmbedding")
}

func TestRetrieverService_Search_EmptyQuery(t *testing.T) {
	ctx := context.Background()
	embedder := new(MockQueryEmbedder)
	searcher := new(MockPassageSearcher)
	svc := NewRetrieverService(embedder, searcher, 4, 0.7)

	got, err := svc.Search(ctx, "")

	require.NoError(t, err)
	assert.Empty(t, got)
	embedder.AssertNotCalled(t, "EmbedText")
}

func TestRetrieverService_Search_NoMatchesIsNotAnError(t *testing.T) {
	ctx := context.Background()
	embedder := new(MockQueryEmbedder)
	searcher := new(MockPassageSearcher)
	svc := NewRetrieverService(embedder, searcher, 4, 0.7)

	embedding := []float32{0.5}
	embedder.On("EmbedText", ctx, "unrelated question").Return(embedding, nil)
	searcher.On("SearchByEmbedding", ctx, embedding, 4, float32(0.7)).Return([]*ScoredPassage{}, nil)

	got, err := svc.Search(ctx, "unrelated question")

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRetrieverService_Search_EmbeddingError(t *testing.T) {
	ctx := context.Background()
	embedder := new(MockQueryEmbedder)
	searcher := new(MockPassageSearcher)
	svc := NewRetrieverService(embedder, searcher, 4, 0.7)

	embedder.On("EmbedText", ctx, "query").Return(nil, errors.New("api down"))

	got, err := svc.Search(ctx, "query")

	require.Error(t, err)
	assert.Nil(t, got)
	assert.Contains(t, err.Error(), "failed to embed query")
	searcher.AssertNotCalled(t, "SearchByEmbedding")
}

func TestRetrieverService_Search_SearchError(t *testing.T) {
	ctx := context.Background()
	embedder := new(MockQueryEmbedder)
	searcher := new(MockPassageSearcher)
	svc := NewRetrieverService(embedder, searcher, 4, 0.7)

	embedding := []float32{0.5}
	embedder.On("EmbedText", ctx, "query").Return(embedding, nil)
	searcher.On("SearchByEmbedding", ctx, embedding, 4, float32(0.7)).Return(nil, errors.New("index offline"))

	got, err := svc.Search(ctx, "query")

	require.Error(t, err)
	assert.Nil(t, got)
	assert.Contains(t, err.Error(), "passage search failed")
}
