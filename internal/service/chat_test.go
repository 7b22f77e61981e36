package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lumenkb/lumen/internal/domain"
)

// MockPassageRetriever is a mock implementation of PassageRetriever
type MockPassageRetriever struct {
	mock.Mock
}

func (m *MockPassageRetriever) Search(ctx context.Context, query string) ([]*ScoredPassage, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ScoredPassage), args.Error(1)
}

// MockGenerator is a mock implementation of Generator
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, messages []GenMessage) (string, error) {
	args := m.Called(ctx, messages)
	return args.String(0), args.Error(1)
}

// MockImageDescriber is a mock implementation of ImageDescriber
type MockImageDescriber struct {
	mock.Mock
}

func (m *MockImageDescriber) DescribeImage(ctx context.Context, mimeType string, data []byte) (string, error) {
	args := m.Called(ctx, mimeType, data)
	return args.String(0), args.Error(1)
}

// MockAttachmentFetcher is a mock implementation of AttachmentFetcher
type MockAttachmentFetcher struct {
	mock.Mock
}

func (m *MockAttachmentFetcher) Fetch(ctx context.Context, key string) ([]byte, string, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.String(1), args.Error(2)
}

type chatFixture struct {
	retriever   *MockPassageRetriever
	generator   *MockGenerator
	describer   *MockImageDescriber
	attachments *MockAttachmentFetcher
	turns       *MockTurnStore
	svc         *ChatService
}

func newChatFixture() *chatFixture {
	f := &chatFixture{
		retriever:   new(MockPassageRetriever),
		generator:   new(MockGenerator),
		describer:   new(MockImageDescriber),
		attachments: new(MockAttachmentFetcher),
		turns:       new(MockTurnStore),
	}
	f.svc = NewChatService(f.retriever, f.generator, f.describer, f.attachments, f.turns, 10)
	return f
}

func systemMessageOf(messages []GenMessage) string {
	if len(messages) == 0 || messages[0].Role != "system" {
		return ""
	}
	return messages[0].Content
}

func TestChatService_Chat_HappyPath(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture()

	passages := []*ScoredPassage{
		{Chunk: domain.Chunk{DocumentID: "doc-1", Filename: "faq.md", Filepath: "/faq.md", Content: "Reset via settings."}, Score: 0.9},
	}

	f.retriever.On("Search", ctx, "how do I reset my password").Return(passages, nil)
	f.turns.On("Recent", ctx, "session-1", 10).Return([]*domain.ConversationTurn{}, nil)
	f.generator.On("Generate", ctx, mock.MatchedBy(func(messages []GenMessage) bool {
		system := systemMessageOf(messages)
		return strings.Contains(system, "faq.md") &&
			strings.Contains(system, "Reset via settings.") &&
			messages[len(messages)-1].Role == "user" &&
			messages[len(messages)-1].Content == "how do I reset my password"
	})).Return("Go to settings and click reset.", nil)
	f.turns.On("Append", ctx, mock.MatchedBy(func(turn *domain.ConversationTurn) bool {
		return turn.Role == domain.RoleUser && turn.Content == "how do I reset my password"
	})).Return(nil).Once()
	f.turns.On("Append", ctx, mock.MatchedBy(func(turn *domain.ConversationTurn) bool {
		return turn.Role == domain.RoleAssistant && turn.Content == "Go to settings and click reset."
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.ConversationTurn).Seq = 2
	}).Return(nil).Once()

	out, err := f.svc.Chat(ctx, ChatInput{SessionID: "session-1", Message: "how do I reset my password"})

	require.NoError(t, err)
	assert.Equal(t, "session-1", out.SessionID)
	assert.Equal(t, int64(2), out.Seq)
	assert.Equal(t, "Go to settings and click reset.", out.Reply)
	require.Len(t, out.Sources, 1)
	assert.Equal(t, "doc-1", out.Sources[0].Chunk.DocumentID)
	f.turns.AssertExpectations(t)
}

func TestChatService_Chat_EmptyInput(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture()

	out, err := f.svc.Chat(ctx, ChatInput{SessionID: "session-1", Message: "   "})

	assert.ErrorIs(t, err, domain.ErrEmptyTurn)
	assert.Nil(t, out)
	f.generator.AssertNotCalled(t, "Generate")
}

func TestChatService_Chat_GeneratesSessionID(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture()

	f.retriever.On("Search", ctx, "hello").Return([]*ScoredPassage{}, nil)
	f.turns.On("Recent", ctx, mock.Anything, 10).Return([]*domain.ConversationTurn{}, nil)
	f.generator.On("Generate", ctx, mock.Anything).Return("hi", nil)
	f.turns.On("Append", ctx, mock.Anything).Return(nil)

	out, err := f.svc.Chat(ctx, ChatInput{Message: "hello"})

	require.NoError(t, err)
	assert.NotEmpty(t, out.SessionID)
}

func TestChatService_Chat_NoMatchesUsesNoContextInstruction(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture()

	f.retriever.On("Search", ctx, "unknown topic").Return([]*ScoredPassage{}, nil)
	f.turns.On("Recent", ctx, "session-1", 10).Return([]*domain.ConversationTurn{}, nil)
	f.generator.On("Generate", ctx, mock.MatchedBy(func(messages []GenMessage) bool {
		return strings.Contains(systemMessageOf(messages), noContextInstruction)
	})).Return("That is not covered by the documentation.", nil)
	f.turns.On("Append", ctx, mock.Anything).Return(nil)

	out, err := f.svc.Chat(ctx, ChatInput{SessionID: "session-1", Message: "unknown topic"})

	require.NoError(t, err)
	assert.Empty(t, out.Sources)
	f.generator.AssertExpectations(t)
}

func TestChatService_Chat_RetrievalFailureDegrades(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture()

	f.retriever.On("Search", ctx, "question").Return(nil, errors.New("index offline"))
	f.turns.On("Recent", ctx, "session-1", 10).Return([]*domain.ConversationTurn{}, nil)
	f.generator.On("Generate", ctx, mock.MatchedBy(func(messages []GenMessage) bool {
		return strings.Contains(systemMessageOf(messages), noContextInstruction)
	})).Return("reply without context", nil)
	f.turns.On("Append", ctx, mock.Anything).Return(nil)

	out, err := f.svc.Chat(ctx, ChatInput{SessionID: "session-1", Message: "question"})

	require.NoError(t, err)
	assert.Equal(t, "reply without context", out.Reply)
	assert.Empty(t, out.Sources)
}

func TestChatService_Chat_HistoryFailureDegrades(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture()

	f.retriever.On("Search", ctx, "question").Return([]*ScoredPassage{}, nil)
	f.turns.On("Recent", ctx, "session-1", 10).Return(nil, errors.New("db down"))
	f.generator.On("Generate", ctx, mock.MatchedBy(func(messages []GenMessage) bool {
		// system + user only, no history
		return len(messages) == 2
	})).Return("reply", nil)
	f.turns.On("Append", ctx, mock.Anything).Return(nil)

	out, err := f.svc.Chat(ctx, ChatInput{SessionID: "session-1", Message: "question"})

	require.NoError(t, err)
	assert.Equal(t, "reply", out.Reply)
}

func TestChatService_Chat_HistoryIncludedInPrompt(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture()

	history := []*domain.ConversationTurn{
		{SessionID: "session-1", Seq: 1, Role: domain.RoleUser, Content: "first question"},
		{SessionID: "session-1", Seq: 2, Role: domain.RoleAssistant, Content: "first answer"},
	}

	f.retriever.On("Search", ctx, "followup").Return([]*ScoredPassage{}, nil)
	f.turns.On("Recent", ctx, "session-1", 10).Return(history, nil)
	f.generator.On("Generate", ctx, mock.MatchedBy(func(messages []GenMessage) bool {
		return len(messages) == 4 &&
			messages[1].Role == "user" && messages[1].Content == "first question" &&
			messages[2].Role == "assistant" && messages[2].Content == "first answer" &&
			messages[3].Content == "followup"
	})).Return("second answer", nil)
	f.turns.On("Append", ctx, mock.Anything).Return(nil)

	_, err := f.svc.Chat(ctx, ChatInput{SessionID: "session-1", Message: "followup"})

	require.NoError(t, err)
	f.generator.AssertExpectations(t)
}

func TestChatService_Chat_GenerationFailureFailsTurn(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture()

	f.retriever.On("Search", ctx, "question").Return([]*ScoredPassage{}, nil)
	f.turns.On("Recent", ctx, "session-1", 10).Return([]*domain.ConversationTurn{}, nil)
	f.generator.On("Generate", ctx, mock.Anything).Return("", errors.New("model overloaded"))

	out, err := f.svc.Chat(ctx, ChatInput{SessionID: "session-1", Message: "question"})

	require.Error(t, err)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, domain.ErrGenerationFailed)
	f.turns.AssertNotCalled(t, "Append")
}

func TestChatService_Chat_PersistenceFailureStillReturnsReply(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture()

	f.retriever.On("Search", ctx, "question").Return([]*ScoredPassage{}, nil)
	f.turns.On("Recent", ctx, "session-1", 10).Return([]*domain.ConversationTurn{}, nil)
	f.generator.On("Generate", ctx, mock.Anything).Return("the reply", nil)
	f.turns.On("Append", ctx, mock.Anything).Return(errors.New("insert failed"))

	out, err := f.svc.Chat(ctx, ChatInput{SessionID: "session-1", Message: "question"})

	require.NoError(t, err)
	assert.Equal(t, "the reply", out.Reply)
	assert.Equal(t, int64(0), out.Seq)
}

func TestChatService_Chat_AttachmentJoinsQuery(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture()

	imageData := []byte{0x89, 0x50}
	f.attachments.On("Fetch", ctx, "attachments/img-1").Return(imageData, "image/png", nil)
	f.describer.On("DescribeImage", ctx, "image/png", imageData).Return("a screenshot showing error E42", nil)

	expectedQuery := "what is this error\n\n[Attached image] a screenshot showing error E42"
	f.retriever.On("Search", ctx, expectedQuery).Return([]*ScoredPassage{}, nil)
	f.turns.On("Recent", ctx, "session-1", 10).Return([]*domain.ConversationTurn{}, nil)
	f.generator.On("Generate", ctx, mock.Anything).Return("E42 means...", nil)
	f.turns.On("Append", ctx, mock.MatchedBy(func(turn *domain.ConversationTurn) bool {
		return turn.Role != domain.RoleUser || turn.AttachmentKey == "attachments/img-1"
	})).Return(nil)

	out, err := f.svc.Chat(ctx, ChatInput{
		SessionID:     "session-1",
		Message:       "what is this error",
		AttachmentKey: "attachments/img-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "E42 means...", out.Reply)
	f.retriever.AssertExpectations(t)
}

func TestChatService_Chat_ImageDescriptionFailureDegradesToText(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture()

	f.attachments.On("Fetch", ctx, "attachments/img-1").Return(nil, "", errors.New("object missing"))
	f.retriever.On("Search", ctx, "what is this error").Return([]*ScoredPassage{}, nil)
	f.turns.On("Recent", ctx, "session-1", 10).Return([]*domain.ConversationTurn{}, nil)
	f.generator.On("Generate", ctx, mock.Anything).Return("reply", nil)
	f.turns.On("Append", ctx, mock.Anything).Return(nil)

	out, err := f.svc.Chat(ctx, ChatInput{
		SessionID:     "session-1",
		Message:       "what is this error",
		AttachmentKey: "attachments/img-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "reply", out.Reply)
	f.describer.AssertNotCalled(t, "DescribeImage")
}

func TestChatService_Chat_AttachmentOnlyWithFailedAnalysis(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture()

	f.attachments.On("Fetch", ctx, "attachments/img-1").Return(nil, "", errors.New("object missing"))
	f.turns.On("Recent", ctx, "session-1", 10).Return([]*domain.ConversationTurn{}, nil)
	f.generator.On("Generate", ctx, mock.MatchedBy(func(messages []GenMessage) bool {
		return messages[len(messages)-1].Content != ""
	})).Return("I could not read the image.", nil)
	f.turns.On("Append", ctx, mock.Anything).Return(nil)

	out, err := f.svc.Chat(ctx, ChatInput{SessionID: "session-1", AttachmentKey: "attachments/img-1"})

	require.NoError(t, err)
	assert.Equal(t, "I could not read the image.", out.Reply)
	// No query text, so retrieval is skipped entirely.
	f.retriever.AssertNotCalled(t, "Search")
}

func TestChatService_Chat_NoImageAnalysisConfigured(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture()
	svc := NewChatService(f.retriever, f.generator, nil, nil, f.turns, 10)

	f.retriever.On("Search", ctx, "question").Return([]*ScoredPassage{}, nil)
	f.turns.On("Recent", ctx, "session-1", 10).Return([]*domain.ConversationTurn{}, nil)
	f.generator.On("Generate", ctx, mock.Anything).Return("reply", nil)
	f.turns.On("Append", ctx, mock.Anything).Return(nil)

	out, err := svc.Chat(ctx, ChatInput{
		SessionID:     "session-1",
		Message:       "question",
		AttachmentKey: "attachments/img-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "reply", out.Reply)
}

func TestBuildMessages_SkipsEmptyHistoryTurns(t *testing.T) {
	history := []*domain.ConversationTurn{
		{Role: domain.RoleUser, Content: ""},
		{Role: domain.RoleAssistant, Content: "kept"},
	}

	messages := buildMessages(nil, history, "question")

	require.Len(t, messages, 3)
	assert.Equal(t, "kept", messages[1].Content)
}

func TestSessionLocks_SerializesSameSession(t *testing.T) {
	var locks sessionLocks

	unlock := locks.lock("session-1")

	acquired := make(chan struct{})
	go func() {
		inner := locks.lock("session-1")
		inner()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first still held")
	default:
	}

	unlock()
	<-acquired
}

func TestSessionLocks_DifferentSessionsIndependent(t *testing.T) {
	var locks sessionLocks

	unlockA := locks.lock("session-a")
	defer unlockA()

	unlockB := locks.lock("session-b")
	unlockB()
}
