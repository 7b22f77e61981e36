package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lumenkb/lumen/internal/domain"
	"github.com/lumenkb/lumen/internal/service"
)

// MockChatService is a mock implementation of ChatService
type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) Chat(ctx context.Context, input service.ChatInput) (*service.ChatOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ChatOutput), args.Error(1)
}

func decodeData(t *testing.T, body []byte, out interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func TestChatHandler_Chat_Success(t *testing.T) {
	svc := new(MockChatService)
	handler := NewChatHandler(svc)

	output := &service.ChatOutput{
		SessionID: "session-1",
		Seq:       4,
		Reply:     "the answer",
		Sources: []*service.ScoredPassage{
			{Chunk: domain.Chunk{DocumentID: "doc-1", Filename: "faq.md", Filepath: "/faq.md"}, Score: 0.91},
		},
	}
	svc.On("Chat", mock.Anything, service.ChatInput{SessionID: "session-1", Message: "question"}).Return(output, nil)

	req := httptest.NewRequest("POST", "/chat", strings.NewReader(`{"session_id":"session-1","message":"question"}`))
	rec := httptest.NewRecorder()

	handler.Chat(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatResponse
	decodeData(t, rec.Body.Bytes(), &resp)
	assert.Equal(t, "session-1", resp.SessionID)
	assert.Equal(t, int64(4), resp.Seq)
	assert.Equal(t, "the answer", resp.Reply)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "faq.md", resp.Sources[0].Filename)
	assert.InDelta(t, 0.91, resp.Sources[0].Score, 0.0001)
}

func TestChatHandler_Chat_InvalidBody(t *testing.T) {
	svc := new(MockChatService)
	handler := NewChatHandler(svc)

	req := httptest.NewRequest("POST", "/chat", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	handler.Chat(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Chat")
}

func TestChatHandler_Chat_EmptyMessage(t *testing.T) {
	svc := new(MockChatService)
	handler := NewChatHandler(svc)

	req := httptest.NewRequest("POST", "/chat", strings.NewReader(`{"message":"  "}`))
	rec := httptest.NewRecorder()

	handler.Chat(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "message or attachment_key is required")
	svc.AssertNotCalled(t, "Chat")
}

func TestChatHandler_Chat_AttachmentOnlyIsAccepted(t *testing.T) {
	svc := new(MockChatService)
	handler := NewChatHandler(svc)

	output := &service.ChatOutput{SessionID: "session-1", Reply: "about the image"}
	svc.On("Chat", mock.Anything, service.ChatInput{AttachmentKey: "attachments/img-1"}).Return(output, nil)

	req := httptest.NewRequest("POST", "/chat", strings.NewReader(`{"attachment_key":"attachments/img-1"}`))
	rec := httptest.NewRecorder()

	handler.Chat(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChatHandler_Chat_GenerationFailureMapsToBadGateway(t *testing.T) {
	svc := new(MockChatService)
	handler := NewChatHandler(svc)

	wrapped := fmt.Errorf("%w: %v", domain.ErrGenerationFailed, errors.New("model overloaded"))
	svc.On("Chat", mock.Anything, mock.Anything).Return(nil, wrapped)

	req := httptest.NewRequest("POST", "/chat", strings.NewReader(`{"message":"question"}`))
	rec := httptest.NewRecorder()

	handler.Chat(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
