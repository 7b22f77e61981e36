package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/lumenkb/lumen/internal/domain"
	"github.com/lumenkb/lumen/internal/telemetry"
)

// GenMessage is one message of a model generation request.
type GenMessage struct {
	Role    string
	Content string
}

// Generator produces the assistant reply for an assembled prompt.
type Generator interface {
	Generate(ctx context.Context, messages []GenMessage) (string, error)
}

// ImageDescriber turns an image into a textual description that can join
// the retrieval query.
type ImageDescriber interface {
	DescribeImage(ctx context.Context, mimeType string, data []byte) (string, error)
}

// AttachmentFetcher loads a previously uploaded attachment by key.
type AttachmentFetcher interface {
	Fetch(ctx context.Context, key string) (data []byte, contentType string, err error)
}

// PassageRetriever finds documentation passages relevant to a query.
type PassageRetriever interface {
	Search(ctx context.Context, query string) ([]*ScoredPassage, error)
}

const systemPrompt = `You are Lumen, a support assistant. Answer the user's question using only the documentation excerpts provided below. Mention the source file when it helps the user find more detail. Be concise and factual.`

const noContextInstruction = `No documentation excerpts matched this question. Tell the user that the information is not available in the documentation, and suggest rephrasing the question or contacting support. Do not invent an answer.`

// ChatInput is one user turn. At least one of Message and AttachmentKey
// must be set.
type ChatInput struct {
	SessionID     string
	Message       string
	AttachmentKey string
}

// ChatOutput is the assistant's reply with the passages that grounded it.
type ChatOutput struct {
	SessionID string
	Seq       int64
	Reply     string
	Sources   []*ScoredPassage
}

// ChatService orchestrates one chat turn: describe an attached image,
// retrieve relevant passages, generate the reply and persist both turns.
// Image description, retrieval and history loading degrade gracefully;
// only generation failure fails the turn.
type ChatService struct {
	retriever     PassageRetriever
	generator     Generator
	describer     ImageDescriber
	attachments   AttachmentFetcher
	turns         TurnStore
	historyWindow int

	locks sessionLocks
}

func NewChatService(retriever PassageRetriever, generator Generator, describer ImageDescriber, attachments AttachmentFetcher, turns TurnStore, historyWindow int) *ChatService {
	return &ChatService{
		retriever:     retriever,
		generator:     generator,
		describer:     describer,
		attachments:   attachments,
		turns:         turns,
		historyWindow: historyWindow,
	}
}

// Chat handles one turn of a session. Turns of the same session are
// serialized; turns of different sessions run concurrently.
func (s *ChatService) Chat(ctx context.Context, input ChatInput) (*ChatOutput, error) {
	if strings.TrimSpace(input.Message) == "" && input.AttachmentKey == "" {
		return nil, domain.ErrEmptyTurn
	}
	if input.SessionID == "" {
		input.SessionID = uuid.NewString()
	}

	unlock := s.locks.lock(input.SessionID)
	defer unlock()

	query := input.Message

	if input.AttachmentKey != "" {
		if desc := s.describeAttachment(ctx, input.AttachmentKey); desc != "" {
			query = joinQuery(input.Message, desc)
		}
	}

	var sources []*ScoredPassage
	if query != "" {
		passages, err := s.retriever.Search(ctx, query)
		if err != nil {
			log.Printf("chat: retrieval failed for session %s, answering without context: %v", input.SessionID, err)
			telemetry.CaptureError(ctx, err)
		} else {
			sources = passages
		}
	}

	history, err := s.turns.Recent(ctx, input.SessionID, s.historyWindow)
	if err != nil {
		log.Printf("chat: failed to load history for session %s, answering without it: %v", input.SessionID, err)
		telemetry.CaptureError(ctx, err)
		history = nil
	}

	userContent := query
	if userContent == "" {
		// Attachment-only turn whose image could not be analyzed.
		userContent = "(the user sent an image that could not be analyzed)"
	}
	messages := buildMessages(sources, history, userContent)

	reply, err := s.generator.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}

	seq := s.persistTurns(ctx, input, reply)

	return &ChatOutput{
		SessionID: input.SessionID,
		Seq:       seq,
		Reply:     reply,
		Sources:   sources,
	}, nil
}

// describeAttachment fetches and describes an image. Any failure degrades
// the turn to text only.
func (s *ChatService) describeAttachment(ctx context.Context, key string) string {
	if s.attachments == nil || s.describer == nil {
		log.Printf("chat: attachment %s ignored, image analysis not configured", key)
		return ""
	}

	data, contentType, err := s.attachments.Fetch(ctx, key)
	if err != nil {
		log.Printf("chat: failed to fetch attachment %s, continuing without it: %v", key, err)
		telemetry.CaptureError(ctx, err)
		return ""
	}

	desc, err := s.describer.DescribeImage(ctx, contentType, data)
	if err != nil {
		log.Printf("chat: failed to describe attachment %s, continuing without it: %v", key, err)
		telemetry.CaptureError(ctx, err)
		return ""
	}

	return desc
}

// persistTurns appends the user and assistant turns. The reply has already
// been generated; a write failure is reported but does not fail the turn.
func (s *ChatService) persistTurns(ctx context.Context, input ChatInput, reply string) int64 {
	userTurn := &domain.ConversationTurn{
		ID:            uuid.NewString(),
		SessionID:     input.SessionID,
		Role:          domain.RoleUser,
		Content:       input.Message,
		AttachmentKey: input.AttachmentKey,
	}
	if err := s.turns.Append(ctx, userTurn); err != nil {
		log.Printf("chat: failed to persist user turn for session %s: %v", input.SessionID, err)
		telemetry.CaptureError(ctx, err)
		return 0
	}

	assistantTurn := &domain.ConversationTurn{
		ID:        uuid.NewString(),
		SessionID: input.SessionID,
		Role:      domain.RoleAssistant,
		Content:   reply,
	}
	if err := s.turns.Append(ctx, assistantTurn); err != nil {
		log.Printf("chat: failed to persist assistant turn for session %s: %v", input.SessionID, err)
		telemetry.CaptureError(ctx, err)
		return 0
	}

	return assistantTurn.Seq
}

func buildMessages(sources []*ScoredPassage, history []*domain.ConversationTurn, userContent string) []GenMessage {
	var system strings.Builder
	system.WriteString(systemPrompt)

	if len(sources) == 0 {
		system.WriteString("\n\n")
		system.WriteString(noContextInstruction)
	} else {
		system.WriteString("\n\nDocumentation excerpts:")
		for i, p := range sources {
			system.WriteString(fmt.Sprintf("\n\n[%d] %s", i+1, p.Chunk.Filename))
			if p.Chunk.Filepath != "" {
				system.WriteString(" (" + p.Chunk.Filepath + ")")
			}
			system.WriteString("\n")
			system.WriteString(p.Chunk.Content)
		}
	}

	messages := make([]GenMessage, 0, len(history)+2)
	messages = append(messages, GenMessage{Role: "system", Content: system.String()})

	for _, turn := range history {
		if turn.Content == "" {
			continue
		}
		messages = append(messages, GenMessage{Role: string(turn.Role), Content: turn.Content})
	}

	messages = append(messages, GenMessage{Role: "user", Content: userContent})
	return messages
}

func joinQuery(message, description string) string {
	if message == "" {
		return description
	}
	return message + "\n\n[Attached image] " + description
}

// sessionLocks hands out one mutex per session id.
type sessionLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func (l *sessionLocks) lock(sessionID string) func() {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[string]*sync.Mutex)
	}
	sl, ok := l.m[sessionID]
	if !ok {
		sl = &sync.Mutex{}
		l.m[sessionID] = sl
	}
	l.mu.Unlock()

	sl.Lock()
	return sl.Unlock
}
