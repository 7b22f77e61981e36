package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/lumenkb/lumen/internal/domain"
)

// TurnStore persists conversation turns in append order.
type TurnStore interface {
	Append(ctx context.Context, turn *domain.ConversationTurn) error
	ListBySession(ctx context.Context, sessionID string) ([]*domain.ConversationTurn, error)
	Recent(ctx context.Context, sessionID string, limit int) ([]*domain.ConversationTurn, error)
}

// ConversationService manages the append-only turn log of chat sessions.
type ConversationService struct {
	store TurnStore
}

func NewConversationService(store TurnStore) *ConversationService {
	return &ConversationService{store: store}
}

// Append validates and stores one turn. The store assigns the sequence
// number; the turn is updated in place.
func (s *ConversationService) Append(ctx context.Context, turn *domain.ConversationTurn) error {
	if err := domain.ValidateTurn(turn); err != nil {
		return err
	}
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	return s.store.Append(ctx, turn)
}

// Turns returns the full turn log of a session in sequence order.
func (s *ConversationService) Turns(ctx context.Context, sessionID string) ([]*domain.ConversationTurn, error) {
	if sessionID == "" {
		return nil, domain.ErrSessionNotFound
	}
	return s.store.ListBySession(ctx, sessionID)
}

// History returns the last limit turns of a session in sequence order.
func (s *ConversationService) History(ctx context.Context, sessionID string, limit int) ([]*domain.ConversationTurn, error) {
	return s.store.Recent(ctx, sessionID, limit)
}
