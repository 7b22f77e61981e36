package domain

import (
	"strings"
	"time"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one message in a session. Turns are append-only: they
// are written once and never mutated. Seq is assigned by the store and is
// the total order within a session; wall-clock timestamps are informational
// only.
type ConversationTurn struct {
	ID            string
	SessionID     string
	Seq           int64
	Role          Role
	Content       string
	AttachmentKey string
	CreatedAt     time.Time
}

// ValidateTurn validates a ConversationTurn before it is appended.
func ValidateTurn(t *ConversationTurn) error {
	if t == nil {
		return NewDomainError(ErrCodeValidation, "turn cannot be nil")
	}
	if t.SessionID == "" {
		return NewDomainError(ErrCodeValidation, "turn SessionID is required")
	}
	if !isValidRole(t.Role) {
		return ErrInvalidRole
	}
	if strings.TrimSpace(t.Content) == "" && t.AttachmentKey == "" {
		return ErrEmptyTurn
	}
	return nil
}

func isValidRole(r Role) bool {
	switch r {
	case RoleUser, RoleAssistant:
		return true
	}
	return false
}
