package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumenkb/lumen/internal/domain"
)

// ConversationRepository persists session turns. Turns are append-only; the
// database assigns each one a monotonically increasing sequence number.
type ConversationRepository struct {
	db dbtx
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: pool}
}

func NewConversationRepositoryWithTx(tx pgx.Tx) *ConversationRepository {
	return &ConversationRepository{db: tx}
}

// Append inserts a turn and fills in its assigned sequence number.
func (r *ConversationRepository) Append(ctx context.Context, turn *domain.ConversationTurn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	return r.db.QueryRow(ctx,
		`INSERT INTO conversation_turns (id, session_id, role, content, attachment_key, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING seq`,
		turn.ID,
		turn.SessionID,
		string(turn.Role),
		turn.Content,
		nullableString(turn.AttachmentKey),
		turn.CreatedAt,
	).Scan(&turn.Seq)
}

// ListBySession returns all turns of a session in sequence order.
func (r *ConversationRepository) ListBySession(ctx context.Context, sessionID string) ([]*domain.ConversationTurn, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, session_id, seq, role, content, attachment_key, created_at
		 FROM conversation_turns
		 WHERE session_id = $1
		 ORDER BY seq ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTurns(rows)
}

// Recent returns the last limit turns of a session in sequence order. A
// non-positive limit returns all turns.
func (r *ConversationRepository) Recent(ctx context.Context, sessionID string, limit int) ([]*domain.ConversationTurn, error) {
	if limit <= 0 {
		return r.ListBySession(ctx, sessionID)
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, session_id, seq, role, content, attachment_key, created_at
		 FROM (
			SELECT id, session_id, seq, role, content, attachment_key, created_at
			FROM conversation_turns
			WHERE session_id = $1
			ORDER BY seq DESC
			LIMIT $2
		 ) latest
		 ORDER BY seq ASC`,
		sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTurns(rows)
}

func scanTurns(rows pgx.Rows) ([]*domain.ConversationTurn, error) {
	var results []*domain.ConversationTurn
	for rows.Next() {
		var t domain.ConversationTurn
		var role string
		var attachmentKey *string
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Seq, &role, &t.Content, &attachmentKey, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Role = domain.Role(role)
		if attachmentKey != nil {
			t.AttachmentKey = *attachmentKey
		}
		results = append(results, &t)
	}
	return results, rows.Err()
}
