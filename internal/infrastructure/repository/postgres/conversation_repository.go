package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/humaninbinary-alt/TahlilchiAI/internal/core/domain"
)

// ConversationRepository is the append-only turn log. Turns are never
// updated or deleted.
type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) EnsureConversation(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO conversations (conversation_id, current_seq, created_at, updated_at)
VALUES ($1, 0, $2, $2)
ON CONFLICT (conversation_id) DO NOTHING
`, conversationID, now)
	if err != nil {
		return nil, fmt.Errorf("ensure conversation insert: %w", err)
	}

	row := r.db.QueryRowContext(ctx, `
SELECT conversation_id, current_seq, created_at, updated_at
FROM conversations
WHERE conversation_id = $1
`, conversationID)

	var conv domain.Conversation
	if err := row.Scan(
		&conv.ConversationID,
		&conv.CurrentSeq,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("ensure conversation select: %w", err)
	}
	return &conv, nil
}

func (r *ConversationRepository) NextSeq(ctx context.Context, conversationID string) (int, error) {
	row := r.db.QueryRowContext(ctx, `
UPDATE conversations
SET current_seq = current_seq + 1, updated_at = $2
WHERE conversation_id = $1
RETURNING current_seq
`, conversationID, time.Now().UTC())

	var seq int
	if err := row.Scan(&seq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, ensureErr := r.EnsureConversation(ctx, conversationID); ensureErr != nil {
				return 0, ensureErr
			}
			return r.NextSeq(ctx, conversationID)
		}
		return 0, fmt.Errorf("next turn seq: %w", err)
	}
	return seq, nil
}

func (r *ConversationRepository) AppendTurn(ctx context.Context, turn domain.Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO conversation_turns (id, conversation_id, role, content, seq, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, turn.ID, turn.ConversationID, turn.Role, turn.Content, turn.Seq, turn.CreatedAt)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

func (r *ConversationRepository) ListRecentTurns(ctx context.Context, conversationID string, limit int) ([]domain.Turn, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, conversation_id, role, content, seq, created_at
FROM conversation_turns
WHERE conversation_id = $1
ORDER BY seq DESC, created_at DESC
LIMIT $2
`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent turns: %w", err)
	}
	defer rows.Close()

	turns := make([]domain.Turn, 0, limit)
	for rows.Next() {
		var turn domain.Turn
		if err := rows.Scan(
			&turn.ID,
			&turn.ConversationID,
			&turn.Role,
			&turn.Content,
			&turn.Seq,
			&turn.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}

	// Query returns newest-first; callers expect chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}
