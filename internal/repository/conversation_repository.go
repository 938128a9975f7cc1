package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"pulse-chat/internal/domain/conversation"
	pulse_errors "pulse-chat/pkg/errors"
)

type conversationRepository struct {
	db DBTX
}

func NewConversationRepository(db DBTX) ConversationRepository {
	return &conversationRepository{db: db}
}

const conversationColumns = `id, participant_a, participant_b, created_at, updated_at`

func (r *conversationRepository) Create(ctx context.Context, c *conversation.Conversation) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.ParticipantA, c.ParticipantB = conversation.NormalizePair(c.ParticipantA, c.ParticipantB)
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO conversations (id, participant_a, participant_b, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5)
    `, c.ID, c.ParticipantA, c.ParticipantB, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return pulse_errors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *conversationRepository) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT `+conversationColumns+`
        FROM conversations
        WHERE id = $1
    `, id)
	return scanConversation(row)
}

func (r *conversationRepository) GetByPair(ctx context.Context, a, b uuid.UUID) (conversation.Conversation, error) {
	a, b = conversation.NormalizePair(a, b)
	row := r.db.QueryRowContext(ctx, `
        SELECT `+conversationColumns+`
        FROM conversations
        WHERE LEAST(participant_a, participant_b) = $1
          AND GREATEST(participant_a, participant_b) = $2
    `, a, b)
	return scanConversation(row)
}

func (r *conversationRepository) GetUserConversations(ctx context.Context, userID uuid.UUID) ([]conversation.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT `+conversationColumns+`
        FROM conversations
        WHERE participant_a = $1 OR participant_b = $1
        ORDER BY updated_at DESC
    `, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	convs := []conversation.Conversation{}
	for rows.Next() {
		var c conversation.Conversation
		if err := rows.Scan(&c.ID, &c.ParticipantA, &c.ParticipantB, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return convs, nil
}

func scanConversation(row rowScanner) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := row.Scan(&c.ID, &c.ParticipantA, &c.ParticipantB, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return conversation.Conversation{}, pulse_errors.ErrNotFound
	}
	if err != nil {
		return conversation.Conversation{}, err
	}
	return c, nil
}
