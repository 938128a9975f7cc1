package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"pulse-chat/internal/domain/message"
)

type messageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) MessageRepository {
	return &messageRepository{db: db}
}

const messageColumns = `id, conversation_id, sender_id, content_kind, body, media_url, seen, created_at`

func (r *messageRepository) Create(ctx context.Context, m *message.Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.Seen = false
	m.CreatedAt = time.Now()
	return WithTx(ctx, r.db, func(tx DBTX) error {
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO messages (id, conversation_id, sender_id, content_kind, body, media_url, seen, created_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        `,
			m.ID,
			m.ConversationID,
			m.SenderID,
			m.ContentKind,
			m.Body,
			m.MediaURL,
			m.Seen,
			m.CreatedAt,
		); err != nil {
			return err
		}
		// A new message is the conversation's latest activity.
		_, err := tx.ExecContext(ctx, `
            UPDATE conversations SET updated_at = $1 WHERE id = $2
        `, m.CreatedAt, m.ConversationID)
		return err
	})
}

func (r *messageRepository) GetConversationMessages(ctx context.Context, conversationID uuid.UUID) ([]message.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT `+messageColumns+`
        FROM messages
        WHERE conversation_id = $1
        ORDER BY created_at ASC, id ASC
    `, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []message.Message{}
	for rows.Next() {
		var m message.Message
		if err := rows.Scan(
			&m.ID,
			&m.ConversationID,
			&m.SenderID,
			&m.ContentKind,
			&m.Body,
			&m.MediaURL,
			&m.Seen,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *messageRepository) MarkSeen(ctx context.Context, conversationID, viewerID uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
        UPDATE messages
        SET seen = TRUE
        WHERE conversation_id = $1 AND sender_id <> $2 AND seen = FALSE
    `, conversationID, viewerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *messageRepository) GetLatestMessage(ctx context.Context, conversationID uuid.UUID) (*message.Message, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT `+messageColumns+`
        FROM messages
        WHERE conversation_id = $1
        ORDER BY created_at DESC, id DESC
        LIMIT 1
    `, conversationID)
	var m message.Message
	err := row.Scan(
		&m.ID,
		&m.ConversationID,
		&m.SenderID,
		&m.ContentKind,
		&m.Body,
		&m.MediaURL,
		&m.Seen,
		&m.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *messageRepository) CountUnread(ctx context.Context, conversationID, viewerID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
        SELECT COUNT(*)
        FROM messages
        WHERE conversation_id = $1 AND sender_id <> $2 AND seen = FALSE
    `, conversationID, viewerID).Scan(&count)
	return count, err
}
