package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"pulse-chat/internal/domain/call"
	pulse_errors "pulse-chat/pkg/errors"
)

type callRepository struct {
	db DBTX
}

func NewCallRepository(db DBTX) CallRepository {
	return &callRepository{db: db}
}

const callColumns = `id, conversation_id, caller_id, callee_id, kind, offer, answer, status, created_at, updated_at`

func (r *callRepository) Create(ctx context.Context, c *call.Call) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = call.StatusPending
	}
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO calls (id, conversation_id, caller_id, callee_id, kind, offer, status, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    `,
		c.ID,
		c.ConversationID,
		c.CallerID,
		c.CalleeID,
		c.Kind,
		[]byte(c.Offer),
		c.Status,
		c.CreatedAt,
		c.UpdatedAt,
	)
	return err
}

func (r *callRepository) GetByID(ctx context.Context, id uuid.UUID) (call.Call, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT `+callColumns+`
        FROM calls
        WHERE id = $1
    `, id)
	c, err := scanCall(row)
	if errors.Is(err, sql.ErrNoRows) {
		return call.Call{}, pulse_errors.ErrNotFound
	}
	return c, err
}

func (r *callRepository) Accept(ctx context.Context, id uuid.UUID, answer json.RawMessage) (call.Call, error) {
	row := r.db.QueryRowContext(ctx, `
        UPDATE calls
        SET answer = $1, status = $2, updated_at = $3
        WHERE id = $4 AND status = $5
        RETURNING `+callColumns+`
    `, []byte(answer), call.StatusAccepted, time.Now(), id, call.StatusPending)
	c, err := scanCall(row)
	if errors.Is(err, sql.ErrNoRows) {
		// Either the call does not exist or it already left pending.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return call.Call{}, getErr
		}
		return call.Call{}, pulse_errors.ErrInvalidTransition
	}
	return c, err
}

func (r *callRepository) Reject(ctx context.Context, id uuid.UUID) (call.Call, bool, error) {
	row := r.db.QueryRowContext(ctx, `
        UPDATE calls
        SET status = $1, updated_at = $2
        WHERE id = $3 AND status = $4
        RETURNING `+callColumns+`
    `, call.StatusRejected, time.Now(), id, call.StatusPending)
	c, err := scanCall(row)
	if errors.Is(err, sql.ErrNoRows) {
		return r.unchanged(ctx, id)
	}
	if err != nil {
		return call.Call{}, false, err
	}
	return c, true, nil
}

func (r *callRepository) End(ctx context.Context, id uuid.UUID) (call.Call, bool, error) {
	row := r.db.QueryRowContext(ctx, `
        UPDATE calls
        SET status = $1, updated_at = $2
        WHERE id = $3 AND status NOT IN ($4, $5)
        RETURNING `+callColumns+`
    `, call.StatusEnded, time.Now(), id, call.StatusRejected, call.StatusEnded)
	c, err := scanCall(row)
	if errors.Is(err, sql.ErrNoRows) {
		return r.unchanged(ctx, id)
	}
	if err != nil {
		return call.Call{}, false, err
	}
	return c, true, nil
}

// unchanged resolves a guarded update that matched no rows: a terminal call
// makes the transition an idempotent no-op, anything else is a real failure.
func (r *callRepository) unchanged(ctx context.Context, id uuid.UUID) (call.Call, bool, error) {
	c, err := r.GetByID(ctx, id)
	if err != nil {
		return call.Call{}, false, err
	}
	if c.Status.Terminal() {
		return c, false, nil
	}
	return call.Call{}, false, pulse_errors.ErrInvalidTransition
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCall(row rowScanner) (call.Call, error) {
	var c call.Call
	var offer, answer []byte
	err := row.Scan(
		&c.ID,
		&c.ConversationID,
		&c.CallerID,
		&c.CalleeID,
		&c.Kind,
		&offer,
		&answer,
		&c.Status,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return call.Call{}, err
	}
	if err != nil {
		return call.Call{}, err
	}
	c.Offer = json.RawMessage(offer)
	c.Answer = json.RawMessage(answer)
	return c, nil
}
