package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"pulse-chat/internal/domain/user"
	pulse_errors "pulse-chat/pkg/errors"
)

type userRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (user.Profile, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT id, name, avatar_url, about, last_seen
        FROM users
        WHERE id = $1
    `, id)
	var p user.Profile
	var lastSeen sql.NullTime
	err := row.Scan(&p.ID, &p.Name, &p.AvatarURL, &p.About, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return user.Profile{}, pulse_errors.ErrNotFound
	}
	if err != nil {
		return user.Profile{}, err
	}
	if lastSeen.Valid {
		p.LastSeen = &lastSeen.Time
	}
	return p, nil
}
