package repository

import (
	"context"
)

// Schema statements executed in order. IF NOT EXISTS keeps them re-runnable;
// the pair index is what makes createOrGetConversation race-safe.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         UUID PRIMARY KEY,
		name       TEXT NOT NULL,
		avatar_url TEXT NOT NULL DEFAULT '',
		about      TEXT NOT NULL DEFAULT '',
		last_seen  TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id            UUID PRIMARY KEY,
		participant_a UUID NOT NULL REFERENCES users(id),
		participant_b UUID NOT NULL REFERENCES users(id),
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		CHECK (participant_a <> participant_b)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS conversations_pair_idx
		ON conversations (LEAST(participant_a, participant_b), GREATEST(participant_a, participant_b))`,
	`CREATE TABLE IF NOT EXISTS messages (
		id              UUID PRIMARY KEY,
		conversation_id UUID NOT NULL REFERENCES conversations(id),
		sender_id       UUID NOT NULL REFERENCES users(id),
		content_kind    TEXT NOT NULL,
		body            TEXT NOT NULL DEFAULT '',
		media_url       TEXT NOT NULL DEFAULT '',
		seen            BOOLEAN NOT NULL DEFAULT FALSE,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS messages_conversation_idx
		ON messages (conversation_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS calls (
		id              UUID PRIMARY KEY,
		conversation_id UUID NOT NULL REFERENCES conversations(id),
		caller_id       UUID NOT NULL REFERENCES users(id),
		callee_id       UUID NOT NULL REFERENCES users(id),
		kind            TEXT NOT NULL,
		offer           JSONB,
		answer          JSONB,
		status          TEXT NOT NULL DEFAULT 'pending',
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS calls_callee_idx ON calls (callee_id, created_at)`,
}

// EnsureSchema creates the tables and indexes this core relies on.
func EnsureSchema(ctx context.Context, db DBTX) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
