package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"pulse-chat/internal/domain/call"
	"pulse-chat/internal/domain/conversation"
	"pulse-chat/internal/domain/message"
	"pulse-chat/internal/domain/user"
)

// CallRepository persists call signaling records. Transitions are guarded in
// the store so a terminal status can never regress, no matter how stale the
// writer's view is.
type CallRepository interface {
	Create(ctx context.Context, c *call.Call) error
	GetByID(ctx context.Context, id uuid.UUID) (call.Call, error)
	// Accept sets the answer and flips pending -> accepted in one update.
	// Returns ErrInvalidTransition when the call is no longer pending.
	Accept(ctx context.Context, id uuid.UUID, answer json.RawMessage) (call.Call, error)
	// Reject flips pending -> rejected. Reports changed=false without error
	// when the call is already terminal, so repeated rejects are no-ops.
	Reject(ctx context.Context, id uuid.UUID) (c call.Call, changed bool, err error)
	// End flips any non-terminal status to ended. Reports changed=false when
	// the call was already terminal.
	End(ctx context.Context, id uuid.UUID) (c call.Call, changed bool, err error)
}

// MessageRepository persists messages and their seen state.
type MessageRepository interface {
	// Create inserts the message and bumps the conversation's updated_at in
	// the same transaction.
	Create(ctx context.Context, m *message.Message) error
	// GetConversationMessages returns the full ordered sequence, oldest
	// first. Empty conversations yield an empty slice, not an error.
	GetConversationMessages(ctx context.Context, conversationID uuid.UUID) ([]message.Message, error)
	// MarkSeen flips seen on every unseen message not sent by viewerID and
	// returns how many rows changed.
	MarkSeen(ctx context.Context, conversationID, viewerID uuid.UUID) (int64, error)
	GetLatestMessage(ctx context.Context, conversationID uuid.UUID) (*message.Message, error)
	CountUnread(ctx context.Context, conversationID, viewerID uuid.UUID) (int, error)
}

// ConversationRepository persists the unordered participant pairs. The store
// enforces pair uniqueness; Create reports ErrAlreadyExists on a duplicate
// pair so callers can retry the lookup.
type ConversationRepository interface {
	Create(ctx context.Context, c *conversation.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error)
	GetByPair(ctx context.Context, a, b uuid.UUID) (conversation.Conversation, error)
	// GetUserConversations returns every conversation the user participates
	// in, most recently active first.
	GetUserConversations(ctx context.Context, userID uuid.UUID) ([]conversation.Conversation, error)
}

// UserRepository reads profile projections. Account CRUD lives elsewhere.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (user.Profile, error)
}
