package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"pulse-chat/internal/domain/conversation"
	"pulse-chat/internal/domain/message"
	"pulse-chat/internal/domain/user"
	pulse_errors "pulse-chat/pkg/errors"
	"pulse-chat/pkg/logger"
)

func newTestLogger() *logger.Logger {
	return logger.New(logger.DevelopmentMode)
}

// fakeMessageRepo is an in-memory MessageRepository. beforeReturn, when set,
// runs after a read snapshot is taken and before it is returned, which lets
// tests hold a reload in flight.
type fakeMessageRepo struct {
	mu           sync.Mutex
	msgs         []message.Message
	convs        *fakeConversationRepo
	beforeReturn func()
	createErr    error
}

func (f *fakeMessageRepo) Create(ctx context.Context, m *message.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = time.Now()
	m.Seen = false
	f.msgs = append(f.msgs, *m)
	if f.convs != nil {
		f.convs.touch(m.ConversationID, m.CreatedAt)
	}
	return nil
}

func (f *fakeMessageRepo) GetConversationMessages(ctx context.Context, conversationID uuid.UUID) ([]message.Message, error) {
	f.mu.Lock()
	out := make([]message.Message, 0)
	for _, m := range f.msgs {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	hook := f.beforeReturn
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return out, nil
}

func (f *fakeMessageRepo) MarkSeen(ctx context.Context, conversationID, viewerID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for i, m := range f.msgs {
		if m.ConversationID == conversationID && m.SenderID != viewerID && !m.Seen {
			f.msgs[i].Seen = true
			n++
		}
	}
	return n, nil
}

func (f *fakeMessageRepo) GetLatestMessage(ctx context.Context, conversationID uuid.UUID) (*message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.msgs) - 1; i >= 0; i-- {
		if f.msgs[i].ConversationID == conversationID {
			m := f.msgs[i]
			return &m, nil
		}
	}
	return nil, nil
}

func (f *fakeMessageRepo) CountUnread(ctx context.Context, conversationID, viewerID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.msgs {
		if m.ConversationID == conversationID && m.SenderID != viewerID && !m.Seen {
			n++
		}
	}
	return n, nil
}

func (f *fakeMessageRepo) setBeforeReturn(hook func()) {
	f.mu.Lock()
	f.beforeReturn = hook
	f.mu.Unlock()
}

// fakeConversationRepo is an in-memory ConversationRepository with the same
// pair-uniqueness semantics as the store. beforeCreate, when set, runs ahead
// of the duplicate check so tests can stage insert races.
type fakeConversationRepo struct {
	mu           sync.Mutex
	rows         []conversation.Conversation
	beforeCreate func()
}

func (f *fakeConversationRepo) Create(ctx context.Context, c *conversation.Conversation) error {
	f.mu.Lock()
	hook := f.beforeCreate
	f.beforeCreate = nil
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	a, b := conversation.NormalizePair(c.ParticipantA, c.ParticipantB)
	for _, row := range f.rows {
		ra, rb := conversation.NormalizePair(row.ParticipantA, row.ParticipantB)
		if ra == a && rb == b {
			return pulse_errors.ErrAlreadyExists
		}
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.ParticipantA, c.ParticipantB = a, b
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	f.rows = append(f.rows, *c)
	return nil
}

func (f *fakeConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.ID == id {
			return row, nil
		}
	}
	return conversation.Conversation{}, pulse_errors.ErrNotFound
}

func (f *fakeConversationRepo) GetByPair(ctx context.Context, a, b uuid.UUID) (conversation.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	na, nb := conversation.NormalizePair(a, b)
	for _, row := range f.rows {
		ra, rb := conversation.NormalizePair(row.ParticipantA, row.ParticipantB)
		if ra == na && rb == nb {
			return row, nil
		}
	}
	return conversation.Conversation{}, pulse_errors.ErrNotFound
}

func (f *fakeConversationRepo) GetUserConversations(ctx context.Context, userID uuid.UUID) ([]conversation.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]conversation.Conversation, 0)
	for _, row := range f.rows {
		if row.Has(userID) {
			out = append(out, row)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].UpdatedAt.After(out[j-1].UpdatedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func (f *fakeConversationRepo) touch(id uuid.UUID, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].ID == id {
			f.rows[i].UpdatedAt = at
			return
		}
	}
}

// fakeUserRepo serves fixed profiles.
type fakeUserRepo struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]user.Profile
}

func newFakeUserRepo(profiles ...user.Profile) *fakeUserRepo {
	f := &fakeUserRepo{profiles: make(map[uuid.UUID]user.Profile)}
	for _, p := range profiles {
		f.profiles[p.ID] = p
	}
	return f
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (user.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return user.Profile{}, pulse_errors.ErrNotFound
	}
	return p, nil
}
