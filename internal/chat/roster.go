package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pulse-chat/internal/domain/conversation"
	"pulse-chat/internal/domain/message"
	"pulse-chat/internal/domain/user"
	"pulse-chat/internal/feed"
	"pulse-chat/internal/repository"
	pulse_errors "pulse-chat/pkg/errors"
	"pulse-chat/pkg/logger"
)

// Entry is one row of a user's conversation list, enriched with the peer's
// profile, the latest message and the viewer's unread count.
type Entry struct {
	Conversation     conversation.Conversation `json:"conversation"`
	OtherParticipant user.Profile              `json:"other_participant"`
	LastMessage      *message.Message          `json:"last_message,omitempty"`
	UnreadCount      int                       `json:"unread_count"`
}

// Roster aggregates a user's conversations into a ranked list and owns
// conversation creation. Listing always recomputes from the store, so a
// roster shown after a change notification is never stale.
type Roster struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	users         repository.UserRepository
	broker        feed.Broker
	log           *logger.Logger
}

func NewRoster(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	users repository.UserRepository,
	broker feed.Broker,
	log *logger.Logger,
) *Roster {
	return &Roster{
		conversations: conversations,
		messages:      messages,
		users:         users,
		broker:        broker,
		log:           log,
	}
}

// ListConversations returns every conversation userID participates in,
// most recently active first. Entries whose peer profile cannot be loaded
// keep a zero profile rather than dropping the row.
func (r *Roster) ListConversations(ctx context.Context, userID uuid.UUID) ([]Entry, error) {
	convs, err := r.conversations.GetUserConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pulse_errors.ErrFetch, err)
	}

	entries := make([]Entry, 0, len(convs))
	for _, c := range convs {
		entry := Entry{Conversation: c}

		otherID := c.Other(userID)
		if profile, err := r.users.GetByID(ctx, otherID); err != nil {
			r.log.Warnf("chat: loading profile %s: %v", otherID, err)
			entry.OtherParticipant = user.Profile{ID: otherID}
		} else {
			entry.OtherParticipant = profile
		}

		last, err := r.messages.GetLatestMessage(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", pulse_errors.ErrFetch, err)
		}
		entry.LastMessage = last

		unread, err := r.messages.CountUnread(ctx, c.ID, userID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", pulse_errors.ErrFetch, err)
		}
		entry.UnreadCount = unread

		entries = append(entries, entry)
	}
	return entries, nil
}

// CreateOrGetConversation returns the unique conversation for the pair,
// creating it on first contact. Two users starting a chat with each other at
// the same time race on the insert; the loser of that race falls back to the
// row the winner created.
func (r *Roster) CreateOrGetConversation(ctx context.Context, userID, otherID uuid.UUID) (conversation.Conversation, error) {
	if userID == uuid.Nil || otherID == uuid.Nil || userID == otherID {
		return conversation.Conversation{}, pulse_errors.ErrInvalidInput
	}

	existing, err := r.conversations.GetByPair(ctx, userID, otherID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, pulse_errors.ErrNotFound) {
		return conversation.Conversation{}, fmt.Errorf("%w: %v", pulse_errors.ErrFetch, err)
	}

	c := &conversation.Conversation{ParticipantA: userID, ParticipantB: otherID}
	err = r.conversations.Create(ctx, c)
	if err == nil {
		r.publishCreated(ctx, *c)
		return *c, nil
	}
	if !errors.Is(err, pulse_errors.ErrAlreadyExists) {
		return conversation.Conversation{}, fmt.Errorf("%w: %v", pulse_errors.ErrPersistence, err)
	}

	// Lost the insert race: the pair's row exists now.
	existing, err = r.conversations.GetByPair(ctx, userID, otherID)
	if err != nil {
		return conversation.Conversation{}, fmt.Errorf("%w: %v", pulse_errors.ErrFetch, err)
	}
	return existing, nil
}

// Watch invokes onChange whenever the roster may have changed for userID:
// new conversations involving the user, or any message activity. Consumers
// respond by calling ListConversations again.
func (r *Roster) Watch(ctx context.Context, userID uuid.UUID, onChange func()) (feed.Subscription, error) {
	handler := func(context.Context, feed.Event) { onChange() }

	convSub, err := r.broker.Subscribe(ctx, feed.TableConversations, nil,
		participantFilter(userID), handler)
	if err != nil {
		return nil, err
	}
	msgSub, err := r.broker.Subscribe(ctx, feed.TableMessages, nil, nil, handler)
	if err != nil {
		convSub.Close()
		return nil, err
	}
	return feed.Join(convSub, msgSub), nil
}

func (r *Roster) publishCreated(ctx context.Context, c conversation.Conversation) {
	ev, err := feed.NewEvent(feed.TableConversations, feed.Insert, c)
	if err != nil {
		r.log.Errorf("chat: encoding conversation event: %v", err)
		return
	}
	if err := r.broker.Publish(ctx, ev); err != nil {
		r.log.Errorf("chat: publishing conversation event: %v", err)
	}
}

// participantFilter matches conversation events involving userID.
func participantFilter(userID uuid.UUID) feed.Filter {
	return func(ev feed.Event) bool {
		var rec struct {
			ParticipantA uuid.UUID `json:"participant_a"`
			ParticipantB uuid.UUID `json:"participant_b"`
		}
		if err := json.Unmarshal(ev.Record, &rec); err != nil {
			return false
		}
		return rec.ParticipantA == userID || rec.ParticipantB == userID
	}
}
