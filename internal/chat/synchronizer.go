package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"pulse-chat/internal/domain/message"
	"pulse-chat/internal/feed"
	"pulse-chat/internal/repository"
	pulse_errors "pulse-chat/pkg/errors"
	"pulse-chat/pkg/logger"
)

// Synchronizer keeps per-conversation message sequences consistent under
// concurrent writers. The persisted store is the source of truth: the local
// cache is a projection rebuilt from a full reload on every change
// notification, which makes reacting to our own echoed writes harmless.
type Synchronizer struct {
	messages repository.MessageRepository
	broker   feed.Broker
	log      *logger.Logger
}

func NewSynchronizer(messages repository.MessageRepository, broker feed.Broker, log *logger.Logger) *Synchronizer {
	return &Synchronizer{messages: messages, broker: broker, log: log}
}

// LoadMessages returns the conversation's full ordered sequence, oldest
// first. A conversation with no messages yields an empty slice.
func (s *Synchronizer) LoadMessages(ctx context.Context, conversationID uuid.UUID) ([]message.Message, error) {
	msgs, err := s.messages.GetConversationMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pulse_errors.ErrFetch, err)
	}
	return msgs, nil
}

// SendInput describes one outgoing message. Non-text kinds must reference
// media that was already uploaded.
type SendInput struct {
	ConversationID uuid.UUID
	SenderID       uuid.UUID
	Kind           message.ContentKind
	Body           string
	MediaURL       string
}

func (in SendInput) validate() error {
	if in.ConversationID == uuid.Nil || in.SenderID == uuid.Nil || !in.Kind.Valid() {
		return pulse_errors.ErrInvalidInput
	}
	if in.Kind == message.KindText {
		if in.Body == "" || in.MediaURL != "" {
			return pulse_errors.ErrInvalidInput
		}
		return nil
	}
	if in.MediaURL == "" {
		return pulse_errors.ErrInvalidInput
	}
	return nil
}

// Send persists a new unseen message. The local cache is deliberately not
// updated here: the message becomes visible through the change notification
// that follows, the same path every other participant takes.
func (s *Synchronizer) Send(ctx context.Context, in SendInput) (message.Message, error) {
	if err := in.validate(); err != nil {
		return message.Message{}, err
	}
	m := &message.Message{
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		ContentKind:    in.Kind,
		Body:           in.Body,
		MediaURL:       in.MediaURL,
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return message.Message{}, fmt.Errorf("%w: %v", pulse_errors.ErrPersistence, err)
	}
	s.publish(ctx, feed.Insert, *m)
	return *m, nil
}

// MarkSeen flips every unseen message from the other participant to seen in
// one batched update. Repeated calls with nothing unseen are no-ops and
// publish nothing.
func (s *Synchronizer) MarkSeen(ctx context.Context, conversationID, viewerID uuid.UUID) error {
	n, err := s.messages.MarkSeen(ctx, conversationID, viewerID)
	if err != nil {
		return fmt.Errorf("%w: %v", pulse_errors.ErrPersistence, err)
	}
	if n > 0 {
		s.publishSeen(ctx, conversationID, viewerID)
	}
	return nil
}

// Open starts synchronizing one conversation for viewerID: an immediate
// reload plus markSeen, then the same on every change notification scoped to
// the conversation. Opening a conversation therefore clears its unread state
// as a side effect. Close the view when the screen goes away.
func (s *Synchronizer) Open(ctx context.Context, conversationID, viewerID uuid.UUID, onChange func([]message.Message)) (*ConversationView, error) {
	v := &ConversationView{
		sync:           s,
		conversationID: conversationID,
		viewerID:       viewerID,
		onChange:       onChange,
	}
	sub, err := s.broker.Subscribe(ctx, feed.TableMessages, nil,
		ConversationFilter(conversationID), v.handleChange)
	if err != nil {
		return nil, err
	}
	v.sub = sub
	v.refresh(ctx)
	return v, nil
}

func (s *Synchronizer) publish(ctx context.Context, kind feed.Kind, m message.Message) {
	ev, err := feed.NewEvent(feed.TableMessages, kind, m)
	if err != nil {
		s.log.Errorf("chat: encoding %s event: %v", kind, err)
		return
	}
	if err := s.broker.Publish(ctx, ev); err != nil {
		s.log.Errorf("chat: publishing %s event: %v", kind, err)
	}
}

// seenRecord is the change payload for a batched seen update. It carries the
// conversation id so conversation-scoped filters match it; consumers reload
// rather than interpret it.
type seenRecord struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	SeenBy         uuid.UUID `json:"seen_by"`
}

func (s *Synchronizer) publishSeen(ctx context.Context, conversationID, viewerID uuid.UUID) {
	ev, err := feed.NewEvent(feed.TableMessages, feed.Update, seenRecord{
		ConversationID: conversationID,
		SeenBy:         viewerID,
	})
	if err != nil {
		s.log.Errorf("chat: encoding seen event: %v", err)
		return
	}
	if err := s.broker.Publish(ctx, ev); err != nil {
		s.log.Errorf("chat: publishing seen event: %v", err)
	}
}

// ConversationView is the live cache of one open conversation.
type ConversationView struct {
	sync           *Synchronizer
	conversationID uuid.UUID
	viewerID       uuid.UUID
	onChange       func([]message.Message)

	mu         sync.Mutex
	msgs       []message.Message
	startGen   uint64
	appliedGen uint64
	closed     bool
	sub        feed.Subscription
}

func (v *ConversationView) handleChange(ctx context.Context, _ feed.Event) {
	v.refresh(ctx)
}

// refresh reloads the full sequence and reapplies seen state. Overlapping
// reloads may complete out of trigger order; a reload's result is discarded
// when a later-started reload already finished, so the cache converges on
// completion order.
func (v *ConversationView) refresh(ctx context.Context) {
	v.mu.Lock()
	v.startGen++
	gen := v.startGen
	v.mu.Unlock()

	msgs, err := v.sync.messages.GetConversationMessages(ctx, v.conversationID)
	if err != nil {
		// Keep the old cache; the next notification rebuilds it.
		v.sync.log.Errorf("chat: reloading conversation %s: %v", v.conversationID, err)
		return
	}

	v.mu.Lock()
	stale := gen <= v.appliedGen
	if !stale {
		v.appliedGen = gen
		v.msgs = msgs
	}
	closed := v.closed
	v.mu.Unlock()
	if stale || closed {
		return
	}

	if v.onChange != nil {
		v.onChange(msgs)
	}
	if err := v.sync.MarkSeen(ctx, v.conversationID, v.viewerID); err != nil {
		v.sync.log.Errorf("chat: marking conversation %s seen: %v", v.conversationID, err)
	}
}

// Messages returns a snapshot of the cached sequence.
func (v *ConversationView) Messages() []message.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]message.Message, len(v.msgs))
	copy(out, v.msgs)
	return out
}

// Close stops consuming notifications. In-flight reloads are not cancelled;
// their results are silently dropped.
func (v *ConversationView) Close() {
	v.mu.Lock()
	v.closed = true
	sub := v.sub
	v.sub = nil
	v.mu.Unlock()
	if sub != nil {
		sub.Close()
	}
}

// ConversationFilter matches events whose record carries the conversation id.
func ConversationFilter(conversationID uuid.UUID) feed.Filter {
	return func(ev feed.Event) bool {
		var rec struct {
			ConversationID uuid.UUID `json:"conversation_id"`
		}
		if err := json.Unmarshal(ev.Record, &rec); err != nil {
			return false
		}
		return rec.ConversationID == conversationID
	}
}
