package calls

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"pulse-chat/internal/domain/call"
	"pulse-chat/internal/domain/user"
	"pulse-chat/internal/feed"
	"pulse-chat/internal/repository"
	"pulse-chat/internal/rtc"
	pulse_errors "pulse-chat/pkg/errors"
	"pulse-chat/pkg/logger"
)

// IncomingCall is a ringing call surfaced to the UI, enriched with the
// caller's profile.
type IncomingCall struct {
	Call   call.Call
	Caller user.Profile
}

// Handlers are the UI-facing callbacks. All fields are optional; handlers
// run on the feed delivery goroutine and must not block.
type Handlers struct {
	OnIncoming    func(IncomingCall)
	OnRemoteTrack func(rtc.RemoteTrack)
	OnEnded       func(call.Call)
}

// Signaler owns the call lifecycle for one client session. The persisted
// Call record is the signaling channel: the offer goes in at creation, the
// answer during acceptance, and both sides react to each other through
// change notifications on that one record.
//
// At most one call may be pending or active per Signaler. StartCall and
// AcceptCall fail with ErrCallActive while the slot is taken.
type Signaler struct {
	selfID uuid.UUID
	repo   repository.CallRepository
	users  repository.UserRepository
	media  rtc.Media
	engine rtc.Engine
	broker feed.Broker
	log    *logger.Logger

	handlers Handlers

	mu            sync.Mutex
	busy          bool
	active        *call.Call
	incoming      *IncomingCall
	capture       rtc.Capture
	session       rtc.Session
	answerApplied bool
	updatesSub    feed.Subscription

	incomingSub feed.Subscription
}

func NewSignaler(
	ctx context.Context,
	selfID uuid.UUID,
	repo repository.CallRepository,
	users repository.UserRepository,
	media rtc.Media,
	engine rtc.Engine,
	broker feed.Broker,
	log *logger.Logger,
	handlers Handlers,
) (*Signaler, error) {
	s := &Signaler{
		selfID:   selfID,
		repo:     repo,
		users:    users,
		media:    media,
		engine:   engine,
		broker:   broker,
		log:      log,
		handlers: handlers,
	}
	sub, err := broker.Subscribe(ctx, feed.TableCalls, []feed.Kind{feed.Insert},
		callRecordFilter(func(c call.Call) bool { return c.CalleeID == selfID }),
		s.handleIncoming,
	)
	if err != nil {
		return nil, err
	}
	s.incomingSub = sub
	return s, nil
}

// Close tears down the incoming subscription and any active call. The
// Signaler must not be used afterwards.
func (s *Signaler) Close(ctx context.Context) {
	if s.incomingSub != nil {
		s.incomingSub.Close()
	}
	s.EndCall(ctx)
}

// StartCall acquires local media, negotiates a local offer and persists a
// pending Call record addressed to calleeID. On any failure no pending
// record is left behind and local media is released.
func (s *Signaler) StartCall(ctx context.Context, conversationID, calleeID uuid.UUID, kind call.Kind) (call.Call, error) {
	if !kind.Valid() {
		return call.Call{}, pulse_errors.ErrInvalidInput
	}
	if err := s.reserve(); err != nil {
		return call.Call{}, err
	}

	capture, err := s.media.Acquire(ctx, constraintsFor(kind))
	if err != nil {
		s.release()
		return call.Call{}, err
	}
	session, err := s.engine.NewSession(ctx, capture)
	if err != nil {
		capture.Close()
		s.release()
		return call.Call{}, fmt.Errorf("%w: %v", pulse_errors.ErrNegotiation, err)
	}
	session.OnRemoteTrack(s.handleRemoteTrack)

	offer, err := session.CreateOffer(ctx)
	if err != nil {
		_ = session.Close()
		capture.Close()
		s.release()
		return call.Call{}, fmt.Errorf("%w: %v", pulse_errors.ErrNegotiation, err)
	}

	c := &call.Call{
		ID:             uuid.New(),
		ConversationID: conversationID,
		CallerID:       s.selfID,
		CalleeID:       calleeID,
		Kind:           kind,
		Offer:          json.RawMessage(offer),
		Status:         call.StatusPending,
	}

	// Subscribe before the insert so the callee's answer can never slip
	// between the write and the registration.
	sub, err := s.broker.Subscribe(ctx, feed.TableCalls, []feed.Kind{feed.Update},
		callRecordFilter(func(rec call.Call) bool { return rec.ID == c.ID }),
		s.onCallUpdate,
	)
	if err != nil {
		_ = session.Close()
		capture.Close()
		s.release()
		return call.Call{}, fmt.Errorf("subscribing to call updates: %w", err)
	}

	s.mu.Lock()
	s.active = c
	s.capture = capture
	s.session = session
	s.updatesSub = sub
	s.answerApplied = false
	s.mu.Unlock()

	if err := s.repo.Create(ctx, c); err != nil {
		s.teardown(nil)
		s.release()
		return call.Call{}, fmt.Errorf("%w: %v", pulse_errors.ErrPersistence, err)
	}
	s.publish(ctx, feed.Insert, *c)
	s.release()
	return *c, nil
}

// AcceptCall acquires local media, applies the remote offer to a fresh
// negotiation context and persists the answer together with the accepted
// status in one update. On failure the call record is left untouched.
func (s *Signaler) AcceptCall(ctx context.Context, in call.Call) (call.Call, error) {
	if err := s.reserve(); err != nil {
		return call.Call{}, err
	}

	capture, err := s.media.Acquire(ctx, constraintsFor(in.Kind))
	if err != nil {
		s.release()
		return call.Call{}, err
	}
	session, err := s.engine.NewSession(ctx, capture)
	if err != nil {
		capture.Close()
		s.release()
		return call.Call{}, fmt.Errorf("%w: %v", pulse_errors.ErrNegotiation, err)
	}
	session.OnRemoteTrack(s.handleRemoteTrack)

	answer, err := session.Answer(ctx, rtc.Descriptor(in.Offer))
	if err != nil {
		_ = session.Close()
		capture.Close()
		s.release()
		return call.Call{}, fmt.Errorf("%w: %v", pulse_errors.ErrNegotiation, err)
	}

	updated, err := s.repo.Accept(ctx, in.ID, json.RawMessage(answer))
	if err != nil {
		_ = session.Close()
		capture.Close()
		s.release()
		if isDomainErr(err) {
			return call.Call{}, err
		}
		return call.Call{}, fmt.Errorf("%w: %v", pulse_errors.ErrPersistence, err)
	}

	sub, err := s.broker.Subscribe(ctx, feed.TableCalls, []feed.Kind{feed.Update},
		callRecordFilter(func(rec call.Call) bool { return rec.ID == in.ID }),
		s.onCallUpdate,
	)
	if err != nil {
		s.log.Errorf("calls: subscribing to updates for %s: %v", in.ID, err)
	}

	s.mu.Lock()
	s.active = &updated
	s.capture = capture
	s.session = session
	s.updatesSub = sub
	// The callee produced the answer itself; nothing to apply later.
	s.answerApplied = true
	if s.incoming != nil && s.incoming.Call.ID == in.ID {
		s.incoming = nil
	}
	s.mu.Unlock()

	s.publish(ctx, feed.Update, updated)
	s.release()
	return updated, nil
}

// RejectCall persists the rejected status. No media is touched. Rejecting a
// call that is already terminal is a no-op.
func (s *Signaler) RejectCall(ctx context.Context, in call.Call) error {
	updated, changed, err := s.repo.Reject(ctx, in.ID)
	if err != nil {
		if isDomainErr(err) {
			return err
		}
		return fmt.Errorf("%w: %v", pulse_errors.ErrPersistence, err)
	}
	if changed {
		s.publish(ctx, feed.Update, updated)
	}
	s.mu.Lock()
	if s.incoming != nil && s.incoming.Call.ID == in.ID {
		s.incoming = nil
	}
	s.mu.Unlock()
	return nil
}

// EndCall persists the ended status for the active call (best effort: a
// failed write never blocks local teardown), releases local media, closes
// the negotiation context and clears all call state. Safe to call with no
// active call.
func (s *Signaler) EndCall(ctx context.Context) {
	s.mu.Lock()
	cur := s.active
	s.mu.Unlock()

	if cur != nil {
		updated, changed, err := s.repo.End(ctx, cur.ID)
		if err != nil {
			s.log.Errorf("calls: persisting end of call %s: %v", cur.ID, err)
		} else if changed {
			s.publish(ctx, feed.Update, updated)
			cur = &updated
		}
	}
	s.teardown(cur)
}

// onCallUpdate reacts to remote transitions on the locally active call.
// Delivery is at-least-once, so every branch must tolerate duplicates: the
// answer is applied exactly once, and teardown of an already-ended call is
// a no-op.
func (s *Signaler) onCallUpdate(ctx context.Context, ev feed.Event) {
	var c call.Call
	if err := json.Unmarshal(ev.Record, &c); err != nil {
		s.log.Errorf("calls: malformed call update: %v", err)
		return
	}

	s.mu.Lock()
	if s.active == nil || s.active.ID != c.ID {
		s.mu.Unlock()
		return
	}

	switch {
	case c.Status == call.StatusAccepted && len(c.Answer) > 0 && !s.answerApplied:
		s.answerApplied = true
		session := s.session
		s.active = &c
		s.mu.Unlock()
		if session != nil {
			if err := session.AcceptAnswer(ctx, rtc.Descriptor(c.Answer)); err != nil {
				s.log.Errorf("calls: applying remote answer for %s: %v", c.ID, err)
			}
		}
	case c.Status.Terminal():
		s.mu.Unlock()
		// The peer drove the transition; only local teardown remains.
		s.teardown(&c)
	default:
		s.active = &c
		s.mu.Unlock()
	}
}

// handleIncoming surfaces a newly inserted call addressed to this user. It
// mutates no call state beyond remembering what is ringing.
func (s *Signaler) handleIncoming(ctx context.Context, ev feed.Event) {
	var c call.Call
	if err := json.Unmarshal(ev.Record, &c); err != nil {
		s.log.Errorf("calls: malformed incoming call: %v", err)
		return
	}
	caller, err := s.users.GetByID(ctx, c.CallerID)
	if err != nil {
		s.log.Errorf("calls: loading caller profile %s: %v", c.CallerID, err)
	}
	inc := IncomingCall{Call: c, Caller: caller}

	s.mu.Lock()
	s.incoming = &inc
	s.mu.Unlock()

	if s.handlers.OnIncoming != nil {
		s.handlers.OnIncoming(inc)
	}
}

func (s *Signaler) handleRemoteTrack(t rtc.RemoteTrack) {
	if s.handlers.OnRemoteTrack != nil {
		s.handlers.OnRemoteTrack(t)
	}
}

// ActiveCall returns a snapshot of the active call, or nil.
func (s *Signaler) ActiveCall() *call.Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	c := *s.active
	return &c
}

// Incoming returns the currently ringing call, or nil.
func (s *Signaler) Incoming() *IncomingCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.incoming == nil {
		return nil
	}
	inc := *s.incoming
	return &inc
}

// reserve claims the single call slot for the duration of a start or accept
// attempt. The claim spans the asynchronous media and store operations so
// two racing invocations cannot both acquire devices.
func (s *Signaler) reserve() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy || s.active != nil {
		return pulse_errors.ErrCallActive
	}
	s.busy = true
	return nil
}

func (s *Signaler) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// teardown releases every local call resource. final, when non-nil, is
// reported through OnEnded.
func (s *Signaler) teardown(final *call.Call) {
	s.mu.Lock()
	capture := s.capture
	session := s.session
	sub := s.updatesSub
	ended := s.active != nil
	s.active = nil
	s.incoming = nil
	s.capture = nil
	s.session = nil
	s.updatesSub = nil
	s.answerApplied = false
	s.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
	if session != nil {
		if err := session.Close(); err != nil {
			s.log.Errorf("calls: closing negotiation context: %v", err)
		}
	}
	if capture != nil {
		capture.Close()
	}
	if ended && final != nil && s.handlers.OnEnded != nil {
		s.handlers.OnEnded(*final)
	}
}

func (s *Signaler) publish(ctx context.Context, kind feed.Kind, c call.Call) {
	ev, err := feed.NewEvent(feed.TableCalls, kind, c)
	if err != nil {
		s.log.Errorf("calls: encoding %s event for %s: %v", kind, c.ID, err)
		return
	}
	if err := s.broker.Publish(ctx, ev); err != nil {
		s.log.Errorf("calls: publishing %s event for %s: %v", kind, c.ID, err)
	}
}

func constraintsFor(kind call.Kind) rtc.Constraints {
	return rtc.Constraints{Audio: true, Video: kind == call.KindVideo}
}

func callRecordFilter(match func(call.Call) bool) feed.Filter {
	return func(ev feed.Event) bool {
		var c call.Call
		if err := json.Unmarshal(ev.Record, &c); err != nil {
			return false
		}
		return match(c)
	}
}

func isDomainErr(err error) bool {
	for _, sentinel := range []error{
		pulse_errors.ErrInvalidTransition,
		pulse_errors.ErrNotFound,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
