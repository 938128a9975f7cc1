package calls

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"pulse-chat/internal/domain/call"
	"pulse-chat/internal/domain/user"
	"pulse-chat/internal/rtc"
	pulse_errors "pulse-chat/pkg/errors"
	"pulse-chat/pkg/logger"
)

func newTestLogger() *logger.Logger {
	return logger.New(logger.DevelopmentMode)
}

// fakeCallRepo mirrors the store's guarded transitions in memory.
type fakeCallRepo struct {
	mu    sync.Mutex
	calls map[uuid.UUID]call.Call
}

func newFakeCallRepo() *fakeCallRepo {
	return &fakeCallRepo{calls: make(map[uuid.UUID]call.Call)}
}

func (f *fakeCallRepo) Create(ctx context.Context, c *call.Call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	c.Status = call.StatusPending
	f.calls[c.ID] = *c
	return nil
}

func (f *fakeCallRepo) GetByID(ctx context.Context, id uuid.UUID) (call.Call, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.calls[id]
	if !ok {
		return call.Call{}, pulse_errors.ErrNotFound
	}
	return c, nil
}

func (f *fakeCallRepo) Accept(ctx context.Context, id uuid.UUID, answer json.RawMessage) (call.Call, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.calls[id]
	if !ok {
		return call.Call{}, pulse_errors.ErrNotFound
	}
	if c.Status != call.StatusPending {
		return call.Call{}, fmt.Errorf("%w: %s -> accepted", pulse_errors.ErrInvalidTransition, c.Status)
	}
	c.Answer = answer
	c.Status = call.StatusAccepted
	c.UpdatedAt = time.Now()
	f.calls[id] = c
	return c, nil
}

func (f *fakeCallRepo) Reject(ctx context.Context, id uuid.UUID) (call.Call, bool, error) {
	return f.transition(id, call.StatusRejected, true)
}

func (f *fakeCallRepo) End(ctx context.Context, id uuid.UUID) (call.Call, bool, error) {
	return f.transition(id, call.StatusEnded, false)
}

func (f *fakeCallRepo) transition(id uuid.UUID, to call.Status, pendingOnly bool) (call.Call, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.calls[id]
	if !ok {
		return call.Call{}, false, pulse_errors.ErrNotFound
	}
	if c.Status.Terminal() {
		return c, false, nil
	}
	if pendingOnly && c.Status != call.StatusPending {
		return call.Call{}, false, fmt.Errorf("%w: %s -> %s", pulse_errors.ErrInvalidTransition, c.Status, to)
	}
	c.Status = to
	c.UpdatedAt = time.Now()
	f.calls[id] = c
	return c, true, nil
}

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

type fakeCapture struct {
	mu     sync.Mutex
	closed bool
}

func (c *fakeCapture) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeCapture) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeMedia hands out captures and can simulate denied devices.
type fakeMedia struct {
	mu       sync.Mutex
	denied   bool
	captures []*fakeCapture
}

func (m *fakeMedia) Acquire(ctx context.Context, c rtc.Constraints) (rtc.Capture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.denied {
		return nil, fmt.Errorf("%w: permission denied", pulse_errors.ErrMediaAcquisition)
	}
	capture := &fakeCapture{}
	m.captures = append(m.captures, capture)
	return capture, nil
}

func (m *fakeMedia) acquireCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.captures)
}

func (m *fakeMedia) allClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.captures {
		if !c.isClosed() {
			return false
		}
	}
	return true
}

type fakeSession struct {
	mu            sync.Mutex
	answersApplied int
	closed        bool
	onTrack       func(rtc.RemoteTrack)
}

func (s *fakeSession) CreateOffer(ctx context.Context) (rtc.Descriptor, error) {
	return rtc.Descriptor(`{"type":"offer","sdp":"v=0"}`), nil
}

func (s *fakeSession) Answer(ctx context.Context, remoteOffer rtc.Descriptor) (rtc.Descriptor, error) {
	if len(remoteOffer) == 0 {
		return nil, fmt.Errorf("empty remote offer")
	}
	return rtc.Descriptor(`{"type":"answer","sdp":"v=0"}`), nil
}

func (s *fakeSession) AcceptAnswer(ctx context.Context, remoteAnswer rtc.Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answersApplied++
	return nil
}

func (s *fakeSession) OnRemoteTrack(fn func(rtc.RemoteTrack)) {
	s.mu.Lock()
	s.onTrack = fn
	s.mu.Unlock()
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) applied() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answersApplied
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeEngine struct {
	mu       sync.Mutex
	sessions []*fakeSession
}

func (e *fakeEngine) NewSession(ctx context.Context, local rtc.Capture) (rtc.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := &fakeSession{}
	e.sessions = append(e.sessions, s)
	return s, nil
}

func (e *fakeEngine) last() *fakeSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.sessions) == 0 {
		return nil
	}
	return e.sessions[len(e.sessions)-1]
}
