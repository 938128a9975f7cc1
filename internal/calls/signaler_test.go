package calls

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse-chat/internal/domain/call"
	"pulse-chat/internal/domain/user"
	"pulse-chat/internal/feed"
	pulse_errors "pulse-chat/pkg/errors"
)

type peer struct {
	id       uuid.UUID
	media    *fakeMedia
	engine   *fakeEngine
	signaler *Signaler
	incoming chan IncomingCall
	ended    chan call.Call
}

type fixture struct {
	ctx    context.Context
	broker *feed.MemoryBroker
	repo   *fakeCallRepo
	alice  *peer
	bob    *peer
	convID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	broker := feed.NewMemoryBroker()
	repo := newFakeCallRepo()

	aliceID := uuid.New()
	bobID := uuid.New()
	users := newFakeUserRepo(
		user.Profile{ID: aliceID, Name: "Alice"},
		user.Profile{ID: bobID, Name: "Bob"},
	)

	mkPeer := func(id uuid.UUID) *peer {
		p := &peer{
			id:       id,
			media:    &fakeMedia{},
			engine:   &fakeEngine{},
			incoming: make(chan IncomingCall, 4),
			ended:    make(chan call.Call, 4),
		}
		sig, err := NewSignaler(ctx, id, repo, users, p.media, p.engine, broker, newTestLogger(), Handlers{
			OnIncoming: func(inc IncomingCall) { p.incoming <- inc },
			OnEnded:    func(c call.Call) { p.ended <- c },
		})
		require.NoError(t, err)
		p.signaler = sig
		return p
	}

	f := &fixture{
		ctx:    ctx,
		broker: broker,
		repo:   repo,
		alice:  mkPeer(aliceID),
		bob:    mkPeer(bobID),
		convID: uuid.New(),
	}
	t.Cleanup(func() {
		f.alice.signaler.Close(ctx)
		f.bob.signaler.Close(ctx)
	})
	return f
}

func (f *fixture) waitIncoming(t *testing.T) IncomingCall {
	t.Helper()
	select {
	case inc := <-f.bob.incoming:
		return inc
	case <-time.After(2 * time.Second):
		t.Fatal("callee never rang")
		return IncomingCall{}
	}
}

func TestStartAndAcceptFlow(t *testing.T) {
	f := newFixture(t)

	started, err := f.alice.signaler.StartCall(f.ctx, f.convID, f.bob.id, call.KindVideo)
	require.NoError(t, err)
	assert.Equal(t, call.StatusPending, started.Status)
	assert.NotEmpty(t, started.Offer)
	assert.Empty(t, started.Answer)

	inc := f.waitIncoming(t)
	assert.Equal(t, started.ID, inc.Call.ID)
	assert.Equal(t, "Alice", inc.Caller.Name)

	accepted, err := f.bob.signaler.AcceptCall(f.ctx, inc.Call)
	require.NoError(t, err)
	assert.Equal(t, call.StatusAccepted, accepted.Status)
	assert.NotEmpty(t, accepted.Answer)

	// The caller applies the answer through the change feed, exactly once.
	require.Eventually(t, func() bool {
		return f.alice.engine.last().applied() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		cur := f.alice.signaler.ActiveCall()
		return cur != nil && cur.Status == call.StatusAccepted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDuplicateAnswerDeliveryAppliesOnce(t *testing.T) {
	f := newFixture(t)

	started, err := f.alice.signaler.StartCall(f.ctx, f.convID, f.bob.id, call.KindAudio)
	require.NoError(t, err)
	inc := f.waitIncoming(t)
	accepted, err := f.bob.signaler.AcceptCall(f.ctx, inc.Call)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return f.alice.engine.last().applied() == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Redeliver the same accepted update; at-least-once delivery must not
	// renegotiate.
	ev, err := feed.NewEvent(feed.TableCalls, feed.Update, accepted)
	require.NoError(t, err)
	require.NoError(t, f.broker.Publish(f.ctx, ev))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, f.alice.engine.last().applied())
	assert.Equal(t, started.ID, f.alice.signaler.ActiveCall().ID)
}

func TestStartCallWhileActiveFails(t *testing.T) {
	f := newFixture(t)

	_, err := f.alice.signaler.StartCall(f.ctx, f.convID, f.bob.id, call.KindAudio)
	require.NoError(t, err)

	_, err = f.alice.signaler.StartCall(f.ctx, f.convID, f.bob.id, call.KindAudio)
	assert.ErrorIs(t, err, pulse_errors.ErrCallActive)
}

func TestMediaDeniedLeavesNoRecord(t *testing.T) {
	f := newFixture(t)
	f.alice.media.denied = true

	_, err := f.alice.signaler.StartCall(f.ctx, f.convID, f.bob.id, call.KindVideo)
	require.ErrorIs(t, err, pulse_errors.ErrMediaAcquisition)
	assert.Empty(t, f.repo.calls)

	// The failure released the call slot.
	f.alice.media.denied = false
	_, err = f.alice.signaler.StartCall(f.ctx, f.convID, f.bob.id, call.KindVideo)
	assert.NoError(t, err)
}

func TestInvalidKindRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.alice.signaler.StartCall(f.ctx, f.convID, f.bob.id, "screen")
	assert.ErrorIs(t, err, pulse_errors.ErrInvalidInput)
	assert.Zero(t, f.alice.media.acquireCount())
}

func TestRejectTouchesNoMedia(t *testing.T) {
	f := newFixture(t)

	_, err := f.alice.signaler.StartCall(f.ctx, f.convID, f.bob.id, call.KindAudio)
	require.NoError(t, err)
	inc := f.waitIncoming(t)

	require.NoError(t, f.bob.signaler.RejectCall(f.ctx, inc.Call))
	assert.Zero(t, f.bob.media.acquireCount())
	assert.Nil(t, f.bob.signaler.Incoming())

	// The caller observes the terminal state and tears down.
	select {
	case c := <-f.alice.ended:
		assert.Equal(t, call.StatusRejected, c.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("caller never observed the rejection")
	}
	require.Eventually(t, func() bool {
		return f.alice.signaler.ActiveCall() == nil && f.alice.media.allClosed()
	}, 2*time.Second, 10*time.Millisecond)

	// Rejecting again is a no-op.
	assert.NoError(t, f.bob.signaler.RejectCall(f.ctx, inc.Call))
}

func TestEndCallTearsDownAndPersists(t *testing.T) {
	f := newFixture(t)

	started, err := f.alice.signaler.StartCall(f.ctx, f.convID, f.bob.id, call.KindAudio)
	require.NoError(t, err)

	f.alice.signaler.EndCall(f.ctx)

	stored, err := f.repo.GetByID(f.ctx, started.ID)
	require.NoError(t, err)
	assert.Equal(t, call.StatusEnded, stored.Status)
	assert.Nil(t, f.alice.signaler.ActiveCall())
	assert.True(t, f.alice.media.allClosed())
	assert.True(t, f.alice.engine.last().isClosed())

	// Ending with no active call is safe.
	f.alice.signaler.EndCall(f.ctx)
}

func TestAcceptAfterTerminalFails(t *testing.T) {
	f := newFixture(t)

	_, err := f.alice.signaler.StartCall(f.ctx, f.convID, f.bob.id, call.KindAudio)
	require.NoError(t, err)
	inc := f.waitIncoming(t)

	// The caller hangs up before the callee answers.
	f.alice.signaler.EndCall(f.ctx)

	_, err = f.bob.signaler.AcceptCall(f.ctx, inc.Call)
	assert.ErrorIs(t, err, pulse_errors.ErrInvalidTransition)

	// The failed accept released everything it had acquired.
	assert.True(t, f.bob.media.allClosed())
	assert.Nil(t, f.bob.signaler.ActiveCall())
}
