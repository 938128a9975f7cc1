package rtc

import (
	"context"
)

// Descriptor is an opaque session-description payload. This layer never
// inspects it; only the negotiation engine on either end gives it meaning.
type Descriptor []byte

// Constraints selects which capture devices a call needs.
type Constraints struct {
	Audio bool
	Video bool
}

// Capture is a handle on acquired local media. Close releases the devices;
// it must always be called, including on every failure path after Acquire.
type Capture interface {
	Close()
}

// Media acquires local capture devices. Fails when permission is denied or
// no device matches the constraints.
type Media interface {
	Acquire(ctx context.Context, c Constraints) (Capture, error)
}

// RemoteTrack is one inbound media track surfaced by the peer session.
type RemoteTrack interface {
	ID() string
	Kind() string
}

// Session wraps one peer negotiation context. A session serves exactly one
// call and is closed on any terminal transition.
type Session interface {
	// CreateOffer produces the local offer descriptor for a caller-side
	// session.
	CreateOffer(ctx context.Context) (Descriptor, error)
	// Answer applies the remote offer and produces the local answer for a
	// callee-side session.
	Answer(ctx context.Context, remoteOffer Descriptor) (Descriptor, error)
	// AcceptAnswer applies the remote answer on the caller side. Applying
	// an answer when a remote descriptor is already set is a no-op.
	AcceptAnswer(ctx context.Context, remoteAnswer Descriptor) error
	// OnRemoteTrack registers the callback surfacing inbound media. Must be
	// set before negotiation starts.
	OnRemoteTrack(fn func(RemoteTrack))
	Close() error
}

// Engine creates peer sessions bound to already-acquired local media.
type Engine interface {
	NewSession(ctx context.Context, local Capture) (Session, error)
}
