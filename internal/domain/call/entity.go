package call

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes audio-only calls from video calls. Immutable after creation.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

func (k Kind) Valid() bool {
	return k == KindAudio || k == KindVideo
}

// Status is the call lifecycle state. pending -> {accepted, rejected};
// ended is reachable from any non-terminal state and is terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusEnded    Status = "ended"
)

// Terminal reports whether no further transitions are allowed out of s.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusEnded
}

// CanTransition reports whether the s -> to transition is allowed.
func (s Status) CanTransition(to Status) bool {
	if s.Terminal() {
		return false
	}
	switch to {
	case StatusAccepted, StatusRejected:
		return s == StatusPending
	case StatusEnded:
		return true
	}
	return false
}

// Call represents one audio/video session negotiation attempt between two
// users. The persisted record doubles as the signaling channel: the offer is
// written at creation, the answer at most once during acceptance, and both
// sides observe each other's transitions through the change feed.
type Call struct {
	ID             uuid.UUID       `json:"id"`
	ConversationID uuid.UUID       `json:"conversation_id"`
	CallerID       uuid.UUID       `json:"caller_id"`
	CalleeID       uuid.UUID       `json:"callee_id"`
	Kind           Kind            `json:"kind"`
	Offer          json.RawMessage `json:"offer,omitempty"`
	Answer         json.RawMessage `json:"answer,omitempty"`
	Status         Status          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
