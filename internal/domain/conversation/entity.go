package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is the unique pairing of two users. The pair is unordered:
// the store enforces at most one conversation per pair regardless of which
// side made first contact.
type Conversation struct {
	ID           uuid.UUID `json:"id"`
	ParticipantA uuid.UUID `json:"participant_a"`
	ParticipantB uuid.UUID `json:"participant_b"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Has reports whether userID participates in the conversation.
func (c Conversation) Has(userID uuid.UUID) bool {
	return c.ParticipantA == userID || c.ParticipantB == userID
}

// Other returns the participant opposite the viewer.
func (c Conversation) Other(viewer uuid.UUID) uuid.UUID {
	if c.ParticipantA == viewer {
		return c.ParticipantB
	}
	return c.ParticipantA
}

// NormalizePair orders a pair of user ids canonically so that (a,b) and (b,a)
// key the same conversation.
func NormalizePair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() > b.String() {
		return b, a
	}
	return a, b
}
