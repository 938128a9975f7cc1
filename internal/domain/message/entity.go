package message

import (
	"time"

	"github.com/google/uuid"
)

// ContentKind distinguishes inline text from uploaded media references.
type ContentKind string

const (
	KindText  ContentKind = "text"
	KindImage ContentKind = "image"
	KindVideo ContentKind = "video"
)

func (k ContentKind) Valid() bool {
	return k == KindText || k == KindImage || k == KindVideo
}

// Message is immutable after creation except for the seen flag, which flips
// false -> true exactly once and only by the recipient.
type Message struct {
	ID             uuid.UUID   `json:"id"`
	ConversationID uuid.UUID   `json:"conversation_id"`
	SenderID       uuid.UUID   `json:"sender_id"`
	ContentKind    ContentKind `json:"content_kind"`
	Body           string      `json:"body,omitempty"`
	MediaURL       string      `json:"media_url,omitempty"`
	Seen           bool        `json:"seen"`
	CreatedAt      time.Time   `json:"created_at"`
}
