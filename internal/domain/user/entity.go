package user

import (
	"time"

	"github.com/google/uuid"
)

// Profile is the public slice of a user record needed by the roster and by
// incoming-call surfacing. Account management lives outside this core.
type Profile struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	AvatarURL string     `json:"avatar_url,omitempty"`
	About     string     `json:"about,omitempty"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
}
