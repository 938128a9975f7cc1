package httpdto

import "github.com/google/uuid"

type CreateConversationRequest struct {
	OtherID uuid.UUID `json:"other_id" binding:"required"`
}
