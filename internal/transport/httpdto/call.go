package httpdto

import "github.com/google/uuid"

type StartCallRequest struct {
	ConversationID uuid.UUID `json:"conversation_id" binding:"required"`
	CalleeID       uuid.UUID `json:"callee_id" binding:"required"`
	Kind           string    `json:"kind" binding:"required"`
}
