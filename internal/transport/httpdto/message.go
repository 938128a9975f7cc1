package httpdto

import "github.com/google/uuid"

type SendMessageRequest struct {
	ConversationID uuid.UUID `json:"conversation_id" binding:"required"`
	Kind           string    `json:"kind" binding:"required"`
	Body           string    `json:"body"`
	MediaURL       string    `json:"media_url"`
}
