package handler

import (
	"net/http"

	"pulse-chat/internal/chat"
	"pulse-chat/internal/domain/message"
	"pulse-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type MessageHandler struct {
	sync   *chat.Synchronizer
	selfID uuid.UUID
}

func NewMessageHandler(sync *chat.Synchronizer, selfID uuid.UUID) *MessageHandler {
	return &MessageHandler{sync: sync, selfID: selfID}
}

func (h *MessageHandler) List(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
		return
	}
	msgs, err := h.sync.LoadMessages(c.Request.Context(), conversationID)
	if err != nil {
		status, code := httpdto.StatusFor(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"messages": msgs}))
}

func (h *MessageHandler) Send(c *gin.Context) {
	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	sent, err := h.sync.Send(c.Request.Context(), chat.SendInput{
		ConversationID: req.ConversationID,
		SenderID:       h.selfID,
		Kind:           message.ContentKind(req.Kind),
		Body:           req.Body,
		MediaURL:       req.MediaURL,
	})
	if err != nil {
		status, code := httpdto.StatusFor(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(sent))
}

func (h *MessageHandler) MarkSeen(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
		return
	}
	if err := h.sync.MarkSeen(c.Request.Context(), conversationID, h.selfID); err != nil {
		status, code := httpdto.StatusFor(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}
