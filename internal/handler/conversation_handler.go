package handler

import (
	"net/http"

	"pulse-chat/internal/chat"
	"pulse-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ConversationHandler struct {
	roster *chat.Roster
	selfID uuid.UUID
}

func NewConversationHandler(roster *chat.Roster, selfID uuid.UUID) *ConversationHandler {
	return &ConversationHandler{roster: roster, selfID: selfID}
}

func (h *ConversationHandler) List(c *gin.Context) {
	entries, err := h.roster.ListConversations(c.Request.Context(), h.selfID)
	if err != nil {
		status, code := httpdto.StatusFor(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"conversations": entries}))
}

func (h *ConversationHandler) CreateOrGet(c *gin.Context) {
	var req httpdto.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	conv, err := h.roster.CreateOrGetConversation(c.Request.Context(), h.selfID, req.OtherID)
	if err != nil {
		status, code := httpdto.StatusFor(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(conv))
}
