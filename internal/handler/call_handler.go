package handler

import (
	"net/http"

	"pulse-chat/internal/calls"
	"pulse-chat/internal/domain/call"
	"pulse-chat/internal/repository"
	"pulse-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CallHandler struct {
	signaler *calls.Signaler
	repo     repository.CallRepository
}

func NewCallHandler(signaler *calls.Signaler, repo repository.CallRepository) *CallHandler {
	return &CallHandler{signaler: signaler, repo: repo}
}

func (h *CallHandler) Start(c *gin.Context) {
	var req httpdto.StartCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	kind := call.Kind(req.Kind)
	started, err := h.signaler.StartCall(c.Request.Context(), req.ConversationID, req.CalleeID, kind)
	if err != nil {
		status, code := httpdto.StatusFor(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(started))
}

func (h *CallHandler) Accept(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid call id", "INVALID_REQUEST"))
		return
	}
	rec, err := h.repo.GetByID(c.Request.Context(), callID)
	if err != nil {
		status, code := httpdto.StatusFor(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}
	accepted, err := h.signaler.AcceptCall(c.Request.Context(), rec)
	if err != nil {
		status, code := httpdto.StatusFor(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(accepted))
}

func (h *CallHandler) Reject(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid call id", "INVALID_REQUEST"))
		return
	}
	rec, err := h.repo.GetByID(c.Request.Context(), callID)
	if err != nil {
		status, code := httpdto.StatusFor(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}
	if err := h.signaler.RejectCall(c.Request.Context(), rec); err != nil {
		status, code := httpdto.StatusFor(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *CallHandler) End(c *gin.Context) {
	h.signaler.EndCall(c.Request.Context())
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *CallHandler) Active(c *gin.Context) {
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{
		"active":   h.signaler.ActiveCall(),
		"incoming": h.signaler.Incoming(),
	}))
}
