package handler

import (
	"net/http"

	"pulse-chat/internal/media"
	"pulse-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// maxUploadBytes caps message media at 50 MiB.
const maxUploadBytes = 50 << 20

type UploadHandler struct {
	store  media.BlobStore
	selfID uuid.UUID
}

func NewUploadHandler(store media.BlobStore, selfID uuid.UUID) *UploadHandler {
	return &UploadHandler{store: store, selfID: selfID}
}

// Upload stores one media blob and returns its URL. The client sends the
// returned URL in the message that references the blob.
func (h *UploadHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("missing file", "INVALID_REQUEST"))
		return
	}
	defer file.Close()

	url, err := h.store.Upload(c.Request.Context(), h.selfID,
		header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		status, code := httpdto.StatusFor(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"url": url}))
}
