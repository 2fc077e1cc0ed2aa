package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

const maxUploadSize = 10 << 20

// UploadMedia stores a pasted or picked image in the blog repository and
// returns the Markdown snippet that references it.
func (h *Handler) UploadMedia(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded", "code": "invalid_request"})
		return
	}
	if header.Size > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large", "code": "too_large"})
		return
	}

	src, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read upload", "code": "invalid_request"})
		return
	}
	defer src.Close()
	data, err := io.ReadAll(io.LimitReader(src, maxUploadSize+1))
	if err != nil || len(data) > maxUploadSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read upload", "code": "invalid_request"})
		return
	}

	sync, sess := h.synchronizer(c)
	media, err := sync.UploadImage(c.Request.Context(), sess.User.Login, header.Filename, data)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"media":    media,
		"markdown": "![image](/" + media.Path + ")",
	})
}
