package handler

import (
	"net/http"
	"strings"

	"github.com/ErlanBelekov/marketplace/internal/infrastructure/objstore"
	"github.com/gin-gonic/gin"
)

// ImageSource serves objects kept in process when no object store is configured.
type ImageSource interface {
	Get(key string) (data []byte, contentType string, ok bool)
}

type ImageHandler struct {
	src ImageSource
}

func NewImageHandler(src ImageSource) *ImageHandler {
	return &ImageHandler{src: src}
}

// GET /images/*key
func (h *ImageHandler) Get(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	data, contentType, ok := h.src.Get(key)
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	if _, image := objstore.ImageExtension(contentType); !image {
		contentType = "application/octet-stream"
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Header("Content-Security-Policy", "default-src 'none'; sandbox")
	c.Data(http.StatusOK, contentType, data)
}
