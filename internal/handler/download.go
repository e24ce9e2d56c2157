package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/marianozunino/vanish/internal/share"
)

// HandleDownload resolves a share token and streams its content. A dead
// token answers 410 when the share existed and expired, 404 when it never
// existed; the distinction matters for user messaging.
func (h *Handler) HandleDownload(c echo.Context) error {
	token := c.Param("id")

	dl, err := h.svc.Resolve(c.Request().Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, share.ErrNotFound):
			return c.String(http.StatusNotFound, "File not found")
		case errors.Is(err, share.ErrExpired):
			return c.String(http.StatusGone, "File has expired")
		default:
			log.Printf("Error: Download of %q failed: %v", token, err)
			return c.String(http.StatusInternalServerError, "Server error")
		}
	}
	defer dl.Body.Close()

	meta := dl.Record

	contentType := meta.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	expiresMs := meta.ExpiresAt.UnixNano() / int64(time.Millisecond)
	c.Response().Header().Set("X-Expires", fmt.Sprintf("%d", expiresMs))
	c.Response().Header().Set("Content-Length", fmt.Sprintf("%d", meta.SizeBytes))

	if shouldDisplayInline(contentType) {
		c.Response().Header().Set("Content-Disposition", "inline; filename=\""+meta.Filename+"\"")
	} else {
		c.Response().Header().Set("Content-Disposition", "attachment; filename=\""+meta.Filename+"\"")
	}

	log.Printf("File served: %s (%d bytes) to %s", meta.Filename, meta.SizeBytes, c.RealIP())
	return c.Stream(http.StatusOK, contentType, dl.Body)
}

// HandleHealth is a liveness probe
func (h *Handler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// shouldDisplayInline determines if the content should be displayed
// inline in the browser instead of forcing a download
func shouldDisplayInline(contentType string) bool {
	return strings.HasPrefix(contentType, "video/") ||
		strings.HasPrefix(contentType, "audio/") ||
		strings.HasPrefix(contentType, "image/") ||
		contentType == "application/pdf" ||
		strings.HasPrefix(contentType, "text/")
}
