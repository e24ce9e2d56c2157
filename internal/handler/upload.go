package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/labstack/echo/v4"

	"github.com/marianozunino/vanish/internal/share"
)

// HandleUpload accepts a new payload, either as multipart form field
// "file" or as a raw request body with a Content-Type header, and
// returns the share token and expiry.
func (h *Handler) HandleUpload(c echo.Context) error {
	// Slack on top of the payload limit covers multipart framing; the
	// authoritative size check lives in the service.
	c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, h.cfg.MaxSizeToBytes()+64*1024)

	filename, contentType, body, cleanup, err := h.extractPayload(c)
	if err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}
	defer cleanup()

	rec, err := h.svc.Upload(c.Request().Context(), filename, contentType, body)
	if err != nil {
		return h.uploadError(c, err)
	}

	shareURL := h.cfg.BaseURL + rec.Token

	expiresMs := rec.ExpiresAt.UnixNano() / int64(time.Millisecond)
	c.Response().Header().Set("X-Expires", fmt.Sprintf("%d", expiresMs))

	return c.JSON(http.StatusOK, map[string]any{
		"id":         rec.Token,
		"url":        shareURL,
		"size":       rec.SizeBytes,
		"expires_at": rec.ExpiresAt,
	})
}

// extractPayload pulls the upload out of the request. The returned
// cleanup closes whatever reader was opened.
func (h *Handler) extractPayload(c echo.Context) (filename, contentType string, body io.Reader, cleanup func(), err error) {
	file, header, formErr := c.Request().FormFile("file")
	if formErr == nil {
		body, err = h.sniffContentType(header.Header.Get("Content-Type"), file, &contentType)
		if err != nil {
			file.Close()
			return "", "", nil, nil, err
		}
		return header.Filename, contentType, body, func() { file.Close() }, nil
	}

	// Raw body upload: filename comes from the query, the content type
	// from the header.
	filename = c.QueryParam("filename")
	if filename == "" {
		filename = "file"
	}

	reqBody := c.Request().Body
	body, err = h.sniffContentType(c.Request().Header.Get("Content-Type"), reqBody, &contentType)
	if err != nil {
		return "", "", nil, nil, err
	}
	return filename, contentType, body, func() {}, nil
}

// sniffContentType fills in a missing content type by sniffing the first
// bytes of the payload, handing back a reader over the full content.
func (h *Handler) sniffContentType(declared string, r io.Reader, out *string) (io.Reader, error) {
	if declared != "" && declared != "application/octet-stream" {
		*out = declared
		return r, nil
	}

	head := make([]byte, 3072)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}

	*out = mimetype.Detect(head[:n]).String()
	return io.MultiReader(bytes.NewReader(head[:n]), r), nil
}

func (h *Handler) uploadError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, share.ErrTooLarge):
		return c.String(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("File too large (max %d bytes)", h.cfg.MaxSizeToBytes()))
	case errors.Is(err, share.ErrInvalidInput):
		return c.String(http.StatusBadRequest, err.Error())
	default:
		log.Printf("Error: Upload failed: %v", err)
		return c.String(http.StatusInternalServerError, "Server error")
	}
}
