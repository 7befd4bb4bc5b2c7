package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/watermark-relay/internal/api/respond"
)

// service defines the processing facade. Every call returns usable output.
type service interface {
	ProcessText(ctx context.Context, groupID int64, text string) (string, bool)
	ProcessImage(ctx context.Context, groupID int64, data []byte) ([]byte, bool)
	ProcessVideo(ctx context.Context, groupID int64, data []byte) ([]byte, bool)
}

// Handler exposes the processing facade over HTTP so a relay bot or an
// operator can watermark a message without going through Kafka.
type Handler struct {
	service  service
	maxBytes int64
}

// NewHandler creates a new Handler. maxBodyMB bounds posted media.
func NewHandler(s service, maxBodyMB int) *Handler {
	return &Handler{service: s, maxBytes: int64(maxBodyMB) << 20}
}

// TextRequest is the body of a text processing request.
type TextRequest struct {
	Text string `json:"text"`
}

// TextResponse is the result of a text processing request.
type TextResponse struct {
	Text      string `json:"text"`
	Processed bool   `json:"processed"`
}

// Text appends the group's text watermark to the message body.
func (h *Handler) Text(c *ginext.Context) {
	id, ok := groupID(c)
	if !ok {
		return
	}

	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %v", err))
		return
	}

	out, processed := h.service.ProcessText(c.Request.Context(), id, req.Text)

	c.Header(respond.ProcessedHeader, strconv.FormatBool(processed))
	respond.OK(c, TextResponse{Text: out, Processed: processed})
}

// Image watermarks a posted image. Processed output is always JPEG; on
// fallback the original bytes come back with the request's content type.
func (h *Handler) Image(c *ginext.Context) {
	id, data, ok := h.media(c)
	if !ok {
		return
	}

	out, processed := h.service.ProcessImage(c.Request.Context(), id, data)

	contentType := "image/jpeg"
	if !processed {
		contentType = requestType(c, "application/octet-stream")
	}

	respond.Media(c, contentType, out, processed)
}

// Video watermarks a posted MP4 video.
func (h *Handler) Video(c *ginext.Context) {
	id, data, ok := h.media(c)
	if !ok {
		return
	}

	out, processed := h.service.ProcessVideo(c.Request.Context(), id, data)

	contentType := "video/mp4"
	if !processed {
		contentType = requestType(c, contentType)
	}

	respond.Media(c, contentType, out, processed)
}

// media reads the raw request body for a media endpoint.
func (h *Handler) media(c *ginext.Context) (int64, []byte, bool) {
	id, ok := groupID(c)
	if !ok {
		return 0, nil, false
	}

	data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Fail(c, http.StatusRequestEntityTooLarge, fmt.Errorf("body exceeds %d MB", h.maxBytes>>20))
			return 0, nil, false
		}

		zlog.Logger.Warn().Err(err).Int64("group_id", id).Msg("failed to read media body")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("failed to read body"))
		return 0, nil, false
	}

	if len(data) == 0 {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("empty body"))
		return 0, nil, false
	}

	return id, data, true
}

func requestType(c *ginext.Context, fallback string) string {
	if ct := c.GetHeader("Content-Type"); ct != "" {
		return ct
	}
	return fallback
}

func groupID(c *ginext.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid group id %q", c.Param("id")))
		return 0, false
	}

	return id, true
}
