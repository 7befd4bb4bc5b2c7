package group

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
	"github.com/aliskhannn/watermark-relay/internal/model"
	"github.com/aliskhannn/watermark-relay/internal/service/watermark"
)

// service defines the group configuration operations used by the handler.
type service interface {
	GetGroup(groupID int64) (model.GroupConfig, error)
	ListGroups() map[int64]model.GroupConfig
	UpsertGroup(ctx context.Context, groupID int64, patch model.GroupPatch) (model.GroupConfig, error)
	DeleteGroup(ctx context.Context, groupID int64) error
	UploadAsset(ctx context.Context, groupID int64, filename, contentType string, src io.Reader) (model.GroupConfig, error)
}

// Handler provides HTTP handlers for per-group watermark configuration.
type Handler struct {
	service     service
	maxUploadMB int
}

// NewHandler creates a new Handler. maxUploadMB bounds the multipart body of asset uploads.
func NewHandler(s service, maxUploadMB int) *Handler {
	return &Handler{service: s, maxUploadMB: maxUploadMB}
}

// List returns every configured group keyed by group id.
func (h *Handler) List(c *ginext.Context) {
	groups := h.service.ListGroups()

	out := make(map[string]model.GroupConfig, len(groups))
	for id, cfg := range groups {
		out[strconv.FormatInt(id, 10)] = cfg
	}

	respond.OK(c, out)
}

// Get returns the configuration of a single group.
func (h *Handler) Get(c *ginext.Context) {
	id, ok := groupID(c)
	if !ok {
		return
	}

	cfg, err := h.service.GetGroup(id)
	if err != nil {
		h.fail(c, id, err)
		return
	}

	respond.OK(c, cfg)
}

// Upsert applies a partial update to a group, creating it with defaults if needed.
func (h *Handler) Upsert(c *ginext.Context) {
	id, ok := groupID(c)
	if !ok {
		return
	}

	var patch model.GroupPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		zlog.Logger.Warn().Err(err).Int64("group_id", id).Msg("failed to decode group patch")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %v", err))
		return
	}

	cfg, err := h.service.UpsertGroup(c.Request.Context(), id, patch)
	if err != nil {
		h.fail(c, id, err)
		return
	}

	respond.OK(c, cfg)
}

// Delete removes a group's configuration and its asset.
func (h *Handler) Delete(c *ginext.Context) {
	id, ok := groupID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteGroup(c.Request.Context(), id); err != nil {
		h.fail(c, id, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// UploadAsset stores a new watermark image for the group from the "file" form field.
func (h *Handler) UploadAsset(c *ginext.Context) {
	id, ok := groupID(c)
	if !ok {
		return
	}

	// Leave a megabyte for multipart framing on top of the asset limit.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(h.maxUploadMB+1)<<20)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Fail(c, http.StatusRequestEntityTooLarge, watermark.ErrAssetTooLarge)
			return
		}

		zlog.Logger.Warn().Err(err).Int64("group_id", id).Msg("failed to read uploaded asset")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("file field is required"))
		return
	}
	defer file.Close()

	cfg, err := h.service.UploadAsset(c.Request.Context(), id, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		h.fail(c, id, err)
		return
	}

	respond.Created(c, cfg)
}

// fail maps service errors to HTTP statuses.
func (h *Handler) fail(c *ginext.Context, id int64, err error) {
	switch {
	case errors.Is(err, watermark.ErrGroupNotFound):
		respond.Fail(c, http.StatusNotFound, err)
	case errors.Is(err, watermark.ErrInvalidConfig), errors.Is(err, watermark.ErrInvalidAsset):
		respond.Fail(c, http.StatusBadRequest, err)
	case errors.Is(err, watermark.ErrAssetTooLarge):
		respond.Fail(c, http.StatusRequestEntityTooLarge, err)
	default:
		zlog.Logger.Error().Err(err).Int64("group_id", id).Msg("group request failed")
		respond.Fail(c, http.StatusInternalServerError, errors.New("internal error"))
	}
}

// groupID parses the :id path parameter, writing a 400 response when it is not an integer.
// Telegram group ids are negative, so the sign is kept.
func groupID(c *ginext.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid group id %q", c.Param("id")))
		return 0, false
	}

	return id, true
}
