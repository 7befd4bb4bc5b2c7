package health

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/watermark-relay/internal/api/respond"
	"github.com/aliskhannn/watermark-relay/internal/model"
)

type service interface {
	Stats() model.Stats
	Capabilities() model.Capabilities
	GroupsConfigured() int
}

// Handler serves liveness and statistics endpoints.
type Handler struct {
	service service
}

// NewHandler creates a new Handler.
func NewHandler(s service) *Handler {
	return &Handler{service: s}
}

// Status is the body of the health endpoint.
type Status struct {
	Status           string             `json:"status"`
	Capabilities     model.Capabilities `json:"capabilities"`
	Stats            model.Stats        `json:"stats"`
	GroupsConfigured int                `json:"groups_configured"`
}

// Health reports which backends are usable. The service stays up without a
// transcoder, so the status is "degraded" rather than an error code.
func (h *Handler) Health(c *ginext.Context) {
	caps := h.service.Capabilities()

	status := "ok"
	if !caps.Transcoder {
		status = "degraded"
	}

	respond.OK(c, Status{
		Status:           status,
		Capabilities:     caps,
		Stats:            h.service.Stats(),
		GroupsConfigured: h.service.GroupsConfigured(),
	})
}

// Stats returns the processing counters.
func (h *Handler) Stats(c *ginext.Context) {
	respond.OK(c, h.service.Stats())
}
