package router

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/watermark-relay/internal/api/handlers/group"
	"github.com/aliskhannn/watermark-relay/internal/api/handlers/health"
	"github.com/aliskhannn/watermark-relay/internal/api/handlers/process"
	"github.com/aliskhannn/watermark-relay/internal/middleware"
)

// Handlers groups the HTTP handlers mounted by Setup.
type Handlers struct {
	Health  *health.Handler
	Group   *group.Handler
	Process *process.Handler
}

func Setup(h Handlers) *ginext.Engine {
	r := ginext.New()

	r.Use(middleware.CORSMiddleware())
	r.Use(ginext.Logger())
	r.Use(ginext.Recovery())

	api := r.Group("/api")

	api.GET("/health", h.Health.Health) // capabilities and config count
	api.GET("/stats", h.Health.Stats)   // processing counters

	groups := api.Group("/groups")

	groups.GET("", h.Group.List)                       // all group configs
	groups.GET("/:id", h.Group.Get)                    // one group config
	groups.PUT("/:id", h.Group.Upsert)                 // partial update
	groups.DELETE("/:id", h.Group.Delete)              // remove config and asset
	groups.POST("/:id/asset", h.Group.UploadAsset)     // replace overlay image
	groups.POST("/:id/process/text", h.Process.Text)   // append text watermark
	groups.POST("/:id/process/image", h.Process.Image) // watermark an image
	groups.POST("/:id/process/video", h.Process.Video) // watermark an mp4

	return r
}
