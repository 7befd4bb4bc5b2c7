package watermark

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/watermark-relay/internal/model"
	"github.com/aliskhannn/watermark-relay/internal/repository/group"
	"github.com/aliskhannn/watermark-relay/internal/video"
)

var (
	ErrGroupNotFound = errors.New("group not found")
	ErrInvalidConfig = errors.New("invalid group config")

	errPanic = errors.New("recovered panic")
)

// configStore keeps per-group settings.
type configStore interface {
	Get(groupID int64) (model.GroupConfig, bool)
	Upsert(ctx context.Context, groupID int64, patch model.GroupPatch) (model.GroupConfig, error)
	Delete(ctx context.Context, groupID int64) (bool, error)
	List() map[int64]model.GroupConfig
	Len() int
}

type mediaWatermarker interface {
	Apply(ctx context.Context, data []byte, cfg model.GroupConfig) ([]byte, error)
}

type textAnnotator interface {
	Apply(text string, cfg model.GroupConfig) (string, bool)
}

// assetStorage persists uploaded overlays.
type assetStorage interface {
	Save(ctx context.Context, name string, src io.Reader) (string, error)
	Delete(ctx context.Context, ref string) error
}

type assetCache interface {
	Invalidate(ref string)
}

// Options configures a Service.
type Options struct {
	MaxUploadMB  int
	Capabilities model.Capabilities
}

// Service is the single entry point for watermarking. Processing calls never
// fail: on any problem the original input is returned and processed is false.
type Service struct {
	store  configStore
	images mediaWatermarker
	videos mediaWatermarker
	texts  textAnnotator
	assets assetStorage
	cache  assetCache

	validate *validator.Validate
	stats    *stats
	caps     model.Capabilities

	maxUploadBytes int64
	now            func() time.Time
}

// NewService wires the watermark components together.
func NewService(
	store configStore,
	images mediaWatermarker,
	videos mediaWatermarker,
	texts textAnnotator,
	assets assetStorage,
	cache assetCache,
	opts Options,
) *Service {
	return &Service{
		store:          store,
		images:         images,
		videos:         videos,
		texts:          texts,
		assets:         assets,
		cache:          cache,
		validate:       newValidator(),
		stats:          newStats(time.Now()),
		caps:           opts.Capabilities,
		maxUploadBytes: int64(opts.MaxUploadMB) << 20,
		now:            time.Now,
	}
}

// ProcessText appends the group's signature to text.
func (s *Service) ProcessText(_ context.Context, groupID int64, text string) (string, bool) {
	cfg, ok := s.store.Get(groupID)
	if !ok {
		return text, false
	}

	type result struct {
		text    string
		changed bool
	}

	res, err := protect(func() (result, error) {
		out, changed := s.texts.Apply(text, cfg)
		return result{out, changed}, nil
	})
	if err != nil {
		s.fail("text", groupID, err)
		return text, false
	}
	if !res.changed {
		return text, false
	}

	s.stats.text()
	return res.text, true
}

// ProcessImage watermarks an image.
func (s *Service) ProcessImage(ctx context.Context, groupID int64, data []byte) ([]byte, bool) {
	cfg, ok := s.store.Get(groupID)
	if !ok || !s.caps.Image || (!cfg.ImageActive() && !cfg.TextActive()) {
		return data, false
	}

	out, err := protect(func() ([]byte, error) {
		return s.images.Apply(ctx, data, cfg)
	})
	if err != nil {
		s.fail("image", groupID, err)
		return data, false
	}

	s.stats.image()
	return out, true
}

// ProcessVideo burns the group's overlays into a video.
func (s *Service) ProcessVideo(ctx context.Context, groupID int64, data []byte) ([]byte, bool) {
	cfg, ok := s.store.Get(groupID)
	if !ok {
		return data, false
	}

	out, err := protect(func() ([]byte, error) {
		return s.videos.Apply(ctx, data, cfg)
	})
	switch {
	case errors.Is(err, video.ErrSkipped):
		zlog.Logger.Debug().Err(err).Int64("group_id", groupID).Msg("video passed through")
		return data, false
	case err != nil:
		s.fail("video", groupID, err)
		return data, false
	}

	s.stats.video()
	return out, true
}

func (s *Service) fail(kind string, groupID int64, err error) {
	s.stats.fail()
	zlog.Logger.Error().
		Err(err).
		Str("kind", kind).
		Int64("group_id", groupID).
		Msg("watermarking failed, delivering original")
}

// protect turns a panic inside fn into an error.
func protect[T any](fn func() (T, error)) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Logger.Error().Str("stack", string(debug.Stack())).Msgf("panic during watermarking: %v", r)
			err = fmt.Errorf("%w: %v", errPanic, r)
		}
	}()

	return fn()
}

// Stats returns a snapshot of the processing counters.
func (s *Service) Stats() model.Stats {
	return s.stats.snapshot(s.now())
}

// Capabilities reports which media backends are available.
func (s *Service) Capabilities() model.Capabilities {
	return s.caps
}

// GroupsConfigured returns the number of groups with a config.
func (s *Service) GroupsConfigured() int {
	return s.store.Len()
}

// GetGroup returns the config of groupID.
func (s *Service) GetGroup(groupID int64) (model.GroupConfig, error) {
	cfg, ok := s.store.Get(groupID)
	if !ok {
		return model.GroupConfig{}, ErrGroupNotFound
	}

	return cfg, nil
}

// ListGroups returns all configs keyed by group id.
func (s *Service) ListGroups() map[int64]model.GroupConfig {
	return s.store.List()
}

// UpsertGroup validates and applies a partial update, creating the group if needed.
// Overlay assets can only be changed through UploadAsset.
func (s *Service) UpsertGroup(ctx context.Context, groupID int64, patch model.GroupPatch) (model.GroupConfig, error) {
	base, ok := s.store.Get(groupID)
	if !ok {
		base = model.NewGroupConfig(groupID)
	}

	if patch.AssetRef != nil && *patch.AssetRef != base.AssetRef {
		return model.GroupConfig{}, fmt.Errorf("%w: image_asset_ref is set by uploading an asset", ErrInvalidConfig)
	}

	if err := s.validate.Struct(patch.Apply(base)); err != nil {
		return model.GroupConfig{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return s.upsert(ctx, groupID, patch)
}

// upsert stores patch. A persistence failure has been logged by the store and
// the change is live in memory, so it is not reported to the caller.
func (s *Service) upsert(ctx context.Context, groupID int64, patch model.GroupPatch) (model.GroupConfig, error) {
	cfg, err := s.store.Upsert(ctx, groupID, patch)
	if err != nil && !errors.Is(err, group.ErrPersist) {
		return model.GroupConfig{}, fmt.Errorf("upsert group: %w", err)
	}

	return cfg, nil
}

// DeleteGroup removes a group's config and its overlay asset.
func (s *Service) DeleteGroup(ctx context.Context, groupID int64) error {
	cfg, _ := s.store.Get(groupID)

	existed, err := s.store.Delete(ctx, groupID)
	if !existed {
		return ErrGroupNotFound
	}
	if err != nil {
		zlog.Logger.Warn().Err(err).Int64("group_id", groupID).Msg("group deleted with cleanup errors")
	}

	if cfg.AssetRef != "" {
		s.cache.Invalidate(cfg.AssetRef)
	}

	return nil
}
