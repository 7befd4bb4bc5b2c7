package watermark

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/watermark-relay/internal/model"
)

var (
	ErrInvalidAsset  = errors.New("invalid watermark asset")
	ErrAssetTooLarge = errors.New("watermark asset too large")
)

var allowedAssetExt = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// UploadAsset stores a new overlay image for groupID and points the group at it.
// The previous asset is deleted and both cache entries are dropped. A group
// without a config gets one in image mode.
func (s *Service) UploadAsset(ctx context.Context, groupID int64, filename, contentType string, src io.Reader) (model.GroupConfig, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedAssetExt[ext] {
		return model.GroupConfig{}, fmt.Errorf("%w: extension %q not allowed", ErrInvalidAsset, ext)
	}
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return model.GroupConfig{}, fmt.Errorf("%w: content type %q", ErrInvalidAsset, contentType)
	}

	data, err := io.ReadAll(io.LimitReader(src, s.maxUploadBytes+1))
	if err != nil {
		return model.GroupConfig{}, fmt.Errorf("upload: failed to read asset: %w", err)
	}
	if int64(len(data)) > s.maxUploadBytes {
		return model.GroupConfig{}, fmt.Errorf("%w: limit is %d MB", ErrAssetTooLarge, s.maxUploadBytes>>20)
	}

	if _, err := imaging.Decode(bytes.NewReader(data)); err != nil {
		return model.GroupConfig{}, fmt.Errorf("%w: %v", ErrInvalidAsset, err)
	}

	name := fmt.Sprintf("watermark_%d_%d%s", groupID, s.now().UnixMilli(), ext)
	ref, err := s.assets.Save(ctx, name, bytes.NewReader(data))
	if err != nil {
		return model.GroupConfig{}, fmt.Errorf("upload: failed to save asset: %w", err)
	}

	prev, existed := s.store.Get(groupID)

	enabled := true
	patch := model.GroupPatch{AssetRef: &ref, ImageEnabled: &enabled}
	if !existed {
		mode := model.ModeImage
		patch.Mode = &mode
	}

	cfg, err := s.upsert(ctx, groupID, patch)
	if err != nil {
		return model.GroupConfig{}, err
	}

	if prev.AssetRef != "" && prev.AssetRef != ref {
		if err := s.assets.Delete(ctx, prev.AssetRef); err != nil {
			zlog.Logger.Warn().Err(err).Str("asset", prev.AssetRef).Msg("failed to delete replaced asset")
		}
		s.cache.Invalidate(prev.AssetRef)
	}
	s.cache.Invalidate(ref)

	zlog.Logger.Info().
		Int64("group_id", groupID).
		Str("asset", ref).
		Int("bytes", len(data)).
		Msg("watermark asset uploaded")

	return cfg, nil
}
