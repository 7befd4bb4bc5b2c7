package watermark

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/watermark-relay/internal/asset"
	"github.com/aliskhannn/watermark-relay/internal/model"
	"github.com/aliskhannn/watermark-relay/internal/processor"
	"github.com/aliskhannn/watermark-relay/internal/repository/group"
	"github.com/aliskhannn/watermark-relay/internal/storage/file"
	"github.com/aliskhannn/watermark-relay/internal/text"
	"github.com/aliskhannn/watermark-relay/internal/video"
)

func TestMain(m *testing.M) {
	zlog.Init()
	os.Exit(m.Run())
}

const copyScript = `prev=""
for a in "$@"; do
  if [ "$prev" = "-i" ]; then in="$a"; fi
  prev="$a"
  out="$a"
done
cp "$in" "$out"
printf 'X' >> "$out"`

type harness struct {
	svc     *Service
	assets  string
	scratch string
}

func ptr[T any](v T) *T { return &v }

func newHarness(t *testing.T, ffmpegBody string) *harness {
	t.Helper()
	root := t.TempDir()

	assetsDir := filepath.Join(root, "assets")
	scratch := filepath.Join(root, "temp")

	storage, err := file.NewStorage(assetsDir)
	require.NoError(t, err)

	persister, err := group.NewFilePersister(filepath.Join(root, "config"))
	require.NoError(t, err)
	store := group.NewStore(persister, storage)

	cache := asset.NewCache(storage)

	opts := video.Options{ScratchDir: scratch}
	if ffmpegBody != "" {
		if runtime.GOOS == "windows" {
			t.Skip("shell script transcoder needs a POSIX shell")
		}
		bin := filepath.Join(root, "ffmpeg")
		require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"+ffmpegBody+"\n"), 0o755))
		opts.FFmpegPath = bin
		opts.Available = true
	}
	videos, err := video.New(storage, opts)
	require.NoError(t, err)

	svc := NewService(store, processor.New(cache, ""), videos, text.New(), storage, cache, Options{
		MaxUploadMB:  1,
		Capabilities: model.Capabilities{Image: true, Transcoder: opts.Available},
	})

	return &harness{svc: svc, assets: assetsDir, scratch: scratch}
}

func logoPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, imaging.New(100, 50, color.NRGBA{255, 0, 0, 200})))
	return buf.Bytes()
}

func photo(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(w, h, color.NRGBA{0, 0, 255, 255}), imaging.JPEG))
	return buf.Bytes()
}

func TestUnconfiguredGroupPassesThrough(t *testing.T) {
	h := newHarness(t, copyScript)
	ctx := context.Background()

	txt, ok := h.svc.ProcessText(ctx, 1, "hello")
	assert.False(t, ok)
	assert.Equal(t, "hello", txt)

	img := photo(t, 50, 50)
	out, ok := h.svc.ProcessImage(ctx, 1, img)
	assert.False(t, ok)
	assert.Equal(t, img, out)

	vid := []byte("video-bytes")
	out, ok = h.svc.ProcessVideo(ctx, 1, vid)
	assert.False(t, ok)
	assert.Equal(t, vid, out)

	assert.Zero(t, h.svc.Stats().Errors)
	assert.Zero(t, h.svc.Stats().TotalProcessed)
}

func TestTextModeNeverAppliesImageOverlay(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	_, err := h.svc.UploadAsset(ctx, 5, "logo.png", "image/png", bytes.NewReader(logoPNG(t)))
	require.NoError(t, err)
	_, err = h.svc.UpsertGroup(ctx, 5, model.GroupPatch{Mode: ptr(model.ModeText)})
	require.NoError(t, err)

	img := photo(t, 300, 200)
	out, ok := h.svc.ProcessImage(ctx, 5, img)
	assert.False(t, ok)
	assert.Equal(t, img, out)
}

func TestEndToEndGroup42(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	_, err := h.svc.UploadAsset(ctx, 42, "logo.png", "image/png", bytes.NewReader(logoPNG(t)))
	require.NoError(t, err)

	cfg, err := h.svc.UpsertGroup(ctx, 42, model.GroupPatch{
		Mode:         ptr(model.ModeBoth),
		TextEnabled:  ptr(true),
		TextContent:  ptr("— via Service"),
		TextPosition: ptr(model.PositionTopLeft),
		Position:     ptr(model.PositionBottomRight),
		Scale:        ptr(0.15),
		Opacity:      ptr(0.7),
	})
	require.NoError(t, err)
	assert.True(t, cfg.ImageActive())

	txt, ok := h.svc.ProcessText(ctx, 42, "Breaking news")
	assert.True(t, ok)
	assert.Equal(t, "Breaking news\n\n— via Service", txt)

	out, ok := h.svc.ProcessImage(ctx, 42, photo(t, 1200, 900))
	require.True(t, ok)

	img, err := imaging.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 1200, 900), img.Bounds())

	// The 180x90 logo sits at (1000, 790); red shows through at 70% of its alpha.
	inside := color.NRGBAModel.Convert(img.At(1090, 835)).(color.NRGBA)
	assert.Greater(t, int(inside.R), 90)
	outside := color.NRGBAModel.Convert(img.At(600, 450)).(color.NRGBA)
	assert.Less(t, int(outside.R), 30)

	stats := h.svc.Stats()
	assert.Equal(t, int64(1), stats.TextsProcessed)
	assert.Equal(t, int64(1), stats.ImagesProcessed)
	assert.Equal(t, int64(2), stats.TotalProcessed)
	assert.Zero(t, stats.Errors)
}

func TestTextAnnotationDoesNotAccumulate(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	_, err := h.svc.UpsertGroup(ctx, 8, model.GroupPatch{TextEnabled: ptr(true), TextContent: ptr("sig")})
	require.NoError(t, err)

	first, _ := h.svc.ProcessText(ctx, 8, "msg")
	second, _ := h.svc.ProcessText(ctx, 8, "msg")
	assert.Equal(t, first, second)
	assert.Equal(t, 1, strings.Count(second, "sig"))
}

func TestCorruptImageFallsBack(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	_, err := h.svc.UpsertGroup(ctx, 3, model.GroupPatch{
		Mode:        ptr(model.ModeText),
		TextEnabled: ptr(true),
		TextContent: ptr("sig"),
	})
	require.NoError(t, err)

	garbage := []byte("definitely not a jpeg")
	out, ok := h.svc.ProcessImage(ctx, 3, garbage)
	assert.False(t, ok)
	assert.Equal(t, garbage, out)
	assert.Equal(t, int64(1), h.svc.Stats().Errors)
}

func videoPatch() model.GroupPatch {
	return model.GroupPatch{
		Mode:        ptr(model.ModeText),
		TextEnabled: ptr(true),
		TextContent: ptr("sig"),
		MaxSizeMB:   ptr(1),
	}
}

func TestVideoSizeCeiling(t *testing.T) {
	h := newHarness(t, copyScript)
	ctx := context.Background()

	_, err := h.svc.UpsertGroup(ctx, 11, videoPatch())
	require.NoError(t, err)

	over := bytes.Repeat([]byte{7}, 1<<20+1)
	out, ok := h.svc.ProcessVideo(ctx, 11, over)
	assert.False(t, ok)
	assert.Equal(t, over, out)
	assert.Zero(t, h.svc.Stats().Errors, "size skips are not errors")

	exact := bytes.Repeat([]byte{7}, 1<<20)
	out, ok = h.svc.ProcessVideo(ctx, 11, exact)
	assert.True(t, ok)
	assert.Len(t, out, 1<<20+1)
	assert.Equal(t, int64(1), h.svc.Stats().VideosProcessed)
}

func TestVideoTimeoutIsSafe(t *testing.T) {
	h := newHarness(t, "exec sleep 30")
	ctx := context.Background()

	patch := videoPatch()
	patch.TimeoutSeconds = ptr(1)
	_, err := h.svc.UpsertGroup(ctx, 12, patch)
	require.NoError(t, err)

	before := h.svc.Stats().Errors
	in := []byte("video-bytes")
	out, ok := h.svc.ProcessVideo(ctx, 12, in)
	assert.False(t, ok)
	assert.Equal(t, in, out)
	assert.Equal(t, before+1, h.svc.Stats().Errors)

	entries, err := os.ReadDir(h.scratch)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestVideoWithoutTranscoderPassesThrough(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	_, err := h.svc.UpsertGroup(ctx, 13, videoPatch())
	require.NoError(t, err)

	out, ok := h.svc.ProcessVideo(ctx, 13, []byte("v"))
	assert.False(t, ok)
	assert.Equal(t, []byte("v"), out)
	assert.Zero(t, h.svc.Stats().Errors)
}

type panickingWatermarker struct{}

func (panickingWatermarker) Apply(context.Context, []byte, model.GroupConfig) ([]byte, error) {
	panic("boom")
}

func TestPanicIsContained(t *testing.T) {
	h := newHarness(t, "")
	h.svc.images = panickingWatermarker{}
	ctx := context.Background()

	_, err := h.svc.UpsertGroup(ctx, 4, model.GroupPatch{
		Mode:        ptr(model.ModeText),
		TextEnabled: ptr(true),
		TextContent: ptr("sig"),
	})
	require.NoError(t, err)

	in := photo(t, 20, 20)
	out, ok := h.svc.ProcessImage(ctx, 4, in)
	assert.False(t, ok)
	assert.Equal(t, in, out)
	assert.Equal(t, int64(1), h.svc.Stats().Errors)
}

func TestUpsertGroupValidation(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	_, err := h.svc.UpsertGroup(ctx, 1, model.GroupPatch{Opacity: ptr(1.5)})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = h.svc.UpsertGroup(ctx, 1, model.GroupPatch{TextColor: ptr("purple-ish")})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = h.svc.UpsertGroup(ctx, 1, model.GroupPatch{AssetRef: ptr("elsewhere.png")})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = h.svc.GetGroup(1)
	assert.ErrorIs(t, err, ErrGroupNotFound, "rejected patches must not create the group")
}

func TestUploadAssetValidation(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	_, err := h.svc.UploadAsset(ctx, 1, "logo.gif", "image/gif", bytes.NewReader(logoPNG(t)))
	assert.ErrorIs(t, err, ErrInvalidAsset)

	_, err = h.svc.UploadAsset(ctx, 1, "logo.png", "text/plain", bytes.NewReader(logoPNG(t)))
	assert.ErrorIs(t, err, ErrInvalidAsset)

	_, err = h.svc.UploadAsset(ctx, 1, "logo.png", "image/png", strings.NewReader("not an image"))
	assert.ErrorIs(t, err, ErrInvalidAsset)

	_, err = h.svc.UploadAsset(ctx, 1, "logo.png", "image/png", bytes.NewReader(make([]byte, 1<<20+1)))
	assert.ErrorIs(t, err, ErrAssetTooLarge)
}

func TestUploadAssetReplacesPrevious(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	first, err := h.svc.UploadAsset(ctx, 2, "logo.png", "image/png", bytes.NewReader(logoPNG(t)))
	require.NoError(t, err)
	assert.Equal(t, model.ModeImage, first.Mode)
	assert.True(t, first.ImageEnabled)

	h.svc.now = func() time.Time { return time.Now().Add(time.Hour) }

	second, err := h.svc.UploadAsset(ctx, 2, "logo.jpg", "image/jpeg", bytes.NewReader(photo(t, 10, 10)))
	require.NoError(t, err)
	assert.NotEqual(t, first.AssetRef, second.AssetRef)
	assert.True(t, strings.HasPrefix(second.AssetRef, "watermark_2_"))

	_, err = os.Stat(filepath.Join(h.assets, first.AssetRef))
	assert.True(t, os.IsNotExist(err), "replaced asset must be deleted")
	_, err = os.Stat(filepath.Join(h.assets, second.AssetRef))
	assert.NoError(t, err)
}

func TestDeleteGroup(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	cfg, err := h.svc.UploadAsset(ctx, 6, "logo.png", "image/png", bytes.NewReader(logoPNG(t)))
	require.NoError(t, err)

	require.NoError(t, h.svc.DeleteGroup(ctx, 6))
	_, err = os.Stat(filepath.Join(h.assets, cfg.AssetRef))
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, h.svc.DeleteGroup(ctx, 6), ErrGroupNotFound)
	assert.Zero(t, h.svc.GroupsConfigured())
}
