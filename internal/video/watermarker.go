package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/wb-go/wbf/zlog"
	"golang.org/x/sync/semaphore"

	"github.com/aliskhannn/watermark-relay/internal/model"
)

const (
	bytesPerMB   = 1 << 20
	audioBitrate = "128k"
	stderrTail   = 2048
)

var (
	ErrSkipped   = errors.New("video processing skipped")
	ErrTimeout   = errors.New("transcoder timed out")
	ErrTranscode = errors.New("transcoder failed")
)

// assetPaths resolves an overlay reference to a file the transcoder can read.
type assetPaths interface {
	LocalPath(ctx context.Context, ref string) (string, error)
}

// Options configures a Watermarker.
type Options struct {
	FFmpegPath    string // resolved transcoder binary
	Available     bool   // result of the capability probe
	ScratchDir    string
	FontPath      string
	MaxConcurrent int // 0 means no limit
}

// Watermarker burns overlays into videos by running ffmpeg.
type Watermarker struct {
	opts   Options
	assets assetPaths
	sem    *semaphore.Weighted
	now    func() time.Time
}

// New creates a Watermarker. The scratch directory is created if missing.
func New(assets assetPaths, opts Options) (*Watermarker, error) {
	if err := os.MkdirAll(opts.ScratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}

	w := &Watermarker{
		opts:   opts,
		assets: assets,
		now:    time.Now,
	}
	if opts.MaxConcurrent > 0 {
		w.sem = semaphore.NewWeighted(int64(opts.MaxConcurrent))
	}

	return w, nil
}

// Apply returns data with the group's overlays burned in.
// Whenever processing does not happen for an expected reason the original
// bytes are returned with an error wrapping ErrSkipped.
func (w *Watermarker) Apply(ctx context.Context, data []byte, cfg model.GroupConfig) ([]byte, error) {
	switch {
	case !cfg.VideoEnabled:
		return data, fmt.Errorf("%w: video disabled", ErrSkipped)
	case cfg.Mode == model.ModeNone:
		return data, fmt.Errorf("%w: watermark mode none", ErrSkipped)
	case !w.opts.Available:
		return data, fmt.Errorf("%w: transcoder unavailable", ErrSkipped)
	}

	if limit := int64(cfg.MaxSizeMB) * bytesPerMB; int64(len(data)) > limit {
		zlog.Logger.Warn().
			Int64("group_id", cfg.GroupID).
			Float64("size_mb", float64(len(data))/bytesPerMB).
			Int("max_size_mb", cfg.MaxSizeMB).
			Msg("video exceeds size limit, skipping watermark")
		return data, fmt.Errorf("%w: size limit exceeded", ErrSkipped)
	}

	if !cfg.ImageActive() && !cfg.TextActive() {
		return data, fmt.Errorf("%w: no overlay active", ErrSkipped)
	}

	var overlayPath string
	if cfg.ImageActive() {
		p, err := w.assets.LocalPath(ctx, cfg.AssetRef)
		if err != nil {
			return nil, fmt.Errorf("resolve overlay: %w", err)
		}
		overlayPath = p
	}

	graph, err := BuildFilter(Filter{Config: cfg, OverlayPath: overlayPath, FontPath: w.opts.FontPath})
	if err != nil {
		return nil, fmt.Errorf("build filter: %w", err)
	}

	if !cfg.Compress {
		zlog.Logger.Warn().
			Int64("group_id", cfg.GroupID).
			Msg("compress disabled but overlays need re-encoding, forcing re-encode")
	}

	if w.sem != nil {
		if err := w.sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("wait for transcode slot: %w", err)
		}
		defer w.sem.Release(1)
	}

	in, out := scratchNames(w.opts.ScratchDir, cfg.GroupID, w.now())
	defer removeQuietly(in, out)

	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, fmt.Errorf("write scratch input: %w", err)
	}

	if err := w.run(ctx, cfg, transcodeArgs(in, out, graph, cfg.Quality)); err != nil {
		return nil, err
	}

	result, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("read scratch output: %w", err)
	}

	return result, nil
}

func (w *Watermarker) run(ctx context.Context, cfg model.GroupConfig, args []string) error {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, w.opts.FFmpegPath, args...)
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Error().
			Int64("group_id", cfg.GroupID).
			Dur("timeout", timeout).
			Msg("transcoder timed out, killed")
		return fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}

	if err != nil {
		tail := tailOf(stderr.String())
		zlog.Logger.Error().
			Err(err).
			Int64("group_id", cfg.GroupID).
			Str("stderr", tail).
			Msg("transcoder failed")
		return fmt.Errorf("%w: %v: %s", ErrTranscode, err, tail)
	}

	zlog.Logger.Info().
		Int64("group_id", cfg.GroupID).
		Dur("took", time.Since(start)).
		Msg("video watermarked")

	return nil
}

func transcodeArgs(in, out, graph string, quality int) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", in,
		"-filter_complex", graph,
		"-map", "[v]", "-map", "0:a?",
		"-c:v", "libx264", "-crf", strconv.Itoa(quality), "-preset", "medium",
		"-c:a", "aac", "-b:a", audioBitrate,
		"-movflags", "+faststart",
		out,
	}
}

func tailOf(s string) string {
	if len(s) <= stderrTail {
		return s
	}
	return s[len(s)-stderrTail:]
}
