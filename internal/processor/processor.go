package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"github.com/aliskhannn/watermark-relay/internal/model"
	"github.com/aliskhannn/watermark-relay/internal/placement"
)

// Text placed at a custom position lands at this offset from the top-left corner.
const (
	textCustomX = 20
	textCustomY = 60
)

// assetCache provides decoded overlay images by reference.
type assetCache interface {
	Get(ctx context.Context, ref string) (image.Image, error)
}

// Processor composites image and text watermarks onto still images.
type Processor struct {
	assets assetCache
	fonts  *fontSource
}

// New creates a Processor. An empty fontPath selects the embedded Go Regular font.
func New(assets assetCache, fontPath string) *Processor {
	return &Processor{
		assets: assets,
		fonts:  newFontSource(fontPath),
	}
}

// Apply watermarks data according to cfg and returns a JPEG.
// When no overlay is active the input is returned as is, without decoding.
func (p *Processor) Apply(ctx context.Context, data []byte, cfg model.GroupConfig) ([]byte, error) {
	withImage := cfg.ImageActive()
	withText := cfg.TextActive()
	if !withImage && !withText {
		return data, nil
	}

	// Decode into an image object.
	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	canvas := imaging.Clone(src)

	if withImage {
		canvas, err = p.overlay(ctx, canvas, cfg)
		if err != nil {
			return nil, err
		}
	}

	if withText {
		canvas, err = p.annotate(canvas, cfg)
		if err != nil {
			return nil, err
		}
	}

	// JPEG has no alpha channel, so flatten onto white first.
	b := canvas.Bounds()
	flat := imaging.Overlay(imaging.New(b.Dx(), b.Dy(), color.White), canvas, image.Pt(0, 0), 1.0)

	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, flat, imaging.JPEG, imaging.JPEGQuality(model.DefaultJPEGQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode watermarked image: %w", err)
	}

	return buf.Bytes(), nil
}

// overlay blends the group's asset onto canvas, scaled to a fraction of its width.
func (p *Processor) overlay(ctx context.Context, canvas *image.NRGBA, cfg model.GroupConfig) (*image.NRGBA, error) {
	mark, err := p.assets.Get(ctx, cfg.AssetRef)
	if err != nil {
		return nil, fmt.Errorf("failed to load overlay: %w", err)
	}

	w, h := canvas.Bounds().Dx(), canvas.Bounds().Dy()

	targetW := int(cfg.Scale * float64(w))
	if targetW < 1 {
		targetW = 1
	}
	resized := imaging.Resize(mark, targetW, 0, imaging.Lanczos)

	pos := placement.Resolve(w, h, resized.Bounds().Dx(), resized.Bounds().Dy(), cfg.Position, cfg.CustomX, cfg.CustomY)

	return imaging.Overlay(canvas, resized, pos, model.ClampOpacity(cfg.Opacity)), nil
}

// annotate draws the configured text with an outline around it.
func (p *Processor) annotate(canvas *image.NRGBA, cfg model.GroupConfig) (*image.NRGBA, error) {
	fill, err := model.ParseColor(cfg.TextColor)
	if err != nil {
		return nil, fmt.Errorf("text color: %w", err)
	}
	stroke, err := model.ParseColor(cfg.StrokeColor)
	if err != nil {
		return nil, fmt.Errorf("stroke color: %w", err)
	}

	face, err := p.fonts.Face(cfg.FontSize)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(cfg.TextContent)

	dc := gg.NewContextForImage(canvas)
	dc.SetFontFace(face)

	tw, th := dc.MeasureString(text)
	pos := placement.Resolve(dc.Width(), dc.Height(), int(math.Ceil(tw)), int(math.Ceil(th)), cfg.TextPosition, textCustomX, textCustomY)
	x, y := float64(pos.X), float64(pos.Y)

	// Anchor (0, 1) puts the top-left of the text at (x, y).
	if sw := cfg.StrokeWidth; sw > 0 {
		dc.SetColor(stroke)
		for dy := -sw; dy <= sw; dy++ {
			for dx := -sw; dx <= sw; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				dc.DrawStringAnchored(text, x+float64(dx), y+float64(dy), 0, 1)
			}
		}
	}

	dc.SetColor(fill)
	dc.DrawStringAnchored(text, x, y, 0, 1)

	return imaging.Clone(dc.Image()), nil
}
