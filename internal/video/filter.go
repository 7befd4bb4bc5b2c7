package video

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aliskhannn/watermark-relay/internal/model"
	"github.com/aliskhannn/watermark-relay/internal/placement"
)

const (
	textCustomX = 20
	textCustomY = 60
)

var (
	// drawtext expands '%' sequences and backslashes in its text.
	textEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`)
	// Filter option values are split on ':'.
	optionEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`)
	// The filtergraph parser treats these as link and chain syntax.
	graphEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `[`, `\[`, `]`, `\]`, `,`, `\,`, `;`, `\;`)
)

func escapeValue(s string) string {
	return graphEscaper.Replace(optionEscaper.Replace(s))
}

func escapeText(s string) string {
	return escapeValue(textEscaper.Replace(s))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Filter describes the inputs to BuildFilter.
type Filter struct {
	Config      model.GroupConfig
	OverlayPath string // local file of the image overlay, empty when none
	FontPath    string // optional TTF for drawtext
}

// BuildFilter returns a -filter_complex graph whose output pad is [v].
// It returns an empty string when no overlay applies.
func BuildFilter(f Filter) (string, error) {
	cfg := f.Config
	withImage := cfg.ImageActive() && f.OverlayPath != ""
	withText := cfg.TextActive()

	var b strings.Builder

	switch {
	case withImage:
		// The overlay is scaled against the main video width, keeping its own aspect.
		fmt.Fprintf(&b,
			"movie=%s:loop=0,setpts=N/(FRAME_RATE*TB),format=rgba,colorchannelmixer=aa=%s[wm];"+
				"[wm][0:v]scale2ref=w=main_w*%s:h=ow/a[wms][base];"+
				"[base][wms]overlay=%s",
			escapeValue(f.OverlayPath),
			formatFloat(model.ClampOpacity(cfg.Opacity)),
			formatFloat(cfg.Scale),
			placement.OverlayExpr(cfg.Position, cfg.CustomX, cfg.CustomY),
		)
	case withText:
		b.WriteString("[0:v]")
	default:
		return "", nil
	}

	if withText {
		dt, err := drawtext(cfg, f.FontPath)
		if err != nil {
			return "", err
		}
		if withImage {
			b.WriteString(",")
		}
		b.WriteString(dt)
	}

	b.WriteString("[v]")

	return b.String(), nil
}

func drawtext(cfg model.GroupConfig, fontPath string) (string, error) {
	fill, err := model.FFmpegColor(cfg.TextColor)
	if err != nil {
		return "", fmt.Errorf("text color: %w", err)
	}

	x, y := placement.DrawtextExpr(cfg.TextPosition, textCustomX, textCustomY)

	parts := []string{
		"drawtext=text=" + escapeText(strings.TrimSpace(cfg.TextContent)),
		"fontcolor=" + fill,
		"fontsize=" + strconv.Itoa(cfg.FontSize),
		"x=" + x,
		"y=" + y,
	}

	if cfg.StrokeWidth > 0 {
		border, err := model.FFmpegColor(cfg.StrokeColor)
		if err != nil {
			return "", fmt.Errorf("stroke color: %w", err)
		}
		parts = append(parts, "borderw="+strconv.Itoa(cfg.StrokeWidth), "bordercolor="+border)
	}

	if fontPath != "" {
		parts = append(parts, "fontfile="+escapeValue(fontPath))
	}

	return strings.Join(parts, ":"), nil
}
