package model

// GroupPatch is a partial update of a GroupConfig. Nil fields keep their current value.
type GroupPatch struct {
	Mode *Mode `json:"watermark_mode,omitempty"`

	ImageEnabled *bool     `json:"image_enabled,omitempty"`
	AssetRef     *string   `json:"image_asset_ref,omitempty"`
	Position     *Position `json:"position,omitempty"`
	Opacity      *float64  `json:"opacity,omitempty"`
	Scale        *float64  `json:"scale,omitempty"`
	CustomX      *int      `json:"custom_x,omitempty"`
	CustomY      *int      `json:"custom_y,omitempty"`

	TextEnabled  *bool     `json:"text_enabled,omitempty"`
	TextContent  *string   `json:"text_content,omitempty"`
	TextPosition *Position `json:"text_position,omitempty"`
	FontSize     *int      `json:"font_size,omitempty"`
	TextColor    *string   `json:"text_color,omitempty"`
	StrokeColor  *string   `json:"stroke_color,omitempty"`
	StrokeWidth  *int      `json:"stroke_width,omitempty"`

	VideoEnabled   *bool `json:"video_enabled,omitempty"`
	MaxSizeMB      *int  `json:"max_size_mb,omitempty"`
	TimeoutSeconds *int  `json:"timeout_seconds,omitempty"`
	Compress       *bool `json:"compress,omitempty"`
	Quality        *int  `json:"quality,omitempty"`
}

// Apply returns a copy of c with every non-nil patch field set.
func (p GroupPatch) Apply(c GroupConfig) GroupConfig {
	set(&c.Mode, p.Mode)
	set(&c.ImageEnabled, p.ImageEnabled)
	set(&c.AssetRef, p.AssetRef)
	set(&c.Position, p.Position)
	set(&c.Opacity, p.Opacity)
	set(&c.Scale, p.Scale)
	set(&c.CustomX, p.CustomX)
	set(&c.CustomY, p.CustomY)

	set(&c.TextEnabled, p.TextEnabled)
	set(&c.TextContent, p.TextContent)
	set(&c.TextPosition, p.TextPosition)
	set(&c.FontSize, p.FontSize)
	set(&c.TextColor, p.TextColor)
	set(&c.StrokeColor, p.StrokeColor)
	set(&c.StrokeWidth, p.StrokeWidth)

	set(&c.VideoEnabled, p.VideoEnabled)
	set(&c.MaxSizeMB, p.MaxSizeMB)
	set(&c.TimeoutSeconds, p.TimeoutSeconds)
	set(&c.Compress, p.Compress)
	set(&c.Quality, p.Quality)

	return c
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
