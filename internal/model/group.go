package model

import (
	"strings"
	"time"
)

// Defaults applied to a group created without explicit values.
const (
	DefaultMode           = ModeNone
	DefaultPosition       = PositionBottomRight
	DefaultOpacity        = 0.7
	DefaultScale          = 0.15
	DefaultCustomX        = 20
	DefaultCustomY        = 20
	DefaultFontSize       = 32
	DefaultTextColor      = "#FFFFFF"
	DefaultStrokeColor    = "#000000"
	DefaultStrokeWidth    = 2
	DefaultMaxSizeMB      = 100
	DefaultTimeoutSeconds = 60
	DefaultQuality        = 23
	DefaultJPEGQuality    = 85
)

// GroupConfig holds the watermark settings of a single destination group.
type GroupConfig struct {
	GroupID int64 `json:"group_id"`
	Mode    Mode  `json:"watermark_mode" validate:"oneof=none text image both"`

	ImageEnabled bool     `json:"image_enabled"`
	AssetRef     string   `json:"image_asset_ref,omitempty"`
	Position     Position `json:"position" validate:"oneof=top_left top_right bottom_left bottom_right center custom"`
	Opacity      float64  `json:"opacity" validate:"gte=0,lte=1"`
	Scale        float64  `json:"scale" validate:"gt=0,lte=1"`
	CustomX      int      `json:"custom_x"`
	CustomY      int      `json:"custom_y"`

	TextEnabled  bool     `json:"text_enabled"`
	TextContent  string   `json:"text_content" validate:"max=512"`
	TextPosition Position `json:"text_position" validate:"oneof=top_left top_right bottom_left bottom_right center custom"`
	FontSize     int      `json:"font_size" validate:"gt=0,lte=512"`
	TextColor    string   `json:"text_color" validate:"watermark_color"`
	StrokeColor  string   `json:"stroke_color" validate:"watermark_color"`
	StrokeWidth  int      `json:"stroke_width" validate:"gte=0,lte=16"`

	VideoEnabled   bool `json:"video_enabled"`
	MaxSizeMB      int  `json:"max_size_mb" validate:"gt=0"`
	TimeoutSeconds int  `json:"timeout_seconds" validate:"gt=0"`
	Compress       bool `json:"compress"`
	Quality        int  `json:"quality" validate:"gte=0,lte=51"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewGroupConfig returns a config for groupID populated with defaults.
func NewGroupConfig(groupID int64) GroupConfig {
	return GroupConfig{
		GroupID:        groupID,
		Mode:           DefaultMode,
		Position:       DefaultPosition,
		Opacity:        DefaultOpacity,
		Scale:          DefaultScale,
		CustomX:        DefaultCustomX,
		CustomY:        DefaultCustomY,
		TextPosition:   DefaultPosition,
		FontSize:       DefaultFontSize,
		TextColor:      DefaultTextColor,
		StrokeColor:    DefaultStrokeColor,
		StrokeWidth:    DefaultStrokeWidth,
		VideoEnabled:   true,
		MaxSizeMB:      DefaultMaxSizeMB,
		TimeoutSeconds: DefaultTimeoutSeconds,
		Compress:       true,
		Quality:        DefaultQuality,
	}
}

// ImageActive reports whether the image overlay should be applied.
// The mode gates the flag: image_enabled is inert unless the mode includes images.
func (c GroupConfig) ImageActive() bool {
	return c.Mode.HasImage() && c.ImageEnabled && c.AssetRef != ""
}

// TextActive reports whether the text overlay should be drawn on media.
func (c GroupConfig) TextActive() bool {
	return c.Mode.HasText() && c.CaptionActive()
}

// CaptionActive reports whether outgoing captions get the configured suffix.
func (c GroupConfig) CaptionActive() bool {
	return c.TextEnabled && strings.TrimSpace(c.TextContent) != ""
}

// ClampOpacity limits v to [0, 1].
func ClampOpacity(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
