package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownMode     = errors.New("unknown watermark mode")
	ErrUnknownPosition = errors.New("unknown position")
)

// Mode selects which overlay pipelines run for a group.
type Mode string

const (
	ModeNone  Mode = "none"
	ModeText  Mode = "text"
	ModeImage Mode = "image"
	ModeBoth  Mode = "both"
)

// ParseMode converts a stored or user-supplied string into a Mode.
// The legacy spelling "png" is accepted as an alias of "image".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return ModeNone, nil
	case "text":
		return ModeText, nil
	case "image", "png":
		return ModeImage, nil
	case "both":
		return ModeBoth, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// UnmarshalText rejects unknown encodings instead of carrying them around.
func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// HasImage reports whether the mode enables the image overlay.
func (m Mode) HasImage() bool { return m == ModeImage || m == ModeBoth }

// HasText reports whether the mode enables the text overlay.
func (m Mode) HasText() bool { return m == ModeText || m == ModeBoth }

// Position is an anchor used to place an overlay on the target frame.
type Position string

const (
	PositionTopLeft     Position = "top_left"
	PositionTopRight    Position = "top_right"
	PositionBottomLeft  Position = "bottom_left"
	PositionBottomRight Position = "bottom_right"
	PositionCenter      Position = "center"
	PositionCustom      Position = "custom"
)

// ParsePosition converts a string into a Position.
func ParsePosition(s string) (Position, error) {
	p := Position(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PositionTopLeft, PositionTopRight, PositionBottomLeft,
		PositionBottomRight, PositionCenter, PositionCustom:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPosition, s)
	}
}

func (p *Position) UnmarshalText(b []byte) error {
	parsed, err := ParsePosition(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
