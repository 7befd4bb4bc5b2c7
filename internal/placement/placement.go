// Package placement resolves overlay anchors to coordinates, both as numbers
// for in-process compositing and as ffmpeg expressions for video filters.
package placement

import (
	"image"
	"strconv"

	"github.com/aliskhannn/watermark-relay/internal/model"
)

// Margin is the distance kept between an overlay and the edges it is anchored to.
const Margin = 20

type axis int

const (
	near axis = iota
	far
	middle
	literal
)

type anchor struct{ x, y axis }

var anchors = map[model.Position]anchor{
	model.PositionTopLeft:     {near, near},
	model.PositionTopRight:    {far, near},
	model.PositionBottomLeft:  {near, far},
	model.PositionBottomRight: {far, far},
	model.PositionCenter:      {middle, middle},
	model.PositionCustom:      {literal, literal},
}

func anchorFor(pos model.Position) anchor {
	a, ok := anchors[pos]
	if !ok {
		return anchors[model.DefaultPosition]
	}
	return a
}

// Resolve returns the top-left point at which an overlay of size ovW x ovH
// is placed on a canvas of size outerW x outerH. Custom coordinates are
// returned verbatim and may fall outside the canvas.
func Resolve(outerW, outerH, ovW, ovH int, pos model.Position, customX, customY int) image.Point {
	a := anchorFor(pos)
	return image.Point{
		X: resolveAxis(a.x, outerW, ovW, customX),
		Y: resolveAxis(a.y, outerH, ovH, customY),
	}
}

func resolveAxis(ax axis, outer, size, custom int) int {
	switch ax {
	case near:
		return Margin
	case far:
		return outer - size - Margin
	case middle:
		return (outer - size) / 2
	default:
		return custom
	}
}

// OverlayExpr returns the "x:y" argument for ffmpeg's overlay filter,
// where W/H are the main input and w/h the overlay dimensions.
func OverlayExpr(pos model.Position, customX, customY int) string {
	x, y := expr(pos, customX, customY, "W", "w", "H", "h")
	return x + ":" + y
}

// DrawtextExpr returns x and y expressions for ffmpeg's drawtext filter,
// where w/h are the frame and tw/th the rendered text dimensions.
func DrawtextExpr(pos model.Position, customX, customY int) (string, string) {
	return expr(pos, customX, customY, "w", "tw", "h", "th")
}

func expr(pos model.Position, customX, customY int, outerW, innerW, outerH, innerH string) (string, string) {
	a := anchorFor(pos)
	return axisExpr(a.x, outerW, innerW, customX), axisExpr(a.y, outerH, innerH, customY)
}

func axisExpr(ax axis, outer, inner string, custom int) string {
	m := strconv.Itoa(Margin)
	switch ax {
	case near:
		return m
	case far:
		return outer + "-" + inner + "-" + m
	case middle:
		return "(" + outer + "-" + inner + ")/2"
	default:
		return strconv.Itoa(custom)
	}
}
