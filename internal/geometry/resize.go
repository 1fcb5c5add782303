package geometry

import (
	"math"
	"strings"
)

type ResizeHandle string

const (
	HandleNW ResizeHandle = "nw"
	HandleN  ResizeHandle = "n"
	HandleNE ResizeHandle = "ne"
	HandleE  ResizeHandle = "e"
	HandleSE ResizeHandle = "se"
	HandleS  ResizeHandle = "s"
	HandleSW ResizeHandle = "sw"
	HandleW  ResizeHandle = "w"
)

// MinSize is the smallest width or height a resize can produce.
const MinSize = 20

// ComputeResize applies a pointer delta to original through the given
// handle. When a dimension would fall below MinSize it is clamped and the
// edge opposite the handle stays where it was.
func ComputeResize(handle ResizeHandle, dx, dy float64, original Rect) Rect {
	r := original

	switch handle {
	case HandleNW:
		r.X += dx
		r.Y += dy
		r.Width -= dx
		r.Height -= dy
	case HandleN:
		r.Y += dy
		r.Height -= dy
	case HandleNE:
		r.Y += dy
		r.Width += dx
		r.Height -= dy
	case HandleE:
		r.Width += dx
	case HandleSE:
		r.Width += dx
		r.Height += dy
	case HandleS:
		r.Height += dy
	case HandleSW:
		r.X += dx
		r.Width -= dx
		r.Height += dy
	case HandleW:
		r.X += dx
		r.Width -= dx
	}

	h := string(handle)
	if r.Width < MinSize {
		if strings.Contains(h, "w") {
			r.X = original.X + original.Width - MinSize
		}
		r.Width = MinSize
	}
	if r.Height < MinSize {
		if strings.Contains(h, "n") {
			r.Y = original.Y + original.Height - MinSize
		}
		r.Height = MinSize
	}

	return r
}

// ComputeRotation returns the angle in degrees from center to pointer,
// with straight up as 0.
func ComputeRotation(center, pointer Point) float64 {
	angle := math.Atan2(pointer.Y-center.Y, pointer.X-center.X)
	return angle*180/math.Pi + 90
}
