// Package geometry holds the stateless math behind board operations:
// bounding boxes, resize and rotation, connector routing, frame
// containment, snap guides, alignment and the camera transform.
package geometry

import (
	"math"

	"github.com/gosuda/boardsync/internal/domain"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the midpoint of r.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width && p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// RectOf returns the unrotated bounding rectangle of o.
func RectOf(o *domain.Object) Rect {
	return Rect{X: o.X, Y: o.Y, Width: o.Width, Height: o.Height}
}

// SelectionBox normalizes a drag from start to end into a rectangle.
func SelectionBox(start, end Point) Rect {
	return Rect{
		X:      math.Min(start.X, end.X),
		Y:      math.Min(start.Y, end.Y),
		Width:  math.Abs(end.X - start.X),
		Height: math.Abs(end.Y - start.Y),
	}
}

// CenterInRect reports whether the center of o lies inside bounds. This is
// the membership rule for marquee selection and frame containment.
func CenterInRect(o *domain.Object, bounds Rect) bool {
	return bounds.Contains(RectOf(o).Center())
}

// HitTest reports whether a world point falls inside rect.
func HitTest(p Point, rect Rect) bool {
	return rect.Contains(p)
}

// BoundingBox returns the smallest rectangle containing every object, or
// false when objs is empty.
func BoundingBox(objs []*domain.Object) (Rect, bool) {
	if len(objs) == 0 {
		return Rect{}, false
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, o := range objs {
		minX = math.Min(minX, o.X)
		minY = math.Min(minY, o.Y)
		maxX = math.Max(maxX, o.X+o.Width)
		maxY = math.Max(maxY, o.Y+o.Height)
	}

	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}, true
}
