// Package viewport decides which board objects intersect the visible area
// of a camera, so callers only render and hit-test what is on screen.
package viewport

import (
	"math"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/geometry"
)

// DefaultMargin is the world-space padding added around the visible area so
// objects just off screen are already loaded when the user pans.
const DefaultMargin = 200

// Bounds is an axis-aligned world-space rectangle given by its extremes.
type Bounds struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

// ComputeBounds maps the screen corners of a w×h viewport into world space
// and grows the result by margin on every side.
func ComputeBounds(cam geometry.Camera, screenW, screenH, margin float64) Bounds {
	topLeft := geometry.ScreenToWorld(cam, geometry.Point{X: 0, Y: 0})
	bottomRight := geometry.ScreenToWorld(cam, geometry.Point{X: screenW, Y: screenH})

	return Bounds{
		MinX: topLeft.X - margin,
		MinY: topLeft.Y - margin,
		MaxX: bottomRight.X + margin,
		MaxY: bottomRight.Y + margin,
	}
}

// Extent returns the axis-aligned box an object occupies. Lines span their
// two endpoints; rotated objects get the box enclosing the rotated
// rectangle around its center.
func Extent(o *domain.Object) Bounds {
	if l, ok := o.Props.(*domain.Line); ok {
		return Bounds{
			MinX: math.Min(o.X, l.X2),
			MinY: math.Min(o.Y, l.Y2),
			MaxX: math.Max(o.X, l.X2),
			MaxY: math.Max(o.Y, l.Y2),
		}
	}

	if o.Rotation == 0 {
		return Bounds{MinX: o.X, MinY: o.Y, MaxX: o.X + o.Width, MaxY: o.Y + o.Height}
	}

	rad := o.Rotation * math.Pi / 180
	cos, sin := math.Abs(math.Cos(rad)), math.Abs(math.Sin(rad))
	halfW, halfH := o.Width/2, o.Height/2
	rotHalfW := halfW*cos + halfH*sin
	rotHalfH := halfW*sin + halfH*cos
	cx, cy := o.X+halfW, o.Y+halfH

	return Bounds{MinX: cx - rotHalfW, MinY: cy - rotHalfH, MaxX: cx + rotHalfW, MaxY: cy + rotHalfH}
}

// Overlaps reports whether b and o share any point, edges included.
func (b Bounds) Overlaps(o Bounds) bool {
	return o.MaxX >= b.MinX && o.MinX <= b.MaxX && o.MaxY >= b.MinY && o.MinY <= b.MaxY
}

// IsVisible reports whether any part of o overlaps bounds.
func IsVisible(o *domain.Object, bounds Bounds) bool {
	return bounds.Overlaps(Extent(o))
}

// Visible filters objs down to what should be drawn. Connectors are kept
// when either endpoint is visible, regardless of their own geometry.
// Non-connectors come first, in input order, followed by connectors.
func Visible(objs []*domain.Object, bounds Bounds) []*domain.Object {
	visibleIDs := make(map[string]struct{})
	out := make([]*domain.Object, 0, len(objs))
	var connectors []*domain.Object

	for _, o := range objs {
		if o.Type() == domain.TypeConnector {
			connectors = append(connectors, o)
			continue
		}
		if IsVisible(o, bounds) {
			visibleIDs[o.ID] = struct{}{}
			out = append(out, o)
		}
	}

	for _, c := range connectors {
		conn := c.Props.(*domain.Connector) //nolint:forcetypeassert // Type() checked above
		_, src := visibleIDs[conn.SourceID]
		_, tgt := visibleIDs[conn.TargetID]
		if src || tgt {
			out = append(out, c)
		}
	}

	return out
}
