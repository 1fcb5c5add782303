package geometry

import "github.com/gosuda/boardsync/internal/domain"

const (
	// DefaultFramePadding surrounds the children when a frame is auto-sized.
	DefaultFramePadding = 40
	frameTitleSpace     = 30
)

// FindObjectsInBounds returns the objects whose center lies inside bounds.
// Frames and connectors are never contained, so frames do not nest.
func FindObjectsInBounds(objs []*domain.Object, bounds Rect) []*domain.Object {
	var out []*domain.Object
	for _, o := range objs {
		switch o.Type() {
		case domain.TypeFrame, domain.TypeConnector:
			continue
		}
		if CenterInRect(o, bounds) {
			out = append(out, o)
		}
	}
	return out
}

// FrameAutoSize returns the smallest frame rectangle enclosing children
// with padding on every side and room for the title above.
func FrameAutoSize(children []*domain.Object, padding float64) (Rect, bool) {
	box, ok := BoundingBox(children)
	if !ok {
		return Rect{}, false
	}

	return Rect{
		X:      box.X - padding,
		Y:      box.Y - padding - frameTitleSpace,
		Width:  box.Width + padding*2,
		Height: box.Height + padding*2 + frameTitleSpace,
	}, true
}
