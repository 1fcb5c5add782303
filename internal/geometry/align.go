package geometry

import (
	"math"
	"slices"

	"github.com/gosuda/boardsync/internal/domain"
)

type AlignKind string

const (
	AlignLeft            AlignKind = "left"
	AlignRight           AlignKind = "right"
	AlignCenter          AlignKind = "center"
	AlignTop             AlignKind = "top"
	AlignBottom          AlignKind = "bottom"
	AlignMiddle          AlignKind = "middle"
	DistributeHorizontal AlignKind = "distribute-horizontal"
	DistributeVertical   AlignKind = "distribute-vertical"
)

// PositionUpdate is the new top-left corner for one object.
type PositionUpdate struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// Align computes new positions for a selection. Alignments need at least
// two objects and distributions at least three; fewer yields nil. Unknown
// kinds yield nil.
func Align(kind AlignKind, objs []*domain.Object) []PositionUpdate {
	switch kind {
	case DistributeHorizontal:
		return distribute(objs, true)
	case DistributeVertical:
		return distribute(objs, false)
	}

	if len(objs) < 2 {
		return nil
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxRight, maxBottom := math.Inf(-1), math.Inf(-1)
	for _, o := range objs {
		minX = math.Min(minX, o.X)
		minY = math.Min(minY, o.Y)
		maxRight = math.Max(maxRight, o.X+o.Width)
		maxBottom = math.Max(maxBottom, o.Y+o.Height)
	}

	var place func(o *domain.Object) (float64, float64)
	switch kind {
	case AlignLeft:
		place = func(o *domain.Object) (float64, float64) { return minX, o.Y }
	case AlignRight:
		place = func(o *domain.Object) (float64, float64) { return maxRight - o.Width, o.Y }
	case AlignCenter:
		cx := (minX + maxRight) / 2
		place = func(o *domain.Object) (float64, float64) { return cx - o.Width/2, o.Y }
	case AlignTop:
		place = func(o *domain.Object) (float64, float64) { return o.X, minY }
	case AlignBottom:
		place = func(o *domain.Object) (float64, float64) { return o.X, maxBottom - o.Height }
	case AlignMiddle:
		cy := (minY + maxBottom) / 2
		place = func(o *domain.Object) (float64, float64) { return o.X, cy - o.Height/2 }
	default:
		return nil
	}

	out := make([]PositionUpdate, len(objs))
	for i, o := range objs {
		x, y := place(o)
		out[i] = PositionUpdate{ID: o.ID, X: x, Y: y}
	}
	return out
}

// distribute spaces objects evenly between the outermost two along one
// axis, keeping the extremes in place. Output is in positional order.
func distribute(objs []*domain.Object, horizontal bool) []PositionUpdate {
	if len(objs) < 3 {
		return nil
	}

	pos := func(o *domain.Object) float64 {
		if horizontal {
			return o.X
		}
		return o.Y
	}
	size := func(o *domain.Object) float64 {
		if horizontal {
			return o.Width
		}
		return o.Height
	}

	sorted := slices.Clone(objs)
	slices.SortStableFunc(sorted, func(a, b *domain.Object) int {
		switch {
		case pos(a) < pos(b):
			return -1
		case pos(a) > pos(b):
			return 1
		default:
			return 0
		}
	})

	total := 0.0
	for _, o := range sorted {
		total += size(o)
	}
	first, last := sorted[0], sorted[len(sorted)-1]
	span := pos(last) + size(last) - pos(first)
	gap := (span - total) / float64(len(sorted)-1)

	out := make([]PositionUpdate, len(sorted))
	cursor := pos(first)
	for i, o := range sorted {
		if horizontal {
			out[i] = PositionUpdate{ID: o.ID, X: cursor, Y: o.Y}
		} else {
			out[i] = PositionUpdate{ID: o.ID, X: o.X, Y: cursor}
		}
		cursor += size(o) + gap
	}
	return out
}
