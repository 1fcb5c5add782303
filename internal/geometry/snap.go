package geometry

import (
	"math"

	"github.com/gosuda/boardsync/internal/domain"
)

// SnapThreshold is the default alignment distance in world pixels.
const SnapThreshold = 8

// guideOverhang extends guide lines past the objects they connect.
const guideOverhang = 20

type GuideOrientation string

const (
	GuideVertical   GuideOrientation = "vertical"
	GuideHorizontal GuideOrientation = "horizontal"
)

// SnapGuide is a line drawn while dragging. Position is the x of a
// vertical guide or the y of a horizontal one; From/To span the other axis.
type SnapGuide struct {
	Orientation GuideOrientation `json:"type"`
	Position    float64          `json:"position"`
	From        float64          `json:"from"`
	To          float64          `json:"to"`
}

// SnapResult holds at most one guide per axis and the snapped position of
// the dragged box on each axis that matched.
type SnapResult struct {
	Guides   []SnapGuide `json:"guides"`
	SnappedX *float64    `json:"snappedX"`
	SnappedY *float64    `json:"snappedY"`
}

type edgePair struct {
	drag, other float64
}

// ComputeSnapGuides compares the dragged box's edges and center against
// every other object (connectors excluded) and keeps the closest match per
// axis within threshold.
func ComputeSnapGuides(dragging Rect, others []*domain.Object, threshold float64) SnapResult {
	var res SnapResult
	var vertical, horizontal *SnapGuide
	bestDx, bestDy := threshold+1, threshold+1

	dragLeft, dragRight := dragging.X, dragging.X+dragging.Width
	dragTop, dragBottom := dragging.Y, dragging.Y+dragging.Height
	dragCenter := dragging.Center()

	for _, o := range others {
		if o.Type() == domain.TypeConnector {
			continue
		}
		r := RectOf(o)
		objLeft, objRight := r.X, r.X+r.Width
		objTop, objBottom := r.Y, r.Y+r.Height
		objCenter := r.Center()

		for _, p := range []edgePair{
			{dragLeft, objLeft}, {dragLeft, objRight},
			{dragRight, objLeft}, {dragRight, objRight},
			{dragCenter.X, objCenter.X},
		} {
			d := math.Abs(p.drag - p.other)
			if d < threshold && d < bestDx {
				bestDx = d
				x := dragging.X + (p.other - p.drag)
				res.SnappedX = &x
				vertical = &SnapGuide{
					Orientation: GuideVertical,
					Position:    p.other,
					From:        math.Min(dragTop, objTop) - guideOverhang,
					To:          math.Max(dragBottom, objBottom) + guideOverhang,
				}
			}
		}

		for _, p := range []edgePair{
			{dragTop, objTop}, {dragTop, objBottom},
			{dragBottom, objTop}, {dragBottom, objBottom},
			{dragCenter.Y, objCenter.Y},
		} {
			d := math.Abs(p.drag - p.other)
			if d < threshold && d < bestDy {
				bestDy = d
				y := dragging.Y + (p.other - p.drag)
				res.SnappedY = &y
				horizontal = &SnapGuide{
					Orientation: GuideHorizontal,
					Position:    p.other,
					From:        math.Min(dragLeft, objLeft) - guideOverhang,
					To:          math.Max(dragRight, objRight) + guideOverhang,
				}
			}
		}
	}

	if vertical != nil {
		res.Guides = append(res.Guides, *vertical)
	}
	if horizontal != nil {
		res.Guides = append(res.Guides, *horizontal)
	}
	return res
}
