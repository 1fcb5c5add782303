package geometry

import "github.com/gosuda/boardsync/internal/domain"

// ConnectorEndpoints computes where a connector between source and target
// should start and end: the center-to-center line clipped to each object's
// bounding rectangle.
func ConnectorEndpoints(source, target *domain.Object) (start, end Point) {
	srcRect, tgtRect := RectOf(source), RectOf(target)
	srcCenter, tgtCenter := srcRect.Center(), tgtRect.Center()

	start = intersectRayWithRect(srcCenter, tgtCenter, srcRect)
	end = intersectRayWithRect(tgtCenter, srcCenter, tgtRect)
	return start, end
}

// intersectRayWithRect casts a ray from inside toward toward and returns the
// nearest crossing with an edge of r. It returns inside when the points
// coincide or no edge is crossed.
func intersectRayWithRect(inside, toward Point, r Rect) Point {
	dx := toward.X - inside.X
	dy := toward.Y - inside.Y
	if dx == 0 && dy == 0 {
		return inside
	}

	best := -1.0
	consider := func(t float64, onEdge bool) {
		if t > 0 && onEdge && (best < 0 || t < best) {
			best = t
		}
	}

	if dx != 0 {
		tLeft := (r.X - inside.X) / dx
		yLeft := inside.Y + tLeft*dy
		consider(tLeft, yLeft >= r.Y && yLeft <= r.Y+r.Height)

		tRight := (r.X + r.Width - inside.X) / dx
		yRight := inside.Y + tRight*dy
		consider(tRight, yRight >= r.Y && yRight <= r.Y+r.Height)
	}

	if dy != 0 {
		tTop := (r.Y - inside.Y) / dy
		xTop := inside.X + tTop*dx
		consider(tTop, xTop >= r.X && xTop <= r.X+r.Width)

		tBottom := (r.Y + r.Height - inside.Y) / dy
		xBottom := inside.X + tBottom*dx
		consider(tBottom, xBottom >= r.X && xBottom <= r.X+r.Width)
	}

	if best < 0 {
		return inside
	}
	return Point{X: inside.X + best*dx, Y: inside.Y + best*dy}
}
