package geometry

import "math"

const (
	ZoomMin = 0.1
	ZoomMax = 5.0

	fitScaleMax = 2.0
	// DefaultFitPadding is the screen-space margin kept around content by FitCamera.
	DefaultFitPadding = 80
)

// Camera maps world to screen: screen = world*Scale + (X, Y).
type Camera struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Scale float64 `json:"scale"`
}

// InitialCamera is the identity transform.
func InitialCamera() Camera {
	return Camera{Scale: 1}
}

func ClampScale(scale float64) float64 {
	return math.Min(ZoomMax, math.Max(ZoomMin, scale))
}

func ScreenToWorld(c Camera, screen Point) Point {
	return Point{X: (screen.X - c.X) / c.Scale, Y: (screen.Y - c.Y) / c.Scale}
}

func WorldToScreen(c Camera, world Point) Point {
	return Point{X: world.X*c.Scale + c.X, Y: world.Y*c.Scale + c.Y}
}

// ZoomAt scales by factor while keeping the world point under screen fixed.
func ZoomAt(c Camera, screen Point, factor float64) Camera {
	world := ScreenToWorld(c, screen)
	scale := ClampScale(c.Scale * factor)
	return Camera{
		X:     screen.X - world.X*scale,
		Y:     screen.Y - world.Y*scale,
		Scale: scale,
	}
}

func PanBy(c Camera, delta Point) Camera {
	return Camera{X: c.X + delta.X, Y: c.Y + delta.Y, Scale: c.Scale}
}

// FitCamera centers the given rectangles in a viewport of w×h, leaving
// padding on each side. The scale stays within [ZoomMin, 2].
func FitCamera(rects []Rect, w, h, padding float64) Camera {
	if len(rects) == 0 {
		return InitialCamera()
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, r := range rects {
		minX = math.Min(minX, r.X)
		minY = math.Min(minY, r.Y)
		maxX = math.Max(maxX, r.X+r.Width)
		maxY = math.Max(maxY, r.Y+r.Height)
	}

	bw, bh := maxX-minX, maxY-minY
	scale := math.Min(w/(bw+padding*2), h/(bh+padding*2))
	scale = math.Min(math.Max(scale, ZoomMin), fitScaleMax)

	cx, cy := minX+bw/2, minY+bh/2
	return Camera{
		X:     w/2 - cx*scale,
		Y:     h/2 - cy*scale,
		Scale: scale,
	}
}
