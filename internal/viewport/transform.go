package viewport

import "math"

const (
	MinZoom = 0.1
	MaxZoom = 5.0

	// ZoomStep is the zoom factor applied per wheel notch.
	ZoomStep = 1.1

	// wheelNotch is the deltaY one mouse-wheel notch reports.
	wheelNotch = 100.0
)

// Transform is the zoom and pan that place the displayed image inside the
// viewport: viewport = image*Zoom + Pan.
type Transform struct {
	Zoom float64 `json:"zoom"`
	Pan  Point   `json:"pan"`
}

// Identity is the unzoomed, unpanned transform.
func Identity() Transform {
	return Transform{Zoom: 1}
}

func clampZoom(z float64) float64 {
	if math.IsNaN(z) || z <= 0 {
		return MinZoom
	}
	return math.Max(MinZoom, math.Min(MaxZoom, z))
}

// Valid reports whether Zoom is usable.
func (t Transform) Valid() bool {
	return t.Zoom > 0 && !math.IsNaN(t.Zoom) && !math.IsInf(t.Zoom, 0)
}

// ToImage maps a viewport point to image space.
func (t Transform) ToImage(v Point) Point {
	return Point{
		X: (v.X - t.Pan.X) / t.Zoom,
		Y: (v.Y - t.Pan.Y) / t.Zoom,
	}
}

// ToViewport maps an image-space point to the viewport.
func (t Transform) ToViewport(p Point) Point {
	return Point{
		X: p.X*t.Zoom + t.Pan.X,
		Y: p.Y*t.Zoom + t.Pan.Y,
	}
}

// ZoomTo sets the zoom (clamped) while keeping the image point under cursor
// fixed on screen.
func (t Transform) ZoomTo(cursor Point, zoom float64) Transform {
	anchor := t.ToImage(cursor)
	z := clampZoom(zoom)
	return Transform{
		Zoom: z,
		Pan:  cursor.Sub(anchor.Scale(z)),
	}
}

// ZoomAt multiplies the zoom by factor about cursor.
func (t Transform) ZoomAt(cursor Point, factor float64) Transform {
	return t.ZoomTo(cursor, t.Zoom*factor)
}

// Wheel applies a mouse-wheel delta about cursor. Negative deltaY (wheel up)
// zooms in, one ZoomStep per notch.
func (t Transform) Wheel(cursor Point, deltaY float64) Transform {
	if deltaY == 0 {
		return t
	}
	return t.ZoomAt(cursor, math.Pow(ZoomStep, -deltaY/wheelNotch))
}

// PanBy shifts the pan by delta viewport pixels. Pan is not bounded.
func (t Transform) PanBy(delta Point) Transform {
	t.Pan = t.Pan.Add(delta)
	return t
}
