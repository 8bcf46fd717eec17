// Package viewport maps pointer positions between the on-screen viewport,
// the zoomed and panned display, and image pixels.
package viewport

import (
	"image"
	"math"
)

// Point is a 2D point with floating-point coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns the sum of two points.
func (p Point) Add(o Point) Point {
	return Point{X: p.X + o.X, Y: p.Y + o.Y}
}

// Sub returns the difference of two points.
func (p Point) Sub(o Point) Point {
	return Point{X: p.X - o.X, Y: p.Y - o.Y}
}

// Scale returns the point scaled by a factor.
func (p Point) Scale(f float64) Point {
	return Point{X: p.X * f, Y: p.Y * f}
}

// Size is a width/height pair in pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Empty reports whether either dimension is not positive.
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Rect is a rectangle in displayed-image coordinates. Width and Height may be
// negative while a selection is being dragged up or left.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RectFromPoints spans the two corners of a drag.
func RectFromPoints(a, b Point) Rect {
	return Rect{X: a.X, Y: a.Y, Width: b.X - a.X, Height: b.Y - a.Y}.Normalize()
}

// Normalize flips negative extents so Width and Height are non-negative.
func (r Rect) Normalize() Rect {
	if r.Width < 0 {
		r.X += r.Width
		r.Width = -r.Width
	}
	if r.Height < 0 {
		r.Y += r.Height
		r.Height = -r.Height
	}
	return r
}

// Empty reports whether the rectangle covers no area.
func (r Rect) Empty() bool {
	n := r.Normalize()
	return n.Width <= 0 || n.Height <= 0
}

// ToNative converts a rectangle in displayed-image coordinates to native
// pixel coordinates using the native/displayed ratio per axis. The result is
// clamped to the native bounds.
func (r Rect) ToNative(displayed, native Size) image.Rectangle {
	if displayed.Empty() || native.Empty() {
		return image.Rectangle{}
	}
	n := r.Normalize()
	sx := native.Width / displayed.Width
	sy := native.Height / displayed.Height

	x0 := int(math.Round(n.X * sx))
	y0 := int(math.Round(n.Y * sy))
	x1 := int(math.Round((n.X + n.Width) * sx))
	y1 := int(math.Round((n.Y + n.Height) * sy))

	bounds := image.Rect(0, 0, int(native.Width), int(native.Height))
	return image.Rect(x0, y0, x1, y1).Intersect(bounds)
}
