package viewport

import (
	"image"
	"math"
	"testing"
)

func near(a, b Point) bool {
	return math.Abs(a.X-b.X) < 1e-9 && math.Abs(a.Y-b.Y) < 1e-9
}

func TestToImage(t *testing.T) {
	tests := []struct {
		name string
		tr   Transform
		in   Point
		want Point
	}{
		{"identity", Identity(), Point{12, 34}, Point{12, 34}},
		{"zoom 2 pan 10", Transform{Zoom: 2, Pan: Point{10, 10}}, Point{110, 110}, Point{50, 50}},
		{"zoom out", Transform{Zoom: 0.5, Pan: Point{-20, 5}}, Point{0, 5}, Point{40, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.tr.ToImage(tt.in)
			if !near(got, tt.want) {
				t.Errorf("ToImage(%v) = %v, want %v", tt.in, got, tt.want)
			}
			if back := tt.tr.ToViewport(got); !near(back, tt.in) {
				t.Errorf("ToViewport(ToImage(%v)) = %v", tt.in, back)
			}
		})
	}
}

func TestZoomAboutCursorKeepsAnchor(t *testing.T) {
	cursor := Point{100, 100}
	before := Identity()
	anchor := before.ToImage(cursor)

	after := before.ZoomTo(cursor, 2)
	if after.Zoom != 2 {
		t.Fatalf("Zoom = %v, want 2", after.Zoom)
	}
	if got := after.ToViewport(anchor); !near(got, cursor) {
		t.Errorf("anchor %v maps to %v after zoom, want %v", anchor, got, cursor)
	}
	if !near(anchor, Point{100, 100}) {
		t.Errorf("anchor = %v, want (100,100)", anchor)
	}
}

func TestZoomAtRepeatedlyKeepsAnchor(t *testing.T) {
	tr := Transform{Zoom: 1.3, Pan: Point{-40, 25}}
	cursor := Point{321, 87}
	anchor := tr.ToImage(cursor)
	for i := 0; i < 10; i++ {
		tr = tr.ZoomAt(cursor, 1.2)
		if got := tr.ToViewport(anchor); !near(got, cursor) {
			t.Fatalf("step %d: anchor drifted to %v", i, got)
		}
	}
}

func TestZoomIsClamped(t *testing.T) {
	tests := []struct {
		name string
		zoom float64
		want float64
	}{
		{"too far in", 50, MaxZoom},
		{"too far out", 0.01, MinZoom},
		{"negative", -2, MinZoom},
		{"in range", 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Identity().ZoomTo(Point{50, 50}, tt.zoom)
			if got.Zoom != tt.want {
				t.Errorf("Zoom = %v, want %v", got.Zoom, tt.want)
			}
		})
	}
}

func TestClampedZoomStillKeepsAnchor(t *testing.T) {
	cursor := Point{30, 70}
	tr := Identity()
	anchor := tr.ToImage(cursor)
	tr = tr.ZoomTo(cursor, 100)
	if got := tr.ToViewport(anchor); !near(got, cursor) {
		t.Errorf("anchor moved to %v", got)
	}
}

func TestWheel(t *testing.T) {
	cursor := Point{10, 10}
	in := Identity().Wheel(cursor, -100)
	if math.Abs(in.Zoom-ZoomStep) > 1e-9 {
		t.Errorf("wheel up zoom = %v, want %v", in.Zoom, ZoomStep)
	}
	out := Identity().Wheel(cursor, 100)
	if out.Zoom >= 1 {
		t.Errorf("wheel down zoom = %v, want < 1", out.Zoom)
	}
	if same := Identity().Wheel(cursor, 0); same != Identity() {
		t.Errorf("zero delta changed transform: %+v", same)
	}
}

func TestPanIsUnconstrained(t *testing.T) {
	tr := Identity().PanBy(Point{-5000, 9000})
	if tr.Pan != (Point{-5000, 9000}) {
		t.Errorf("Pan = %v", tr.Pan)
	}
}

func TestDrag(t *testing.T) {
	var d Drag
	tr := Identity()
	if got := d.Move(tr, Point{5, 5}); got != tr {
		t.Error("Move() without Begin should not pan")
	}
	d.Begin(Point{10, 10})
	tr = d.Move(tr, Point{15, 30})
	tr = d.Move(tr, Point{20, 30})
	if tr.Pan != (Point{10, 20}) {
		t.Errorf("Pan = %v, want (10,20)", tr.Pan)
	}
	d.End()
	if d.Active() {
		t.Error("drag should be idle after End()")
	}
}

func TestRectToNative(t *testing.T) {
	displayed := Size{Width: 400, Height: 300}
	native := Size{Width: 1600, Height: 1200}
	tests := []struct {
		name string
		r    Rect
		want image.Rectangle
	}{
		{"scaled", Rect{X: 10, Y: 20, Width: 100, Height: 50}, image.Rect(40, 80, 440, 280)},
		{"dragged up-left", Rect{X: 110, Y: 70, Width: -100, Height: -50}, image.Rect(40, 80, 440, 280)},
		{"clamped", Rect{X: 350, Y: 250, Width: 100, Height: 100}, image.Rect(1400, 1000, 1600, 1200)},
		{"outside", Rect{X: -100, Y: -100, Width: 50, Height: 50}, image.Rectangle{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.r.ToNative(displayed, native)
			if got != tt.want && !(got.Empty() && tt.want.Empty()) {
				t.Errorf("ToNative() = %v, want %v", got, tt.want)
			}
		})
	}

	if got := (Rect{Width: 5, Height: 5}).ToNative(Size{}, native); !got.Empty() {
		t.Errorf("zero displayed size should give empty rect, got %v", got)
	}
}

func TestRectFromPoints(t *testing.T) {
	r := RectFromPoints(Point{50, 40}, Point{10, 90})
	want := Rect{X: 10, Y: 40, Width: 40, Height: 50}
	if r != want {
		t.Errorf("RectFromPoints() = %+v, want %+v", r, want)
	}
	if (Rect{X: 1, Y: 1}).Empty() != true {
		t.Error("zero-size rect should be empty")
	}
}
