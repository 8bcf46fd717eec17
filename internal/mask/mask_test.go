package mask

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/lehigh-university-libraries/retoucher/internal/viewport"
)

func newBuffer(t *testing.T, w, h int) *Buffer {
	t.Helper()
	b, err := NewBuffer(w, h)
	if err != nil {
		t.Fatalf("NewBuffer() error = %v", err)
	}
	return b
}

func TestNewBufferRejectsBadSize(t *testing.T) {
	for _, dims := range [][2]int{{0, 10}, {10, 0}, {-1, -1}} {
		if _, err := NewBuffer(dims[0], dims[1]); err == nil {
			t.Errorf("NewBuffer(%d, %d) should fail", dims[0], dims[1])
		}
	}
}

func TestUntouchedBufferExportsBlank(t *testing.T) {
	b := newBuffer(t, 32, 24)
	if !b.IsBlank() {
		t.Error("new buffer should be blank")
	}
	art, err := b.Export()
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if art != nil {
		t.Error("blank buffer should export as no mask")
	}
}

func TestSingleDotExport(t *testing.T) {
	b := newBuffer(t, 64, 64)
	if err := b.Begin(viewport.Point{X: 32, Y: 32}, 10); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	b.End()

	art, err := b.Export()
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if art == nil {
		t.Fatal("dot stroke should export a mask")
	}
	if art.Width != 64 || art.Height != 64 || art.Image.Bounds().Dx() != 64 {
		t.Errorf("artifact size = %dx%d", art.Width, art.Height)
	}

	center := art.Image.RGBAAt(32, 32)
	if center.R != 255 || center.G != 255 || center.B != 255 || center.A != 255 {
		t.Errorf("stroke centre = %v, want opaque white", center)
	}
	for _, p := range [][2]int{{0, 0}, {63, 63}, {10, 50}, {50, 10}} {
		c := art.Image.RGBAAt(p[0], p[1])
		if c.R != 0 || c.G != 0 || c.B != 0 || c.A != 255 {
			t.Errorf("background at %v = %v, want opaque black", p, c)
		}
	}
	for i := 3; i < len(art.Image.Pix); i += 4 {
		if art.Image.Pix[i] != 255 {
			t.Fatal("exported mask must be fully opaque")
		}
	}

	decoded, err := png.Decode(bytes.NewReader(art.PNG))
	if err != nil {
		t.Fatalf("PNG does not decode: %v", err)
	}
	if decoded.Bounds() != art.Image.Bounds() {
		t.Errorf("PNG bounds = %v, want %v", decoded.Bounds(), art.Image.Bounds())
	}
}

func TestExportIsDeterministic(t *testing.T) {
	draw := func() []byte {
		b := newBuffer(t, 40, 40)
		_ = b.Begin(viewport.Point{X: 5, Y: 5}, 4)
		_ = b.Extend(viewport.Point{X: 30, Y: 20}, 4)
		b.End()
		art, err := b.Export()
		if err != nil || art == nil {
			t.Fatalf("Export() = %v, %v", art, err)
		}
		return art.PNG
	}
	if !bytes.Equal(draw(), draw()) {
		t.Error("identical strokes should export identical bytes")
	}
}

func TestStrokeStateMachine(t *testing.T) {
	b := newBuffer(t, 50, 50)

	if err := b.Extend(viewport.Point{X: 40, Y: 40}, 6); err != nil {
		t.Fatal(err)
	}
	if !b.IsBlank() || b.Drawing() {
		t.Fatal("Extend() while idle must not draw")
	}

	_ = b.Begin(viewport.Point{X: 5, Y: 25}, 6)
	if !b.Drawing() {
		t.Fatal("Begin() should enter drawing")
	}
	_ = b.Extend(viewport.Point{X: 45, Y: 25}, 6)
	b.End()
	if b.Drawing() {
		t.Fatal("End() should return to idle")
	}

	strokes := b.Strokes()
	if strokes.RGBAAt(25, 25).A == 0 {
		t.Error("segment midpoint should be painted")
	}
	if strokes.RGBAAt(25, 5).A != 0 {
		t.Error("pixels away from the segment should stay transparent")
	}

	_ = b.Extend(viewport.Point{X: 25, Y: 45}, 6)
	if b.Strokes().RGBAAt(25, 40).A != 0 {
		t.Error("Extend() after End() must not draw")
	}
}

func TestClear(t *testing.T) {
	b := newBuffer(t, 20, 20)
	_ = b.Begin(viewport.Point{X: 10, Y: 10}, 8)
	b.Clear()
	if !b.IsBlank() || b.Drawing() {
		t.Error("Clear() should empty the buffer and end the stroke")
	}
}

func TestExportIsBinary(t *testing.T) {
	b := newBuffer(t, 64, 64)
	if err := b.Begin(viewport.Point{X: 20, Y: 20}, 10); err != nil {
		t.Fatal(err)
	}
	if err := b.Extend(viewport.Point{X: 45, Y: 37}, 10); err != nil {
		t.Fatal(err)
	}
	b.End()

	for i, v := range b.Strokes().Pix {
		if v != 0 && v != 255 {
			t.Fatalf("stroke byte %d = %d, want 0 or 255", i, v)
		}
	}

	art, err := b.Export()
	if err != nil || art == nil {
		t.Fatalf("Export() = %v, %v", art, err)
	}
	white := 0
	for i := 0; i < len(art.Image.Pix); i += 4 {
		r, g, bl, a := art.Image.Pix[i], art.Image.Pix[i+1], art.Image.Pix[i+2], art.Image.Pix[i+3]
		if a != 255 || r != g || g != bl || (r != 0 && r != 255) {
			t.Fatalf("pixel %d = (%d,%d,%d,%d), want pure black or white", i/4, r, g, bl, a)
		}
		if r == 255 {
			white++
		}
	}
	if white == 0 {
		t.Error("stroke should leave white pixels")
	}
}
