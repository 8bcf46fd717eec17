// Package mask rasterises free-hand brush strokes into a binary mask sized to
// the displayed image and exports it as a flattened black/white artifact.
package mask

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/gogpu/gg"
	"github.com/lehigh-university-libraries/retoucher/internal/viewport"
	"golang.org/x/image/draw"
)

// Buffer is the stroke surface. Strokes are opaque white on a transparent
// background. It is single-owner and not safe for concurrent use.
type Buffer struct {
	dc     *gg.Context
	width  int
	height int
	stroke strokeState
}

// strokeState is Idle (drawing == false) or Drawing from last.
type strokeState struct {
	drawing bool
	last    viewport.Point
}

// Artifact is the exported mask: opaque black with white strokes, the same
// size as the buffer.
type Artifact struct {
	Width  int
	Height int
	Image  *image.RGBA
	PNG    []byte
}

// NewBuffer allocates an empty buffer of the displayed image size.
func NewBuffer(width, height int) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid mask dimensions: width=%d, height=%d", width, height)
	}
	dc := gg.NewContext(width, height)
	dc.SetColor(color.White)
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)
	return &Buffer{dc: dc, width: width, height: height}, nil
}

func (b *Buffer) Width() int  { return b.width }
func (b *Buffer) Height() int { return b.height }

// Drawing reports whether a stroke is in progress.
func (b *Buffer) Drawing() bool {
	return b.stroke.drawing
}

// Begin starts a stroke at p (image space) and marks a dot of the given
// diameter so a single tap leaves a mark.
func (b *Buffer) Begin(p viewport.Point, width float64) error {
	b.stroke = strokeState{drawing: true, last: p}
	if width <= 0 {
		return nil
	}
	b.dc.DrawCircle(p.X, p.Y, width/2)
	if err := b.dc.Fill(); err != nil {
		return fmt.Errorf("failed to draw mask dot: %w", err)
	}
	return nil
}

// Extend draws a segment from the last point to p and records p. It does
// nothing unless a stroke is in progress.
func (b *Buffer) Extend(p viewport.Point, width float64) error {
	if !b.stroke.drawing {
		return nil
	}
	from := b.stroke.last
	b.stroke.last = p
	if width <= 0 {
		return nil
	}
	b.dc.SetLineWidth(width)
	b.dc.DrawLine(from.X, from.Y, p.X, p.Y)
	if err := b.dc.Stroke(); err != nil {
		return fmt.Errorf("failed to draw mask segment: %w", err)
	}
	return nil
}

// End finishes the current stroke.
func (b *Buffer) End() {
	b.stroke = strokeState{}
}

// Clear erases every stroke and abandons any stroke in progress.
func (b *Buffer) Clear() {
	b.dc.Clear()
	b.stroke = strokeState{}
}

// IsBlank reports whether no pixel has been touched.
func (b *Buffer) IsBlank() bool {
	return blank(b.Strokes())
}

// Strokes returns a copy of the stroke surface with antialiased edges
// thresholded at half alpha, so every pixel is either transparent or opaque
// white.
func (b *Buffer) Strokes() *image.RGBA {
	img := b.dc.Image()
	rgba, ok := img.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(img.Bounds())
		draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	}
	binarize(rgba)
	return rgba
}

func binarize(img *image.RGBA) {
	for i := 0; i+3 < len(img.Pix); i += 4 {
		var v uint8
		if img.Pix[i+3] >= 128 {
			v = 255
		}
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, v, v, v
	}
}

// Export flattens the strokes onto an opaque black backing. A blank buffer
// exports as (nil, nil), meaning "no mask".
func (b *Buffer) Export() (*Artifact, error) {
	strokes := b.Strokes()
	if blank(strokes) {
		return nil, nil
	}
	bounds := strokes.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.Draw(out, bounds, strokes, bounds.Min, draw.Over)

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("failed to encode mask: %w", err)
	}
	return &Artifact{
		Width:  b.width,
		Height: b.height,
		Image:  out,
		PNG:    buf.Bytes(),
	}, nil
}

func blank(img *image.RGBA) bool {
	for _, v := range img.Pix {
		if v != 0 {
			return false
		}
	}
	return true
}
