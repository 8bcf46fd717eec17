package images

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"

	"golang.org/x/image/draw"
)

// DefaultMaxSide caps the longest side of an expanded canvas.
const DefaultMaxSide = 2048

var ErrInvalidExpansion = errors.New("expansion target must be at least the source size")

// Crop cuts rect (native pixels) out of src. The output is rasterised at
// dpr device pixels per image pixel so crops stay sharp on dense displays;
// dpr <= 1 produces an exact pixel copy.
func Crop(src image.Image, rect image.Rectangle, dpr float64) (*image.RGBA, error) {
	b := src.Bounds()
	rect = rect.Add(b.Min).Intersect(b)
	if rect.Empty() {
		return nil, fmt.Errorf("crop rectangle is outside the image")
	}
	if dpr <= 1 || math.IsNaN(dpr) {
		out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
		draw.Draw(out, out.Bounds(), src, rect.Min, draw.Src)
		return out, nil
	}
	w := int(math.Round(float64(rect.Dx()) * dpr))
	h := int(math.Round(float64(rect.Dy()) * dpr))
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(out, out.Bounds(), src, rect, draw.Src, nil)
	return out, nil
}

// PadForExpansion centres src on a transparent canvas of width x height. When
// either side exceeds maxSide the whole composition is scaled down, keeping
// its aspect ratio, so the longest side equals maxSide.
func PadForExpansion(src image.Image, width, height, maxSide int) (*image.RGBA, error) {
	sb := src.Bounds()
	if width < sb.Dx() || height < sb.Dy() {
		return nil, fmt.Errorf("%w: %dx%d into %dx%d", ErrInvalidExpansion, sb.Dx(), sb.Dy(), width, height)
	}
	if maxSide <= 0 {
		maxSide = DefaultMaxSide
	}

	scale := 1.0
	if longest := max(width, height); longest > maxSide {
		scale = float64(maxSide) / float64(longest)
	}
	cw := max(1, int(math.Round(float64(width)*scale)))
	ch := max(1, int(math.Round(float64(height)*scale)))
	iw := max(1, int(math.Round(float64(sb.Dx())*scale)))
	ih := max(1, int(math.Round(float64(sb.Dy())*scale)))

	canvas := image.NewRGBA(image.Rect(0, 0, cw, ch))
	x0 := (cw - iw) / 2
	y0 := (ch - ih) / 2
	dst := image.Rect(x0, y0, x0+iw, y0+ih)
	if scale == 1 {
		draw.Draw(canvas, dst, src, sb.Min, draw.Src)
	} else {
		slog.Debug("Downscaling expansion canvas", "requested_width", width, "requested_height", height, "width", cw, "height", ch)
		draw.CatmullRom.Scale(canvas, dst, src, sb, draw.Src, nil)
	}
	return canvas, nil
}

// ScaleMask resizes a black/white mask to width x height with nearest
// neighbour sampling so it stays two-toned.
func ScaleMask(mask image.Image, width, height int) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, width, height))
	if mask.Bounds().Dx() == width && mask.Bounds().Dy() == height {
		draw.Draw(out, out.Bounds(), mask, mask.Bounds().Min, draw.Src)
		return out
	}
	draw.NearestNeighbor.Scale(out, out.Bounds(), mask, mask.Bounds(), draw.Src, nil)
	return out
}

// RegionMask builds a black mask with rect painted white, in a width x height
// frame.
func RegionMask(width, height int, rect image.Rectangle) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.Draw(out, rect.Intersect(out.Bounds()), image.NewUniform(color.White), image.Point{}, draw.Src)
	return out
}

// Reconcile makes a collaborator result match the dimensions that were asked
// for. Results of the right size pass through untouched; anything else is
// resampled to width x height.
func Reconcile(img image.Image, width, height int) (image.Image, bool) {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img, false
	}
	slog.Warn("Edit result size differs from request, resampling",
		"got_width", b.Dx(), "got_height", b.Dy(), "want_width", width, "want_height", height)
	out := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(out, out.Bounds(), img, b, draw.Src, nil)
	return out, true
}
