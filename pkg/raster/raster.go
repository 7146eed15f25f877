package raster

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
)

// Span is an inclusive run of row or column indices.
type Span struct {
	First, Last int
}

// Len returns the number of indices in the span.
func (s Span) Len() int { return s.Last - s.First + 1 }

// Bounds holds the content-bearing extents of an image. Cols spans the full
// width when horizontal detection is disabled.
type Bounds struct {
	Rows Span
	Cols Span
}

// Flatten composites img over opaque white. Fully transparent pixels become
// white, opaque pixels are unchanged, and partial alpha blends linearly.
// Images that report themselves opaque are returned as is.
func Flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

// Luminance converts img to 8-bit gray with Rec. 601 weights.
func Luminance(img image.Image) *image.Gray {
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok && b.Min == (image.Point{}) {
		return cloneGray(g)
	}
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// DetectContent finds the first and last rows (and, when horizontal is set,
// columns) whose minimum luminance is strictly below threshold. It reports
// false when no row qualifies.
func DetectContent(g *image.Gray, threshold int, horizontal bool) (Bounds, bool) {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	if w == 0 || h == 0 {
		return Bounds{}, false
	}

	rowMin := make([]uint8, h)
	colMin := make([]uint8, w)
	for i := range rowMin {
		rowMin[i] = 255
	}
	for i := range colMin {
		colMin[i] = 255
	}
	for y := 0; y < h; y++ {
		off := g.PixOffset(g.Rect.Min.X, g.Rect.Min.Y+y)
		row := g.Pix[off : off+w]
		for x, v := range row {
			if v < rowMin[y] {
				rowMin[y] = v
			}
			if v < colMin[x] {
				colMin[x] = v
			}
		}
	}

	rows, ok := extent(rowMin, threshold)
	if !ok {
		return Bounds{}, false
	}
	cols := Span{First: 0, Last: w - 1}
	if horizontal {
		if c, ok := extent(colMin, threshold); ok {
			cols = c
		}
	}
	return Bounds{Rows: rows, Cols: cols}, true
}

func extent(mins []uint8, threshold int) (Span, bool) {
	first, last := -1, -1
	for i, v := range mins {
		if int(v) < threshold {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	return Span{First: first, Last: last}, first >= 0
}

// Crop keeps [max(0, first-padding), min(extent, last+padding+1)) on both
// axes. The result is never larger than g and never empty for bounds
// returned by DetectContent.
func Crop(g *image.Gray, b Bounds, padding int) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	y0, y1 := clampSpan(b.Rows, padding, h)
	x0, x1 := clampSpan(b.Cols, padding, w)
	if x0 >= x1 || y0 >= y1 {
		return cloneGray(g)
	}

	out := image.NewGray(image.Rect(0, 0, x1-x0, y1-y0))
	for y := y0; y < y1; y++ {
		off := g.PixOffset(g.Rect.Min.X, g.Rect.Min.Y+y)
		copy(out.Pix[(y-y0)*out.Stride:], g.Pix[off+x0:off+x1])
	}
	return out
}

func clampSpan(s Span, padding, limit int) (int, int) {
	lo := max(0, s.First-padding)
	hi := min(limit, s.Last+padding+1)
	return lo, hi
}

// Invert returns the photographic negative of g.
func Invert(g *image.Gray) *image.Gray {
	out := cloneGray(g)
	for i, v := range out.Pix {
		out.Pix[i] = 255 - v
	}
	return out
}

// cloneGray copies g into a fresh image with origin (0, 0).
func cloneGray(g *image.Gray) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		off := g.PixOffset(g.Rect.Min.X, g.Rect.Min.Y+y)
		copy(out.Pix[y*out.Stride:y*out.Stride+w], g.Pix[off:off+w])
	}
	return out
}
