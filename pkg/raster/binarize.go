package raster

import (
	"image"
	"sort"

	"github.com/disintegration/imaging"
)

// Threshold defaults.
const (
	DefaultThreshold       = 127
	DefaultResizeThreshold = 5
)

// Threshold maps values strictly above t to 255 and the rest to 0.
func Threshold(g *image.Gray, t int) *image.Gray {
	out := cloneGray(g)
	for i, v := range out.Pix {
		if int(v) > t {
			out.Pix[i] = 255
		} else {
			out.Pix[i] = 0
		}
	}
	return out
}

// Resize scales g to exactly w×h with a box filter, which averages the
// source area under each destination pixel when downscaling.
func Resize(g *image.Gray, w, h int) *image.Gray {
	if g.Rect.Dx() == w && g.Rect.Dy() == h {
		return cloneGray(g)
	}
	return Luminance(imaging.Resize(g, w, h, imaging.Box))
}

// Levels returns the distinct pixel values of g in ascending order.
func Levels(g *image.Gray) []uint8 {
	var seen [256]bool
	w, h := g.Rect.Dx(), g.Rect.Dy()
	for y := 0; y < h; y++ {
		off := g.PixOffset(g.Rect.Min.X, g.Rect.Min.Y+y)
		for _, v := range g.Pix[off : off+w] {
			seen[v] = true
		}
	}
	var out []uint8
	for v, ok := range seen {
		if ok {
			out = append(out, uint8(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Polarity selects how ink is encoded in the final frame.
type Polarity string

const (
	// PolarityLit draws bright ink on a dark background.
	PolarityLit Polarity = "lit"
	// PolarityPaper draws dark ink on a bright background.
	PolarityPaper Polarity = "paper"
)

// Valid reports whether p is a known polarity.
func (p Polarity) Valid() bool {
	return p == PolarityLit || p == PolarityPaper
}

// Background returns the background luminance for p.
func (p Polarity) Background() uint8 {
	if p == PolarityPaper {
		return 255
	}
	return 0
}

// ApplyPolarity converts an inverted-domain frame to polarity p.
func ApplyPolarity(g *image.Gray, p Polarity) *image.Gray {
	if p == PolarityPaper {
		return Invert(g)
	}
	return cloneGray(g)
}

// Blank returns a w×h frame filled with the background of p.
func Blank(w, h int, p Polarity) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, w, h))
	if bg := p.Background(); bg != 0 {
		for i := range out.Pix {
			out.Pix[i] = bg
		}
	}
	return out
}
