package raster

import "image"

// Kernel is a rectangular structuring element. The anchor is the centre
// (Width/2, Height/2), so even sizes extend one pixel further up and left.
type Kernel struct {
	Width  int `toml:"width" json:"width"`
	Height int `toml:"height" json:"height"`
}

// Default dilation kernels.
var (
	DefaultStemKernel  = Kernel{Width: 3, Height: 1}
	DefaultStaffKernel = Kernel{Width: 1, Height: 4}
)

// EnhanceOptions configures the two dilation passes.
type EnhanceOptions struct {
	StemKernel      Kernel
	StemIterations  int
	StaffKernel     Kernel
	StaffIterations int
}

// DefaultEnhanceOptions returns one iteration of each default kernel.
func DefaultEnhanceOptions() EnhanceOptions {
	return EnhanceOptions{
		StemKernel:      DefaultStemKernel,
		StemIterations:  1,
		StaffKernel:     DefaultStaffKernel,
		StaffIterations: 1,
	}
}

// Enhance inverts g so ink is bright, then dilates with the stem kernel and
// afterwards with the staff kernel. Thin strokes survive the later downscale
// this way.
func Enhance(g *image.Gray, opts EnhanceOptions) *image.Gray {
	out := Invert(g)
	for i := 0; i < opts.StemIterations; i++ {
		out = Dilate(out, opts.StemKernel)
	}
	for i := 0; i < opts.StaffIterations; i++ {
		out = Dilate(out, opts.StaffKernel)
	}
	return out
}

// Dilate replaces each pixel by the maximum over the kernel window. Pixels
// outside the image do not contribute.
func Dilate(g *image.Gray, k Kernel) *image.Gray {
	src := cloneGray(g)
	if k.Width <= 1 && k.Height <= 1 {
		return src
	}
	w, h := src.Rect.Dx(), src.Rect.Dy()

	// A rectangle max filter is separable: rows first, then columns.
	tmp := image.NewGray(src.Rect)
	ax := k.Width / 2
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w]
		dst := tmp.Pix[y*tmp.Stride : y*tmp.Stride+w]
		for x := 0; x < w; x++ {
			dst[x] = windowMax(row, x-ax, x-ax+k.Width)
		}
	}

	out := image.NewGray(src.Rect)
	ay := k.Height / 2
	for x := 0; x < w; x++ {
		col := tmp.Pix[x:]
		for y := 0; y < h; y++ {
			lo, hi := y-ay, y-ay+k.Height
			lo, hi = max(lo, 0), min(hi, h)
			var m uint8
			for i := lo; i < hi; i++ {
				if v := col[i*tmp.Stride]; v > m {
					m = v
				}
			}
			out.Pix[y*out.Stride+x] = m
		}
	}
	return out
}

// windowMax returns the maximum of s[lo:hi] clamped to s.
func windowMax(s []uint8, lo, hi int) uint8 {
	lo, hi = max(lo, 0), min(hi, len(s))
	var m uint8
	for i := lo; i < hi; i++ {
		if s[i] > m {
			m = s[i]
		}
	}
	return m
}
