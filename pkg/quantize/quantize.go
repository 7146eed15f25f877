// Package quantize encodes binarized frames as true 1-bit bitmaps.
//
// The default [ImageMagick] quantizer shells out to
//
//	magick <in> -monochrome -type bilevel <out>
//
// falling back to the ImageMagick 6 "convert" binary. [Native] writes the
// same 1-bit BMP in-process and needs no external tools.
//
// Every quantizer output is checked with [Verify]: it must decode, match the
// expected dimensions and contain at most two pixel values.
package quantize

import (
	"context"
	"os"
	"time"

	"github.com/matzehuels/scoreframes/pkg/errors"
	"github.com/matzehuels/scoreframes/pkg/raster"
)

// DefaultTimeout bounds a single quantizer invocation.
const DefaultTimeout = 30 * time.Second

// Quantizer converts the grayscale BMP at in into a bilevel BMP at out.
type Quantizer interface {
	Quantize(ctx context.Context, in, out string) error
}

// Native quantizes in-process by thresholding at the midpoint and writing a
// 1-bit BMP.
type Native struct{}

// Quantize implements Quantizer.
func (Native) Quantize(ctx context.Context, in, out string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g, err := raster.ReadBMP(in)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQuantizationFailed, err, "read %s", in)
	}
	if err := raster.WriteBilevelBMP(out, raster.Threshold(g, 127)); err != nil {
		return errors.Wrap(errors.ErrCodeQuantizationFailed, err, "write %s", out)
	}
	return nil
}

// Verify checks that path holds a width×height image with at most two
// distinct pixel values.
func Verify(path string, width, height int) error {
	if _, err := os.Stat(path); err != nil {
		return errors.Wrap(errors.ErrCodeQuantizationFailed, err, "quantizer produced no output")
	}
	g, err := raster.ReadBMP(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQuantizationFailed, err, "read quantized frame %s", path)
	}
	if w, h := g.Rect.Dx(), g.Rect.Dy(); w != width || h != height {
		return errors.New(errors.ErrCodeQuantizationFailed, "quantized frame is %dx%d, want %dx%d", w, h, width, height)
	}
	if lv := raster.Levels(g); len(lv) > 2 {
		return errors.New(errors.ErrCodeQuantizationFailed, "quantized frame has %d pixel values, want at most 2", len(lv))
	}
	return nil
}

// New returns the quantizer named by binary: "native" selects [Native],
// anything else is an ImageMagick executable ("" probes magick, convert).
func New(binary string, timeout time.Duration) Quantizer {
	if binary == "native" {
		return Native{}
	}
	return &ImageMagick{Binary: binary, Timeout: timeout}
}

var (
	_ Quantizer = Native{}
	_ Quantizer = (*ImageMagick)(nil)
)
