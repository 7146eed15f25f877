package raster

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"

	"github.com/matzehuels/scoreframes/pkg/fonts"
)

// Label defaults.
const (
	DefaultLabelFormat   = "Meas. %d"
	DefaultLabelSize     = 24.0
	DefaultLabelBaseline = 30.0
)

// LabelOptions places and styles the frame label.
type LabelOptions struct {
	Size     float64 // font size in pixels
	Baseline float64 // baseline y in pixels from the top
	Ink      uint8   // label luminance
}

// DefaultLabelOptions returns bright ink for the inverted domain.
func DefaultLabelOptions() LabelOptions {
	return LabelOptions{Size: DefaultLabelSize, Baseline: DefaultLabelBaseline, Ink: 255}
}

// Annotate draws label with its origin at the horizontal centre of g on the
// configured baseline. Text that runs past the right edge is clipped.
func Annotate(g *image.Gray, label string, opts LabelOptions) (*image.Gray, error) {
	if label == "" {
		return cloneGray(g), nil
	}
	face, err := fonts.LabelFace(opts.Size)
	if err != nil {
		return nil, err
	}
	defer face.Close()

	dc := gg.NewContextForImage(g)
	dc.SetFontFace(face)
	dc.SetColor(color.Gray{Y: opts.Ink})
	dc.DrawString(label, float64(g.Rect.Dx()/2), opts.Baseline)
	return Luminance(dc.Image()), nil
}
