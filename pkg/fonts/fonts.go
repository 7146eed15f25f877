// Package fonts provides the embedded typeface used for frame labels.
//
// The face is Go Mono Bold from golang.org/x/image/font/gofont, compiled into
// the binary so label rendering never depends on system fonts.
package fonts

import (
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomonobold"
)

// FontFamily names the embedded label typeface.
const FontFamily = "Go Mono Bold"

// Parsed font (computed once on first access).
var (
	labelFont     *truetype.Font
	labelFontErr  error
	labelFontOnce sync.Once
)

// LabelTTF returns the raw TrueType data.
func LabelTTF() []byte {
	return gomonobold.TTF
}

// Label returns the parsed label font.
func Label() (*truetype.Font, error) {
	labelFontOnce.Do(func() {
		labelFont, labelFontErr = truetype.Parse(gomonobold.TTF)
	})
	return labelFont, labelFontErr
}

// LabelFace returns an unhinted face of the label font at size points,
// rasterized at 72 DPI so one point equals one pixel.
func LabelFace(size float64) (font.Face, error) {
	f, err := Label()
	if err != nil {
		return nil, err
	}
	return truetype.NewFace(f, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingNone}), nil
}
