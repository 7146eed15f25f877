package raster

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"

	"golang.org/x/image/bmp"
)

// DecodePNG decodes an encoded raster.
func DecodePNG(data []byte) (image.Image, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	return img, nil
}

// EncodePNG encodes img losslessly.
func EncodePNG(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	return enc.Encode(w, img)
}

// EncodeBMP writes g as an uncompressed 8-bit grayscale BMP.
func EncodeBMP(w io.Writer, g *image.Gray) error {
	return bmp.Encode(w, g)
}

// WritePNG encodes img to path.
func WritePNG(path string, img image.Image) error {
	return writeFile(path, func(w io.Writer) error { return EncodePNG(w, img) })
}

// WriteBMP encodes g to path.
func WriteBMP(path string, g *image.Gray) error {
	return writeFile(path, func(w io.Writer) error { return EncodeBMP(w, g) })
}

func writeFile(path string, enc func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := enc(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadBMP decodes the BMP at path into gray.
func ReadBMP(path string) (*image.Gray, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeBMP(data)
}

// DecodeBMP decodes a BMP into gray. Uncompressed 1-bit images, which the
// quantizer emits, are read directly; every other depth is delegated to
// golang.org/x/image/bmp.
func DecodeBMP(data []byte) (*image.Gray, error) {
	if g, ok, err := decodeBilevelBMP(data); ok {
		return g, err
	}
	img, err := bmp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode bmp: %w", err)
	}
	return Luminance(img), nil
}

// decodeBilevelBMP reports ok=false when data is not an uncompressed 1-bit
// BMP with a BITMAPINFOHEADER or later header.
func decodeBilevelBMP(data []byte) (*image.Gray, bool, error) {
	const fileHeader = 14
	if len(data) < fileHeader+40 || data[0] != 'B' || data[1] != 'M' {
		return nil, false, nil
	}
	le := binary.LittleEndian
	pixOff := int(le.Uint32(data[10:]))
	hdrSize := int(le.Uint32(data[14:]))
	width := int(int32(le.Uint32(data[18:])))
	height := int(int32(le.Uint32(data[22:])))
	bpp := le.Uint16(data[28:])
	compression := le.Uint32(data[30:])
	if hdrSize < 40 || bpp != 1 || compression != 0 {
		return nil, false, nil
	}

	colors := int(le.Uint32(data[46:]))
	if colors == 0 {
		colors = 2
	}
	palOff := fileHeader + hdrSize
	if palOff+4*colors > len(data) || colors > 2 {
		return nil, true, fmt.Errorf("decode bmp: bad 1-bit palette")
	}
	var palette [2]uint8
	for i := 0; i < colors; i++ {
		p := data[palOff+4*i:] // BGRX
		palette[i] = color.GrayModel.Convert(color.RGBA{R: p[2], G: p[1], B: p[0], A: 255}).(color.Gray).Y
	}

	topDown := height < 0
	if topDown {
		height = -height
	}
	if width <= 0 || height <= 0 {
		return nil, true, fmt.Errorf("decode bmp: bad dimensions %dx%d", width, height)
	}
	stride := ((width + 31) / 32) * 4
	if pixOff+stride*height > len(data) {
		return nil, true, fmt.Errorf("decode bmp: truncated pixel data")
	}

	out := image.NewGray(image.Rect(0, 0, width, height))
	for row := 0; row < height; row++ {
		y := height - 1 - row
		if topDown {
			y = row
		}
		src := data[pixOff+row*stride:]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < width; x++ {
			bit := (src[x/8] >> (7 - uint(x%8))) & 1
			dst[x] = palette[bit]
		}
	}
	return out, true, nil
}

// EncodeBilevelBMP writes g as an uncompressed 1-bit BMP with a black/white
// palette. Pixels above 127 map to white.
func EncodeBilevelBMP(w io.Writer, g *image.Gray) error {
	const headers = 14 + 40 + 8
	width, height := g.Rect.Dx(), g.Rect.Dy()
	stride := ((width + 31) / 32) * 4
	size := headers + stride*height

	buf := make([]byte, size)
	le := binary.LittleEndian
	buf[0], buf[1] = 'B', 'M'
	le.PutUint32(buf[2:], uint32(size))
	le.PutUint32(buf[10:], headers)
	le.PutUint32(buf[14:], 40)
	le.PutUint32(buf[18:], uint32(width))
	le.PutUint32(buf[22:], uint32(height))
	le.PutUint16(buf[26:], 1)
	le.PutUint16(buf[28:], 1)
	le.PutUint32(buf[34:], uint32(stride*height))
	le.PutUint32(buf[38:], 2835) // 72 DPI
	le.PutUint32(buf[42:], 2835)
	le.PutUint32(buf[46:], 2)
	le.PutUint32(buf[50:], 2)
	// palette: index 0 black, index 1 white
	buf[58], buf[59], buf[60] = 255, 255, 255

	for y := 0; y < height; y++ {
		dst := buf[headers+(height-1-y)*stride:]
		off := g.PixOffset(g.Rect.Min.X, g.Rect.Min.Y+y)
		for x, v := range g.Pix[off : off+width] {
			if v > 127 {
				dst[x/8] |= 0x80 >> uint(x%8)
			}
		}
	}
	_, err := w.Write(buf)
	return err
}

// WriteBilevelBMP encodes g to path as a 1-bit BMP.
func WriteBilevelBMP(path string, g *image.Gray) error {
	return writeFile(path, func(w io.Writer) error { return EncodeBilevelBMP(w, g) })
}
