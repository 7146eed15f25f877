package raster

import (
	"bytes"
	"image"
	"image/color"
	"testing"
)

func filledGray(w, h int, v uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

func TestFlattenTransparency(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	// Transparent everywhere except an opaque black centre and a half-alpha
	// black pixel.
	img.SetNRGBA(5, 5, color.NRGBA{0, 0, 0, 255})
	img.SetNRGBA(7, 7, color.NRGBA{0, 0, 0, 128})

	g := Luminance(Flatten(img))

	if v := g.GrayAt(0, 0).Y; v != 255 {
		t.Errorf("transparent corner = %d, want 255", v)
	}
	if v := g.GrayAt(5, 5).Y; v != 0 {
		t.Errorf("opaque black centre = %d, want 0", v)
	}
	if v := g.GrayAt(7, 7).Y; v < 120 || v > 135 {
		t.Errorf("half-alpha pixel = %d, want about 127", v)
	}

	if o, ok := Flatten(img).(interface{ Opaque() bool }); !ok || !o.Opaque() {
		t.Error("Flatten output is not opaque")
	}
}

func TestFlattenOpaqueUnchanged(t *testing.T) {
	g := filledGray(4, 4, 42)
	if got := Flatten(g); got != image.Image(g) {
		t.Error("Flatten should return opaque images unchanged")
	}
}

func TestCropScenario(t *testing.T) {
	g := filledGray(100, 200, 255)
	for y := 40; y <= 80; y++ {
		g.SetGray(50, y, color.Gray{Y: 0})
	}

	b, ok := DetectContent(g, 240, false)
	if !ok {
		t.Fatal("DetectContent found no content")
	}
	if b.Rows != (Span{40, 80}) {
		t.Errorf("Rows = %+v, want {40 80}", b.Rows)
	}
	if b.Cols != (Span{0, 99}) {
		t.Errorf("Cols = %+v, want full width without horizontal crop", b.Cols)
	}

	out := Crop(g, b, 5)
	if out.Rect.Dy() != 51 || out.Rect.Dx() != 100 {
		t.Errorf("Crop size = %v, want 100x51 (rows 35..86)", out.Rect.Size())
	}
	if out.GrayAt(50, 5).Y != 0 || out.GrayAt(50, 4).Y != 255 {
		t.Error("cropped content not aligned with padding 5")
	}
}

func TestCropHorizontal(t *testing.T) {
	g := filledGray(100, 50, 255)
	g.SetGray(20, 10, color.Gray{Y: 100})
	g.SetGray(30, 12, color.Gray{Y: 100})

	b, ok := DetectContent(g, 240, true)
	if !ok {
		t.Fatal("no content")
	}
	if b.Cols != (Span{20, 30}) {
		t.Errorf("Cols = %+v, want {20 30}", b.Cols)
	}
	out := Crop(g, b, 2)
	if out.Rect.Dx() != 15 || out.Rect.Dy() != 7 {
		t.Errorf("Crop size = %v, want 15x7", out.Rect.Size())
	}
}

func TestDetectContentThresholdIsStrict(t *testing.T) {
	g := filledGray(10, 10, 255)
	g.SetGray(3, 3, color.Gray{Y: 240})
	if _, ok := DetectContent(g, 240, false); ok {
		t.Error("pixel equal to threshold counted as content")
	}
	g.SetGray(3, 3, color.Gray{Y: 239})
	if _, ok := DetectContent(g, 240, false); !ok {
		t.Error("pixel below threshold not counted as content")
	}
}

func TestDetectContentEmpty(t *testing.T) {
	if _, ok := DetectContent(filledGray(20, 20, 255), 240, true); ok {
		t.Error("blank image reported content")
	}
	if _, ok := DetectContent(image.NewGray(image.Rect(0, 0, 0, 0)), 240, false); ok {
		t.Error("zero-size image reported content")
	}
}

func TestCropNeverGrowsNeverEmpty(t *testing.T) {
	sizes := []image.Point{{1, 1}, {3, 7}, {40, 25}, {64, 64}}
	for _, sz := range sizes {
		for _, pad := range []int{0, 1, 5, 100} {
			for y := 0; y < sz.Y; y += max(1, sz.Y/4) {
				for x := 0; x < sz.X; x += max(1, sz.X/4) {
					g := filledGray(sz.X, sz.Y, 255)
					g.SetGray(x, y, color.Gray{Y: 0})
					for _, horiz := range []bool{false, true} {
						b, ok := DetectContent(g, 240, horiz)
						if !ok {
							t.Fatalf("%v: no content at (%d,%d)", sz, x, y)
						}
						out := Crop(g, b, pad)
						w, h := out.Rect.Dx(), out.Rect.Dy()
						if w < 1 || h < 1 || w > sz.X || h > sz.Y {
							t.Fatalf("%v pad %d at (%d,%d): crop %dx%d out of range", sz, pad, x, y, w, h)
						}
					}
				}
			}
		}
	}
}

func TestCropSubImage(t *testing.T) {
	g := filledGray(30, 30, 255)
	g.SetGray(15, 15, color.Gray{Y: 0})
	sub := g.SubImage(image.Rect(10, 10, 20, 20)).(*image.Gray)

	b, ok := DetectContent(sub, 240, true)
	if !ok || b.Rows != (Span{5, 5}) || b.Cols != (Span{5, 5}) {
		t.Fatalf("DetectContent(sub) = %+v, %v", b, ok)
	}
	out := Crop(sub, b, 1)
	if out.Rect != image.Rect(0, 0, 3, 3) || out.GrayAt(1, 1).Y != 0 {
		t.Errorf("Crop(sub) = %v, centre %d", out.Rect, out.GrayAt(1, 1).Y)
	}
}

func TestEnhanceDilationShape(t *testing.T) {
	g := filledGray(30, 30, 255)
	g.SetGray(10, 10, color.Gray{Y: 0})

	out := Enhance(g, DefaultEnhanceOptions())

	var lit []image.Point
	for y := 0; y < 30; y++ {
		for x := 0; x < 30; x++ {
			if out.GrayAt(x, y).Y == 255 {
				lit = append(lit, image.Pt(x, y))
			}
		}
	}
	if len(lit) != 12 {
		t.Fatalf("lit pixels = %d, want 3x4 = 12", len(lit))
	}
	for _, p := range lit {
		if p.X < 9 || p.X > 11 || p.Y < 9 || p.Y > 12 {
			t.Errorf("lit pixel %v outside x 9..11, y 9..12", p)
		}
	}
	if out.GrayAt(0, 0).Y != 0 {
		t.Error("background not inverted to 0")
	}
}

func TestEnhancePassesIndependent(t *testing.T) {
	g := filledGray(30, 30, 255)
	g.SetGray(15, 15, color.Gray{Y: 0})

	opts := EnhanceOptions{
		StemKernel:      Kernel{Width: 3, Height: 1},
		StemIterations:  2,
		StaffKernel:     Kernel{Width: 1, Height: 4},
		StaffIterations: 0,
	}
	out := Enhance(g, opts)

	count := 0
	for _, v := range out.Pix {
		if v == 255 {
			count++
		}
	}
	if count != 5 {
		t.Errorf("two stem iterations lit %d pixels, want a 5x1 run", count)
	}
	for x := 13; x <= 17; x++ {
		if out.GrayAt(x, 15).Y != 255 {
			t.Errorf("pixel (%d,15) not lit", x)
		}
	}
}

func TestDilateEdges(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 5, 5))
	g.SetGray(0, 0, color.Gray{Y: 200})
	out := Dilate(g, Kernel{Width: 3, Height: 3})
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			want := uint8(0)
			if x <= 1 && y <= 1 {
				want = 200
			}
			if got := out.GrayAt(x, y).Y; got != want {
				t.Errorf("(%d,%d) = %d, want %d", x, y, got, want)
			}
		}
	}
}

func TestThresholdTwoLevels(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 256, 1))
	for i := 0; i < 256; i++ {
		g.Pix[i] = uint8(i)
	}
	out := Threshold(g, 127)
	if out.Pix[127] != 0 || out.Pix[128] != 255 {
		t.Errorf("Threshold boundary: 127→%d 128→%d, want 0 and 255", out.Pix[127], out.Pix[128])
	}
	if lv := Levels(out); len(lv) != 2 {
		t.Errorf("Levels = %v, want [0 255]", lv)
	}
	if g.Pix[200] != 200 {
		t.Error("Threshold mutated its input")
	}
}

func TestResizeCanonical(t *testing.T) {
	tests := []image.Point{{1200, 300}, {576, 136}, {100, 40}, {2000, 2000}}
	for _, sz := range tests {
		g := filledGray(sz.X, sz.Y, 0)
		for x := 0; x < sz.X; x += 7 {
			g.SetGray(x, sz.Y/2, color.Gray{Y: 255})
		}
		out := Threshold(Resize(g, 576, 136), DefaultResizeThreshold)
		if out.Rect.Dx() != 576 || out.Rect.Dy() != 136 {
			t.Errorf("Resize(%v) = %v, want 576x136", sz, out.Rect.Size())
		}
		if lv := Levels(out); len(lv) > 2 {
			t.Errorf("Resize(%v) levels = %v, want at most 2", sz, lv)
		}
	}
}

func TestResizeKeepsThinStroke(t *testing.T) {
	// A one-pixel line at 1/4 scale averages to ~64 and survives a
	// re-threshold at 5.
	g := filledGray(400, 400, 0)
	for x := 0; x < 400; x++ {
		g.SetGray(x, 200, color.Gray{Y: 255})
	}
	out := Threshold(Resize(g, 100, 100), DefaultResizeThreshold)
	lit := false
	for x := 0; x < 100; x++ {
		if out.GrayAt(x, 50).Y == 255 {
			lit = true
		}
	}
	if !lit {
		t.Error("thin stroke lost after resize and re-threshold")
	}
}

func TestPageBreakFilter(t *testing.T) {
	f := PageBreakFilter{MinBytes: DefaultPageBreakMinBytes}
	tests := []struct {
		size int
		want bool
	}{
		{0, false},
		{900, false},
		{1023, false},
		{1024, true},
		{50000, true},
	}
	for _, tt := range tests {
		if got := f.Accept(tt.size); got != tt.want {
			t.Errorf("Accept(%d) = %v, want %v", tt.size, got, tt.want)
		}
	}
}

func TestPolarity(t *testing.T) {
	g := filledGray(2, 1, 0)
	g.Pix[1] = 255

	lit := ApplyPolarity(g, PolarityLit)
	if lit.Pix[0] != 0 || lit.Pix[1] != 255 {
		t.Errorf("lit = %v", lit.Pix)
	}
	paper := ApplyPolarity(g, PolarityPaper)
	if paper.Pix[0] != 255 || paper.Pix[1] != 0 {
		t.Errorf("paper = %v", paper.Pix)
	}
	if Polarity("sepia").Valid() {
		t.Error("unknown polarity reported valid")
	}
}

func TestBlank(t *testing.T) {
	for _, p := range []Polarity{PolarityLit, PolarityPaper} {
		g := Blank(576, 136, p)
		lv := Levels(g)
		if len(lv) != 1 || lv[0] != p.Background() {
			t.Errorf("Blank(%s) levels = %v", p, lv)
		}
		if g.Rect.Dx() != 576 || g.Rect.Dy() != 136 {
			t.Errorf("Blank(%s) size = %v", p, g.Rect.Size())
		}
	}
}

func TestAnnotate(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 400, 80))
	out, err := Annotate(g, "Meas. 3", DefaultLabelOptions())
	if err != nil {
		t.Fatalf("Annotate error: %v", err)
	}
	if out.Rect != g.Rect {
		t.Fatalf("Annotate changed size to %v", out.Rect)
	}

	lit := 0
	for y := 0; y < 80; y++ {
		for x := 0; x < 400; x++ {
			if out.GrayAt(x, y).Y > 127 {
				lit++
				if x < 195 || y > 40 {
					t.Fatalf("label ink at (%d,%d) outside the anchor region", x, y)
				}
			}
		}
	}
	if lit == 0 {
		t.Error("Annotate drew nothing")
	}
	for _, v := range g.Pix {
		if v != 0 {
			t.Fatal("Annotate mutated its input")
		}
	}
}

func TestAnnotateEmptyLabel(t *testing.T) {
	g := filledGray(10, 10, 7)
	out, err := Annotate(g, "", DefaultLabelOptions())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out.Pix, g.Pix) {
		t.Error("empty label changed pixels")
	}
}
