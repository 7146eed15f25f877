package cache

import "fmt"

// Keyer generates cache keys for pipeline artifacts.
type Keyer interface {
	// RasterKey identifies the engraved PNG for a measure range of a score.
	RasterKey(scoreID string, start, count int) string

	// FrameKey identifies the cropped and enhanced frame derived from a
	// raster. Annotation and binarization depend on the frame index and are
	// never cached.
	FrameKey(rasterHash string, opts FrameKeyOpts) string
}

// FrameKeyOpts lists every option that changes enhanced frame pixels.
type FrameKeyOpts struct {
	CropThreshold   int
	CropPadding     int
	Horizontal      bool
	StemKernel      [2]int
	StemIterations  int
	StaffKernel     [2]int
	StaffIterations int
}

// DefaultKeyer is the standard Keyer.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard Keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// RasterKey returns "raster:<hash>".
func (DefaultKeyer) RasterKey(scoreID string, start, count int) string {
	return hashKey("raster", scoreID, fmt.Sprintf("%d+%d", start, count))
}

// FrameKey returns "frame:<hash>".
func (DefaultKeyer) FrameKey(rasterHash string, opts FrameKeyOpts) string {
	return hashKey("frame", rasterHash, opts)
}
