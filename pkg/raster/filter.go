package raster

// DefaultPageBreakMinBytes is the encoded size below which a render is
// treated as a blank page produced by a page break.
const DefaultPageBreakMinBytes = 1024

// PageBreakFilter rejects renders too small to hold any notation.
type PageBreakFilter struct {
	MinBytes int
}

// Accept reports whether an encoded raster of size bytes should be kept.
// It never inspects pixels.
func (f PageBreakFilter) Accept(size int) bool {
	return size >= f.MinBytes
}
