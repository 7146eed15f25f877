package score

import (
	"context"
	"fmt"

	"github.com/matzehuels/scoreframes/pkg/errors"
)

// Score is the external score collaborator.
//
// Render may be slow (it usually shells out to an engraver) and must honour
// ctx cancellation. It may return a degenerate, near-empty raster when the
// engraver paginates a range onto a blank page; callers filter those.
type Score interface {
	// MeasureCount returns the total number of measures, at least 1 for a
	// usable score.
	MeasureCount() int

	// Render returns encoded raster bytes (PNG) for the measures in r.
	Render(ctx context.Context, r MeasureRange) ([]byte, error)
}

// Identifier is implemented by scores that can describe their content for
// cache keys. Two scores with the same ID render identical bytes.
type Identifier interface {
	ID() string
}

// MeasureRange is a contiguous run of measures, 1-based.
type MeasureRange struct {
	Start int `json:"start"` // first measure, >= 1
	Count int `json:"count"` // number of measures, >= 1
}

// End returns the last measure in the range (inclusive).
func (r MeasureRange) End() int {
	return r.Start + r.Count - 1
}

// String formats the range as "start-end", or "start" for a single measure.
func (r MeasureRange) String() string {
	if r.Count == 1 {
		return fmt.Sprintf("%d", r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End())
}

// Iterator yields consecutive measure ranges. It is not restartable and not
// safe for concurrent use.
type Iterator struct {
	total int
	width int
	next  int
}

// NewIterator creates an iterator over measures 1..total in groups of width.
// It fails with INVALID_CONFIGURATION when either argument is below 1.
func NewIterator(total, width int) (*Iterator, error) {
	if err := errors.ValidatePositive("group width", width); err != nil {
		return nil, err
	}
	if total < 1 {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "score has no measures (total %d)", total)
	}
	return &Iterator{total: total, width: width, next: 1}, nil
}

// Next returns the next range and true, or a zero range and false once the
// measures are exhausted.
func (it *Iterator) Next() (MeasureRange, bool) {
	if it.next > it.total {
		return MeasureRange{}, false
	}
	r := MeasureRange{Start: it.next, Count: min(it.width, it.total-it.next+1)}
	it.next += r.Count
	return r, true
}

// Ranges returns every range NewIterator(total, width) would yield.
func Ranges(total, width int) ([]MeasureRange, error) {
	it, err := NewIterator(total, width)
	if err != nil {
		return nil, err
	}
	out := make([]MeasureRange, 0, (total+width-1)/width)
	for r, ok := it.Next(); ok; r, ok = it.Next() {
		out = append(out, r)
	}
	return out, nil
}
