package score

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/matzehuels/scoreframes/pkg/errors"
)

func TestIteratorScenario(t *testing.T) {
	got, err := Ranges(10, 2)
	if err != nil {
		t.Fatalf("Ranges(10, 2) error: %v", err)
	}
	want := []MeasureRange{{1, 2}, {3, 2}, {5, 2}, {7, 2}, {9, 2}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Ranges(10, 2) = %v, want %v", got, want)
	}
}

func TestIteratorTruncatesLastRange(t *testing.T) {
	got, err := Ranges(9, 4)
	if err != nil {
		t.Fatalf("Ranges(9, 4) error: %v", err)
	}
	want := []MeasureRange{{1, 4}, {5, 4}, {9, 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Ranges(9, 4) = %v, want %v", got, want)
	}
}

func TestIteratorCoverage(t *testing.T) {
	for total := 1; total <= 40; total++ {
		for width := 1; width <= 12; width++ {
			ranges, err := Ranges(total, width)
			if err != nil {
				t.Fatalf("Ranges(%d, %d) error: %v", total, width, err)
			}

			next := 1
			for i, r := range ranges {
				if r.Start != next {
					t.Fatalf("Ranges(%d, %d)[%d].Start = %d, want %d (gap or overlap)", total, width, i, r.Start, next)
				}
				if r.Count < 1 || r.Count > width {
					t.Fatalf("Ranges(%d, %d)[%d].Count = %d, want 1..%d", total, width, i, r.Count, width)
				}
				if i < len(ranges)-1 && r.Count != width {
					t.Fatalf("Ranges(%d, %d)[%d] truncated before the last range", total, width, i)
				}
				next = r.End() + 1
			}
			if next != total+1 {
				t.Fatalf("Ranges(%d, %d) covers up to %d, want %d", total, width, next-1, total)
			}
		}
	}
}

func TestIteratorNotRestartable(t *testing.T) {
	it, err := NewIterator(3, 2)
	if err != nil {
		t.Fatal(err)
	}
	for _, ok := it.Next(); ok; _, ok = it.Next() {
	}
	if r, ok := it.Next(); ok {
		t.Errorf("exhausted iterator yielded %v", r)
	}
}

func TestNewIteratorInvalid(t *testing.T) {
	tests := []struct {
		name         string
		total, width int
	}{
		{"zero width", 10, 0},
		{"negative width", 10, -2},
		{"no measures", 0, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewIterator(tt.total, tt.width)
			if !errors.Is(err, errors.ErrCodeInvalidConfiguration) {
				t.Errorf("NewIterator(%d, %d) error = %v, want INVALID_CONFIGURATION", tt.total, tt.width, err)
			}
		})
	}
}

func TestMeasureRangeString(t *testing.T) {
	tests := []struct {
		r    MeasureRange
		want string
	}{
		{MeasureRange{Start: 1, Count: 2}, "1-2"},
		{MeasureRange{Start: 9, Count: 1}, "9"},
		{MeasureRange{Start: 5, Count: 4}, "5-8"},
	}
	for _, tt := range tests {
		if got := tt.r.String(); got != tt.want {
			t.Errorf("%#v.String() = %q, want %q", tt.r, got, tt.want)
		}
	}
}

func TestImageDirOrdering(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"10.png", "2.png", "1.png", "cover.png", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0644); err != nil {
			t.Fatal(err)
		}
	}

	d, err := OpenImageDir(dir)
	if err != nil {
		t.Fatalf("OpenImageDir error: %v", err)
	}

	want := []string{"1.png", "2.png", "10.png", "cover.png"}
	if got := d.Files(); !reflect.DeepEqual(got, want) {
		t.Errorf("Files() = %v, want %v", got, want)
	}
	if d.MeasureCount() != 4 {
		t.Errorf("MeasureCount() = %d, want 4", d.MeasureCount())
	}

	data, err := d.Render(context.Background(), MeasureRange{Start: 3, Count: 1})
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if string(data) != "10.png" {
		t.Errorf("Render(3) = %q, want contents of 10.png", data)
	}

	if _, err := d.Render(context.Background(), MeasureRange{Start: 1, Count: 2}); err == nil {
		t.Error("Render with Count 2 should fail")
	}
}

func TestOpenImageDirEmpty(t *testing.T) {
	_, err := OpenImageDir(t.TempDir())
	if !errors.Is(err, errors.ErrCodeInvalidScore) {
		t.Errorf("OpenImageDir(empty) error = %v, want INVALID_SCORE", err)
	}
}
