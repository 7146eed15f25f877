package score

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/matzehuels/scoreframes/pkg/errors"
)

// ImageDir is a Score backed by a directory of pre-rendered PNG pages.
// Each file counts as one measure group, so it must be driven with a group
// width of 1. Files are ordered numerically by stem ("2.png" before
// "10.png"); non-numeric stems sort lexically after the numeric ones.
type ImageDir struct {
	dir   string
	files []string
}

// OpenImageDir lists the PNG files in dir.
func OpenImageDir(dir string) (*ImageDir, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "read image directory %s", dir)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".png") {
			continue
		}
		files = append(files, e.Name())
	}
	if len(files) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidScore, "no PNG files in %s", dir)
	}

	sort.Slice(files, func(i, j int) bool { return pageLess(files[i], files[j]) })
	return &ImageDir{dir: dir, files: files}, nil
}

// MeasureCount returns the number of pages.
func (d *ImageDir) MeasureCount() int { return len(d.files) }

// Files returns the page file names in render order.
func (d *ImageDir) Files() []string { return append([]string(nil), d.files...) }

// Render reads the page for r.Start.
func (d *ImageDir) Render(ctx context.Context, r MeasureRange) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Count != 1 {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "image directories hold one page per group, got range %s", r)
	}
	if r.Start < 1 || r.Start > len(d.files) {
		return nil, errors.New(errors.ErrCodeRenderFailure, "page %d out of range 1..%d", r.Start, len(d.files))
	}
	data, err := os.ReadFile(filepath.Join(d.dir, d.files[r.Start-1]))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRenderFailure, err, "read page %s", d.files[r.Start-1])
	}
	return data, nil
}

func pageLess(a, b string) bool {
	na, errA := strconv.Atoi(strings.TrimSuffix(a, filepath.Ext(a)))
	nb, errB := strconv.Atoi(strings.TrimSuffix(b, filepath.Ext(b)))
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	}
	return a < b
}

var _ Score = (*ImageDir)(nil)
