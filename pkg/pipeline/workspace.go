package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/matzehuels/scoreframes/pkg/errors"
)

// ManifestName is the run manifest file under the workspace root.
const ManifestName = "manifest.json"

// Workspace is the on-disk layout of a run:
//
//	<root>/frames/<index>.bmp        final 1-bit frames
//	<root>/temp/raw/<start>.png      accepted engraver output
//	<root>/temp/bitmap/<index>.bmp   frames before quantization
//	<root>/debug/<index>_<n>_<stage>.png   intermediates (debug only)
//	<root>/manifest.json
type Workspace struct {
	Root   string
	Frames string
	Raw    string
	Bitmap string
	Debug  string
}

// NewWorkspace returns the layout under root without touching the disk.
func NewWorkspace(root string) *Workspace {
	return &Workspace{
		Root:   root,
		Frames: filepath.Join(root, "frames"),
		Raw:    filepath.Join(root, "temp", "raw"),
		Bitmap: filepath.Join(root, "temp", "bitmap"),
		Debug:  filepath.Join(root, "debug"),
	}
}

// Prepare removes any previous run's output and recreates the directories.
// Files outside the workspace areas are left alone.
func (w *Workspace) Prepare(debug bool) error {
	stale := []string{
		w.Frames,
		filepath.Join(w.Root, "temp"),
		w.Debug,
		w.ManifestPath(),
	}
	for _, p := range stale {
		if err := os.RemoveAll(p); err != nil {
			return errors.Wrap(errors.ErrCodeWorkspace, err, "clear %s", p)
		}
	}

	dirs := []string{w.Frames, w.Raw, w.Bitmap}
	if debug {
		dirs = append(dirs, w.Debug)
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return errors.Wrap(errors.ErrCodeWorkspace, err, "create %s", d)
		}
	}
	return nil
}

// RawPath returns the staged engraver output for a range starting at start.
func (w *Workspace) RawPath(start int) string {
	return filepath.Join(w.Raw, fmt.Sprintf("%d.png", start))
}

// BitmapPath returns the pre-quantization frame for index.
func (w *Workspace) BitmapPath(index int) string {
	return filepath.Join(w.Bitmap, fmt.Sprintf("%d.bmp", index))
}

// FramePath returns the final frame for index.
func (w *Workspace) FramePath(index int) string {
	return FramePath(w.Frames, index)
}

// DebugPath returns the intermediate image for step n of frame index.
func (w *Workspace) DebugPath(index, n int, stage string) string {
	return filepath.Join(w.Debug, fmt.Sprintf("%d_%d_%s.png", index, n, stage))
}

// ManifestPath returns the run manifest location.
func (w *Workspace) ManifestPath() string {
	return filepath.Join(w.Root, ManifestName)
}

// FramePath returns "<dir>/<index>.bmp".
func FramePath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("%d.bmp", index))
}
