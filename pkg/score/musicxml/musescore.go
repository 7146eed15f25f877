package musicxml

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"github.com/matzehuels/scoreframes/pkg/errors"
)

// Engraver binaries probed in order when MuseScore.Binary is empty.
var museScoreBinaries = []string{"mscore", "musescore", "mscore4portable", "MuseScore4", "mscore3"}

// Default engraving settings.
const (
	DefaultDPI           = 300
	DefaultTrimMargin    = 0
	DefaultRenderTimeout = 2 * time.Minute
)

// MuseScore renders MusicXML through the MuseScore command-line converter:
//
//	mscore -o range.png -r <dpi> -T <margin> range.musicxml
//
// MuseScore writes one PNG per page (range-1.png, range-2.png, ...). Only the
// first page is returned; a range that spills onto a blank page shows up as a
// tiny first page and is rejected downstream by the page-break filter.
type MuseScore struct {
	Binary  string        // executable name or path; probed when empty
	DPI     int           // raster resolution (-r)
	Trim    int           // trim margin in pixels (-T); negative disables trimming
	Timeout time.Duration // per-invocation bound
}

// NewMuseScore returns a renderer with default settings.
func NewMuseScore(binary string) *MuseScore {
	return &MuseScore{
		Binary:  binary,
		DPI:     DefaultDPI,
		Trim:    DefaultTrimMargin,
		Timeout: DefaultRenderTimeout,
	}
}

// Key describes the settings that influence the rendered bytes.
func (m *MuseScore) Key() string {
	return fmt.Sprintf("musescore:dpi=%d:trim=%d", m.DPI, m.Trim)
}

// Render writes doc to a scratch directory and converts it to PNG.
func (m *MuseScore) Render(ctx context.Context, doc []byte) ([]byte, error) {
	bin, err := m.lookPath()
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "scoreframes-render-*")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRenderFailure, err, "create scratch directory")
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "range.musicxml")
	if err := os.WriteFile(in, doc, 0644); err != nil {
		return nil, errors.Wrap(errors.ErrCodeRenderFailure, err, "write %s", in)
	}

	if m.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}

	args := []string{"-o", filepath.Join(dir, "range.png")}
	if m.DPI > 0 {
		args = append(args, "-r", fmt.Sprint(m.DPI))
	}
	if m.Trim >= 0 {
		args = append(args, "-T", fmt.Sprint(m.Trim))
	}
	args = append(args, in)

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Env = append(os.Environ(), "QT_QPA_PLATFORM=offscreen")
	var errBuf bytes.Buffer
	cmd.Stdout = &errBuf
	cmd.Stderr = &errBuf

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.Wrap(errors.ErrCodeRenderFailure, ctx.Err(), "%s exceeded %s", bin, m.Timeout)
		}
		return nil, errors.Wrap(errors.ErrCodeRenderFailure, err, "%s: %s", bin, errBuf.String())
	}

	pages, _ := filepath.Glob(filepath.Join(dir, "range*.png"))
	if len(pages) == 0 {
		return nil, errors.New(errors.ErrCodeRenderFailure, "%s produced no PNG output", bin)
	}
	sort.Strings(pages)
	data, err := os.ReadFile(pages[0])
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRenderFailure, err, "read %s", pages[0])
	}
	return data, nil
}

func (m *MuseScore) lookPath() (string, error) {
	candidates := museScoreBinaries
	if m.Binary != "" {
		candidates = []string{m.Binary}
	}
	for _, c := range candidates {
		if p, err := exec.LookPath(c); err == nil {
			return p, nil
		}
	}
	return "", errors.New(errors.ErrCodeRenderFailure,
		"rendering requires MuseScore. Install with:\n  macOS:  brew install --cask musescore\n  Linux:  apt install musescore3")
}
