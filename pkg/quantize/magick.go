package quantize

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/matzehuels/scoreframes/pkg/errors"
)

// magickBinaries are probed in order: ImageMagick 7, then 6.
var magickBinaries = []string{"magick", "convert"}

// ImageMagick quantizes by running the ImageMagick CLI.
type ImageMagick struct {
	Binary  string        // executable name or path; probed when empty
	Timeout time.Duration // per-invocation bound; zero means no limit
}

// Quantize runs "<bin> in -monochrome -type bilevel out".
func (m *ImageMagick) Quantize(ctx context.Context, in, out string) error {
	bin, err := m.lookPath()
	if err != nil {
		return err
	}

	if m.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, bin, in, "-monochrome", "-type", "bilevel", out)
	var errBuf bytes.Buffer
	cmd.Stderr = &errBuf

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return errors.Wrap(errors.ErrCodeQuantizationFailed, ctx.Err(), "%s exceeded %s", bin, m.Timeout)
		}
		return errors.Wrap(errors.ErrCodeQuantizationFailed, err, "%s: %s", bin, errBuf.String())
	}
	return nil
}

func (m *ImageMagick) lookPath() (string, error) {
	candidates := magickBinaries
	if m.Binary != "" {
		candidates = []string{m.Binary}
	}
	for _, c := range candidates {
		if p, err := exec.LookPath(c); err == nil {
			return p, nil
		}
	}
	return "", errors.New(errors.ErrCodeQuantizationFailed,
		"bilevel export requires ImageMagick. Install with:\n  macOS:  brew install imagemagick\n  Linux:  apt install imagemagick\nor set magick = \"native\"")
}
