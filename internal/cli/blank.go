package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/scoreframes/pkg/errors"
	"github.com/matzehuels/scoreframes/pkg/pipeline"
	"github.com/matzehuels/scoreframes/pkg/quantize"
	"github.com/matzehuels/scoreframes/pkg/raster"
)

// defaultBlankName is the file device loaders show between pieces.
const defaultBlankName = "empty.bmp"

// blankOpts holds the command-line flags for the blank command.
type blankOpts struct {
	dir      string
	name     string
	width    int
	height   int
	polarity string
	magick   string
}

// blankCommand creates the blank command, which writes an all-background
// canonical frame.
func (c *CLI) blankCommand() *cobra.Command {
	def := pipeline.DefaultOptions()
	opts := blankOpts{
		dir:      ".",
		name:     defaultBlankName,
		width:    def.Width,
		height:   def.Height,
		polarity: string(def.Polarity),
	}

	cmd := &cobra.Command{
		Use:   "blank",
		Short: "Write an all-background frame (" + defaultBlankName + ")",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := writeBlank(cmd.Context(), opts)
			if err != nil {
				return err
			}
			printSuccess("Blank frame written")
			printFile(path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.dir, "output", "o", opts.dir, "output directory")
	cmd.Flags().StringVar(&opts.name, "name", opts.name, "file name")
	cmd.Flags().IntVar(&opts.width, "width", opts.width, "frame width in pixels")
	cmd.Flags().IntVar(&opts.height, "height", opts.height, "frame height in pixels")
	cmd.Flags().StringVar(&opts.polarity, "polarity", opts.polarity, "frame polarity: lit, paper")
	cmd.Flags().StringVar(&opts.magick, "magick", "", `ImageMagick binary, or "native" for the built-in quantizer`)
	return cmd
}

// writeBlank renders the blank frame and quantizes it like any other frame.
func writeBlank(ctx context.Context, opts blankOpts) (string, error) {
	if err := errors.ValidateFileName(opts.name); err != nil {
		return "", err
	}
	if err := errors.ValidateResolution(opts.width, opts.height); err != nil {
		return "", err
	}
	pol := raster.Polarity(opts.polarity)
	if !pol.Valid() {
		return "", errors.New(errors.ErrCodeInvalidConfiguration, "invalid polarity: %q (must be one of: lit, paper)", opts.polarity)
	}
	if err := os.MkdirAll(opts.dir, 0755); err != nil {
		return "", errors.Wrap(errors.ErrCodeWorkspace, err, "create %s", opts.dir)
	}

	tmp, err := os.MkdirTemp("", "scoreframes-blank-*")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeWorkspace, err, "create scratch directory")
	}
	defer os.RemoveAll(tmp)

	staged := filepath.Join(tmp, opts.name)
	if err := raster.WriteBMP(staged, raster.Blank(opts.width, opts.height, pol)); err != nil {
		return "", errors.Wrap(errors.ErrCodeWorkspace, err, "write %s", staged)
	}

	out := filepath.Join(opts.dir, opts.name)
	q := quantize.New(opts.magick, quantize.DefaultTimeout)
	if err := q.Quantize(ctx, staged, out); err != nil {
		return "", err
	}
	if err := quantize.Verify(out, opts.width, opts.height); err != nil {
		return "", err
	}
	return out, nil
}
