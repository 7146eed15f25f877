package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/matzehuels/scoreframes/pkg/errors"
	"github.com/matzehuels/scoreframes/pkg/observability"
	"github.com/matzehuels/scoreframes/pkg/pipeline"
	"github.com/matzehuels/scoreframes/pkg/raster"
	"github.com/matzehuels/scoreframes/pkg/score"
	"github.com/matzehuels/scoreframes/pkg/score/musicxml"
)

// convertLabelFormat numbers pages rather than measures.
const convertLabelFormat = "Page %d"

// runFlags holds the flags shared by render and convert. Values are only
// applied when the flag was set, so they override the config file without
// clobbering it.
type runFlags struct {
	opts  pipeline.Options
	stem  []int
	staff []int
	polar string
	quiet bool
}

func newRunFlags() *runFlags {
	f := &runFlags{opts: pipeline.DefaultOptions()}
	f.stem = []int{f.opts.StemKernel.Width, f.opts.StemKernel.Height}
	f.staff = []int{f.opts.StaffKernel.Width, f.opts.StaffKernel.Height}
	f.polar = string(f.opts.Polarity)
	return f
}

// register binds the shared flags to fs.
func (f *runFlags) register(fs *pflag.FlagSet) {
	o := &f.opts
	fs.StringVarP(&o.Output, "output", "o", "", "output directory (default: input name without extension)")
	fs.IntVarP(&o.GroupWidth, "group-width", "g", o.GroupWidth, "measures per frame")
	fs.IntVar(&o.Width, "width", o.Width, "frame width in pixels")
	fs.IntVar(&o.Height, "height", o.Height, "frame height in pixels")
	fs.IntVar(&o.CropThreshold, "crop-threshold", o.CropThreshold, "luminance below which a pixel counts as ink")
	fs.IntVar(&o.CropPadding, "crop-padding", o.CropPadding, "pixels kept around detected content")
	fs.BoolVar(&o.HorizontalCrop, "horizontal-crop", o.HorizontalCrop, "also trim left and right margins")
	fs.IntVar(&o.PageBreakMinBytes, "page-break-bytes", o.PageBreakMinBytes, "renders smaller than this are page breaks")
	fs.BoolVar(&o.RejectBlank, "reject-blank", o.RejectBlank, "skip renders without visible content")
	fs.IntSliceVar(&f.stem, "stem-kernel", f.stem, "stem dilation kernel as width,height")
	fs.IntVar(&o.StemIterations, "stem-iterations", o.StemIterations, "stem dilation passes")
	fs.IntSliceVar(&f.staff, "staff-kernel", f.staff, "staff dilation kernel as width,height")
	fs.IntVar(&o.StaffIterations, "staff-iterations", o.StaffIterations, "staff dilation passes")
	fs.StringVar(&o.LabelFormat, "label", o.LabelFormat, "frame label with one %d for the index (empty disables)")
	fs.Float64Var(&o.LabelSize, "label-size", o.LabelSize, "label font size in points")
	fs.StringVar(&f.polar, "polarity", f.polar, "frame polarity: lit (bright ink on black), paper")
	fs.IntVarP(&o.Workers, "workers", "j", o.Workers, "ranges processed concurrently")
	fs.DurationVar(&o.RenderTimeout, "render-timeout", o.RenderTimeout, "timeout per rendered range")
	fs.DurationVar(&o.QuantizeTimeout, "quantize-timeout", o.QuantizeTimeout, "timeout per quantized frame")
	fs.BoolVar(&o.Debug, "debug", o.Debug, "write per-stage intermediates to <output>/debug")
	fs.BoolVar(&o.Refresh, "refresh", false, "ignore cached renders and frames")
	fs.StringVar(&o.Magick, "magick", o.Magick, `ImageMagick binary, or "native" for the built-in quantizer`)
	fs.StringVar(&o.Cache, "cache", o.Cache, "cache backend: file, redis, none")
	fs.StringVar(&o.RedisURL, "redis-url", o.RedisURL, "Redis URL for --cache redis")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only log warnings; show a spinner instead")
}

// flagSetters copies a changed flag from the parsed flags into the resolved
// options.
var flagSetters = map[string]func(dst *pipeline.Options, f *runFlags) error{
	"output":           func(d *pipeline.Options, f *runFlags) error { d.Output = f.opts.Output; return nil },
	"group-width":      func(d *pipeline.Options, f *runFlags) error { d.GroupWidth = f.opts.GroupWidth; return nil },
	"width":            func(d *pipeline.Options, f *runFlags) error { d.Width = f.opts.Width; return nil },
	"height":           func(d *pipeline.Options, f *runFlags) error { d.Height = f.opts.Height; return nil },
	"crop-threshold":   func(d *pipeline.Options, f *runFlags) error { d.CropThreshold = f.opts.CropThreshold; return nil },
	"crop-padding":     func(d *pipeline.Options, f *runFlags) error { d.CropPadding = f.opts.CropPadding; return nil },
	"horizontal-crop":  func(d *pipeline.Options, f *runFlags) error { d.HorizontalCrop = f.opts.HorizontalCrop; return nil },
	"page-break-bytes": func(d *pipeline.Options, f *runFlags) error { d.PageBreakMinBytes = f.opts.PageBreakMinBytes; return nil },
	"reject-blank":     func(d *pipeline.Options, f *runFlags) error { d.RejectBlank = f.opts.RejectBlank; return nil },
	"stem-iterations":  func(d *pipeline.Options, f *runFlags) error { d.StemIterations = f.opts.StemIterations; return nil },
	"staff-iterations": func(d *pipeline.Options, f *runFlags) error { d.StaffIterations = f.opts.StaffIterations; return nil },
	"label":            func(d *pipeline.Options, f *runFlags) error { d.LabelFormat = f.opts.LabelFormat; return nil },
	"label-size":       func(d *pipeline.Options, f *runFlags) error { d.LabelSize = f.opts.LabelSize; return nil },
	"workers":          func(d *pipeline.Options, f *runFlags) error { d.Workers = f.opts.Workers; return nil },
	"render-timeout":   func(d *pipeline.Options, f *runFlags) error { d.RenderTimeout = f.opts.RenderTimeout; return nil },
	"quantize-timeout": func(d *pipeline.Options, f *runFlags) error { d.QuantizeTimeout = f.opts.QuantizeTimeout; return nil },
	"debug":            func(d *pipeline.Options, f *runFlags) error { d.Debug = f.opts.Debug; return nil },
	"refresh":          func(d *pipeline.Options, f *runFlags) error { d.Refresh = f.opts.Refresh; return nil },
	"magick":           func(d *pipeline.Options, f *runFlags) error { d.Magick = f.opts.Magick; return nil },
	"cache":            func(d *pipeline.Options, f *runFlags) error { d.Cache = f.opts.Cache; return nil },
	"redis-url":        func(d *pipeline.Options, f *runFlags) error { d.RedisURL = f.opts.RedisURL; return nil },
	"polarity": func(d *pipeline.Options, f *runFlags) error {
		d.Polarity = raster.Polarity(f.polar)
		return nil
	},
	"stem-kernel": func(d *pipeline.Options, f *runFlags) error {
		k, err := parseKernel("stem-kernel", f.stem)
		d.StemKernel = k
		return err
	},
	"staff-kernel": func(d *pipeline.Options, f *runFlags) error {
		k, err := parseKernel("staff-kernel", f.staff)
		d.StaffKernel = k
		return err
	},
}

func parseKernel(name string, v []int) (raster.Kernel, error) {
	if len(v) != 2 {
		return raster.Kernel{}, errors.New(errors.ErrCodeInvalidConfiguration, "--%s takes width,height, got %v", name, v)
	}
	return raster.Kernel{Width: v[0], Height: v[1]}, nil
}

// resolve layers defaults, the config file and changed flags, in that order.
func (f *runFlags) resolve(fs *pflag.FlagSet, configPath string, base pipeline.Options) (pipeline.Options, error) {
	opts := base
	path := configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}
	if path != "" {
		loaded, err := pipeline.LoadOptions(path, opts)
		if err != nil {
			return opts, err
		}
		opts = loaded
	}

	var err error
	fs.Visit(func(fl *pflag.Flag) {
		set, ok := flagSetters[fl.Name]
		if !ok || err != nil {
			return
		}
		err = set(&opts, f)
	})
	return opts, err
}

// applyVerbosity lowers the log level for --quiet unless --verbose won.
func (c *CLI) applyVerbosity(f *runFlags) {
	if f.quiet && c.Logger.GetLevel() != LogDebug {
		c.SetLogLevel(LogWarn)
	}
}

// defaultOutput derives the output directory from the input path.
func defaultOutput(input string) string {
	input = filepath.Clean(input)
	return strings.TrimSuffix(input, filepath.Ext(input))
}

// =============================================================================
// render
// =============================================================================

// renderCommand creates the render command for MusicXML scores.
func (c *CLI) renderCommand() *cobra.Command {
	flags := newRunFlags()
	var musescore string
	var dpi int

	cmd := &cobra.Command{
		Use:   "render [score]",
		Short: "Render a MusicXML score (.musicxml, .xml, .mxl) to frames",
		Long: `Render a MusicXML score to frames.

The score is engraved a few measures at a time through MuseScore. Each range
is cropped, its stems and staff lines are thickened, a label is stamped and
the result is quantized to a 1-bit BMP under <output>/frames.`,
		Example: `  scoreframes render clairdelune.mxl
  scoreframes render etude.musicxml -o out/etude -g 4 --polarity paper
  scoreframes render sonata.mxl -j 4 --cache redis --redis-url redis://localhost:6379/0`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.applyVerbosity(flags)
			opts, err := flags.resolve(cmd.Flags(), c.configPath, pipeline.DefaultOptions())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("musescore") {
				opts.MuseScore = musescore
			}
			if cmd.Flags().Changed("dpi") {
				opts.RenderDPI = dpi
			}
			if opts.Output == "" {
				opts.Output = defaultOutput(args[0])
			}
			if err := opts.ValidateAndSetDefaults(); err != nil {
				return err
			}

			engraver := musicxml.NewMuseScore(opts.MuseScore)
			engraver.DPI = opts.RenderDPI
			engraver.Timeout = opts.RenderTimeout
			sc, err := musicxml.Open(args[0], engraver)
			if err != nil {
				return err
			}
			c.Logger.Info("Loaded score", "file", args[0], "measures", sc.MeasureCount())
			return c.runPipeline(cmd.Context(), sc, opts, flags.quiet)
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().StringVar(&musescore, "musescore", "", "MuseScore binary (default: probe mscore, musescore)")
	cmd.Flags().IntVar(&dpi, "dpi", pipeline.DefaultRenderDPI, "engraving resolution")
	return cmd
}

// =============================================================================
// convert
// =============================================================================

// convertCommand creates the convert command for pre-rendered pages.
func (c *CLI) convertCommand() *cobra.Command {
	flags := newRunFlags()
	flags.opts.GroupWidth = 1
	flags.opts.LabelFormat = convertLabelFormat

	cmd := &cobra.Command{
		Use:   "convert [directory]",
		Short: "Convert a directory of PNG pages to frames",
		Long: `Convert a directory of pre-rendered PNG pages to frames.

Pages are ordered numerically by file name (2.png before 10.png) and each
page becomes one frame. All cropping, thickening and quantization options of
render apply.`,
		Example: `  scoreframes convert pages/ -o out/pages
  scoreframes convert scans/ --label "" --horizontal-crop`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.applyVerbosity(flags)
			base := pipeline.DefaultOptions()
			base.GroupWidth = 1
			base.LabelFormat = convertLabelFormat
			opts, err := flags.resolve(cmd.Flags(), c.configPath, base)
			if err != nil {
				return err
			}
			if opts.GroupWidth != 1 {
				return errors.New(errors.ErrCodeInvalidConfiguration, "convert uses one page per frame, got group width %d", opts.GroupWidth)
			}
			if opts.Output == "" {
				opts.Output = filepath.Clean(args[0]) + "-frames"
			}
			if err := opts.ValidateAndSetDefaults(); err != nil {
				return err
			}

			sc, err := score.OpenImageDir(args[0])
			if err != nil {
				return err
			}
			c.Logger.Info("Loaded pages", "dir", args[0], "pages", sc.MeasureCount())
			return c.runPipeline(cmd.Context(), sc, opts, flags.quiet)
		},
	}

	flags.register(cmd.Flags())
	return cmd
}

// =============================================================================
// Shared Execution
// =============================================================================

// runPipeline executes a run and prints the summary.
func (c *CLI) runPipeline(ctx context.Context, sc score.Score, opts pipeline.Options, quiet bool) error {
	runner, err := c.newRunner(ctx, opts)
	if err != nil {
		return err
	}
	defer runner.Close()

	prog := newProgress(c.Logger)
	var spin *Spinner
	if quiet {
		spin = newSpinnerWithContext(ctx, fmt.Sprintf("Rendering %d measures...", sc.MeasureCount()))
		observability.SetPipelineHooks(&spinnerHooks{spin: spin})
		defer observability.Reset()
		spin.Start()
	}

	res, err := runner.Execute(ctx, sc, opts)
	if spin != nil {
		if err != nil {
			spin.StopWithError(errors.UserMessage(err))
		} else {
			spin.Stop()
		}
	}
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Wrote %d frames", len(res.Frames)))

	printSuccess("Frames written to %s", res.Workspace.Frames)
	printStats(len(res.Frames), len(res.Skipped), res.Stats)
	printSkips(res.Skipped)
	if n := len(res.Frames); n > 0 {
		printFile(res.Frames[0].Path)
		if n > 1 {
			printFile(res.Frames[n-1].Path)
		}
	}
	printFile(res.Workspace.ManifestPath())
	printDetail("run %s in %s", res.RunID, res.Stats.Elapsed.Round(time.Millisecond))
	printNewline()
	printNextStep("Preview", fmt.Sprintf("%s preview %s", appName, opts.Output))
	return nil
}
