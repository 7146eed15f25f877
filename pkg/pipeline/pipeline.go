// Package pipeline turns a score into an ordered sequence of canonical
// bilevel frames.
//
// # Architecture
//
// A run splits the score into fixed-width measure ranges and drives each
// range through these stages:
//
//  1. Rendering: engrave the range to a PNG raster (cached per score/range)
//  2. Filtering: drop renders too small to hold notation (page breaks)
//  3. Normalizing: flatten transparency and collapse to gray
//  4. Cropping: trim blank margins
//  5. Enhancing: invert and dilate stems and staff lines
//  6. Annotating: stamp the frame label
//  7. Binarizing: threshold, resize to the canonical grid, quantize to 1 bit
//
// Stages 1 to 5 do not depend on the frame index and may run concurrently
// across ranges. Indices are then assigned densely in source order over the
// accepted ranges, and stages 6 and 7 run sequentially.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, nil, logger)
//	opts := pipeline.DefaultOptions()
//	opts.Output = "out/clairdelune"
//	result, err := runner.Execute(ctx, score, opts)
//	if err != nil {
//	    var se *pipeline.StageError
//	    if errors.As(err, &se) {
//	        // se.Range and se.Stage name the failing step
//	    }
//	}
//	for _, f := range result.Frames {
//	    fmt.Println(f.Index, f.Path)
//	}
package pipeline

import (
	"time"

	"github.com/matzehuels/scoreframes/pkg/cache"
	"github.com/matzehuels/scoreframes/pkg/errors"
	"github.com/matzehuels/scoreframes/pkg/quantize"
	"github.com/matzehuels/scoreframes/pkg/raster"
	"github.com/matzehuels/scoreframes/pkg/score"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultGroupWidth is the number of measures per frame.
	DefaultGroupWidth = 2

	// DefaultWidth and DefaultHeight are the canonical frame size, which is
	// the full display grid.
	DefaultWidth  = errors.MaxFrameWidth
	DefaultHeight = errors.MaxFrameHeight

	// DefaultCropThreshold is the luminance below which a pixel is ink.
	DefaultCropThreshold = 240

	// DefaultCropPadding is kept around detected content.
	DefaultCropPadding = 5

	// DefaultWorkers processes ranges strictly sequentially.
	DefaultWorkers = 1

	// DefaultRenderTimeout bounds one engraver call.
	DefaultRenderTimeout = 2 * time.Minute

	// DefaultQuantizeTimeout bounds one quantizer call.
	DefaultQuantizeTimeout = quantize.DefaultTimeout

	// DefaultRenderDPI is passed to the engraver.
	DefaultRenderDPI = 300
)

// Cache backends.
const (
	CacheFile  = "file"
	CacheRedis = "redis"
	CacheNone  = "none"
)

// ValidCaches is the set of supported cache backends.
var ValidCaches = map[string]bool{
	CacheFile:  true,
	CacheRedis: true,
	CacheNone:  true,
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for a run. It is loaded from TOML and
// recorded in the run manifest as JSON.
type Options struct {
	// Output is the root of the run workspace.
	Output string `toml:"output" json:"output"`

	// Segmentation
	GroupWidth int `toml:"group_width" json:"group_width"`

	// Canonical frame
	Width  int `toml:"width" json:"width"`
	Height int `toml:"height" json:"height"`

	// Filtering
	PageBreakMinBytes int  `toml:"page_break_min_bytes" json:"page_break_min_bytes"`
	RejectBlank       bool `toml:"reject_blank" json:"reject_blank"`

	// Cropping
	CropThreshold  int  `toml:"crop_threshold" json:"crop_threshold"`
	CropPadding    int  `toml:"crop_padding" json:"crop_padding"`
	HorizontalCrop bool `toml:"horizontal_crop" json:"horizontal_crop"`

	// Enhancing
	StemKernel      raster.Kernel `toml:"stem_kernel" json:"stem_kernel"`
	StemIterations  int           `toml:"stem_iterations" json:"stem_iterations"`
	StaffKernel     raster.Kernel `toml:"staff_kernel" json:"staff_kernel"`
	StaffIterations int           `toml:"staff_iterations" json:"staff_iterations"`

	// Annotating. An empty LabelFormat disables the label.
	LabelFormat string  `toml:"label_format" json:"label_format"`
	LabelSize   float64 `toml:"label_size" json:"label_size"`

	// Binarizing
	Threshold       int             `toml:"threshold" json:"threshold"`
	ResizeThreshold int             `toml:"resize_threshold" json:"resize_threshold"`
	Polarity        raster.Polarity `toml:"polarity" json:"polarity"`

	// Execution
	Workers         int           `toml:"workers" json:"workers"`
	RenderTimeout   time.Duration `toml:"render_timeout" json:"render_timeout"`
	QuantizeTimeout time.Duration `toml:"quantize_timeout" json:"quantize_timeout"`
	Debug           bool          `toml:"debug" json:"debug"`
	Refresh         bool          `toml:"-" json:"refresh,omitempty"`

	// External tools
	Magick    string `toml:"magick" json:"magick,omitempty"`
	MuseScore string `toml:"musescore" json:"musescore,omitempty"`
	RenderDPI int    `toml:"render_dpi" json:"render_dpi"`

	// Caching
	Cache    string `toml:"cache" json:"cache"`
	RedisURL string `toml:"redis_url" json:"-"`

	// validated tracks whether ValidateAndSetDefaults has succeeded.
	validated bool
}

// DefaultOptions returns every option at its documented default. Output is
// left empty.
func DefaultOptions() Options {
	return Options{
		GroupWidth:        DefaultGroupWidth,
		Width:             DefaultWidth,
		Height:            DefaultHeight,
		PageBreakMinBytes: raster.DefaultPageBreakMinBytes,
		CropThreshold:     DefaultCropThreshold,
		CropPadding:       DefaultCropPadding,
		StemKernel:        raster.DefaultStemKernel,
		StemIterations:    1,
		StaffKernel:       raster.DefaultStaffKernel,
		StaffIterations:   1,
		LabelFormat:       raster.DefaultLabelFormat,
		LabelSize:         raster.DefaultLabelSize,
		Threshold:         raster.DefaultThreshold,
		ResizeThreshold:   raster.DefaultResizeThreshold,
		Polarity:          raster.PolarityLit,
		Workers:           DefaultWorkers,
		RenderTimeout:     DefaultRenderTimeout,
		QuantizeTimeout:   DefaultQuantizeTimeout,
		RenderDPI:         DefaultRenderDPI,
		Cache:             CacheFile,
	}
}

// Result contains the outputs of a run.
type Result struct {
	// RunID uniquely identifies the run in logs and the manifest.
	RunID string

	// Workspace is the directory layout the run wrote to.
	Workspace *Workspace

	// Frames is ordered by Index 0..N-1.
	Frames []Frame

	// Skipped lists rejected ranges in source order.
	Skipped []Skip

	// Stats contains timing and cache information.
	Stats Stats
}

// Frame is one emitted canonical frame.
type Frame struct {
	Index int                `json:"index"`
	Range score.MeasureRange `json:"range"`
	Path  string             `json:"path"`
	Bytes int64              `json:"bytes"`
}

// Skip records a range that was rejected and consumed no frame index.
type Skip struct {
	Range  score.MeasureRange `json:"range"`
	Reason errors.Code        `json:"reason"`
	Bytes  int                `json:"bytes,omitempty"`
}

// Stats contains run statistics.
type Stats struct {
	Ranges      int
	RasterHits  int
	FrameHits   int
	Elapsed     time.Duration
	RenderTime  time.Duration
	ProcessTime time.Duration
}

// =============================================================================
// Options Methods
// =============================================================================

// SetDefaults fills fields whose zero value means "unset": polarity, cache
// backend, worker count, label size and render DPI. Geometry, kernels and
// thresholds are left alone so an explicit zero fails Validate; start from
// DefaultOptions to get the documented defaults for those.
func (o *Options) SetDefaults() {
	if o.LabelSize == 0 {
		o.LabelSize = raster.DefaultLabelSize
	}
	if o.Polarity == "" {
		o.Polarity = raster.PolarityLit
	}
	if o.Workers == 0 {
		o.Workers = DefaultWorkers
	}
	if o.RenderDPI == 0 {
		o.RenderDPI = DefaultRenderDPI
	}
	if o.Cache == "" {
		o.Cache = CacheFile
	}
}

// Validate checks every option. Errors carry INVALID_CONFIGURATION.
func (o *Options) Validate() error {
	if o.Output == "" {
		return errors.New(errors.ErrCodeInvalidConfiguration, "output directory is required")
	}
	checks := []error{
		errors.ValidatePositive("group_width", o.GroupWidth),
		errors.ValidateResolution(o.Width, o.Height),
		errors.ValidateNonNegative("page_break_min_bytes", o.PageBreakMinBytes),
		errors.ValidateLevel("crop_threshold", o.CropThreshold),
		errors.ValidateNonNegative("crop_padding", o.CropPadding),
		errors.ValidateKernel("stem_kernel", o.StemKernel.Width, o.StemKernel.Height, true),
		errors.ValidateNonNegative("stem_iterations", o.StemIterations),
		errors.ValidateKernel("staff_kernel", o.StaffKernel.Width, o.StaffKernel.Height, false),
		errors.ValidateNonNegative("staff_iterations", o.StaffIterations),
		errors.ValidateLabelFormat(o.LabelFormat),
		errors.ValidateLevel("threshold", o.Threshold),
		errors.ValidateLevel("resize_threshold", o.ResizeThreshold),
		errors.ValidatePositive("workers", o.Workers),
		errors.ValidatePositive("render_dpi", o.RenderDPI),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	if o.LabelSize <= 0 {
		return errors.New(errors.ErrCodeInvalidConfiguration, "label_size must be > 0, got %g", o.LabelSize)
	}
	if !o.Polarity.Valid() {
		return errors.New(errors.ErrCodeInvalidConfiguration, "invalid polarity: %q (must be one of: lit, paper)", o.Polarity)
	}
	if o.RenderTimeout < 0 || o.QuantizeTimeout < 0 {
		return errors.New(errors.ErrCodeInvalidConfiguration, "timeouts must not be negative")
	}
	if !ValidCaches[o.Cache] {
		return errors.New(errors.ErrCodeInvalidConfiguration, "invalid cache: %q (must be one of: file, redis, none)", o.Cache)
	}
	if o.Cache == CacheRedis && o.RedisURL == "" {
		return errors.New(errors.ErrCodeInvalidConfiguration, "cache = \"redis\" requires redis_url")
	}
	return nil
}

// ValidateAndSetDefaults applies SetDefaults and then Validate.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	o.SetDefaults()
	if err := o.Validate(); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// PageBreakFilter returns the configured filter.
func (o *Options) PageBreakFilter() raster.PageBreakFilter {
	return raster.PageBreakFilter{MinBytes: o.PageBreakMinBytes}
}

// EnhanceOptions returns the dilation settings.
func (o *Options) EnhanceOptions() raster.EnhanceOptions {
	return raster.EnhanceOptions{
		StemKernel:      o.StemKernel,
		StemIterations:  o.StemIterations,
		StaffKernel:     o.StaffKernel,
		StaffIterations: o.StaffIterations,
	}
}

// LabelOptions returns the annotation settings. Ink is bright because
// labels are drawn in the inverted domain.
func (o *Options) LabelOptions() raster.LabelOptions {
	lo := raster.DefaultLabelOptions()
	lo.Size = o.LabelSize
	return lo
}

// FrameKeyOpts returns cache key options for enhanced frames.
func (o *Options) FrameKeyOpts() cache.FrameKeyOpts {
	return cache.FrameKeyOpts{
		CropThreshold:   o.CropThreshold,
		CropPadding:     o.CropPadding,
		Horizontal:      o.HorizontalCrop,
		StemKernel:      [2]int{o.StemKernel.Width, o.StemKernel.Height},
		StemIterations:  o.StemIterations,
		StaffKernel:     [2]int{o.StaffKernel.Width, o.StaffKernel.Height},
		StaffIterations: o.StaffIterations,
	}
}
