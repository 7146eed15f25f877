package pipeline

import (
	"context"
	stderrors "errors"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/scoreframes/pkg/cache"
	"github.com/matzehuels/scoreframes/pkg/errors"
	"github.com/matzehuels/scoreframes/pkg/observability"
	"github.com/matzehuels/scoreframes/pkg/quantize"
	"github.com/matzehuels/scoreframes/pkg/score"
)

// Runner executes the frame pipeline with caching.
//
// The Runner is stateless apart from its collaborators; it doesn't store
// results. Multiple goroutines can use the same Runner as long as their
// runs write to different output directories.
type Runner struct {
	Cache     cache.Cache
	Keyer     cache.Keyer
	Quantizer quantize.Quantizer // nil selects quantize.New(opts.Magick, opts.QuantizeTimeout)
	Logger    *log.Logger
}

// NewRunner creates a runner.
// If c is nil, a NullCache is used (caching disabled).
// If keyer is nil, a DefaultKeyer is used.
// If logger is nil, output is discarded.
func NewRunner(c cache.Cache, keyer cache.Keyer, q quantize.Quantizer, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Runner{
		Cache:     c,
		Keyer:     keyer,
		Quantizer: q,
		Logger:    logger,
	}
}

// Execute converts sc into frames under opts.Output.
//
// The workspace is cleared first, so re-running with the same inputs
// reproduces the same frames. Page breaks (and, with RejectBlank, blank
// renders) are skipped without consuming an index. Any other failure aborts
// the run with a *StageError.
func (r *Runner) Execute(ctx context.Context, sc score.Score, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	if sc == nil {
		return nil, errors.New(errors.ErrCodeInvalidScore, "no score")
	}

	// Segmenting before Init so a bad score leaves earlier output intact.
	total := sc.MeasureCount()
	ranges, err := score.Ranges(total, opts.GroupWidth)
	if err != nil {
		return nil, err
	}

	// Init
	ws := NewWorkspace(opts.Output)
	if err := ws.Prepare(opts.Debug); err != nil {
		return nil, err
	}

	res := &Result{RunID: uuid.NewString(), Workspace: ws}
	x := &run{
		runner:    r,
		score:     sc,
		opts:      opts,
		ws:        ws,
		quantizer: r.Quantizer,
		logger:    r.Logger.With("run", res.RunID[:8]),
	}
	if id, ok := sc.(score.Identifier); ok {
		x.scoreID = id.ID()
	}
	if x.quantizer == nil {
		x.quantizer = quantize.New(opts.Magick, opts.QuantizeTimeout)
	}

	x.logger.Info("starting run",
		"measures", total,
		"ranges", len(ranges),
		"group_width", opts.GroupWidth,
		"workers", opts.Workers)
	observability.Pipeline().OnRunStart(ctx, res.RunID, len(ranges))

	start := time.Now()
	if opts.Workers <= 1 {
		err = x.sequential(ctx, total, res)
	} else {
		err = x.parallel(ctx, ranges, res)
	}
	res.Stats.Ranges = len(ranges)
	res.Stats.Elapsed = time.Since(start)
	observability.Pipeline().OnRunComplete(ctx, res.RunID, len(res.Frames), len(res.Skipped), res.Stats.Elapsed, err)
	if err != nil {
		return nil, err
	}

	if err := WriteManifest(ws.ManifestPath(), newManifest(res, opts, x.scoreID)); err != nil {
		return nil, err
	}

	x.logger.Info("run complete",
		"frames", len(res.Frames),
		"skipped", len(res.Skipped),
		"elapsed", res.Stats.Elapsed.Round(time.Millisecond))
	return res, nil
}

// sequential walks the ranges lazily, one at a time.
func (x *run) sequential(ctx context.Context, total int, res *Result) error {
	it, err := score.NewIterator(total, x.opts.GroupWidth)
	if err != nil {
		return err
	}
	for rg, ok := it.Next(); ok; rg, ok = it.Next() {
		if err := ctx.Err(); err != nil {
			return stageErr(rg, StageSegmenting, err)
		}
		p, err := x.prepareObserved(ctx, rg)
		if err != nil {
			return err
		}
		if err := x.accept(ctx, p, res); err != nil {
			return err
		}
	}
	return nil
}

// parallel prepares up to Workers ranges at once, then folds the results in
// source order so indices never depend on completion order.
func (x *run) parallel(ctx context.Context, ranges []score.MeasureRange, res *Result) error {
	slots := make([]*prepared, len(ranges))
	errs := make([]error, len(ranges))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.opts.Workers)
	for i, rg := range ranges {
		g.Go(func() error {
			p, err := x.prepareObserved(gctx, rg)
			slots[i], errs[i] = p, err
			return err
		})
	}
	if werr := g.Wait(); werr != nil {
		// Report the earliest range that failed on its own rather than one
		// cancelled because of it.
		for _, err := range errs {
			if err != nil && !stderrors.Is(err, context.Canceled) {
				return err
			}
		}
		return werr
	}

	for _, p := range slots {
		if err := x.accept(ctx, p, res); err != nil {
			return err
		}
	}
	return nil
}

// accept records a skip or assigns the next dense index and finishes the
// frame.
func (x *run) accept(ctx context.Context, p *prepared, res *Result) error {
	if p.rasterHit {
		res.Stats.RasterHits++
	}
	if p.frameHit {
		res.Stats.FrameHits++
	}
	res.Stats.RenderTime += p.render
	res.Stats.ProcessTime += p.process

	if p.skip != nil {
		res.Skipped = append(res.Skipped, *p.skip)
		observability.Pipeline().OnRangeSkipped(ctx, p.rng.String(), string(p.skip.Reason))
		return nil
	}

	index := len(res.Frames)
	start := time.Now()
	f, err := x.finish(ctx, p, index)
	observability.Pipeline().OnRangeComplete(ctx, p.rng.String(), stageOf(err, StageDone).String(), time.Since(start), err)
	if err != nil {
		return err
	}
	p.img = nil

	res.Frames = append(res.Frames, f)
	observability.Pipeline().OnFrameWritten(ctx, f.Index, int(f.Bytes))
	x.logger.Info("frame written", "index", f.Index, "measures", f.Range, "bytes", f.Bytes)
	return nil
}

func (x *run) prepareObserved(ctx context.Context, rg score.MeasureRange) (*prepared, error) {
	observability.Pipeline().OnRangeStart(ctx, rg.String())
	p, err := x.prepare(ctx, rg)
	if err != nil {
		observability.Pipeline().OnRangeComplete(ctx, rg.String(), stageOf(err, StageEnhancing).String(), 0, err)
	}
	return p, err
}

func stageOf(err error, fallback Stage) Stage {
	var se *StageError
	if stderrors.As(err, &se) {
		return se.Stage
	}
	return fallback
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}
