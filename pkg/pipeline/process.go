package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/scoreframes/pkg/cache"
	"github.com/matzehuels/scoreframes/pkg/errors"
	"github.com/matzehuels/scoreframes/pkg/observability"
	"github.com/matzehuels/scoreframes/pkg/quantize"
	"github.com/matzehuels/scoreframes/pkg/raster"
	"github.com/matzehuels/scoreframes/pkg/score"
)

// debugImage is an intermediate held until the frame index is known.
type debugImage struct {
	stage string
	img   image.Image
}

// prepared is a range after the index-independent stages. A non-nil skip
// means the range was rejected and carries no image.
type prepared struct {
	rng       score.MeasureRange
	img       *image.Gray
	skip      *Skip
	rasterHit bool
	frameHit  bool
	render    time.Duration
	process   time.Duration
	debug     []debugImage
}

// run holds the per-Execute state shared by both stages.
type run struct {
	runner    *Runner
	score     score.Score
	scoreID   string
	opts      Options
	ws        *Workspace
	quantizer quantize.Quantizer
	logger    *log.Logger
}

// prepare runs Rendering through Enhancing for one range.
func (x *run) prepare(ctx context.Context, rg score.MeasureRange) (*prepared, error) {
	p := &prepared{rng: rg}

	// Rendering
	renderStart := time.Now()
	data, hit, err := x.render(ctx, rg)
	if err != nil {
		return nil, stageErr(rg, StageRendering, err)
	}
	p.rasterHit = hit
	p.render = time.Since(renderStart)

	// Filtering
	if !x.opts.PageBreakFilter().Accept(len(data)) {
		x.logger.Debug("skipping page break", "measures", rg, "bytes", len(data))
		p.skip = &Skip{Range: rg, Reason: errors.ErrCodePageBreak, Bytes: len(data)}
		return p, nil
	}
	if err := os.WriteFile(x.ws.RawPath(rg.Start), data, 0644); err != nil {
		return nil, stageErr(rg, StageFiltering, errors.Wrap(errors.ErrCodeWorkspace, err, "stage raw raster"))
	}

	processStart := time.Now()
	defer func() { p.process = time.Since(processStart) }()

	frameKey := x.runner.Keyer.FrameKey(cache.Hash(data), x.opts.FrameKeyOpts())
	if !x.opts.Debug {
		if img, ok := x.cachedFrame(ctx, frameKey); ok {
			p.img, p.frameHit = img, true
			return p, nil
		}
	}

	// Normalizing
	decoded, err := raster.DecodePNG(data)
	if err != nil {
		return nil, stageErr(rg, StageNormalizing, errors.Wrap(errors.ErrCodeRenderFailure, err, "engraver output is not a PNG"))
	}
	gray := raster.Luminance(raster.Flatten(decoded))
	p.addDebug(x.opts.Debug, "original", decoded)
	p.addDebug(x.opts.Debug, "grayscale", gray)

	// Cropping
	cropped := gray
	bounds, ok := raster.DetectContent(gray, x.opts.CropThreshold, x.opts.HorizontalCrop)
	if !ok {
		x.logger.Warn("no content found", "measures", rg, "code", errors.ErrCodeEmptyContent)
		if x.opts.RejectBlank {
			p.skip = &Skip{Range: rg, Reason: errors.ErrCodeEmptyContent, Bytes: len(data)}
			return p, nil
		}
	} else {
		cropped = raster.Crop(gray, bounds, x.opts.CropPadding)
		x.logger.Debug("cropped",
			"measures", rg,
			"rows", fmt.Sprintf("%d..%d", bounds.Rows.First, bounds.Rows.Last),
			"size", cropped.Rect.Size())
	}
	p.addDebug(x.opts.Debug, "cropped", cropped)

	// Enhancing
	p.img = raster.Enhance(cropped, x.opts.EnhanceOptions())
	p.addDebug(x.opts.Debug, "dilated", p.img)

	if ok {
		x.storeFrame(ctx, frameKey, p.img)
	}
	return p, nil
}

// render returns raster bytes for rg, consulting the raster cache when the
// score can identify itself.
func (x *run) render(ctx context.Context, rg score.MeasureRange) ([]byte, bool, error) {
	key := ""
	if x.scoreID != "" {
		key = x.runner.Keyer.RasterKey(x.scoreID, rg.Start, rg.Count)
		if !x.opts.Refresh {
			if data, hit, err := x.runner.Cache.Get(ctx, key); err == nil && hit {
				observability.Cache().OnCacheHit(ctx, "raster")
				return data, true, nil
			}
			observability.Cache().OnCacheMiss(ctx, "raster")
		}
	}

	rctx := ctx
	if x.opts.RenderTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, x.opts.RenderTimeout)
		defer cancel()
	}
	data, err := x.score.Render(rctx, rg)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		if rctx.Err() == context.DeadlineExceeded {
			return nil, false, errors.Wrap(errors.ErrCodeRenderFailure, err, "render of measures %s exceeded %s", rg, x.opts.RenderTimeout)
		}
		if errors.GetCode(err) == "" {
			err = errors.Wrap(errors.ErrCodeRenderFailure, err, "render measures %s", rg)
		}
		return nil, false, err
	}

	if key != "" {
		if err := x.runner.Cache.Set(ctx, key, data, cache.RasterTTL); err != nil {
			x.logger.Debug("raster cache write failed", "error", err)
		} else {
			observability.Cache().OnCacheSet(ctx, "raster", len(data))
		}
	}
	return data, false, nil
}

func (x *run) cachedFrame(ctx context.Context, key string) (*image.Gray, bool) {
	if x.opts.Refresh {
		return nil, false
	}
	data, hit, err := x.runner.Cache.Get(ctx, key)
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, "frame")
		return nil, false
	}
	img, err := raster.DecodePNG(data)
	if err != nil {
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, "frame")
	return raster.Luminance(img), true
}

func (x *run) storeFrame(ctx context.Context, key string, img *image.Gray) {
	var buf bytes.Buffer
	if err := raster.EncodePNG(&buf, img); err != nil {
		return
	}
	if err := x.runner.Cache.Set(ctx, key, buf.Bytes(), cache.FrameTTL); err != nil {
		x.logger.Debug("frame cache write failed", "error", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, "frame", buf.Len())
}

// finish runs Annotating and Binarizing for an accepted range under index.
func (x *run) finish(ctx context.Context, p *prepared, index int) (Frame, error) {
	rg := p.rng
	opts := x.opts

	// Annotating
	img := p.img
	if opts.LabelFormat != "" {
		var err error
		img, err = raster.Annotate(img, fmt.Sprintf(opts.LabelFormat, index), opts.LabelOptions())
		if err != nil {
			return Frame{}, stageErr(rg, StageAnnotating, errors.Wrap(errors.ErrCodeInternal, err, "draw label"))
		}
	}
	p.addDebug(opts.Debug, "with_text", img)

	// Binarizing
	bin := raster.Threshold(img, opts.Threshold)
	p.addDebug(opts.Debug, "binary", bin)
	resized := raster.Resize(bin, opts.Width, opts.Height)
	p.addDebug(opts.Debug, "resized", resized)
	final := raster.ApplyPolarity(raster.Threshold(resized, opts.ResizeThreshold), opts.Polarity)
	p.addDebug(opts.Debug, "final", final)

	bitmap := x.ws.BitmapPath(index)
	if err := raster.WriteBMP(bitmap, final); err != nil {
		return Frame{}, stageErr(rg, StageBinarizing, errors.Wrap(errors.ErrCodeWorkspace, err, "write %s", bitmap))
	}

	out := x.ws.FramePath(index)
	if err := x.quantizer.Quantize(ctx, bitmap, out); err != nil {
		if errors.GetCode(err) == "" {
			err = errors.Wrap(errors.ErrCodeQuantizationFailed, err, "quantize %s", bitmap)
		}
		return Frame{}, stageErr(rg, StageBinarizing, err)
	}
	if err := quantize.Verify(out, opts.Width, opts.Height); err != nil {
		return Frame{}, stageErr(rg, StageBinarizing, err)
	}

	if opts.Debug {
		if err := x.writeDebug(p, index); err != nil {
			x.logger.Warn("debug output failed", "index", index, "error", err)
		}
	}

	st, err := os.Stat(out)
	if err != nil {
		return Frame{}, stageErr(rg, StageBinarizing, errors.Wrap(errors.ErrCodeQuantizationFailed, err, "stat %s", out))
	}
	return Frame{Index: index, Range: rg, Path: out, Bytes: st.Size()}, nil
}

func (p *prepared) addDebug(enabled bool, stage string, img image.Image) {
	if enabled {
		p.debug = append(p.debug, debugImage{stage: stage, img: img})
	}
}

func (x *run) writeDebug(p *prepared, index int) error {
	for i, d := range p.debug {
		if err := raster.WritePNG(x.ws.DebugPath(index, i+1, d.stage), d.img); err != nil {
			return err
		}
	}
	p.debug = nil
	return nil
}
