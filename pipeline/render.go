// Package pipeline renders the dragon curve in parallel.
//
// A render computes the bounding box of the curve, then runs three phases
// over a canvas sized to it: every cell is reset, the curve is drawn with
// each cell tagged by the worker owning its segment, and the canvas is
// downsampled into the output image. Two schedulers are available: Pool
// keeps one worker per rank and separates phases with a barrier, Tasks
// submits each phase as a recursively split parallel loop.
package pipeline

import (
	"fmt"
	"image"
	"time"

	"dragonizer/dragon"
	"dragonizer/palette"
)

// Timings records how long each stage of a render took.
type Timings struct {
	Limits time.Duration
	Init   time.Duration
	Draw   time.Duration
	Scale  time.Duration
}

func (t Timings) Total() time.Duration {
	return t.Limits + t.Init + t.Draw + t.Scale
}

type Result struct {
	Config  DrawConfig
	Canvas  *Canvas
	Image   *image.RGBA
	Palette *palette.Palette
	Timings Timings
}

// job is the per-render state shared by the workers of one render.
type job struct {
	cfg     DrawConfig
	canvas  *Canvas
	image   *image.RGBA
	palette *palette.Palette
	ctl     *controller
}

// ComputeLimits returns the bounding box of the first size segments, using
// workers partitions on the selected scheduler. The result does not depend
// on the worker count or the scheduler.
func ComputeLimits(size uint64, workers int, opts ...Option) (dragon.Limits, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if workers < 1 || workers > MaxWorkers {
		return dragon.Limits{}, fmt.Errorf("%w: worker count %d not in [1, %d]", ErrInvalidConfig, workers, MaxWorkers)
	}

	piece, err := computePiece(size, workers, o)
	if err != nil {
		return dragon.Limits{}, err
	}
	return piece.Limits, nil
}

func computePiece(size uint64, workers int, o options) (dragon.Piece, error) {
	switch o.scheduler {
	case Pool:
		return limitsPool(size, workers)
	case Tasks:
		return limitsTasks(size, workers, o.batches(workers))
	}
	return dragon.Piece{}, fmt.Errorf("%w: unknown scheduler %s", ErrInvalidConfig, o.scheduler)
}

// Render draws the first size segments of the curve with workers workers
// into an image of imageWidth x imageHeight pixels. It returns the canvas
// along with the image. On error nothing is returned.
func Render(size uint64, imageWidth, imageHeight, workers int, opts ...Option) (*Result, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if err := validate(imageWidth, imageHeight, workers); err != nil {
		return nil, err
	}
	switch o.scheduler {
	case Pool:
	case Tasks:
		if err := checkTaskRange(size); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unknown scheduler %s", ErrInvalidConfig, o.scheduler)
	}

	pal := o.palette
	if pal == nil {
		var err error
		if pal, err = palette.New(workers); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	} else if pal.Len() < workers {
		return nil, fmt.Errorf("%w: palette has %d colors for %d workers", ErrInvalidConfig, pal.Len(), workers)
	}

	log := logger().With("scheduler", o.scheduler, "workers", workers, "size", size)

	start := time.Now()
	piece, err := computePiece(size, workers, o)
	if err != nil {
		log.Error("could not compute limits", "error", err)
		return nil, err
	}
	limitsTime := time.Since(start)

	cfg, err := NewDrawConfig(piece.Limits, size, imageWidth, imageHeight, workers, o.maxCells)
	if err != nil {
		return nil, err
	}
	log.Debug("geometry", "limits", cfg.Limits, "canvas_width", cfg.DragonWidth, "canvas_height", cfg.DragonHeight,
		"scale", cfg.Scale, "delta_x", cfg.DeltaX, "delta_y", cfg.DeltaY)

	canvas, err := NewCanvas(cfg.DragonWidth, cfg.DragonHeight)
	if err != nil {
		return nil, err
	}
	img, err := newImage(cfg)
	if err != nil {
		return nil, err
	}

	j := &job{
		cfg:     cfg,
		canvas:  canvas,
		image:   img,
		palette: pal,
		ctl:     newController(o.scheduler),
	}

	switch o.scheduler {
	case Pool:
		err = runPool(j)
	case Tasks:
		err = runTasks(j, o.batches(workers))
	}
	if err != nil {
		log.Error("render failed", "phase", j.ctl.current(), "error", err)
		return nil, err
	}

	res := &Result{
		Config:  cfg,
		Canvas:  canvas,
		Image:   img,
		Palette: pal,
		Timings: Timings{
			Limits: limitsTime,
			Init:   j.ctl.durations[PhaseInit],
			Draw:   j.ctl.durations[PhaseDraw],
			Scale:  j.ctl.durations[PhaseScale],
		},
	}
	log.Info("rendered", "limits", cfg.Limits, "scale", cfg.Scale, "duration", res.Timings.Total())

	return res, nil
}
