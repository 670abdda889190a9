package pipeline

import (
	"fmt"
	"math"
	"strings"

	"dragonizer/dragon"
	"dragonizer/palette"
)

// MaxWorkers is the largest worker count a render accepts: owner ids are
// stored as int8 and -1 marks unset cells.
const MaxWorkers = palette.MaxOwners

// DefaultMaxCells bounds the canvas and the image of a single render.
const DefaultMaxCells = 1 << 32

// Scheduler selects how the phases of a render are executed.
type Scheduler int

const (
	// Pool runs one long-lived worker per rank, separated by barriers.
	Pool Scheduler = iota
	// Tasks runs each phase as a recursively split parallel loop.
	Tasks
)

func (s Scheduler) String() string {
	switch s {
	case Pool:
		return "pool"
	case Tasks:
		return "tasks"
	}
	return fmt.Sprintf("Scheduler(%d)", int(s))
}

func ParseScheduler(s string) (Scheduler, error) {
	switch strings.ToLower(s) {
	case "pool":
		return Pool, nil
	case "tasks":
		return Tasks, nil
	}
	return 0, fmt.Errorf("%w: unknown scheduler %q", ErrInvalidConfig, s)
}

type Option func(*options)

type options struct {
	scheduler Scheduler
	grain     int
	palette   *palette.Palette
	maxCells  int
}

func defaultOptions() options {
	return options{
		scheduler: Pool,
		maxCells:  DefaultMaxCells,
	}
}

func WithScheduler(s Scheduler) Option {
	return func(o *options) {
		o.scheduler = s
	}
}

// WithGrain sets the number of batches each phase is split into by the Tasks
// scheduler. The default, zero, uses four batches per worker.
func WithGrain(batches int) Option {
	return func(o *options) {
		o.grain = batches
	}
}

// WithPalette colors owners with p instead of a generated palette. p must
// have a color for every worker.
func WithPalette(p *palette.Palette) Option {
	return func(o *options) {
		o.palette = p
	}
}

// WithMaxCells bounds the number of canvas cells and image pixels a render
// may allocate.
func WithMaxCells(n int) Option {
	return func(o *options) {
		o.maxCells = n
	}
}

func (o options) batches(workers int) int {
	if o.grain > 0 {
		return o.grain
	}
	return 4 * workers
}

// DrawConfig is the geometry of one render, derived from the curve limits
// and the requested image size.
type DrawConfig struct {
	Limits       dragon.Limits
	Size         uint64
	Workers      int
	DragonWidth  int
	DragonHeight int
	ImageWidth   int
	ImageHeight  int
	// Scale is the side of the square of canvas cells behind one pixel.
	Scale int
	// DeltaX and DeltaY center the canvas in the scaled image area.
	DeltaX int
	DeltaY int
}

func validate(imageWidth, imageHeight, workers int) error {
	switch {
	case workers < 1 || workers > MaxWorkers:
		return fmt.Errorf("%w: worker count %d not in [1, %d]", ErrInvalidConfig, workers, MaxWorkers)
	case imageWidth < 1 || imageHeight < 1:
		return fmt.Errorf("%w: image size %dx%d", ErrInvalidConfig, imageWidth, imageHeight)
	}
	return nil
}

// NewDrawConfig computes the canvas size, the scale and the centering
// offsets for a curve with the given limits.
func NewDrawConfig(limits dragon.Limits, size uint64, imageWidth, imageHeight, workers, maxCells int) (DrawConfig, error) {
	if err := validate(imageWidth, imageHeight, workers); err != nil {
		return DrawConfig{}, err
	}
	if maxCells < 1 {
		maxCells = DefaultMaxCells
	}

	dw, dh := limits.Width(), limits.Height()
	if dw > 0 && dh > int64(maxCells)/dw {
		return DrawConfig{}, fmt.Errorf("%w: canvas of %dx%d cells exceeds %d", ErrAllocation, dw, dh, maxCells)
	}
	if imageHeight > maxCells/imageWidth {
		return DrawConfig{}, fmt.Errorf("%w: image of %dx%d pixels exceeds %d", ErrAllocation, imageWidth, imageHeight, maxCells)
	}

	cfg := DrawConfig{
		Limits:       limits,
		Size:         size,
		Workers:      workers,
		DragonWidth:  int(dw),
		DragonHeight: int(dh),
		ImageWidth:   imageWidth,
		ImageHeight:  imageHeight,
	}
	cfg.Scale = max(ceilDiv(cfg.DragonWidth, imageWidth), ceilDiv(cfg.DragonHeight, imageHeight), 1)
	cfg.DeltaX = (cfg.Scale*imageWidth - cfg.DragonWidth) / 2
	cfg.DeltaY = (cfg.Scale*imageHeight - cfg.DragonHeight) / 2

	return cfg, nil
}

func (c DrawConfig) CanvasCells() int {
	return c.DragonWidth * c.DragonHeight
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// checkTaskRange reports whether size fits the int ranges of the task
// scheduler.
func checkTaskRange(size uint64) error {
	if size > math.MaxInt {
		return fmt.Errorf("%w: size %d too large for the tasks scheduler", ErrInvalidConfig, size)
	}
	return nil
}
