package render

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/alecthomas/kong"

	"dragonizer/pipeline"
)

// LimitsCmd reports the bounding box of the curve and the geometry a render
// of it would use, without allocating the canvas.
type LimitsCmd struct {
	Size   uint64 `help:"Number of curve segments" default:"1048576"`
	Width  int    `help:"Image width in pixels" default:"1024"`
	Height int    `help:"Image height in pixels" default:"1024"`

	Engine `embed:""`
}

func (c *LimitsCmd) Validate(kctx *kong.Context) error {
	if c.Width < 1 || c.Height < 1 {
		return fmt.Errorf("invalid image size: %dx%d", c.Width, c.Height)
	}
	return c.Engine.validate()
}

func (c *LimitsCmd) Run(logger *slog.Logger) error {
	start := time.Now()
	limits, err := pipeline.ComputeLimits(c.Size, c.Workers, c.Engine.options()...)
	if err != nil {
		return fmt.Errorf("could not compute limits of %d segments: %w", c.Size, err)
	}
	elapsed := time.Since(start)

	// Geometry only, the canvas bound does not apply here.
	cfg, err := pipeline.NewDrawConfig(limits, c.Size, c.Width, c.Height, c.Workers, math.MaxInt)
	if err != nil {
		return err
	}

	logger.Info("limits",
		"size", c.Size,
		"limits", limits,
		"canvas_width", cfg.DragonWidth,
		"canvas_height", cfg.DragonHeight,
		"cells", cfg.CanvasCells(),
		"scale", cfg.Scale,
		"delta_x", cfg.DeltaX,
		"delta_y", cfg.DeltaY,
		"duration", elapsed,
	)
	return nil
}
