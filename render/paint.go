package render

import (
	"fmt"
	"image"
	"log/slog"
	"slices"

	"github.com/alecthomas/kong"

	"dragonizer/dragon"
	"dragonizer/palette"
	"dragonizer/pipeline"
)

// PaintCmd scales a canvas saved by the render command into a new image,
// without drawing the curve again.
type PaintCmd struct {
	Canvas  string `arg:"" help:"Canvas file written by render --canvas" type:"existingfile"`
	Width   int    `help:"Image width in pixels" default:"1024"`
	Height  int    `help:"Image height in pixels" default:"1024"`
	Workers int    `help:"Number of workers scaling the image, 0 for one per CPU" default:"0"`

	Output `embed:""`
}

func (c *PaintCmd) Validate(kctx *kong.Context) error {
	switch {
	case c.Width < 1 || c.Height < 1:
		return fmt.Errorf("invalid image size: %dx%d", c.Width, c.Height)
	case c.Workers < 0 || c.Workers > pipeline.MaxWorkers:
		return fmt.Errorf("invalid worker count %d, should be in [0, %d]", c.Workers, pipeline.MaxWorkers)
	}
	if c.Workers == 0 {
		c.Workers = defaultWorkers()
	}
	return c.Output.validate()
}

func (c *PaintCmd) Run(logger *slog.Logger) error {
	canvas, err := loadCanvas(c.Canvas)
	if err != nil {
		return err
	}

	img, pal, err := paint(canvas, c.Width, c.Height, c.Workers, &c.Output)
	if err != nil {
		return err
	}
	return c.Output.write(logger, img, pal)
}

func paint(canvas *pipeline.Canvas, width, height, workers int, out *Output) (*image.RGBA, *palette.Palette, error) {
	owners := 1
	if len(canvas.Cells) > 0 {
		owners = max(int(slices.Max(canvas.Cells))+1, 1)
	}
	pal, err := out.ownerPalette(owners)
	if err != nil {
		return nil, nil, fmt.Errorf("could not build palette: %w", err)
	}

	var limits dragon.Limits
	if canvas.Width > 0 && canvas.Height > 0 {
		limits = dragon.NewLimits(dragon.Point{}, dragon.Point{X: int64(canvas.Width - 1), Y: int64(canvas.Height - 1)})
	}
	cfg, err := pipeline.NewDrawConfig(limits, 0, width, height, workers, pipeline.DefaultMaxCells)
	if err != nil {
		return nil, nil, err
	}

	img, err := pipeline.RenderImage(canvas, cfg, pal)
	if err != nil {
		return nil, nil, fmt.Errorf("could not scale canvas: %w", err)
	}
	return img, pal, nil
}
