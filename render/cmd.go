// Package render implements the command line front end: it runs renders,
// writes the resulting images and canvases, and benchmarks the schedulers.
package render

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"runtime"

	"github.com/alecthomas/kong"

	"dragonizer/palette"
	"dragonizer/pipeline"
)

// Output holds the flags shared by the commands that write an image.
type Output struct {
	Output        string `help:"Output image path" short:"o" default:"dragon.png"`
	Format        string `help:"Output image format, derived from the output extension when auto" enum:"auto,png,gif,jpeg,bmp,tiff,qoi" default:"auto"`
	Paletted      bool   `help:"Store the image with an indexed palette where the format allows it" default:"false"`
	Background    string `help:"Background color as #RGB, #RGBA, #RRGGBB or #RRGGBBAA" group:"palette"`
	Palette       string `help:"PAL file in RIFF format with the owner colors" group:"palette"`
	ExportPalette string `help:"Write the owner colors used by the render to this PAL file" group:"palette"`

	BackgroundColor color.Color   `kong:"-"`
	OwnerColors     color.Palette `kong:"-"`
}

func (o *Output) validate() error {
	if o.Format == "auto" {
		format, err := formatOf(o.Output)
		if err != nil {
			return err
		}
		o.Format = format
	}

	if o.Background != "" {
		c, err := parseHexToColor(o.Background)
		if err != nil {
			return err
		}
		o.BackgroundColor = c
	}

	if o.Palette != "" {
		pal, err := palette.Load(o.Palette)
		if err != nil {
			return err
		}
		o.OwnerColors = pal
	}

	return nil
}

// ownerPalette returns the owner colors for a render with the given owner count.
func (o *Output) ownerPalette(owners int) (*palette.Palette, error) {
	var pal *palette.Palette
	var err error
	if o.OwnerColors != nil {
		pal, err = palette.FromColors(o.OwnerColors, owners)
	} else {
		pal, err = palette.New(owners)
	}
	if err != nil {
		return nil, err
	}
	if o.BackgroundColor != nil {
		pal.Background = color.RGBAModel.Convert(o.BackgroundColor).(color.RGBA)
	}
	return pal, nil
}

// Engine holds the flags selecting how a render is parallelized.
type Engine struct {
	Workers   int    `help:"Number of workers, 0 for one per CPU" default:"0"`
	Scheduler string `help:"Scheduling model" enum:"pool,tasks" default:"pool"`
	Grain     int    `help:"Batches per phase for the tasks scheduler, 0 for four per worker" default:"0"`

	SchedulerKind pipeline.Scheduler `kong:"-"`
}

func (e *Engine) validate() error {
	switch {
	case e.Workers < 0 || e.Workers > pipeline.MaxWorkers:
		return fmt.Errorf("invalid worker count %d, should be in [0, %d]", e.Workers, pipeline.MaxWorkers)
	case e.Grain < 0:
		return fmt.Errorf("invalid grain: %d", e.Grain)
	}
	if e.Workers == 0 {
		e.Workers = defaultWorkers()
	}

	s, err := pipeline.ParseScheduler(e.Scheduler)
	if err != nil {
		return err
	}
	e.SchedulerKind = s
	return nil
}

func (e *Engine) options() []pipeline.Option {
	return []pipeline.Option{
		pipeline.WithScheduler(e.SchedulerKind),
		pipeline.WithGrain(e.Grain),
	}
}

func defaultWorkers() int {
	return min(runtime.GOMAXPROCS(0), pipeline.MaxWorkers)
}

type CLICmd struct {
	Size   uint64 `help:"Number of curve segments to draw" default:"1048576"`
	Width  int    `help:"Image width in pixels" default:"1024"`
	Height int    `help:"Image height in pixels" default:"1024"`
	Canvas string `help:"Write the zstd compressed canvas of owner ids to this file"`

	Engine `embed:""`
	Output `embed:""`
}

func (c *CLICmd) Validate(kctx *kong.Context) error {
	switch {
	case c.Width < 1:
		return fmt.Errorf("invalid image width: %d", c.Width)
	case c.Height < 1:
		return fmt.Errorf("invalid image height: %d", c.Height)
	}
	if err := c.Engine.validate(); err != nil {
		return err
	}
	return c.Output.validate()
}

func (c *CLICmd) Run(logger *slog.Logger) error {
	pal, err := c.Output.ownerPalette(c.Workers)
	if err != nil {
		return fmt.Errorf("could not build palette: %w", err)
	}

	opts := append(c.Engine.options(), pipeline.WithPalette(pal))
	res, err := pipeline.Render(c.Size, c.Width, c.Height, c.Workers, opts...)
	if err != nil {
		return fmt.Errorf("could not render %d segments: %w", c.Size, err)
	}

	logger.Info("timings",
		"limits", res.Timings.Limits,
		"init", res.Timings.Init,
		"draw", res.Timings.Draw,
		"scale", res.Timings.Scale,
		"total", res.Timings.Total(),
	)

	if c.Canvas != "" {
		if err := saveCanvas(c.Canvas, res.Canvas); err != nil {
			return err
		}
		logger.Info("canvas saved", "file", c.Canvas, "width", res.Canvas.Width, "height", res.Canvas.Height)
	}

	return c.Output.write(logger, res.Image, res.Palette)
}

func (o *Output) write(logger *slog.Logger, img image.Image, pal *palette.Palette) error {
	if o.ExportPalette != "" {
		if err := pal.Save(o.ExportPalette); err != nil {
			return err
		}
		logger.Info("palette saved", "file", o.ExportPalette, "colors", pal.Len())
	}

	if err := save(img, pal, o.Format, o.Output, o.Paletted); err != nil {
		return err
	}
	logger.Info("image saved", "file", o.Output, "format", o.Format, "size", img.Bounds().Size())
	return nil
}
