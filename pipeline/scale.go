package pipeline

import (
	"fmt"
	"image"

	"dragonizer/palette"
	"dragonizer/parallel"
)

// ScaleRows renders image rows [y1, y2). Each pixel covers a Scale x Scale
// box of canvas cells, shifted by the centering deltas and clipped to the
// canvas. The pixel takes the color of the last drawn cell of its box in
// row-major order, or the background when the box holds none.
func ScaleRows(img *image.RGBA, c *Canvas, cfg DrawConfig, pal *palette.Palette, y1, y2 int) {
	for py := y1; py < y2; py++ {
		sy0 := py*cfg.Scale - cfg.DeltaY
		sy1 := min(sy0+cfg.Scale, c.Height)
		sy0 = max(sy0, 0)

		row := img.Pix[img.PixOffset(0, py):]
		for px := range cfg.ImageWidth {
			sx0 := px*cfg.Scale - cfg.DeltaX
			sx1 := min(sx0+cfg.Scale, c.Width)
			sx0 = max(sx0, 0)

			owner := Unset
			for y := sy0; y < sy1 && sx0 < sx1; y++ {
				for _, v := range c.Cells[y*c.Width+sx0 : y*c.Width+sx1] {
					if v != Unset {
						owner = v
					}
				}
			}

			col := pal.Color(owner)
			p := row[px*4 : px*4+4 : px*4+4]
			p[0], p[1], p[2], p[3] = col.R, col.G, col.B, col.A
		}
	}
}

// RenderImage downsamples the canvas into a new image, one band of rows per
// worker. The canvas is only read.
func RenderImage(c *Canvas, cfg DrawConfig, pal *palette.Palette) (*image.RGBA, error) {
	if cfg.Workers < 1 || cfg.Workers > MaxWorkers {
		return nil, fmt.Errorf("%w: worker count %d", ErrInvalidConfig, cfg.Workers)
	}

	img, err := newImage(cfg)
	if err != nil {
		return nil, err
	}

	err = forEachPart(cfg.Workers, func(i int) {
		scalePart(img, c, cfg, pal, i)
	})
	if err != nil {
		return nil, err
	}
	return img, nil
}

// scalePart renders the band of rows of worker rank.
func scalePart(img *image.RGBA, c *Canvas, cfg DrawConfig, pal *palette.Palette, rank int) {
	y1, y2 := parallel.Chunk(rank, cfg.ImageHeight, cfg.Workers)
	ScaleRows(img, c, cfg, pal, y1, y2)
}

func newImage(cfg DrawConfig) (*image.RGBA, error) {
	var img *image.RGBA
	if err := protect(func() { img = image.NewRGBA(image.Rect(0, 0, cfg.ImageWidth, cfg.ImageHeight)) }); err != nil {
		return nil, fmt.Errorf("%w: image of %dx%d pixels: %w", ErrAllocation, cfg.ImageWidth, cfg.ImageHeight, err)
	}
	return img, nil
}
