package pipeline

import (
	"fmt"

	"dragonizer/dragon"
	"dragonizer/parallel"
)

// DrawRange draws the segments in [n1, n2) into c. The range may straddle
// any number of ownership boundaries: it is split so that every call to the
// raw drawing covers one contiguous run tagged with the worker owning it
// under the static partition of [0, cfg.Size). Ownership ranges are disjoint
// and no two segments share a cell, so concurrent calls on disjoint ranges
// never write the same cell.
func DrawRange(c *Canvas, cfg DrawConfig, n1, n2 uint64) {
	for _, s := range parallel.Split(n1, n2, cfg.Size, cfg.Workers) {
		dragon.DrawRaw(s.Start, s.End, c.Cells, c.Width, c.Height, cfg.Limits, int8(s.Owner))
	}
}

// DrawCurve draws the whole curve, one ownership range per worker. The
// canvas must have been initialized.
func DrawCurve(c *Canvas, cfg DrawConfig) error {
	if cfg.Workers < 1 || cfg.Workers > MaxWorkers {
		return fmt.Errorf("%w: worker count %d", ErrInvalidConfig, cfg.Workers)
	}
	return forEachPart(cfg.Workers, func(i int) {
		drawPart(c, cfg, i)
	})
}

// drawPart draws the ownership range of worker rank.
func drawPart(c *Canvas, cfg DrawConfig, rank int) {
	DrawRange(c, cfg, parallel.Bounds(rank, cfg.Size, cfg.Workers), parallel.Bounds(rank+1, cfg.Size, cfg.Workers))
}
