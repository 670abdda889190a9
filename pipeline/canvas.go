package pipeline

import (
	"fmt"
	"sync"

	"dragonizer/parallel"
)

// Unset marks a canvas cell no segment has been drawn into.
const Unset int8 = -1

// Canvas holds one owner id per cell, row-major, with the origin at the
// minimum corner of the curve limits.
type Canvas struct {
	Cells  []int8
	Width  int
	Height int
}

func NewCanvas(width, height int) (*Canvas, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("%w: canvas size %dx%d", ErrInvalidConfig, width, height)
	}

	var cells []int8
	if err := protect(func() { cells = make([]int8, width*height) }); err != nil {
		return nil, fmt.Errorf("%w: canvas of %dx%d cells: %w", ErrAllocation, width, height, err)
	}
	return &Canvas{Cells: cells, Width: width, Height: height}, nil
}

func (c *Canvas) Len() int {
	return len(c.Cells)
}

func (c *Canvas) At(x, y int) int8 {
	return c.Cells[y*c.Width+x]
}

// Fill sets the cells in [lo, hi) to v.
func (c *Canvas) Fill(lo, hi int, v int8) {
	cells := c.Cells[lo:hi]
	for i := range cells {
		cells[i] = v
	}
}

// InitCanvas sets every cell to Unset, splitting the cells into one
// contiguous chunk per worker.
func InitCanvas(c *Canvas, workers int) error {
	if workers < 1 {
		return fmt.Errorf("%w: worker count %d", ErrInvalidConfig, workers)
	}
	return forEachPart(workers, func(i int) {
		initPart(c, i, workers)
	})
}

// initPart resets the cells of chunk part out of parts.
func initPart(c *Canvas, part, parts int) {
	lo, hi := parallel.Chunk(part, c.Len(), parts)
	c.Fill(lo, hi, Unset)
}

// forEachPart runs f for every part on its own goroutine and waits for all
// of them.
func forEachPart(parts int, f func(i int)) error {
	var fail failure
	var wg sync.WaitGroup
	for i := range parts {
		wg.Go(func() {
			if err := protect(func() { f(i) }); err != nil {
				fail.set(fmt.Errorf("%w: worker %d: %w", ErrSynchronization, i, err))
			}
		})
	}
	wg.Wait()
	return fail.get()
}
