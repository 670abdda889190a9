package dragon

import "fmt"

// DrawRaw writes owner into the cell of every segment in [start, end).
// cells is a row-major buffer of width*height cells whose origin is
// limits.Min. A segment outside the buffer panics with *OutOfBoundsError.
func DrawRaw(start, end uint64, cells []int8, width, height int, limits Limits, owner int8) {
	if end <= start {
		return
	}

	ox, oy := limits.Min.X, limits.Min.Y
	w, h := int64(width), int64(height)
	walk(start, end, func(n uint64, c Point) {
		x, y := c.X-ox, c.Y-oy
		if x < 0 || x >= w || y < 0 || y >= h {
			panic(&OutOfBoundsError{Segment: n, Cell: c, Limits: limits})
		}
		cells[y*w+x] = owner
	})
}

type OutOfBoundsError struct {
	Segment uint64
	Cell    Point
	Limits  Limits
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("segment %d at cell (%d,%d) is outside canvas %s", e.Segment, e.Cell.X, e.Cell.Y, e.Limits)
}
