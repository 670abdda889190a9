// Package dragon computes the geometry of the Heighway dragon curve.
//
// The curve is a walk of unit steps on the integer lattice. Segment n goes
// from vertex Position(n) to Position(n+1) in direction Heading(n). Each
// segment occupies one cell, Cell(n), located at the segment midpoint in
// doubled coordinates. The dragon never traverses an edge twice, so distinct
// segments always occupy distinct cells.
package dragon

import "math/bits"

type Point struct {
	X, Y int64
}

func (p Point) Add(q Point) Point {
	return Point{p.X + q.X, p.Y + q.Y}
}

// mul multiplies p and q as Gaussian integers (X real, Y imaginary).
func (p Point) mul(q Point) Point {
	return Point{p.X*q.X - p.Y*q.Y, p.X*q.Y + p.Y*q.X}
}

var steps = [4]Point{{1, 0}, {0, 1}, {-1, 0}, {0, -1}}

// Heading returns the direction of segment n: 0 is +x, 1 is +y, 2 is -x and
// 3 is -y. The count of set bits in the Gray code of n changes by exactly one
// per step, +1 on a left turn and -1 on a right turn.
func Heading(n uint64) int {
	return bits.OnesCount64(n^(n>>1)) & 3
}

// Step returns the unit vector for a heading.
func Step(h int) Point {
	return steps[h&3]
}

// Position returns vertex n of the curve, with Position(0) at the origin.
//
// It runs in O(log n) using the unfolding identity
// P(2^m + j) = (1+i)^(m+1) - i*P(2^m - j), which maps n to a strictly
// shorter bit length on every iteration.
func Position(n uint64) Point {
	var acc Point
	coef := Point{1, 0}
	for n != 0 {
		m := bits.Len64(n) - 1
		if n == 1<<m {
			return acc.Add(coef.mul(onePlusIPow(m)))
		}
		j := n - 1<<m
		acc = acc.Add(coef.mul(onePlusIPow(m + 1)))
		coef = coef.mul(Point{0, -1})
		n = 1<<m - j
	}
	return acc
}

func onePlusIPow(m int) Point {
	p := Point{1, 0}
	for range m {
		p = p.mul(Point{1, 1})
	}
	return p
}

func cellAt(pos Point, h int) Point {
	s := Step(h)
	return Point{2*pos.X + s.X, 2*pos.Y + s.Y}
}

// Cell returns the cell occupied by segment n.
func Cell(n uint64) Point {
	return cellAt(Position(n), Heading(n))
}

// walk calls f for every segment in [start, end) with the segment's cell.
// It returns the vertex reached after the last segment.
func walk(start, end uint64, f func(n uint64, c Point)) Point {
	pos := Position(start)
	for n := start; n < end; n++ {
		h := Heading(n)
		f(n, cellAt(pos, h))
		pos = pos.Add(Step(h))
	}
	return pos
}
