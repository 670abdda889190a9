package dragon

import "fmt"

// Limits is an inclusive bounding box over cells. The zero value is the empty
// box, which is the identity of Union.
type Limits struct {
	Min, Max Point
	valid    bool
}

func NewLimits(min, max Point) Limits {
	return Limits{Min: min, Max: max, valid: true}
}

func (l Limits) Empty() bool {
	return !l.valid
}

func (l Limits) Width() int64 {
	if !l.valid {
		return 0
	}
	return l.Max.X - l.Min.X + 1
}

func (l Limits) Height() int64 {
	if !l.valid {
		return 0
	}
	return l.Max.Y - l.Min.Y + 1
}

// Include grows l to contain p.
func (l Limits) Include(p Point) Limits {
	if !l.valid {
		return NewLimits(p, p)
	}
	l.Min.X = min(l.Min.X, p.X)
	l.Min.Y = min(l.Min.Y, p.Y)
	l.Max.X = max(l.Max.X, p.X)
	l.Max.Y = max(l.Max.Y, p.Y)
	return l
}

func (l Limits) Union(o Limits) Limits {
	switch {
	case !o.valid:
		return l
	case !l.valid:
		return o
	}
	return l.Include(o.Min).Include(o.Max)
}

func (l Limits) Contains(p Point) bool {
	return l.valid && p.X >= l.Min.X && p.X <= l.Max.X && p.Y >= l.Min.Y && p.Y <= l.Max.Y
}

func (l Limits) String() string {
	if !l.valid {
		return "empty"
	}
	return fmt.Sprintf("(%d,%d)-(%d,%d)", l.Min.X, l.Min.Y, l.Max.X, l.Max.Y)
}

// State is the turtle state needed to resume the walk after a piece: the
// index of the next segment and the vertex it starts from.
type State struct {
	Index uint64
	Pos   Point
}

// Piece is the partial result for a contiguous range of segments.
type Piece struct {
	Limits Limits
	State  State
}

// LimitOf walks the segments in [start, end) and returns their bounding box
// together with the state reached after the last one.
func LimitOf(start, end uint64) Piece {
	if end < start {
		end = start
	}

	var lim Limits
	pos := walk(start, end, func(_ uint64, c Point) {
		lim = lim.Include(c)
	})

	return Piece{
		Limits: lim,
		State:  State{Index: end, Pos: pos},
	}
}

// Merge combines two pieces. The limits are unioned and the state furthest
// along the curve is kept, so Merge is associative and commutative with the
// zero Piece as identity.
func Merge(a, b Piece) Piece {
	st := a.State
	if b.State.Index > st.Index {
		st = b.State
	}
	return Piece{
		Limits: a.Limits.Union(b.Limits),
		State:  st,
	}
}
