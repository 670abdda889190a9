package parallel

import "math/bits"

// Bounds returns the first index of part i when [0, size) is divided into
// parts contiguous ranges: floor(i*size/parts). Part i covers
// [Bounds(i), Bounds(i+1)); the last part absorbs the remainder.
func Bounds(i int, size uint64, parts int) uint64 {
	if parts < 1 {
		return 0
	}
	hi, lo := bits.Mul64(uint64(i), size)
	q, _ := bits.Div64(hi, lo, uint64(parts))
	return q
}

// Chunk returns the half-open range of part i of [0, total).
func Chunk(i, total, parts int) (int, int) {
	return int(Bounds(i, uint64(total), parts)), int(Bounds(i+1, uint64(total), parts))
}

// OwnerOf returns the part that owns index n of [0, size), which is the
// largest i with Bounds(i) <= n. Indexes past the end belong to the last part.
func OwnerOf(n, size uint64, parts int) int {
	if size == 0 || parts < 2 {
		return 0
	}
	if n >= size {
		return parts - 1
	}

	// floor(n*parts/size) never overshoots, but undershoots by one or more
	// when size is not a multiple of parts, or when parts exceed size and
	// some ranges are empty.
	hi, lo := bits.Mul64(n, uint64(parts))
	q, _ := bits.Div64(hi, lo, size)
	i := int(q)
	for i+1 < parts && Bounds(i+1, size, parts) <= n {
		i++
	}
	return i
}

// Span is a contiguous range of indexes that all belong to Owner.
type Span struct {
	Start, End uint64
	Owner      int
}

func (s Span) Len() uint64 {
	return s.End - s.Start
}

// Split cuts [n1, n2) at every ownership boundary it straddles. The returned
// spans are in order, non-empty, and exactly cover [n1, n2); each is tagged
// with the part that owns it under the Bounds partition of [0, size).
func Split(n1, n2, size uint64, parts int) []Span {
	if n2 > size {
		n2 = size
	}
	if n1 >= n2 {
		return nil
	}

	startOwner := OwnerOf(n1, size, parts)
	endOwner := OwnerOf(n2-1, size, parts)
	if startOwner == endOwner {
		return []Span{{Start: n1, End: n2, Owner: startOwner}}
	}

	spans := make([]Span, 0, endOwner-startOwner+1)
	spans = append(spans, Span{Start: n1, End: Bounds(startOwner+1, size, parts), Owner: startOwner})
	for i := startOwner + 1; i < endOwner; i++ {
		start, end := Bounds(i, size, parts), Bounds(i+1, size, parts)
		if start == end {
			continue
		}
		spans = append(spans, Span{Start: start, End: end, Owner: i})
	}
	spans = append(spans, Span{Start: Bounds(endOwner, size, parts), End: n2, Owner: endOwner})

	return spans
}
