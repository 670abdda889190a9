package pipeline

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dragonizer/dragon"
	"dragonizer/palette"
	"dragonizer/parallel"
)

var schedulers = []Scheduler{Pool, Tasks}

func TestComputeLimitsWorkerInvariant(t *testing.T) {
	for _, size := range []uint64{0, 1, 4, 1000, 12345} {
		want := dragon.LimitOf(0, size).Limits
		for _, s := range schedulers {
			for _, workers := range []int{1, 2, 4, 16, MaxWorkers} {
				t.Run(fmt.Sprintf("%s/size=%d/workers=%d", s, size, workers), func(t *testing.T) {
					got, err := ComputeLimits(size, workers, WithScheduler(s), WithGrain(5))
					require.NoError(t, err)
					assert.Equal(t, want, got)
				})
			}
		}
	}
}

func TestComputeLimitsEmpty(t *testing.T) {
	for _, s := range schedulers {
		lim, err := ComputeLimits(0, 4, WithScheduler(s))
		require.NoError(t, err)
		assert.True(t, lim.Empty())
	}
}

func TestComputeLimitsInvalid(t *testing.T) {
	_, err := ComputeLimits(10, 0)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = ComputeLimits(10, 2, WithScheduler(Scheduler(7)))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewDrawConfig(t *testing.T) {
	lim := dragon.NewLimits(dragon.Point{X: -10, Y: 5}, dragon.Point{X: 89, Y: 54})
	cfg, err := NewDrawConfig(lim, 1000, 30, 30, 4, 0)
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.DragonWidth)
	assert.Equal(t, 50, cfg.DragonHeight)
	assert.Equal(t, 4, cfg.Scale)
	assert.Equal(t, 10, cfg.DeltaX)
	assert.Equal(t, 35, cfg.DeltaY)
	assert.Equal(t, 5000, cfg.CanvasCells())
}

func TestNewDrawConfigEmpty(t *testing.T) {
	cfg, err := NewDrawConfig(dragon.Limits{}, 0, 8, 6, 1, 0)
	require.NoError(t, err)
	assert.Zero(t, cfg.CanvasCells())
	assert.Equal(t, 1, cfg.Scale)
	assert.Equal(t, 4, cfg.DeltaX)
	assert.Equal(t, 3, cfg.DeltaY)
}

func TestNewDrawConfigErrors(t *testing.T) {
	lim := dragon.NewLimits(dragon.Point{}, dragon.Point{X: 999, Y: 999})

	_, err := NewDrawConfig(lim, 10, 0, 10, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewDrawConfig(lim, 10, 10, 10, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewDrawConfig(lim, 10, 10, 10, MaxWorkers+1, 0)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewDrawConfig(lim, 10, 10, 10, 1, 999_999)
	assert.ErrorIs(t, err, ErrAllocation)
	_, err = NewDrawConfig(dragon.Limits{}, 0, 2000, 1000, 1, 1_000_000)
	assert.ErrorIs(t, err, ErrAllocation)
}

func TestInitCanvasIdempotent(t *testing.T) {
	c, err := NewCanvas(37, 11)
	require.NoError(t, err)
	for i := range c.Cells {
		c.Cells[i] = int8(i % 100)
	}

	require.NoError(t, InitCanvas(c, 3))
	for i, v := range c.Cells {
		require.Equal(t, Unset, v, "cell %d", i)
	}

	before := append([]int8(nil), c.Cells...)
	require.NoError(t, InitCanvas(c, 8))
	assert.Equal(t, before, c.Cells)

	assert.ErrorIs(t, InitCanvas(c, 0), ErrInvalidConfig)
}

func TestInitCanvasEmpty(t *testing.T) {
	c, err := NewCanvas(0, 0)
	require.NoError(t, err)
	assert.NoError(t, InitCanvas(c, 4))
}

func TestDrawCurveOwnership(t *testing.T) {
	const size = 3001
	for _, workers := range []int{1, 3, 7} {
		lim := dragon.LimitOf(0, size).Limits
		cfg, err := NewDrawConfig(lim, size, 64, 64, workers, 0)
		require.NoError(t, err)

		c, err := NewCanvas(cfg.DragonWidth, cfg.DragonHeight)
		require.NoError(t, err)
		require.NoError(t, InitCanvas(c, workers))
		require.NoError(t, DrawCurve(c, cfg))

		drawn := 0
		for _, v := range c.Cells {
			if v != Unset {
				drawn++
			}
		}
		assert.Equal(t, size, drawn)

		for n := range uint64(size) {
			cell := dragon.Cell(n)
			got := c.At(int(cell.X-lim.Min.X), int(cell.Y-lim.Min.Y))
			require.Equal(t, int8(parallel.OwnerOf(n, size, workers)), got, "segment %d", n)
		}
	}
}

func TestDrawRangeUnalignedMatchesOwnership(t *testing.T) {
	const size, workers = 1000, 3
	lim := dragon.LimitOf(0, size).Limits
	cfg, err := NewDrawConfig(lim, size, 32, 32, workers, 0)
	require.NoError(t, err)

	aligned, err := NewCanvas(cfg.DragonWidth, cfg.DragonHeight)
	require.NoError(t, err)
	require.NoError(t, InitCanvas(aligned, 1))
	require.NoError(t, DrawCurve(aligned, cfg))

	sliced, err := NewCanvas(cfg.DragonWidth, cfg.DragonHeight)
	require.NoError(t, err)
	require.NoError(t, InitCanvas(sliced, 1))
	// Batches of 77 straddle every ownership boundary at 333 and 666.
	for n := uint64(0); n < size; n += 77 {
		DrawRange(sliced, cfg, n, min(n+77, size))
	}

	assert.Equal(t, aligned.Cells, sliced.Cells)
}

func testPalette(t *testing.T, owners int) *palette.Palette {
	t.Helper()
	colors := make(color.Palette, owners)
	for i := range colors {
		colors[i] = color.RGBA{R: uint8(10 * (i + 1)), A: 0xFF}
	}
	p, err := palette.FromColors(colors, owners)
	require.NoError(t, err)
	p.Background = color.RGBA{A: 0xFF}
	return p
}

func TestScaleRowsLastOwnerWins(t *testing.T) {
	c := &Canvas{
		Width:  4,
		Height: 4,
		Cells: []int8{
			0, 1, -1, -1,
			2, -1, -1, -1,
			-1, -1, -1, -1,
			-1, -1, 1, -1,
		},
	}
	cfg := DrawConfig{
		DragonWidth:  4,
		DragonHeight: 4,
		ImageWidth:   2,
		ImageHeight:  2,
		Scale:        2,
		Workers:      3,
	}
	pal := testPalette(t, 3)
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))

	ScaleRows(img, c, cfg, pal, 0, 2)

	assert.Equal(t, pal.Colors[2], img.RGBAAt(0, 0))
	assert.Equal(t, pal.Background, img.RGBAAt(1, 0))
	assert.Equal(t, pal.Background, img.RGBAAt(0, 1))
	assert.Equal(t, pal.Colors[1], img.RGBAAt(1, 1))
}

func TestScaleRowsClipsOutsideCanvas(t *testing.T) {
	c := &Canvas{Width: 1, Height: 1, Cells: []int8{0}}
	cfg := DrawConfig{DragonWidth: 1, DragonHeight: 1, ImageWidth: 3, ImageHeight: 3, Scale: 1, DeltaX: 1, DeltaY: 1, Workers: 1}
	pal := testPalette(t, 1)

	img, err := RenderImage(c, cfg, pal)
	require.NoError(t, err)
	for y := range 3 {
		for x := range 3 {
			want := pal.Background
			if x == 1 && y == 1 {
				want = pal.Colors[0]
			}
			assert.Equal(t, want, img.RGBAAt(x, y), "pixel (%d,%d)", x, y)
		}
	}
}

func TestRenderEmptyCurve(t *testing.T) {
	for _, s := range schedulers {
		t.Run(s.String(), func(t *testing.T) {
			res, err := Render(0, 16, 8, 4, WithScheduler(s))
			require.NoError(t, err)

			assert.True(t, res.Config.Limits.Empty())
			assert.Zero(t, res.Canvas.Len())
			assert.Equal(t, image.Rect(0, 0, 16, 8), res.Image.Bounds())
			for y := range 8 {
				for x := range 16 {
					require.Equal(t, palette.DefaultBackground, res.Image.RGBAAt(x, y))
				}
			}
		})
	}
}

func TestRenderFourSegments(t *testing.T) {
	for _, s := range schedulers {
		t.Run(s.String(), func(t *testing.T) {
			res, err := Render(4, 8, 8, 2, WithScheduler(s), WithGrain(3))
			require.NoError(t, err)

			cfg := res.Config
			assert.Equal(t, dragon.NewLimits(dragon.Point{X: 0, Y: 0}, dragon.Point{X: 2, Y: 3}), cfg.Limits)
			assert.Equal(t, 3, cfg.DragonWidth)
			assert.Equal(t, 4, cfg.DragonHeight)
			assert.Equal(t, 1, cfg.Scale)
			assert.Equal(t, 2, cfg.DeltaX)
			assert.Equal(t, 2, cfg.DeltaY)

			assert.Equal(t, []int8{
				-1, 0, -1,
				-1, -1, 0,
				-1, 1, -1,
				1, -1, -1,
			}, res.Canvas.Cells)

			owners := map[image.Point]int{
				{X: 3, Y: 2}: 0,
				{X: 4, Y: 3}: 0,
				{X: 3, Y: 4}: 1,
				{X: 2, Y: 5}: 1,
			}
			for y := range 8 {
				for x := range 8 {
					want := res.Palette.Background
					if owner, ok := owners[image.Pt(x, y)]; ok {
						want = res.Palette.Colors[owner]
					}
					assert.Equal(t, want, res.Image.RGBAAt(x, y), "pixel (%d,%d)", x, y)
				}
			}
		})
	}
}

func mask(img *image.RGBA, bg color.RGBA) []bool {
	b := img.Bounds()
	m := make([]bool, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			m = append(m, img.RGBAAt(x, y) != bg)
		}
	}
	return m
}

func TestRenderWorkerCountInvariant(t *testing.T) {
	// Owner ids, and so colors, depend on the worker count; the set of
	// drawn pixels does not.
	const size = 20000
	ref, err := Render(size, 64, 48, 1)
	require.NoError(t, err)
	refMask := mask(ref.Image, ref.Palette.Background)

	for _, s := range schedulers {
		for _, workers := range []int{2, 8, 16} {
			t.Run(fmt.Sprintf("%s/workers=%d", s, workers), func(t *testing.T) {
				res, err := Render(size, 64, 48, workers, WithScheduler(s), WithGrain(13))
				require.NoError(t, err)

				got := res.Config
				want := ref.Config
				want.Workers = workers
				assert.Equal(t, want, got)
				assert.Equal(t, refMask, mask(res.Image, res.Palette.Background))

				for i, v := range res.Canvas.Cells {
					require.Equal(t, ref.Canvas.Cells[i] == Unset, v == Unset, "cell %d", i)
					require.Less(t, v, int8(workers))
				}
			})
		}
	}
}

func TestRenderSchedulersAgree(t *testing.T) {
	const size, workers = 7777, 5
	pool, err := Render(size, 50, 50, workers, WithScheduler(Pool))
	require.NoError(t, err)

	for _, grain := range []int{1, 3, 64, 1000} {
		tasks, err := Render(size, 50, 50, workers, WithScheduler(Tasks), WithGrain(grain))
		require.NoError(t, err)
		assert.Equal(t, pool.Canvas.Cells, tasks.Canvas.Cells, "grain %d", grain)
		assert.Equal(t, pool.Image.Pix, tasks.Image.Pix, "grain %d", grain)
	}
}

func TestRenderTimings(t *testing.T) {
	res, err := Render(5000, 32, 32, 4)
	require.NoError(t, err)
	assert.Equal(t, res.Timings.Limits+res.Timings.Init+res.Timings.Draw+res.Timings.Scale, res.Timings.Total())
	assert.Positive(t, res.Timings.Total())
}

func TestRenderCustomPalette(t *testing.T) {
	pal := testPalette(t, 4)
	res, err := Render(100, 16, 16, 4, WithPalette(pal))
	require.NoError(t, err)
	assert.Same(t, pal, res.Palette)

	_, err = Render(100, 16, 16, 5, WithPalette(pal))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRenderInvalid(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		workers       int
		opts          []Option
		want          error
	}{
		{"no workers", 8, 8, 0, nil, ErrInvalidConfig},
		{"too many workers", 8, 8, MaxWorkers + 1, nil, ErrInvalidConfig},
		{"no width", 0, 8, 2, nil, ErrInvalidConfig},
		{"no height", 8, 0, 2, nil, ErrInvalidConfig},
		{"unknown scheduler", 8, 8, 2, []Option{WithScheduler(Scheduler(9))}, ErrInvalidConfig},
		{"canvas too large", 8, 8, 2, []Option{WithMaxCells(100)}, ErrAllocation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Render(1000, tt.width, tt.height, tt.workers, tt.opts...)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, res)
		})
	}
}

// brokenJob returns a job whose limits only fit the first four segments, so
// that drawing panics.
func brokenJob(t *testing.T, s Scheduler, workers int) *job {
	t.Helper()
	const size = 500
	lim := dragon.LimitOf(0, 4).Limits
	cfg, err := NewDrawConfig(lim, size, 16, 16, workers, 0)
	require.NoError(t, err)
	c, err := NewCanvas(cfg.DragonWidth, cfg.DragonHeight)
	require.NoError(t, err)

	return &job{
		cfg:     cfg,
		canvas:  c,
		image:   image.NewRGBA(image.Rect(0, 0, 16, 16)),
		palette: testPalette(t, workers),
		ctl:     newController(s),
	}
}

func TestWorkerFailureAborts(t *testing.T) {
	for _, s := range schedulers {
		for _, workers := range []int{1, 4} {
			t.Run(fmt.Sprintf("%s/workers=%d", s, workers), func(t *testing.T) {
				j := brokenJob(t, s, workers)

				var err error
				switch s {
				case Pool:
					err = runPool(j)
				case Tasks:
					err = runTasks(j, 8)
				}

				require.ErrorIs(t, err, ErrSynchronization)
				var oob *dragon.OutOfBoundsError
				assert.True(t, errors.As(err, &oob), "error %v", err)
				assert.Equal(t, PhaseDraw, j.ctl.current())
			})
		}
	}
}

func TestControllerPhases(t *testing.T) {
	for _, s := range schedulers {
		lim := dragon.LimitOf(0, 100).Limits
		cfg, err := NewDrawConfig(lim, 100, 8, 8, 3, 0)
		require.NoError(t, err)
		c, err := NewCanvas(cfg.DragonWidth, cfg.DragonHeight)
		require.NoError(t, err)
		j := &job{cfg: cfg, canvas: c, image: image.NewRGBA(image.Rect(0, 0, 8, 8)), palette: testPalette(t, 3), ctl: newController(s)}

		assert.Equal(t, PhaseInit, j.ctl.current())
		switch s {
		case Pool:
			require.NoError(t, runPool(j))
		case Tasks:
			require.NoError(t, runTasks(j, 4))
		}
		assert.Equal(t, PhaseDone, j.ctl.current())

		j.ctl.advance()
		assert.Equal(t, PhaseDone, j.ctl.current())
	}
}

func TestParseScheduler(t *testing.T) {
	s, err := ParseScheduler("Tasks")
	require.NoError(t, err)
	assert.Equal(t, Tasks, s)
	assert.Equal(t, "pool", Pool.String())

	_, err = ParseScheduler("fibers")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestPanicErrorUnwrap(t *testing.T) {
	err := protect(func() { panic("boom") })
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "boom", pe.Value)
	assert.Nil(t, pe.Unwrap())
	assert.EqualError(t, err, "worker panic: boom")
}

func runJob(t *testing.T, j *job, batches int) {
	t.Helper()
	j.ctl = newController(j.ctl.scheduler)
	switch j.ctl.scheduler {
	case Pool:
		require.NoError(t, runPool(j))
	case Tasks:
		require.NoError(t, runTasks(j, batches))
	}
}

func TestSchedulerRerunIsIdempotent(t *testing.T) {
	const size, workers = 2000, 3
	lim := dragon.LimitOf(0, size).Limits
	cfg, err := NewDrawConfig(lim, size, 24, 24, workers, 0)
	require.NoError(t, err)

	want, err := NewCanvas(cfg.DragonWidth, cfg.DragonHeight)
	require.NoError(t, err)
	require.NoError(t, InitCanvas(want, workers))
	require.NoError(t, DrawCurve(want, cfg))
	wantImg, err := RenderImage(want, cfg, testPalette(t, workers))
	require.NoError(t, err)

	for _, s := range schedulers {
		t.Run(s.String(), func(t *testing.T) {
			c, err := NewCanvas(cfg.DragonWidth, cfg.DragonHeight)
			require.NoError(t, err)
			for i := range c.Cells {
				c.Cells[i] = int8(i % workers)
			}
			j := &job{cfg: cfg, canvas: c, image: image.NewRGBA(image.Rect(0, 0, 24, 24)), palette: testPalette(t, workers), ctl: newController(s)}

			runJob(t, j, 5)
			assert.Equal(t, want.Cells, j.canvas.Cells)
			assert.Equal(t, wantImg.Pix, j.image.Pix)

			runJob(t, j, 7)
			assert.Equal(t, want.Cells, j.canvas.Cells)
			assert.Equal(t, wantImg.Pix, j.image.Pix)
		})
	}
}

func TestTaskRangeBoundedByWorkers(t *testing.T) {
	for _, workers := range []int{1, 2, 3} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			var active, peak atomic.Int32
			var fail failure
			taskRange(PhaseDraw, 1000, 64, newGate(workers), &fail, func(low, high int) {
				n := active.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				active.Add(-1)
			})

			require.NoError(t, fail.get())
			assert.LessOrEqual(t, peak.Load(), int32(workers))
			assert.Positive(t, peak.Load())
		})
	}
}

func TestLimitsTasksSingleWorker(t *testing.T) {
	one, err := limitsTasks(5000, 1, 64)
	require.NoError(t, err)
	many, err := limitsTasks(5000, 8, 64)
	require.NoError(t, err)
	assert.Equal(t, dragon.LimitOf(0, 5000), one)
	assert.Equal(t, one, many)
}
