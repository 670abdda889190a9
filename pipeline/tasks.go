package pipeline

import (
	"fmt"

	"dragonizer/dragon"

	pargo "github.com/exascience/pargo/parallel"
)

// batchCount clamps the requested number of batches to the range length.
func batchCount(batches, n int) int {
	return max(1, min(batches, n))
}

// gate lets at most cap(g) batch bodies run at once, which bounds a tasks
// render to its worker count.
type gate chan struct{}

func newGate(workers int) gate {
	return make(gate, workers)
}

func (g gate) run(f func()) {
	g <- struct{}{}
	defer func() { <-g }()
	f()
}

// limitsTasks reduces the pieces of a recursively split range pairwise, with
// at most workers batches computed at once.
func limitsTasks(size uint64, workers, batches int) (piece dragon.Piece, err error) {
	if err := checkTaskRange(size); err != nil {
		return dragon.Piece{}, err
	}

	g := newGate(workers)
	err = protect(func() {
		res := pargo.RangeReduce(0, int(size), batchCount(batches, int(size)),
			func(low, high int) any {
				var p dragon.Piece
				g.run(func() { p = dragon.LimitOf(uint64(low), uint64(high)) })
				return p
			},
			func(x, y any) any {
				return dragon.Merge(x.(dragon.Piece), y.(dragon.Piece))
			})
		piece = res.(dragon.Piece)
	})
	if err != nil {
		return dragon.Piece{}, fmt.Errorf("%w: limits: %w", ErrSynchronization, err)
	}
	return piece, nil
}

// runTasks renders each phase as an independent parallel loop. A phase is
// only submitted once the loop of the previous one has returned, which
// joins all of its batches.
//
// Batches are cut by the loop without regard to ownership ranges, so the
// draw phase derives owner ids from the segment indexes it is handed.
func runTasks(j *job, batches int) error {
	g := newGate(j.cfg.Workers)
	var fail failure
	phases := [...]struct {
		n   int
		run func(low, high int)
	}{
		PhaseInit: {j.canvas.Len(), func(low, high int) {
			j.canvas.Fill(low, high, Unset)
		}},
		PhaseDraw: {int(j.cfg.Size), func(low, high int) {
			DrawRange(j.canvas, j.cfg, uint64(low), uint64(high))
		}},
		PhaseScale: {j.cfg.ImageHeight, func(low, high int) {
			ScaleRows(j.image, j.canvas, j.cfg, j.palette, low, high)
		}},
	}

	for i, p := range phases {
		phase := Phase(i)
		taskRange(phase, p.n, batches, g, &fail, p.run)
		if err := fail.get(); err != nil {
			logger().Error("phase failed", "phase", phase, "error", err)
			return err
		}
		j.ctl.advance()
	}
	return nil
}

func taskRange(phase Phase, n, batches int, g gate, fail *failure, f func(low, high int)) {
	err := protect(func() {
		pargo.Range(0, n, batchCount(batches, n), func(low, high int) {
			if fail.get() != nil {
				return
			}
			var err error
			g.run(func() { err = protect(func() { f(low, high) }) })
			if err != nil {
				fail.set(fmt.Errorf("%w: %s phase, batch [%d,%d): %w", ErrSynchronization, phase, low, high, err))
			}
		})
	})
	if err != nil {
		fail.set(fmt.Errorf("%w: %s phase: %w", ErrSynchronization, phase, err))
	}
}
