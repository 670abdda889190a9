package pipeline

import (
	"fmt"

	"dragonizer/dragon"
	"dragonizer/parallel"
)

// limitsPool computes one piece per rank on a fixed pool and folds them in
// rank order.
func limitsPool(size uint64, workers int) (dragon.Piece, error) {
	pieces := make([]dragon.Piece, workers)
	pool := parallel.Start(workers)

	var fail failure
	for rank := range workers {
		err := pool.Do(func() {
			err := protect(func() {
				pieces[rank] = dragon.LimitOf(parallel.Bounds(rank, size, workers), parallel.Bounds(rank+1, size, workers))
			})
			if err != nil {
				fail.set(fmt.Errorf("%w: limits, worker %d: %w", ErrSynchronization, rank, err))
			}
		})
		if err != nil {
			fail.set(fmt.Errorf("%w: limits, worker %d: %w", ErrWorkerSpawn, rank, err))
			break
		}
	}
	pool.Wait(true)

	if err := fail.get(); err != nil {
		return dragon.Piece{}, err
	}

	var master dragon.Piece
	for _, p := range pieces {
		master = dragon.Merge(master, p)
	}
	return master, nil
}

// runPool renders with one worker per rank. Each rank works on the part of
// every phase derived from its rank and meets the others at a barrier after
// each phase.
func runPool(j *job) error {
	workers := j.cfg.Workers

	barrier, err := parallel.NewBarrier(workers, j.ctl.advance)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSynchronization, err)
	}

	pool := parallel.Start(workers)
	var fail failure
	for rank := range workers {
		if err := pool.Do(func() { j.runRank(rank, barrier, &fail) }); err != nil {
			err = fmt.Errorf("%w: worker %d of %d: %w", ErrWorkerSpawn, rank, barrier.Parties(), err)
			fail.set(err)
			barrier.Break(err)
			break
		}
	}
	pool.Wait(true)

	return fail.get()
}

func (j *job) runRank(rank int, barrier *parallel.Barrier, fail *failure) {
	workers := j.cfg.Workers
	phases := [...]func(){
		PhaseInit:  func() { initPart(j.canvas, rank, workers) },
		PhaseDraw:  func() { drawPart(j.canvas, j.cfg, rank) },
		PhaseScale: func() { scalePart(j.image, j.canvas, j.cfg, j.palette, rank) },
	}

	for i, run := range phases {
		phase := Phase(i)
		if err := protect(run); err != nil {
			err = fmt.Errorf("%w: %s phase, worker %d: %w", ErrSynchronization, phase, rank, err)
			logger().Error("worker failed", "phase", phase, "worker", rank, "error", err)
			fail.set(err)
			barrier.Break(err)
			return
		}
		if err := barrier.Wait(); err != nil {
			fail.set(fmt.Errorf("%w: %s phase, worker %d: %w", ErrSynchronization, phase, rank, err))
			return
		}
	}
}
