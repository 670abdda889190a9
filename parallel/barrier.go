package parallel

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrBroken  = errors.New("barrier is broken")
	ErrParties = errors.New("barrier needs at least one party")
)

// Barrier is a reusable synchronization point for a fixed number of parties.
// Every call to Wait blocks until all parties have called it, then all of
// them proceed and the barrier resets for the next phase.
//
// The optional action runs on the last party to arrive, before any party is
// released.
//
// A barrier can be broken with Break. Pending and future calls to Wait then
// return an error wrapping ErrBroken, so that the remaining parties do not
// block forever on one that has failed.
type Barrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	parties    int
	waiting    int
	generation uint64
	action     func()
	err        error
}

func NewBarrier(parties int, action func()) (*Barrier, error) {
	if parties < 1 {
		return nil, fmt.Errorf("%w: %d", ErrParties, parties)
	}
	b := &Barrier{parties: parties, action: action}
	b.cond = sync.NewCond(&b.mu)
	return b, nil
}

func (b *Barrier) Parties() int {
	return b.parties
}

func (b *Barrier) Wait() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.err != nil {
		return b.err
	}

	gen := b.generation
	b.waiting++
	if b.waiting == b.parties {
		if b.action != nil {
			b.action()
		}
		b.waiting = 0
		b.generation++
		b.cond.Broadcast()
		return nil
	}

	for gen == b.generation && b.err == nil {
		b.cond.Wait()
	}
	if gen == b.generation {
		return b.err
	}
	return nil
}

// Break releases every waiting party with an error wrapping ErrBroken and
// cause. Only the first cause is kept.
func (b *Barrier) Break(cause error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.err == nil {
		b.err = fmt.Errorf("%w: %w", ErrBroken, cause)
	}
	b.cond.Broadcast()
}

// Err returns the error the barrier was broken with, if any.
func (b *Barrier) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}
