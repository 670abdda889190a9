package parallel

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

var ErrClosed = errors.New("worker pool is closed")

type (
	WorkerFunc func(func()) error
	WaitFunc   func(done bool)
	CancelFunc func()
)

// Pool runs submitted functions on a fixed set of workers. With a single
// worker, functions run inline on the caller's goroutine.
type Pool struct {
	wg      sync.WaitGroup
	workers int
	closed  atomic.Bool
	Do      WorkerFunc
	Wait    WaitFunc
	Cancel  CancelFunc
}

func Start(numWorkers int) *Pool {
	if numWorkers < 1 {
		numWorkers = runtime.GOMAXPROCS(0)
	}

	pool := &Pool{workers: numWorkers}
	pool.Cancel = func() { pool.closed.Store(true) }
	pool.Wait = func(done bool) {
		if done {
			pool.Cancel()
		}
	}
	pool.Do = func(f func()) error {
		if pool.closed.Load() {
			return ErrClosed
		}
		f()
		return nil
	}

	if numWorkers > 1 {
		workChan := make(chan func(), numWorkers)
		// Held for reading while sending so that Cancel never closes the
		// channel under a pending send.
		var sendMu sync.RWMutex

		for range numWorkers {
			pool.wg.Go(func() {
				for f := range workChan {
					f()
				}
			})
		}

		pool.Do = func(f func()) error {
			sendMu.RLock()
			defer sendMu.RUnlock()
			if pool.closed.Load() {
				return ErrClosed
			}
			workChan <- f
			return nil
		}

		pool.Wait = func(done bool) {
			if done {
				pool.Cancel()
			}
			pool.wg.Wait()
		}
		pool.Cancel = sync.OnceFunc(func() {
			sendMu.Lock()
			defer sendMu.Unlock()
			pool.closed.Store(true)
			close(workChan)
		})
	}

	return pool
}

// Workers returns the number of functions the pool runs concurrently.
func (p *Pool) Workers() int {
	return p.workers
}
