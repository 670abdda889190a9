package pipeline

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
)

var (
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrAllocation      = errors.New("allocation failure")
	ErrWorkerSpawn     = errors.New("could not start worker")
	ErrSynchronization = errors.New("synchronization failure")
)

// PanicError is a panic recovered from a worker.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("worker panic: %v", e.Value)
}

// Unwrap exposes the panic value when it is an error, such as the
// out-of-bounds errors raised by the curve drawing.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// protect runs f and turns a panic into a *PanicError.
func protect(f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	f()
	return nil
}

// failure keeps the first error reported by any worker.
type failure struct {
	mu  sync.Mutex
	err error
}

func (f *failure) set(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err == nil {
		f.err = err
	}
}

func (f *failure) get() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}
