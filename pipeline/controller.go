package pipeline

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Phase is a stage of a render. Phases run strictly in order: no worker
// starts a phase before every worker has finished the previous one.
type Phase int32

const (
	PhaseInit Phase = iota
	PhaseDraw
	PhaseScale
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseDraw:
		return "draw"
	case PhaseScale:
		return "scale"
	case PhaseDone:
		return "done"
	}
	return fmt.Sprintf("Phase(%d)", int32(p))
}

// controller tracks the current phase of a render. advance is called once
// per phase boundary, by the last worker through the barrier or by the
// scheduler after a parallel loop returns.
type controller struct {
	scheduler Scheduler
	phase     atomic.Int32
	mark      time.Time
	durations [PhaseDone]time.Duration
}

func newController(s Scheduler) *controller {
	return &controller{scheduler: s, mark: time.Now()}
}

func (c *controller) current() Phase {
	return Phase(c.phase.Load())
}

func (c *controller) advance() {
	from := c.current()
	if from == PhaseDone {
		return
	}

	now := time.Now()
	c.durations[from] = now.Sub(c.mark)
	c.mark = now
	c.phase.Store(int32(from + 1))

	logger().Debug("phase complete", "scheduler", c.scheduler, "phase", from, "duration", c.durations[from])
}
