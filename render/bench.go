package render

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/alecthomas/kong"

	"dragonizer/pipeline"
)

// BenchCmd renders the same curve repeatedly for every combination of
// scheduler and worker count, and reports per phase timings.
type BenchCmd struct {
	Size       uint64   `help:"Number of curve segments" default:"4194304"`
	Width      int      `help:"Image width in pixels" default:"1024"`
	Height     int      `help:"Image height in pixels" default:"1024"`
	Workers    []int    `help:"Worker counts to measure" default:"1,2,4,8"`
	Schedulers []string `help:"Schedulers to measure" default:"pool,tasks"`
	Grain      int      `help:"Batches per phase for the tasks scheduler, 0 for four per worker" default:"0"`
	Repeat     int      `help:"Renders per measurement" default:"5"`
}

func (c *BenchCmd) Validate(kctx *kong.Context) error {
	switch {
	case c.Width < 1 || c.Height < 1:
		return fmt.Errorf("invalid image size: %dx%d", c.Width, c.Height)
	case c.Repeat < 1:
		return fmt.Errorf("invalid repeat count: %d", c.Repeat)
	case c.Grain < 0:
		return fmt.Errorf("invalid grain: %d", c.Grain)
	case len(c.Workers) == 0:
		return fmt.Errorf("no worker counts given")
	}
	for _, w := range c.Workers {
		if w < 1 || w > pipeline.MaxWorkers {
			return fmt.Errorf("invalid worker count %d, should be in [1, %d]", w, pipeline.MaxWorkers)
		}
	}
	for _, s := range c.Schedulers {
		if _, err := pipeline.ParseScheduler(s); err != nil {
			return err
		}
	}
	return nil
}

// measurement aggregates the timings of repeated renders.
type measurement struct {
	runs  int
	best  pipeline.Timings
	total pipeline.Timings
}

func (m *measurement) add(t pipeline.Timings) {
	if m.runs == 0 || t.Total() < m.best.Total() {
		m.best = t
	}
	m.total.Limits += t.Limits
	m.total.Init += t.Init
	m.total.Draw += t.Draw
	m.total.Scale += t.Scale
	m.runs++
}

func (m *measurement) mean() pipeline.Timings {
	if m.runs == 0 {
		return pipeline.Timings{}
	}
	n := time.Duration(m.runs)
	return pipeline.Timings{
		Limits: m.total.Limits / n,
		Init:   m.total.Init / n,
		Draw:   m.total.Draw / n,
		Scale:  m.total.Scale / n,
	}
}

func (c *BenchCmd) Run(logger *slog.Logger) error {
	for _, name := range c.Schedulers {
		s, err := pipeline.ParseScheduler(name)
		if err != nil {
			return err
		}

		var baseline time.Duration
		for _, workers := range c.Workers {
			m, err := c.measure(s, workers)
			if err != nil {
				return err
			}

			mean := m.mean()
			if baseline == 0 {
				baseline = mean.Total()
			}
			speedup := 0.0
			if mean.Total() > 0 {
				speedup = float64(baseline) / float64(mean.Total())
			}

			logger.Info("bench",
				"scheduler", s,
				"workers", workers,
				"runs", m.runs,
				"limits", mean.Limits,
				"init", mean.Init,
				"draw", mean.Draw,
				"scale", mean.Scale,
				"mean", mean.Total(),
				"best", m.best.Total(),
				"speedup", fmt.Sprintf("%.2f", speedup),
			)
		}
	}
	return nil
}

func (c *BenchCmd) measure(s pipeline.Scheduler, workers int) (*measurement, error) {
	m := &measurement{}
	for range c.Repeat {
		res, err := pipeline.Render(c.Size, c.Width, c.Height, workers,
			pipeline.WithScheduler(s), pipeline.WithGrain(c.Grain))
		if err != nil {
			return nil, fmt.Errorf("could not render with %s scheduler and %d workers: %w", s, workers, err)
		}
		m.add(res.Timings)
	}
	return m, nil
}
