package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"dragonizer/pipeline"
	"dragonizer/render"
)

type cli struct {
	Verbose bool `help:"Log phase transitions and render geometry" short:"v" default:"false"`

	Render render.CLICmd    `cmd:"" help:"Render the dragon curve, coloring each segment by the worker that drew it"`
	Limits render.LimitsCmd `cmd:"" help:"Compute the bounding box of the curve and the render geometry"`
	Paint  render.PaintCmd  `cmd:"" help:"Scale a saved canvas into an image"`
	Bench  render.BenchCmd  `cmd:"" help:"Measure render timings across schedulers and worker counts"`
}

func main() {
	var c cli
	kctx := kong.Parse(&c,
		kong.Name("dragonizer"),
		kong.Description("Parallel dragon curve renderer"),
		kong.UsageOnError(),
	)

	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	pipeline.SetLogger(logger)

	if err := kctx.Run(logger); err != nil {
		logger.Error("command failed", "command", kctx.Command(), "error", err)
		os.Exit(1)
	}
}
