package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"

	"github.com/Strangeisit/hoticeteaoreryproject/internal/bodies"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/clock"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/scene"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/sim"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/tui"
)

func main() {
	// stdout belongs to the screen; logs go to ORRERY_LOG_FILE if set.
	var out io.Writer = io.Discard
	if path := os.Getenv("ORRERY_LOG_FILE"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open log file:", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo}))

	reg := bodies.Default()
	if path := os.Getenv("ORRERY_CATALOG"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open catalog:", err)
			os.Exit(1)
		}
		reg, err = bodies.Load(f)
		f.Close()
		if err != nil {
			fmt.Fprintln(os.Stderr, "load catalog:", err)
			os.Exit(1)
		}
	}

	cfg := sim.DefaultConfig()
	sceneCfg := scene.DefaultConfig()
	sceneCfg.StarCount = tui.MaxStars
	sceneCfg.Method = cfg.Step.Method
	engine := sim.NewEngine(reg, scene.Build(reg, sceneCfg), sim.NewState(clock.DefaultSpeed), cfg, logger)

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintln(os.Stderr, "create screen:", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "init screen:", err)
		os.Exit(1)
	}
	screen.EnableMouse()
	screen.HideCursor()
	defer screen.Fini()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go engine.Run(ctx)

	if err := tui.New(screen, engine, logger).Run(ctx); err != nil {
		logger.Error("tui stopped", "error", err)
	}
}
