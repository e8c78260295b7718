package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Strangeisit/hoticeteaoreryproject/internal/api"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/control"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/history"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/scene"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/sim"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/stream"
	"github.com/Strangeisit/hoticeteaoreryproject/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: loadLogLevel(),
	}))

	addr := os.Getenv("ORRERY_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	reg, err := loadCatalog(logger)
	if err != nil {
		logger.Error("invalid body catalog", "error", err)
		os.Exit(1)
	}

	simCfg, speed := loadSimConfig(logger)
	sceneCfg := loadSceneConfig(logger)
	sceneCfg.Method = simCfg.Step.Method
	sc := scene.Build(reg, sceneCfg)

	engine := sim.NewEngine(reg, sc, sim.NewState(speed), simCfg, logger)
	ring := history.NewRing(loadHistorySize(logger), logger)

	trustProxy := loadTrustProxy(logger)
	streamCfg := loadStreamConfig(logger)
	streamCfg.TrustProxy = trustProxy
	streamHandler := stream.NewHandler(engine, ring, streamCfg, logger)

	controlCfg := loadControlConfig(logger)
	controlCfg.TrustProxy = trustProxy
	controlHandler := control.NewHandler(engine, controlCfg, logger)

	srv := api.NewServer(addr, logger, authCfg, engine, ring, streamHandler, controlHandler, web.Content)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go engine.Run(ctx)
	go ring.Follow(ctx, engine)
	go controlHandler.RunSweeper(ctx, time.Minute)

	go func() {
		logger.Info("starting server",
			"addr", addr,
			"auth_enabled", authCfg.Enabled,
			"bodies", reg.Len(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped", "open_streams", streamHandler.Active())
}
