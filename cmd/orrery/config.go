package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Strangeisit/hoticeteaoreryproject/internal/auth"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/bodies"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/clock"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/control"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/orbit"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/scene"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/sim"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/stream"
)

func loadLogLevel() slog.Level {
	level := slog.LevelInfo
	if v := os.Getenv("ORRERY_LOG_LEVEL"); v != "" {
		if err := level.UnmarshalText([]byte(v)); err != nil {
			return slog.LevelInfo
		}
	}
	return level
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("ORRERY_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("ORRERY_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("ORRERY_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("ORRERY_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

// loadCatalog returns the built-in bodies, or the YAML catalog named by
// ORRERY_CATALOG.
func loadCatalog(logger *slog.Logger) (*bodies.Registry, error) {
	path := os.Getenv("ORRERY_CATALOG")
	if path == "" {
		return bodies.Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	reg, err := bodies.Load(f)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	logger.Info("catalog loaded", "path", path, "bodies", reg.Len())
	return reg, nil
}

func loadSimConfig(logger *slog.Logger) (sim.Config, float64) {
	cfg := sim.DefaultConfig()
	speed := clock.DefaultSpeed

	if v := os.Getenv("ORRERY_FRAME_INTERVAL_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			logger.Warn("invalid ORRERY_FRAME_INTERVAL_MS value, using default", "value", v, "default", 16)
		} else {
			cfg.FrameInterval = time.Duration(n) * time.Millisecond
		}
	}

	if v := os.Getenv("ORRERY_SOLVER"); v != "" {
		m, err := orbit.ParseMethod(v)
		if err != nil {
			logger.Warn("invalid ORRERY_SOLVER value, using default", "value", v, "default", cfg.Step.Method.String())
		} else {
			cfg.Step.Method = m
		}
	}

	if v := os.Getenv("ORRERY_INITIAL_PHASE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid ORRERY_INITIAL_PHASE value, using default", "value", v, "default", cfg.Step.InitialPhase)
		} else {
			cfg.Step.InitialPhase = b
		}
	}

	if v := os.Getenv("ORRERY_INITIAL_SPEED"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < clock.MinSpeed || f > clock.MaxSpeed {
			logger.Warn("invalid ORRERY_INITIAL_SPEED value, using default", "value", v, "default", clock.DefaultSpeed)
		} else {
			speed = f
		}
	}

	if v := os.Getenv("ORRERY_INBOX_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ORRERY_INBOX_SIZE value, using default", "value", v, "default", cfg.InboxSize)
		} else {
			cfg.InboxSize = n
		}
	}

	logger.Info("simulation config",
		"frame_interval_ms", cfg.FrameInterval.Milliseconds(),
		"method", cfg.Step.Method.String(),
		"initial_phase", cfg.Step.InitialPhase,
		"initial_speed", speed,
		"inbox_size", cfg.InboxSize,
	)

	return cfg, speed
}

func loadSceneConfig(logger *slog.Logger) scene.Config {
	cfg := scene.DefaultConfig()

	if v := os.Getenv("ORRERY_STAR_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			logger.Warn("invalid ORRERY_STAR_COUNT value, using default", "value", v, "default", cfg.StarCount)
		} else {
			cfg.StarCount = n
		}
	}

	if v := os.Getenv("ORRERY_STAR_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			logger.Warn("invalid ORRERY_STAR_SEED value, using default", "value", v, "default", cfg.StarSeed)
		} else {
			cfg.StarSeed = n
		}
	}

	if v := os.Getenv("ORRERY_ORBIT_SEGMENTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 3 {
			logger.Warn("invalid ORRERY_ORBIT_SEGMENTS value, using default", "value", v, "default", cfg.OrbitSegments)
		} else {
			cfg.OrbitSegments = n
		}
	}

	logger.Info("scene config",
		"star_count", cfg.StarCount,
		"star_seed", cfg.StarSeed,
		"orbit_segments", cfg.OrbitSegments,
	)

	return cfg
}

func loadHistorySize(logger *slog.Logger) int {
	size := 240
	if v := os.Getenv("ORRERY_HISTORY_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ORRERY_HISTORY_SIZE value, using default", "value", v, "default", size)
		} else {
			size = n
		}
	}
	return size
}

func loadTrustProxy(logger *slog.Logger) bool {
	v := os.Getenv("ORRERY_TRUST_PROXY")
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn("invalid ORRERY_TRUST_PROXY value, defaulting to false", "value", v)
		return false
	}
	return b
}

func loadStreamConfig(logger *slog.Logger) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: 10,
		MaxTotal:           1000,
		BandwidthLimit:     1048576,
		KeepaliveInterval:  30 * time.Second,
	}

	if v := os.Getenv("ORRERY_STREAM_MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ORRERY_STREAM_MAX_CONCURRENT value, using default", "value", v, "default", 10)
		} else {
			cfg.MaxConcurrentPerIP = n
		}
	}

	if v := os.Getenv("ORRERY_STREAM_MAX_TOTAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ORRERY_STREAM_MAX_TOTAL value, using default", "value", v, "default", 1000)
		} else {
			cfg.MaxTotal = n
		}
	}

	if v := os.Getenv("ORRERY_STREAM_BANDWIDTH_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			logger.Warn("invalid ORRERY_STREAM_BANDWIDTH_LIMIT value, using default", "value", v, "default", 1048576)
		} else {
			cfg.BandwidthLimit = n
		}
	}

	if v := os.Getenv("ORRERY_STREAM_KEEPALIVE_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ORRERY_STREAM_KEEPALIVE_INTERVAL value, using default", "value", v, "default", 30)
		} else {
			cfg.KeepaliveInterval = time.Duration(n) * time.Second
		}
	}

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"max_total", cfg.MaxTotal,
		"bandwidth_limit", cfg.BandwidthLimit,
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
	)

	return cfg
}

func loadControlConfig(logger *slog.Logger) control.Config {
	cfg := control.DefaultConfig()

	if v := os.Getenv("ORRERY_CONTROL_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || !(f > 0) {
			logger.Warn("invalid ORRERY_CONTROL_RATE value, using default", "value", v, "default", cfg.Rate)
		} else {
			cfg.Rate = f
		}
	}

	if v := os.Getenv("ORRERY_CONTROL_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ORRERY_CONTROL_BURST value, using default", "value", v, "default", cfg.Burst)
		} else {
			cfg.Burst = n
		}
	}

	if v := os.Getenv("ORRERY_CONTROL_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				origins = append(origins, o)
			}
		}
		cfg.AllowedOrigins = origins
	}

	logger.Info("control config",
		"rate", cfg.Rate,
		"burst", cfg.Burst,
		"allowed_origins", cfg.AllowedOrigins,
	)

	return cfg
}
