package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/game"
	"github.com/pthm-cable/flock/geom"
	"github.com/pthm-cable/flock/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	mode := flag.String("mode", "", "Override flock mode: lazy_flight, waypoint or follow_leader")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	statsWindow := flag.Float64("stats-window", 0, "Stats window size in seconds (0 = use config)")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for snapshot files")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	resume := flag.String("resume", "", "Snapshot file to restore agents from")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (empty = disabled)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = config seed, time-based if that is 0 too)")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N ticks (0 = unlimited)")
	debug := flag.Bool("debug", false, "Enable debug logging")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Flock.Mode = *mode
		if err := cfg.Validate(); err != nil {
			slog.Error("invalid mode override", "error", err)
			os.Exit(1)
		}
	}

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = cfg.Simulation.Seed
	}
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	opts := game.Options{
		Seed:           rngSeed,
		LogStats:       *logStats,
		StatsWindowSec: *statsWindow,
		SnapshotDir:    *snapshotDir,
		OutputDir:      *outputDir,
		Metrics:        *metricsAddr != "",
		Config:         cfg,
		Logger:         logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cfg.Simulation.Dimensions {
	case 2:
		err = run[r2.Vec](ctx, geom.Plane{}, opts, *resume, *metricsAddr, *maxTicks)
	default:
		err = run[r3.Vec](ctx, geom.Volume{}, opts, *resume, *metricsAddr, *maxTicks)
	}
	if err != nil {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}
}

func run[V any](ctx context.Context, space geom.Space[V], opts game.Options, resume, metricsAddr string, maxTicks int) error {
	g, err := game.New(space, opts)
	if err != nil {
		return err
	}
	defer g.Unload()

	if resume != "" {
		snap, err := telemetry.LoadSnapshot(resume)
		if err != nil {
			return err
		}
		if err := g.Restore(snap); err != nil {
			return err
		}
	}

	if metricsAddr != "" {
		go func() {
			if err := g.Metrics().Serve(ctx, metricsAddr); err != nil {
				slog.Error("metrics server failed", "error", err)
			}
		}()
	}

	slog.Info("starting simulation",
		"run_id", g.RunID(),
		"seed", opts.Seed,
		"dims", space.Dims(),
		"max_ticks", maxTicks,
	)

	if err := g.Run(ctx, maxTicks); err != nil && ctx.Err() == nil {
		return err
	}

	if opts.SnapshotDir != "" {
		if path, err := g.SaveSnapshot(); err != nil {
			slog.Error("failed to save final snapshot", "error", err)
		} else {
			slog.Info("final snapshot saved", "path", path, "tick", g.Tick())
		}
	}
	return nil
}
