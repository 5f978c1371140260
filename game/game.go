// Package game runs a flock headlessly and wires its events into telemetry:
// windowed stats, perf timing, bookmarks, CSV output, snapshots and metrics.
package game

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/flock"
	"github.com/pthm-cable/flock/geom"
	"github.com/pthm-cable/flock/telemetry"
)

// Options configures a Game.
type Options struct {
	// Seed overrides the config seed when non-zero.
	Seed           int64
	LogStats       bool
	StatsWindowSec float64 // 0 = use config
	SnapshotDir    string
	OutputDir      string
	// Metrics enables the Prometheus exporter.
	Metrics bool
	// Config is used as-is when set instead of the embedded defaults.
	Config        *config.Config
	RunID         string // empty = random
	StatsCallback func(telemetry.WindowStats)
	Logger        *slog.Logger
}

// Game holds a running flock and its telemetry.
type Game[V any] struct {
	cfg    *config.Config
	space  geom.Space[V]
	flock  *flock.Director[V]
	runID  string
	dt     float64
	logger *slog.Logger

	tick int32

	collector        *telemetry.Collector
	perfCollector    *telemetry.PerfCollector
	bookmarkDetector *telemetry.BookmarkDetector
	outputManager    *telemetry.OutputManager
	metrics          *telemetry.Metrics

	logStats      bool
	snapshotDir   string
	statsCallback func(telemetry.WindowStats)
	subs          []flock.Subscription
}

// New creates a game for space. The config's dimensions must match it.
func New[V any](space geom.Space[V], opts Options) (*Game[V], error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	flockOpts, err := flock.OptionsFromConfig(cfg, space, logger)
	if err != nil {
		return nil, fmt.Errorf("building flock options: %w", err)
	}
	if opts.Seed != 0 {
		flockOpts.Seed = opts.Seed
	}
	perf := telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow)
	flockOpts.Phases = perf

	director, err := flock.New(flockOpts)
	if err != nil {
		return nil, fmt.Errorf("creating flock: %w", err)
	}

	statsWindow := cfg.Telemetry.StatsWindow
	if opts.StatsWindowSec > 0 {
		statsWindow = opts.StatsWindowSec
	}

	om, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	if err := om.WriteConfig(cfg); err != nil {
		om.Close()
		return nil, fmt.Errorf("writing config: %w", err)
	}

	g := &Game[V]{
		cfg:    cfg,
		space:  space,
		flock:  director,
		runID:  runID,
		dt:     cfg.Simulation.DT,
		logger: logger,

		collector:     telemetry.NewCollector(runID, statsWindow, cfg.Simulation.DT),
		perfCollector: perf,
		bookmarkDetector: telemetry.NewBookmarkDetector(
			cfg.Telemetry.BookmarkHistorySize,
			cfg.Bookmarks,
			director.Mode() != flock.ModeFollowLeader,
		),
		outputManager: om,

		logStats:      opts.LogStats,
		snapshotDir:   opts.SnapshotDir,
		statsCallback: opts.StatsCallback,
	}
	if opts.Metrics {
		g.metrics = telemetry.NewMetrics("flock", runID)
	}
	g.subscribe()

	logger.Info("game created",
		"run_id", runID,
		"dims", space.Dims(),
		"mode", director.Mode().String(),
		"size", cfg.Flock.Size,
		"seed", director.Seed(),
	)
	return g, nil
}

// Tick returns the current simulation tick.
func (g *Game[V]) Tick() int32 { return g.tick }

// RunID returns the identifier stamped on every output row.
func (g *Game[V]) RunID() string { return g.runID }

// Flock returns the underlying director.
func (g *Game[V]) Flock() *flock.Director[V] { return g.flock }

// Config returns the resolved configuration.
func (g *Game[V]) Config() *config.Config { return g.cfg }

// Metrics returns the exporter, nil when metrics are disabled.
func (g *Game[V]) Metrics() *telemetry.Metrics { return g.metrics }

// Unload detaches telemetry and closes output files.
func (g *Game[V]) Unload() {
	for _, s := range g.subs {
		s.Unsubscribe()
	}
	g.subs = nil
	if err := g.outputManager.Close(); err != nil {
		g.logger.Error("failed to close output", "error", err)
	}
}
