package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exports flock health as Prometheus metrics. Each instance owns its
// registry so several runs can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	members       prometheus.Gauge
	polarization  prometheus.Gauge
	spreadP90     prometheus.Gauge
	goalDist      prometheus.Gauge
	meanNeighbors prometheus.Gauge
	events        *prometheus.CounterVec
	tickSeconds   prometheus.Histogram
}

// NewMetrics creates the collectors under the given namespace.
func NewMetrics(namespace, runID string) *Metrics {
	labels := prometheus.Labels{"run_id": runID}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}

	m := &Metrics{
		registry:      prometheus.NewRegistry(),
		members:       gauge("members", "Agents in the flock."),
		polarization:  gauge("polarization", "Length of the mean heading, 0 to 1."),
		spreadP90:     gauge("spread_p90", "90th percentile distance to the flock centroid."),
		goalDist:      gauge("goal_distance_mean", "Mean distance to the active goal."),
		meanNeighbors: gauge("mean_neighbors", "Mean neighbours per agent."),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "events_total",
			Help:        "Flock events by type.",
			ConstLabels: labels,
		}, []string{"type"}),
		tickSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "tick_duration_seconds",
			Help:        "Wall time of one simulation step.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1e-5, 4, 8),
		}),
	}
	m.registry.MustRegister(
		m.members, m.polarization, m.spreadP90, m.goalDist,
		m.meanNeighbors, m.events, m.tickSeconds,
	)
	return m
}

// Record counts one event.
func (m *Metrics) Record(ev Event) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(ev.Type.String()).Inc()
}

// ObserveWindow updates the gauges from a flushed window.
func (m *Metrics) ObserveWindow(s WindowStats) {
	if m == nil {
		return
	}
	m.members.Set(float64(s.Members))
	m.polarization.Set(s.Polarization)
	m.spreadP90.Set(s.SpreadP90)
	m.goalDist.Set(s.GoalDistMean)
	m.meanNeighbors.Set(s.MeanNeighbors)
}

// ObserveTick records the duration of one step.
func (m *Metrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.tickSeconds.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// shutdownTimeout bounds how long Serve waits for open scrapes.
var shutdownTimeout = 2 * time.Second

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	slog.Info("metrics listening", "addr", ln.Addr().String())
	return m.serve(ctx, ln)
}

func (m *Metrics) serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("metrics server shutdown", "error", err)
		}
	}()

	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-stopped
	return nil
}
