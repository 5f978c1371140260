package telemetry

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics("flock", "run-1")
	m.Record(Event{Type: EventGoalChange})
	m.Record(Event{Type: EventGoalChange})
	m.Record(Event{Type: EventGateFill, Count: 80})
	m.ObserveWindow(WindowStats{Members: 100, Polarization: 0.75, SpreadP90: 6})
	m.ObserveTick(250 * time.Microsecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	text := string(body)

	for _, want := range []string{
		`flock_events_total{run_id="run-1",type="goal_change"} 2`,
		`flock_events_total{run_id="run-1",type="gate_fill"} 1`,
		`flock_members{run_id="run-1"} 100`,
		`flock_polarization{run_id="run-1"} 0.75`,
		`flock_spread_p90{run_id="run-1"} 6`,
		`flock_tick_duration_seconds_count{run_id="run-1"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.Record(Event{Type: EventSpawn})
	m.ObserveWindow(WindowStats{})
	m.ObserveTick(time.Millisecond)
}

func TestMetricsSeparateRegistries(t *testing.T) {
	NewMetrics("flock", "a")
	NewMetrics("flock", "b")
}

// captureLog routes the default logger to a buffer for one test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func startServe(t *testing.T, m *Metrics) (net.Listener, context.CancelFunc, <-chan error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- m.serve(ctx, ln) }()
	return ln, cancel, errc
}

func waitServe(t *testing.T, errc <-chan error) {
	t.Helper()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("serve error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	logs := captureLog(t)
	m := NewMetrics("flock", "run-1")
	ln, cancel, errc := startServe(t, m)

	resp, err := http.Get("http://" + ln.Addr().String() + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	cancel()
	waitServe(t, errc)
	if strings.Contains(logs.String(), "metrics server shutdown") {
		t.Errorf("unexpected shutdown warning: %s", logs.String())
	}
}

func TestServeLogsStalledShutdown(t *testing.T) {
	logs := captureLog(t)
	prev := shutdownTimeout
	shutdownTimeout = 20 * time.Millisecond
	t.Cleanup(func() { shutdownTimeout = prev })

	m := NewMetrics("flock", "run-1")
	ln, cancel, errc := startServe(t, m)

	// A scrape whose headers never finish keeps the connection open.
	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("GET /metrics HTTP/1.1\r\nHost: flock\r\n")); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	cancel()
	waitServe(t, errc)
	if !strings.Contains(logs.String(), "metrics server shutdown") {
		t.Errorf("shutdown timeout was not logged: %q", logs.String())
	}
}
