// Package metrics exposes sync progress as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"amosync/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Month outcomes
const (
	MonthMerged = "merged"
	MonthAbsent = "absent"
	MonthFailed = "failed"
)

// Metrics holds the collectors of one sync run.
// A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	months         *prometheus.CounterVec
	cameras        *prometheus.CounterVec
	entriesWritten prometheus.Counter
	fetchDuration  *prometheus.HistogramVec
	requests       *prometheus.CounterVec
	inFlight       prometheus.Gauge
}

// New registers all collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		months: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "amosync_months_total",
			Help: "Camera months processed, by outcome",
		}, []string{"outcome"}),
		cameras: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "amosync_cameras_total",
			Help: "Cameras processed, by result",
		}, []string{"result"}),
		entriesWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "amosync_entries_written_total",
			Help: "Archive entries written to the store",
		}),
		fetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "amosync_archive_fetch_seconds",
			Help:    "Time to fetch and open one monthly archive",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"outcome"}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "amosync_upstream_requests_total",
			Help: "Upstream HTTP requests, by status class",
		}, []string{"status"}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "amosync_cameras_in_flight",
			Help: "Cameras currently being synced",
		}),
	}
}

// Registry returns the registry backing these metrics
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordMonth(outcome string) {
	if m == nil {
		return
	}
	m.months.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordCamera(result string) {
	if m == nil {
		return
	}
	m.cameras.WithLabelValues(result).Inc()
}

func (m *Metrics) AddEntries(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.entriesWritten.Add(float64(n))
}

func (m *Metrics) ObserveFetch(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.fetchDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordRequest counts an upstream response by status class (2xx, 4xx, ...)
func (m *Metrics) RecordRequest(statusCode int) {
	if m == nil {
		return
	}
	class := "error"
	if statusCode >= 100 && statusCode < 600 {
		class = strconv.Itoa(statusCode/100) + "xx"
	}
	m.requests.WithLabelValues(class).Inc()
}

// CameraStarted and CameraDone track the in-flight gauge
func (m *Metrics) CameraStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

func (m *Metrics) CameraDone() {
	if m == nil {
		return
	}
	m.inFlight.Dec()
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is done
func (m *Metrics) Serve(ctx context.Context, addr string, log logger.Logger) error {
	log = logger.OrDefault(log)

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.LogComponentStart(log, "metrics", map[string]interface{}{"listen": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		logger.LogComponentStop(log, "metrics", "context done")
		return err
	}
}
