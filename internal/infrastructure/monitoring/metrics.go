package monitoring

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/GriffinCanCode/orchard/internal/attach"
)

// Metrics holds all Prometheus metrics of one orchard process.
type Metrics struct {
	registry *prometheus.Registry

	// Attach metrics
	AttachSessions *prometheus.CounterVec
	AttachBytes    *prometheus.CounterVec
	PumpExits      *prometheus.CounterVec

	// API metrics
	APIRequests        *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec

	// Snapshot for the verbose summary - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values
type MetricsSnapshot struct {
	Sessions      int64
	BytesIn       int64
	BytesOut      int64
	APIRequests   int64
	APIErrors     int64
	TotalDuration float64 // sum of all API request durations
}

var _ attach.Observer = (*Metrics)(nil)

// NewMetrics creates a metrics collector with its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		// Attach metrics
		AttachSessions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchard_attach_sessions_total",
				Help: "Attach sessions by outcome",
			},
			[]string{"outcome"},
		),
		AttachBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchard_attach_bytes_total",
				Help: "Bytes moved between the terminal and the container",
			},
			[]string{"stream"},
		),
		PumpExits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchard_attach_pump_exits_total",
				Help: "Attach pump exits by pump and final state",
			},
			[]string{"pump", "state"},
		),

		// API metrics
		APIRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchard_api_requests_total",
				Help: "Requests to the Orchard and Docker APIs",
			},
			[]string{"method", "status"},
		),
		APIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchard_api_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method"},
		),
	}
}

// Registry exposes the registry the metrics live in
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SessionFinished records the outcome of an attach session
func (m *Metrics) SessionFinished(outcome string) {
	m.AttachSessions.WithLabelValues(outcome).Inc()

	m.mu.Lock()
	m.snapshot.Sessions++
	m.mu.Unlock()
}

// BytesTransferred records bytes forwarded on a stream
func (m *Metrics) BytesTransferred(stream attach.Stream, n int) {
	m.AttachBytes.WithLabelValues(stream.String()).Add(float64(n))

	m.mu.Lock()
	if stream == attach.StreamStdin {
		m.snapshot.BytesIn += int64(n)
	} else {
		m.snapshot.BytesOut += int64(n)
	}
	m.mu.Unlock()
}

// PumpExited records how an attach pump ended
func (m *Metrics) PumpExited(pump string, state attach.PumpState) {
	m.PumpExits.WithLabelValues(pump, state.String()).Inc()
}

// RecordAPIRequest records one API round trip
func (m *Metrics) RecordAPIRequest(method, status string, duration time.Duration) {
	m.APIRequests.WithLabelValues(method, status).Inc()
	m.APIRequestDuration.WithLabelValues(method).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.APIRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	if !isSuccess(status) {
		m.snapshot.APIErrors++
	}
	m.mu.Unlock()
}

// Snapshot returns a copy of the current values
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// WriteTextfile writes every metric to path in the Prometheus text format,
// for pickup by a node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
