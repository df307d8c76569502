// v1
// internal/observability/metrics.go
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/swapsCAPS/bme680-exporter/internal/sensor"
	"github.com/swapsCAPS/bme680-exporter/internal/store"
)

// Poll failure stages.
const (
	StageTrigger = "trigger"
	StageRead    = "read"
)

// Snapshotter is the read side of the sample store.
type Snapshotter interface {
	Snapshot(now time.Time, maxAge time.Duration) (sensor.Reading, store.Status)
}

// Metrics owns the exporter's Prometheus registry. A nil *Metrics ignores
// every recording call.
type Metrics struct {
	registry *prometheus.Registry

	pollSuccess    prometheus.Counter
	pollFailure    *prometheus.CounterVec
	consecutive    prometheus.Gauge
	forwardDropped prometheus.Counter
	sinkPublished  *prometheus.CounterVec
	sinkErrors     *prometheus.CounterVec
	breakerState   *prometheus.GaugeVec
}

// New builds a private registry holding the reading gauges derived from src
// and the acquisition and forwarding counters. Nothing is registered with
// the default registry.
func New(src Snapshotter, staleAfter time.Duration) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pollSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bme680_poll_success_total",
			Help: "Total count of successful sensor polls.",
		}),
		pollFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bme680_poll_failure_total",
			Help: "Total count of failed sensor polls by stage.",
		}, []string{"stage"}),
		consecutive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bme680_poll_consecutive_failures",
			Help: "Number of sensor polls that failed since the last success.",
		}),
		forwardDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bme680_forward_dropped_total",
			Help: "Readings replaced in the forwarding mailbox before delivery.",
		}),
		sinkPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bme680_sink_published_total",
			Help: "Readings delivered to a forwarding sink.",
		}, []string{"sink"}),
		sinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bme680_sink_errors_total",
			Help: "Failed deliveries to a forwarding sink, including breaker fast-fails.",
		}, []string{"sink"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bme680_sink_breaker_state",
			Help: "Circuit breaker state per sink (0 closed, 1 half open, 2 open).",
		}, []string{"sink"}),
	}

	m.pollFailure.WithLabelValues(StageTrigger)
	m.pollFailure.WithLabelValues(StageRead)

	m.registry.MustRegister(
		newReadingCollector(src, staleAfter),
		m.pollSuccess,
		m.pollFailure,
		m.consecutive,
		m.forwardDropped,
		m.sinkPublished,
		m.sinkErrors,
		m.breakerState,
	)
	return m
}

// Registry exposes the registry for tests and additional collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format. Gather errors
// are answered with 500.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{ErrorHandling: promhttp.HTTPErrorOnError})
}

func (m *Metrics) PollSucceeded() {
	if m == nil {
		return
	}
	m.pollSuccess.Inc()
	m.consecutive.Set(0)
}

func (m *Metrics) PollFailed(stage string) {
	if m == nil {
		return
	}
	m.pollFailure.WithLabelValues(stage).Inc()
	m.consecutive.Inc()
}

func (m *Metrics) ForwardDropped() {
	if m == nil {
		return
	}
	m.forwardDropped.Inc()
}

func (m *Metrics) SinkPublished(sink string) {
	if m == nil {
		return
	}
	m.sinkPublished.WithLabelValues(sink).Inc()
}

func (m *Metrics) SinkError(sink string) {
	if m == nil {
		return
	}
	m.sinkErrors.WithLabelValues(sink).Inc()
}

func (m *Metrics) SetBreakerState(sink string, state float64) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(sink).Set(state)
}
