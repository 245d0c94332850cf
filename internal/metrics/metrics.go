// Package metrics exposes Prometheus collectors for the ledger runtime and
// the HTTP read API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wakevault"

// Metrics owns a registry so tests and multiple servers in one process do
// not collide on the global one.
type Metrics struct {
	Registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	transferred     *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	keeperRuns      *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "requests_total",
				Help:      "Submitted requests by operation and outcome.",
			},
			[]string{"op", "outcome"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "request_duration_seconds",
				Help:      "Time to execute a request, lock wait included.",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
			[]string{"op"},
		),
		transferred: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "transferred_lamports_total",
				Help:      "Lamports moved by committed requests, by reason.",
			},
			[]string{"reason"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP read API requests.",
			},
			[]string{"method", "route", "status"},
		),
		keeperRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "keeper",
				Name:      "actions_total",
				Help:      "Keeper submissions by operation and result.",
			},
			[]string{"op", "result"},
		),
	}
	m.Registry.MustRegister(
		m.requests,
		m.requestDuration,
		m.transferred,
		m.httpRequests,
		m.keeperRuns,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// ObserveRequest records one executed request.
func (m *Metrics) ObserveRequest(op, outcome string, d time.Duration) {
	m.requests.WithLabelValues(op, outcome).Inc()
	if d > 0 {
		m.requestDuration.WithLabelValues(op).Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveTransfer(reason string, amount uint64) {
	m.transferred.WithLabelValues(reason).Add(float64(amount))
}

func (m *Metrics) ObserveKeeper(op, result string) {
	m.keeperRuns.WithLabelValues(op, result).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
