package controller

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the prometheus collectors for sync cycles.
type Metrics struct {
	registry    *prometheus.Registry
	cycles      *prometheus.CounterVec
	updates     prometheus.Counter
	filledGap   prometheus.Gauge
	lastSuccess prometheus.Gauge
}

// NewMetrics registers the sync collectors along with the Go runtime and
// process collectors on a new registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tousync",
			Name:      "sync_cycles_total",
			Help:      "Sync cycles by result.",
		}, []string{"result"}),
		updates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tousync",
			Name:      "tariff_updates_total",
			Help:      "Times the battery tariff was replaced.",
		}),
		filledGap: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tousync",
			Name:      "filled_gap_hours",
			Help:      "Hours of the last schedule not covered by published rates.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tousync",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful sync cycle.",
		}),
	}
	m.registry.MustRegister(
		m.cycles,
		m.updates,
		m.filledGap,
		m.lastSuccess,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
