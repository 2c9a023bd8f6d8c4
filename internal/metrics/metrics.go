package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the daemon's instrumentation on a private registry, so
// constructing more than one daemon in a process never double-registers.
type Metrics struct {
	registry *prometheus.Registry

	ImportsTotal    *prometheus.CounterVec
	ImportDuration  prometheus.Histogram
	RecordsImported prometheus.Counter
	SearchesTotal   prometheus.Counter
	ResolveMisses   prometheus.Counter
	StarToggles     prometheus.Counter
	WatchEvents     prometheus.Counter
}

// New creates the registry and all daemon collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry: reg,
		ImportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wev_imports_total",
			Help: "Chat imports by result.",
		}, []string{"result"}),
		ImportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wev_import_duration_seconds",
			Help:    "Time spent parsing, combining and storing one chat.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		RecordsImported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wev_records_imported_total",
			Help: "Records written across all imports.",
		}),
		SearchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wev_searches_total",
			Help: "Search requests served.",
		}),
		ResolveMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wev_resolve_misses_total",
			Help: "Sequence numbers that resolved to no message, normal after a re-import.",
		}),
		StarToggles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wev_star_toggles_total",
			Help: "Star flips applied to records.",
		}),
		WatchEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wev_watch_events_total",
			Help: "Filesystem change notifications that triggered a re-import.",
		}),
	}
	reg.MustRegister(m.ImportsTotal, m.ImportDuration, m.RecordsImported, m.SearchesTotal,
		m.ResolveMisses, m.StarToggles, m.WatchEvents)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
