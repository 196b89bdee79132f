package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"ForumWatcher/internal/ports"
)

// Metrics exposes pipeline and scheduler counters on a dedicated registry.
type Metrics struct {
	Registry *prometheus.Registry

	ItemsTotal     *prometheus.CounterVec
	SourceFailures *prometheus.CounterVec
	CycleDuration  prometheus.Histogram
	CyclesTotal    prometheus.Counter
}

var _ ports.Metrics = (*Metrics)(nil)

// New builds and registers all collectors, including Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ItemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "forumwatcher",
				Name:      "items_total",
				Help:      "Candidate items by kind and terminal outcome.",
			},
			[]string{"kind", "outcome"},
		),
		SourceFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "forumwatcher",
				Name:      "source_failures_total",
				Help:      "Polling failures per source.",
			},
			[]string{"source"},
		),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "forumwatcher",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of polling cycles.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "forumwatcher",
			Name:      "cycles_total",
			Help:      "Completed polling cycles.",
		}),
	}

	m.Registry.MustRegister(
		m.ItemsTotal,
		m.SourceFailures,
		m.CycleDuration,
		m.CyclesTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ItemProcessed(kind, outcome string) {
	m.ItemsTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) SourceFailed(source string) {
	m.SourceFailures.WithLabelValues(source).Inc()
}

func (m *Metrics) CycleCompleted(d time.Duration) {
	m.CyclesTotal.Inc()
	m.CycleDuration.Observe(d.Seconds())
}
