// Package metrics exposes admission counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "attendly"

// Admission records admission outcomes. A nil *Admission is valid and
// records nothing.
type Admission struct {
	registry *prometheus.Registry

	decisions       *prometheus.CounterVec
	promotions      *prometheus.CounterVec
	removals        *prometheus.CounterVec
	timeouts        prometheus.Counter
	inconsistencies prometheus.Counter
	repairs         prometheus.Counter
	boundaryWait    prometheus.Histogram
}

func New() *Admission {
	m := &Admission{
		registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "admission",
				Name:      "decisions_total",
				Help:      "Count of registration decisions by outcome.",
			},
			[]string{"status"},
		),
		promotions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "admission",
				Name:      "promotions_total",
				Help:      "Count of waitlist promotions by trigger.",
			},
			[]string{"trigger"},
		),
		removals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "admission",
				Name:      "removals_total",
				Help:      "Count of attendee removals by previous status.",
			},
			[]string{"previous_status"},
		),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admission",
			Name:      "boundary_timeouts_total",
			Help:      "Count of operations that could not enter the event boundary in time.",
		}),
		inconsistencies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "waitlist",
			Name:      "inconsistent_total",
			Help:      "Count of waitlist orderings found not dense.",
		}),
		repairs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "waitlist",
			Name:      "repairs_total",
			Help:      "Count of waitlist renumberings applied by repair.",
		}),
		boundaryWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "admission",
			Name:      "boundary_duration_seconds",
			Help:      "Time spent inside and waiting for the event boundary.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
	}

	m.registry.MustRegister(
		m.decisions,
		m.promotions,
		m.removals,
		m.timeouts,
		m.inconsistencies,
		m.repairs,
		m.boundaryWait,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Admission) Decision(status string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(status).Inc()
}

func (m *Admission) Promotion(trigger string) {
	if m == nil {
		return
	}
	m.promotions.WithLabelValues(trigger).Inc()
}

func (m *Admission) Removal(previousStatus string) {
	if m == nil {
		return
	}
	m.removals.WithLabelValues(previousStatus).Inc()
}

func (m *Admission) BoundaryTimeout() {
	if m == nil {
		return
	}
	m.timeouts.Inc()
}

func (m *Admission) Inconsistent() {
	if m == nil {
		return
	}
	m.inconsistencies.Inc()
}

func (m *Admission) Repaired() {
	if m == nil {
		return
	}
	m.repairs.Inc()
}

func (m *Admission) ObserveBoundary(d time.Duration) {
	if m == nil {
		return
	}
	m.boundaryWait.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Admission) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
