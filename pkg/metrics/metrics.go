package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "looppak"

type Metrics struct {
	registry *prometheus.Registry

	BreakerState        *prometheus.GaugeVec
	BreakerRejections   *prometheus.CounterVec
	RetryAttempts       *prometheus.CounterVec
	OptimisticConflicts *prometheus.CounterVec
	DeadLetters         *prometheus.CounterVec
	DuplicateEvents     *prometheus.CounterVec
	PublishFailures     *prometheus.CounterVec
	EventsHandled       *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
		}, []string{"name"}),
		BreakerRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_rejections_total",
			Help:      "Calls short-circuited by an open or saturated breaker.",
		}, []string{"name"}),
		RetryAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Retried attempts of outbound calls.",
		}, []string{"operation"}),
		OptimisticConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimistic_conflicts_total",
			Help:      "Version conflicts seen by the optimistic aggregator.",
		}, []string{"aggregate"}),
		DeadLetters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dead_letters_total",
			Help:      "Messages routed to a dead-letter topic.",
		}, []string{"topic", "event_type"}),
		DuplicateEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_events_total",
			Help:      "Redelivered events skipped by the idempotency guard.",
		}, []string{"event_type"}),
		PublishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "After-commit publishes that failed and went to the outbox.",
		}, []string{"topic", "event_type"}),
		EventsHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_handled_total",
			Help:      "Events applied by consumers, by outcome.",
		}, []string{"event_type", "status"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.BreakerState,
		m.BreakerRejections,
		m.RetryAttempts,
		m.OptimisticConflicts,
		m.DeadLetters,
		m.DuplicateEvents,
		m.PublishFailures,
		m.EventsHandled,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
