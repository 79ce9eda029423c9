package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics covers the turn-event consumer.
type WorkerMetrics struct {
	registry *prometheus.Registry

	eventsTotal     *prometheus.CounterVec
	handleDuration  *prometheus.HistogramVec
	eventsInFlight  prometheus.Gauge
	eventLagSeconds *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	eventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llamatail",
			Subsystem: "worker",
			Name:      "turn_events_total",
			Help:      "Total consumed turn events by outcome and status.",
		},
		[]string{"service", "outcome", "status"},
	)
	handleDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "llamatail",
			Subsystem: "worker",
			Name:      "turn_event_handle_duration_seconds",
			Help:      "Turn event handling duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	eventsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "llamatail",
			Subsystem: "worker",
			Name:      "turn_events_in_flight",
			Help:      "Number of turn events currently being handled.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	eventLagSeconds := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "llamatail",
			Subsystem: "worker",
			Name:      "turn_event_lag_seconds",
			Help:      "Delay between turn completion and event handling start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(eventsTotal, handleDuration, eventsInFlight, eventLagSeconds)

	return &WorkerMetrics{
		registry:        registry,
		eventsTotal:     eventsTotal,
		handleDuration:  handleDuration,
		eventsInFlight:  eventsInFlight,
		eventLagSeconds: eventLagSeconds,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartEvent() {
	m.eventsInFlight.Inc()
}

func (m *WorkerMetrics) FinishEvent(service, outcome string, duration time.Duration, err error) {
	m.eventsInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	if outcome == "" {
		outcome = "unknown"
	}

	m.eventsTotal.WithLabelValues(service, outcome, status).Inc()
	m.handleDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveEventLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.eventLagSeconds.WithLabelValues(service).Observe(lag.Seconds())
}
