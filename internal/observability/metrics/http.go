package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yavru421/llama-tail/internal/core/domain"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	turnsTotal       *prometheus.CounterVec
	turnDuration     *prometheus.HistogramVec
	streamFragments  *prometheus.HistogramVec
	adaptationsTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llamatail",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "llamatail",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "llamatail",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	turnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llamatail",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Total chat turns by outcome and conversation stage.",
		},
		[]string{"service", "outcome", "stage"},
	)
	turnDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "llamatail",
			Subsystem: "chat",
			Name:      "turn_duration_seconds",
			Help:      "End-to-end chat turn duration in seconds by outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "outcome"},
	)
	streamFragments := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "llamatail",
			Subsystem: "chat",
			Name:      "stream_fragments",
			Help:      "Distribution of streamed fragments per completed turn.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"service"},
	)
	adaptationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llamatail",
			Subsystem: "chat",
			Name:      "style_adaptations_total",
			Help:      "Total turns by whether a style adaptation was applied.",
		},
		[]string{"service", "applied"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		turnsTotal,
		turnDuration,
		streamFragments,
		adaptationsTotal,
	)

	return &HTTPServerMetrics{
		registry:         registry,
		service:          service,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
		requestInFlight:  requestInFlight,
		turnsTotal:       turnsTotal,
		turnDuration:     turnDuration,
		streamFragments:  streamFragments,
		adaptationsTotal: adaptationsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath collapses unbounded path spaces so label cardinality stays
// fixed.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/static/"):
		return "/static/{file}"
	default:
		return path
	}
}

// ObserveTurn implements the turn observer consumed by the chat use case.
func (m *HTTPServerMetrics) ObserveTurn(outcome string, stage domain.Stage, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	stageLabel := string(stage)
	if stageLabel == "" {
		stageLabel = "none"
	}
	m.turnsTotal.WithLabelValues(m.service, outcome, stageLabel).Inc()
	m.turnDuration.WithLabelValues(m.service, outcome).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) ObserveFragments(count int) {
	if count < 0 {
		return
	}
	m.streamFragments.WithLabelValues(m.service).Observe(float64(count))
}

func (m *HTTPServerMetrics) ObserveAdaptation(applied bool) {
	m.adaptationsTotal.WithLabelValues(m.service, strconv.FormatBool(applied)).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
