package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by API and worker flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	remindersSentTotal   *prometheus.CounterVec
	remindersFailedTotal *prometheus.CounterVec
	dispatchDuration     *prometheus.HistogramVec
	runDuration          prometheus.Histogram
	runsInFlight         prometheus.Gauge
	escalationsTotal     *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dunning_engine",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "dunning_engine",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		remindersSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dunning_engine",
				Name:      "reminders_sent_total",
				Help:      "Total number of reminders delivered, grouped by slot kind.",
			},
			[]string{"kind"},
		),
		remindersFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dunning_engine",
				Name:      "reminders_failed_total",
				Help:      "Total number of reminder dispatches that failed, grouped by slot kind and reason.",
			},
			[]string{"kind", "reason"},
		),
		dispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "dunning_engine",
				Name:      "dispatch_duration_seconds",
				Help:      "Provider send duration in seconds grouped by slot kind.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"kind"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "dunning_engine",
				Name:      "run_duration_seconds",
				Help:      "Duration of one tenant evaluation pass in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
			},
		),
		runsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "dunning_engine",
				Name:      "runs_in_flight",
				Help:      "Current number of tenant evaluation passes in progress.",
			},
		),
		escalationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dunning_engine",
				Name:      "escalation_transitions_total",
				Help:      "Total number of client service-state transitions by from and to status.",
			},
			[]string{"from", "to"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.remindersSentTotal,
		m.remindersFailedTotal,
		m.dispatchDuration,
		m.runDuration,
		m.runsInFlight,
		m.escalationsTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncReminderSent(kind string) {
	if m == nil {
		return
	}
	m.remindersSentTotal.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *Metrics) IncReminderFailed(kind string, reason string) {
	if m == nil {
		return
	}
	reasonLabel := normalizeLabel(reason)
	m.remindersFailedTotal.WithLabelValues(normalizeLabel(kind), reasonLabel).Inc()
}

func (m *Metrics) ObserveDispatchDuration(kind string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.dispatchDuration.WithLabelValues(normalizeLabel(kind)).Observe(seconds)
}

func (m *Metrics) ObserveRunDuration(duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.runDuration.Observe(seconds)
}

func (m *Metrics) IncRunInFlight() {
	if m == nil {
		return
	}
	m.runsInFlight.Inc()
}

func (m *Metrics) DecRunInFlight() {
	if m == nil {
		return
	}
	m.runsInFlight.Dec()
}

func (m *Metrics) IncEscalationTransition(from string, to string) {
	if m == nil {
		return
	}
	m.escalationsTotal.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(v string) string {
	normalized := strings.ToLower(strings.TrimSpace(v))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
