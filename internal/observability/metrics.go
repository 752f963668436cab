package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Check outcome label values.
const (
	OutcomeHealthy      = "healthy"
	OutcomeUnhealthy    = "unhealthy"
	OutcomeError        = "error"
	OutcomeUnauthorized = "unauthorized"
)

type Metrics struct {
	RequestCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec
	CheckRuns       *prometheus.CounterVec
	CheckDuration   *prometheus.HistogramVec
	HeartbeatBeats  *prometheus.CounterVec
	ReportHealthy   prometheus.Gauge
	ConfigReloads   *prometheus.CounterVec

	registry *prometheus.Registry
	handler  http.Handler
}

func NewMetrics() *Metrics {
	return &Metrics{
		RequestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthchecks_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "healthchecks_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status_code"},
		),
		ResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "healthchecks_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(16, 4, 8),
			},
			[]string{"method", "route", "status_code"},
		),
		CheckRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthchecks_check_runs_total",
				Help: "Number of individual check executions by outcome",
			},
			[]string{"check", "outcome"},
		),
		CheckDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "healthchecks_check_duration_seconds",
				Help:    "Duration of individual check executions",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"check"},
		),
		HeartbeatBeats: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthchecks_heartbeat_beats_total",
				Help: "Heartbeats recorded per monitor",
			},
			[]string{"monitor"},
		),
		ReportHealthy: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "healthchecks_report_healthy",
				Help: "Outcome of the last aggregate report (1 = healthy, 0 = unhealthy)",
			},
		),
		ConfigReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthchecks_config_reloads_total",
				Help: "Check registry reloads by result",
			},
			[]string{"result"},
		),
	}
}

func (m *Metrics) RecordRequest(method, route string, statusCode int, duration time.Duration, responseSize int64) {
	status := strconv.Itoa(statusCode)

	m.RequestCount.WithLabelValues(method, route, status).Inc()
	m.RequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(method, route, status).Observe(float64(responseSize))
}

func (m *Metrics) RecordCheck(name, outcome string, duration time.Duration) {
	m.CheckRuns.WithLabelValues(name, outcome).Inc()
	m.CheckDuration.WithLabelValues(name).Observe(duration.Seconds())
}

func (m *Metrics) RecordBeat(monitor string) {
	m.HeartbeatBeats.WithLabelValues(monitor).Inc()
}

func (m *Metrics) RecordReload(err error) {
	if err != nil {
		m.ConfigReloads.WithLabelValues("failure").Inc()
		return
	}
	m.ConfigReloads.WithLabelValues("success").Inc()
}

func (m *Metrics) SetReportHealthy(healthy bool) {
	if healthy {
		m.ReportHealthy.Set(1)
	} else {
		m.ReportHealthy.Set(0)
	}
}

func (m *Metrics) Handler() http.Handler {
	if m.handler != nil {
		return m.handler
	}
	return promhttp.Handler()
}

// Register attaches all collectors to a private registry so tests can build
// several Metrics without colliding on the default one.
func (m *Metrics) Register() error {
	m.registry = prometheus.NewRegistry()

	for _, c := range []prometheus.Collector{
		m.RequestCount,
		m.RequestDuration,
		m.ResponseSize,
		m.CheckRuns,
		m.CheckDuration,
		m.HeartbeatBeats,
		m.ReportHealthy,
		m.ConfigReloads,
	} {
		if err := m.registry.Register(c); err != nil {
			return err
		}
	}

	m.handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})

	return nil
}
