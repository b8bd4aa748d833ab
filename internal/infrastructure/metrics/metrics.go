package metrics

import (
	"net/http"
	"strconv"
	"time"

	"currency-rates-service/internal/application"
	"currency-rates-service/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "currency_rates"

var _ application.Metrics = (*RateMetrics)(nil)

// RateMetrics holds every collector the service exports.
type RateMetrics struct {
	ReconciliationsTotal *prometheus.CounterVec
	SourceFetchesTotal   *prometheus.CounterVec
	AutoUpdatesTotal     *prometheus.CounterVec
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *RateMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &RateMetrics{
		ReconciliationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconciliations_total",
				Help:      "Rate reconciliations by currency, trigger and result",
			},
			[]string{"currency", "trigger", "result"},
		),
		SourceFetchesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "source_fetches_total",
				Help:      "Rate source fetch attempts by source and result",
			},
			[]string{"source", "result"},
		),
		AutoUpdatesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auto_updates_total",
				Help:      "Automatic update runs by winning source and result",
			},
			[]string{"source", "result"},
		),
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		gatherer: reg,
	}
}

func (m *RateMetrics) ReconcileDone(code domain.CurrencyCode, trigger string, err error) {
	m.ReconciliationsTotal.WithLabelValues(string(code), trigger, result(err == nil)).Inc()
}

func (m *RateMetrics) SourceFetched(source string, err error) {
	m.SourceFetchesTotal.WithLabelValues(source, result(err == nil)).Inc()
}

func (m *RateMetrics) AutoUpdateDone(source string, success bool) {
	if source == "" {
		source = "none"
	}
	m.AutoUpdatesTotal.WithLabelValues(source, result(success)).Inc()
}

func (m *RateMetrics) ObserveHTTP(method, route string, status int, took time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(took.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *RateMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
