// Package metrics exposes pairtrade telemetry to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector on its own registry. It satisfies the
// engine's and the data providers' Recorder interfaces.
type Metrics struct {
	registry *prometheus.Registry

	BacktestsTotal   *prometheus.CounterVec
	BacktestDuration *prometheus.HistogramVec
	CacheLookups     *prometheus.CounterVec
	ProviderRequests *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
}

// New creates and registers the collectors, plus the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		BacktestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "pairtrade_backtests_total", Help: "Backtests run, by strategy and outcome"},
			[]string{"strategy", "status"},
		),
		BacktestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pairtrade_backtest_duration_seconds",
				Help:    "Wall time of uncached backtest runs",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
			[]string{"strategy"},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "pairtrade_backtest_cache_lookups_total", Help: "Backtest result cache lookups"},
			[]string{"result"},
		),
		ProviderRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "pairtrade_provider_requests_total", Help: "Market data requests, by provider and status"},
			[]string{"provider", "status"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "pairtrade_http_requests_total", Help: "API requests, by route and status code"},
			[]string{"method", "route", "code"},
		),
	}
	m.registry.MustRegister(
		m.BacktestsTotal,
		m.BacktestDuration,
		m.CacheLookups,
		m.ProviderRequests,
		m.HTTPRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveBacktest records one uncached backtest run.
func (m *Metrics) ObserveBacktest(strategy string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.BacktestsTotal.WithLabelValues(strategy, status).Inc()
	m.BacktestDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
}

// ObserveCache records a result cache lookup.
func (m *Metrics) ObserveCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// ObserveProvider records a market data request.
func (m *Metrics) ObserveProvider(provider, status string) {
	m.ProviderRequests.WithLabelValues(provider, status).Inc()
}

// ObserveHTTP records a served API request.
func (m *Metrics) ObserveHTTP(method, route string, code int) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}
