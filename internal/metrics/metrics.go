// Package metrics provides Prometheus metrics for the event store and the
// mock event service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector. All methods are safe on a nil *Manager so
// components can run without metrics.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	// Store metrics
	storeRemoteMode      prometheus.Gauge
	storeFallbacks       *prometheus.CounterVec
	storeRefreshDuration prometheus.Histogram
	storeMutations       *prometheus.CounterVec
	storeEvents          prometheus.Gauge

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRateLimited     prometheus.Counter
}

// NewManager creates a Manager. Without WithRegistry a fresh private registry
// is used so the default Go collectors stay out of the output.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "calstore",
		histogramBuckets: prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.storeRemoteMode = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "store",
		Name:      "remote_mode",
		Help:      "1 while the store is remote-backed, 0 while local-backed",
	})
	m.storeFallbacks = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "store",
		Name:      "fallbacks_total",
		Help:      "Refreshes that fell back to the local cache, by reason",
	}, []string{"reason"})
	m.storeRefreshDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "store",
		Name:      "refresh_duration_seconds",
		Help:      "Duration of refresh operations",
		Buckets:   m.histogramBuckets,
	})
	m.storeMutations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "store",
		Name:      "mutations_total",
		Help:      "Create/update/delete operations by mode and outcome",
	}, []string{"op", "mode", "outcome"})
	m.storeEvents = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "store",
		Name:      "events",
		Help:      "Number of events in the current snapshot",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status code",
	}, []string{"route", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration by route, method and status code",
		Buckets:   m.histogramBuckets,
	}, []string{"route", "method", "status_code"})
	m.httpRateLimited = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter",
	})
}

// Registry returns the registry backing this manager.
func (m *Manager) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// SetRemoteMode records the store mode.
func (m *Manager) SetRemoteMode(remote bool) {
	if m == nil {
		return
	}
	if remote {
		m.storeRemoteMode.Set(1)
		return
	}
	m.storeRemoteMode.Set(0)
}

// RecordFallback counts a refresh that fell back to the cache.
func (m *Manager) RecordFallback(reason string) {
	if m == nil {
		return
	}
	m.storeFallbacks.WithLabelValues(reason).Inc()
}

// ObserveRefresh records the duration of a refresh in seconds.
func (m *Manager) ObserveRefresh(seconds float64) {
	if m == nil {
		return
	}
	m.storeRefreshDuration.Observe(seconds)
}

// RecordMutation counts a store mutation.
func (m *Manager) RecordMutation(op, mode, outcome string) {
	if m == nil {
		return
	}
	m.storeMutations.WithLabelValues(op, mode, outcome).Inc()
}

// SetEventCount records the snapshot size.
func (m *Manager) SetEventCount(n int) {
	if m == nil {
		return
	}
	m.storeEvents.Set(float64(n))
}

// RecordHTTPRequest counts a request and observes its duration in seconds.
func (m *Manager) RecordHTTPRequest(route, method, statusCode string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(route, method, statusCode).Observe(seconds)
}

// RecordRateLimited counts a request rejected with 429.
func (m *Manager) RecordRateLimited() {
	if m == nil {
		return
	}
	m.httpRateLimited.Inc()
}
