// Package metrics exposes Prometheus collectors for the sync layer.
// All recording methods are safe to call on a nil *Metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors recorded by the sync components.
type Metrics struct {
	pushState       *prometheus.GaugeVec
	pushReconnects  prometheus.Counter
	pushInbound     *prometheus.CounterVec
	mutations       *prometheus.CounterVec
	cacheRefreshes  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New registers the collectors on reg. Passing a fresh registry keeps
// tests isolated from the default one.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		pushState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "homesync_push_state",
			Help: "1 for the current push transport state, 0 otherwise",
		}, []string{"state"}),
		pushReconnects: f.NewCounter(prometheus.CounterOpts{
			Name: "homesync_push_reconnect_attempts_total",
			Help: "Reconnect attempts scheduled by the push transport",
		}),
		pushInbound: f.NewCounterVec(prometheus.CounterOpts{
			Name: "homesync_push_messages_total",
			Help: "Inbound push messages by type",
		}, []string{"type"}),
		mutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "homesync_optimistic_mutations_total",
			Help: "Optimistic mutations by operation and outcome",
		}, []string{"op", "outcome"}),
		cacheRefreshes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "homesync_cache_refresh_total",
			Help: "Remote cache refreshes by feature and result",
		}, []string{"feature", "result"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "homesync_api_request_duration_seconds",
			Help:    "REST request latency",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		}, []string{"method", "status"}),
	}
}

// PushState marks state as the current push state.
func (m *Metrics) PushState(state string, all []string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		m.pushState.WithLabelValues(s).Set(v)
	}
}

// PushReconnect counts a scheduled reconnect.
func (m *Metrics) PushReconnect() {
	if m == nil {
		return
	}
	m.pushReconnects.Inc()
}

// PushInbound counts an inbound push message.
func (m *Metrics) PushInbound(msgType string) {
	if m == nil {
		return
	}
	m.pushInbound.WithLabelValues(msgType).Inc()
}

// Mutation counts an optimistic mutation outcome
// ("committed", "rolled_back", "deduplicated", "rejected").
func (m *Metrics) Mutation(op, outcome string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(op, outcome).Inc()
}

// CacheRefresh counts a cache refresh result ("ok", "error", "suppressed").
func (m *Metrics) CacheRefresh(feature, result string) {
	if m == nil {
		return
	}
	m.cacheRefreshes.WithLabelValues(feature, result).Inc()
}

// Request observes a REST request duration in seconds.
func (m *Metrics) Request(method, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, status).Observe(seconds)
}
