// Package metrics exposes Prometheus instruments for the chat service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "airbot"

// Collector owns a private registry so tests can build as many as they like.
type Collector struct {
	registry *prometheus.Registry

	turns           *prometheus.CounterVec
	turnDuration    prometheus.Histogram
	backendCalls    *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	invariantResets prometheus.Counter
	idleExpired     prometheus.Counter
	cacheEntries    *prometheus.GaugeVec
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Chat turns processed, by classified intent.",
		}, []string{"intent"}),
		turnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Time to process one chat turn.",
			Buckets:   prometheus.DefBuckets,
		}),
		backendCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_calls_total",
			Help:      "Airline backend calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		backendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_call_duration_seconds",
			Help:      "Airline backend call latency.",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"op"}),
		invariantResets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_invariant_resets_total",
			Help:      "Workflow states reset because they were structurally invalid.",
		}),
		idleExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_idle_expired_total",
			Help:      "Workflows abandoned by the idle sweep.",
		}),
		cacheEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Entries held by the in-process TTL caches.",
		}, []string{"cache", "state"}),
	}

	c.registry.MustRegister(
		c.turns,
		c.turnDuration,
		c.backendCalls,
		c.backendDuration,
		c.invariantResets,
		c.idleExpired,
		c.cacheEntries,
		collectors.NewGoCollector(),
	)
	return c
}

func (c *Collector) ObserveTurn(intent string, d time.Duration) {
	c.turns.WithLabelValues(intent).Inc()
	c.turnDuration.Observe(d.Seconds())
}

func (c *Collector) ObserveBackendCall(op, outcome string, d time.Duration) {
	c.backendCalls.WithLabelValues(op, outcome).Inc()
	c.backendDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (c *Collector) InvariantReset() {
	c.invariantResets.Inc()
}

func (c *Collector) IdleExpired(n int) {
	c.idleExpired.Add(float64(n))
}

func (c *Collector) SetCacheEntries(cache string, total, active int) {
	c.cacheEntries.WithLabelValues(cache, "total").Set(float64(total))
	c.cacheEntries.WithLabelValues(cache, "active").Set(float64(active))
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
