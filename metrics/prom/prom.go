// Package prom exports cache metrics as Prometheus counters and gauges.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/replaykit/go-cache/metrics"
)

// Adapter implements metrics.Metrics on top of Prometheus. All Prometheus
// metric types are goroutine-safe, so the adapter needs no locking.
type Adapter struct {
	hits    *prometheus.CounterVec
	misses  *prometheus.CounterVec
	evicts  *prometheus.CounterVec
	entries *prometheus.GaugeVec
	bytes   *prometheus.GaugeVec
}

// New constructs a Prometheus metrics adapter. If reg is nil,
// prometheus.DefaultRegisterer is used. All metrics carry a "namespace"
// label so multiple cache namespaces can share one adapter.
func New(reg prometheus.Registerer, subsystem string) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "cache_hits_total",
			Help:      "Cache hits",
		}, []string{"namespace"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "cache_misses_total",
			Help:      "Cache misses",
		}, []string{"namespace"}),
		evicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "cache_evictions_total",
			Help:      "Cache evictions by reason",
		}, []string{"namespace", "reason"}),
		entries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Subsystem: subsystem,
			Name:      "cache_entries",
			Help:      "Resident cache entries",
		}, []string{"namespace"}),
		bytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Subsystem: subsystem,
			Name:      "cache_size_bytes",
			Help:      "Total size of resident cache entries",
		}, []string{"namespace"}),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.entries, a.bytes)
	return a
}

func (a *Adapter) Hit(namespace string)  { a.hits.WithLabelValues(namespace).Inc() }
func (a *Adapter) Miss(namespace string) { a.misses.WithLabelValues(namespace).Inc() }

func (a *Adapter) Evict(namespace string, reason metrics.EvictReason, count int) {
	a.evicts.WithLabelValues(namespace, string(reason)).Add(float64(count))
}

func (a *Adapter) Size(namespace string, entries int, bytes uint64) {
	a.entries.WithLabelValues(namespace).Set(float64(entries))
	a.bytes.WithLabelValues(namespace).Set(float64(bytes))
}

var _ metrics.Metrics = (*Adapter)(nil)
