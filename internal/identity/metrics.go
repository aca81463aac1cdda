package identity

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "taxcase_principal_cache_hits_total",
			Help: "Principal lookups served from cache",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "taxcase_principal_cache_misses_total",
			Help: "Principal lookups that went to the directory",
		}),
	}
}

func (m *Metrics) IncHit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

func (m *Metrics) IncMiss() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}
