package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts ledger activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	applied       *prometheus.CounterVec
	reversed      *prometheus.CounterVec
	storeFailures *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		applied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "punish_applied_total",
				Help: "Total number of punishments committed, by type",
			},
			[]string{"type"},
		),
		reversed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "punish_reversed_total",
				Help: "Total number of punishments reversed, by reversal kind",
			},
			[]string{"kind"},
		),
		storeFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "punish_store_failures_total",
				Help: "Total number of failed punishment store operations",
			},
			[]string{"op"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "punish_cache_lookups_total",
				Help: "Active punishment cache lookups, by hit or miss",
			},
			[]string{"result"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.applied, m.reversed, m.storeFailures, m.cacheLookups)
	}
	return m
}

func (m *Metrics) incApplied(typ string) {
	if m != nil {
		m.applied.WithLabelValues(typ).Inc()
	}
}

func (m *Metrics) incReversed(kind string) {
	if m != nil {
		m.reversed.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) incStoreFailure(op string) {
	if m != nil {
		m.storeFailures.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) incCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
	} else {
		m.cacheLookups.WithLabelValues("miss").Inc()
	}
}
