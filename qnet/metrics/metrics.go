// Package metrics exposes the node's Prometheus collectors: microblock
// production rate, reputation score distribution, certificate cache hit
// ratio, and macroblock round outcomes (spec.md §8 observability surface).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the node's Prometheus collector bundle, registered once per
// process against a single Registerer.
type Metrics struct {
	MicroblocksProduced prometheus.Counter
	MicroblocksRejected prometheus.Counter

	// ReputationScore is registered by New; no package in this module
	// observes it (the reputation ledger records no metrics).
	ReputationScore prometheus.Histogram

	CertCacheHits   prometheus.Counter
	CertCacheMisses prometheus.Counter

	MacroblockRounds *prometheus.CounterVec
}

// New builds and registers the node's collectors under namespace.
func New(namespace string, registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		MicroblocksProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "microblocks_produced_total",
			Help:      "Number of microblocks this node has produced.",
		}),
		MicroblocksRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "microblocks_rejected_total",
			Help:      "Number of microblocks rejected by the validator path.",
		}),
		ReputationScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reputation_score",
			Help:      "Distribution of peer reputation scores.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11), // 0..100 in steps of 10
		}),
		CertCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cert_cache_hits_total",
			Help:      "Certificate verification cache hits.",
		}),
		CertCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cert_cache_misses_total",
			Help:      "Certificate verification cache misses.",
		}),
		MacroblockRounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "macroblock_rounds_total",
			Help:      "Macroblock commit/reveal rounds by outcome.",
		}, []string{"outcome"}),
	}

	collectors := []prometheus.Collector{
		m.MicroblocksProduced,
		m.MicroblocksRejected,
		m.ReputationScore,
		m.CertCacheHits,
		m.CertCacheMisses,
		m.MacroblockRounds,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Outcome labels for MacroblockRounds.
const (
	OutcomeFinalized = "finalized"
	OutcomeFailed    = "failed"
)

// ObserveRound records a macroblock round's terminal outcome.
func (m *Metrics) ObserveRound(outcome string) {
	m.MacroblockRounds.WithLabelValues(outcome).Inc()
}
