// Package metrics exposes Prometheus collectors for collections.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors shared by every collection registered on one registry.
type Metrics struct {
	// Operations counts collection operations, labeled by collection, operation and outcome.
	Operations *prometheus.CounterVec

	// SearchDuration measures search latency.
	// Buckets span a cached in-memory hit up to a very wide beam on a large graph.
	SearchDuration *prometheus.HistogramVec

	// LiveRecords tracks the number of live records.
	LiveRecords *prometheus.GaugeVec

	// Tombstones tracks deleted records still held as graph bridges.
	Tombstones *prometheus.GaugeVec
}

// New registers the collectors on reg under the given namespace.
// A nil reg registers on prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of collection operations",
			},
			[]string{"collection", "op", "outcome"},
		),
		SearchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_duration_seconds",
				Help:      "Duration of nearest neighbor searches in seconds",
				Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"collection"},
		),
		LiveRecords: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "records",
				Help:      "Number of live records",
			},
			[]string{"collection"},
		),
		Tombstones: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tombstones",
				Help:      "Number of deleted records kept in the graph",
			},
			[]string{"collection"},
		),
	}
}

// For returns an observer bound to one collection name.
func (m *Metrics) For(collection string) *Observer {
	if m == nil {
		return nil
	}
	return &Observer{m: m, name: collection}
}

// Observer records the metrics of a single collection. A nil Observer discards everything.
type Observer struct {
	m    *Metrics
	name string
}

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeNotFound = "not_found"
)

// Op counts one operation with its outcome.
func (o *Observer) Op(op, outcome string) {
	if o == nil {
		return
	}
	o.m.Operations.WithLabelValues(o.name, op, outcome).Inc()
}

// Search records one search taking d.
func (o *Observer) Search(d time.Duration, err error) {
	if o == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	o.m.Operations.WithLabelValues(o.name, "search", outcome).Inc()
	o.m.SearchDuration.WithLabelValues(o.name).Observe(d.Seconds())
}

// Size publishes the live and tombstone counts.
func (o *Observer) Size(live, tombstones int) {
	if o == nil {
		return
	}
	o.m.LiveRecords.WithLabelValues(o.name).Set(float64(live))
	o.m.Tombstones.WithLabelValues(o.name).Set(float64(tombstones))
}
