package tree

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records structural mutations. A nil *Metrics records nothing.
type Metrics struct {
	moves           *prometheus.CounterVec
	prunes          prometheus.Counter
	rebuilds        *prometheus.CounterVec
	rebuildDuration *prometheus.HistogramVec
	rebuiltNodes    *prometheus.CounterVec
}

// NewMetrics registers the tree metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		moves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nestedset_moves_total",
			Help: "Number of node moves by position and outcome (moved or noop)",
		}, []string{"position", "outcome"}),
		prunes: f.NewCounter(prometheus.CounterOpts{
			Name: "nestedset_prunes_total",
			Help: "Number of branches pruned",
		}),
		rebuilds: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nestedset_rebuilds_total",
			Help: "Number of partition rebuilds by strategy",
		}, []string{"strategy"}),
		rebuildDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nestedset_rebuild_duration_seconds",
			Help:    "Duration of partition rebuilds by strategy",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"strategy"}),
		rebuiltNodes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nestedset_rebuilt_nodes_total",
			Help: "Number of nodes renumbered by rebuilds",
		}, []string{"strategy"}),
	}
}

func (m *Metrics) observeMove(pos Position, noop bool) {
	if m == nil {
		return
	}
	outcome := "moved"
	if noop {
		outcome = "noop"
	}
	m.moves.WithLabelValues(pos.String(), outcome).Inc()
}

func (m *Metrics) observePrune() {
	if m == nil {
		return
	}
	m.prunes.Inc()
}

func (m *Metrics) observeRebuild(strategy string, start time.Time, nodes int) {
	if m == nil {
		return
	}
	m.rebuilds.WithLabelValues(strategy).Inc()
	m.rebuildDuration.WithLabelValues(strategy).Observe(time.Since(start).Seconds())
	m.rebuiltNodes.WithLabelValues(strategy).Add(float64(nodes))
}
