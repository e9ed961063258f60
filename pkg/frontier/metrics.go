package frontier

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Reasons a URL is turned away by Enqueue or OfferAll
const (
	RejectBlank     = "blank"
	RejectDuplicate = "duplicate"
	RejectHistory   = "history"
	RejectAccessed  = "accessed"
	RejectFiltered  = "filtered"
)

type storeMetrics struct {
	enqueued prometheus.Counter
	dequeued prometheus.Counter
	recorded prometheus.Counter
	rejected *prometheus.CounterVec
	sessions prometheus.Gauge
}

func newStoreMetrics() *storeMetrics {
	return &storeMetrics{
		enqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crawler",
			Subsystem: "frontier",
			Name:      "enqueued_total",
			Help:      "URLs admitted to a session queue.",
		}),
		dequeued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crawler",
			Subsystem: "frontier",
			Name:      "dequeued_total",
			Help:      "URLs handed out by a session queue.",
		}),
		recorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crawler",
			Subsystem: "frontier",
			Name:      "access_results_total",
			Help:      "Access results recorded.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crawler",
			Subsystem: "frontier",
			Name:      "rejected_total",
			Help:      "URLs turned away, by reason.",
		}, []string{"reason"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "crawler",
			Subsystem: "frontier",
			Name:      "sessions",
			Help:      "Sessions currently materialized.",
		}),
	}
}

func (m *storeMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.enqueued, m.dequeued, m.recorded, m.rejected, m.sessions}
}

func (m *storeMetrics) register(reg prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
