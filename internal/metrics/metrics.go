package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsInitOnce sync.Once
	sharedMetrics   *relayerMetrics
)

type relayerMetrics struct {
	reads       *prometheus.CounterVec
	refreshes   *prometheus.CounterVec
	refreshTime prometheus.Histogram
	writes      *prometheus.CounterVec
	transitions *prometheus.CounterVec
	confirmWait prometheus.Histogram
}

func get() *relayerMetrics {
	metricsInitOnce.Do(func() {
		m := &relayerMetrics{
			reads: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "quest_relayer_chain_reads_total",
				Help: "Chain reads by endpoint role and outcome.",
			}, []string{"role", "outcome"}),
			refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "quest_relayer_snapshot_refreshes_total",
				Help: "Snapshot refreshes by kind and whether they were published or discarded as stale.",
			}, []string{"kind", "result"}),
			refreshTime: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "quest_relayer_snapshot_refresh_seconds",
				Help:    "Wall time of a full four endpoint refresh.",
				Buckets: prometheus.DefBuckets,
			}),
			writes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "quest_relayer_quest_submissions_total",
				Help: "Quest completion submissions by outcome.",
			}, []string{"outcome"}),
			transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "quest_relayer_lifecycle_transitions_total",
				Help: "Transaction lifecycle transitions by target phase.",
			}, []string{"phase"}),
			confirmWait: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "quest_relayer_confirmation_wait_seconds",
				Help:    "Time from broadcast until the receipt was found.",
				Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
			}),
		}
		prometheus.MustRegister(m.reads, m.refreshes, m.refreshTime, m.writes, m.transitions, m.confirmWait)
		sharedMetrics = m
	})
	return sharedMetrics
}

// Init registers the collectors with the default registry.
func Init() {
	get()
}

func ObserveRead(role, outcome string) {
	get().reads.WithLabelValues(role, outcome).Inc()
}

func ObserveRefresh(kind string, published bool, took time.Duration) {
	result := "published"
	if !published {
		result = "stale"
	}
	m := get()
	m.refreshes.WithLabelValues(kind, result).Inc()
	if kind == "full" {
		m.refreshTime.Observe(took.Seconds())
	}
}

func ObserveSubmission(outcome string) {
	get().writes.WithLabelValues(outcome).Inc()
}

func ObserveTransition(phase string) {
	get().transitions.WithLabelValues(phase).Inc()
}

func ObserveConfirmationWait(took time.Duration) {
	get().confirmWait.Observe(took.Seconds())
}
