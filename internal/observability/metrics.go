package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	leaderboardPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "performance_service",
		Subsystem: "leaderboard",
		Name:      "last_refresh_timestamp_seconds",
		Help:      "Unix timestamp of the most recent leaderboard document persisted.",
	})
	refreshCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "performance_service",
		Subsystem: "leaderboard",
		Name:      "refreshes_total",
		Help:      "Number of leaderboard refreshes, labeled by outcome (ok, error, stale).",
	}, []string{"outcome"})
	refreshDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "performance_service",
		Subsystem: "leaderboard",
		Name:      "refresh_duration_seconds",
		Help:      "Time spent reading inputs, computing and persisting the leaderboard.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	})
	entriesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "performance_service",
		Subsystem: "leaderboard",
		Name:      "entries",
		Help:      "Number of ranked entries in the most recent leaderboard.",
	})
	droppedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "performance_service",
		Subsystem: "leaderboard",
		Name:      "dropped_inputs_total",
		Help:      "Inputs skipped during aggregation, labeled by reason.",
	}, []string{"reason"})
	resultRecordedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "performance_service",
		Subsystem: "persistence",
		Name:      "last_result_recorded_timestamp_seconds",
		Help:      "Unix timestamp of the most recent result written to the store.",
	})
)

// Refresh outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
	OutcomeStale = "stale"
)

func init() {
	prometheus.MustRegister(leaderboardPersistGauge, refreshCounter, refreshDuration, entriesGauge, droppedCounter, resultRecordedGauge)
}

// RecordRefresh counts a refresh by outcome and observes its duration.
func RecordRefresh(outcome string, took time.Duration) {
	refreshCounter.WithLabelValues(outcome).Inc()
	refreshDuration.Observe(took.Seconds())
}

// RecordLeaderboardPersisted updates the persistence watermark gauge.
func RecordLeaderboardPersisted(ts time.Time, entries int) {
	if ts.IsZero() {
		return
	}
	leaderboardPersistGauge.Set(float64(ts.Unix()))
	entriesGauge.Set(float64(entries))
}

// RecordDropped adds n to the dropped-input counter for reason.
func RecordDropped(reason string, n int) {
	if n <= 0 {
		return
	}
	droppedCounter.WithLabelValues(reason).Add(float64(n))
}

// RecordResultRecorded updates the result watermark gauge.
func RecordResultRecorded(ts time.Time) {
	if ts.IsZero() {
		return
	}
	resultRecordedGauge.Set(float64(ts.Unix()))
}
