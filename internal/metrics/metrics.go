package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AcquireAttemptsTotal counts individual try-acquire calls per backend
	// and outcome.
	AcquireAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lock_acquire_attempts_total",
			Help: "Total number of single lock acquisition attempts.",
		},
		[]string{"backend", "outcome"},
	)

	// AcquisitionsTotal counts completed acquisition episodes.
	AcquisitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lock_acquisitions_total",
			Help: "Total number of completed lock acquisition episodes.",
		},
		[]string{"backend", "status"}, // status: acquired / exhausted / cancelled
	)

	// AcquireDurationSeconds observes how long an acquisition episode took,
	// retries and sleeps included.
	AcquireDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lock_acquire_duration_seconds",
			Help:    "Duration of lock acquisition episodes including retries.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"backend"},
	)

	// HeldLocks tracks how many locks this process currently holds.
	HeldLocks = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lock_held",
			Help: "Number of locks currently held by this process.",
		},
		[]string{"backend"},
	)

	// UnlockFailuresTotal counts releases that reported failure.
	UnlockFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lock_unlock_failures_total",
			Help: "Total number of failed lock releases.",
		},
		[]string{"backend"},
	)
)
