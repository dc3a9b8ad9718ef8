// Package metrics exposes the daemon's operational prometheus collectors:
// ingest-queue depth, per-source poll duration, dropped-update counters,
// worker restarts, and connected-subscriber count. This is an ambient
// concern the teacher carries throughout internal/api; it is not named by
// the spec but is required to remain observable in production the way the
// teacher's services always are.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PollDuration records how long each pull source's poll() took.
	PollDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hostwatchd",
		Subsystem: "source",
		Name:      "poll_duration_seconds",
		Help:      "Duration of a single pull-source poll() call.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"source"})

	// UpdatesDropped counts updates dropped on a full try-send queue,
	// labeled by which queue dropped them (ingest, or a subscriber).
	UpdatesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hostwatchd",
		Subsystem: "fabric",
		Name:      "updates_dropped_total",
		Help:      "Updates dropped because a queue was full.",
	}, []string{"queue"})

	// IngestQueueDepth reports the current occupancy of the fabric's
	// ingest channel.
	IngestQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "hostwatchd",
		Subsystem: "fabric",
		Name:      "ingest_queue_depth",
		Help:      "Current number of updates buffered in the ingest queue.",
	})

	// SubscribersConnected is the number of live SSE subscribers.
	SubscribersConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "hostwatchd",
		Subsystem: "fabric",
		Name:      "subscribers_connected",
		Help:      "Currently connected SSE subscribers.",
	})

	// WorkerRestarts counts push-source worker restarts after failure,
	// labeled by source id.
	WorkerRestarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hostwatchd",
		Subsystem: "source",
		Name:      "worker_restarts_total",
		Help:      "Push-source follower worker restarts after failure.",
	}, []string{"source"})
)
