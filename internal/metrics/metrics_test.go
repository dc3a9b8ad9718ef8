package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestUpdatesDroppedIncrements(t *testing.T) {
	before := testutil.ToFloat64(UpdatesDropped.WithLabelValues("ingest"))
	UpdatesDropped.WithLabelValues("ingest").Inc()
	after := testutil.ToFloat64(UpdatesDropped.WithLabelValues("ingest"))

	if after != before+1 {
		t.Errorf("expected UpdatesDropped{queue=ingest} to increment by 1, got %v -> %v", before, after)
	}
}

func TestSubscribersConnectedGauge(t *testing.T) {
	SubscribersConnected.Set(0)
	SubscribersConnected.Inc()
	SubscribersConnected.Inc()
	SubscribersConnected.Dec()

	if got := testutil.ToFloat64(SubscribersConnected); got != 1 {
		t.Errorf("expected SubscribersConnected == 1, got %v", got)
	}
}

func TestWorkerRestartsLabeledBySource(t *testing.T) {
	WorkerRestarts.WithLabelValues("journal").Inc()
	if got := testutil.ToFloat64(WorkerRestarts.WithLabelValues("journal")); got < 1 {
		t.Errorf("expected WorkerRestarts{source=journal} >= 1, got %v", got)
	}
}
