package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordAlert("STANDARD", true)
	r.RecordAlert("STANDARD", true)
	r.RecordAlert("HIGH_RISK", false)
	r.RecordDuplicate()
	r.RecordCycle(3*time.Second, 10, 7, true)

	if got := testutil.ToFloat64(r.alerts.WithLabelValues("STANDARD", "sent")); got != 2 {
		t.Fatalf("sent = %v", got)
	}
	if got := testutil.ToFloat64(r.alerts.WithLabelValues("HIGH_RISK", "failed")); got != 1 {
		t.Fatalf("failed = %v", got)
	}
	if got := testutil.ToFloat64(r.duplicates); got != 1 {
		t.Fatalf("duplicates = %v", got)
	}
	if got := testutil.ToFloat64(r.cycles.WithLabelValues("degraded")); got != 1 {
		t.Fatalf("degraded cycles = %v", got)
	}
	if got := testutil.ToFloat64(r.cycleAssets.WithLabelValues("analyzed")); got != 7 {
		t.Fatalf("analyzed = %v", got)
	}
}

func TestNewOnSeparateRegistries(t *testing.T) {
	// two recorders must not collide when each has its own registry
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
}
