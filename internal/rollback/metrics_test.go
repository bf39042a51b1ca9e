package rollback

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetricsRegistersAllInstruments(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "test-session")

	m.RollbackCount.Inc()
	m.DesyncCount.Inc()
	m.DisconnectCount.WithLabelValues("1").Inc()
	m.RollbackDepth.Observe(3)
	m.FrameAdvantage.WithLabelValues("0").Set(4)

	if got := testutil.ToFloat64(m.RollbackCount); got != 1 {
		t.Fatalf("RollbackCount = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.DesyncCount); got != 1 {
		t.Fatalf("DesyncCount = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.DisconnectCount.WithLabelValues("1")); got != 1 {
		t.Fatalf("DisconnectCount[1] = %v, want 1", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) != 5 {
		t.Fatalf("Gather() returned %d metric families, want 5", len(families))
	}
}

func TestNewMetricsPanicsOnDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg, "dup")

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic registering the same metrics twice against one registry")
		}
	}()
	NewMetrics(reg, "dup")
}
