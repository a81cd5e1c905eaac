package mrs

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.addSteps(10, 2)
	m.evaluation()
	m.segment()
	m.event(StagingEvent)
	m.event(StagingEvent)
	if v := testutil.ToFloat64(m.Steps); v != 10 {
		t.Fatalf("steps = %f", v)
	}
	if v := testutil.ToFloat64(m.Rejected); v != 2 {
		t.Fatalf("rejected = %f", v)
	}
	if v := testutil.ToFloat64(m.Events.WithLabelValues("staging")); v != 2 {
		t.Fatalf("staging events = %f", v)
	}
	if n, err := testutil.GatherAndCount(reg); err != nil || n != 5 {
		t.Fatalf("gathered %d metrics (%v)", n, err)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.addSteps(1, 1)
	m.evaluation()
	m.segment()
	m.event(UserEvent)
	if NewMetrics(nil).Steps == nil {
		t.Fatal("unregistered metrics should still be usable")
	}
}
