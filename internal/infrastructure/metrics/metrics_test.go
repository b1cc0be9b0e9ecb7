package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()

	m := New(registry)

	if m.EntriesPosted == nil || m.HTTPRequests == nil || m.ProjectionCache == nil {
		t.Fatalf("expected key metrics to be initialized: %+v", m)
	}

	m.EntriesPosted.Inc()
	m.PostingErrors.WithLabelValues("unbalanced").Inc()

	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	if len(metricFamilies) == 0 {
		t.Fatalf("expected registered metrics, got none")
	}

	if got := testutil.ToFloat64(m.EntriesPosted); got != 1 {
		t.Errorf("entries posted = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PostingErrors.WithLabelValues("unbalanced")); got != 1 {
		t.Errorf("posting errors = %v, want 1", got)
	}
}

func TestNewTwiceOnSeparateRegistries(t *testing.T) {
	// Each registry gets its own collectors; no duplicate registration panic.
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
}
