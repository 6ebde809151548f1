package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewPipeline_RegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPipeline(reg)

	p.Generated.WithLabelValues("FREE").Inc()
	p.LedgerWriteFailures.Inc()

	if got := testutil.ToFloat64(p.Generated.WithLabelValues("FREE")); got != 1 {
		t.Errorf("generated_total{plan=FREE} = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(p.LedgerWriteFailures); n != 1 {
		t.Errorf("ledger_write_failures_total collected %d series, want 1", n)
	}

	// Two pipelines on separate registries don't collide.
	NewPipeline(prometheus.NewRegistry())
}

func TestNewHTTP(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := NewHTTP(reg)

	h.Requests.WithLabelValues("GET", "/healthz", "200").Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "excuse_http_requests_total" {
			found = true
		}
	}
	if !found {
		t.Error("excuse_http_requests_total not registered")
	}
}
