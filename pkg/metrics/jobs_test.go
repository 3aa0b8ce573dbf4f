package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestJobMetricsNilRegistererIsNoop(t *testing.T) {
	m := NewJobMetrics(nil)
	m.ObserveDuration("stock-sync", time.Second)
	m.IncSuccess("stock-sync")
	m.IncFailure("stock-sync")
}

func TestJobMetricsRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewJobMetrics(reg)
	m.ObserveDuration("stock-sync", 250*time.Millisecond)
	m.IncSuccess("stock-sync")
	m.IncFailure("")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) != 3 {
		t.Fatalf("expected 3 metric families, got %d", len(families))
	}
}

func TestSyncMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSyncMetrics(reg)
	m.AddUpdated("stock_to_crm", 3)
	m.AddFailed("stock_to_crm", 1)
	m.AddUpdated("stock_to_crm", 0)
	m.IncDocument("success")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) != 3 {
		t.Fatalf("expected 3 metric families, got %d", len(families))
	}
}
