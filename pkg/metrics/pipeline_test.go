package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPipelineMetricsCountsOutcomesAndBytes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPipelineMetrics(reg)

	m.ObserveRecord(JobMigration, "covers", "success", 2048)
	m.ObserveRecord(JobMigration, "covers", "success", 1024)
	m.ObserveRecord(JobMigration, "covers", "skipped", 0)

	if got := testutil.ToFloat64(m.records.WithLabelValues(JobMigration, "covers", "success")); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := testutil.ToFloat64(m.records.WithLabelValues(JobMigration, "covers", "skipped")); got != 1 {
		t.Fatalf("expected 1 skip, got %v", got)
	}
	if got := testutil.ToFloat64(m.bytes.WithLabelValues(JobMigration, "covers")); got != 3072 {
		t.Fatalf("expected 3072 bytes, got %v", got)
	}
}

func TestPipelineMetricsRunningGauge(t *testing.T) {
	m := NewPipelineMetrics(prometheus.NewRegistry())

	m.SetRunning(JobRemoteOptimization, true)
	if got := testutil.ToFloat64(m.running.WithLabelValues(JobRemoteOptimization)); got != 1 {
		t.Fatalf("expected running=1, got %v", got)
	}
	m.SetRunning(JobRemoteOptimization, false)
	if got := testutil.ToFloat64(m.running.WithLabelValues(JobRemoteOptimization)); got != 0 {
		t.Fatalf("expected running=0, got %v", got)
	}
}

func TestPipelineMetricsNilRegistererIsNoop(t *testing.T) {
	m := NewPipelineMetrics(nil)
	m.ObserveRecord(JobMigration, "pages", "error", 10)
	m.SetRunning(JobMigration, true)

	var nilMetrics *PipelineMetrics
	nilMetrics.ObserveRecord(JobMigration, "pages", "error", 10)
}
