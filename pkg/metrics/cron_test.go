package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCronJobMetricsCountsRunsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.ObserveDuration(JobLocalCompression, 90*time.Second)
	m.IncSuccess(JobLocalCompression)
	m.IncSuccess(JobLocalCompression)
	m.IncFailure(JobLocalCompression)
	m.IncSkipped()

	if got := testutil.ToFloat64(m.runs.WithLabelValues(JobLocalCompression, resultSuccess)); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := testutil.ToFloat64(m.runs.WithLabelValues(JobLocalCompression, resultFailure)); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.skipped); got != 1 {
		t.Fatalf("expected 1 skipped cycle, got %v", got)
	}
	if got := testutil.ToFloat64(m.lastSuccess.WithLabelValues(JobLocalCompression)); got <= 0 {
		t.Fatalf("expected last success timestamp, got %v", got)
	}
	if n := testutil.CollectAndCount(m.duration, "cron_job_duration_seconds"); n != 1 {
		t.Fatalf("expected one duration series, got %d", n)
	}
}

func TestCronJobMetricsUnknownJobLabel(t *testing.T) {
	m := NewCronJobMetrics(prometheus.NewRegistry())
	m.IncFailure("")
	if got := testutil.ToFloat64(m.runs.WithLabelValues("unknown", resultFailure)); got != 1 {
		t.Fatalf("expected empty job name to map to unknown, got %v", got)
	}
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	var m *CronJobMetrics
	m.ObserveDuration(JobMigration, time.Second)
	m.IncSuccess(JobMigration)
	m.IncFailure(JobMigration)
	m.IncSkipped()

	noop := NewCronJobMetrics(nil)
	noop.IncSuccess(JobMigration)
	noop.IncSkipped()
}
