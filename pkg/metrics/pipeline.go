package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Job names used as label values by the image pipeline.
const (
	JobMigration          = "image_migration"
	JobLocalCompression   = "local_compression"
	JobRemoteOptimization = "remote_optimization"
)

// PipelineMetrics counts per-record outcomes of the image pipeline.
type PipelineMetrics struct {
	records *prometheus.CounterVec
	bytes   *prometheus.CounterVec
	running *prometheus.GaugeVec
}

// NewPipelineMetrics registers the pipeline metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	records := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "image_pipeline_records_total",
		Help: "Records or objects processed by the image pipeline, by outcome.",
	}, []string{"job", "collection", "outcome"})
	bytes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "image_pipeline_bytes_total",
		Help: "Bytes moved (migration) or saved (compression) by the image pipeline.",
	}, []string{"job", "collection"})
	running := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "image_pipeline_job_running",
		Help: "1 while the named pipeline job is running in this process.",
	}, []string{"job"})
	reg.MustRegister(records, bytes, running)
	return &PipelineMetrics{records: records, bytes: bytes, running: running}
}

// ObserveRecord counts one processed record and the bytes it contributed.
func (p *PipelineMetrics) ObserveRecord(job, collection, outcome string, bytes int64) {
	if p == nil || p.records == nil {
		return
	}
	p.records.WithLabelValues(normalizeLabel(job), normalizeLabel(collection), normalizeLabel(outcome)).Inc()
	if bytes > 0 {
		p.bytes.WithLabelValues(normalizeLabel(job), normalizeLabel(collection)).Add(float64(bytes))
	}
}

// SetRunning flips the running gauge for job.
func (p *PipelineMetrics) SetRunning(job string, running bool) {
	if p == nil || p.running == nil {
		return
	}
	value := 0.0
	if running {
		value = 1
	}
	p.running.WithLabelValues(normalizeLabel(job)).Set(value)
}
