// Package metrics holds the Prometheus collectors for the assistant and ingestion pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Queries        *prometheus.CounterVec
	Retrievals     *prometheus.CounterVec
	RuntimeLatency prometheus.Histogram
	Ingestions     *prometheus.CounterVec
	IngestDuration prometheus.Histogram
	IndexedChunks  prometheus.Gauge
	SkippedFiles   *prometheus.CounterVec
	Uploads        *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentx",
			Name:      "queries_total",
			Help:      "Queries answered, by runtime outcome.",
		}, []string{"outcome"}),
		Retrievals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentx",
			Name:      "retrievals_total",
			Help:      "Retrieval attempts, by result.",
		}, []string{"result"}),
		RuntimeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "agentx",
			Name:      "runtime_seconds",
			Help:      "Language-model runtime call duration.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
		}),
		Ingestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentx",
			Name:      "ingestions_total",
			Help:      "Index rebuilds, by status.",
		}, []string{"status"}),
		IngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "agentx",
			Name:      "ingest_seconds",
			Help:      "Full ingestion duration.",
			Buckets:   prometheus.DefBuckets,
		}),
		IndexedChunks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "agentx",
			Name:      "indexed_chunks",
			Help:      "Chunks in the live index.",
		}),
		SkippedFiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentx",
			Name:      "skipped_files_total",
			Help:      "Files left out of ingestion, by reason.",
		}, []string{"reason"}),
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentx",
			Name:      "uploads_total",
			Help:      "Upload attempts, by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.Queries, m.Retrievals, m.RuntimeLatency, m.Ingestions,
			m.IngestDuration, m.IndexedChunks, m.SkippedFiles, m.Uploads)
	}
	return m
}

func (m *Metrics) Query(outcome string) {
	if m != nil {
		m.Queries.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Retrieval(result string) {
	if m != nil {
		m.Retrievals.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) RuntimeCall(seconds float64) {
	if m != nil {
		m.RuntimeLatency.Observe(seconds)
	}
}

func (m *Metrics) Ingest(status string, seconds float64, chunks int) {
	if m == nil {
		return
	}
	m.Ingestions.WithLabelValues(status).Inc()
	m.IngestDuration.Observe(seconds)
	if status == "ok" {
		m.IndexedChunks.Set(float64(chunks))
	}
}

func (m *Metrics) Skipped(reason string) {
	if m != nil {
		m.SkippedFiles.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) Upload(result string) {
	if m != nil {
		m.Uploads.WithLabelValues(result).Inc()
	}
}
