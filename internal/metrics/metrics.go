// Package metrics exposes prometheus collectors for the ticket pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the pipeline collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	rows                *prometheus.CounterVec
	cycles              *prometheus.CounterVec
	cycleDuration       prometheus.Histogram
	uploadFailures      prometheus.Counter
	statusWriteFailures prometheus.Counter
	orphanIDs           prometheus.Counter
}

// New registers the pipeline collectors on reg. Passing nil creates
// unregistered collectors.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		rows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eventpass_rows_total",
			Help: "Rows handled by the row processor, by outcome",
		}, []string{"outcome"}),
		cycles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eventpass_cycles_total",
			Help: "Polling cycles, by result",
		}, []string{"result"}),
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "eventpass_cycle_duration_seconds",
			Help:    "Wall time of one polling cycle",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		uploadFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "eventpass_upload_failures_total",
			Help: "Asset uploads that failed (non-fatal to the row)",
		}),
		statusWriteFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "eventpass_status_write_failures_total",
			Help: "Best-effort status writes to the sheet or store that failed",
		}),
		orphanIDs: f.NewCounter(prometheus.CounterOpts{
			Name: "eventpass_orphan_ids_total",
			Help: "Rows holding an attendee id with no matching store record",
		}),
	}
}

// RowProcessed counts one row outcome.
func (m *Metrics) RowProcessed(outcome string) {
	if m == nil {
		return
	}
	m.rows.WithLabelValues(outcome).Inc()
}

// CycleFinished records a cycle result ("ok", "idle", "skipped", "failed").
func (m *Metrics) CycleFinished(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(result).Inc()
	m.cycleDuration.Observe(d.Seconds())
}

func (m *Metrics) UploadFailed() {
	if m == nil {
		return
	}
	m.uploadFailures.Inc()
}

func (m *Metrics) StatusWriteFailed() {
	if m == nil {
		return
	}
	m.statusWriteFailures.Inc()
}

func (m *Metrics) OrphanID() {
	if m == nil {
		return
	}
	m.orphanIDs.Inc()
}
