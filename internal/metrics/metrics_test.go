package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RowProcessed("sent")
	m.RowProcessed("sent")
	m.RowProcessed("failed_sheet")
	m.UploadFailed()
	m.OrphanID()
	m.CycleFinished("ok", 2*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.rows.WithLabelValues("sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rows.WithLabelValues("failed_sheet")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.uploadFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.orphanIDs))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues("ok")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RowProcessed("sent")
		m.CycleFinished("ok", time.Second)
		m.UploadFailed()
		m.StatusWriteFailed()
		m.OrphanID()
	})
}
