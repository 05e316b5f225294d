package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordReload("ok", 10*time.Millisecond)
	m.RecordReload("ok", 20*time.Millisecond)
	m.RecordReload("error", time.Millisecond)
	m.RecordRollback("status")
	m.SetConnectionState("connected", []string{"connected", "disconnected"})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.reloads.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reloads.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rollbacks.WithLabelValues("status")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connState.WithLabelValues("connected")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.connState.WithLabelValues("disconnected")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordReload("ok", time.Second)
		m.RecordMutation("status", "ok")
		m.RecordPushEvent("created")
		m.SetCacheSize(3)
		m.RecordRequest("/x", "GET", 200)
	})
}
