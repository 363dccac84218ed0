package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordHostCall(t *testing.T) {
	ResetMetrics()

	RecordHostCall(10*time.Millisecond, nil)
	RecordHostCall(30*time.Millisecond, errors.New("status 500"))

	m := GetMetrics()
	assert.Equal(t, int64(2), m.HostCalls())
	assert.Equal(t, int64(1), m.HostErrors())
	assert.InDelta(t, 20.0, m.AverageHostLatency(), 0.001)
	assert.InDelta(t, 50.0, m.HostErrorRate(), 0.001)
}

func TestRecordAICallAndCleanup(t *testing.T) {
	ResetMetrics()

	RecordAICall(nil, false)
	RecordAICall(errors.New("timed out"), true)
	RecordCleanupRun(3)
	RecordCleanupRun(0)

	m := GetMetrics()
	assert.Equal(t, int64(2), m.AICalls())
	assert.Equal(t, int64(1), m.AIErrors())
	assert.Equal(t, int64(1), m.AITimeouts())
	assert.Equal(t, int64(2), m.CleanupRuns())
	assert.Equal(t, int64(3), m.AttachmentsDeleted())
}

func TestZeroSnapshot(t *testing.T) {
	ResetMetrics()
	m := GetMetrics()
	assert.Equal(t, float64(0), m.AverageHostLatency())
	assert.Equal(t, float64(0), m.HostErrorRate())
}

func TestRegister(t *testing.T) {
	ResetMetrics()
	RecordCleanupRun(2)

	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))

	families, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			if c := m.GetCounter(); c != nil {
				values[f.GetName()] = c.GetValue()
			}
		}
	}
	assert.Equal(t, float64(2), values["flowme_attachments_deleted_total"])
	assert.Equal(t, float64(1), values["flowme_cleanup_runs_total"])

	assert.Error(t, Register(reg), "registering twice should fail")
}
