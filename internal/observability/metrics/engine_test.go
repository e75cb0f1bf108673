package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineMetricsRecord(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewEngineMetrics(reg)
	require.NoError(t, err)

	m.SetSourcesActive(2)
	m.Fired(TriggerManual)
	m.Fired(TriggerSource)
	m.Fired(TriggerSource)
	m.RequestDropped(TriggerSource)
	m.Detection("USB Mic")
	m.SourceRetired(ReasonDead)

	assert.InDelta(t, 2, testutil.ToFloat64(m.SourcesActive), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Fires.WithLabelValues(TriggerManual)), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.Fires.WithLabelValues(TriggerSource)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Detections.WithLabelValues("USB Mic")), 0)

	count, err := testutil.GatherAndCount(reg, "wakefire_fires_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestEngineMetricsDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewEngineMetrics(reg)
	require.NoError(t, err)

	_, err = NewEngineMetrics(reg)
	assert.Error(t, err)
}

func TestNilEngineMetricsIsSafe(t *testing.T) {
	t.Parallel()

	var m *EngineMetrics
	assert.NotPanics(t, func() {
		m.SetSourcesActive(1)
		m.SourceOpened()
		m.SourceRetired(ReasonShutdown)
		m.SourceFailed(StageInit)
		m.Detection("x")
		m.DiscoveryFailed()
		m.Fired(TriggerManual)
		m.RequestDropped(TriggerManual)
		m.DebugFileWritten()
		m.ObserveTick(0.01)
		m.SetCoordinatorState(2)
	})
}
