package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if matchLabels(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(metric *dto.Metric, labels map[string]string) bool {
	for _, lp := range metric.GetLabel() {
		if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
			return false
		}
	}
	return true
}

func TestWidgetMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWidgetMetrics(reg)

	m.ObserveResolution(5)
	m.ObserveResolution(0)
	m.ObserveResolution(0)
	m.ObserveResolution(-1)
	m.ObserveSubmission("submitted")
	m.ObserveMutation("select_date")
	m.ObserveMutation("select_date")
	m.ObserveSubmitLatency("http", 0.2)

	assert.Equal(t, 1.0, counterValue(t, reg, "widget_slot_resolutions_total", map[string]string{"result": "slots"}))
	assert.Equal(t, 2.0, counterValue(t, reg, "widget_slot_resolutions_total", map[string]string{"result": "empty"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "widget_slot_resolutions_total", map[string]string{"result": "error"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "widget_submissions_total", map[string]string{"status": "submitted"}))
	assert.Equal(t, 2.0, counterValue(t, reg, "widget_session_mutations_total", map[string]string{"op": "select_date"}))

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "widget_eligible_slots" {
			assert.Equal(t, uint64(3), mf.GetMetric()[0].GetHistogram().GetSampleCount())
		}
	}
}

func TestWidgetMetricsNilSafe(t *testing.T) {
	var m *WidgetMetrics
	m.ObserveResolution(3)
	m.ObserveSubmission("failed")
	m.ObserveMutation("reset")
	m.ObserveSubmitLatency("sqs", 0.1)
}
