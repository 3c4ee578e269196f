package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func TestRecordPrediction(t *testing.T) {
	r := NewRegistry(prometheus.NewRegistry())

	r.RecordPrediction("high", "current", 0.7)
	r.RecordPrediction("high", "current", 0.65)
	r.RecordPrediction("low", "abtest", 0.1)

	assert.Equal(t, 2.0, counterValue(t, r.Predictions.WithLabelValues("high", "current")))
	assert.Equal(t, 1.0, counterValue(t, r.Predictions.WithLabelValues("low", "abtest")))

	var m dto.Metric
	require.NoError(t, r.RiskScore.Write(&m))
	assert.Equal(t, uint64(3), m.GetHistogram().GetSampleCount())
}

func TestCircuitState(t *testing.T) {
	r := NewRegistry(prometheus.NewRegistry())

	tests := []struct {
		state string
		want  float64
	}{
		{"closed", 0},
		{"half-open", 1},
		{"open", 2},
	}
	for _, tt := range tests {
		r.SetCircuitState("sentiment", tt.state)
		assert.Equal(t, tt.want, gaugeValue(t, r.ProviderCircuit.WithLabelValues("sentiment")), tt.state)
	}
}

func TestSetActiveVersionMovesMarker(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistry(reg)

	r.SetActiveVersion("v1-a")
	r.SetActiveVersion("v1-b")

	families, err := reg.Gather()
	require.NoError(t, err)
	var versions []string
	for _, f := range families {
		if f.GetName() != "viralrisk_config_active_version" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				versions = append(versions, l.GetValue())
			}
		}
	}
	assert.Equal(t, []string{"v1-b"}, versions)
}

func TestRecordTraining(t *testing.T) {
	r := NewRegistry(prometheus.NewRegistry())
	r.RecordTraining("published", 120, 0.41, 0.58)

	assert.Equal(t, 1.0, counterValue(t, r.TrainingRuns.WithLabelValues("published")))
	assert.Equal(t, 120.0, gaugeValue(t, r.TrainingSamples))
	assert.Equal(t, 0.58, gaugeValue(t, r.TrainingMacroF1.WithLabelValues("optimal")))
}

func TestStepTimer(t *testing.T) {
	r := NewRegistry(prometheus.NewRegistry())
	r.StartStepTimer(StepPredict).Stop(ResultSuccess)

	var m dto.Metric
	obs, err := r.StepDuration.GetMetricWithLabelValues(StepPredict, ResultSuccess)
	require.NoError(t, err)
	require.NoError(t, obs.(prometheus.Metric).Write(&m))
	assert.Equal(t, uint64(1), m.GetHistogram().GetSampleCount())
}

func TestHandlerServesRegistry(t *testing.T) {
	r := NewRegistry(nil)
	r.RecordConfigEvent("config.published")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `viralrisk_config_events_total{event="config.published"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
