package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/viralrisk/internal/config/risk"
	"github.com/sawpanic/viralrisk/internal/domain/features"
	"github.com/sawpanic/viralrisk/internal/score"
	"github.com/sawpanic/viralrisk/internal/tune/data"
)

func TestPerfectClassification(t *testing.T) {
	var m ConfusionMatrix
	for _, tier := range score.Tiers {
		for i := 0; i < 5; i++ {
			m.Add(tier, tier)
		}
	}

	got := m.Metrics()
	assert.Equal(t, 20, got.Samples)
	assert.Equal(t, 1.0, got.Accuracy)
	assert.Equal(t, 1.0, got.MacroF1)
	assert.Equal(t, 1.0, got.Precision)
	assert.Equal(t, 1.0, got.Recall)
	assert.Equal(t, 5, got.PerTier[score.TierHigh].Support)
}

func TestMetricsKnownMatrix(t *testing.T) {
	var m ConfusionMatrix
	// low: 3 right, 1 predicted medium
	m.Add(score.TierLow, score.TierLow)
	m.Add(score.TierLow, score.TierLow)
	m.Add(score.TierLow, score.TierLow)
	m.Add(score.TierLow, score.TierMedium)
	// medium: 1 right, 1 predicted low
	m.Add(score.TierMedium, score.TierMedium)
	m.Add(score.TierMedium, score.TierLow)
	// high and viral-threat never observed or predicted

	got := m.Metrics()
	require.Equal(t, 6, got.Samples)
	assert.InDelta(t, 4.0/6.0, got.Accuracy, 1e-12)

	low := got.PerTier[score.TierLow]
	assert.InDelta(t, 0.75, low.Precision, 1e-12)
	assert.InDelta(t, 0.75, low.Recall, 1e-12)
	assert.InDelta(t, 0.75, low.F1, 1e-12)

	medium := got.PerTier[score.TierMedium]
	assert.InDelta(t, 0.5, medium.Precision, 1e-12)
	assert.InDelta(t, 0.5, medium.Recall, 1e-12)

	assert.Equal(t, TierMetrics{}, got.PerTier[score.TierHigh])
	assert.InDelta(t, (0.75+0.5)/4, got.MacroF1, 1e-12)
}

func TestEmptyMatrix(t *testing.T) {
	var m ConfusionMatrix
	got := m.Metrics()
	assert.Equal(t, 0, got.Samples)
	assert.Equal(t, 0.0, got.Accuracy)
	assert.Equal(t, 0.0, got.MacroF1)
	assert.Len(t, got.PerTier, 4)
}

func TestAddIgnoresUnknownTier(t *testing.T) {
	var m ConfusionMatrix
	m.Add("catastrophic", score.TierLow)
	assert.Equal(t, 0, m.Total())
}

func TestEvaluateMatchesScores(t *testing.T) {
	cfg := risk.Default()
	samples := []data.TrainingSample{
		{Features: features.Vector{}, ActualOutcome: data.Outcome{ObservedTier: score.TierLow}},
		{Features: features.Vector{ToneSeverity: 1, EngagementVelocity: 1, UserInfluence: 1, ContentLength: 1, PlatformMultiplier: 1, TimeDecay: 1},
			ActualOutcome: data.Outcome{ObservedTier: score.TierViralThreat}},
	}

	got := Evaluate(samples, cfg)
	assert.Equal(t, 1.0, got.Accuracy)

	scores := []float64{score.Score(samples[0].Features, cfg), score.Score(samples[1].Features, cfg)}
	assert.Equal(t, got, EvaluateScores(samples, scores, cfg.Thresholds))
}

func TestMatrixString(t *testing.T) {
	var m ConfusionMatrix
	m.Add(score.TierHigh, score.TierViralThreat)
	out := m.String()
	assert.Contains(t, out, "viral-threat")
	assert.Contains(t, out, "actual\\pred")
}
