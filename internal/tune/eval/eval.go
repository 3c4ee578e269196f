// Package eval scores a configuration against labelled samples using a 4x4
// confusion matrix over the risk tiers.
package eval

import (
	"fmt"
	"strings"

	"github.com/sawpanic/viralrisk/internal/config/risk"
	"github.com/sawpanic/viralrisk/internal/score"
	"github.com/sawpanic/viralrisk/internal/tune/data"
)

// ConfusionMatrix counts samples by [actual][predicted] tier index
type ConfusionMatrix [4][4]int

// Add records one observation. Unknown tiers are ignored.
func (m *ConfusionMatrix) Add(actual, predicted score.Tier) {
	a, p := actual.Index(), predicted.Index()
	if a < 0 || p < 0 {
		return
	}
	m[a][p]++
}

// Total returns the number of recorded observations
func (m ConfusionMatrix) Total() int {
	n := 0
	for i := range m {
		for j := range m[i] {
			n += m[i][j]
		}
	}
	return n
}

// String renders the matrix with actual tiers as rows
func (m ConfusionMatrix) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-14s", "actual\\pred")
	for _, t := range score.Tiers {
		fmt.Fprintf(&b, "%14s", t)
	}
	for i, t := range score.Tiers {
		fmt.Fprintf(&b, "\n%-14s", t)
		for j := range score.Tiers {
			fmt.Fprintf(&b, "%14d", m[i][j])
		}
	}
	return b.String()
}

// TierMetrics holds one-vs-rest metrics for a tier
type TierMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Metrics summarises classification quality. Macro averages weight all four
// tiers equally, including tiers absent from the sample.
type Metrics struct {
	Accuracy  float64                    `json:"accuracy"`
	Precision float64                    `json:"precision"`
	Recall    float64                    `json:"recall"`
	MacroF1   float64                    `json:"macroF1"`
	PerTier   map[score.Tier]TierMetrics `json:"perTier"`
	Matrix    ConfusionMatrix            `json:"confusionMatrix"`
	Samples   int                        `json:"samples"`
}

// Metrics derives per-tier and macro metrics. A ratio with a zero
// denominator counts as 0.
func (m ConfusionMatrix) Metrics() Metrics {
	out := Metrics{
		PerTier: make(map[score.Tier]TierMetrics, len(score.Tiers)),
		Matrix:  m,
		Samples: m.Total(),
	}

	correct := 0
	for i, tier := range score.Tiers {
		tp := m[i][i]
		correct += tp

		var predicted, actual int
		for k := range score.Tiers {
			predicted += m[k][i]
			actual += m[i][k]
		}

		precision := ratio(tp, predicted)
		recall := ratio(tp, actual)
		f1 := 0.0
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}

		out.PerTier[tier] = TierMetrics{Precision: precision, Recall: recall, F1: f1, Support: actual}
		out.Precision += precision
		out.Recall += recall
		out.MacroF1 += f1
	}

	n := float64(len(score.Tiers))
	out.Precision /= n
	out.Recall /= n
	out.MacroF1 /= n
	out.Accuracy = ratio(correct, out.Samples)
	return out
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// Evaluate classifies every sample with cfg and compares against its observed tier
func Evaluate(samples []data.TrainingSample, cfg risk.Config) Metrics {
	var m ConfusionMatrix
	for _, s := range samples {
		predicted := score.Classify(score.Score(s.Features, cfg), cfg.Thresholds)
		m.Add(s.ActualOutcome.ObservedTier, predicted)
	}
	return m.Metrics()
}

// EvaluateScores classifies precomputed scores with the given thresholds.
// scores[i] must correspond to samples[i].
func EvaluateScores(samples []data.TrainingSample, scores []float64, t risk.Thresholds) Metrics {
	var m ConfusionMatrix
	for i, s := range samples {
		m.Add(s.ActualOutcome.ObservedTier, score.Classify(scores[i], t))
	}
	return m.Metrics()
}
