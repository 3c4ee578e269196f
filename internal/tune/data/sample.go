// Package data builds training samples from analyzed content history and the
// outcomes observed after analysis.
package data

import (
	"math"

	"github.com/sawpanic/viralrisk/internal/config/risk"
	"github.com/sawpanic/viralrisk/internal/domain/features"
	"github.com/sawpanic/viralrisk/internal/score"
)

// Outcome is the observed result used as a training label. The score proxy is
// derived from alert existence and log-scaled engagement, not ground truth.
type Outcome struct {
	ObservedScoreProxy float64    `json:"observedScoreProxy"`
	ObservedTier       score.Tier `json:"observedTier"`
	AlertWasRaised     bool       `json:"alertWasRaised"`
	EngagementGrowth   float64    `json:"engagementGrowth"`
}

// TrainingSample pairs a feature vector with its observed outcome
type TrainingSample struct {
	SourceItemID  string          `json:"sourceItemId"`
	Features      features.Vector `json:"features"`
	ActualOutcome Outcome         `json:"actualOutcome"`
}

// Proxy weights and scale
const (
	growthWeight   = 0.6
	alertWeight    = 0.4
	growthLogScale = 5.0
)

// EngagementGrowth maps total engagement onto [0,1] on a log10 scale
// saturating at 100k interactions.
func EngagementGrowth(engagement int64) float64 {
	if engagement < 0 {
		engagement = 0
	}
	return features.Clamp01(math.Log10(1+float64(engagement)) / growthLogScale)
}

// ObserveOutcome builds the label for an item from its alert state and
// current engagement, classified with cfg's thresholds.
func ObserveOutcome(alert bool, engagement int64, cfg risk.Config) Outcome {
	growth := EngagementGrowth(engagement)
	alertTerm := 0.0
	if alert {
		alertTerm = 1
	}
	proxy := features.Clamp01(growthWeight*growth + alertWeight*alertTerm)
	return Outcome{
		ObservedScoreProxy: proxy,
		ObservedTier:       score.Classify(proxy, cfg.Thresholds),
		AlertWasRaised:     alert,
		EngagementGrowth:   growth,
	}
}
