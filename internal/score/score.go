package score

import (
	"fmt"
	"strings"

	"github.com/sawpanic/viralrisk/internal/config/risk"
	"github.com/sawpanic/viralrisk/internal/domain/features"
)

// Tier is the classified risk level of a score
type Tier string

const (
	TierLow         Tier = "low"
	TierMedium      Tier = "medium"
	TierHigh        Tier = "high"
	TierViralThreat Tier = "viral-threat"
)

// Tiers lists all tiers in ascending order of severity
var Tiers = [4]Tier{TierLow, TierMedium, TierHigh, TierViralThreat}

// Index returns the tier's position in ascending severity order, -1 if unknown
func (t Tier) Index() int {
	for i, tier := range Tiers {
		if tier == t {
			return i
		}
	}
	return -1
}

// ParseTier accepts canonical tier names and a few common spellings
func ParseTier(raw string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return TierLow, nil
	case "medium":
		return TierMedium, nil
	case "high":
		return TierHigh, nil
	case "viral-threat", "viral_threat", "viralthreat":
		return TierViralThreat, nil
	default:
		return "", fmt.Errorf("unknown risk tier %q", raw)
	}
}

// Score combines the six features with the configured weights, clamped to [0,1]
func Score(v features.Vector, cfg risk.Config) float64 {
	w := cfg.Weights
	weights := [6]float64{w.ToneSeverity, w.EngagementVelocity, w.UserInfluence, w.ContentLength, w.PlatformMultiplier, w.TimeDecay}
	values := v.Values()

	total := 0.0
	for i := range values {
		total += weights[i] * values[i]
	}
	return features.Clamp01(total)
}

// Classify maps a score onto a tier using the configured thresholds
func Classify(s float64, t risk.Thresholds) Tier {
	switch {
	case s >= t.ViralThreat:
		return TierViralThreat
	case s >= t.High:
		return TierHigh
	case s >= t.Medium:
		return TierMedium
	default:
		return TierLow
	}
}
