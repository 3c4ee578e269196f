package score

import (
	"fmt"

	"github.com/sawpanic/viralrisk/internal/domain/features"
)

// Reasoning produces the ordered human-readable justifications for a
// prediction. It is explanatory only.
func Reasoning(v features.Vector, s float64, tier Tier) []string {
	var out []string

	switch {
	case v.ToneSeverity > 0.7:
		out = append(out, fmt.Sprintf("High tone severity (%.2f): strongly negative sentiment and emotions detected", v.ToneSeverity))
	case v.ToneSeverity > 0.4:
		out = append(out, fmt.Sprintf("Moderate tone severity (%.2f): noticeable negative sentiment", v.ToneSeverity))
	}

	switch {
	case v.EngagementVelocity > 0.7:
		out = append(out, fmt.Sprintf("Rapid engagement velocity (%.2f): content is spreading quickly", v.EngagementVelocity))
	case v.EngagementVelocity > 0.4:
		out = append(out, fmt.Sprintf("Elevated engagement velocity (%.2f)", v.EngagementVelocity))
	}

	switch {
	case v.UserInfluence > 0.7:
		out = append(out, fmt.Sprintf("Influential author (%.2f): large or verified audience amplifies reach", v.UserInfluence))
	case v.UserInfluence > 0.4:
		out = append(out, fmt.Sprintf("Moderately influential author (%.2f)", v.UserInfluence))
	}

	if v.PlatformMultiplier > 0.9 {
		out = append(out, "High-amplification platform")
	}

	if v.TimeDecay >= 1.0 {
		out = append(out, "Fresh content: posted within the last 6 hours")
	} else if v.TimeDecay <= 0.2 {
		out = append(out, "Older content: more than 3 days since posting")
	}

	if len(out) == 0 {
		out = append(out, "No elevated risk signals detected")
	}

	return append(out, fmt.Sprintf("Overall risk score %.3f classified as %s", s, tier))
}
