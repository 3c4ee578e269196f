package tune

import (
	"fmt"
	"math"
	"sort"

	"github.com/sawpanic/viralrisk/internal/score"
	"github.com/sawpanic/viralrisk/internal/tune/data"
)

// Suggestion triggers
const (
	minAccuracy        = 0.7
	minPrecision       = 0.6
	minRecall          = 0.6
	recommendedSamples = 200
	maxImportanceRatio = 10.0
	maxTierImbalance   = 10.0
)

// Suggestions returns advisory notes for a training result. They never block
// publication.
func Suggestions(res Result, samples []data.TrainingSample) []string {
	var out []string
	perf := res.Performance

	if perf.Accuracy < minAccuracy {
		out = append(out, fmt.Sprintf("Validation accuracy %.2f is below %.2f; consider richer features or cleaner outcome labels", perf.Accuracy, minAccuracy))
	}
	if perf.Precision < minPrecision {
		out = append(out, fmt.Sprintf("Macro precision %.2f is below %.2f; raise thresholds to cut false alarms", perf.Precision, minPrecision))
	}
	if perf.Recall < minRecall {
		out = append(out, fmt.Sprintf("Macro recall %.2f is below %.2f; lower thresholds to catch more escalations", perf.Recall, minRecall))
	}
	if len(samples) < recommendedSamples {
		out = append(out, fmt.Sprintf("Only %d samples collected; %d or more give more stable estimates", len(samples), recommendedSamples))
	}

	if name, ratio, ok := importanceSpread(res.FeatureImportance); ok && ratio > maxImportanceRatio {
		out = append(out, fmt.Sprintf("Feature importance is dominated by %s (max/min ratio %.1f); check for a saturated or missing signal", name, ratio))
	}

	if note := tierImbalance(samples); note != "" {
		out = append(out, note)
	}

	return out
}

// importanceSpread returns the dominant feature and the max/min importance
// ratio. A zero minimum with a positive maximum yields +Inf.
func importanceSpread(importance map[string]float64) (string, float64, bool) {
	if len(importance) == 0 {
		return "", 0, false
	}
	names := make([]string, 0, len(importance))
	for name := range importance {
		names = append(names, name)
	}
	sort.Strings(names)

	maxName := names[0]
	maxV, minV := importance[names[0]], importance[names[0]]
	for _, name := range names[1:] {
		v := importance[name]
		if v > maxV {
			maxV, maxName = v, name
		}
		if v < minV {
			minV = v
		}
	}
	if maxV <= 0 {
		return "", 0, false
	}
	if minV <= 0 {
		return maxName, math.Inf(1), true
	}
	return maxName, maxV / minV, true
}

func tierImbalance(samples []data.TrainingSample) string {
	counts := make(map[score.Tier]int, len(score.Tiers))
	for _, s := range samples {
		counts[s.ActualOutcome.ObservedTier]++
	}

	var missing []string
	minC, maxC := -1, 0
	for _, tier := range score.Tiers {
		c := counts[tier]
		if c == 0 {
			missing = append(missing, string(tier))
			continue
		}
		if minC < 0 || c < minC {
			minC = c
		}
		if c > maxC {
			maxC = c
		}
	}

	if len(missing) > 0 {
		return fmt.Sprintf("No samples observed for tiers %v; their F1 is scored as 0", missing)
	}
	if float64(maxC) > maxTierImbalance*float64(minC) {
		return fmt.Sprintf("Class imbalance: largest tier has %d samples, smallest has %d", maxC, minC)
	}
	return ""
}
