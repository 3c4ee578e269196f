package risk

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Validation bounds for a publishable configuration
const (
	MinWeightSum          = 0.8
	MaxWeightSum          = 1.2
	MinPlatformMultiplier = 0.1
	MaxPlatformMultiplier = 5.0
	MinEmotionWeight      = 0.0
	MaxEmotionWeight      = 1.0
)

// ValidationError lists every problem found in a rejected configuration
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid risk config: %s", strings.Join(e.Problems, "; "))
}

// Validate checks the weight sum, threshold ordering and per-key ranges.
// It returns a *ValidationError or nil.
func (c Config) Validate() error {
	var problems []string

	w := c.Weights
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"toneSeverity", w.ToneSeverity},
		{"engagementVelocity", w.EngagementVelocity},
		{"userInfluence", w.UserInfluence},
		{"contentLength", w.ContentLength},
		{"platformMultiplier", w.PlatformMultiplier},
		{"timeDecay", w.TimeDecay},
	} {
		if math.IsNaN(f.value) || f.value < 0 || f.value > 1 {
			problems = append(problems, fmt.Sprintf("weight %s %.3f outside [0, 1]", f.name, f.value))
		}
	}
	if sum := w.Sum(); sum < MinWeightSum || sum > MaxWeightSum || math.IsNaN(sum) {
		problems = append(problems, fmt.Sprintf("weights sum to %.4f, must be within [%.1f, %.1f]", sum, MinWeightSum, MaxWeightSum))
	}

	t := c.Thresholds
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"low", t.Low},
		{"medium", t.Medium},
		{"high", t.High},
		{"viralThreat", t.ViralThreat},
	} {
		if math.IsNaN(f.value) || f.value < 0 || f.value > 1 {
			problems = append(problems, fmt.Sprintf("threshold %s %.3f outside [0, 1]", f.name, f.value))
		}
	}
	if !(t.Low < t.Medium && t.Medium < t.High && t.High < t.ViralThreat) {
		problems = append(problems, fmt.Sprintf("thresholds must be strictly increasing: low=%.3f medium=%.3f high=%.3f viralThreat=%.3f",
			t.Low, t.Medium, t.High, t.ViralThreat))
	}

	for _, k := range sortedKeys(c.PlatformMultipliers) {
		v := c.PlatformMultipliers[k]
		if math.IsNaN(v) || v < MinPlatformMultiplier || v > MaxPlatformMultiplier {
			problems = append(problems, fmt.Sprintf("platform multiplier %s %.3f outside [%.1f, %.1f]", k, v, MinPlatformMultiplier, MaxPlatformMultiplier))
		}
	}
	for _, k := range sortedKeys(c.EmotionWeights) {
		v := c.EmotionWeights[k]
		if math.IsNaN(v) || v < MinEmotionWeight || v > MaxEmotionWeight {
			problems = append(problems, fmt.Sprintf("emotion weight %s %.3f outside [%.1f, %.1f]", k, v, MinEmotionWeight, MaxEmotionWeight))
		}
	}

	problems = append(problems, caseCollisions("platform multiplier", c.PlatformMultipliers)...)
	problems = append(problems, caseCollisions("emotion weight", c.EmotionWeights)...)

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// caseCollisions reports keys that differ only in case; lookups are
// case-insensitive so only one of them could ever apply.
func caseCollisions(kind string, m map[string]float64) []string {
	var problems []string
	seen := make(map[string]string, len(m))
	for _, k := range sortedKeys(m) {
		lower := strings.ToLower(k)
		if prev, ok := seen[lower]; ok {
			problems = append(problems, fmt.Sprintf("%s keys %s and %s differ only in case", kind, prev, k))
			continue
		}
		seen[lower] = k
	}
	return problems
}
