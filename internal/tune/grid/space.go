// Package grid defines the bounded configuration space searched by the
// trainer and the rules that prune inadmissible candidates.
package grid

import (
	"fmt"

	"github.com/sawpanic/viralrisk/internal/config/risk"
)

// Residual bounds for the weight left to the three unsearched features
const (
	DefaultMinResidual = 0.1
	DefaultMaxResidual = 0.4

	epsilon = 1e-9
)

// Space lists the values tried for each searched parameter. Search order is
// tone, velocity, influence, medium, high, viral-threat with the last axis
// varying fastest.
type Space struct {
	ToneSeverity       []float64 `json:"toneSeverity" yaml:"tone_severity"`
	EngagementVelocity []float64 `json:"engagementVelocity" yaml:"engagement_velocity"`
	UserInfluence      []float64 `json:"userInfluence" yaml:"user_influence"`

	Medium      []float64 `json:"medium" yaml:"medium"`
	High        []float64 `json:"high" yaml:"high"`
	ViralThreat []float64 `json:"viralThreat" yaml:"viral_threat"`

	MinResidual float64 `json:"minResidual" yaml:"min_residual"`
	MaxResidual float64 `json:"maxResidual" yaml:"max_residual"`
}

// DefaultSpace returns the standard search grid
func DefaultSpace() Space {
	return Space{
		ToneSeverity:       []float64{0.2, 0.25, 0.3, 0.35, 0.4},
		EngagementVelocity: []float64{0.15, 0.2, 0.25, 0.3},
		UserInfluence:      []float64{0.1, 0.15, 0.2, 0.25},
		Medium:             []float64{0.3, 0.35, 0.4, 0.45, 0.5},
		High:               []float64{0.5, 0.55, 0.6, 0.65, 0.7},
		ViralThreat:        []float64{0.7, 0.75, 0.8, 0.85, 0.9},
		MinResidual:        DefaultMinResidual,
		MaxResidual:        DefaultMaxResidual,
	}
}

// Validate rejects empty axes and inverted residual bounds
func (s Space) Validate() error {
	axes := map[string][]float64{
		"toneSeverity":       s.ToneSeverity,
		"engagementVelocity": s.EngagementVelocity,
		"userInfluence":      s.UserInfluence,
		"medium":             s.Medium,
		"high":               s.High,
		"viralThreat":        s.ViralThreat,
	}
	for _, name := range []string{"toneSeverity", "engagementVelocity", "userInfluence", "medium", "high", "viralThreat"} {
		vals := axes[name]
		if len(vals) == 0 {
			return fmt.Errorf("search axis %s is empty", name)
		}
		for _, v := range vals {
			if v < 0 || v > 1 {
				return fmt.Errorf("search axis %s value %.3f outside [0,1]", name, v)
			}
		}
	}
	if s.MinResidual < 0 || s.MaxResidual > 1 || s.MinResidual > s.MaxResidual {
		return fmt.Errorf("invalid residual bounds [%.3f, %.3f]", s.MinResidual, s.MaxResidual)
	}
	return nil
}

// Size is the unpruned candidate count
func (s Space) Size() int {
	return len(s.ToneSeverity) * len(s.EngagementVelocity) * len(s.UserInfluence) *
		len(s.Medium) * len(s.High) * len(s.ViralThreat)
}

// WeightChoice is one admissible combination of the searched weights
type WeightChoice struct {
	ToneSeverity       float64
	EngagementVelocity float64
	UserInfluence      float64
}

// Residual is the weight left for the unsearched features
func (w WeightChoice) Residual() float64 {
	return 1 - (w.ToneSeverity + w.EngagementVelocity + w.UserInfluence)
}

// ThresholdChoice is one admissible combination of the searched thresholds
type ThresholdChoice struct {
	Medium      float64
	High        float64
	ViralThreat float64
}

// AdmissibleResidual reports whether the residual is within bounds
func (s Space) AdmissibleResidual(w WeightChoice) bool {
	r := w.Residual()
	return r >= s.MinResidual-epsilon && r <= s.MaxResidual+epsilon
}

// AdmissibleThresholds reports whether low < medium < high < viral-threat
func AdmissibleThresholds(low float64, t ThresholdChoice) bool {
	return low < t.Medium && t.Medium < t.High && t.High < t.ViralThreat
}

// Weights returns the admissible weight combinations in search order and
// the number pruned.
func (s Space) Weights() (choices []WeightChoice, pruned int) {
	for _, tone := range s.ToneSeverity {
		for _, vel := range s.EngagementVelocity {
			for _, inf := range s.UserInfluence {
				w := WeightChoice{ToneSeverity: tone, EngagementVelocity: vel, UserInfluence: inf}
				if !s.AdmissibleResidual(w) {
					pruned++
					continue
				}
				choices = append(choices, w)
			}
		}
	}
	return choices, pruned
}

// Thresholds returns the admissible threshold combinations above low in
// search order and the number pruned.
func (s Space) Thresholds(low float64) (choices []ThresholdChoice, pruned int) {
	for _, med := range s.Medium {
		for _, high := range s.High {
			for _, viral := range s.ViralThreat {
				t := ThresholdChoice{Medium: med, High: high, ViralThreat: viral}
				if !AdmissibleThresholds(low, t) {
					pruned++
					continue
				}
				choices = append(choices, t)
			}
		}
	}
	return choices, pruned
}

// ApplyWeights sets the searched weights on base and spreads the residual
// over contentLength, platformMultiplier and timeDecay in base's proportions,
// or equally when base gives them no weight.
func ApplyWeights(base risk.Config, w WeightChoice) risk.Config {
	out := base.Clone()
	out.Weights.ToneSeverity = w.ToneSeverity
	out.Weights.EngagementVelocity = w.EngagementVelocity
	out.Weights.UserInfluence = w.UserInfluence

	residual := w.Residual()
	bw := base.Weights
	rest := bw.ContentLength + bw.PlatformMultiplier + bw.TimeDecay
	if rest <= 0 {
		share := residual / 3
		out.Weights.ContentLength = share
		out.Weights.PlatformMultiplier = share
		out.Weights.TimeDecay = share
		return out
	}
	out.Weights.ContentLength = residual * bw.ContentLength / rest
	out.Weights.PlatformMultiplier = residual * bw.PlatformMultiplier / rest
	out.Weights.TimeDecay = residual * bw.TimeDecay / rest
	return out
}

// ApplyThresholds sets the searched thresholds on cfg, keeping low
func ApplyThresholds(cfg risk.Config, t ThresholdChoice) risk.Config {
	cfg.Thresholds.Medium = t.Medium
	cfg.Thresholds.High = t.High
	cfg.Thresholds.ViralThreat = t.ViralThreat
	return cfg
}
