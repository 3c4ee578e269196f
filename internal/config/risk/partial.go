package risk

import "strings"

// PartialWeights carries only the weights a caller wants to change
type PartialWeights struct {
	ToneSeverity       *float64 `json:"toneSeverity,omitempty" yaml:"tone_severity,omitempty"`
	EngagementVelocity *float64 `json:"engagementVelocity,omitempty" yaml:"engagement_velocity,omitempty"`
	UserInfluence      *float64 `json:"userInfluence,omitempty" yaml:"user_influence,omitempty"`
	ContentLength      *float64 `json:"contentLength,omitempty" yaml:"content_length,omitempty"`
	PlatformMultiplier *float64 `json:"platformMultiplier,omitempty" yaml:"platform_multiplier,omitempty"`
	TimeDecay          *float64 `json:"timeDecay,omitempty" yaml:"time_decay,omitempty"`
}

// PartialThresholds carries only the thresholds a caller wants to change
type PartialThresholds struct {
	Low         *float64 `json:"low,omitempty" yaml:"low,omitempty"`
	Medium      *float64 `json:"medium,omitempty" yaml:"medium,omitempty"`
	High        *float64 `json:"high,omitempty" yaml:"high,omitempty"`
	ViralThreat *float64 `json:"viralThreat,omitempty" yaml:"viral_threat,omitempty"`
}

// Partial is an update request. Nil sections and fields keep the current
// value; map entries are merged key by key over the current maps.
type Partial struct {
	Weights             *PartialWeights    `json:"weights,omitempty" yaml:"weights,omitempty"`
	Thresholds          *PartialThresholds `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
	PlatformMultipliers map[string]float64 `json:"platformMultipliers,omitempty" yaml:"platform_multipliers,omitempty"`
	EmotionWeights      map[string]float64 `json:"emotionWeights,omitempty" yaml:"emotion_weights,omitempty"`
}

// Full converts a complete config into a partial that overrides every field
func Full(c Config) Partial {
	w, t := c.Weights, c.Thresholds
	return Partial{
		Weights: &PartialWeights{
			ToneSeverity:       &w.ToneSeverity,
			EngagementVelocity: &w.EngagementVelocity,
			UserInfluence:      &w.UserInfluence,
			ContentLength:      &w.ContentLength,
			PlatformMultiplier: &w.PlatformMultiplier,
			TimeDecay:          &w.TimeDecay,
		},
		Thresholds: &PartialThresholds{
			Low:         &t.Low,
			Medium:      &t.Medium,
			High:        &t.High,
			ViralThreat: &t.ViralThreat,
		},
		PlatformMultipliers: cloneMap(c.PlatformMultipliers),
		EmotionWeights:      cloneMap(c.EmotionWeights),
	}
}

// Merge returns a new Config with p applied over base. base is not modified.
func Merge(base Config, p Partial) Config {
	out := base.Clone()

	if pw := p.Weights; pw != nil {
		set(&out.Weights.ToneSeverity, pw.ToneSeverity)
		set(&out.Weights.EngagementVelocity, pw.EngagementVelocity)
		set(&out.Weights.UserInfluence, pw.UserInfluence)
		set(&out.Weights.ContentLength, pw.ContentLength)
		set(&out.Weights.PlatformMultiplier, pw.PlatformMultiplier)
		set(&out.Weights.TimeDecay, pw.TimeDecay)
	}
	if pt := p.Thresholds; pt != nil {
		set(&out.Thresholds.Low, pt.Low)
		set(&out.Thresholds.Medium, pt.Medium)
		set(&out.Thresholds.High, pt.High)
		set(&out.Thresholds.ViralThreat, pt.ViralThreat)
	}
	if len(p.PlatformMultipliers) > 0 && out.PlatformMultipliers == nil {
		out.PlatformMultipliers = make(map[string]float64, len(p.PlatformMultipliers))
	}
	for k, v := range p.PlatformMultipliers {
		out.PlatformMultipliers[strings.ToLower(k)] = v
	}
	if len(p.EmotionWeights) > 0 && out.EmotionWeights == nil {
		out.EmotionWeights = make(map[string]float64, len(p.EmotionWeights))
	}
	for k, v := range p.EmotionWeights {
		out.EmotionWeights[strings.ToLower(k)] = v
	}
	return out
}

func set(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
