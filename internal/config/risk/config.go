package risk

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Weights holds one coefficient per feature in the scoring formula
type Weights struct {
	ToneSeverity       float64 `json:"toneSeverity" yaml:"tone_severity"`
	EngagementVelocity float64 `json:"engagementVelocity" yaml:"engagement_velocity"`
	UserInfluence      float64 `json:"userInfluence" yaml:"user_influence"`
	ContentLength      float64 `json:"contentLength" yaml:"content_length"`
	PlatformMultiplier float64 `json:"platformMultiplier" yaml:"platform_multiplier"`
	TimeDecay          float64 `json:"timeDecay" yaml:"time_decay"`
}

// Sum returns the total of all six weights
func (w Weights) Sum() float64 {
	return w.ToneSeverity + w.EngagementVelocity + w.UserInfluence +
		w.ContentLength + w.PlatformMultiplier + w.TimeDecay
}

// Thresholds are the lower bounds of each risk tier
type Thresholds struct {
	Low         float64 `json:"low" yaml:"low"`
	Medium      float64 `json:"medium" yaml:"medium"`
	High        float64 `json:"high" yaml:"high"`
	ViralThreat float64 `json:"viralThreat" yaml:"viral_threat"`
}

// Config is an immutable scoring configuration. Values are copied on every
// mutation path so a published Config is never changed in place.
type Config struct {
	Weights             Weights            `json:"weights" yaml:"weights"`
	Thresholds          Thresholds         `json:"thresholds" yaml:"thresholds"`
	PlatformMultipliers map[string]float64 `json:"platformMultipliers" yaml:"platform_multipliers"`
	EmotionWeights      map[string]float64 `json:"emotionWeights" yaml:"emotion_weights"`
}

// Default returns the baseline configuration shipped with the engine
func Default() Config {
	return Config{
		Weights: Weights{
			ToneSeverity:       0.30,
			EngagementVelocity: 0.25,
			UserInfluence:      0.20,
			ContentLength:      0.05,
			PlatformMultiplier: 0.10,
			TimeDecay:          0.10,
		},
		Thresholds: Thresholds{
			Low:         0.2,
			Medium:      0.4,
			High:        0.6,
			ViralThreat: 0.8,
		},
		PlatformMultipliers: map[string]float64{
			"twitter":     1.2,
			"reddit":      1.0,
			"review-site": 0.9,
			"app-store":   0.8,
		},
		EmotionWeights: map[string]float64{
			"anger":       0.9,
			"frustration": 0.9,
			"disgust":     0.8,
			"fear":        0.7,
			"sadness":     0.6,
			"surprise":    0.4,
			"joy":         0.1,
		},
	}
}

// PlatformMultiplier looks up the multiplier for a platform, 1.0 when unset
func (c Config) PlatformMultiplier(platform string) float64 {
	if m, ok := c.PlatformMultipliers[strings.ToLower(platform)]; ok {
		return m
	}
	return 1.0
}

// EmotionWeight looks up the configured weight for an emotion, 0 when unset
func (c Config) EmotionWeight(emotion string) float64 {
	return c.EmotionWeights[strings.ToLower(emotion)]
}

// Clone returns a deep copy with platform and emotion keys lower-cased, the
// form every lookup uses
func (c Config) Clone() Config {
	out := c
	out.PlatformMultipliers = lowerKeys(c.PlatformMultipliers)
	out.EmotionWeights = lowerKeys(c.EmotionWeights)
	return out
}

// Summary renders a short human-readable description of the configuration
func (c Config) Summary() string {
	var b strings.Builder
	w := c.Weights
	fmt.Fprintf(&b, "weights: tone=%.3f velocity=%.3f influence=%.3f length=%.3f platform=%.3f decay=%.3f (sum %.3f)\n",
		w.ToneSeverity, w.EngagementVelocity, w.UserInfluence, w.ContentLength, w.PlatformMultiplier, w.TimeDecay, w.Sum())
	t := c.Thresholds
	fmt.Fprintf(&b, "thresholds: low=%.3f medium=%.3f high=%.3f viral-threat=%.3f\n",
		t.Low, t.Medium, t.High, t.ViralThreat)
	fmt.Fprintf(&b, "platforms: %s\n", formatMap(c.PlatformMultipliers))
	fmt.Fprintf(&b, "emotions: %s", formatMap(c.EmotionWeights))
	return b.String()
}

// Marshal encodes the config using the persisted JSON record shape
func (c Config) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Unmarshal decodes a persisted config record
func Unmarshal(data []byte) (Config, error) {
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("decode risk config: %w", err)
	}
	return c, nil
}

func lowerKeys(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}

func cloneMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func formatMap(m map[string]float64) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%.2f", k, m[k]))
	}
	return strings.Join(parts, " ")
}
