package score

import (
	"time"

	"github.com/sawpanic/viralrisk/internal/config/risk"
	"github.com/sawpanic/viralrisk/internal/domain/content"
	"github.com/sawpanic/viralrisk/internal/domain/features"
)

// Prediction is the immutable result of scoring one item
type Prediction struct {
	ItemID        string          `json:"itemId,omitempty"`
	Score         float64         `json:"score"`
	Tier          Tier            `json:"riskTier"`
	Features      features.Vector `json:"features"`
	Confidence    float64         `json:"confidence"`
	Reasoning     []string        `json:"reasoning"`
	ConfigVersion string          `json:"configVersion,omitempty"`
	ABTestID      string          `json:"abTestId,omitempty"`
	Arm           string          `json:"arm,omitempty"`
	Degraded      bool            `json:"degraded,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Predict runs extract, score and classify for one item under cfg. It has no
// side effects and is safe for concurrent use.
func Predict(item content.Item, sentiment content.SentimentResult, emotions []content.EmotionScore, cfg risk.Config, now time.Time) Prediction {
	v := features.Extract(item, sentiment, emotions, cfg, now)
	s := Score(v, cfg)
	tier := Classify(s, cfg.Thresholds)

	return Prediction{
		ItemID:     item.ID,
		Score:      s,
		Tier:       tier,
		Features:   v,
		Confidence: Confidence(item, sentiment, emotions),
		Reasoning:  Reasoning(v, s, tier),
		CreatedAt:  now,
	}
}
