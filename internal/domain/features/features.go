package features

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sawpanic/viralrisk/internal/config/risk"
	"github.com/sawpanic/viralrisk/internal/domain/content"
)

// Canonical feature names, in scoring order
const (
	ToneSeverity       = "toneSeverity"
	EngagementVelocity = "engagementVelocity"
	UserInfluence      = "userInfluence"
	ContentLength      = "contentLength"
	PlatformMultiplier = "platformMultiplier"
	TimeDecay          = "timeDecay"
)

// Names lists the six features in the order the scoring formula consumes them
var Names = [6]string{ToneSeverity, EngagementVelocity, UserInfluence, ContentLength, PlatformMultiplier, TimeDecay}

// Vector holds the six normalized signals for one scored item. Every field is in [0,1].
type Vector struct {
	ToneSeverity       float64 `json:"toneSeverity" db:"tone_severity"`
	EngagementVelocity float64 `json:"engagementVelocity" db:"engagement_velocity"`
	UserInfluence      float64 `json:"userInfluence" db:"user_influence"`
	ContentLength      float64 `json:"contentLength" db:"content_length"`
	PlatformMultiplier float64 `json:"platformMultiplier" db:"platform_multiplier"`
	TimeDecay          float64 `json:"timeDecay" db:"time_decay"`
}

// Values returns the features in canonical order
func (v Vector) Values() [6]float64 {
	return [6]float64{v.ToneSeverity, v.EngagementVelocity, v.UserInfluence, v.ContentLength, v.PlatformMultiplier, v.TimeDecay}
}

// Clamped returns a copy with every field forced into [0,1]
func (v Vector) Clamped() Vector {
	return Vector{
		ToneSeverity:       Clamp01(v.ToneSeverity),
		EngagementVelocity: Clamp01(v.EngagementVelocity),
		UserInfluence:      Clamp01(v.UserInfluence),
		ContentLength:      Clamp01(v.ContentLength),
		PlatformMultiplier: Clamp01(v.PlatformMultiplier),
		TimeDecay:          Clamp01(v.TimeDecay),
	}
}

// platform reach factors applied to author influence
var influenceFactors = map[content.Platform]float64{
	content.PlatformTwitter:    1.2,
	content.PlatformReddit:     0.8,
	content.PlatformReviewSite: 0.9,
	content.PlatformAppStore:   0.7,
}

const (
	minHoursElapsed = 0.1
	verifiedBonus   = 0.3
)

// Extract derives the feature vector for an item. It is a pure function of its
// inputs; cfg is consulted only for platform multipliers and emotion weights.
func Extract(item content.Item, sentiment content.SentimentResult, emotions []content.EmotionScore, cfg risk.Config, now time.Time) Vector {
	hours := item.HoursSincePosted(now)
	platform := content.NormalizePlatform(string(item.Platform))
	return Vector{
		ToneSeverity:       Tone(sentiment, emotions, cfg),
		EngagementVelocity: Velocity(item.Engagement, hours),
		UserInfluence:      Influence(item.Author, platform),
		ContentLength:      LengthSuitability(utf8.RuneCountInString(item.Text)),
		PlatformMultiplier: Clamp01(cfg.PlatformMultiplier(string(platform))),
		TimeDecay:          Decay(hours),
	}
}

// Tone blends sentiment polarity with the configured weighted average of
// emotion confidences.
func Tone(sentiment content.SentimentResult, emotions []content.EmotionScore, cfg risk.Config) float64 {
	conf := Clamp01(sentiment.Confidence)
	var base float64
	switch content.Sentiment(strings.ToLower(string(sentiment.Label))) {
	case content.SentimentNegative:
		base = conf * 0.6
	case content.SentimentPositive:
		base = (1 - conf) * 0.3
	default:
		base = 0.2
	}

	var weighted, totalWeight float64
	for _, e := range emotions {
		w := cfg.EmotionWeight(e.Emotion)
		if w <= 0 {
			continue
		}
		weighted += w * Clamp01(e.Confidence)
		totalWeight += w
	}
	emotional := 0.0
	if totalWeight > 0 {
		emotional = weighted / totalWeight
	}

	return Clamp01(base + 0.4*emotional)
}

// Velocity is log-scaled weighted engagement per elapsed hour
func Velocity(e content.Engagement, hoursElapsed float64) float64 {
	if hoursElapsed < minHoursElapsed {
		hoursElapsed = minHoursElapsed
	}
	weighted := float64(e.Likes) + 2*float64(e.Shares) + 1.5*float64(e.Comments)
	if weighted < 0 {
		weighted = 0
	}
	v := math.Log10(1+weighted) / math.Log10(1+hoursElapsed) / math.Log10(1000)
	return Clamp01(v)
}

// Influence scores author reach from followers, verification and platform
func Influence(a content.Author, platform content.Platform) float64 {
	var followers float64
	if a.Followers != nil && *a.Followers > 0 {
		followers = float64(*a.Followers)
	}
	v := math.Log10(1+followers) / math.Log10(1e6)
	if a.Verified != nil && *a.Verified {
		v += verifiedBonus
	}
	if f, ok := influenceFactors[platform]; ok {
		v *= f
	}
	return Clamp01(v)
}

// LengthSuitability peaks for mid-length content
func LengthSuitability(length int) float64 {
	switch {
	case length >= 100 && length <= 280:
		return 1.0
	case length < 50:
		return 0.5
	case length > 500:
		return 0.6
	default:
		return 0.8
	}
}

// Decay is a freshness step function over hours since posting
func Decay(hours float64) float64 {
	switch {
	case hours <= 6:
		return 1.0
	case hours <= 24:
		return 0.8
	case hours <= 72:
		return 0.5
	default:
		return 0.2
	}
}

// Clamp01 restricts v to [0,1]; NaN maps to 0
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
