package score

import "github.com/sawpanic/viralrisk/internal/domain/content"

const (
	minConfidence = 0.1
	maxConfidence = 1.0
)

// Completeness is the fraction of the four optional item fields that are
// present: follower count, verified flag, posting time, non-zero engagement.
func Completeness(item content.Item) float64 {
	present := 0
	if item.Author.Followers != nil {
		present++
	}
	if item.Author.Verified != nil {
		present++
	}
	if item.PostedAt != nil && !item.PostedAt.IsZero() {
		present++
	}
	if item.Engagement.Total() > 0 {
		present++
	}
	return float64(present) / 4
}

// Confidence estimates how much the prediction can be trusted given the
// upstream classifier confidences and data completeness.
func Confidence(item content.Item, sentiment content.SentimentResult, emotions []content.EmotionScore) float64 {
	c := 0.5 +
		0.2*clamp(sentiment.Confidence, 0, 1) +
		0.2*clamp(content.AverageConfidence(emotions), 0, 1) +
		0.1*Completeness(item)
	return clamp(c, minConfidence, maxConfidence)
}

func clamp(v, lo, hi float64) float64 {
	if v != v || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
