package content

import (
	"strings"
	"time"
)

// Platform identifies where a piece of content was published
type Platform string

const (
	PlatformTwitter    Platform = "twitter"
	PlatformReddit     Platform = "reddit"
	PlatformReviewSite Platform = "review-site"
	PlatformAppStore   Platform = "app-store"
)

// NormalizePlatform maps loose platform spellings onto the canonical names
func NormalizePlatform(raw string) Platform {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "twitter", "x", "tweet":
		return PlatformTwitter
	case "reddit":
		return PlatformReddit
	case "review-site", "review_site", "reviews", "review":
		return PlatformReviewSite
	case "app-store", "app_store", "appstore", "play-store", "google-play":
		return PlatformAppStore
	default:
		return Platform(strings.ToLower(strings.TrimSpace(raw)))
	}
}

// Author describes who posted the content. Optional fields are nil when the
// source did not report them.
type Author struct {
	Handle    string `json:"handle,omitempty"`
	Followers *int64 `json:"followers,omitempty"`
	Verified  *bool  `json:"verified,omitempty"`
}

// Engagement holds the raw interaction counts observed for an item
type Engagement struct {
	Likes    int64 `json:"likes"`
	Shares   int64 `json:"shares"`
	Comments int64 `json:"comments"`
}

// Total returns the unweighted sum of all interactions
func (e Engagement) Total() int64 {
	return e.Likes + e.Shares + e.Comments
}

// Item is a single piece of social or review content submitted for scoring
type Item struct {
	ID         string     `json:"id"`
	Platform   Platform   `json:"platform"`
	Text       string     `json:"text"`
	Author     Author     `json:"author"`
	Engagement Engagement `json:"engagement"`
	PostedAt   *time.Time `json:"posted_at,omitempty"`
}

// HoursSincePosted returns elapsed hours between posting and now. Items
// without a posting time are treated as just posted.
func (i Item) HoursSincePosted(now time.Time) float64 {
	if i.PostedAt == nil || i.PostedAt.IsZero() {
		return 0
	}
	h := now.Sub(*i.PostedAt).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// Sentiment polarity labels produced by the sentiment provider
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// SentimentResult is the opaque output of a sentiment classifier
type SentimentResult struct {
	Label      Sentiment `json:"label"`
	Confidence float64   `json:"confidence"`
}

// EmotionScore is one detected emotion with its classifier confidence
type EmotionScore struct {
	Emotion    string  `json:"emotion"`
	Confidence float64 `json:"confidence"`
}

// AverageConfidence returns the mean confidence across emotions, 0 when none
func AverageConfidence(emotions []EmotionScore) float64 {
	if len(emotions) == 0 {
		return 0
	}
	sum := 0.0
	for _, e := range emotions {
		sum += e.Confidence
	}
	return sum / float64(len(emotions))
}
