package features

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sawpanic/viralrisk/internal/config/risk"
	"github.com/sawpanic/viralrisk/internal/domain/content"
)

func ptrInt(v int64) *int64 { return &v }
func ptrBool(v bool) *bool  { return &v }

func TestTone(t *testing.T) {
	cfg := risk.Default()
	tests := []struct {
		name      string
		sentiment content.SentimentResult
		emotions  []content.EmotionScore
		want      float64
	}{
		{"negative with anger and frustration", content.SentimentResult{Label: "negative", Confidence: 0.9},
			[]content.EmotionScore{{Emotion: "anger", Confidence: 0.8}, {Emotion: "frustration", Confidence: 0.6}}, 0.82},
		{"positive no emotions", content.SentimentResult{Label: "positive", Confidence: 0.8}, nil, 0.06},
		{"neutral constant", content.SentimentResult{Label: "neutral", Confidence: 0.99}, nil, 0.2},
		{"unknown label is neutral", content.SentimentResult{Label: "mixed", Confidence: 0.5}, nil, 0.2},
		{"unweighted emotions ignored", content.SentimentResult{Label: "neutral"},
			[]content.EmotionScore{{Emotion: "boredom", Confidence: 1}}, 0.2},
		{"uppercase label", content.SentimentResult{Label: "NEGATIVE", Confidence: 1},
			[]content.EmotionScore{{Emotion: "Anger", Confidence: 1}}, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Tone(tt.sentiment, tt.emotions, cfg), 1e-9)
		})
	}
}

func TestVelocity(t *testing.T) {
	// 100 + 2*50 + 1.5*20 = 230 weighted interactions over 2h saturates
	assert.Equal(t, 1.0, Velocity(content.Engagement{Likes: 100, Shares: 50, Comments: 20}, 2))

	want := math.Log10(11) / math.Log10(49) / 3
	assert.InDelta(t, want, Velocity(content.Engagement{Likes: 10}, 48), 1e-12)

	assert.Equal(t, 0.0, Velocity(content.Engagement{}, 10))
	// sub-0.1h ages are floored rather than dividing by ~0
	assert.Equal(t, Velocity(content.Engagement{Likes: 1}, 0.1), Velocity(content.Engagement{Likes: 1}, 0))
}

func TestInfluence(t *testing.T) {
	assert.Equal(t, 1.0, Influence(content.Author{Followers: ptrInt(10000), Verified: ptrBool(true)}, content.PlatformTwitter))
	assert.InDelta(t, math.Log10(1001)/6*0.8, Influence(content.Author{Followers: ptrInt(1000)}, content.PlatformReddit), 1e-12)
	assert.InDelta(t, 0.3*0.7, Influence(content.Author{Verified: ptrBool(true)}, content.PlatformAppStore), 1e-12)
	assert.InDelta(t, math.Log10(101)/6, Influence(content.Author{Followers: ptrInt(100)}, "forum"), 1e-12)
	assert.Equal(t, 0.0, Influence(content.Author{}, content.PlatformReviewSite))
}

func TestLengthSuitability(t *testing.T) {
	cases := map[int]float64{0: 0.5, 49: 0.5, 50: 0.8, 99: 0.8, 100: 1.0, 280: 1.0, 281: 0.8, 500: 0.8, 501: 0.6}
	for length, want := range cases {
		assert.Equal(t, want, LengthSuitability(length), "length %d", length)
	}
}

func TestDecay(t *testing.T) {
	cases := map[float64]float64{0: 1.0, 6: 1.0, 6.01: 0.8, 24: 0.8, 48: 0.5, 72: 0.5, 72.5: 0.2, 1000: 0.2}
	for hours, want := range cases {
		assert.Equal(t, want, Decay(hours), "hours %v", hours)
	}
}

func TestExtractWorkedExample(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	posted := now.Add(-2 * time.Hour)
	item := content.Item{
		ID:         "tw-1",
		Platform:   content.PlatformTwitter,
		Text:       strings.Repeat("a", 150),
		Author:     content.Author{Followers: ptrInt(10000), Verified: ptrBool(true)},
		Engagement: content.Engagement{Likes: 100, Shares: 50, Comments: 20},
		PostedAt:   &posted,
	}

	v := Extract(item,
		content.SentimentResult{Label: content.SentimentNegative, Confidence: 0.9},
		[]content.EmotionScore{{Emotion: "anger", Confidence: 0.8}, {Emotion: "frustration", Confidence: 0.6}},
		risk.Default(), now)

	assert.InDelta(t, 0.82, v.ToneSeverity, 1e-9)
	assert.Equal(t, 1.0, v.EngagementVelocity)
	assert.Equal(t, 1.0, v.UserInfluence)
	assert.Equal(t, 1.0, v.ContentLength)
	assert.Equal(t, 1.0, v.PlatformMultiplier, "twitter multiplier 1.2 clamps to 1")
	assert.Equal(t, 1.0, v.TimeDecay)
}

func TestExtractBounded(t *testing.T) {
	now := time.Now()
	old := now.Add(-500 * time.Hour)
	future := now.Add(5 * time.Hour)
	items := []content.Item{
		{Platform: "unknown", Engagement: content.Engagement{Likes: -5}},
		{Platform: content.PlatformReddit, PostedAt: &old, Engagement: content.Engagement{Likes: 1 << 40}},
		{Platform: content.PlatformAppStore, PostedAt: &future, Author: content.Author{Followers: ptrInt(-10)}},
	}
	for _, item := range items {
		v := Extract(item, content.SentimentResult{Label: "negative", Confidence: 7}, []content.EmotionScore{{Emotion: "anger", Confidence: -3}}, risk.Default(), now)
		for i, f := range v.Values() {
			assert.GreaterOrEqual(t, f, 0.0, Names[i])
			assert.LessOrEqual(t, f, 1.0, Names[i])
		}
	}
}

func TestExtractNormalizesPlatformSpelling(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	posted := now.Add(-3 * time.Hour)
	extract := func(p content.Platform) Vector {
		item := content.Item{
			Platform:   p,
			Text:       strings.Repeat("a", 120),
			Author:     content.Author{Followers: ptrInt(500)},
			Engagement: content.Engagement{Likes: 10, Shares: 2, Comments: 1},
			PostedAt:   &posted,
		}
		return Extract(item, content.SentimentResult{Label: content.SentimentNeutral, Confidence: 0.5}, nil, risk.Default(), now)
	}

	tests := []struct {
		canonical content.Platform
		variants  []content.Platform
	}{
		{content.PlatformTwitter, []content.Platform{"Twitter", " TWITTER ", "x", "tweet"}},
		{content.PlatformAppStore, []content.Platform{"App-Store", "app_store", "AppStore", "google-play"}},
		{content.PlatformReviewSite, []content.Platform{"Review-Site", "reviews"}},
		{content.PlatformReddit, []content.Platform{"Reddit"}},
	}
	for _, tt := range tests {
		want := extract(tt.canonical)
		for _, p := range tt.variants {
			assert.Equal(t, want, extract(p), "platform %q", p)
		}
	}

	assert.Less(t, extract("App-Store").PlatformMultiplier, extract("unknown").PlatformMultiplier)
}
