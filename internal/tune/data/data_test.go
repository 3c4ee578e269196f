package data

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/viralrisk/internal/config/risk"
	"github.com/sawpanic/viralrisk/internal/domain/features"
	"github.com/sawpanic/viralrisk/internal/persistence"
	"github.com/sawpanic/viralrisk/internal/score"
)

type fakeContent struct {
	items []persistence.AnalyzedItem
	err   error
}

func (f *fakeContent) ListAnalyzed(ctx context.Context, tr persistence.TimeRange, limit int) ([]persistence.AnalyzedItem, error) {
	return f.items, f.err
}

type fakeOutcomes struct {
	alerts     map[string]bool
	engagement map[string]int64
	failing    map[string]bool
}

func (f *fakeOutcomes) HasAlert(ctx context.Context, id string) (bool, error) {
	if f.failing[id] {
		return false, errors.New("alerts table unavailable")
	}
	return f.alerts[id], nil
}

func (f *fakeOutcomes) CurrentEngagement(ctx context.Context, id string) (int64, error) {
	return f.engagement[id], nil
}

func TestObserveOutcome(t *testing.T) {
	cfg := risk.Default()

	tests := []struct {
		name       string
		alert      bool
		engagement int64
		wantTier   score.Tier
		wantProxy  float64
	}{
		{"quiet item", false, 0, score.TierLow, 0},
		{"alert only", true, 0, score.TierMedium, 0.4},
		{"saturated engagement", false, 10_000_000, score.TierHigh, 0.6},
		{"saturated with alert", true, 10_000_000, score.TierViralThreat, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ObserveOutcome(tt.alert, tt.engagement, cfg)
			assert.InDelta(t, tt.wantProxy, got.ObservedScoreProxy, 1e-9)
			assert.Equal(t, tt.wantTier, got.ObservedTier)
			assert.Equal(t, tt.alert, got.AlertWasRaised)
		})
	}

	assert.InDelta(t, 0.6, EngagementGrowth(999), 1e-9)
	assert.Equal(t, 0.0, EngagementGrowth(-5))
}

func TestReconstructRecomputesDecay(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	posted := now.Add(-48 * time.Hour)
	item := persistence.AnalyzedItem{
		ToneSeverity:       0.7,
		EngagementVelocity: 1.4,
		UserInfluence:      0.5,
		ContentLength:      1,
		PlatformMultiplier: 1,
		PostedAt:           &posted,
	}

	v := Reconstruct(item, now)
	assert.Equal(t, 0.5, v.TimeDecay)
	assert.Equal(t, 1.0, v.EngagementVelocity)
	assert.Equal(t, 0.7, v.ToneSeverity)

	item.PostedAt = nil
	assert.Equal(t, 1.0, Reconstruct(item, now).TimeDecay)
}

func TestCollect(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	posted := now.Add(-2 * time.Hour)

	repo := &fakeContent{items: []persistence.AnalyzedItem{
		{ItemID: "keep", Likes: 30, Shares: 5, PostedAt: &posted, ToneSeverity: 0.8},
		{ItemID: "too-quiet", Likes: 1},
		{ItemID: "broken", Likes: 100},
		{ItemID: "alerted", Comments: 50},
	}}
	outcomes := &fakeOutcomes{
		alerts:     map[string]bool{"alerted": true},
		engagement: map[string]int64{"keep": 120, "alerted": 10_000_000},
		failing:    map[string]bool{"broken": true},
	}

	c := NewCollector(repo, outcomes).WithClock(func() time.Time { return now })
	got, err := c.Collect(context.Background(), Request{From: now.Add(-24 * time.Hour), To: now, MinEngagement: 10}, risk.Default())
	require.NoError(t, err)

	assert.Equal(t, 4, got.Scanned)
	assert.Equal(t, 1, got.LowEngagement)
	require.Len(t, got.Failures, 1)
	assert.Equal(t, "broken", got.Failures[0].ItemID)
	assert.Contains(t, got.Failures[0].Error, "alerts table unavailable")

	require.Len(t, got.Samples, 2)
	assert.Equal(t, "keep", got.Samples[0].SourceItemID)
	assert.Equal(t, 0.8, got.Samples[0].Features.ToneSeverity)
	assert.Equal(t, 1.0, got.Samples[0].Features.TimeDecay)
	assert.Equal(t, "alerted", got.Samples[1].SourceItemID)
	assert.Equal(t, score.TierViralThreat, got.Samples[1].ActualOutcome.ObservedTier)
}

func TestCollectErrors(t *testing.T) {
	c := NewCollector(&fakeContent{err: errors.New("db down")}, &fakeOutcomes{})
	_, err := c.Collect(context.Background(), Request{}, risk.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list analyzed content")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c = NewCollector(&fakeContent{items: []persistence.AnalyzedItem{{ItemID: "a", Likes: 50}}}, &fakeOutcomes{})
	_, err = c.Collect(ctx, Request{}, risk.Default())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadSamples(t *testing.T) {
	dir := t.TempDir()
	samples := []TrainingSample{
		{SourceItemID: "a", Features: features.Vector{ToneSeverity: 0.9}, ActualOutcome: Outcome{ObservedTier: score.TierHigh}},
		{SourceItemID: "b", ActualOutcome: Outcome{ObservedTier: score.TierLow}},
	}
	require.NoError(t, SaveSamples(filepath.Join(dir, "a.json"), samples))

	lines := `{"sourceItemId":"c","features":{"toneSeverity":0.1},"actualOutcome":{"observedTier":"medium"}}

{"sourceItemId":"d","features":{},"actualOutcome":{"observedTier":"viral-threat"}}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.jsonl"), []byte(lines), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	got, err := LoadSamples(dir)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "a", got[0].SourceItemID)
	assert.Equal(t, "d", got[3].SourceItemID)
	assert.Equal(t, score.TierViralThreat, got[3].ActualOutcome.ObservedTier)

	single, err := LoadSamples(filepath.Join(dir, "a.json"))
	require.NoError(t, err)
	assert.Equal(t, samples, single)
}

func TestLoadSamplesErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadSamples(filepath.Join(dir, "missing.json"))
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.jsonl")
	require.NoError(t, os.WriteFile(bad, []byte("{\"sourceItemId\":\"a\"}\nnot json\n"), 0644))
	_, err = LoadSamples(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}
