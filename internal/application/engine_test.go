package application

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/viralrisk/internal/config/risk"
	"github.com/sawpanic/viralrisk/internal/config/versions"
	"github.com/sawpanic/viralrisk/internal/domain/content"
	"github.com/sawpanic/viralrisk/internal/domain/features"
	"github.com/sawpanic/viralrisk/internal/metrics"
	"github.com/sawpanic/viralrisk/internal/persistence"
	"github.com/sawpanic/viralrisk/internal/persistence/kv"
	"github.com/sawpanic/viralrisk/internal/providers"
	"github.com/sawpanic/viralrisk/internal/score"
	"github.com/sawpanic/viralrisk/internal/tune"
	"github.com/sawpanic/viralrisk/internal/tune/data"
)

var testNow = time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)

type harness struct {
	engine   *Engine
	versions *versions.Manager
	metrics  *metrics.Registry
	initial  string
}

func newHarness(t *testing.T, deps Dependencies) *harness {
	t.Helper()
	reg := metrics.NewRegistry(prometheus.NewRegistry())
	vm := versions.NewManager(kv.NewMemoryStore(), versions.Options{
		CacheTTL: time.Minute,
		Listener: MetricsListener(reg),
	})
	id, err := vm.EnsureInitialized(context.Background())
	require.NoError(t, err)

	deps.Versions = vm
	deps.Metrics = reg
	e, err := NewEngine(deps, Options{BatchConcurrency: 4, Now: func() time.Time { return testNow }})
	require.NoError(t, err)
	return &harness{engine: e, versions: vm, metrics: reg, initial: id}
}

func sampleItem(id string) content.Item {
	followers := int64(10000)
	verified := true
	posted := testNow.Add(-2 * time.Hour)
	return content.Item{
		ID:         id,
		Platform:   content.PlatformTwitter,
		Text:       "This is the worst update ever, support ignored me for a week",
		Author:     content.Author{Handle: "alice", Followers: &followers, Verified: &verified},
		Engagement: content.Engagement{Likes: 100, Shares: 50, Comments: 20},
		PostedAt:   &posted,
	}
}

func negativeSentiment() content.SentimentResult {
	return content.SentimentResult{Label: content.SentimentNegative, Confidence: 0.9}
}

func angryEmotions() []content.EmotionScore {
	return []content.EmotionScore{{Emotion: "anger", Confidence: 0.8}, {Emotion: "frustration", Confidence: 0.6}}
}

func counter(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestNewEngineRequiresVersions(t *testing.T) {
	_, err := NewEngine(Dependencies{}, Options{})
	assert.Error(t, err)
}

func TestPredictUsesCurrentConfig(t *testing.T) {
	h := newHarness(t, Dependencies{})

	pred, err := h.engine.Predict(context.Background(), PredictRequest{
		Item:      sampleItem("item-1"),
		Sentiment: negativeSentiment(),
		Emotions:  angryEmotions(),
	})
	require.NoError(t, err)

	want := score.Predict(sampleItem("item-1"), negativeSentiment(), angryEmotions(), risk.Default(), testNow)
	assert.Equal(t, want.Score, pred.Score)
	assert.Equal(t, want.Tier, pred.Tier)
	assert.Equal(t, h.initial, pred.ConfigVersion)
	assert.Empty(t, pred.ABTestID)
	assert.Equal(t, 1.0, counter(t, h.metrics.Predictions.WithLabelValues(string(pred.Tier), "current")))
}

func TestPredictFailsWithoutConfig(t *testing.T) {
	vm := versions.NewManager(kv.NewMemoryStore(), versions.Options{})
	e, err := NewEngine(Dependencies{Versions: vm}, Options{})
	require.NoError(t, err)

	_, err = e.Predict(context.Background(), PredictRequest{Item: sampleItem("x")})
	var nf *versions.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Error(t, e.Ready(context.Background()))
}

func TestPredictWithABTest(t *testing.T) {
	h := newHarness(t, Dependencies{})
	ctx := context.Background()

	strict := risk.Default()
	strict.Thresholds = risk.Thresholds{Low: 0.2, Medium: 0.5, High: 0.7, ViralThreat: 0.9}
	testID, err := h.engine.StartABTest(ctx, risk.Default(), strict, "stricter thresholds", 0.5)
	require.NoError(t, err)

	req := PredictRequest{
		Item:      sampleItem("item-1"),
		Sentiment: negativeSentiment(),
		Emotions:  angryEmotions(),
		ABTestID:  testID,
		SubjectID: "user-42",
	}
	first, err := h.engine.Predict(ctx, req)
	require.NoError(t, err)
	second, err := h.engine.Predict(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, testID, first.ABTestID)
	assert.Equal(t, first.Arm, second.Arm)
	assert.Equal(t, string(versions.AssignArm("user-42", 0.5)), first.Arm)
	assert.Empty(t, first.ConfigVersion)

	stats, err := h.engine.ABTestStats(ctx, testID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Assigned.A+stats.Assigned.B)

	_, err = h.engine.StopABTest(ctx, testID)
	require.NoError(t, err)

	after, err := h.engine.Predict(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, after.ABTestID)
	assert.Equal(t, h.initial, after.ConfigVersion)
}

func TestPredictUnknownABTest(t *testing.T) {
	h := newHarness(t, Dependencies{})

	_, err := h.engine.Predict(context.Background(), PredictRequest{Item: sampleItem("x"), ABTestID: "missing"})
	var nf *versions.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, versions.KindABTest, nf.Kind)
}

func okSentiment() providers.SentimentProvider {
	return providers.SentimentFunc(func(ctx context.Context, text string) (content.SentimentResult, error) {
		return negativeSentiment(), nil
	})
}

func okEmotion() providers.EmotionProvider {
	return providers.EmotionFunc(func(ctx context.Context, text string) ([]content.EmotionScore, error) {
		return angryEmotions(), nil
	})
}

func failingSentiment() providers.SentimentProvider {
	return providers.SentimentFunc(func(ctx context.Context, text string) (content.SentimentResult, error) {
		return content.SentimentResult{}, errors.New("connection reset")
	})
}

func failingEmotion() providers.EmotionProvider {
	return providers.EmotionFunc(func(ctx context.Context, text string) ([]content.EmotionScore, error) {
		return nil, &providers.UpstreamProviderError{Provider: "emotion", Type: providers.ErrTypeHTTP, StatusCode: 503, Err: errors.New("unavailable")}
	})
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name         string
		sentiment    providers.SentimentProvider
		emotion      providers.EmotionProvider
		wantErr      bool
		wantDegraded bool
		missing      string
	}{
		{name: "both providers", sentiment: okSentiment(), emotion: okEmotion()},
		{name: "sentiment down", sentiment: failingSentiment(), emotion: okEmotion(), wantDegraded: true, missing: "sentiment"},
		{name: "emotion down", sentiment: okSentiment(), emotion: failingEmotion(), wantDegraded: true, missing: "emotion"},
		{name: "both down", sentiment: failingSentiment(), emotion: failingEmotion(), wantErr: true},
		{name: "none configured", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Dependencies{Sentiment: tt.sentiment, Emotion: tt.emotion})

			pred, err := h.engine.Analyze(context.Background(), AnalyzeRequest{Item: sampleItem("item-1")})
			if tt.wantErr {
				var up *providers.UpstreamProviderError
				require.ErrorAs(t, err, &up)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDegraded, pred.Degraded)
			if tt.missing != "" {
				last := pred.Reasoning[len(pred.Reasoning)-1]
				assert.True(t, strings.HasPrefix(last, tt.missing+" signal unavailable"), last)
			}
		})
	}
}

func TestAnalyzeDegradedScoresWithoutSignal(t *testing.T) {
	h := newHarness(t, Dependencies{Sentiment: failingSentiment(), Emotion: okEmotion()})

	pred, err := h.engine.Analyze(context.Background(), AnalyzeRequest{Item: sampleItem("item-1")})
	require.NoError(t, err)

	neutral := content.SentimentResult{Label: content.SentimentNeutral}
	want := score.Predict(sampleItem("item-1"), neutral, angryEmotions(), risk.Default(), testNow)
	assert.Equal(t, want.Score, pred.Score)
	assert.Equal(t, 1.0, counter(t, h.metrics.ProviderRequests.WithLabelValues("sentiment", providers.ErrTypeTransport)))
	assert.Equal(t, 1.0, counter(t, h.metrics.ProviderRequests.WithLabelValues("emotion", metrics.ResultSuccess)))
}

func TestPredictBatchIsolatesFailures(t *testing.T) {
	h := newHarness(t, Dependencies{})

	reqs := make([]PredictRequest, 10)
	for i := range reqs {
		reqs[i] = PredictRequest{Item: sampleItem(fmt.Sprintf("item-%d", i)), Sentiment: negativeSentiment()}
	}
	reqs[3].ABTestID = "missing"
	reqs[7].ABTestID = "missing"

	results := h.engine.PredictBatch(context.Background(), reqs)
	require.Len(t, results, 10)
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, fmt.Sprintf("item-%d", i), r.ItemID)
		if i == 3 || i == 7 {
			assert.Nil(t, r.Prediction)
			assert.NotEmpty(t, r.Error)
			var nf *versions.NotFoundError
			assert.ErrorAs(t, r.Err, &nf)
			continue
		}
		require.NotNil(t, r.Prediction, "item %d", i)
		assert.Empty(t, r.Error)
	}
}

func TestAnalyzeBatchIsolatesFailures(t *testing.T) {
	sentiment := providers.SentimentFunc(func(ctx context.Context, text string) (content.SentimentResult, error) {
		if text == "poison" {
			return content.SentimentResult{}, errors.New("bad input")
		}
		return negativeSentiment(), nil
	})
	emotion := providers.EmotionFunc(func(ctx context.Context, text string) ([]content.EmotionScore, error) {
		if text == "poison" {
			return nil, errors.New("bad input")
		}
		return angryEmotions(), nil
	})
	h := newHarness(t, Dependencies{Sentiment: sentiment, Emotion: emotion})

	reqs := []AnalyzeRequest{{Item: sampleItem("a")}, {Item: sampleItem("b")}, {Item: sampleItem("c")}}
	reqs[1].Item.Text = "poison"

	results := h.engine.AnalyzeBatch(context.Background(), reqs)
	require.Len(t, results, 3)
	assert.NotNil(t, results[0].Prediction)
	assert.Nil(t, results[1].Prediction)
	assert.NotNil(t, results[2].Prediction)
}

func TestConfigOperations(t *testing.T) {
	h := newHarness(t, Dependencies{})
	ctx := context.Background()

	medium := 0.45
	id, err := h.engine.UpdateConfig(ctx, risk.Partial{Thresholds: &risk.PartialThresholds{Medium: &medium}}, "raise medium", "alice")
	require.NoError(t, err)

	cur, err := h.engine.CurrentConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, cur.ID)
	assert.Equal(t, 0.45, cur.Config.Thresholds.Medium)

	history, err := h.engine.ConfigHistory(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{h.initial, id}, history)

	bad := 0.1
	_, err = h.engine.UpdateConfig(ctx, risk.Partial{Thresholds: &risk.PartialThresholds{Medium: &bad}}, "invalid", "alice")
	var verr *risk.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 1.0, counter(t, h.metrics.ConfigEvents.WithLabelValues("config.rejected")))

	require.NoError(t, h.engine.RollbackConfig(ctx, h.initial, "bob"))
	cur, err = h.engine.CurrentConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, risk.Default(), cur.Config)

	v, err := h.engine.GetVersion(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, versions.StateSuperseded, v.State)

	assert.Equal(t, 2.0, counter(t, h.metrics.ConfigEvents.WithLabelValues(string(versions.EventPublished))))
	assert.Equal(t, 1.0, counter(t, h.metrics.ConfigEvents.WithLabelValues(string(versions.EventRolledBack))))
}

// labeledSamples produces vectors labeled by the tier cfg assigns them
func labeledSamples(n int, seed int64, cfg risk.Config) []data.TrainingSample {
	rng := rand.New(rand.NewSource(seed))
	out := make([]data.TrainingSample, n)
	for i := range out {
		level := rng.Float64()
		jitter := func() float64 { return features.Clamp01(level + (rng.Float64()-0.5)*0.2) }
		v := features.Vector{
			ToneSeverity:       jitter(),
			EngagementVelocity: jitter(),
			UserInfluence:      jitter(),
			ContentLength:      jitter(),
			PlatformMultiplier: jitter(),
			TimeDecay:          jitter(),
		}
		s := score.Score(v, cfg)
		out[i] = data.TrainingSample{
			SourceItemID:  fmt.Sprintf("item-%d", i),
			Features:      v,
			ActualOutcome: data.Outcome{ObservedScoreProxy: s, ObservedTier: score.Classify(s, cfg.Thresholds)},
		}
	}
	return out
}

func shiftedConfig() risk.Config {
	cfg := risk.Default()
	cfg.Thresholds = risk.Thresholds{Low: 0.2, Medium: 0.5, High: 0.7, ViralThreat: 0.9}
	return cfg
}

func TestTrainPublishesImprovement(t *testing.T) {
	h := newHarness(t, Dependencies{})
	ctx := context.Background()

	shiftedID, err := h.versions.Publish(ctx, shiftedConfig(), "shifted", "alice", nil)
	require.NoError(t, err)

	res, err := h.engine.Train(ctx, TrainRequest{Samples: labeledSamples(400, 11, risk.Default()), Publish: true})
	require.NoError(t, err)

	assert.Equal(t, TrainPublished, res.Outcome)
	assert.Equal(t, shiftedID, res.BaselineVersion)
	require.NotEmpty(t, res.PublishedVersion)

	cur, err := h.engine.CurrentConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.PublishedVersion, cur.ID)
	assert.Equal(t, res.OptimalConfig, cur.Config)
	assert.Equal(t, "trainer", cur.CreatedBy)
	require.NotNil(t, cur.Performance)
	assert.Equal(t, res.Performance.MacroF1, cur.Performance.MacroF1)
	assert.Equal(t, 1.0, counter(t, h.metrics.TrainingRuns.WithLabelValues(TrainPublished)))
}

func TestTrainWithoutPublish(t *testing.T) {
	h := newHarness(t, Dependencies{})
	ctx := context.Background()

	shiftedID, err := h.versions.Publish(ctx, shiftedConfig(), "shifted", "alice", nil)
	require.NoError(t, err)

	res, err := h.engine.Train(ctx, TrainRequest{Samples: labeledSamples(400, 11, risk.Default())})
	require.NoError(t, err)
	assert.Equal(t, TrainNotPublished, res.Outcome)
	assert.True(t, res.Improved)

	cur, err := h.engine.CurrentConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, shiftedID, cur.ID)
}

func TestTrainDoesNotPublishWithoutImprovement(t *testing.T) {
	h := newHarness(t, Dependencies{})

	res, err := h.engine.Train(context.Background(), TrainRequest{Samples: labeledSamples(300, 7, risk.Default()), Publish: true})
	require.NoError(t, err)
	assert.Equal(t, TrainNotImproved, res.Outcome)
	assert.Empty(t, res.PublishedVersion)

	history, err := h.engine.ConfigHistory(context.Background())
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestTrainInsufficientData(t *testing.T) {
	h := newHarness(t, Dependencies{})

	_, err := h.engine.Train(context.Background(), TrainRequest{Samples: labeledSamples(49, 1, risk.Default()), Publish: true})
	var ide *tune.InsufficientDataError
	require.ErrorAs(t, err, &ide)
	assert.Equal(t, 1.0, counter(t, h.metrics.TrainingRuns.WithLabelValues(TrainInsufficient)))
}

func TestTrainCancelledDoesNotPublish(t *testing.T) {
	h := newHarness(t, Dependencies{})
	ctx, cancel := context.WithCancel(context.Background())

	_, err := h.versions.Publish(ctx, shiftedConfig(), "shifted", "alice", nil)
	require.NoError(t, err)
	cancel()

	_, err = h.engine.Train(ctx, TrainRequest{Samples: labeledSamples(400, 11, risk.Default()), Publish: true})
	require.ErrorIs(t, err, context.Canceled)

	history, err := h.engine.ConfigHistory(context.Background())
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestTrainRequiresDataSource(t *testing.T) {
	h := newHarness(t, Dependencies{})
	_, err := h.engine.Train(context.Background(), TrainRequest{From: testNow.Add(-time.Hour), To: testNow})
	assert.Error(t, err)
}

type stubContent struct{ items []persistence.AnalyzedItem }

func (s stubContent) ListAnalyzed(ctx context.Context, tr persistence.TimeRange, limit int) ([]persistence.AnalyzedItem, error) {
	return s.items, nil
}

type stubOutcomes struct{}

func (stubOutcomes) HasAlert(ctx context.Context, itemID string) (bool, error) {
	return itemID == "hot", nil
}

func (stubOutcomes) CurrentEngagement(ctx context.Context, itemID string) (int64, error) {
	return 5000, nil
}

func TestTrainCollectsFromRepositories(t *testing.T) {
	items := []persistence.AnalyzedItem{
		{ItemID: "hot", Likes: 500, AnalyzedAt: testNow},
		{ItemID: "cold", Likes: 200, AnalyzedAt: testNow},
		{ItemID: "quiet", Likes: 1, AnalyzedAt: testNow},
	}
	collector := data.NewCollector(stubContent{items: items}, stubOutcomes{})
	h := newHarness(t, Dependencies{Collector: collector})

	res, err := h.engine.Train(context.Background(), TrainRequest{
		From:          testNow.Add(-24 * time.Hour),
		To:            testNow,
		MinEngagement: 10,
	})
	var ide *tune.InsufficientDataError
	require.ErrorAs(t, err, &ide)
	assert.Equal(t, 2, ide.Have)
	require.NotNil(t, res.Collection)
	assert.Equal(t, 3, res.Collection.Scanned)
	assert.Equal(t, 1, res.Collection.LowEngagement)
}

func TestListeners(t *testing.T) {
	var got []versions.EventType
	l := Listeners(nil, func(ev versions.Event) { got = append(got, ev.Type) }, func(ev versions.Event) { got = append(got, ev.Type) })
	l(versions.Event{Type: versions.EventABTestStarted})
	assert.Equal(t, []versions.EventType{versions.EventABTestStarted, versions.EventABTestStarted}, got)
}
