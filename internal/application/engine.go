// Package application wires scoring, configuration versioning, classifier
// providers and training into the Engine exposed to the HTTP and CLI layers.
package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/viralrisk/internal/config/risk"
	"github.com/sawpanic/viralrisk/internal/config/versions"
	"github.com/sawpanic/viralrisk/internal/domain/content"
	"github.com/sawpanic/viralrisk/internal/metrics"
	"github.com/sawpanic/viralrisk/internal/providers"
	"github.com/sawpanic/viralrisk/internal/score"
	"github.com/sawpanic/viralrisk/internal/tune"
	"github.com/sawpanic/viralrisk/internal/tune/data"
)

// Config sources reported in metrics
const (
	sourceCurrent = "current"
	sourceABTest  = "abtest"
)

// Dependencies are the collaborators an Engine runs on. Versions is required;
// the rest may be nil, which disables the operations that need them.
type Dependencies struct {
	Versions  *versions.Manager
	Sentiment providers.SentimentProvider
	Emotion   providers.EmotionProvider
	Collector *data.Collector
	Metrics   *metrics.Registry
}

// Options tunes an Engine
type Options struct {
	BatchConcurrency int
	Trainer          tune.Options
	TrainAuthor      string
	Now              func() time.Time
}

// DefaultOptions returns the engine defaults
func DefaultOptions() Options {
	return Options{
		BatchConcurrency: 8,
		Trainer:          tune.DefaultOptions(),
		TrainAuthor:      "trainer",
		Now:              time.Now,
	}
}

// Engine is the library-level entry point for scoring and configuration
// management. It is safe for concurrent use.
type Engine struct {
	versions  *versions.Manager
	sentiment providers.SentimentProvider
	emotion   providers.EmotionProvider
	collector *data.Collector
	metrics   *metrics.Registry
	opts      Options
}

// NewEngine creates an engine
func NewEngine(deps Dependencies, opts Options) (*Engine, error) {
	if deps.Versions == nil {
		return nil, errors.New("engine requires a config version manager")
	}
	def := DefaultOptions()
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = def.BatchConcurrency
	}
	if opts.TrainAuthor == "" {
		opts.TrainAuthor = def.TrainAuthor
	}
	if opts.Now == nil {
		opts.Now = def.Now
	}
	if opts.Trainer.ValidationSplit == 0 && opts.Trainer.Space.Size() == 0 {
		opts.Trainer = def.Trainer
	}

	return &Engine{
		versions:  deps.Versions,
		sentiment: deps.Sentiment,
		emotion:   deps.Emotion,
		collector: deps.Collector,
		metrics:   deps.Metrics,
		opts:      opts,
	}, nil
}

// PredictRequest scores an item with classifier results supplied by the caller
type PredictRequest struct {
	Item      content.Item            `json:"item"`
	Sentiment content.SentimentResult `json:"sentiment"`
	Emotions  []content.EmotionScore  `json:"emotions"`
	ABTestID  string                  `json:"abTestId,omitempty"`
	SubjectID string                  `json:"subjectId,omitempty"`
}

// AnalyzeRequest scores an item after calling the classifier providers
type AnalyzeRequest struct {
	Item      content.Item `json:"item"`
	ABTestID  string       `json:"abTestId,omitempty"`
	SubjectID string       `json:"subjectId,omitempty"`
}

type resolvedConfig struct {
	cfg     risk.Config
	version string
	testID  string
	arm     versions.Arm
}

// Predict scores one item. With an active A/B test id the test decides the
// configuration; otherwise the current configuration is used. There is no
// fallback score when no configuration can be loaded.
func (e *Engine) Predict(ctx context.Context, req PredictRequest) (score.Prediction, error) {
	timer := e.startTimer(metrics.StepPredict)

	rc, err := e.resolveConfig(ctx, req.ABTestID, req.SubjectID)
	if err != nil {
		e.stopTimer(timer, metrics.ResultError)
		e.recordError(metrics.StepPredict, "config")
		return score.Prediction{}, err
	}

	pred := e.predictWith(rc, req.Item, req.Sentiment, req.Emotions)
	e.stopTimer(timer, metrics.ResultSuccess)
	return pred, nil
}

func (e *Engine) predictWith(rc resolvedConfig, item content.Item, sentiment content.SentimentResult, emotions []content.EmotionScore) score.Prediction {
	pred := score.Predict(item, sentiment, emotions, rc.cfg, e.opts.Now())
	pred.ConfigVersion = rc.version
	pred.ABTestID = rc.testID
	pred.Arm = string(rc.arm)

	source := sourceCurrent
	if rc.testID != "" {
		source = sourceABTest
	}
	if e.metrics != nil {
		e.metrics.RecordPrediction(string(pred.Tier), source, pred.Score)
	}

	log.Debug().
		Str("item_id", item.ID).
		Float64("score", pred.Score).
		Str("tier", string(pred.Tier)).
		Str("config_version", rc.version).
		Str("ab_test", rc.testID).
		Msg("Item scored")

	return pred
}

func (e *Engine) resolveConfig(ctx context.Context, testID, subjectID string) (resolvedConfig, error) {
	if testID != "" {
		cfg, arm, err := e.versions.ResolveABTest(ctx, testID, subjectID)
		switch {
		case err == nil:
			if e.metrics != nil {
				e.metrics.RecordABAssignment(string(arm))
			}
			return resolvedConfig{cfg: cfg, testID: testID, arm: arm}, nil
		case errors.Is(err, versions.ErrABTestStopped):
			log.Debug().Str("ab_test", testID).Msg("A/B test stopped, using current config")
		default:
			return resolvedConfig{}, err
		}
	}

	current, err := e.versions.GetCurrent(ctx)
	if err != nil {
		return resolvedConfig{}, fmt.Errorf("load current config: %w", err)
	}
	return resolvedConfig{cfg: current.Config, version: current.ID}, nil
}

// Analyze calls both classifier providers and scores the item. When exactly
// one provider fails the prediction is marked degraded and scored without
// that signal; when both fail the prediction fails.
func (e *Engine) Analyze(ctx context.Context, req AnalyzeRequest) (score.Prediction, error) {
	timer := e.startTimer(metrics.StepAnalyze)

	rc, err := e.resolveConfig(ctx, req.ABTestID, req.SubjectID)
	if err != nil {
		e.stopTimer(timer, metrics.ResultError)
		e.recordError(metrics.StepAnalyze, "config")
		return score.Prediction{}, err
	}

	c := e.classify(ctx, req.Item.Text)
	sentiment, emotions, sentErr, emoErr := c.sentiment, c.emotions, c.sentErr, c.emoErr

	if sentErr != nil && emoErr != nil {
		e.stopTimer(timer, metrics.ResultError)
		e.recordError(metrics.StepAnalyze, "providers")
		log.Error().
			Str("item_id", req.Item.ID).
			AnErr("sentiment_error", sentErr).
			AnErr("emotion_error", emoErr).
			Msg("All classifier providers failed")
		return score.Prediction{}, fmt.Errorf("analyze item %s: %w (emotion: %v)", req.Item.ID, sentErr, emoErr)
	}

	var missing string
	switch {
	case sentErr != nil:
		sentiment = content.SentimentResult{Label: content.SentimentNeutral, Confidence: 0}
		missing = "sentiment"
	case emoErr != nil:
		emotions = nil
		missing = "emotion"
	}

	pred := e.predictWith(rc, req.Item, sentiment, emotions)
	if missing != "" {
		pred.Degraded = true
		pred.Reasoning = append(pred.Reasoning, fmt.Sprintf("%s signal unavailable, scored without it", missing))
		log.Warn().
			Str("item_id", req.Item.ID).
			Str("missing", missing).
			Msg("Prediction degraded")
		e.stopTimer(timer, metrics.ResultDegraded)
		return pred, nil
	}

	e.stopTimer(timer, metrics.ResultSuccess)
	return pred, nil
}

type classification struct {
	sentiment content.SentimentResult
	emotions  []content.EmotionScore
	sentErr   error
	emoErr    error
}

// classify runs both providers concurrently. Provider errors are always
// *providers.UpstreamProviderError.
func (e *Engine) classify(ctx context.Context, text string) classification {
	var (
		sentiment content.SentimentResult
		emotions  []content.EmotionScore
		sentErr   error
		emoErr    error
		wg        sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		if e.sentiment == nil {
			sentErr = &providers.UpstreamProviderError{Provider: "sentiment", Type: providers.ErrTypeMissing, Err: errors.New("no sentiment provider configured")}
			return
		}
		sentiment, sentErr = e.sentiment.AnalyzeSentiment(ctx, text)
		if sentErr != nil {
			sentErr = providers.Upstream("sentiment", sentErr)
		}
	}()
	go func() {
		defer wg.Done()
		if e.emotion == nil {
			emoErr = &providers.UpstreamProviderError{Provider: "emotion", Type: providers.ErrTypeMissing, Err: errors.New("no emotion provider configured")}
			return
		}
		emotions, emoErr = e.emotion.AnalyzeEmotions(ctx, text)
		if emoErr != nil {
			emoErr = providers.Upstream("emotion", emoErr)
		}
	}()
	wg.Wait()

	e.recordProvider("sentiment", sentErr)
	e.recordProvider("emotion", emoErr)
	return classification{sentiment: sentiment, emotions: emotions, sentErr: sentErr, emoErr: emoErr}
}

func (e *Engine) recordProvider(name string, err error) {
	if e.metrics == nil {
		return
	}
	result := metrics.ResultSuccess
	var up *providers.UpstreamProviderError
	if errors.As(err, &up) {
		result = up.Type
	}
	e.metrics.RecordProviderCall(name, result)
}

// Ready reports whether a current configuration can be loaded
func (e *Engine) Ready(ctx context.Context) error {
	_, err := e.versions.GetCurrent(ctx)
	return err
}

func (e *Engine) startTimer(step string) *metrics.StepTimer {
	if e.metrics == nil {
		return nil
	}
	return e.metrics.StartStepTimer(step)
}

func (e *Engine) stopTimer(t *metrics.StepTimer, result string) {
	if t != nil {
		t.Stop(result)
	}
}

func (e *Engine) recordError(step, errorType string) {
	if e.metrics != nil {
		e.metrics.RecordStepError(step, errorType)
	}
}
