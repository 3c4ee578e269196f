package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/viralrisk/internal/config/risk"
	"github.com/sawpanic/viralrisk/internal/config/versions"
	"github.com/sawpanic/viralrisk/internal/metrics"
	"github.com/sawpanic/viralrisk/internal/tune"
	"github.com/sawpanic/viralrisk/internal/tune/data"
	"github.com/sawpanic/viralrisk/internal/tune/eval"
)

// Training outcomes reported in TrainResult.Outcome and metrics
const (
	TrainPublished    = "published"
	TrainNotImproved  = "not_improved"
	TrainNotPublished = "publish_disabled"
	TrainCancelled    = "cancelled"
	TrainInsufficient = "insufficient_data"
	TrainFailed       = "failed"
)

// TrainRequest describes one training run. When Samples is non-nil the
// collection step is skipped.
type TrainRequest struct {
	From            time.Time             `json:"from"`
	To              time.Time             `json:"to"`
	MinEngagement   int64                 `json:"minEngagement"`
	Limit           int                   `json:"limit,omitempty"`
	ValidationSplit float64               `json:"validationSplit,omitempty"`
	Publish         bool                  `json:"publish"`
	Author          string                `json:"author,omitempty"`
	Samples         []data.TrainingSample `json:"-"`
}

// TrainResult is the outcome of Train
type TrainResult struct {
	tune.Result
	Outcome          string           `json:"outcome"`
	BaselineVersion  string           `json:"baselineVersion"`
	BaselineConfig   risk.Config      `json:"baselineConfig"`
	PublishedVersion string           `json:"publishedVersion,omitempty"`
	Collection       *data.Collection `json:"collection,omitempty"`
}

// Train collects samples, searches for a better configuration and publishes
// it when requested, when it strictly beats the configuration current at
// publish time on the same validation split, and when ctx is still live.
func (e *Engine) Train(ctx context.Context, req TrainRequest) (TrainResult, error) {
	timer := e.startTimer(metrics.StepTrain)

	res, err := e.train(ctx, req)
	if err != nil {
		outcome := TrainFailed
		var insufficient *tune.InsufficientDataError
		switch {
		case errors.As(err, &insufficient):
			outcome = TrainInsufficient
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			outcome = TrainCancelled
		}
		e.stopTimer(timer, metrics.ResultError)
		e.recordError(metrics.StepTrain, outcome)
		if e.metrics != nil {
			e.metrics.TrainingRuns.WithLabelValues(outcome).Inc()
		}
		log.Error().Err(err).Str("outcome", outcome).Msg("Training failed")
		return res, err
	}

	e.stopTimer(timer, metrics.ResultSuccess)
	if e.metrics != nil {
		e.metrics.RecordTraining(res.Outcome, res.TrainSize+res.ValidationSize,
			res.BaselinePerformance.MacroF1, res.Performance.MacroF1)
	}
	return res, nil
}

func (e *Engine) train(ctx context.Context, req TrainRequest) (TrainResult, error) {
	current, err := e.versions.GetCurrentFresh(ctx)
	if err != nil {
		return TrainResult{}, fmt.Errorf("load current config: %w", err)
	}
	out := TrainResult{BaselineVersion: current.ID, BaselineConfig: current.Config}

	samples := req.Samples
	if samples == nil {
		if e.collector == nil {
			return out, errors.New("no training data source configured")
		}
		collectTimer := e.startTimer(metrics.StepCollect)
		coll, err := e.collector.Collect(ctx, data.Request{
			From:          req.From,
			To:            req.To,
			MinEngagement: req.MinEngagement,
			Limit:         req.Limit,
		}, current.Config)
		if err != nil {
			e.stopTimer(collectTimer, metrics.ResultError)
			return out, fmt.Errorf("collect training data: %w", err)
		}
		e.stopTimer(collectTimer, metrics.ResultSuccess)
		samples = coll.Samples
		out.Collection = &coll
	}

	opts := e.opts.Trainer
	if req.ValidationSplit > 0 {
		opts.ValidationSplit = req.ValidationSplit
	}
	trainer := tune.NewTrainer(opts)

	res, err := trainer.Train(ctx, samples, current.Config)
	if err != nil {
		return out, err
	}
	out.Result = res

	switch {
	case !req.Publish:
		out.Outcome = TrainNotPublished
		return out, nil
	case ctx.Err() != nil:
		out.Outcome = TrainCancelled
		return out, ctx.Err()
	}

	// The current config may have moved while training ran; judge the
	// candidate against whatever is current now.
	latest, err := e.versions.GetCurrentFresh(ctx)
	if err != nil {
		return out, fmt.Errorf("reload current config: %w", err)
	}
	bar := res.BaselinePerformance.MacroF1
	if latest.ID != current.ID {
		_, validation := trainer.Split(samples)
		bar = eval.Evaluate(validation, latest.Config).MacroF1
		log.Info().
			Str("trained_against", current.ID).
			Str("current", latest.ID).
			Float64("current_macro_f1", bar).
			Msg("Current config changed during training")
	}

	if res.Performance.MacroF1 <= bar {
		out.Outcome = TrainNotImproved
		log.Info().
			Float64("macro_f1", res.Performance.MacroF1).
			Float64("current_macro_f1", bar).
			Msg("Trained config does not beat current config, not publishing")
		return out, nil
	}

	author := req.Author
	if author == "" {
		author = e.opts.TrainAuthor
	}
	perf := &versions.Performance{
		Accuracy:       res.Performance.Accuracy,
		Precision:      res.Performance.Precision,
		Recall:         res.Performance.Recall,
		MacroF1:        res.Performance.MacroF1,
		ValidationSize: res.ValidationSize,
	}
	desc := fmt.Sprintf("trained on %d samples, macro F1 %.4f -> %.4f", len(samples), bar, res.Performance.MacroF1)

	id, err := e.versions.Publish(ctx, res.OptimalConfig, desc, author, perf)
	if err != nil {
		return out, fmt.Errorf("publish trained config: %w", err)
	}
	out.PublishedVersion = id
	out.Outcome = TrainPublished

	log.Info().
		Str("version", id).
		Float64("macro_f1", res.Performance.MacroF1).
		Msg("Trained config published")
	return out, nil
}
