// Package tune searches the configuration space for the weights and
// thresholds that best reproduce observed outcomes.
package tune

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/viralrisk/internal/config/risk"
	"github.com/sawpanic/viralrisk/internal/domain/features"
	"github.com/sawpanic/viralrisk/internal/score"
	"github.com/sawpanic/viralrisk/internal/tune/data"
	"github.com/sawpanic/viralrisk/internal/tune/eval"
	"github.com/sawpanic/viralrisk/internal/tune/grid"
)

// MinSamples is the smallest sample set training will accept
const MinSamples = 50

// InsufficientDataError reports a sample set too small to train on
type InsufficientDataError struct {
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient training data: have %d samples, need at least %d", e.Have, e.Need)
}

// Options controls a training run
type Options struct {
	ValidationSplit float64    `json:"validationSplit"`
	Seed            int64      `json:"seed"`
	Space           grid.Space `json:"space"`
}

// DefaultOptions returns an 80/20 split over the default grid
func DefaultOptions() Options {
	return Options{
		ValidationSplit: 0.2,
		Seed:            42,
		Space:           grid.DefaultSpace(),
	}
}

// Result is the outcome of a training run
type Result struct {
	Performance         eval.Metrics       `json:"performance"`
	BaselinePerformance eval.Metrics       `json:"baselinePerformance"`
	OptimalConfig       risk.Config        `json:"optimalConfig"`
	TrainSize           int                `json:"trainSize"`
	ValidationSize      int                `json:"validationSize"`
	Suggestions         []string           `json:"suggestions"`
	FeatureImportance   map[string]float64 `json:"featureImportance"`
	Evaluated           int                `json:"candidatesEvaluated"`
	Pruned              int                `json:"candidatesPruned"`
	Improved            bool               `json:"improved"`
	Duration            time.Duration      `json:"duration"`
}

// Trainer runs the grid search
type Trainer struct {
	opts Options
}

// NewTrainer creates a trainer. Zero-valued options fall back to defaults.
func NewTrainer(opts Options) *Trainer {
	def := DefaultOptions()
	if opts.ValidationSplit <= 0 || opts.ValidationSplit >= 1 {
		opts.ValidationSplit = def.ValidationSplit
	}
	if opts.Space.Size() == 0 {
		opts.Space = def.Space
	}
	return &Trainer{opts: opts}
}

// Train splits samples, evaluates baseline and every admissible candidate on
// the validation split, and returns the candidate with the highest macro F1.
// baseline is evaluated first, so ties and non-improving grids keep it.
// A cancelled context aborts the search and returns no result.
func (t *Trainer) Train(ctx context.Context, samples []data.TrainingSample, baseline risk.Config) (Result, error) {
	if len(samples) < MinSamples {
		return Result{}, &InsufficientDataError{Have: len(samples), Need: MinSamples}
	}
	if err := t.opts.Space.Validate(); err != nil {
		return Result{}, err
	}

	start := time.Now()
	train, validation := StratifiedSplit(samples, t.opts.ValidationSplit, t.opts.Seed)

	log.Info().
		Int("samples", len(samples)).
		Int("train", len(train)).
		Int("validation", len(validation)).
		Int("grid_size", t.opts.Space.Size()).
		Msg("Training started")

	best := baseline.Clone()
	baseMetrics := eval.Evaluate(validation, baseline)
	bestMetrics := baseMetrics
	evaluated := 1

	weightChoices, prunedW := t.opts.Space.Weights()
	thresholdChoices, prunedT := t.opts.Space.Thresholds(baseline.Thresholds.Low)
	pruned := prunedW*len(t.opts.Space.Medium)*len(t.opts.Space.High)*len(t.opts.Space.ViralThreat) +
		len(weightChoices)*prunedT

	scores := make([]float64, len(validation))
	for _, w := range weightChoices {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		weighted := grid.ApplyWeights(baseline, w)
		for i, s := range validation {
			scores[i] = score.Score(s.Features, weighted)
		}

		for _, th := range thresholdChoices {
			candidate := grid.ApplyThresholds(weighted, th)
			if candidate.Validate() != nil {
				pruned++
				continue
			}
			evaluated++

			m := eval.EvaluateScores(validation, scores, candidate.Thresholds)
			if m.MacroF1 > bestMetrics.MacroF1 {
				best = candidate.Clone()
				bestMetrics = m
			}
		}
	}

	res := Result{
		Performance:         bestMetrics,
		BaselinePerformance: baseMetrics,
		OptimalConfig:       best,
		TrainSize:           len(train),
		ValidationSize:      len(validation),
		FeatureImportance:   FeatureImportance(train, best),
		Evaluated:           evaluated,
		Pruned:              pruned,
		Improved:            bestMetrics.MacroF1 > baseMetrics.MacroF1,
		Duration:            time.Since(start),
	}
	res.Suggestions = Suggestions(res, samples)

	log.Info().
		Float64("macro_f1", bestMetrics.MacroF1).
		Float64("baseline_macro_f1", baseMetrics.MacroF1).
		Int("evaluated", evaluated).
		Int("pruned", pruned).
		Bool("improved", res.Improved).
		Dur("duration", res.Duration).
		Msg("Training finished")

	return res, nil
}

// Split reproduces the train/validation split Train uses for samples
func (t *Trainer) Split(samples []data.TrainingSample) (train, validation []data.TrainingSample) {
	return StratifiedSplit(samples, t.opts.ValidationSplit, t.opts.Seed)
}

// StratifiedSplit shuffles each observed tier separately and moves the
// requested fraction of every tier into the validation split. The validation
// split is never empty when samples is non-empty.
func StratifiedSplit(samples []data.TrainingSample, fraction float64, seed int64) (train, validation []data.TrainingSample) {
	rng := rand.New(rand.NewSource(seed))

	groups := make([][]data.TrainingSample, len(score.Tiers)+1)
	for _, s := range samples {
		idx := s.ActualOutcome.ObservedTier.Index()
		if idx < 0 {
			idx = len(score.Tiers)
		}
		groups[idx] = append(groups[idx], s)
	}

	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		rng.Shuffle(len(g), func(i, j int) { g[i], g[j] = g[j], g[i] })
		n := int(float64(len(g))*fraction + 0.5)
		validation = append(validation, g[:n]...)
		train = append(train, g[n:]...)
	}

	if len(validation) == 0 && len(train) > 0 {
		validation = append(validation, train[len(train)-1])
		train = train[:len(train)-1]
	}
	return train, validation
}

// FeatureImportance is each feature's weight times its mean value over samples
func FeatureImportance(samples []data.TrainingSample, cfg risk.Config) map[string]float64 {
	w := cfg.Weights
	weights := [6]float64{w.ToneSeverity, w.EngagementVelocity, w.UserInfluence, w.ContentLength, w.PlatformMultiplier, w.TimeDecay}

	var sums [6]float64
	for _, s := range samples {
		for i, v := range s.Features.Values() {
			sums[i] += v
		}
	}

	out := make(map[string]float64, len(features.Names))
	for i, name := range features.Names {
		mean := 0.0
		if len(samples) > 0 {
			mean = sums[i] / float64(len(samples))
		}
		out[name] = weights[i] * mean
	}
	return out
}
