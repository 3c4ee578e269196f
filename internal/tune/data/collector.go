package data

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/viralrisk/internal/config/risk"
	"github.com/sawpanic/viralrisk/internal/domain/content"
	"github.com/sawpanic/viralrisk/internal/domain/features"
	"github.com/sawpanic/viralrisk/internal/persistence"
)

// Request selects the history to collect
type Request struct {
	From          time.Time `json:"from"`
	To            time.Time `json:"to"`
	MinEngagement int64     `json:"minEngagement"`
	Limit         int       `json:"limit,omitempty"`
}

// ItemFailure records an item excluded because its outcome lookup failed
type ItemFailure struct {
	ItemID string `json:"itemId"`
	Error  string `json:"error"`
}

// Collection is the outcome of one collection run
type Collection struct {
	Samples       []TrainingSample `json:"samples"`
	Scanned       int              `json:"scanned"`
	LowEngagement int              `json:"lowEngagement"`
	Failures      []ItemFailure    `json:"failures,omitempty"`
}

// Collector reads analyzed history and observed outcomes
type Collector struct {
	content  persistence.ContentRepository
	outcomes persistence.OutcomeRepository
	now      func() time.Time
}

// NewCollector creates a collector over the given repositories
func NewCollector(content persistence.ContentRepository, outcomes persistence.OutcomeRepository) *Collector {
	return &Collector{content: content, outcomes: outcomes, now: time.Now}
}

// WithClock overrides the time source used to recompute freshness
func (c *Collector) WithClock(now func() time.Time) *Collector {
	c.now = now
	return c
}

// Collect builds training samples for items analyzed in the window. Items below
// the engagement floor are skipped; items whose outcome lookup fails are recorded
// and excluded. cfg supplies the thresholds used to label outcomes.
func (c *Collector) Collect(ctx context.Context, req Request, cfg risk.Config) (Collection, error) {
	items, err := c.content.ListAnalyzed(ctx, persistence.TimeRange{From: req.From, To: req.To}, req.Limit)
	if err != nil {
		return Collection{}, fmt.Errorf("failed to list analyzed content: %w", err)
	}

	now := c.now()
	out := Collection{Scanned: len(items)}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return Collection{}, err
		}
		if item.Engagement() < req.MinEngagement {
			out.LowEngagement++
			continue
		}

		sample, err := c.sample(ctx, item, cfg, now)
		if err != nil {
			log.Warn().Err(err).Str("item_id", item.ItemID).Msg("Excluding item from training data")
			out.Failures = append(out.Failures, ItemFailure{ItemID: item.ItemID, Error: err.Error()})
			continue
		}
		out.Samples = append(out.Samples, sample)
	}

	log.Info().
		Int("scanned", out.Scanned).
		Int("samples", len(out.Samples)).
		Int("low_engagement", out.LowEngagement).
		Int("failures", len(out.Failures)).
		Msg("Training data collected")

	return out, nil
}

func (c *Collector) sample(ctx context.Context, item persistence.AnalyzedItem, cfg risk.Config, now time.Time) (TrainingSample, error) {
	alert, err := c.outcomes.HasAlert(ctx, item.ItemID)
	if err != nil {
		return TrainingSample{}, err
	}
	engagement, err := c.outcomes.CurrentEngagement(ctx, item.ItemID)
	if err != nil {
		return TrainingSample{}, err
	}

	return TrainingSample{
		SourceItemID:  item.ItemID,
		Features:      Reconstruct(item, now),
		ActualOutcome: ObserveOutcome(alert, engagement, cfg),
	}, nil
}

// Reconstruct rebuilds the feature vector from persisted values. Freshness is
// not persisted and is recomputed against now.
func Reconstruct(item persistence.AnalyzedItem, now time.Time) features.Vector {
	hours := content.Item{PostedAt: item.PostedAt}.HoursSincePosted(now)
	return features.Vector{
		ToneSeverity:       item.ToneSeverity,
		EngagementVelocity: item.EngagementVelocity,
		UserInfluence:      item.UserInfluence,
		ContentLength:      item.ContentLength,
		PlatformMultiplier: item.PlatformMultiplier,
		TimeDecay:          features.Decay(hours),
	}.Clamped()
}
