package persistence

import (
	"context"
	"fmt"
	"time"
)

// TimeRange represents a time window for historical queries
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Validate rejects inverted windows
func (tr TimeRange) Validate() error {
	if tr.To.Before(tr.From) {
		return fmt.Errorf("invalid time range: to %s is before from %s", tr.To.Format(time.RFC3339), tr.From.Format(time.RFC3339))
	}
	return nil
}

// KeyValueStore is the keyed store behind configuration versions, history and
// A/B test records. Get returns found=false, not an error, for a missing key.
// No multi-key transactions are required of implementations.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	ListAppend(ctx context.Context, key string, value string) error
	// ListRange returns elements start..end inclusive; negative indexes count
	// from the tail as in Redis LRANGE.
	ListRange(ctx context.Context, key string, start, end int64) ([]string, error)
}

// AnalyzedItem is a previously scored item as recorded by the analysis store.
// timeDecay is not persisted and must be recomputed by readers.
type AnalyzedItem struct {
	ItemID     string     `json:"item_id" db:"item_id"`
	Platform   string     `json:"platform" db:"platform"`
	TextLength int        `json:"text_length" db:"text_length"`
	Followers  *int64     `json:"followers,omitempty" db:"followers"`
	Verified   *bool      `json:"verified,omitempty" db:"verified"`
	Likes      int64      `json:"likes" db:"likes"`
	Shares     int64      `json:"shares" db:"shares"`
	Comments   int64      `json:"comments" db:"comments"`
	PostedAt   *time.Time `json:"posted_at,omitempty" db:"posted_at"`
	AnalyzedAt time.Time  `json:"analyzed_at" db:"analyzed_at"`

	ToneSeverity       float64 `json:"tone_severity" db:"tone_severity"`
	EngagementVelocity float64 `json:"engagement_velocity" db:"engagement_velocity"`
	UserInfluence      float64 `json:"user_influence" db:"user_influence"`
	ContentLength      float64 `json:"content_length" db:"content_length"`
	PlatformMultiplier float64 `json:"platform_multiplier" db:"platform_multiplier"`

	Score float64 `json:"score" db:"score"`
	Tier  string  `json:"tier" db:"tier"`
}

// Engagement returns the combined interaction count recorded at analysis time
func (a AnalyzedItem) Engagement() int64 {
	return a.Likes + a.Shares + a.Comments
}

// ContentRepository provides read-only access to analyzed content history
type ContentRepository interface {
	// ListAnalyzed returns items analyzed within the window, oldest first
	ListAnalyzed(ctx context.Context, tr TimeRange, limit int) ([]AnalyzedItem, error)
}

// OutcomeRepository provides read-only access to what happened after analysis
type OutcomeRepository interface {
	// HasAlert reports whether an alert exists for the item
	HasAlert(ctx context.Context, itemID string) (bool, error)

	// CurrentEngagement returns the latest combined interaction count
	CurrentEngagement(ctx context.Context, itemID string) (int64, error)
}
