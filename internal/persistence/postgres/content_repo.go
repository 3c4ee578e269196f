package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/viralrisk/internal/persistence"
)

// ContentRepo reads analyzed content history from PostgreSQL
type ContentRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

var _ persistence.ContentRepository = (*ContentRepo)(nil)

// NewContentRepo creates a new PostgreSQL content repository
func NewContentRepo(db *sqlx.DB, timeout time.Duration) *ContentRepo {
	return &ContentRepo{db: db, timeout: timeout}
}

const listAnalyzedQuery = `
		SELECT c.item_id, c.platform, c.text_length, c.followers, c.verified,
		       c.likes, c.shares, c.comments, c.posted_at, a.analyzed_at,
		       a.tone_severity, a.engagement_velocity, a.user_influence,
		       a.content_length, a.platform_multiplier, a.score, a.tier
		FROM content_items c
		JOIN risk_analyses a ON a.item_id = c.item_id
		WHERE a.analyzed_at >= $1 AND a.analyzed_at <= $2
		ORDER BY a.analyzed_at ASC
		LIMIT $3`

// ListAnalyzed returns items analyzed within the window, oldest first.
// A non-positive limit returns every row in the window.
func (r *ContentRepo) ListAnalyzed(ctx context.Context, tr persistence.TimeRange, limit int) ([]persistence.AnalyzedItem, error) {
	if err := tr.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var limitArg interface{}
	if limit > 0 {
		limitArg = limit
	}

	var items []persistence.AnalyzedItem
	if err := r.db.SelectContext(ctx, &items, listAnalyzedQuery, tr.From, tr.To, limitArg); err != nil {
		return nil, fmt.Errorf("failed to query analyzed content: %w", err)
	}
	return items, nil
}
