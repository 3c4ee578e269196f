package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/viralrisk/internal/persistence"
)

// OutcomeRepo reads post-analysis outcomes (alerts, engagement) from PostgreSQL
type OutcomeRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

var _ persistence.OutcomeRepository = (*OutcomeRepo)(nil)

// NewOutcomeRepo creates a new PostgreSQL outcome repository
func NewOutcomeRepo(db *sqlx.DB, timeout time.Duration) *OutcomeRepo {
	return &OutcomeRepo{db: db, timeout: timeout}
}

// HasAlert reports whether any alert was raised for the item
func (r *OutcomeRepo) HasAlert(ctx context.Context, itemID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM alerts WHERE item_id = $1)`
	if err := r.db.GetContext(ctx, &exists, query, itemID); err != nil {
		return false, fmt.Errorf("failed to check alerts for %s: %w", itemID, err)
	}
	return exists, nil
}

// CurrentEngagement returns the latest combined likes, shares and comments
func (r *OutcomeRepo) CurrentEngagement(ctx context.Context, itemID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var total int64
	query := `
		SELECT likes + shares + comments
		FROM content_items
		WHERE item_id = $1`
	err := r.db.GetContext(ctx, &total, query, itemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("content item %s not found", itemID)
		}
		return 0, fmt.Errorf("failed to load engagement for %s: %w", itemID, err)
	}
	return total, nil
}
