package application

import (
	"context"
	"errors"

	"github.com/sawpanic/viralrisk/internal/config/risk"
	"github.com/sawpanic/viralrisk/internal/config/versions"
)

// CurrentConfig returns the active configuration version
func (e *Engine) CurrentConfig(ctx context.Context) (versions.ConfigVersion, error) {
	return e.versions.GetCurrent(ctx)
}

// UpdateConfig merges p over the current configuration and publishes the
// result. Invalid results return *risk.ValidationError and change nothing.
func (e *Engine) UpdateConfig(ctx context.Context, p risk.Partial, description, author string) (string, error) {
	id, err := e.versions.Update(ctx, p, description, author)
	var verr *risk.ValidationError
	if errors.As(err, &verr) && e.metrics != nil {
		e.metrics.RecordConfigEvent("config.rejected")
	}
	return id, err
}

// RollbackConfig reactivates a previous version
func (e *Engine) RollbackConfig(ctx context.Context, id, author string) error {
	return e.versions.Rollback(ctx, id, author)
}

// ConfigHistory lists version ids, oldest first
func (e *Engine) ConfigHistory(ctx context.Context) ([]string, error) {
	return e.versions.History(ctx)
}

// GetVersion returns a stored version by id
func (e *Engine) GetVersion(ctx context.Context, id string) (versions.ConfigVersion, error) {
	return e.versions.GetVersion(ctx, id)
}

// StartABTest validates both configurations and starts a test
func (e *Engine) StartABTest(ctx context.Context, configA, configB risk.Config, name string, split float64) (string, error) {
	return e.versions.StartABTest(ctx, configA, configB, name, split)
}

// ResolveABTest returns the arm and configuration for a subject
func (e *Engine) ResolveABTest(ctx context.Context, testID, subjectID string) (risk.Config, versions.Arm, error) {
	return e.versions.ResolveABTest(ctx, testID, subjectID)
}

// StopABTest closes a test and persists its assignment counters
func (e *Engine) StopABTest(ctx context.Context, testID string) (versions.ABTest, error) {
	return e.versions.StopABTest(ctx, testID)
}

// ABTestStats returns a test record with live assignment counters
func (e *Engine) ABTestStats(ctx context.Context, testID string) (versions.ABTest, error) {
	return e.versions.ABTestStats(ctx, testID)
}

// ListABTests lists known test ids
func (e *Engine) ListABTests(ctx context.Context) ([]string, error) {
	return e.versions.ListABTests(ctx)
}
