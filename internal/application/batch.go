package application

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/viralrisk/internal/score"
)

// BatchResult carries one item's prediction or the error that failed it
type BatchResult struct {
	Index      int               `json:"index"`
	ItemID     string            `json:"itemId,omitempty"`
	Prediction *score.Prediction `json:"prediction,omitempty"`
	Error      string            `json:"error,omitempty"`
	Err        error             `json:"-"`
}

// PredictBatch scores every request independently. One failing item never
// affects the others; results keep the request order.
func (e *Engine) PredictBatch(ctx context.Context, reqs []PredictRequest) []BatchResult {
	return e.runBatch(ctx, len(reqs), func(ctx context.Context, i int) BatchResult {
		pred, err := e.Predict(ctx, reqs[i])
		return batchResult(i, reqs[i].Item.ID, pred, err)
	})
}

// AnalyzeBatch runs Analyze over every request with per-item isolation
func (e *Engine) AnalyzeBatch(ctx context.Context, reqs []AnalyzeRequest) []BatchResult {
	return e.runBatch(ctx, len(reqs), func(ctx context.Context, i int) BatchResult {
		pred, err := e.Analyze(ctx, reqs[i])
		return batchResult(i, reqs[i].Item.ID, pred, err)
	})
}

func batchResult(i int, itemID string, pred score.Prediction, err error) BatchResult {
	if err != nil {
		log.Warn().Err(err).Str("item_id", itemID).Int("index", i).Msg("Batch item failed")
		return BatchResult{Index: i, ItemID: itemID, Error: err.Error(), Err: err}
	}
	return BatchResult{Index: i, ItemID: itemID, Prediction: &pred}
}

// runBatch fans fn out over n items with at most BatchConcurrency in flight.
// Items not started before ctx is done fail with the context error.
func (e *Engine) runBatch(ctx context.Context, n int, fn func(context.Context, int) BatchResult) []BatchResult {
	results := make([]BatchResult, n)
	sem := make(chan struct{}, e.opts.BatchConcurrency)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			for j := i; j < n; j++ {
				results[j] = BatchResult{Index: j, Error: ctx.Err().Error(), Err: ctx.Err()}
			}
			wg.Wait()
			return results
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = fn(ctx, i)
		}(i)
	}

	wg.Wait()
	return results
}
