// Package providers adapts the external sentiment and emotion classifiers
// consumed by the scoring engine.
package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/sawpanic/viralrisk/internal/domain/content"
)

// SentimentProvider labels text as positive, neutral or negative
type SentimentProvider interface {
	AnalyzeSentiment(ctx context.Context, text string) (content.SentimentResult, error)
}

// EmotionProvider returns confidence-scored emotions detected in text
type EmotionProvider interface {
	AnalyzeEmotions(ctx context.Context, text string) ([]content.EmotionScore, error)
}

// Error types reported in UpstreamProviderError.Type
const (
	ErrTypeRateLimit = "rate_limit"
	ErrTypeCircuit   = "circuit"
	ErrTypeTransport = "transport"
	ErrTypeHTTP      = "http_error"
	ErrTypeDecode    = "decode"
	ErrTypeMissing   = "unavailable"
)

// UpstreamProviderError represents a classifier failure with context
type UpstreamProviderError struct {
	Provider   string `json:"provider"`
	Type       string `json:"type"`
	StatusCode int    `json:"status_code,omitempty"`
	Err        error  `json:"-"`
}

func (e *UpstreamProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s %s error (HTTP %d): %v", e.Provider, e.Type, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s %s error: %v", e.Provider, e.Type, e.Err)
}

func (e *UpstreamProviderError) Unwrap() error {
	return e.Err
}

// asUpstream wraps err unless it already is an UpstreamProviderError
func asUpstream(provider, typ string, err error) error {
	var up *UpstreamProviderError
	if errors.As(err, &up) {
		return err
	}
	return &UpstreamProviderError{Provider: provider, Type: typ, Err: err}
}

// Upstream reports err as a transport failure of provider unless it already
// carries provider context
func Upstream(provider string, err error) error {
	return asUpstream(provider, ErrTypeTransport, err)
}

// SentimentFunc adapts a function to SentimentProvider
type SentimentFunc func(ctx context.Context, text string) (content.SentimentResult, error)

func (f SentimentFunc) AnalyzeSentiment(ctx context.Context, text string) (content.SentimentResult, error) {
	return f(ctx, text)
}

// EmotionFunc adapts a function to EmotionProvider
type EmotionFunc func(ctx context.Context, text string) ([]content.EmotionScore, error)

func (f EmotionFunc) AnalyzeEmotions(ctx context.Context, text string) ([]content.EmotionScore, error) {
	return f(ctx, text)
}
