package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/sawpanic/viralrisk/internal/config"
	"github.com/sawpanic/viralrisk/internal/domain/content"
)

// Guard paces calls to one classifier and opens a circuit breaker after
// consecutive failures.
type Guard struct {
	name    string
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	onState func(provider, state string)
}

// NewGuard builds a guard from provider configuration
func NewGuard(name string, cfg config.ProviderConfig) *Guard {
	g := &Guard{name: name}
	failures := uint32(cfg.Circuit.FailureThreshold)
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(cfg.Circuit.HalfOpenRequests),
		Timeout:     cfg.GetOpenTimeout(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Provider circuit state changed")
			if g.onState != nil {
				g.onState(name, to.String())
			}
		},
	}

	g.breaker = gobreaker.NewCircuitBreaker(settings)
	g.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst)
	return g
}

// OnStateChange registers fn to receive breaker transitions. Call it before
// the guard is shared.
func (g *Guard) OnStateChange(fn func(provider, state string)) {
	g.onState = fn
}

// Name returns the guarded provider name
func (g *Guard) Name() string { return g.name }

// State reports the breaker state
func (g *Guard) State() string { return g.breaker.State().String() }

// Do waits for a rate token and runs fn through the breaker. Failures are
// reported as *UpstreamProviderError.
func (g *Guard) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return &UpstreamProviderError{
			Provider: g.name,
			Type:     ErrTypeRateLimit,
			Err:      fmt.Errorf("rate limit wait failed: %w", err),
		}
	}

	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &UpstreamProviderError{Provider: g.name, Type: ErrTypeCircuit, Err: err}
	}
	return asUpstream(g.name, ErrTypeTransport, err)
}

// GuardedSentiment applies a Guard to a SentimentProvider
type GuardedSentiment struct {
	Guard *Guard
	Next  SentimentProvider
}

func (g GuardedSentiment) AnalyzeSentiment(ctx context.Context, text string) (content.SentimentResult, error) {
	var out content.SentimentResult
	err := g.Guard.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.Next.AnalyzeSentiment(ctx, text)
		return err
	})
	return out, err
}

// GuardedEmotion applies a Guard to an EmotionProvider
type GuardedEmotion struct {
	Guard *Guard
	Next  EmotionProvider
}

func (g GuardedEmotion) AnalyzeEmotions(ctx context.Context, text string) ([]content.EmotionScore, error) {
	var out []content.EmotionScore
	err := g.Guard.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.Next.AnalyzeEmotions(ctx, text)
		return err
	})
	return out, err
}
