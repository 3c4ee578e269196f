package config

import (
	"fmt"
	"time"
)

// ProvidersConfig configures the upstream sentiment and emotion classifiers
type ProvidersConfig struct {
	Sentiment ProviderConfig `yaml:"sentiment"`
	Emotion   ProviderConfig `yaml:"emotion"`
	UserAgent string         `yaml:"user_agent"`
}

// ProviderConfig represents configuration for a single classifier endpoint
type ProviderConfig struct {
	BaseURL   string        `yaml:"base_url"`   // Base URL for API calls
	RPS       float64       `yaml:"rps"`        // Requests per second we allow ourselves
	Burst     int           `yaml:"burst"`      // Burst capacity
	TimeoutMS int           `yaml:"timeout_ms"` // Per-request timeout in milliseconds
	Circuit   CircuitConfig `yaml:"circuit"`    // Circuit breaker config
	Enabled   bool          `yaml:"enabled"`    // Provider enabled flag
}

// CircuitConfig represents circuit breaker configuration
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold"` // Consecutive failures to open circuit
	HalfOpenRequests int `yaml:"half_open_requests"`
	OpenTimeoutMS    int `yaml:"open_timeout_ms"` // Time spent open before probing
}

func defaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		RPS:       20,
		Burst:     40,
		TimeoutMS: 2000,
		Circuit: CircuitConfig{
			FailureThreshold: 5,
			HalfOpenRequests: 1,
			OpenTimeoutMS:    30000,
		},
	}
}

// Validate ensures the configuration is valid and consistent
func (c *ProvidersConfig) Validate() error {
	for name, p := range map[string]*ProviderConfig{"sentiment": &c.Sentiment, "emotion": &c.Emotion} {
		if !p.Enabled {
			continue
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("provider %s: %w", name, err)
		}
	}
	return nil
}

// Validate ensures a provider configuration is valid
func (p *ProviderConfig) Validate() error {
	if p.BaseURL == "" {
		return fmt.Errorf("base_url cannot be empty")
	}
	if p.RPS <= 0 {
		return fmt.Errorf("rps must be positive, got %g", p.RPS)
	}
	if p.Burst < 1 {
		return fmt.Errorf("burst must be at least 1, got %d", p.Burst)
	}
	if p.TimeoutMS <= 0 {
		return fmt.Errorf("timeout_ms must be positive, got %d", p.TimeoutMS)
	}
	if err := p.Circuit.Validate(); err != nil {
		return fmt.Errorf("circuit: %w", err)
	}
	return nil
}

// Validate ensures circuit breaker configuration is valid
func (c *CircuitConfig) Validate() error {
	if c.FailureThreshold <= 0 {
		return fmt.Errorf("failure_threshold must be positive, got %d", c.FailureThreshold)
	}
	if c.HalfOpenRequests <= 0 {
		return fmt.Errorf("half_open_requests must be positive, got %d", c.HalfOpenRequests)
	}
	if c.OpenTimeoutMS <= 0 {
		return fmt.Errorf("open_timeout_ms must be positive, got %d", c.OpenTimeoutMS)
	}
	return nil
}

// GetRequestTimeout returns the request timeout as a time.Duration
func (p *ProviderConfig) GetRequestTimeout() time.Duration {
	return time.Duration(p.TimeoutMS) * time.Millisecond
}

// GetOpenTimeout returns how long the breaker stays open
func (p *ProviderConfig) GetOpenTimeout() time.Duration {
	return time.Duration(p.Circuit.OpenTimeoutMS) * time.Millisecond
}
