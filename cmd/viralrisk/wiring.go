package main

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/viralrisk/internal/application"
	"github.com/sawpanic/viralrisk/internal/config"
	"github.com/sawpanic/viralrisk/internal/config/versions"
	"github.com/sawpanic/viralrisk/internal/metrics"
	"github.com/sawpanic/viralrisk/internal/persistence"
	"github.com/sawpanic/viralrisk/internal/persistence/kv"
	"github.com/sawpanic/viralrisk/internal/persistence/postgres"
	"github.com/sawpanic/viralrisk/internal/providers"
	"github.com/sawpanic/viralrisk/internal/tune"
	"github.com/sawpanic/viralrisk/internal/tune/data"
	"github.com/sawpanic/viralrisk/internal/tune/grid"
)

// runtime holds the wired components shared by every command
type runtime struct {
	cfg      *config.AppConfig
	engine   *application.Engine
	versions *versions.Manager
	metrics  *metrics.Registry
	guards   []*providers.Guard

	redis *redis.Client
	db    *postgres.Manager
}

// buildRuntime wires the store, repositories, providers and engine from cfg.
// Extra listeners receive configuration events alongside metrics.
func buildRuntime(ctx context.Context, cfg *config.AppConfig, listeners ...versions.Listener) (*runtime, error) {
	rt := &runtime{cfg: cfg, metrics: metrics.NewRegistry(nil)}

	store, err := rt.openStore()
	if err != nil {
		return nil, err
	}

	var collector *data.Collector
	if cfg.Database.Enabled {
		db, err := postgres.NewManager(cfg.Database)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("connect database: %w", err)
		}
		rt.db = db
		collector = data.NewCollector(db.Content(), db.Outcomes())
	}

	var sentiment providers.SentimentProvider
	var emotion providers.EmotionProvider
	if p := cfg.Providers.Sentiment; p.Enabled {
		client := providers.NewHTTPClient("sentiment", p.BaseURL, cfg.Providers.UserAgent, p.GetRequestTimeout())
		sentiment = providers.GuardedSentiment{Guard: rt.guard("sentiment", p), Next: client}
	}
	if p := cfg.Providers.Emotion; p.Enabled {
		client := providers.NewHTTPClient("emotion", p.BaseURL, cfg.Providers.UserAgent, p.GetRequestTimeout())
		emotion = providers.GuardedEmotion{Guard: rt.guard("emotion", p), Next: client}
	}

	all := append([]versions.Listener{application.MetricsListener(rt.metrics)}, listeners...)
	rt.versions = versions.NewManager(store, versions.Options{
		CacheTTL: cfg.Engine.ConfigCacheTTL,
		Listener: application.Listeners(all...),
	})

	current, err := rt.versions.EnsureInitialized(ctx)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("initialize configuration: %w", err)
	}
	rt.metrics.SetActiveVersion(current)

	opts := application.DefaultOptions()
	opts.BatchConcurrency = cfg.Engine.BatchConcurrency
	opts.TrainAuthor = cfg.Training.Author
	opts.Trainer = tune.Options{
		ValidationSplit: cfg.Training.ValidationSplit,
		Seed:            cfg.Training.Seed,
		Space:           grid.DefaultSpace(),
	}

	rt.engine, err = application.NewEngine(application.Dependencies{
		Versions:  rt.versions,
		Sentiment: sentiment,
		Emotion:   emotion,
		Collector: collector,
		Metrics:   rt.metrics,
	}, opts)
	if err != nil {
		rt.Close()
		return nil, err
	}

	log.Info().
		Str("config_version", current).
		Bool("redis", rt.redis != nil).
		Bool("database", rt.db != nil).
		Int("providers", len(rt.guards)).
		Msg("Engine initialized")
	return rt, nil
}

func (rt *runtime) openStore() (persistence.KeyValueStore, error) {
	if rt.cfg.Redis.Addr == "" {
		log.Warn().Msg("No redis address configured, configuration versions are kept in memory")
		return kv.NewMemoryStore(), nil
	}
	store, client, err := kv.Dial(rt.cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	rt.redis = client
	return store, nil
}

func (rt *runtime) guard(name string, p config.ProviderConfig) *providers.Guard {
	g := providers.NewGuard(name, p)
	g.OnStateChange(rt.metrics.SetCircuitState)
	rt.metrics.SetCircuitState(name, g.State())
	rt.guards = append(rt.guards, g)
	return g
}

// Close releases the store and database connections
func (rt *runtime) Close() {
	if rt.db != nil {
		if err := rt.db.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close database")
		}
	}
	if rt.redis != nil {
		if err := rt.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close redis client")
		}
	}
}
