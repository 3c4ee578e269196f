package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/sawpanic/viralrisk/internal/persistence/kv"
	"github.com/sawpanic/viralrisk/internal/persistence/postgres"
)

// AppConfig represents the overall application configuration
type AppConfig struct {
	Redis     kv.RedisConfig  `yaml:"redis"`
	Database  postgres.Config `yaml:"database"`
	HTTP      HTTPSection     `yaml:"http"`
	Providers ProvidersConfig `yaml:"providers"`
	Training  TrainingSection `yaml:"training"`
	Engine    EngineSection   `yaml:"engine"`
	Log       LogSection      `yaml:"log"`
}

// HTTPSection configures the HTTP adapter
type HTTPSection struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// TrainingSection holds defaults for offline tuning runs
type TrainingSection struct {
	MinEngagement   int64   `yaml:"min_engagement"`
	ValidationSplit float64 `yaml:"validation_split"`
	Seed            int64   `yaml:"seed"`
	Publish         bool    `yaml:"publish"`
	Author          string  `yaml:"author"`
	LookbackDays    int     `yaml:"lookback_days"`
}

// EngineSection tunes the scoring engine
type EngineSection struct {
	ConfigCacheTTL   time.Duration `yaml:"config_cache_ttl"`
	BatchConcurrency int           `yaml:"batch_concurrency"`
}

// LogSection selects the log level
type LogSection struct {
	Level string `yaml:"level"`
}

// DefaultAppConfig returns a default application configuration
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Redis: kv.RedisConfig{
			KeyPrefix: "viralrisk:",
		},
		Database: postgres.DefaultConfig(),
		HTTP: HTTPSection{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   30 * time.Second,
			RequestTimeout: 15 * time.Second,
		},
		Providers: ProvidersConfig{
			Sentiment: defaultProviderConfig(),
			Emotion:   defaultProviderConfig(),
			UserAgent: "viralrisk/1.0",
		},
		Training: TrainingSection{
			MinEngagement:   10,
			ValidationSplit: 0.2,
			Seed:            42,
			Author:          "trainer",
			LookbackDays:    30,
		},
		Engine: EngineSection{
			ConfigCacheTTL:   30 * time.Second,
			BatchConcurrency: 8,
		},
		Log: LogSection{Level: "info"},
	}
}

// LoadAppConfig loads application configuration from YAML file with environment variable overrides.
// A missing file yields the defaults.
func LoadAppConfig(configPath string) (*AppConfig, error) {
	config := DefaultAppConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
			}

			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
			}
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(config *AppConfig) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		config.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		config.Redis.Password = password
	}

	if dsn := os.Getenv("PG_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}
	if enabled := os.Getenv("PG_ENABLED"); enabled != "" {
		if val, err := strconv.ParseBool(enabled); err == nil {
			config.Database.Enabled = val
		}
	}
	if maxOpen := os.Getenv("PG_MAX_OPEN_CONNS"); maxOpen != "" {
		if val, err := strconv.Atoi(maxOpen); err == nil {
			config.Database.MaxOpenConns = val
		}
	}
	if queryTimeout := os.Getenv("PG_QUERY_TIMEOUT"); queryTimeout != "" {
		if val, err := time.ParseDuration(queryTimeout); err == nil {
			config.Database.QueryTimeout = val
		}
	}

	if port := os.Getenv("HTTP_PORT"); port != "" {
		if val, err := strconv.Atoi(port); err == nil {
			config.HTTP.Port = val
		}
	}

	if url := os.Getenv("SENTIMENT_URL"); url != "" {
		config.Providers.Sentiment.BaseURL = url
		config.Providers.Sentiment.Enabled = true
	}
	if url := os.Getenv("EMOTION_URL"); url != "" {
		config.Providers.Emotion.BaseURL = url
		config.Providers.Emotion.Enabled = true
	}

	if level := os.Getenv("VIRALRISK_LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}
}

// SaveAppConfig saves the application configuration to a YAML file
func SaveAppConfig(config *AppConfig, configPath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", configPath, err)
	}

	return nil
}

// Validate validates the application configuration
func (c *AppConfig) Validate() error {
	if c.Database.Enabled && c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required when database is enabled")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("max_idle_conns cannot exceed max_open_conns")
	}
	if c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("query_timeout must be positive")
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	if err := c.Providers.Validate(); err != nil {
		return err
	}

	if c.Training.ValidationSplit <= 0 || c.Training.ValidationSplit >= 1 {
		return fmt.Errorf("validation_split must be between 0 and 1, got %g", c.Training.ValidationSplit)
	}
	if c.Training.MinEngagement < 0 {
		return fmt.Errorf("min_engagement cannot be negative")
	}

	if c.Engine.ConfigCacheTTL <= 0 {
		return fmt.Errorf("config_cache_ttl must be positive")
	}
	if c.Engine.BatchConcurrency <= 0 {
		return fmt.Errorf("batch_concurrency must be positive")
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}

	return nil
}

// Addr returns the listen address for the HTTP adapter
func (h HTTPSection) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}
