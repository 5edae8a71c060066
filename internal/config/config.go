// Package config loads the daemon's configuration from INTERVIEWD_*
// environment variables. A .env file in the working directory is honored via
// godotenv's autoload in the main package.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all daemon configuration.
type Config struct {
	Server    ServerConfig
	Narrative NarrativeConfig
	Store     StoreConfig
	Limiter   LimiterConfig
	Interview InterviewConfig
	Sweeper   SweeperConfig
}

// ServerConfig configures the HTTP and MCP surfaces.
type ServerConfig struct {
	Port  int    `envconfig:"INTERVIEWD_PORT" default:"8600"`
	Token string `envconfig:"INTERVIEWD_TOKEN" required:"true"`
	MCP   bool   `envconfig:"INTERVIEWD_MCP" default:"false"`
}

// NarrativeConfig configures the OpenAI-compatible narrative backend.
type NarrativeConfig struct {
	BaseURL string        `envconfig:"INTERVIEWD_NARRATIVE_URL" default:"https://api.openai.com/v1"`
	APIKey  string        `envconfig:"INTERVIEWD_NARRATIVE_KEY" required:"true"`
	Model   string        `envconfig:"INTERVIEWD_NARRATIVE_MODEL" default:"gpt-4o-mini"`
	Timeout time.Duration `envconfig:"INTERVIEWD_NARRATIVE_TIMEOUT" default:"30s"`
	RPS     float64       `envconfig:"INTERVIEWD_NARRATIVE_RPS" default:"2"`
	Burst   int           `envconfig:"INTERVIEWD_NARRATIVE_BURST" default:"4"`
}

// StoreConfig configures the SQLite data directory. Empty means
// ~/.interviewd.
type StoreConfig struct {
	DataDir string `envconfig:"INTERVIEWD_DATA_DIR"`
}

// LimiterConfig configures the per-session call ceiling. When RedisAddr is
// set the counter is shared across replicas; otherwise it is in-process.
type LimiterConfig struct {
	Ceiling       int    `envconfig:"INTERVIEWD_CALL_CEILING" default:"15"`
	RedisAddr     string `envconfig:"INTERVIEWD_REDIS_ADDR"`
	RedisPassword string `envconfig:"INTERVIEWD_REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"INTERVIEWD_REDIS_DB" default:"0"`
}

// InterviewConfig tunes question budgets and mandatory topic coverage.
type InterviewConfig struct {
	GuidedQuestions    int    `envconfig:"INTERVIEWD_GUIDED_QUESTIONS" default:"7"`
	ColdStartQuestions int    `envconfig:"INTERVIEWD_COLD_START_QUESTIONS" default:"8"`
	TopicsFile         string `envconfig:"INTERVIEWD_TOPICS_FILE"`
}

// SweeperConfig tunes background finalization of abandoned sessions.
type SweeperConfig struct {
	Enabled   bool          `envconfig:"INTERVIEWD_SWEEPER_ENABLED" default:"true"`
	Interval  time.Duration `envconfig:"INTERVIEWD_SWEEPER_INTERVAL" default:"10m"`
	IdleAfter time.Duration `envconfig:"INTERVIEWD_SWEEPER_IDLE_AFTER" default:"1h"`
}

// Load reads configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("processing environment: %w", err)
	}

	if cfg.Store.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolving home directory: %w", err)
		}
		cfg.Store.DataDir = filepath.Join(home, ".interviewd")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and cross-field constraints.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("INTERVIEWD_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Narrative.Timeout <= 0 {
		return fmt.Errorf("INTERVIEWD_NARRATIVE_TIMEOUT must be positive")
	}
	if c.Narrative.RPS < 0 {
		return fmt.Errorf("INTERVIEWD_NARRATIVE_RPS must be non-negative")
	}
	if c.Limiter.Ceiling < 1 {
		return fmt.Errorf("INTERVIEWD_CALL_CEILING must be at least 1")
	}
	if c.Interview.GuidedQuestions < 1 || c.Interview.ColdStartQuestions < 1 {
		return fmt.Errorf("question budgets must be at least 1")
	}
	if c.Sweeper.Interval <= 0 || c.Sweeper.IdleAfter <= 0 {
		return fmt.Errorf("sweeper interval and idle threshold must be positive")
	}
	return nil
}

// ServerAddr returns the listen address for the HTTP server.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
