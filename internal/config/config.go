package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseDSN string `envconfig:"DATABASE_DSN" required:"true"`
	DBMinConns  int32  `envconfig:"KD_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"KD_DB_MAX_CONNS" default:"8"`

	SourceTable string `envconfig:"SOURCE_TABLE" default:"sentiment_work_rt"`
	NotifyTable string `envconfig:"NOTIFY_TABLE" default:"sentiment_work_notify_rt"`

	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"60s"`
	StartID      int64         `envconfig:"START_ID" default:"0"`
	StatusAddr   string        `envconfig:"STATUS_ADDR" default:""`

	LLMEndpoint       string        `envconfig:"LLM_ENDPOINT" required:"true"`
	LLMModel          string        `envconfig:"LLM_MODEL" default:"azure-gpt-4o"`
	LLMRequestTimeout time.Duration `envconfig:"LLM_REQUEST_TIMEOUT" default:"300s"`

	WebhookURL    string `envconfig:"WEBHOOK_URL" required:"true"`
	MentionOpenID string `envconfig:"MENTION_OPEN_ID" default:""`

	SemanticClustering  bool    `envconfig:"SEMANTIC_CLUSTERING" default:"true"`
	CandidateLimit      int     `envconfig:"CLUSTER_CANDIDATE_LIMIT" default:"20"`
	SimilarityThreshold float64 `envconfig:"SIMILARITY_THRESHOLD" default:"0.72"`
	LookbackDays        int     `envconfig:"CLUSTER_LOOKBACK_DAYS" default:"30"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		return fmt.Errorf("DATABASE_DSN is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("KD_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("KD_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("KD_DB_MIN_CONNS (%d) cannot exceed KD_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if strings.TrimSpace(c.SourceTable) == "" {
		return fmt.Errorf("SOURCE_TABLE is required")
	}
	if strings.TrimSpace(c.NotifyTable) == "" {
		return fmt.Errorf("NOTIFY_TABLE is required")
	}
	if c.PollInterval < time.Second {
		return fmt.Errorf("POLL_INTERVAL must be >= 1s")
	}
	if c.StartID < 0 {
		return fmt.Errorf("START_ID must be >= 0")
	}
	if strings.TrimSpace(c.LLMEndpoint) == "" {
		return fmt.Errorf("LLM_ENDPOINT is required")
	}
	if c.LLMRequestTimeout <= 0 {
		return fmt.Errorf("LLM_REQUEST_TIMEOUT must be > 0")
	}
	if strings.TrimSpace(c.WebhookURL) == "" {
		return fmt.Errorf("WEBHOOK_URL is required")
	}
	if c.CandidateLimit < 1 {
		return fmt.Errorf("CLUSTER_CANDIDATE_LIMIT must be >= 1")
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be in (0, 1]")
	}
	if c.LookbackDays < 1 {
		return fmt.Errorf("CLUSTER_LOOKBACK_DAYS must be >= 1")
	}
	return nil
}
