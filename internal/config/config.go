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

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"LS_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"LS_DB_MAX_CONNS" default:"8"`

	// Reddit and OpenAI secrets are optional at startup. A run without them
	// ends with a terminal error event instead.
	RedditClientID     string        `envconfig:"REDDIT_CLIENT_ID" default:""`
	RedditClientSecret string        `envconfig:"REDDIT_CLIENT_SECRET" default:""`
	RedditUserAgent    string        `envconfig:"REDDIT_USER_AGENT" default:"RedditLeadGen/1.0 by AscotLloyd"`
	RedditAuthURL      string        `envconfig:"REDDIT_AUTH_URL" default:"https://www.reddit.com/api/v1/access_token"`
	RedditAPIBaseURL   string        `envconfig:"REDDIT_API_BASE_URL" default:"https://oauth.reddit.com"`
	RedditSectionDelay time.Duration `envconfig:"REDDIT_SECTION_DELAY" default:"500ms"`

	OpenAIAPIKey  string        `envconfig:"OPENAI_API_KEY" default:""`
	OpenAIBaseURL string        `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	OpenAIModel   string        `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	OpenAITimeout time.Duration `envconfig:"OPENAI_TIMEOUT" default:"30s"`

	IngestBatchSize   int  `envconfig:"INGEST_BATCH_SIZE" default:"5"`
	IngestMaxPosts    int  `envconfig:"INGEST_MAX_POSTS" default:"500"`
	LanguageDetection bool `envconfig:"LANGUAGE_DETECTION" default:"true"`

	CORSAllowedOrigins    string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
	DashboardUser         string `envconfig:"DASHBOARD_USER" default:"admin"`
	DashboardPasswordHash string `envconfig:"DASHBOARD_PASSWORD_HASH" default:""`
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
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("LS_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("LS_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("LS_DB_MIN_CONNS (%d) cannot exceed LS_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if strings.TrimSpace(c.RedditAuthURL) == "" {
		return fmt.Errorf("REDDIT_AUTH_URL is required")
	}
	if strings.TrimSpace(c.RedditAPIBaseURL) == "" {
		return fmt.Errorf("REDDIT_API_BASE_URL is required")
	}
	if c.RedditSectionDelay < 0 {
		return fmt.Errorf("REDDIT_SECTION_DELAY must be >= 0")
	}
	if strings.TrimSpace(c.OpenAIBaseURL) == "" {
		return fmt.Errorf("OPENAI_BASE_URL is required")
	}
	if strings.TrimSpace(c.OpenAIModel) == "" {
		return fmt.Errorf("OPENAI_MODEL is required")
	}
	if c.OpenAITimeout <= 0 {
		return fmt.Errorf("OPENAI_TIMEOUT must be > 0")
	}
	if c.IngestBatchSize < 1 {
		return fmt.Errorf("INGEST_BATCH_SIZE must be >= 1")
	}
	if c.IngestMaxPosts < 1 {
		return fmt.Errorf("INGEST_MAX_POSTS must be >= 1")
	}
	if strings.TrimSpace(c.DashboardPasswordHash) != "" && strings.TrimSpace(c.DashboardUser) == "" {
		return fmt.Errorf("DASHBOARD_USER is required when DASHBOARD_PASSWORD_HASH is set")
	}
	return nil
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}
