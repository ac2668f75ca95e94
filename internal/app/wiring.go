package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"horse.fit/leadscout/internal/config"
	"horse.fit/leadscout/internal/db"
	"horse.fit/leadscout/internal/langdetect"
	"horse.fit/leadscout/internal/pipeline"
	"horse.fit/leadscout/internal/reddit"
	"horse.fit/leadscout/internal/scoring"
)

func newRedditClient(cfg *config.Config, logger zerolog.Logger) *reddit.Client {
	return reddit.NewClient(reddit.Options{
		ClientID:     cfg.RedditClientID,
		ClientSecret: cfg.RedditClientSecret,
		UserAgent:    cfg.RedditUserAgent,
		AuthURL:      cfg.RedditAuthURL,
		APIBaseURL:   cfg.RedditAPIBaseURL,
		SectionDelay: cfg.RedditSectionDelay,
	}, logger)
}

func newScoringClient(cfg *config.Config) *scoring.Client {
	return scoring.NewClient(scoring.Options{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		Model:       cfg.OpenAIModel,
		CallTimeout: cfg.OpenAITimeout,
	})
}

func languageTagger(cfg *config.Config) pipeline.LanguageTagger {
	if !cfg.LanguageDetection {
		return langdetect.Disabled
	}
	return langdetect.DetectISO6391
}

// newIngestService wires the Reddit source, the OpenAI scorer and the store.
// reg may be nil when metrics are not exported.
func newIngestService(cfg *config.Config, pool *db.Pool, scorer *scoring.Client, reg prometheus.Registerer, logger zerolog.Logger) *pipeline.Service {
	var metrics *pipeline.Metrics
	if reg != nil {
		metrics = pipeline.NewMetrics(reg)
	}

	return pipeline.NewService(newRedditClient(cfg, logger), scorer, pool, pipeline.Options{
		BatchSize: cfg.IngestBatchSize,
		MaxPosts:  cfg.IngestMaxPosts,
		Tagger:    languageTagger(cfg),
		Metrics:   metrics,
		Logger:    logger,
	})
}
