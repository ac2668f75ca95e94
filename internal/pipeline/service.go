// Package pipeline runs one ingestion: fetch, dedup, score and persist.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"horse.fit/leadscout/internal/globaltime"
	"horse.fit/leadscout/internal/leads"
	"horse.fit/leadscout/internal/progress"
	"horse.fit/leadscout/internal/reddit"
	"horse.fit/leadscout/internal/scoring"
)

const (
	DefaultTimeRangeHours = 24
	DefaultPostCount      = 25
	// UnlimitedPostCount asks for as many posts as the run cap allows.
	UnlimitedPostCount = -1
	DefaultMaxPosts    = 500
)

// Source fetches candidate posts.
type Source interface {
	CheckCredentials() error
	Authenticate(ctx context.Context) (string, error)
	FetchCandidates(ctx context.Context, token string, window leads.Window, totalLimit int, onSection reddit.SectionFunc) ([]leads.Candidate, error)
}

// Scorer assesses one candidate.
type Scorer interface {
	CheckAPIKey() error
	Score(ctx context.Context, candidate leads.Candidate, template string) (*leads.Lead, error)
}

// Store is the persistence surface a run needs.
type Store interface {
	ExistingRedditIDs(ctx context.Context, ids []string) (map[string]struct{}, error)
	InsertLead(ctx context.Context, lead leads.Lead) (bool, error)
	ListLeadsByRedditIDs(ctx context.Context, ids []string) ([]leads.Lead, error)
}

// Reporter receives the run's progress events. *progress.Stream satisfies it.
type Reporter interface {
	Progress(message string, percent int)
	Complete(c progress.Complete)
	Fail(message string)
}

type Request struct {
	TimeRangeHours int
	PostCount      int
	// InstructionTemplate is the system prompt; empty uses the default.
	InstructionTemplate string
	// From and To replace the rolling window when set.
	From *time.Time
	To   *time.Time
}

// Summary describes a finished run.
type Summary struct {
	RunID           string
	TotalPosts      int
	NewPosts        int
	ExistingPosts   int
	Fetched         int
	ScoringFailures int
	PersistFailures int
	Leads           []leads.Lead
	Duration        time.Duration
}

type Options struct {
	BatchSize int
	// MaxPosts caps the post count of a single run.
	MaxPosts int
	Tagger   LanguageTagger
	Metrics  *Metrics
	Logger   zerolog.Logger
}

type Service struct {
	source   Source
	scorer   Scorer
	store    Store
	maxPosts int
	batch    *Scheduler
	metrics  *Metrics
	logger   zerolog.Logger
}

func NewService(source Source, scorer Scorer, store Store, opts Options) *Service {
	maxPosts := opts.MaxPosts
	if maxPosts < 1 {
		maxPosts = DefaultMaxPosts
	}
	logger := opts.Logger.With().Str("component", "pipeline").Logger()

	return &Service{
		source:   source,
		scorer:   scorer,
		store:    store,
		maxPosts: maxPosts,
		batch:    NewScheduler(scorer, store, opts.BatchSize, opts.Tagger, opts.Metrics, logger),
		metrics:  opts.Metrics,
		logger:   logger,
	}
}

// EffectivePostCount resolves the requested count against the run cap.
func EffectivePostCount(requested, maxPosts int) int {
	if maxPosts < 1 {
		maxPosts = DefaultMaxPosts
	}
	switch {
	case requested == UnlimitedPostCount:
		return maxPosts
	case requested <= 0:
		return min(DefaultPostCount, maxPosts)
	case requested > maxPosts:
		return maxPosts
	default:
		return requested
	}
}

// Window resolves the creation interval the request accepts.
func (r Request) Window(now time.Time) leads.Window {
	if r.From != nil || r.To != nil {
		var w leads.Window
		if r.From != nil {
			w.From = r.From.UTC()
		}
		if r.To != nil {
			w.To = r.To.UTC()
		}
		return w
	}
	hours := r.TimeRangeHours
	if hours < 1 {
		hours = DefaultTimeRangeHours
	}
	return leads.RollingWindow(now, hours)
}

// Run executes one ingestion and reports every step to rep. Exactly one
// terminal event is sent. The returned error mirrors a Failure event.
func (s *Service) Run(ctx context.Context, req Request, rep Reporter) (*Summary, error) {
	started := globaltime.Now()
	runID := uuid.NewString()
	logger := s.logger.With().Str("run_id", runID).Logger()

	s.metrics.runStarted()
	outcome := "failed"
	defer func() {
		s.metrics.runFinished(outcome, globaltime.Since(started))
	}()

	fail := func(userMessage string, err error) (*Summary, error) {
		logger.Error().Err(err).Msg("ingestion failed")
		rep.Fail(userMessage)
		return nil, err
	}

	rep.Progress("Starting fetch process...", 0)

	if err := s.source.CheckCredentials(); err != nil {
		return fail(reddit.MissingCredentialsMessage, err)
	}
	if err := s.scorer.CheckAPIKey(); err != nil {
		return fail(scoring.MissingAPIKeyMessage, err)
	}

	rep.Progress("Authenticating with Reddit...", 5)
	token, err := s.source.Authenticate(ctx)
	if err != nil {
		var authErr *reddit.AuthError
		if errors.As(err, &authErr) {
			return fail(authErr.UserMessage(), err)
		}
		return fail("Failed to authenticate with Reddit. Please check your credentials.", err)
	}

	postCount := EffectivePostCount(req.PostCount, s.maxPosts)
	window := req.Window(globaltime.UTC())

	rep.Progress("Fetching posts from Reddit...", 10)
	candidates, err := s.source.FetchCandidates(ctx, token, window, postCount, func(index int, section string) {
		rep.Progress(fmt.Sprintf("Fetching from r/%s...", section), 10+index*5)
	})
	if err != nil {
		return fail("Ingestion cancelled while fetching posts.", err)
	}
	if len(candidates) > postCount {
		candidates = candidates[:postCount]
	}
	s.metrics.posts("fetched", len(candidates))
	logger.Info().
		Int("fetched", len(candidates)).
		Int("post_count", postCount).
		Time("window_from", window.From).
		Msg("candidates fetched")

	rep.Progress(fmt.Sprintf("Found %d posts, checking for duplicates...", len(candidates)), 30)
	ids := distinctIDs(candidates)
	stored, err := s.store.ExistingRedditIDs(ctx, ids)
	if err != nil {
		return fail("Failed to check for existing posts.", fmt.Errorf("check existing posts: %w", err))
	}
	fresh := Partition(candidates, stored)
	s.metrics.posts("new", len(fresh))
	s.metrics.posts("existing", len(ids)-len(fresh))

	template := strings.TrimSpace(req.InstructionTemplate)
	var result BatchResult
	if len(fresh) > 0 {
		rep.Progress(fmt.Sprintf("Processing %d new posts with AI...", len(fresh)), 35)
		result = s.batch.Run(ctx, fresh, template, rep.Progress)
	}
	if err := ctx.Err(); err != nil {
		return fail("Ingestion cancelled while scoring posts.", err)
	}

	rep.Progress("Finalizing results...", 95)
	listing, err := s.store.ListLeadsByRedditIDs(ctx, ids)
	total := len(listing)
	if err != nil {
		logger.Warn().Err(err).Msg("final listing failed, reporting counts only")
		listing = nil
		total = len(stored) + result.Inserted
	}

	summary := &Summary{
		RunID:           runID,
		TotalPosts:      total,
		NewPosts:        result.Inserted,
		ExistingPosts:   max(total-result.Inserted, 0),
		Fetched:         len(candidates),
		ScoringFailures: result.ScoringFailures,
		PersistFailures: result.PersistFailures,
		Leads:           listing,
		Duration:        globaltime.Since(started),
	}

	rep.Progress("Complete!", 100)
	rep.Complete(progress.Complete{
		TotalPosts:    summary.TotalPosts,
		NewPosts:      summary.NewPosts,
		ExistingPosts: summary.ExistingPosts,
	})
	outcome = "completed"

	logger.Info().
		Int("total", summary.TotalPosts).
		Int("new", summary.NewPosts).
		Int("existing", summary.ExistingPosts).
		Int("scoring_failures", summary.ScoringFailures).
		Int("persist_failures", summary.PersistFailures).
		Dur("duration", summary.Duration).
		Msg("ingestion complete")

	return summary, nil
}
