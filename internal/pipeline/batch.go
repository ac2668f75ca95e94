package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"horse.fit/leadscout/internal/leads"
)

const DefaultBatchSize = 5

// Scoring occupies percent 35..95 of a run's progress.
const (
	scoringPercentStart = 35
	scoringPercentSpan  = 60
)

// LanguageTagger returns an ISO 639-1 code for text, or "".
type LanguageTagger func(text string) string

// BatchResult summarises a scheduler run.
type BatchResult struct {
	// Scored holds every successfully scored lead in candidate order,
	// whether or not the insert wrote a row.
	Scored          []leads.Lead
	Inserted        int
	ScoringFailures int
	PersistFailures int
	Groups          int
}

// Scheduler scores candidates in fixed-size groups. Members of a group run
// concurrently; groups run one after another.
type Scheduler struct {
	scorer    Scorer
	store     Store
	batchSize int
	tagger    LanguageTagger
	metrics   *Metrics
	logger    zerolog.Logger
}

func NewScheduler(scorer Scorer, store Store, batchSize int, tagger LanguageTagger, metrics *Metrics, logger zerolog.Logger) *Scheduler {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &Scheduler{
		scorer:    scorer,
		store:     store,
		batchSize: batchSize,
		tagger:    tagger,
		metrics:   metrics,
		logger:    logger,
	}
}

type slotOutcome struct {
	lead       *leads.Lead
	inserted   bool
	scoreErr   error
	persistErr error
}

// Run scores and persists candidates. emit is called once before each group.
// Scoring and persistence failures are counted and logged; they never stop
// the run.
func (s *Scheduler) Run(ctx context.Context, candidates []leads.Candidate, template string, emit func(message string, percent int)) BatchResult {
	total := len(candidates)
	result := BatchResult{Scored: make([]leads.Lead, 0, total)}

	for start := 0; start < total; start += s.batchSize {
		end := min(start+s.batchSize, total)
		group := candidates[start:end]
		result.Groups++

		if emit != nil {
			emit(fmt.Sprintf("Processing posts %d-%d of %d...", start+1, end, total), groupPercent(start, total))
		}

		slots := make([]slotOutcome, len(group))
		var g errgroup.Group
		for i, candidate := range group {
			g.Go(func() error {
				slots[i] = s.scoreOne(ctx, candidate, template)
				return nil
			})
		}
		_ = g.Wait()

		scored, skipped, inserted := 0, 0, 0
		for i, slot := range slots {
			if slot.scoreErr != nil {
				skipped++
				s.logger.Warn().Err(slot.scoreErr).Str("reddit_id", group[i].RedditID).Msg("scoring failed, skipping post")
				continue
			}
			scored++
			result.Scored = append(result.Scored, *slot.lead)
			if slot.persistErr != nil {
				result.PersistFailures++
				s.logger.Error().Err(slot.persistErr).Str("reddit_id", group[i].RedditID).Msg("persist lead failed")
				continue
			}
			if slot.inserted {
				inserted++
			}
		}
		result.ScoringFailures += skipped
		result.Inserted += inserted

		s.logger.Info().
			Int("group", result.Groups).
			Int("size", len(group)).
			Int("scored", scored).
			Int("skipped", skipped).
			Int("inserted", inserted).
			Msg("scoring group finished")
	}

	return result
}

func (s *Scheduler) scoreOne(ctx context.Context, candidate leads.Candidate, template string) slotOutcome {
	started := time.Now()
	lead, err := s.scorer.Score(ctx, candidate, template)
	if err != nil {
		s.metrics.scoringCall("error", time.Since(started))
		return slotOutcome{scoreErr: err}
	}
	if lead == nil {
		s.metrics.scoringCall("empty", time.Since(started))
		return slotOutcome{scoreErr: fmt.Errorf("scorer returned no lead for %s", candidate.RedditID)}
	}
	s.metrics.scoringCall("ok", time.Since(started))

	if s.tagger != nil && lead.Language == "" {
		lead.Language = s.tagger(strings.TrimSpace(candidate.Title + "\n" + candidate.Body))
	}

	inserted, err := s.store.InsertLead(ctx, *lead)
	if err != nil {
		s.metrics.persistFailed()
		return slotOutcome{lead: lead, persistErr: err}
	}
	return slotOutcome{lead: lead, inserted: inserted}
}

// groupPercent maps the number of items started before a group onto the
// scoring share of overall progress.
func groupPercent(started, total int) int {
	if total <= 0 {
		return scoringPercentStart
	}
	return scoringPercentStart + started*scoringPercentSpan/total
}
