package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"horse.fit/leadscout/internal/leads"
	"horse.fit/leadscout/internal/progress"
	"horse.fit/leadscout/internal/reddit"
)

type stubSource struct {
	credErr    error
	authErr    error
	candidates []leads.Candidate
	sections   []string

	mu         sync.Mutex
	authCalls  int
	fetchCalls int
	lastLimit  int
}

func (s *stubSource) CheckCredentials() error { return s.credErr }

func (s *stubSource) Authenticate(context.Context) (string, error) {
	s.mu.Lock()
	s.authCalls++
	s.mu.Unlock()
	if s.authErr != nil {
		return "", s.authErr
	}
	return "token", nil
}

func (s *stubSource) FetchCandidates(_ context.Context, _ string, _ leads.Window, totalLimit int, onSection reddit.SectionFunc) ([]leads.Candidate, error) {
	s.mu.Lock()
	s.fetchCalls++
	s.lastLimit = totalLimit
	s.mu.Unlock()
	for i, section := range s.sections {
		if onSection != nil {
			onSection(i, section)
		}
	}
	return append([]leads.Candidate(nil), s.candidates...), nil
}

type stubScorer struct {
	keyErr error
	// fail lists reddit ids whose scoring call errors.
	fail  map[string]bool
	score int
	delay time.Duration

	calls       atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (s *stubScorer) CheckAPIKey() error { return s.keyErr }

func (s *stubScorer) Score(_ context.Context, c leads.Candidate, _ string) (*leads.Lead, error) {
	s.calls.Add(1)
	current := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		seen := s.maxInFlight.Load()
		if current <= seen || s.maxInFlight.CompareAndSwap(seen, current) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.fail[c.RedditID] {
		return nil, errors.New("openai status 500")
	}
	score := s.score
	if score == 0 {
		score = 6
	}
	lead := leads.NewLead(c, leads.Assessment{Summary: "s", Score: score, Opportunity: "o", DraftReply: "r"})
	return &lead, nil
}

// memStore is an in-memory Store with ignore-on-conflict inserts.
type memStore struct {
	mu          sync.Mutex
	rows        map[string]leads.Lead
	existsCalls int
	existsErr   error
	listErr     error
	insertErr   map[string]bool
}

func newMemStore(existing ...string) *memStore {
	s := &memStore{rows: make(map[string]leads.Lead)}
	for _, id := range existing {
		s.rows[id] = leads.Lead{RedditID: id, Score: 3}
	}
	return s
}

func (s *memStore) ExistingRedditIDs(_ context.Context, ids []string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.existsCalls++
	if s.existsErr != nil {
		return nil, s.existsErr
	}
	out := make(map[string]struct{})
	for _, id := range ids {
		if _, ok := s.rows[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (s *memStore) InsertLead(_ context.Context, lead leads.Lead) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr[lead.RedditID] {
		return false, errors.New("insert failed")
	}
	if _, ok := s.rows[lead.RedditID]; ok {
		return false, nil
	}
	s.rows[lead.RedditID] = lead
	return true, nil
}

func (s *memStore) ListLeadsByRedditIDs(_ context.Context, ids []string) ([]leads.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]leads.Lead, 0, len(ids))
	for _, id := range ids {
		if lead, ok := s.rows[id]; ok {
			out = append(out, lead)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

type recorder struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recorder) Progress(message string, percent int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, progress.Progress{Message: message, Percent: percent})
}

func (r *recorder) Complete(c progress.Complete) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, c)
}

func (r *recorder) Fail(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, progress.Failure{Message: message})
}

func (r *recorder) snapshot() []progress.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]progress.Event(nil), r.events...)
}

func (r *recorder) terminals() []progress.Event {
	var out []progress.Event
	for _, ev := range r.snapshot() {
		if ev.Terminal() {
			out = append(out, ev)
		}
	}
	return out
}

func candidatesWithIDs(ids ...string) []leads.Candidate {
	out := make([]leads.Candidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, leads.Candidate{
			RedditID:   id,
			Title:      "title " + id,
			Body:       "body",
			Subreddit:  "personalfinance",
			Permalink:  "/r/personalfinance/comments/" + id,
			CreatedUTC: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Unix(),
		})
	}
	return out
}
