package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"horse.fit/leadscout/internal/auth"
	"horse.fit/leadscout/internal/db"
	"horse.fit/leadscout/internal/leads"
	"horse.fit/leadscout/internal/pipeline"
	"horse.fit/leadscout/internal/progress"
	"horse.fit/leadscout/internal/scoring"
)

type fakeStore struct {
	mu        sync.Mutex
	leads     []leads.Lead
	settings  map[string]*db.SettingRecord
	pingErr   error
	listCalls []db.LeadFilter
	trendArgs []trendCall
	trend     []db.TrendBucket
}

type trendCall struct {
	bucket   string
	from, to time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{settings: map[string]*db.SettingRecord{}}
}

func (s *fakeStore) Ping(context.Context) error { return s.pingErr }

func (s *fakeStore) ListLeads(_ context.Context, filter db.LeadFilter) ([]leads.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls = append(s.listCalls, filter)
	out := make([]leads.Lead, 0, len(s.leads))
	for _, lead := range s.leads {
		if filter.Subreddit != "" && lead.Subreddit != filter.Subreddit {
			continue
		}
		if lead.Score < filter.MinScore {
			continue
		}
		out = append(out, lead)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeStore) DeleteLead(_ context.Context, redditID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, lead := range s.leads {
		if lead.RedditID == redditID {
			s.leads = append(s.leads[:i], s.leads[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) DeleteAllLeads(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.leads))
	s.leads = nil
	return n, nil
}

func (s *fakeStore) GetSetting(_ context.Context, key string) (*db.SettingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.settings[key]
	if !ok {
		return nil, db.ErrNoRows
	}
	copyRecord := *record
	return &copyRecord, nil
}

func (s *fakeStore) UpsertSetting(_ context.Context, key string, value json.RawMessage, now time.Time) (*db.SettingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record := &db.SettingRecord{Key: key, Value: append(json.RawMessage(nil), value...), UpdatedAt: now}
	s.settings[key] = record
	copyRecord := *record
	return &copyRecord, nil
}

func (s *fakeStore) GetStringSetting(ctx context.Context, key string) (string, error) {
	record, err := s.GetSetting(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	var value string
	if err := json.Unmarshal(record.Value, &value); err != nil {
		return "", err
	}
	return value, nil
}

func (s *fakeStore) LeadTrend(_ context.Context, bucket string, from, to time.Time) ([]db.TrendBucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trendArgs = append(s.trendArgs, trendCall{bucket: bucket, from: from, to: to})
	return s.trend, nil
}

func (s *fakeStore) QueryLeadTotals(context.Context) (*db.LeadTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &db.LeadTotals{Leads: int64(len(s.leads)), BySubreddit: map[string]int64{}}, nil
}

// fakeIngestor replays a fixed event script.
type fakeIngestor struct {
	mu       sync.Mutex
	requests []pipeline.Request
	events   []progress.Event
	ctxErr   error
}

func (f *fakeIngestor) Run(ctx context.Context, req pipeline.Request, rep pipeline.Reporter) (*pipeline.Summary, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.ctxErr = ctx.Err()
	f.mu.Unlock()

	for _, ev := range f.events {
		switch e := ev.(type) {
		case progress.Progress:
			rep.Progress(e.Message, e.Percent)
		case progress.Complete:
			rep.Complete(e)
		case progress.Failure:
			rep.Fail(e.Message)
		}
	}
	return &pipeline.Summary{}, nil
}

func (f *fakeIngestor) lastRequest(t *testing.T) pipeline.Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatalf("expected ingestor to be called")
	}
	return f.requests[len(f.requests)-1]
}

type fakeRefiner struct {
	gotPrompt   string
	gotFeedback string
	err         error
}

func (f *fakeRefiner) RefinePrompt(_ context.Context, currentPrompt, feedback string) (*scoring.Refinement, error) {
	f.gotPrompt = currentPrompt
	f.gotFeedback = feedback
	if f.err != nil {
		return nil, f.err
	}
	return &scoring.Refinement{Analysis: "a", SuggestedChanges: "s", ImprovedPrompt: "better " + currentPrompt}, nil
}

func newTestServer(store *fakeStore, ingestor Ingestor, refiner PromptRefiner, creds auth.DashboardCredentials) *Server {
	server := NewServer(nil, ingestor, refiner, zerolog.Nop(), Options{
		Credentials: creds,
		Gatherer:    prometheus.NewRegistry(),
	})
	server.store = store
	return server
}

func doRequest(t *testing.T, server *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) (string, json.RawMessage, string) {
	t.Helper()

	var envelope struct {
		Status  string          `json:"status"`
		Data    json.RawMessage `json:"data"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope %q: %v", rec.Body.String(), err)
	}
	return envelope.Status, envelope.Data, envelope.Message
}

func newAuthedRequest(method, path, username, password string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.SetBasicAuth(username, password)
	return req
}

func serve(server *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}
