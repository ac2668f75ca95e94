package app

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"horse.fit/leadscout/internal/db"
	"horse.fit/leadscout/internal/leads"
	"horse.fit/leadscout/internal/pipeline"
	"horse.fit/leadscout/internal/reddit"
)

func parseRunFlags(t *testing.T, args ...string) (*flag.FlagSet, *runFlags) {
	t.Helper()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(&bytes.Buffer{})
	flags := addRunFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse: %v", err)
	}
	return fs, flags
}

func TestRunFlagsRequest_Defaults(t *testing.T) {
	t.Parallel()

	_, flags := parseRunFlags(t)
	req, err := flags.request()
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if req.TimeRangeHours != pipeline.DefaultTimeRangeHours || req.PostCount != pipeline.DefaultPostCount {
		t.Fatalf("unexpected defaults: %+v", req)
	}
	if req.From != nil || req.To != nil || req.InstructionTemplate != "" {
		t.Fatalf("expected no explicit window or template: %+v", req)
	}
}

func TestRunFlagsRequest_PromptFileAndWindow(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "prompt.txt")
	if err := os.WriteFile(path, []byte("Find founders asking for CRMs"), 0o644); err != nil {
		t.Fatalf("write prompt: %v", err)
	}

	_, flags := parseRunFlags(t, "--prompt-file", path, "--from", "2026-01-01", "--to", "2026-01-02", "--posts", "-1")
	req, err := flags.request()
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if req.InstructionTemplate != "Find founders asking for CRMs" {
		t.Fatalf("unexpected template %q", req.InstructionTemplate)
	}
	if req.PostCount != pipeline.UnlimitedPostCount {
		t.Fatalf("expected unlimited post count, got %d", req.PostCount)
	}
	if req.From == nil || req.To == nil || req.To.Sub(*req.From).Hours() != 48 {
		t.Fatalf("expected a two-day window, got %v .. %v", req.From, req.To)
	}
}

func TestRunFlagsRequest_Rejections(t *testing.T) {
	t.Parallel()

	cases := [][]string{
		{"--hours", "0"},
		{"--hours", "9000"},
		{"--posts", "-2"},
		{"--from", "soon"},
		{"--from", "2026-01-02", "--to", "2026-01-01"},
		{"--prompt", "a", "--prompt-file", "b.txt"},
	}
	for _, args := range cases {
		_, flags := parseRunFlags(t, args...)
		if _, err := flags.request(); err == nil {
			t.Fatalf("expected %v to be rejected", args)
		}
	}
}

type stubSettings struct {
	prompt    string
	params    *db.SearchParameters
	paramsErr error
}

func (s stubSettings) GetStringSetting(context.Context, string) (string, error) {
	return s.prompt, nil
}

func (s stubSettings) GetSearchParameters(context.Context) (*db.SearchParameters, error) {
	return s.params, s.paramsErr
}

func TestApplyStoredDefaults(t *testing.T) {
	t.Parallel()

	store := stubSettings{
		prompt: "stored prompt",
		params: &db.SearchParameters{TimeRangeHours: 72, PostCount: 100},
	}
	base := pipeline.Request{TimeRangeHours: 24, PostCount: 25}

	got := applyStoredDefaults(context.Background(), store, base, false, false, zerolog.Nop())
	if got.InstructionTemplate != "stored prompt" || got.TimeRangeHours != 72 || got.PostCount != 100 {
		t.Fatalf("expected stored values, got %+v", got)
	}

	explicit := base
	explicit.InstructionTemplate = "flag prompt"
	got = applyStoredDefaults(context.Background(), store, explicit, true, false, zerolog.Nop())
	if got.InstructionTemplate != "flag prompt" || got.TimeRangeHours != 24 || got.PostCount != 100 {
		t.Fatalf("expected explicit flags to win, got %+v", got)
	}

	broken := stubSettings{paramsErr: errors.New("db down")}
	got = applyStoredDefaults(context.Background(), broken, base, false, false, zerolog.Nop())
	if got.TimeRangeHours != 24 || got.PostCount != 25 {
		t.Fatalf("expected flag defaults when settings fail, got %+v", got)
	}
}

type noCredentialsSource struct{}

func (noCredentialsSource) CheckCredentials() error { return reddit.ErrMissingCredentials }

func (noCredentialsSource) Authenticate(context.Context) (string, error) { return "", nil }

func (noCredentialsSource) FetchCandidates(context.Context, string, leads.Window, int, reddit.SectionFunc) ([]leads.Candidate, error) {
	return nil, nil
}

type unusedScorer struct{}

func (unusedScorer) CheckAPIKey() error { return nil }

func (unusedScorer) Score(context.Context, leads.Candidate, string) (*leads.Lead, error) {
	return nil, errors.New("not expected")
}

type emptyStore struct{}

func (emptyStore) ExistingRedditIDs(context.Context, []string) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}

func (emptyStore) InsertLead(context.Context, leads.Lead) (bool, error) { return false, nil }

func (emptyStore) ListLeadsByRedditIDs(context.Context, []string) ([]leads.Lead, error) {
	return nil, nil
}

func TestRunAndFollow_PrintsEventsAndReturnsError(t *testing.T) {
	t.Parallel()

	svc := pipeline.NewService(noCredentialsSource{}, unusedScorer{}, emptyStore{}, pipeline.Options{Logger: zerolog.Nop()})

	var out bytes.Buffer
	summary, err := runAndFollow(context.Background(), svc, pipeline.Request{}, &out)
	if err == nil || summary != nil {
		t.Fatalf("expected failure, got summary=%v err=%v", summary, err)
	}

	printed := out.String()
	if !strings.Contains(printed, "[  0%] Starting fetch process...") {
		t.Fatalf("expected the first progress line, got %q", printed)
	}
	if !strings.Contains(printed, "error: "+reddit.MissingCredentialsMessage) {
		t.Fatalf("expected the failure line, got %q", printed)
	}
}
