package leads

import (
	"testing"
	"time"
)

func TestCandidateURL(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"/r/personalfinance/comments/abc/title/": "https://reddit.com/r/personalfinance/comments/abc/title/",
		"r/investing/comments/x/":                "https://reddit.com/r/investing/comments/x/",
		"https://reddit.com/r/x/":                "https://reddit.com/r/x/",
		"":                                       "",
	}
	for permalink, want := range cases {
		if got := (Candidate{Permalink: permalink}).URL(); got != want {
			t.Fatalf("permalink %q: got %q want %q", permalink, got, want)
		}
	}
}

func TestClampScore(t *testing.T) {
	t.Parallel()

	if got := ClampScore(0); got != 1 {
		t.Fatalf("expected 0 to clamp to 1, got %d", got)
	}
	if got := ClampScore(42); got != 10 {
		t.Fatalf("expected 42 to clamp to 10, got %d", got)
	}
	if got := ClampScore(7); got != 7 {
		t.Fatalf("expected 7 unchanged, got %d", got)
	}
}

func TestWindowContains(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rolling := RollingWindow(now, 24)
	if !rolling.Contains(now.Add(-23 * time.Hour)) {
		t.Fatalf("expected 23h old post inside 24h window")
	}
	if !rolling.Contains(now.Add(-24 * time.Hour)) {
		t.Fatalf("expected cutoff instant to be inside window")
	}
	if rolling.Contains(now.Add(-25 * time.Hour)) {
		t.Fatalf("expected 25h old post outside 24h window")
	}

	explicit := Window{From: now.Add(-48 * time.Hour), To: now.Add(-24 * time.Hour)}
	if explicit.Contains(now.Add(-time.Hour)) {
		t.Fatalf("expected post after To to be excluded")
	}
	if !explicit.Contains(now.Add(-30 * time.Hour)) {
		t.Fatalf("expected post inside explicit window")
	}
}

func TestNewLead_ClampsAndMapsFields(t *testing.T) {
	t.Parallel()

	lead := NewLead(Candidate{
		RedditID:   "t3_1",
		Title:      "Pension question",
		Body:       "body",
		Subreddit:  "UKPersonalFinance",
		Author:     "someone",
		Permalink:  "/r/UKPersonalFinance/comments/1/",
		CreatedUTC: 1_700_000_000,
	}, Assessment{Summary: "s", Score: 11, Opportunity: "o", DraftReply: "r"})

	if lead.Score != 10 {
		t.Fatalf("expected clamped score 10, got %d", lead.Score)
	}
	if lead.URL != "https://reddit.com/r/UKPersonalFinance/comments/1/" {
		t.Fatalf("unexpected url %q", lead.URL)
	}
	if !lead.RedditCreatedAt.Equal(time.Unix(1_700_000_000, 0)) {
		t.Fatalf("unexpected created at %v", lead.RedditCreatedAt)
	}
}
