package app

import (
	"bytes"
	"flag"
	"strings"
	"testing"
	"time"

	"horse.fit/leadscout/internal/leads"
)

func TestParseInstantFlag(t *testing.T) {
	t.Parallel()

	got, err := parseInstantFlag("", false)
	if err != nil || got != nil {
		t.Fatalf("expected nil for empty input, got %v, %v", got, err)
	}

	got, err = parseInstantFlag("2026-03-05T10:00:00+02:00", false)
	if err != nil {
		t.Fatalf("parse RFC3339: %v", err)
	}
	if want := time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC); !got.Equal(want) || got.Location() != time.UTC {
		t.Fatalf("expected %s in UTC, got %s", want, got)
	}

	start, err := parseInstantFlag("2026-03-05", false)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	end, err := parseInstantFlag("2026-03-05", true)
	if err != nil {
		t.Fatalf("parse date end: %v", err)
	}
	if end.Sub(*start) != 24*time.Hour {
		t.Fatalf("expected end of day to be next midnight, got %s .. %s", start, end)
	}

	if _, err := parseInstantFlag("yesterday", false); err == nil {
		t.Fatalf("expected error for unparseable instant")
	}
}

func TestParseOutputFormat(t *testing.T) {
	t.Parallel()

	if got, err := parseOutputFormat("", outputFormatTable); err != nil || got != outputFormatTable {
		t.Fatalf("expected default table, got %q, %v", got, err)
	}
	if got, err := parseOutputFormat(" JSON ", outputFormatTable); err != nil || got != outputFormatJSON {
		t.Fatalf("expected json, got %q, %v", got, err)
	}
	if _, err := parseOutputFormat("csv", outputFormatTable); err == nil {
		t.Fatalf("expected error for csv")
	}
}

func TestTruncateForTable(t *testing.T) {
	t.Parallel()

	if got := truncateForTable("  looking\nfor   a tool ", 0); got != "looking for a tool" {
		t.Fatalf("expected collapsed whitespace, got %q", got)
	}
	if got := truncateForTable("abcdefghij", 6); got != "abc..." {
		t.Fatalf("expected ellipsis, got %q", got)
	}
	if got := truncateForTable("héllo wörld", 3); got != "hél" {
		t.Fatalf("expected rune-safe cut, got %q", got)
	}
}

func TestWriteTableTo_LeadRows(t *testing.T) {
	t.Parallel()

	rows := leadTableRows([]leads.Lead{{
		RedditID:        "t3_abc",
		Score:           8,
		Subreddit:       "SaaS",
		Title:           "Need a CRM",
		RedditCreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		URL:             "https://reddit.com/r/SaaS/abc",
	}})

	var out bytes.Buffer
	if err := writeTableTo(&out, leadTableHeaders, rows); err != nil {
		t.Fatalf("writeTableTo: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %q", out.String())
	}
	for _, want := range []string{"t3_abc", "8", "r/SaaS", "2026-01-02T03:04:05Z"} {
		if !strings.Contains(lines[1], want) {
			t.Fatalf("expected row to contain %q, got %q", want, lines[1])
		}
	}
}

func TestFlagWasSet(t *testing.T) {
	t.Parallel()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Int("hours", 24, "")
	fs.Int("posts", 25, "")
	if err := fs.Parse([]string{"--hours", "24"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !flagWasSet(fs, "hours") {
		t.Fatalf("expected hours to be reported as set even at its default value")
	}
	if flagWasSet(fs, "posts") {
		t.Fatalf("expected posts to be reported as unset")
	}
}

func TestConfirmFrom(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"y\n":    true,
		"YES\n":  true,
		"n\n":    false,
		"":       false,
		"sure\n": false,
	}
	for input, want := range cases {
		got, err := confirmFrom(strings.NewReader(input), "Delete?")
		if err != nil {
			t.Fatalf("confirmFrom(%q): %v", input, err)
		}
		if got != want {
			t.Fatalf("confirmFrom(%q) = %v, want %v", input, got, want)
		}
	}
}
