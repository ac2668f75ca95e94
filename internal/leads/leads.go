// Package leads holds the records that flow through an ingestion run.
package leads

import (
	"strings"
	"time"
)

// PermalinkBase prefixes a post permalink to form its canonical URL.
const PermalinkBase = "https://reddit.com"

const (
	MinScore     = 1
	MaxScore     = 10
	DefaultScore = 5
)

// Candidate is a post fetched from the content source. It only lives for
// the duration of one run.
type Candidate struct {
	RedditID   string
	Title      string
	Body       string
	Subreddit  string
	Author     string
	Permalink  string
	CreatedUTC int64
}

func (c Candidate) CreatedAt() time.Time {
	return time.Unix(c.CreatedUTC, 0).UTC()
}

// URL returns the canonical post URL.
func (c Candidate) URL() string {
	permalink := strings.TrimSpace(c.Permalink)
	if permalink == "" {
		return ""
	}
	if strings.HasPrefix(permalink, "http://") || strings.HasPrefix(permalink, "https://") {
		return permalink
	}
	if !strings.HasPrefix(permalink, "/") {
		permalink = "/" + permalink
	}
	return PermalinkBase + permalink
}

// Assessment is the structured output of one scoring call.
type Assessment struct {
	Summary     string
	Score       int
	Opportunity string
	DraftReply  string
}

// Lead is a scored post as persisted by the store.
type Lead struct {
	ID              int64     `json:"id"`
	RedditID        string    `json:"reddit_id"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	Subreddit       string    `json:"subreddit"`
	Author          string    `json:"author"`
	URL             string    `json:"url"`
	RedditCreatedAt time.Time `json:"reddit_created_at"`
	Summary         string    `json:"summary"`
	Score           int       `json:"score"`
	Opportunity     string    `json:"opportunity"`
	DraftReply      string    `json:"draft_reply"`
	Language        string    `json:"language,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewLead combines a candidate with its assessment. CreatedAt is left for the
// store to fill.
func NewLead(c Candidate, a Assessment) Lead {
	return Lead{
		RedditID:        c.RedditID,
		Title:           c.Title,
		Content:         c.Body,
		Subreddit:       c.Subreddit,
		Author:          c.Author,
		URL:             c.URL(),
		RedditCreatedAt: c.CreatedAt(),
		Summary:         a.Summary,
		Score:           ClampScore(a.Score),
		Opportunity:     a.Opportunity,
		DraftReply:      a.DraftReply,
	}
}

func ClampScore(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// Window is the half-open creation interval [From, To) a run accepts. A zero
// To means open ended.
type Window struct {
	From time.Time
	To   time.Time
}

// RollingWindow covers the hours before now.
func RollingWindow(now time.Time, hours int) Window {
	return Window{From: now.Add(-time.Duration(hours) * time.Hour)}
}

func (w Window) Contains(t time.Time) bool {
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && !t.Before(w.To) {
		return false
	}
	return true
}
