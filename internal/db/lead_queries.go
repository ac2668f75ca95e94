package db

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"horse.fit/leadscout/internal/leads"
)

const leadColumns = `
	id,
	reddit_id,
	title,
	content,
	subreddit,
	author,
	url,
	reddit_created_at,
	summary,
	score,
	opportunity,
	draft_reply,
	language,
	created_at`

// LeadFilter narrows ListLeads. Zero values disable a filter.
type LeadFilter struct {
	Subreddit string
	MinScore  int
}

// ExistingRedditIDs returns the subset of ids already stored, using a single
// query for the whole set.
func (p *Pool) ExistingRedditIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{}, len(ids))
	if len(ids) == 0 {
		return existing, nil
	}

	placeholders, args := inPlaceholders(ids, 1)
	q := `SELECT reddit_id FROM reddit_leads WHERE reddit_id IN (` + placeholders + `)`

	rows, err := p.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query existing reddit ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan existing reddit id: %w", err)
		}
		existing[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate existing reddit ids: %w", err)
	}
	return existing, nil
}

// InsertLead stores lead unless its reddit_id is already present. It reports
// whether a row was written; a conflicting row is left untouched.
func (p *Pool) InsertLead(ctx context.Context, lead leads.Lead) (bool, error) {
	const q = `
INSERT INTO reddit_leads (
	reddit_id,
	title,
	content,
	subreddit,
	author,
	url,
	reddit_created_at,
	summary,
	score,
	opportunity,
	draft_reply,
	language
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (reddit_id) DO NOTHING
`

	tag, err := p.Exec(ctx, q,
		lead.RedditID,
		lead.Title,
		lead.Content,
		lead.Subreddit,
		lead.Author,
		lead.URL,
		lead.RedditCreatedAt.UTC(),
		lead.Summary,
		leads.ClampScore(lead.Score),
		lead.Opportunity,
		lead.DraftReply,
		lead.Language,
	)
	if err != nil {
		return false, fmt.Errorf("insert lead %s: %w", lead.RedditID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListLeads returns stored leads, most recently stored first.
func (p *Pool) ListLeads(ctx context.Context, filter LeadFilter) ([]leads.Lead, error) {
	where := make([]string, 0, 2)
	args := make([]any, 0, 2)
	if subreddit := strings.TrimSpace(filter.Subreddit); subreddit != "" {
		args = append(args, subreddit)
		where = append(where, "LOWER(subreddit) = LOWER($"+strconv.Itoa(len(args))+")")
	}
	if filter.MinScore > 0 {
		args = append(args, filter.MinScore)
		where = append(where, "score >= $"+strconv.Itoa(len(args)))
	}

	q := `SELECT` + leadColumns + `
FROM reddit_leads`
	if len(where) > 0 {
		q += "\nWHERE " + strings.Join(where, " AND ")
	}
	q += "\nORDER BY created_at DESC, id DESC"

	return p.queryLeads(ctx, q, args...)
}

// ListLeadsByRedditIDs returns the stored leads among ids, best score first.
func (p *Pool) ListLeadsByRedditIDs(ctx context.Context, ids []string) ([]leads.Lead, error) {
	if len(ids) == 0 {
		return []leads.Lead{}, nil
	}

	placeholders, args := inPlaceholders(ids, 1)
	q := `SELECT` + leadColumns + `
FROM reddit_leads
WHERE reddit_id IN (` + placeholders + `)
ORDER BY score DESC, created_at DESC`

	return p.queryLeads(ctx, q, args...)
}

// DeleteLead removes one lead by reddit_id. It reports false when no row matched.
func (p *Pool) DeleteLead(ctx context.Context, redditID string) (bool, error) {
	tag, err := p.Exec(ctx, `DELETE FROM reddit_leads WHERE reddit_id = $1`, strings.TrimSpace(redditID))
	if err != nil {
		return false, fmt.Errorf("delete lead %s: %w", redditID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (p *Pool) DeleteAllLeads(ctx context.Context) (int64, error) {
	tag, err := p.Exec(ctx, `DELETE FROM reddit_leads`)
	if err != nil {
		return 0, fmt.Errorf("delete all leads: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *Pool) queryLeads(ctx context.Context, q string, args ...any) ([]leads.Lead, error) {
	rows, err := p.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}
	defer rows.Close()

	out := make([]leads.Lead, 0, 32)
	for rows.Next() {
		var lead leads.Lead
		if err := rows.Scan(
			&lead.ID,
			&lead.RedditID,
			&lead.Title,
			&lead.Content,
			&lead.Subreddit,
			&lead.Author,
			&lead.URL,
			&lead.RedditCreatedAt,
			&lead.Summary,
			&lead.Score,
			&lead.Opportunity,
			&lead.DraftReply,
			&lead.Language,
			&lead.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		lead.RedditCreatedAt = lead.RedditCreatedAt.UTC()
		lead.CreatedAt = lead.CreatedAt.UTC()
		out = append(out, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leads: %w", err)
	}
	return out, nil
}

// inPlaceholders renders $start..$n for values and returns them as query args.
func inPlaceholders(values []string, start int) (string, []any) {
	var b strings.Builder
	args := make([]any, 0, len(values))
	for i, value := range values {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("$")
		b.WriteString(strconv.Itoa(start + i))
		args = append(args, value)
	}
	return b.String(), args
}
