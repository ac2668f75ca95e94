package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Trend bucket granularities accepted by LeadTrend.
const (
	BucketDay   = "day"
	BucketWeek  = "week"
	BucketMonth = "month"
)

// TrendBucket is one point of the lead trend series.
type TrendBucket struct {
	BucketStart  time.Time `json:"bucket_start"`
	Leads        int64     `json:"leads"`
	AverageScore float64   `json:"average_score"`
	HighScore    int64     `json:"high_score_leads"`
}

// LeadTotals summarises the whole store.
type LeadTotals struct {
	Leads        int64            `json:"leads"`
	AverageScore float64          `json:"average_score"`
	BySubreddit  map[string]int64 `json:"by_subreddit"`
	LastStoredAt *time.Time       `json:"last_stored_at,omitempty"`
}

// HighScoreThreshold marks a lead as worth contacting in trend output.
const HighScoreThreshold = 7

func NormalizeBucket(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", BucketDay:
		return BucketDay, nil
	case BucketWeek:
		return BucketWeek, nil
	case BucketMonth:
		return BucketMonth, nil
	default:
		return "", fmt.Errorf("bucket must be day, week or month")
	}
}

// bucketStartExpr truncates a UTC timestamp expression to the bucket start.
// Weeks start on Sunday.
func bucketStartExpr(bucket, expr string) string {
	if bucket == BucketWeek {
		return "(date_trunc('week', " + expr + " + interval '1 day') - interval '1 day')"
	}
	return "date_trunc('" + bucket + "', " + expr + ")"
}

// LeadTrend counts leads by post creation time within [from, to). Every
// bucket in the range is returned, with zeros where no lead was posted.
func (p *Pool) LeadTrend(ctx context.Context, bucket string, from, to time.Time) ([]TrendBucket, error) {
	normalized, err := NormalizeBucket(bucket)
	if err != nil {
		return nil, err
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("from must be before to")
	}

	// The bucket name is validated above and cannot carry user input.
	q := `
WITH series AS (
	SELECT generate_series(
		` + bucketStartExpr(normalized, "($1::timestamptz AT TIME ZONE 'UTC')") + `,
		$2::timestamptz AT TIME ZONE 'UTC',
		interval '1 ` + normalized + `'
	) AS bucket_start
),
counts AS (
	SELECT
		` + bucketStartExpr(normalized, "(reddit_created_at AT TIME ZONE 'UTC')") + ` AS bucket_start,
		COUNT(*)::BIGINT AS leads,
		AVG(score)::FLOAT8 AS average_score,
		COUNT(*) FILTER (WHERE score >= $3)::BIGINT AS high_score
	FROM reddit_leads
	WHERE reddit_created_at >= $1
		AND reddit_created_at < $2
	GROUP BY 1
)
SELECT
	s.bucket_start,
	COALESCE(c.leads, 0)::BIGINT,
	COALESCE(c.average_score, 0)::FLOAT8,
	COALESCE(c.high_score, 0)::BIGINT
FROM series s
LEFT JOIN counts c ON c.bucket_start = s.bucket_start
WHERE s.bucket_start < $2::timestamptz AT TIME ZONE 'UTC'
ORDER BY s.bucket_start ASC
`

	rows, err := p.Query(ctx, q, from.UTC(), to.UTC(), HighScoreThreshold)
	if err != nil {
		return nil, fmt.Errorf("query lead trend: %w", err)
	}
	defer rows.Close()

	buckets := make([]TrendBucket, 0, 32)
	for rows.Next() {
		var b TrendBucket
		if err := rows.Scan(&b.BucketStart, &b.Leads, &b.AverageScore, &b.HighScore); err != nil {
			return nil, fmt.Errorf("scan lead trend: %w", err)
		}
		b.BucketStart = time.Date(b.BucketStart.Year(), b.BucketStart.Month(), b.BucketStart.Day(), 0, 0, 0, 0, time.UTC)
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lead trend: %w", err)
	}
	return buckets, nil
}

// QueryLeadTotals returns store-wide counts.
func (p *Pool) QueryLeadTotals(ctx context.Context) (*LeadTotals, error) {
	totals := &LeadTotals{BySubreddit: make(map[string]int64, 8)}

	const totalsQ = `
SELECT
	COUNT(*)::BIGINT,
	COALESCE(AVG(score), 0)::FLOAT8,
	MAX(created_at)
FROM reddit_leads
`
	var lastStored *time.Time
	if err := p.QueryRow(ctx, totalsQ).Scan(&totals.Leads, &totals.AverageScore, &lastStored); err != nil {
		return nil, fmt.Errorf("query lead totals: %w", err)
	}
	if lastStored != nil {
		utc := lastStored.UTC()
		totals.LastStoredAt = &utc
	}

	const bySubredditQ = `
SELECT subreddit, COUNT(*)::BIGINT
FROM reddit_leads
GROUP BY subreddit
ORDER BY subreddit ASC
`
	rows, err := p.Query(ctx, bySubredditQ)
	if err != nil {
		return nil, fmt.Errorf("query leads by subreddit: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			subreddit string
			count     int64
		)
		if err := rows.Scan(&subreddit, &count); err != nil {
			return nil, fmt.Errorf("scan leads by subreddit: %w", err)
		}
		totals.BySubreddit[subreddit] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leads by subreddit: %w", err)
	}
	return totals, nil
}
