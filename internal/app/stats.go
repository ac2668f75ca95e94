package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"horse.fit/leadscout/internal/cli"
	"horse.fit/leadscout/internal/db"
	"horse.fit/leadscout/internal/globaltime"
)

const defaultTrendDays = 30

func runStats(args []string) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")
	bucket := fs.String("bucket", db.BucketDay, "Trend bucket: day, week or month")
	fromRaw := fs.String("from", "", "Trend start (RFC3339 or YYYY-MM-DD, default 30 days ago)")
	toRaw := fs.String("to", "", "Trend end (RFC3339 or YYYY-MM-DD, default now)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "stats does not accept positional arguments")
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}
	normalizedBucket, err := db.NormalizeBucket(*bucket)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid --bucket: %v\n", err)
		return 2
	}
	from, to, err := resolveTrendWindow(*fromRaw, *toRaw, globaltime.UTC())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	ctx, cancel, pool, err := connectReadPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	totals, err := pool.QueryLeadTotals(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query lead totals: %v\n", err)
		return 1
	}
	trend, err := pool.LeadTrend(ctx, normalizedBucket, from, to)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query lead trend: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		payload := map[string]any{
			"totals": totals,
			"trend": map[string]any{
				"bucket":  normalizedBucket,
				"from":    formatUTCTimestamp(from),
				"to":      formatUTCTimestamp(to),
				"buckets": trend,
			},
		}
		if err := printJSON(payload); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	summaryRows := [][]string{
		{"leads", fmt.Sprintf("%d", totals.Leads)},
		{"average_score", fmt.Sprintf("%.2f", totals.AverageScore)},
		{"last_stored_at", formatUTCTimestampPtr(totals.LastStoredAt)},
	}
	if err := writeTable([]string{"metric", "value"}, summaryRows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render totals table: %v\n", err)
		return 1
	}

	fmt.Println()
	if err := writeTable([]string{"subreddit", "leads"}, subredditRows(totals.BySubreddit)); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render subreddit table: %v\n", err)
		return 1
	}

	fmt.Println()
	trendRows := make([][]string, 0, len(trend))
	for _, point := range trend {
		trendRows = append(trendRows, []string{
			formatUTCTimestamp(point.BucketStart),
			fmt.Sprintf("%d", point.Leads),
			fmt.Sprintf("%.2f", point.AverageScore),
			fmt.Sprintf("%d", point.HighScore),
		})
	}
	if err := writeTable([]string{normalizedBucket, "leads", "average_score", "high_score_leads"}, trendRows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render trend table: %v\n", err)
		return 1
	}
	return 0
}

// resolveTrendWindow applies the default window ending at now.
func resolveTrendWindow(fromRaw, toRaw string, now time.Time) (time.Time, time.Time, error) {
	from, err := parseInstantFlag(fromRaw, false)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --from: %w", err)
	}
	to, err := parseInstantFlag(toRaw, true)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --to: %w", err)
	}

	end := now.UTC()
	if to != nil {
		end = *to
	}
	start := end.AddDate(0, 0, -defaultTrendDays)
	if from != nil {
		start = *from
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("--from must be before --to")
	}
	return start, end, nil
}

func subredditRows(counts map[string]int64) [][]string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{"r/" + name, fmt.Sprintf("%d", counts[name])})
	}
	return rows
}
