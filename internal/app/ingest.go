package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/leadscout/internal/cli"
	"horse.fit/leadscout/internal/db"
	"horse.fit/leadscout/internal/logging"
	"horse.fit/leadscout/internal/pipeline"
	"horse.fit/leadscout/internal/progress"
)

type runFlags struct {
	fs         *flag.FlagSet
	hours      *int
	posts      *int
	prompt     *string
	promptFile *string
	from       *string
	to         *string
}

func addRunFlags(fs *flag.FlagSet) *runFlags {
	return &runFlags{
		fs:         fs,
		hours:      fs.Int("hours", pipeline.DefaultTimeRangeHours, "Rolling window in hours (stored search_parameters apply when omitted)"),
		posts:      fs.Int("posts", pipeline.DefaultPostCount, "Posts to fetch; -1 means the maximum (stored search_parameters apply when omitted)"),
		prompt:     fs.String("prompt", "", "Instruction template (stored ai_prompt applies when empty)"),
		promptFile: fs.String("prompt-file", "", "Read the instruction template from a file"),
		from:       fs.String("from", "", "Explicit window start (RFC3339 or YYYY-MM-DD)"),
		to:         fs.String("to", "", "Explicit window end (RFC3339 or YYYY-MM-DD)"),
	}
}

// request validates the flags and builds the pipeline request they describe.
func (f *runFlags) request() (pipeline.Request, error) {
	if *f.hours < 1 || *f.hours > 8760 {
		return pipeline.Request{}, fmt.Errorf("--hours must be between 1 and 8760")
	}
	if *f.posts < pipeline.UnlimitedPostCount {
		return pipeline.Request{}, fmt.Errorf("--posts must be -1 or greater")
	}

	prompt := *f.prompt
	if path := strings.TrimSpace(*f.promptFile); path != "" {
		if strings.TrimSpace(prompt) != "" {
			return pipeline.Request{}, fmt.Errorf("--prompt and --prompt-file are mutually exclusive")
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return pipeline.Request{}, fmt.Errorf("read --prompt-file: %w", err)
		}
		prompt = string(raw)
	}

	from, err := parseInstantFlag(*f.from, false)
	if err != nil {
		return pipeline.Request{}, fmt.Errorf("invalid --from: %w", err)
	}
	to, err := parseInstantFlag(*f.to, true)
	if err != nil {
		return pipeline.Request{}, fmt.Errorf("invalid --to: %w", err)
	}
	if from != nil && to != nil && !from.Before(*to) {
		return pipeline.Request{}, fmt.Errorf("--from must be before --to")
	}

	return pipeline.Request{
		TimeRangeHours:      *f.hours,
		PostCount:           *f.posts,
		InstructionTemplate: prompt,
		From:                from,
		To:                  to,
	}, nil
}

type settingsReader interface {
	GetStringSetting(ctx context.Context, key string) (string, error)
	GetSearchParameters(ctx context.Context) (*db.SearchParameters, error)
}

// applyStoredDefaults fills the parts of req the caller did not choose from
// the dashboard settings.
func applyStoredDefaults(ctx context.Context, store settingsReader, req pipeline.Request, hoursSet, postsSet bool, logger zerolog.Logger) pipeline.Request {
	if strings.TrimSpace(req.InstructionTemplate) == "" {
		prompt, err := store.GetStringSetting(ctx, db.SettingAIPrompt)
		if err != nil {
			logger.Warn().Err(err).Msg("load stored prompt failed, using default")
		}
		req.InstructionTemplate = prompt
	}

	if hoursSet && postsSet {
		return req
	}
	params, err := store.GetSearchParameters(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("load stored search parameters failed, using flags")
		return req
	}
	if params == nil {
		return req
	}
	if !hoursSet && params.TimeRangeHours > 0 {
		req.TimeRangeHours = params.TimeRangeHours
	}
	if !postsSet && params.PostCount != 0 {
		req.PostCount = params.PostCount
	}
	return req
}

// runAndFollow runs svc and prints each event to out until the run ends.
func runAndFollow(ctx context.Context, svc *pipeline.Service, req pipeline.Request, out io.Writer) (*pipeline.Summary, error) {
	stream := progress.NewStream(0)
	done := make(chan struct{})

	var (
		summary *pipeline.Summary
		runErr  error
	)
	go func() {
		defer close(done)
		defer stream.Close()
		summary, runErr = svc.Run(ctx, req, stream)
	}()

	for ev := range stream.Events() {
		printEvent(out, ev)
	}
	<-done
	return summary, runErr
}

func printEvent(out io.Writer, ev progress.Event) {
	switch e := ev.(type) {
	case progress.Progress:
		fmt.Fprintf(out, "[%3d%%] %s\n", e.Percent, e.Message)
	case progress.Complete:
		fmt.Fprintf(out, "done: total=%d new=%d existing=%d\n", e.TotalPosts, e.NewPosts, e.ExistingPosts)
	case progress.Failure:
		fmt.Fprintf(out, "error: %s\n", e.Message)
	}
}

func runIngest(args []string) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	flags := addRunFlags(fs)
	timeout := fs.Duration("timeout", 30*time.Minute, "Overall run timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "ingest does not accept positional arguments")
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}
	req, err := flags.request()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	cfg, err := loadConfig(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger, err := logging.NewWithWriter(cfg.Environment, cfg.LogLevel, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("ingest command failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	req = applyStoredDefaults(ctx, pool, req, flagWasSet(fs, "hours"), flagWasSet(fs, "posts"), logger)
	svc := newIngestService(cfg, pool, newScoringClient(cfg), nil, logger)

	summary, err := runAndFollow(ctx, svc, req, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(summary); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	if err := writeTable(leadTableHeaders, leadTableRows(summary.Leads)); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render leads table: %v\n", err)
		return 1
	}
	fmt.Printf("\nrun=%s total=%d new=%d existing=%d scoring_failures=%d duration=%s\n",
		summary.RunID, summary.TotalPosts, summary.NewPosts, summary.ExistingPosts,
		summary.ScoringFailures, summary.Duration.Round(time.Millisecond))
	return 0
}
