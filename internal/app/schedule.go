package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"horse.fit/leadscout/internal/cli"
	"horse.fit/leadscout/internal/db"
	"horse.fit/leadscout/internal/logging"
	"horse.fit/leadscout/internal/pipeline"
	"horse.fit/leadscout/internal/progress"
)

const defaultCronSpec = "0 */6 * * *"

// cronLogger routes cron's own diagnostics through zerolog.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}

func runSchedule(args []string) int {
	fs := flag.NewFlagSet("schedule", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	spec := fs.String("cron", defaultCronSpec, "Cron expression (UTC, five fields)")
	runNow := fs.Bool("run-now", false, "Run once immediately before waiting for the first tick")
	runTimeout := fs.Duration("run-timeout", 30*time.Minute, "Timeout for a single scheduled run")
	metricsAddr := fs.String("metrics-addr", "", "Expose Prometheus metrics on this address (disabled when empty)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "schedule does not accept positional arguments")
		return 2
	}

	schedule, err := cron.ParseStandard(strings.TrimSpace(*spec))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid --cron: %v\n", err)
		return 2
	}
	if *runTimeout <= 0 {
		fmt.Fprintln(os.Stderr, "--run-timeout must be > 0")
		return 2
	}

	cfg, err := loadConfig(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbCtx, dbCancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.NewPool(dbCtx, cfg)
	dbCancel()
	if err != nil {
		logger.Error().Err(err).Msg("schedule failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	svc := newIngestService(cfg, pool, newScoringClient(cfg), reg, logger)

	if addr := strings.TrimSpace(*metricsAddr); addr != "" {
		metricsServer := &http.Server{
			Addr:              addr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Str("addr", addr).Msg("metrics listener stopped")
			}
		}()
		defer metricsServer.Close()
	}

	tick := func() {
		runCtx, cancel := context.WithTimeout(ctx, *runTimeout)
		defer cancel()
		runScheduledIngest(runCtx, svc, pool, logger)
	}

	scheduler := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLogger{logger: logger}),
		cron.WithChain(cron.Recover(cronLogger{logger: logger})),
	)
	// The skip wrapper is shared with --run-now so the two never overlap.
	job := cron.NewChain(cron.SkipIfStillRunning(cronLogger{logger: logger})).Then(cron.FuncJob(tick))
	scheduler.Schedule(schedule, job)

	logger.Info().
		Str("cron", *spec).
		Time("next_run", schedule.Next(time.Now().UTC())).
		Msg("schedule started")

	if *runNow {
		go job.Run()
	}

	scheduler.Start()
	<-ctx.Done()

	logger.Info().Msg("schedule stopping, waiting for the active run")
	<-scheduler.Stop().Done()
	return 0
}

// runScheduledIngest runs one ingestion using the stored dashboard settings.
func runScheduledIngest(ctx context.Context, svc *pipeline.Service, store settingsReader, logger zerolog.Logger) {
	req := applyStoredDefaults(ctx, store, pipeline.Request{
		TimeRangeHours: pipeline.DefaultTimeRangeHours,
		PostCount:      pipeline.DefaultPostCount,
	}, false, false, logger)

	summary, err := svc.Run(ctx, req, logReporter{logger: logger})
	if err != nil {
		logger.Error().Err(err).Msg("scheduled ingest failed")
		return
	}
	logger.Info().
		Str("run_id", summary.RunID).
		Int("total_posts", summary.TotalPosts).
		Int("new_posts", summary.NewPosts).
		Dur("duration", summary.Duration).
		Msg("scheduled ingest finished")
}

// logReporter turns progress events into debug log lines.
type logReporter struct {
	logger zerolog.Logger
}

func (r logReporter) Progress(message string, percent int) {
	r.logger.Debug().Int("percent", percent).Msg(message)
}

func (r logReporter) Complete(c progress.Complete) {
	r.logger.Debug().
		Int("total_posts", c.TotalPosts).
		Int("new_posts", c.NewPosts).
		Int("existing_posts", c.ExistingPosts).
		Msg("run complete")
}

func (r logReporter) Fail(message string) {
	r.logger.Warn().Str("reason", message).Msg("run failed")
}
