package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"horse.fit/leadscout/internal/auth"
	"horse.fit/leadscout/internal/db"
	"horse.fit/leadscout/internal/globaltime"
	"horse.fit/leadscout/internal/leads"
	"horse.fit/leadscout/internal/pipeline"
	"horse.fit/leadscout/internal/scoring"
)

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// AllowedOrigins lists CORS origins; empty allows any origin.
	AllowedOrigins []string
	// Credentials enables HTTP Basic auth on /api when a hash is set.
	Credentials auth.DashboardCredentials
	// Gatherer serves /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
	// Registerer receives the HTTP request metrics; nil disables them.
	Registerer prometheus.Registerer
}

// Ingestor runs one ingestion and reports progress to rep.
type Ingestor interface {
	Run(ctx context.Context, req pipeline.Request, rep pipeline.Reporter) (*pipeline.Summary, error)
}

// PromptRefiner suggests an improved instruction template.
type PromptRefiner interface {
	RefinePrompt(ctx context.Context, currentPrompt, feedback string) (*scoring.Refinement, error)
}

type dataStore interface {
	Ping(ctx context.Context) error
	ListLeads(ctx context.Context, filter db.LeadFilter) ([]leads.Lead, error)
	DeleteLead(ctx context.Context, redditID string) (bool, error)
	DeleteAllLeads(ctx context.Context) (int64, error)
	GetSetting(ctx context.Context, key string) (*db.SettingRecord, error)
	UpsertSetting(ctx context.Context, key string, value json.RawMessage, now time.Time) (*db.SettingRecord, error)
	GetStringSetting(ctx context.Context, key string) (string, error)
	LeadTrend(ctx context.Context, bucket string, from, to time.Time) ([]db.TrendBucket, error)
	QueryLeadTotals(ctx context.Context) (*db.LeadTotals, error)
}

type Server struct {
	pool     *db.Pool
	store    dataStore
	ingestor Ingestor
	refiner  PromptRefiner
	logger   zerolog.Logger
	opts     Options
}

func NewServer(pool *db.Pool, ingestor Ingestor, refiner PromptRefiner, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8090
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return &Server{
		pool:     pool,
		ingestor: ingestor,
		refiner:  refiner,
		logger:   logger,
		opts: Options{
			Host:            host,
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
			AllowedOrigins:  opts.AllowedOrigins,
			Credentials:     opts.Credentials,
			Gatherer:        gatherer,
			Registerer:      opts.Registerer,
		},
	}
}

func (s *Server) dataStore() dataStore {
	if s == nil {
		return nil
	}
	if s.store != nil {
		return s.store
	}
	if s.pool == nil {
		return nil
	}
	return s.pool
}

// Handler builds the echo instance with every route mounted.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	allowOrigins := s.opts.AllowedOrigins
	if len(allowOrigins) == 0 {
		allowOrigins = []string{"*"}
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       3600,
	}))
	if s.opts.Registerer != nil {
		e.Use(newRequestMetrics(s.opts.Registerer).middleware())
	}
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))

	api := e.Group("/api/v1")
	if s.opts.Credentials.Enabled() {
		api.Use(s.requireDashboardAuth())
	}
	api.GET("/health", s.handleHealth)
	api.POST("/ingest", s.handleIngest)
	api.GET("/leads", s.handleListLeads)
	api.DELETE("/leads", s.handleDeleteAllLeads)
	api.DELETE("/leads/:reddit_id", s.handleDeleteLead)
	api.GET("/settings", s.handleGetSetting)
	api.POST("/settings", s.handlePutSetting)
	api.POST("/prompt/analyze", s.handleAnalyzePrompt)
	api.GET("/stats", s.handleStats)
	api.GET("/stats/trend", s.handleTrend)

	return e
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.dataStore() == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.Handler()

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Bool("auth", s.opts.Credentials.Enabled()).Msg("leadscout api server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("leadscout api server stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	isAPI := strings.HasPrefix(c.Request().URL.Path, "/api/")
	if isAPI {
		if status >= 500 {
			_ = internalError(c, "Internal server error")
			return
		}
		_ = fail(c, status, message, nil)
		return
	}

	_ = c.String(status, message)
}

func (s *Server) handleHealth(c echo.Context) error {
	store := s.dataStore()
	database := "ok"
	if store == nil {
		database = "unavailable"
	} else if err := store.Ping(c.Request().Context()); err != nil {
		s.logger.Warn().Err(err).Msg("health check database ping failed")
		database = "unavailable"
	}

	payload := map[string]any{
		"service":  "leadscout",
		"time":     globaltime.UTC(),
		"database": database,
	}
	if database != "ok" {
		return fail(c, http.StatusServiceUnavailable, "Database unavailable", payload)
	}
	return success(c, payload)
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}

func parseTimeFilter(raw string, endOfDay bool) (*time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}

	if ts, err := time.Parse(time.RFC3339, trimmed); err == nil {
		utc := ts.UTC()
		return &utc, nil
	}

	if day, err := time.Parse("2006-01-02", trimmed); err == nil {
		utc := day.UTC()
		if endOfDay {
			utc = utc.Add(24 * time.Hour)
		}
		return &utc, nil
	}

	return nil, fmt.Errorf("invalid time format")
}
