package httpapi

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"horse.fit/leadscout/internal/db"
	"horse.fit/leadscout/internal/pipeline"
	"horse.fit/leadscout/internal/progress"
	payloadschema "horse.fit/leadscout/schema"
)

func (s *Server) handleIngest(c echo.Context) error {
	if s.ingestor == nil {
		return internalError(c, "Ingestion is not configured")
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxJSONBodyBytes))
	if err != nil {
		return failValidation(c, map[string]string{"body": "could not be read"})
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	parsed, err := payloadschema.ValidateIngestRequest(body)
	if err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}

	req := s.buildIngestRequest(c.Request().Context(), parsed)

	resp := c.Response()
	header := resp.Header()
	header.Set(echo.HeaderContentType, "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	resp.WriteHeader(http.StatusOK)

	// A run outlives the server write timeout.
	rc := http.NewResponseController(resp)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.logger.Debug().Err(err).Msg("clear write deadline failed")
	}

	stream := progress.NewStream(0)
	// The run finishes even if the client goes away.
	runCtx := context.WithoutCancel(c.Request().Context())
	go func() {
		defer stream.Close()
		_, _ = s.ingestor.Run(runCtx, req, stream)
	}()

	clientGone := false
	for ev := range stream.Events() {
		if clientGone {
			continue
		}
		if err := progress.Encode(resp, ev); err != nil {
			clientGone = true
			s.logger.Info().Err(err).Msg("ingest stream client disconnected, run continues")
			continue
		}
		if err := rc.Flush(); err != nil {
			clientGone = true
			s.logger.Info().Err(err).Msg("ingest stream flush failed, run continues")
		}
	}
	return nil
}

// buildIngestRequest fills omitted fields from defaults and the stored prompt.
func (s *Server) buildIngestRequest(ctx context.Context, parsed *payloadschema.IngestRequest) pipeline.Request {
	req := pipeline.Request{
		TimeRangeHours:      pipeline.DefaultTimeRangeHours,
		PostCount:           pipeline.DefaultPostCount,
		InstructionTemplate: parsed.InstructionTemplate,
		From:                parsed.From,
		To:                  parsed.To,
	}
	if parsed.TimeRangeHours != nil {
		req.TimeRangeHours = *parsed.TimeRangeHours
	}
	if parsed.PostCount != nil {
		req.PostCount = *parsed.PostCount
	}

	if strings.TrimSpace(req.InstructionTemplate) == "" {
		if store := s.dataStore(); store != nil {
			stored, err := store.GetStringSetting(ctx, db.SettingAIPrompt)
			if err != nil {
				s.logger.Warn().Err(err).Msg("load stored prompt failed, using default")
			}
			req.InstructionTemplate = stored
		}
	}
	return req
}
