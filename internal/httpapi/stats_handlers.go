package httpapi

import (
	"time"

	"github.com/labstack/echo/v4"

	"horse.fit/leadscout/internal/db"
	"horse.fit/leadscout/internal/globaltime"
)

const defaultTrendDays = 30

func (s *Server) handleStats(c echo.Context) error {
	store := s.dataStore()
	if store == nil {
		return internalError(c, "Failed to load stats")
	}

	totals, err := store.QueryLeadTotals(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("query lead totals failed")
		return internalError(c, "Failed to load stats")
	}
	return success(c, totals)
}

func (s *Server) handleTrend(c echo.Context) error {
	store := s.dataStore()
	if store == nil {
		return internalError(c, "Failed to load trend")
	}

	bucket, err := db.NormalizeBucket(c.QueryParam("bucket"))
	if err != nil {
		return failValidation(c, map[string]string{"bucket": err.Error()})
	}
	from, err := parseTimeFilter(c.QueryParam("from"), false)
	if err != nil {
		return failValidation(c, map[string]string{"from": "must be RFC3339 or YYYY-MM-DD"})
	}
	to, err := parseTimeFilter(c.QueryParam("to"), true)
	if err != nil {
		return failValidation(c, map[string]string{"to": "must be RFC3339 or YYYY-MM-DD"})
	}

	now := globaltime.UTC()
	if to == nil {
		to = &now
	}
	if from == nil {
		start := to.Add(-defaultTrendDays * 24 * time.Hour)
		from = &start
	}
	if !from.Before(*to) {
		return failValidation(c, map[string]string{"time_range": "from must be before to"})
	}

	items, err := store.LeadTrend(c.Request().Context(), bucket, *from, *to)
	if err != nil {
		s.logger.Error().Err(err).Str("bucket", bucket).Msg("query lead trend failed")
		return internalError(c, "Failed to load trend")
	}

	return success(c, map[string]any{
		"items":  items,
		"bucket": bucket,
		"from":   from,
		"to":     to,
	})
}
