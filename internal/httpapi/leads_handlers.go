package httpapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"horse.fit/leadscout/internal/db"
	"horse.fit/leadscout/internal/leads"
)

func (s *Server) handleListLeads(c echo.Context) error {
	store := s.dataStore()
	if store == nil {
		return internalError(c, "Failed to load leads")
	}

	minScore, err := parsePositiveInt(c.QueryParam("min_score"), 0, leads.MinScore, leads.MaxScore)
	if err != nil {
		return failValidation(c, map[string]string{"min_score": err.Error()})
	}

	filter := db.LeadFilter{
		Subreddit: strings.TrimSpace(c.QueryParam("subreddit")),
		MinScore:  minScore,
	}
	rows, err := store.ListLeads(c.Request().Context(), filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("query leads failed")
		return internalError(c, "Failed to load leads")
	}

	return success(c, map[string]any{
		"items": rows,
		"count": len(rows),
		"filters": map[string]any{
			"subreddit": filter.Subreddit,
			"min_score": filter.MinScore,
		},
	})
}

func (s *Server) handleDeleteLead(c echo.Context) error {
	store := s.dataStore()
	if store == nil {
		return internalError(c, "Failed to delete lead")
	}

	redditID := strings.TrimSpace(c.Param("reddit_id"))
	if redditID == "" {
		return failValidation(c, map[string]string{"reddit_id": "is required"})
	}

	deleted, err := store.DeleteLead(c.Request().Context(), redditID)
	if err != nil {
		s.logger.Error().Err(err).Str("reddit_id", redditID).Msg("delete lead failed")
		return internalError(c, "Failed to delete lead")
	}
	if !deleted {
		return failNotFound(c, "Lead not found")
	}

	s.logger.Info().Str("reddit_id", redditID).Msg("lead deleted")
	return success(c, map[string]any{
		"reddit_id": redditID,
		"deleted":   true,
	})
}

func (s *Server) handleDeleteAllLeads(c echo.Context) error {
	store := s.dataStore()
	if store == nil {
		return internalError(c, "Failed to delete leads")
	}

	deleted, err := store.DeleteAllLeads(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("delete all leads failed")
		return internalError(c, "Failed to delete leads")
	}

	s.logger.Warn().Int64("deleted", deleted).Msg("all leads deleted")
	return success(c, map[string]any{
		"deleted": deleted,
	})
}
