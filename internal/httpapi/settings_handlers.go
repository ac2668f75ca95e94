package httpapi

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"horse.fit/leadscout/internal/db"
	"horse.fit/leadscout/internal/globaltime"
	"horse.fit/leadscout/internal/scoring"
)

const maxSettingKeyLength = 128

type settingResponse struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
}

type analyzePromptRequest struct {
	CurrentPrompt string `json:"currentPrompt"`
	Feedback      string `json:"feedback"`
}

func (s *Server) handleGetSetting(c echo.Context) error {
	store := s.dataStore()
	if store == nil {
		return internalError(c, "Failed to load setting")
	}

	key := strings.TrimSpace(c.QueryParam("key"))
	if key == "" {
		return failBadRequest(c, "Setting key is required")
	}

	record, err := store.GetSetting(c.Request().Context(), key)
	if err != nil {
		if errors.Is(err, db.ErrNoRows) {
			return success(c, settingResponse{Key: key, Value: json.RawMessage("null")})
		}
		s.logger.Error().Err(err).Str("key", key).Msg("query setting failed")
		return internalError(c, "Failed to load setting")
	}
	return success(c, buildSettingResponse(record))
}

func (s *Server) handlePutSetting(c echo.Context) error {
	store := s.dataStore()
	if store == nil {
		return internalError(c, "Failed to save setting")
	}

	var payload map[string]json.RawMessage
	if err := decodeJSONBody(c, &payload); err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}

	var key string
	if rawKey, exists := payload["key"]; exists {
		if err := json.Unmarshal(rawKey, &key); err != nil {
			return failValidation(c, map[string]string{"key": "must be a string"})
		}
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return failBadRequest(c, "Key and value are required")
	}
	if len(key) > maxSettingKeyLength {
		return failValidation(c, map[string]string{"key": "is too long"})
	}
	value, exists := payload["value"]
	if !exists {
		return failBadRequest(c, "Key and value are required")
	}
	if msg := ValidateKnownSetting(key, value); msg != "" {
		return failValidation(c, map[string]string{"value": msg})
	}

	record, err := store.UpsertSetting(c.Request().Context(), key, value, globaltime.UTC())
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("save setting failed")
		return internalError(c, "Failed to save setting")
	}
	return success(c, buildSettingResponse(record))
}

func (s *Server) handleAnalyzePrompt(c echo.Context) error {
	if s.refiner == nil {
		return internalError(c, "Prompt analysis is not configured")
	}

	var req analyzePromptRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}
	if strings.TrimSpace(req.Feedback) == "" {
		return failBadRequest(c, "Feedback is required")
	}

	currentPrompt := strings.TrimSpace(req.CurrentPrompt)
	if currentPrompt == "" {
		if store := s.dataStore(); store != nil {
			stored, err := store.GetStringSetting(c.Request().Context(), db.SettingAIPrompt)
			if err != nil {
				s.logger.Warn().Err(err).Msg("load stored prompt failed, using default")
			}
			currentPrompt = stored
		}
	}

	refinement, err := s.refiner.RefinePrompt(c.Request().Context(), currentPrompt, req.Feedback)
	if err != nil {
		if errors.Is(err, scoring.ErrFeedbackRequired) {
			return failBadRequest(c, "Feedback is required")
		}
		if errors.Is(err, scoring.ErrMissingAPIKey) {
			return internalError(c, scoring.MissingAPIKeyMessage)
		}
		s.logger.Error().Err(err).Msg("prompt analysis failed")
		return internalError(c, "Failed to analyze prompt")
	}
	return success(c, refinement)
}

// ValidateKnownSetting checks the shape of values stored under known keys and
// returns a message describing the problem, or "" when value is acceptable.
func ValidateKnownSetting(key string, value json.RawMessage) string {
	switch key {
	case db.SettingAIPrompt, db.SettingAIPromptFeedback:
		var text string
		if err := json.Unmarshal(value, &text); err != nil {
			return "must be a string"
		}
	case db.SettingSearchParameters:
		var params db.SearchParameters
		if err := json.Unmarshal(value, &params); err != nil {
			return "must be an object with timeRangeHours and postCount"
		}
		if params.TimeRangeHours < 0 || params.PostCount < -1 {
			return "timeRangeHours and postCount are out of range"
		}
	}
	return ""
}

func buildSettingResponse(record *db.SettingRecord) settingResponse {
	if record == nil {
		return settingResponse{Value: json.RawMessage("null")}
	}
	value := record.Value
	if len(value) == 0 {
		value = json.RawMessage("null")
	}
	updatedAt := record.UpdatedAt.UTC()
	return settingResponse{
		Key:       record.Key,
		Value:     value,
		UpdatedAt: &updatedAt,
	}
}
