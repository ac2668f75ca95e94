package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Known setting keys used by the dashboard and the scheduler.
const (
	SettingAIPrompt         = "ai_prompt"
	SettingAIPromptFeedback = "ai_prompt_feedback"
	SettingSearchParameters = "search_parameters"
)

// SearchParameters is the value stored under SettingSearchParameters.
type SearchParameters struct {
	TimeRangeHours int `json:"timeRangeHours"`
	PostCount      int `json:"postCount"`
}

// GetSetting returns the raw JSON value for key, or ErrNoRows when unset.
func (p *Pool) GetSetting(ctx context.Context, key string) (*SettingRecord, error) {
	const q = `
SELECT key, value, updated_at
FROM settings
WHERE key = $1
`

	var (
		record SettingRecord
		raw    []byte
	)
	if err := p.QueryRow(ctx, q, strings.TrimSpace(key)).Scan(&record.Key, &raw, &record.UpdatedAt); err != nil {
		return nil, err
	}
	record.Value = json.RawMessage(raw)
	record.UpdatedAt = record.UpdatedAt.UTC()
	return &record, nil
}

// UpsertSetting stores value under key, replacing any previous value.
func (p *Pool) UpsertSetting(ctx context.Context, key string, value json.RawMessage, now time.Time) (*SettingRecord, error) {
	trimmedKey := strings.TrimSpace(key)
	if trimmedKey == "" {
		return nil, fmt.Errorf("setting key is required")
	}
	if len(value) == 0 || !json.Valid(value) {
		return nil, fmt.Errorf("setting %s value must be valid JSON", trimmedKey)
	}

	const q = `
INSERT INTO settings (key, value, updated_at)
VALUES ($1, $2::jsonb, $3)
ON CONFLICT (key)
DO UPDATE SET
	value = EXCLUDED.value,
	updated_at = EXCLUDED.updated_at
RETURNING key, value, updated_at
`

	var (
		record SettingRecord
		raw    []byte
	)
	if err := p.QueryRow(ctx, q, trimmedKey, string(value), now.UTC()).Scan(&record.Key, &raw, &record.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert setting %s: %w", trimmedKey, err)
	}
	record.Value = json.RawMessage(raw)
	record.UpdatedAt = record.UpdatedAt.UTC()
	return &record, nil
}

// GetStringSetting decodes a string-valued setting. Unset keys return "".
func (p *Pool) GetStringSetting(ctx context.Context, key string) (string, error) {
	record, err := p.GetSetting(ctx, key)
	if err != nil {
		if IsNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("load setting %s: %w", key, err)
	}
	var value string
	if err := json.Unmarshal(record.Value, &value); err != nil {
		return "", fmt.Errorf("decode setting %s: %w", key, err)
	}
	return value, nil
}

// GetSearchParameters decodes SettingSearchParameters. Unset returns nil.
func (p *Pool) GetSearchParameters(ctx context.Context) (*SearchParameters, error) {
	record, err := p.GetSetting(ctx, SettingSearchParameters)
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load search parameters: %w", err)
	}
	var params SearchParameters
	if err := json.Unmarshal(record.Value, &params); err != nil {
		return nil, fmt.Errorf("decode search parameters: %w", err)
	}
	return &params, nil
}
