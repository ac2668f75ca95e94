package db

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestGetSetting_NotFound(t *testing.T) {
	t.Parallel()

	pool, mock := newMockPool(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM settings")).
		WithArgs("ai_prompt").
		WillReturnRows(sqlmock.NewRows([]string{"key", "value", "updated_at"}))

	_, err := pool.GetSetting(context.Background(), "ai_prompt")
	if !IsNoRows(err) {
		t.Fatalf("expected no rows error, got %v", err)
	}
}

func TestGetStringSetting_UnsetIsEmpty(t *testing.T) {
	t.Parallel()

	pool, mock := newMockPool(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM settings")).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value", "updated_at"}))

	value, err := pool.GetStringSetting(context.Background(), SettingAIPrompt)
	if err != nil {
		t.Fatalf("get string setting: %v", err)
	}
	if value != "" {
		t.Fatalf("expected empty value, got %q", value)
	}
}

func TestUpsertSetting_RoundTrip(t *testing.T) {
	t.Parallel()

	pool, mock := newMockPool(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	value := json.RawMessage(`{"timeRangeHours":48,"postCount":100}`)

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (key)")).
		WithArgs(SettingSearchParameters, string(value), now).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value", "updated_at"}).
			AddRow(SettingSearchParameters, []byte(value), now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM settings")).
		WithArgs(SettingSearchParameters).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value", "updated_at"}).
			AddRow(SettingSearchParameters, []byte(value), now))

	record, err := pool.UpsertSetting(context.Background(), SettingSearchParameters, value, now)
	if err != nil {
		t.Fatalf("upsert setting: %v", err)
	}
	if record.Key != SettingSearchParameters {
		t.Fatalf("unexpected key %q", record.Key)
	}

	params, err := pool.GetSearchParameters(context.Background())
	if err != nil {
		t.Fatalf("get search parameters: %v", err)
	}
	if params == nil || params.TimeRangeHours != 48 || params.PostCount != 100 {
		t.Fatalf("unexpected params: %+v", params)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpsertSetting_RejectsInvalidJSON(t *testing.T) {
	t.Parallel()

	pool, _ := newMockPool(t)
	if _, err := pool.UpsertSetting(context.Background(), "k", json.RawMessage(`{bad`), time.Now()); err == nil {
		t.Fatalf("expected invalid JSON to be rejected")
	}
	if _, err := pool.UpsertSetting(context.Background(), " ", json.RawMessage(`1`), time.Now()); err == nil {
		t.Fatalf("expected blank key to be rejected")
	}
}

func TestNormalizeBucket(t *testing.T) {
	t.Parallel()

	for raw, want := range map[string]string{"": BucketDay, "Week": BucketWeek, " month ": BucketMonth} {
		got, err := NormalizeBucket(raw)
		if err != nil || got != want {
			t.Fatalf("bucket %q: got %q err %v", raw, got, err)
		}
	}
	if _, err := NormalizeBucket("year"); err == nil {
		t.Fatalf("expected unsupported bucket to fail")
	}
}
