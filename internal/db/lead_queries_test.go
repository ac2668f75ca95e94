package db

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"horse.fit/leadscout/internal/leads"
)

func newMockPool(t *testing.T) (*Pool, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("create sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	pool, err := NewPoolFromDB(sqlDB)
	if err != nil {
		t.Fatalf("wrap sqlmock: %v", err)
	}
	return pool, mock
}

func leadRowColumns() []string {
	return []string{
		"id", "reddit_id", "title", "content", "subreddit", "author", "url",
		"reddit_created_at", "summary", "score", "opportunity", "draft_reply", "language", "created_at",
	}
}

func TestExistingRedditIDs_SingleBatchedQuery(t *testing.T) {
	t.Parallel()

	pool, mock := newMockPool(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT reddit_id FROM reddit_leads WHERE reddit_id IN ($1, $2, $3)")).
		WithArgs("a", "b", "c").
		WillReturnRows(sqlmock.NewRows([]string{"reddit_id"}).AddRow("b"))

	existing, err := pool.ExistingRedditIDs(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("existing ids: %v", err)
	}
	if len(existing) != 1 {
		t.Fatalf("expected one existing id, got %d", len(existing))
	}
	if _, ok := existing["b"]; !ok {
		t.Fatalf("expected b to be reported as existing")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestExistingRedditIDs_EmptyInputSkipsQuery(t *testing.T) {
	t.Parallel()

	pool, mock := newMockPool(t)

	existing, err := pool.ExistingRedditIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("existing ids: %v", err)
	}
	if len(existing) != 0 {
		t.Fatalf("expected empty result")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected queries: %v", err)
	}
}

func TestInsertLead_ReportsInsertedAndConflict(t *testing.T) {
	t.Parallel()

	pool, mock := newMockPool(t)
	lead := leads.Lead{
		RedditID:        "t3_1",
		Title:           "Pension help",
		Subreddit:       "UKPersonalFinance",
		RedditCreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Score:           14,
	}

	insertQ := regexp.QuoteMeta("ON CONFLICT (reddit_id) DO NOTHING")
	mock.ExpectExec(insertQ).
		WithArgs("t3_1", "Pension help", "", "UKPersonalFinance", "", "", sqlmock.AnyArg(), "", 10, "", "", "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertQ).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := pool.InsertLead(context.Background(), lead)
	if err != nil {
		t.Fatalf("insert lead: %v", err)
	}
	if !inserted {
		t.Fatalf("expected first insert to report inserted")
	}

	inserted, err = pool.InsertLead(context.Background(), lead)
	if err != nil {
		t.Fatalf("insert duplicate lead: %v", err)
	}
	if inserted {
		t.Fatalf("expected duplicate insert to be ignored")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListLeads_OrdersByStorageTimeAndFilters(t *testing.T) {
	t.Parallel()

	pool, mock := newMockPool(t)
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)FROM reddit_leads\s+WHERE LOWER\(subreddit\) = LOWER\(\$1\) AND score >= \$2\s+ORDER BY created_at DESC, id DESC`).
		WithArgs("investing", 6).
		WillReturnRows(sqlmock.NewRows(leadRowColumns()).
			AddRow(2, "t3_2", "B", "", "investing", "u2", "https://reddit.com/b", created, "s", 8, "o", "r", "en", created.Add(time.Minute)).
			AddRow(1, "t3_1", "A", "", "investing", "u1", "https://reddit.com/a", created, "s", 6, "o", "r", "", created))

	got, err := pool.ListLeads(context.Background(), LeadFilter{Subreddit: "investing", MinScore: 6})
	if err != nil {
		t.Fatalf("list leads: %v", err)
	}
	if len(got) != 2 || got[0].RedditID != "t3_2" || got[1].RedditID != "t3_1" {
		t.Fatalf("unexpected leads: %+v", got)
	}
	if got[0].Language != "en" {
		t.Fatalf("unexpected language: %q", got[0].Language)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListLeadsByRedditIDs_ScoreOrder(t *testing.T) {
	t.Parallel()

	pool, mock := newMockPool(t)
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)WHERE reddit_id IN \(\$1, \$2\)\s+ORDER BY score DESC`).
		WithArgs("x", "y").
		WillReturnRows(sqlmock.NewRows(leadRowColumns()).
			AddRow(3, "y", "Y", "", "investing", "u", "", created, "s", 9, "o", "r", "", created))

	got, err := pool.ListLeadsByRedditIDs(context.Background(), []string{"x", "y"})
	if err != nil {
		t.Fatalf("list by ids: %v", err)
	}
	if len(got) != 1 || got[0].Score != 9 {
		t.Fatalf("unexpected leads: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteLead_ReportsMissing(t *testing.T) {
	t.Parallel()

	pool, mock := newMockPool(t)
	deleteQ := regexp.QuoteMeta("DELETE FROM reddit_leads WHERE reddit_id = $1")
	mock.ExpectExec(deleteQ).WithArgs("t3_1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(deleteQ).WithArgs("t3_404").WillReturnResult(sqlmock.NewResult(0, 0))

	found, err := pool.DeleteLead(context.Background(), "t3_1")
	if err != nil || !found {
		t.Fatalf("expected delete to find row, found=%v err=%v", found, err)
	}
	found, err = pool.DeleteLead(context.Background(), "t3_404")
	if err != nil || found {
		t.Fatalf("expected delete to miss row, found=%v err=%v", found, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteAllLeads(t *testing.T) {
	t.Parallel()

	pool, mock := newMockPool(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM reddit_leads")).WillReturnResult(sqlmock.NewResult(0, 7))

	deleted, err := pool.DeleteAllLeads(context.Background())
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if deleted != 7 {
		t.Fatalf("expected 7 deleted, got %d", deleted)
	}
}

func TestInPlaceholders(t *testing.T) {
	t.Parallel()

	got, args := inPlaceholders([]string{"a", "b"}, 3)
	if got != "$3, $4" {
		t.Fatalf("unexpected placeholders: %q", got)
	}
	if len(args) != 2 || args[0] != "a" || args[1] != "b" {
		t.Fatalf("unexpected args: %#v", args)
	}
}
