// Package storetest opens an in-memory SQLite store with the production schema
// translated to SQLite types.
package storetest

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/m3rciful/surveybot/internal/store"
)

const schema = `
CREATE TABLE users (
    user_id          INTEGER PRIMARY KEY,
    username         TEXT NOT NULL DEFAULT '',
    first_name       TEXT NOT NULL DEFAULT '',
    last_name        TEXT NOT NULL DEFAULT '',
    first_seen       TIMESTAMP NOT NULL,
    last_activity    TIMESTAMP NOT NULL,
    survey_completed BOOLEAN NOT NULL DEFAULT FALSE,
    active_days      INTEGER NOT NULL DEFAULT 0,
    last_active_date DATE
);

CREATE TABLE survey_responses (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id              INTEGER NOT NULL REFERENCES users (user_id) ON DELETE CASCADE,
    region               TEXT,
    has_business         TEXT,
    is_under_25          TEXT,
    has_experience       TEXT,
    official_income      TEXT,
    work_plan            TEXT,
    micro_result         TEXT,
    subsidy_interest     TEXT,
    desired_outcome      TEXT,
    importance_level     TEXT,
    investment_readiness TEXT,
    completed            BOOLEAN NOT NULL DEFAULT FALSE,
    created_at           TIMESTAMP NOT NULL,
    completed_at         TIMESTAMP
);

CREATE UNIQUE INDEX survey_responses_one_open_idx ON survey_responses (user_id) WHERE NOT completed;

CREATE TABLE activity_buckets (
    bucket_date     DATE PRIMARY KEY,
    daily_users     INTEGER NOT NULL DEFAULT 0,
    weekly_users    INTEGER NOT NULL DEFAULT 0,
    monthly_users   INTEGER NOT NULL DEFAULT 0,
    daily_surveys   INTEGER NOT NULL DEFAULT 0,
    weekly_surveys  INTEGER NOT NULL DEFAULT 0,
    monthly_surveys INTEGER NOT NULL DEFAULT 0,
    updated_at      TIMESTAMP NOT NULL
);

CREATE TABLE localized_text (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    key        TEXT NOT NULL,
    category   TEXT NOT NULL,
    language   TEXT NOT NULL DEFAULT 'ru',
    text       TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    UNIQUE (key, category, language)
);
`

var seq atomic.Int64

// Open returns a Store backed by a fresh in-memory database closed on test cleanup.
func Open(t testing.TB) *store.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:storetest%d?mode=memory&cache=shared&_foreign_keys=on", seq.Add(1))
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		t.Fatalf("apply schema: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return store.New(db)
}
