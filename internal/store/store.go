// Package store persists users, survey responses, activity buckets and
// localized texts. Every mutation runs inside a transaction obtained from
// Store.WithTx; queries are written with '?' placeholders and rebound for the
// active driver.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/surveybot/core/database"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrUnknownField is returned for answer columns outside AnswerFields.
	ErrUnknownField = errors.New("store: unknown answer field")
)

// AnswerFields lists the answer columns of survey_responses in survey order.
var AnswerFields = []string{
	"region",
	"has_business",
	"is_under_25",
	"has_experience",
	"official_income",
	"work_plan",
	"micro_result",
	"subsidy_interest",
	"desired_outcome",
	"importance_level",
	"investment_readiness",
}

const (
	userColumns     = "user_id, username, first_name, last_name, first_seen, last_activity, survey_completed, active_days, last_active_date"
	responseColumns = "id, user_id, region, has_business, is_under_25, has_experience, official_income, work_plan, micro_result, subsidy_interest, desired_outcome, importance_level, investment_readiness, completed, created_at, completed_at"
	bucketColumns   = "bucket_date, daily_users, weekly_users, monthly_users, daily_surveys, weekly_surveys, monthly_surveys, updated_at"
	textColumns     = "key, category, language, text, updated_at"

	dateLayout = "2006-01-02"
)

// IsAnswerField reports whether name is a writable answer column.
func IsAnswerField(name string) bool {
	return slices.Contains(AnswerFields, name)
}

// Store wraps the database handle.
type Store struct {
	db *sqlx.DB
}

// New returns a Store over db.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle.
func (s *Store) DB() *sqlx.DB { return s.db }

// Tx is the transactional view handed to WithTx callbacks.
type Tx struct {
	tx *sqlx.Tx
}

// WithTx runs fn in a transaction, committing on nil and rolling back on
// error or panic.
func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) error {
	return database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(&Tx{tx: tx})
	})
}

func (t *Tx) get(ctx context.Context, dst any, query string, args ...any) error {
	return t.tx.GetContext(ctx, dst, t.tx.Rebind(query), args...)
}

func (t *Tx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.tx.Rebind(query), args...)
}

func (s *Store) get(ctx context.Context, dst any, query string, args ...any) error {
	return s.db.GetContext(ctx, dst, s.db.Rebind(query), args...)
}

func (s *Store) sel(ctx context.Context, dst any, query string, args ...any) error {
	return s.db.SelectContext(ctx, dst, s.db.Rebind(query), args...)
}

func utc(at time.Time) time.Time {
	return at.UTC().Truncate(time.Microsecond)
}

func day(at time.Time) string {
	return at.UTC().Format(dateLayout)
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// GetOrCreateUser runs Tx.GetOrCreateUser in its own transaction.
func (s *Store) GetOrCreateUser(ctx context.Context, p Profile, at time.Time) (*User, bool, error) {
	var (
		u       *User
		created bool
	)
	err := s.WithTx(ctx, func(tx *Tx) error {
		var err error
		u, created, err = tx.GetOrCreateUser(ctx, p, at)
		return err
	})
	return u, created, err
}

// SaveAnswerField runs Tx.SaveAnswerField in its own transaction.
func (s *Store) SaveAnswerField(ctx context.Context, userID int64, field, value string, at time.Time) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		return tx.SaveAnswerField(ctx, userID, field, value, at)
	})
}

// FinalizeOpenResponse runs Tx.FinalizeOpenResponse in its own transaction.
func (s *Store) FinalizeOpenResponse(ctx context.Context, userID int64, at time.Time) (*SurveyResponse, error) {
	var r *SurveyResponse
	err := s.WithTx(ctx, func(tx *Tx) error {
		var err error
		r, err = tx.FinalizeOpenResponse(ctx, userID, at)
		return err
	})
	return r, err
}

// LatestCompletedResponse runs Tx.LatestCompletedResponse in its own transaction.
func (s *Store) LatestCompletedResponse(ctx context.Context, userID int64) (*SurveyResponse, error) {
	var r *SurveyResponse
	err := s.WithTx(ctx, func(tx *Tx) error {
		var err error
		r, err = tx.LatestCompletedResponse(ctx, userID)
		return err
	})
	return r, err
}
