// Package activity maintains daily activity buckets and serves the admin
// statistics read model.
package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/surveybot/core/logger"
	"github.com/m3rciful/surveybot/internal/store"
)

// Trailing windows in calendar days, the bucket date included.
const (
	DailyWindow   = 1
	WeeklyWindow  = 7
	MonthlyWindow = 30
)

// Aggregator recomputes activity buckets.
type Aggregator struct {
	st *store.Store
}

// New returns an Aggregator over st.
func New(st *store.Store) *Aggregator {
	return &Aggregator{st: st}
}

// WindowStart returns the start of the window of days calendar days ending on at's UTC date.
func WindowStart(at time.Time, days int) time.Time {
	d := at.UTC()
	midnight := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return midnight.AddDate(0, 0, -(days - 1))
}

// Record recomputes the bucket for at's UTC date inside tx.
func (a *Aggregator) Record(ctx context.Context, tx *store.Tx, at time.Time) error {
	b := store.Bucket{Date: at.UTC(), UpdatedAt: at}
	windows := []struct {
		days    int
		users   *int
		surveys *int
	}{
		{DailyWindow, &b.DailyUsers, &b.DailySurveys},
		{WeeklyWindow, &b.WeeklyUsers, &b.WeeklySurveys},
		{MonthlyWindow, &b.MonthlyUsers, &b.MonthlySurveys},
	}
	for _, w := range windows {
		since := WindowStart(at, w.days)
		n, err := tx.CountActiveUsersSince(ctx, since)
		if err != nil {
			return err
		}
		*w.users = n
		n, err = tx.CountCompletedSince(ctx, since)
		if err != nil {
			return err
		}
		*w.surveys = n
	}
	if err := tx.UpsertBucket(ctx, b); err != nil {
		return err
	}
	logger.SVCActivity.Debug("bucket updated",
		slog.String("event", "activity.record"),
		slog.String("bucket_date", b.Date.Format(time.DateOnly)),
		slog.Int("daily_users", b.DailyUsers),
		slog.Int("weekly_users", b.WeeklyUsers),
		slog.Int("monthly_users", b.MonthlyUsers),
		slog.Int("daily_surveys", b.DailySurveys),
		slog.Int("weekly_surveys", b.WeeklySurveys),
		slog.Int("monthly_surveys", b.MonthlySurveys),
	)
	return nil
}

// Window holds new users and completed surveys within one trailing window.
type Window struct {
	Days      int
	NewUsers  int
	Completed int
}

// Report is the admin statistics read model.
type Report struct {
	At      time.Time
	Totals  store.Totals
	Windows []Window
	// Latest is nil before the first bucket is written.
	Latest *store.Bucket
}

// Report builds statistics as of at.
func (a *Aggregator) Report(ctx context.Context, at time.Time) (*Report, error) {
	totals, err := a.st.Totals(ctx)
	if err != nil {
		return nil, fmt.Errorf("report totals: %w", err)
	}
	r := &Report{At: at, Totals: totals}
	for _, days := range []int{DailyWindow, WeeklyWindow, MonthlyWindow} {
		since := WindowStart(at, days)
		newUsers, err := a.st.CountNewUsersSince(ctx, since)
		if err != nil {
			return nil, err
		}
		completed, err := a.st.CountCompletedSince(ctx, since)
		if err != nil {
			return nil, err
		}
		r.Windows = append(r.Windows, Window{Days: days, NewUsers: newUsers, Completed: completed})
	}
	latest, err := a.st.LatestBucket(ctx, at)
	switch {
	case err == nil:
		r.Latest = latest
	case errors.Is(err, store.ErrNotFound):
	default:
		return nil, err
	}
	logger.SVCActivity.Info("report built",
		slog.String("event", "activity.report"),
		slog.Int("users", totals.Users),
		slog.Int("completed_surveys", totals.CompletedSurveys),
	)
	return r, nil
}

// Touch stamps user activity and refreshes today's bucket in one transaction.
func (a *Aggregator) Touch(ctx context.Context, userID int64, at time.Time) error {
	return a.st.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.TouchUser(ctx, userID, at); err != nil {
			return err
		}
		return a.Record(ctx, tx, at)
	})
}
