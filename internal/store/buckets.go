package store

import (
	"context"
	"fmt"
	"time"
)

// UpsertBucket writes b, replacing the counters of an existing row for the same date.
func (t *Tx) UpsertBucket(ctx context.Context, b Bucket) error {
	_, err := t.exec(ctx, `
		INSERT INTO activity_buckets (`+bucketColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (bucket_date) DO UPDATE SET
			daily_users = excluded.daily_users,
			weekly_users = excluded.weekly_users,
			monthly_users = excluded.monthly_users,
			daily_surveys = excluded.daily_surveys,
			weekly_surveys = excluded.weekly_surveys,
			monthly_surveys = excluded.monthly_surveys,
			updated_at = excluded.updated_at`,
		day(b.Date), b.DailyUsers, b.WeeklyUsers, b.MonthlyUsers,
		b.DailySurveys, b.WeeklySurveys, b.MonthlySurveys, utc(b.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert bucket %s: %w", day(b.Date), err)
	}
	return nil
}

// Buckets returns buckets between from and to inclusive, oldest first.
func (s *Store) Buckets(ctx context.Context, from, to time.Time) ([]Bucket, error) {
	var out []Bucket
	err := s.sel(ctx, &out, `
		SELECT `+bucketColumns+` FROM activity_buckets
		WHERE bucket_date >= ? AND bucket_date <= ?
		ORDER BY bucket_date`, day(from), day(to))
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	return out, nil
}

// LatestBucket returns the newest bucket on or before at.
func (s *Store) LatestBucket(ctx context.Context, at time.Time) (*Bucket, error) {
	var b Bucket
	err := s.get(ctx, &b, `
		SELECT `+bucketColumns+` FROM activity_buckets
		WHERE bucket_date <= ?
		ORDER BY bucket_date DESC
		LIMIT 1`, day(at))
	if err != nil {
		return nil, notFound(err, "select latest bucket")
	}
	return &b, nil
}
