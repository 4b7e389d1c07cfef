package store

import (
	"context"
	"fmt"
	"time"
)

// GetOrCreateUser inserts the user on first contact and refreshes the profile
// fields otherwise. created reports whether a row was inserted.
func (t *Tx) GetOrCreateUser(ctx context.Context, p Profile, at time.Time) (*User, bool, error) {
	at = utc(at)
	res, err := t.exec(ctx, `
		INSERT INTO users (user_id, username, first_name, last_name, first_seen, last_activity, survey_completed, active_days)
		VALUES (?, ?, ?, ?, ?, ?, FALSE, 0)
		ON CONFLICT (user_id) DO NOTHING`,
		p.UserID, p.Username, p.FirstName, p.LastName, at, at)
	if err != nil {
		return nil, false, fmt.Errorf("insert user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("insert user: %w", err)
	}
	created := n > 0
	if !created {
		if _, err := t.exec(ctx, `
			UPDATE users SET username = ?, first_name = ?, last_name = ?
			WHERE user_id = ?`,
			p.Username, p.FirstName, p.LastName, p.UserID); err != nil {
			return nil, false, fmt.Errorf("update user profile: %w", err)
		}
	}
	u, err := t.User(ctx, p.UserID)
	if err != nil {
		return nil, false, err
	}
	return u, created, nil
}

// User loads one user.
func (t *Tx) User(ctx context.Context, userID int64) (*User, error) {
	var u User
	if err := t.get(ctx, &u, `SELECT `+userColumns+` FROM users WHERE user_id = ?`, userID); err != nil {
		return nil, notFound(err, "select user")
	}
	return &u, nil
}

// TouchUser stamps last_activity and increments active_days once per UTC day.
func (t *Tx) TouchUser(ctx context.Context, userID int64, at time.Time) error {
	d := day(at)
	res, err := t.exec(ctx, `
		UPDATE users SET
			last_activity = ?,
			active_days = active_days + CASE WHEN last_active_date IS NULL OR last_active_date <> ? THEN 1 ELSE 0 END,
			last_active_date = ?
		WHERE user_id = ?`,
		utc(at), d, d, userID)
	if err != nil {
		return fmt.Errorf("touch user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("touch user %d: %w", userID, ErrNotFound)
	}
	return nil
}

// MarkSurveyCompleted sets the user's completion flag.
func (t *Tx) MarkSurveyCompleted(ctx context.Context, userID int64) error {
	if _, err := t.exec(ctx, `UPDATE users SET survey_completed = TRUE WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("mark survey completed: %w", err)
	}
	return nil
}

// CountActiveUsersSince counts users whose last activity is at or after since.
func (t *Tx) CountActiveUsersSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	if err := t.get(ctx, &n, `SELECT COUNT(*) FROM users WHERE last_activity >= ?`, utc(since)); err != nil {
		return 0, fmt.Errorf("count active users: %w", err)
	}
	return n, nil
}

// User loads one user outside a transaction.
func (s *Store) User(ctx context.Context, userID int64) (*User, error) {
	var u User
	if err := s.get(ctx, &u, `SELECT `+userColumns+` FROM users WHERE user_id = ?`, userID); err != nil {
		return nil, notFound(err, "select user")
	}
	return &u, nil
}

// ListUsers returns every user ordered by first contact.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	var out []User
	if err := s.sel(ctx, &out, `SELECT `+userColumns+` FROM users ORDER BY first_seen, user_id`); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

// ListUserIDs returns the ids of every user.
func (s *Store) ListUserIDs(ctx context.Context) ([]int64, error) {
	var out []int64
	if err := s.sel(ctx, &out, `SELECT user_id FROM users ORDER BY user_id`); err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	return out, nil
}

// CountNewUsersSince counts users first seen at or after since.
func (s *Store) CountNewUsersSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	if err := s.get(ctx, &n, `SELECT COUNT(*) FROM users WHERE first_seen >= ?`, utc(since)); err != nil {
		return 0, fmt.Errorf("count new users: %w", err)
	}
	return n, nil
}

// Totals returns lifetime counters.
func (s *Store) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	err := s.get(ctx, &t, `
		SELECT
			(SELECT COUNT(*) FROM users) AS users,
			(SELECT COUNT(*) FROM users WHERE survey_completed) AS completed_users,
			(SELECT COUNT(*) FROM survey_responses WHERE completed) AS completed_surveys,
			(SELECT COUNT(*) FROM survey_responses WHERE NOT completed) AS open_surveys`)
	if err != nil {
		return Totals{}, fmt.Errorf("totals: %w", err)
	}
	return t, nil
}
