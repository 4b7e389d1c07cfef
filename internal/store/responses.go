package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SaveAnswerField writes value into field of the user's open response,
// creating the response when none is open.
func (t *Tx) SaveAnswerField(ctx context.Context, userID int64, field, value string, at time.Time) error {
	if !IsAnswerField(field) {
		return fmt.Errorf("%q: %w", field, ErrUnknownField)
	}
	query := fmt.Sprintf(`
		INSERT INTO survey_responses (user_id, %[1]s, completed, created_at)
		VALUES (?, ?, FALSE, ?)
		ON CONFLICT (user_id) WHERE NOT completed
		DO UPDATE SET %[1]s = excluded.%[1]s`, field)
	if _, err := t.exec(ctx, query, userID, value, utc(at)); err != nil {
		return fmt.Errorf("save answer %s: %w", field, err)
	}
	return nil
}

// OpenResponse returns the user's open response or nil.
func (t *Tx) OpenResponse(ctx context.Context, userID int64) (*SurveyResponse, error) {
	var r SurveyResponse
	err := t.get(ctx, &r, `SELECT `+responseColumns+` FROM survey_responses WHERE user_id = ? AND NOT completed`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select open response: %w", err)
	}
	return &r, nil
}

// FinalizeOpenResponse marks the open response completed and returns it.
// It returns nil without changes when no response is open.
func (t *Tx) FinalizeOpenResponse(ctx context.Context, userID int64, at time.Time) (*SurveyResponse, error) {
	var r SurveyResponse
	err := t.get(ctx, &r, `
		UPDATE survey_responses SET completed = TRUE, completed_at = ?
		WHERE user_id = ? AND NOT completed
		RETURNING `+responseColumns,
		utc(at), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finalize response: %w", err)
	}
	return &r, nil
}

// LatestCompletedResponse returns the most recent completed response or nil.
func (t *Tx) LatestCompletedResponse(ctx context.Context, userID int64) (*SurveyResponse, error) {
	var r SurveyResponse
	err := t.get(ctx, &r, `
		SELECT `+responseColumns+` FROM survey_responses
		WHERE user_id = ? AND completed
		ORDER BY completed_at DESC, id DESC
		LIMIT 1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select latest response: %w", err)
	}
	return &r, nil
}

// DiscardOpenResponses deletes the user's unfinished responses.
func (t *Tx) DiscardOpenResponses(ctx context.Context, userID int64) (int64, error) {
	res, err := t.exec(ctx, `DELETE FROM survey_responses WHERE user_id = ? AND NOT completed`, userID)
	if err != nil {
		return 0, fmt.Errorf("discard open responses: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CountCompletedSince counts responses completed at or after since.
func (t *Tx) CountCompletedSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	if err := t.get(ctx, &n, `SELECT COUNT(*) FROM survey_responses WHERE completed AND completed_at >= ?`, utc(since)); err != nil {
		return 0, fmt.Errorf("count completed surveys: %w", err)
	}
	return n, nil
}

// CountCompletedSince counts responses completed at or after since.
func (s *Store) CountCompletedSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	if err := s.get(ctx, &n, `SELECT COUNT(*) FROM survey_responses WHERE completed AND completed_at >= ?`, utc(since)); err != nil {
		return 0, fmt.Errorf("count completed surveys: %w", err)
	}
	return n, nil
}

// CompletedResponses returns completed responses ordered by completion time.
func (s *Store) CompletedResponses(ctx context.Context) ([]SurveyResponse, error) {
	var out []SurveyResponse
	if err := s.sel(ctx, &out, `SELECT `+responseColumns+` FROM survey_responses WHERE completed ORDER BY completed_at, id`); err != nil {
		return nil, fmt.Errorf("list completed responses: %w", err)
	}
	return out, nil
}
