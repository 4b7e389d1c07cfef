package store

import (
	"context"
	"fmt"
	"time"
)

// LoadTexts returns every text of one language.
func (s *Store) LoadTexts(ctx context.Context, language string) ([]Text, error) {
	var out []Text
	if err := s.sel(ctx, &out, `SELECT `+textColumns+` FROM localized_text WHERE language = ? ORDER BY category, key`, language); err != nil {
		return nil, fmt.Errorf("load texts: %w", err)
	}
	return out, nil
}

// UpsertText stores t, overwriting an existing row with the same key.
func (s *Store) UpsertText(ctx context.Context, t Text) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.exec(ctx, `
			INSERT INTO localized_text (key, category, language, text, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (key, category, language) DO UPDATE SET
				text = excluded.text,
				updated_at = excluded.updated_at`,
			t.Key, t.Category, t.Language, t.Text, utc(stamp(t.UpdatedAt)))
		if err != nil {
			return fmt.Errorf("upsert text %s/%s: %w", t.Category, t.Key, err)
		}
		return nil
	})
}

// InsertTextIfAbsent stores t only when the key is new. It reports whether a row was written.
func (s *Store) InsertTextIfAbsent(ctx context.Context, t Text) (bool, error) {
	var inserted bool
	err := s.WithTx(ctx, func(tx *Tx) error {
		res, err := tx.exec(ctx, `
			INSERT INTO localized_text (key, category, language, text, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (key, category, language) DO NOTHING`,
			t.Key, t.Category, t.Language, t.Text, utc(stamp(t.UpdatedAt)))
		if err != nil {
			return fmt.Errorf("insert text %s/%s: %w", t.Category, t.Key, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		inserted = n > 0
		return nil
	})
	return inserted, err
}

func stamp(at time.Time) time.Time {
	if at.IsZero() {
		return time.Now()
	}
	return at
}
