package texts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m3rciful/surveybot/internal/store"
	"github.com/m3rciful/surveybot/internal/store/storetest"
)

func TestInitSeedsWithoutOverwriting(t *testing.T) {
	st := storetest.Open(t)
	ctx := context.Background()
	if err := st.UpsertText(ctx, store.Text{Key: "start", Category: CategorySystem, Language: "ru", Text: "custom"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	c := NewCatalog(st, Options{})
	if err := c.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if got := c.Resolve(ctx, "start", CategorySystem); got != "custom" {
		t.Fatalf("seeding must keep edited text, got %q", got)
	}
	if got := c.Resolve(ctx, "question_region", CategoryQuestions); got != Defaults[CategoryQuestions]["question_region"] {
		t.Fatalf("unexpected default %q", got)
	}
	if got := c.Resolve(ctx, "missing_key", CategorySystem); got != "missing_key" {
		t.Fatalf("unknown keys resolve to themselves, got %q", got)
	}
}

func TestDefineAndRefresh(t *testing.T) {
	st := storetest.Open(t)
	ctx := context.Background()
	c := NewCatalog(st, Options{TTL: time.Minute, Defaults: map[string]map[string]string{}})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	if err := c.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := c.Define(ctx, "hello", CategorySurvey, "Привет"); err != nil {
		t.Fatalf("define: %v", err)
	}
	if got := c.Resolve(ctx, "hello", CategorySurvey); got != "Привет" {
		t.Fatalf("define must update cache, got %q", got)
	}

	// A write from another process becomes visible after the TTL.
	if err := st.UpsertText(ctx, store.Text{Key: "hello", Category: CategorySurvey, Language: "ru", Text: "Здравствуйте"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if got := c.Resolve(ctx, "hello", CategorySurvey); got != "Привет" {
		t.Fatalf("cache served within TTL, got %q", got)
	}
	now = now.Add(2 * time.Minute)
	if got := c.Resolve(ctx, "hello", CategorySurvey); got != "Здравствуйте" {
		t.Fatalf("expected refreshed text, got %q", got)
	}
}

func TestFormat(t *testing.T) {
	st := storetest.Open(t)
	ctx := context.Background()
	c := NewCatalog(st, Options{})
	if err := c.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	got := c.Format(ctx, "survey_result_user_info", CategorySurvey, map[string]string{"username": "anna", "user_id": "42"})
	want := "👤 Пользователь: @anna\n👤 Идентификатор: 42"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

type failingRepo struct{}

func (failingRepo) LoadTexts(context.Context, string) ([]store.Text, error) {
	return nil, errors.New("db down")
}
func (failingRepo) UpsertText(context.Context, store.Text) error { return errors.New("db down") }
func (failingRepo) InsertTextIfAbsent(context.Context, store.Text) (bool, error) {
	return false, errors.New("db down")
}

func TestResolveFallsBackWhenStorageFails(t *testing.T) {
	c := NewCatalog(failingRepo{}, Options{})
	if err := c.Init(context.Background()); err == nil {
		t.Fatal("expected init error")
	}
	if got := c.Resolve(context.Background(), "start", CategorySystem); got != "start" {
		t.Fatalf("expected key fallback, got %q", got)
	}
	if err := c.Define(context.Background(), "start", CategorySystem, "x"); err == nil {
		t.Fatal("expected define error")
	}
}
