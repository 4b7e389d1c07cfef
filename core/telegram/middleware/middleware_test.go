package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

type fakeContext struct {
	tele.Context
	sender *tele.User
	update tele.Update
	store  map[string]any
}

func newFakeContext(userID int64) *fakeContext {
	return &fakeContext{
		sender: &tele.User{ID: userID},
		update: tele.Update{ID: 1, Message: &tele.Message{Text: "hi"}},
		store:  map[string]any{},
	}
}

func (f *fakeContext) Sender() *tele.User        { return f.sender }
func (f *fakeContext) Chat() *tele.Chat          { return &tele.Chat{ID: f.sender.ID} }
func (f *fakeContext) Update() tele.Update       { return f.update }
func (f *fakeContext) Get(key string) any        { return f.store[key] }
func (f *fakeContext) Set(key string, value any) { f.store[key] = value }

func TestAdminOnlyMiddleware(t *testing.T) {
	rejected := 0
	mw := AdminOnlyMiddleware(AdminOptions{
		IsAdmin:  func(id int64) bool { return id == 42 },
		OnReject: func(tele.Context) error { rejected++; return nil },
	})
	passed := 0
	h := mw(func(tele.Context) error { passed++; return nil })

	_ = h(newFakeContext(42))
	_ = h(newFakeContext(7))
	if passed != 1 || rejected != 1 {
		t.Fatalf("passed=%d rejected=%d", passed, rejected)
	}
}

func TestAdminOnlyWithoutPredicateRejectsAll(t *testing.T) {
	passed := false
	h := AdminOnlyMiddleware(AdminOptions{})(func(tele.Context) error { passed = true; return nil })
	_ = h(newFakeContext(1))
	if passed {
		t.Fatal("expected rejection when no admins configured")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	limited := 0
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Hour,
		Exclude:   map[string]struct{}{"callback": {}},
		OnLimited: func(tele.Context) error { limited++; return nil },
	})
	calls := 0
	h := mw(func(tele.Context) error { calls++; return nil })

	c := newFakeContext(5)
	_ = h(c)
	_ = h(c)
	if calls != 1 || limited != 1 {
		t.Fatalf("calls=%d limited=%d", calls, limited)
	}

	cb := newFakeContext(5)
	cb.update = tele.Update{ID: 2, Callback: &tele.Callback{Data: "\fsurvey_start"}}
	_ = h(cb)
	if calls != 2 {
		t.Fatalf("callbacks should bypass the limiter, calls=%d", calls)
	}
}

func TestRecoverMiddlewareConvertsPanic(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	if err := h(newFakeContext(1)); !errors.Is(err, ErrPanic) {
		t.Fatalf("expected ErrPanic, got %v", err)
	}
}

type fixedState string

func (s fixedState) StateOf(context.Context, int64) string { return string(s) }

func TestStateMiddleware(t *testing.T) {
	errMismatch := errors.New("mismatch")
	mw := State(fixedState("admin_panel"), func(tele.Context) error { return errMismatch }, "admin_panel", "admin_mailing")
	if err := mw(func(tele.Context) error { return nil })(newFakeContext(1)); err != nil {
		t.Fatalf("expected pass-through, got %v", err)
	}

	mw = State(fixedState("idle"), func(tele.Context) error { return errMismatch }, "admin_panel")
	if err := mw(func(tele.Context) error { return nil })(newFakeContext(1)); !errors.Is(err, errMismatch) {
		t.Fatalf("expected mismatch handler, got %v", err)
	}
}

func TestUpdateKind(t *testing.T) {
	cases := map[string]tele.Update{
		"callback":     {Callback: &tele.Callback{}},
		"message":      {Message: &tele.Message{}},
		"inline_query": {Query: &tele.Query{}},
		"other":        {},
	}
	for want, upd := range cases {
		if got := UpdateKind(upd); got != want {
			t.Fatalf("UpdateKind = %q, want %q", got, want)
		}
	}
}

func TestSeenUpdatesForgetsOldIDs(t *testing.T) {
	s := &seenUpdates{ttl: time.Second, seen: map[int]time.Time{}}
	now := time.Now()
	if !s.first(1, now) || s.first(1, now) {
		t.Fatal("second sighting should not count as first")
	}
	if !s.first(1, now.Add(2*time.Second)) {
		t.Fatal("expired id should be logged again")
	}
}

type sendCounter struct {
	*fakeContext
}

func (sendCounter) Send(any, ...any) error { return nil }

func TestMessageMetricsCountsSends(t *testing.T) {
	c := sendCounter{newFakeContext(3)}
	h := MessageMetricsMiddleware(func(c tele.Context) error {
		_ = c.Send("plain")
		return c.Send("menu", &tele.ReplyMarkup{})
	})
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	msgs, kb := GetCounters(c)
	if msgs != 2 || !kb {
		t.Fatalf("counters = %d, %v", msgs, kb)
	}
}
