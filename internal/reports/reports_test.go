package reports

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/surveybot/internal/activity"
	"github.com/m3rciful/surveybot/internal/store"
	"github.com/m3rciful/surveybot/internal/store/storetest"
)

func seeded(t *testing.T) (*Reporter, time.Time) {
	t.Helper()
	st := storetest.Open(t)
	ctx := context.Background()
	agg := activity.New(st)
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	for _, id := range []int64{1, 2} {
		if _, _, err := st.GetOrCreateUser(ctx, store.Profile{UserID: id, Username: "user"}, now); err != nil {
			t.Fatalf("create user: %v", err)
		}
		if err := agg.Touch(ctx, id, now); err != nil {
			t.Fatalf("touch: %v", err)
		}
	}
	if err := st.SaveAnswerField(ctx, 1, "investment_readiness", "Готов частично", now); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := st.FinalizeOpenResponse(ctx, 1, now); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	return New(st, agg, t.TempDir()), now
}

func TestStatsText(t *testing.T) {
	r, now := seeded(t)
	text, err := r.StatsText(context.Background(), now)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	for _, want := range []string{"Всего пользователей: 2", "Пройдено опросов: 1", "За последнюю неделю"} {
		if !strings.Contains(text, want) {
			t.Fatalf("stats text misses %q:\n%s", want, text)
		}
	}
}

func TestActivityWorkbook(t *testing.T) {
	r, now := seeded(t)
	path, err := r.ActivityWorkbook(context.Background(), now)
	if err != nil {
		t.Fatalf("workbook: %v", err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	v, err := f.GetCellValue(summarySheet, "B2")
	if err != nil || v != "2" {
		t.Fatalf("expected 2 users in B2, got %q %v", v, err)
	}
	rows, err := f.GetRows(trendSheet)
	if err != nil || len(rows) != 2 || rows[1][0] != "2026-04-01" {
		t.Fatalf("unexpected trend rows %v %v", rows, err)
	}
}

func TestUsersWorkbook(t *testing.T) {
	r, _ := seeded(t)
	path, err := r.UsersWorkbook(context.Background())
	if err != nil {
		t.Fatalf("workbook: %v", err)
	}
	defer os.Remove(path)
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	users, _ := f.GetRows(usersSheet)
	if len(users) != 3 {
		t.Fatalf("expected header + 2 users, got %d rows", len(users))
	}
	answers, _ := f.GetRows(answersSheet)
	if len(answers) != 2 || !strings.Contains(strings.Join(answers[1], "|"), "Готов частично") {
		t.Fatalf("unexpected answers sheet %v", answers)
	}
}

func TestBroadcastCountsOutcomes(t *testing.T) {
	blocked := fmt.Errorf("send: %w", tele.ErrBlockedByUser)
	res := Broadcast(context.Background(), []int64{1, 2, 3, 4}, func(_ context.Context, id int64, done func(error)) error {
		switch id {
		case 2:
			go done(blocked)
		case 3:
			return errors.New("queue full")
		default:
			go done(nil)
		}
		return nil
	})
	if res.Delivered != 2 || res.Failed != 2 || res.Unreachable != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestBroadcastStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := Broadcast(ctx, []int64{1, 2}, func(context.Context, int64, func(error)) error {
		t.Fatal("send must not run after cancel")
		return nil
	})
	if res.Failed != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
}
