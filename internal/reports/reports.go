// Package reports builds admin statistics: spreadsheet exports, a plain-text
// summary and mailing bookkeeping.
package reports

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/m3rciful/surveybot/core/logger"
	"github.com/m3rciful/surveybot/internal/activity"
	"github.com/m3rciful/surveybot/internal/questions"
	"github.com/m3rciful/surveybot/internal/store"
)

const (
	timeLayout    = "2006-01-02 15:04:05"
	trendDays     = 30
	summarySheet  = "Статистика бота"
	trendSheet    = "Динамика"
	usersSheet    = "Пользователи"
	answersSheet  = "Ответы"
	defaultDir    = "reports"
)

// Reporter produces admin reports.
type Reporter struct {
	st  *store.Store
	agg *activity.Aggregator
	dir string
}

// New returns a Reporter writing workbooks into dir.
func New(st *store.Store, agg *activity.Aggregator, dir string) *Reporter {
	if strings.TrimSpace(dir) == "" {
		dir = defaultDir
	}
	return &Reporter{st: st, agg: agg, dir: dir}
}

// StatsText renders the statistics as a chat message.
func (r *Reporter) StatsText(ctx context.Context, at time.Time) (string, error) {
	rep, err := r.agg.Report(ctx, at)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Статистика на %s (UTC)\n\n", at.UTC().Format(time.DateOnly))
	fmt.Fprintf(&b, "Всего пользователей: %d\n", rep.Totals.Users)
	fmt.Fprintf(&b, "Прошли опрос: %d\n", rep.Totals.CompletedUsers)
	fmt.Fprintf(&b, "Пройдено опросов: %d\n", rep.Totals.CompletedSurveys)
	fmt.Fprintf(&b, "Незавершённых опросов: %d\n", rep.Totals.OpenSurveys)
	for _, w := range rep.Windows {
		fmt.Fprintf(&b, "\n%s:\nНовых пользователей: %d\nПройдено опросов: %d\n", windowTitle(w.Days), w.NewUsers, w.Completed)
	}
	if rep.Latest != nil {
		fmt.Fprintf(&b, "\nАктивных за день/неделю/месяц: %d / %d / %d\n",
			rep.Latest.DailyUsers, rep.Latest.WeeklyUsers, rep.Latest.MonthlyUsers)
	}
	return b.String(), nil
}

func windowTitle(days int) string {
	switch days {
	case activity.DailyWindow:
		return "Сегодня"
	case activity.WeeklyWindow:
		return "За последнюю неделю"
	case activity.MonthlyWindow:
		return "За последний месяц"
	}
	return "За " + strconv.Itoa(days) + " дн."
}

// ActivityWorkbook writes the activity report and returns its path. The
// caller removes the file once delivered.
func (r *Reporter) ActivityWorkbook(ctx context.Context, at time.Time) (string, error) {
	rep, err := r.agg.Report(ctx, at)
	if err != nil {
		return "", err
	}
	buckets, err := r.st.Buckets(ctx, activity.WindowStart(at, trendDays), at)
	if err != nil {
		return "", err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return "", err
	}
	rows := [][]any{
		{"Показатель", "Количество"},
		{"Всего пользователей:", rep.Totals.Users},
		{"Прошли опрос:", rep.Totals.CompletedUsers},
		{"Пройдено опросов:", rep.Totals.CompletedSurveys},
		{"Незавершённых опросов:", rep.Totals.OpenSurveys},
	}
	for _, w := range rep.Windows {
		rows = append(rows,
			[]any{windowTitle(w.Days) + ":", ""},
			[]any{"Новых пользователей", w.NewUsers},
			[]any{"Пройдено опросов", w.Completed},
		)
	}
	if err := writeRows(f, summarySheet, rows); err != nil {
		return "", err
	}

	if _, err := f.NewSheet(trendSheet); err != nil {
		return "", err
	}
	trend := [][]any{{"Дата", "Активны за день", "За неделю", "За месяц", "Опросов за день", "За неделю", "За месяц"}}
	for _, b := range buckets {
		trend = append(trend, []any{
			b.Date.UTC().Format(time.DateOnly),
			b.DailyUsers, b.WeeklyUsers, b.MonthlyUsers,
			b.DailySurveys, b.WeeklySurveys, b.MonthlySurveys,
		})
	}
	if err := writeRows(f, trendSheet, trend); err != nil {
		return "", err
	}
	return r.save(f, "bot_statistics")
}

// UsersWorkbook writes user details and completed answers and returns its path.
func (r *Reporter) UsersWorkbook(ctx context.Context) (string, error) {
	users, err := r.st.ListUsers(ctx)
	if err != nil {
		return "", err
	}
	responses, err := r.st.CompletedResponses(ctx)
	if err != nil {
		return "", err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", usersSheet); err != nil {
		return "", err
	}
	rows := [][]any{{"id", "username", "first_name", "last_name", "first_seen", "last_activity", "survey_completed", "active_days"}}
	for _, u := range users {
		rows = append(rows, []any{
			u.UserID, u.Username, u.FirstName, u.LastName,
			u.FirstSeen.UTC().Format(timeLayout),
			u.LastActivity.UTC().Format(timeLayout),
			u.SurveyCompleted, u.ActiveDays,
		})
	}
	if err := writeRows(f, usersSheet, rows); err != nil {
		return "", err
	}

	if _, err := f.NewSheet(answersSheet); err != nil {
		return "", err
	}
	header := []any{"response_id", "user_id", "completed_at"}
	for _, field := range store.AnswerFields {
		label := questions.Labels[field]
		if label == "" {
			label = field
		}
		header = append(header, label)
	}
	answers := [][]any{header}
	for _, resp := range responses {
		completedAt := ""
		if resp.CompletedAt != nil {
			completedAt = resp.CompletedAt.UTC().Format(timeLayout)
		}
		row := []any{resp.ID, resp.UserID, completedAt}
		for _, field := range store.AnswerFields {
			v, _ := resp.Answer(field)
			row = append(row, v)
		}
		answers = append(answers, row)
	}
	if err := writeRows(f, answersSheet, answers); err != nil {
		return "", err
	}
	return r.save(f, "users_data")
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	if len(rows) == 0 {
		return nil
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Family: "Arial", Size: 11}})
	if err != nil {
		return err
	}
	last, err := excelize.ColumnNumberToName(max(len(rows[0]), 1))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last+"1", bold); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", last, 22)
}

func (r *Reporter) save(f *excelize.File, prefix string) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("reports dir: %w", err)
	}
	name := fmt.Sprintf("%s_%s_%s.xlsx", prefix, time.Now().UTC().Format("20060102_150405"), uuid.NewString()[:8])
	path := filepath.Join(r.dir, name)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	logger.SVCReports.Info("workbook written",
		slog.String("event", "reports.export"),
		slog.String("file", name),
	)
	return path, nil
}
