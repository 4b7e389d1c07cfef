package survey

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/surveybot/core/telegram/state"
	"github.com/m3rciful/surveybot/internal/activity"
	"github.com/m3rciful/surveybot/internal/questions"
	"github.com/m3rciful/surveybot/internal/store"
	"github.com/m3rciful/surveybot/internal/store/storetest"
	"github.com/m3rciful/surveybot/internal/texts"
)

type fixture struct {
	engine   *Engine
	store    *store.Store
	sessions *state.MemoryManager
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := storetest.Open(t)
	ctx := context.Background()
	catalog := texts.NewCatalog(st, texts.Options{})
	if err := catalog.Init(ctx); err != nil {
		t.Fatalf("catalog init: %v", err)
	}
	f := &fixture{
		store:    st,
		sessions: state.NewMemoryManager(time.Hour),
		now:      time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC),
	}
	e, err := New(Options{
		Graph:    questions.Default(),
		Store:    st,
		Sessions: f.sessions,
		Texts:    catalog,
		Activity: activity.New(st),
		Now: func() time.Time {
			f.now = f.now.Add(time.Second)
			return f.now
		},
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	f.engine = e
	return f
}

var fullAnswers = []struct{ id, answer string }{
	{"region", "Москва"},
	{"has_business", "Да"},
	{"is_under_25", "Да"},
	{"has_experience", "Нет"},
	{"official_income", "30000"},
	{"work_plan", "Один"},
	{"micro_result", "Хочу понять шансы"},
	{"subsidy_interest", "Готов начинать"},
	{"desired_outcome", "Пошаговый план"},
	{"importance_level", "Очень важно"},
	{"investment_readiness", "Готов частично"},
}

// runSurvey answers every question and returns the final step plus the number of checkpoints seen.
func runSurvey(t *testing.T, f *fixture, userID int64, ageBracket string) (*Step, int) {
	t.Helper()
	ctx := context.Background()
	step, err := f.engine.Start(ctx, store.Profile{UserID: userID, Username: "anna_k"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	checkpoints := 0
	for _, a := range fullAnswers {
		if step.Kind != StepQuestion || step.QuestionID != a.id {
			t.Fatalf("expected question %s, got %+v", a.id, step)
		}
		answer := a.answer
		if a.id == questions.AgeBracketField {
			answer = ageBracket
		}
		step, err = f.engine.SubmitAnswer(ctx, userID, a.id, answer)
		if err != nil {
			t.Fatalf("submit %s: %v", a.id, err)
		}
		if step.Kind == StepCheckpoint {
			if a.id != questions.CheckpointAfter {
				t.Fatalf("checkpoint fired after %s", a.id)
			}
			checkpoints++
			step, err = f.engine.Continue(ctx, userID)
			if err != nil {
				t.Fatalf("continue: %v", err)
			}
		}
	}
	return step, checkpoints
}

func TestFullSurveyCompletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	step, checkpoints := runSurvey(t, f, 42, "Да")

	if step.Kind != StepCompleted {
		t.Fatalf("expected completion, got %+v", step)
	}
	if checkpoints != 1 {
		t.Fatalf("checkpoint must fire exactly once, got %d", checkpoints)
	}
	if !strings.Contains(step.Summary, "Готов частично") || !strings.Contains(step.Summary, "@anna_k") {
		t.Fatalf("summary misses answers: %q", step.Summary)
	}

	resp, err := f.store.LatestCompletedResponse(ctx, 42)
	if err != nil || resp == nil {
		t.Fatalf("latest completed: %v %v", resp, err)
	}
	if !resp.Completed {
		t.Fatal("response must be completed")
	}
	answers := resp.Answers()
	for _, field := range questions.Default().Fields() {
		if answers[field] == "" {
			t.Fatalf("field %s not recorded", field)
		}
	}
	if answers["investment_readiness"] != "Готов частично" {
		t.Fatalf("unexpected final answer %q", answers["investment_readiness"])
	}

	user, err := f.store.User(ctx, 42)
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	if !user.SurveyCompleted {
		t.Fatal("user survey flag must be set")
	}
	if user.ActiveDays != 1 {
		t.Fatalf("active days must grow once per day, got %d", user.ActiveDays)
	}
	if f.engine.Active(ctx, 42) {
		t.Fatal("session must be evicted on completion")
	}
	if f.engine.locks.size() != 0 {
		t.Fatalf("user locks leaked: %d", f.engine.locks.size())
	}

	buckets, err := f.store.Buckets(ctx, f.now, f.now)
	if err != nil || len(buckets) != 1 || buckets[0].DailySurveys != 1 || buckets[0].DailyUsers != 1 {
		t.Fatalf("unexpected bucket %+v %v", buckets, err)
	}
}

func TestFinalMessageVariants(t *testing.T) {
	f := newFixture(t)
	under, _ := runSurvey(t, f, 1, questions.AgeBracketUnder25)
	over, _ := runSurvey(t, f, 2, "Нет")

	const grant = "Грант для предпринимателей"
	if !strings.Contains(under.FinalMessage, grant) {
		t.Fatalf("under-25 variant must list the grant: %q", under.FinalMessage)
	}
	if strings.Contains(over.FinalMessage, grant) {
		t.Fatalf("over-25 variant must not list the grant: %q", over.FinalMessage)
	}
	if !strings.Contains(over.FinalMessage, "Социальный контракт") {
		t.Fatalf("over-25 variant must list the social contract: %q", over.FinalMessage)
	}
}

func TestStaleSubmissionDoesNotMutate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.engine.SubmitAnswer(ctx, 5, "region", "Москва"); !errors.Is(err, ErrStaleSubmission) {
		t.Fatalf("expected stale without session, got %v", err)
	}
	if _, err := f.engine.Start(ctx, store.Profile{UserID: 5}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.engine.SubmitAnswer(ctx, 5, "has_business", "Да"); !errors.Is(err, ErrStaleSubmission) {
		t.Fatalf("expected stale, got %v", err)
	}
	totals, err := f.store.Totals(ctx)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.OpenSurveys != 0 {
		t.Fatalf("stale answer created a response: %+v", totals)
	}
	sess, _ := f.sessions.Get(ctx, 5)
	if sess.QuestionID != "region" || sess.State != StateAnswering {
		t.Fatalf("stale answer moved the session: %+v", sess)
	}
}

func TestChoiceQuestionRejectsFreeText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.engine.Start(ctx, store.Profile{UserID: 9}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.engine.SubmitText(ctx, 9, "Казань"); err != nil {
		t.Fatalf("region: %v", err)
	}
	step, err := f.engine.SubmitText(ctx, 9, "что-то своё")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !step.Rejected || step.QuestionID != "has_business" || len(step.Options) != 3 {
		t.Fatalf("expected re-emitted question, got %+v", step)
	}
	var open *store.SurveyResponse
	_ = f.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		open, err = tx.OpenResponse(ctx, 9)
		return err
	})
	if open == nil || open.HasBusiness != nil {
		t.Fatalf("rejected answer must not be stored: %+v", open)
	}
}

func TestCheckpointAcceptsOnlyContinue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.engine.Start(ctx, store.Profile{UserID: 3}); err != nil {
		t.Fatalf("start: %v", err)
	}
	var step *Step
	var err error
	for _, a := range fullAnswers[:7] {
		if step, err = f.engine.SubmitAnswer(ctx, 3, a.id, a.answer); err != nil {
			t.Fatalf("submit %s: %v", a.id, err)
		}
	}
	if step.Kind != StepCheckpoint {
		t.Fatalf("expected checkpoint after %s, got %+v", questions.CheckpointAfter, step)
	}

	step, err = f.engine.SubmitText(ctx, 3, "дальше")
	if err != nil || step.Kind != StepCheckpoint || !step.Rejected {
		t.Fatalf("free text at checkpoint must be rejected: %+v %v", step, err)
	}
	if _, err := f.engine.SubmitAnswer(ctx, 3, "subsidy_interest", "Готов начинать"); !errors.Is(err, ErrStaleSubmission) {
		t.Fatalf("answer before continue must be stale, got %v", err)
	}

	step, err = f.engine.Continue(ctx, 3)
	if err != nil || step.Kind != StepQuestion || step.QuestionID != "subsidy_interest" {
		t.Fatalf("continue must yield next question: %+v %v", step, err)
	}
	if _, err := f.engine.Continue(ctx, 3); !errors.Is(err, ErrStaleSubmission) {
		t.Fatalf("second continue must be stale, got %v", err)
	}
}

func TestStartDiscardsAbandonedResponse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.engine.Start(ctx, store.Profile{UserID: 4}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.engine.SubmitAnswer(ctx, 4, "region", "Тула"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.engine.Start(ctx, store.Profile{UserID: 4}); err != nil {
		t.Fatalf("restart: %v", err)
	}
	totals, _ := f.store.Totals(ctx)
	if totals.OpenSurveys != 0 {
		t.Fatalf("restart must discard the open response: %+v", totals)
	}
	if _, err := f.engine.SubmitAnswer(ctx, 4, "region", "Омск"); err != nil {
		t.Fatalf("submit after restart: %v", err)
	}
	totals, _ = f.store.Totals(ctx)
	if totals.OpenSurveys != 1 {
		t.Fatalf("expected one fresh open response: %+v", totals)
	}
}

func TestConcurrentDuplicateSubmissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.engine.Start(ctx, store.Profile{UserID: 8}); err != nil {
		t.Fatalf("start: %v", err)
	}
	const n = 8
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		ok    int
		stale int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.SubmitAnswer(ctx, 8, "region", "Москва")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrStaleSubmission):
				stale++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if ok != 1 || stale != n-1 {
		t.Fatalf("expected one applied answer, got ok=%d stale=%d", ok, stale)
	}
	totals, _ := f.store.Totals(ctx)
	if totals.OpenSurveys != 1 {
		t.Fatalf("expected one open response, got %+v", totals)
	}
}

func TestPersistenceFailureResetsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.engine.Start(ctx, store.Profile{UserID: 6}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.store.DB().Exec(`DROP TABLE activity_buckets`); err != nil {
		t.Fatalf("drop: %v", err)
	}
	_, err := f.engine.SubmitAnswer(ctx, 6, "region", "Москва")
	if !errors.Is(err, ErrSurveyFailed) {
		t.Fatalf("expected ErrSurveyFailed, got %v", err)
	}
	if f.engine.Active(ctx, 6) {
		t.Fatal("session must be reset after a persistence failure")
	}
	totals, _ := f.store.Totals(ctx)
	if totals.OpenSurveys != 0 {
		t.Fatalf("failed transaction must roll back the answer: %+v", totals)
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if active, err := f.engine.Cancel(ctx, 11); err != nil || active {
		t.Fatalf("cancel without session: %v %v", active, err)
	}
	if _, err := f.engine.Start(ctx, store.Profile{UserID: 11}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if active, err := f.engine.Cancel(ctx, 11); err != nil || !active {
		t.Fatalf("cancel: %v %v", active, err)
	}
	if _, err := f.engine.SubmitText(ctx, 11, "Москва"); !errors.Is(err, ErrStaleSubmission) {
		t.Fatalf("expected stale after cancel, got %v", err)
	}
}

func TestRegisterCountsDaysOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, created, err := f.engine.Register(ctx, store.Profile{UserID: 12})
	if err != nil || !created {
		t.Fatalf("register: %v %v", created, err)
	}
	u, created, err := f.engine.Register(ctx, store.Profile{UserID: 12})
	if err != nil || created {
		t.Fatalf("second register: %v %v", created, err)
	}
	if u.ActiveDays != 1 {
		t.Fatalf("expected one active day, got %d", u.ActiveDays)
	}
	f.now = f.now.Add(24 * time.Hour)
	u, _, _ = f.engine.Register(ctx, store.Profile{UserID: 12})
	if u.ActiveDays != 2 {
		t.Fatalf("expected two active days, got %d", u.ActiveDays)
	}
}
