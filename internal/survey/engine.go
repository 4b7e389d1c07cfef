// Package survey drives a user through the question graph, persisting answers
// and finalizing the response exactly once.
package survey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/surveybot/core/logger"
	"github.com/m3rciful/surveybot/core/telegram/state"
	"github.com/m3rciful/surveybot/internal/questions"
	"github.com/m3rciful/surveybot/internal/store"
	"github.com/m3rciful/surveybot/internal/texts"
)

var (
	// ErrStaleSubmission is returned when the answer does not target the
	// user's current question or no survey is active.
	ErrStaleSubmission = errors.New("survey: stale submission")
	// ErrSurveyFailed wraps persistence failures; the session is reset.
	ErrSurveyFailed = errors.New("survey: failed")
)

// Session states owned by the engine.
const (
	StateAnswering  state.State = "survey_answering"
	StateCheckpoint state.State = "survey_checkpoint"
)

const dataNext = "next"

// Texts resolves prompts and message templates.
type Texts interface {
	Resolve(ctx context.Context, key, category string) string
	Format(ctx context.Context, key, category string, args map[string]string) string
}

// Recorder refreshes activity statistics inside a store transaction.
type Recorder interface {
	Record(ctx context.Context, tx *store.Tx, at time.Time) error
}

// Options wires the engine collaborators.
type Options struct {
	Graph    *questions.Graph
	Store    *store.Store
	Sessions state.Manager
	Texts    Texts
	Activity Recorder
	Now      func() time.Time
}

// Engine is the survey state machine.
type Engine struct {
	graph    *questions.Graph
	st       *store.Store
	sessions state.Manager
	texts    Texts
	activity Recorder
	now      func() time.Time
	locks    *userLocks
}

// New validates opts and returns an Engine.
func New(opts Options) (*Engine, error) {
	switch {
	case opts.Graph == nil:
		return nil, errors.New("survey: nil question graph")
	case opts.Store == nil:
		return nil, errors.New("survey: nil store")
	case opts.Sessions == nil:
		return nil, errors.New("survey: nil session manager")
	case opts.Texts == nil:
		return nil, errors.New("survey: nil text catalog")
	case opts.Activity == nil:
		return nil, errors.New("survey: nil activity recorder")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		graph:    opts.Graph,
		st:       opts.Store,
		sessions: opts.Sessions,
		texts:    opts.Texts,
		activity: opts.Activity,
		now:      now,
		locks:    newUserLocks(),
	}, nil
}

// Graph returns the question graph the engine runs.
func (e *Engine) Graph() *questions.Graph { return e.graph }

// Register records a /start: creates the user if absent and stamps activity.
func (e *Engine) Register(ctx context.Context, p store.Profile) (*store.User, bool, error) {
	unlock := e.locks.lock(p.UserID)
	defer unlock()

	at := e.now()
	var (
		user    *store.User
		created bool
	)
	err := e.st.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		if _, created, err = tx.GetOrCreateUser(ctx, p, at); err != nil {
			return err
		}
		if err := tx.TouchUser(ctx, p.UserID, at); err != nil {
			return err
		}
		if user, err = tx.User(ctx, p.UserID); err != nil {
			return err
		}
		return e.activity.Record(ctx, tx, at)
	})
	if err != nil {
		e.logFailure(ctx, "user.register", err)
		return nil, false, fmt.Errorf("%w: %w", ErrSurveyFailed, err)
	}
	logger.SVCUsers.Info("user registered",
		slog.String("event", "user.register"),
		slog.Int64("user_id", p.UserID),
		slog.Bool("created", created),
	)
	return user, created, nil
}

// Start begins a fresh survey, discarding any unfinished response.
func (e *Engine) Start(ctx context.Context, p store.Profile) (*Step, error) {
	unlock := e.locks.lock(p.UserID)
	defer unlock()

	runID := uuid.NewString()
	ctx = logger.WithRunID(ctx, runID)
	at := e.now()
	var discarded int64
	err := e.st.WithTx(ctx, func(tx *store.Tx) error {
		if _, _, err := tx.GetOrCreateUser(ctx, p, at); err != nil {
			return err
		}
		if err := tx.TouchUser(ctx, p.UserID, at); err != nil {
			return err
		}
		var err error
		if discarded, err = tx.DiscardOpenResponses(ctx, p.UserID); err != nil {
			return err
		}
		return e.activity.Record(ctx, tx, at)
	})
	if err != nil {
		return nil, e.fail(ctx, p.UserID, "survey.start", err)
	}

	first := e.graph.First()
	if err := e.sessions.Put(ctx, p.UserID, state.Session{
		State:      StateAnswering,
		QuestionID: first,
		RunID:      runID,
		UpdatedAt:  at,
	}); err != nil {
		return nil, e.fail(ctx, p.UserID, "survey.start", err)
	}
	logger.LogEvent(ctx, logger.SVCSurvey, slog.LevelInfo, "survey.start",
		slog.String("status", "ok"),
		slog.Int64("user_id", p.UserID),
		slog.Int64("discarded", discarded),
	)
	return e.questionStep(ctx, first, runID, false)
}

// SubmitAnswer applies raw as the answer to questionID.
func (e *Engine) SubmitAnswer(ctx context.Context, userID int64, questionID, raw string) (*Step, error) {
	unlock := e.locks.lock(userID)
	defer unlock()

	sess, err := e.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.submit(ctx, userID, sess, questionID, raw)
}

// SubmitText applies free text to whatever the user is currently answering.
func (e *Engine) SubmitText(ctx context.Context, userID int64, text string) (*Step, error) {
	unlock := e.locks.lock(userID)
	defer unlock()

	sess, err := e.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.submit(ctx, userID, sess, sess.QuestionID, text)
}

// Continue sends the continue signal at the checkpoint.
func (e *Engine) Continue(ctx context.Context, userID int64) (*Step, error) {
	return e.SubmitAnswer(ctx, userID, questions.CheckpointID, questions.ContinueSignal)
}

// Current re-renders the prompt the user is expected to answer.
func (e *Engine) Current(ctx context.Context, userID int64) (*Step, error) {
	unlock := e.locks.lock(userID)
	defer unlock()

	sess, err := e.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sess.State == StateCheckpoint {
		return e.checkpointStep(ctx, sess.RunID, false), nil
	}
	return e.questionStep(ctx, sess.QuestionID, sess.RunID, false)
}

// Cancel drops the user's survey session. It reports whether one was active.
// The open response is kept until the next Start.
func (e *Engine) Cancel(ctx context.Context, userID int64) (bool, error) {
	unlock := e.locks.lock(userID)
	defer unlock()

	sess, err := e.sessions.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	if !surveyState(sess.State) {
		return false, nil
	}
	if err := e.sessions.Clear(ctx, userID); err != nil {
		return false, err
	}
	logger.LogEvent(logger.WithRunID(ctx, sess.RunID), logger.SVCSurvey, slog.LevelInfo, "survey.cancel",
		slog.Int64("user_id", userID),
		slog.String("question_id", sess.QuestionID),
	)
	return true, nil
}

// Active reports whether the user is inside a survey.
func (e *Engine) Active(ctx context.Context, userID int64) bool {
	sess, err := e.sessions.Get(ctx, userID)
	return err == nil && surveyState(sess.State)
}

func surveyState(st state.State) bool {
	return st == StateAnswering || st == StateCheckpoint
}

func (e *Engine) session(ctx context.Context, userID int64) (state.Session, error) {
	sess, err := e.sessions.Get(ctx, userID)
	if err != nil {
		return state.Session{}, e.fail(ctx, userID, "survey.session", err)
	}
	if !surveyState(sess.State) {
		return state.Session{}, ErrStaleSubmission
	}
	return sess, nil
}

func (e *Engine) submit(ctx context.Context, userID int64, sess state.Session, questionID, raw string) (*Step, error) {
	ctx = logger.WithRunID(ctx, sess.RunID)

	if sess.State == StateCheckpoint {
		return e.resume(ctx, userID, sess, questionID, raw)
	}
	if questionID != sess.QuestionID {
		logger.LogEvent(ctx, logger.SVCSurvey, slog.LevelDebug, "survey.answer",
			slog.String("status", "stale"),
			slog.String("question_id", questionID),
			slog.String("step", "question"),
		)
		return nil, ErrStaleSubmission
	}

	q, err := e.graph.Get(questionID)
	if err != nil {
		logger.LogEvent(ctx, logger.SVCSurvey, slog.LevelError, "survey.answer",
			slog.String("status", "fail"),
			slog.String("question_id", questionID),
			slog.String("err", err.Error()),
		)
		return nil, err
	}
	value, ok := q.Accepts(raw)
	if !ok {
		logger.LogEvent(ctx, logger.SVCSurvey, slog.LevelDebug, "survey.answer",
			slog.String("status", "rejected"),
			slog.String("question_id", q.ID),
		)
		return e.questionStep(ctx, q.ID, sess.RunID, true)
	}

	if q.Terminal() {
		return e.finish(ctx, userID, sess, q, value)
	}

	at := e.now()
	err = e.st.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.SaveAnswerField(ctx, userID, q.Field, value, at); err != nil {
			return err
		}
		if err := tx.TouchUser(ctx, userID, at); err != nil {
			return err
		}
		return e.activity.Record(ctx, tx, at)
	})
	if err != nil {
		return nil, e.fail(ctx, userID, "survey.answer", err)
	}

	next := sess
	next.UpdatedAt = at
	if e.graph.IsCheckpoint(q.ID) {
		next.State = StateCheckpoint
		next.QuestionID = questions.CheckpointID
		next.Data = map[string]string{dataNext: q.Next}
	} else {
		next.QuestionID = q.Next
	}
	if err := e.sessions.Put(ctx, userID, next); err != nil {
		return nil, e.fail(ctx, userID, "survey.answer", err)
	}
	logger.LogEvent(ctx, logger.SVCSurvey, slog.LevelInfo, "survey.answer",
		slog.String("status", "ok"),
		slog.String("question_id", q.ID),
		slog.String("step", stepName(next.State)),
	)
	if next.State == StateCheckpoint {
		return e.checkpointStep(ctx, sess.RunID, false), nil
	}
	return e.questionStep(ctx, q.Next, sess.RunID, false)
}

// resume handles input while the checkpoint is pending.
func (e *Engine) resume(ctx context.Context, userID int64, sess state.Session, questionID, raw string) (*Step, error) {
	if questionID != questions.CheckpointID {
		return nil, ErrStaleSubmission
	}
	if strings.TrimSpace(raw) != questions.ContinueSignal {
		logger.LogEvent(ctx, logger.SVCSurvey, slog.LevelDebug, "survey.checkpoint",
			slog.String("status", "rejected"),
			slog.String("step", "checkpoint"),
		)
		return e.checkpointStep(ctx, sess.RunID, true), nil
	}
	nextID := sess.Data[dataNext]
	if _, err := e.graph.Get(nextID); err != nil {
		return nil, err
	}
	next := state.Session{
		State:      StateAnswering,
		QuestionID: nextID,
		RunID:      sess.RunID,
		UpdatedAt:  e.now(),
	}
	if err := e.sessions.Put(ctx, userID, next); err != nil {
		return nil, e.fail(ctx, userID, "survey.checkpoint", err)
	}
	logger.LogEvent(ctx, logger.SVCSurvey, slog.LevelInfo, "survey.checkpoint",
		slog.String("status", "ok"),
		slog.String("question_id", nextID),
		slog.String("step", "question"),
	)
	return e.questionStep(ctx, nextID, sess.RunID, false)
}

// finish stores the terminal answer and closes the response in one transaction.
func (e *Engine) finish(ctx context.Context, userID int64, sess state.Session, q questions.Question, value string) (*Step, error) {
	at := e.now()
	var (
		resp *store.SurveyResponse
		user *store.User
	)
	err := e.st.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.SaveAnswerField(ctx, userID, q.Field, value, at); err != nil {
			return err
		}
		var err error
		if resp, err = tx.FinalizeOpenResponse(ctx, userID, at); err != nil {
			return err
		}
		if resp == nil {
			return fmt.Errorf("no open response for user %d", userID)
		}
		if err := tx.MarkSurveyCompleted(ctx, userID); err != nil {
			return err
		}
		if err := tx.TouchUser(ctx, userID, at); err != nil {
			return err
		}
		if user, err = tx.User(ctx, userID); err != nil {
			return err
		}
		return e.activity.Record(ctx, tx, at)
	})
	if err != nil {
		return nil, e.fail(ctx, userID, "survey.complete", err)
	}
	if err := e.sessions.Clear(ctx, userID); err != nil {
		logger.LogEvent(ctx, logger.SVCSurvey, slog.LevelWarn, "survey.complete",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}

	ageBracket, _ := resp.Answer(questions.AgeBracketField)
	logger.LogEvent(ctx, logger.SVCSurvey, slog.LevelInfo, "survey.complete",
		slog.String("status", "ok"),
		slog.Int64("response_id", resp.ID),
		slog.String("age_bracket", ageBracket),
		slog.String("step", "completed"),
	)
	return &Step{
		Kind:         StepCompleted,
		QuestionID:   q.ID,
		RunID:        sess.RunID,
		FinalMessage: e.FinalMessage(ctx, resp),
		Summary:      e.Summary(ctx, user, resp),
		Response:     resp,
	}, nil
}

// FinalMessage renders the closing text; the age bracket selects the list of support options.
func (e *Engine) FinalMessage(ctx context.Context, resp *store.SurveyResponse) string {
	variant := "survey_final_over_25"
	if v, _ := resp.Answer(questions.AgeBracketField); v == questions.AgeBracketUnder25 {
		variant = "survey_final_under_25"
	}
	return e.texts.Resolve(ctx, "survey_final_base", texts.CategorySurvey) +
		e.texts.Resolve(ctx, variant, texts.CategorySurvey) +
		e.texts.Resolve(ctx, "survey_final_steps", texts.CategorySurvey)
}

// Summary renders the operator report of a completed response.
func (e *Engine) Summary(ctx context.Context, user *store.User, resp *store.SurveyResponse) string {
	var b strings.Builder
	b.WriteString(e.texts.Resolve(ctx, "survey_result_header", texts.CategorySurvey))
	b.WriteString("\n")
	username, userID := "", resp.UserID
	if user != nil {
		username = user.Username
	}
	b.WriteString(e.texts.Format(ctx, "survey_result_user_info", texts.CategorySurvey, map[string]string{
		"username": username,
		"user_id":  strconv.FormatInt(userID, 10),
	}))
	b.WriteString("\n\n")
	b.WriteString(e.texts.Resolve(ctx, "survey_result_answers_header", texts.CategorySurvey))
	b.WriteString("\n\n")
	for _, field := range e.graph.Fields() {
		answer, ok := resp.Answer(field)
		if !ok || answer == "" {
			continue
		}
		label := questions.Labels[field]
		if label == "" {
			label = field
		}
		b.WriteString("❓ " + label + "\n")
		b.WriteString("✅ " + answer + "\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (e *Engine) questionStep(ctx context.Context, id, runID string, rejected bool) (*Step, error) {
	q, err := e.graph.Get(id)
	if err != nil {
		return nil, err
	}
	prompt := e.texts.Resolve(ctx, q.PromptKey, texts.CategoryQuestions)
	if rejected {
		prompt = e.texts.Resolve(ctx, "select_answer", texts.CategorySurvey) + "\n\n" + prompt
	}
	return &Step{
		Kind:       StepQuestion,
		Rejected:   rejected,
		QuestionID: q.ID,
		Prompt:     prompt,
		Options:    q.Options,
		Position:   e.graph.Position(q.ID),
		Total:      e.graph.Len(),
		RunID:      runID,
	}, nil
}

func (e *Engine) checkpointStep(ctx context.Context, runID string, rejected bool) *Step {
	return &Step{
		Kind:       StepCheckpoint,
		Rejected:   rejected,
		QuestionID: questions.CheckpointID,
		Prompt:     e.texts.Resolve(ctx, "checkpoint", texts.CategorySurvey),
		Options:    []string{e.texts.Resolve(ctx, "btn_continue", texts.CategorySurvey)},
		RunID:      runID,
	}
}

// fail logs a persistence failure, resets the session and returns ErrSurveyFailed.
func (e *Engine) fail(ctx context.Context, userID int64, event string, err error) error {
	e.logFailure(ctx, event, err)
	if clearErr := e.sessions.Clear(ctx, userID); clearErr != nil {
		e.logFailure(ctx, "survey.reset", clearErr)
	}
	return fmt.Errorf("%w: %w", ErrSurveyFailed, err)
}

func (e *Engine) logFailure(ctx context.Context, event string, err error) {
	logger.LogEvent(ctx, logger.SVCSurvey, slog.LevelError, event,
		slog.String("status", "fail"),
		slog.String("err", err.Error()),
	)
}

func stepName(st state.State) string {
	if st == StateCheckpoint {
		return "checkpoint"
	}
	return "question"
}
