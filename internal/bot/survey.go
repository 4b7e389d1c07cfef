package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/surveybot/core/logger"
	"github.com/m3rciful/surveybot/core/telegram/callbacks"
	"github.com/m3rciful/surveybot/core/telegram/format"
	tghelpers "github.com/m3rciful/surveybot/core/telegram/helpers"
	"github.com/m3rciful/surveybot/core/telegram/keyboard"
	"github.com/m3rciful/surveybot/internal/survey"
	"github.com/m3rciful/surveybot/internal/texts"
)

func (h *Handlers) onSurveyStart(c tele.Context) error {
	if c.Sender() == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	step, err := h.engine.Start(ctx, profileOf(c.Sender()))
	if err != nil {
		return h.sendError(c, err)
	}
	if err := tghelpers.SendText(c, h.surveyText(c, "start_survey")); err != nil {
		return err
	}
	return h.renderStep(c, step)
}

func (h *Handlers) onSurveyAnswer(c tele.Context) error {
	if c.Sender() == nil {
		return nil
	}
	qid, idx, err := callbacks.PayloadKeyIndex(c, payloadSep)
	if err != nil {
		return h.UnknownCallback()(c)
	}
	q, err := h.engine.Graph().Get(qid)
	if err != nil {
		return h.UnknownCallback()(c)
	}
	option, ok := q.Option(idx)
	if !ok {
		return h.UnknownCallback()(c)
	}
	step, err := h.engine.SubmitAnswer(tghelpers.BuildContext(c), c.Sender().ID, qid, option)
	return h.afterSubmit(c, step, err)
}

func (h *Handlers) onSurveyContinue(c tele.Context) error {
	if c.Sender() == nil {
		return nil
	}
	step, err := h.engine.Continue(tghelpers.BuildContext(c), c.Sender().ID)
	return h.afterSubmit(c, step, err)
}

func (h *Handlers) onSurveyText(c tele.Context) error {
	if c.Sender() == nil {
		return nil
	}
	step, err := h.engine.SubmitText(tghelpers.BuildContext(c), c.Sender().ID, c.Text())
	return h.afterSubmit(c, step, err)
}

// afterSubmit renders the engine outcome of one submission.
func (h *Handlers) afterSubmit(c tele.Context, step *survey.Step, err error) error {
	switch {
	case err == nil:
		return h.renderStep(c, step)
	case errors.Is(err, survey.ErrStaleSubmission):
		return h.reprompt(c)
	case errors.Is(err, survey.ErrSurveyFailed):
		return h.sendError(c, err)
	default:
		return err
	}
}

// reprompt answers a stale submission with the question the user is actually on.
func (h *Handlers) reprompt(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	step, err := h.engine.Current(ctx, c.Sender().ID)
	if errors.Is(err, survey.ErrStaleSubmission) {
		if c.Callback() != nil {
			return h.UnknownCallback()(c)
		}
		return h.UnknownText()(c)
	}
	if err != nil {
		return h.afterSubmit(c, nil, err)
	}
	if err := tghelpers.SendText(c, h.surveyText(c, "stale_answer")); err != nil {
		return err
	}
	return h.renderStep(c, step)
}

func (h *Handlers) renderStep(c tele.Context, step *survey.Step) error {
	switch step.Kind {
	case survey.StepCheckpoint:
		markup := keyboard.InlineButtons([]keyboard.InlineBtn{
			{Text: step.Options[0], Unique: CbSurveyContinue},
		})
		return tghelpers.SendText(c, step.Prompt, &tele.SendOptions{ReplyMarkup: markup})
	case survey.StepCompleted:
		ctx := tghelpers.BuildContext(c)
		if err := tghelpers.SendText(c, step.FinalMessage, &tele.SendOptions{ReplyMarkup: h.finalMenu(ctx)}); err != nil {
			return err
		}
		return h.postSummary(c, step)
	default:
		if !step.Rejected && step.Position > 0 {
			logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelDebug, "survey.prompt",
				slog.String("question_id", step.QuestionID),
				slog.String("progress", fmt.Sprintf("%d/%d", step.Position, step.Total)),
			)
		}
		if len(step.Options) == 0 {
			return tghelpers.SendText(c, step.Prompt)
		}
		buttons := make([]keyboard.InlineBtn, len(step.Options))
		for i, opt := range step.Options {
			buttons[i] = keyboard.InlineBtn{
				Text:   opt,
				Unique: CbSurveyAnswer,
				Data:   callbacks.KeyIndex(step.QuestionID, i, payloadSep),
			}
		}
		return tghelpers.SendText(c, step.Prompt, &tele.SendOptions{ReplyMarkup: keyboard.InlineButtons(buttons)})
	}
}

// postSummary forwards the completed response to the operator channel.
func (h *Handlers) postSummary(c tele.Context, step *survey.Step) error {
	if h.cfg.ChannelID == 0 {
		return nil
	}
	ctx := logger.WithRunID(tghelpers.BuildContext(c), step.RunID)
	responseID := int64(0)
	if step.Response != nil {
		responseID = step.Response.ID
	}
	done := func(err error) {
		logger.LogEvent(ctx, logger.SVCSurvey, slog.LevelInfo, "survey.summary",
			slog.String("status", logger.Status(err)),
			slog.Int64("channel_id", h.cfg.ChannelID),
			slog.Int64("response_id", responseID),
		)
	}
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdown}
	return tghelpers.SendTo(ctx, h.sender(c), &tele.Chat{ID: h.cfg.ChannelID}, format.EscapeMD(step.Summary), opts, done)
}

func (h *Handlers) finalMenu(ctx context.Context) *tele.ReplyMarkup {
	btn := func(key string) string { return h.catalog.Resolve(ctx, key, texts.CategorySurvey) }
	rows := [][]keyboard.InlineBtn{
		{{Text: btn("btn_start_preparation"), Unique: CbStartPreparation}},
		{{Text: btn("btn_get_guide"), Unique: CbGetGuide}},
		{{Text: btn("btn_contact_expert"), Unique: CbContactExpert}},
	}
	if h.cfg.FAQURL != "" {
		rows = append(rows, []keyboard.InlineBtn{{Text: btn("btn_faq"), URL: h.cfg.FAQURL}})
	}
	return keyboard.InlineButtonsRows(rows...)
}

// finalChoice answers one of the buttons shown after the survey.
func (h *Handlers) finalChoice(key string, url func() string) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		markup := h.mainMenu(ctx)
		if link := url(); link != "" {
			btn := keyboard.InlineBtn{Text: h.catalog.Resolve(ctx, "btn_"+key, texts.CategorySurvey), URL: link}
			markup = keyboard.InlineButtonsRows([]keyboard.InlineBtn{btn}, h.menuButtons(ctx))
		}
		return tghelpers.SendText(c, h.surveyText(c, key), &tele.SendOptions{ReplyMarkup: markup})
	}
}

func (h *Handlers) onGetGuide(c tele.Context) error {
	path := h.cfg.GuidePath
	if path == "" {
		return tghelpers.SendText(c, h.system(c, "guide_unavailable"))
	}
	if _, err := os.Stat(path); err != nil {
		logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelWarn, "guide.missing",
			slog.String("path", path),
			slog.String("err", err.Error()),
		)
		return tghelpers.SendText(c, h.system(c, "guide_unavailable"))
	}
	if err := tghelpers.SendText(c, h.surveyText(c, "get_guide")); err != nil {
		return err
	}
	return tghelpers.SendDocument(c, path, filepath.Base(path), "", nil)
}
