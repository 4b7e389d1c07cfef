// Package bot binds the survey engine, the text catalog and the admin tools to
// Telegram commands, callbacks and conversation states.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/surveybot/core/logger"
	tg "github.com/m3rciful/surveybot/core/telegram"
	"github.com/m3rciful/surveybot/core/telegram/commands"
	tghelpers "github.com/m3rciful/surveybot/core/telegram/helpers"
	"github.com/m3rciful/surveybot/core/telegram/keyboard"
	"github.com/m3rciful/surveybot/core/telegram/middleware"
	"github.com/m3rciful/surveybot/core/telegram/state"
	"github.com/m3rciful/surveybot/internal/reports"
	"github.com/m3rciful/surveybot/internal/store"
	"github.com/m3rciful/surveybot/internal/survey"
	"github.com/m3rciful/surveybot/internal/texts"
)

// Callback keys.
const (
	CbSurveyStart      = "survey_start"
	CbSurveyAnswer     = "survey_answer"
	CbSurveyContinue   = "survey_continue"
	CbStartPreparation = "start_preparation"
	CbGetGuide         = "get_guide"
	CbContactExpert    = "contact_expert"

	CbActivityStats  = "admin_activity_stats"
	CbUserStats      = "admin_user_stats"
	CbMailing        = "admin_mailing"
	CbConfirmMailing = "confirm_mailing"
	CbCancelMailing  = "cancel_mailing"
)

// Admin conversation states.
const (
	StateAdminPassword       state.State = "admin_password"
	StateAdminPanel          state.State = "admin_panel"
	StateAdminMailing        state.State = "admin_mailing"
	StateAdminMailingConfirm state.State = "admin_mailing_confirm"
)

const (
	payloadSep      = "|"
	dataMailingText = "text"
)

// Catalog is the text lookup and editing surface used by handlers.
type Catalog interface {
	survey.Texts
	Define(ctx context.Context, key, category, text string) error
	Categories() []string
}

// Settings carries the bot-level configuration values.
type Settings struct {
	// ChannelID receives the summary of every completed survey; 0 disables posting.
	ChannelID     int64
	AdminPassword string
	FAQURL        string
	// PreparationURL and ExpertURL, when set, are attached to the matching final choice.
	PreparationURL string
	ExpertURL      string
	GuidePath      string
	IsAdmin        func(userID int64) bool
}

// Deps are the collaborators of Handlers.
type Deps struct {
	Engine   *survey.Engine
	Catalog  Catalog
	Reporter *reports.Reporter
	Store    *store.Store
	FSM      *state.FSM
	// Outbox sends messages outside the current update; defaults to c.Bot().
	Outbox tghelpers.Sender
	Now    func() time.Time
}

// Handlers implements every Telegram entry point of the bot.
type Handlers struct {
	cfg      Settings
	engine   *survey.Engine
	catalog  Catalog
	reporter *reports.Reporter
	st       *store.Store
	fsm      *state.FSM
	outbox   tghelpers.Sender
	now      func() time.Time
	mailings sync.WaitGroup
}

// New validates deps and returns Handlers.
func New(cfg Settings, deps Deps) (*Handlers, error) {
	switch {
	case deps.Engine == nil:
		return nil, errors.New("bot: nil survey engine")
	case deps.Catalog == nil:
		return nil, errors.New("bot: nil text catalog")
	case deps.Reporter == nil:
		return nil, errors.New("bot: nil reporter")
	case deps.Store == nil:
		return nil, errors.New("bot: nil store")
	case deps.FSM == nil:
		return nil, errors.New("bot: nil fsm")
	}
	if cfg.IsAdmin == nil {
		cfg.IsAdmin = func(int64) bool { return false }
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Handlers{
		cfg:      cfg,
		engine:   deps.Engine,
		catalog:  deps.Catalog,
		reporter: deps.Reporter,
		st:       deps.Store,
		fsm:      deps.FSM,
		outbox:   deps.Outbox,
		now:      now,
	}, nil
}

// Register wires commands, callbacks and conversation states.
func (h *Handlers) Register(reg *tg.Registry) error {
	cmds := map[string]commands.Command{
		"/start":   {Handler: h.onStart, Description: "Главное меню"},
		"/cancel":  {Handler: h.onCancel, Description: "Отменить текущее действие"},
		"/admin":   {Handler: h.onAdmin, Description: "Админ панель", AdminOnly: true},
		"/stats":   {Handler: h.onStats, Description: "Статистика", AdminOnly: true},
		"/settext": {Handler: h.onSetText, Description: "Изменить текст", AdminOnly: true, Hidden: true},
	}
	for name, cmd := range cmds {
		if err := reg.RegisterCommand(name, cmd); err != nil {
			return err
		}
	}

	callbacks := map[string]tele.HandlerFunc{
		CbSurveyStart:      h.onSurveyStart,
		CbSurveyAnswer:     h.onSurveyAnswer,
		CbSurveyContinue:   h.onSurveyContinue,
		CbStartPreparation: h.finalChoice("start_preparation", func() string { return h.cfg.PreparationURL }),
		CbContactExpert:    h.finalChoice("contact_expert", func() string { return h.cfg.ExpertURL }),
		CbGetGuide:         h.onGetGuide,

		CbActivityStats:  h.admin(h.onActivityStats, StateAdminPanel),
		CbUserStats:      h.admin(h.onUserStats, StateAdminPanel),
		CbMailing:        h.admin(h.onMailing, StateAdminPanel),
		CbConfirmMailing: h.admin(h.onConfirmMailing, StateAdminMailingConfirm),
		CbCancelMailing:  h.admin(h.onCancelMailing, StateAdminMailing, StateAdminMailingConfirm),
	}
	for key, handler := range callbacks {
		if err := reg.RegisterCallback(key, handler); err != nil {
			return err
		}
	}
	reg.SetCallbackNotFound(h.UnknownCallback())

	h.fsm.Register(survey.StateAnswering, h.onSurveyText)
	h.fsm.Register(survey.StateCheckpoint, h.onSurveyText)
	h.fsm.Register(StateAdminPassword, h.onAdminPassword)
	h.fsm.Register(StateAdminMailing, h.onMailingText)
	return nil
}

// UnknownText answers messages that match no command or conversation.
func (h *Handlers) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, h.system(c, "unknown_message"))
	}
}

// UnknownDocument answers unexpected uploads.
func (h *Handlers) UnknownDocument() tele.HandlerFunc {
	return h.UnknownText()
}

// UnknownCallback answers buttons whose handler no longer exists.
func (h *Handlers) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: "Кнопка устарела"})
	}
}

// IsAdmin reports whether userID may use admin commands.
func (h *Handlers) IsAdmin(userID int64) bool { return h.cfg.IsAdmin(userID) }

// OnAdminReject answers non-admins that reach an admin-only command.
func (h *Handlers) OnAdminReject(c tele.Context) error {
	return tghelpers.SendText(c, h.system(c, "access_denied"))
}

func (h *Handlers) onStart(c tele.Context) error {
	if c.Sender() == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	if _, _, err := h.engine.Register(ctx, profileOf(c.Sender())); err != nil {
		return h.sendError(c, err)
	}
	return tghelpers.SendText(c, h.system(c, "start"), &tele.SendOptions{ReplyMarkup: h.mainMenu(ctx)})
}

func (h *Handlers) onCancel(c tele.Context) error {
	if c.Sender() == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	userID := c.Sender().ID
	if _, err := h.engine.Cancel(ctx, userID); err != nil {
		return err
	}
	if err := h.fsm.Manager().Clear(ctx, userID); err != nil {
		return err
	}
	return tghelpers.SendText(c, h.system(c, "cancelled"), &tele.SendOptions{ReplyMarkup: keyboard.RemoveKeyboard()})
}

// admin gates an admin callback on operator identity and conversation state.
func (h *Handlers) admin(next tele.HandlerFunc, states ...state.State) tele.HandlerFunc {
	expected := make([]string, len(states))
	for i, st := range states {
		expected[i] = string(st)
	}
	gated := middleware.State(h.fsm, h.UnknownCallback(), expected...)(next)
	return middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		IsAdmin:  h.cfg.IsAdmin,
		OnReject: h.OnAdminReject,
	})(gated)
}

func (h *Handlers) menuButtons(ctx context.Context) []keyboard.InlineBtn {
	buttons := []keyboard.InlineBtn{
		{Text: h.catalog.Resolve(ctx, "btn_take_survey", texts.CategorySystem), Unique: CbSurveyStart},
	}
	if h.cfg.FAQURL != "" {
		buttons = append(buttons, keyboard.InlineBtn{
			Text: h.catalog.Resolve(ctx, "btn_faq", texts.CategorySystem),
			URL:  h.cfg.FAQURL,
		})
	}
	return buttons
}

func (h *Handlers) mainMenu(ctx context.Context) *tele.ReplyMarkup {
	return keyboard.InlineButtonsNPerRow(h.menuButtons(ctx), 2)
}

func (h *Handlers) system(c tele.Context, key string) string {
	return h.catalog.Resolve(tghelpers.BuildContext(c), key, texts.CategorySystem)
}

func (h *Handlers) surveyText(c tele.Context, key string) string {
	return h.catalog.Resolve(tghelpers.BuildContext(c), key, texts.CategorySurvey)
}

func (h *Handlers) sender(c tele.Context) tghelpers.Sender {
	if h.outbox != nil {
		return h.outbox
	}
	return c.Bot()
}

// sendError reports a failed operation to the user; the cause is already logged.
func (h *Handlers) sendError(c tele.Context, err error) error {
	logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelWarn, "handler.error",
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
	)
	return tghelpers.SendText(c, h.system(c, "error_survey"))
}

func profileOf(u *tele.User) store.Profile {
	return store.Profile{
		UserID:    u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}
