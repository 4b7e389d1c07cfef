package bot

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/surveybot/core/logger"
	"github.com/m3rciful/surveybot/core/telegram/format"
	tghelpers "github.com/m3rciful/surveybot/core/telegram/helpers"
	"github.com/m3rciful/surveybot/core/telegram/keyboard"
	"github.com/m3rciful/surveybot/core/telegram/state"
	"github.com/m3rciful/surveybot/internal/reports"
	"github.com/m3rciful/surveybot/internal/texts"
)

// mailingTimeout bounds one broadcast, queued sends included.
const mailingTimeout = 30 * time.Minute

func (h *Handlers) onAdmin(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	userID := c.Sender().ID
	if h.cfg.AdminPassword == "" {
		return h.openPanel(c)
	}
	if err := h.fsm.Manager().Put(ctx, userID, state.Session{State: StateAdminPassword}); err != nil {
		return err
	}
	return tghelpers.SendText(c, h.system(c, "enter_password"))
}

func (h *Handlers) onAdminPassword(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	userID := c.Sender().ID
	if !h.cfg.IsAdmin(userID) {
		_ = h.fsm.Manager().Clear(ctx, userID)
		return h.OnAdminReject(c)
	}
	given := strings.TrimSpace(c.Text())
	if subtle.ConstantTimeCompare([]byte(given), []byte(h.cfg.AdminPassword)) != 1 {
		logger.LogEvent(ctx, logger.TG, slog.LevelWarn, "admin.login",
			slog.String("status", "fail"),
			slog.String("reason", "wrong_password"),
		)
		if err := h.fsm.Manager().Clear(ctx, userID); err != nil {
			return err
		}
		return tghelpers.SendText(c, h.system(c, "wrong_password"))
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "admin.login", slog.String("status", "ok"))
	return h.openPanel(c)
}

func (h *Handlers) openPanel(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	if err := h.fsm.Manager().Put(ctx, c.Sender().ID, state.Session{State: StateAdminPanel}); err != nil {
		return err
	}
	return tghelpers.SendText(c, h.system(c, "admin_msg"), &tele.SendOptions{ReplyMarkup: h.adminMenu(ctx)})
}

func (h *Handlers) adminMenu(ctx context.Context) *tele.ReplyMarkup {
	label := func(key string) string { return h.catalog.Resolve(ctx, key, texts.CategorySystem) }
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: label("btn_activity_stats"), Unique: CbActivityStats},
		{Text: label("btn_user_stats"), Unique: CbUserStats},
		{Text: label("btn_mailing"), Unique: CbMailing},
	})
}

// onStats prints the statistics summary, optionally as of the given date.
func (h *Handlers) onStats(c tele.Context) error {
	at := h.now()
	if arg := strings.TrimSpace(c.Message().Payload); arg != "" {
		parsed, ok := tghelpers.ParseReportDate(arg)
		if !ok {
			return tghelpers.SendText(c, h.system(c, "stats_usage"))
		}
		at = parsed
	}
	text, err := h.reporter.StatsText(tghelpers.BuildContext(c), at)
	if err != nil {
		return err
	}
	return tghelpers.SendText(c, text)
}

// onSetText handles "/settext <category> <key> <text>".
func (h *Handlers) onSetText(c tele.Context) error {
	parts := strings.SplitN(strings.TrimSpace(c.Message().Payload), " ", 3)
	if len(parts) < 3 || strings.TrimSpace(parts[2]) == "" || !slices.Contains(h.catalog.Categories(), parts[0]) {
		return tghelpers.SendText(c, h.system(c, "settext_usage"))
	}
	category, key, text := parts[0], parts[1], strings.TrimSpace(parts[2])
	if err := h.catalog.Define(tghelpers.BuildContext(c), key, category, text); err != nil {
		return err
	}
	return tghelpers.SendText(c, h.system(c, "text_updated"))
}

func (h *Handlers) onActivityStats(c tele.Context) error {
	path, err := h.reporter.ActivityWorkbook(tghelpers.BuildContext(c), h.now())
	if err != nil {
		return err
	}
	return h.sendReport(c, path)
}

func (h *Handlers) onUserStats(c tele.Context) error {
	path, err := h.reporter.UsersWorkbook(tghelpers.BuildContext(c))
	if err != nil {
		return err
	}
	return h.sendReport(c, path)
}

// sendReport uploads a workbook and removes it once the upload settled.
func (h *Handlers) sendReport(c tele.Context, path string) error {
	ctx := tghelpers.BuildContext(c)
	return tghelpers.SendDocument(c, path, filepath.Base(path), "", func(err error) {
		rmErr := os.Remove(path)
		attrs := []slog.Attr{
			slog.String("status", logger.Status(err)),
			slog.String("file", filepath.Base(path)),
		}
		if rmErr != nil {
			attrs = append(attrs, slog.String("cleanup_err", rmErr.Error()))
		}
		logger.LogEvent(ctx, logger.SVCReports, slog.LevelInfo, "report.sent", attrs...)
	})
}

func (h *Handlers) onMailing(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	if err := h.fsm.Manager().Put(ctx, c.Sender().ID, state.Session{State: StateAdminMailing}); err != nil {
		return err
	}
	markup := keyboard.SingleCancelMarkup(CbCancelMailing, "cancel", h.system(c, "btn_cancel_mailing"))
	return tghelpers.SendText(c, h.system(c, "mailing_prompt"), &tele.SendOptions{ReplyMarkup: markup})
}

// onMailingText stores the draft and asks for confirmation.
func (h *Handlers) onMailingText(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	userID := c.Sender().ID
	if !h.cfg.IsAdmin(userID) {
		_ = h.fsm.Manager().Clear(ctx, userID)
		return h.OnAdminReject(c)
	}
	text := strings.TrimSpace(c.Text())
	if text == "" {
		return tghelpers.SendText(c, h.system(c, "mailing_prompt"))
	}
	sess := state.Session{
		State: StateAdminMailingConfirm,
		Data:  map[string]string{dataMailingText: text},
	}
	if err := h.fsm.Manager().Put(ctx, userID, sess); err != nil {
		return err
	}
	markup := keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: h.system(c, "btn_confirm"), Unique: CbConfirmMailing},
		{Text: h.system(c, "btn_cancel_mailing"), Unique: CbCancelMailing},
	})
	preview := h.system(c, "mailing_confirm") + "\n\n" + text
	return tghelpers.SendText(c, preview, &tele.SendOptions{ReplyMarkup: markup})
}

func (h *Handlers) onConfirmMailing(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	adminID := c.Sender().ID
	sess, err := h.fsm.Manager().Get(ctx, adminID)
	if err != nil {
		return err
	}
	text := sess.Data[dataMailingText]
	if err := h.fsm.Manager().Put(ctx, adminID, state.Session{State: StateAdminPanel}); err != nil {
		return err
	}
	if text == "" {
		return tghelpers.SendText(c, h.system(c, "mailing_cancelled"))
	}
	recipients, err := h.st.ListUserIDs(ctx)
	if err != nil {
		return err
	}
	if err := tghelpers.EditOrSendMD(c, format.EscapeMD(h.system(c, "mailing_started"))); err != nil {
		return err
	}

	out := h.sender(c)
	h.mailings.Add(1)
	go func() {
		defer h.mailings.Done()
		h.broadcast(context.WithoutCancel(ctx), out, adminID, text, recipients)
	}()
	return nil
}

// broadcast delivers text to every recipient and reports the totals to the admin.
func (h *Handlers) broadcast(ctx context.Context, out tghelpers.Sender, adminID int64, text string, recipients []int64) {
	ctx, cancel := context.WithTimeout(ctx, mailingTimeout)
	defer cancel()

	res := reports.Broadcast(ctx, recipients, func(ctx context.Context, userID int64, done func(error)) error {
		return tghelpers.SendTo(ctx, out, &tele.User{ID: userID}, text, nil, done)
	})
	summary := h.catalog.Format(ctx, "mailing_done", texts.CategorySystem, map[string]string{
		"delivered":   strconv.Itoa(res.Delivered),
		"failed":      strconv.Itoa(res.Failed),
		"unreachable": strconv.Itoa(res.Unreachable),
	})
	_ = tghelpers.SendTo(ctx, out, &tele.User{ID: adminID}, summary, nil, nil)
}

func (h *Handlers) onCancelMailing(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	if err := h.fsm.Manager().Put(ctx, c.Sender().ID, state.Session{State: StateAdminPanel}); err != nil {
		return err
	}
	return tghelpers.EditOrSendMD(c, format.EscapeMD(h.system(c, "mailing_cancelled")), h.adminMenu(ctx))
}

// Wait blocks until running mailings have finished.
func (h *Handlers) Wait() { h.mailings.Wait() }
