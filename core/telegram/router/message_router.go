package router

import (
	"context"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/surveybot/core/telegram"
	tghelpers "github.com/m3rciful/surveybot/core/telegram/helpers"
)

// FSM routes free-form input to the handler bound to the sender's conversation state.
type FSM interface {
	InProgress(ctx context.Context, userID int64) bool
	ManagerHandler(c tele.Context) error
}

// TextOptions sets the fallbacks for text and documents nobody expects.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// TextRoutes handles plain text and documents. An active conversation wins
// over command lookup, so a typed answer is never taken for a command.
// Outside a conversation a bare public command word, e.g. "start", runs
// that command.
func TextRoutes(fsm FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	onText := func(c tele.Context) error {
		if inProgress(c, fsm) {
			return dispatch(c, "fsm", fsm.ManagerHandler)
		}
		if reg != nil {
			if cmd, ok := reg.Command(c.Text()); ok && !cmd.AdminOnly {
				return dispatch(c, "cmd."+handlerName(c.Text()), cmd.Handler)
			}
		}
		return dispatch(c, "unknown_text", opts.UnknownText)
	}
	onDocument := func(c tele.Context) error {
		if inProgress(c, fsm) {
			return dispatch(c, "fsm_document", fsm.ManagerHandler)
		}
		return dispatch(c, "unexpected_document", opts.UnknownDocument)
	}
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(onText)},
		{Endpoint: tele.OnDocument, Handler: wrap(onDocument)},
	}
}

func inProgress(c tele.Context, fsm FSM) bool {
	if fsm == nil || c.Sender() == nil {
		return false
	}
	return fsm.InProgress(tghelpers.BuildContext(c), c.Sender().ID)
}
