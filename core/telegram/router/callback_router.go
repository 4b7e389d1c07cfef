package router

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/surveybot/core/telegram"
	"github.com/m3rciful/surveybot/core/telegram/callbacks"
)

// CallbackOptions sets the handler for unknown callback keys. When nil the
// registry's fallback is used.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute dispatches inline button presses by their unique key. The
// query is always answered so the client stops its spinner.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		// A second answer is rejected by Telegram when the handler already responded.
		defer func() { _ = c.Respond() }()

		key, _ := callbacks.ParseCallbackData(cb)
		extras := []slog.Attr{slog.String("cb_key", key)}
		h, ok := reg.Callback(key)
		if !ok {
			h = opts.NotFound
			if h == nil {
				h = reg.CallbackNotFound()
			}
			extras = append(extras, slog.String("cause", "not_found"))
		}
		return dispatch(c, "callback."+handlerName(key), h, extras...)
	}
	return tg.Route{Endpoint: tele.OnCallback, Handler: wrap(handler)}
}
