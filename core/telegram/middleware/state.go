package middleware

import (
	"context"
	"log/slog"
	"slices"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/surveybot/core/logger"
	tghelpers "github.com/m3rciful/surveybot/core/telegram/helpers"
)

// StateGetter reports the conversation state currently stored for a user.
type StateGetter interface {
	StateOf(ctx context.Context, userID int64) string
}

// State gates a handler on the sender's conversation state. Updates from
// users in any other state go to onMismatch, or are dropped when it is nil.
func State(mgr StateGetter, onMismatch tele.HandlerFunc, expected ...string) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil {
				return nil
			}
			ctx := tghelpers.BuildContext(c)
			current := mgr.StateOf(ctx, user.ID)
			matched := slices.Contains(expected, current)

			outcome, handler := "skip", onMismatch
			if matched {
				outcome, handler = "match", next
			}
			logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "fsm."+outcome, slog.String("state", current))
			if handler == nil {
				return nil
			}
			return handler(c)
		}
	}
}
