package helpers

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/surveybot/core/logger"
	"github.com/m3rciful/surveybot/core/telegram/sender"
)

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher routes the send helpers through d. With nil they send inline.
func SetDispatcher(d *sender.Dispatcher) {
	dispatcher.Store(d)
}

// Sender is satisfied by *tele.Bot.
type Sender interface {
	Send(to tele.Recipient, what any, opts ...any) (*tele.Message, error)
}

// SendText replies with plain text to the chat of the update.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	send := func() error { return c.Send(text) }
	if len(opts) > 0 && opts[0] != nil {
		send = func() error { return c.Send(text, opts[0]) }
	}
	return submit(BuildContext(c), "send.text", "sendMessage", send, nil)
}

// SendDocument uploads a local file with an optional caption. done, when
// non-nil, runs after the upload finished or failed, e.g. to remove the file.
func SendDocument(c tele.Context, path, fileName, caption string, done func(error)) error {
	doc := &tele.Document{File: tele.FromDisk(path), FileName: fileName, Caption: caption}
	return submit(BuildContext(c), "send.document", "sendDocument", func() error {
		return c.Send(doc)
	}, done)
}

// SendTo delivers text to an arbitrary chat outside the update that
// triggered it, e.g. the operator channel or a mailing recipient. done,
// when non-nil, receives the final outcome.
func SendTo(ctx context.Context, bot Sender, chat tele.Recipient, text string, opts *tele.SendOptions, done func(error)) error {
	return submit(ctx, "send.to", "sendMessage", func() error {
		var err error
		if opts != nil {
			_, err = bot.Send(chat, text, opts)
		} else {
			_, err = bot.Send(chat, text)
		}
		return err
	}, done)
}

// EditOrSendMD edits the message behind a callback, or sends a new one,
// using Markdown.
func EditOrSendMD(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdown}
	if len(markup) > 0 {
		opts.ReplyMarkup = markup[0]
	}
	return c.EditOrSend(text, opts)
}

// submit queues run on the dispatcher. Without one, or when the queue
// refuses the job, run executes inline and done is called with its result.
func submit(ctx context.Context, action, endpoint string, run func() error, done func(error)) error {
	inline := func() error {
		err := run()
		if done != nil {
			done(err)
		}
		return err
	}
	d := dispatcher.Load()
	if d == nil {
		return inline()
	}
	err := d.Submit(ctx, action, endpoint, run, done)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", action),
			slog.String("endpoint", endpoint),
			slog.String("err", err.Error()),
		)
		return inline()
	}
	return err
}
