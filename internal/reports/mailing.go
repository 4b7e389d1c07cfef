package reports

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/m3rciful/surveybot/core/logger"
	"github.com/m3rciful/surveybot/core/telegram/sender"
)

// SendFunc submits one message; done is called with the delivery outcome.
// A non-nil return means the message was never queued and done will not run.
type SendFunc func(ctx context.Context, userID int64, done func(error)) error

// MailingResult counts mailing outcomes. Unreachable is the part of Failed
// where the recipient blocked the bot or no longer exists.
type MailingResult struct {
	Delivered   int
	Failed      int
	Unreachable int
}

// Broadcast sends to every recipient and waits for all outcomes or ctx.
func Broadcast(ctx context.Context, recipients []int64, send SendFunc) MailingResult {
	var (
		wg        sync.WaitGroup
		delivered   atomic.Int64
		failed      atomic.Int64
		unreachable atomic.Int64
	)
	for _, id := range recipients {
		if ctx.Err() != nil {
			failed.Add(1)
			continue
		}
		wg.Add(1)
		var once sync.Once
		done := func(err error) {
			once.Do(func() {
				if err != nil {
					failed.Add(1)
					if sender.Unreachable(err) {
						unreachable.Add(1)
					}
				} else {
					delivered.Add(1)
				}
				wg.Done()
			})
		}
		if err := send(ctx, id, done); err != nil {
			done(err)
		}
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
	}

	res := MailingResult{
		Delivered:   int(delivered.Load()),
		Failed:      int(failed.Load()),
		Unreachable: int(unreachable.Load()),
	}
	if pending := len(recipients) - res.Delivered - res.Failed; pending > 0 {
		res.Failed += pending
	}
	logger.SVCReports.Info("mailing finished",
		slog.String("event", "reports.mailing"),
		slog.Int("delivered", res.Delivered),
		slog.Int("failed", res.Failed),
		slog.Int("unreachable", res.Unreachable),
	)
	return res
}
