package middleware

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/surveybot/core/config"
	"github.com/m3rciful/surveybot/core/logger"
	tghelpers "github.com/m3rciful/surveybot/core/telegram/helpers"
)

// evictAfter is how many tracked users trigger a sweep of idle limiters.
const evictAfter = 4096

// RateLimitOptions configures RateLimitMiddleware. Exclude holds update
// kinds (see UpdateKind) that bypass the limiter.
type RateLimitOptions struct {
	Interval  time.Duration
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// perUser hands out one token bucket per user: one update per interval,
// no burst.
type perUser struct {
	mu    sync.Mutex
	every rate.Limit
	users map[int64]*userLimiter
}

func (p *perUser) allow(userID int64, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.users[userID]
	if !ok {
		if len(p.users) >= evictAfter {
			p.evictIdle(now)
		}
		u = &userLimiter{limiter: rate.NewLimiter(p.every, 1)}
		p.users[userID] = u
	}
	u.lastSeen = now
	return u.limiter.AllowN(now, 1)
}

// evictIdle drops limiters that have refilled; they behave like new ones.
func (p *perUser) evictIdle(now time.Time) {
	idle := time.Duration(float64(time.Second) / float64(p.every))
	for id, u := range p.users {
		if now.Sub(u.lastSeen) > idle {
			delete(p.users, id)
		}
	}
}

// RateLimitMiddleware drops updates that arrive faster than one per
// Interval from the same user. OnLimited, when set, answers the dropped update.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	limits := &perUser{every: rate.Every(opts.Interval), users: make(map[int64]*userLimiter)}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			kind := UpdateKind(c.Update())
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}
			if limits.allow(user.ID, time.Now()) {
				return next(c)
			}
			logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelWarn, "tg.rate_limit",
				slog.String("status", "rate_limited"),
				slog.String("kind", kind),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}

// UpdateKind names the update type the way rate_limit.exclude_updates does.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return coreconfig.UpdateCallback
	case upd.Message != nil:
		return coreconfig.UpdateMessage
	case upd.Query != nil:
		return coreconfig.UpdateInlineQuery
	}
	return "other"
}
