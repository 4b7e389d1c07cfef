package logger

import (
	"context"
	"log/slog"
)

type metaKey struct{}

// meta is the per-update correlation data carried through a context. It is
// copied on every change so parent contexts never observe child updates.
type meta struct {
	rid      string
	runID    string
	handler  string
	updateID int
	userID   int64
	chatID   int64
	log      *slog.Logger
}

func metaFrom(ctx context.Context) meta {
	if ctx == nil {
		return meta{}
	}
	m, _ := ctx.Value(metaKey{}).(meta)
	return m
}

func withMeta(ctx context.Context, change func(*meta)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	m := metaFrom(ctx)
	change(&m)
	return context.WithValue(ctx, metaKey{}, m)
}

func (m meta) fill(f fields) {
	f.fill("rid", m.rid)
	f.fill("run_id", m.runID)
	f.fill("user_id", m.userID)
	f.fill("update_id", m.updateID)
	f.fill("chat_id", m.chatID)
	f.fill("handler", m.handler)
}

// WithLogger makes log the default for LogEvent calls without a logger.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if log == nil {
		return withMeta(ctx, func(*meta) {})
	}
	return withMeta(ctx, func(m *meta) { m.log = log })
}

// FromContext returns the logger stored by WithLogger, or L.
func FromContext(ctx context.Context) *slog.Logger {
	if l := metaFrom(ctx).log; l != nil {
		return l
	}
	return L
}

// WithRID sets the request correlation id.
func WithRID(ctx context.Context, rid string) context.Context {
	return withMeta(ctx, func(m *meta) { m.rid = rid })
}

// WithUpdateMeta records the Telegram identifiers of the update being handled.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	return withMeta(ctx, func(m *meta) {
		m.updateID, m.userID, m.chatID = updateID, userID, chatID
	})
}

// WithHandler names the handler serving the update. Empty names are ignored.
func WithHandler(ctx context.Context, handler string) context.Context {
	return withMeta(ctx, func(m *meta) {
		if handler != "" {
			m.handler = handler
		}
	})
}

// WithRunID tags every record logged under ctx with a survey run id.
func WithRunID(ctx context.Context, runID string) context.Context {
	return withMeta(ctx, func(m *meta) {
		if runID != "" {
			m.runID = runID
		}
	})
}
