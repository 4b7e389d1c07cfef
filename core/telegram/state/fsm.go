package state

import (
	"context"
	"log/slog"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/surveybot/core/logger"
	tghelpers "github.com/m3rciful/surveybot/core/telegram/helpers"
)

// FSM binds conversation states to handlers and routes free-form input to them.
type FSM struct {
	mgr      Manager
	mu       sync.RWMutex
	handlers map[State]tele.HandlerFunc
}

// NewFSM wraps mgr with a handler table.
func NewFSM(mgr Manager) *FSM {
	return &FSM{mgr: mgr, handlers: make(map[State]tele.HandlerFunc)}
}

// Manager returns the underlying session store.
func (f *FSM) Manager() Manager { return f.mgr }

// Register associates a state with its handler.
func (f *FSM) Register(st State, h tele.HandlerFunc) {
	if h == nil {
		return
	}
	f.mu.Lock()
	f.handlers[st] = h
	f.mu.Unlock()
}

func (f *FSM) handler(st State) (tele.HandlerFunc, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	h, ok := f.handlers[st]
	return h, ok
}

// StateOf returns the stored state name, "idle" on lookup failure.
func (f *FSM) StateOf(ctx context.Context, userID int64) string {
	s, err := f.mgr.Get(ctx, userID)
	if err != nil {
		logger.Warn(ctx, "tg", "fsm.lookup",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return string(StateIdle)
	}
	return string(s.State)
}

// InProgress reports whether the user has an active state with a registered handler.
func (f *FSM) InProgress(ctx context.Context, userID int64) bool {
	st := State(f.StateOf(ctx, userID))
	if st == StateIdle {
		return false
	}
	_, ok := f.handler(st)
	return ok
}

// ManagerHandler executes the handler registered for the sender's current state.
func (f *FSM) ManagerHandler(c tele.Context) error {
	if c.Sender() == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	s, err := f.mgr.Get(ctx, c.Sender().ID)
	if err != nil {
		return err
	}
	logger.Debug(ctx, "tg", "fsm.manager",
		slog.String("status", "ok"),
		slog.String("state", string(s.State)),
		slog.String("question_id", s.QuestionID),
	)
	h, ok := f.handler(s.State)
	if !ok {
		return nil
	}
	return h(c)
}
