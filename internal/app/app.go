// Package app assembles the survey bot from configuration: storage, sessions,
// the survey engine, admin tools and the Telegram routes.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/surveybot/core/bootstrap"
	"github.com/m3rciful/surveybot/core/logger"
	tg "github.com/m3rciful/surveybot/core/telegram"
	"github.com/m3rciful/surveybot/core/telegram/router"
	"github.com/m3rciful/surveybot/core/telegram/state"
	"github.com/m3rciful/surveybot/core/telegram/ui"
	"github.com/m3rciful/surveybot/internal/activity"
	"github.com/m3rciful/surveybot/internal/bot"
	"github.com/m3rciful/surveybot/internal/questions"
	"github.com/m3rciful/surveybot/internal/reports"
	"github.com/m3rciful/surveybot/internal/store"
	"github.com/m3rciful/surveybot/internal/survey"
	"github.com/m3rciful/surveybot/internal/texts"
)

// App owns every long-lived component of the bot.
type App struct {
	cfg      *Config
	db       *sqlx.DB
	sessions state.Manager
	fsm      *state.FSM
	handlers *bot.Handlers
	registry *tg.Registry
}

// Bootstrap initializes logging, the database and the bot components.
func Bootstrap(ctx context.Context, cfg *Config) (*App, error) {
	res, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}
	sessions, err := newSessions(ctx, cfg.Session)
	if err != nil {
		_ = res.DB.Close()
		return nil, err
	}
	a, err := Assemble(ctx, cfg, res.DB, sessions)
	if err != nil {
		_ = res.DB.Close()
		closeSessions(sessions)
		return nil, err
	}
	return a, nil
}

// Assemble builds the bot on top of an open database and session store and
// seeds reference data.
func Assemble(ctx context.Context, cfg *Config, db *sqlx.DB, sessions state.Manager) (*App, error) {
	st := store.New(db)
	catalog := texts.NewCatalog(st, texts.Options{
		Language: cfg.Texts.Language,
		TTL:      cfg.TextsTTL(),
	})
	if err := bootstrap.RunSeeders(ctx, catalog); err != nil {
		return nil, err
	}

	agg := activity.New(st)
	engine, err := survey.New(survey.Options{
		Graph:    questions.Default(),
		Store:    st,
		Sessions: sessions,
		Texts:    catalog,
		Activity: agg,
	})
	if err != nil {
		return nil, err
	}

	fsm := state.NewFSM(sessions)
	handlers, err := bot.New(bot.Settings{
		ChannelID:      cfg.Survey.ChannelID,
		AdminPassword:  cfg.Survey.AdminPassword,
		FAQURL:         cfg.Survey.FAQURL,
		PreparationURL: cfg.Survey.PreparationURL,
		ExpertURL:      cfg.Survey.ExpertURL,
		GuidePath:      cfg.Survey.GuidePath,
		IsAdmin:        cfg.Telegram.IsAdmin,
	}, bot.Deps{
		Engine:   engine,
		Catalog:  catalog,
		Reporter: reports.New(st, agg, cfg.Reports.Dir),
		Store:    st,
		FSM:      fsm,
	})
	if err != nil {
		return nil, err
	}

	reg := tg.NewRegistry()
	if err := handlers.Register(reg); err != nil {
		return nil, fmt.Errorf("app: register handlers: %w", err)
	}

	return &App{
		cfg:      cfg,
		db:       db,
		sessions: sessions,
		fsm:      fsm,
		handlers: handlers,
		registry: reg,
	}, nil
}

// Registry exposes the command and callback table.
func (a *App) Registry() *tg.Registry { return a.registry }

// TelegramRunOptions wires middleware, routes and lifecycle hooks.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	if a.registry == nil {
		return tg.RunOptions{}, errors.New("app: not assembled")
	}
	core := a.cfg.CoreConfig()
	fallback := ui.Resolve(a.handlers)

	routes := router.CommandRoutes(a.registry, router.CommandRouteOptions{
		IsAdmin:       a.handlers.IsAdmin,
		OnAdminReject: a.handlers.OnAdminReject,
	})
	routes = append(routes, router.CallbackRoute(a.registry, router.CallbackOptions{
		NotFound: fallback.Callback,
	}))
	routes = append(routes, router.TextRoutes(a.fsm, a.registry, router.TextOptions{
		UnknownText:     fallback.Text,
		UnknownDocument: fallback.Document,
	})...)

	var stopSweep context.CancelFunc
	return tg.RunOptions{
		Config:      core,
		Registry:    a.registry,
		Middlewares: tg.DefaultMiddlewares(core, nil),
		Routes:      routes,
		OnStart: func(ctx context.Context, rt tg.Runtime) error {
			mem, ok := a.sessions.(*state.MemoryManager)
			if !ok {
				return nil
			}
			var sweepCtx context.Context
			sweepCtx, stopSweep = context.WithCancel(ctx)
			go sweepSessions(sweepCtx, mem, defaultSweepEvery)
			return nil
		},
		OnStop: func(ctx context.Context, rt tg.Runtime) error {
			if stopSweep != nil {
				stopSweep()
			}
			done := make(chan struct{})
			go func() {
				a.handlers.Wait()
				close(done)
			}()
			select {
			case <-done:
			case <-ctx.Done():
				logger.L.Warn("mailing still running at shutdown",
					slog.String("component", "app"),
					slog.String("event", "shutdown"),
				)
			}
			if rt.Dispatcher != nil {
				logger.L.Info("outbound queue summary",
					slog.String("component", "app"),
					slog.String("event", "sender.summary"),
					slog.Uint64("failed", rt.Dispatcher.ErrorCount()),
				)
			}
			return nil
		},
	}, nil
}

// Close releases the database and the session store.
func (a *App) Close() error {
	closeSessions(a.sessions)
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func newSessions(ctx context.Context, cfg SessionConfig) (state.Manager, error) {
	if cfg.Backend != SessionRedis {
		return state.NewMemoryManager(cfg.TTL()), nil
	}
	mgr, err := state.NewRedisManager(ctx, state.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Prefix:   cfg.RedisPrefix,
		TTL:      cfg.TTL(),
	})
	if err != nil {
		return nil, fmt.Errorf("app: session store: %w", err)
	}
	return mgr, nil
}

func closeSessions(m state.Manager) {
	if c, ok := m.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}

// sweepSessions evicts idle in-memory sessions until ctx is done.
func sweepSessions(ctx context.Context, mem *state.MemoryManager, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := mem.Sweep(); n > 0 {
				logger.TG.Debug("sessions swept",
					slog.String("event", "fsm.sweep"),
					slog.Int("evicted", n),
				)
			}
		}
	}
}
