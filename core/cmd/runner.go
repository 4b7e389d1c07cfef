// Package cmd is the shared entrypoint: it resolves the config file, boots
// the application and serves Telegram until SIGINT or SIGTERM.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m3rciful/surveybot/core/buildinfo"
	coreconfig "github.com/m3rciful/surveybot/core/config"
	"github.com/m3rciful/surveybot/core/logger"
	coretelegram "github.com/m3rciful/surveybot/core/telegram"
)

const defaultConfigEnv = "CONFIG_PATH"

// ConfigCarrier is an application config embedding the core section.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp is what Bootstrap hands back.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
	Close() error
}

// Options wires an application into Run. LoadConfig and Bootstrap are
// required; the rest default to the core implementations.
type Options struct {
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(ctx context.Context, cfg ConfigCarrier) (TelegramApp, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
}

func (o Options) validate() error {
	switch {
	case o.LoadConfig == nil:
		return errors.New("cmd: LoadConfig is required")
	case o.Bootstrap == nil:
		return errors.New("cmd: Bootstrap is required")
	}
	return nil
}

// ResolveConfigPath picks the path from the env variable (CONFIG_PATH when
// env is empty) or falls back to def.
func ResolveConfigPath(env, def string) (string, error) {
	if env == "" {
		env = defaultConfigEnv
	}
	if p, ok := os.LookupEnv(env); ok && p != "" {
		return p, nil
	}
	if def != "" {
		return def, nil
	}
	return "", fmt.Errorf("cmd: set %s or provide a default config path", env)
}

// Run blocks until the bot stops. A "-version" argument prints the build
// stamp and returns.
func Run(opts Options) error {
	if len(os.Args) > 1 && (os.Args[1] == "-version" || os.Args[1] == "--version") {
		fmt.Println(buildinfo.String())
		return nil
	}
	if err := opts.validate(); err != nil {
		return err
	}

	path, err := ResolveConfigPath(opts.ConfigEnvVar, opts.DefaultConfigPath)
	if err != nil {
		return err
	}
	log.Printf("surveybot %s, config %s", buildinfo.String(), path)
	cfg, err := opts.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("cmd: load config: %w", err)
	}
	if cfg.CoreConfig() == nil {
		return errors.New("cmd: config has no core section")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown := opts.ShutdownLogger
	if shutdown == nil {
		shutdown = logger.Shutdown
	}
	defer func() {
		if err := shutdown(); err != nil {
			log.Printf("logger shutdown: %v", err)
		}
	}()

	started := time.Now()
	app, err := opts.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap: %w", err)
	}
	defer closeApp(app)

	runOpts, err := app.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options: %w", err)
	}
	runOpts.OnStart = announceReady(runOpts.OnStart, started)
	runOpts.OnStop = announceShutdown(runOpts.OnStop)

	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}
	return run(ctx, runOpts)
}

type hook = func(ctx context.Context, rt coretelegram.Runtime) error

func announceReady(next hook, started time.Time) hook {
	return func(ctx context.Context, rt coretelegram.Runtime) error {
		if next != nil {
			if err := next(ctx, rt); err != nil {
				return err
			}
		}
		logger.LogEvent(ctx, logger.L.With("component", "app"), slog.LevelInfo, "ready",
			slog.Duration("startup", time.Since(started)),
			slog.String("version", buildinfo.Version),
		)
		return nil
	}
}

func announceShutdown(next hook) hook {
	return func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.LogEvent(ctx, logger.L.With("component", "app"), slog.LevelInfo, "shutdown")
		if next == nil {
			return nil
		}
		return next(ctx, rt)
	}
}

func closeApp(app TelegramApp) {
	if err := app.Close(); err != nil {
		logger.L.Warn("app close failed",
			slog.String("component", "app"),
			slog.String("event", "shutdown"),
			slog.String("err", err.Error()),
		)
	}
}
