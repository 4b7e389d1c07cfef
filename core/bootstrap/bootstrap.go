// Package bootstrap brings up the infrastructure the bot runs on: logging,
// schema migrations, the database pool and reference data.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/surveybot/core/config"
	coredatabase "github.com/m3rciful/surveybot/core/database"
	"github.com/m3rciful/surveybot/core/logger"
)

// Options selects the configuration and, for tests, replaces each stage.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(context.Context, coredatabase.Config) error
}

func (o Options) withDefaults() Options {
	if o.LoggerInit == nil {
		o.LoggerInit = logger.InitLogger
	}
	if o.Migrate == nil {
		o.Migrate = coredatabase.RunMigrations
	}
	if o.Connect == nil {
		o.Connect = coredatabase.Connect
	}
	return o
}

// Result holds what the pipeline opened. The caller owns DB.
type Result struct {
	DB *sqlx.DB
}

type stage struct {
	name string
	run  func(context.Context) error
}

// Run initializes the logger, migrates the schema and then opens the pool.
// The first failing stage aborts the pipeline.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config provided")
	}
	opts = opts.withDefaults()

	res := &Result{}
	stages := []stage{
		{"logger", func(context.Context) error { return opts.LoggerInit(opts.Config) }},
		{"migrate", func(ctx context.Context) error { return opts.Migrate(ctx, opts.Database) }},
		{"connect", func(ctx context.Context) (err error) {
			res.DB, err = opts.Connect(ctx, opts.Database)
			return err
		}},
	}
	for _, s := range stages {
		start := time.Now()
		if err := s.run(ctx); err != nil {
			return nil, fmt.Errorf("bootstrap: %s: %w", s.name, err)
		}
		logger.L.Debug("bootstrap stage done",
			slog.String("component", "app"),
			slog.String("event", "bootstrap."+s.name),
			slog.Duration("duration", logger.Took(start)),
		)
	}
	return res, nil
}

// RunSeeders executes seeders in order and stops at the first failure.
func RunSeeders(ctx context.Context, seeders ...Seeder) error {
	for _, s := range seeders {
		start := time.Now()
		err := s.Seed(ctx)
		logger.SEED.Info("seed",
			slog.String("event", "db.seed"),
			slog.String("op", s.Name()),
			slog.String("status", logger.Status(err)),
			slog.Duration("duration", logger.Took(start)),
		)
		if err != nil {
			return fmt.Errorf("bootstrap: seeder %s: %w", s.Name(), err)
		}
	}
	return nil
}
