package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/m3rciful/surveybot/core/logger"
)

const (
	defaultMigrationsDir = "migrations"
	readyTimeout         = 30 * time.Second
	previewFiles         = 6
)

// migrationFiles is a sorted list of "<version>_<name>.up.sql" file names.
type migrationFiles []string

// readMigrationFiles lists the up migrations in dir. A missing directory
// yields an empty list; golang-migrate reports it properly later.
func readMigrationFiles(dir string) migrationFiles {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var files migrationFiles
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	slices.Sort(files)
	return files
}

// between returns the files with versions in (from, to].
func (f migrationFiles) between(from, to uint) migrationFiles {
	var out migrationFiles
	for _, name := range f {
		head, _, _ := strings.Cut(name, "_")
		v, err := strconv.ParseUint(head, 10, 64)
		if err == nil && uint(v) > from && uint(v) <= to {
			out = append(out, name)
		}
	}
	return out
}

func (f migrationFiles) attrs() []any {
	preview, truncated := logger.SummarizeStrings(f, previewFiles)
	attrs := []any{slog.Int("files_total", len(f))}
	if preview != "" {
		attrs = append(attrs, slog.String("files_preview", preview))
	}
	if truncated {
		attrs = append(attrs, slog.Bool("files_truncated", true))
	}
	return attrs
}

// migrateLog forwards golang-migrate progress to the migrations logger.
type migrateLog struct{}

func (migrateLog) Printf(format string, v ...any) {
	logger.MIG.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("event", "apply.step"))
}

func (migrateLog) Verbose() bool { return logger.MIG.Enabled(context.Background(), slog.LevelDebug) }

// RunMigrations waits for Postgres and applies every pending up migration
// from cfg.MigrationsDir. Cancelling ctx stops after the current migration.
func RunMigrations(ctx context.Context, cfg Config) error {
	dsn := cfg.URL()
	if err := WaitForPostgres(ctx, dsn, readyTimeout); err != nil {
		return migrateFailed("db.wait", fmt.Errorf("database not ready: %w", err))
	}

	dir, err := migrationsDir(cfg.MigrationsDir)
	if err != nil {
		return migrateFailed("resolve", err)
	}
	files := readMigrationFiles(dir)
	logger.MIG.Debug("migrations resolved",
		append([]any{slog.String("event", "resolve"), slog.String("path", dir)}, files.attrs()...)...)

	m, err := migrate.New("file://"+filepath.ToSlash(dir), dsn)
	if err != nil {
		return migrateFailed("init", fmt.Errorf("init migrations: %w", err))
	}
	m.Log = migrateLog{}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.MIG.Warn("migrate close failed",
				slog.String("event", "close"),
				slog.Any("source_err", srcErr),
				slog.Any("db_err", dbErr),
			)
		}
	}()

	stop := context.AfterFunc(ctx, func() {
		select {
		case m.GracefulStop <- true:
		default:
		}
	})
	defer stop()

	from, _, _ := m.Version()
	start := time.Now()
	err = m.Up()
	took := logger.Took(start)
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.MIG.Error("migration failed",
			slog.String("event", "apply"),
			slog.String("err", err.Error()),
			slog.Duration("duration", took),
		)
		return fmt.Errorf("apply migrations: %w", err)
	}

	to, _, _ := m.Version()
	applied := files.between(from, to)
	if len(applied) > 0 {
		logger.MIG.Debug("applied files", append([]any{slog.String("event", "apply")}, applied.attrs()...)...)
	}
	logger.MIG.Info("migrations summary",
		slog.String("event", "summary"),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("files", len(applied)),
		slog.Duration("duration", took),
	)
	return nil
}

func migrateFailed(stage string, err error) error {
	logger.MIG.Error("migrations aborted",
		slog.String("event", "db.migrate"),
		slog.String("stage", stage),
		slog.String("err", err.Error()),
	)
	return err
}

func migrationsDir(dir string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = defaultMigrationsDir
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve migrations dir: %w", err)
	}
	return abs, nil
}
