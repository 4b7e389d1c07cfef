// Package logger provides the process-wide structured logger. Records are
// written as ordered key=value lines or JSON to stdout and optional files,
// with an errors-only JSON sink and the systemd journal as extra outputs.
package logger

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	slogmulti "github.com/samber/slog-multi"
	slogjournal "github.com/systemd/slog-journal"

	"github.com/m3rciful/surveybot/core/buildinfo"
	coreconfig "github.com/m3rciful/surveybot/core/config"
)

const (
	mainBuffer   = 64 << 10
	errorsBuffer = 16 << 10
)

var (
	initOnce sync.Once

	closeMu sync.Mutex
	open    *sinks

	levelVar     slog.LevelVar
	debugSampler = newRatioSampler(1, 50)
	forceTrace   bool

	// L is the process-wide base logger.
	L *slog.Logger

	DB    *slog.Logger
	TG    *slog.Logger
	MIG   *slog.Logger
	TWire *slog.Logger
	SEED  *slog.Logger

	// SVCSurvey logs survey progression (start, answers, checkpoint, completion).
	SVCSurvey *slog.Logger
	// SVCUsers logs user registration and activity touches.
	SVCUsers *slog.Logger
	// SVCActivity logs activity bucket recomputation.
	SVCActivity *slog.Logger
	// SVCTexts logs text catalog seeding, refreshes and edits.
	SVCTexts *slog.Logger
	// SVCReports logs admin statistics, workbook exports and mailings.
	SVCReports *slog.Logger
)

var components = []struct {
	dst  **slog.Logger
	name string
}{
	{&DB, "db"},
	{&TG, "tg"},
	{&MIG, "db.migrate"},
	{&TWire, "tg.wire"},
	{&SEED, "db.seed"},
	{&SVCSurvey, "service.survey"},
	{&SVCUsers, "service.users"},
	{&SVCActivity, "service.activity"},
	{&SVCTexts, "service.texts"},
	{&SVCReports, "service.reports"},
}

func init() {
	// Usable before InitLogger, e.g. from tests.
	setRoot(slog.Default())
}

func setRoot(root *slog.Logger) {
	L = root
	for _, c := range components {
		*c.dst = root.With("component", c.name)
	}
}

// settings is the logging section resolved against defaults.
type settings struct {
	format     logFormat
	order      []string
	level      slog.Level
	profile    string
	sampleNum  int
	sampleDen  int
	dir        string
	botFile    string
	errorsFile string
	journal    bool
	mode       string
}

func resolveSettings(cfg *coreconfig.Config) settings {
	s := settings{
		format:    formatJSON,
		order:     defaultKeyOrder,
		level:     slog.LevelInfo,
		sampleNum: 1,
		sampleDen: 50,
	}
	if cfg == nil {
		return s
	}
	lc := cfg.Logging
	s.profile = strings.ToLower(strings.TrimSpace(lc.Profile))
	if s.profile == "" {
		s.profile = "prod"
	}
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		s.format = formatKV
	case "json":
	default:
		if s.profile == "debug" || s.profile == "dev" {
			s.format = formatKV
		}
	}
	if order := splitKeys(lc.KeysOrder); len(order) > 0 {
		s.order = order
	}
	switch strings.ToLower(strings.TrimSpace(lc.Level)) {
	case "debug":
		s.level = slog.LevelDebug
	case "warn", "warning":
		s.level = slog.LevelWarn
	case "error":
		s.level = slog.LevelError
	}
	if raw := strings.TrimSpace(lc.DebugSample); raw != "" {
		num, den := parseRatioSpec(raw)
		switch {
		case num == 0 && den == 0:
			s.sampleNum, s.sampleDen = 0, 0
		case num > 0 && den > 0:
			s.sampleNum, s.sampleDen = num, den
		}
	}
	s.dir = strings.TrimSpace(lc.Dir)
	s.botFile = strings.TrimSpace(lc.BotFile)
	s.errorsFile = strings.TrimSpace(lc.ErrorsFile)
	s.journal = lc.Journal
	s.mode = cfg.Telegram.RunMode
	return s
}

func splitKeys(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "default" {
		return nil
	}
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// sinks tracks the buffered writers and files opened by InitLogger.
type sinks struct {
	writers []*asyncWriter
	files   []io.Closer
}

// file opens dir/name for appending, or returns nil when logging to files
// is off or the file cannot be opened.
func (s *sinks) file(dir, name string) *os.File {
	if dir == "" || name == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("logger: create log dir %s: %v", dir, err)
		return nil
	}
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("logger: open log file %s: %v", path, err)
		return nil
	}
	s.files = append(s.files, f)
	return f
}

func (s *sinks) async(outs []io.Writer, size int) *asyncWriter {
	w := newAsyncWriter(outs, size)
	s.writers = append(s.writers, w)
	return w
}

func (s *sinks) close() error {
	var errs []error
	for _, w := range s.writers {
		errs = append(errs, w.Close())
	}
	for _, f := range s.files {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}

// InitLogger configures the global logger from cfg. Only the first call
// has an effect.
func InitLogger(cfg *coreconfig.Config) error {
	initOnce.Do(func() {
		s := resolveSettings(cfg)
		levelVar.Set(s.level)
		debugSampler.Set(s.sampleNum, s.sampleDen)
		forceTrace = truthy(os.Getenv("TRACE")) || truthy(os.Getenv("LOG_TRACE"))

		out := &sinks{}
		handlers := buildHandlers(out, s)
		root := handlers[0]
		if len(handlers) > 1 {
			root = slogmulti.Fanout(handlers...)
		}

		closeMu.Lock()
		open = out
		closeMu.Unlock()

		setRoot(slog.New(root))
		slog.SetDefault(L)
		logStartup(s)
	})
	return nil
}

// buildHandlers returns the main sink, then the errors-only file and the
// journal when they are configured.
func buildHandlers(out *sinks, s settings) []slog.Handler {
	mainOuts := []io.Writer{os.Stdout}
	if f := out.file(s.dir, s.botFile); f != nil {
		mainOuts = append(mainOuts, f)
	}
	handlers := []slog.Handler{newLineHandler(handlerConfig{
		level:    &levelVar,
		writer:   out.async(mainOuts, mainBuffer),
		format:   s.format,
		keyOrder: s.order,
	})}

	if f := out.file(s.dir, s.errorsFile); f != nil {
		handlers = append(handlers, newLineHandler(handlerConfig{
			level:    slog.LevelError,
			writer:   out.async([]io.Writer{f}, errorsBuffer),
			format:   formatJSON,
			keyOrder: s.order,
		}))
	}

	if s.journal {
		journal, err := slogjournal.NewHandler(&slogjournal.Options{
			Level:        &levelVar,
			ReplaceGroup: toJournalKey,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				a.Key = toJournalKey(a.Key)
				return a
			},
		})
		if err != nil {
			log.Printf("logger: journal sink disabled: %v", err)
		} else {
			handlers = append(handlers, journal)
		}
	}
	return handlers
}

func logStartup(s settings) {
	L.LogAttrs(context.Background(), slog.LevelInfo, "startup",
		slog.String("component", "app"),
		slog.String("event", "startup"),
		slog.String("go_version", runtime.Version()),
		slog.String("build_version", buildinfo.Version),
		slog.String("build_commit", buildinfo.Commit),
		slog.String("build_time", buildinfo.Date),
		slog.String("cfg_profile", s.profile),
		slog.String("mode", s.mode),
	)
}

// Shutdown flushes buffered output and closes the log files. Later calls
// are no-ops.
func Shutdown() error {
	closeMu.Lock()
	defer closeMu.Unlock()
	if open == nil {
		return nil
	}
	err := open.close()
	open = nil
	return err
}

func toJournalKey(key string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, strings.ToUpper(key))
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// Background returns context.Background().
func Background() context.Context {
	return context.Background()
}

// LogEvent writes a record with the event attribute set. A nil logg falls
// back to the logger stored in ctx and then to L.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Event logs under the given component.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	logg := L
	if component = strings.TrimSpace(component); component != "" {
		logg = L.With("component", component)
	}
	LogEvent(ctx, logg, level, event, attrs...)
}

func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}

// ShouldSampleDebug reports whether a high-volume debug record should be
// written. TRACE=1 in the environment lets all of them through.
func ShouldSampleDebug() bool {
	return forceTrace || debugSampler.Allow()
}
