package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeLayout = "2006-01-02T15:04:05.000Z07:00"
)

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// lineHandler renders each record as one line, KV or JSON, with the keys
// listed in keyOrder first and everything else sorted after them.
type lineHandler struct {
	cfg    handlerConfig
	rank   map[string]int
	preset fields
	prefix string
}

func newLineHandler(cfg handlerConfig) *lineHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if len(cfg.keyOrder) == 0 {
		cfg.keyOrder = defaultKeyOrder
	}
	rank := make(map[string]int, len(cfg.keyOrder))
	for i, key := range cfg.keyOrder {
		if _, dup := rank[key]; !dup {
			rank[key] = i
		}
	}
	return &lineHandler{cfg: cfg, rank: rank}
}

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *lineHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return errors.New("logger: writer not initialized")
	}
	f := make(fields, len(h.preset)+8)
	maps.Copy(f, h.preset)
	r.Attrs(func(a slog.Attr) bool {
		flatten(h.prefix, a, f.set)
		return true
	})
	metaFrom(ctx).fill(f)

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	f["ts"] = ts.UTC().Truncate(time.Millisecond).Format(timeLayout)
	f["level"] = normalizeLevel(r.Level.String())
	f.finish(r.Message, h.cfg.format == formatJSON)

	keys := h.sortedKeys(f)
	var (
		line []byte
		err  error
	)
	if h.cfg.format == formatJSON {
		line, err = renderJSON(f, keys)
	} else {
		line = renderKV(f, keys)
	}
	if err != nil {
		return err
	}
	return h.cfg.writer.Write(append(line, '\n'))
}

// WithAttrs flattens attrs under the current group prefix once, so later
// groups do not rename them.
func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.preset = make(fields, len(h.preset)+len(attrs))
	maps.Copy(clone.preset, h.preset)
	for _, a := range attrs {
		flatten(h.prefix, a, clone.preset.set)
	}
	return &clone
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = joinKey(h.prefix, name)
	return &clone
}

func (h *lineHandler) sortedKeys(f fields) []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, okI := h.rank[keys[i]]
		rj, okJ := h.rank[keys[j]]
		switch {
		case okI && okJ:
			return ri < rj
		case okI != okJ:
			return okI
		}
		return keys[i] < keys[j]
	})
	return keys
}

// fields is the flattened attribute set of one record.
type fields map[string]any

func (f fields) set(key string, v slog.Value) {
	if key == "" {
		return
	}
	key, val, ok := normalizeAttr(key, v)
	if !ok {
		return
	}
	f[key] = val
}

// fill sets key unless it is already present or v is a zero id.
func (f fields) fill(key string, v any) {
	switch x := v.(type) {
	case string:
		if x == "" {
			return
		}
	case int64:
		if x == 0 {
			return
		}
	case int:
		if x == 0 {
			return
		}
	}
	if _, ok := f[key]; !ok {
		f[key] = v
	}
}

func (f fields) str(key string) string {
	switch v := f[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// finish applies the shared schema: compact rid, mandatory event and
// component, enum normalization and removal of empty values.
func (f fields) finish(msg string, keepFullRID bool) {
	if rid := f.str("rid"); rid != "" {
		if short := CompactRID(rid); short != rid {
			if keepFullRID {
				f.fill("rid_full", rid)
			}
			f["rid"] = short
		}
	}
	if f.str("event") == "" {
		if msg == "" {
			msg = "unknown"
		}
		f["event"] = msg
	}
	if f.str("component") == "" {
		f["component"] = "app"
	}
	for key, rule := range enumRules {
		raw := f.str(key)
		if raw == "" {
			continue
		}
		if v, ok := rule.normalize(raw); ok {
			f[key] = v
		} else if !rule.keepUnknown {
			delete(f, key)
		}
	}
	for k, v := range f {
		if v == nil || v == "" {
			delete(f, k)
		}
	}
}

func flatten(prefix string, a slog.Attr, set func(string, slog.Value)) {
	if a.Equal(slog.Attr{}) {
		return
	}
	key := joinKey(prefix, a.Key)
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			flatten(key, child, set)
		}
		return
	}
	set(key, v)
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

// durationKey reports durations in milliseconds under a *_ms key.
func durationKey(key string) string {
	if strings.HasSuffix(key, "_ms") {
		return key
	}
	return key + "_ms"
}

func normalizeAttr(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String()), true
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, v.Uint64(), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := v.Any().(type) {
	case nil:
		return key, nil, false
	case error:
		return key, x.Error(), true
	case time.Duration:
		return durationKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		return key, x.String(), true
	default:
		return key, fmt.Sprint(x), true
	}
}

func renderJSON(f fields, keys []string) ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, k := range keys {
		val, err := json.Marshal(f[k])
		if err != nil {
			return nil, fmt.Errorf("logger: encode %s: %w", k, err)
		}
		if i > 0 {
			b.WriteByte(',')
		}
		name, _ := json.Marshal(k)
		b.Write(name)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

func renderKV(f fields, keys []string) []byte {
	var b bytes.Buffer
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		s := fmt.Sprint(f[k])
		if strings.IndexFunc(s, needsQuote) >= 0 {
			s = strconv.Quote(s)
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(s)
	}
	return b.Bytes()
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}
