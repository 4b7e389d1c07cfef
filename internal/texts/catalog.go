// Package texts resolves user-facing strings by key and category from the
// localized_text table through a TTL cache.
package texts

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/surveybot/core/logger"
	"github.com/m3rciful/surveybot/internal/store"
)

// DefaultTTL bounds how stale a cached text may be.
const DefaultTTL = 60 * time.Second

// Repository is the storage used by Catalog.
type Repository interface {
	LoadTexts(ctx context.Context, language string) ([]store.Text, error)
	UpsertText(ctx context.Context, t store.Text) error
	InsertTextIfAbsent(ctx context.Context, t store.Text) (bool, error)
}

// Options configures a Catalog.
type Options struct {
	Language string
	TTL      time.Duration
	// Defaults overrides the seeded texts; nil means the package Defaults.
	Defaults map[string]map[string]string
}

// Catalog is a process-scoped text cache.
type Catalog struct {
	repo     Repository
	language string
	ttl      time.Duration
	defaults map[string]map[string]string
	now      func() time.Time

	mu       sync.RWMutex
	cache    map[string]map[string]string
	loadedAt time.Time
}

// NewCatalog returns a Catalog; call Init before serving traffic.
func NewCatalog(repo Repository, opts Options) *Catalog {
	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Defaults == nil {
		opts.Defaults = Defaults
	}
	return &Catalog{
		repo:     repo,
		language: opts.Language,
		ttl:      opts.TTL,
		defaults: opts.Defaults,
		now:      time.Now,
		cache:    map[string]map[string]string{},
	}
}

// Init seeds missing default texts and loads the cache.
func (c *Catalog) Init(ctx context.Context) error {
	seeded := 0
	for _, category := range sortedKeys(c.defaults) {
		entries := c.defaults[category]
		for _, key := range sortedKeys(entries) {
			ok, err := c.repo.InsertTextIfAbsent(ctx, store.Text{
				Key:      key,
				Category: category,
				Language: c.language,
				Text:     entries[key],
			})
			if err != nil {
				return fmt.Errorf("seed text %s/%s: %w", category, key, err)
			}
			if ok {
				seeded++
			}
		}
	}
	logger.SVCTexts.Info("defaults seeded",
		slog.String("event", "texts.seed"),
		slog.Int("count", seeded),
	)
	return c.refresh(ctx)
}

// Name identifies the catalog as a bootstrap seeder.
func (c *Catalog) Name() string { return "texts" }

// Seed is Init under the seeder contract.
func (c *Catalog) Seed(ctx context.Context) error { return c.Init(ctx) }

func (c *Catalog) refresh(ctx context.Context) error {
	rows, err := c.repo.LoadTexts(ctx, c.language)
	if err != nil {
		return err
	}
	next := make(map[string]map[string]string)
	for _, r := range rows {
		if next[r.Category] == nil {
			next[r.Category] = make(map[string]string)
		}
		next[r.Category][r.Key] = r.Text
	}
	c.mu.Lock()
	c.cache = next
	c.loadedAt = c.now()
	c.mu.Unlock()
	logger.SVCTexts.Debug("cache refreshed",
		slog.String("event", "texts.refresh"),
		slog.Int("count", len(rows)),
	)
	return nil
}

func (c *Catalog) stale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt.IsZero() || c.now().Sub(c.loadedAt) > c.ttl
}

// Resolve returns the text for key, or key itself when unknown. A failed
// refresh keeps serving the previous cache.
func (c *Catalog) Resolve(ctx context.Context, key, category string) string {
	if c.stale() {
		if err := c.refresh(ctx); err != nil {
			logger.SVCTexts.Warn("refresh failed",
				slog.String("event", "texts.refresh"),
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if s, ok := c.cache[category][key]; ok {
		return s
	}
	return key
}

// Format resolves key and substitutes {name} placeholders from args.
func (c *Catalog) Format(ctx context.Context, key, category string, args map[string]string) string {
	s := c.Resolve(ctx, key, category)
	if len(args) == 0 {
		return s
	}
	pairs := make([]string, 0, len(args)*2)
	for _, k := range sortedKeys(args) {
		pairs = append(pairs, "{"+k+"}", args[k])
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

// Define stores text under key (last write wins) and updates the cache in place.
func (c *Catalog) Define(ctx context.Context, key, category, text string) error {
	if strings.TrimSpace(key) == "" || strings.TrimSpace(category) == "" {
		return fmt.Errorf("texts: key and category are required")
	}
	if err := c.repo.UpsertText(ctx, store.Text{
		Key:       key,
		Category:  category,
		Language:  c.language,
		Text:      text,
		UpdatedAt: c.now(),
	}); err != nil {
		return err
	}
	c.mu.Lock()
	if c.cache[category] == nil {
		c.cache[category] = make(map[string]string)
	}
	c.cache[category][key] = text
	c.mu.Unlock()
	logger.SVCTexts.Info("text defined",
		slog.String("event", "texts.define"),
		slog.String("key", key),
		slog.String("category", category),
	)
	return nil
}

// Categories lists the known categories.
func (c *Catalog) Categories() []string {
	return sortedKeys(c.defaults)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
