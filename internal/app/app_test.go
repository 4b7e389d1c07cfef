package app

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/m3rciful/surveybot/core/telegram/state"
	"github.com/m3rciful/surveybot/internal/bot"
	"github.com/m3rciful/surveybot/internal/store/storetest"
	"github.com/m3rciful/surveybot/internal/texts"
)

const sampleConfig = `
telegram:
  token: "123:abc"
  admin_ids: [42]
database:
  host: localhost
  name: survey
survey:
  channel_id: -1001
  faq_url: https://example.org/faq
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaultsAndEnv(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD", "from-env")
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Survey.AdminPassword != "from-env" {
		t.Fatalf("admin password = %q", cfg.Survey.AdminPassword)
	}
	if cfg.Session.Backend != SessionMemory || cfg.Session.TTL() != defaultSessionTTL {
		t.Fatalf("session defaults: %+v", cfg.Session)
	}
	if cfg.Database.Port != "5432" || cfg.Reports.Dir != defaultReportsDir {
		t.Fatalf("defaults not applied: port=%q dir=%q", cfg.Database.Port, cfg.Reports.Dir)
	}
	if cfg.Texts.Language != texts.DefaultLanguage || cfg.TextsTTL() != texts.DefaultTTL {
		t.Fatalf("texts defaults: %+v", cfg.Texts)
	}
	if !cfg.Telegram.IsAdmin(42) || cfg.Telegram.IsAdmin(7) {
		t.Fatal("admin ids not loaded")
	}
	if cfg.CoreConfig().Telegram.RunMode != "longpoll" {
		t.Fatalf("run mode = %q", cfg.CoreConfig().Telegram.RunMode)
	}
}

func TestNormalizeRejectsInvalidSections(t *testing.T) {
	cases := map[string]string{
		"missing channel":    strings.Replace(sampleConfig, "channel_id: -1001", "channel_id: 0", 1),
		"unknown backend":    sampleConfig + "session:\n  backend: etcd\n",
		"redis without addr": sampleConfig + "session:\n  backend: redis\n",
		"missing database":   strings.Replace(sampleConfig, "name: survey", "name: \"\"", 1),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestAssembleWiresRoutes(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg.Reports.Dir = t.TempDir()
	st := storetest.Open(t)
	sessions := state.NewMemoryManager(time.Hour)

	a, err := Assemble(context.Background(), cfg, st.DB(), sessions)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	opts, err := a.TelegramRunOptions()
	if err != nil {
		t.Fatalf("run options: %v", err)
	}
	if opts.Config == nil || len(opts.Middlewares) == 0 {
		t.Fatal("run options miss config or middleware")
	}

	var endpoints []string
	for _, r := range opts.Routes {
		if s, ok := r.Endpoint.(string); ok {
			endpoints = append(endpoints, s)
		}
	}
	for _, want := range []string{"/start", "/cancel", "/admin", "/stats", "/settext"} {
		if !slices.Contains(endpoints, want) {
			t.Fatalf("route %s missing from %v", want, endpoints)
		}
	}
	callbacks := a.Registry().ListCallbacks()
	for _, want := range []string{bot.CbSurveyStart, bot.CbSurveyAnswer, bot.CbSurveyContinue, bot.CbConfirmMailing} {
		if !slices.Contains(callbacks, want) {
			t.Fatalf("callback %s missing from %v", want, callbacks)
		}
	}

	visible := a.Registry().ListCommands(true)
	for _, c := range visible {
		if c.Text == "/admin" || c.Text == "/settext" {
			t.Fatalf("admin command %s must not be listed publicly", c.Text)
		}
	}
}
