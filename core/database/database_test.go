package database

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSelectAppliedRange(t *testing.T) {
	files := migrationFiles{"0001_init.up.sql", "0002_texts.up.sql", "0003_buckets.up.sql"}

	got := files.between(1, 3)
	if len(got) != 2 || got[0] != "0002_texts.up.sql" || got[1] != "0003_buckets.up.sql" {
		t.Fatalf("unexpected applied set: %v", got)
	}
	if got := files.between(3, 3); got != nil {
		t.Fatalf("expected nothing applied, got %v", got)
	}
}

func TestReadMigrationFilesOnlyUp(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_b.up.sql", "0001_a.up.sql", "0001_a.down.sql", "README.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	got := readMigrationFiles(dir)
	if strings.Join(got, ",") != "0001_a.up.sql,0002_b.up.sql" {
		t.Fatalf("unexpected files: %v", got)
	}
}

func TestConfigURLEscapesCredentials(t *testing.T) {
	cfg := Config{Host: "db", Port: "5432", User: "bot", Password: "p@ss:word", Name: "survey"}
	got := cfg.URL()
	if !strings.HasPrefix(got, "postgres://bot:p%40ss%3Aword@db:5432/survey") {
		t.Fatalf("unexpected url: %s", got)
	}
	if !strings.HasSuffix(got, "sslmode=disable") {
		t.Fatalf("expected default sslmode, got %s", got)
	}
	if !strings.Contains(cfg.KeywordDSN(), "dbname=survey") {
		t.Fatalf("unexpected keyword dsn: %s", cfg.KeywordDSN())
	}
}

func TestMigrationsDirDefaultsAndIsAbsolute(t *testing.T) {
	got, err := migrationsDir("  ")
	if err != nil {
		t.Fatalf("migrationsDir: %v", err)
	}
	if !filepath.IsAbs(got) || filepath.Base(got) != defaultMigrationsDir {
		t.Fatalf("unexpected dir %q", got)
	}
}

func TestPoolSizeDefault(t *testing.T) {
	if got := (Config{}).poolSize(); got != defaultPoolSize {
		t.Fatalf("poolSize() = %d, want %d", got, defaultPoolSize)
	}
	if got := (Config{MaxConnections: 3}).poolSize(); got != 3 {
		t.Fatalf("poolSize() = %d, want 3", got)
	}
}
