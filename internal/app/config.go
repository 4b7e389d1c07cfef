package app

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/surveybot/core/config"
	coredatabase "github.com/m3rciful/surveybot/core/database"
	"github.com/m3rciful/surveybot/internal/texts"
)

// Session backends.
const (
	SessionMemory = "memory"
	SessionRedis  = "redis"
)

const (
	defaultSessionTTL   = 24 * time.Hour
	defaultReportsDir   = "reports"
	defaultRedisPrefix  = "surveybot:session:"
	defaultSweepEvery   = 10 * time.Minute
	defaultConfigSource = "config.yaml"
)

// SessionConfig selects where conversation state lives.
type SessionConfig struct {
	Backend string `yaml:"backend" envconfig:"SESSION_BACKEND"`
	// TTLMinutes is the idle lifetime of a session; 0 selects the default.
	TTLMinutes    int    `yaml:"ttl_minutes" envconfig:"SESSION_TTL_MINUTES"`
	RedisAddr     string `yaml:"redis_addr" envconfig:"REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" envconfig:"REDIS_DB"`
	RedisPrefix   string `yaml:"redis_prefix"`
}

// TTL returns the configured idle lifetime.
func (s SessionConfig) TTL() time.Duration {
	if s.TTLMinutes <= 0 {
		return defaultSessionTTL
	}
	return time.Duration(s.TTLMinutes) * time.Minute
}

// SurveyConfig holds the survey delivery settings.
type SurveyConfig struct {
	ChannelID      int64  `yaml:"channel_id" envconfig:"CHANNEL_ID"`
	AdminPassword  string `yaml:"admin_password" envconfig:"ADMIN_PASSWORD"`
	FAQURL         string `yaml:"faq_url" envconfig:"FAQ_URL"`
	PreparationURL string `yaml:"start_preparation_url" envconfig:"START_PREPARATION_URL"`
	ExpertURL      string `yaml:"contact_expert_url" envconfig:"CONTACT_EXPERT_URL"`
	GuidePath      string `yaml:"guide_path" envconfig:"GUIDE_PATH"`
}

// TextsConfig tunes the text catalog.
type TextsConfig struct {
	Language   string `yaml:"language"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

// ReportsConfig tunes workbook exports.
type ReportsConfig struct {
	Dir string `yaml:"dir" envconfig:"REPORTS_DIR"`
}

// Config is the full bot configuration: the reusable core plus bot sections.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Session  SessionConfig       `yaml:"session"`
	Survey   SurveyConfig        `yaml:"survey"`
	Texts    TextsConfig         `yaml:"texts"`
	Reports  ReportsConfig       `yaml:"reports"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config { return &c.Config }

// Load reads the YAML file at path, overlays the environment and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		path = defaultConfigSource
	}
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates the bot sections and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}

	if strings.TrimSpace(c.Database.Host) == "" || strings.TrimSpace(c.Database.Name) == "" {
		return fmt.Errorf("database.host and database.name are required")
	}
	if c.Database.Port == "" {
		c.Database.Port = "5432"
	}

	backend := strings.ToLower(strings.TrimSpace(c.Session.Backend))
	switch backend {
	case "":
		backend = SessionMemory
	case SessionMemory:
	case SessionRedis:
		if strings.TrimSpace(c.Session.RedisAddr) == "" {
			return fmt.Errorf("session.redis_addr is required when session.backend is 'redis'")
		}
	default:
		return fmt.Errorf("invalid session.backend %q; allowed: memory, redis", c.Session.Backend)
	}
	c.Session.Backend = backend
	if c.Session.TTLMinutes < 0 {
		return fmt.Errorf("session.ttl_minutes must be >= 0")
	}
	if c.Session.RedisPrefix == "" {
		c.Session.RedisPrefix = defaultRedisPrefix
	}

	if c.Survey.ChannelID == 0 {
		return fmt.Errorf("survey.channel_id is required")
	}

	if c.Texts.Language == "" {
		c.Texts.Language = texts.DefaultLanguage
	}
	if c.Texts.TTLSeconds < 0 {
		return fmt.Errorf("texts.ttl_seconds must be >= 0")
	}
	if c.Reports.Dir == "" {
		c.Reports.Dir = defaultReportsDir
	}
	return nil
}

// TextsTTL returns the catalog refresh interval.
func (c *Config) TextsTTL() time.Duration {
	if c.Texts.TTLSeconds == 0 {
		return texts.DefaultTTL
	}
	return time.Duration(c.Texts.TTLSeconds) * time.Second
}
