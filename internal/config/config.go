package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	AI        AIConfig        `yaml:"ai"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	Path     string `yaml:"path"`
}

// Token maps a bearer token to the user it authenticates.
type Token struct {
	Token  string `yaml:"token"`
	UserID string `yaml:"user_id"`
}

type AuthConfig struct {
	// DevUser is used when a request carries no other identity.
	// Leave empty to require a token or Tailscale identity.
	DevUser string  `yaml:"dev_user"`
	Tokens  []Token `yaml:"tokens"`
}

type AIConfig struct {
	APIKey          string        `yaml:"api_key"`
	BaseURL         string        `yaml:"base_url"`
	ParseModel      string        `yaml:"parse_model"`
	CoachModel      string        `yaml:"coach_model"`
	TranscribeModel string        `yaml:"transcribe_model"`
	Timeout         time.Duration `yaml:"timeout"`
	CoachLookback   int           `yaml:"coach_lookback"`
}

type RateLimitConfig struct {
	AIPerMinute int `yaml:"ai_per_minute"`
	AIBurst     int `yaml:"ai_burst"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DSN returns the connection string for the configured driver. For postgres
// an explicit URL wins over the individual fields; for sqlite the path is
// returned with the pragmas the store relies on.
func (d DatabaseConfig) DSN() string {
	if d.Driver == DriverSQLite {
		return d.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	if d.URL != "" {
		return d.URL
	}
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User), url.QueryEscape(d.Password), d.Host, d.Port, d.Name, sslmode)
}

// AIEnabled reports whether an API key was configured.
func (c *Config) AIEnabled() bool {
	return c.AI.APIKey != ""
}

// Load reads config from a YAML file, then applies environment variable overrides.
// An empty path skips the file and configures from the environment alone.
// Env vars use the prefix GYMLOG_ and underscore-separated paths:
//
//	GYMLOG_SERVER_HOST, GYMLOG_SERVER_PORT,
//	GYMLOG_DB_DRIVER, GYMLOG_DB_HOST, GYMLOG_DB_PORT, GYMLOG_DB_NAME,
//	GYMLOG_DB_USER, GYMLOG_DB_PASSWORD, GYMLOG_DB_SSLMODE, GYMLOG_DB_PATH,
//	GYMLOG_AUTH_DEV_USER, GYMLOG_AI_API_KEY, GYMLOG_AI_BASE_URL,
//	GYMLOG_AI_TIMEOUT, GYMLOG_LOG_LEVEL
//
// DATABASE_URL, OPENAI_API_KEY and PORT are honored as well.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GYMLOG_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := firstEnv("GYMLOG_SERVER_PORT", "PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("GYMLOG_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := firstEnv("GYMLOG_DB_URL", "DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("GYMLOG_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("GYMLOG_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("GYMLOG_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("GYMLOG_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("GYMLOG_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("GYMLOG_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("GYMLOG_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("GYMLOG_AUTH_DEV_USER"); v != "" {
		cfg.Auth.DevUser = v
	}
	if v := firstEnv("GYMLOG_AI_API_KEY", "OPENAI_API_KEY"); v != "" {
		cfg.AI.APIKey = v
	}
	if v := os.Getenv("GYMLOG_AI_BASE_URL"); v != "" {
		cfg.AI.BaseURL = v
	}
	if v := os.Getenv("GYMLOG_AI_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.AI.Timeout = d
		}
	}
	if v := os.Getenv("GYMLOG_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}

	db := &cfg.Database
	if db.Driver == "" {
		// Without a postgres URL or host, fall back to a local SQLite file.
		switch {
		case strings.HasPrefix(db.URL, "postgres://"), strings.HasPrefix(db.URL, "postgresql://"), db.Host != "":
			db.Driver = DriverPostgres
		case strings.HasPrefix(db.URL, "sqlite://"):
			db.Driver = DriverSQLite
			if db.Path == "" {
				db.Path = strings.TrimPrefix(db.URL, "sqlite://")
			}
		default:
			db.Driver = DriverSQLite
		}
	}
	if db.Driver == DriverSQLite && db.Path == "" {
		db.Path = "gymlog.db"
	}
	if db.Driver == DriverPostgres && db.URL == "" && db.Port == 0 {
		db.Port = 5432
	}

	ai := &cfg.AI
	if ai.ParseModel == "" {
		ai.ParseModel = "gpt-3.5-turbo"
	}
	if ai.CoachModel == "" {
		ai.CoachModel = ai.ParseModel
	}
	if ai.TranscribeModel == "" {
		ai.TranscribeModel = "whisper-1"
	}
	if ai.Timeout == 0 {
		ai.Timeout = 60 * time.Second
	}
	if ai.CoachLookback == 0 {
		ai.CoachLookback = 3
	}

	if cfg.RateLimit.AIPerMinute == 0 {
		cfg.RateLimit.AIPerMinute = 20
	}
	if cfg.RateLimit.AIBurst == 0 {
		cfg.RateLimit.AIBurst = 5
	}

	if cfg.Tailscale.Enabled && cfg.Tailscale.Hostname == "" {
		cfg.Tailscale.Hostname = "gymlog"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			if c.Database.Host == "" {
				return fmt.Errorf("database.host is required")
			}
			if c.Database.Name == "" {
				return fmt.Errorf("database.name is required")
			}
			if c.Database.User == "" {
				return fmt.Errorf("database.user is required")
			}
		}
	case DriverSQLite:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.Database.Driver)
	}
	for i, t := range c.Auth.Tokens {
		if t.Token == "" || t.UserID == "" {
			return fmt.Errorf("auth.tokens[%d] needs both token and user_id", i)
		}
	}
	if c.Auth.DevUser == "" && len(c.Auth.Tokens) == 0 && !c.Tailscale.Enabled {
		return fmt.Errorf("no identity source: set auth.dev_user, auth.tokens, or tailscale.enabled")
	}
	if c.AI.CoachLookback < 0 {
		return fmt.Errorf("ai.coach_lookback must not be negative")
	}
	if c.AI.Timeout < 0 {
		return fmt.Errorf("ai.timeout must not be negative")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}
