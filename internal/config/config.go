// Package config loads cybereason-mcp settings from defaults, an optional
// YAML file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/anatolykoptev/cybereason-mcp/internal/cybereason"
)

// Config is the root configuration.
type Config struct {
	Cybereason CybereasonConfig `yaml:"cybereason"`
	Server     ServerConfig     `yaml:"server"`
	Breaker    BreakerConfig    `yaml:"breaker"`
	A2A        A2AConfig        `yaml:"a2a"`
	Audit      AuditConfig      `yaml:"audit"`
	LogLevel   string           `yaml:"log_level"`
}

// CybereasonConfig is the console connection.
type CybereasonConfig struct {
	URL            string        `yaml:"url"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	VerifySSL      bool          `yaml:"verify_ssl"`
	APIVersion     string        `yaml:"api_version"`
	LoginTimeout   time.Duration `yaml:"login_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// ServerConfig controls the MCP HTTP listener and dispatcher.
type ServerConfig struct {
	Port          string `yaml:"port"`
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// BreakerConfig controls the circuit breaker around console calls.
type BreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// A2AConfig controls the optional A2A endpoint.
type A2AConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Secret    string `yaml:"secret"`
	PublicURL string `yaml:"public_url"`
}

// AuditConfig selects extra audit sinks. The log sink is always on.
type AuditConfig struct {
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`
	DatabaseURL    string `yaml:"database_url"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Cybereason: CybereasonConfig{
			VerifySSL:      true,
			APIVersion:     "v1",
			LoginTimeout:   30 * time.Second,
			RequestTimeout: 60 * time.Second,
		},
		Server: ServerConfig{
			Port:          "8766",
			MaxConcurrent: 8,
		},
		Breaker: BreakerConfig{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		LogLevel: "info",
	}
}

// Load reads .env (existing variables win), then the YAML file at path
// (or $CYBEREASON_CONFIG when path is empty), then environment overrides.
// Credentials are not checked here; client construction reports them.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env", slog.Any("error", err))
	}

	cfg := Default()
	if path == "" {
		path = os.Getenv("CYBEREASON_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	c := &cfg.Cybereason
	c.URL = env("CYBEREASON_URL", c.URL)
	c.Username = env("CYBEREASON_USERNAME", c.Username)
	c.Password = env("CYBEREASON_PASSWORD", c.Password)
	c.VerifySSL = envBool("CYBEREASON_VERIFY_SSL", c.VerifySSL)
	c.APIVersion = env("CYBEREASON_API_VERSION", c.APIVersion)
	c.LoginTimeout = envDuration("CYBEREASON_LOGIN_TIMEOUT", c.LoginTimeout)
	c.RequestTimeout = envDuration("CYBEREASON_REQUEST_TIMEOUT", c.RequestTimeout)

	cfg.Server.Port = env("CYBEREASON_MCP_PORT", cfg.Server.Port)
	cfg.Server.MaxConcurrent = envInt("CYBEREASON_MAX_CONCURRENT", cfg.Server.MaxConcurrent)

	cfg.Breaker.Enabled = envBool("CYBEREASON_BREAKER_ENABLED", cfg.Breaker.Enabled)
	cfg.Breaker.MaxFailures = uint32(envInt("CYBEREASON_BREAKER_MAX_FAILURES", int(cfg.Breaker.MaxFailures)))
	cfg.Breaker.Timeout = envDuration("CYBEREASON_BREAKER_TIMEOUT", cfg.Breaker.Timeout)

	cfg.A2A.Enabled = envBool("CYBEREASON_A2A_ENABLED", cfg.A2A.Enabled)
	cfg.A2A.Secret = env("CYBEREASON_A2A_SECRET", cfg.A2A.Secret)
	cfg.A2A.PublicURL = env("CYBEREASON_A2A_PUBLIC_URL", cfg.A2A.PublicURL)

	cfg.Audit.TelegramToken = env("CYBEREASON_AUDIT_TELEGRAM_TOKEN", cfg.Audit.TelegramToken)
	cfg.Audit.TelegramChatID = envInt64("CYBEREASON_AUDIT_TELEGRAM_CHAT_ID", cfg.Audit.TelegramChatID)
	cfg.Audit.DatabaseURL = env("CYBEREASON_AUDIT_DATABASE_URL", cfg.Audit.DatabaseURL)

	cfg.LogLevel = env("CYBEREASON_LOG_LEVEL", cfg.LogLevel)
}

// Client converts the connection settings for cybereason.NewClient.
func (c *Config) Client() cybereason.Config {
	return cybereason.Config{
		BaseURL:            c.Cybereason.URL,
		Username:           c.Cybereason.Username,
		Password:           c.Cybereason.Password,
		VerifySSL:          c.Cybereason.VerifySSL,
		APIVersion:         c.Cybereason.APIVersion,
		LoginTimeout:       c.Cybereason.LoginTimeout,
		RequestTimeout:     c.Cybereason.RequestTimeout,
		BreakerEnabled:     c.Breaker.Enabled,
		BreakerMaxFailures: c.Breaker.MaxFailures,
		BreakerTimeout:     c.Breaker.Timeout,
	}
}

// SlogLevel maps LogLevel onto slog levels; unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// TelegramAudit reports whether the Telegram audit sink is configured.
func (c *Config) TelegramAudit() bool {
	return c.Audit.TelegramToken != "" && c.Audit.TelegramChatID != 0
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envBool treats only "false", "0" and "no" as false.
func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "":
		return def
	case "false", "0", "no":
		return false
	}
	return true
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

// envDuration accepts a Go duration ("90s") or a plain number of seconds.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}
