package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var envKeys = []string{
	"CYBEREASON_CONFIG", "CYBEREASON_URL", "CYBEREASON_USERNAME", "CYBEREASON_PASSWORD",
	"CYBEREASON_VERIFY_SSL", "CYBEREASON_API_VERSION", "CYBEREASON_LOGIN_TIMEOUT",
	"CYBEREASON_REQUEST_TIMEOUT", "CYBEREASON_MCP_PORT", "CYBEREASON_MAX_CONCURRENT",
	"CYBEREASON_BREAKER_ENABLED", "CYBEREASON_BREAKER_MAX_FAILURES", "CYBEREASON_BREAKER_TIMEOUT",
	"CYBEREASON_A2A_ENABLED", "CYBEREASON_A2A_SECRET", "CYBEREASON_A2A_PUBLIC_URL",
	"CYBEREASON_AUDIT_TELEGRAM_TOKEN", "CYBEREASON_AUDIT_TELEGRAM_CHAT_ID",
	"CYBEREASON_AUDIT_DATABASE_URL", "CYBEREASON_LOG_LEVEL",
}

// isolate runs the test in an empty directory with all known keys unset.
func isolate(t *testing.T) string {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Cybereason.VerifySSL {
		t.Error("VerifySSL default = false, want true")
	}
	if cfg.Cybereason.APIVersion != "v1" {
		t.Errorf("APIVersion = %q, want v1", cfg.Cybereason.APIVersion)
	}
	if cfg.Cybereason.LoginTimeout != 30*time.Second || cfg.Cybereason.RequestTimeout != 60*time.Second {
		t.Errorf("timeouts = %v/%v, want 30s/60s", cfg.Cybereason.LoginTimeout, cfg.Cybereason.RequestTimeout)
	}
	if cfg.Server.Port != "8766" || cfg.Server.MaxConcurrent != 8 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.A2A.Enabled || cfg.Breaker.Enabled || cfg.TelegramAudit() {
		t.Error("optional features enabled by default")
	}
}

func TestLoad_Env(t *testing.T) {
	isolate(t)
	t.Setenv("CYBEREASON_URL", "https://console.example")
	t.Setenv("CYBEREASON_USERNAME", "u")
	t.Setenv("CYBEREASON_PASSWORD", "p")
	t.Setenv("CYBEREASON_VERIFY_SSL", "False")
	t.Setenv("CYBEREASON_API_VERSION", "v2")
	t.Setenv("CYBEREASON_LOGIN_TIMEOUT", "10")
	t.Setenv("CYBEREASON_REQUEST_TIMEOUT", "2m")
	t.Setenv("CYBEREASON_BREAKER_ENABLED", "true")
	t.Setenv("CYBEREASON_AUDIT_TELEGRAM_TOKEN", "tok")
	t.Setenv("CYBEREASON_AUDIT_TELEGRAM_CHAT_ID", "-100123")
	t.Setenv("CYBEREASON_LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cc := cfg.Client()
	if cc.BaseURL != "https://console.example" || cc.Username != "u" || cc.Password != "p" {
		t.Errorf("client config = %+v", cc)
	}
	if cc.VerifySSL {
		t.Error("VerifySSL = true, want false")
	}
	if cc.APIVersion != "v2" || cc.LoginTimeout != 10*time.Second || cc.RequestTimeout != 2*time.Minute {
		t.Errorf("client config = %+v", cc)
	}
	if !cc.BreakerEnabled || cc.BreakerMaxFailures != 5 {
		t.Errorf("breaker = %v/%d", cc.BreakerEnabled, cc.BreakerMaxFailures)
	}
	if !cfg.TelegramAudit() || cfg.Audit.TelegramChatID != -100123 {
		t.Errorf("audit = %+v", cfg.Audit)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel = %v", cfg.SlogLevel())
	}
}

func TestLoad_YAMLWithEnvOverride(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	yamlText := `
cybereason:
  url: https://from-file.example
  username: file-user
  verify_ssl: false
  api_version: v2
  request_timeout: 45s
server:
  port: "9000"
breaker:
  enabled: true
  max_failures: 3
a2a:
  enabled: true
  secret: s3
log_level: warn
`
	if err := os.WriteFile(path, []byte(yamlText), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CYBEREASON_USERNAME", "env-user")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cybereason.URL != "https://from-file.example" {
		t.Errorf("URL = %q", cfg.Cybereason.URL)
	}
	if cfg.Cybereason.Username != "env-user" {
		t.Errorf("Username = %q, want env override", cfg.Cybereason.Username)
	}
	if cfg.Cybereason.VerifySSL {
		t.Error("VerifySSL = true, want false from file")
	}
	if cfg.Cybereason.RequestTimeout != 45*time.Second {
		t.Errorf("RequestTimeout = %v", cfg.Cybereason.RequestTimeout)
	}
	if cfg.Cybereason.LoginTimeout != 30*time.Second {
		t.Errorf("LoginTimeout = %v, want default kept", cfg.Cybereason.LoginTimeout)
	}
	if cfg.Server.Port != "9000" || cfg.Breaker.MaxFailures != 3 || !cfg.A2A.Enabled || cfg.A2A.Secret != "s3" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.SlogLevel() != slog.LevelWarn {
		t.Errorf("SlogLevel = %v", cfg.SlogLevel())
	}
}

func TestLoad_ConfigFromEnvPath(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "c.yaml")
	if err := os.WriteFile(path, []byte("cybereason:\n  url: https://x.example\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CYBEREASON_CONFIG", path)

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Cybereason.URL != "https://x.example" {
		t.Errorf("URL = %q", cfg.Cybereason.URL)
	}
}

func TestLoad_Dotenv(t *testing.T) {
	dir := isolate(t)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("CYBEREASON_USERNAME=dotenv-user\nCYBEREASON_PASSWORD=dotenv-pass\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// Existing non-empty variables win over .env.
	t.Setenv("CYBEREASON_PASSWORD", "real-pass")
	os.Unsetenv("CYBEREASON_USERNAME")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Cybereason.Username != "dotenv-user" {
		t.Errorf("Username = %q, want value from .env", cfg.Cybereason.Username)
	}
	if cfg.Cybereason.Password != "real-pass" {
		t.Errorf("Password = %q, want environment value", cfg.Cybereason.Password)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := isolate(t)
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("missing file: error = nil")
	}
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("cybereason: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil {
		t.Error("bad yaml: error = nil")
	}
}

func TestEnvBool(t *testing.T) {
	tests := []struct {
		val  string
		def  bool
		want bool
	}{
		{"", true, true},
		{"", false, false},
		{"false", true, false},
		{"FALSE", true, false},
		{"0", true, false},
		{"true", false, true},
		{"yes", false, true},
	}
	for _, tt := range tests {
		t.Setenv("X_BOOL", tt.val)
		if got := envBool("X_BOOL", tt.def); got != tt.want {
			t.Errorf("envBool(%q, %v) = %v, want %v", tt.val, tt.def, got, tt.want)
		}
	}
}
