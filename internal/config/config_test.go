package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "token")
	t.Setenv("ADMIN_IDS", "")
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Storage.Backend != "json" || cfg.Storage.Path != "./data/database.json" {
		t.Fatalf("unexpected storage defaults: %+v", cfg.Storage)
	}
	if cfg.RateLimit.Interval != 10*time.Second {
		t.Fatalf("rate limit interval = %s, want 10s", cfg.RateLimit.Interval)
	}
	if cfg.Generation.Provider != "local" {
		t.Fatalf("provider = %q, want local without an api key", cfg.Generation.Provider)
	}
	if cfg.HTTP.Enabled || cfg.HTTP.Host != "127.0.0.1" || cfg.HTTP.TokenTTL != 24*time.Hour {
		t.Fatalf("admin API should be off and loopback-only by default: %+v", cfg.HTTP)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	t.Setenv("ADMIN_IDS", "10, 20")
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("SECRET_TOKEN", "from-env")
	t.Setenv("API_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("ADMIN_API_SECRET", "")

	path := writeConfig(t, `
telegram:
  bot_token: ${SECRET_TOKEN}
  admin_ids: [1]
storage:
  backend: sqlite
rate_limit:
  interval: 3s
generation:
  timeout: 15s
http:
  enabled: true
  jwt_secret: ${API_SECRET}
  token_ttl: 1h
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Telegram.BotToken != "from-env" {
		t.Errorf("bot token = %q", cfg.Telegram.BotToken)
	}
	if len(cfg.Telegram.AdminIDs) != 2 || cfg.Telegram.AdminIDs[0] != 10 || cfg.Telegram.AdminIDs[1] != 20 {
		t.Errorf("admin ids = %v, want [10 20]", cfg.Telegram.AdminIDs)
	}
	if cfg.Storage.Path != "./data/psybot.db" {
		t.Errorf("sqlite path = %q", cfg.Storage.Path)
	}
	if cfg.RateLimit.Interval != 3*time.Second {
		t.Errorf("interval = %s", cfg.RateLimit.Interval)
	}
	if cfg.Generation.Timeout != 15*time.Second {
		t.Errorf("timeout = %s", cfg.Generation.Timeout)
	}
	if cfg.HTTP.JWTSecret != "0123456789abcdef0123456789abcdef" || cfg.HTTP.TokenTTL != time.Hour {
		t.Errorf("http = %+v", cfg.HTTP)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "ok", mutate: func(c *Config) {}},
		{name: "missing token", mutate: func(c *Config) { c.Telegram.BotToken = " " }, wantErr: true},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Backend = "mongo" }, wantErr: true},
		{name: "redis without url", mutate: func(c *Config) { c.RateLimit.Backend = "redis" }, wantErr: true},
		{name: "openai without key", mutate: func(c *Config) { c.Generation.Provider = "openai" }, wantErr: true},
		{name: "api without secret", mutate: func(c *Config) { c.HTTP.Enabled = true }, wantErr: true},
		{name: "api with short secret", mutate: func(c *Config) {
			c.HTTP.Enabled = true
			c.HTTP.JWTSecret = "short"
		}, wantErr: true},
		{name: "api with secret", mutate: func(c *Config) {
			c.HTTP.Enabled = true
			c.HTTP.JWTSecret = "0123456789abcdef0123456789abcdef"
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := &Config{}
			c.Telegram.BotToken = "token"
			c.applyDefaults()
			tc.mutate(c)
			err := c.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestParseAdminIDs(t *testing.T) {
	ids, err := ParseAdminIDs("196035876,,42 ")
	if err != nil {
		t.Fatalf("ParseAdminIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != 196035876 || ids[1] != 42 {
		t.Fatalf("ids = %v", ids)
	}
	if _, err := ParseAdminIDs("abc"); err == nil {
		t.Fatal("expected error for non-numeric id")
	}
}
