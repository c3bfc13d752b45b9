package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration.
type Config struct {
	Telegram struct {
		BotToken    string  `yaml:"bot_token"`
		PollTimeout int     `yaml:"poll_timeout_seconds"`
		AdminIDs    []int64 `yaml:"admin_ids"`
		DropPending bool    `yaml:"drop_pending_updates"`
	} `yaml:"telegram"`

	Storage struct {
		Backend string `yaml:"backend"` // "json" or "sqlite"
		Path    string `yaml:"path"`
	} `yaml:"storage"`

	RateLimit struct {
		Backend  string        `yaml:"backend"` // "memory" or "redis"
		Interval time.Duration `yaml:"interval"`
		RedisURL string        `yaml:"redis_url"`
	} `yaml:"rate_limit"`

	Generation struct {
		Provider      string        `yaml:"provider"` // "openai" or "local"
		OpenAIKey     string        `yaml:"openai_api_key"`
		OpenAIModel   string        `yaml:"openai_model"`
		OpenAIBaseURL string        `yaml:"openai_base_url"`
		MaxRetries    int           `yaml:"max_retries"`
		RetryDelay    time.Duration `yaml:"retry_delay"`
		Timeout       time.Duration `yaml:"timeout"`
		FallbackLocal bool          `yaml:"fallback_local"`
	} `yaml:"generation"`

	Questionnaire struct {
		Path string `yaml:"path"`
	} `yaml:"questionnaire"`

	HTTP struct {
		Enabled   bool          `yaml:"enabled"`
		Host      string        `yaml:"host"`
		Port      string        `yaml:"port"`
		JWTSecret string        `yaml:"jwt_secret"`
		TokenTTL  time.Duration `yaml:"token_ttl"`
	} `yaml:"http"`

	Log struct {
		Production bool `yaml:"production"`
	} `yaml:"log"`
}

const minSecretLen = 32

// ErrMissingToken is returned when no bot credential is configured.
var ErrMissingToken = errors.New("BOT_TOKEN is not set")

// LoadConfig reads configuration from the YAML file at configPath, applies
// defaults and environment overrides. A missing file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}
	config.Generation.FallbackLocal = true

	file, err := os.Open(configPath)
	switch {
	case err == nil:
		defer file.Close()
		decoder := yaml.NewDecoder(file)
		if err := decoder.Decode(config); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	return config, nil
}

func (c *Config) applyEnv() error {
	c.Telegram.BotToken = os.ExpandEnv(c.Telegram.BotToken)
	c.Generation.OpenAIKey = os.ExpandEnv(c.Generation.OpenAIKey)
	c.RateLimit.RedisURL = os.ExpandEnv(c.RateLimit.RedisURL)
	c.HTTP.JWTSecret = os.ExpandEnv(c.HTTP.JWTSecret)

	if v := os.Getenv("BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("ADMIN_IDS"); v != "" {
		ids, err := ParseAdminIDs(v)
		if err != nil {
			return err
		}
		c.Telegram.AdminIDs = ids
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Generation.OpenAIKey = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		c.Generation.OpenAIModel = v
	}
	if v := os.Getenv("DATABASE_FILE"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.RateLimit.RedisURL = v
		if c.RateLimit.Backend == "" {
			c.RateLimit.Backend = "redis"
		}
	}
	if v := os.Getenv("HTTP_HOST"); v != "" {
		c.HTTP.Host = v
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		c.HTTP.Port = v
	}
	if v := os.Getenv("ADMIN_API_SECRET"); v != "" {
		c.HTTP.JWTSecret = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Telegram.PollTimeout == 0 {
		c.Telegram.PollTimeout = 30
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "json"
	}
	if c.Storage.Path == "" {
		if c.Storage.Backend == "sqlite" {
			c.Storage.Path = "./data/psybot.db"
		} else {
			c.Storage.Path = "./data/database.json"
		}
	}
	if c.RateLimit.Backend == "" {
		c.RateLimit.Backend = "memory"
	}
	if c.RateLimit.Interval == 0 {
		c.RateLimit.Interval = 10 * time.Second
	}
	if c.Generation.Provider == "" {
		if c.Generation.OpenAIKey != "" {
			c.Generation.Provider = "openai"
		} else {
			c.Generation.Provider = "local"
		}
	}
	if c.Generation.OpenAIModel == "" {
		c.Generation.OpenAIModel = "gpt-4o"
	}
	if c.Generation.MaxRetries == 0 {
		c.Generation.MaxRetries = 3
	}
	if c.Generation.RetryDelay == 0 {
		c.Generation.RetryDelay = 2 * time.Second
	}
	if c.Generation.Timeout == 0 {
		c.Generation.Timeout = 60 * time.Second
	}
	if c.HTTP.Host == "" {
		c.HTTP.Host = "127.0.0.1"
	}
	if c.HTTP.Port == "" {
		c.HTTP.Port = "8080"
	}
	if c.HTTP.TokenTTL == 0 {
		c.HTTP.TokenTTL = 24 * time.Hour
	}
}

// Validate checks the settings the process cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.BotToken) == "" {
		return ErrMissingToken
	}
	switch c.Storage.Backend {
	case "json", "sqlite":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if c.RateLimit.RedisURL == "" {
			return errors.New("rate_limit.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown rate limit backend %q", c.RateLimit.Backend)
	}
	switch c.Generation.Provider {
	case "local":
	case "openai":
		if c.Generation.OpenAIKey == "" {
			return errors.New("OPENAI_API_KEY is required for the openai provider")
		}
	default:
		return fmt.Errorf("unknown generation provider %q", c.Generation.Provider)
	}
	if c.HTTP.Enabled && len(c.HTTP.JWTSecret) < minSecretLen {
		return fmt.Errorf("http.jwt_secret must be at least %d characters when the admin API is enabled", minSecretLen)
	}
	return nil
}

// ParseAdminIDs parses a comma separated list of Telegram user ids.
func ParseAdminIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid admin id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
