// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port            int           `yaml:"port"`
	PublicURL       string        `yaml:"public_url"` // used to build links in emails
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type StorageConfig struct {
	Driver   string `yaml:"driver"` // postgres | bolt
	BoltPath string `yaml:"bolt_path"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type PixConfig struct {
	Provider      string        `yaml:"provider"` // openpix | noop
	BaseURL       string        `yaml:"base_url"`
	AppID         string        `yaml:"app_id"`
	WebhookSecret string        `yaml:"webhook_secret"`
	WebhookPath   string        `yaml:"webhook_path"`
	Timeout       time.Duration `yaml:"timeout"`
}

type CheckoutConfig struct {
	PollInterval     time.Duration `yaml:"poll_interval"`
	NavigateDelay    time.Duration `yaml:"navigate_delay"`
	MaxPollDuration  time.Duration `yaml:"max_poll_duration"` // 0 = poll until settled or closed
	SessionRetention time.Duration `yaml:"session_retention"`
	ConfirmationPath string        `yaml:"confirmation_path"`
	Currency         string        `yaml:"currency"`
}

type EmailConfig struct {
	RelayURL string        `yaml:"relay_url"`
	APIKey   string        `yaml:"api_key"`
	From     string        `yaml:"from"`
	Timeout  time.Duration `yaml:"timeout"`
}

type AttributionConfig struct {
	RelayURL string        `yaml:"relay_url"`
	Token    string        `yaml:"token"`
	Platform string        `yaml:"platform"`
	Timeout  time.Duration `yaml:"timeout"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

type AdminConfig struct {
	Username     string        `yaml:"username"`
	PasswordHash string        `yaml:"password_hash"` // bcrypt
	JWTSecret    string        `yaml:"jwt_secret"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
	SecureCookie bool          `yaml:"secure_cookie"`
}

type WorkersConfig struct {
	Size int `yaml:"size"`
}

type SchedulerConfig struct {
	ExpireInterval time.Duration `yaml:"expire_interval"`
	ExpireAfter    time.Duration `yaml:"expire_after"`
}

type RateLimitConfig struct {
	CheckoutPerMinute int `yaml:"checkout_per_minute"`
}

type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Log         LogConfig         `yaml:"log"`
	Storage     StorageConfig     `yaml:"storage"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Pix         PixConfig         `yaml:"pix"`
	Checkout    CheckoutConfig    `yaml:"checkout"`
	Email       EmailConfig       `yaml:"email"`
	Attribution AttributionConfig `yaml:"attribution"`
	Telegram    TelegramConfig    `yaml:"telegram"`
	Admin       AdminConfig       `yaml:"admin"`
	Workers     WorkersConfig     `yaml:"workers"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file, loads .env (if present) and lets environment
// variables override secrets. Credentials are never compiled in.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg.applyEnv(os.Getenv)
	cfg.Runtime.Dev = dev
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Pix.AppID, "PIX_APP_ID")
	set(&c.Pix.WebhookSecret, "PIX_WEBHOOK_SECRET")
	set(&c.Email.APIKey, "EMAIL_API_KEY")
	set(&c.Attribution.Token, "ATTRIBUTION_API_TOKEN")
	set(&c.Database.URL, "DATABASE_URL")
	set(&c.Redis.URL, "REDIS_URL")
	set(&c.Admin.JWTSecret, "ADMIN_JWT_SECRET")
	set(&c.Admin.PasswordHash, "ADMIN_PASSWORD_HASH")
	set(&c.Telegram.Token, "TELEGRAM_TOKEN")
	if v := strings.TrimSpace(getenv("TELEGRAM_CHAT_ID")); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Telegram.ChatID = id
		}
	}
}

func (c *Config) applyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	c.HTTP.ReadTimeout = orDefault(c.HTTP.ReadTimeout, 10*time.Second)
	c.HTTP.WriteTimeout = orDefault(c.HTTP.WriteTimeout, 15*time.Second)
	c.HTTP.RequestTimeout = orDefault(c.HTTP.RequestTimeout, 10*time.Second)
	c.HTTP.ShutdownTimeout = orDefault(c.HTTP.ShutdownTimeout, 10*time.Second)
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "postgres"
	}
	if c.Storage.BoltPath == "" {
		c.Storage.BoltPath = "checkout.db"
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 10
	}
	c.Redis.TTL = orDefault(c.Redis.TTL, time.Hour)
	if c.Pix.Provider == "" {
		c.Pix.Provider = "openpix"
	}
	if c.Pix.BaseURL == "" {
		c.Pix.BaseURL = "https://api.openpix.com.br/api/v1"
	}
	if c.Pix.WebhookPath == "" {
		c.Pix.WebhookPath = "/webhook/pix"
	}
	c.Pix.Timeout = orDefault(c.Pix.Timeout, 15*time.Second)
	c.Checkout.PollInterval = orDefault(c.Checkout.PollInterval, 5*time.Second)
	c.Checkout.NavigateDelay = orDefault(c.Checkout.NavigateDelay, 2*time.Second)
	c.Checkout.SessionRetention = orDefault(c.Checkout.SessionRetention, 10*time.Minute)
	if c.Checkout.ConfirmationPath == "" {
		c.Checkout.ConfirmationPath = "/obrigado"
	}
	if c.Checkout.Currency == "" {
		c.Checkout.Currency = "BRL"
	}
	c.Email.Timeout = orDefault(c.Email.Timeout, 10*time.Second)
	c.Attribution.Timeout = orDefault(c.Attribution.Timeout, 10*time.Second)
	if c.Attribution.Platform == "" {
		c.Attribution.Platform = "pix-checkout"
	}
	c.Admin.SessionTTL = orDefault(c.Admin.SessionTTL, 12*time.Hour)
	if c.Workers.Size <= 0 {
		c.Workers.Size = 4
	}
	c.Scheduler.ExpireInterval = orDefault(c.Scheduler.ExpireInterval, time.Minute)
	c.Scheduler.ExpireAfter = orDefault(c.Scheduler.ExpireAfter, 30*time.Minute)
	if c.RateLimit.CheckoutPerMinute <= 0 {
		c.RateLimit.CheckoutPerMinute = 10
	}
}

// Validate performs minimal checks; the noop provider only runs in dev mode.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("database.url is required when storage.driver=postgres")
		}
	case "bolt":
	default:
		return fmt.Errorf("storage.driver %q not supported", c.Storage.Driver)
	}
	switch c.Pix.Provider {
	case "openpix":
		if c.Pix.AppID == "" {
			return errors.New("pix.app_id is required (or PIX_APP_ID)")
		}
	case "noop":
		if !c.Runtime.Dev {
			return errors.New("pix.provider=noop is only allowed with --dev")
		}
	default:
		return fmt.Errorf("pix.provider %q not supported", c.Pix.Provider)
	}
	if c.Admin.Username != "" && (c.Admin.PasswordHash == "" || c.Admin.JWTSecret == "") {
		return errors.New("admin.password_hash and admin.jwt_secret are required when admin.username is set")
	}
	return nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
