package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Config holds application configuration
type Config struct {
	Port           int      `envconfig:"PORT" default:"8080"`
	Environment    string   `envconfig:"APP_ENV" default:"development"`
	BaseURL        string   `envconfig:"BASE_URL" default:"http://localhost:8080"`
	MarketTimezone string   `envconfig:"MARKET_TIMEZONE" default:"Asia/Kolkata"`
	LogLevel       string   `envconfig:"LOG_LEVEL" default:"info"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"*"`

	// Database configuration
	Database DatabaseConfig `envconfig:"DB"`

	// Redis configuration
	Redis RedisConfig `envconfig:"REDIS"`

	// LLM configuration
	LLM LLMConfig `envconfig:"LLM"`

	// Sector/industry reference files
	Reference ReferenceConfig `envconfig:"REFERENCE"`

	// News retention
	News NewsConfig `envconfig:"NEWS"`

	// Webhook receive rate limiting
	RateLimit RateLimitConfig `envconfig:"RATE_LIMIT"`
}

// DatabaseConfig holds postgres connection settings
type DatabaseConfig struct {
	Host     string `envconfig:"HOST" default:"localhost"`
	Port     int    `envconfig:"PORT" default:"5432"`
	Name     string `envconfig:"NAME" default:"nse_pulse"`
	User     string `envconfig:"USER" default:"nse"`
	Password string `envconfig:"PASSWORD" default:"nse123"`
	SSLMode  string `envconfig:"SSLMODE" default:"disable"`
}

// RedisConfig holds redis connection settings
type RedisConfig struct {
	Host     string `envconfig:"HOST" default:"localhost"`
	Port     string `envconfig:"PORT" default:"6379"`
	Password string `envconfig:"PASSWORD" default:""`
}

// LLMConfig holds LLM service configuration
type LLMConfig struct {
	Enabled      bool          `envconfig:"ENABLED" default:"false"`
	Endpoint     string        `envconfig:"ENDPOINT" default:"https://api.openai.com/v1"`
	APIKey       string        `envconfig:"API_KEY"`
	Model        string        `envconfig:"MODEL" default:"gpt-4o-mini"`
	MaxRetries   int           `envconfig:"MAX_RETRIES" default:"3"`
	RetryBackoff time.Duration `envconfig:"RETRY_BACKOFF" default:"2s"`
	Timeout      time.Duration `envconfig:"TIMEOUT" default:"90s"`
}

// ReferenceConfig points at the sector and industry constituent files
type ReferenceConfig struct {
	SectorFile   string `envconfig:"SECTOR_FILE" default:"data/sectors.json"`
	IndustryFile string `envconfig:"INDUSTRY_FILE" default:"data/industries.json"`
}

// NewsConfig controls the stored AI news lifecycle
type NewsConfig struct {
	RetentionDays   int    `envconfig:"RETENTION_DAYS" default:"7"`
	CleanupSchedule string `envconfig:"CLEANUP_SCHEDULE" default:"0 2 * * *"`
}

// RateLimitConfig is the per-client token bucket for inbound webhooks
type RateLimitConfig struct {
	RPS   float64 `envconfig:"RPS" default:"5"`
	Burst int     `envconfig:"BURST" default:"15"`
}

// LoadFromEnv loads configuration from the environment, reading a .env file first if present
func LoadFromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d", c.Port)
	}
	if _, err := c.loadLocation(); err != nil {
		return fmt.Errorf("invalid MARKET_TIMEZONE %q: %w", c.MarketTimezone, err)
	}
	if c.LLM.Enabled && c.LLM.Endpoint == "" {
		return fmt.Errorf("LLM_ENDPOINT is required when LLM_ENABLED=true")
	}
	if c.RateLimit.RPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive")
	}
	if c.News.RetentionDays < 1 {
		return fmt.Errorf("NEWS_RETENTION_DAYS must be at least 1")
	}
	return nil
}

// IsProduction reports whether APP_ENV is production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// WebhookBaseURL is the public base for generated webhook URLs.
// Production always advertises https.
func (c *Config) WebhookBaseURL() string {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.IsProduction() && strings.HasPrefix(base, "http://") {
		base = "https://" + strings.TrimPrefix(base, "http://")
	}
	return base
}

// Location returns the market timezone, IST when it cannot be loaded
func (c *Config) Location() *time.Location {
	loc, err := c.loadLocation()
	if err != nil {
		return time.FixedZone("IST", 5*60*60+30*60)
	}
	return loc
}

func (c *Config) loadLocation() (*time.Location, error) {
	name := c.MarketTimezone
	if name == "" {
		name = "Asia/Kolkata"
	}
	return time.LoadLocation(name)
}
