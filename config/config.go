package config

import (
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Cron       CronConfig
	Extraction ExtractionConfig
	Cache      CacheConfig
	Store      StoreConfig
	Notify     NotifyConfig
	Pricing    PricingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	APIToken       string   `mapstructure:"api_token"`
}

// Env returns the parsed server environment.
func (s ServerConfig) Env() Environment {
	return ParseEnvironment(s.Environment)
}

// CronConfig holds the price check trigger configuration
type CronConfig struct {
	Secret   string `mapstructure:"secret"`
	Schedule string `mapstructure:"schedule"`
	Timezone string `mapstructure:"timezone"`
	Enabled  bool   `mapstructure:"enabled"`
}

// ExtractionConfig holds configuration for the product extraction service
type ExtractionConfig struct {
	Provider       string          `mapstructure:"provider"` // "firecrawl", "html" or "gemini"
	Firecrawl      FirecrawlConfig `mapstructure:"firecrawl"`
	Gemini         GeminiConfig    `mapstructure:"gemini"`
	Timeout        time.Duration   `mapstructure:"timeout"`
	RatePerMinute  int             `mapstructure:"rate_per_minute"`
	Burst          int             `mapstructure:"burst"`
	MaxConcurrency int             `mapstructure:"max_concurrency"`
}

// FirecrawlConfig holds Firecrawl API configuration
type FirecrawlConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// StoreConfig holds tracked-product store configuration
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // "sqlite" or "postgres"
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
}

// NotifyConfig holds notification sink configuration
type NotifyConfig struct {
	Type     string         `mapstructure:"type"` // "log", "email" or "telegram"
	Email    EmailConfig    `mapstructure:"email"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// EmailConfig holds Resend e-mail API configuration
type EmailConfig struct {
	APIKey  string `mapstructure:"api_key"`
	From    string `mapstructure:"from"`
	BaseURL string `mapstructure:"base_url"`
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

// PricingConfig holds price normalization configuration
type PricingConfig struct {
	DefaultCurrency string `mapstructure:"default_currency"`
}

var currencyCodeRegex = regexp.MustCompile(`^[A-Z]{3}$`)

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/pricewatch/")

	// Environment variable settings
	v.SetEnvPrefix("PRICEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads .env from the working directory without overriding
// variables that are already set. A missing file is not an error.
func loadEnvFile() error {
	err := godotenv.Load(".env")
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// setDefaults sets default configuration values. Every key gets a default so
// AutomaticEnv can resolve it.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.api_token", "")

	// Cron defaults
	v.SetDefault("cron.secret", "")
	v.SetDefault("cron.schedule", "0 */6 * * *")
	v.SetDefault("cron.timezone", "UTC")
	v.SetDefault("cron.enabled", true)

	// Extraction defaults
	v.SetDefault("extraction.provider", "firecrawl")
	v.SetDefault("extraction.firecrawl.api_key", "")
	v.SetDefault("extraction.firecrawl.base_url", "https://api.firecrawl.dev")
	v.SetDefault("extraction.gemini.api_key", "")
	v.SetDefault("extraction.gemini.base_url", "")
	v.SetDefault("extraction.gemini.model", "gemini-2.5-flash")
	v.SetDefault("extraction.timeout", "45s")
	v.SetDefault("extraction.rate_per_minute", 60)
	v.SetDefault("extraction.burst", 5)
	v.SetDefault("extraction.max_concurrency", 4)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "5m")

	// Store defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "pricewatch.db")
	v.SetDefault("store.dsn", "")

	// Notify defaults
	v.SetDefault("notify.type", "log")
	v.SetDefault("notify.email.api_key", "")
	v.SetDefault("notify.email.from", "")
	v.SetDefault("notify.email.base_url", "https://api.resend.com")
	v.SetDefault("notify.telegram.token", "")

	// Pricing defaults
	v.SetDefault("pricing.default_currency", "USD")
}

// validate validates the configuration
func validate(config *Config) error {
	switch config.Extraction.Provider {
	case "firecrawl":
		if config.Extraction.Firecrawl.APIKey == "" {
			return fmt.Errorf("Firecrawl API key is required (set PRICEWATCH_EXTRACTION_FIRECRAWL_API_KEY)")
		}
	case "gemini":
		if config.Extraction.Gemini.APIKey == "" {
			return fmt.Errorf("Gemini API key is required (set PRICEWATCH_EXTRACTION_GEMINI_API_KEY)")
		}
	case "html":
	default:
		return fmt.Errorf("extraction provider must be 'firecrawl', 'html' or 'gemini', got: %s", config.Extraction.Provider)
	}

	if config.Extraction.MaxConcurrency < 1 {
		return fmt.Errorf("extraction max_concurrency must be at least 1, got: %d", config.Extraction.MaxConcurrency)
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	switch config.Store.Driver {
	case "sqlite":
		if config.Store.Path == "" {
			return fmt.Errorf("store path is required when driver is 'sqlite'")
		}
	case "postgres":
		if config.Store.DSN == "" {
			return fmt.Errorf("store DSN is required when driver is 'postgres'")
		}
	default:
		return fmt.Errorf("store driver must be 'sqlite' or 'postgres', got: %s", config.Store.Driver)
	}

	switch config.Notify.Type {
	case "log":
	case "email":
		if config.Notify.Email.APIKey == "" || config.Notify.Email.From == "" {
			return fmt.Errorf("e-mail API key and sender are required when notify type is 'email'")
		}
	case "telegram":
		if config.Notify.Telegram.Token == "" {
			return fmt.Errorf("Telegram token is required when notify type is 'telegram'")
		}
	default:
		return fmt.Errorf("notify type must be 'log', 'email' or 'telegram', got: %s", config.Notify.Type)
	}

	if !currencyCodeRegex.MatchString(config.Pricing.DefaultCurrency) {
		return fmt.Errorf("default currency must be a 3-letter ISO code, got: %q", config.Pricing.DefaultCurrency)
	}

	return nil
}
