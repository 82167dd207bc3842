package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	TransportTelegram = "telegram"
	TransportDiscord  = "discord"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	// Chat transport
	Transport     string
	TelegramToken string
	DiscordToken  string

	// Database
	DBDriver    string
	DBPath      string
	DatabaseURL string

	// Exchange rates
	ExchangeAPIKey string
	ExchangeAPIURL string
	RatesBase      string
	RatesTimeout   time.Duration

	// Presentation
	CurrencySymbol string

	// Conversation sessions
	SessionIdleTimeout time.Duration

	// Web API (disabled when WebBind is empty)
	WebBind   string
	JWTSecret string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads the configuration from the environment, after loading .env if present.
func Load() (*Config, error) {
	cfg, err := LoadEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv is Load without the chat credential checks, for maintenance commands.
func LoadEnv() (*Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from environment variables without validating chat credentials.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Transport:      strings.ToLower(getEnvDefault("TRANSPORT", TransportTelegram)),
		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		DiscordToken:   os.Getenv("DISCORD_TOKEN"),
		DBDriver:       strings.ToLower(getEnvDefault("DB_DRIVER", DriverSQLite)),
		DBPath:         getEnvDefault("DB_PATH", "finance.db"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		ExchangeAPIKey: os.Getenv("EXCHANGE_API_KEY"),
		ExchangeAPIURL: getEnvDefault("EXCHANGE_API_URL", "https://v6.exchangerate-api.com/v6"),
		RatesBase:      strings.ToUpper(getEnvDefault("RATES_BASE", "USD")),
		CurrencySymbol: getEnvDefault("CURRENCY_SYMBOL", "₽"),
		WebBind:        os.Getenv("WEB_BIND"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		LogLevel:       getEnvDefault("LOG_LEVEL", "info"),
		LogFormat:      getEnvDefault("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.RatesTimeout, err = getDurationDefault("RATES_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.SessionIdleTimeout, err = getDurationDefault("SESSION_IDLE_TIMEOUT", 30*time.Minute); err != nil {
		return nil, err
	}

	switch cfg.DBDriver {
	case DriverSQLite:
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	if cfg.WebBind != "" && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required when WEB_BIND is set")
	}

	return cfg, nil
}

// Validate checks that the selected chat transport has its credentials.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportTelegram:
		if c.TelegramToken == "" {
			return fmt.Errorf("TELEGRAM_TOKEN is required")
		}
	case TransportDiscord:
		if c.DiscordToken == "" {
			return fmt.Errorf("DISCORD_TOKEN is required")
		}
	default:
		return fmt.Errorf("unsupported TRANSPORT %q", c.Transport)
	}
	return nil
}

// APIEnabled reports whether the read-only web API should be served.
func (c *Config) APIEnabled() bool {
	return c.WebBind != ""
}

func getEnvDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}
