package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Scraper  ScraperConfig
	Browser  BrowserConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

type ScraperConfig struct {
	MaxRetries     int
	RetryDelay     time.Duration
	RateLimitDelay time.Duration
	WarmupRows     int
	Timeout        time.Duration
	ConnectTimeout time.Duration
	UserAgent      string
}

type BrowserConfig struct {
	Endpoint       string
	Headless       bool
	Timeout        time.Duration
	SettleDelay    time.Duration
	WaitTimeout    time.Duration
	ViewportWidth  int
	ViewportHeight int
	Locale         string
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

// DSN prefers an explicit DATABASE_URL over the discrete settings.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

// Enabled reports whether results should be published to Redis.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getStringSliceOrDefault("SERVER_ALLOWED_ORIGINS", []string{"*"}),
		},
		Scraper: ScraperConfig{
			MaxRetries:     getIntOrDefault("SCRAPER_MAX_RETRIES", 3),
			RetryDelay:     getDurationOrDefault("SCRAPER_RETRY_DELAY", 2*time.Second),
			RateLimitDelay: getDurationOrDefault("SCRAPER_RATE_LIMIT_DELAY", 5*time.Second),
			WarmupRows:     getIntOrDefault("SCRAPER_WARMUP_ROWS", 2),
			Timeout:        getDurationOrDefault("SCRAPER_TIMEOUT", 30*time.Second),
			ConnectTimeout: getDurationOrDefault("SCRAPER_CONNECT_TIMEOUT", 15*time.Second),
			UserAgent:      getEnvOrDefault("SCRAPER_USER_AGENT", ""),
		},
		Browser: BrowserConfig{
			Endpoint:       getEnvOrDefault("BROWSER_ENDPOINT", ""),
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			SettleDelay:    getDurationOrDefault("BROWSER_SETTLE_DELAY", 5*time.Second),
			WaitTimeout:    getDurationOrDefault("BROWSER_WAIT_TIMEOUT", 20*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "en-US"),
		},
		Database: DatabaseConfig{
			URL:      getEnvOrDefault("DATABASE_URL", ""),
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "competitor_prices"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 5)),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", ""),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:competitor_prices"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Scraper.MaxRetries < 1 {
		return fmt.Errorf("SCRAPER_MAX_RETRIES must be at least 1")
	}

	if c.Scraper.RetryDelay < 0 || c.Scraper.RateLimitDelay < 0 {
		return fmt.Errorf("SCRAPER_RETRY_DELAY and SCRAPER_RATE_LIMIT_DELAY cannot be negative")
	}

	if c.Scraper.WarmupRows < 0 {
		return fmt.Errorf("SCRAPER_WARMUP_ROWS cannot be negative")
	}

	if c.Scraper.ConnectTimeout > c.Scraper.Timeout {
		return fmt.Errorf("SCRAPER_CONNECT_TIMEOUT cannot be greater than SCRAPER_TIMEOUT")
	}

	if c.Browser.WaitTimeout <= 0 {
		return fmt.Errorf("BROWSER_WAIT_TIMEOUT must be positive")
	}

	if c.Browser.Endpoint != "" && !strings.Contains(c.Browser.Endpoint, "://") && !strings.Contains(c.Browser.Endpoint, ":") {
		return fmt.Errorf("BROWSER_ENDPOINT must be host:port or a ws:// URL, got %q", c.Browser.Endpoint)
	}

	if c.Database.MaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be at least 1")
	}

	if c.Redis.Enabled() && c.Redis.Stream == "" {
		return fmt.Errorf("REDIS_STREAM is required when REDIS_ADDR is set")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}
