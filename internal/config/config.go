// Package config loads server configuration from the environment.
//
// A .env file in the working directory is loaded first if present; real
// environment variables always win over it.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all server configuration.
type Config struct {
	Port            int
	ShutdownTimeout time.Duration
	SecureCookies   bool
	CORSOrigins     []string

	DB         DatabaseConfig
	Auth       AuthConfig
	Generation GenerationConfig
	Quota      QuotaConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
}

// DatabaseConfig selects and locates the account store.
type DatabaseConfig struct {
	Driver string // sqlite or postgres
	Path   string // sqlite
	URL    string // postgres DSN
}

// AuthConfig holds session and GitHub OAuth settings.
type AuthConfig struct {
	JWTSecret          string
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
}

// GitHubEnabled reports whether both GitHub credentials are set.
func (a AuthConfig) GitHubEnabled() bool {
	return a.GitHubClientID != "" && a.GitHubClientSecret != ""
}

// GenerationConfig configures the OpenAI-compatible provider. An empty
// APIKey leaves generation unavailable.
type GenerationConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// QuotaConfig holds the calendar-day reference zone.
type QuotaConfig struct {
	Location *time.Location
}

// RateLimitConfig bounds per-user bursts on the generate route.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  slog.Level
	Format string // text or json
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	port := getEnvAsInt("PORT", 8080)

	cfg := &Config{
		Port:            port,
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		SecureCookies:   getEnvAsBool("COOKIE_SECURE", false),
		CORSOrigins:     getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		DB:              loadDatabase(),
		Auth: AuthConfig{
			JWTSecret:          getEnv("JWT_SECRET", ""),
			GitHubClientID:     getEnv("GITHUB_CLIENT_ID", ""),
			GitHubClientSecret: getEnv("GITHUB_CLIENT_SECRET", ""),
			GitHubCallbackURL:  getEnv("GITHUB_CALLBACK_URL", fmt.Sprintf("http://localhost:%d/auth/github/callback", port)),
		},
		Generation: GenerationConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
			Model:   getEnv("OPENAI_MODEL", ""),
			Timeout: getEnvAsDuration("GENERATION_TIMEOUT", 30*time.Second),
		},
		RateLimit: RateLimitConfig{
			RPS:   getEnvAsFloat("RATE_LIMIT_RPS", 0.5),
			Burst: getEnvAsInt("RATE_LIMIT_BURST", 3),
		},
		Log: LogConfig{
			Format: strings.ToLower(getEnv("LOG_FORMAT", "text")),
		},
	}

	loc, err := time.LoadLocation(quotaTimezone())
	if err != nil {
		return nil, fmt.Errorf("config: QUOTA_TIMEZONE: %w", err)
	}
	cfg.Quota.Location = loc

	if err := cfg.Log.Level.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d", c.Port)
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be set to at least 16 characters")
	}
	if err := c.DB.Validate(); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("unsupported LOG_FORMAT: %q", c.Log.Format)
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst < 1 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.Generation.Timeout <= 0 {
		return fmt.Errorf("GENERATION_TIMEOUT must be positive")
	}
	return nil
}

// LoadDatabase reads only the store settings. Admin tools use it so they
// don't need the server's secrets.
func LoadDatabase() (DatabaseConfig, error) {
	_ = godotenv.Load()

	db := loadDatabase()
	if err := db.Validate(); err != nil {
		return DatabaseConfig{}, fmt.Errorf("config: %w", err)
	}
	return db, nil
}

// QuotaTimezone returns the zone name that defines the quota's calendar day.
func QuotaTimezone() string {
	_ = godotenv.Load()
	return quotaTimezone()
}

func quotaTimezone() string {
	return getEnv("QUOTA_TIMEZONE", "UTC")
}

func loadDatabase() DatabaseConfig {
	return DatabaseConfig{
		Driver: strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		Path:   getEnv("DB_PATH", "data/excuses.db"),
		URL:    getEnv("DATABASE_URL", ""),
	}
}

// Validate checks the driver and its location.
func (d DatabaseConfig) Validate() error {
	switch d.Driver {
	case "sqlite":
		if d.Path == "" {
			return fmt.Errorf("DB_PATH must be set for the sqlite driver")
		}
	case "postgres":
		if d.URL == "" {
			return fmt.Errorf("DATABASE_URL must be set for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %q", d.Driver)
	}
	return nil
}

// NewLogger builds the process logger from c.Log.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Log.Level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return v
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return v
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return v
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
