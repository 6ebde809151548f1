package config

import (
	"log/slog"
	"testing"
	"time"
)

const testSecret = "test-secret-at-least-16-chars!!"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.DB.Driver != "sqlite" || cfg.DB.Path != "data/excuses.db" {
		t.Errorf("DB = %+v, want sqlite at data/excuses.db", cfg.DB)
	}
	if cfg.Quota.Location != time.UTC {
		t.Errorf("Quota.Location = %v, want UTC", cfg.Quota.Location)
	}
	if cfg.Generation.Timeout != 30*time.Second {
		t.Errorf("Generation.Timeout = %v, want 30s", cfg.Generation.Timeout)
	}
	if cfg.Auth.GitHubEnabled() {
		t.Error("GitHubEnabled() = true without credentials")
	}
	if cfg.Auth.GitHubCallbackURL != "http://localhost:8080/auth/github/callback" {
		t.Errorf("GitHubCallbackURL = %q", cfg.Auth.GitHubCallbackURL)
	}
	if cfg.Log.Level != slog.LevelInfo {
		t.Errorf("Log.Level = %v, want INFO", cfg.Log.Level)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/excuses")
	t.Setenv("QUOTA_TIMEZONE", "Asia/Tokyo")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("GENERATION_TIMEOUT", "5s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("GITHUB_CLIENT_ID", "id")
	t.Setenv("GITHUB_CLIENT_SECRET", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.DB.Driver != "postgres" {
		t.Errorf("DB.Driver = %q, want postgres", cfg.DB.Driver)
	}
	if cfg.Quota.Location.String() != "Asia/Tokyo" {
		t.Errorf("Quota.Location = %v, want Asia/Tokyo", cfg.Quota.Location)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.Generation.Timeout != 5*time.Second {
		t.Errorf("Generation.Timeout = %v, want 5s", cfg.Generation.Timeout)
	}
	if cfg.Log.Level != slog.LevelDebug || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v, want debug/json", cfg.Log)
	}
	if !cfg.Auth.GitHubEnabled() {
		t.Error("GitHubEnabled() = false with both credentials set")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{"JWT_SECRET": ""}},
		{"short secret", map[string]string{"JWT_SECRET": "short"}},
		{"bad port", map[string]string{"PORT": "70000"}},
		{"unknown driver", map[string]string{"DB_DRIVER": "mongo"}},
		{"postgres without url", map[string]string{"DB_DRIVER": "postgres"}},
		{"bad timezone", map[string]string{"QUOTA_TIMEZONE": "Mars/Olympus"}},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", testSecret)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("Load() should have failed")
			}
		})
	}
}

func TestQuotaTimezone(t *testing.T) {
	t.Setenv("QUOTA_TIMEZONE", "")
	if got := QuotaTimezone(); got != "UTC" {
		t.Errorf("QuotaTimezone() = %q, want UTC", got)
	}

	t.Setenv("QUOTA_TIMEZONE", "Europe/Berlin")
	if got := QuotaTimezone(); got != "Europe/Berlin" {
		t.Errorf("QuotaTimezone() = %q, want Europe/Berlin", got)
	}
}
