package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Success(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.Backend.BaseURL != "https://api.shop.test" {
		t.Fatalf("unexpected backend url %q", cfg.Backend.BaseURL)
	}
	if cfg.Poll.MaxAttempts != 30 {
		t.Fatalf("expected default 30 attempts, got %d", cfg.Poll.MaxAttempts)
	}
	if cfg.Poll.Interval != 2*time.Second {
		t.Fatalf("expected default 2s interval, got %v", cfg.Poll.Interval)
	}
	if cfg.Poll.Budget() != time.Minute {
		t.Fatalf("expected 60s poll budget, got %v", cfg.Poll.Budget())
	}
	if cfg.Redis.Enabled() {
		t.Fatalf("redis should be disabled without url or address")
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "http://localhost:3000" {
		t.Fatalf("unexpected default origins %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvPollMaxAttempts, "5")
	t.Setenv(EnvPollInterval, "250ms")
	t.Setenv(EnvRedisURL, "redis://localhost:6379/0")
	t.Setenv(EnvCORSOrigins, "https://shop.test,https://admin.shop.test")
	t.Setenv(EnvLogFormat, "console")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.Poll.MaxAttempts != 5 || cfg.Poll.Interval != 250*time.Millisecond {
		t.Fatalf("poll overrides not applied: %+v", cfg.Poll)
	}
	if !cfg.Redis.Enabled() {
		t.Fatalf("redis should be enabled with a url")
	}
	if len(cfg.CORS.AllowedOrigins) != 2 {
		t.Fatalf("expected two origins, got %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.App.LogFormat != "console" {
		t.Fatalf("expected console log format, got %q", cfg.App.LogFormat)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setMinimalEnv(t)
	if err := os.Unsetenv(EnvBackendBaseURL); err != nil {
		t.Fatalf("failed to unset %s: %v", EnvBackendBaseURL, err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("expected missing required env to return an error")
	}
}

func TestLoad_RejectsZeroAttempts(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvPollMaxAttempts, "0")

	if _, err := Load(); err == nil {
		t.Fatal("expected zero poll attempts to be rejected")
	}
}

func TestValidateRejectsRelativeBackendURL(t *testing.T) {
	cfg := Config{
		Backend:  BackendConfig{BaseURL: "/api"},
		Poll:     PollConfig{MaxAttempts: 1, Interval: time.Second},
		Checkout: CheckoutConfig{SessionTTL: time.Minute},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected relative url to be rejected")
	}
}

func setMinimalEnv(t *testing.T) {
	t.Helper()

	t.Setenv(EnvAppEnv, "dev")
	t.Setenv(EnvBackendBaseURL, "https://api.shop.test")
}

func TestAppConfigEnvHelpers(t *testing.T) {
	devConfig := AppConfig{Env: "DEV"}
	if !devConfig.IsDev() {
		t.Fatalf("expected IsDev true for %q", devConfig.Env)
	}
	if devConfig.IsProd() {
		t.Fatalf("expected IsProd false for %q", devConfig.Env)
	}

	prodConfig := AppConfig{Env: "production"}
	if !prodConfig.IsProd() {
		t.Fatalf("expected IsProd true for %q", prodConfig.Env)
	}
}
