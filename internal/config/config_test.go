package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, `
environment: production
storage:
  backend: memory
  timeout: 750ms
booking:
  duplicate_policy: reject
  capacity_strategy: counter
  live_window: 2h
  event_order: recent
identity:
  secret: from-file
roles:
  admin_emails: [ops@example.com]
`)
	t.Setenv("EVENTBOOKING_CONFIG", "")
	t.Setenv("IDENTITY_SECRET", "from-env")
	t.Setenv("ADMIN_EMAILS", "a@example.com, b@example.com")
	t.Setenv("PORT", "9090")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !cfg.IsProduction() {
		t.Fatalf("expected production environment, got %s", cfg.Environment)
	}
	if cfg.Storage.Backend != BackendMemory || cfg.Storage.Timeout != 750*time.Millisecond {
		t.Fatalf("unexpected storage config %+v", cfg.Storage)
	}
	if cfg.Booking.DuplicatePolicy != "reject" || cfg.Booking.CapacityStrategy != "counter" {
		t.Fatalf("unexpected booking config %+v", cfg.Booking)
	}
	if cfg.Booking.LiveWindow != 2*time.Hour {
		t.Fatalf("expected live window 2h, got %v", cfg.Booking.LiveWindow)
	}
	if cfg.Identity.Secret != "from-env" {
		t.Fatalf("expected env to override file secret, got %q", cfg.Identity.Secret)
	}
	if len(cfg.Roles.AdminEmails) != 2 || cfg.Roles.AdminEmails[1] != "b@example.com" {
		t.Fatalf("unexpected admin emails %v", cfg.Roles.AdminEmails)
	}
	if cfg.HTTP.Port != "9090" {
		t.Fatalf("expected port 9090, got %s", cfg.HTTP.Port)
	}
	// Untouched keys keep their defaults.
	if cfg.HTTP.ReadTimeout != 15*time.Second {
		t.Fatalf("expected default read timeout, got %v", cfg.HTTP.ReadTimeout)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := Default()
	valid.Identity.Secret = "s3cret"
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected defaults plus secret to validate, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"missing secret", func(c *Config) { c.Identity.Secret = "" }, "identity.secret"},
		{"bad backend", func(c *Config) { c.Storage.Backend = "redis" }, "storage.backend"},
		{"bad policy", func(c *Config) { c.Booking.DuplicatePolicy = "sometimes" }, "duplicate_policy"},
		{"bad strategy", func(c *Config) { c.Booking.CapacityStrategy = "guess" }, "capacity_strategy"},
		{"zero timeout", func(c *Config) { c.Storage.Timeout = 0 }, "storage.timeout"},
		{"bad order", func(c *Config) { c.Booking.EventOrder = "random" }, "event_order"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}
