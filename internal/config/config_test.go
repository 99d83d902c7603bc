package config

import (
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.ServerPort != "8080" {
		t.Errorf("expected default server port 8080, got %q", cfg.ServerPort)
	}
	if cfg.EventQueue != "onboarding_service.events" {
		t.Errorf("unexpected default event queue %q", cfg.EventQueue)
	}
	if cfg.ReconcileSchedule != "@every 30m" {
		t.Errorf("unexpected default reconcile schedule %q", cfg.ReconcileSchedule)
	}
	if cfg.ReconcileStaleMinutes != 60 {
		t.Errorf("unexpected default stale minutes %d", cfg.ReconcileStaleMinutes)
	}
}

func TestLoadConfigReadsEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/onboarding")
	t.Setenv("STRIPE_SECRET_KEY", "  sk_test_abc  ")
	t.Setenv("ADMIN_UID", "admin-1")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DatabaseURL != "postgres://localhost:5432/onboarding" {
		t.Errorf("database url not read from environment: %q", cfg.DatabaseURL)
	}
	if cfg.StripeSecretKey != "sk_test_abc" {
		t.Errorf("stripe secret should be trimmed, got %q", cfg.StripeSecretKey)
	}
	if cfg.AdminUID != "admin-1" {
		t.Errorf("admin uid not read, got %q", cfg.AdminUID)
	}
}

func TestLoadConfigPortOverride(t *testing.T) {
	// Hosting platforms inject PORT; it wins over SERVER_PORT.
	t.Setenv("PORT", "9191")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ServerPort != "9191" {
		t.Errorf("expected PORT to override the server port, got %q", cfg.ServerPort)
	}
}

func TestLoadConfigStaleMinutesFloor(t *testing.T) {
	t.Setenv("RECONCILE_STALE_MINUTES", "-5")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ReconcileStaleMinutes != 60 {
		t.Errorf("non-positive stale minutes must fall back to 60, got %d", cfg.ReconcileStaleMinutes)
	}
}
