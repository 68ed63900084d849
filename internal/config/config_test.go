package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("ORDER_STORE_BASE_URL", "https://store.example.com/rest")
	t.Setenv("ORDER_STORE_TOKEN", "token")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	t.Setenv("GATEWAY_SANDBOX", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.RunAddress != ":8080" {
		t.Errorf("expected default run address, got %s", cfg.RunAddress)
	}
	if cfg.UpstreamTimeout != 10*time.Second {
		t.Errorf("expected 10s upstream timeout, got %s", cfg.UpstreamTimeout)
	}
	if cfg.ReconcileTimeout != 15*time.Second {
		t.Errorf("expected 15s reconcile timeout, got %s", cfg.ReconcileTimeout)
	}
	if cfg.RateLimitBurst != 30 {
		t.Errorf("expected burst 30, got %d", cfg.RateLimitBurst)
	}
}

func TestLoad_MissingOrderStore(t *testing.T) {
	t.Setenv("ORDER_STORE_BASE_URL", "")
	t.Setenv("ORDER_STORE_TOKEN", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing order store settings")
	}
}

func TestLoad_CredentialsRequiredOutsideSandbox(t *testing.T) {
	setRequired(t)
	t.Setenv("GATEWAY_SANDBOX", "false")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing gateway credentials in production mode")
	}

	t.Setenv("GATEWAY_API_LOGIN_ID", "login")
	t.Setenv("GATEWAY_TRANSACTION_KEY", "key")

	if _, err := Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("GATEWAY_SANDBOX", "true")
	t.Setenv("RUN_ADDRESS", ":9999")
	t.Setenv("UPSTREAM_TIMEOUT", "3s")
	t.Setenv("RATE_LIMIT_RPS", "0.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RunAddress != ":9999" {
		t.Errorf("expected :9999, got %s", cfg.RunAddress)
	}
	if cfg.UpstreamTimeout != 3*time.Second {
		t.Errorf("expected 3s, got %s", cfg.UpstreamTimeout)
	}
	if cfg.RateLimitRPS != 0.5 {
		t.Errorf("expected 0.5 rps, got %f", cfg.RateLimitRPS)
	}
}
