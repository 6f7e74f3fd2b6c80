package config

import (
	"testing"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("MANAGER_PIN", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.ManagerPIN != "" {
		t.Fatalf("expected empty MANAGER_PIN when unset, got %q", cfg.ManagerPIN)
	}
}

func TestLoadShopDefaults(t *testing.T) {
	t.Setenv("DEFAULT_DUE_DAYS", "")
	t.Setenv("DEFAULT_FINE_RATE", "")
	t.Setenv("DEFAULT_INTEREST_RATE", "")
	t.Setenv("SHOP_NAME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultDueDays != 30 {
		t.Fatalf("expected 30 default due days, got %d", cfg.DefaultDueDays)
	}
	if cfg.DefaultFineRate.String() != "2" || cfg.DefaultInterestRate.String() != "1" {
		t.Fatalf("expected 2%%/1%% default rates, got %s/%s", cfg.DefaultFineRate, cfg.DefaultInterestRate)
	}
	if cfg.ShopName != "Kombat Moto Peças" {
		t.Fatalf("unexpected shop name %q", cfg.ShopName)
	}
}

func TestLoadAcceptsCommaRates(t *testing.T) {
	t.Setenv("DEFAULT_INTEREST_RATE", "1,5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultInterestRate.String() != "1.5" {
		t.Fatalf("expected 1.5, got %s", cfg.DefaultInterestRate)
	}
}

func TestLoadRejectsInvalidNumbers(t *testing.T) {
	t.Setenv("DEFAULT_DUE_DAYS", "trinta")
	t.Setenv("DEFAULT_FINE_RATE", "-1")

	if _, err := Load(); err == nil {
		t.Fatalf("expected invalid numeric config to be rejected")
	}
}

func TestLoadRejectsWindowAboveInterval(t *testing.T) {
	t.Setenv("REVISION_INTERVAL_KM", "1000")
	t.Setenv("REVISION_WINDOW_KM", "1500")

	if _, err := Load(); err == nil {
		t.Fatalf("expected revision window above interval to be rejected")
	}
}
