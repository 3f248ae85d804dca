package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Trading.Mode != "stock" {
		t.Fatalf("default mode = %q", cfg.Trading.Mode)
	}
	if cfg.Trading.Window.Start != "09:00" || cfg.Trading.Window.End != "13:30" {
		t.Fatalf("default window = %+v", cfg.Trading.Window)
	}
	if cfg.Trading.LotSize != 1000 {
		t.Fatalf("default lot size = %d", cfg.Trading.LotSize)
	}
	if cfg.AutoSelection.ShadowCount != 5 {
		t.Fatalf("default shadow count = %d", cfg.AutoSelection.ShadowCount)
	}
	if !cfg.Trading.Risk.PerTradeLossLimit.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("default per-trade loss limit = %s", cfg.Trading.Risk.PerTradeLossLimit)
	}
	if !cfg.Trading.Risk.MaxPosition.Equal(decimal.NewFromFloat(0.25)) {
		t.Fatalf("default max position = %s", cfg.Trading.Risk.MaxPosition)
	}
	if cfg.LLM.Enabled {
		t.Fatal("LLM advisor must default to disabled")
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trader.yaml")
	yaml := `
trading:
  mode: futures
  window:
    start: "08:45"
    end: "13:45"
  risk:
    daily_loss_limit: 9000
  stock:
    initial_shares: 2000
auto_selection:
  shadow_count: 8
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Trading.Mode != "futures" {
		t.Fatalf("mode = %q", cfg.Trading.Mode)
	}
	if cfg.Trading.Window.Start != "08:45" {
		t.Fatalf("window start = %q", cfg.Trading.Window.Start)
	}
	if !cfg.Trading.Risk.DailyLossLimit.Equal(decimal.NewFromInt(9000)) {
		t.Fatalf("daily loss limit = %s", cfg.Trading.Risk.DailyLossLimit)
	}
	if cfg.Trading.Stock.InitialShares != 2000 {
		t.Fatalf("initial shares = %d", cfg.Trading.Stock.InitialShares)
	}
	if cfg.AutoSelection.ShadowCount != 8 {
		t.Fatalf("shadow count = %d", cfg.AutoSelection.ShadowCount)
	}
}

func TestLoadRejectsBadMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trader.yaml")
	if err := os.WriteFile(path, []byte("trading:\n  mode: crypto\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, nil); err == nil {
		t.Fatal("expected validation failure for unknown trading mode")
	}
}

func TestLoadRejectsBadTimezone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trader.yaml")
	if err := os.WriteFile(path, []byte("trading:\n  timezone: Mars/Olympus\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, nil); err == nil {
		t.Fatal("expected validation failure for unknown timezone")
	}
}
