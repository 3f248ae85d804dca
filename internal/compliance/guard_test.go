package compliance

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/twequity/trading-engine/pkg/types"
)

var asOf = time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC)

func TestRetailShortBanInStockMode(t *testing.T) {
	g := New(DefaultConfig())
	ok, reason := g.Check(Candidate{
		Symbol: "2330.TW", Direction: types.DirectionShort, Quantity: 1000,
		Capital: decimal.NewFromInt(5_000_000),
	}, asOf)
	if ok {
		t.Fatal("expected SHORT entry to be rejected in stock mode")
	}
	if !strings.Contains(reason, "short") {
		t.Fatalf("unexpected reason %q", reason)
	}
}

func TestShortAllowedInFuturesMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = types.ModeFutures
	g := New(cfg)
	ok, _ := g.Check(Candidate{
		Symbol: "MTXF", Direction: types.DirectionShort, Quantity: 1,
		Capital: decimal.NewFromInt(100_000),
	}, asOf)
	if !ok {
		t.Fatal("expected SHORT to pass in futures mode")
	}
}

func TestOddLotDayTradeCapitalGate(t *testing.T) {
	g := New(DefaultConfig())
	tests := []struct {
		name     string
		qty      int64
		capital  int64
		intraday bool
		wantOK   bool
	}{
		{"odd lot intraday under threshold", 500, 80_000, true, false},
		{"odd lot intraday over threshold", 500, 3_000_000, true, true},
		{"board lot intraday under threshold", 1000, 80_000, true, true},
		{"odd lot overnight under threshold", 500, 80_000, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := g.Check(Candidate{
				Symbol: "2330.TW", Direction: types.DirectionLong, Quantity: tt.qty,
				Capital: decimal.NewFromInt(tt.capital), Intraday: tt.intraday,
			}, asOf)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v (reason %q)", ok, tt.wantOK, reason)
			}
			if !ok && !strings.Contains(reason, "Odd-lot day trading requires >= 2,000,000") {
				t.Fatalf("reason %q missing capital threshold text", reason)
			}
		})
	}
}

func TestEarningsBlackoutWindow(t *testing.T) {
	g := New(DefaultConfig())
	g.SetBlackoutDates([]types.EarningsBlackoutDate{
		{Symbol: "2454.TW", EarningsDate: asOf.Add(20 * time.Hour)},
	})

	ok, reason := g.Check(Candidate{
		Symbol: "2454.TW", Direction: types.DirectionLong, Quantity: 1000,
		Capital: decimal.NewFromInt(5_000_000),
	}, asOf)
	if ok {
		t.Fatal("expected entry within the blackout window to be rejected")
	}
	if !strings.Contains(reason, "blackout") {
		t.Fatalf("unexpected reason %q", reason)
	}

	// Same symbol, earnings far enough away.
	g.SetBlackoutDates([]types.EarningsBlackoutDate{
		{Symbol: "2454.TW", EarningsDate: asOf.AddDate(0, 0, 10)},
	})
	if ok, _ := g.Check(Candidate{
		Symbol: "2454.TW", Direction: types.DirectionLong, Quantity: 1000,
		Capital: decimal.NewFromInt(5_000_000),
	}, asOf); !ok {
		t.Fatal("expected entry outside the blackout window to pass")
	}
}

func TestLoadBlackoutFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blackouts.yaml")
	content := "blackouts:\n  - symbol: \"2330\"\n    earnings_date: 2024-04-18\n  - symbol: 2454.TW\n    earnings_date: 2024-04-25\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	dates, err := LoadBlackoutFile(path, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if len(dates) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(dates))
	}
	if dates[0].Symbol != "2330.TW" {
		t.Fatalf("symbol not normalized: %q", dates[0].Symbol)
	}
	if !dates[0].EarningsDate.Equal(time.Date(2024, 4, 18, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("date = %s", dates[0].EarningsDate)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(bad, []byte("blackouts:\n  - symbol: 2330\n    earnings_date: 18-04-2024\n"), 0o600)
	if _, err := LoadBlackoutFile(bad, time.UTC); err == nil {
		t.Fatal("expected error for malformed date")
	}
}

func TestBlackoutDoesNotBlockOtherSymbols(t *testing.T) {
	g := New(DefaultConfig())
	g.SetBlackoutDates([]types.EarningsBlackoutDate{
		{Symbol: "2454.TW", EarningsDate: asOf.Add(time.Hour)},
	})
	if ok, _ := g.Check(Candidate{
		Symbol: "2330.TW", Direction: types.DirectionLong, Quantity: 1000,
		Capital: decimal.NewFromInt(5_000_000),
	}, asOf); !ok {
		t.Fatal("blackout for 2454.TW must not block 2330.TW")
	}
}
