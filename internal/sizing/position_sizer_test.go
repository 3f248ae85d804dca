package sizing

import (
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func TestFixedRiskFallback(t *testing.T) {
	s := New(zap.NewNop(), DefaultConfig())
	res := s.Recommend(Request{
		Symbol: "2330.TW", Equity: d(1000000), Price: d(600), RegimeScale: d(1),
	})
	if res.Method != MethodFixedRisk {
		t.Fatalf("expected fixed_risk with no stats/stop/atr, got %s", res.Method)
	}
	if res.Shares <= 0 {
		t.Fatalf("expected positive share count, got %d", res.Shares)
	}
}

func TestATRBasedWhenATRPresent(t *testing.T) {
	s := New(zap.NewNop(), DefaultConfig())
	res := s.Recommend(Request{
		Symbol: "2330.TW", Equity: d(1000000), Price: d(600), ATR: d(10), RegimeScale: d(1),
	})
	if res.Method != MethodATR {
		t.Fatalf("expected atr method, got %s", res.Method)
	}
}

func TestHalfKellyWhenStatsValid(t *testing.T) {
	s := New(zap.NewNop(), DefaultConfig())
	res := s.Recommend(Request{
		Symbol: "2330.TW", Equity: d(1000000), Price: d(600), RegimeScale: d(1),
		Stats: Stats{WinRate: d(0.6), AvgWin: d(0.08), AvgLoss: d(0.04), Trades: 30},
	})
	if res.Method != MethodHalfKelly {
		t.Fatalf("expected half_kelly method, got %s", res.Method)
	}
}

func TestHardCapEnforced(t *testing.T) {
	s := New(zap.NewNop(), DefaultConfig())
	cfg := DefaultConfig()
	cfg.RiskPerTradePct = d(5.0) // absurdly large to force the cap
	s.SetConfig(cfg)
	res := s.Recommend(Request{
		Symbol: "2330.TW", Equity: d(1000000), Price: d(600), RegimeScale: d(1),
	})
	limit := d(1000000).Mul(MaxPositionPct)
	if res.Notional.GreaterThan(limit) {
		t.Fatalf("expected notional capped at %s, got %s", limit, res.Notional)
	}
	if !res.Capped {
		t.Fatal("expected Capped=true")
	}
}

func TestVolTargetClipsLeverage(t *testing.T) {
	s := New(zap.NewNop(), DefaultConfig())
	res := s.VolTarget(Request{Symbol: "2330.TW", Equity: d(1000000), Price: d(600), Volatility: d(0.01)})
	limit := d(1000000).Mul(MaxPositionPct)
	if res.Notional.GreaterThan(limit) {
		t.Fatalf("expected vol-target notional respecting hard cap, got %s vs limit %s", res.Notional, limit)
	}
}

func TestStatsValid(t *testing.T) {
	valid := Stats{WinRate: d(0.55), AvgWin: d(0.1), AvgLoss: d(0.05), Trades: 10}
	if !valid.Valid() {
		t.Fatal("expected valid stats with 10 trades and positive avg loss")
	}
	invalid := Stats{WinRate: d(0.55), AvgWin: d(0.1), AvgLoss: d(0.05), Trades: 9}
	if invalid.Valid() {
		t.Fatal("expected invalid stats with fewer than 10 trades")
	}
}
