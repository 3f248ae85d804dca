package strategy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/twequity/trading-engine/pkg/types"
)

func TestRegistryBuiltinsInstantiate(t *testing.T) {
	r := NewRegistry()
	names := r.Names()
	if len(names) != 50 {
		t.Fatalf("expected 50 builtin strategies, got %d", len(names))
	}
	for _, n := range names {
		s, ok := r.New(n)
		if !ok {
			t.Fatalf("registry.New(%q) returned not-ok", n)
		}
		if s.Name() != n {
			t.Fatalf("strategy %q reports Name() = %q", n, s.Name())
		}
	}
}

func TestRegistryUnknownName(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.New("does_not_exist"); ok {
		t.Fatal("expected ok=false for unknown strategy name")
	}
}

func makeTrendingBars(symbol string, n int, start float64, step float64) []types.Bar {
	bars := make([]types.Bar, n)
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	price := start
	for i := 0; i < n; i++ {
		d := decimal.NewFromFloat(price)
		bars[i] = types.Bar{
			Symbol:    symbol,
			Timeframe: types.Timeframe1d,
			Timestamp: base.AddDate(0, 0, i),
			Open:      d,
			High:      d.Add(decimal.NewFromFloat(0.5)),
			Low:       d.Sub(decimal.NewFromFloat(0.5)),
			Close:     d,
			Volume:    1000,
		}
		price += step
	}
	return bars
}

func emptyPortfolio() types.Portfolio {
	return types.Portfolio{Cash: decimal.NewFromInt(1000000), Positions: map[string]types.Position{}}
}

func TestMACrossoverLeavesWarmupOnTrend(t *testing.T) {
	s := NewMACrossover()
	bars := makeTrendingBars("2330.TW", 60, 100, 1.5)
	var last types.TradeSignal
	for _, b := range bars {
		last = s.Execute(emptyPortfolio(), b)
	}
	if last.Direction == types.DirectionNeutral && last.Reason[:7] == "Warming" {
		t.Fatalf("expected a non-warmup signal after 60 trending bars, got %+v", last)
	}
}

func TestBollingerReversionWarmup(t *testing.T) {
	s := NewBollingerReversion()
	bars := makeTrendingBars("2330.TW", 5, 100, 0)
	var last types.TradeSignal
	for _, b := range bars {
		last = s.Execute(emptyPortfolio(), b)
	}
	if last.Direction != types.DirectionNeutral {
		t.Fatalf("expected NEUTRAL during warmup, got %s", last.Direction)
	}
}

func TestResetClearsState(t *testing.T) {
	s := NewMACrossover()
	bars := makeTrendingBars("2330.TW", 60, 100, 1.5)
	for _, b := range bars {
		s.Execute(emptyPortfolio(), b)
	}
	s.Reset()
	sig := s.Execute(emptyPortfolio(), bars[0])
	if sig.Direction != types.DirectionNeutral {
		t.Fatalf("expected NEUTRAL warmup signal right after Reset, got %s", sig.Direction)
	}
}
