package autoselect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/twequity/trading-engine/internal/storage"
	"github.com/twequity/trading-engine/pkg/types"
)

type fakeEngine struct {
	active []string
	shadow []string
}

func (f *fakeEngine) SetActive(symbol, name string) error {
	f.active = append(f.active, symbol+"/"+name)
	return nil
}

func (f *fakeEngine) SetShadow(symbol, name string) error {
	f.shadow = append(f.shadow, symbol+"/"+name)
	return nil
}

func openStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open("file:" + t.Name() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func result(runID, symbol, name string, sharpe, ret, winRate, dd float64, trades int, fitness float64) types.BacktestResult {
	return types.BacktestResult{
		BacktestRunID: runID, Symbol: symbol, StrategyName: name,
		Metrics: types.PerformanceMetrics{
			SharpeRatio:    decimal.NewFromFloat(sharpe),
			TotalReturnPct: decimal.NewFromFloat(ret),
			WinRatePct:     decimal.NewFromFloat(winRate),
			MaxDrawdownPct: decimal.NewFromFloat(dd),
			TotalTrades:    trades,
			Fitness:        decimal.NewFromFloat(fitness),
			Valid:          true,
		},
		StartedAt:   time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC),
		CompletedAt: time.Date(2024, 3, 11, 1, 0, 0, 0, time.UTC),
	}
}

func TestRunPromotesSingleWinner(t *testing.T) {
	store := openStore(t)
	engine := &fakeEngine{}
	sel := New(zap.NewNop(), store, engine, DefaultThresholds())

	ctx := context.Background()
	results := []types.BacktestResult{
		result("run_1", "2308.TW", "pivot_reversion", 1.47, 162.5, 58, 12, 31, 0.9),
		result("run_1", "2330.TW", "ma_crossover", 0.2, 5, 40, 25, 8, 0.1), // fails every gate
		result("run_1", "2317.TW", "rsi_reversion", 0.8, 40, 56, 10, 25, 0.6),
	}
	if err := store.SaveBacktestResults(ctx, results); err != nil {
		t.Fatal(err)
	}

	promo, err := sel.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if promo.Active.Symbol != "2308.TW" || promo.Active.StrategyName != "pivot_reversion" {
		t.Fatalf("unexpected winner %s/%s", promo.Active.Symbol, promo.Active.StrategyName)
	}

	active, found, err := store.ActiveMapping(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !found || active.Symbol != "2308.TW" || !active.IsActive {
		t.Fatalf("expected exactly one active mapping for 2308.TW, got %+v found=%v", active, found)
	}
	if len(engine.active) != 1 {
		t.Fatalf("expected one swap-protocol call, got %v", engine.active)
	}
	if len(promo.Shadow) != 1 || promo.Shadow[0].Symbol != "2317.TW" {
		t.Fatalf("expected 2317.TW as the only shadow, got %+v", promo.Shadow)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	store := openStore(t)
	sel := New(zap.NewNop(), store, &fakeEngine{}, DefaultThresholds())
	ctx := context.Background()

	if err := store.SaveBacktestResults(ctx, []types.BacktestResult{
		result("run_1", "2308.TW", "pivot_reversion", 1.47, 162.5, 58, 12, 31, 0.9),
		result("run_1", "2317.TW", "rsi_reversion", 0.8, 40, 56, 10, 25, 0.6),
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := sel.Run(ctx); err != nil {
		t.Fatal(err)
	}
	first, _, err := store.ActiveMapping(ctx)
	if err != nil {
		t.Fatal(err)
	}
	firstShadows, err := store.ShadowMappings(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := sel.Run(ctx); err != nil {
		t.Fatal(err)
	}
	second, _, err := store.ActiveMapping(ctx)
	if err != nil {
		t.Fatal(err)
	}
	secondShadows, err := store.ShadowMappings(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if first.Symbol != second.Symbol || first.StrategyName != second.StrategyName {
		t.Fatalf("active mapping changed between identical runs: %+v vs %+v", first, second)
	}
	if len(firstShadows) != len(secondShadows) {
		t.Fatalf("shadow set changed between identical runs: %d vs %d", len(firstShadows), len(secondShadows))
	}
}

func TestRunRetainsConfigurationOnEmptyEligibleSet(t *testing.T) {
	store := openStore(t)
	engine := &fakeEngine{}
	sel := New(zap.NewNop(), store, engine, DefaultThresholds())
	ctx := context.Background()

	// Previous configuration in place.
	prev := types.StrategyStockMapping{Symbol: "2330.TW", StrategyName: "ma_crossover", IsActive: true, UpdatedAt: time.Now()}
	if err := store.SaveMapping(ctx, prev); err != nil {
		t.Fatal(err)
	}

	// A new run where nothing clears the gates.
	if err := store.SaveBacktestResults(ctx, []types.BacktestResult{
		result("run_2", "2317.TW", "rsi_reversion", 0.1, 2, 30, 40, 5, 0.05),
	}); err != nil {
		t.Fatal(err)
	}

	_, err := sel.Run(ctx)
	if !errors.Is(err, ErrNoEligible) {
		t.Fatalf("expected ErrNoEligible, got %v", err)
	}
	active, found, err := store.ActiveMapping(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !found || active.Symbol != "2330.TW" {
		t.Fatalf("previous configuration must be retained, got %+v found=%v", active, found)
	}
	if len(engine.active) != 0 {
		t.Fatal("swap protocol must not run on an empty eligible set")
	}
}

func TestEligibleExcludesLowTradeCounts(t *testing.T) {
	sel := New(zap.NewNop(), nil, &fakeEngine{}, DefaultThresholds())
	r := result("run_1", "2308.TW", "pivot_reversion", 1.47, 162.5, 58, 12, 9, 0.9)
	if sel.eligible(r) {
		t.Fatal("results with fewer than 10 trades must be excluded")
	}
}
