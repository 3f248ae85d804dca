package stratmgr

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/twequity/trading-engine/internal/strategy"
	"github.com/twequity/trading-engine/pkg/types"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	return New(zap.NewNop(), strategy.NewRegistry())
}

func TestSetActiveUnknownStrategy(t *testing.T) {
	m := testManager(t)
	if err := m.SetActive("2330.TW", "does_not_exist"); err == nil {
		t.Fatal("expected error for unknown strategy name")
	}
}

func TestActiveSignalNoneAssigned(t *testing.T) {
	m := testManager(t)
	sig, err := m.ActiveSignal(types.Portfolio{}, types.Bar{Symbol: "2330.TW"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig.Direction != types.DirectionNeutral {
		t.Fatalf("expected NEUTRAL with no strategy assigned, got %s", sig.Direction)
	}
}

func TestPromoteShadowSwapsRoles(t *testing.T) {
	m := testManager(t)
	if err := m.SetActive("2330.TW", "ma_crossover"); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if err := m.SetShadow("2330.TW", "rsi_reversion"); err != nil {
		t.Fatalf("SetShadow: %v", err)
	}
	if ok := m.PromoteShadow("2330.TW"); !ok {
		t.Fatal("expected PromoteShadow to succeed")
	}
	m.mu.Lock()
	active := m.active["2330.TW"].Name()
	shadow := m.shadow["2330.TW"].Name()
	m.mu.Unlock()
	if active != "rsi_reversion" {
		t.Fatalf("expected rsi_reversion active after promotion, got %s", active)
	}
	if shadow != "ma_crossover" {
		t.Fatalf("expected ma_crossover demoted to shadow, got %s", shadow)
	}
}

func TestPromoteShadowNoneInstalled(t *testing.T) {
	m := testManager(t)
	if ok := m.PromoteShadow("2330.TW"); ok {
		t.Fatal("expected false with no shadow installed")
	}
}

type panickingStrategy struct{}

func (panickingStrategy) Name() string                                               { return "panics" }
func (panickingStrategy) Type() types.StrategyType                                   { return types.StrategySwing }
func (panickingStrategy) Execute(types.Portfolio, types.Bar) types.TradeSignal         { panic("boom") }
func (panickingStrategy) Reset()                                                     {}

func TestSingleTripOpensCooldown(t *testing.T) {
	m := testManager(t)
	clock := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }
	m.registry.Register("panics", func() strategy.Strategy { return panickingStrategy{} })
	if err := m.SetActive("2330.TW", "panics"); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	bar := types.Bar{Symbol: "2330.TW"}

	if _, err := m.ActiveSignal(types.Portfolio{}, bar); err == nil {
		t.Fatal("expected StrategyFault error from panicking strategy")
	}

	// Within the cooldown the strategy is not called again.
	clock = clock.Add(30 * time.Second)
	sig, err := m.ActiveSignal(types.Portfolio{}, bar)
	if err != nil {
		t.Fatalf("cooldown call must not execute the strategy, got %v", err)
	}
	if sig.Direction != types.DirectionNeutral || sig.Reason != "strategy cooling down after fault" {
		t.Fatalf("expected cooldown NEUTRAL, got %+v", sig)
	}

	// Past the cooldown it runs (and panics) again.
	clock = clock.Add(circuitCooldown)
	if _, err := m.ActiveSignal(types.Portfolio{}, bar); err == nil {
		t.Fatal("expected the strategy to execute again after the cooldown")
	}
}

func TestCircuitBreakerTripsAfterThreePanics(t *testing.T) {
	m := testManager(t)
	clock := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }
	m.registry.Register("panics", func() strategy.Strategy { return panickingStrategy{} })
	if err := m.SetActive("2330.TW", "panics"); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	bar := types.Bar{Symbol: "2330.TW"}
	var lastSig types.TradeSignal
	for i := 0; i < circuitMaxTrips; i++ {
		sig, err := m.ActiveSignal(types.Portfolio{}, bar)
		if err == nil {
			t.Fatal("expected StrategyFault error from panicking strategy")
		}
		lastSig = sig
		clock = clock.Add(circuitCooldown + time.Second) // clear each cooldown, stay inside the rolling hour
	}
	if lastSig.Direction != types.DirectionNeutral {
		t.Fatalf("expected NEUTRAL signal from panic recovery, got %s", lastSig.Direction)
	}
	sig, err := m.ActiveSignal(types.Portfolio{}, bar)
	if err != nil {
		t.Fatalf("expected breaker-open call to return no error, got %v", err)
	}
	if sig.Reason != "strategy circuit breaker open" {
		t.Fatalf("expected breaker-open reason, got %q", sig.Reason)
	}
}

func TestResolveConflictHighestConfidenceWins(t *testing.T) {
	candidates := []types.TradeSignal{
		{StrategyName: "b", Direction: types.DirectionLong, Confidence: decimal.NewFromFloat(0.6)},
		{StrategyName: "a", Direction: types.DirectionLong, Confidence: decimal.NewFromFloat(0.8)},
		{StrategyName: "c", Direction: types.DirectionNeutral, Confidence: decimal.NewFromFloat(0.99)},
	}
	best, ok := ResolveConflict(candidates)
	if !ok {
		t.Fatal("expected a winning candidate")
	}
	if best.StrategyName != "a" {
		t.Fatalf("expected highest-confidence entry candidate 'a', got %q", best.StrategyName)
	}
}

func TestResolveConflictTieBrokenLexicographically(t *testing.T) {
	candidates := []types.TradeSignal{
		{StrategyName: "zeta", Direction: types.DirectionLong, Confidence: decimal.NewFromFloat(0.7)},
		{StrategyName: "alpha", Direction: types.DirectionShort, Confidence: decimal.NewFromFloat(0.7)},
	}
	best, ok := ResolveConflict(candidates)
	if !ok {
		t.Fatal("expected a winning candidate")
	}
	if best.StrategyName != "alpha" {
		t.Fatalf("expected tie broken toward 'alpha', got %q", best.StrategyName)
	}
}
