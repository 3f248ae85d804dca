package tests

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/twequity/trading-engine/internal/autoselect"
	"github.com/twequity/trading-engine/internal/backtester"
	"github.com/twequity/trading-engine/internal/storage"
	"github.com/twequity/trading-engine/internal/strategy"
	"github.com/twequity/trading-engine/internal/stratmgr"
	"github.com/twequity/trading-engine/pkg/types"
)

// alternating plays LONG on even bars and EXIT_LONG on odd bars, so a
// monotonic price series produces one closed trade per bar pair.
type alternating struct {
	name string
	i    int
}

func (s *alternating) Name() string             { return s.name }
func (s *alternating) Type() types.StrategyType { return types.StrategyShortTerm }
func (s *alternating) Reset()                   { s.i = 0 }

func (s *alternating) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	s.i++
	if s.i%2 == 1 {
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.name, Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.9), Reason: "alternating entry"}
	}
	return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.name, Direction: types.DirectionExitLong,
		Confidence: decimal.NewFromFloat(0.9), Reason: "alternating exit"}
}

func rampBars(symbol string, n int, start, stepPct float64) []types.Bar {
	bars := make([]types.Bar, n)
	base := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	price := start
	for i := 0; i < n; i++ {
		d := decimal.NewFromFloat(price)
		bars[i] = types.Bar{
			Symbol: symbol, Timeframe: types.Timeframe1d, Timestamp: base.AddDate(0, 0, i),
			Open: d, High: d.Mul(decimal.NewFromFloat(1.01)), Low: d.Mul(decimal.NewFromFloat(0.99)), Close: d,
			Volume: 50_000,
		}
		price *= 1 + stepPct
	}
	return bars
}

// The full nightly pipeline: backtest fan-out, persistence, ranking,
// and atomic promotion of the single winner.
func TestBacktestToAutoSelectionPipeline(t *testing.T) {
	logger := zap.NewNop()
	store, err := storage.Open("file:pipeline?mode=memory&cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	const runID = "run_pipeline"
	winnerFactory := func() strategy.Strategy { return &alternating{name: "scripted_winner"} }
	loserFactory := func() strategy.Strategy { return &alternating{name: "scripted_loser"} }

	jobs := []backtester.Job{
		{StrategyName: "scripted_winner", Factory: winnerFactory, Symbol: "2308.TW",
			Bars: rampBars("2308.TW", 40, 100, 0.02), BacktestRunID: runID},
		{StrategyName: "scripted_loser", Factory: loserFactory, Symbol: "2330.TW",
			Bars: rampBars("2330.TW", 40, 100, -0.02), BacktestRunID: runID},
	}

	bt := backtester.New(logger, store)
	results, err := bt.Run(ctx, jobs)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Metrics.TotalTrades < 10 {
			t.Fatalf("%s: expected >= 10 trades, got %d", r.StrategyName, r.Metrics.TotalTrades)
		}
	}

	registry := strategy.NewRegistry()
	registry.Register("scripted_winner", winnerFactory)
	registry.Register("scripted_loser", loserFactory)
	mgr := stratmgr.New(logger, registry)

	sel := autoselect.New(logger, store, mgr, autoselect.DefaultThresholds())
	promo, err := sel.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if promo.Active.Symbol != "2308.TW" || promo.Active.StrategyName != "scripted_winner" {
		t.Fatalf("expected (2308.TW, scripted_winner) promoted, got (%s, %s)",
			promo.Active.Symbol, promo.Active.StrategyName)
	}

	active, found, err := store.ActiveMapping(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !found || active.Symbol != "2308.TW" || active.StrategyName != "scripted_winner" {
		t.Fatalf("expected a single active mapping for the winner, got %+v found=%v", active, found)
	}

	// The swap protocol must have installed the winner as the live
	// strategy for its symbol.
	if s, ok := mgr.LookupActive("2308.TW"); !ok || s.Name() != "scripted_winner" {
		t.Fatal("winner not installed as the live strategy")
	}
}

// Deterministic replay: identical inputs produce identical metrics.
func TestBacktestReplayIsDeterministic(t *testing.T) {
	bars := rampBars("2330.TW", 60, 100, 0.01)
	job := backtester.Job{
		StrategyName: "ma_crossover",
		Factory:      func() strategy.Strategy { return strategy.NewMACrossover() },
		Symbol:       "2330.TW",
		Bars:         bars,
		BacktestRunID: "run_det",
	}
	first, err := backtester.Evaluate(job)
	if err != nil {
		t.Fatal(err)
	}
	second, err := backtester.Evaluate(job)
	if err != nil {
		t.Fatal(err)
	}
	if !first.Metrics.TotalReturnPct.Equal(second.Metrics.TotalReturnPct) ||
		first.Metrics.TotalTrades != second.Metrics.TotalTrades ||
		!first.Metrics.Fitness.Equal(second.Metrics.Fitness) {
		t.Fatalf("replays differ: %+v vs %+v", first.Metrics, second.Metrics)
	}
}

// Slippage and commission must reduce realized P&L.
func TestBacktestCostsReduceReturns(t *testing.T) {
	bars := rampBars("2330.TW", 40, 100, 0.02)
	free := backtester.Job{
		StrategyName: "scripted_costs", Factory: func() strategy.Strategy { return &alternating{name: "scripted_costs"} },
		Symbol: "2330.TW", Bars: bars, BacktestRunID: "run_free",
	}
	costed := free
	costed.BacktestRunID = "run_costed"
	costed.Costs = backtester.CostModel{SlippageBps: decimal.NewFromInt(10), CommissionPct: decimal.NewFromFloat(0.001425)}

	a, err := backtester.Evaluate(free)
	if err != nil {
		t.Fatal(err)
	}
	b, err := backtester.Evaluate(costed)
	if err != nil {
		t.Fatal(err)
	}
	if !b.Metrics.TotalReturnPct.LessThan(a.Metrics.TotalReturnPct) {
		t.Fatalf("costed return %s must be below frictionless return %s",
			b.Metrics.TotalReturnPct, a.Metrics.TotalReturnPct)
	}
}
