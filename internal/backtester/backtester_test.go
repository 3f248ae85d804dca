package backtester

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/twequity/trading-engine/internal/strategy"
	"github.com/twequity/trading-engine/pkg/types"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

// alternator enters long on the first bar of each cycle and exits
// three bars later, forever, so a short bar range still produces a
// handful of deterministic round trips to assert against.
type alternator struct {
	bar int
}

func (a *alternator) Name() string               { return "test-alternator" }
func (a *alternator) Type() types.StrategyType   { return types.StrategyShortTerm }
func (a *alternator) Reset()                     { a.bar = 0 }
func (a *alternator) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	a.bar++
	cyclePos := a.bar % 4
	sig := types.TradeSignal{Symbol: bar.Symbol, StrategyName: a.Name(), Timestamp: bar.Timestamp, Confidence: d(0.9)}
	switch {
	case cyclePos == 1:
		sig.Direction = types.DirectionLong
	case cyclePos == 0:
		sig.Direction = types.DirectionExitLong
	default:
		sig.Direction = types.DirectionNeutral
	}
	return sig
}

func makeBars(symbol string, n int, start, step decimal.Decimal) []types.Bar {
	bars := make([]types.Bar, n)
	price := start
	ts := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		bars[i] = types.Bar{Symbol: symbol, Timeframe: types.Timeframe1d, Timestamp: ts, Open: price, High: price, Low: price, Close: price, Volume: 1000}
		price = price.Add(step)
		ts = ts.Add(24 * time.Hour)
	}
	return bars
}

func testJob(bars []types.Bar) Job {
	return Job{
		StrategyName: "test-alternator",
		Factory:      func() strategy.Strategy { return &alternator{} },
		Symbol:       "2330.TW",
		Bars:         bars,
	}
}

func TestEvaluateRecordsRoundTrips(t *testing.T) {
	bars := makeBars("2330.TW", 40, d(600), d(1))
	result, err := Evaluate(testJob(bars))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.Metrics.TotalTrades == 0 {
		t.Fatalf("expected at least one closed trade")
	}
	if len(result.EquityCurve) != len(bars) {
		t.Fatalf("expected one equity point per bar, got %d want %d", len(result.EquityCurve), len(bars))
	}
	// prices only rise, so every long round trip should be a winner.
	if !result.Metrics.WinRatePct.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected 100%% win rate on a monotonically rising series, got %s", result.Metrics.WinRatePct)
	}
}

func TestEvaluateRejectsEmptyBars(t *testing.T) {
	if _, err := Evaluate(testJob(nil)); err == nil {
		t.Fatalf("expected an error for an empty bar range")
	}
}

func TestBacktesterRunParallelFanOut(t *testing.T) {
	bars := makeBars("2330.TW", 40, d(600), d(1))
	jobs := []Job{testJob(bars), testJob(bars), testJob(bars)}
	bt := New(zap.NewNop(), nil)
	results, err := bt.Run(context.Background(), jobs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(results) != len(jobs) {
		t.Fatalf("expected %d results, got %d", len(jobs), len(results))
	}
	for i, r := range results {
		if r.Metrics.TotalTrades == 0 {
			t.Fatalf("job %d: expected closed trades", i)
		}
	}
}

func TestFitnessPenaltiesLowerScore(t *testing.T) {
	m := types.PerformanceMetrics{
		SharpeRatio:    decimal.NewFromInt(1),
		SortinoRatio:   decimal.NewFromInt(1),
		CalmarRatio:    decimal.NewFromInt(1),
		MaxDrawdownPct: decimal.NewFromInt(10),
		TotalTrades:    25,
	}
	base := Fitness(m)
	if base.LessThanOrEqual(decimal.Zero) {
		t.Fatalf("expected a positive fitness for healthy metrics, got %s", base)
	}

	under := m
	under.TotalTrades = 5
	if Fitness(under).GreaterThanOrEqual(base) {
		t.Fatalf("expected the trade-count penalty to lower fitness below %s, got %s", base, Fitness(under))
	}

	overDrawdown := m
	overDrawdown.MaxDrawdownPct = decimal.NewFromInt(60)
	if Fitness(overDrawdown).GreaterThanOrEqual(base) {
		t.Fatalf("expected the drawdown penalty to lower fitness below %s, got %s", base, Fitness(overDrawdown))
	}
}

func TestMonteCarloBounds(t *testing.T) {
	trades := []types.Trade{
		{PnL: d(500)}, {PnL: d(-300)}, {PnL: d(800)}, {PnL: d(-100)}, {PnL: d(200)},
	}
	res, err := MonteCarlo(trades, decimal.NewFromInt(10000), 500, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("monte carlo: %v", err)
	}
	if res.Iterations != 500 {
		t.Fatalf("expected 500 iterations, got %d", res.Iterations)
	}
	if res.P5ReturnPct.GreaterThan(res.MedianReturnPct) || res.MedianReturnPct.GreaterThan(res.P95ReturnPct) {
		t.Fatalf("expected p5 <= median <= p95, got p5=%s median=%s p95=%s", res.P5ReturnPct, res.MedianReturnPct, res.P95ReturnPct)
	}
	if res.ProbabilityRuin.IsNegative() || res.ProbabilityRuin.GreaterThan(decimal.NewFromInt(100)) {
		t.Fatalf("expected a probability in [0,100], got %s", res.ProbabilityRuin)
	}
}

func TestMonteCarloRejectsEmptyTrades(t *testing.T) {
	if _, err := MonteCarlo(nil, decimal.NewFromInt(10000), 100, nil); err == nil {
		t.Fatalf("expected an error for an empty trade set")
	}
}
