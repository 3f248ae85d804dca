package regime

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/twequity/trading-engine/pkg/types"
)

func makeBars(closesIn []float64) []types.Bar {
	bars := make([]types.Bar, len(closesIn))
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	for i, c := range closesIn {
		d := decimal.NewFromFloat(c)
		bars[i] = types.Bar{
			Symbol:    "2330.TW",
			Timeframe: types.Timeframe1d,
			Timestamp: base.AddDate(0, 0, i),
			Open:      d,
			High:      d.Add(decimal.NewFromInt(1)),
			Low:       d.Sub(decimal.NewFromInt(1)),
			Close:     d,
			Volume:    1000,
		}
	}
	return bars
}

func TestUnknownBeforeWarmup(t *testing.T) {
	c := NewClassifier(zap.NewNop(), DefaultConfig())
	bars := makeBars([]float64{100, 101, 102})
	var last State
	for _, b := range bars {
		last = c.OnBar(b)
	}
	if last.Regime != RegimeUnknown {
		t.Fatalf("expected UNKNOWN before warmup, got %s", last.Regime)
	}
}

func TestTrendingUpOnSteadyRise(t *testing.T) {
	c := NewClassifier(zap.NewNop(), DefaultConfig())
	closesIn := make([]float64, 250)
	for i := range closesIn {
		closesIn[i] = 100 + float64(i)*0.8
	}
	bars := makeBars(closesIn)
	var last State
	for _, b := range bars {
		last = c.OnBar(b)
	}
	if last.Regime != RegimeTrendingUp {
		t.Fatalf("expected TRENDING_UP on a steady uptrend, got %s (adx=%s)", last.Regime, last.ADX)
	}
}

func TestCrisisOnExtremeVolatility(t *testing.T) {
	c := NewClassifier(zap.NewNop(), DefaultConfig())
	closesIn := make([]float64, 40)
	price := 100.0
	for i := range closesIn {
		closesIn[i] = price
		if i%2 == 0 {
			price *= 1.05
		} else {
			price /= 1.05
		}
	}
	var last State
	for _, b := range makeBars(closesIn) {
		last = c.OnBar(b)
	}
	if last.Regime != RegimeCrisis {
		t.Fatalf("expected CRISIS on ~78%% annualized volatility, got %s (vol=%s)", last.Regime, last.Volatility)
	}
}

func TestCrisisOnDeepDrawdownAloneSufficient(t *testing.T) {
	c := NewClassifier(zap.NewNop(), DefaultConfig())
	closesIn := make([]float64, 65)
	price := 100.0
	for i := range closesIn {
		closesIn[i] = price
		if i >= 40 {
			price *= 0.99 // calm, steady decline: low vol, deep drawdown
		}
	}
	var last State
	for _, b := range makeBars(closesIn) {
		last = c.OnBar(b)
	}
	if last.Regime != RegimeCrisis {
		t.Fatalf("expected CRISIS on >15%% drawdown regardless of volatility, got %s (dd=%s vol=%s)",
			last.Regime, last.Drawdown, last.Volatility)
	}
	if last.Volatility.GreaterThanOrEqual(DefaultConfig().CrisisVol) {
		t.Fatalf("test setup broke: volatility %s should be below the crisis threshold so drawdown alone decides", last.Volatility)
	}
}

func TestHighVolatilityBetweenThresholds(t *testing.T) {
	c := NewClassifier(zap.NewNop(), DefaultConfig())
	closesIn := make([]float64, 40)
	price := 100.0
	for i := range closesIn {
		closesIn[i] = price
		if i%2 == 0 {
			price *= 1.025
		} else {
			price /= 1.025
		}
	}
	var last State
	for _, b := range makeBars(closesIn) {
		last = c.OnBar(b)
	}
	if last.Regime != RegimeHighVolatility {
		t.Fatalf("expected HIGH_VOLATILITY on ~40%% annualized volatility, got %s (vol=%s)", last.Regime, last.Volatility)
	}
}

func TestCurrentUnknownSymbol(t *testing.T) {
	c := NewClassifier(zap.NewNop(), DefaultConfig())
	s := c.Current("nope")
	if s.Regime != RegimeUnknown {
		t.Fatalf("expected UNKNOWN for unseen symbol, got %s", s.Regime)
	}
}

func TestPositionScaleOrdering(t *testing.T) {
	up := PositionScale(RegimeTrendingUp)
	ranging := PositionScale(RegimeRanging)
	down := PositionScale(RegimeTrendingDown)
	highVol := PositionScale(RegimeHighVolatility)
	crisis := PositionScale(RegimeCrisis)
	if !(up.GreaterThan(ranging) && ranging.GreaterThan(down) && down.GreaterThan(highVol) && highVol.GreaterThan(crisis)) {
		t.Fatalf("expected strictly decreasing scale up>ranging>down>highVol>crisis, got %s %s %s %s %s", up, ranging, down, highVol, crisis)
	}
	if !crisis.IsZero() {
		t.Fatalf("expected zero position scale in CRISIS, got %s", crisis)
	}
}
