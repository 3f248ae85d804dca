package strategy

import (
	"github.com/shopspring/decimal"
	"github.com/twequity/trading-engine/internal/indicators"
	"github.com/twequity/trading-engine/pkg/types"
)

// MomentumPercent goes long when trailing Lookback-bar return exceeds
// Threshold and exits when it falls back below zero. Warm-up: Lookback+1
// bars.
type MomentumPercent struct {
	Lookback  int
	Threshold decimal.Decimal
	state     map[string]*window
}

func NewMomentumPercent() *MomentumPercent {
	return &MomentumPercent{Lookback: 20, Threshold: decimal.NewFromFloat(0.05), state: map[string]*window{}}
}

func (s *MomentumPercent) Name() string             { return "momentum_pct" }
func (s *MomentumPercent) Type() types.StrategyType { return types.StrategySwing }
func (s *MomentumPercent) Reset()                   { s.state = map[string]*window{} }

func (s *MomentumPercent) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	w, ok := s.state[bar.Symbol]
	need := s.Lookback + 1
	if !ok {
		w = newWindow(need + 5)
		s.state[bar.Symbol] = w
	}
	w.push(bar)
	if w.len() < need {
		return warmingUp(bar.Symbol, s.Name(), w.len(), need)
	}
	start := w.bars[w.len()-need].Close
	if start.IsZero() {
		return Neutral(bar.Symbol, s.Name(), "zero base price")
	}
	ret := bar.Close.Sub(start).Div(start)
	switch {
	case ret.GreaterThan(s.Threshold):
		conf := decimal.NewFromFloat(0.55).Add(ret.Sub(s.Threshold))
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: clampConf(conf), Reason: "positive trailing momentum above threshold"}
	case ret.LessThan(decimal.Zero):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionExitLong,
			Confidence: decimal.NewFromFloat(0.55), Reason: "trailing momentum turned negative"}
	}
	return Neutral(bar.Symbol, s.Name(), "momentum below entry threshold")
}

// MACDMomentum enters on a MACD/signal-line crossover. Warm-up:
// SlowPeriod+SignalPeriod+1 bars.
type MACDMomentum struct {
	FastPeriod, SlowPeriod, SignalPeriod int
	state                                map[string]*window
}

func NewMACDMomentum() *MACDMomentum {
	return &MACDMomentum{FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9, state: map[string]*window{}}
}

func (s *MACDMomentum) Name() string             { return "macd_momentum" }
func (s *MACDMomentum) Type() types.StrategyType { return types.StrategySwing }
func (s *MACDMomentum) Reset()                   { s.state = map[string]*window{} }

func (s *MACDMomentum) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	w, ok := s.state[bar.Symbol]
	need := s.SlowPeriod + s.SignalPeriod
	if !ok {
		w = newWindow(need + 10)
		s.state[bar.Symbol] = w
	}
	w.push(bar)
	if w.len() < need+1 {
		return warmingUp(bar.Symbol, s.Name(), w.len(), need+1)
	}
	now, ok := indicators.MACD(w.bars, s.FastPeriod, s.SlowPeriod, s.SignalPeriod)
	if !ok {
		return Neutral(bar.Symbol, s.Name(), "MACD unavailable")
	}
	prev, ok := indicators.MACD(w.bars[:w.len()-1], s.FastPeriod, s.SlowPeriod, s.SignalPeriod)
	if !ok {
		return Neutral(bar.Symbol, s.Name(), "MACD unavailable")
	}
	switch {
	case prev.MACD.LessThanOrEqual(prev.Signal) && now.MACD.GreaterThan(now.Signal):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.64), Reason: "MACD crossed above signal line"}
	case prev.MACD.GreaterThanOrEqual(prev.Signal) && now.MACD.LessThan(now.Signal):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionExitLong,
			Confidence: decimal.NewFromFloat(0.64), Reason: "MACD crossed below signal line"}
	}
	return Neutral(bar.Symbol, s.Name(), "no MACD crossover")
}

// BalanceOfPower measures where the close settled within the bar's
// range ((Close-Open)/(High-Low)) averaged over Period bars, a proxy
// for buying vs selling pressure. Warm-up: Period bars.
type BalanceOfPower struct {
	Period    int
	Threshold decimal.Decimal
	state     map[string]*window
}

func NewBalanceOfPower() *BalanceOfPower {
	return &BalanceOfPower{Period: 14, Threshold: decimal.NewFromFloat(0.3), state: map[string]*window{}}
}

func (s *BalanceOfPower) Name() string             { return "balance_of_power" }
func (s *BalanceOfPower) Type() types.StrategyType { return types.StrategyIntraday }
func (s *BalanceOfPower) Reset()                   { s.state = map[string]*window{} }

func (s *BalanceOfPower) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	w, ok := s.state[bar.Symbol]
	if !ok {
		w = newWindow(s.Period + 5)
		s.state[bar.Symbol] = w
	}
	w.push(bar)
	if w.len() < s.Period {
		return warmingUp(bar.Symbol, s.Name(), w.len(), s.Period)
	}
	win := w.bars[w.len()-s.Period:]
	sum := decimal.Zero
	n := 0
	for _, b := range win {
		rng := b.High.Sub(b.Low)
		if rng.IsZero() {
			continue
		}
		sum = sum.Add(b.Close.Sub(b.Open).Div(rng))
		n++
	}
	if n == 0 {
		return Neutral(bar.Symbol, s.Name(), "no range in window")
	}
	bop := sum.Div(decimal.NewFromInt(int64(n)))
	switch {
	case bop.GreaterThan(s.Threshold):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.58), Reason: "balance of power favors buyers"}
	case bop.LessThan(s.Threshold.Neg()):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionShort,
			Confidence: decimal.NewFromFloat(0.58), Reason: "balance of power favors sellers"}
	}
	return Neutral(bar.Symbol, s.Name(), "balance of power neutral")
}

// Aroon trades on AroonUp/AroonDown dominance (one above 70 and above
// the other), each computed from bars since the most recent Period-bar
// high/low. Warm-up: Period+1 bars.
type Aroon struct {
	Period int
	state  map[string]*window
}

func NewAroon() *Aroon {
	return &Aroon{Period: 25, state: map[string]*window{}}
}

func (s *Aroon) Name() string             { return "aroon" }
func (s *Aroon) Type() types.StrategyType { return types.StrategySwing }
func (s *Aroon) Reset()                   { s.state = map[string]*window{} }

func aroonUpDown(bars []types.Bar, period int) (up, down decimal.Decimal) {
	win := bars[len(bars)-period-1:]
	hi, hiIdx := win[0].High, 0
	lo, loIdx := win[0].Low, 0
	for i, b := range win {
		if b.High.GreaterThanOrEqual(hi) {
			hi, hiIdx = b.High, i
		}
		if b.Low.LessThanOrEqual(lo) {
			lo, loIdx = b.Low, i
		}
	}
	barsSinceHigh := len(win) - 1 - hiIdx
	barsSinceLow := len(win) - 1 - loIdx
	hundred := decimal.NewFromInt(100)
	p := decimal.NewFromInt(int64(period))
	up = hundred.Mul(p.Sub(decimal.NewFromInt(int64(barsSinceHigh)))).Div(p)
	down = hundred.Mul(p.Sub(decimal.NewFromInt(int64(barsSinceLow)))).Div(p)
	return up, down
}

func (s *Aroon) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	w, ok := s.state[bar.Symbol]
	need := s.Period + 1
	if !ok {
		w = newWindow(need + 5)
		s.state[bar.Symbol] = w
	}
	w.push(bar)
	if w.len() < need {
		return warmingUp(bar.Symbol, s.Name(), w.len(), need)
	}
	up, down := aroonUpDown(w.bars, s.Period)
	switch {
	case up.GreaterThan(decimal.NewFromInt(70)) && up.GreaterThan(down):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.6), Reason: "Aroon Up dominant, new trend forming"}
	case down.GreaterThan(decimal.NewFromInt(70)) && down.GreaterThan(up):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionExitLong,
			Confidence: decimal.NewFromFloat(0.6), Reason: "Aroon Down dominant, trend fading"}
	}
	return Neutral(bar.Symbol, s.Name(), "no Aroon dominance")
}
