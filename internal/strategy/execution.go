package strategy

import (
	"github.com/shopspring/decimal"
	"github.com/twequity/trading-engine/pkg/types"
)

// VWAPExecution enters when price trades through the session VWAP with
// conviction, used to slice entries toward a volume-weighted benchmark
// rather than to find independent edge. Warm-up: Period bars.
type VWAPExecution struct {
	Period int
	state  map[string]*window
}

func NewVWAPExecution() *VWAPExecution {
	return &VWAPExecution{Period: 20, state: map[string]*window{}}
}

func (s *VWAPExecution) Name() string             { return "vwap_execution" }
func (s *VWAPExecution) Type() types.StrategyType { return types.StrategyIntraday }
func (s *VWAPExecution) Reset()                   { s.state = map[string]*window{} }

func vwap(bars []types.Bar) decimal.Decimal {
	pv, vol := decimal.Zero, decimal.Zero
	for _, b := range bars {
		typical := b.High.Add(b.Low).Add(b.Close).Div(decimal.NewFromInt(3))
		v := decimal.NewFromInt(b.Volume)
		pv = pv.Add(typical.Mul(v))
		vol = vol.Add(v)
	}
	if vol.IsZero() {
		return decimal.Zero
	}
	return pv.Div(vol)
}

func (s *VWAPExecution) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	w, ok := s.state[bar.Symbol]
	if !ok {
		w = newWindow(s.Period + 5)
		s.state[bar.Symbol] = w
	}
	w.push(bar)
	if w.len() < s.Period {
		return warmingUp(bar.Symbol, s.Name(), w.len(), s.Period)
	}
	v := vwap(w.bars[w.len()-s.Period:])
	if v.IsZero() {
		return Neutral(bar.Symbol, s.Name(), "VWAP unavailable")
	}
	switch {
	case bar.Close.LessThan(v):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.55), Reason: "trading below session VWAP"}
	case bar.Close.GreaterThan(v):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionExitLong,
			Confidence: decimal.NewFromFloat(0.55), Reason: "trading above session VWAP"}
	}
	return Neutral(bar.Symbol, s.Name(), "trading at VWAP")
}

// TWAPExecution fires a fixed-cadence entry every Interval bars,
// spreading execution evenly through time rather than timing the
// market. No warm-up beyond the first bar.
type TWAPExecution struct {
	Interval int
	counters map[string]int
}

func NewTWAPExecution() *TWAPExecution {
	return &TWAPExecution{Interval: 5, counters: map[string]int{}}
}

func (s *TWAPExecution) Name() string             { return "twap_execution" }
func (s *TWAPExecution) Type() types.StrategyType { return types.StrategyIntraday }
func (s *TWAPExecution) Reset()                   { s.counters = map[string]int{} }

func (s *TWAPExecution) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	s.counters[bar.Symbol]++
	n := s.counters[bar.Symbol]
	if n%s.Interval != 0 {
		return Neutral(bar.Symbol, s.Name(), "between TWAP slices")
	}
	return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
		Confidence: decimal.NewFromFloat(0.5), Reason: "scheduled TWAP slice"}
}
