package strategy

import (
	"github.com/shopspring/decimal"
	"github.com/twequity/trading-engine/internal/indicators"
	"github.com/twequity/trading-engine/pkg/types"
)

// VolumeBreakout enters in the bar's direction when volume spikes above
// Multiplier times its Period-bar average, treating unusual turnover as
// confirmation. Warm-up: Period+1 bars.
type VolumeBreakout struct {
	Period     int
	Multiplier decimal.Decimal
	state      map[string]*window
}

func NewVolumeBreakout() *VolumeBreakout {
	return &VolumeBreakout{Period: 20, Multiplier: decimal.NewFromInt(2), state: map[string]*window{}}
}

func (s *VolumeBreakout) Name() string             { return "volume_breakout" }
func (s *VolumeBreakout) Type() types.StrategyType { return types.StrategyShortTerm }
func (s *VolumeBreakout) Reset()                   { s.state = map[string]*window{} }

func avgVolume(bars []types.Bar) decimal.Decimal {
	if len(bars) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, b := range bars {
		sum = sum.Add(decimal.NewFromInt(b.Volume))
	}
	return sum.Div(decimal.NewFromInt(int64(len(bars))))
}

func (s *VolumeBreakout) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
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
	avg := avgVolume(w.bars[w.len()-need : w.len()-1])
	if avg.IsZero() {
		return Neutral(bar.Symbol, s.Name(), "no baseline volume")
	}
	ratio := decimal.NewFromInt(bar.Volume).Div(avg)
	if ratio.LessThan(s.Multiplier) {
		return Neutral(bar.Symbol, s.Name(), "volume within normal range")
	}
	switch {
	case bar.Close.GreaterThan(bar.Open):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.63), Reason: "up bar on volume spike"}
	case bar.Close.LessThan(bar.Open):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionShort,
			Confidence: decimal.NewFromFloat(0.63), Reason: "down bar on volume spike"}
	}
	return Neutral(bar.Symbol, s.Name(), "volume spike on doji bar")
}

// PriceVolumeTrend tracks the cumulative PVT line (volume scaled by
// fractional price change) and follows its slope. Warm-up: Period+1
// bars.
type PriceVolumeTrend struct {
	Period int
	state  map[string]*window
}

func NewPriceVolumeTrend() *PriceVolumeTrend {
	return &PriceVolumeTrend{Period: 20, state: map[string]*window{}}
}

func (s *PriceVolumeTrend) Name() string             { return "price_volume_trend" }
func (s *PriceVolumeTrend) Type() types.StrategyType { return types.StrategySwing }
func (s *PriceVolumeTrend) Reset()                   { s.state = map[string]*window{} }

func pvt(bars []types.Bar) decimal.Decimal {
	total := decimal.Zero
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		if prev.IsZero() {
			continue
		}
		change := bars[i].Close.Sub(prev).Div(prev)
		total = total.Add(change.Mul(decimal.NewFromInt(bars[i].Volume)))
	}
	return total
}

func (s *PriceVolumeTrend) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
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
	win := w.bars[w.len()-need:]
	full := pvt(win)
	firstHalf := pvt(win[:len(win)/2])
	switch {
	case full.GreaterThan(firstHalf) && full.IsPositive():
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.59), Reason: "price-volume trend accelerating upward"}
	case full.LessThan(firstHalf) && full.IsNegative():
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionExitLong,
			Confidence: decimal.NewFromFloat(0.59), Reason: "price-volume trend accelerating downward"}
	}
	return Neutral(bar.Symbol, s.Name(), "price-volume trend flat")
}

// ChaikinFlow follows the Chaikin Money Flow: sustained positive CMF is
// accumulation, sustained negative is distribution. Warm-up: Period
// bars.
type ChaikinFlow struct {
	Period    int
	Threshold decimal.Decimal
	state     map[string]*window
}

func NewChaikinFlow() *ChaikinFlow {
	return &ChaikinFlow{Period: 21, Threshold: decimal.NewFromFloat(0.1), state: map[string]*window{}}
}

func (s *ChaikinFlow) Name() string             { return "chaikin_flow" }
func (s *ChaikinFlow) Type() types.StrategyType { return types.StrategySwing }
func (s *ChaikinFlow) Reset()                   { s.state = map[string]*window{} }

func (s *ChaikinFlow) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	w, ok := s.state[bar.Symbol]
	if !ok {
		w = newWindow(s.Period + 5)
		s.state[bar.Symbol] = w
	}
	w.push(bar)
	if w.len() < s.Period {
		return warmingUp(bar.Symbol, s.Name(), w.len(), s.Period)
	}
	cmf, ok := indicators.CMF(w.bars, s.Period)
	if !ok {
		return Neutral(bar.Symbol, s.Name(), "CMF unavailable")
	}
	switch {
	case cmf.GreaterThan(s.Threshold):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.6), Reason: "Chaikin money flow shows accumulation"}
	case cmf.LessThan(s.Threshold.Neg()):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionExitLong,
			Confidence: decimal.NewFromFloat(0.6), Reason: "Chaikin money flow shows distribution"}
	}
	return Neutral(bar.Symbol, s.Name(), "Chaikin money flow balanced")
}

// VolumeSpikeFade fades a capitulation bar: an outsized down move on
// outsized volume often marks short-term exhaustion. Warm-up: Period+1
// bars.
type VolumeSpikeFade struct {
	Period        int
	VolMultiplier decimal.Decimal
	MinDropPct    decimal.Decimal
	state         map[string]*window
}

func NewVolumeSpikeFade() *VolumeSpikeFade {
	return &VolumeSpikeFade{Period: 20, VolMultiplier: decimal.NewFromInt(3), MinDropPct: decimal.NewFromFloat(0.03), state: map[string]*window{}}
}

func (s *VolumeSpikeFade) Name() string             { return "volume_spike_fade" }
func (s *VolumeSpikeFade) Type() types.StrategyType { return types.StrategyShortTerm }
func (s *VolumeSpikeFade) Reset()                   { s.state = map[string]*window{} }

func (s *VolumeSpikeFade) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
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
	avg := avgVolume(w.bars[w.len()-need : w.len()-1])
	if avg.IsZero() || bar.Open.IsZero() {
		return Neutral(bar.Symbol, s.Name(), "no baseline volume")
	}
	volRatio := decimal.NewFromInt(bar.Volume).Div(avg)
	drop := bar.Open.Sub(bar.Close).Div(bar.Open)
	if volRatio.GreaterThanOrEqual(s.VolMultiplier) && drop.GreaterThanOrEqual(s.MinDropPct) {
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.62), Reason: "fading capitulation bar on extreme volume"}
	}
	return Neutral(bar.Symbol, s.Name(), "no capitulation pattern")
}
