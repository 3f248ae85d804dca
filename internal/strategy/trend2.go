package strategy

import (
	"github.com/shopspring/decimal"
	"github.com/twequity/trading-engine/internal/indicators"
	"github.com/twequity/trading-engine/pkg/types"
)

// DonchianBreakout enters on a close outside the prior Period-bar
// Donchian Channel, the classic turtle-style breakout. Warm-up:
// Period+1 bars.
type DonchianBreakout struct {
	Period int
	state  map[string]*window
}

func NewDonchianBreakout() *DonchianBreakout {
	return &DonchianBreakout{Period: 20, state: map[string]*window{}}
}

func (s *DonchianBreakout) Name() string             { return "donchian_breakout" }
func (s *DonchianBreakout) Type() types.StrategyType { return types.StrategySwing }
func (s *DonchianBreakout) Reset()                   { s.state = map[string]*window{} }

func (s *DonchianBreakout) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
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
	dc, ok := indicators.Donchian(w.bars, s.Period)
	if !ok {
		return Neutral(bar.Symbol, s.Name(), "Donchian unavailable")
	}
	switch {
	case bar.Close.GreaterThan(dc.Upper):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.65), Reason: "close broke above Donchian upper bound"}
	case bar.Close.LessThan(dc.Lower):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionShort,
			Confidence: decimal.NewFromFloat(0.65), Reason: "close broke below Donchian lower bound"}
	}
	return Neutral(bar.Symbol, s.Name(), "inside Donchian channel")
}

// Supertrend follows an ATR-banded trailing line that flips side when
// price closes through it. Warm-up: Period+1 bars.
type Supertrend struct {
	Period     int
	Multiplier decimal.Decimal
	state      map[string]*supertrendState
}

type supertrendState struct {
	window *window
	line   decimal.Decimal
	up     bool
	primed bool
}

func NewSupertrend() *Supertrend {
	return &Supertrend{Period: 10, Multiplier: decimal.NewFromInt(3), state: map[string]*supertrendState{}}
}

func (s *Supertrend) Name() string             { return "supertrend" }
func (s *Supertrend) Type() types.StrategyType { return types.StrategySwing }
func (s *Supertrend) Reset()                   { s.state = map[string]*supertrendState{} }

func (s *Supertrend) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	st, ok := s.state[bar.Symbol]
	need := s.Period + 1
	if !ok {
		st = &supertrendState{window: newWindow(need + 5)}
		s.state[bar.Symbol] = st
	}
	st.window.push(bar)
	if st.window.len() < need {
		return warmingUp(bar.Symbol, s.Name(), st.window.len(), need)
	}
	atr, ok := indicators.ATR(st.window.bars, s.Period)
	if !ok {
		return Neutral(bar.Symbol, s.Name(), "ATR unavailable")
	}
	mid := bar.High.Add(bar.Low).Div(decimal.NewFromInt(2))
	band := atr.Mul(s.Multiplier)

	if !st.primed {
		st.primed = true
		st.up = true
		st.line = mid.Sub(band)
		return Neutral(bar.Symbol, s.Name(), "supertrend priming")
	}

	if st.up {
		// Trailing support: ratchet the line upward, flip on a close below it.
		st.line = decimal.Max(st.line, mid.Sub(band))
		if bar.Close.LessThan(st.line) {
			st.up = false
			st.line = mid.Add(band)
			return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionExitLong,
				Confidence: decimal.NewFromFloat(0.66), Reason: "close fell through supertrend support"}
		}
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.62), Reason: "price holding above supertrend support"}
	}

	st.line = decimal.Min(st.line, mid.Add(band))
	if bar.Close.GreaterThan(st.line) {
		st.up = true
		st.line = mid.Sub(band)
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.66), Reason: "close rose through supertrend resistance"}
	}
	return Neutral(bar.Symbol, s.Name(), "price below supertrend resistance")
}

// ParabolicSAR maintains Wilder's stop-and-reverse dots, going with the
// current side and exiting when price crosses the SAR. Warm-up: 2 bars.
type ParabolicSAR struct {
	StepAF, MaxAF decimal.Decimal
	state         map[string]*sarState
}

type sarState struct {
	sar, ep, af decimal.Decimal
	up          bool
	primed      bool
}

func NewParabolicSAR() *ParabolicSAR {
	return &ParabolicSAR{StepAF: decimal.NewFromFloat(0.02), MaxAF: decimal.NewFromFloat(0.2), state: map[string]*sarState{}}
}

func (s *ParabolicSAR) Name() string             { return "parabolic_sar" }
func (s *ParabolicSAR) Type() types.StrategyType { return types.StrategyShortTerm }
func (s *ParabolicSAR) Reset()                   { s.state = map[string]*sarState{} }

func (s *ParabolicSAR) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	st, ok := s.state[bar.Symbol]
	if !ok {
		st = &sarState{}
		s.state[bar.Symbol] = st
	}
	if !st.primed {
		st.primed = true
		st.up = true
		st.sar = bar.Low
		st.ep = bar.High
		st.af = s.StepAF
		return warmingUp(bar.Symbol, s.Name(), 1, 2)
	}

	st.sar = st.sar.Add(st.af.Mul(st.ep.Sub(st.sar)))
	if st.up {
		if bar.High.GreaterThan(st.ep) {
			st.ep = bar.High
			st.af = decimal.Min(st.af.Add(s.StepAF), s.MaxAF)
		}
		if bar.Low.LessThan(st.sar) {
			st.up = false
			st.sar = st.ep
			st.ep = bar.Low
			st.af = s.StepAF
			return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionExitLong,
				Confidence: decimal.NewFromFloat(0.64), Reason: "price crossed below parabolic SAR"}
		}
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.6), Reason: "parabolic SAR rising below price"}
	}

	if bar.Low.LessThan(st.ep) {
		st.ep = bar.Low
		st.af = decimal.Min(st.af.Add(s.StepAF), s.MaxAF)
	}
	if bar.High.GreaterThan(st.sar) {
		st.up = true
		st.sar = st.ep
		st.ep = bar.High
		st.af = s.StepAF
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.64), Reason: "price crossed above parabolic SAR"}
	}
	return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionShort,
		Confidence: decimal.NewFromFloat(0.6), Reason: "parabolic SAR falling above price"}
}

// GoldenCross is the long-horizon SMA(50)/SMA(200) regime filter: long
// while the 50 sits above the 200, flat otherwise. Warm-up: SlowPeriod+1
// bars.
type GoldenCross struct {
	FastPeriod, SlowPeriod int
	state                  map[string]*window
}

func NewGoldenCross() *GoldenCross {
	return &GoldenCross{FastPeriod: 50, SlowPeriod: 200, state: map[string]*window{}}
}

func (s *GoldenCross) Name() string             { return "golden_cross" }
func (s *GoldenCross) Type() types.StrategyType { return types.StrategyLongTerm }
func (s *GoldenCross) Reset()                   { s.state = map[string]*window{} }

func (s *GoldenCross) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	w, ok := s.state[bar.Symbol]
	need := s.SlowPeriod + 1
	if !ok {
		w = newWindow(need + 5)
		s.state[bar.Symbol] = w
	}
	w.push(bar)
	if w.len() < need {
		return warmingUp(bar.Symbol, s.Name(), w.len(), need)
	}
	fastNow, _ := indicators.SMA(w.bars, s.FastPeriod)
	slowNow, _ := indicators.SMA(w.bars, s.SlowPeriod)
	fastPrev, _ := indicators.SMA(w.bars[:w.len()-1], s.FastPeriod)
	slowPrev, _ := indicators.SMA(w.bars[:w.len()-1], s.SlowPeriod)

	switch {
	case fastPrev.LessThanOrEqual(slowPrev) && fastNow.GreaterThan(slowNow):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.72), Reason: "golden cross: SMA50 crossed above SMA200"}
	case fastPrev.GreaterThanOrEqual(slowPrev) && fastNow.LessThan(slowNow):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionExitLong,
			Confidence: decimal.NewFromFloat(0.72), Reason: "death cross: SMA50 crossed below SMA200"}
	}
	return Neutral(bar.Symbol, s.Name(), "no 50/200 crossover")
}

// DEMATrend follows the double EMA (2*EMA - EMA(EMA)), which reduces
// the lag of a plain EMA; long while price rides above it. Warm-up:
// Period*2 bars.
type DEMATrend struct {
	Period int
	state  map[string]*window
}

func NewDEMATrend() *DEMATrend {
	return &DEMATrend{Period: 21, state: map[string]*window{}}
}

func (s *DEMATrend) Name() string             { return "dema_trend" }
func (s *DEMATrend) Type() types.StrategyType { return types.StrategySwing }
func (s *DEMATrend) Reset()                   { s.state = map[string]*window{} }

func dema(bars []types.Bar, period int) (decimal.Decimal, bool) {
	if len(bars) == 0 {
		return decimal.Zero, false
	}
	inner := emaSeries(bars, period)
	outer := emaOfSeries(inner, period)
	if len(inner) == 0 {
		return decimal.Zero, false
	}
	last := inner[len(inner)-1]
	return last.Mul(decimal.NewFromInt(2)).Sub(outer), true
}

func emaSeries(bars []types.Bar, period int) []decimal.Decimal {
	out := make([]decimal.Decimal, len(bars))
	mult := decimal.NewFromFloat(2.0 / float64(period+1))
	for i, b := range bars {
		if i == 0 {
			out[i] = b.Close
			continue
		}
		out[i] = b.Close.Sub(out[i-1]).Mul(mult).Add(out[i-1])
	}
	return out
}

func emaOfSeries(values []decimal.Decimal, period int) decimal.Decimal {
	mult := decimal.NewFromFloat(2.0 / float64(period+1))
	var cur decimal.Decimal
	for i, v := range values {
		if i == 0 {
			cur = v
			continue
		}
		cur = v.Sub(cur).Mul(mult).Add(cur)
	}
	return cur
}

func (s *DEMATrend) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	w, ok := s.state[bar.Symbol]
	need := s.Period * 2
	if !ok {
		w = newWindow(need + 10)
		s.state[bar.Symbol] = w
	}
	w.push(bar)
	if w.len() < need {
		return warmingUp(bar.Symbol, s.Name(), w.len(), need)
	}
	d, ok := dema(w.bars, s.Period)
	if !ok {
		return Neutral(bar.Symbol, s.Name(), "DEMA unavailable")
	}
	switch {
	case bar.Close.GreaterThan(d):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.58), Reason: "price above DEMA"}
	case bar.Close.LessThan(d):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionExitLong,
			Confidence: decimal.NewFromFloat(0.58), Reason: "price below DEMA"}
	}
	return Neutral(bar.Symbol, s.Name(), "price at DEMA")
}
