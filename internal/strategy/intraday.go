package strategy

import (
	"github.com/shopspring/decimal"
	"github.com/twequity/trading-engine/internal/indicators"
	"github.com/twequity/trading-engine/pkg/types"
)

// OpeningRangeBreakout records the high/low of the first RangeBars bars
// of each session and enters on the first close beyond that range.
// Warm-up: RangeBars bars per session.
type OpeningRangeBreakout struct {
	RangeBars int
	state     map[string]*orbState
}

type orbState struct {
	day       int
	hi, lo    decimal.Decimal
	seen      int
	triggered bool
}

func NewOpeningRangeBreakout() *OpeningRangeBreakout {
	return &OpeningRangeBreakout{RangeBars: 6, state: map[string]*orbState{}}
}

func (s *OpeningRangeBreakout) Name() string             { return "opening_range_breakout" }
func (s *OpeningRangeBreakout) Type() types.StrategyType { return types.StrategyIntraday }
func (s *OpeningRangeBreakout) Reset()                   { s.state = map[string]*orbState{} }

func (s *OpeningRangeBreakout) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	st, ok := s.state[bar.Symbol]
	day := bar.Timestamp.YearDay() + bar.Timestamp.Year()*1000
	if !ok || st.day != day {
		st = &orbState{day: day, hi: bar.High, lo: bar.Low, seen: 1}
		s.state[bar.Symbol] = st
		return warmingUp(bar.Symbol, s.Name(), 1, s.RangeBars)
	}
	if st.seen < s.RangeBars {
		st.seen++
		if bar.High.GreaterThan(st.hi) {
			st.hi = bar.High
		}
		if bar.Low.LessThan(st.lo) {
			st.lo = bar.Low
		}
		return warmingUp(bar.Symbol, s.Name(), st.seen, s.RangeBars)
	}
	if st.triggered {
		return Neutral(bar.Symbol, s.Name(), "opening range already traded today")
	}
	switch {
	case bar.Close.GreaterThan(st.hi):
		st.triggered = true
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.64), Reason: "close broke above opening range high"}
	case bar.Close.LessThan(st.lo):
		st.triggered = true
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionShort,
			Confidence: decimal.NewFromFloat(0.64), Reason: "close broke below opening range low"}
	}
	return Neutral(bar.Symbol, s.Name(), "inside opening range")
}

// VWAPReversion fades stretches more than DeviationPct away from the
// rolling VWAP, expecting institutional flow to pull price back.
// Warm-up: Period bars.
type VWAPReversion struct {
	Period       int
	DeviationPct decimal.Decimal
	state        map[string]*window
}

func NewVWAPReversion() *VWAPReversion {
	return &VWAPReversion{Period: 20, DeviationPct: decimal.NewFromFloat(0.015), state: map[string]*window{}}
}

func (s *VWAPReversion) Name() string             { return "vwap_reversion" }
func (s *VWAPReversion) Type() types.StrategyType { return types.StrategyIntraday }
func (s *VWAPReversion) Reset()                   { s.state = map[string]*window{} }

func (s *VWAPReversion) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
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
	dev := bar.Close.Sub(v).Div(v)
	switch {
	case dev.LessThan(s.DeviationPct.Neg()):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.6), Reason: "price stretched below VWAP"}
	case dev.GreaterThan(s.DeviationPct):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionShort,
			Confidence: decimal.NewFromFloat(0.6), Reason: "price stretched above VWAP"}
	}
	return Neutral(bar.Symbol, s.Name(), "price near VWAP")
}

// ATRTrailingStop rides a long position behind a Multiplier*ATR trailing
// stop and exits the moment the stop is hit; re-arms (and signals LONG
// again) on the next bar after a stop-out. Warm-up: Period+1 bars.
type ATRTrailingStop struct {
	Period     int
	Multiplier decimal.Decimal
	state      map[string]*trailState
}

type trailState struct {
	window *window
	stop   decimal.Decimal
	armed  bool
}

func NewATRTrailingStop() *ATRTrailingStop {
	return &ATRTrailingStop{Period: 14, Multiplier: decimal.NewFromInt(3), state: map[string]*trailState{}}
}

func (s *ATRTrailingStop) Name() string             { return "atr_trailing_stop" }
func (s *ATRTrailingStop) Type() types.StrategyType { return types.StrategyShortTerm }
func (s *ATRTrailingStop) Reset()                   { s.state = map[string]*trailState{} }

func (s *ATRTrailingStop) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	st, ok := s.state[bar.Symbol]
	need := s.Period + 1
	if !ok {
		st = &trailState{window: newWindow(need + 5)}
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
	candidate := bar.Close.Sub(atr.Mul(s.Multiplier))

	if !st.armed {
		st.armed = true
		st.stop = candidate
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.6), Reason: "arming ATR trailing stop"}
	}
	if candidate.GreaterThan(st.stop) {
		st.stop = candidate
	}
	if bar.Close.LessThan(st.stop) {
		st.armed = false
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionExitLong,
			Confidence: decimal.NewFromFloat(0.66), Reason: "close hit ATR trailing stop"}
	}
	return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
		Confidence: decimal.NewFromFloat(0.58), Reason: "price holding above ATR trailing stop"}
}

// ChandelierExit hangs the stop Multiplier*ATR below the Period-bar
// highest high rather than below the close, giving winners more room.
// Warm-up: Period+1 bars.
type ChandelierExit struct {
	Period     int
	Multiplier decimal.Decimal
	state      map[string]*window
}

func NewChandelierExit() *ChandelierExit {
	return &ChandelierExit{Period: 22, Multiplier: decimal.NewFromInt(3), state: map[string]*window{}}
}

func (s *ChandelierExit) Name() string             { return "chandelier_exit" }
func (s *ChandelierExit) Type() types.StrategyType { return types.StrategyShortTerm }
func (s *ChandelierExit) Reset()                   { s.state = map[string]*window{} }

func (s *ChandelierExit) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
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
	atr, ok := indicators.ATR(w.bars, s.Period)
	if !ok {
		return Neutral(bar.Symbol, s.Name(), "ATR unavailable")
	}
	win := w.bars[w.len()-s.Period:]
	hi := win[0].High
	for _, b := range win {
		if b.High.GreaterThan(hi) {
			hi = b.High
		}
	}
	stop := hi.Sub(atr.Mul(s.Multiplier))
	switch {
	case bar.Close.LessThan(stop):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionExitLong,
			Confidence: decimal.NewFromFloat(0.64), Reason: "close below chandelier stop"}
	case bar.Close.GreaterThan(hi.Sub(atr)):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.6), Reason: "price near highs with chandelier stop trailing"}
	}
	return Neutral(bar.Symbol, s.Name(), "between chandelier stop and highs")
}

// HeikinAshiTrend smooths bars into Heikin-Ashi candles and follows a
// run of ConfirmBars same-colored candles. Warm-up: ConfirmBars+1 bars.
type HeikinAshiTrend struct {
	ConfirmBars int
	state       map[string]*haState
}

type haState struct {
	open, close decimal.Decimal
	upRun       int
	downRun     int
	seen        int
}

func NewHeikinAshiTrend() *HeikinAshiTrend {
	return &HeikinAshiTrend{ConfirmBars: 3, state: map[string]*haState{}}
}

func (s *HeikinAshiTrend) Name() string             { return "heikin_ashi_trend" }
func (s *HeikinAshiTrend) Type() types.StrategyType { return types.StrategyShortTerm }
func (s *HeikinAshiTrend) Reset()                   { s.state = map[string]*haState{} }

func (s *HeikinAshiTrend) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	st, ok := s.state[bar.Symbol]
	four := decimal.NewFromInt(4)
	two := decimal.NewFromInt(2)
	haClose := bar.Open.Add(bar.High).Add(bar.Low).Add(bar.Close).Div(four)
	if !ok {
		st = &haState{open: bar.Open.Add(bar.Close).Div(two), close: haClose, seen: 1}
		s.state[bar.Symbol] = st
		return warmingUp(bar.Symbol, s.Name(), 1, s.ConfirmBars+1)
	}
	haOpen := st.open.Add(st.close).Div(two)
	st.open, st.close = haOpen, haClose
	st.seen++

	if haClose.GreaterThan(haOpen) {
		st.upRun++
		st.downRun = 0
	} else if haClose.LessThan(haOpen) {
		st.downRun++
		st.upRun = 0
	}
	if st.seen < s.ConfirmBars+1 {
		return warmingUp(bar.Symbol, s.Name(), st.seen, s.ConfirmBars+1)
	}
	switch {
	case st.upRun >= s.ConfirmBars:
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.61), Reason: "run of bullish Heikin-Ashi candles"}
	case st.downRun >= s.ConfirmBars:
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionExitLong,
			Confidence: decimal.NewFromFloat(0.61), Reason: "run of bearish Heikin-Ashi candles"}
	}
	return Neutral(bar.Symbol, s.Name(), "Heikin-Ashi run too short")
}

// ThreeBarReversal looks for two consecutive down bars followed by a
// strong up bar that closes above both prior highs. Warm-up: 3 bars.
type ThreeBarReversal struct {
	state map[string]*window
}

func NewThreeBarReversal() *ThreeBarReversal {
	return &ThreeBarReversal{state: map[string]*window{}}
}

func (s *ThreeBarReversal) Name() string             { return "three_bar_reversal" }
func (s *ThreeBarReversal) Type() types.StrategyType { return types.StrategyIntraday }
func (s *ThreeBarReversal) Reset()                   { s.state = map[string]*window{} }

func (s *ThreeBarReversal) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	w, ok := s.state[bar.Symbol]
	if !ok {
		w = newWindow(3)
		s.state[bar.Symbol] = w
	}
	w.push(bar)
	if w.len() < 3 {
		return warmingUp(bar.Symbol, s.Name(), w.len(), 3)
	}
	a, b, c := w.bars[0], w.bars[1], w.bars[2]
	aDown := a.Close.LessThan(a.Open)
	bDown := b.Close.LessThan(b.Open)
	cUp := c.Close.GreaterThan(c.Open)
	if aDown && bDown && cUp && c.Close.GreaterThan(a.High) && c.Close.GreaterThan(b.High) {
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.63), Reason: "bullish three-bar reversal"}
	}
	aUp := a.Close.GreaterThan(a.Open)
	bUp := b.Close.GreaterThan(b.Open)
	cDown := c.Close.LessThan(c.Open)
	if aUp && bUp && cDown && c.Close.LessThan(a.Low) && c.Close.LessThan(b.Low) {
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionShort,
			Confidence: decimal.NewFromFloat(0.63), Reason: "bearish three-bar reversal"}
	}
	return Neutral(bar.Symbol, s.Name(), "no three-bar pattern")
}
