package strategy

import (
	"github.com/shopspring/decimal"
	"github.com/twequity/trading-engine/internal/indicators"
	"github.com/twequity/trading-engine/pkg/types"
)

// BollingerReversion enters against a close outside the Bollinger
// Bands, targeting reversion to the midline. Warm-up: Period bars.
type BollingerReversion struct {
	Period    int
	NumStdDev decimal.Decimal
	state     map[string]*window
}

func NewBollingerReversion() *BollingerReversion {
	return &BollingerReversion{Period: 20, NumStdDev: decimal.NewFromInt(2), state: map[string]*window{}}
}

func (s *BollingerReversion) Name() string             { return "bollinger_reversion" }
func (s *BollingerReversion) Type() types.StrategyType { return types.StrategyShortTerm }
func (s *BollingerReversion) Reset()                   { s.state = map[string]*window{} }

func (s *BollingerReversion) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	w, ok := s.state[bar.Symbol]
	if !ok {
		w = newWindow(s.Period + 5)
		s.state[bar.Symbol] = w
	}
	w.push(bar)
	if w.len() < s.Period {
		return warmingUp(bar.Symbol, s.Name(), w.len(), s.Period)
	}
	bb, ok := indicators.Bollinger(w.bars, s.Period, s.NumStdDev)
	if !ok {
		return Neutral(bar.Symbol, s.Name(), "Bollinger unavailable")
	}
	switch {
	case bar.Close.LessThan(bb.Lower):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.68), Reason: "close below lower Bollinger Band"}
	case bar.Close.GreaterThan(bb.Upper):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionShort,
			Confidence: decimal.NewFromFloat(0.68), Reason: "close above upper Bollinger Band"}
	}
	return Neutral(bar.Symbol, s.Name(), "inside Bollinger Bands")
}

// RSIReversion enters long when RSI is oversold and exits the long
// when overbought. Warm-up: Period+1 bars.
type RSIReversion struct {
	Period              int
	Oversold, Overbought decimal.Decimal
	state               map[string]*window
}

func NewRSIReversion() *RSIReversion {
	return &RSIReversion{Period: 14, Oversold: decimal.NewFromInt(30), Overbought: decimal.NewFromInt(70), state: map[string]*window{}}
}

func (s *RSIReversion) Name() string             { return "rsi_reversion" }
func (s *RSIReversion) Type() types.StrategyType { return types.StrategyShortTerm }
func (s *RSIReversion) Reset()                   { s.state = map[string]*window{} }

func (s *RSIReversion) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
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
	rsi, ok := indicators.RSI(w.bars, s.Period)
	if !ok {
		return Neutral(bar.Symbol, s.Name(), "RSI unavailable")
	}
	switch {
	case rsi.LessThan(s.Oversold):
		conf := decimal.NewFromFloat(0.6).Add(s.Oversold.Sub(rsi).Div(decimal.NewFromInt(100)))
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: clampConf(conf), Reason: "RSI oversold"}
	case rsi.GreaterThan(s.Overbought):
		conf := decimal.NewFromFloat(0.6).Add(rsi.Sub(s.Overbought).Div(decimal.NewFromInt(100)))
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionExitLong,
			Confidence: clampConf(conf), Reason: "RSI overbought"}
	}
	return Neutral(bar.Symbol, s.Name(), "RSI neutral")
}

func clampConf(d decimal.Decimal) decimal.Decimal {
	if d.GreaterThan(decimal.NewFromFloat(0.95)) {
		return decimal.NewFromFloat(0.95)
	}
	if d.LessThan(decimal.Zero) {
		return decimal.Zero
	}
	return d
}

// StochasticReversion trades %K/%D extremes. Warm-up: Period+DPeriod
// bars.
type StochasticReversion struct {
	Period, DPeriod      int
	Oversold, Overbought decimal.Decimal
	state                map[string]*window
}

func NewStochasticReversion() *StochasticReversion {
	return &StochasticReversion{Period: 14, DPeriod: 3, Oversold: decimal.NewFromInt(20), Overbought: decimal.NewFromInt(80), state: map[string]*window{}}
}

func (s *StochasticReversion) Name() string             { return "stochastic_reversion" }
func (s *StochasticReversion) Type() types.StrategyType { return types.StrategyShortTerm }
func (s *StochasticReversion) Reset()                   { s.state = map[string]*window{} }

func (s *StochasticReversion) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	w, ok := s.state[bar.Symbol]
	need := s.Period + s.DPeriod
	if !ok {
		w = newWindow(need + 5)
		s.state[bar.Symbol] = w
	}
	w.push(bar)
	if w.len() < need {
		return warmingUp(bar.Symbol, s.Name(), w.len(), need)
	}
	st, ok := indicators.Stochastic(w.bars, s.Period, s.DPeriod)
	if !ok {
		return Neutral(bar.Symbol, s.Name(), "stochastic unavailable")
	}
	switch {
	case st.K.LessThan(s.Oversold) && st.K.GreaterThan(st.D):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.63), Reason: "stochastic oversold with bullish %K/%D cross"}
	case st.K.GreaterThan(s.Overbought) && st.K.LessThan(st.D):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionExitLong,
			Confidence: decimal.NewFromFloat(0.63), Reason: "stochastic overbought with bearish %K/%D cross"}
	}
	return Neutral(bar.Symbol, s.Name(), "stochastic mid-range")
}

// PivotReversion fades moves into S1/R1 computed from the prior bar,
// targeting the pivot. Warm-up: 2 bars (current + prior).
type PivotReversion struct {
	state map[string]*window
}

func NewPivotReversion() *PivotReversion {
	return &PivotReversion{state: map[string]*window{}}
}

func (s *PivotReversion) Name() string             { return "pivot_reversion" }
func (s *PivotReversion) Type() types.StrategyType { return types.StrategyIntraday }
func (s *PivotReversion) Reset()                   { s.state = map[string]*window{} }

func (s *PivotReversion) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	w, ok := s.state[bar.Symbol]
	if !ok {
		w = newWindow(2)
		s.state[bar.Symbol] = w
	}
	if w.len() < 1 {
		w.push(bar)
		return warmingUp(bar.Symbol, s.Name(), 1, 2)
	}
	prior := w.bars[w.len()-1]
	w.push(bar)
	pp := indicators.Pivot(prior)

	switch {
	case bar.Close.LessThanOrEqual(pp.S1):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.6), Reason: "price at S1 support, reverting to pivot"}
	case bar.Close.GreaterThanOrEqual(pp.R1):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionShort,
			Confidence: decimal.NewFromFloat(0.6), Reason: "price at R1 resistance, reverting to pivot"}
	}
	return Neutral(bar.Symbol, s.Name(), "price between pivot levels")
}

// ATRChannelReversion fades excursions beyond Multiplier*ATR from a
// SMA midline. Warm-up: Period+1 bars.
type ATRChannelReversion struct {
	Period     int
	Multiplier decimal.Decimal
	state      map[string]*window
}

func NewATRChannelReversion() *ATRChannelReversion {
	return &ATRChannelReversion{Period: 14, Multiplier: decimal.NewFromFloat(2.5), state: map[string]*window{}}
}

func (s *ATRChannelReversion) Name() string             { return "atr_channel_reversion" }
func (s *ATRChannelReversion) Type() types.StrategyType { return types.StrategyShortTerm }
func (s *ATRChannelReversion) Reset()                   { s.state = map[string]*window{} }

func (s *ATRChannelReversion) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
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
	mid, ok := indicators.SMA(w.bars, s.Period)
	if !ok {
		return Neutral(bar.Symbol, s.Name(), "SMA unavailable")
	}
	atr, ok := indicators.ATR(w.bars, s.Period)
	if !ok {
		return Neutral(bar.Symbol, s.Name(), "ATR unavailable")
	}
	band := atr.Mul(s.Multiplier)
	switch {
	case bar.Close.LessThan(mid.Sub(band)):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.61), Reason: "close beyond lower ATR channel"}
	case bar.Close.GreaterThan(mid.Add(band)):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionShort,
			Confidence: decimal.NewFromFloat(0.61), Reason: "close beyond upper ATR channel"}
	}
	return Neutral(bar.Symbol, s.Name(), "inside ATR channel")
}
