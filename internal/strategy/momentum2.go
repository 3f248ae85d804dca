package strategy

import (
	"github.com/shopspring/decimal"
	"github.com/twequity/trading-engine/internal/indicators"
	"github.com/twequity/trading-engine/pkg/types"
)

// ROCMomentum goes with the Period-bar rate of change once it clears
// Threshold. Warm-up: Period+1 bars.
type ROCMomentum struct {
	Period    int
	Threshold decimal.Decimal
	state     map[string]*window
}

func NewROCMomentum() *ROCMomentum {
	return &ROCMomentum{Period: 12, Threshold: decimal.NewFromFloat(0.03), state: map[string]*window{}}
}

func (s *ROCMomentum) Name() string             { return "roc_momentum" }
func (s *ROCMomentum) Type() types.StrategyType { return types.StrategyShortTerm }
func (s *ROCMomentum) Reset()                   { s.state = map[string]*window{} }

func (s *ROCMomentum) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
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
	roc, ok := indicators.ROC(w.bars, s.Period)
	if !ok {
		return Neutral(bar.Symbol, s.Name(), "ROC unavailable")
	}
	switch {
	case roc.GreaterThan(s.Threshold):
		conf := decimal.NewFromFloat(0.58).Add(roc.Sub(s.Threshold))
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: clampConf(conf), Reason: "rate of change above entry threshold"}
	case roc.LessThan(s.Threshold.Neg()):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionExitLong,
			Confidence: decimal.NewFromFloat(0.58), Reason: "rate of change turned sharply negative"}
	}
	return Neutral(bar.Symbol, s.Name(), "rate of change inside dead zone")
}

// OBVMomentum confirms price direction with On-Balance Volume: long when
// both price and OBV rise over the lookback. Warm-up: Period+1 bars.
type OBVMomentum struct {
	Period int
	state  map[string]*window
}

func NewOBVMomentum() *OBVMomentum {
	return &OBVMomentum{Period: 20, state: map[string]*window{}}
}

func (s *OBVMomentum) Name() string             { return "obv_momentum" }
func (s *OBVMomentum) Type() types.StrategyType { return types.StrategySwing }
func (s *OBVMomentum) Reset()                   { s.state = map[string]*window{} }

func (s *OBVMomentum) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
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
	half := len(win) / 2
	obvFirst, ok1 := indicators.OBV(win[:half])
	obvFull, ok2 := indicators.OBV(win)
	if !ok1 || !ok2 {
		return Neutral(bar.Symbol, s.Name(), "OBV unavailable")
	}
	priceUp := bar.Close.GreaterThan(win[0].Close)
	obvUp := obvFull.GreaterThan(obvFirst)
	switch {
	case priceUp && obvUp:
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.62), Reason: "rising price confirmed by rising OBV"}
	case !priceUp && !obvUp:
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionExitLong,
			Confidence: decimal.NewFromFloat(0.62), Reason: "falling price confirmed by falling OBV"}
	}
	return Neutral(bar.Symbol, s.Name(), "price and OBV diverging")
}

// MFIMomentum uses the Money Flow Index as a volume-weighted momentum
// gauge: long out of oversold, exit out of overbought. Warm-up:
// Period+1 bars.
type MFIMomentum struct {
	Period               int
	Oversold, Overbought decimal.Decimal
	state                map[string]*window
}

func NewMFIMomentum() *MFIMomentum {
	return &MFIMomentum{Period: 14, Oversold: decimal.NewFromInt(20), Overbought: decimal.NewFromInt(80), state: map[string]*window{}}
}

func (s *MFIMomentum) Name() string             { return "mfi_momentum" }
func (s *MFIMomentum) Type() types.StrategyType { return types.StrategyShortTerm }
func (s *MFIMomentum) Reset()                   { s.state = map[string]*window{} }

func (s *MFIMomentum) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
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
	mfi, ok := indicators.MFI(w.bars, s.Period)
	if !ok {
		return Neutral(bar.Symbol, s.Name(), "MFI unavailable")
	}
	switch {
	case mfi.LessThan(s.Oversold):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.61), Reason: "money flow index oversold"}
	case mfi.GreaterThan(s.Overbought):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionExitLong,
			Confidence: decimal.NewFromFloat(0.61), Reason: "money flow index overbought"}
	}
	return Neutral(bar.Symbol, s.Name(), "money flow index neutral")
}

// MACDZeroCross trades the MACD line crossing the zero axis, a slower
// confirmation than the signal-line cross. Warm-up:
// SlowPeriod+SignalPeriod+1 bars.
type MACDZeroCross struct {
	FastPeriod, SlowPeriod, SignalPeriod int
	state                                map[string]*window
}

func NewMACDZeroCross() *MACDZeroCross {
	return &MACDZeroCross{FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9, state: map[string]*window{}}
}

func (s *MACDZeroCross) Name() string             { return "macd_zero_cross" }
func (s *MACDZeroCross) Type() types.StrategyType { return types.StrategySwing }
func (s *MACDZeroCross) Reset()                   { s.state = map[string]*window{} }

func (s *MACDZeroCross) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	w, ok := s.state[bar.Symbol]
	need := s.SlowPeriod + s.SignalPeriod + 1
	if !ok {
		w = newWindow(need + 10)
		s.state[bar.Symbol] = w
	}
	w.push(bar)
	if w.len() < need {
		return warmingUp(bar.Symbol, s.Name(), w.len(), need)
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
	case prev.MACD.LessThanOrEqual(decimal.Zero) && now.MACD.IsPositive():
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.63), Reason: "MACD crossed above zero"}
	case prev.MACD.GreaterThanOrEqual(decimal.Zero) && now.MACD.IsNegative():
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionExitLong,
			Confidence: decimal.NewFromFloat(0.63), Reason: "MACD crossed below zero"}
	}
	return Neutral(bar.Symbol, s.Name(), "no MACD zero cross")
}

// RSITrend reads RSI as a trend gauge rather than an oscillator: long
// when RSI crosses above the Midline, exit when it crosses below.
// Warm-up: Period+2 bars.
type RSITrend struct {
	Period  int
	Midline decimal.Decimal
	state   map[string]*window
}

func NewRSITrend() *RSITrend {
	return &RSITrend{Period: 14, Midline: decimal.NewFromInt(50), state: map[string]*window{}}
}

func (s *RSITrend) Name() string             { return "rsi_trend" }
func (s *RSITrend) Type() types.StrategyType { return types.StrategySwing }
func (s *RSITrend) Reset()                   { s.state = map[string]*window{} }

func (s *RSITrend) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	w, ok := s.state[bar.Symbol]
	need := s.Period + 2
	if !ok {
		w = newWindow(need + 5)
		s.state[bar.Symbol] = w
	}
	w.push(bar)
	if w.len() < need {
		return warmingUp(bar.Symbol, s.Name(), w.len(), need)
	}
	now, ok := indicators.RSI(w.bars, s.Period)
	if !ok {
		return Neutral(bar.Symbol, s.Name(), "RSI unavailable")
	}
	prev, ok := indicators.RSI(w.bars[:w.len()-1], s.Period)
	if !ok {
		return Neutral(bar.Symbol, s.Name(), "RSI unavailable")
	}
	switch {
	case prev.LessThanOrEqual(s.Midline) && now.GreaterThan(s.Midline):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.6), Reason: "RSI crossed above midline"}
	case prev.GreaterThanOrEqual(s.Midline) && now.LessThan(s.Midline):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionExitLong,
			Confidence: decimal.NewFromFloat(0.6), Reason: "RSI crossed below midline"}
	}
	return Neutral(bar.Symbol, s.Name(), "RSI holding its side of midline")
}
