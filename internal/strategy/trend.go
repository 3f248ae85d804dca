package strategy

import (
	"github.com/shopspring/decimal"
	"github.com/twequity/trading-engine/internal/indicators"
	"github.com/twequity/trading-engine/pkg/types"
)

// MACrossover goes long on a fast/slow SMA golden cross and flat on a
// death cross. Inputs: close price. Warm-up: SlowPeriod+1 bars.
type MACrossover struct {
	FastPeriod, SlowPeriod int
	state                  map[string]*window
}

func NewMACrossover() *MACrossover {
	return &MACrossover{FastPeriod: 20, SlowPeriod: 50, state: map[string]*window{}}
}

func (s *MACrossover) Name() string            { return "ma_crossover" }
func (s *MACrossover) Type() types.StrategyType { return types.StrategySwing }
func (s *MACrossover) Reset()                  { s.state = map[string]*window{} }

func (s *MACrossover) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	w, ok := s.state[bar.Symbol]
	if !ok {
		w = newWindow(s.SlowPeriod + 2)
		s.state[bar.Symbol] = w
	}
	w.push(bar)
	if w.len() < s.SlowPeriod+1 {
		return warmingUp(bar.Symbol, s.Name(), w.len(), s.SlowPeriod+1)
	}
	fastNow, _ := indicators.SMA(w.bars, s.FastPeriod)
	slowNow, _ := indicators.SMA(w.bars, s.SlowPeriod)
	fastPrev, _ := indicators.SMA(w.bars[:w.len()-1], s.FastPeriod)
	slowPrev, _ := indicators.SMA(w.bars[:w.len()-1], s.SlowPeriod)

	switch {
	case fastPrev.LessThanOrEqual(slowPrev) && fastNow.GreaterThan(slowNow):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.7), Reason: "golden cross: fast SMA crossed above slow SMA"}
	case fastPrev.GreaterThanOrEqual(slowPrev) && fastNow.LessThan(slowNow):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionExitLong,
			Confidence: decimal.NewFromFloat(0.7), Reason: "death cross: fast SMA crossed below slow SMA"}
	}
	return Neutral(bar.Symbol, s.Name(), "no crossover")
}

// TripleEMA stacks fast/mid/slow EMAs; full bullish alignment is the
// entry signal and full bearish alignment the exit. Warm-up: Slow bars.
type TripleEMA struct {
	Fast, Mid, Slow int
	state           map[string]*window
}

func NewTripleEMA() *TripleEMA {
	return &TripleEMA{Fast: 8, Mid: 21, Slow: 55, state: map[string]*window{}}
}

func (s *TripleEMA) Name() string             { return "triple_ema" }
func (s *TripleEMA) Type() types.StrategyType { return types.StrategySwing }
func (s *TripleEMA) Reset()                   { s.state = map[string]*window{} }

func (s *TripleEMA) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	w, ok := s.state[bar.Symbol]
	if !ok {
		w = newWindow(s.Slow + 5)
		s.state[bar.Symbol] = w
	}
	w.push(bar)
	if w.len() < s.Slow {
		return warmingUp(bar.Symbol, s.Name(), w.len(), s.Slow)
	}
	fast, _ := indicators.EMA(w.bars, s.Fast)
	mid, _ := indicators.EMA(w.bars, s.Mid)
	slow, _ := indicators.EMA(w.bars, s.Slow)

	switch {
	case fast.GreaterThan(mid) && mid.GreaterThan(slow):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.65), Reason: "bullish EMA stack: fast > mid > slow"}
	case fast.LessThan(mid) && mid.LessThan(slow):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionExitLong,
			Confidence: decimal.NewFromFloat(0.65), Reason: "bearish EMA stack: fast < mid < slow"}
	}
	return Neutral(bar.Symbol, s.Name(), "EMA stack not aligned")
}

// ADXTrend enters in the direction of +DI/-DI dominance once ADX
// confirms trend strength. Warm-up: Period*2+1 bars.
type ADXTrend struct {
	Period       int
	MinADX       decimal.Decimal
	state        map[string]*window
}

func NewADXTrend() *ADXTrend {
	return &ADXTrend{Period: 14, MinADX: decimal.NewFromInt(25), state: map[string]*window{}}
}

func (s *ADXTrend) Name() string             { return "adx_trend" }
func (s *ADXTrend) Type() types.StrategyType { return types.StrategySwing }
func (s *ADXTrend) Reset()                   { s.state = map[string]*window{} }

func (s *ADXTrend) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	w, ok := s.state[bar.Symbol]
	need := s.Period*2 + 1
	if !ok {
		w = newWindow(need + 5)
		s.state[bar.Symbol] = w
	}
	w.push(bar)
	if w.len() < need {
		return warmingUp(bar.Symbol, s.Name(), w.len(), need)
	}
	adx, ok := indicators.ADX(w.bars, s.Period)
	if !ok {
		return Neutral(bar.Symbol, s.Name(), "ADX unavailable")
	}
	if adx.ADX.LessThan(s.MinADX) {
		return Neutral(bar.Symbol, s.Name(), "ADX below trend threshold")
	}
	conf := decimal.NewFromFloat(0.5).Add(adx.ADX.Sub(s.MinADX).Div(decimal.NewFromInt(75)))
	if conf.GreaterThan(decimal.NewFromFloat(0.95)) {
		conf = decimal.NewFromFloat(0.95)
	}
	if adx.PlusDI.GreaterThan(adx.MinusDI) {
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: conf, Reason: "ADX confirms uptrend (+DI dominant)"}
	}
	return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionShort,
		Confidence: conf, Reason: "ADX confirms downtrend (-DI dominant)"}
}

// Ichimoku trades on price crossing the Tenkan/Kijun cloud midline, a
// simplified single-signal reading of the classic Ichimoku system.
// Warm-up: KijunPeriod bars.
type Ichimoku struct {
	TenkanPeriod, KijunPeriod int
	state                     map[string]*window
}

func NewIchimoku() *Ichimoku {
	return &Ichimoku{TenkanPeriod: 9, KijunPeriod: 26, state: map[string]*window{}}
}

func (s *Ichimoku) Name() string             { return "ichimoku" }
func (s *Ichimoku) Type() types.StrategyType { return types.StrategySwing }
func (s *Ichimoku) Reset()                   { s.state = map[string]*window{} }

func midpoint(bars []types.Bar, period int) (decimal.Decimal, bool) {
	if len(bars) < period {
		return decimal.Zero, false
	}
	win := bars[len(bars)-period:]
	hi, lo := win[0].High, win[0].Low
	for _, b := range win {
		if b.High.GreaterThan(hi) {
			hi = b.High
		}
		if b.Low.LessThan(lo) {
			lo = b.Low
		}
	}
	return hi.Add(lo).Div(decimal.NewFromInt(2)), true
}

func (s *Ichimoku) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	w, ok := s.state[bar.Symbol]
	if !ok {
		w = newWindow(s.KijunPeriod + 5)
		s.state[bar.Symbol] = w
	}
	w.push(bar)
	if w.len() < s.KijunPeriod {
		return warmingUp(bar.Symbol, s.Name(), w.len(), s.KijunPeriod)
	}
	tenkan, _ := midpoint(w.bars, s.TenkanPeriod)
	kijun, _ := midpoint(w.bars, s.KijunPeriod)
	current := bar.Close

	switch {
	case tenkan.GreaterThan(kijun) && current.GreaterThan(tenkan):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.6), Reason: "price above Tenkan/Kijun bullish cross"}
	case tenkan.LessThan(kijun) && current.LessThan(tenkan):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionExitLong,
			Confidence: decimal.NewFromFloat(0.6), Reason: "price below Tenkan/Kijun bearish cross"}
	}
	return Neutral(bar.Symbol, s.Name(), "no Ichimoku alignment")
}

// KeltnerBreakout enters on a close breaking outside the Keltner
// Channel, indicating a volatility-backed continuation. Warm-up:
// Period+1 bars.
type KeltnerBreakout struct {
	Period     int
	Multiplier decimal.Decimal
	state      map[string]*window
}

func NewKeltnerBreakout() *KeltnerBreakout {
	return &KeltnerBreakout{Period: 20, Multiplier: decimal.NewFromFloat(2.0), state: map[string]*window{}}
}

func (s *KeltnerBreakout) Name() string             { return "keltner_breakout" }
func (s *KeltnerBreakout) Type() types.StrategyType { return types.StrategyShortTerm }
func (s *KeltnerBreakout) Reset()                   { s.state = map[string]*window{} }

func (s *KeltnerBreakout) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
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
	kc, ok := indicators.Keltner(w.bars, s.Period, s.Multiplier)
	if !ok {
		return Neutral(bar.Symbol, s.Name(), "Keltner unavailable")
	}
	switch {
	case bar.Close.GreaterThan(kc.Upper):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.62), Reason: "close broke above Keltner upper band"}
	case bar.Close.LessThan(kc.Lower):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionShort,
			Confidence: decimal.NewFromFloat(0.62), Reason: "close broke below Keltner lower band"}
	}
	return Neutral(bar.Symbol, s.Name(), "inside Keltner channel")
}
