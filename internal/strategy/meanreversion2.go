package strategy

import (
	"github.com/shopspring/decimal"
	"github.com/twequity/trading-engine/internal/indicators"
	"github.com/twequity/trading-engine/pkg/types"
	"github.com/twequity/trading-engine/pkg/utils"
)

// CCIReversion fades CCI extremes beyond +/-Threshold. Warm-up: Period
// bars.
type CCIReversion struct {
	Period    int
	Threshold decimal.Decimal
	state     map[string]*window
}

func NewCCIReversion() *CCIReversion {
	return &CCIReversion{Period: 20, Threshold: decimal.NewFromInt(100), state: map[string]*window{}}
}

func (s *CCIReversion) Name() string             { return "cci_reversion" }
func (s *CCIReversion) Type() types.StrategyType { return types.StrategyShortTerm }
func (s *CCIReversion) Reset()                   { s.state = map[string]*window{} }

func (s *CCIReversion) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	w, ok := s.state[bar.Symbol]
	if !ok {
		w = newWindow(s.Period + 5)
		s.state[bar.Symbol] = w
	}
	w.push(bar)
	if w.len() < s.Period {
		return warmingUp(bar.Symbol, s.Name(), w.len(), s.Period)
	}
	cci, ok := indicators.CCI(w.bars, s.Period)
	if !ok {
		return Neutral(bar.Symbol, s.Name(), "CCI unavailable")
	}
	switch {
	case cci.LessThan(s.Threshold.Neg()):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.62), Reason: "CCI below -100, oversold"}
	case cci.GreaterThan(s.Threshold):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionExitLong,
			Confidence: decimal.NewFromFloat(0.62), Reason: "CCI above +100, overbought"}
	}
	return Neutral(bar.Symbol, s.Name(), "CCI in normal range")
}

// WilliamsRReversion buys deep %R oversold readings and exits on
// overbought readings. Warm-up: Period bars.
type WilliamsRReversion struct {
	Period               int
	Oversold, Overbought decimal.Decimal
	state                map[string]*window
}

func NewWilliamsRReversion() *WilliamsRReversion {
	return &WilliamsRReversion{Period: 14, Oversold: decimal.NewFromInt(-80), Overbought: decimal.NewFromInt(-20), state: map[string]*window{}}
}

func (s *WilliamsRReversion) Name() string             { return "williams_r_reversion" }
func (s *WilliamsRReversion) Type() types.StrategyType { return types.StrategyShortTerm }
func (s *WilliamsRReversion) Reset()                   { s.state = map[string]*window{} }

func (s *WilliamsRReversion) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	w, ok := s.state[bar.Symbol]
	if !ok {
		w = newWindow(s.Period + 5)
		s.state[bar.Symbol] = w
	}
	w.push(bar)
	if w.len() < s.Period {
		return warmingUp(bar.Symbol, s.Name(), w.len(), s.Period)
	}
	wr, ok := indicators.WilliamsR(w.bars, s.Period)
	if !ok {
		return Neutral(bar.Symbol, s.Name(), "Williams %R unavailable")
	}
	switch {
	case wr.LessThan(s.Oversold):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.61), Reason: "Williams %R oversold"}
	case wr.GreaterThan(s.Overbought):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionExitLong,
			Confidence: decimal.NewFromFloat(0.61), Reason: "Williams %R overbought"}
	}
	return Neutral(bar.Symbol, s.Name(), "Williams %R mid-range")
}

// ZScoreReversion fades closes more than Threshold standard deviations
// from the Period-bar mean. Warm-up: Period bars.
type ZScoreReversion struct {
	Period    int
	Threshold decimal.Decimal
	state     map[string]*window
}

func NewZScoreReversion() *ZScoreReversion {
	return &ZScoreReversion{Period: 20, Threshold: decimal.NewFromInt(2), state: map[string]*window{}}
}

func (s *ZScoreReversion) Name() string             { return "zscore_reversion" }
func (s *ZScoreReversion) Type() types.StrategyType { return types.StrategyShortTerm }
func (s *ZScoreReversion) Reset()                   { s.state = map[string]*window{} }

func (s *ZScoreReversion) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	w, ok := s.state[bar.Symbol]
	if !ok {
		w = newWindow(s.Period + 5)
		s.state[bar.Symbol] = w
	}
	w.push(bar)
	if w.len() < s.Period {
		return warmingUp(bar.Symbol, s.Name(), w.len(), s.Period)
	}
	cs := make([]decimal.Decimal, 0, s.Period)
	for _, b := range w.bars[w.len()-s.Period:] {
		cs = append(cs, b.Close)
	}
	mean := utils.CalculateMean(cs)
	std := utils.CalculateStdDev(cs)
	if std.IsZero() {
		return Neutral(bar.Symbol, s.Name(), "no price dispersion")
	}
	z := bar.Close.Sub(mean).Div(std)
	switch {
	case z.LessThan(s.Threshold.Neg()):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.63), Reason: "z-score below -2, stretched under mean"}
	case z.GreaterThan(s.Threshold):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionShort,
			Confidence: decimal.NewFromFloat(0.63), Reason: "z-score above +2, stretched over mean"}
	}
	return Neutral(bar.Symbol, s.Name(), "z-score within band")
}

// GapFade fades an opening gap larger than MinGapPct against the prior
// close, expecting intraday fill. Warm-up: 2 bars.
type GapFade struct {
	MinGapPct decimal.Decimal
	state     map[string]*window
}

func NewGapFade() *GapFade {
	return &GapFade{MinGapPct: decimal.NewFromFloat(0.02), state: map[string]*window{}}
}

func (s *GapFade) Name() string             { return "gap_fade" }
func (s *GapFade) Type() types.StrategyType { return types.StrategyIntraday }
func (s *GapFade) Reset()                   { s.state = map[string]*window{} }

func (s *GapFade) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
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
	if prior.Close.IsZero() {
		return Neutral(bar.Symbol, s.Name(), "zero prior close")
	}
	gap := bar.Open.Sub(prior.Close).Div(prior.Close)
	switch {
	case gap.LessThan(s.MinGapPct.Neg()):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.6), Reason: "fading gap down against prior close"}
	case gap.GreaterThan(s.MinGapPct):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionShort,
			Confidence: decimal.NewFromFloat(0.6), Reason: "fading gap up against prior close"}
	}
	return Neutral(bar.Symbol, s.Name(), "no significant gap")
}

// KeltnerReversion fades excursions outside the Keltner Channel back
// toward the EMA midline, the mean-reversion mirror of KeltnerBreakout.
// Warm-up: Period+1 bars.
type KeltnerReversion struct {
	Period     int
	Multiplier decimal.Decimal
	state      map[string]*window
}

func NewKeltnerReversion() *KeltnerReversion {
	return &KeltnerReversion{Period: 20, Multiplier: decimal.NewFromFloat(2.5), state: map[string]*window{}}
}

func (s *KeltnerReversion) Name() string             { return "keltner_reversion" }
func (s *KeltnerReversion) Type() types.StrategyType { return types.StrategyShortTerm }
func (s *KeltnerReversion) Reset()                   { s.state = map[string]*window{} }

func (s *KeltnerReversion) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
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
	case bar.Close.LessThan(kc.Lower):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.6), Reason: "close below Keltner lower band, reverting to midline"}
	case bar.Close.GreaterThan(kc.Upper):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionShort,
			Confidence: decimal.NewFromFloat(0.6), Reason: "close above Keltner upper band, reverting to midline"}
	}
	return Neutral(bar.Symbol, s.Name(), "inside Keltner channel")
}
