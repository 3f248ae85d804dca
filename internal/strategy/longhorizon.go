package strategy

import (
	"github.com/shopspring/decimal"
	"github.com/twequity/trading-engine/pkg/types"
)

// DCA enters a fixed-size tranche every Interval bars regardless of
// price, the long-horizon dollar-cost-averaging strategy. No warm-up.
type DCA struct {
	Interval int
	counters map[string]int
}

func NewDCA() *DCA {
	return &DCA{Interval: 20, counters: map[string]int{}}
}

func (s *DCA) Name() string             { return "dca" }
func (s *DCA) Type() types.StrategyType { return types.StrategyLongTerm }
func (s *DCA) Reset()                   { s.counters = map[string]int{} }

func (s *DCA) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	s.counters[bar.Symbol]++
	if s.counters[bar.Symbol]%s.Interval != 0 {
		return Neutral(bar.Symbol, s.Name(), "between DCA tranches")
	}
	return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
		Confidence: decimal.NewFromFloat(0.5), Reason: "scheduled DCA tranche"}
}

// Rebalancing exits a position once it drifts Tolerance beyond its
// entry price in either direction, a stand-in for drift-triggered
// rebalancing back to target weight. No indicator warm-up.
type Rebalancing struct {
	Tolerance decimal.Decimal
}

func NewRebalancing() *Rebalancing {
	return &Rebalancing{Tolerance: decimal.NewFromFloat(0.15)}
}

func (s *Rebalancing) Name() string             { return "rebalancing" }
func (s *Rebalancing) Type() types.StrategyType { return types.StrategyLongTerm }
func (s *Rebalancing) Reset()                   {}

func (s *Rebalancing) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	pos, ok := p.Positions[bar.Symbol]
	if !ok || pos.IsFlat() || pos.AvgEntryPrice.IsZero() {
		return Neutral(bar.Symbol, s.Name(), "no position to rebalance")
	}
	drift := bar.Close.Sub(pos.AvgEntryPrice).Div(pos.AvgEntryPrice).Abs()
	if drift.GreaterThan(s.Tolerance) {
		dir := types.DirectionExitLong
		if pos.Side() == types.OrderSideSell {
			dir = types.DirectionExitShort
		}
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: dir,
			Confidence: decimal.NewFromFloat(0.55), Reason: "position drifted beyond rebalance tolerance"}
	}
	return Neutral(bar.Symbol, s.Name(), "within rebalance tolerance")
}

// DRIP (dividend reinvestment proxy) adds to an open long position at
// a fixed cadence, modeling automatic reinvestment of distributions
// into the same holding. No indicator warm-up.
type DRIP struct {
	Interval int
	counters map[string]int
}

func NewDRIP() *DRIP {
	return &DRIP{Interval: 60, counters: map[string]int{}}
}

func (s *DRIP) Name() string             { return "drip" }
func (s *DRIP) Type() types.StrategyType { return types.StrategyLongTerm }
func (s *DRIP) Reset()                   { s.counters = map[string]int{} }

func (s *DRIP) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	s.counters[bar.Symbol]++
	pos, ok := p.Positions[bar.Symbol]
	if !ok || pos.IsFlat() || pos.Side() != types.OrderSideBuy {
		return Neutral(bar.Symbol, s.Name(), "no long position to reinvest into")
	}
	if s.counters[bar.Symbol]%s.Interval != 0 {
		return Neutral(bar.Symbol, s.Name(), "between DRIP cycles")
	}
	return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
		Confidence: decimal.NewFromFloat(0.5), Reason: "scheduled distribution reinvestment"}
}

// TaxLossHarvest exits a long position carrying an unrealized loss
// beyond Threshold, freeing the loss for offset purposes. No indicator
// warm-up.
type TaxLossHarvest struct {
	Threshold decimal.Decimal
}

func NewTaxLossHarvest() *TaxLossHarvest {
	return &TaxLossHarvest{Threshold: decimal.NewFromFloat(0.1)}
}

func (s *TaxLossHarvest) Name() string             { return "tax_loss_harvest" }
func (s *TaxLossHarvest) Type() types.StrategyType { return types.StrategyLongTerm }
func (s *TaxLossHarvest) Reset()                   {}

func (s *TaxLossHarvest) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	pos, ok := p.Positions[bar.Symbol]
	if !ok || pos.IsFlat() || pos.Side() != types.OrderSideBuy || pos.AvgEntryPrice.IsZero() {
		return Neutral(bar.Symbol, s.Name(), "no long position to evaluate")
	}
	loss := pos.AvgEntryPrice.Sub(bar.Close).Div(pos.AvgEntryPrice)
	if loss.GreaterThan(s.Threshold) {
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionExitLong,
			Confidence: decimal.NewFromFloat(0.6), Reason: "unrealized loss exceeds harvest threshold"}
	}
	return Neutral(bar.Symbol, s.Name(), "unrealized loss below harvest threshold")
}

// PairsArb tracks the spread between Symbol and PeerSymbol and trades
// mean reversion of that spread. Bars for both symbols must flow
// through the same instance (StrategyManager routes both to it).
// Warm-up: Period bars of overlapping history for both legs.
type PairsArb struct {
	PeerSymbol string
	Period     int
	ZThreshold decimal.Decimal
	prices     map[string]*window
}

func NewPairsArb() *PairsArb {
	return &PairsArb{PeerSymbol: "", Period: 30, ZThreshold: decimal.NewFromFloat(2.0), prices: map[string]*window{}}
}

func (s *PairsArb) Name() string             { return "pairs_arb" }
func (s *PairsArb) Type() types.StrategyType { return types.StrategyLongTerm }
func (s *PairsArb) Reset()                   { s.prices = map[string]*window{} }

func (s *PairsArb) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	w, ok := s.prices[bar.Symbol]
	if !ok {
		w = newWindow(s.Period + 5)
		s.prices[bar.Symbol] = w
	}
	w.push(bar)
	if s.PeerSymbol == "" || s.PeerSymbol == bar.Symbol {
		return Neutral(bar.Symbol, s.Name(), "no peer symbol configured")
	}
	peer, ok := s.prices[s.PeerSymbol]
	if !ok {
		return warmingUp(bar.Symbol, s.Name(), 0, s.Period)
	}
	if w.len() < s.Period || peer.len() < s.Period {
		return warmingUp(bar.Symbol, s.Name(), minInt(w.len(), peer.len()), s.Period)
	}
	spreads := make([]decimal.Decimal, s.Period)
	n := s.Period
	for i := 0; i < n; i++ {
		a := w.bars[w.len()-n+i].Close
		b := peer.bars[peer.len()-n+i].Close
		if b.IsZero() {
			return Neutral(bar.Symbol, s.Name(), "peer price unavailable")
		}
		spreads[i] = a.Div(b)
	}
	mean, std := meanStd(spreads)
	if std.IsZero() {
		return Neutral(bar.Symbol, s.Name(), "spread has no variance")
	}
	current := spreads[len(spreads)-1]
	z := current.Sub(mean).Div(std)
	switch {
	case z.LessThan(s.ZThreshold.Neg()):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.6), Reason: "spread below mean, buying relative weakness"}
	case z.GreaterThan(s.ZThreshold):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionShort,
			Confidence: decimal.NewFromFloat(0.6), Reason: "spread above mean, selling relative strength"}
	}
	return Neutral(bar.Symbol, s.Name(), "spread within normal range")
}

func meanStd(ds []decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	n := decimal.NewFromInt(int64(len(ds)))
	sum := decimal.Zero
	for _, d := range ds {
		sum = sum.Add(d)
	}
	mean := sum.Div(n)
	variance := decimal.Zero
	for _, d := range ds {
		diff := d.Sub(mean)
		variance = variance.Add(diff.Mul(diff))
	}
	variance = variance.Div(n)
	return mean, decimalSqrt(variance)
}

func decimalSqrt(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() || d.IsZero() {
		return decimal.Zero
	}
	x := d
	for i := 0; i < 40; i++ {
		x = x.Add(d.Div(x)).Div(decimal.NewFromInt(2))
	}
	return x
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// DualMomentum ranks Symbol against BenchmarkSymbol by trailing
// Lookback-bar return and only holds a long when the symbol leads the
// benchmark, the classic absolute+relative momentum overlay. Warm-up:
// Lookback+1 bars on both legs.
type DualMomentum struct {
	BenchmarkSymbol string
	Lookback        int
	prices          map[string]*window
}

func NewDualMomentum() *DualMomentum {
	return &DualMomentum{BenchmarkSymbol: "", Lookback: 60, prices: map[string]*window{}}
}

func (s *DualMomentum) Name() string             { return "dual_momentum" }
func (s *DualMomentum) Type() types.StrategyType { return types.StrategyLongTerm }
func (s *DualMomentum) Reset()                   { s.prices = map[string]*window{} }

func trailingReturn(w *window, lookback int) (decimal.Decimal, bool) {
	if w == nil || w.len() < lookback+1 {
		return decimal.Zero, false
	}
	start := w.bars[w.len()-lookback-1].Close
	end := w.bars[w.len()-1].Close
	if start.IsZero() {
		return decimal.Zero, false
	}
	return end.Sub(start).Div(start), true
}

func (s *DualMomentum) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	w, ok := s.prices[bar.Symbol]
	if !ok {
		w = newWindow(s.Lookback + 5)
		s.prices[bar.Symbol] = w
	}
	w.push(bar)
	if s.BenchmarkSymbol == "" || s.BenchmarkSymbol == bar.Symbol {
		return Neutral(bar.Symbol, s.Name(), "no benchmark symbol configured")
	}
	symRet, ok := trailingReturn(w, s.Lookback)
	if !ok {
		return warmingUp(bar.Symbol, s.Name(), w.len(), s.Lookback+1)
	}
	benchRet, ok := trailingReturn(s.prices[s.BenchmarkSymbol], s.Lookback)
	if !ok {
		return warmingUp(bar.Symbol, s.Name(), 0, s.Lookback+1)
	}
	switch {
	case symRet.IsPositive() && symRet.GreaterThan(benchRet):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: decimal.NewFromFloat(0.62), Reason: "positive absolute momentum leading benchmark"}
	case !symRet.IsPositive() || symRet.LessThan(benchRet):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionExitLong,
			Confidence: decimal.NewFromFloat(0.55), Reason: "momentum negative or lagging benchmark"}
	}
	return Neutral(bar.Symbol, s.Name(), "no dual momentum edge")
}

// ProfitabilityFactor favors holding through periods of steady positive
// trailing returns (gross profitability proxy) computed from the share
// of non-down closes over Period bars. Warm-up: Period+1 bars.
type ProfitabilityFactor struct {
	Period    int
	Threshold decimal.Decimal
	state     map[string]*window
}

func NewProfitabilityFactor() *ProfitabilityFactor {
	return &ProfitabilityFactor{Period: 252, Threshold: decimal.NewFromFloat(0.55), state: map[string]*window{}}
}

func (s *ProfitabilityFactor) Name() string             { return "profitability_factor" }
func (s *ProfitabilityFactor) Type() types.StrategyType { return types.StrategyLongTerm }
func (s *ProfitabilityFactor) Reset()                   { s.state = map[string]*window{} }

func (s *ProfitabilityFactor) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
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
	up := 0
	for i := 1; i < len(win); i++ {
		if win[i].Close.GreaterThanOrEqual(win[i-1].Close) {
			up++
		}
	}
	ratio := decimal.NewFromInt(int64(up)).Div(decimal.NewFromInt(int64(len(win) - 1)))
	if ratio.GreaterThan(s.Threshold) {
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: clampConf(ratio), Reason: "high proportion of up days over trailing window"}
	}
	return Neutral(bar.Symbol, s.Name(), "profitability ratio below threshold")
}
