package strategy

import (
	"github.com/shopspring/decimal"
	"github.com/twequity/trading-engine/pkg/types"
)

// OrderFlowImbalance infers buy/sell pressure from volume-weighted
// price movement over a short window, a proxy for order-book imbalance
// in contexts where Execute only sees completed bars and not live
// quotes. Warm-up: Period bars.
type OrderFlowImbalance struct {
	Period    int
	Threshold decimal.Decimal
	state     map[string]*window
}

func NewOrderFlowImbalance() *OrderFlowImbalance {
	return &OrderFlowImbalance{Period: 10, Threshold: decimal.NewFromFloat(0.2), state: map[string]*window{}}
}

func (s *OrderFlowImbalance) Name() string             { return "order_flow_imbalance" }
func (s *OrderFlowImbalance) Type() types.StrategyType { return types.StrategyIntraday }
func (s *OrderFlowImbalance) Reset()                   { s.state = map[string]*window{} }

// imbalance approximates net order flow as volume-signed by each bar's
// direction, normalized into [-1, 1]: a stand-in for bid/ask imbalance
// when only bar data is available.
func imbalance(bars []types.Bar) decimal.Decimal {
	upVol, downVol := decimal.Zero, decimal.Zero
	for _, b := range bars {
		v := decimal.NewFromInt(b.Volume)
		if b.Close.GreaterThanOrEqual(b.Open) {
			upVol = upVol.Add(v)
		} else {
			downVol = downVol.Add(v)
		}
	}
	total := upVol.Add(downVol)
	if total.IsZero() {
		return decimal.Zero
	}
	return upVol.Sub(downVol).Div(total)
}

func (s *OrderFlowImbalance) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	w, ok := s.state[bar.Symbol]
	if !ok {
		w = newWindow(s.Period + 5)
		s.state[bar.Symbol] = w
	}
	w.push(bar)
	if w.len() < s.Period {
		return warmingUp(bar.Symbol, s.Name(), w.len(), s.Period)
	}
	imb := imbalance(w.bars[w.len()-s.Period:])
	switch {
	case imb.GreaterThan(s.Threshold):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionLong,
			Confidence: clampConf(decimal.NewFromFloat(0.5).Add(imb)), Reason: "buy-side volume imbalance"}
	case imb.LessThan(s.Threshold.Neg()):
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionShort,
			Confidence: clampConf(decimal.NewFromFloat(0.5).Add(imb.Abs())), Reason: "sell-side volume imbalance"}
	}
	return Neutral(bar.Symbol, s.Name(), "order flow balanced")
}
