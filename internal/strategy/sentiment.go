package strategy

import (
	"github.com/shopspring/decimal"
	"github.com/twequity/trading-engine/pkg/types"
)

// NewsSentiment is a veto-only strategy: it never instructs an entry,
// only exits an existing long when recent price action implies
// deteriorating sentiment (a stand-in for a callable external news
// advisor, which the engine treats identically to any other strategy
// signal but which this build evaluates from price alone). Warm-up:
// Period+1 bars.
type NewsSentiment struct {
	Period    int
	DropAlert decimal.Decimal
	state     map[string]*window
}

func NewNewsSentiment() *NewsSentiment {
	return &NewsSentiment{Period: 5, DropAlert: decimal.NewFromFloat(0.04), state: map[string]*window{}}
}

func (s *NewsSentiment) Name() string             { return "news_sentiment" }
func (s *NewsSentiment) Type() types.StrategyType { return types.StrategyShortTerm }
func (s *NewsSentiment) Reset()                   { s.state = map[string]*window{} }

func (s *NewsSentiment) Execute(p types.Portfolio, bar types.Bar) types.TradeSignal {
	w, ok := s.state[bar.Symbol]
	if !ok {
		w = newWindow(s.Period + 2)
		s.state[bar.Symbol] = w
	}
	w.push(bar)
	if w.len() < s.Period+1 {
		return warmingUp(bar.Symbol, s.Name(), w.len(), s.Period+1)
	}
	start := w.bars[w.len()-s.Period-1].Close
	if start.IsZero() {
		return Neutral(bar.Symbol, s.Name(), "zero base price")
	}
	move := bar.Close.Sub(start).Div(start)
	pos, held := p.Positions[bar.Symbol]
	if move.LessThan(s.DropAlert.Neg()) && held && !pos.IsFlat() && pos.Side() == types.OrderSideBuy {
		return types.TradeSignal{Symbol: bar.Symbol, StrategyName: s.Name(), Direction: types.DirectionExitLong,
			Confidence: decimal.NewFromFloat(0.7), Reason: "sharp adverse move consistent with negative sentiment shock"}
	}
	return Neutral(bar.Symbol, s.Name(), "no adverse sentiment signal")
}
