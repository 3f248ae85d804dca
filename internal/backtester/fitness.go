package backtester

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/twequity/trading-engine/pkg/types"
)

// MinTradesForValidity is the trade-count floor below which a result is
// marked invalid and excluded from selection regardless of its other
// metrics.
const MinTradesForValidity = 10

// FitnessWeights are the w1..w5 terms of the composite
// fitness formula, normalized to sum to 1.
type FitnessWeights struct {
	Sharpe         decimal.Decimal
	Sortino        decimal.Decimal
	Calmar         decimal.Decimal
	DrawdownPenalty decimal.Decimal
	TradeCountPenalty decimal.Decimal
}

// DefaultFitnessWeights weights Sharpe most heavily, then Sortino and
// Calmar, and the two drawdown/trade-count penalties least; already
// normalized to sum to 1.
func DefaultFitnessWeights() FitnessWeights {
	return FitnessWeights{
		Sharpe:            decimal.NewFromFloat(0.30),
		Sortino:           decimal.NewFromFloat(0.20),
		Calmar:            decimal.NewFromFloat(0.20),
		DrawdownPenalty:   decimal.NewFromFloat(0.15),
		TradeCountPenalty: decimal.NewFromFloat(0.15),
	}
}

// activeFitnessWeights is the package-level weighting Fitness uses.
// Exposed as a var, not a const, so a future operator override (e.g.
// via config) can swap it without changing call sites.
var activeFitnessWeights = DefaultFitnessWeights()

// Fitness computes the composite score:
//
//	w1*Sharpe + w2*Sortino + w3*Calmar - w4*max(0,drawdown-20%) - w5*max(0,20-totalTrades)
//
// NaN/Inf inputs contribute 0, never poisoning the sum.
func Fitness(m types.PerformanceMetrics) decimal.Decimal {
	w := activeFitnessWeights
	sharpe := safe(m.SharpeRatio)
	sortino := safe(m.SortinoRatio)
	calmar := safe(m.CalmarRatio)

	drawdownExcess := m.MaxDrawdownPct.Sub(decimal.NewFromInt(20))
	if drawdownExcess.IsNegative() {
		drawdownExcess = decimal.Zero
	}
	tradeShortfall := decimal.NewFromInt(20 - int64(m.TotalTrades))
	if tradeShortfall.IsNegative() {
		tradeShortfall = decimal.Zero
	}

	score := sharpe.Mul(w.Sharpe).
		Add(sortino.Mul(w.Sortino)).
		Add(calmar.Mul(w.Calmar)).
		Sub(drawdownExcess.Mul(w.DrawdownPenalty)).
		Sub(tradeShortfall.Mul(w.TradeCountPenalty))
	return safe(score)
}

// safe maps a non-finite decimal (possible only via a Float64 round
// trip, since shopspring/decimal itself cannot represent NaN/Inf) to
// zero, so a NaN/infinite metric cannot poison the ranking.
func safe(d decimal.Decimal) decimal.Decimal {
	f, _ := d.Float64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return d
}
