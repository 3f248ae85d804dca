package backtester

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/twequity/trading-engine/pkg/types"
)

// DefaultMonteCarloIterations is how many resampled equity paths
// MonteCarlo draws when the caller does not specify a count.
const DefaultMonteCarloIterations = 1000

// RuinThresholdPct is the drawdown level (percent below the path's
// running peak equity) a resampled path must cross to count toward
// ProbabilityRuin.
var RuinThresholdPct = decimal.NewFromInt(50)

// MonteCarlo bootstrap-resamples trades with replacement to build a
// distribution of possible equity outcomes from the same trade
// sequence a backtest produced, reporting the median and 5th/95th
// percentile total returns and the percentage of paths that breached
// RuinThresholdPct drawdown. rng is injectable so callers can seed a
// deterministic run; pass nil to use a fixed source seeded with 1.
func MonteCarlo(trades []types.Trade, initialCapital decimal.Decimal, iterations int, rng *rand.Rand) (types.MonteCarloResult, error) {
	if len(trades) == 0 {
		return types.MonteCarloResult{}, fmt.Errorf("backtester: monte carlo needs at least one trade")
	}
	if iterations <= 0 {
		iterations = DefaultMonteCarloIterations
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	if initialCapital.IsZero() {
		initialCapital = DefaultInitialCapital
	}

	pnls := make([]float64, len(trades))
	for i, t := range trades {
		pnls[i], _ = t.PnL.Float64()
	}
	capital, _ := initialCapital.Float64()
	ruinPct, _ := RuinThresholdPct.Float64()

	returns := make([]float64, iterations)
	ruinCount := 0
	for i := 0; i < iterations; i++ {
		equity := capital
		peak := capital
		ruined := false
		for j := 0; j < len(pnls); j++ {
			pick := pnls[rng.Intn(len(pnls))]
			equity += pick
			if equity > peak {
				peak = equity
			}
			if peak > 0 {
				drawdownPct := (peak - equity) / peak * 100
				if drawdownPct >= ruinPct {
					ruined = true
				}
			}
		}
		if ruined {
			ruinCount++
		}
		returns[i] = (equity - capital) / capital * 100
	}

	sort.Float64s(returns)
	return types.MonteCarloResult{
		Iterations:      iterations,
		MedianReturnPct: decimal.NewFromFloat(percentile(returns, 0.50)),
		P5ReturnPct:     decimal.NewFromFloat(percentile(returns, 0.05)),
		P95ReturnPct:    decimal.NewFromFloat(percentile(returns, 0.95)),
		ProbabilityRuin: decimal.NewFromFloat(float64(ruinCount) / float64(iterations) * 100),
	}, nil
}

// percentile returns the value at p (0..1) of a sorted slice using
// nearest-rank interpolation.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
