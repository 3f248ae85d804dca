// Package correlation implements CorrelationTracker: a rolling
// pairwise Pearson correlation cache over each symbol's last 60
// trading days of returns, used by the veto chain's correlation and
// concentration gates. To avoid a cyclic component graph, the tracker
// never reaches back into StrategyManager or the engine;
// callers push daily returns to it and pull snapshots when they need
// one.
package correlation

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/twequity/trading-engine/pkg/utils"
)

// Window is how many trailing daily returns feed the correlation
// estimate.
const Window = 60

// CacheTTL is how long a computed pair entry is trusted before it is
// recomputed from the latest returns.
const CacheTTL = 24 * time.Hour

// HighCorr is the threshold above which average portfolio correlation
// triggers a shouldReduceExposure warning.
var HighCorr = decimal.NewFromFloat(0.70)

// CriticalCorr is the threshold above which a new entry is rejected
// outright rather than scaled.
var CriticalCorr = decimal.NewFromFloat(0.85)

// ScaleFloor is the minimum size-scale factor applied at CriticalCorr.
var ScaleFloor = decimal.NewFromFloat(0.5)

type pairEntry struct {
	corr      decimal.Decimal
	computed  time.Time
}

func pairKey(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}

// Tracker holds each symbol's trailing return series and a cache of
// pairwise correlations.
type Tracker struct {
	mu      sync.RWMutex
	returns map[string][]decimal.Decimal
	cache   map[[2]string]pairEntry
	now     func() time.Time
}

// New builds an empty Tracker.
func New() *Tracker {
	return &Tracker{
		returns: make(map[string][]decimal.Decimal),
		cache:   make(map[[2]string]pairEntry),
		now:     time.Now,
	}
}

// PushReturn appends one daily return observation for symbol, keeping
// only the trailing Window values.
func (t *Tracker) PushReturn(symbol string, ret decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	series := append(t.returns[symbol], ret)
	if len(series) > Window {
		series = series[len(series)-Window:]
	}
	t.returns[symbol] = series
}

// Correlation returns the Pearson correlation between a and b's
// trailing return series, serving a cached value younger than
// CacheTTL when available. ok is false if either series is too short.
func (t *Tracker) Correlation(a, b string) (decimal.Decimal, bool) {
	if a == b {
		return decimal.NewFromInt(1), true
	}
	lo, hi := pairKey(a, b)
	ck := [2]string{lo, hi}

	t.mu.RLock()
	entry, cached := t.cache[ck]
	t.mu.RUnlock()
	if cached && t.now().Sub(entry.computed) < CacheTTL {
		return entry.corr, true
	}

	t.mu.RLock()
	sa := t.returns[a]
	sb := t.returns[b]
	t.mu.RUnlock()

	corr, ok := pearson(sa, sb)
	if !ok {
		return decimal.Zero, false
	}

	t.mu.Lock()
	t.cache[ck] = pairEntry{corr: corr, computed: t.now()}
	t.mu.Unlock()
	return corr, true
}

func pearson(a, b []decimal.Decimal) (decimal.Decimal, bool) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 2 {
		return decimal.Zero, false
	}
	a, b = a[len(a)-n:], b[len(b)-n:]

	meanA, meanB := utils.CalculateMean(a), utils.CalculateMean(b)
	var cov, varA, varB decimal.Decimal
	for i := 0; i < n; i++ {
		da := a[i].Sub(meanA)
		db := b[i].Sub(meanB)
		cov = cov.Add(da.Mul(db))
		varA = varA.Add(da.Mul(da))
		varB = varB.Add(db.Mul(db))
	}
	denom := utils.SqrtDecimal(varA.Mul(varB))
	if denom.IsZero() {
		return decimal.Zero, false
	}
	return utils.ClampDecimal(cov.Div(denom), decimal.NewFromInt(-1), decimal.NewFromInt(1)), true
}

// AverageCorrelation returns the average pairwise correlation between
// candidate and every symbol in existing, skipping pairs with
// insufficient history. ok is false if no pair could be computed.
func (t *Tracker) AverageCorrelation(candidate string, existing []string) (decimal.Decimal, bool) {
	if len(existing) == 0 {
		return decimal.Zero, false
	}
	var sum decimal.Decimal
	var n int
	for _, sym := range existing {
		if sym == candidate {
			continue
		}
		if c, ok := t.Correlation(candidate, sym); ok {
			sum = sum.Add(c)
			n++
		}
	}
	if n == 0 {
		return decimal.Zero, false
	}
	return sum.Div(decimal.NewFromInt(int64(n))), true
}

// SizeScale implements the correlation gate's sizing rule: reject
// entirely at or above
// CriticalCorr (caller does that), otherwise scale linearly from 1.0
// at HighCorr down to ScaleFloor at CriticalCorr.
func SizeScale(avgCorr decimal.Decimal) decimal.Decimal {
	if avgCorr.LessThanOrEqual(HighCorr) {
		return decimal.NewFromInt(1)
	}
	span := CriticalCorr.Sub(HighCorr)
	frac := avgCorr.Sub(HighCorr).Div(span)
	return decimal.NewFromInt(1).Sub(frac.Mul(decimal.NewFromInt(1).Sub(ScaleFloor)))
}

// ConcentrationReport summarizes a portfolio's pairwise correlation
// exposure.
type ConcentrationReport struct {
	Symbols             []string        `json:"symbols"`
	AveragePairwiseCorr decimal.Decimal `json:"averagePairwiseCorr"`
	ShouldReduceExposure bool           `json:"shouldReduceExposure"`
	Warnings            []string        `json:"warnings"`
}

// Concentration computes a ConcentrationReport over every pair in
// symbols.
func (t *Tracker) Concentration(symbols []string) ConcentrationReport {
	report := ConcentrationReport{Symbols: append([]string(nil), symbols...)}
	sort.Strings(report.Symbols)

	var sum decimal.Decimal
	var n int
	for i := 0; i < len(symbols); i++ {
		for j := i + 1; j < len(symbols); j++ {
			c, ok := t.Correlation(symbols[i], symbols[j])
			if !ok {
				continue
			}
			sum = sum.Add(c)
			n++
			if c.GreaterThanOrEqual(CriticalCorr) {
				report.Warnings = append(report.Warnings,
					symbols[i]+"/"+symbols[j]+" correlation "+c.StringFixed(2)+" exceeds critical threshold")
			}
		}
	}
	if n > 0 {
		report.AveragePairwiseCorr = sum.Div(decimal.NewFromInt(int64(n)))
	}
	report.ShouldReduceExposure = report.AveragePairwiseCorr.GreaterThan(HighCorr)
	return report
}
