// Package strategy defines the uniform contract every trading strategy
// implements and a registry StrategyManager uses to instantiate them by
// name. Strategies are pure state machines over a per-symbol bar
// stream: Execute is deterministic given the sequence of (portfolio,
// bar) inputs since the last Reset, never performs I/O, never reads
// the wall clock, and never mutates the Portfolio it is handed.
package strategy

import (
	"github.com/shopspring/decimal"
	"github.com/twequity/trading-engine/pkg/types"
)

// DefaultEntryThreshold is the confidence below which an entry
// candidate is not actionable.
var DefaultEntryThreshold = decimal.NewFromFloat(0.60)

// Strategy is the contract every strategy implementation satisfies.
// Name is a stable primary key; Type classifies holding horizon;
// Execute is called in strict bar-timestamp order per symbol; Reset
// drops all internal state for every symbol the strategy has seen.
type Strategy interface {
	Name() string
	Type() types.StrategyType
	Execute(portfolio types.Portfolio, bar types.Bar) types.TradeSignal
	Reset()
}

// Factory constructs a fresh Strategy instance. The Registry stores
// factories, not instances, so every strategy StrategyManager installs
// starts with no internal state carried over from another symbol.
type Factory func() Strategy

// Neutral builds a NEUTRAL signal with the given reason, the shape
// every strategy returns while warming up or when no edge is found.
func Neutral(symbol, name, reason string) types.TradeSignal {
	return types.TradeSignal{
		Symbol:       symbol,
		StrategyName: name,
		Direction:    types.DirectionNeutral,
		Confidence:   decimal.Zero,
		Reason:       reason,
	}
}

// warmingUp builds the mandated "Warming up" NEUTRAL signal for a
// strategy that has not yet accumulated its required window.
func warmingUp(symbol, name string, have, need int) types.TradeSignal {
	return Neutral(symbol, name, warmupReason(have, need))
}

func warmupReason(have, need int) string {
	return "Warming up " + itoa(have) + "/" + itoa(need) + " bars"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// window is a bounded per-symbol ring of recent bars, the common
// building block nearly every strategy family uses for its rolling
// indicator inputs.
type window struct {
	bars []types.Bar
	cap  int
}

func newWindow(capacity int) *window {
	return &window{bars: make([]types.Bar, 0, capacity), cap: capacity}
}

func (w *window) push(b types.Bar) {
	w.bars = append(w.bars, b)
	if len(w.bars) > w.cap {
		w.bars = w.bars[len(w.bars)-w.cap:]
	}
}

func (w *window) len() int { return len(w.bars) }
