// Package barstore holds typed OHLCV bars and quote snapshots in
// memory, indexed by (symbol, timeframe). It is the engine's only
// source of bar data: multi-reader/single-writer, append-only, and it
// rejects any bar that would violate the strictly-ascending-timestamp
// or unique-key invariants rather than silently accepting bad data.
package barstore

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/twequity/trading-engine/pkg/types"
)

type key struct {
	symbol    string
	timeframe types.Timeframe
}

// Writer is implemented by the durable storage layer. Appended bars are
// handed off to it so the process can recover BarStore's state after a
// restart; Store itself never touches disk.
type Writer interface {
	SaveBar(types.Bar) error
}

// Store is BarStore: an in-memory, append-only series of bars per
// (symbol, timeframe), plus the latest quote per symbol.
type Store struct {
	mu     sync.RWMutex
	bars   map[key][]types.Bar
	quotes map[string]types.Quote
	writer Writer
}

// New builds an empty Store. writer may be nil if bars are not
// durably persisted (e.g. in a backtest run over data already on disk).
func New(writer Writer) *Store {
	return &Store{
		bars:   make(map[key][]types.Bar),
		quotes: make(map[string]types.Quote),
		writer: writer,
	}
}

// Append adds bar to its (symbol, timeframe) series. Returns an error
// if bar would violate uniqueness or strict ordering, or fails OHLC
// consistency (high/low must bound open/close, volume non-negative);
// a malformed bar is a ValidationFailure at ingress, not silently
// stored.
func (s *Store) Append(bar types.Bar) error {
	if err := validate(bar); err != nil {
		return err
	}

	k := key{bar.Symbol, bar.Timeframe}

	s.mu.Lock()
	series := s.bars[k]
	if n := len(series); n > 0 {
		last := series[n-1]
		if !bar.Timestamp.After(last.Timestamp) {
			s.mu.Unlock()
			return fmt.Errorf("barstore: bar for %s/%s at %s is not strictly after last bar at %s",
				bar.Symbol, bar.Timeframe, bar.Timestamp, last.Timestamp)
		}
	}
	s.bars[k] = append(series, bar)
	s.mu.Unlock()

	if s.writer != nil {
		return s.writer.SaveBar(bar)
	}
	return nil
}

func validate(bar types.Bar) error {
	if bar.Symbol == "" {
		return fmt.Errorf("barstore: bar has empty symbol")
	}
	if bar.Volume < 0 {
		return fmt.Errorf("barstore: bar %s/%s at %s has negative volume", bar.Symbol, bar.Timeframe, bar.Timestamp)
	}
	hi := bar.High
	lo := bar.Low
	if hi.LessThan(bar.Open) || hi.LessThan(bar.Close) || lo.GreaterThan(bar.Open) || lo.GreaterThan(bar.Close) {
		return fmt.Errorf("barstore: bar %s/%s at %s fails OHLC consistency", bar.Symbol, bar.Timeframe, bar.Timestamp)
	}
	if lo.GreaterThan(hi) {
		return fmt.Errorf("barstore: bar %s/%s at %s has low > high", bar.Symbol, bar.Timeframe, bar.Timestamp)
	}
	return nil
}

// Range returns every bar for (symbol, timeframe) with timestamp in
// [start, end], a fresh copy safe for the caller to retain.
func (s *Store) Range(symbol string, timeframe types.Timeframe, start, end time.Time) []types.Bar {
	s.mu.RLock()
	series := s.bars[key{symbol, timeframe}]
	s.mu.RUnlock()

	lo := sort.Search(len(series), func(i int) bool { return !series[i].Timestamp.Before(start) })
	hi := sort.Search(len(series), func(i int) bool { return series[i].Timestamp.After(end) })
	if lo >= hi {
		return nil
	}
	out := make([]types.Bar, hi-lo)
	copy(out, series[lo:hi])
	return out
}

// Latest returns the most recent bar for (symbol, timeframe), if any.
func (s *Store) Latest(symbol string, timeframe types.Timeframe) (types.Bar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	series := s.bars[key{symbol, timeframe}]
	if len(series) == 0 {
		return types.Bar{}, false
	}
	return series[len(series)-1], true
}

// Since returns up to limit of the most recent bars for (symbol,
// timeframe) up to and including asOf, oldest first: the shape every
// strategy warm-up window wants.
func (s *Store) Since(symbol string, timeframe types.Timeframe, asOf time.Time, limit int) []types.Bar {
	s.mu.RLock()
	series := s.bars[key{symbol, timeframe}]
	s.mu.RUnlock()

	hi := sort.Search(len(series), func(i int) bool { return series[i].Timestamp.After(asOf) })
	lo := hi - limit
	if lo < 0 {
		lo = 0
	}
	out := make([]types.Bar, hi-lo)
	copy(out, series[lo:hi])
	return out
}

// Count returns the number of bars stored for (symbol, timeframe).
func (s *Store) Count(symbol string, timeframe types.Timeframe) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bars[key{symbol, timeframe}])
}

// UpdateQuote replaces the latest quote snapshot for symbol. An
// invalid quote (missing a side) is rejected rather than overwriting
// the last good snapshot.
func (s *Store) UpdateQuote(q types.Quote) error {
	if !q.Valid() {
		return fmt.Errorf("barstore: quote for %s has no levels on one side", q.Symbol)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[q.Symbol] = q
	return nil
}

// Quote returns the latest quote for symbol, if any.
func (s *Store) Quote(symbol string) (types.Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[symbol]
	return q, ok
}

// Staleness reports how long ago the last bar for (symbol, timeframe)
// was observed, relative to now. A caller uses this against
// staleness_threshold to suppress entries on stale data.
func (s *Store) Staleness(symbol string, timeframe types.Timeframe, now time.Time) (time.Duration, bool) {
	bar, ok := s.Latest(symbol, timeframe)
	if !ok {
		return 0, false
	}
	return now.Sub(bar.Timestamp), true
}

// Symbols returns every symbol with at least one stored bar, sorted.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	for k := range s.bars {
		seen[k.symbol] = true
	}
	out := make([]string, 0, len(seen))
	for sym := range seen {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
