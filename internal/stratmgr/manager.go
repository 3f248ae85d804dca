// Package stratmgr owns the live mapping of (symbol -> strategy) and
// its shadow counterpart, and routes each bar to the strategies
// subscribed to that symbol. It is the only place strategy instances
// are created or swapped; the engine only ever asks it for a signal.
package stratmgr

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/twequity/trading-engine/internal/errs"
	"github.com/twequity/trading-engine/internal/strategy"
	"github.com/twequity/trading-engine/pkg/types"
)

// circuitState tracks a strategy's recent panics/errors for a symbol.
// Every trip opens a cooldown during which the strategy returns
// NEUTRAL without being called; three trips within an hour disables
// the strategy for the rest of the trading day.
type circuitState struct {
	trips         []time.Time
	cooldownUntil time.Time
	disabled      bool
	disabledAt    time.Time
}

const (
	circuitWindow   = time.Hour
	circuitMaxTrips = 3
	circuitCooldown = 60 * time.Second
)

// Manager holds the active and shadow strategy assignments for every
// symbol and dispatches bars to both.
type Manager struct {
	logger   *zap.Logger
	registry *strategy.Registry

	cooldown time.Duration
	now      func() time.Time

	mu      sync.Mutex
	active  map[string]strategy.Strategy // symbol -> live strategy
	shadow  map[string]strategy.Strategy // symbol -> shadow strategy
	circuit map[string]*circuitState     // "symbol|strategyName" -> state
}

// New builds a Manager bound to the given strategy registry.
func New(logger *zap.Logger, registry *strategy.Registry) *Manager {
	return &Manager{
		logger:   logger.Named("stratmgr"),
		registry: registry,
		cooldown: circuitCooldown,
		now:      time.Now,
		active:   make(map[string]strategy.Strategy),
		shadow:   make(map[string]strategy.Strategy),
		circuit:  make(map[string]*circuitState),
	}
}

// SetActive installs a freshly built instance of strategyName as the
// live strategy for symbol; the outgoing instance and its internal
// state are dropped, and the circuit breaker for (symbol,
// strategyName) is cleared.
func (m *Manager) SetActive(symbol, strategyName string) error {
	s, ok := m.registry.New(strategyName)
	if !ok {
		return errs.Validation("stratmgr.SetActive", unknownStrategy(strategyName))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[symbol] = s
	delete(m.circuit, circuitKey(symbol, strategyName))
	m.logger.Info("active strategy swapped", zap.String("symbol", symbol), zap.String("strategy", strategyName))
	return nil
}

// SetShadow installs strategyName as the shadow strategy for symbol.
// Shadow strategies execute alongside the active one but their signals
// never reach the engine's veto chain; AutoSelector reads their
// tracked performance to decide promotion.
func (m *Manager) SetShadow(symbol, strategyName string) error {
	s, ok := m.registry.New(strategyName)
	if !ok {
		return errs.Validation("stratmgr.SetShadow", unknownStrategy(strategyName))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shadow[symbol] = s
	m.logger.Info("shadow strategy installed", zap.String("symbol", symbol), zap.String("strategy", strategyName))
	return nil
}

// PromoteShadow atomically swaps the shadow strategy for symbol into
// the active slot, demoting the previous active strategy to shadow.
// Returns false if no shadow is installed for symbol.
func (m *Manager) PromoteShadow(symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	sh, ok := m.shadow[symbol]
	if !ok {
		return false
	}
	prevActive := m.active[symbol]
	m.active[symbol] = sh
	if prevActive != nil {
		m.shadow[symbol] = prevActive
	} else {
		delete(m.shadow, symbol)
	}
	m.logger.Info("shadow strategy promoted", zap.String("symbol", symbol))
	return true
}

// ActiveSignal runs the active strategy for bar.Symbol and returns its
// signal. Panics and the circuit breaker are handled exactly like
// ShadowSignal; see runGuarded.
func (m *Manager) ActiveSignal(portfolio types.Portfolio, bar types.Bar) (types.TradeSignal, error) {
	m.mu.Lock()
	s, ok := m.active[bar.Symbol]
	m.mu.Unlock()
	if !ok {
		return strategy.Neutral(bar.Symbol, "", "no active strategy assigned"), nil
	}
	return m.runGuarded(s, portfolio, bar)
}

// ShadowSignal runs the shadow strategy for bar.Symbol, if any.
func (m *Manager) ShadowSignal(portfolio types.Portfolio, bar types.Bar) (types.TradeSignal, error) {
	m.mu.Lock()
	s, ok := m.shadow[bar.Symbol]
	m.mu.Unlock()
	if !ok {
		return strategy.Neutral(bar.Symbol, "", "no shadow strategy assigned"), nil
	}
	return m.runGuarded(s, portfolio, bar)
}

// runGuarded executes s.Execute behind a panic recovery and the
// per-(symbol,strategy) circuit breaker. A panic counts as one trip
// (reported as a StrategyFault error) and opens a cooldown during which
// the strategy is not called; three trips inside an hour disables the
// strategy for the rest of the day and every call returns a NEUTRAL
// signal until the breaker is cleared by SetActive or RollDay.
func (m *Manager) runGuarded(s strategy.Strategy, portfolio types.Portfolio, bar types.Bar) (sig types.TradeSignal, err error) {
	key := circuitKey(bar.Symbol, s.Name())

	m.mu.Lock()
	cs := m.circuit[key]
	if cs != nil {
		if cs.disabled {
			m.mu.Unlock()
			return strategy.Neutral(bar.Symbol, s.Name(), "strategy circuit breaker open"), nil
		}
		if m.now().Before(cs.cooldownUntil) {
			m.mu.Unlock()
			return strategy.Neutral(bar.Symbol, s.Name(), "strategy cooling down after fault"), nil
		}
	}
	m.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("strategy panicked", zap.String("strategy", s.Name()), zap.String("symbol", bar.Symbol), zap.Any("recover", r))
			m.trip(key)
			sig = strategy.Neutral(bar.Symbol, s.Name(), "strategy panicked, signal discarded")
			err = errs.StrategyFault(s.Name(), panicErr(r))
		}
	}()

	sig = s.Execute(portfolio, bar)
	return sig, nil
}

func (m *Manager) trip(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs, ok := m.circuit[key]
	if !ok {
		cs = &circuitState{}
		m.circuit[key] = cs
	}
	now := m.now()
	cs.cooldownUntil = now.Add(m.cooldown)
	cs.trips = append(cs.trips, now)
	cutoff := now.Add(-circuitWindow)
	kept := cs.trips[:0]
	for _, t := range cs.trips {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	cs.trips = kept
	if len(cs.trips) >= circuitMaxTrips {
		cs.disabled = true
		cs.disabledAt = now
		m.logger.Warn("strategy circuit breaker tripped, disabled for the day", zap.String("key", key))
	}
}

// LookupActive returns the active strategy instance for symbol, if
// any, so callers can read its Type() without running it.
func (m *Manager) LookupActive(symbol string) (strategy.Strategy, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.active[symbol]
	return s, ok
}

// RegisteredNames returns every strategy name the underlying registry
// can instantiate, the "liststrategies" command's payload.
func (m *Manager) RegisteredNames() []string {
	return m.registry.Names()
}

// RollDay clears every circuit breaker disabled state, called once at
// the start of each trading day.
func (m *Manager) RollDay() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.circuit {
		delete(m.circuit, k)
	}
}

// ResolveConflict picks the winning signal among candidates requesting
// an entry on the same symbol: highest confidence wins, ties broken by
// strategy name lexicographically.
func ResolveConflict(candidates []types.TradeSignal) (types.TradeSignal, bool) {
	var best types.TradeSignal
	found := false
	for _, c := range candidates {
		if !c.Direction.IsEntry() {
			continue
		}
		if !found {
			best, found = c, true
			continue
		}
		if c.Confidence.GreaterThan(best.Confidence) {
			best = c
		} else if c.Confidence.Equal(best.Confidence) && c.StrategyName < best.StrategyName {
			best = c
		}
	}
	return best, found
}

func circuitKey(symbol, strategyName string) string {
	return symbol + "|" + strategyName
}

type unknownStrategyErr struct{ name string }

func (e unknownStrategyErr) Error() string { return "unknown strategy: " + e.name }

func unknownStrategy(name string) error { return unknownStrategyErr{name: name} }

type panicError struct{ v interface{} }

func (e panicError) Error() string {
	if err, ok := e.v.(error); ok {
		return err.Error()
	}
	return "panic"
}

func panicErr(v interface{}) error { return panicError{v: v} }
