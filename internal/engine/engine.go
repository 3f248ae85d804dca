// Package engine implements TradingEngine: the single-threaded control
// loop that turns one incoming bar into, at most, one order. Every
// state transition (position bookkeeping, RiskGuard P&L, pause/live
// flags) happens under Engine's own mutex, so a ControlPlane command
// and a bar tick can never interleave mid-decision.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/twequity/trading-engine/internal/barstore"
	"github.com/twequity/trading-engine/internal/bridge"
	"github.com/twequity/trading-engine/internal/compliance"
	"github.com/twequity/trading-engine/internal/controlplane"
	"github.com/twequity/trading-engine/internal/correlation"
	"github.com/twequity/trading-engine/internal/errs"
	"github.com/twequity/trading-engine/internal/execution"
	"github.com/twequity/trading-engine/internal/metrics"
	"github.com/twequity/trading-engine/internal/regime"
	"github.com/twequity/trading-engine/internal/risk"
	"github.com/twequity/trading-engine/internal/sizing"
	"github.com/twequity/trading-engine/internal/storage"
	"github.com/twequity/trading-engine/internal/stratmgr"
	"github.com/twequity/trading-engine/internal/strategy"
	"github.com/twequity/trading-engine/pkg/types"
	"github.com/twequity/trading-engine/pkg/utils"
)

// MinFitness is the regime-fitness floor an entry candidate's strategy
// family must clear.
var MinFitness = decimal.NewFromFloat(0.20)

// MaxSinglePosPct is the single-symbol notional concentration cap.
var MaxSinglePosPct = decimal.NewFromFloat(0.25)

// StalenessWindowEpsilon is how far before the trading window's end
// the engine force-flattens every open position.
var StalenessWindowEpsilon = 5 * time.Second

// Config holds the engine's runtime-tunable trading parameters,
// resolved once from config.Config at startup.
type Config struct {
	Mode               types.Mode
	Location           *time.Location
	WindowStart        time.Duration // minutes-of-day offset, e.g. 9h for 09:00
	WindowEnd          time.Duration
	StalenessThreshold time.Duration
	LotSize            int64
	InitialShares      int64
	ShareIncrement     int64
	InitialCapital     decimal.Decimal
	MaxPositionPct     decimal.Decimal // final entry-size clip as a fraction of equity; zero disables
	PerTradeLossLimit  decimal.Decimal // TWD unrealized loss that force-closes a position; zero disables
	MaxHoldMinutes     int             // force-close positions held longer than this; zero disables
}

// Advisor is the optional LLM step at the tail of the veto chain.
type Advisor interface {
	Evaluate(ctx context.Context, candidate types.TradeSignal) (veto bool, reason string, err error)
}

// Engine is TradingEngine.
type Engine struct {
	logger *zap.Logger

	bars        *barstore.Store
	strategies  *stratmgr.Manager
	regimeClf   *regime.Classifier
	compliance  *compliance.Guard
	riskGuard   *risk.Guard
	correlation *correlation.Tracker
	sizer       *sizing.Sizer
	executor    *execution.Executor
	bridge      *bridge.Client
	storage     *storage.Store
	metrics     *metrics.Registry
	advisor     Advisor

	mu        sync.Mutex
	config    Config
	cash      decimal.Decimal
	realized  decimal.Decimal
	positions map[string]types.Position
	paused    bool
	live      bool
	shareSize int64
	increment int64
	vetoes    []types.VetoEvent
	trades    []types.Trade
	closedCnt int
	winCnt    int
	maxEquity decimal.Decimal
	minEquity decimal.Decimal
}

// Deps bundles the already-constructed collaborator components.
type Deps struct {
	Bars        *barstore.Store
	Strategies  *stratmgr.Manager
	Regime      *regime.Classifier
	Compliance  *compliance.Guard
	Risk        *risk.Guard
	Correlation *correlation.Tracker
	Sizer       *sizing.Sizer
	Executor    *execution.Executor
	Bridge      *bridge.Client
	Storage     *storage.Store
	Metrics     *metrics.Registry
	Advisor     Advisor
}

// New builds an Engine. InitialCapital seeds cash; positions start
// empty.
func New(logger *zap.Logger, config Config, deps Deps) *Engine {
	return &Engine{
		logger:      logger.Named("engine"),
		bars:        deps.Bars,
		strategies:  deps.Strategies,
		regimeClf:   deps.Regime,
		compliance:  deps.Compliance,
		riskGuard:   deps.Risk,
		correlation: deps.Correlation,
		sizer:       deps.Sizer,
		executor:    deps.Executor,
		bridge:      deps.Bridge,
		storage:     deps.Storage,
		metrics:     deps.Metrics,
		advisor:     deps.Advisor,
		config:      config,
		cash:        config.InitialCapital,
		positions:   make(map[string]types.Position),
		live:        false,
		shareSize:   config.InitialShares,
		increment:   config.ShareIncrement,
		maxEquity:   config.InitialCapital,
		minEquity:   config.InitialCapital,
	}
}

// portfolioSnapshot builds the read-only Portfolio view strategies see.
// Must be called with mu held.
func (e *Engine) portfolioSnapshot(asOf time.Time) types.Portfolio {
	positions := make(map[string]types.Position, len(e.positions))
	for k, v := range e.positions {
		positions[k] = v
	}
	return types.Portfolio{
		Cash:        e.cash,
		Positions:   positions,
		RealizedPnL: e.realized,
		DailyPnL:    e.riskGuard.Snapshot().DailyPnL,
		AsOf:        asOf,
	}
}

// OnBar is one control-loop iteration for a single (symbol, bar). It
// is the entry point the bar-clock driver calls once per bar per
// symbol, in bar-timestamp order.
func (e *Engine) OnBar(ctx context.Context, bar types.Bar) error {
	regimeState := e.regimeClf.OnBar(bar)

	e.mu.Lock()
	defer e.mu.Unlock()

	windowOpen, closingNow := e.windowStatus(bar.Timestamp)
	emergency, emergencyReason := e.emergencyState()

	portfolio := e.portfolioSnapshot(bar.Timestamp)
	signal, sigErr := e.strategies.ActiveSignal(portfolio, bar)
	if sigErr != nil {
		e.logger.Warn("strategy returned an error", zap.Error(sigErr))
	}
	if shadowSig, err := e.strategies.ShadowSignal(portfolio, bar); err == nil && shadowSig.Direction.IsEntry() {
		e.metrics.SignalsTotal.WithLabelValues("shadow_" + string(shadowSig.Direction)).Inc()
	}
	e.metrics.SignalsTotal.WithLabelValues(string(signal.Direction)).Inc()

	pos, open := e.positions[bar.Symbol]

	// Exits are evaluated before entries within a tick, freeing capital
	// and keeping reversals ordered.
	if open && !pos.IsFlat() {
		exitReason := ""
		stopLoss := false
		unrealized := bar.Close.Sub(pos.AvgEntryPrice).Mul(decimal.NewFromInt(pos.SignedQty))
		switch {
		case closingNow:
			exitReason = "trading window closing"
		case emergency:
			exitReason = "emergency shutdown: " + emergencyReason
		case e.config.PerTradeLossLimit.IsPositive() && unrealized.Neg().GreaterThanOrEqual(e.config.PerTradeLossLimit):
			exitReason = fmt.Sprintf("stop-loss: unrealized loss %s reached per-trade limit %s",
				unrealized.Abs().StringFixed(0), e.config.PerTradeLossLimit.StringFixed(0))
			stopLoss = true
		case e.config.MaxHoldMinutes > 0 && bar.Timestamp.Sub(pos.EntryTime) >= time.Duration(e.config.MaxHoldMinutes)*time.Minute:
			exitReason = fmt.Sprintf("max hold time of %d minutes exceeded", e.config.MaxHoldMinutes)
		case signal.Direction.IsExit():
			exitReason = signal.Reason
		}
		if exitReason != "" {
			if stopLoss {
				_ = e.recordVeto(ctx, bar, pos.StrategyName, "stop-loss", exitReason)
			}
			if err := e.closePosition(ctx, bar, pos, exitReason); err != nil {
				return err
			}
			open = false
		}
	}

	if !windowOpen || closingNow || emergency || e.paused {
		return nil
	}
	// Data freshness: live entries on a bar older than the staleness
	// threshold would trade on prices the market has already left.
	if e.live && e.config.StalenessThreshold > 0 && time.Since(bar.Timestamp) > e.config.StalenessThreshold {
		e.logger.Warn("stale bar, suppressing entries",
			zap.String("symbol", bar.Symbol), zap.Duration("age", time.Since(bar.Timestamp)))
		return nil
	}
	if !signal.Direction.IsEntry() || signal.Confidence.LessThan(strategy.DefaultEntryThreshold) {
		return nil
	}
	if open {
		return nil // no pyramiding; reversals must go through FLAT first
	}

	return e.tryEnter(ctx, bar, signal, regimeState)
}

// emergencyState folds RiskGuard's loss-limit latch and the order
// executor's kill switch into one emergency signal: either one
// suppresses entries and forces open positions closed, exactly like a
// P&L-limit breach.
func (e *Engine) emergencyState() (bool, string) {
	if tripped, reason := e.riskGuard.EmergencyShutdown(); tripped {
		return true, reason
	}
	if tripped, reason := e.executor.KillSwitch(); tripped {
		return true, "order executor kill switch: " + reason
	}
	return false, ""
}

// windowStatus reports whether entries are currently permitted and
// whether the window is within StalenessWindowEpsilon of closing.
func (e *Engine) windowStatus(asOf time.Time) (open bool, closing bool) {
	t := asOf.In(e.config.Location)
	minuteOfDay := time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second
	if minuteOfDay < e.config.WindowStart || minuteOfDay >= e.config.WindowEnd {
		return false, false
	}
	if e.config.WindowEnd-minuteOfDay <= StalenessWindowEpsilon {
		return true, true
	}
	return true, false
}

// tryEnter runs the veto chain and, if every
// gate passes, sizes and submits an entry order.
func (e *Engine) tryEnter(ctx context.Context, bar types.Bar, signal types.TradeSignal, regimeState regime.State) error {
	direction := signal.Direction

	var strategyType types.StrategyType
	if s, found := e.strategies.LookupActive(bar.Symbol); found {
		strategyType = s.Type()
	}
	// Intraday strategies round-trip within the same session; every
	// other family is assumed to hold overnight. ComplianceGuard only
	// needs this to decide whether the day-trade capital gate applies.
	intraday := strategyType == types.StrategyIntraday || strategyType == types.StrategyShortTerm

	candidateQty := e.shareSize
	if candidateQty <= 0 {
		candidateQty = e.config.InitialShares
	}

	// a+b. ComplianceGuard (retail short ban, odd-lot day-trade capital gate, earnings blackout).
	ok, reason := e.compliance.Check(compliance.Candidate{
		Symbol:    bar.Symbol,
		Direction: direction,
		Quantity:  candidateQty,
		Capital:   e.cash,
		Intraday:  intraday,
	}, bar.Timestamp)
	if !ok {
		return e.recordVeto(ctx, bar, signal.StrategyName, "compliance", reason)
	}

	// c. RegimeClassifier fitness floor.
	fitness := regime.Fitness(regimeState.Regime, strategyType)
	if fitness.LessThan(MinFitness) {
		return e.recordVeto(ctx, bar, signal.StrategyName, "regime",
			fmt.Sprintf("regime %s fitness %s below minimum %s", regimeState.Regime, fitness.StringFixed(2), MinFitness.StringFixed(2)))
	}

	// d. CorrelationTracker.
	sizeScale := decimal.NewFromInt(1)
	existing := e.openSymbolsLocked()
	if avgCorr, ok := e.correlation.AverageCorrelation(bar.Symbol, existing); ok {
		if avgCorr.GreaterThanOrEqual(correlation.CriticalCorr) {
			return e.recordVeto(ctx, bar, signal.StrategyName, "correlation",
				fmt.Sprintf("average correlation %s exceeds CRITICAL (%s)", avgCorr.StringFixed(2), correlation.CriticalCorr.StringFixed(2)))
		}
		sizeScale = correlation.SizeScale(avgCorr)
	}

	// e. Concentration, judged on the candidate quantity the same way
	// ComplianceGuard was. Only the single-symbol weight cap is
	// enforced; a sector cap needs a symbol->sector source this build
	// does not have (see DESIGN.md).
	equity := e.equityLocked()
	price := bar.Close
	candidateNotional := price.Mul(decimal.NewFromInt(candidateQty))
	if candidateNotional.GreaterThan(equity.Mul(MaxSinglePosPct)) {
		return e.recordVeto(ctx, bar, signal.StrategyName, "concentration",
			fmt.Sprintf("candidate notional %s exceeds %s%% of equity", candidateNotional.StringFixed(0), MaxSinglePosPct.Mul(decimal.NewFromInt(100)).StringFixed(0)))
	}

	// f. RiskGuard.
	if e.riskGuard.IsDailyLimitExceeded() || e.riskGuard.IsWeeklyLimitExceeded() {
		return e.recordVeto(ctx, bar, signal.StrategyName, "risk", "daily or weekly loss limit already exceeded")
	}

	// g. Optional LLM advisor.
	if e.advisor != nil {
		advisorCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		veto, reason, err := e.advisor.Evaluate(advisorCtx, signal)
		cancel()
		if err == nil && veto {
			return e.recordVeto(ctx, bar, signal.StrategyName, "advisor", reason)
		}
	}

	// Sizing, after every veto gate has passed. The MaxPositionPct clip
	// is a size reduction, not a veto.
	sizeResult := e.sizer.Recommend(sizing.Request{
		Symbol:      bar.Symbol,
		Equity:      equity,
		Price:       price,
		RegimeScale: regime.PositionScale(regimeState.Regime).Mul(sizeScale),
	})
	shares := utils.RoundToLot(sizeResult.Shares, e.config.LotSize)
	if e.config.MaxPositionPct.IsPositive() && price.IsPositive() {
		maxShares := equity.Mul(e.config.MaxPositionPct).Div(price).IntPart()
		if shares > maxShares {
			shares = utils.RoundToLot(maxShares, e.config.LotSize)
		}
	}
	if shares <= 0 {
		return nil
	}
	notional := price.Mul(decimal.NewFromInt(shares))

	side := types.OrderSideBuy
	if direction == types.DirectionShort {
		side = types.OrderSideSell
	}

	result, err := e.executor.Submit(ctx, execution.Request{Symbol: bar.Symbol, Side: side, Quantity: shares, PriceHint: price, StrategyName: signal.StrategyName})
	if err != nil {
		if errs.Is(err, errs.CategoryVeto) {
			return e.recordVeto(ctx, bar, signal.StrategyName, "execution", err.Error())
		}
		return nil // TransientExternal: logged by executor, never propagates into strategy state
	}

	signedQty := shares
	if direction == types.DirectionShort {
		signedQty = -shares
	}
	e.positions[bar.Symbol] = types.Position{
		Symbol: bar.Symbol, SignedQty: signedQty, AvgEntryPrice: price, EntryTime: bar.Timestamp, StrategyName: signal.StrategyName,
	}
	e.cash = e.cash.Sub(notional)
	e.logger.Info("entry filled", zap.String("symbol", bar.Symbol), zap.String("direction", string(direction)),
		zap.Int64("shares", shares), zap.String("orderId", result.OrderID))
	return nil
}

// closePosition submits an exit order for pos and settles realized
// P&L into RiskGuard.
func (e *Engine) closePosition(ctx context.Context, bar types.Bar, pos types.Position, reason string) error {
	side := types.OrderSideSell
	qty := pos.SignedQty
	if pos.SignedQty < 0 {
		side = types.OrderSideBuy
		qty = -qty
	}

	result, err := e.executor.Submit(ctx, execution.Request{Symbol: bar.Symbol, Side: side, Quantity: qty, PriceHint: bar.Close, StrategyName: pos.StrategyName, Closing: true})
	if err != nil {
		if !errs.Is(err, errs.CategoryVeto) {
			return nil // transient: retry on the next bar
		}
		e.logger.Warn("exit submission vetoed", zap.String("symbol", bar.Symbol), zap.Error(err))
		return nil
	}

	pnl := bar.Close.Sub(pos.AvgEntryPrice).Mul(decimal.NewFromInt(pos.SignedQty))
	e.realized = e.realized.Add(pnl)
	e.cash = e.cash.Add(bar.Close.Mul(decimal.NewFromInt(qty)))
	delete(e.positions, bar.Symbol)
	e.riskGuard.RecordPnL(pnl)
	e.correlation.PushReturn(bar.Symbol, utils.CalculatePercentageChange(pos.AvgEntryPrice, bar.Close).Div(decimal.NewFromInt(100)))

	e.closedCnt++
	if pnl.IsPositive() {
		e.winCnt++
	}
	trade := types.Trade{
		ID: utils.GenerateTradeID(), Symbol: bar.Symbol, StrategyName: pos.StrategyName, Side: side,
		Quantity: qty, Price: bar.Close, PnL: pnl, ExecutedAt: bar.Timestamp,
	}
	e.trades = append(e.trades, trade)
	if e.storage != nil {
		if err := e.storage.SaveTrade(ctx, trade); err != nil {
			e.logger.Error("failed to persist trade", zap.Error(err))
		}
	}
	dailyPnLFloat, _ := e.riskGuard.Snapshot().DailyPnL.Float64()
	e.metrics.DailyPnL.Set(dailyPnLFloat)
	e.logger.Info("position closed", zap.String("symbol", bar.Symbol), zap.String("reason", reason), zap.String("pnl", pnl.String()), zap.String("orderId", result.OrderID))
	return nil
}

func (e *Engine) recordVeto(ctx context.Context, bar types.Bar, strategyName, kind, reason string) error {
	v := types.VetoEvent{ID: utils.GenerateVetoID(), Symbol: bar.Symbol, Strategy: strategyName, Kind: kind, Reason: reason, Timestamp: bar.Timestamp}
	e.vetoes = append(e.vetoes, v)
	e.metrics.VetoesTotal.WithLabelValues(kind).Inc()
	e.logger.Info("veto recorded", zap.String("symbol", bar.Symbol), zap.String("kind", kind), zap.String("reason", reason))
	if e.storage != nil {
		if err := e.storage.SaveVetoEvent(ctx, v); err != nil {
			e.logger.Error("failed to persist veto event", zap.Error(err))
		}
	}
	return nil
}

func (e *Engine) openSymbolsLocked() []string {
	out := make([]string, 0, len(e.positions))
	for sym, p := range e.positions {
		if !p.IsFlat() {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out
}

func (e *Engine) equityLocked() decimal.Decimal {
	total := e.cash
	for _, p := range e.positions {
		total = total.Add(p.AvgEntryPrice.Mul(decimal.NewFromInt(absInt64(p.SignedQty)))).Add(p.UnrealizedPnL)
	}
	if total.GreaterThan(e.maxEquity) {
		e.maxEquity = total
	}
	if total.LessThan(e.minEquity) || e.minEquity.IsZero() {
		e.minEquity = total
	}
	return total
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// VetoEvents returns every recorded veto, most recent last.
func (e *Engine) VetoEvents() []types.VetoEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]types.VetoEvent, len(e.vetoes))
	copy(out, e.vetoes)
	return out
}

// Positions returns a snapshot of every open position.
func (e *Engine) Positions() map[string]types.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]types.Position, len(e.positions))
	for k, v := range e.positions {
		out[k] = v
	}
	return out
}

// Equity returns the current mark-to-market portfolio value.
func (e *Engine) Equity() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.equityLocked()
}

// --- controlplane.Engine implementation ---

// Pause suppresses all new entries until Resume is called. Idempotent.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = true
}

// Resume clears Pause. Idempotent.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = false
}

// Flatten force-closes every open position at the broker's current
// price via OrderExecutor, used by the "flatten" command and at
// shutdown.
func (e *Engine) Flatten(ctx context.Context) error {
	e.mu.Lock()
	positions := make(map[string]types.Position, len(e.positions))
	for k, v := range e.positions {
		positions[k] = v
	}
	e.mu.Unlock()

	failures := e.executor.Flatten(ctx, positions)

	e.mu.Lock()
	defer e.mu.Unlock()
	for symbol, pos := range positions {
		if _, failed := failures[symbol]; failed {
			continue
		}
		delete(e.positions, symbol)
		e.logger.Info("position flattened by command", zap.String("symbol", symbol), zap.Int64("qty", pos.SignedQty))
	}
	if len(failures) > 0 {
		return fmt.Errorf("engine: failed to flatten %d of %d positions", len(failures), len(positions))
	}
	return nil
}

// Shutdown stops accepting new bars (the caller's responsibility),
// flattens every open position, and tells the bridge to stop
// accepting orders.
func (e *Engine) Shutdown(ctx context.Context) error {
	if err := e.Flatten(ctx); err != nil {
		e.logger.Error("shutdown flatten incomplete", zap.Error(err))
	}
	if e.bridge != nil {
		if err := e.bridge.Shutdown(ctx); err != nil {
			e.logger.Warn("bridge shutdown notification failed", zap.Error(err))
		}
	}
	return nil
}

// GoLiveStats reports the performance snapshot ControlPlane's
// eligibility gate evaluates.
func (e *Engine) GoLiveStats() controlplane.GoLiveStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	winRate := decimal.Zero
	if e.closedCnt > 0 {
		winRate = decimal.NewFromInt(int64(e.winCnt)).Div(decimal.NewFromInt(int64(e.closedCnt))).Mul(decimal.NewFromInt(100))
	}
	dd := decimal.Zero
	if e.maxEquity.IsPositive() {
		dd = e.maxEquity.Sub(e.minEquity).Div(e.maxEquity).Mul(decimal.NewFromInt(100))
	}
	return controlplane.GoLiveStats{ClosedTrades: e.closedCnt, WinRatePct: winRate, MaxDrawdownPct: dd}
}

// SetLive switches between live and simulated order submission.
func (e *Engine) SetLive(live bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.live = live
	return nil
}

// SetShareSize changes the per-trade share size used when no
// sizing-method-specific quantity overrides it.
func (e *Engine) SetShareSize(n int64) error {
	if n <= 0 {
		return errs.Validation("engine.SetShareSize", fmt.Errorf("share size must be positive, got %d", n))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shareSize = n
	return nil
}

// SetSizeIncrement changes the step size used to grow/shrink position
// size between trading days.
func (e *Engine) SetSizeIncrement(n int64) error {
	if n <= 0 {
		return errs.Validation("engine.SetSizeIncrement", fmt.Errorf("size increment must be positive, got %d", n))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.increment = n
	return nil
}

// SelectStrategy installs name as the active strategy for every symbol
// with stored bars that is currently flat. Symbols with an open
// position keep their current strategy until flattened, per the swap
// protocol.
func (e *Engine) SelectStrategy(name string) error {
	known := e.bars.Symbols()
	e.mu.Lock()
	symbols := make([]string, 0, len(known))
	for _, sym := range known {
		if pos, open := e.positions[sym]; !open || pos.IsFlat() {
			symbols = append(symbols, sym)
		}
	}
	e.mu.Unlock()

	for _, sym := range symbols {
		if err := e.strategies.SetActive(sym, name); err != nil {
			return err
		}
	}
	return nil
}

// ListStrategies returns every strategy name the registry knows.
func (e *Engine) ListStrategies() []string {
	return e.strategies.RegisteredNames()
}

// Insight returns a one-line human-readable summary of engine state,
// the payload for the "insight" command and the advisor's context.
func (e *Engine) Insight() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	emergency, reason := e.emergencyState()
	status := "running"
	if e.paused {
		status = "paused"
	}
	if emergency {
		status = "emergency shutdown: " + reason
	}
	return fmt.Sprintf("status=%s live=%v openPositions=%d realizedPnL=%s closedTrades=%d",
		status, e.live, len(e.positions), e.realized.StringFixed(2), e.closedCnt)
}
