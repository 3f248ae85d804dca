// Package backtester implements Backtester: deterministic replay of a
// strategy against historical bars for one symbol, the performance
// metrics computed from that replay, and the parallel (strategy,
// symbol) fan-out that is one of the system's
// two permitted sources of concurrency (the other is bridge I/O).
package backtester

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/twequity/trading-engine/internal/storage"
	"github.com/twequity/trading-engine/internal/strategy"
	"github.com/twequity/trading-engine/internal/workers"
	"github.com/twequity/trading-engine/pkg/types"
	"github.com/twequity/trading-engine/pkg/utils"
)

// DefaultInitialCapital is the starting cash a Job uses when it does
// not set one.
var DefaultInitialCapital = decimal.NewFromInt(80000)

// CostModel prices the friction a simulated fill incurs. The zero
// value applies neither slippage nor commission.
type CostModel struct {
	SlippageBps  decimal.Decimal // applied against the bar's close, same direction as the fill
	CommissionPct decimal.Decimal
}

func (c CostModel) fillPrice(close decimal.Decimal, side types.OrderSide) decimal.Decimal {
	if c.SlippageBps.IsZero() {
		return close
	}
	adj := close.Mul(c.SlippageBps).Div(decimal.NewFromInt(10000))
	if side == types.OrderSideBuy {
		return close.Add(adj)
	}
	return close.Sub(adj)
}

func (c CostModel) commission(notional decimal.Decimal) decimal.Decimal {
	if c.CommissionPct.IsZero() {
		return decimal.Zero
	}
	return notional.Mul(c.CommissionPct)
}

// Job describes one (strategy, symbol) evaluation to run.
type Job struct {
	StrategyName    string
	Factory         strategy.Factory
	Symbol          string
	Bars            []types.Bar
	InitialCapital  decimal.Decimal
	Costs           CostModel
	BacktestRunID   string
}

// Backtester runs Jobs, in parallel when given more than one, and
// persists the accumulated results under a single transaction.
type Backtester struct {
	logger  *zap.Logger
	storage *storage.Store
}

// New builds a Backtester persisting results through store.
func New(logger *zap.Logger, store *storage.Store) *Backtester {
	return &Backtester{logger: logger.Named("backtester"), storage: store}
}

// Run evaluates every job, fanning out across a worker pool sized to
// the host's hardware, and saves the accumulated rows under a single
// write transaction.
func (b *Backtester) Run(ctx context.Context, jobs []Job) ([]types.BacktestResult, error) {
	if len(jobs) == 0 {
		return nil, nil
	}

	pool := workers.NewPool(b.logger, workers.EvaluationPoolConfig("backtester"))
	pool.Start()
	defer pool.Stop()

	results := make([]types.BacktestResult, len(jobs))
	errs := make([]error, len(jobs))
	var wg sync.WaitGroup
	wg.Add(len(jobs))

	for i, job := range jobs {
		i, job := i, job
		err := pool.SubmitFunc(func() error {
			defer wg.Done()
			r, err := Evaluate(job)
			if err != nil {
				errs[i] = fmt.Errorf("backtester: %s/%s: %w", job.StrategyName, job.Symbol, err)
				return err
			}
			results[i] = r
			return nil
		})
		if err != nil {
			wg.Done()
			errs[i] = fmt.Errorf("backtester: submit %s/%s: %w", job.StrategyName, job.Symbol, err)
		}
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			b.logger.Error("backtest job failed", zap.Error(err))
		}
	}

	if b.storage != nil {
		if err := b.storage.SaveBacktestResults(ctx, results); err != nil {
			return results, fmt.Errorf("backtester: save results: %w", err)
		}
	}
	return results, nil
}

// replayState is the portfolio Evaluate simulates bar by bar. It is
// intentionally simpler than engine.Engine's live bookkeeping: the
// Backtester has no veto chain, no sizing cascade and no compliance
// gate. It simulates fills at the bar's close for whatever the
// strategy signals, not the live control loop's gating.
type replayState struct {
	cash       decimal.Decimal
	position   types.Position
	trades     []types.Trade
	equity     []types.EquityCurvePoint
	holdBars   []int
	barsInPos  int
	maxEquity  decimal.Decimal
}

// Evaluate runs one (strategy, symbol) replay over job.Bars in strict
// ascending order and computes its PerformanceMetrics.
func Evaluate(job Job) (types.BacktestResult, error) {
	if len(job.Bars) == 0 {
		return types.BacktestResult{}, fmt.Errorf("no bars to evaluate")
	}
	capital := job.InitialCapital
	if capital.IsZero() {
		capital = DefaultInitialCapital
	}

	s := job.Factory()
	s.Reset()

	st := &replayState{cash: capital, maxEquity: capital}
	startedAt := time.Now()

	for _, bar := range job.Bars {
		portfolio := st.portfolio(bar.Symbol, bar.Timestamp)
		sig := s.Execute(portfolio, bar)
		st.apply(job, bar, sig)
		st.markEquityCurve(bar)
	}
	// force-close whatever is left open at the end of the range so the
	// last position's P&L is captured in the metrics.
	if !st.position.IsFlat() {
		st.closeAt(job, job.Bars[len(job.Bars)-1], "end of range")
	}

	metrics := computeMetrics(st, capital)
	return types.BacktestResult{
		BacktestRunID: job.BacktestRunID,
		Symbol:        job.Symbol,
		StrategyName:  job.StrategyName,
		Metrics:       metrics,
		EquityCurve:   st.equity,
		StartedAt:     startedAt,
		CompletedAt:   time.Now(),
	}, nil
}

func (st *replayState) portfolio(symbol string, asOf time.Time) types.Portfolio {
	positions := make(map[string]types.Position)
	if !st.position.IsFlat() {
		positions[symbol] = st.position
	}
	return types.Portfolio{Cash: st.cash, Positions: positions, AsOf: asOf}
}

func (st *replayState) apply(job Job, bar types.Bar, sig types.TradeSignal) {
	switch {
	case sig.Direction.IsExit() && !st.position.IsFlat():
		st.closeAt(job, bar, sig.Reason)
	case sig.Direction.IsEntry() && st.position.IsFlat():
		st.openAt(job, bar, sig)
	default:
		if !st.position.IsFlat() {
			st.barsInPos++
			st.markUnrealized(bar)
		}
	}
}

// openAt sizes the fill as "every share the current cash can buy".
// Unlike the live engine, the replay is not bound to board-lot
// rounding or the sizing cascade; its job is to simulate fills and
// accumulate metrics, so a whole-share fill is used.
func (st *replayState) openAt(job Job, bar types.Bar, sig types.TradeSignal) {
	qty := sharesFor(st.cash, bar.Close)
	if qty <= 0 {
		return
	}
	side := types.OrderSideBuy
	if sig.Direction == types.DirectionShort {
		side = types.OrderSideSell
		qty = -qty
	}
	fill := job.Costs.fillPrice(bar.Close, side)
	notional := fill.Mul(decimal.NewFromInt(absInt64(qty)))
	st.cash = st.cash.Sub(job.Costs.commission(notional))
	st.position = types.Position{
		Symbol: bar.Symbol, SignedQty: qty, AvgEntryPrice: fill,
		EntryTime: bar.Timestamp, StrategyName: job.StrategyName,
	}
	st.barsInPos = 0
}

// Entry and exit notional are never debited/credited against cash;
// this replay tracks realized P&L and commissions only, not buying
// power, so equity is always cash plus the open position's
// mark-to-market P&L. Margin is not modeled.

func (st *replayState) closeAt(job Job, bar types.Bar, reason string) {
	pos := st.position
	side := types.OrderSideSell
	if pos.SignedQty < 0 {
		side = types.OrderSideBuy
	}
	fill := job.Costs.fillPrice(bar.Close, side)
	qty := absInt64(pos.SignedQty)
	notional := fill.Mul(decimal.NewFromInt(qty))
	commission := job.Costs.commission(notional)

	var grossPnL decimal.Decimal
	if pos.SignedQty > 0 {
		grossPnL = fill.Sub(pos.AvgEntryPrice).Mul(decimal.NewFromInt(qty))
	} else {
		grossPnL = pos.AvgEntryPrice.Sub(fill).Mul(decimal.NewFromInt(qty))
	}
	pnl := grossPnL.Sub(commission)
	st.cash = st.cash.Add(pnl)

	st.trades = append(st.trades, types.Trade{
		ID: utils.GenerateTradeID(), BacktestRunID: job.BacktestRunID, Symbol: bar.Symbol,
		StrategyName: job.StrategyName, Side: side, Quantity: qty, Price: fill,
		Commission: commission, PnL: pnl, ExecutedAt: bar.Timestamp,
	})
	st.holdBars = append(st.holdBars, st.barsInPos)
	st.position = types.Position{}
	st.barsInPos = 0
}

func (st *replayState) markUnrealized(bar types.Bar) {
	if st.position.IsFlat() {
		return
	}
	qty := decimal.NewFromInt(absInt64(st.position.SignedQty))
	if st.position.SignedQty > 0 {
		st.position.UnrealizedPnL = bar.Close.Sub(st.position.AvgEntryPrice).Mul(qty)
	} else {
		st.position.UnrealizedPnL = st.position.AvgEntryPrice.Sub(bar.Close).Mul(qty)
	}
}

func (st *replayState) markEquityCurve(bar types.Bar) {
	equity := st.cash
	if !st.position.IsFlat() {
		equity = equity.Add(st.position.UnrealizedPnL)
	}
	if equity.GreaterThan(st.maxEquity) {
		st.maxEquity = equity
	}
	drawdown := decimal.Zero
	if st.maxEquity.IsPositive() {
		drawdown = st.maxEquity.Sub(equity).Div(st.maxEquity).Mul(decimal.NewFromInt(100))
	}
	st.equity = append(st.equity, types.EquityCurvePoint{Timestamp: bar.Timestamp, Equity: equity, Drawdown: drawdown})
}

func sharesFor(cash, price decimal.Decimal) int64 {
	if price.IsZero() {
		return 0
	}
	shares, _ := cash.Div(price).Float64()
	return int64(shares)
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// computeMetrics derives PerformanceMetrics from a completed replay.
func computeMetrics(st *replayState, initialCapital decimal.Decimal) types.PerformanceMetrics {
	if len(st.equity) == 0 {
		return types.PerformanceMetrics{Valid: false}
	}

	equitySeries := make([]decimal.Decimal, len(st.equity))
	for i, p := range st.equity {
		equitySeries[i] = p.Equity
	}
	finalEquity := equitySeries[len(equitySeries)-1]

	dailyReturns := utils.CalculateReturns(equitySeries)
	pnls := make([]decimal.Decimal, len(st.trades))
	for i, t := range st.trades {
		pnls[i] = t.PnL
	}

	totalReturnPct := decimal.Zero
	if initialCapital.IsPositive() {
		totalReturnPct = finalEquity.Sub(initialCapital).Div(initialCapital).Mul(decimal.NewFromInt(100))
	}

	avgHold := decimal.Zero
	if len(st.holdBars) > 0 {
		sum := 0
		for _, h := range st.holdBars {
			sum += h
		}
		avgHold = decimal.NewFromInt(int64(sum)).Div(decimal.NewFromInt(int64(len(st.holdBars))))
	}

	hundred := decimal.NewFromInt(100)
	m := types.PerformanceMetrics{
		TotalReturnPct:  totalReturnPct,
		SharpeRatio:     utils.CalculateSharpeRatio(dailyReturns, decimal.Zero, 252),
		SortinoRatio:    utils.CalculateSortinoRatio(dailyReturns, decimal.Zero, 252),
		MaxDrawdownPct:  utils.CalculateMaxDrawdown(equitySeries).Mul(hundred),
		WinRatePct:      utils.CalculateWinRate(pnls).Mul(hundred),
		TotalTrades:     len(st.trades),
		AverageHoldBars: avgHold,
	}
	m.CalmarRatio = calmar(totalReturnPct, m.MaxDrawdownPct)
	m.Fitness = Fitness(m)
	m.Valid = m.TotalTrades >= MinTradesForValidity
	return m
}

func calmar(totalReturnPct, maxDrawdownPct decimal.Decimal) decimal.Decimal {
	if maxDrawdownPct.IsZero() {
		return decimal.Zero
	}
	return totalReturnPct.Div(maxDrawdownPct)
}
