// Package execution implements OrderExecutor: retrying submission of
// orders to the broker bridge, fill/rejection bookkeeping, and an
// in-flight-per-symbol guard so a retry for symbol S can never race a
// fresh entry for the same symbol.
package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/twequity/trading-engine/internal/bridge"
	"github.com/twequity/trading-engine/internal/errs"
	"github.com/twequity/trading-engine/internal/metrics"
	"github.com/twequity/trading-engine/pkg/types"
	"github.com/twequity/trading-engine/pkg/utils"
)

// MaxConsecutiveFailures is how many final (retry-exhausted)
// submission failures in a row trip the kill switch.
const MaxConsecutiveFailures = 3

// Request describes one order the engine wants placed. Closing marks
// an order that reduces or exits an existing position; a tripped kill
// switch refuses new entries but still lets close-outs through.
type Request struct {
	Symbol       string
	Side         types.OrderSide
	Quantity     int64
	PriceHint    decimal.Decimal
	StrategyName string
	Closing      bool
}

// Result is the outcome of a successful submission.
type Result struct {
	OrderID string
	Status  types.OrderStatus
	Reason  string
}

// Executor submits orders to the bridge with retry, in-flight
// deduplication per symbol, and a kill switch on repeated failure.
type Executor struct {
	logger *zap.Logger
	bridge *bridge.Client
	metric *metrics.Registry
	retry  utils.RetryConfig

	mu                  sync.Mutex
	inFlight            map[string]bool
	consecutiveFailures int
	killSwitch          bool
	killReason          string
}

// New builds an Executor submitting through client. The retry policy
// makes up to four attempts (three retries) backing off 2s/4s/8s,
// rather than utils.DefaultRetryConfig's three attempts at 1s/2s.
func New(logger *zap.Logger, client *bridge.Client, metric *metrics.Registry) *Executor {
	return &Executor{
		logger:   logger.Named("execution"),
		bridge:   client,
		metric:   metric,
		retry:    utils.RetryConfig{MaxAttempts: 4, InitialDelay: 2 * time.Second, Multiplier: 2.0},
		inFlight: make(map[string]bool),
	}
}

// KillSwitch reports whether the executor has stopped accepting new
// submissions after three consecutive final failures, and why.
func (e *Executor) KillSwitch() (bool, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.killSwitch, e.killReason
}

// ResetKillSwitch clears the kill switch and failure streak. Only an
// operator command should call this.
func (e *Executor) ResetKillSwitch() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.killSwitch = false
	e.killReason = ""
	e.consecutiveFailures = 0
}

// acquire claims the in-flight slot for symbol. ok is false if a
// retry for that symbol is already in flight.
func (e *Executor) acquire(symbol string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight[symbol] {
		return false
	}
	e.inFlight[symbol] = true
	return true
}

func (e *Executor) release(symbol string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, symbol)
}

// Submit places req against the bridge, retrying up to N=3 times with
// 2^n-second backoff. Returns errs.Veto if the kill switch is tripped
// on a non-closing order, or a submission is already in flight for the
// symbol; the engine treats both as "don't place this order right
// now", not a fault.
func (e *Executor) Submit(ctx context.Context, req Request) (Result, error) {
	if tripped, reason := e.KillSwitch(); tripped && !req.Closing {
		return Result{}, errs.Veto("execution.submit", "kill switch tripped: "+reason)
	}
	if !e.acquire(req.Symbol) {
		return Result{}, errs.Veto("execution.submit", "submission already in flight for "+req.Symbol)
	}
	defer e.release(req.Symbol)

	e.metric.OrdersSubmitted.WithLabelValues(string(req.Side)).Inc()

	resp, err := utils.Retry(ctx, e.retry, func() (bridge.OrderResponse, error) {
		return e.bridge.SubmitOrder(ctx, bridge.OrderRequest{
			Symbol:   req.Symbol,
			Action:   req.Side,
			Quantity: req.Quantity,
			Price:    req.PriceHint,
		})
	})

	if err != nil {
		e.recordFailure(req, err)
		return Result{}, errs.Transient("execution.submit", err)
	}

	if resp.Status == types.OrderStatusRejected {
		e.metric.OrdersRejected.WithLabelValues(resp.Reason).Inc()
		e.recordFailure(req, fmt.Errorf("rejected: %s", resp.Reason))
		return Result{Status: resp.Status, Reason: resp.Reason}, errs.Veto("execution.submit", "order rejected: "+resp.Reason)
	}

	e.recordSuccess()
	e.metric.OrdersFilled.WithLabelValues(string(req.Side)).Inc()
	e.logger.Info("order filled",
		zap.String("symbol", req.Symbol), zap.String("side", string(req.Side)),
		zap.Int64("quantity", req.Quantity), zap.String("orderId", resp.OrderID))
	return Result{OrderID: resp.OrderID, Status: resp.Status}, nil
}

func (e *Executor) recordFailure(req Request, cause error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.consecutiveFailures++
	e.logger.Error("order submission failed",
		zap.String("symbol", req.Symbol), zap.Error(cause), zap.Int("consecutiveFailures", e.consecutiveFailures))
	if e.consecutiveFailures >= MaxConsecutiveFailures && !e.killSwitch {
		e.killSwitch = true
		e.killReason = fmt.Sprintf("%d consecutive order submission failures", e.consecutiveFailures)
		e.metric.KillSwitchTrips.Inc()
		e.logger.Error("execution kill switch tripped", zap.String("reason", e.killReason))
	}
}

func (e *Executor) recordSuccess() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.consecutiveFailures = 0
}

// Flatten submits an exit order for every open position, used on
// shutdown and on force-flatten at the trading window's end. Best
// effort: a single symbol's failure does not stop the others, and
// every failure is returned so the caller can alert on the full set.
func (e *Executor) Flatten(ctx context.Context, positions map[string]types.Position) map[string]error {
	failures := make(map[string]error)
	for symbol, pos := range positions {
		if pos.IsFlat() {
			continue
		}
		side := types.OrderSideSell
		if pos.SignedQty < 0 {
			side = types.OrderSideBuy
		}
		qty := pos.SignedQty
		if qty < 0 {
			qty = -qty
		}
		if _, err := e.Submit(ctx, Request{Symbol: symbol, Side: side, Quantity: qty, StrategyName: pos.StrategyName, Closing: true}); err != nil {
			failures[symbol] = err
		}
	}
	return failures
}
