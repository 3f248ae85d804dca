// Package sizing computes the number of shares/contracts to trade for
// an entry candidate, using whichever method fits the signal's
// available statistics: Kelly/Half-Kelly when a strategy's trade
// history is known, ATR-based sizing when only a volatility stop is
// known, and a fixed-risk fallback otherwise. Every method is
// additionally clamped to a hard 10% of portfolio equity per symbol.
package sizing

import (
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Method names the sizing formula that produced a Result.
type Method string

const (
	MethodFixedRisk  Method = "fixed_risk"
	MethodATR        Method = "atr"
	MethodKelly      Method = "kelly"
	MethodHalfKelly  Method = "half_kelly"
	MethodVolTarget  Method = "vol_target"
)

// MaxPositionPct is the hard equity cap every method is clamped to,
// regardless of what the underlying formula computes.
var MaxPositionPct = decimal.NewFromFloat(0.10)

// Config holds the per-method parameters. Zero value is invalid; use
// DefaultConfig.
type Config struct {
	RiskPerTradePct decimal.Decimal // fixed-risk: fraction of equity risked per trade
	ATRMultiplier   decimal.Decimal // atr: stop distance as a multiple of ATR
	KellyFraction   decimal.Decimal // fractional Kelly applied on top of full Kelly
	TargetVol       decimal.Decimal // vol_target: annualized volatility target
	MinLeverage     decimal.Decimal // vol_target clip floor
	MaxLeverage     decimal.Decimal // vol_target clip ceiling
}

// DefaultConfig returns the default sizing parameters: 1% fixed
// risk, 2x ATR stops, half-Kelly as the default Kelly fraction, and a
// [0.1, 2.0] leverage clip for vol targeting.
func DefaultConfig() Config {
	return Config{
		RiskPerTradePct: decimal.NewFromFloat(0.01),
		ATRMultiplier:   decimal.NewFromFloat(2.0),
		KellyFraction:   decimal.NewFromFloat(0.5),
		TargetVol:       decimal.NewFromFloat(0.15),
		MinLeverage:     decimal.NewFromFloat(0.1),
		MaxLeverage:     decimal.NewFromFloat(2.0),
	}
}

// Stats summarizes a strategy's realized trade history, used by the
// Kelly methods. ok (via Valid) reports whether there is enough
// history to compute Kelly at all.
type Stats struct {
	WinRate decimal.Decimal // fraction of trades that were winners, [0,1]
	AvgWin  decimal.Decimal // average winning trade return, positive
	AvgLoss decimal.Decimal // average losing trade return, positive magnitude
	Trades  int
}

// Valid reports whether Stats carries enough history (at least 10
// closed trades) to drive Kelly sizing.
func (s Stats) Valid() bool {
	return s.Trades >= 10 && s.AvgLoss.IsPositive()
}

// Request is the sizing input for one entry candidate.
type Request struct {
	Symbol        string
	Equity        decimal.Decimal
	Price         decimal.Decimal
	StopPrice     decimal.Decimal // zero if no stop is set
	ATR           decimal.Decimal // zero if unavailable
	Volatility    decimal.Decimal // annualized, zero if unavailable
	RegimeScale   decimal.Decimal // from regime.PositionScale, 1 if omitted
	Stats         Stats
}

// Result is the recommended position size and the method used.
type Result struct {
	Method   Method          `json:"method"`
	Shares   int64           `json:"shares"`
	Notional decimal.Decimal `json:"notional"`
	Capped   bool            `json:"capped"`
}

// Sizer recommends a position size for an entry candidate. It holds no
// per-call mutable state; the mutex only guards config hot-reload.
type Sizer struct {
	logger *zap.Logger
	mu     sync.RWMutex
	config Config
}

// New builds a Sizer with the given config (zero value uses
// DefaultConfig).
func New(logger *zap.Logger, config Config) *Sizer {
	if config.RiskPerTradePct.IsZero() {
		config = DefaultConfig()
	}
	return &Sizer{logger: logger.Named("sizing"), config: config}
}

// SetConfig replaces the sizer's config, effective on the next Recommend.
func (s *Sizer) SetConfig(c Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = c
}

// Recommend picks Half-Kelly when the strategy has a valid trade
// history, ATR-based sizing when a stop or ATR is known, and
// fixed-risk otherwise.
func (s *Sizer) Recommend(req Request) Result {
	s.mu.RLock()
	cfg := s.config
	s.mu.RUnlock()

	scale := req.RegimeScale
	if scale.IsZero() {
		scale = decimal.NewFromInt(1)
	}

	var r Result
	switch {
	case req.Stats.Valid():
		r = s.halfKelly(cfg, req, scale)
	case req.ATR.IsPositive() || req.StopPrice.IsPositive():
		r = s.atrBased(cfg, req, scale)
	default:
		r = s.fixedRisk(cfg, req, scale)
	}
	return s.cap(req, r)
}

// FixedRisk sizes so that a stop-out loses exactly RiskPerTradePct of
// equity: shares = (equity * riskPct) / |price - stop|. Falls back to
// a flat RiskPerTradePct*equity notional if no stop is available.
func (s *Sizer) fixedRisk(cfg Config, req Request, scale decimal.Decimal) Result {
	riskBudget := req.Equity.Mul(cfg.RiskPerTradePct).Mul(scale)
	stopDistance := req.Price.Sub(req.StopPrice).Abs()
	if stopDistance.IsZero() {
		notional := riskBudget
		shares := sharesFor(notional, req.Price)
		return Result{Method: MethodFixedRisk, Shares: shares, Notional: notional}
	}
	shares := riskBudget.Div(stopDistance)
	return Result{Method: MethodFixedRisk, Shares: shares.IntPart(), Notional: shares.Mul(req.Price)}
}

// atrBased sizes so that ATRMultiplier*ATR of adverse movement costs
// RiskPerTradePct of equity.
func (s *Sizer) atrBased(cfg Config, req Request, scale decimal.Decimal) Result {
	atr := req.ATR
	if atr.IsZero() && req.StopPrice.IsPositive() {
		atr = req.Price.Sub(req.StopPrice).Abs().Div(cfg.ATRMultiplier)
	}
	if atr.IsZero() {
		return s.fixedRisk(cfg, req, scale)
	}
	riskBudget := req.Equity.Mul(cfg.RiskPerTradePct).Mul(scale)
	stopDistance := atr.Mul(cfg.ATRMultiplier)
	shares := riskBudget.Div(stopDistance)
	return Result{Method: MethodATR, Shares: shares.IntPart(), Notional: shares.Mul(req.Price)}
}

// halfKelly applies the Kelly criterion f* = W - (1-W)/R (W=win rate,
// R=avgWin/avgLoss payoff ratio), scaled by KellyFraction (default
// 0.5, i.e. Half-Kelly), clamped to [0, MaxPositionPct] before the
// final cap.
func (s *Sizer) halfKelly(cfg Config, req Request, scale decimal.Decimal) Result {
	payoff := req.Stats.AvgWin.Div(req.Stats.AvgLoss)
	w := req.Stats.WinRate
	kelly := w.Sub(decimal.NewFromInt(1).Sub(w).Div(payoff))
	if kelly.IsNegative() {
		kelly = decimal.Zero
	}
	fraction := kelly.Mul(cfg.KellyFraction).Mul(scale)
	if fraction.GreaterThan(MaxPositionPct) {
		fraction = MaxPositionPct
	}
	notional := req.Equity.Mul(fraction)
	return Result{Method: MethodHalfKelly, Shares: sharesFor(notional, req.Price), Notional: notional}
}

// VolTarget sizes leverage = TargetVol / realizedVol, clipped to
// [MinLeverage, MaxLeverage], then converts to notional. Exposed
// separately from Recommend's cascade because vol targeting is driven
// by symbol volatility, not trade history or a stop, so callers invoke
// it explicitly for the long-horizon strategy family.
func (s *Sizer) VolTarget(req Request) Result {
	s.mu.RLock()
	cfg := s.config
	s.mu.RUnlock()

	if req.Volatility.IsZero() {
		return s.fixedRisk(cfg, req, decimal.NewFromInt(1))
	}
	leverage := cfg.TargetVol.Div(req.Volatility)
	if leverage.LessThan(cfg.MinLeverage) {
		leverage = cfg.MinLeverage
	}
	if leverage.GreaterThan(cfg.MaxLeverage) {
		leverage = cfg.MaxLeverage
	}
	notional := req.Equity.Mul(leverage).Div(decimal.NewFromInt(10))
	return s.cap(req, Result{Method: MethodVolTarget, Shares: sharesFor(notional, req.Price), Notional: notional})
}

// cap enforces the hard MaxPositionPct ceiling on notional exposure
// per symbol, the one constraint every method is subject to.
func (s *Sizer) cap(req Request, r Result) Result {
	limit := req.Equity.Mul(MaxPositionPct)
	if r.Notional.GreaterThan(limit) {
		r.Notional = limit
		r.Shares = sharesFor(limit, req.Price)
		r.Capped = true
	}
	if r.Shares < 0 {
		r.Shares = 0
		r.Notional = decimal.Zero
	}
	return r
}

func sharesFor(notional, price decimal.Decimal) int64 {
	if price.IsZero() {
		return 0
	}
	return notional.Div(price).IntPart()
}
