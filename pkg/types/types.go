// Package types defines the shared data model of the trading engine:
// bars, quotes, signals, positions, and the persisted record types
// described by the storage and backtest subsystems.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Timeframe is the bar resolution. Bars for a given (symbol, timeframe)
// are unique and strictly ordered by Timestamp.
type Timeframe string

const (
	TimeframeTick Timeframe = "TICK"
	Timeframe1m   Timeframe = "1m"
	Timeframe5m   Timeframe = "5m"
	Timeframe15m  Timeframe = "15m"
	Timeframe30m  Timeframe = "30m"
	Timeframe1h   Timeframe = "1h"
	Timeframe1d   Timeframe = "1d"
)

// Mode distinguishes stock trading from futures trading. ComplianceGuard
// owns all mode-specific restriction rules; nothing else branches on it.
type Mode string

const (
	ModeStock   Mode = "stock"
	ModeFutures Mode = "futures"
)

// OrderSide is the direction of a broker order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderStatus mirrors the bridge contract's order lifecycle states.
type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusFilled   OrderStatus = "filled"
	OrderStatusRejected OrderStatus = "rejected"
)

// Direction is a strategy's requested action for a symbol on a bar.
type Direction string

const (
	DirectionLong      Direction = "LONG"
	DirectionShort     Direction = "SHORT"
	DirectionNeutral   Direction = "NEUTRAL"
	DirectionExitLong  Direction = "EXIT_LONG"
	DirectionExitShort Direction = "EXIT_SHORT"
)

// IsEntry reports whether the direction requests opening a new position.
func (d Direction) IsEntry() bool {
	return d == DirectionLong || d == DirectionShort
}

// IsExit reports whether the direction requests closing an existing position.
func (d Direction) IsExit() bool {
	return d == DirectionExitLong || d == DirectionExitShort
}

// StrategyType classifies a strategy's typical holding horizon.
type StrategyType string

const (
	StrategyLongTerm  StrategyType = "LONG_TERM"
	StrategySwing     StrategyType = "SWING"
	StrategyShortTerm StrategyType = "SHORT_TERM"
	StrategyIntraday  StrategyType = "INTRADAY"
)

// Bar is one OHLCV observation. Immutable after insertion into BarStore.
type Bar struct {
	Symbol    string          `json:"symbol"`
	Timeframe Timeframe       `json:"timeframe"`
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    int64           `json:"volume"`
}

// Key identifies a bar's slot in BarStore.
func (b Bar) Key() (string, Timeframe, time.Time) {
	return b.Symbol, b.Timeframe, b.Timestamp
}

// OrderBookLevel is one price/size rung of a quote snapshot.
type OrderBookLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  int64           `json:"size"`
}

// Quote is a top-N order book snapshot for a symbol. Valid only when at
// least one level is present on each side.
type Quote struct {
	Symbol    string           `json:"symbol"`
	Timestamp time.Time        `json:"timestamp"`
	Bids      []OrderBookLevel `json:"bids"`
	Asks      []OrderBookLevel `json:"asks"`
}

func sumSize(levels []OrderBookLevel) int64 {
	var total int64
	for _, l := range levels {
		total += l.Size
	}
	return total
}

// Valid reports whether the quote has at least one level on each side.
func (q Quote) Valid() bool {
	return len(q.Bids) > 0 && len(q.Asks) > 0
}

// TotalBidVolume sums size across all bid levels.
func (q Quote) TotalBidVolume() int64 { return sumSize(q.Bids) }

// TotalAskVolume sums size across all ask levels.
func (q Quote) TotalAskVolume() int64 { return sumSize(q.Asks) }

// Imbalance is (bid-ask)/(bid+ask), clamped into [-1, 1]. Returns zero
// for an invalid quote.
func (q Quote) Imbalance() decimal.Decimal {
	if !q.Valid() {
		return decimal.Zero
	}
	bid := decimal.NewFromInt(q.TotalBidVolume())
	ask := decimal.NewFromInt(q.TotalAskVolume())
	denom := bid.Add(ask)
	if denom.IsZero() {
		return decimal.Zero
	}
	return bid.Sub(ask).Div(denom)
}

// TradeSignal is a strategy's requested action on one bar.
type TradeSignal struct {
	Symbol       string          `json:"symbol"`
	StrategyName string          `json:"strategyName"`
	Direction    Direction       `json:"direction"`
	Confidence   decimal.Decimal `json:"confidence"`
	Reason       string          `json:"reason"`
	Timestamp    time.Time       `json:"timestamp"`
}

// Position is an open holding in a single symbol.
type Position struct {
	Symbol        string          `json:"symbol"`
	SignedQty     int64           `json:"signedQty"` // positive = long, negative = short
	AvgEntryPrice decimal.Decimal `json:"avgEntryPrice"`
	EntryTime     time.Time       `json:"entryTime"`
	UnrealizedPnL decimal.Decimal `json:"unrealizedPnl"`
	StrategyName  string          `json:"strategyName"`
}

// IsFlat reports whether the position has zero net quantity.
func (p Position) IsFlat() bool { return p.SignedQty == 0 }

// Side reports the side of the held position. Undefined (returns
// OrderSideBuy) when flat; callers must check IsFlat first.
func (p Position) Side() OrderSide {
	if p.SignedQty < 0 {
		return OrderSideSell
	}
	return OrderSideBuy
}

// Portfolio is the read-only snapshot passed into every strategy call.
// Strategies never mutate it.
type Portfolio struct {
	Cash           decimal.Decimal      `json:"cash"`
	Positions      map[string]Position  `json:"positions"`
	RealizedPnL    decimal.Decimal      `json:"realizedPnl"`
	DailyPnL       decimal.Decimal      `json:"dailyPnl"`
	AsOf           time.Time            `json:"asOf"`
}

// Equity returns cash plus the mark-to-market value of open positions
// at their current average entry price plus unrealized P&L.
func (p Portfolio) Equity() decimal.Decimal {
	total := p.Cash
	for _, pos := range p.Positions {
		notional := pos.AvgEntryPrice.Mul(decimal.NewFromInt(abs64(pos.SignedQty)))
		total = total.Add(notional).Add(pos.UnrealizedPnL)
	}
	return total
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// StrategyStockMapping records a (symbol, strategy) pairing's live or
// shadow status and its most recent backtest metrics.
type StrategyStockMapping struct {
	Symbol          string          `json:"symbol"`
	StrategyName    string          `json:"strategyName"`
	IsActive        bool            `json:"isActive"`
	ConfidenceScore decimal.Decimal `json:"confidenceScore"`
	TotalReturnPct  decimal.Decimal `json:"totalReturnPct"`
	SharpeRatio     decimal.Decimal `json:"sharpeRatio"`
	WinRatePct      decimal.Decimal `json:"winRatePct"`
	MaxDrawdownPct  decimal.Decimal `json:"maxDrawdownPct"`
	TotalTrades     int             `json:"totalTrades"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Trade is a single closed fill recorded for P&L and audit purposes.
type Trade struct {
	ID           string          `json:"id"`
	BacktestRunID string         `json:"backtestRunId,omitempty"`
	Symbol       string          `json:"symbol"`
	StrategyName string          `json:"strategyName"`
	Side         OrderSide       `json:"side"`
	Quantity     int64           `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Commission   decimal.Decimal `json:"commission"`
	PnL          decimal.Decimal `json:"pnl"`
	ExecutedAt   time.Time       `json:"executedAt"`
}

// VetoEvent records the first veto-chain gate an entry candidate failed.
type VetoEvent struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Strategy  string    `json:"strategy"`
	Kind      string    `json:"kind"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// RiskState is the process-local daily/weekly P&L and kill-switch state.
type RiskState struct {
	DailyPnL          decimal.Decimal `json:"dailyPnl"`
	WeeklyPnL         decimal.Decimal `json:"weeklyPnl"`
	EmergencyShutdown bool            `json:"emergencyShutdown"`
	DailyLimitTWD     decimal.Decimal `json:"dailyLimitTwd"`
	WeeklyLimitTWD    decimal.Decimal `json:"weeklyLimitTwd"`
	LastDailyReset    time.Time       `json:"lastDailyReset"`
	LastWeeklyReset   time.Time       `json:"lastWeeklyReset"`
}

// PerformanceMetrics are the metrics the Backtester computes for one
// (strategy, symbol) evaluation.
type PerformanceMetrics struct {
	TotalReturnPct  decimal.Decimal `json:"totalReturnPct"`
	SharpeRatio     decimal.Decimal `json:"sharpeRatio"`
	SortinoRatio    decimal.Decimal `json:"sortinoRatio"`
	CalmarRatio     decimal.Decimal `json:"calmarRatio"`
	WinRatePct      decimal.Decimal `json:"winRatePct"`
	MaxDrawdownPct  decimal.Decimal `json:"maxDrawdownPct"`
	TotalTrades     int             `json:"totalTrades"`
	AverageHoldBars decimal.Decimal `json:"averageHoldBars"`
	Fitness         decimal.Decimal `json:"fitness"`
	Valid           bool            `json:"valid"`
}

// EquityCurvePoint is one point of a backtest's equity-over-time series.
type EquityCurvePoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Equity    decimal.Decimal `json:"equity"`
	Drawdown  decimal.Decimal `json:"drawdown"`
}

// BacktestResult is the immutable output of one (strategy, symbol)
// evaluation within a backtest run.
type BacktestResult struct {
	BacktestRunID string              `json:"backtestRunId"`
	Symbol        string              `json:"symbol"`
	StrategyName  string              `json:"strategyName"`
	Metrics       PerformanceMetrics  `json:"metrics"`
	EquityCurve   []EquityCurvePoint  `json:"equityCurve"`
	StartedAt     time.Time           `json:"startedAt"`
	CompletedAt   time.Time           `json:"completedAt"`
}

// MonteCarloResult summarizes a bootstrap resample of a trade sequence.
type MonteCarloResult struct {
	Iterations      int             `json:"iterations"`
	MedianReturnPct decimal.Decimal `json:"medianReturnPct"`
	P5ReturnPct     decimal.Decimal `json:"p5ReturnPct"`
	P95ReturnPct    decimal.Decimal `json:"p95ReturnPct"`
	ProbabilityRuin decimal.Decimal `json:"probabilityRuin"`
}

// WalkForwardWindow is one train/test split of a walk-forward run.
type WalkForwardWindow struct {
	TrainStart     time.Time          `json:"trainStart"`
	TrainEnd       time.Time          `json:"trainEnd"`
	TestStart      time.Time          `json:"testStart"`
	TestEnd        time.Time          `json:"testEnd"`
	InSampleFit    decimal.Decimal    `json:"inSampleFitness"`
	OutSampleFit   decimal.Decimal    `json:"outSampleFitness"`
	Overfit        bool               `json:"overfit"`
	TestMetrics    PerformanceMetrics `json:"testMetrics"`
}

// WalkForwardResult is the full set of windows for one walk-forward run.
type WalkForwardResult struct {
	Windows          []WalkForwardWindow `json:"windows"`
	OverfitWarnings  int                 `json:"overfitWarnings"`
}

// EarningsBlackoutDate marks a symbol's upcoming earnings date, used by
// the blackout veto gate.
type EarningsBlackoutDate struct {
	Symbol        string    `json:"symbol"`
	EarningsDate  time.Time `json:"earningsDate"`
}

// DailyStatistics is one persisted row of end-of-day bookkeeping.
type DailyStatistics struct {
	Date          time.Time       `json:"date"`
	RealizedPnL   decimal.Decimal `json:"realizedPnl"`
	TradeCount    int             `json:"tradeCount"`
	WinCount      int             `json:"winCount"`
}
