// Package utils provides small numeric and ID-generation helpers shared
// across the trading engine.
package utils

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GenerateID generates a unique ID with an optional prefix.
func GenerateID(prefix string) string {
	id := uuid.New().String()
	if prefix != "" {
		return fmt.Sprintf("%s_%s", prefix, id)
	}
	return id
}

// GenerateOrderID generates a unique order ID.
func GenerateOrderID() string { return GenerateID("ord") }

// GenerateTradeID generates a unique trade ID.
func GenerateTradeID() string { return GenerateID("trd") }

// GenerateVetoID generates a unique veto-event ID.
func GenerateVetoID() string { return GenerateID("veto") }

// GenerateRunID generates a unique backtest run ID.
func GenerateRunID() string { return GenerateID("run") }

// FormatSymbol normalizes a Taiwan equity symbol to its canonical form,
// e.g. " 2330 " -> "2330.TW".
func FormatSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if !strings.Contains(symbol, ".") {
		return symbol + ".TW"
	}
	return symbol
}

// FormatTWD formats a decimal as a TWD amount, e.g. "NT$20,000".
func FormatTWD(d decimal.Decimal) string {
	return "NT$" + GroupDigits(d.StringFixed(0))
}

// GroupDigits inserts comma thousands separators into a plain integer
// string, preserving any leading sign.
func GroupDigits(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// RoundToLot rounds a share quantity down to the nearest multiple of
// lotSize (1000 for regular Taiwan stock board lots, 1 for odd-lot or
// futures contracts).
func RoundToLot(qty int64, lotSize int64) int64 {
	if lotSize <= 1 {
		return qty
	}
	return (qty / lotSize) * lotSize
}

// CalculatePercentageChange calculates percentage change between two values.
func CalculatePercentageChange(old, new decimal.Decimal) decimal.Decimal {
	if old.IsZero() {
		return decimal.Zero
	}
	return new.Sub(old).Div(old).Mul(decimal.NewFromInt(100))
}

// CalculateReturns calculates simple returns from a price series.
func CalculateReturns(prices []decimal.Decimal) []decimal.Decimal {
	if len(prices) < 2 {
		return nil
	}
	returns := make([]decimal.Decimal, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1].IsZero() {
			returns[i-1] = decimal.Zero
		} else {
			returns[i-1] = prices[i].Sub(prices[i-1]).Div(prices[i-1])
		}
	}
	return returns
}

// CalculateLogReturns calculates log returns from a price series.
func CalculateLogReturns(prices []decimal.Decimal) []decimal.Decimal {
	if len(prices) < 2 {
		return nil
	}
	returns := make([]decimal.Decimal, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		p0 := prices[i-1].InexactFloat64()
		p1 := prices[i].InexactFloat64()
		if p0 <= 0 {
			returns[i-1] = decimal.Zero
			continue
		}
		returns[i-1] = decimal.NewFromFloat(math.Log(p1 / p0))
	}
	return returns
}

// CalculateMean calculates the mean of decimal values.
func CalculateMean(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(values))))
}

// CalculateStdDev calculates the sample standard deviation of decimal values.
func CalculateStdDev(values []decimal.Decimal) decimal.Decimal {
	if len(values) < 2 {
		return decimal.Zero
	}
	mean := CalculateMean(values)
	sumSquares := decimal.Zero
	for _, v := range values {
		diff := v.Sub(mean)
		sumSquares = sumSquares.Add(diff.Mul(diff))
	}
	variance := sumSquares.Div(decimal.NewFromInt(int64(len(values) - 1)))
	return SqrtDecimal(variance)
}

// SqrtDecimal computes a square root via Newton's method, since
// shopspring/decimal has no native Sqrt.
func SqrtDecimal(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.IsZero() {
		return decimal.Zero
	}
	x := d
	two := decimal.NewFromInt(2)
	for i := 0; i < 32; i++ {
		next := x.Add(d.Div(x)).Div(two)
		if next.Sub(x).Abs().LessThan(decimal.NewFromFloat(1e-12)) {
			return next
		}
		x = next
	}
	return x
}

// CalculateSharpeRatio annualizes mean/stddev of a return series.
func CalculateSharpeRatio(returns []decimal.Decimal, riskFreeRate decimal.Decimal, periodsPerYear int) decimal.Decimal {
	if len(returns) < 2 {
		return decimal.Zero
	}
	meanReturn := CalculateMean(returns)
	stdDev := CalculateStdDev(returns)
	if stdDev.IsZero() {
		return decimal.Zero
	}
	annualizationFactor := decimal.NewFromFloat(math.Sqrt(float64(periodsPerYear)))
	excessReturn := meanReturn.Sub(riskFreeRate.Div(decimal.NewFromInt(int64(periodsPerYear))))
	return excessReturn.Div(stdDev).Mul(annualizationFactor)
}

// CalculateSortinoRatio annualizes mean return over downside deviation only.
func CalculateSortinoRatio(returns []decimal.Decimal, riskFreeRate decimal.Decimal, periodsPerYear int) decimal.Decimal {
	if len(returns) < 2 {
		return decimal.Zero
	}
	meanReturn := CalculateMean(returns)
	var downside []decimal.Decimal
	for _, r := range returns {
		if r.IsNegative() {
			downside = append(downside, r)
		}
	}
	if len(downside) == 0 {
		return decimal.Zero
	}
	downDev := CalculateStdDev(downside)
	if downDev.IsZero() {
		return decimal.Zero
	}
	annualizationFactor := decimal.NewFromFloat(math.Sqrt(float64(periodsPerYear)))
	excessReturn := meanReturn.Sub(riskFreeRate.Div(decimal.NewFromInt(int64(periodsPerYear))))
	return excessReturn.Div(downDev).Mul(annualizationFactor)
}

// CalculateMaxDrawdown calculates the maximum peak-to-trough drawdown
// fraction from an equity curve.
func CalculateMaxDrawdown(equity []decimal.Decimal) decimal.Decimal {
	if len(equity) < 2 {
		return decimal.Zero
	}
	maxDrawdown := decimal.Zero
	peak := equity[0]
	for _, value := range equity {
		if value.GreaterThan(peak) {
			peak = value
		}
		if peak.IsZero() {
			continue
		}
		drawdown := peak.Sub(value).Div(peak)
		if drawdown.GreaterThan(maxDrawdown) {
			maxDrawdown = drawdown
		}
	}
	return maxDrawdown
}

// CalculateWinRate calculates the fraction of positive P&L values.
func CalculateWinRate(pnls []decimal.Decimal) decimal.Decimal {
	if len(pnls) == 0 {
		return decimal.Zero
	}
	wins := 0
	for _, pnl := range pnls {
		if pnl.GreaterThan(decimal.Zero) {
			wins++
		}
	}
	return decimal.NewFromInt(int64(wins)).Div(decimal.NewFromInt(int64(len(pnls))))
}

// TimeRange is an inclusive-start, inclusive-end wall-clock interval.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Duration returns the length of the range.
func (tr TimeRange) Duration() time.Duration { return tr.End.Sub(tr.Start) }

// Contains reports whether t falls within [Start, End].
func (tr TimeRange) Contains(t time.Time) bool {
	return (t.Equal(tr.Start) || t.After(tr.Start)) && (t.Equal(tr.End) || t.Before(tr.End))
}

// MinDecimal returns the smaller of two decimals.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// MaxDecimal returns the larger of two decimals.
func MaxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// ClampDecimal clamps value into [min, max].
func ClampDecimal(value, min, max decimal.Decimal) decimal.Decimal {
	if value.LessThan(min) {
		return min
	}
	if value.GreaterThan(max) {
		return max
	}
	return value
}

// RetryConfig configures exponential backoff retry.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
}

// DefaultRetryConfig is the bridge client's default policy: three
// attempts, backing off 1s then 2s between them.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		Multiplier:   2.0,
	}
}

// Retry retries fn up to config.MaxAttempts times with exponential
// backoff delay = InitialDelay * Multiplier^(attempt-1), honoring ctx
// cancellation between attempts.
func Retry[T any](ctx context.Context, config RetryConfig, fn func() (T, error)) (T, error) {
	var result T
	var err error
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		result, err = fn()
		if err == nil {
			return result, nil
		}
		if attempt == config.MaxAttempts {
			break
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, ctx.Err()
		case <-timer.C:
		}
		delay = time.Duration(float64(delay) * config.Multiplier)
	}
	return result, fmt.Errorf("after %d attempts: %w", config.MaxAttempts, err)
}

// EMA is an incremental exponential moving average.
type EMA struct {
	multiplier decimal.Decimal
	current    decimal.Decimal
	count      int
}

// NewEMA creates an EMA calculator for the given period.
func NewEMA(period int) *EMA {
	mult := decimal.NewFromFloat(2.0 / float64(period+1))
	return &EMA{multiplier: mult}
}

// Add feeds a new value and returns the updated EMA.
func (e *EMA) Add(value decimal.Decimal) decimal.Decimal {
	e.count++
	if e.count == 1 {
		e.current = value
		return e.current
	}
	e.current = value.Sub(e.current).Mul(e.multiplier).Add(e.current)
	return e.current
}

// Current returns the last computed EMA value.
func (e *EMA) Current() decimal.Decimal { return e.current }

// SMA is an incremental simple moving average over a bounded window.
type SMA struct {
	period int
	values []decimal.Decimal
	sum    decimal.Decimal
}

// NewSMA creates an SMA calculator for the given period.
func NewSMA(period int) *SMA {
	return &SMA{period: period, values: make([]decimal.Decimal, 0, period)}
}

// Add feeds a new value and returns the updated SMA.
func (s *SMA) Add(value decimal.Decimal) decimal.Decimal {
	s.values = append(s.values, value)
	s.sum = s.sum.Add(value)
	if len(s.values) > s.period {
		s.sum = s.sum.Sub(s.values[0])
		s.values = s.values[1:]
	}
	return s.Current()
}

// Current returns the last computed SMA value.
func (s *SMA) Current() decimal.Decimal {
	if len(s.values) == 0 {
		return decimal.Zero
	}
	return s.sum.Div(decimal.NewFromInt(int64(len(s.values))))
}

// Ready reports whether the window is full.
func (s *SMA) Ready() bool { return len(s.values) >= s.period }
