// Package compliance implements ComplianceGuard, the single owner of
// every Taiwan-market-specific restriction rule: odd-lot day-trading
// capital gating, a retail short-sale ban in stock mode, and the
// earnings blackout window. Nothing else in the engine branches on
// trading mode; callers ask ComplianceGuard instead.
package compliance

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/twequity/trading-engine/pkg/types"
	"github.com/twequity/trading-engine/pkg/utils"
)

// DefaultDayTradeCapitalTWD is the minimum account capital required to
// day-trade odd lots.
var DefaultDayTradeCapitalTWD = decimal.NewFromInt(2_000_000)

// DefaultLotSize is the standard Taiwan stock board lot.
const DefaultLotSize = 1000

// DefaultBlackoutDays is how many trading days before an earnings date
// entries are suppressed.
const DefaultBlackoutDays = 1

// Config holds ComplianceGuard's thresholds.
type Config struct {
	Mode                 types.Mode
	DayTradeCapitalTWD   decimal.Decimal
	LotSize              int64
	BlackoutTradingDays  int
}

// DefaultConfig returns the default thresholds for stock mode.
func DefaultConfig() Config {
	return Config{
		Mode:                types.ModeStock,
		DayTradeCapitalTWD:  DefaultDayTradeCapitalTWD,
		LotSize:             DefaultLotSize,
		BlackoutTradingDays: DefaultBlackoutDays,
	}
}

// Candidate describes the entry candidate ComplianceGuard evaluates.
type Candidate struct {
	Symbol    string
	Direction types.Direction
	Quantity  int64
	Capital   decimal.Decimal // account capital available for day trading
	Intraday  bool            // true if this would be a same-day round trip
}

// Guard evaluates entry candidates against Taiwan-market restriction
// rules. Safe for concurrent use; its only mutable state is the
// earnings blackout calendar.
type Guard struct {
	mu       sync.RWMutex
	config   Config
	blackout map[string]time.Time // symbol -> next earnings date
}

// New builds a Guard with the given config (zero value uses
// DefaultConfig).
func New(config Config) *Guard {
	if config.LotSize == 0 {
		config = DefaultConfig()
	}
	return &Guard{config: config, blackout: make(map[string]time.Time)}
}

// SetBlackoutDates replaces the tracked earnings calendar.
func (g *Guard) SetBlackoutDates(dates []types.EarningsBlackoutDate) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.blackout = make(map[string]time.Time, len(dates))
	for _, d := range dates {
		g.blackout[d.Symbol] = d.EarningsDate
	}
}

// Check evaluates a Candidate and returns (ok, reason). reason is
// non-empty only when ok is false, formatted as a human-readable
// VetoEvent reason.
func (g *Guard) Check(c Candidate, asOf time.Time) (bool, string) {
	g.mu.RLock()
	cfg := g.config
	earnings, haveEarnings := g.blackout[c.Symbol]
	g.mu.RUnlock()

	if cfg.Mode == types.ModeStock && c.Direction == types.DirectionShort {
		return false, "retail short sale not permitted in stock mode"
	}

	if cfg.Mode == types.ModeStock && c.Intraday && c.Quantity%cfg.LotSize != 0 {
		if c.Capital.LessThan(cfg.DayTradeCapitalTWD) {
			return false, "Odd-lot day trading requires >= " + formatTWD(cfg.DayTradeCapitalTWD) + " capital"
		}
	}

	if haveEarnings && c.Direction.IsEntry() {
		if d := daysUntil(asOf, earnings); d >= 0 && d <= cfg.BlackoutTradingDays {
			return false, "entry suppressed: within earnings blackout window"
		}
	}

	return true, ""
}

// daysUntil steps whole days forward from asOf without passing
// earnings and counts the steps that land on a weekday (Monday to
// Friday); -1 if earnings is already past. Exchange holidays count as
// trading days.
func daysUntil(asOf, earnings time.Time) int {
	if earnings.Before(asOf) {
		return -1
	}
	days := 0
	for d := asOf.AddDate(0, 0, 1); !d.After(earnings); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days++
		}
	}
	return days
}

func formatTWD(v decimal.Decimal) string {
	return utils.GroupDigits(v.StringFixed(0))
}
