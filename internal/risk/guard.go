// Package risk implements RiskGuard: process-local tracking of daily
// and weekly realized P&L against configured TWD limits, with an
// emergency-shutdown latch once either limit is breached. RiskGuard
// vetoes new entries but never forces an exit on its own; the engine
// decides what to do with an open book under emergency shutdown.
package risk

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config holds the TWD loss limits RiskGuard enforces.
type Config struct {
	DailyLimitTWD  decimal.Decimal
	WeeklyLimitTWD decimal.Decimal
	Location       *time.Location
}

// Guard tracks realized P&L since the last daily/weekly reset and
// trips EmergencyShutdown once a limit is breached.
type Guard struct {
	logger *zap.Logger

	mu                sync.Mutex
	config            Config
	dailyPnL          decimal.Decimal
	weeklyPnL         decimal.Decimal
	emergencyShutdown bool
	shutdownReason    string
	lastDailyReset    time.Time
	lastWeeklyReset   time.Time
}

// New builds a Guard that resets at local midnight (daily) and local
// Monday midnight (weekly) in config.Location.
func New(logger *zap.Logger, config Config) *Guard {
	if config.Location == nil {
		config.Location = time.UTC
	}
	now := time.Now().In(config.Location)
	return &Guard{
		logger:          logger.Named("risk"),
		config:          config,
		lastDailyReset:  startOfDay(now),
		lastWeeklyReset: startOfWeek(now),
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func startOfWeek(t time.Time) time.Time {
	sod := startOfDay(t)
	offset := (int(sod.Weekday()) + 6) % 7 // days since Monday
	return sod.AddDate(0, 0, -offset)
}

// RecordPnL adds a realized P&L delta and trips the shutdown latch if
// either limit is now breached. Rolls the daily/weekly window first if
// the wall clock has crossed a boundary since the last call.
func (g *Guard) RecordPnL(delta decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollWindowsLocked()

	g.dailyPnL = g.dailyPnL.Add(delta)
	g.weeklyPnL = g.weeklyPnL.Add(delta)

	if !g.emergencyShutdown {
		switch {
		case g.dailyPnL.Neg().GreaterThanOrEqual(g.config.DailyLimitTWD):
			g.trip("daily loss limit breached")
		case g.weeklyPnL.Neg().GreaterThanOrEqual(g.config.WeeklyLimitTWD):
			g.trip("weekly loss limit breached")
		}
	}
}

func (g *Guard) trip(reason string) {
	g.emergencyShutdown = true
	g.shutdownReason = reason
	g.logger.Error("emergency shutdown tripped", zap.String("reason", reason),
		zap.String("dailyPnL", g.dailyPnL.String()), zap.String("weeklyPnL", g.weeklyPnL.String()))
}

// rollWindowsLocked resets dailyPnL/weeklyPnL when the wall clock has
// crossed into a new day/week. Crossing a day boundary does not clear
// EmergencyShutdown; that requires an explicit operator Reset.
func (g *Guard) rollWindowsLocked() {
	now := time.Now().In(g.config.Location)
	if sod := startOfDay(now); sod.After(g.lastDailyReset) {
		g.dailyPnL = decimal.Zero
		g.lastDailyReset = sod
	}
	if sow := startOfWeek(now); sow.After(g.lastWeeklyReset) {
		g.weeklyPnL = decimal.Zero
		g.lastWeeklyReset = sow
	}
}

// IsDailyLimitExceeded reports whether today's realized loss has
// reached the configured daily limit.
func (g *Guard) IsDailyLimitExceeded() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dailyPnL.Neg().GreaterThanOrEqual(g.config.DailyLimitTWD)
}

// IsWeeklyLimitExceeded reports whether this week's realized loss has
// reached the configured weekly limit.
func (g *Guard) IsWeeklyLimitExceeded() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.weeklyPnL.Neg().GreaterThanOrEqual(g.config.WeeklyLimitTWD)
}

// EmergencyShutdown reports whether the kill switch has tripped, and
// if so why.
func (g *Guard) EmergencyShutdown() (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.emergencyShutdown, g.shutdownReason
}

// ResetShutdown clears the emergency-shutdown latch. Only an operator
// command through the control plane should call this.
func (g *Guard) ResetShutdown() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.emergencyShutdown = false
	g.shutdownReason = ""
	g.logger.Info("emergency shutdown cleared by operator")
}

// Snapshot is a durable point-in-time view of Guard's state, written
// to storage so weekly P&L survives a process restart.
type Snapshot struct {
	DailyPnL          decimal.Decimal `json:"dailyPnl"`
	WeeklyPnL         decimal.Decimal `json:"weeklyPnl"`
	EmergencyShutdown bool            `json:"emergencyShutdown"`
	LastDailyReset    time.Time       `json:"lastDailyReset"`
	LastWeeklyReset   time.Time       `json:"lastWeeklyReset"`
}

// Snapshot returns the current state for durable persistence.
func (g *Guard) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Snapshot{
		DailyPnL:          g.dailyPnL,
		WeeklyPnL:         g.weeklyPnL,
		EmergencyShutdown: g.emergencyShutdown,
		LastDailyReset:    g.lastDailyReset,
		LastWeeklyReset:   g.lastWeeklyReset,
	}
}

// Restore seeds Guard's state from a previously persisted Snapshot,
// used at process startup so weekly P&L tracking survives a restart.
func (g *Guard) Restore(s Snapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dailyPnL = s.DailyPnL
	g.weeklyPnL = s.WeeklyPnL
	g.emergencyShutdown = s.EmergencyShutdown
	g.lastDailyReset = s.LastDailyReset
	g.lastWeeklyReset = s.LastWeeklyReset
}
