package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func testGuard(t *testing.T) *Guard {
	t.Helper()
	return New(zap.NewNop(), Config{
		DailyLimitTWD:  decimal.NewFromInt(50000),
		WeeklyLimitTWD: decimal.NewFromInt(150000),
		Location:       time.UTC,
	})
}

func TestRecordPnLWithinLimits(t *testing.T) {
	g := testGuard(t)
	g.RecordPnL(decimal.NewFromInt(-10000))
	if g.IsDailyLimitExceeded() {
		t.Fatal("expected daily limit not exceeded")
	}
	if ok, _ := g.EmergencyShutdown(); ok {
		t.Fatal("expected no emergency shutdown")
	}
}

func TestDailyLimitTripsShutdown(t *testing.T) {
	g := testGuard(t)
	g.RecordPnL(decimal.NewFromInt(-60000))
	if !g.IsDailyLimitExceeded() {
		t.Fatal("expected daily limit exceeded")
	}
	ok, reason := g.EmergencyShutdown()
	if !ok {
		t.Fatal("expected emergency shutdown tripped")
	}
	if reason == "" {
		t.Fatal("expected a shutdown reason")
	}
}

func TestWeeklyLimitTripsShutdown(t *testing.T) {
	g := testGuard(t)
	g.RecordPnL(decimal.NewFromInt(-20000))
	if ok, _ := g.EmergencyShutdown(); ok {
		t.Fatal("expected no shutdown yet")
	}
	g.RecordPnL(decimal.NewFromInt(-65000))
	g.RecordPnL(decimal.NewFromInt(-65000))
	if !g.IsWeeklyLimitExceeded() {
		t.Fatal("expected weekly limit exceeded after cumulative losses")
	}
}

func TestResetShutdownClearsLatch(t *testing.T) {
	g := testGuard(t)
	g.RecordPnL(decimal.NewFromInt(-60000))
	g.ResetShutdown()
	if ok, _ := g.EmergencyShutdown(); ok {
		t.Fatal("expected shutdown cleared after ResetShutdown")
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	g := testGuard(t)
	g.RecordPnL(decimal.NewFromInt(-12345))
	snap := g.Snapshot()

	g2 := testGuard(t)
	g2.Restore(snap)
	if !g2.IsDailyLimitExceeded() && g.IsDailyLimitExceeded() {
		t.Fatal("expected restored guard to mirror original's limit state")
	}
	snap2 := g2.Snapshot()
	if !snap2.DailyPnL.Equal(snap.DailyPnL) {
		t.Fatalf("expected restored dailyPnL %s, got %s", snap.DailyPnL, snap2.DailyPnL)
	}
}
