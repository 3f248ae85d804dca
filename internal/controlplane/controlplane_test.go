package controlplane

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type fakeEngine struct {
	paused    bool
	flattened int
	live      bool
	shareSize int64
	increment int64
	selected  string
	stats     GoLiveStats
}

func (f *fakeEngine) Pause()                           { f.paused = true }
func (f *fakeEngine) Resume()                          { f.paused = false }
func (f *fakeEngine) Flatten(ctx context.Context) error { f.flattened++; return nil }
func (f *fakeEngine) Shutdown(ctx context.Context) error { return nil }
func (f *fakeEngine) GoLiveStats() GoLiveStats          { return f.stats }
func (f *fakeEngine) SetLive(live bool) error           { f.live = live; return nil }
func (f *fakeEngine) SetShareSize(n int64) error        { f.shareSize = n; return nil }
func (f *fakeEngine) SetSizeIncrement(n int64) error    { f.increment = n; return nil }
func (f *fakeEngine) SelectStrategy(name string) error  { f.selected = name; return nil }
func (f *fakeEngine) ListStrategies() []string          { return []string{"ma_crossover", "rsi_reversion"} }
func (f *fakeEngine) Insight() string                   { return "status=running" }

func eligibleStats() GoLiveStats {
	return GoLiveStats{ClosedTrades: 25, WinRatePct: decimal.NewFromInt(60), MaxDrawdownPct: decimal.NewFromInt(3)}
}

func TestParseCommandGrammar(t *testing.T) {
	tests := []struct {
		line    string
		kind    Kind
		intArg  int64
		strArg  string
		wantErr bool
	}{
		{"pause", KindPause, 0, "", false},
		{"RESUME", KindResume, 0, "", false},
		{"changeshare 2000", KindChangeShare, 2000, "", false},
		{"changeshare", "", 0, "", true},
		{"changeshare abc", "", 0, "", true},
		{"changeincrement 500", KindChangeIncrement, 500, "", false},
		{"selectstrategy rsi_reversion", KindSelectStrategy, 0, "rsi_reversion", false},
		{"selectstrategy", "", 0, "", true},
		{"talk what is my exposure", KindTalk, 0, "what is my exposure", false},
		{"talk", "", 0, "", true},
		{"insight", KindInsight, 0, "", false},
		{"frobnicate", "", 0, "", true},
		{"", "", 0, "", true},
	}
	for _, tt := range tests {
		cmd, err := ParseCommand(tt.line)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseCommand(%q): expected error", tt.line)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseCommand(%q): %v", tt.line, err)
			continue
		}
		if cmd.Kind != tt.kind || cmd.IntArg != tt.intArg || cmd.StrArg != tt.strArg {
			t.Errorf("ParseCommand(%q) = %+v", tt.line, cmd)
		}
	}
}

func TestPauseResumeIdempotent(t *testing.T) {
	engine := &fakeEngine{}
	cp := New(zap.NewNop(), engine, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := cp.Dispatch(ctx, "pause"); err != nil {
			t.Fatal(err)
		}
	}
	if !engine.paused {
		t.Fatal("expected paused")
	}
	if _, err := cp.Dispatch(ctx, "resume"); err != nil {
		t.Fatal(err)
	}
	if engine.paused {
		t.Fatal("expected resumed")
	}
}

func TestGoLiveRequiresEligibility(t *testing.T) {
	engine := &fakeEngine{stats: GoLiveStats{ClosedTrades: 5}}
	cp := New(zap.NewNop(), engine, nil)

	if _, err := cp.Dispatch(context.Background(), "golive"); err == nil {
		t.Fatal("expected golive to fail below the eligibility bar")
	}
	if engine.live {
		t.Fatal("engine must not go live")
	}
}

func TestGoLiveTwoStepConfirmation(t *testing.T) {
	engine := &fakeEngine{stats: eligibleStats()}
	cp := New(zap.NewNop(), engine, nil)
	clock := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	cp.now = func() time.Time { return clock }
	ctx := context.Background()

	// confirmlive without a pending golive.
	if _, err := cp.Dispatch(ctx, "confirmlive"); err == nil {
		t.Fatal("expected confirmlive to fail with no pending request")
	}

	if _, err := cp.Dispatch(ctx, "golive"); err != nil {
		t.Fatal(err)
	}
	if engine.live {
		t.Fatal("golive alone must not switch live")
	}
	clock = clock.Add(5 * time.Minute)
	if _, err := cp.Dispatch(ctx, "confirmlive"); err != nil {
		t.Fatal(err)
	}
	if !engine.live {
		t.Fatal("expected live after confirmation within the window")
	}
}

func TestGoLiveConfirmationWindowExpires(t *testing.T) {
	engine := &fakeEngine{stats: eligibleStats()}
	cp := New(zap.NewNop(), engine, nil)
	clock := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	cp.now = func() time.Time { return clock }
	ctx := context.Background()

	if _, err := cp.Dispatch(ctx, "golive"); err != nil {
		t.Fatal(err)
	}
	clock = clock.Add(11 * time.Minute)
	if _, err := cp.Dispatch(ctx, "confirmlive"); err == nil {
		t.Fatal("expected expired confirmation window to be rejected")
	}
	if engine.live {
		t.Fatal("engine must not go live after the window expired")
	}
}

func TestBackToSimClearsPendingGoLive(t *testing.T) {
	engine := &fakeEngine{stats: eligibleStats()}
	cp := New(zap.NewNop(), engine, nil)
	ctx := context.Background()

	if _, err := cp.Dispatch(ctx, "golive"); err != nil {
		t.Fatal(err)
	}
	if _, err := cp.Dispatch(ctx, "backtosim"); err != nil {
		t.Fatal(err)
	}
	if _, err := cp.Dispatch(ctx, "confirmlive"); err == nil {
		t.Fatal("backtosim must cancel a pending golive")
	}
}

func TestChangeShareAndSelectStrategy(t *testing.T) {
	engine := &fakeEngine{}
	cp := New(zap.NewNop(), engine, nil)
	ctx := context.Background()

	if _, err := cp.Dispatch(ctx, "changeshare 3000"); err != nil {
		t.Fatal(err)
	}
	if engine.shareSize != 3000 {
		t.Fatalf("share size = %d", engine.shareSize)
	}
	if _, err := cp.Dispatch(ctx, "selectstrategy rsi_reversion"); err != nil {
		t.Fatal(err)
	}
	if engine.selected != "rsi_reversion" {
		t.Fatalf("selected = %q", engine.selected)
	}
	out, err := cp.Dispatch(ctx, "liststrategies")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "ma_crossover") {
		t.Fatalf("liststrategies output %q", out)
	}
}

func TestTalkWithoutAdvisor(t *testing.T) {
	cp := New(zap.NewNop(), &fakeEngine{}, nil)
	out, err := cp.Dispatch(context.Background(), "talk hello")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "no advisor") {
		t.Fatalf("unexpected talk response %q", out)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	token, err := IssueToken(secret, "operator", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	subject, err := VerifyToken(secret, token)
	if err != nil {
		t.Fatal(err)
	}
	if subject != "operator" {
		t.Fatalf("subject = %q", subject)
	}
	if _, err := VerifyToken([]byte("wrong-secret"), token); err == nil {
		t.Fatal("expected verification failure with the wrong secret")
	}
}
