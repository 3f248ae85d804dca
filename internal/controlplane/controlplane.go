// Package controlplane implements ControlPlane: the single serialized
// command channel from the outside world (Telegram transport, the
// operator HTTP API) into the engine. It owns command parsing, the
// go-live eligibility gate, and JWT bearer authentication for the
// commands that cross a process boundary; it holds no trading state of
// its own; every command is a synchronous call into the Engine it was
// built with, and Engine's own mutex is what actually serializes state
// transitions.
package controlplane

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Kind enumerates the command grammar.
type Kind string

const (
	KindPause            Kind = "pause"
	KindResume           Kind = "resume"
	KindFlatten          Kind = "flatten"
	KindShutdown         Kind = "shutdown"
	KindGoLive           Kind = "golive"
	KindConfirmLive      Kind = "confirmlive"
	KindBackToSim        Kind = "backtosim"
	KindChangeShare      Kind = "changeshare"
	KindChangeIncrement  Kind = "changeincrement"
	KindSelectStrategy   Kind = "selectstrategy"
	KindListStrategies   Kind = "liststrategies"
	KindTalk             Kind = "talk"
	KindInsight          Kind = "insight"
)

// Command is one parsed instruction from the grammar:
//
//	pause | resume | flatten | shutdown | golive | confirmlive | backtosim |
//	changeshare <int> | changeincrement <int> | selectstrategy <name> |
//	liststrategies | talk <string> | insight
type Command struct {
	Kind     Kind
	IntArg   int64
	StrArg   string
}

// ParseCommand parses one line of input against the grammar.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("controlplane: empty command")
	}
	kind := Kind(strings.ToLower(fields[0]))
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))

	switch kind {
	case KindPause, KindResume, KindFlatten, KindShutdown, KindGoLive, KindConfirmLive, KindBackToSim, KindListStrategies, KindInsight:
		return Command{Kind: kind}, nil
	case KindChangeShare, KindChangeIncrement:
		if len(fields) < 2 {
			return Command{}, fmt.Errorf("controlplane: %s requires an integer argument", kind)
		}
		n, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return Command{}, fmt.Errorf("controlplane: %s: invalid integer %q: %w", kind, fields[1], err)
		}
		return Command{Kind: kind, IntArg: n}, nil
	case KindSelectStrategy:
		if len(fields) < 2 {
			return Command{}, fmt.Errorf("controlplane: selectstrategy requires a strategy name")
		}
		return Command{Kind: kind, StrArg: fields[1]}, nil
	case KindTalk:
		if rest == "" {
			return Command{}, fmt.Errorf("controlplane: talk requires a message")
		}
		return Command{Kind: kind, StrArg: rest}, nil
	default:
		return Command{}, fmt.Errorf("controlplane: unknown command %q", fields[0])
	}
}

// GoLiveStats is the subset of live performance the eligibility gate
// checks against.
type GoLiveStats struct {
	ClosedTrades   int
	WinRatePct     decimal.Decimal
	MaxDrawdownPct decimal.Decimal
}

// EligibleForLive reports whether stats clears the go-live bar of
// closedTrades >= 20, winRate >= 55%, maxDrawdown <= 5%.
func EligibleForLive(stats GoLiveStats) (bool, string) {
	if stats.ClosedTrades < 20 {
		return false, fmt.Sprintf("closed trades %d < 20", stats.ClosedTrades)
	}
	if stats.WinRatePct.LessThan(decimal.NewFromInt(55)) {
		return false, fmt.Sprintf("win rate %s%% < 55%%", stats.WinRatePct.StringFixed(1))
	}
	if stats.MaxDrawdownPct.GreaterThan(decimal.NewFromInt(5)) {
		return false, fmt.Sprintf("max drawdown %s%% > 5%%", stats.MaxDrawdownPct.StringFixed(1))
	}
	return true, ""
}

// Engine is the subset of the trading engine ControlPlane drives.
// Every method must itself be safe to call from outside the engine's
// own tick loop; the engine is responsible for applying the mutation
// between ticks, never inside one.
type Engine interface {
	Pause()
	Resume()
	Flatten(ctx context.Context) error
	Shutdown(ctx context.Context) error
	GoLiveStats() GoLiveStats
	SetLive(live bool) error
	SetShareSize(n int64) error
	SetSizeIncrement(n int64) error
	SelectStrategy(name string) error
	ListStrategies() []string
	Insight() string
}

// Advisor is the optional LLM advisor talk/insight routes through.
// Nil if no advisor is configured; ControlPlane then answers talk with
// a "no advisor configured" notice rather than failing the command.
type Advisor interface {
	Ask(ctx context.Context, message string) (string, error)
}

// confirmWindow is how long a golive request remains pending before it
// must be re-issued.
const confirmWindow = 10 * time.Minute

// ControlPlane serializes commands into Engine calls and tracks the
// two-step go-live confirmation handshake.
type ControlPlane struct {
	logger  *zap.Logger
	engine  Engine
	advisor Advisor

	mu            sync.Mutex
	pendingLiveAt time.Time
	now           func() time.Time
}

// New builds a ControlPlane driving engine, optionally routing talk
// and insight through advisor.
func New(logger *zap.Logger, engine Engine, advisor Advisor) *ControlPlane {
	return &ControlPlane{logger: logger.Named("controlplane"), engine: engine, advisor: advisor, now: time.Now}
}

// Dispatch parses and executes one command line, returning a
// human-readable acknowledgement.
func (cp *ControlPlane) Dispatch(ctx context.Context, line string) (string, error) {
	cmd, err := ParseCommand(line)
	if err != nil {
		return "", err
	}
	return cp.Execute(ctx, cmd)
}

// Execute runs a parsed Command against Engine.
func (cp *ControlPlane) Execute(ctx context.Context, cmd Command) (string, error) {
	cp.logger.Info("command received", zap.String("kind", string(cmd.Kind)))
	switch cmd.Kind {
	case KindPause:
		cp.engine.Pause()
		return "paused", nil
	case KindResume:
		cp.engine.Resume()
		return "resumed", nil
	case KindFlatten:
		if err := cp.engine.Flatten(ctx); err != nil {
			return "", err
		}
		return "flattened", nil
	case KindShutdown:
		if err := cp.engine.Shutdown(ctx); err != nil {
			return "", err
		}
		return "shutting down", nil
	case KindGoLive:
		return cp.goLive()
	case KindConfirmLive:
		return cp.confirmLive()
	case KindBackToSim:
		cp.mu.Lock()
		cp.pendingLiveAt = time.Time{}
		cp.mu.Unlock()
		if err := cp.engine.SetLive(false); err != nil {
			return "", err
		}
		return "back in simulation mode", nil
	case KindChangeShare:
		if err := cp.engine.SetShareSize(cmd.IntArg); err != nil {
			return "", err
		}
		return fmt.Sprintf("per-trade share size set to %d", cmd.IntArg), nil
	case KindChangeIncrement:
		if err := cp.engine.SetSizeIncrement(cmd.IntArg); err != nil {
			return "", err
		}
		return fmt.Sprintf("size increment set to %d", cmd.IntArg), nil
	case KindSelectStrategy:
		if err := cp.engine.SelectStrategy(cmd.StrArg); err != nil {
			return "", err
		}
		return fmt.Sprintf("active strategy set to %s", cmd.StrArg), nil
	case KindListStrategies:
		return strings.Join(cp.engine.ListStrategies(), ", "), nil
	case KindInsight:
		return cp.engine.Insight(), nil
	case KindTalk:
		if cp.advisor == nil {
			return "no advisor configured", nil
		}
		return cp.advisor.Ask(ctx, cmd.StrArg)
	default:
		return "", fmt.Errorf("controlplane: unhandled command kind %q", cmd.Kind)
	}
}

// goLive is step one of the two-step live confirmation: validate
// eligibility and open a 10-minute confirmation window.
func (cp *ControlPlane) goLive() (string, error) {
	stats := cp.engine.GoLiveStats()
	ok, reason := EligibleForLive(stats)
	if !ok {
		return "", fmt.Errorf("controlplane: not eligible for live trading: %s", reason)
	}
	cp.mu.Lock()
	cp.pendingLiveAt = cp.now()
	cp.mu.Unlock()
	return "eligible for live trading; send confirmlive within 10 minutes to proceed", nil
}

// confirmLive is step two: if a golive request is still within its
// confirmation window, switch the engine live.
func (cp *ControlPlane) confirmLive() (string, error) {
	cp.mu.Lock()
	pending := cp.pendingLiveAt
	cp.pendingLiveAt = time.Time{}
	cp.mu.Unlock()

	if pending.IsZero() {
		return "", fmt.Errorf("controlplane: no pending golive request")
	}
	if cp.now().Sub(pending) > confirmWindow {
		return "", fmt.Errorf("controlplane: golive confirmation window expired, re-issue golive")
	}
	if err := cp.engine.SetLive(true); err != nil {
		return "", err
	}
	return "now trading live", nil
}

// claims is the JWT payload issued to an authenticated operator.
type claims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

// IssueToken mints a bearer token for subject, valid for ttl, signed
// with secret.
func IssueToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(secret)
}

// VerifyToken validates a bearer token against secret and returns its
// subject.
func VerifyToken(secret []byte, tokenString string) (string, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("controlplane: unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("controlplane: invalid token: %w", err)
	}
	return c.Subject, nil
}
