// Package autoselect implements AutoSelector: the nightly job that
// ranks the most recent Backtester run's results, promotes exactly one
// (symbol, strategy) pairing to live, installs the next N as shadow
// mappings, and drives StrategyManager's swap protocol so the promoted
// strategy is actually running before the next trading day opens.
package autoselect

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/twequity/trading-engine/internal/storage"
	"github.com/twequity/trading-engine/pkg/types"
)

// Thresholds are the minimum-eligibility gates a backtest result must
// clear before it can be promoted.
type Thresholds struct {
	MinWinRatePct  decimal.Decimal
	MinSharpe      decimal.Decimal
	MinReturnPct   decimal.Decimal
	MaxDrawdownPct decimal.Decimal
	ShadowCount    int
}

// DefaultThresholds returns the default selection gates.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinWinRatePct:  decimal.NewFromInt(50),
		MinSharpe:      decimal.NewFromFloat(0.5),
		MinReturnPct:   decimal.NewFromInt(10),
		MaxDrawdownPct: decimal.NewFromInt(20),
		ShadowCount:    5,
	}
}

// Engine is the subset of stratmgr.Manager AutoSelector drives to
// actually install the promoted mapping via the swap protocol.
type Engine interface {
	SetActive(symbol, strategyName string) error
	SetShadow(symbol, strategyName string) error
}

// Selector runs the nightly promotion cycle.
type Selector struct {
	logger     *zap.Logger
	storage    *storage.Store
	strategies Engine
	thresholds Thresholds
}

// New builds a Selector.
func New(logger *zap.Logger, store *storage.Store, strategies Engine, thresholds Thresholds) *Selector {
	if thresholds.ShadowCount == 0 {
		thresholds = DefaultThresholds()
	}
	return &Selector{logger: logger.Named("autoselect"), storage: store, strategies: strategies, thresholds: thresholds}
}

// eligible reports whether a BacktestResult clears every threshold
// gate.
func (s *Selector) eligible(r types.BacktestResult) bool {
	m := r.Metrics
	return m.Valid &&
		m.TotalTrades >= 10 &&
		m.WinRatePct.GreaterThan(s.thresholds.MinWinRatePct) &&
		m.SharpeRatio.GreaterThan(s.thresholds.MinSharpe) &&
		m.TotalReturnPct.GreaterThan(s.thresholds.MinReturnPct) &&
		m.MaxDrawdownPct.LessThan(s.thresholds.MaxDrawdownPct)
}

// Run loads the most recent backtest run's results, ranks the eligible
// ones by fitness, and atomically promotes the winner while installing
// the next ShadowCount rows as shadow mappings. On an empty eligible
// set it retains the previous configuration and returns ErrNoEligible
// rather than mutating anything.
func (s *Selector) Run(ctx context.Context) (*Promotion, error) {
	runID, err := s.storage.LatestRunID(ctx)
	if err != nil {
		return nil, fmt.Errorf("autoselect: load latest run id: %w", err)
	}
	if runID == "" {
		return nil, ErrNoEligible
	}
	results, err := s.storage.BacktestResultsForRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("autoselect: load results for run %s: %w", runID, err)
	}

	var eligible []types.BacktestResult
	for _, r := range results {
		if s.eligible(r) {
			eligible = append(eligible, r)
		}
	}
	if len(eligible) == 0 {
		s.logger.Warn("no eligible backtest results, retaining previous configuration", zap.String("runId", runID))
		return nil, ErrNoEligible
	}

	sort.Slice(eligible, func(i, j int) bool { return eligible[i].Metrics.Fitness.GreaterThan(eligible[j].Metrics.Fitness) })

	winner := eligible[0]
	shadowCandidates := eligible[1:]
	if len(shadowCandidates) > s.thresholds.ShadowCount {
		shadowCandidates = shadowCandidates[:s.thresholds.ShadowCount]
	}

	now := time.Now()
	if err := s.storage.ClearActiveMapping(ctx); err != nil {
		return nil, fmt.Errorf("autoselect: clear active mapping: %w", err)
	}
	if err := s.promote(ctx, winner, true, now); err != nil {
		return nil, err
	}
	for _, r := range shadowCandidates {
		if err := s.promote(ctx, r, false, now); err != nil {
			return nil, err
		}
	}

	if err := s.strategies.SetActive(winner.Symbol, winner.StrategyName); err != nil {
		return nil, fmt.Errorf("autoselect: swap active strategy: %w", err)
	}
	for _, r := range shadowCandidates {
		if err := s.strategies.SetShadow(r.Symbol, r.StrategyName); err != nil {
			s.logger.Error("failed to install shadow strategy", zap.String("symbol", r.Symbol), zap.String("strategy", r.StrategyName), zap.Error(err))
		}
	}

	s.logger.Info("auto-selection complete",
		zap.String("activeSymbol", winner.Symbol), zap.String("activeStrategy", winner.StrategyName),
		zap.String("fitness", winner.Metrics.Fitness.String()), zap.Int("shadowCount", len(shadowCandidates)))

	return &Promotion{Active: winner, Shadow: shadowCandidates}, nil
}

func (s *Selector) promote(ctx context.Context, r types.BacktestResult, active bool, at time.Time) error {
	m := types.StrategyStockMapping{
		Symbol: r.Symbol, StrategyName: r.StrategyName, IsActive: active,
		ConfidenceScore: r.Metrics.Fitness, TotalReturnPct: r.Metrics.TotalReturnPct, SharpeRatio: r.Metrics.SharpeRatio,
		WinRatePct: r.Metrics.WinRatePct, MaxDrawdownPct: r.Metrics.MaxDrawdownPct, TotalTrades: r.Metrics.TotalTrades,
		UpdatedAt: at,
	}
	return s.storage.SaveMapping(ctx, m)
}

// Promotion summarizes one run of Run.
type Promotion struct {
	Active types.BacktestResult
	Shadow []types.BacktestResult
}

// ErrNoEligible is returned when no backtest result clears every
// threshold gate.
var ErrNoEligible = fmt.Errorf("autoselect: no eligible backtest result in the most recent run")
