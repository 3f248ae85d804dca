// Command engine is the trading engine's process entry point: it wires
// every subsystem together, drives the bar clock against the bridge,
// serves the operator API, and runs the nightly auto-selection cycle.
// Exit codes: 0 success, 1 precondition missing,
// 2 health check failed, 3 no progress observed.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/twequity/trading-engine/internal/api"
	"github.com/twequity/trading-engine/internal/autoselect"
	"github.com/twequity/trading-engine/internal/backtester"
	"github.com/twequity/trading-engine/internal/barstore"
	"github.com/twequity/trading-engine/internal/bridge"
	"github.com/twequity/trading-engine/internal/compliance"
	"github.com/twequity/trading-engine/internal/config"
	"github.com/twequity/trading-engine/internal/controlplane"
	"github.com/twequity/trading-engine/internal/correlation"
	"github.com/twequity/trading-engine/internal/engine"
	"github.com/twequity/trading-engine/internal/execution"
	"github.com/twequity/trading-engine/internal/llm"
	"github.com/twequity/trading-engine/internal/metrics"
	"github.com/twequity/trading-engine/internal/regime"
	"github.com/twequity/trading-engine/internal/risk"
	"github.com/twequity/trading-engine/internal/sizing"
	"github.com/twequity/trading-engine/internal/storage"
	"github.com/twequity/trading-engine/internal/stratmgr"
	"github.com/twequity/trading-engine/internal/strategy"
	"github.com/twequity/trading-engine/pkg/types"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	exitSuccess             = 0
	exitPreconditionMissing = 1
	exitHealthCheckFailed   = 2
	exitNoProgress          = 3
)

// defaultUniverse seeds the symbols the bar clock polls when no
// strategy_stock_mapping rows exist yet (first boot on an empty
// database).
var defaultUniverse = []string{"2330.TW"}

// barClockInterval is how often the bar clock polls the bridge for
// fresh ticks per symbol.
const barClockInterval = 1 * time.Minute

// noProgressGrace is how long the engine waits after startup for at
// least one bar before treating the run as making no progress.
const noProgressGrace = 5 * time.Minute

func main() {
	os.Exit(run())
}

func run() int {
	flags := pflag.NewFlagSet("engine", pflag.ContinueOnError)
	configPath := flags.String("config", "config.yaml", "path to the YAML config file")
	if err := flags.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitPreconditionMissing
	}

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return exitPreconditionMissing
	}

	logger := newLogger(cfg.Logging)
	defer logger.Sync()

	location, err := time.LoadLocation(cfg.Trading.Timezone)
	if err != nil {
		logger.Error("invalid timezone", zap.Error(err))
		return exitPreconditionMissing
	}

	store, err := storage.Open(cfg.Storage.DSN)
	if err != nil {
		logger.Error("failed to open storage", zap.Error(err))
		return exitPreconditionMissing
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bridgeClient := bridge.New(bridge.Config{
		URL:     cfg.Trading.Bridge.URL,
		Timeout: time.Duration(cfg.Trading.Bridge.TimeoutMs) * time.Millisecond,
	})
	if _, err := bridgeClient.Health(ctx); err != nil {
		logger.Error("bridge health check failed", zap.Error(err))
		return exitHealthCheckFailed
	}

	metricsReg := metrics.New(prometheus.DefaultRegisterer)

	bars := barstore.New(store)
	registry := strategy.NewRegistry()
	strategies := stratmgr.New(logger, registry)
	seedStrategyMappings(ctx, logger, store, strategies)

	regimeClf := regime.NewClassifier(logger, regime.DefaultConfig())

	complianceGuard := compliance.New(compliance.Config{
		Mode:                types.Mode(cfg.Trading.Mode),
		DayTradeCapitalTWD:  compliance.DefaultDayTradeCapitalTWD,
		LotSize:             cfg.Trading.LotSize,
		BlackoutTradingDays: compliance.DefaultBlackoutDays,
	})
	if cfg.Trading.BlackoutFile != "" {
		dates, err := compliance.LoadBlackoutFile(cfg.Trading.BlackoutFile, location)
		if err != nil {
			logger.Error("failed to load blackout calendar", zap.Error(err))
			return exitPreconditionMissing
		}
		if err := store.SetEarningsBlackouts(ctx, dates); err != nil {
			logger.Warn("failed to persist blackout calendar", zap.Error(err))
		}
	}
	if dates, err := store.EarningsBlackouts(ctx); err != nil {
		logger.Warn("failed to load earnings blackout dates", zap.Error(err))
	} else {
		complianceGuard.SetBlackoutDates(dates)
	}

	riskGuard := risk.New(logger, risk.Config{
		DailyLimitTWD:  cfg.Trading.Risk.DailyLossLimit,
		WeeklyLimitTWD: cfg.Trading.Risk.WeeklyLossLimit,
		Location:       location,
	})
	var snapshot risk.Snapshot
	if ok, err := store.LoadRiskSnapshot(ctx, &snapshot); err != nil {
		logger.Warn("failed to load risk snapshot", zap.Error(err))
	} else if ok {
		riskGuard.Restore(snapshot)
	}

	sizer := sizing.New(logger, sizing.DefaultConfig())
	correlationTracker := correlation.New()
	executor := execution.New(logger, bridgeClient, metricsReg)

	var advisor engine.Advisor
	var cpAdvisor controlplane.Advisor
	if cfg.LLM.Enabled {
		a := llm.New(logger, llm.Config{
			URL:     cfg.LLM.URL,
			Model:   cfg.LLM.Model,
			Timeout: time.Duration(cfg.LLM.TimeoutMs) * time.Millisecond,
		})
		advisor, cpAdvisor = a, a
	}

	eng := engine.New(logger, engine.Config{
		Mode:               types.Mode(cfg.Trading.Mode),
		Location:           location,
		WindowStart:        parseClockOffset(cfg.Trading.Window.Start),
		WindowEnd:          parseClockOffset(cfg.Trading.Window.End),
		StalenessThreshold: barClockInterval * 3,
		LotSize:            cfg.Trading.LotSize,
		InitialShares:      cfg.Trading.Stock.InitialShares,
		ShareIncrement:     cfg.Trading.Stock.ShareIncrement,
		InitialCapital:     cfg.Trading.Capital,
		MaxPositionPct:     cfg.Trading.Risk.MaxPosition,
		PerTradeLossLimit:  cfg.Trading.Risk.PerTradeLossLimit,
		MaxHoldMinutes:     cfg.Trading.Risk.MaxHoldMinutes,
	}, engine.Deps{
		Bars:        bars,
		Strategies:  strategies,
		Regime:      regimeClf,
		Compliance:  complianceGuard,
		Risk:        riskGuard,
		Correlation: correlationTracker,
		Sizer:       sizer,
		Executor:    executor,
		Bridge:      bridgeClient,
		Storage:     store,
		Metrics:     metricsReg,
		Advisor:     advisor,
	})

	cp := controlplane.New(logger, eng, cpAdvisor)
	apiServer := api.New(logger, api.Config{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		JWTSecret:    cfg.Server.JWTSecret,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, eng, cp)

	bt := backtester.New(logger, store)
	selector := autoselect.New(logger, store, strategies, autoselect.Thresholds{
		MinWinRatePct:  cfg.AutoSelection.MinWinRate,
		MinSharpe:      cfg.AutoSelection.MinSharpe,
		MinReturnPct:   cfg.AutoSelection.MinReturn,
		MaxDrawdownPct: cfg.AutoSelection.MaxDrawdown,
		ShadowCount:    cfg.AutoSelection.ShadowCount,
	})

	universe := loadUniverse(ctx, store)
	clock := bridge.NewBarClock(logger, bridgeClient, universe, barClockInterval, types.Timeframe1m)

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	progress := make(chan struct{}, 1)

	go func() {
		errCh <- apiServer.ListenAndServe(sigCtx)
	}()
	go func() {
		errCh <- clock.Run(sigCtx, func(bar types.Bar) error {
			if err := bars.Append(bar); err != nil {
				logger.Warn("bar rejected", zap.String("symbol", bar.Symbol), zap.Error(err))
				return nil
			}
			select {
			case progress <- struct{}{}:
			default:
			}
			if err := eng.OnBar(sigCtx, bar); err != nil {
				logger.Error("OnBar failed", zap.String("symbol", bar.Symbol), zap.Error(err))
			}
			apiServer.Broadcast(map[string]interface{}{
				"type":      "bar",
				"symbol":    bar.Symbol,
				"positions": eng.Positions(),
				"equity":    eng.Equity().String(),
			})
			return nil
		})
	}()
	go runNightlySelector(sigCtx, logger, store, bt, selector, registry, bars, cfg.AutoSelection.Cron)

	watchdog := time.NewTimer(noProgressGrace)
	defer watchdog.Stop()

	for {
		select {
		case <-sigCtx.Done():
			return shutdown(logger, eng, store, riskGuard)
		case err := <-errCh:
			if err != nil && err != context.Canceled {
				logger.Error("subsystem stopped unexpectedly", zap.Error(err))
			}
			return shutdown(logger, eng, store, riskGuard)
		case <-progress:
			watchdog.Reset(noProgressGrace)
		case <-watchdog.C:
			logger.Error("no bar progress observed within grace period")
			_ = shutdown(logger, eng, store, riskGuard)
			return exitNoProgress
		}
	}
}

func shutdown(logger *zap.Logger, eng *engine.Engine, store *storage.Store, riskGuard *risk.Guard) int {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := eng.Shutdown(ctx); err != nil {
		logger.Error("engine shutdown failed", zap.Error(err))
	}
	if err := store.SaveRiskSnapshot(ctx, riskGuard.Snapshot()); err != nil {
		logger.Warn("failed to persist risk snapshot", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return exitSuccess
}

// seedStrategyMappings installs whatever (symbol, strategy) pairing is
// currently marked active/shadow in storage, so a restart resumes
// trading the same configuration AutoSelector last promoted.
func seedStrategyMappings(ctx context.Context, logger *zap.Logger, store *storage.Store, strategies *stratmgr.Manager) {
	if active, ok, err := store.ActiveMapping(ctx); err != nil {
		logger.Warn("failed to load active mapping", zap.Error(err))
	} else if ok {
		if err := strategies.SetActive(active.Symbol, active.StrategyName); err != nil {
			logger.Warn("failed to restore active strategy", zap.Error(err))
		}
	}
	shadows, err := store.ShadowMappings(ctx)
	if err != nil {
		logger.Warn("failed to load shadow mappings", zap.Error(err))
		return
	}
	for _, m := range shadows {
		if err := strategies.SetShadow(m.Symbol, m.StrategyName); err != nil {
			logger.Warn("failed to restore shadow strategy", zap.String("symbol", m.Symbol), zap.Error(err))
		}
	}
}

// loadUniverse derives the set of symbols to poll from whatever
// strategy_stock_mapping rows already exist, falling back to
// defaultUniverse on a fresh database.
func loadUniverse(ctx context.Context, store *storage.Store) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(symbol string) {
		if _, ok := seen[symbol]; ok {
			return
		}
		seen[symbol] = struct{}{}
		out = append(out, symbol)
	}
	if active, ok, err := store.ActiveMapping(ctx); err == nil && ok {
		add(active.Symbol)
	}
	if shadows, err := store.ShadowMappings(ctx); err == nil {
		for _, m := range shadows {
			add(m.Symbol)
		}
	}
	if len(out) == 0 {
		return defaultUniverse
	}
	return out
}

// runNightlySelector sleeps until cronSpec's next "M H * * *" daily
// occurrence, runs a fresh backtest across the known universe and
// strategy registry, then lets AutoSelector promote the winner.
// A dedicated cron library never made it into this stack's dependency
// surface (none of the reference repos pulled one in), so this is a
// deliberately minimal daily-at-time scheduler rather than a general
// cron expression evaluator.
func runNightlySelector(ctx context.Context, logger *zap.Logger, store *storage.Store, bt *backtester.Backtester, selector *autoselect.Selector, registry *strategy.Registry, bars *barstore.Store, cronSpec string) {
	hour, minute, ok := parseDailyCron(cronSpec)
	if !ok {
		logger.Warn("unparseable auto_selection.cron, nightly selection disabled", zap.String("cron", cronSpec))
		return
	}
	for {
		wait := time.Until(nextOccurrence(time.Now(), hour, minute))
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		runID := fmt.Sprintf("run-%d", time.Now().UnixNano())
		jobs := buildBacktestJobs(runID, registry, bars)
		if len(jobs) == 0 {
			logger.Warn("no backtest jobs available, skipping nightly selection")
			continue
		}
		if _, err := bt.Run(ctx, jobs); err != nil {
			logger.Error("nightly backtest run failed", zap.Error(err))
			continue
		}
		if _, err := selector.Run(ctx); err != nil {
			logger.Warn("nightly auto-selection produced no promotion", zap.Error(err))
		}
	}
}

func buildBacktestJobs(runID string, registry *strategy.Registry, bars *barstore.Store) []backtester.Job {
	var jobs []backtester.Job
	for _, symbol := range bars.Symbols() {
		history := bars.Range(symbol, types.Timeframe1m, time.Time{}, time.Now())
		if len(history) == 0 {
			continue
		}
		for _, name := range registry.Names() {
			strategyName := name
			jobs = append(jobs, backtester.Job{
				StrategyName:  strategyName,
				Factory:       func() strategy.Strategy { s, _ := registry.New(strategyName); return s },
				Symbol:        symbol,
				Bars:          history,
				BacktestRunID: runID,
			})
		}
	}
	return jobs
}

// parseDailyCron accepts the minimal "M H * * *" subset of cron syntax
// the auto_selection.cron default ("0 18 * * *") uses.
func parseDailyCron(spec string) (hour, minute int, ok bool) {
	var dom, month, dow string
	n, err := fmt.Sscanf(spec, "%d %d %s %s %s", &minute, &hour, &dom, &month, &dow)
	if err != nil || n != 5 {
		return 0, 0, false
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

func nextOccurrence(from time.Time, hour, minute int) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), hour, minute, 0, 0, from.Location())
	if !next.After(from) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

// parseClockOffset parses "HH:MM" into a minutes-of-day duration.
func parseClockOffset(hhmm string) time.Duration {
	var h, m int
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &h, &m); err != nil {
		return 0
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
}

func newLogger(cfg config.LoggingConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	encoding := cfg.Format
	if encoding == "" {
		encoding = "console"
	}

	zcfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(level),
		Development: false,
		Encoding:    encoding,
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zcfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
