// Package regime classifies the current market regime for a symbol
// from its recent bar history and exposes the position-size scale
// factor and strategy-family fitness that follow from that
// classification. Classification is a deterministic rule cascade, not
// a learned model: ADX/DI for trend strength and direction,
// annualized log-return volatility for stress, SMA(50)/SMA(200) for
// the prevailing direction, and a 60-bar drawdown for crisis
// detection.
package regime

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/twequity/trading-engine/internal/indicators"
	"github.com/twequity/trading-engine/pkg/types"
)

// Regime is one of the five classifications this build recognizes.
type Regime string

const (
	RegimeCrisis        Regime = "CRISIS"
	RegimeHighVolatility Regime = "HIGH_VOLATILITY"
	RegimeTrendingUp     Regime = "TRENDING_UP"
	RegimeTrendingDown   Regime = "TRENDING_DOWN"
	RegimeRanging        Regime = "RANGING"
	RegimeUnknown        Regime = "UNKNOWN"
)

// State is the classifier's output for one symbol as of its most
// recent bar.
type State struct {
	Symbol     string          `json:"symbol"`
	Regime     Regime          `json:"regime"`
	ADX        decimal.Decimal `json:"adx"`
	Volatility decimal.Decimal `json:"volatility"`
	Drawdown   decimal.Decimal `json:"drawdown"`
	SMA50      decimal.Decimal `json:"sma50"`
	SMA200     decimal.Decimal `json:"sma200"`
	AsOf       time.Time       `json:"asOf"`
}

// Config thresholds drive the classification cascade, evaluated in
// priority order CRISIS > HIGH_VOLATILITY > TRENDING_UP/DOWN >
// RANGING.
type Config struct {
	ADXPeriod       int
	VolatilityWindow int
	DrawdownWindow  int
	ADXTrendMin     decimal.Decimal
	VolatilityHigh  decimal.Decimal
	CrisisDrawdown  decimal.Decimal
	CrisisVol       decimal.Decimal
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		ADXPeriod:        14,
		VolatilityWindow: 20,
		DrawdownWindow:   60,
		ADXTrendMin:      decimal.NewFromInt(25),
		VolatilityHigh:   decimal.NewFromFloat(0.30),
		CrisisDrawdown:   decimal.NewFromFloat(0.15),
		CrisisVol:        decimal.NewFromFloat(0.50),
	}
}

// Classifier holds per-symbol bar history and the most recent State.
type Classifier struct {
	logger *zap.Logger
	config Config

	mu     sync.RWMutex
	bars   map[string][]types.Bar
	states map[string]State
}

// NewClassifier builds a Classifier with the given config (zero value
// uses DefaultConfig).
func NewClassifier(logger *zap.Logger, config Config) *Classifier {
	if config.ADXPeriod == 0 {
		config = DefaultConfig()
	}
	return &Classifier{
		logger: logger.Named("regime"),
		config: config,
		bars:   make(map[string][]types.Bar),
		states: make(map[string]State),
	}
}

const maxHistory = 500

// OnBar feeds a new bar for bar.Symbol and returns the refreshed
// classification. Bars must arrive in timestamp order per symbol.
func (c *Classifier) OnBar(bar types.Bar) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	hist := append(c.bars[bar.Symbol], bar)
	if len(hist) > maxHistory {
		hist = hist[len(hist)-maxHistory:]
	}
	c.bars[bar.Symbol] = hist

	state := c.classify(bar.Symbol, hist)
	c.states[bar.Symbol] = state
	return state
}

// Current returns the last computed state for symbol, or RegimeUnknown
// if no bar has been observed yet.
func (c *Classifier) Current(symbol string) State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.states[symbol]
	if !ok {
		return State{Symbol: symbol, Regime: RegimeUnknown}
	}
	return s
}

func (c *Classifier) classify(symbol string, bars []types.Bar) State {
	now := bars[len(bars)-1].Timestamp

	adxResult, haveADX := indicators.ADX(bars, c.config.ADXPeriod)
	vol, haveVol := indicators.AnnualizedVolatility(bars, c.config.VolatilityWindow)
	dd, haveDD := indicators.DrawdownFromPeak(bars, c.config.DrawdownWindow)
	sma50, have50 := indicators.SMA(bars, 50)
	sma200, have200 := indicators.SMA(bars, 200)

	state := State{Symbol: symbol, Regime: RegimeUnknown, ADX: adxResult.ADX, Volatility: vol, Drawdown: dd, SMA50: sma50, SMA200: sma200, AsOf: now}

	if !haveADX || !haveVol {
		return state
	}

	switch {
	// Either signal alone is a crisis: extreme volatility or a deep
	// drawdown from the recent peak.
	case vol.GreaterThanOrEqual(c.config.CrisisVol) || (haveDD && dd.GreaterThanOrEqual(c.config.CrisisDrawdown)):
		state.Regime = RegimeCrisis
	case vol.GreaterThanOrEqual(c.config.VolatilityHigh):
		state.Regime = RegimeHighVolatility
	case adxResult.ADX.GreaterThanOrEqual(c.config.ADXTrendMin) && adxResult.PlusDI.GreaterThan(adxResult.MinusDI):
		state.Regime = RegimeTrendingUp
	case adxResult.ADX.GreaterThanOrEqual(c.config.ADXTrendMin) && adxResult.MinusDI.GreaterThan(adxResult.PlusDI):
		state.Regime = RegimeTrendingDown
	case have50 && have200 && sma50.GreaterThan(sma200):
		state.Regime = RegimeTrendingUp
	case have50 && have200 && sma50.LessThan(sma200):
		state.Regime = RegimeTrendingDown
	default:
		state.Regime = RegimeRanging
	}
	return state
}

// PositionScale returns the fraction of normal position size
// appropriate for regime: full size in an uptrend,
// progressively less as conditions deteriorate, zero in a crisis.
func PositionScale(r Regime) decimal.Decimal {
	switch r {
	case RegimeTrendingUp:
		return decimal.NewFromFloat(1.0)
	case RegimeRanging:
		return decimal.NewFromFloat(0.7)
	case RegimeTrendingDown:
		return decimal.NewFromFloat(0.5)
	case RegimeHighVolatility:
		return decimal.NewFromFloat(0.3)
	case RegimeCrisis:
		return decimal.Zero
	default:
		return decimal.NewFromFloat(0.5)
	}
}

// Fitness scores how well a strategy family suits a regime in [0, 1],
// used by StrategyManager/AutoSelector to prefer regime-appropriate
// strategies when multiple candidates rank similarly on backtest
// performance alone.
func Fitness(r Regime, strategyType types.StrategyType) decimal.Decimal {
	switch r {
	case RegimeTrendingUp, RegimeTrendingDown:
		if strategyType == types.StrategySwing || strategyType == types.StrategyLongTerm {
			return decimal.NewFromFloat(0.9)
		}
		return decimal.NewFromFloat(0.5)
	case RegimeRanging:
		if strategyType == types.StrategyShortTerm || strategyType == types.StrategyIntraday {
			return decimal.NewFromFloat(0.85)
		}
		return decimal.NewFromFloat(0.4)
	case RegimeHighVolatility:
		return decimal.NewFromFloat(0.3)
	case RegimeCrisis:
		return decimal.Zero
	default:
		return decimal.NewFromFloat(0.5)
	}
}
