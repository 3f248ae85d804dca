package strategy

import "sort"

// Registry maps stable strategy names to factories. StrategyManager
// uses it to instantiate the active and shadow strategy sets and to
// let AutoSelector swap strategies by name alone.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry builds a Registry pre-populated with every strategy
// family this build implements.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	for _, b := range builtins() {
		r.Register(b.name, b.factory)
	}
	return r
}

// Register adds or replaces a factory under name.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// New instantiates a fresh Strategy by name. ok is false for an
// unknown name, the ValidationFailure case callers must reject at
// ingress.
func (r *Registry) New(name string) (Strategy, bool) {
	f, ok := r.factories[name]
	if !ok {
		return nil, false
	}
	return f(), true
}

// Names returns every registered strategy name, sorted, so callers get
// a stable iteration order for lexicographic tie-breaking.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type builtin struct {
	name    string
	factory Factory
}

// builtins lists every strategy this build ships. The registry pattern means
// adding another strategy is a one-line addition here.
func builtins() []builtin {
	return []builtin{
		// Trend-following
		{"ma_crossover", func() Strategy { return NewMACrossover() }},
		{"triple_ema", func() Strategy { return NewTripleEMA() }},
		{"adx_trend", func() Strategy { return NewADXTrend() }},
		{"ichimoku", func() Strategy { return NewIchimoku() }},
		{"keltner_breakout", func() Strategy { return NewKeltnerBreakout() }},
		{"donchian_breakout", func() Strategy { return NewDonchianBreakout() }},
		{"supertrend", func() Strategy { return NewSupertrend() }},
		{"parabolic_sar", func() Strategy { return NewParabolicSAR() }},
		{"golden_cross", func() Strategy { return NewGoldenCross() }},
		{"dema_trend", func() Strategy { return NewDEMATrend() }},
		// Mean-reversion
		{"bollinger_reversion", func() Strategy { return NewBollingerReversion() }},
		{"rsi_reversion", func() Strategy { return NewRSIReversion() }},
		{"stochastic_reversion", func() Strategy { return NewStochasticReversion() }},
		{"pivot_reversion", func() Strategy { return NewPivotReversion() }},
		{"atr_channel_reversion", func() Strategy { return NewATRChannelReversion() }},
		{"cci_reversion", func() Strategy { return NewCCIReversion() }},
		{"williams_r_reversion", func() Strategy { return NewWilliamsRReversion() }},
		{"zscore_reversion", func() Strategy { return NewZScoreReversion() }},
		{"gap_fade", func() Strategy { return NewGapFade() }},
		{"keltner_reversion", func() Strategy { return NewKeltnerReversion() }},
		// Momentum
		{"momentum_pct", func() Strategy { return NewMomentumPercent() }},
		{"macd_momentum", func() Strategy { return NewMACDMomentum() }},
		{"balance_of_power", func() Strategy { return NewBalanceOfPower() }},
		{"aroon", func() Strategy { return NewAroon() }},
		{"roc_momentum", func() Strategy { return NewROCMomentum() }},
		{"obv_momentum", func() Strategy { return NewOBVMomentum() }},
		{"mfi_momentum", func() Strategy { return NewMFIMomentum() }},
		{"macd_zero_cross", func() Strategy { return NewMACDZeroCross() }},
		{"rsi_trend", func() Strategy { return NewRSITrend() }},
		// Volume
		{"volume_breakout", func() Strategy { return NewVolumeBreakout() }},
		{"price_volume_trend", func() Strategy { return NewPriceVolumeTrend() }},
		{"chaikin_flow", func() Strategy { return NewChaikinFlow() }},
		{"volume_spike_fade", func() Strategy { return NewVolumeSpikeFade() }},
		// Microstructure
		{"order_flow_imbalance", func() Strategy { return NewOrderFlowImbalance() }},
		// Execution
		{"vwap_execution", func() Strategy { return NewVWAPExecution() }},
		{"twap_execution", func() Strategy { return NewTWAPExecution() }},
		// Intraday patterns
		{"opening_range_breakout", func() Strategy { return NewOpeningRangeBreakout() }},
		{"vwap_reversion", func() Strategy { return NewVWAPReversion() }},
		{"atr_trailing_stop", func() Strategy { return NewATRTrailingStop() }},
		{"chandelier_exit", func() Strategy { return NewChandelierExit() }},
		{"heikin_ashi_trend", func() Strategy { return NewHeikinAshiTrend() }},
		{"three_bar_reversal", func() Strategy { return NewThreeBarReversal() }},
		// Long-horizon
		{"dca", func() Strategy { return NewDCA() }},
		{"rebalancing", func() Strategy { return NewRebalancing() }},
		{"drip", func() Strategy { return NewDRIP() }},
		{"tax_loss_harvest", func() Strategy { return NewTaxLossHarvest() }},
		{"pairs_arb", func() Strategy { return NewPairsArb() }},
		{"dual_momentum", func() Strategy { return NewDualMomentum() }},
		{"profitability_factor", func() Strategy { return NewProfitabilityFactor() }},
		// Sentiment
		{"news_sentiment", func() Strategy { return NewNewsSentiment() }},
	}
}
