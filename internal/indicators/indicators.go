// Package indicators provides stateless numeric primitives over bar
// series: moving averages, oscillators, bands, and trend-strength
// measures. Every function is a pure transform of its inputs; no
// indicator holds state across calls, unlike the incremental SMA/EMA
// helpers in pkg/utils which strategies use for their own rolling
// state.
package indicators

import (
	"github.com/shopspring/decimal"
	"github.com/twequity/trading-engine/pkg/types"
	"github.com/twequity/trading-engine/pkg/utils"
)

func closes(bars []types.Bar) []decimal.Decimal {
	out := make([]decimal.Decimal, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// SMA returns the simple moving average of the last `period` closes.
// Returns (zero, false) if fewer than period bars are available.
func SMA(bars []types.Bar, period int) (decimal.Decimal, bool) {
	if len(bars) < period {
		return decimal.Zero, false
	}
	window := closes(bars)[len(bars)-period:]
	return utils.CalculateMean(window), true
}

// EMA computes the exponential moving average of the full close series,
// seeded from the first value. Returns (zero, false) if bars is empty.
func EMA(bars []types.Bar, period int) (decimal.Decimal, bool) {
	if len(bars) == 0 {
		return decimal.Zero, false
	}
	e := utils.NewEMA(period)
	var v decimal.Decimal
	for _, b := range bars {
		v = e.Add(b.Close)
	}
	return v, true
}

// RSI computes the Relative Strength Index over `period` bars from the
// simple average gain and loss of the last period closes (no Wilder
// smoothing). Returns (zero, false) with fewer than period+1 bars.
func RSI(bars []types.Bar, period int) (decimal.Decimal, bool) {
	if len(bars) < period+1 {
		return decimal.Zero, false
	}
	c := closes(bars)
	gain := decimal.Zero
	loss := decimal.Zero
	start := len(c) - period - 1
	for i := start + 1; i <= start+period; i++ {
		delta := c[i].Sub(c[i-1])
		if delta.IsPositive() {
			gain = gain.Add(delta)
		} else {
			loss = loss.Add(delta.Abs())
		}
	}
	avgGain := gain.Div(decimal.NewFromInt(int64(period)))
	avgLoss := loss.Div(decimal.NewFromInt(int64(period)))
	if avgLoss.IsZero() {
		return decimal.NewFromInt(100), true
	}
	rs := avgGain.Div(avgLoss)
	hundred := decimal.NewFromInt(100)
	rsi := hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(rs)))
	return rsi, true
}

// MACDResult holds the MACD line, signal line, and histogram.
type MACDResult struct {
	MACD      decimal.Decimal
	Signal    decimal.Decimal
	Histogram decimal.Decimal
}

// MACD computes the standard 12/26/9 (or custom) MACD over the series.
func MACD(bars []types.Bar, fast, slow, signal int) (MACDResult, bool) {
	if len(bars) < slow+signal {
		return MACDResult{}, false
	}
	fastEMA := utils.NewEMA(fast)
	slowEMA := utils.NewEMA(slow)
	signalEMA := utils.NewEMA(signal)
	var macdLine decimal.Decimal
	for _, b := range bars {
		f := fastEMA.Add(b.Close)
		s := slowEMA.Add(b.Close)
		macdLine = f.Sub(s)
		signalEMA.Add(macdLine)
	}
	sig := signalEMA.Current()
	return MACDResult{MACD: macdLine, Signal: sig, Histogram: macdLine.Sub(sig)}, true
}

// BollingerBands holds the middle/upper/lower band values.
type BollingerBands struct {
	Middle decimal.Decimal
	Upper  decimal.Decimal
	Lower  decimal.Decimal
}

// Bollinger computes Bollinger Bands over `period` bars at `numStdDev`
// standard deviations.
func Bollinger(bars []types.Bar, period int, numStdDev decimal.Decimal) (BollingerBands, bool) {
	if len(bars) < period {
		return BollingerBands{}, false
	}
	window := closes(bars)[len(bars)-period:]
	mid := utils.CalculateMean(window)
	std := utils.CalculateStdDev(window)
	offset := std.Mul(numStdDev)
	return BollingerBands{Middle: mid, Upper: mid.Add(offset), Lower: mid.Sub(offset)}, true
}

// ATR computes the Average True Range over `period` bars.
func ATR(bars []types.Bar, period int) (decimal.Decimal, bool) {
	if len(bars) < period+1 {
		return decimal.Zero, false
	}
	trs := make([]decimal.Decimal, 0, period)
	start := len(bars) - period
	for i := start; i < len(bars); i++ {
		prevClose := bars[i-1].Close
		hi := bars[i].High
		lo := bars[i].Low
		tr1 := hi.Sub(lo)
		tr2 := hi.Sub(prevClose).Abs()
		tr3 := lo.Sub(prevClose).Abs()
		tr := utils.MaxDecimal(tr1, utils.MaxDecimal(tr2, tr3))
		trs = append(trs, tr)
	}
	return utils.CalculateMean(trs), true
}

// ADXResult holds ADX and the directional indicators.
type ADXResult struct {
	ADX     decimal.Decimal
	PlusDI  decimal.Decimal
	MinusDI decimal.Decimal
}

// ADX computes the Average Directional Index plus +DI/-DI over `period`
// bars using Wilder smoothing.
func ADX(bars []types.Bar, period int) (ADXResult, bool) {
	if len(bars) < period*2+1 {
		return ADXResult{}, false
	}
	n := len(bars)
	plusDM := make([]decimal.Decimal, 0, n)
	minusDM := make([]decimal.Decimal, 0, n)
	trs := make([]decimal.Decimal, 0, n)
	for i := 1; i < n; i++ {
		upMove := bars[i].High.Sub(bars[i-1].High)
		downMove := bars[i-1].Low.Sub(bars[i].Low)
		switch {
		case upMove.GreaterThan(downMove) && upMove.IsPositive():
			plusDM = append(plusDM, upMove)
			minusDM = append(minusDM, decimal.Zero)
		case downMove.GreaterThan(upMove) && downMove.IsPositive():
			plusDM = append(plusDM, decimal.Zero)
			minusDM = append(minusDM, downMove)
		default:
			plusDM = append(plusDM, decimal.Zero)
			minusDM = append(minusDM, decimal.Zero)
		}
		tr1 := bars[i].High.Sub(bars[i].Low)
		tr2 := bars[i].High.Sub(bars[i-1].Close).Abs()
		tr3 := bars[i].Low.Sub(bars[i-1].Close).Abs()
		trs = append(trs, utils.MaxDecimal(tr1, utils.MaxDecimal(tr2, tr3)))
	}

	smoothedTR := wilderSmooth(trs, period)
	smoothedPlusDM := wilderSmooth(plusDM, period)
	smoothedMinusDM := wilderSmooth(minusDM, period)

	dxs := make([]decimal.Decimal, 0, len(smoothedTR))
	var plusDI, minusDI decimal.Decimal
	for i := range smoothedTR {
		if smoothedTR[i].IsZero() {
			dxs = append(dxs, decimal.Zero)
			continue
		}
		plusDI = smoothedPlusDM[i].Div(smoothedTR[i]).Mul(decimal.NewFromInt(100))
		minusDI = smoothedMinusDM[i].Div(smoothedTR[i]).Mul(decimal.NewFromInt(100))
		sum := plusDI.Add(minusDI)
		if sum.IsZero() {
			dxs = append(dxs, decimal.Zero)
			continue
		}
		dxs = append(dxs, plusDI.Sub(minusDI).Abs().Div(sum).Mul(decimal.NewFromInt(100)))
	}
	if len(dxs) < period {
		return ADXResult{}, false
	}
	adx := utils.CalculateMean(dxs[len(dxs)-period:])
	return ADXResult{ADX: adx, PlusDI: plusDI, MinusDI: minusDI}, true
}

// wilderSmooth applies Wilder's running-sum smoothing over period-sized
// chunks, returning one smoothed value per bar from period onward.
func wilderSmooth(values []decimal.Decimal, period int) []decimal.Decimal {
	if len(values) < period {
		return nil
	}
	out := make([]decimal.Decimal, 0, len(values)-period+1)
	sum := decimal.Zero
	for i := 0; i < period; i++ {
		sum = sum.Add(values[i])
	}
	out = append(out, sum)
	for i := period; i < len(values); i++ {
		sum = sum.Sub(sum.Div(decimal.NewFromInt(int64(period)))).Add(values[i])
		out = append(out, sum)
	}
	return out
}

// StochasticResult holds %K and %D.
type StochasticResult struct {
	K decimal.Decimal
	D decimal.Decimal
}

// Stochastic computes the %K/%D stochastic oscillator over `period`
// bars with a `dPeriod`-bar smoothing of %K.
func Stochastic(bars []types.Bar, period, dPeriod int) (StochasticResult, bool) {
	if len(bars) < period+dPeriod {
		return StochasticResult{}, false
	}
	ks := make([]decimal.Decimal, 0, dPeriod)
	for offset := dPeriod - 1; offset >= 0; offset-- {
		window := bars[len(bars)-period-offset : len(bars)-offset]
		hi, lo := window[0].High, window[0].Low
		for _, b := range window {
			hi = utils.MaxDecimal(hi, b.High)
			lo = utils.MinDecimal(lo, b.Low)
		}
		denom := hi.Sub(lo)
		c := window[len(window)-1].Close
		if denom.IsZero() {
			ks = append(ks, decimal.NewFromInt(50))
			continue
		}
		ks = append(ks, c.Sub(lo).Div(denom).Mul(decimal.NewFromInt(100)))
	}
	k := ks[len(ks)-1]
	d := utils.CalculateMean(ks)
	return StochasticResult{K: k, D: d}, true
}

// PivotPoints holds the classic daily pivot and support/resistance levels.
type PivotPoints struct {
	Pivot decimal.Decimal
	R1    decimal.Decimal
	S1    decimal.Decimal
	R2    decimal.Decimal
	S2    decimal.Decimal
}

// Pivot computes the classic floor-trader pivot points from the prior
// bar's high/low/close.
func Pivot(prior types.Bar) PivotPoints {
	three := decimal.NewFromInt(3)
	p := prior.High.Add(prior.Low).Add(prior.Close).Div(three)
	rng := prior.High.Sub(prior.Low)
	return PivotPoints{
		Pivot: p,
		R1:    p.Mul(decimal.NewFromInt(2)).Sub(prior.Low),
		S1:    p.Mul(decimal.NewFromInt(2)).Sub(prior.High),
		R2:    p.Add(rng),
		S2:    p.Sub(rng),
	}
}

// KeltnerChannel holds the middle/upper/lower channel bounds.
type KeltnerChannel struct {
	Middle decimal.Decimal
	Upper  decimal.Decimal
	Lower  decimal.Decimal
}

// Keltner computes a Keltner Channel: EMA(period) midline +/-
// multiplier*ATR(period).
func Keltner(bars []types.Bar, period int, multiplier decimal.Decimal) (KeltnerChannel, bool) {
	mid, ok := EMA(bars, period)
	if !ok {
		return KeltnerChannel{}, false
	}
	atr, ok := ATR(bars, period)
	if !ok {
		return KeltnerChannel{}, false
	}
	offset := atr.Mul(multiplier)
	return KeltnerChannel{Middle: mid, Upper: mid.Add(offset), Lower: mid.Sub(offset)}, true
}

// AnnualizedVolatility computes the standard deviation of log returns
// over the last `period` bars, annualized by sqrt(252).
func AnnualizedVolatility(bars []types.Bar, period int) (decimal.Decimal, bool) {
	if len(bars) < period+1 {
		return decimal.Zero, false
	}
	window := closes(bars)[len(bars)-period-1:]
	returns := utils.CalculateLogReturns(window)
	std := utils.CalculateStdDev(returns)
	return std.Mul(utils.SqrtDecimal(decimal.NewFromInt(252))), true
}

// DrawdownFromPeak computes the fractional drawdown of the last close
// from the peak close over the last `period` bars.
func DrawdownFromPeak(bars []types.Bar, period int) (decimal.Decimal, bool) {
	if len(bars) < period {
		return decimal.Zero, false
	}
	window := bars[len(bars)-period:]
	peak := window[0].Close
	for _, b := range window {
		peak = utils.MaxDecimal(peak, b.Close)
	}
	if peak.IsZero() {
		return decimal.Zero, true
	}
	last := window[len(window)-1].Close
	return peak.Sub(last).Div(peak), true
}

func typicalPrice(b types.Bar) decimal.Decimal {
	return b.High.Add(b.Low).Add(b.Close).Div(decimal.NewFromInt(3))
}

// CCI computes the Commodity Channel Index over `period` bars using the
// classic 0.015 scaling constant and mean absolute deviation.
func CCI(bars []types.Bar, period int) (decimal.Decimal, bool) {
	if len(bars) < period {
		return decimal.Zero, false
	}
	window := bars[len(bars)-period:]
	tps := make([]decimal.Decimal, len(window))
	for i, b := range window {
		tps[i] = typicalPrice(b)
	}
	mean := utils.CalculateMean(tps)
	mad := decimal.Zero
	for _, tp := range tps {
		mad = mad.Add(tp.Sub(mean).Abs())
	}
	mad = mad.Div(decimal.NewFromInt(int64(period)))
	if mad.IsZero() {
		return decimal.Zero, true
	}
	return tps[len(tps)-1].Sub(mean).Div(mad.Mul(decimal.NewFromFloat(0.015))), true
}

// WilliamsR computes Williams %R over `period` bars, in [-100, 0].
func WilliamsR(bars []types.Bar, period int) (decimal.Decimal, bool) {
	if len(bars) < period {
		return decimal.Zero, false
	}
	window := bars[len(bars)-period:]
	hi, lo := window[0].High, window[0].Low
	for _, b := range window {
		hi = utils.MaxDecimal(hi, b.High)
		lo = utils.MinDecimal(lo, b.Low)
	}
	rng := hi.Sub(lo)
	if rng.IsZero() {
		return decimal.NewFromInt(-50), true
	}
	c := window[len(window)-1].Close
	return hi.Sub(c).Div(rng).Mul(decimal.NewFromInt(-100)), true
}

// ROC computes the rate of change of close over `period` bars as a
// fraction (0.05 = +5%).
func ROC(bars []types.Bar, period int) (decimal.Decimal, bool) {
	if len(bars) < period+1 {
		return decimal.Zero, false
	}
	base := bars[len(bars)-period-1].Close
	if base.IsZero() {
		return decimal.Zero, false
	}
	return bars[len(bars)-1].Close.Sub(base).Div(base), true
}

// DonchianChannel holds the highest-high / lowest-low bounds.
type DonchianChannel struct {
	Upper  decimal.Decimal
	Lower  decimal.Decimal
	Middle decimal.Decimal
}

// Donchian computes the Donchian Channel over the last `period` bars,
// excluding the current (most recent) bar so a breakout of the channel
// is observable on that bar.
func Donchian(bars []types.Bar, period int) (DonchianChannel, bool) {
	if len(bars) < period+1 {
		return DonchianChannel{}, false
	}
	window := bars[len(bars)-period-1 : len(bars)-1]
	hi, lo := window[0].High, window[0].Low
	for _, b := range window {
		hi = utils.MaxDecimal(hi, b.High)
		lo = utils.MinDecimal(lo, b.Low)
	}
	return DonchianChannel{Upper: hi, Lower: lo, Middle: hi.Add(lo).Div(decimal.NewFromInt(2))}, true
}

// OBV computes On-Balance Volume over the series: volume added on up
// closes, subtracted on down closes.
func OBV(bars []types.Bar) (decimal.Decimal, bool) {
	if len(bars) < 2 {
		return decimal.Zero, false
	}
	obv := decimal.Zero
	for i := 1; i < len(bars); i++ {
		v := decimal.NewFromInt(bars[i].Volume)
		switch {
		case bars[i].Close.GreaterThan(bars[i-1].Close):
			obv = obv.Add(v)
		case bars[i].Close.LessThan(bars[i-1].Close):
			obv = obv.Sub(v)
		}
	}
	return obv, true
}

// MFI computes the Money Flow Index over `period` bars, the
// volume-weighted analogue of RSI, in [0, 100].
func MFI(bars []types.Bar, period int) (decimal.Decimal, bool) {
	if len(bars) < period+1 {
		return decimal.Zero, false
	}
	posFlow, negFlow := decimal.Zero, decimal.Zero
	start := len(bars) - period
	for i := start; i < len(bars); i++ {
		tp := typicalPrice(bars[i])
		prevTP := typicalPrice(bars[i-1])
		flow := tp.Mul(decimal.NewFromInt(bars[i].Volume))
		switch {
		case tp.GreaterThan(prevTP):
			posFlow = posFlow.Add(flow)
		case tp.LessThan(prevTP):
			negFlow = negFlow.Add(flow)
		}
	}
	if negFlow.IsZero() {
		return decimal.NewFromInt(100), true
	}
	ratio := posFlow.Div(negFlow)
	hundred := decimal.NewFromInt(100)
	return hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(ratio))), true
}

// CMF computes the Chaikin Money Flow over `period` bars, in [-1, 1].
func CMF(bars []types.Bar, period int) (decimal.Decimal, bool) {
	if len(bars) < period {
		return decimal.Zero, false
	}
	window := bars[len(bars)-period:]
	mfvSum, volSum := decimal.Zero, decimal.Zero
	for _, b := range window {
		rng := b.High.Sub(b.Low)
		vol := decimal.NewFromInt(b.Volume)
		volSum = volSum.Add(vol)
		if rng.IsZero() {
			continue
		}
		mult := b.Close.Sub(b.Low).Sub(b.High.Sub(b.Close)).Div(rng)
		mfvSum = mfvSum.Add(mult.Mul(vol))
	}
	if volSum.IsZero() {
		return decimal.Zero, true
	}
	return mfvSum.Div(volSum), true
}
