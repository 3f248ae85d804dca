package indicators

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/twequity/trading-engine/pkg/types"
)

func makeBars(closesIn []float64) []types.Bar {
	bars := make([]types.Bar, len(closesIn))
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	for i, c := range closesIn {
		d := decimal.NewFromFloat(c)
		bars[i] = types.Bar{
			Symbol:    "2330.TW",
			Timeframe: types.Timeframe1d,
			Timestamp: base.AddDate(0, 0, i),
			Open:      d,
			High:      d.Add(decimal.NewFromInt(1)),
			Low:       d.Sub(decimal.NewFromInt(1)),
			Close:     d,
			Volume:    1000,
		}
	}
	return bars
}

func TestSMAInsufficientData(t *testing.T) {
	bars := makeBars([]float64{1, 2, 3})
	if _, ok := SMA(bars, 5); ok {
		t.Fatalf("expected insufficient data for SMA(5) over 3 bars")
	}
}

func TestSMAFlatSeries(t *testing.T) {
	bars := makeBars([]float64{100, 100, 100, 100, 100})
	sma, ok := SMA(bars, 5)
	if !ok {
		t.Fatal("expected ok")
	}
	if !sma.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected 100, got %s", sma)
	}
}

func TestRSIUptrendIsHigh(t *testing.T) {
	closesIn := make([]float64, 20)
	for i := range closesIn {
		closesIn[i] = 100 + float64(i)
	}
	bars := makeBars(closesIn)
	rsi, ok := RSI(bars, 14)
	if !ok {
		t.Fatal("expected ok")
	}
	if rsi.LessThan(decimal.NewFromInt(70)) {
		t.Fatalf("expected strong uptrend RSI > 70, got %s", rsi)
	}
}

func TestBollingerFlatSeriesZeroWidth(t *testing.T) {
	bars := makeBars([]float64{50, 50, 50, 50, 50, 50, 50, 50, 50, 50, 50, 50, 50, 50, 50, 50, 50, 50, 50, 50})
	bb, ok := Bollinger(bars, 20, decimal.NewFromInt(2))
	if !ok {
		t.Fatal("expected ok")
	}
	if !bb.Upper.Equal(bb.Lower) {
		t.Fatalf("expected zero-width bands on flat series, got upper=%s lower=%s", bb.Upper, bb.Lower)
	}
}

func TestPivotPoints(t *testing.T) {
	prior := types.Bar{High: decimal.NewFromInt(110), Low: decimal.NewFromInt(90), Close: decimal.NewFromInt(100)}
	pp := Pivot(prior)
	if !pp.Pivot.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected pivot 100, got %s", pp.Pivot)
	}
}

func TestDrawdownFromPeak(t *testing.T) {
	bars := makeBars([]float64{100, 110, 120, 90})
	dd, ok := DrawdownFromPeak(bars, 4)
	if !ok {
		t.Fatal("expected ok")
	}
	expected := decimal.NewFromInt(120).Sub(decimal.NewFromInt(90)).Div(decimal.NewFromInt(120))
	if !dd.Equal(expected) {
		t.Fatalf("expected drawdown %s, got %s", expected, dd)
	}
}

func TestWilliamsRBounds(t *testing.T) {
	closesIn := make([]float64, 14)
	for i := range closesIn {
		closesIn[i] = 100 + float64(i)
	}
	wr, ok := WilliamsR(makeBars(closesIn), 14)
	if !ok {
		t.Fatal("expected ok")
	}
	if wr.LessThan(decimal.NewFromInt(-100)) || wr.GreaterThan(decimal.Zero) {
		t.Fatalf("Williams %%R out of [-100, 0]: %s", wr)
	}
	if wr.LessThan(decimal.NewFromInt(-20)) {
		t.Fatalf("expected near-zero %%R at the top of the range, got %s", wr)
	}
}

func TestROC(t *testing.T) {
	bars := makeBars([]float64{100, 101, 102, 103, 104, 105, 106, 107, 108, 109, 110})
	roc, ok := ROC(bars, 10)
	if !ok {
		t.Fatal("expected ok")
	}
	if !roc.Equal(decimal.NewFromFloat(0.1)) {
		t.Fatalf("expected ROC 0.1, got %s", roc)
	}
}

func TestDonchianExcludesCurrentBar(t *testing.T) {
	bars := makeBars([]float64{100, 100, 100, 100, 100, 200})
	dc, ok := Donchian(bars, 5)
	if !ok {
		t.Fatal("expected ok")
	}
	if !dc.Upper.Equal(decimal.NewFromInt(101)) {
		t.Fatalf("expected upper bound 101 excluding the breakout bar, got %s", dc.Upper)
	}
}

func TestOBVRisesWithUptrend(t *testing.T) {
	bars := makeBars([]float64{100, 101, 102, 103})
	obv, ok := OBV(bars)
	if !ok {
		t.Fatal("expected ok")
	}
	if !obv.Equal(decimal.NewFromInt(3000)) {
		t.Fatalf("expected OBV 3000 after three up closes of 1000 volume, got %s", obv)
	}
}

func TestMFIAllPositiveFlow(t *testing.T) {
	closesIn := make([]float64, 15)
	for i := range closesIn {
		closesIn[i] = 100 + float64(i)
	}
	mfi, ok := MFI(makeBars(closesIn), 14)
	if !ok {
		t.Fatal("expected ok")
	}
	if !mfi.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected MFI 100 with no negative flow, got %s", mfi)
	}
}

func TestCMFRange(t *testing.T) {
	bars := makeBars([]float64{100, 102, 101, 103, 104, 102, 105, 106, 104, 107})
	cmf, ok := CMF(bars, 10)
	if !ok {
		t.Fatal("expected ok")
	}
	if cmf.LessThan(decimal.NewFromInt(-1)) || cmf.GreaterThan(decimal.NewFromInt(1)) {
		t.Fatalf("CMF out of [-1, 1]: %s", cmf)
	}
}
