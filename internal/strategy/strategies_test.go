package strategy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/twequity/trading-engine/pkg/types"
)

// Every builtin must produce the identical signal sequence when run
// twice over the same bars from a fresh Reset.
func TestAllBuiltinsDeterministic(t *testing.T) {
	r := NewRegistry()
	bars := makeTrendingBars("2330.TW", 120, 100, 0.8)
	for _, name := range r.Names() {
		s, _ := r.New(name)
		first := make([]types.TradeSignal, 0, len(bars))
		for _, b := range bars {
			first = append(first, s.Execute(emptyPortfolio(), b))
		}
		s.Reset()
		for i, b := range bars {
			got := s.Execute(emptyPortfolio(), b)
			want := first[i]
			if got.Direction != want.Direction || !got.Confidence.Equal(want.Confidence) || got.Reason != want.Reason {
				t.Fatalf("%s: bar %d differs between runs: first %+v, second %+v", name, i, want, got)
			}
		}
	}
}

func TestAllBuiltinsWarmUpNeutral(t *testing.T) {
	r := NewRegistry()
	bar := makeTrendingBars("2330.TW", 1, 100, 0)[0]
	for _, name := range r.Names() {
		s, _ := r.New(name)
		sig := s.Execute(emptyPortfolio(), bar)
		if sig.Direction.IsEntry() && sig.Confidence.GreaterThanOrEqual(DefaultEntryThreshold) {
			t.Errorf("%s: emitted actionable entry on its very first bar: %+v", name, sig)
		}
	}
}

func TestDonchianBreakoutSignalsOnNewHigh(t *testing.T) {
	s := NewDonchianBreakout()
	bars := makeTrendingBars("2330.TW", s.Period+1, 100, 0)
	for _, b := range bars {
		s.Execute(emptyPortfolio(), b)
	}
	breakout := bars[len(bars)-1]
	breakout.Close = decimal.NewFromInt(120)
	breakout.High = decimal.NewFromInt(121)
	sig := s.Execute(emptyPortfolio(), breakout)
	if sig.Direction != types.DirectionLong {
		t.Fatalf("expected LONG on Donchian breakout, got %s (%s)", sig.Direction, sig.Reason)
	}
}

func TestGapFadeShortsGapUp(t *testing.T) {
	s := NewGapFade()
	bars := makeTrendingBars("2330.TW", 2, 100, 0)
	s.Execute(emptyPortfolio(), bars[0])
	gapped := bars[1]
	gapped.Open = decimal.NewFromInt(105)
	gapped.Close = decimal.NewFromInt(105)
	sig := s.Execute(emptyPortfolio(), gapped)
	if sig.Direction != types.DirectionShort {
		t.Fatalf("expected SHORT fading a 5%% gap up, got %s (%s)", sig.Direction, sig.Reason)
	}
}

func TestZScoreReversionBuysStretchedLow(t *testing.T) {
	s := NewZScoreReversion()
	bars := makeTrendingBars("2330.TW", s.Period-1, 100, 0.1)
	for _, b := range bars {
		s.Execute(emptyPortfolio(), b)
	}
	crash := makeTrendingBars("2330.TW", 1, 80, 0)[0]
	sig := s.Execute(emptyPortfolio(), crash)
	if sig.Direction != types.DirectionLong {
		t.Fatalf("expected LONG on deep z-score stretch, got %s (%s)", sig.Direction, sig.Reason)
	}
}

func TestVolumeBreakoutNeedsSpike(t *testing.T) {
	s := NewVolumeBreakout()
	bars := makeTrendingBars("2330.TW", s.Period+1, 100, 0.5)
	var last types.TradeSignal
	for _, b := range bars {
		last = s.Execute(emptyPortfolio(), b)
	}
	if last.Direction != types.DirectionNeutral {
		t.Fatalf("expected NEUTRAL without a volume spike, got %s", last.Direction)
	}
	spike := makeTrendingBars("2330.TW", 1, 112, 0)[0]
	spike.Open = decimal.NewFromInt(110)
	spike.Volume = 10000
	sig := s.Execute(emptyPortfolio(), spike)
	if sig.Direction != types.DirectionLong {
		t.Fatalf("expected LONG on up bar with volume spike, got %s (%s)", sig.Direction, sig.Reason)
	}
}

func TestOpeningRangeBreakoutResetsDaily(t *testing.T) {
	s := NewOpeningRangeBreakout()
	day := makeTrendingBars("2330.TW", 1, 100, 0)[0]
	bars := make([]types.Bar, s.RangeBars)
	for i := range bars {
		bars[i] = day
		bars[i].Timestamp = day.Timestamp.Add(time.Duration(i) * 5 * time.Minute)
	}
	for _, b := range bars {
		sig := s.Execute(emptyPortfolio(), b)
		if sig.Direction != types.DirectionNeutral {
			t.Fatalf("expected NEUTRAL while the opening range forms, got %s", sig.Direction)
		}
	}
	// Same day, breakout above the range high.
	breakout := bars[len(bars)-1]
	breakout.Close = decimal.NewFromInt(110)
	sig := s.Execute(emptyPortfolio(), breakout)
	if sig.Direction != types.DirectionLong {
		t.Fatalf("expected LONG on opening range breakout, got %s (%s)", sig.Direction, sig.Reason)
	}
	// Only one trigger per session.
	again := breakout
	again.Close = decimal.NewFromInt(115)
	sig = s.Execute(emptyPortfolio(), again)
	if sig.Direction != types.DirectionNeutral {
		t.Fatalf("expected NEUTRAL after the range already triggered, got %s", sig.Direction)
	}
}
