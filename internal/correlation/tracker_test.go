package correlation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func pushSeries(t *Tracker, symbol string, values []float64) {
	for _, v := range values {
		t.PushReturn(symbol, decimal.NewFromFloat(v))
	}
}

func TestPerfectlyCorrelatedSeries(t *testing.T) {
	tr := New()
	series := []float64{0.01, -0.02, 0.03, 0.005, -0.01, 0.02}
	pushSeries(tr, "A", series)
	pushSeries(tr, "B", series)

	c, ok := tr.Correlation("A", "B")
	if !ok {
		t.Fatal("expected ok")
	}
	if c.Sub(decimal.NewFromInt(1)).Abs().GreaterThan(decimal.NewFromFloat(0.0001)) {
		t.Fatalf("expected correlation ~1 for identical series, got %s", c)
	}
}

func TestInverselyCorrelatedSeries(t *testing.T) {
	tr := New()
	pushSeries(tr, "A", []float64{0.01, -0.02, 0.03, 0.005, -0.01})
	pushSeries(tr, "B", []float64{-0.01, 0.02, -0.03, -0.005, 0.01})

	c, ok := tr.Correlation("A", "B")
	if !ok {
		t.Fatal("expected ok")
	}
	if c.Add(decimal.NewFromInt(1)).Abs().GreaterThan(decimal.NewFromFloat(0.0001)) {
		t.Fatalf("expected correlation ~-1 for mirrored series, got %s", c)
	}
}

func TestCorrelationInsufficientHistory(t *testing.T) {
	tr := New()
	tr.PushReturn("A", decimal.NewFromFloat(0.01))
	tr.PushReturn("B", decimal.NewFromFloat(0.01))
	if _, ok := tr.Correlation("A", "B"); ok {
		t.Fatal("expected not-ok with a single observation per side")
	}
}

func TestCorrelationCacheServesWithinTTL(t *testing.T) {
	tr := New()
	series := []float64{0.01, -0.02, 0.03, 0.005}
	pushSeries(tr, "A", series)
	pushSeries(tr, "B", series)

	clock := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return clock }

	first, _ := tr.Correlation("A", "B")

	// Diverge B's series; a cached entry younger than CacheTTL must
	// still be served.
	pushSeries(tr, "B", []float64{-0.5, 0.5, -0.5, 0.5})
	clock = clock.Add(time.Hour)
	cached, _ := tr.Correlation("A", "B")
	if !cached.Equal(first) {
		t.Fatalf("expected cached value %s within TTL, got %s", first, cached)
	}

	// Past the TTL the entry is recomputed.
	clock = clock.Add(CacheTTL)
	fresh, _ := tr.Correlation("A", "B")
	if fresh.Equal(first) {
		t.Fatal("expected recomputed correlation after TTL expiry")
	}
}

func TestSizeScale(t *testing.T) {
	tests := []struct {
		corr float64
		want float64
	}{
		{0.50, 1.0},
		{0.70, 1.0},
		{0.78, 1.0 - (0.78-0.70)/(0.85-0.70)*0.5},
		{0.85, 0.5},
	}
	for _, tt := range tests {
		got := SizeScale(decimal.NewFromFloat(tt.corr))
		if got.Sub(decimal.NewFromFloat(tt.want)).Abs().GreaterThan(decimal.NewFromFloat(0.0001)) {
			t.Errorf("SizeScale(%v) = %s, want %v", tt.corr, got, tt.want)
		}
	}
}

func TestConcentrationReport(t *testing.T) {
	tr := New()
	series := []float64{0.01, -0.02, 0.03, 0.005, -0.01}
	pushSeries(tr, "A", series)
	pushSeries(tr, "B", series)
	pushSeries(tr, "C", series)

	report := tr.Concentration([]string{"A", "B", "C"})
	if !report.ShouldReduceExposure {
		t.Fatal("expected shouldReduceExposure for three identical return series")
	}
	if len(report.Warnings) != 3 {
		t.Fatalf("expected a critical warning per pair, got %d", len(report.Warnings))
	}
}

func TestAverageCorrelationSkipsSelf(t *testing.T) {
	tr := New()
	series := []float64{0.01, -0.02, 0.03}
	pushSeries(tr, "A", series)
	pushSeries(tr, "B", series)

	avg, ok := tr.AverageCorrelation("A", []string{"A", "B"})
	if !ok {
		t.Fatal("expected ok")
	}
	if avg.Sub(decimal.NewFromInt(1)).Abs().GreaterThan(decimal.NewFromFloat(0.0001)) {
		t.Fatalf("expected avg ~1 against B only, got %s", avg)
	}
}
