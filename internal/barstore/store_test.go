package barstore

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/twequity/trading-engine/pkg/types"
)

func bar(symbol string, ts time.Time, close float64) types.Bar {
	d := decimal.NewFromFloat(close)
	return types.Bar{
		Symbol: symbol, Timeframe: types.Timeframe1m, Timestamp: ts,
		Open: d, High: d.Add(decimal.NewFromInt(1)), Low: d.Sub(decimal.NewFromInt(1)), Close: d,
		Volume: 1000,
	}
}

var t0 = time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)

func TestAppendRejectsOutOfOrder(t *testing.T) {
	s := New(nil)
	if err := s.Append(bar("2330.TW", t0, 100)); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(bar("2330.TW", t0, 101)); err == nil {
		t.Fatal("expected duplicate timestamp to be rejected")
	}
	if err := s.Append(bar("2330.TW", t0.Add(-time.Minute), 99)); err == nil {
		t.Fatal("expected earlier timestamp to be rejected")
	}
	if err := s.Append(bar("2330.TW", t0.Add(time.Minute), 101)); err != nil {
		t.Fatal(err)
	}
}

func TestAppendValidatesOHLC(t *testing.T) {
	s := New(nil)
	b := bar("2330.TW", t0, 100)
	b.High = decimal.NewFromInt(90) // below open/close
	if err := s.Append(b); err == nil {
		t.Fatal("expected OHLC-inconsistent bar to be rejected")
	}
	b = bar("2330.TW", t0, 100)
	b.Volume = -1
	if err := s.Append(b); err == nil {
		t.Fatal("expected negative volume to be rejected")
	}
	if err := s.Append(types.Bar{Timeframe: types.Timeframe1m, Timestamp: t0}); err == nil {
		t.Fatal("expected empty symbol to be rejected")
	}
}

func TestTimeframesAreIndependentSeries(t *testing.T) {
	s := New(nil)
	b := bar("2330.TW", t0, 100)
	if err := s.Append(b); err != nil {
		t.Fatal(err)
	}
	b.Timeframe = types.Timeframe1d
	if err := s.Append(b); err != nil {
		t.Fatalf("same timestamp in another timeframe must be accepted: %v", err)
	}
	if got := s.Count("2330.TW", types.Timeframe1m); got != 1 {
		t.Fatalf("expected 1 bar in 1m series, got %d", got)
	}
}

func TestRangeAndSince(t *testing.T) {
	s := New(nil)
	for i := 0; i < 10; i++ {
		if err := s.Append(bar("2330.TW", t0.Add(time.Duration(i)*time.Minute), 100+float64(i))); err != nil {
			t.Fatal(err)
		}
	}

	got := s.Range("2330.TW", types.Timeframe1m, t0.Add(2*time.Minute), t0.Add(5*time.Minute))
	if len(got) != 4 {
		t.Fatalf("expected 4 bars in [t+2m, t+5m], got %d", len(got))
	}
	if !got[0].Timestamp.Equal(t0.Add(2 * time.Minute)) {
		t.Fatalf("range starts at %s", got[0].Timestamp)
	}

	recent := s.Since("2330.TW", types.Timeframe1m, t0.Add(9*time.Minute), 3)
	if len(recent) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(recent))
	}
	if !recent[2].Timestamp.Equal(t0.Add(9 * time.Minute)) {
		t.Fatalf("Since must end at asOf, got %s", recent[2].Timestamp)
	}
}

func TestLatestAndStaleness(t *testing.T) {
	s := New(nil)
	if _, ok := s.Latest("2330.TW", types.Timeframe1m); ok {
		t.Fatal("expected no latest bar on an empty store")
	}
	if err := s.Append(bar("2330.TW", t0, 100)); err != nil {
		t.Fatal(err)
	}
	age, ok := s.Staleness("2330.TW", types.Timeframe1m, t0.Add(3*time.Second))
	if !ok || age != 3*time.Second {
		t.Fatalf("expected staleness 3s, got %v ok=%v", age, ok)
	}
}

func TestQuoteRoundTrip(t *testing.T) {
	s := New(nil)
	q := types.Quote{
		Symbol:    "2330.TW",
		Timestamp: t0,
		Bids:      []types.OrderBookLevel{{Price: decimal.NewFromInt(100), Size: 30}},
		Asks:      []types.OrderBookLevel{{Price: decimal.NewFromInt(101), Size: 10}},
	}
	if err := s.UpdateQuote(q); err != nil {
		t.Fatal(err)
	}
	got, ok := s.Quote("2330.TW")
	if !ok {
		t.Fatal("expected stored quote")
	}
	imb := got.Imbalance()
	if !imb.Equal(decimal.NewFromInt(20).Div(decimal.NewFromInt(40))) {
		t.Fatalf("expected imbalance 0.5, got %s", imb)
	}

	bad := types.Quote{Symbol: "2330.TW", Bids: q.Bids}
	if err := s.UpdateQuote(bad); err == nil {
		t.Fatal("expected one-sided quote to be rejected")
	}
}
