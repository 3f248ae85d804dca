package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestFormatSymbol(t *testing.T) {
	tests := []struct{ in, want string }{
		{"2330", "2330.TW"},
		{" 2330 ", "2330.TW"},
		{"2330.TW", "2330.TW"},
		{"mtxf.tf", "MTXF.TF"},
	}
	for _, tt := range tests {
		if got := FormatSymbol(tt.in); got != tt.want {
			t.Errorf("FormatSymbol(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGroupDigits(t *testing.T) {
	tests := []struct{ in, want string }{
		{"0", "0"},
		{"999", "999"},
		{"1000", "1,000"},
		{"2000000", "2,000,000"},
		{"-4600", "-4,600"},
	}
	for _, tt := range tests {
		if got := GroupDigits(tt.in); got != tt.want {
			t.Errorf("GroupDigits(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := FormatTWD(decimal.NewFromInt(20000)); got != "NT$20,000" {
		t.Errorf("FormatTWD = %q", got)
	}
}

func TestRoundToLot(t *testing.T) {
	tests := []struct{ qty, lot, want int64 }{
		{2500, 1000, 2000},
		{999, 1000, 0},
		{1000, 1000, 1000},
		{37, 1, 37},
		{37, 0, 37},
	}
	for _, tt := range tests {
		if got := RoundToLot(tt.qty, tt.lot); got != tt.want {
			t.Errorf("RoundToLot(%d, %d) = %d, want %d", tt.qty, tt.lot, got, tt.want)
		}
	}
}

func TestCalculateMaxDrawdown(t *testing.T) {
	equity := []decimal.Decimal{
		decimal.NewFromInt(100), decimal.NewFromInt(120),
		decimal.NewFromInt(90), decimal.NewFromInt(110),
	}
	dd := CalculateMaxDrawdown(equity)
	want := decimal.NewFromInt(30).Div(decimal.NewFromInt(120))
	if !dd.Equal(want) {
		t.Fatalf("max drawdown = %s, want %s", dd, want)
	}
}

func TestSqrtDecimal(t *testing.T) {
	got := SqrtDecimal(decimal.NewFromInt(252))
	want := 15.8745
	f, _ := got.Float64()
	if f < want-0.001 || f > want+0.001 {
		t.Fatalf("sqrt(252) = %v", f)
	}
	if !SqrtDecimal(decimal.NewFromInt(-4)).IsZero() {
		t.Fatal("sqrt of a negative must be zero")
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 2.0}
	got, err := Retry(context.Background(), cfg, func() (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Fatalf("got %d, %v", got, err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d", attempts)
	}
}

func TestRetryExhaustsBudget(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, Multiplier: 2.0}
	_, err := Retry(context.Background(), cfg, func() (int, error) {
		return 0, errors.New("always fails")
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
}

func TestRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Hour, Multiplier: 2.0}
	_, err := Retry(ctx, cfg, func() (int, error) {
		return 0, errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
