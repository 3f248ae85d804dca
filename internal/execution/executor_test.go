package execution

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/twequity/trading-engine/internal/bridge"
	"github.com/twequity/trading-engine/internal/errs"
	"github.com/twequity/trading-engine/internal/metrics"
	"github.com/twequity/trading-engine/pkg/types"
	"github.com/twequity/trading-engine/pkg/utils"
)

// fastRetry keeps test submissions from sleeping through real backoff.
var fastRetry = utils.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 2.0}

func newTestExecutor(t *testing.T, handler http.HandlerFunc) *Executor {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := bridge.New(bridge.Config{URL: srv.URL, Timeout: time.Second, Retry: fastRetry})
	e := New(zap.NewNop(), client, metrics.New(prometheus.NewRegistry()))
	e.retry = fastRetry
	return e
}

func fillHandler(status types.OrderStatus, reason string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(bridge.OrderResponse{Status: status, OrderID: "ord_1", Reason: reason})
	}
}

func req(symbol string) Request {
	return Request{Symbol: symbol, Side: types.OrderSideBuy, Quantity: 1000, PriceHint: decimal.NewFromInt(100)}
}

func TestSubmitFilled(t *testing.T) {
	e := newTestExecutor(t, fillHandler(types.OrderStatusFilled, ""))
	result, err := e.Submit(context.Background(), req("2330.TW"))
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != types.OrderStatusFilled || result.OrderID == "" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestSubmitRejectedIsVeto(t *testing.T) {
	e := newTestExecutor(t, fillHandler(types.OrderStatusRejected, "insufficient margin"))
	_, err := e.Submit(context.Background(), req("2330.TW"))
	if err == nil {
		t.Fatal("expected error on rejection")
	}
	if !errs.Is(err, errs.CategoryVeto) {
		t.Fatalf("expected a veto-category error, got %v", err)
	}
}

func TestKillSwitchAfterConsecutiveFailures(t *testing.T) {
	e := newTestExecutor(t, fillHandler(types.OrderStatusRejected, "no market"))
	for i := 0; i < MaxConsecutiveFailures; i++ {
		if _, err := e.Submit(context.Background(), req("2330.TW")); err == nil {
			t.Fatal("expected rejection")
		}
	}
	tripped, reason := e.KillSwitch()
	if !tripped {
		t.Fatal("expected kill switch after three consecutive failures")
	}
	if reason == "" {
		t.Fatal("expected a kill switch reason")
	}

	// Tripped switch refuses new submissions as a veto, not a fault.
	if _, err := e.Submit(context.Background(), req("2317.TW")); !errs.Is(err, errs.CategoryVeto) {
		t.Fatalf("expected veto while kill switch is tripped, got %v", err)
	}

	e.ResetKillSwitch()
	if tripped, _ := e.KillSwitch(); tripped {
		t.Fatal("expected kill switch cleared after reset")
	}
}

func TestKillSwitchAllowsCloseOuts(t *testing.T) {
	reject := true
	e := newTestExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		if reject {
			json.NewEncoder(w).Encode(bridge.OrderResponse{Status: types.OrderStatusRejected, Reason: "no market"})
			return
		}
		json.NewEncoder(w).Encode(bridge.OrderResponse{Status: types.OrderStatusFilled, OrderID: "ord_close"})
	})
	for i := 0; i < MaxConsecutiveFailures; i++ {
		e.Submit(context.Background(), req("2330.TW"))
	}
	if tripped, _ := e.KillSwitch(); !tripped {
		t.Fatal("expected tripped kill switch")
	}

	// Broker recovers; a closing order must still go through while a
	// fresh entry stays refused.
	reject = false
	closing := req("2330.TW")
	closing.Side = types.OrderSideSell
	closing.Closing = true
	if _, err := e.Submit(context.Background(), closing); err != nil {
		t.Fatalf("closing order must bypass the kill switch, got %v", err)
	}
	if _, err := e.Submit(context.Background(), req("2317.TW")); !errs.Is(err, errs.CategoryVeto) {
		t.Fatalf("expected entry to stay refused under the kill switch, got %v", err)
	}
}

func TestSuccessResetsFailureStreak(t *testing.T) {
	reject := true
	e := newTestExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		if reject {
			json.NewEncoder(w).Encode(bridge.OrderResponse{Status: types.OrderStatusRejected, Reason: "x"})
			return
		}
		json.NewEncoder(w).Encode(bridge.OrderResponse{Status: types.OrderStatusFilled, OrderID: "ord_2"})
	})

	for i := 0; i < MaxConsecutiveFailures-1; i++ {
		e.Submit(context.Background(), req("2330.TW"))
	}
	reject = false
	if _, err := e.Submit(context.Background(), req("2330.TW")); err != nil {
		t.Fatal(err)
	}
	reject = true
	e.Submit(context.Background(), req("2330.TW"))
	if tripped, _ := e.KillSwitch(); tripped {
		t.Fatal("a fill between failures must reset the streak")
	}
}

func TestTransientFailureAfterRetries(t *testing.T) {
	e := newTestExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	_, err := e.Submit(context.Background(), req("2330.TW"))
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !errs.Is(err, errs.CategoryTransient) {
		t.Fatalf("expected transient-category error, got %v", err)
	}
}

func TestFlattenSubmitsExitPerPosition(t *testing.T) {
	var sides []string
	e := newTestExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		var body bridge.OrderRequest
		json.NewDecoder(r.Body).Decode(&body)
		sides = append(sides, string(body.Action))
		json.NewEncoder(w).Encode(bridge.OrderResponse{Status: types.OrderStatusFilled, OrderID: "ord_3"})
	})

	failures := e.Flatten(context.Background(), map[string]types.Position{
		"2330.TW": {Symbol: "2330.TW", SignedQty: 1000},
		"2317.TW": {Symbol: "2317.TW", SignedQty: -2000},
		"FLAT.TW": {Symbol: "FLAT.TW", SignedQty: 0},
	})
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	if len(sides) != 2 {
		t.Fatalf("expected 2 exit orders (flat position skipped), got %d", len(sides))
	}
}
