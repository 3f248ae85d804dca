package bridge

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/twequity/trading-engine/pkg/types"
)

// BarClock polls the bridge's tick stream on a fixed interval and
// aggregates each poll window into one OHLCV bar per symbol. The
// bridge contract exposes /signal (a momentum snapshot)
// and /stream/quotes (raw trade prints), never a ready-made bar, so
// this is the one place in the engine that turns ticks into bars;
// everything downstream of Run only ever sees types.Bar.
type BarClock struct {
	logger    *zap.Logger
	client    *Client
	symbols   []string
	interval  time.Duration
	timeframe types.Timeframe
	tickLimit int
}

// NewBarClock builds a BarClock polling client every interval for
// symbols, labeling the synthesized bars with timeframe.
func NewBarClock(logger *zap.Logger, client *Client, symbols []string, interval time.Duration, timeframe types.Timeframe) *BarClock {
	return &BarClock{logger: logger.Named("barclock"), client: client, symbols: symbols, interval: interval, timeframe: timeframe, tickLimit: 500}
}

// Run invokes onBar once per synthesized bar, in symbol order, once
// per tick of its interval, until ctx is canceled. A failed poll is a
// transient external fault: it is logged and the symbol skipped for
// this interval, never fatal to the clock.
func (bc *BarClock) Run(ctx context.Context, onBar func(types.Bar) error) error {
	ticker := time.NewTicker(bc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, symbol := range bc.symbols {
				bar, ok, err := bc.poll(ctx, symbol)
				if err != nil {
					bc.logger.Warn("poll failed, skipping symbol this interval",
						zap.String("symbol", symbol), zap.Error(err))
					continue
				}
				if !ok {
					continue
				}
				if err := onBar(bar); err != nil {
					return err
				}
			}
		}
	}
}

// poll fetches the most recent tick prints for symbol and folds them
// into one OHLCV bar. ok is false when the bridge returned no ticks
// this interval (a quiet market, not an error).
func (bc *BarClock) poll(ctx context.Context, symbol string) (types.Bar, bool, error) {
	quotes, err := bc.client.StreamQuotes(ctx, symbol, bc.tickLimit)
	if err != nil {
		return types.Bar{}, false, err
	}
	if len(quotes) == 0 {
		return types.Bar{}, false, nil
	}

	bar := types.Bar{
		Symbol:    symbol,
		Timeframe: bc.timeframe,
		Timestamp: quotes[len(quotes)-1].Timestamp,
		Open:      quotes[0].Price,
		High:      quotes[0].Price,
		Low:       quotes[0].Price,
		Close:     quotes[len(quotes)-1].Price,
	}
	for _, q := range quotes {
		if q.Price.GreaterThan(bar.High) {
			bar.High = q.Price
		}
		if q.Price.LessThan(bar.Low) {
			bar.Low = q.Price
		}
		bar.Volume += q.Volume
	}
	return bar, true, nil
}
