package backtester

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/twequity/trading-engine/pkg/types"
)

// DefaultTrainTestRatio and DefaultWindowStepDays are the
// walk-forward defaults.
const (
	DefaultTrainTestRatio = 3.0
	DefaultWindowStepDays = 20
)

// OverfitThreshold is how far in-sample fitness must exceed
// out-of-sample fitness before a window is flagged overfit. The
// source material leaves this unspecified; 0.30 (in-sample fitness 30%
// richer than out-of-sample) is a conservative pick that only flags a
// clear train/test gap rather than noise.
var OverfitThreshold = decimal.NewFromFloat(0.30)

// WalkForwardConfig parameterizes window generation.
type WalkForwardConfig struct {
	TrainTestRatio float64
	WindowStepDays int
	Anchored       bool // true: train window start is fixed at RangeStart; false: rolling
}

// DefaultWalkForwardConfig returns the defaults with rolling
// (non-anchored) windows.
func DefaultWalkForwardConfig() WalkForwardConfig {
	return WalkForwardConfig{TrainTestRatio: DefaultTrainTestRatio, WindowStepDays: DefaultWindowStepDays}
}

// WalkForward generates rolling or anchored train/test windows over
// bars, evaluates job's strategy on each, and reports overfit
// warnings. The strategy here has no tunable parameters in
// this engine's Strategy contract (Execute takes only portfolio and
// bar), so "optimize on train" reduces to evaluating the same strategy
// instance fresh on the train slice. The walk-forward still measures
// whether its edge generalizes to unseen bars, just without a
// parameter grid search the contract has nothing to search over.
func WalkForward(job Job, bars []types.Bar, cfg WalkForwardConfig) (types.WalkForwardResult, error) {
	if cfg.TrainTestRatio <= 0 {
		cfg.TrainTestRatio = DefaultTrainTestRatio
	}
	if cfg.WindowStepDays <= 0 {
		cfg.WindowStepDays = DefaultWindowStepDays
	}
	if len(bars) < 2 {
		return types.WalkForwardResult{}, fmt.Errorf("backtester: walk-forward needs at least 2 bars")
	}

	windows := generateWindows(bars, cfg)
	if len(windows) == 0 {
		return types.WalkForwardResult{}, fmt.Errorf("backtester: bar range too short for a single walk-forward window")
	}

	result := types.WalkForwardResult{}
	for _, w := range windows {
		trainBars := slice(bars, w.TrainStart, w.TrainEnd)
		testBars := slice(bars, w.TestStart, w.TestEnd)
		if len(trainBars) == 0 || len(testBars) == 0 {
			continue
		}

		trainResult, err := Evaluate(withBars(job, trainBars))
		if err != nil {
			return types.WalkForwardResult{}, fmt.Errorf("backtester: walk-forward train slice: %w", err)
		}
		testResult, err := Evaluate(withBars(job, testBars))
		if err != nil {
			return types.WalkForwardResult{}, fmt.Errorf("backtester: walk-forward test slice: %w", err)
		}

		w.InSampleFit = trainResult.Metrics.Fitness
		w.OutSampleFit = testResult.Metrics.Fitness
		w.TestMetrics = testResult.Metrics
		w.Overfit = isOverfit(w.InSampleFit, w.OutSampleFit)
		if w.Overfit {
			result.OverfitWarnings++
		}
		result.Windows = append(result.Windows, w)
	}
	return result, nil
}

func isOverfit(inSample, outSample decimal.Decimal) bool {
	if inSample.LessThanOrEqual(decimal.Zero) {
		return false
	}
	gap := inSample.Sub(outSample).Div(inSample.Abs())
	return gap.GreaterThan(OverfitThreshold)
}

func withBars(job Job, bars []types.Bar) Job {
	job.Bars = bars
	return job
}

func slice(bars []types.Bar, start, end time.Time) []types.Bar {
	var out []types.Bar
	for _, b := range bars {
		if !b.Timestamp.Before(start) && b.Timestamp.Before(end) {
			out = append(out, b)
		}
	}
	return out
}

// generateWindows lays out consecutive train/test splits across the
// bar range's span: each window's train length is trainTestRatio times
// its test length, and consecutive windows start windowStepDays apart.
// Anchored windows keep the train start pinned to the first bar;
// rolling windows slide the whole train span forward with each step.
func generateWindows(bars []types.Bar, cfg WalkForwardConfig) []types.WalkForwardWindow {
	rangeStart := bars[0].Timestamp
	rangeEnd := bars[len(bars)-1].Timestamp
	step := time.Duration(cfg.WindowStepDays) * 24 * time.Hour
	testSpan := step
	trainSpan := time.Duration(float64(testSpan) * cfg.TrainTestRatio)

	var windows []types.WalkForwardWindow
	trainStart := rangeStart
	testStart := rangeStart.Add(trainSpan)
	for {
		testEnd := testStart.Add(testSpan)
		if testEnd.After(rangeEnd) {
			testEnd = rangeEnd
		}
		if !testStart.Before(testEnd) {
			break
		}
		windows = append(windows, types.WalkForwardWindow{
			TrainStart: trainStart, TrainEnd: testStart,
			TestStart: testStart, TestEnd: testEnd,
		})
		if !testEnd.Before(rangeEnd) {
			break
		}
		testStart = testStart.Add(step)
		if !cfg.Anchored {
			trainStart = trainStart.Add(step)
		}
	}
	return windows
}
