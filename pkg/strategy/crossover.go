package strategy

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/optimizer"
	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/types"
)

// CrossoverParams names the dimensions the crossover strategy reads.
const (
	ParamFastWindow = "fast_window"
	ParamSlowWindow = "slow_window"
	ParamRiskWeight = "risk_weight"
	ParamLongOnly   = "long_only"
)

// CrossoverSpace is the default search space for the crossover strategy.
func CrossoverSpace() *optimizer.ParamSpace {
	space := optimizer.NewParamSpace()
	space.Choice(ParamFastWindow,
		optimizer.IntValue(5), optimizer.IntValue(10), optimizer.IntValue(20), optimizer.IntValue(30))
	space.Choice(ParamSlowWindow,
		optimizer.IntValue(50), optimizer.IntValue(100), optimizer.IntValue(150), optimizer.IntValue(200))
	space.Choice(ParamLongOnly, optimizer.BoolValue(true), optimizer.BoolValue(false))
	space.Fixed(ParamRiskWeight, optimizer.FloatValue(1.0))
	return space
}

// CrossoverEval builds the evaluation function for a moving-average
// crossover portfolio: per ticker, hold one unit while the fast average
// is above the slow one (and short one unit below it unless long-only),
// positions applied with a one-bar lag. The portfolio return at a
// timestamp is the equal-weight mean across tickers trading there.
func CrossoverEval() optimizer.EvalFunc {
	return func(panel types.Panel, params optimizer.Params) (*types.Series, error) {
		fast, ok := intParam(params, ParamFastWindow)
		if !ok {
			return nil, fmt.Errorf("strategy: missing %s parameter", ParamFastWindow)
		}
		slow, ok := intParam(params, ParamSlowWindow)
		if !ok {
			return nil, fmt.Errorf("strategy: missing %s parameter", ParamSlowWindow)
		}
		if fast >= slow {
			return nil, fmt.Errorf("strategy: fast window %d must be below slow window %d", fast, slow)
		}
		weight := 1.0
		if v, ok := params[ParamRiskWeight]; ok && v.Kind == optimizer.KindFloat {
			weight = v.Float
		}
		longOnly := true
		if v, ok := params[ParamLongOnly]; ok && v.Kind == optimizer.KindBool {
			longOnly = v.Bool
		}

		sums := make(map[time.Time]float64)
		counts := make(map[time.Time]int)
		for _, frame := range panel {
			closes, ok := frame.Column("close")
			if !ok || frame.Len() <= slow {
				continue
			}
			index := frame.Index()
			positions := crossoverPositions(closes, fast, slow, longOnly)
			for t := 1; t < len(closes); t++ {
				prev, cur := closes[t-1], closes[t]
				if math.IsNaN(prev) || math.IsNaN(cur) || prev == 0 {
					continue
				}
				ret := weight * positions[t-1] * (cur/prev - 1)
				sums[index[t]] += ret
				counts[index[t]]++
			}
		}
		if len(sums) == 0 {
			return types.EmptySeries(), nil
		}

		stamps := make([]time.Time, 0, len(sums))
		for ts := range sums {
			stamps = append(stamps, ts)
		}
		sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })
		vals := make([]float64, len(stamps))
		for i, ts := range stamps {
			vals[i] = sums[ts] / float64(counts[ts])
		}
		return types.NewSeries(stamps, vals)
	}
}

// crossoverPositions computes the per-bar position before the one-bar
// execution lag is applied. Bars without both averages carry no position.
func crossoverPositions(closes []float64, fast, slow int, longOnly bool) []float64 {
	fastMA := rollingMean(closes, fast)
	slowMA := rollingMean(closes, slow)
	positions := make([]float64, len(closes))
	for t := range closes {
		if math.IsNaN(fastMA[t]) || math.IsNaN(slowMA[t]) {
			continue
		}
		switch {
		case fastMA[t] > slowMA[t]:
			positions[t] = 1
		case !longOnly:
			positions[t] = -1
		}
	}
	return positions
}

// rollingMean is the simple moving average over a trailing window; the
// first window-1 entries and any window containing NaN are NaN.
func rollingMean(vals []float64, window int) []float64 {
	out := make([]float64, len(vals))
	for i := range out {
		out[i] = math.NaN()
	}
	if window <= 0 || window > len(vals) {
		return out
	}
	for i := window - 1; i < len(vals); i++ {
		sum := 0.0
		valid := true
		for j := i - window + 1; j <= i; j++ {
			if math.IsNaN(vals[j]) {
				valid = false
				break
			}
			sum += vals[j]
		}
		if valid {
			out[i] = sum / float64(window)
		}
	}
	return out
}

func intParam(params optimizer.Params, name string) (int, bool) {
	v, ok := params[name]
	if !ok || v.Kind != optimizer.KindInt {
		return 0, false
	}
	return v.Int, true
}
