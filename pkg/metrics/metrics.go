package metrics

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/types"
)

// Package metrics computes risk-adjusted performance statistics from a
// period-return series. Every function tolerates empty input by returning
// NaN; callers exclude empty series before aggregating.

const hoursPerYear = 24 * 365.25

// PeriodsPerYear infers the annualization factor from the median spacing
// of the series index.
func PeriodsPerYear(s *types.Series) float64 {
	if s.Len() < 2 {
		return math.NaN()
	}
	ts := s.Timestamps()
	deltas := make([]float64, 0, len(ts)-1)
	for i := 1; i < len(ts); i++ {
		deltas = append(deltas, ts[i].Sub(ts[i-1]).Hours())
	}
	sort.Float64s(deltas)
	median := deltas[len(deltas)/2]
	if median <= 0 {
		return math.NaN()
	}
	return hoursPerYear / median
}

// AnnualSharpe computes the annualized Sharpe ratio of a period-return
// series, assuming a zero risk-free rate.
func AnnualSharpe(s *types.Series) float64 {
	if s.Empty() {
		return math.NaN()
	}
	vals := s.DropNaN().Values()
	if len(vals) < 2 {
		return math.NaN()
	}
	mean := stat.Mean(vals, nil)
	sd := stat.StdDev(vals, nil)
	if sd == 0 || math.IsNaN(sd) {
		return math.NaN()
	}
	ppy := PeriodsPerYear(s)
	if math.IsNaN(ppy) {
		return math.NaN()
	}
	return mean / sd * math.Sqrt(ppy)
}

// AnnualReturn computes the annualized arithmetic return of the series.
func AnnualReturn(s *types.Series) float64 {
	if s.Empty() {
		return math.NaN()
	}
	vals := s.DropNaN().Values()
	if len(vals) == 0 {
		return math.NaN()
	}
	ppy := PeriodsPerYear(s)
	if math.IsNaN(ppy) {
		return math.NaN()
	}
	return stat.Mean(vals, nil) * ppy
}

// MaxDrawdown computes the deepest peak-to-trough decline of the
// cumulative return curve.
func MaxDrawdown(s *types.Series) float64 {
	if s.Empty() {
		return math.NaN()
	}
	cum := s.DropNaN().CumSum()
	peak := math.Inf(-1)
	maxDD := 0.0
	for i := 0; i < cum.Len(); i++ {
		_, v := cum.At(i)
		if v > peak {
			peak = v
		}
		if dd := peak - v; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// Sortino computes the annualized Sortino ratio, penalizing downside
// volatility only.
func Sortino(s *types.Series) float64 {
	if s.Empty() {
		return math.NaN()
	}
	vals := s.DropNaN().Values()
	if len(vals) < 2 {
		return math.NaN()
	}
	mean := stat.Mean(vals, nil)
	downside := 0.0
	n := 0
	for _, v := range vals {
		if v < 0 {
			downside += v * v
			n++
		}
	}
	if n == 0 || downside == 0 {
		return math.Inf(1)
	}
	dd := math.Sqrt(downside / float64(n))
	ppy := PeriodsPerYear(s)
	if math.IsNaN(ppy) {
		return math.NaN()
	}
	return mean / dd * math.Sqrt(ppy)
}

// WinRate returns the fraction of strictly positive periods.
func WinRate(s *types.Series) float64 {
	if s.Empty() {
		return math.NaN()
	}
	vals := s.DropNaN().Values()
	if len(vals) == 0 {
		return math.NaN()
	}
	wins := 0
	for _, v := range vals {
		if v > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(vals))
}

// Calculate computes the full metric mapping for a return series.
func Calculate(s *types.Series) map[string]float64 {
	return map[string]float64{
		"annual_sharpe": AnnualSharpe(s),
		"annual_return": AnnualReturn(s),
		"max_drawdown":  MaxDrawdown(s),
		"sortino":       Sortino(s),
		"win_rate":      WinRate(s),
	}
}

// MetricNames lists the keys produced by Calculate in display order.
func MetricNames() []string {
	return []string{"annual_sharpe", "annual_return", "max_drawdown", "sortino", "win_rate"}
}

// MeanAcross averages each metric over a set of mappings, used to
// aggregate per-path metrics into one summary.
func MeanAcross(all []map[string]float64) map[string]float64 {
	out := make(map[string]float64)
	if len(all) == 0 {
		return out
	}
	for _, name := range MetricNames() {
		sum := 0.0
		n := 0
		for _, m := range all {
			v, ok := m[name]
			if !ok || math.IsNaN(v) {
				continue
			}
			sum += v
			n++
		}
		if n > 0 {
			out[name] = sum / float64(n)
		} else {
			out[name] = math.NaN()
		}
	}
	return out
}

// InferFrequency estimates the dominant index spacing of a timestamp
// sequence, the basis of the gap check in the integrity sweep.
func InferFrequency(index []time.Time) (time.Duration, bool) {
	if len(index) < 2 {
		return 0, false
	}
	counts := make(map[time.Duration]int)
	for i := 1; i < len(index); i++ {
		counts[index[i].Sub(index[i-1])]++
	}
	var best time.Duration
	bestCount := 0
	for d, c := range counts {
		if c > bestCount || (c == bestCount && d < best) {
			best = d
			bestCount = c
		}
	}
	// A dominant spacing that covers under half the steps is no frequency.
	if bestCount*2 < len(index)-1 {
		return 0, false
	}
	return best, true
}
