package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/types"
)

func hourlySeries(t *testing.T, vals []float64) *types.Series {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ts := make([]time.Time, len(vals))
	for i := range ts {
		ts[i] = start.Add(time.Duration(i) * time.Hour)
	}
	s, err := types.NewSeries(ts, vals)
	require.NoError(t, err)
	return s
}

// TestPeriodsPerYear_HourlySpacing tests annualization factor inference
func TestPeriodsPerYear_HourlySpacing(t *testing.T) {
	s := hourlySeries(t, []float64{0.1, 0.2, 0.3})
	assert.InDelta(t, 24*365.25, PeriodsPerYear(s), 1e-9)
}

// TestAnnualSharpe_PositiveDrift tests the sign of the ratio
func TestAnnualSharpe_PositiveDrift(t *testing.T) {
	s := hourlySeries(t, []float64{0.01, 0.02, 0.01, 0.03, 0.02, 0.01})
	assert.Greater(t, AnnualSharpe(s), 0.0)
}

// TestAnnualSharpe_ZeroVariance tests degenerate constant returns
func TestAnnualSharpe_ZeroVariance(t *testing.T) {
	s := hourlySeries(t, []float64{0.01, 0.01, 0.01})
	assert.True(t, math.IsNaN(AnnualSharpe(s)))
}

// TestAnnualSharpe_EmptySeries tests the NaN convention for no data
func TestAnnualSharpe_EmptySeries(t *testing.T) {
	assert.True(t, math.IsNaN(AnnualSharpe(types.EmptySeries())))
}

// TestMaxDrawdown_KnownPath tests a hand-computed drawdown
func TestMaxDrawdown_KnownPath(t *testing.T) {
	// Cumulative curve: 1, 3, 2, 0, 4 -> deepest drop is 3 at the trough.
	s := hourlySeries(t, []float64{1, 2, -1, -2, 4})
	assert.InDelta(t, 3.0, MaxDrawdown(s), 1e-12)
}

// TestMaxDrawdown_MonotonicGain tests a curve with no decline
func TestMaxDrawdown_MonotonicGain(t *testing.T) {
	s := hourlySeries(t, []float64{1, 1, 1})
	assert.Equal(t, 0.0, MaxDrawdown(s))
}

// TestWinRate tests the positive-period fraction
func TestWinRate(t *testing.T) {
	s := hourlySeries(t, []float64{0.1, -0.1, 0.2, 0.0})
	assert.InDelta(t, 0.5, WinRate(s), 1e-12)
}

// TestSortino_NoDownside tests the no-losing-period convention
func TestSortino_NoDownside(t *testing.T) {
	s := hourlySeries(t, []float64{0.01, 0.02, 0.03})
	assert.True(t, math.IsInf(Sortino(s), 1))
}

// TestCalculate_CoversMetricNames tests the metric mapping keys
func TestCalculate_CoversMetricNames(t *testing.T) {
	m := Calculate(hourlySeries(t, []float64{0.01, -0.02, 0.03}))
	for _, name := range MetricNames() {
		_, ok := m[name]
		assert.True(t, ok, "missing metric %s", name)
	}
}

// TestMeanAcross_IgnoresNaN tests NaN-tolerant averaging
func TestMeanAcross_IgnoresNaN(t *testing.T) {
	out := MeanAcross([]map[string]float64{
		{"annual_sharpe": 1.0},
		{"annual_sharpe": math.NaN()},
		{"annual_sharpe": 3.0},
	})
	assert.InDelta(t, 2.0, out["annual_sharpe"], 1e-12)
}

// TestInferFrequency_Dominant tests the dominant spacing estimate
func TestInferFrequency_Dominant(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	index := []time.Time{
		start,
		start.Add(1 * time.Hour),
		start.Add(2 * time.Hour),
		start.Add(3 * time.Hour),
		start.Add(5 * time.Hour), // one gap
	}
	freq, ok := InferFrequency(index)
	require.True(t, ok)
	assert.Equal(t, time.Hour, freq)
}

// TestInferFrequency_NoDominantSpacing tests irregular indexes
func TestInferFrequency_NoDominantSpacing(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	index := []time.Time{
		start,
		start.Add(1 * time.Hour),
		start.Add(3 * time.Hour),
		start.Add(7 * time.Hour),
		start.Add(20 * time.Hour),
		start.Add(21 * time.Hour),
	}
	_, ok := InferFrequency(index)
	assert.False(t, ok)
}
