package types

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hourlyIndex(start time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return out
}

// TestNewSeries_Valid tests construction with a strictly increasing index
func TestNewSeries_Valid(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s, err := NewSeries(hourlyIndex(start, 3), []float64{0.1, 0.2, 0.3})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())

	ts, v := s.At(1)
	assert.Equal(t, start.Add(time.Hour), ts)
	assert.Equal(t, 0.2, v)
}

// TestNewSeries_RejectsDuplicateTimestamps tests the index invariant
func TestNewSeries_RejectsDuplicateTimestamps(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := NewSeries([]time.Time{start, start}, []float64{1, 2})
	assert.Error(t, err)
}

// TestNewSeries_RejectsUnorderedTimestamps tests the index invariant
func TestNewSeries_RejectsUnorderedTimestamps(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := NewSeries([]time.Time{start.Add(time.Hour), start}, []float64{1, 2})
	assert.Error(t, err)
}

// TestNewSeries_RejectsLengthMismatch tests mismatched index and values
func TestNewSeries_RejectsLengthMismatch(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := NewSeries(hourlyIndex(start, 3), []float64{1, 2})
	assert.Error(t, err)
}

// TestConcat_ChronologicalSegments tests stitching disjoint segments
func TestConcat_ChronologicalSegments(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a, err := NewSeries(hourlyIndex(start, 2), []float64{1, 2})
	require.NoError(t, err)
	b, err := NewSeries(hourlyIndex(start.Add(2*time.Hour), 2), []float64{3, 4})
	require.NoError(t, err)

	out, err := Concat(a, b)
	require.NoError(t, err)
	assert.Equal(t, 4, out.Len())
	assert.Equal(t, []float64{1, 2, 3, 4}, out.Values())
}

// TestConcat_RejectsOverlap tests that overlapping segments fail
func TestConcat_RejectsOverlap(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a, err := NewSeries(hourlyIndex(start, 3), []float64{1, 2, 3})
	require.NoError(t, err)
	b, err := NewSeries(hourlyIndex(start.Add(2*time.Hour), 2), []float64{4, 5})
	require.NoError(t, err)

	_, err = Concat(a, b)
	assert.Error(t, err)
}

// TestResampleDailySum tests bucketing hourly returns into UTC days
func TestResampleDailySum(t *testing.T) {
	start := time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC)
	s, err := NewSeries(hourlyIndex(start, 4), []float64{0.01, 0.02, 0.03, 0.04})
	require.NoError(t, err)

	daily := s.ResampleDailySum()
	require.Equal(t, 2, daily.Len())

	d0, v0 := daily.At(0)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), d0)
	assert.InDelta(t, 0.03, v0, 1e-12)

	d1, v1 := daily.At(1)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), d1)
	assert.InDelta(t, 0.07, v1, 1e-12)
}

// TestCumSum tests the running total used for equity curves
func TestCumSum(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s, err := NewSeries(hourlyIndex(start, 3), []float64{1, 2, 3})
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 3, 6}, s.CumSum().Values())
}

// TestDropNaN tests removal of undefined observations
func TestDropNaN(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s, err := NewSeries(hourlyIndex(start, 3), []float64{1, math.NaN(), 3})
	require.NoError(t, err)

	out := s.DropNaN()
	assert.Equal(t, []float64{1, 3}, out.Values())
}

// TestSeries_EmptyNilSafe tests that Empty tolerates a nil receiver
func TestSeries_EmptyNilSafe(t *testing.T) {
	var s *Series
	assert.True(t, s.Empty())
	assert.True(t, EmptySeries().Empty())
}
