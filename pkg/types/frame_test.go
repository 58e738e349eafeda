package types

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closeFrame(t *testing.T, start time.Time, closes []float64) *Frame {
	t.Helper()
	f, err := NewFrame(hourlyIndex(start, len(closes)), []string{"close"},
		map[string][]float64{"close": closes})
	require.NoError(t, err)
	return f
}

// TestNewFrame_RejectsColumnLengthMismatch tests construction validation
func TestNewFrame_RejectsColumnLengthMismatch(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := NewFrame(hourlyIndex(start, 3), []string{"close"},
		map[string][]float64{"close": {1, 2}})
	assert.Error(t, err)
}

// TestFrame_BeforeFrom_CutoffInclusiveBothSides tests the train/test cut
func TestFrame_BeforeFrom_CutoffInclusiveBothSides(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := closeFrame(t, start, []float64{1, 2, 3, 4})
	cutoff := start.Add(2 * time.Hour)

	train := f.Before(cutoff)
	test := f.From(cutoff)

	// The cutoff row belongs to both sides.
	assert.Equal(t, 3, train.Len())
	assert.Equal(t, 2, test.Len())
	assert.Equal(t, cutoff, train.Index()[train.Len()-1])
	assert.Equal(t, cutoff, test.Index()[0])
}

// TestFrame_Slice_NonContiguousPositions tests position-based slicing
func TestFrame_Slice_NonContiguousPositions(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := closeFrame(t, start, []float64{10, 20, 30, 40})

	out := f.Slice([]int{0, 2})
	closes, ok := out.Column("close")
	require.True(t, ok)
	assert.Equal(t, []float64{10, 30}, closes)
}

// TestAlignToUnionIndex_FillsMissingWithNaN tests panel alignment
func TestAlignToUnionIndex_FillsMissingWithNaN(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	full := closeFrame(t, start, []float64{1, 2, 3})
	partial := closeFrame(t, start.Add(time.Hour), []float64{5, 6})

	aligned := AlignToUnionIndex(Panel{"FULL": full, "PART": partial})

	require.Equal(t, 3, aligned["PART"].Len())
	closes, ok := aligned["PART"].Column("close")
	require.True(t, ok)
	assert.True(t, math.IsNaN(closes[0]))
	assert.Equal(t, 5.0, closes[1])
	assert.Equal(t, 6.0, closes[2])

	// All tickers share the identical union index.
	assert.Equal(t, aligned["FULL"].Index(), aligned["PART"].Index())
}

// TestPanel_UnionIndex_SortedAndDeduplicated tests index union
func TestPanel_UnionIndex_SortedAndDeduplicated(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := closeFrame(t, start, []float64{1, 2})
	b := closeFrame(t, start.Add(time.Hour), []float64{3, 4})

	union := Panel{"A": a, "B": b}.UnionIndex()
	require.Len(t, union, 3)
	for i := 1; i < len(union); i++ {
		assert.True(t, union[i].After(union[i-1]))
	}
}

// TestFrame_Reindex_PreservesKnownRows tests reindexing behavior
func TestFrame_Reindex_PreservesKnownRows(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := closeFrame(t, start, []float64{1, 2})

	wider := hourlyIndex(start, 3)
	out := f.Reindex(wider)
	closes, ok := out.Column("close")
	require.True(t, ok)
	assert.Equal(t, 1.0, closes[0])
	assert.Equal(t, 2.0, closes[1])
	assert.True(t, math.IsNaN(closes[2]))
}
