package types

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Frame is one ticker's feature matrix: a shared timestamp index plus
// named float64 columns. The index carries the same invariants as Series.
// Missing observations are NaN rows, never removed rows.
type Frame struct {
	index []time.Time
	cols  []string
	data  map[string][]float64
}

// NewFrame creates a Frame after validating the index invariants and
// column lengths. Column order follows cols.
func NewFrame(index []time.Time, cols []string, data map[string][]float64) (*Frame, error) {
	for i := 1; i < len(index); i++ {
		if !index[i].After(index[i-1]) {
			return nil, fmt.Errorf("frame: index not strictly increasing at position %d", i)
		}
	}
	for _, c := range cols {
		vals, ok := data[c]
		if !ok {
			return nil, fmt.Errorf("frame: column %q missing from data", c)
		}
		if len(vals) != len(index) {
			return nil, fmt.Errorf("frame: column %q has %d rows, index has %d", c, len(vals), len(index))
		}
	}
	return &Frame{index: index, cols: cols, data: data}, nil
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.index) }

// Empty reports whether the frame has no rows.
func (f *Frame) Empty() bool { return f == nil || len(f.index) == 0 }

// Index returns a copy of the timestamp index.
func (f *Frame) Index() []time.Time {
	out := make([]time.Time, len(f.index))
	copy(out, f.index)
	return out
}

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.cols))
	copy(out, f.cols)
	return out
}

// Column returns the values of a named column.
func (f *Frame) Column(name string) ([]float64, bool) {
	vals, ok := f.data[name]
	if !ok {
		return nil, false
	}
	out := make([]float64, len(vals))
	copy(out, vals)
	return out, true
}

// Slice selects the given index positions in order.
func (f *Frame) Slice(positions []int) *Frame {
	index := make([]time.Time, 0, len(positions))
	data := make(map[string][]float64, len(f.cols))
	for _, c := range f.cols {
		data[c] = make([]float64, 0, len(positions))
	}
	for _, p := range positions {
		index = append(index, f.index[p])
		for _, c := range f.cols {
			data[c] = append(data[c], f.data[c][p])
		}
	}
	cols := make([]string, len(f.cols))
	copy(cols, f.cols)
	return &Frame{index: index, cols: cols, data: data}
}

// Before returns the rows with timestamps at or before cutoff.
func (f *Frame) Before(cutoff time.Time) *Frame {
	n := sort.Search(len(f.index), func(i int) bool { return f.index[i].After(cutoff) })
	return f.Slice(rangePositions(0, n))
}

// From returns the rows with timestamps at or after the cutoff.
func (f *Frame) From(cutoff time.Time) *Frame {
	start := sort.Search(len(f.index), func(i int) bool { return !f.index[i].Before(cutoff) })
	return f.Slice(rangePositions(start, len(f.index)))
}

// Reindex maps the frame onto a new strictly increasing index. Timestamps
// absent from the frame become NaN rows.
func (f *Frame) Reindex(index []time.Time) *Frame {
	data := make(map[string][]float64, len(f.cols))
	for _, c := range f.cols {
		data[c] = make([]float64, len(index))
	}
	pos := make(map[time.Time]int, len(f.index))
	for i, t := range f.index {
		pos[t] = i
	}
	for i, t := range index {
		src, ok := pos[t]
		for _, c := range f.cols {
			if ok {
				data[c][i] = f.data[c][src]
			} else {
				data[c][i] = math.NaN()
			}
		}
	}
	idx := make([]time.Time, len(index))
	copy(idx, index)
	cols := make([]string, len(f.cols))
	copy(cols, f.cols)
	return &Frame{index: idx, cols: cols, data: data}
}

// Panel maps ticker symbols to their frames.
type Panel map[string]*Frame

// UnionIndex returns the sorted union of all timestamps across the panel.
func (p Panel) UnionIndex() []time.Time {
	seen := make(map[time.Time]struct{})
	for _, f := range p {
		for _, t := range f.index {
			seen[t] = struct{}{}
		}
	}
	out := make([]time.Time, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// AlignToUnionIndex reindexes every frame to the union of all panel
// timestamps. Calendar gaps become NaN rows so tickers stay synchronized.
func AlignToUnionIndex(p Panel) Panel {
	union := p.UnionIndex()
	out := make(Panel, len(p))
	for ticker, f := range p {
		out[ticker] = f.Reindex(union)
	}
	return out
}

func rangePositions(start, end int) []int {
	if end <= start {
		return nil
	}
	out := make([]int, end-start)
	for i := range out {
		out[i] = start + i
	}
	return out
}
