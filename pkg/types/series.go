package types

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Package types provides the time-indexed containers shared by every
// pipeline stage. A Series or Frame is valid by construction: its index is
// strictly increasing and duplicate-free, checked once when built.

// Series is an ordered timestamp-indexed sequence of float64 values,
// typically period returns produced by a strategy evaluation.
type Series struct {
	ts   []time.Time
	vals []float64
}

// NewSeries creates a Series after validating the index invariants.
func NewSeries(ts []time.Time, vals []float64) (*Series, error) {
	if len(ts) != len(vals) {
		return nil, fmt.Errorf("series: index length %d does not match values length %d", len(ts), len(vals))
	}
	for i := 1; i < len(ts); i++ {
		if !ts[i].After(ts[i-1]) {
			return nil, fmt.Errorf("series: index not strictly increasing at position %d (%s -> %s)",
				i, ts[i-1].Format(time.RFC3339), ts[i].Format(time.RFC3339))
		}
	}
	return &Series{ts: ts, vals: vals}, nil
}

// EmptySeries returns a zero-length series, the conventional "no result"
// value of an evaluation function.
func EmptySeries() *Series {
	return &Series{}
}

// Len returns the number of observations.
func (s *Series) Len() int { return len(s.ts) }

// Empty reports whether the series has no observations.
func (s *Series) Empty() bool { return s == nil || len(s.ts) == 0 }

// At returns the timestamp and value at position i.
func (s *Series) At(i int) (time.Time, float64) { return s.ts[i], s.vals[i] }

// Timestamps returns a copy of the index.
func (s *Series) Timestamps() []time.Time {
	out := make([]time.Time, len(s.ts))
	copy(out, s.ts)
	return out
}

// Values returns a copy of the observations.
func (s *Series) Values() []float64 {
	out := make([]float64, len(s.vals))
	copy(out, s.vals)
	return out
}

// Slice selects the given index positions. Positions must be increasing;
// the result shares no storage with the receiver.
func (s *Series) Slice(positions []int) *Series {
	ts := make([]time.Time, 0, len(positions))
	vals := make([]float64, 0, len(positions))
	for _, p := range positions {
		ts = append(ts, s.ts[p])
		vals = append(vals, s.vals[p])
	}
	return &Series{ts: ts, vals: vals}
}

// Concat joins segments in the given order into one series. Segments must
// be chronologically disjoint; the combined index is re-validated.
func Concat(segments ...*Series) (*Series, error) {
	var ts []time.Time
	var vals []float64
	for _, seg := range segments {
		if seg.Empty() {
			continue
		}
		ts = append(ts, seg.ts...)
		vals = append(vals, seg.vals...)
	}
	return NewSeries(ts, vals)
}

// ResampleDailySum buckets observations by UTC calendar day and sums each
// bucket, mirroring a daily-frequency resample of period returns.
func (s *Series) ResampleDailySum() *Series {
	if s.Empty() {
		return EmptySeries()
	}
	sums := make(map[time.Time]float64)
	for i, t := range s.ts {
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		sums[day] += s.vals[i]
	}
	days := make([]time.Time, 0, len(sums))
	for d := range sums {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	vals := make([]float64, len(days))
	for i, d := range days {
		vals[i] = sums[d]
	}
	return &Series{ts: days, vals: vals}
}

// CumSum returns the running total of the series values.
func (s *Series) CumSum() *Series {
	ts := make([]time.Time, len(s.ts))
	copy(ts, s.ts)
	vals := make([]float64, len(s.vals))
	total := 0.0
	for i, v := range s.vals {
		total += v
		vals[i] = total
	}
	return &Series{ts: ts, vals: vals}
}

// DropNaN removes observations whose value is NaN.
func (s *Series) DropNaN() *Series {
	ts := make([]time.Time, 0, len(s.ts))
	vals := make([]float64, 0, len(s.vals))
	for i, v := range s.vals {
		if math.IsNaN(v) {
			continue
		}
		ts = append(ts, s.ts[i])
		vals = append(vals, v)
	}
	return &Series{ts: ts, vals: vals}
}
