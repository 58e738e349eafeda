package stress

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/optimizer"
	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/types"
)

func hourlyReturns(t *testing.T, start time.Time, vals []float64) *types.Series {
	t.Helper()
	ts := make([]time.Time, len(vals))
	for i := range ts {
		ts[i] = start.Add(time.Duration(i) * time.Hour)
	}
	s, err := types.NewSeries(ts, vals)
	require.NoError(t, err)
	return s
}

type captureBattery struct {
	panel *ReturnPanel
}

func (b *captureBattery) Run(panel *ReturnPanel) error {
	b.panel = panel
	return nil
}

func ledger(windows ...int) []*optimizer.Trial {
	out := make([]*optimizer.Trial, len(windows))
	for i, w := range windows {
		out[i] = &optimizer.Trial{Params: optimizer.Params{"window": optimizer.IntValue(w)}}
	}
	return out
}

// TestRunner_BuildsCommonDatePanel tests the combined daily panel
func TestRunner_BuildsCommonDatePanel(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	eval := func(_ types.Panel, params optimizer.Params) (*types.Series, error) {
		n := 48
		if params["window"].Int == 2 {
			n = 72 // one extra day of coverage
		}
		vals := make([]float64, n)
		for i := range vals {
			vals[i] = 0.001
		}
		return hourlyReturns(t, start, vals), nil
	}

	battery := &captureBattery{}
	runner := NewRunner(eval, 2, zerolog.Nop())
	panel, err := runner.Run(context.Background(), ledger(1, 2), types.Panel{}, battery)
	require.NoError(t, err)
	require.NotNil(t, panel)
	require.Same(t, panel, battery.panel)

	// Only the two fully-covered days survive the intersection.
	assert.Len(t, panel.Dates, 2)
	assert.Len(t, panel.Labels, 2)
	require.Len(t, panel.Columns, 2)
	// 24 hourly returns of 0.001 bucket into one daily value.
	assert.InDelta(t, 0.024, panel.Columns[0][0], 1e-12)
}

// TestRunner_FailedEvalIsIsolated tests that one failing trial never
// aborts the batch
func TestRunner_FailedEvalIsIsolated(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	eval := func(_ types.Panel, params optimizer.Params) (*types.Series, error) {
		if params["window"].Int == 1 {
			return nil, fmt.Errorf("boom")
		}
		vals := make([]float64, 48)
		for i := range vals {
			vals[i] = 0.002
		}
		return hourlyReturns(t, start, vals), nil
	}

	runner := NewRunner(eval, 2, zerolog.Nop())
	panel, err := runner.Run(context.Background(), ledger(1, 2), types.Panel{}, nil)
	require.NoError(t, err)
	require.NotNil(t, panel)
	assert.Equal(t, []string{ledger(2)[0].Params.Key()}, panel.Labels)
}

// TestRunner_AllFailuresSkipsBattery tests the no-results path
func TestRunner_AllFailuresSkipsBattery(t *testing.T) {
	eval := func(types.Panel, optimizer.Params) (*types.Series, error) {
		return nil, fmt.Errorf("boom")
	}
	battery := &captureBattery{}
	runner := NewRunner(eval, 2, zerolog.Nop())
	panel, err := runner.Run(context.Background(), ledger(1, 2, 3), types.Panel{}, battery)
	require.NoError(t, err)
	assert.Nil(t, panel)
	assert.Nil(t, battery.panel)
}

// TestRunner_EmptySeriesSkipped tests the empty-result convention
func TestRunner_EmptySeriesSkipped(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	eval := func(_ types.Panel, params optimizer.Params) (*types.Series, error) {
		if params["window"].Int == 1 {
			return types.EmptySeries(), nil
		}
		vals := make([]float64, 24)
		for i := range vals {
			vals[i] = 0.001
		}
		return hourlyReturns(t, start, vals), nil
	}
	runner := NewRunner(eval, 1, zerolog.Nop())
	panel, err := runner.Run(context.Background(), ledger(1, 2), types.Panel{}, nil)
	require.NoError(t, err)
	require.NotNil(t, panel)
	assert.Len(t, panel.Labels, 1)
}

// TestSummaryBattery_RendersRow tests the built-in battery output
func TestSummaryBattery_RendersRow(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	dates := []time.Time{start, start.AddDate(0, 0, 1), start.AddDate(0, 0, 2)}
	panel := &ReturnPanel{
		Dates:   dates,
		Labels:  []string{"window=1:10;"},
		Columns: [][]float64{{0.01, -0.02, 0.03}},
	}

	var buf bytes.Buffer
	battery := NewSummaryBattery(&buf)
	require.NoError(t, battery.Run(panel))
	assert.Contains(t, buf.String(), "window=1:10;")
	// Header cells render uppercased.
	assert.Contains(t, buf.String(), "SHARPE")
}
