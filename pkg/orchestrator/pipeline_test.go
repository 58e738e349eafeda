package orchestrator

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/cpcv"
	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/optimizer"
	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/stress"
	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/types"
)

var panelStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// syntheticPanel builds hourly close-only frames of the given length.
func syntheticPanel(t *testing.T, tickers []string, rows int) types.Panel {
	t.Helper()
	panel := make(types.Panel, len(tickers))
	for ti, ticker := range tickers {
		index := make([]time.Time, rows)
		closes := make([]float64, rows)
		for i := 0; i < rows; i++ {
			index[i] = panelStart.Add(time.Duration(i) * time.Hour)
			closes[i] = 100 + float64(ti) + 5*math.Sin(float64(i)/24)
		}
		frame, err := types.NewFrame(index, []string{"close"}, map[string][]float64{"close": closes})
		require.NoError(t, err)
		panel[ticker] = frame
	}
	return panel
}

// driftEval rewards larger windows with a stronger positive drift so the
// search has a deterministic optimum.
func driftEval(panel types.Panel, params optimizer.Params) (*types.Series, error) {
	w, ok := params["window"]
	if !ok || w.Kind != optimizer.KindInt {
		return nil, fmt.Errorf("missing window parameter")
	}
	index := panel.UnionIndex()
	if len(index) == 0 {
		return types.EmptySeries(), nil
	}
	vals := make([]float64, len(index))
	for i, ts := range index {
		noise := 0.001
		if ts.Hour()%2 == 1 {
			noise = -0.001
		}
		vals[i] = float64(w.Int)*0.0001 + noise
	}
	return types.NewSeries(index, vals)
}

func windowSpace() *optimizer.ParamSpace {
	space := optimizer.NewParamSpace()
	space.Choice("window",
		optimizer.IntValue(10), optimizer.IntValue(20), optimizer.IntValue(30), optimizer.IntValue(40))
	return space
}

// captureBattery records the panel handed to the stress stage.
type captureBattery struct {
	panel *stress.ReturnPanel
}

func (b *captureBattery) Run(panel *stress.ReturnPanel) error {
	b.panel = panel
	return nil
}

func testConfig(saveDir string) Config {
	return Config{
		NSplits:     5,
		NTestSplits: 2,
		TrainEnd:    panelStart.Add(600 * time.Hour),
		Optimizer: optimizer.Config{
			Runs:          20,
			Jobs:          2,
			BestTrialsPct: 0.25,
			Seed:          7,
		},
		SaveDir:       saveDir,
		FilePrefix:    "run_",
		StressWorkers: 2,
	}
}

// TestPipeline_EndToEnd tests the whole workflow on a synthetic panel
func TestPipeline_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	panel := syntheticPanel(t, []string{"AAA", "BBB"}, 700)

	p := NewPipeline(cfg, windowSpace(), driftEval, zerolog.Nop())
	rc, err := p.SplitTrainTest(panel)
	require.NoError(t, err)
	require.Len(t, rc.TrainData, 2)
	require.Len(t, rc.TestData, 2)
	// The cutoff row lands on both sides of the split.
	assert.Equal(t, 601, rc.TrainData["AAA"].Len())
	assert.Equal(t, 100, rc.TestData["AAA"].Len())

	rc, err = p.BuildSplits(rc)
	require.NoError(t, err)
	assert.Equal(t, 10, rc.Assignments.NumFolds)
	assert.Equal(t, 4, rc.Assignments.NumPaths)

	ctx := context.Background()
	before := rc
	rc, err = p.OptimizeFolds(ctx, rc)
	require.NoError(t, err)
	assert.Len(t, rc.BestPerFold, 10)
	assert.NotEmpty(t, rc.TopTrials)
	assert.NotEmpty(t, rc.AllTested)
	// The pre-stage context stays untouched.
	assert.Empty(t, before.TopTrials)
	assert.Nil(t, before.BestPerFold)

	// Incremental persistence left both tables on disk.
	_, err = os.Stat(filepath.Join(dir, "run_top_params.csv"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "run_all_tested_params.csv"))
	assert.NoError(t, err)

	rc, err = p.Aggregate(rc)
	require.NoError(t, err)
	require.NotNil(t, rc.Aggregated)
	w, ok := rc.Aggregated.Params["window"]
	require.True(t, ok)
	v, numeric := w.Numeric()
	require.True(t, numeric)
	assert.GreaterOrEqual(t, v, 10.0)
	assert.LessOrEqual(t, v, 40.0)

	paths, err := p.ReconstructPaths(rc)
	require.NoError(t, err)
	require.Len(t, paths.Returns, 4)
	require.Len(t, paths.Curves, 4)
	require.Contains(t, paths.Returns, "path_0")
	require.Contains(t, paths.Returns, "path_3")
	// Every path stitches the full training span back together.
	for label, series := range paths.Returns {
		assert.Equal(t, 601, series.Len(), label)
	}
	assert.NotEmpty(t, paths.MeanMetrics)

	battery := &captureBattery{}
	returnPanel, err := p.RunStressTests(ctx, rc, battery)
	require.NoError(t, err)
	require.NotNil(t, returnPanel)
	assert.Same(t, returnPanel, battery.panel)
	assert.Len(t, returnPanel.Columns, len(returnPanel.Labels))
}

// TestPipeline_LoadResults tests resuming from persisted parameter tables
func TestPipeline_LoadResults(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	panel := syntheticPanel(t, []string{"AAA"}, 700)

	first := NewPipeline(cfg, windowSpace(), driftEval, zerolog.Nop())
	rc, err := first.SplitTrainTest(panel)
	require.NoError(t, err)
	rc, err = first.BuildSplits(rc)
	require.NoError(t, err)
	rc, err = first.OptimizeFolds(context.Background(), rc)
	require.NoError(t, err)

	second := NewPipeline(cfg, windowSpace(), driftEval, zerolog.Nop())
	loaded, err := second.LoadResults(nil)
	require.NoError(t, err)
	assert.Len(t, loaded.TopTrials, len(rc.TopTrials))
	assert.Len(t, loaded.BestPerFold, len(rc.BestPerFold))

	// The reloaded trials still aggregate.
	loaded, err = second.Aggregate(loaded)
	require.NoError(t, err)
	assert.NotNil(t, loaded.Aggregated)
}

// TestPipeline_StageOrder tests the guard on out-of-order stage calls
func TestPipeline_StageOrder(t *testing.T) {
	p := NewPipeline(testConfig(""), windowSpace(), driftEval, zerolog.Nop())
	ctx := context.Background()

	_, err := p.SplitTrainTest(nil)
	assert.Error(t, err)
	_, err = p.BuildSplits(nil)
	assert.Error(t, err)
	_, err = p.BuildSplits(&RunContext{})
	assert.Error(t, err)
	_, err = p.OptimizeFolds(ctx, &RunContext{})
	assert.Error(t, err)
	_, err = p.Aggregate(&RunContext{})
	assert.Error(t, err)
	_, err = p.ReconstructPaths(&RunContext{})
	assert.Error(t, err)
	_, err = p.RunStressTests(ctx, &RunContext{}, &captureBattery{})
	assert.Error(t, err)
	_, err = p.LoadResults(nil)
	assert.Error(t, err)
}

// TestPipeline_DropsTickersWithoutTrainingRows tests the cutoff filter
func TestPipeline_DropsTickersWithoutTrainingRows(t *testing.T) {
	cfg := testConfig("")
	cfg.TrainEnd = panelStart.Add(-time.Hour) // before every observation

	p := NewPipeline(cfg, windowSpace(), driftEval, zerolog.Nop())
	_, err := p.SplitTrainTest(syntheticPanel(t, []string{"AAA"}, 100))
	assert.Error(t, err)
}

// TestReconstructPaths_PathCountDesync tests rejection of tickers with
// diverging path counts
func TestReconstructPaths_PathCountDesync(t *testing.T) {
	p := NewPipeline(testConfig(""), windowSpace(), driftEval, zerolog.Nop())
	rc := &RunContext{
		Assignments: &cpcv.Assignments{
			PathMatrix: map[string][][]int{
				"AAA": {{0}, {1}},
				"BBB": {{0, 1}, {1, 0}},
			},
		},
		BestPerFold: map[int]*optimizer.Trial{
			0: {Params: optimizer.Params{"window": optimizer.IntValue(10)}},
		},
	}

	_, err := p.ReconstructPaths(rc)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPathDesync)
}

// TestReconstructPaths_FoldSetDesync tests rejection of tickers that
// disagree on a path's fold memberships
func TestReconstructPaths_FoldSetDesync(t *testing.T) {
	p := NewPipeline(testConfig(""), windowSpace(), driftEval, zerolog.Nop())
	rc := &RunContext{
		Assignments: &cpcv.Assignments{
			PathMatrix: map[string][][]int{
				"AAA": {{0}, {0}},
				"BBB": {{1}, {1}},
			},
		},
		BestPerFold: map[int]*optimizer.Trial{
			0: {Params: optimizer.Params{"window": optimizer.IntValue(10)}},
		},
	}

	_, err := p.ReconstructPaths(rc)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPathDesync)
}
