package stress

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/internal/monitoring"
	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/internal/workerpool"
	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/optimizer"
	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/types"
)

// Package stress re-evaluates every distinct parameter set ever tried
// against the full training history and hands the combined daily return
// panel to an external stress-test battery.

// Battery is the external stress-test collaborator.
type Battery interface {
	Run(panel *ReturnPanel) error
}

// ReturnPanel is a date-aligned matrix of daily returns, one column per
// parameter set, restricted to dates where every column has a value.
type ReturnPanel struct {
	Dates   []time.Time
	Labels  []string
	Columns [][]float64 // one slice per label, aligned with Dates
}

// Runner evaluates the trial ledger in parallel worker tasks.
type Runner struct {
	eval    optimizer.EvalFunc
	workers int
	log     zerolog.Logger
}

// NewRunner creates a stress-test runner with the given parallelism.
func NewRunner(eval optimizer.EvalFunc, workers int, log zerolog.Logger) *Runner {
	if workers <= 0 {
		workers = 5
	}
	return &Runner{eval: eval, workers: workers, log: log}
}

// Run evaluates every ledger trial against the full training panel,
// builds the combined return panel, and hands it to the battery. A
// failing evaluation yields an empty series for that trial and never
// aborts the batch; with no usable results the battery is skipped.
func (r *Runner) Run(ctx context.Context, ledger []*optimizer.Trial, train types.Panel, battery Battery) (*ReturnPanel, error) {
	r.log.Info().Int("trials", len(ledger)).Int("num_workers", r.workers).
		Msg("running stress tests")

	results := workerpool.Map(ctx, ledger, r.workers, func(_ context.Context, t *optimizer.Trial) (*types.Series, bool, error) {
		returns, err := r.eval(train, t.Params)
		if err != nil {
			monitoring.ObserveEvalFailure("stress")
			r.log.Info().Str("params", t.Params.Key()).Err(err).
				Msg("PL calculation for stress tests failed")
			return types.EmptySeries(), false, nil
		}
		monitoring.ObserveStressTrial()
		if returns.Empty() {
			return types.EmptySeries(), false, nil
		}
		return returns.ResampleDailySum(), true, nil
	})

	var labels []string
	var series []*types.Series
	for i, res := range results {
		if res.Status != workerpool.StatusOK || res.Value.Empty() {
			continue
		}
		labels = append(labels, ledger[i].Params.Key())
		series = append(series, res.Value)
	}
	if len(series) == 0 {
		r.log.Warn().Msg("no usable stress-test results, skipping stress battery")
		return nil, nil
	}

	panel := combine(labels, series)
	if len(panel.Dates) == 0 {
		r.log.Warn().Msg("stress-test series share no common dates, skipping stress battery")
		return nil, nil
	}
	if battery != nil {
		if err := battery.Run(panel); err != nil {
			return panel, err
		}
	}
	return panel, nil
}

// combine intersects the series' daily indexes and assembles the panel
// of fully-covered dates.
func combine(labels []string, series []*types.Series) *ReturnPanel {
	counts := make(map[time.Time]int)
	for _, s := range series {
		for _, t := range s.Timestamps() {
			counts[t]++
		}
	}
	var dates []time.Time
	for t, c := range counts {
		if c == len(series) {
			dates = append(dates, t)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	columns := make([][]float64, len(series))
	for i, s := range series {
		byDate := make(map[time.Time]float64, s.Len())
		for j := 0; j < s.Len(); j++ {
			t, v := s.At(j)
			byDate[t] = v
		}
		col := make([]float64, len(dates))
		for j, d := range dates {
			col[j] = byDate[d]
		}
		columns[i] = col
	}
	return &ReturnPanel{Dates: dates, Labels: labels, Columns: columns}
}
