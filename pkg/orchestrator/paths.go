package orchestrator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/metrics"
	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/types"
)

// ErrPathDesync signals tickers whose backtest-path matrices disagree:
// either a different path count, or a path column whose fold memberships
// differ between tickers. Reconstruction cannot stitch such paths and
// aborts.
var ErrPathDesync = errors.New("orchestrator: tickers have diverging backtest paths")

// PathResult holds the reconstructed out-of-sample performance.
type PathResult struct {
	// Returns maps path label to the stitched raw return series.
	Returns map[string]*types.Series
	// Curves maps path label to the daily cumulative return curve.
	Curves map[string]*types.Series
	// PerPathMetrics holds each path's metric values in MetricNames order.
	PerPathMetrics map[string][]float64
	// MeanMetrics is the cross-path mean per metric.
	MeanMetrics map[string]float64
}

// ReconstructPaths stitches every backtest path back together from the
// held-out groups, scoring each group with its fold's winning parameters.
// Every timestamp of the training span appears in exactly one fold per
// path, so the stitched series covers the span without overlap.
func (p *Pipeline) ReconstructPaths(rc *RunContext) (*PathResult, error) {
	if rc == nil || rc.Assignments == nil {
		return nil, fmt.Errorf("orchestrator: ReconstructPaths called before BuildSplits")
	}
	if len(rc.Assignments.PathMatrix) == 0 {
		return nil, fmt.Errorf("orchestrator: no backtest paths were generated")
	}
	if len(rc.BestPerFold) == 0 {
		return nil, fmt.Errorf("orchestrator: ReconstructPaths called with no per-fold winners")
	}
	p.log.Info().Msg("reconstructing validation equity curves")

	tickers := make([]string, 0, len(rc.Assignments.PathMatrix))
	for ticker := range rc.Assignments.PathMatrix {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	numPaths := len(rc.Assignments.PathMatrix[tickers[0]][0])
	if err := checkPathSync(rc, tickers, numPaths); err != nil {
		return nil, err
	}

	result := &PathResult{
		Returns:        make(map[string]*types.Series, numPaths),
		Curves:         make(map[string]*types.Series, numPaths),
		PerPathMetrics: make(map[string][]float64, numPaths),
	}
	names := metrics.MetricNames()
	var allMetrics []map[string]float64

	for path := 0; path < numPaths; path++ {
		label := fmt.Sprintf("path_%d", path)
		p.log.Info().Int("path", path).Msg("reconstructing path")

		var segments []*types.Series
		for _, fold := range pathFolds(rc.Assignments.PathMatrix[tickers[0]], path) {
			winner, ok := rc.BestPerFold[fold]
			if !ok {
				return nil, fmt.Errorf("orchestrator: path %d references fold %d with no winner", path, fold)
			}
			sub := make(types.Panel, len(tickers))
			for _, ticker := range tickers {
				positions := foldPositions(rc.Assignments.PathMatrix[ticker], path, fold)
				sub[ticker] = rc.TrainData[ticker].Slice(positions)
			}
			returns, err := p.eval(sub, winner.Params)
			if err != nil {
				return nil, fmt.Errorf("orchestrator: path %d fold %d evaluation: %w", path, fold, err)
			}
			if !returns.Empty() {
				segments = append(segments, returns)
			}
		}
		sort.SliceStable(segments, func(i, j int) bool {
			ti, _ := segments[i].At(0)
			tj, _ := segments[j].At(0)
			return ti.Before(tj)
		})
		stitched, err := types.Concat(segments...)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: stitching path %d: %w", path, err)
		}

		result.Returns[label] = stitched
		result.Curves[label] = stitched.ResampleDailySum().CumSum()

		m := metrics.Calculate(stitched)
		allMetrics = append(allMetrics, m)
		row := make([]float64, len(names))
		for i, name := range names {
			row[i] = m[name]
		}
		result.PerPathMetrics[label] = row
	}

	result.MeanMetrics = metrics.MeanAcross(allMetrics)
	for _, name := range names {
		p.log.Info().Str("metric", name).Float64("mean", result.MeanMetrics[name]).
			Msg("cross-path mean metric")
	}
	return result, nil
}

// checkPathSync verifies every ticker agrees on the path count and on
// which folds make up each path.
func checkPathSync(rc *RunContext, tickers []string, numPaths int) error {
	reference := rc.Assignments.PathMatrix[tickers[0]]
	for _, ticker := range tickers[1:] {
		matrix := rc.Assignments.PathMatrix[ticker]
		if len(matrix) == 0 || len(matrix[0]) != numPaths {
			return fmt.Errorf("%w: ticker %s has a different number of paths", ErrPathDesync, ticker)
		}
	}
	for path := 0; path < numPaths; path++ {
		want := foldSet(reference, path)
		for _, ticker := range tickers[1:] {
			if !equalIntSets(want, foldSet(rc.Assignments.PathMatrix[ticker], path)) {
				return fmt.Errorf("%w: ticker %s disagrees on the folds of path %d", ErrPathDesync, ticker, path)
			}
		}
	}
	return nil
}

// pathFolds returns the sorted distinct fold ids of one path column.
func pathFolds(matrix [][]int, path int) []int {
	set := foldSet(matrix, path)
	out := make([]int, 0, len(set))
	for fold := range set {
		out = append(out, fold)
	}
	sort.Ints(out)
	return out
}

func foldSet(matrix [][]int, path int) map[int]struct{} {
	set := make(map[int]struct{})
	for t := range matrix {
		set[matrix[t][path]] = struct{}{}
	}
	return set
}

func foldPositions(matrix [][]int, path, fold int) []int {
	var out []int
	for t := range matrix {
		if matrix[t][path] == fold {
			out = append(out, t)
		}
	}
	return out
}

func equalIntSets(a, b map[int]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
