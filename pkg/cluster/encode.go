package cluster

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/optimizer"
)

// encode turns trials into a feature matrix: numeric fields standardized
// to zero mean and unit variance, list fields standardized elementwise,
// categorical and boolean fields one-hot encoded. The validation score is
// a Trial field, not a parameter, so it never leaks into the features.
func encode(trials []*optimizer.Trial) [][]float64 {
	names := paramNames(trials)
	var columns [][]float64
	for _, name := range names {
		sample := trials[0].Params[name]
		switch sample.Kind {
		case optimizer.KindFloat, optimizer.KindInt:
			col := make([]float64, len(trials))
			for i, t := range trials {
				v, _ := t.Params[name].Numeric()
				col[i] = v
			}
			columns = append(columns, standardize(col))
		case optimizer.KindFloats:
			for j := range sample.Floats {
				col := make([]float64, len(trials))
				for i, t := range trials {
					col[i] = t.Params[name].Floats[j]
				}
				columns = append(columns, standardize(col))
			}
		default:
			for _, cat := range categories(trials, name) {
				col := make([]float64, len(trials))
				for i, t := range trials {
					if t.Params[name].String() == cat {
						col[i] = 1
					}
				}
				columns = append(columns, col)
			}
		}
	}

	rows := make([][]float64, len(trials))
	for i := range rows {
		rows[i] = make([]float64, len(columns))
		for j, col := range columns {
			rows[i][j] = col[i]
		}
	}
	return rows
}

// paramNames returns the sorted union of parameter names across trials.
func paramNames(trials []*optimizer.Trial) []string {
	seen := make(map[string]struct{})
	for _, t := range trials {
		for name := range t.Params {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// categories returns the distinct rendered values of a categorical
// dimension in sorted order, fixing the one-hot column layout.
func categories(trials []*optimizer.Trial, name string) []string {
	seen := make(map[string]struct{})
	for _, t := range trials {
		seen[t.Params[name].String()] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func standardize(col []float64) []float64 {
	mean := stat.Mean(col, nil)
	sd := stat.StdDev(col, nil)
	out := make([]float64, len(col))
	for i, v := range col {
		if sd == 0 {
			out[i] = 0
			continue
		}
		out[i] = (v - mean) / sd
	}
	return out
}
