package cpcv

import (
	"github.com/rs/zerolog"

	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/types"
)

// minRowsPerFold is the per-fold data floor: a ticker must carry more
// than this many rows per test combination to take part in the split.
const minRowsPerFold = 50

// IndexRanges holds a ticker's fold-local train and test index positions,
// each as an ordered list of consecutive runs. Test is nil for the
// degenerate whole-span assignment.
type IndexRanges struct {
	Train [][]int
	Test  [][]int
}

// Assignments is the immutable fold-assignment build for one training
// panel: per-fold per-ticker index ranges plus per-ticker path matrices.
type Assignments struct {
	// Folds maps fold id -> ticker -> index ranges.
	Folds map[int]map[string]IndexRanges
	// PathMatrix maps ticker -> [time step][path] fold id.
	PathMatrix map[string][][]int
	NumFolds   int
	NumPaths   int
}

// BuildAssignments runs the split generator per ticker and buckets the
// resulting train/test index positions into consecutive runs. When n or k
// is zero the entire span becomes a single train group with no test data.
func BuildAssignments(panel types.Panel, n, k int, log zerolog.Logger) (*Assignments, error) {
	out := &Assignments{
		Folds:      make(map[int]map[string]IndexRanges),
		PathMatrix: make(map[string][][]int),
	}

	if n == 0 || k == 0 {
		log.Info().Msg("using the entire dataset as one training group with no validation groups")
		fold := make(map[string]IndexRanges, len(panel))
		for ticker, frame := range panel {
			fold[ticker] = IndexRanges{Train: [][]int{allPositions(frame.Len())}}
		}
		out.Folds[0] = fold
		out.NumFolds = 1
		return out, nil
	}

	numFolds := binomial(n, k)
	log.Info().Int("n_splits", n).Int("n_test_splits", k).
		Msg("creating combinatorial train-val split")

	for ticker, frame := range panel {
		if frame.Len() <= numFolds*minRowsPerFold {
			log.Warn().Str("ticker", ticker).Int("rows", frame.Len()).
				Int("required", numFolds*minRowsPerFold).
				Msg("ticker too short for combinatorial split, skipping")
			continue
		}
		plan, err := Generate(frame.Len(), n, k)
		if err != nil {
			return nil, err
		}
		out.PathMatrix[ticker] = plan.Paths
		out.NumFolds = plan.NumFolds
		out.NumPaths = plan.NumPaths

		for fold := 0; fold < plan.NumFolds; fold++ {
			var train, test []int
			for t := 0; t < plan.TSpan; t++ {
				if plan.IsTest[t][fold] {
					test = append(test, t)
				} else {
					train = append(train, t)
				}
			}
			if out.Folds[fold] == nil {
				out.Folds[fold] = make(map[string]IndexRanges)
			}
			out.Folds[fold][ticker] = IndexRanges{
				Train: SplitConsecutive(train),
				Test:  SplitConsecutive(test),
			}
		}
	}
	return out, nil
}

// SplitConsecutive cuts an increasing position list into runs of
// consecutive positions.
func SplitConsecutive(positions []int) [][]int {
	if len(positions) == 0 {
		return nil
	}
	var out [][]int
	start := 0
	for i := 1; i <= len(positions); i++ {
		if i == len(positions) || positions[i] != positions[i-1]+1 {
			run := make([]int, i-start)
			copy(run, positions[start:i])
			out = append(out, run)
			start = i
		}
	}
	return out
}

func allPositions(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
