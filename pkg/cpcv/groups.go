package cpcv

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/metrics"
	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/types"
)

// staleCutoff marks the oldest timestamp the integrity sweep accepts.
var staleCutoff = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// GroupData maps group number -> ticker -> series slice for one fold.
type GroupData map[int]types.Panel

// BuildGroupData slices each ticker's frame to the fold's index ranges and
// buckets the non-empty slices by group number. With useTest set, the test
// ranges are used where present; tickers without test ranges fall back to
// their train ranges. An integrity sweep runs per group; violations are
// logged and never abort the build.
func BuildGroupData(fold map[string]IndexRanges, panel types.Panel, useTest bool, log zerolog.Logger) GroupData {
	out := make(GroupData)
	for ticker, ranges := range fold {
		frame, ok := panel[ticker]
		if !ok {
			continue
		}
		selected := ranges.Train
		if useTest && ranges.Test != nil {
			selected = ranges.Test
		}
		for i, run := range selected {
			slice := frame.Slice(run)
			if slice.Empty() {
				continue
			}
			if out[i] == nil {
				out[i] = make(types.Panel)
			}
			out[i][ticker] = slice
		}
	}

	log.Debug().Msg("checking datetime integrity for tickers")
	for group, groupPanel := range out {
		if ok, problems := CheckIndexIntegrity(groupPanel); !ok {
			for _, p := range problems {
				log.Warn().Int("group", group).Msg(p)
			}
		}
	}
	return out
}

// CheckIndexIntegrity sweeps a panel for index defects: duplicate or
// unordered timestamps, calendar gaps against the inferred frequency,
// dates missing relative to the cross-ticker union, stale (pre-2000) and
// future timestamps. It reports problems without judging them fatal.
func CheckIndexIntegrity(panel types.Panel) (bool, []string) {
	var problems []string
	if len(panel) == 0 {
		return false, []string{"the input panel is empty"}
	}

	union := make(map[time.Time]struct{})
	for _, frame := range panel {
		for _, t := range frame.Index() {
			union[t] = struct{}{}
		}
	}

	now := time.Now()
	for ticker, frame := range panel {
		index := frame.Index()
		seen := make(map[time.Time]struct{}, len(index))
		ordered := true
		for i, t := range index {
			if _, dup := seen[t]; dup {
				problems = append(problems, fmt.Sprintf("series for %s contains duplicate timestamps", ticker))
				break
			}
			seen[t] = struct{}{}
			if i > 0 && !t.After(index[i-1]) {
				ordered = false
			}
		}
		if !ordered {
			problems = append(problems, fmt.Sprintf("index for %s is not monotonically increasing", ticker))
		}

		missing := 0
		for t := range union {
			if _, ok := seen[t]; !ok {
				missing++
			}
		}
		if missing > 0 {
			problems = append(problems, fmt.Sprintf("series for %s is missing %d dates", ticker, missing))
		}

		if len(index) > 1 {
			if freq, ok := metrics.InferFrequency(index); ok {
				gaps := 0
				for i := 1; i < len(index); i++ {
					if index[i].Sub(index[i-1]) > freq {
						gaps++
					}
				}
				if gaps > 0 {
					problems = append(problems, fmt.Sprintf("series for %s has %d gaps in its index", ticker, gaps))
				}
			} else {
				problems = append(problems, fmt.Sprintf("unable to infer consistent frequency for %s, cannot check for gaps", ticker))
			}
		}

		if len(index) > 0 {
			if index[len(index)-1].After(now) {
				problems = append(problems, fmt.Sprintf("series for %s contains future dates", ticker))
			}
			if index[0].Before(staleCutoff) {
				problems = append(problems, fmt.Sprintf("series for %s contains very old dates (before year 2000)", ticker))
			}
		}
	}
	return len(problems) == 0, problems
}
