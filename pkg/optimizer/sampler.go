package optimizer

import (
	"math"
	"math/rand"
	"sort"
)

// Sampler proposes the next candidate assignment from the history of
// completed trials. Implementations must be safe for use from one worker
// at a time per rng; the shared history snapshot is read-only.
type Sampler interface {
	Propose(history []*Trial, rng *rand.Rand) Params
}

// RandomSampler draws every searched dimension uniformly, ignoring
// history. It is the startup strategy and the baseline for tests.
type RandomSampler struct {
	Space *ParamSpace
}

// Propose draws one uniform assignment.
func (s *RandomSampler) Propose(_ []*Trial, rng *rand.Rand) Params {
	out := make(Params)
	for _, d := range s.Space.Dimensions() {
		if d.Fixed != nil {
			out[d.Name] = *d.Fixed
			continue
		}
		out[d.Name] = d.Choices[rng.Intn(len(d.Choices))]
	}
	return out
}

// TPESampler is a tree-structured Parzen estimator over discrete choices:
// completed trials are split into a good and a bad set by score quantile,
// and each dimension is sampled from a categorical distribution weighted
// toward values frequent in the good set and rare in the bad set. The
// split is shared across dimensions, so correlated choices that score
// well together are reinforced together.
type TPESampler struct {
	Space *ParamSpace
	// StartupTrials is the number of completed trials required before
	// guided sampling replaces uniform draws.
	StartupTrials int
	// Gamma is the fraction of trials forming the good set.
	Gamma float64
}

// NewTPESampler returns a TPE sampler with the conventional defaults.
func NewTPESampler(space *ParamSpace) *TPESampler {
	return &TPESampler{Space: space, StartupTrials: 10, Gamma: 0.25}
}

// Propose draws one assignment from the history-weighted distribution.
func (s *TPESampler) Propose(history []*Trial, rng *rand.Rand) Params {
	scored := make([]*Trial, 0, len(history))
	for _, t := range history {
		if !math.IsNaN(t.Score) {
			scored = append(scored, t)
		}
	}
	if len(scored) < s.StartupTrials {
		return (&RandomSampler{Space: s.Space}).Propose(history, rng)
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	nGood := int(math.Ceil(s.Gamma * float64(len(scored))))
	if nGood < 1 {
		nGood = 1
	}
	good := scored[:nGood]
	bad := scored[nGood:]

	out := make(Params)
	for _, d := range s.Space.Dimensions() {
		if d.Fixed != nil {
			out[d.Name] = *d.Fixed
			continue
		}
		out[d.Name] = d.Choices[s.sampleChoice(d, good, bad, rng)]
	}
	return out
}

// sampleChoice weights each admissible value by its smoothed frequency
// ratio between the good and bad sets, then draws from the resulting
// categorical distribution.
func (s *TPESampler) sampleChoice(d Dimension, good, bad []*Trial, rng *rand.Rand) int {
	weights := make([]float64, len(d.Choices))
	total := 0.0
	for i, choice := range d.Choices {
		goodCount := countValue(good, d.Name, choice)
		badCount := countValue(bad, d.Name, choice)
		w := (float64(goodCount) + 1) / (float64(badCount) + 1)
		weights[i] = w
		total += w
	}
	target := rng.Float64() * total
	acc := 0.0
	for i, w := range weights {
		acc += w
		if target < acc {
			return i
		}
	}
	return len(d.Choices) - 1
}

func countValue(trials []*Trial, name string, v ParamValue) int {
	n := 0
	for _, t := range trials {
		if got, ok := t.Params[name]; ok && got.Equal(v) {
			n++
		}
	}
	return n
}
