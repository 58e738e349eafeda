package optimizer

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoDimSpace() *ParamSpace {
	space := NewParamSpace()
	space.Choice("window", IntValue(10), IntValue(20), IntValue(30))
	space.Choice("aggressive", BoolValue(true), BoolValue(false))
	space.Fixed("fee", FloatValue(0.001))
	return space
}

// TestRandomSampler_CoversEveryDimension tests uniform proposals
func TestRandomSampler_CoversEveryDimension(t *testing.T) {
	s := &RandomSampler{Space: twoDimSpace()}
	rng := rand.New(rand.NewSource(1))

	params := s.Propose(nil, rng)
	require.Len(t, params, 3)
	assert.Contains(t, params, "window")
	assert.Contains(t, params, "aggressive")
	assert.Equal(t, FloatValue(0.001), params["fee"])
}

// TestRandomSampler_ProposesOnlyAdmissibleValues tests the choice sets
func TestRandomSampler_ProposesOnlyAdmissibleValues(t *testing.T) {
	s := &RandomSampler{Space: twoDimSpace()}
	rng := rand.New(rand.NewSource(7))

	admissible := map[int]struct{}{10: {}, 20: {}, 30: {}}
	for i := 0; i < 100; i++ {
		params := s.Propose(nil, rng)
		_, ok := admissible[params["window"].Int]
		assert.True(t, ok)
	}
}

// TestTPESampler_UniformBeforeStartup tests the startup phase
func TestTPESampler_UniformBeforeStartup(t *testing.T) {
	s := NewTPESampler(twoDimSpace())
	rng := rand.New(rand.NewSource(3))

	history := []*Trial{
		{Params: Params{"window": IntValue(10)}, Score: 1.0},
	}
	params := s.Propose(history, rng)
	require.Len(t, params, 3)
}

// TestTPESampler_PrefersGoodRegion tests that guided sampling leans
// toward values frequent among high scorers
func TestTPESampler_PrefersGoodRegion(t *testing.T) {
	s := NewTPESampler(twoDimSpace())
	rng := rand.New(rand.NewSource(42))

	// History where window=20 dominates the top quartile.
	var history []*Trial
	for i := 0; i < 10; i++ {
		history = append(history, &Trial{
			Params: Params{"window": IntValue(20), "aggressive": BoolValue(true)},
			Score:  10 + float64(i),
		})
	}
	for i := 0; i < 30; i++ {
		w := IntValue(10)
		if i%2 == 0 {
			w = IntValue(30)
		}
		history = append(history, &Trial{
			Params: Params{"window": w, "aggressive": BoolValue(false)},
			Score:  -float64(i),
		})
	}

	counts := map[int]int{}
	for i := 0; i < 400; i++ {
		params := s.Propose(history, rng)
		counts[params["window"].Int]++
	}
	assert.Greater(t, counts[20], counts[10])
	assert.Greater(t, counts[20], counts[30])
}

// TestTPESampler_IgnoresNaNScores tests that unscored trials do not feed
// the good/bad split
func TestTPESampler_IgnoresNaNScores(t *testing.T) {
	s := NewTPESampler(twoDimSpace())
	rng := rand.New(rand.NewSource(5))

	var history []*Trial
	for i := 0; i < 50; i++ {
		history = append(history, &Trial{
			Params: Params{"window": IntValue(10)},
			Score:  math.NaN(),
		})
	}
	// All-NaN history keeps the sampler in its uniform startup mode, so
	// every admissible window value should still appear.
	counts := map[int]int{}
	for i := 0; i < 300; i++ {
		params := s.Propose(history, rng)
		counts[params["window"].Int]++
	}
	assert.Len(t, counts, 3)
}
