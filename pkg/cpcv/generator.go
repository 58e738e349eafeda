package cpcv

import (
	"fmt"
)

// Package cpcv builds combinatorial purged cross-validation splits: the
// time axis is cut into n contiguous groups, every C(n,k) choice of k test
// groups becomes one fold, and the folds are rewoven into n_paths full
// out-of-sample paths that each cover the whole span exactly once.

// SplitPlan is the immutable output of Generate.
type SplitPlan struct {
	TSpan     int
	NumGroups int // n
	TestSize  int // k
	NumFolds  int // C(n, k)
	NumPaths  int // C(n, k) * k / n

	// GroupOf maps each time step to its contiguous group id.
	GroupOf []int
	// TestGroups lists, per fold, the group ids held out as test data.
	TestGroups [][]int
	// IsTest marks, per [time step][fold], whether the step is held out.
	IsTest [][]bool
	// PathFolds maps [group][path] to the fold id serving that group's
	// test role on that path.
	PathFolds [][]int
	// Paths maps [time step][path] to the fold id, expanding PathFolds
	// along the time axis.
	Paths [][]int
}

// Generate partitions tSpan time steps into n groups and enumerates all
// C(n, k) test-group combinations. The configuration must yield an exact
// integer path count; anything else is a usage error.
func Generate(tSpan, n, k int) (*SplitPlan, error) {
	if tSpan <= 0 {
		return nil, fmt.Errorf("cpcv: t_span must be positive, got %d", tSpan)
	}
	if n < 1 || n > tSpan {
		return nil, fmt.Errorf("cpcv: group count n=%d out of range [1, %d]", n, tSpan)
	}
	if k < 1 || k > n {
		return nil, fmt.Errorf("cpcv: test group count k=%d out of range [1, %d]", k, n)
	}
	numFolds := binomial(n, k)
	if numFolds*k%n != 0 {
		return nil, fmt.Errorf("cpcv: C(%d,%d)*%d = %d is not divisible by %d, no exact path cover exists",
			n, k, k, numFolds*k, n)
	}
	numPaths := numFolds * k / n

	// Contiguous groups of tSpan/n steps, remainder absorbed by the last.
	groupOf := make([]int, tSpan)
	size := tSpan / n
	for t := 0; t < tSpan; t++ {
		g := t / size
		if g >= n {
			g = n - 1
		}
		groupOf[t] = g
	}

	testGroups := combinations(n, k)

	isTestGroup := make([][]bool, n)
	for g := range isTestGroup {
		isTestGroup[g] = make([]bool, numFolds)
	}
	isTest := make([][]bool, tSpan)
	for t := range isTest {
		isTest[t] = make([]bool, numFolds)
	}
	for fold, combo := range testGroups {
		for _, g := range combo {
			isTestGroup[g][fold] = true
			for t := 0; t < tSpan; t++ {
				if groupOf[t] == g {
					isTest[t][fold] = true
				}
			}
		}
	}

	// Greedy path assignment: each group consumes its not-yet-used test
	// folds in enumeration order, one per path. Exactness of the path
	// count guarantees every group has exactly numPaths test memberships.
	pathFolds := make([][]int, n)
	for g := range pathFolds {
		pathFolds[g] = make([]int, numPaths)
	}
	for p := 0; p < numPaths; p++ {
		for g := 0; g < n; g++ {
			fold := firstTrue(isTestGroup[g])
			pathFolds[g][p] = fold
			isTestGroup[g][fold] = false
		}
	}

	paths := make([][]int, tSpan)
	for t := range paths {
		paths[t] = make([]int, numPaths)
		for p := 0; p < numPaths; p++ {
			paths[t][p] = pathFolds[groupOf[t]][p]
		}
	}

	return &SplitPlan{
		TSpan:      tSpan,
		NumGroups:  n,
		TestSize:   k,
		NumFolds:   numFolds,
		NumPaths:   numPaths,
		GroupOf:    groupOf,
		TestGroups: testGroups,
		IsTest:     isTest,
		PathFolds:  pathFolds,
		Paths:      paths,
	}, nil
}

// combinations enumerates all k-subsets of {0..n-1} in lexicographic
// order, matching the fold numbering the rest of the pipeline relies on.
func combinations(n, k int) [][]int {
	var out [][]int
	combo := make([]int, k)
	var walk func(start, depth int)
	walk = func(start, depth int) {
		if depth == k {
			c := make([]int, k)
			copy(c, combo)
			out = append(out, c)
			return
		}
		for g := start; g < n; g++ {
			combo[depth] = g
			walk(g+1, depth+1)
		}
	}
	walk(0, 0)
	return out
}

func binomial(n, k int) int {
	if k < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	result := 1
	for i := 0; i < k; i++ {
		result = result * (n - i) / (i + 1)
	}
	return result
}

func firstTrue(flags []bool) int {
	for i, f := range flags {
		if f {
			return i
		}
	}
	return 0
}
