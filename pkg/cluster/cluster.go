package cluster

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Agglomerative complete-linkage clustering over euclidean distances with
// a deterministic smallest-index tie-break, cut at a requested cluster
// count.

type agglomCluster struct {
	members []int
	minIdx  int
}

// clusterLabels groups the rows of data into c clusters and returns one
// label per row. Labels are assigned by each cluster's smallest member
// index, so repeated runs on the same data are identical.
func clusterLabels(data [][]float64, c int) []int {
	n := len(data)
	if c < 1 {
		c = 1
	}
	if c > n {
		c = n
	}

	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		for j := i + 1; j < n; j++ {
			d := euclidean(data[i], data[j])
			dist[i][j] = d
		}
	}
	distance := func(i, j int) float64 {
		if i > j {
			i, j = j, i
		}
		return dist[i][j]
	}

	clusters := make([]*agglomCluster, n)
	for i := range clusters {
		clusters[i] = &agglomCluster{members: []int{i}, minIdx: i}
	}

	for len(clusters) > c {
		bestI, bestJ := 0, 1
		bestD := math.Inf(1)
		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				d := completeLinkage(clusters[i], clusters[j], distance)
				if d < bestD || (d == bestD && pairLess(clusters[i], clusters[j], clusters[bestI], clusters[bestJ])) {
					bestD = d
					bestI, bestJ = i, j
				}
			}
		}
		merged := &agglomCluster{
			members: append(append([]int{}, clusters[bestI].members...), clusters[bestJ].members...),
			minIdx:  clusters[bestI].minIdx,
		}
		if clusters[bestJ].minIdx < merged.minIdx {
			merged.minIdx = clusters[bestJ].minIdx
		}
		next := make([]*agglomCluster, 0, len(clusters)-1)
		for idx, cl := range clusters {
			if idx != bestI && idx != bestJ {
				next = append(next, cl)
			}
		}
		clusters = append(next, merged)
	}

	labels := make([]int, n)
	order := make([]int, len(clusters))
	for i := range order {
		order[i] = i
	}
	// Stable label numbering by smallest member index.
	for a := 0; a < len(order); a++ {
		for b := a + 1; b < len(order); b++ {
			if clusters[order[b]].minIdx < clusters[order[a]].minIdx {
				order[a], order[b] = order[b], order[a]
			}
		}
	}
	for label, idx := range order {
		for _, m := range clusters[idx].members {
			labels[m] = label
		}
	}
	return labels
}

func completeLinkage(a, b *agglomCluster, distance func(i, j int) float64) float64 {
	worst := 0.0
	for _, i := range a.members {
		for _, j := range b.members {
			if d := distance(i, j); d > worst {
				worst = d
			}
		}
	}
	return worst
}

func pairLess(ai, aj, bi, bj *agglomCluster) bool {
	if ai.minIdx != bi.minIdx {
		return ai.minIdx < bi.minIdx
	}
	return aj.minIdx < bj.minIdx
}

func euclidean(a, b []float64) float64 {
	diff := make([]float64, len(a))
	floats.SubTo(diff, a, b)
	return floats.Norm(diff, 2)
}

// wcss computes the within-cluster sum of squared distances to each
// cluster centroid for a given labeling.
func wcss(data [][]float64, labels []int, c int) float64 {
	dims := len(data[0])
	centroids := make([][]float64, c)
	counts := make([]int, c)
	for i := range centroids {
		centroids[i] = make([]float64, dims)
	}
	for i, row := range data {
		floats.Add(centroids[labels[i]], row)
		counts[labels[i]]++
	}
	for i := range centroids {
		if counts[i] > 0 {
			floats.Scale(1/float64(counts[i]), centroids[i])
		}
	}
	total := 0.0
	for i, row := range data {
		d := euclidean(row, centroids[labels[i]])
		total += d * d
	}
	return total
}

// optimalClusters picks a cluster count by the elbow heuristic: compute
// the WCSS for every candidate count, take its discrete second
// derivative, and choose the count minimizing it.
func optimalClusters(data [][]float64, maxClusters int) int {
	curve := make([]float64, maxClusters)
	for c := 1; c <= maxClusters; c++ {
		curve[c-1] = wcss(data, clusterLabels(data, c), c)
	}
	if maxClusters < 3 {
		return maxClusters
	}
	best := 2
	bestVal := math.Inf(1)
	for i := 0; i+2 < len(curve); i++ {
		second := curve[i+2] - 2*curve[i+1] + curve[i]
		if second < bestVal {
			bestVal = second
			best = i + 2
		}
	}
	return best
}
