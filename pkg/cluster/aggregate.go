package cluster

import (
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/optimizer"
)

// Package cluster distills the validated top trials collected across all
// folds into one robust representative parameter set: trials are encoded
// into feature vectors, clustered hierarchically, and the cluster with the
// highest mean validation score is aggregated fieldwise.

// minTrialsForClustering is the pool size below which clustering is
// skipped and the best trial is returned verbatim.
const minTrialsForClustering = 3

// Aggregate reduces the cross-fold validated trials to one representative
// parameter set.
func Aggregate(validated []*optimizer.Trial, log zerolog.Logger) *optimizer.Trial {
	if len(validated) == 0 {
		return nil
	}
	if len(validated) < minTrialsForClustering {
		log.Info().Int("trials", len(validated)).
			Msg("validated pool below clustering threshold, choosing best trial verbatim")
		return bestByScore(validated)
	}

	maxClusters := len(validated) / 3
	if maxClusters < 3 {
		maxClusters = 3
	}
	if maxClusters > len(validated) {
		maxClusters = len(validated)
	}
	log.Info().Int("max_clusters", maxClusters).Int("trials", len(validated)).
		Msg("starting clustering")

	data := encode(validated)
	var c int
	if maxClusters < len(validated) {
		c = optimalClusters(data, maxClusters)
	} else {
		c = maxClusters
	}
	log.Info().Int("clusters", c).Msg("optimal number of clusters")

	labels := clusterLabels(data, c)
	grouped := make(map[int][]*optimizer.Trial)
	for i, t := range validated {
		grouped[labels[i]] = append(grouped[labels[i]], t)
	}

	bestLabel := -1
	bestMean := math.Inf(-1)
	clusterLabelsSorted := make([]int, 0, len(grouped))
	for label := range grouped {
		clusterLabelsSorted = append(clusterLabelsSorted, label)
	}
	sort.Ints(clusterLabelsSorted)
	for _, label := range clusterLabelsSorted {
		mean := meanScore(grouped[label])
		if mean > bestMean {
			bestMean = mean
			bestLabel = label
		}
	}
	if bestLabel < 0 {
		return bestByScore(validated)
	}
	log.Info().Int("cluster", bestLabel).Float64("mean_score", bestMean).
		Int("members", len(grouped[bestLabel])).Msg("selected best cluster")

	return aggregateTrials(grouped[bestLabel])
}

// aggregateTrials merges a cluster into one representative: elementwise
// mean for numeric and list fields, majority vote for boolean and
// categorical fields. A single-element cluster returns its trial's
// parameters unchanged.
func aggregateTrials(trials []*optimizer.Trial) *optimizer.Trial {
	out := make(optimizer.Params)
	for _, name := range paramNames(trials) {
		values := make([]optimizer.ParamValue, 0, len(trials))
		for _, t := range trials {
			if v, ok := t.Params[name]; ok {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			continue
		}
		out[name] = aggregateValues(values)
	}
	return &optimizer.Trial{Params: out, Score: meanScore(trials)}
}

func aggregateValues(values []optimizer.ParamValue) optimizer.ParamValue {
	switch values[0].Kind {
	case optimizer.KindFloat, optimizer.KindInt:
		sum := 0.0
		for _, v := range values {
			f, _ := v.Numeric()
			sum += f
		}
		mean := sum / float64(len(values))
		if values[0].Kind == optimizer.KindInt && mean == math.Trunc(mean) {
			return optimizer.IntValue(int(mean))
		}
		return optimizer.FloatValue(mean)
	case optimizer.KindFloats:
		mean := make([]float64, len(values[0].Floats))
		for _, v := range values {
			for i, f := range v.Floats {
				mean[i] += f
			}
		}
		for i := range mean {
			mean[i] /= float64(len(values))
		}
		return optimizer.FloatsValue(mean)
	default:
		return majority(values)
	}
}

// majority picks the most frequent value; ties break toward the value
// first encountered in input order, which callers keep consistent.
func majority(values []optimizer.ParamValue) optimizer.ParamValue {
	type bucket struct {
		value optimizer.ParamValue
		count int
		first int
	}
	buckets := make(map[string]*bucket)
	for i, v := range values {
		key := v.String()
		if b, ok := buckets[key]; ok {
			b.count++
		} else {
			buckets[key] = &bucket{value: v, count: 1, first: i}
		}
	}
	var best *bucket
	for _, b := range buckets {
		if best == nil || b.count > best.count || (b.count == best.count && b.first < best.first) {
			best = b
		}
	}
	return best.value
}

func meanScore(trials []*optimizer.Trial) float64 {
	sum := 0.0
	n := 0
	for _, t := range trials {
		if math.IsNaN(t.Score) {
			continue
		}
		sum += t.Score
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

func bestByScore(trials []*optimizer.Trial) *optimizer.Trial {
	best := trials[0]
	for _, t := range trials[1:] {
		if math.IsNaN(best.Score) && !math.IsNaN(t.Score) {
			best = t
			continue
		}
		if !math.IsNaN(t.Score) && t.Score > best.Score {
			best = t
		}
	}
	return best
}
