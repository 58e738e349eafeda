package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Search metrics
	trialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cpcv_trials_total",
			Help: "Total number of trials scored during search",
		},
		[]string{"fold"},
	)

	duplicatesSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cpcv_duplicate_trials_skipped_total",
			Help: "Total number of duplicate parameter proposals discarded before scoring",
		},
	)

	evalFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cpcv_eval_failures_total",
			Help: "Total number of evaluation function failures",
		},
		[]string{"stage"},
	)

	bestScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cpcv_fold_best_score",
			Help: "Best training score observed per fold",
		},
		[]string{"fold"},
	)

	// Stress metrics
	stressEvaluated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cpcv_stress_trials_evaluated_total",
			Help: "Total number of parameter sets evaluated by the stress runner",
		},
	)
)

func init() {
	prometheus.MustRegister(trialsTotal)
	prometheus.MustRegister(duplicatesSkipped)
	prometheus.MustRegister(evalFailures)
	prometheus.MustRegister(bestScore)
	prometheus.MustRegister(stressEvaluated)
}

// ObserveTrial records one scored trial for a fold.
func ObserveTrial(fold string) {
	trialsTotal.WithLabelValues(fold).Inc()
}

// ObserveDuplicate records one duplicate proposal discarded before scoring.
func ObserveDuplicate() {
	duplicatesSkipped.Inc()
}

// ObserveEvalFailure records one evaluation failure at the given stage.
func ObserveEvalFailure(stage string) {
	evalFailures.WithLabelValues(stage).Inc()
}

// SetBestScore publishes the best training score for a fold.
func SetBestScore(fold string, score float64) {
	bestScore.WithLabelValues(fold).Set(score)
}

// ObserveStressTrial records one stress-tested parameter set.
func ObserveStressTrial() {
	stressEvaluated.Inc()
}

// Handler returns the Prometheus metrics endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
