package optimizer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/internal/monitoring"
	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/internal/workerpool"
	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/cpcv"
	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/metrics"
	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/types"
)

// EvalFunc is the external evaluation contract: given a multi-ticker panel
// and a parameter assignment it returns a timestamp-indexed series of
// period returns, or an empty series when the strategy produced nothing.
// It may be expensive and it may fail.
type EvalFunc func(panel types.Panel, params Params) (*types.Series, error)

// DuplicatePolicy selects how a discarded duplicate proposal is accounted
// against the trial budget.
type DuplicatePolicy int

const (
	// CountAgainstBudget treats a discarded duplicate as one consumed
	// budget unit.
	CountAgainstBudget DuplicatePolicy = iota
	// Resample redraws a fresh proposal for the same budget unit, up to
	// ResampleAttempts times.
	Resample
)

// Config controls one fold's search.
type Config struct {
	Runs             int
	Jobs             int
	BestTrialsPct    float64
	DuplicatePolicy  DuplicatePolicy
	ResampleAttempts int
	Seed             int64
}

// FoldResult is the outcome of one fold's search.
type FoldResult struct {
	Fold int
	// Best is the fold-attributed winner, scored on validation groups.
	Best *Trial
	// TopTrials are the validated top trials in train-score order; only
	// the first carries a fold attribution.
	TopTrials []*Trial
	// AllTested are every completed trial of the search, ranked by
	// training score descending, fixed dimensions back-filled.
	AllTested []*Trial
}

// FoldOptimizer finds the parameter sets that generalize best within one
// fold: a guided search scores candidates on the training groups, then the
// retained top fraction is re-scored on the held-out validation groups.
type FoldOptimizer struct {
	space   *ParamSpace
	eval    EvalFunc
	sampler Sampler
	cfg     Config
	log     zerolog.Logger
}

// NewFoldOptimizer creates a fold optimizer with a TPE sampler.
func NewFoldOptimizer(space *ParamSpace, eval EvalFunc, cfg Config, log zerolog.Logger) *FoldOptimizer {
	if cfg.Runs <= 0 {
		cfg.Runs = 50
	}
	if cfg.Jobs <= 0 {
		cfg.Jobs = 1
	}
	if cfg.BestTrialsPct <= 0 || cfg.BestTrialsPct > 1 {
		cfg.BestTrialsPct = 0.25
	}
	if cfg.ResampleAttempts <= 0 {
		cfg.ResampleAttempts = 10
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	return &FoldOptimizer{
		space:   space,
		eval:    eval,
		sampler: NewTPESampler(space),
		cfg:     cfg,
		log:     log,
	}
}

// SetSampler overrides the search strategy.
func (o *FoldOptimizer) SetSampler(s Sampler) { o.sampler = s }

// GroupScore evaluates a parameter assignment once per group, discards
// groups whose result series is empty, and returns the mean annualized
// Sharpe across the rest. The score is NaN when every group came back
// empty; such a trial ranks below any valid trial.
func GroupScore(eval EvalFunc, params Params, groups cpcv.GroupData, log zerolog.Logger) float64 {
	groupNums := make([]int, 0, len(groups))
	for g := range groups {
		groupNums = append(groupNums, g)
	}
	sort.Ints(groupNums)

	var sharpes []float64
	for _, g := range groupNums {
		returns, err := eval(groups[g], params)
		if err != nil {
			monitoring.ObserveEvalFailure("search")
			log.Warn().Int("group", g).Err(err).Msg("evaluation failed, treating result as empty")
			continue
		}
		if returns.Empty() {
			continue
		}
		if s := metrics.AnnualSharpe(returns); !math.IsNaN(s) {
			sharpes = append(sharpes, s)
		}
	}
	if len(sharpes) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, s := range sharpes {
		sum += s
	}
	return sum / float64(len(sharpes))
}

// Optimize runs the fold's budgeted search with cfg.Jobs parallel workers
// sharing one synchronized trial history, then validates the retained top
// trials against the validation groups.
func (o *FoldOptimizer) Optimize(ctx context.Context, fold int, trainGroups, valGroups cpcv.GroupData) (*FoldResult, error) {
	if len(trainGroups) == 0 {
		return nil, fmt.Errorf("optimizer: fold %d has no training groups", fold)
	}
	foldLabel := fmt.Sprintf("%d", fold)
	o.log.Info().Int("fold", fold).Int("n_runs", o.cfg.Runs).Int("n_jobs", o.cfg.Jobs).
		Msg("starting optimization for fold")

	history := NewHistory()

	budget := make([]int, o.cfg.Runs)
	for i := range budget {
		budget[i] = i
	}
	results := workerpool.Map(ctx, budget, o.cfg.Jobs, func(_ context.Context, unit int) (*Trial, bool, error) {
		rng := rand.New(rand.NewSource(o.cfg.Seed + int64(unit)))
		attempts := 1
		if o.cfg.DuplicatePolicy == Resample {
			attempts = o.cfg.ResampleAttempts
		}
		for try := 0; try < attempts; try++ {
			params := o.sampler.Propose(history.Snapshot(), rng)
			switch history.Reserve(params) {
			case SkipDuplicate:
				monitoring.ObserveDuplicate()
				o.log.Debug().Int("fold", fold).Str("params", params.Key()).
					Msg("discarding duplicate parameter proposal")
				continue
			case Evaluate:
				trial := &Trial{Params: params, Score: GroupScore(o.eval, params, trainGroups, o.log)}
				history.Complete(trial)
				monitoring.ObserveTrial(foldLabel)
				return trial, true, nil
			}
		}
		// Budget unit lost to duplicates.
		return nil, false, nil
	})
	for _, r := range results {
		if r.Status == workerpool.StatusFailed && r.Err != nil {
			o.log.Warn().Int("fold", fold).Err(r.Err).Msg("search worker task failed")
		}
	}

	completed := history.Snapshot()
	if len(completed) == 0 {
		return nil, fmt.Errorf("optimizer: fold %d completed no trials", fold)
	}
	sortTrialsByScore(completed)
	for _, t := range completed {
		o.backfillFixed(t.Params)
	}
	monitoring.SetBestScore(foldLabel, completed[0].Score)

	nTop := int(math.Floor(o.cfg.BestTrialsPct * float64(len(completed))))
	if nTop < 1 {
		nTop = 1
	}
	top := completed[:nTop]
	o.log.Info().Int("fold", fold).Int("completed", len(completed)).Int("top", nTop).
		Float64("best_train_score", completed[0].Score).
		Msg("search budget exhausted, validating top trials")

	validated := make([]*Trial, 0, nTop)
	for i, t := range top {
		valScore := GroupScore(o.eval, t.Params, valGroups, o.log)
		vt := &Trial{Params: t.Params.Clone(), Score: valScore}
		if i == 0 {
			f := fold
			vt.Fold = &f
		}
		validated = append(validated, vt)
		o.log.Info().Int("fold", fold).Str("params", vt.Params.Key()).
			Float64("val_score", valScore).Msg("validation performance")
	}

	return &FoldResult{
		Fold:      fold,
		Best:      validated[0],
		TopTrials: validated,
		AllTested: completed,
	}, nil
}

// backfillFixed writes fixed dimensions onto an assignment that omits
// them, so every persisted trial carries every parameter column.
func (o *FoldOptimizer) backfillFixed(p Params) {
	for _, d := range o.space.FixedDimensions() {
		if _, ok := p[d.Name]; !ok {
			p[d.Name] = *d.Fixed
		}
	}
}

// sortTrialsByScore orders trials by score descending with NaN scores
// last, preserving insertion order among equals.
func sortTrialsByScore(trials []*Trial) {
	sort.SliceStable(trials, func(i, j int) bool {
		si, sj := trials[i].Score, trials[j].Score
		if math.IsNaN(si) {
			return false
		}
		if math.IsNaN(sj) {
			return true
		}
		return si > sj
	})
}

// DedupTrials merges trials into a ledger keyed by exact parameter
// equality, keeping the first occurrence of each assignment.
func DedupTrials(trials []*Trial) []*Trial {
	seen := make(map[string]struct{}, len(trials))
	out := make([]*Trial, 0, len(trials))
	for _, t := range trials {
		key := t.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}
