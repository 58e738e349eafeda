package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/cluster"
	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/cpcv"
	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/optimizer"
	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/reporting"
	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/stress"
	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/types"
)

// Package orchestrator wires the full workflow: train/test split,
// combinatorial fold assignment, per-fold search, cross-fold parameter
// aggregation, out-of-sample path reconstruction and stress testing.
// Every stage takes the run context produced so far and returns a new
// one with its own products added; earlier contexts are never mutated.

// Config controls one complete run.
type Config struct {
	// NSplits is the number of contiguous groups the training span is cut
	// into; NTestSplits of them are held out per fold. Zero for either
	// disables cross-validation and trains on the whole span.
	NSplits     int
	NTestSplits int
	// TrainEnd is the train/test cutoff; rows at the cutoff go to both
	// sides.
	TrainEnd time.Time
	// Optimizer configures each fold's search.
	Optimizer optimizer.Config
	// SaveDir enables incremental parameter persistence when non-empty.
	SaveDir    string
	FilePrefix string
	// FileFormat is the parameter table format, "csv" (default) or "xlsx".
	FileFormat string
	// StressWorkers is the stress-stage parallelism.
	StressWorkers int
}

// RunContext carries the accumulated products of completed stages.
// Stages treat it as immutable and hand back a derived copy.
type RunContext struct {
	TrainData   types.Panel
	TestData    types.Panel
	Assignments *cpcv.Assignments

	// TopTrials are the validated trials collected across folds.
	TopTrials []*optimizer.Trial
	// AllTested is the deduplicated ledger of every trial evaluated.
	AllTested []*optimizer.Trial
	// BestPerFold maps fold id to its winner.
	BestPerFold map[int]*optimizer.Trial
	// Aggregated is the cross-fold consensus, nil before Aggregate.
	Aggregated *optimizer.Trial
}

func (rc *RunContext) derive() *RunContext {
	next := *rc
	return &next
}

// Pipeline holds the per-run collaborators shared by every stage.
type Pipeline struct {
	cfg   Config
	space *optimizer.ParamSpace
	eval  optimizer.EvalFunc
	store *reporting.ParamStore
	log   zerolog.Logger
}

// NewPipeline creates a pipeline for one optimization run.
func NewPipeline(cfg Config, space *optimizer.ParamSpace, eval optimizer.EvalFunc, log zerolog.Logger) *Pipeline {
	p := &Pipeline{
		cfg:   cfg,
		space: space,
		eval:  eval,
		log:   log,
	}
	if cfg.SaveDir != "" {
		p.store = reporting.NewParamStore(cfg.SaveDir, cfg.FilePrefix)
		if cfg.FileFormat != "" {
			p.store.Format = cfg.FileFormat
		}
	}
	return p
}

// SplitTrainTest aligns every ticker onto the union timestamp index and
// cuts the panel at the configured cutoff. Tickers with no training rows
// are dropped entirely.
func (p *Pipeline) SplitTrainTest(panel types.Panel) (*RunContext, error) {
	if len(panel) == 0 {
		return nil, fmt.Errorf("orchestrator: empty input panel")
	}
	p.log.Info().Time("train_end", p.cfg.TrainEnd).Msg("splitting data to train-test")

	aligned := types.AlignToUnionIndex(panel)
	rc := &RunContext{
		TrainData: make(types.Panel, len(aligned)),
		TestData:  make(types.Panel, len(aligned)),
	}
	for ticker, frame := range aligned {
		train := frame.Before(p.cfg.TrainEnd)
		if train.Empty() {
			p.log.Warn().Str("ticker", ticker).Msg("no training rows before cutoff, dropping ticker")
			continue
		}
		rc.TrainData[ticker] = train
		if test := frame.From(p.cfg.TrainEnd); !test.Empty() {
			rc.TestData[ticker] = test
		}
	}
	if len(rc.TrainData) == 0 {
		return nil, fmt.Errorf("orchestrator: no ticker has training data before %s", p.cfg.TrainEnd)
	}
	p.log.Info().Int("train_tickers", len(rc.TrainData)).Int("test_tickers", len(rc.TestData)).
		Msg("successfully split data")
	return rc, nil
}

// BuildSplits computes the combinatorial fold assignments over the
// training panel.
func (p *Pipeline) BuildSplits(rc *RunContext) (*RunContext, error) {
	if rc == nil || rc.TrainData == nil {
		return nil, fmt.Errorf("orchestrator: BuildSplits called before SplitTrainTest")
	}
	assignments, err := cpcv.BuildAssignments(rc.TrainData, p.cfg.NSplits, p.cfg.NTestSplits, p.log)
	if err != nil {
		return nil, err
	}
	if len(assignments.Folds) == 0 {
		return nil, fmt.Errorf("orchestrator: no ticker is long enough for %d splits with %d test splits",
			p.cfg.NSplits, p.cfg.NTestSplits)
	}
	next := rc.derive()
	next.Assignments = assignments
	return next, nil
}

// OptimizeFolds runs the search fold by fold. Results accumulate across
// folds and, when persistence is configured, both parameter tables are
// rewritten after every fold so an interrupted run keeps its progress.
func (p *Pipeline) OptimizeFolds(ctx context.Context, rc *RunContext) (*RunContext, error) {
	if rc == nil || rc.Assignments == nil {
		return nil, fmt.Errorf("orchestrator: OptimizeFolds called before BuildSplits")
	}
	next := rc.derive()
	next.TopTrials = append([]*optimizer.Trial{}, rc.TopTrials...)
	next.AllTested = append([]*optimizer.Trial{}, rc.AllTested...)
	next.BestPerFold = make(map[int]*optimizer.Trial, len(rc.Assignments.Folds))

	fo := optimizer.NewFoldOptimizer(p.space, p.eval, p.cfg.Optimizer, p.log)
	for fold := 0; fold < len(rc.Assignments.Folds); fold++ {
		ranges, ok := rc.Assignments.Folds[fold]
		if !ok {
			continue
		}
		trainGroups := cpcv.BuildGroupData(ranges, rc.TrainData, false, p.log)
		valGroups := cpcv.BuildGroupData(ranges, rc.TrainData, true, p.log)

		result, err := fo.Optimize(ctx, fold, trainGroups, valGroups)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: fold %d: %w", fold, err)
		}

		next.TopTrials = append(next.TopTrials, result.TopTrials...)
		next.AllTested = optimizer.DedupTrials(append(next.AllTested, result.AllTested...))
		next.BestPerFold[fold] = result.Best

		if p.store != nil {
			if err := p.store.Save(next.TopTrials, next.AllTested); err != nil {
				return nil, fmt.Errorf("orchestrator: saving interim results: %w", err)
			}
			p.log.Info().Str("dir", p.cfg.SaveDir).Msg("interim optimization results saved")
		}
	}
	if len(next.TopTrials) == 0 {
		return nil, fmt.Errorf("orchestrator: optimization produced no validated trials")
	}
	return next, nil
}

// LoadResults builds a context whose trial state comes from previously
// persisted tables, so aggregation and reconstruction can run without
// re-searching.
func (p *Pipeline) LoadResults(rc *RunContext) (*RunContext, error) {
	if p.store == nil {
		return nil, fmt.Errorf("orchestrator: no save dir configured")
	}
	tables, err := p.store.Load()
	if err != nil {
		return nil, err
	}
	next := &RunContext{}
	if rc != nil {
		next = rc.derive()
	}
	next.TopTrials = tables.TopTrials
	next.AllTested = tables.AllTested
	next.BestPerFold = tables.BestPerFold
	p.log.Info().Int("top", len(next.TopTrials)).Int("all_tested", len(next.AllTested)).
		Msg("loaded persisted optimization results")
	return next, nil
}

// Aggregate clusters the validated trials and stores the consensus
// parameter set of the strongest cluster on the derived context.
func (p *Pipeline) Aggregate(rc *RunContext) (*RunContext, error) {
	if rc == nil || len(rc.TopTrials) == 0 {
		return nil, fmt.Errorf("orchestrator: Aggregate called with no validated trials")
	}
	next := rc.derive()
	next.Aggregated = cluster.Aggregate(rc.TopTrials, p.log)
	p.log.Info().Str("params", next.Aggregated.Params.Key()).
		Float64("mean_val_score", next.Aggregated.Score).
		Msg("cross-fold aggregation complete")
	return next, nil
}

// RunStressTests re-evaluates the full tested ledger on the training
// panel and feeds the combined daily return panel to the battery.
func (p *Pipeline) RunStressTests(ctx context.Context, rc *RunContext, battery stress.Battery) (*stress.ReturnPanel, error) {
	if rc == nil || len(rc.AllTested) == 0 {
		return nil, fmt.Errorf("orchestrator: RunStressTests called with no tested trials")
	}
	runner := stress.NewRunner(p.eval, p.cfg.StressWorkers, p.log)
	return runner.Run(ctx, rc.AllTested, rc.TrainData, battery)
}
