package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/internal/logging"
	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/internal/monitoring"
	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/data"
	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/metrics"
	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/optimizer"
	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/orchestrator"
	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/reporting"
	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/stress"
	"github.com/sharavsambuu/backtest-optimizer-cpcv-opt/pkg/strategy"
)

func main() {
	flags := NewBacktestFlags()
	flag.Parse()

	if *flags.ShowHelp {
		flag.Usage()
		PrintUsageExamples()
		return
	}
	if err := ValidateBacktestFlags(flags); err != nil {
		fmt.Fprintf(os.Stderr, "invalid flags: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	// Environment file is optional.
	_ = godotenv.Load(*flags.EnvFile)

	log := logging.New(logging.Config{Level: *flags.LogLevel, Pretty: *flags.LogPretty})
	logging.SetGlobalLogger(log)

	if *flags.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", monitoring.Handler())
			log.Info().Str("addr", *flags.MetricsAddr).Msg("serving prometheus metrics")
			if err := http.ListenAndServe(*flags.MetricsAddr, mux); err != nil {
				log.Warn().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flags, log); err != nil {
		log.Error().Err(err).Msg("backtest run failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, flags *BacktestFlags, log zerolog.Logger) error {
	trainEnd, _ := time.Parse("2006-01-02", *flags.TrainEnd)

	loader := data.NewCSVLoader(log)
	panel, err := loader.LoadPanel(*flags.DataDir)
	if err != nil {
		return err
	}

	policy := optimizer.CountAgainstBudget
	if *flags.DuplicatePolicy == "resample" {
		policy = optimizer.Resample
	}

	cfg := orchestrator.Config{
		NSplits:     *flags.NSplits,
		NTestSplits: *flags.NTestSplits,
		TrainEnd:    trainEnd,
		Optimizer: optimizer.Config{
			Runs:             *flags.Runs,
			Jobs:             *flags.Jobs,
			BestTrialsPct:    *flags.BestTrialsPct,
			DuplicatePolicy:  policy,
			ResampleAttempts: *flags.ResampleAttempts,
			Seed:             *flags.Seed,
		},
		SaveDir:       *flags.SaveDir,
		FilePrefix:    *flags.FilePrefix,
		FileFormat:    *flags.Format,
		StressWorkers: *flags.StressWorkers,
	}

	pipeline := orchestrator.NewPipeline(cfg, strategy.CrossoverSpace(), strategy.CrossoverEval(), log)

	rc, err := pipeline.SplitTrainTest(panel)
	if err != nil {
		return err
	}
	rc, err = pipeline.BuildSplits(rc)
	if err != nil {
		return err
	}

	if *flags.LoadResults {
		rc, err = pipeline.LoadResults(rc)
	} else {
		rc, err = pipeline.OptimizeFolds(ctx, rc)
	}
	if err != nil {
		return err
	}

	fmt.Println("\nValidated top trials:")
	reporting.RenderTopTrials(os.Stdout, rc.TopTrials, 20)

	rc, err = pipeline.Aggregate(rc)
	if err != nil {
		return err
	}
	fmt.Println("\nAggregated parameters:")
	reporting.RenderAggregatedParams(os.Stdout, rc.Aggregated.Params)

	paths, err := pipeline.ReconstructPaths(rc)
	if err != nil {
		return err
	}
	names := metrics.MetricNames()
	mean := make([]float64, len(names))
	for i, name := range names {
		mean[i] = paths.MeanMetrics[name]
	}
	fmt.Println("\nOut-of-sample path performance:")
	reporting.RenderPathMetrics(os.Stdout, names, paths.PerPathMetrics, mean)

	if *flags.SaveDir != "" {
		renderer := reporting.NewCSVEquityRenderer()
		dest := filepath.Join(*flags.SaveDir, *flags.FilePrefix+"equity_curves.csv")
		if err := renderer.Render(paths.Curves, dest); err != nil {
			log.Warn().Err(err).Str("dest", dest).Msg("failed to save equity curves")
		} else {
			log.Info().Str("dest", dest).Msg("equity curves saved")
		}
	}

	if !*flags.SkipStress {
		battery := stress.NewSummaryBattery(os.Stdout)
		fmt.Println("\nStress-test summary:")
		if _, err := pipeline.RunStressTests(ctx, rc, battery); err != nil {
			return err
		}
	}
	return nil
}
