package main

import (
	"flag"
	"fmt"
	"time"
)

// BacktestFlags holds all command line flags for the CPCV backtest command.
type BacktestFlags struct {
	// Data
	DataDir  *string
	TrainEnd *string

	// Split layout
	NSplits     *int
	NTestSplits *int

	// Search
	Runs             *int
	Jobs             *int
	BestTrialsPct    *float64
	Seed             *int64
	DuplicatePolicy  *string
	ResampleAttempts *int

	// Stages
	LoadResults   *bool
	SkipStress    *bool
	StressWorkers *int

	// Output
	SaveDir    *string
	FilePrefix *string
	Format     *string

	// Observability
	MetricsAddr *string
	LogLevel    *string
	LogPretty   *bool
	EnvFile     *string

	ShowHelp *bool
}

// NewBacktestFlags creates and registers all command line flags.
func NewBacktestFlags() *BacktestFlags {
	return &BacktestFlags{
		DataDir:  flag.String("data-dir", "data", "Directory of per-ticker OHLCV CSV files"),
		TrainEnd: flag.String("train-end", "", "Train/test cutoff date (YYYY-MM-DD, required)"),

		NSplits:     flag.Int("n-splits", 5, "Number of contiguous groups the training span is cut into"),
		NTestSplits: flag.Int("n-test-splits", 2, "Number of held-out groups per fold"),

		Runs:             flag.Int("n-runs", 50, "Search budget per fold"),
		Jobs:             flag.Int("n-jobs", 1, "Parallel search workers per fold"),
		BestTrialsPct:    flag.Float64("best-trials-pct", 0.25, "Fraction of top trials kept for validation"),
		Seed:             flag.Int64("seed", 0, "Search seed (0 uses the current time)"),
		DuplicatePolicy:  flag.String("duplicate-policy", "count", "Duplicate proposal handling: count, resample"),
		ResampleAttempts: flag.Int("resample-attempts", 10, "Redraw attempts per budget unit under the resample policy"),

		LoadResults:   flag.Bool("load-results", false, "Reuse persisted parameter tables instead of re-searching"),
		SkipStress:    flag.Bool("skip-stress", false, "Skip the stress-test stage"),
		StressWorkers: flag.Int("stress-workers", 5, "Parallel workers for stress evaluation"),

		SaveDir:    flag.String("save-dir", "results", "Directory for parameter tables and equity curves (empty disables saving)"),
		FilePrefix: flag.String("file-prefix", "", "Prefix for persisted result files"),
		Format:     flag.String("format", "csv", "Parameter table format: csv, xlsx"),

		MetricsAddr: flag.String("metrics-addr", "", "Prometheus metrics listen address (empty disables)"),
		LogLevel:    flag.String("log-level", "info", "Log level: debug, info, warn, error"),
		LogPretty:   flag.Bool("log-pretty", true, "Human-readable console log output"),
		EnvFile:     flag.String("env", ".env", "Environment file path"),

		ShowHelp: flag.Bool("help", false, "Show detailed help"),
	}
}

// ValidateBacktestFlags checks flag combinations before the run starts.
func ValidateBacktestFlags(flags *BacktestFlags) error {
	if *flags.TrainEnd == "" {
		return fmt.Errorf("-train-end is required")
	}
	if _, err := time.Parse("2006-01-02", *flags.TrainEnd); err != nil {
		return fmt.Errorf("invalid -train-end %q: want YYYY-MM-DD", *flags.TrainEnd)
	}
	if *flags.NSplits < 0 || *flags.NTestSplits < 0 {
		return fmt.Errorf("-n-splits and -n-test-splits must be non-negative")
	}
	if *flags.NSplits > 0 && *flags.NTestSplits >= *flags.NSplits {
		return fmt.Errorf("-n-test-splits (%d) must be smaller than -n-splits (%d)",
			*flags.NTestSplits, *flags.NSplits)
	}
	if *flags.Runs <= 0 {
		return fmt.Errorf("-n-runs must be positive, got %d", *flags.Runs)
	}
	if *flags.BestTrialsPct <= 0 || *flags.BestTrialsPct > 1 {
		return fmt.Errorf("-best-trials-pct must be in (0, 1], got %.2f", *flags.BestTrialsPct)
	}
	switch *flags.DuplicatePolicy {
	case "count", "resample":
	default:
		return fmt.Errorf("invalid -duplicate-policy %q (valid: count, resample)", *flags.DuplicatePolicy)
	}
	switch *flags.Format {
	case "csv", "xlsx":
	default:
		return fmt.Errorf("invalid -format %q (valid: csv, xlsx)", *flags.Format)
	}
	if *flags.LoadResults && *flags.SaveDir == "" {
		return fmt.Errorf("-load-results needs -save-dir to point at persisted tables")
	}
	return nil
}

// PrintUsageExamples prints common invocations.
func PrintUsageExamples() {
	examples := []struct {
		command     string
		description string
	}{
		{
			"cpcv-backtest -data-dir data -train-end 2024-01-01",
			"Optimize with the default 5-choose-2 combinatorial split",
		},
		{
			"cpcv-backtest -data-dir data -train-end 2024-01-01 -n-splits 6 -n-test-splits 2 -n-runs 200 -n-jobs 4",
			"Larger split layout with a bigger parallel search budget",
		},
		{
			"cpcv-backtest -data-dir data -train-end 2024-01-01 -duplicate-policy resample",
			"Redraw duplicate parameter proposals instead of losing budget to them",
		},
		{
			"cpcv-backtest -data-dir data -train-end 2024-01-01 -format xlsx -save-dir results/run1",
			"Persist parameter tables as Excel workbooks",
		},
		{
			"cpcv-backtest -data-dir data -train-end 2024-01-01 -metrics-addr :9100",
			"Expose Prometheus counters while the run is in flight",
		},
		{
			"cpcv-backtest -data-dir data -train-end 2024-01-01 -save-dir results/run1 -load-results",
			"Re-aggregate and reconstruct paths from a previous run's tables",
		},
	}

	fmt.Println("\nUsage examples:")
	for _, example := range examples {
		fmt.Printf("\n  %s\n      %s\n", example.command, example.description)
	}
}
