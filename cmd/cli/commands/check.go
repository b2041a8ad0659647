package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/datawatch/datawatch/internal/config"
	"github.com/datawatch/datawatch/internal/dataset"
	"github.com/datawatch/datawatch/internal/observability/logging"
	"github.com/datawatch/datawatch/internal/quality"
	"github.com/datawatch/datawatch/pkg/models"
)

// CheckOptions configures a single quality check run.
type CheckOptions struct {
	ConfigFile      string
	InputFile       string
	SkipMissing     bool
	SkipDuplicates  bool
	SkipOutliers    bool
	OutlierMethod   string
	UseMultivariate bool
	KeyColumns      []string
	OutputFormat    string
	OutputFile      string
	Verbose         bool
}

// NewCheckCmd builds the quality check command.
func NewCheckCmd() *cobra.Command {
	opts := &CheckOptions{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run quality checks on a dataset file",
		Long: `Analyze a CSV or JSON dataset for missing values, duplicate rows and
statistical outliers, and compute an overall weighted quality score.`,
		Example: `  # Full quality check
  datawatch check --input sales.csv

  # Outliers only, using both detection methods
  datawatch check --input sales.csv --skip-missing --skip-duplicates --method both

  # Key-based duplicate detection with JSON output
  datawatch check --input sales.csv --key-columns order_id --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigFile, "config", "", "config file (default ./datawatch.yaml)")
	cmd.Flags().StringVarP(&opts.InputFile, "input", "i", "", "Dataset file to analyze (required)")
	cmd.Flags().BoolVar(&opts.SkipMissing, "skip-missing", false, "Skip missing value analysis")
	cmd.Flags().BoolVar(&opts.SkipDuplicates, "skip-duplicates", false, "Skip duplicate detection")
	cmd.Flags().BoolVar(&opts.SkipOutliers, "skip-outliers", false, "Skip outlier detection")
	cmd.Flags().StringVar(&opts.OutlierMethod, "method", "", "Outlier method (iqr, z_score, both)")
	cmd.Flags().BoolVar(&opts.UseMultivariate, "multivariate", false, "Run isolation forest multivariate detection")
	cmd.Flags().StringSliceVar(&opts.KeyColumns, "key-columns", nil, "Columns for key-based duplicate detection")
	cmd.Flags().StringVar(&opts.OutputFormat, "format", "text", "Output format (text, json)")
	cmd.Flags().StringVarP(&opts.OutputFile, "output", "o", "-", "Output file (- for stdout)")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Verbose logging")

	cmd.MarkFlagRequired("input")

	return cmd
}

func runCheck(opts *CheckOptions) error {
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return err
	}

	level := "warn"
	if opts.Verbose {
		level = cfg.Logging.Level
	}
	logger := logging.New(level, cfg.Logging.Format)

	reader := dataset.NewFileReader(logger)
	ds, err := reader.Read(opts.InputFile)
	if err != nil {
		return err
	}

	engine := quality.NewEngine(
		quality.MissingConfig{
			WarnThreshold:  cfg.Quality.MissingWarnThreshold,
			ErrorThreshold: cfg.Quality.MissingErrorThreshold,
		},
		quality.OutlierConfig{
			Method:          quality.OutlierMethod(cfg.Quality.OutlierMethod),
			IQRMultiplier:   cfg.Quality.IQRMultiplier,
			ZScoreThreshold: cfg.Quality.ZScoreThreshold,
		},
		cfg.Quality.Weights.ScoringWeights(),
		quality.NewIsolationForest(logger),
		logger,
	)

	checkOpts := quality.DefaultCheckOptions()
	checkOpts.CheckMissing = !opts.SkipMissing
	checkOpts.CheckDuplicates = !opts.SkipDuplicates
	checkOpts.CheckOutliers = !opts.SkipOutliers
	checkOpts.UseMultivariate = opts.UseMultivariate
	checkOpts.KeyColumns = opts.KeyColumns

	if opts.OutlierMethod != "" {
		outlierCfg := quality.DefaultOutlierConfig()
		outlierCfg.Method = quality.OutlierMethod(opts.OutlierMethod)
		if err := outlierCfg.Validate(); err != nil {
			return err
		}
		checkOpts.OutlierMethod = outlierCfg.Method
	}

	report, err := engine.Check(ds, filepath.Base(opts.InputFile), "", checkOpts)
	if err != nil {
		return err
	}

	if opts.OutputFormat == "json" {
		return writeReportJSON(report, opts.OutputFile)
	}
	printReport(report)
	return nil
}

func writeReportJSON(report *models.QualityReport, outputFile string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}

	if outputFile == "" || outputFile == "-" {
		fmt.Println(string(data))
		return nil
	}
	return os.WriteFile(outputFile, append(data, '\n'), 0o644)
}

func printReport(report *models.QualityReport) {
	fmt.Printf("Quality Report: %s\n", report.ReportID)
	fmt.Printf("File: %s (%d rows, %d columns)\n\n",
		report.Filename, report.DatasetInfo.Rows, report.DatasetInfo.Columns)

	if report.QualityScore != nil {
		fmt.Printf("Overall Score: %.2f (%s)\n", report.QualityScore.OverallScore, report.QualityScore.Grade)
		breakdown := report.QualityScore.Breakdown
		fmt.Println("Breakdown:")
		fmt.Printf("- Missing Values:     %.2f (weight %.0f%%)\n",
			breakdown.MissingValues.Score, breakdown.MissingValues.Weight)
		fmt.Printf("- Duplicates:         %.2f (weight %.0f%%)\n",
			breakdown.Duplicates.Score, breakdown.Duplicates.Weight)
		fmt.Printf("- Outliers:           %.2f (weight %.0f%%)\n",
			breakdown.Outliers.Score, breakdown.Outliers.Weight)
		fmt.Printf("- Schema Consistency: %.2f (weight %.0f%%)\n",
			breakdown.SchemaConsistency.Score, breakdown.SchemaConsistency.Weight)
	}

	if report.MissingValues != nil {
		fmt.Printf("\nMissing Values: %d across %d columns (%.2f%%)\n",
			report.MissingValues.TotalMissing,
			report.MissingValues.ColumnsAffected,
			report.MissingValues.OverallMissingPercentage)
	}

	if report.Duplicates != nil {
		fmt.Printf("Duplicate Rows: %d of %d (%.2f%%)\n",
			report.Duplicates.TotalDuplicates,
			report.DatasetInfo.Rows,
			report.Duplicates.DuplicatePercentage)
	}

	if report.Outliers != nil {
		fmt.Printf("Outliers: %d values across %d columns (%.2f%%)\n",
			report.Outliers.TotalOutliers,
			len(report.Outliers.ColumnsWithOutliers),
			report.Outliers.OutlierPercentage)
	}

	if len(report.Recommendations) > 0 {
		fmt.Println("\nRecommendations:")
		for _, rec := range report.Recommendations {
			fmt.Printf("- [%s] %s: %s\n", rec.Priority, rec.Category, rec.Message)
		}
	}

	fmt.Printf("\nIssues: %d total (%d high, %d medium, %d low)\n",
		report.Summary.TotalIssues,
		report.Summary.HighPriorityIssues,
		report.Summary.MediumPriorityIssues,
		report.Summary.LowPriorityIssues)
}
