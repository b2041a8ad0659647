package quality

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/datawatch/datawatch/internal/dataset"
	"github.com/datawatch/datawatch/internal/utils/stats"
	"github.com/datawatch/datawatch/pkg/models"
)

// reportIDFormat stamps report ids, e.g. quality_report_20250114_153012.
const reportIDFormat = "20060102_150405"

// CheckOptions toggles the individual quality checks for one run.
type CheckOptions struct {
	CheckMissing    bool          `json:"check_missing"`
	CheckDuplicates bool          `json:"check_duplicates"`
	CheckOutliers   bool          `json:"check_outliers"`
	OutlierMethod   OutlierMethod `json:"outlier_method"`
	UseMultivariate bool          `json:"use_multivariate"`
	KeyColumns      []string      `json:"key_columns,omitempty"`
}

// DefaultCheckOptions enables all checks with IQR outlier detection.
func DefaultCheckOptions() CheckOptions {
	return CheckOptions{
		CheckMissing:    true,
		CheckDuplicates: true,
		CheckOutliers:   true,
		OutlierMethod:   MethodIQR,
	}
}

// Engine runs the configured analyzers over a dataset and assembles the
// resulting quality report. It holds thresholds and the multivariate
// capability; per-run toggles come in through CheckOptions.
type Engine struct {
	missingConfig   MissingConfig
	iqrMultiplier   float64
	zScoreThreshold float64
	weights         ScoringWeights
	multivariate    MultivariateDetector
	logger          *logrus.Logger
}

// NewEngine creates a quality engine with the given thresholds. multivariate
// may be nil to leave the optional row-level check unavailable.
func NewEngine(missing MissingConfig, outlier OutlierConfig, weights ScoringWeights,
	multivariate MultivariateDetector, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		missingConfig:   missing,
		iqrMultiplier:   outlier.IQRMultiplier,
		zScoreThreshold: outlier.ZScoreThreshold,
		weights:         weights,
		multivariate:    multivariate,
		logger:          logger,
	}
}

// NewDefaultEngine creates an engine with all standard thresholds and the
// isolation forest wired in as the multivariate capability.
func NewDefaultEngine(logger *logrus.Logger) *Engine {
	return NewEngine(DefaultMissingConfig(), DefaultOutlierConfig(), DefaultScoringWeights(),
		NewIsolationForest(logger), logger)
}

// Check runs the selected analyses and assembles a quality report. The
// report is a one-shot artifact: callers persist it and never mutate it.
func (e *Engine) Check(ds *dataset.Dataset, filename, fileID string, opts CheckOptions) (*models.QualityReport, error) {
	start := time.Now()

	report := &models.QualityReport{
		ReportID:  "quality_report_" + start.Format(reportIDFormat),
		FileID:    fileID,
		Filename:  filename,
		Timestamp: start,
		DatasetInfo: models.DatasetInfo{
			Rows:        ds.NumRows(),
			Columns:     ds.NumColumns(),
			ColumnNames: ds.ColumnNames(),
			DTypes:      ds.DTypes(),
		},
	}

	if opts.CheckMissing {
		analyzer := NewMissingAnalyzer(e.missingConfig, e.logger)
		report.MissingValues = analyzer.Analyze(ds)
		report.MissingPatterns = analyzer.MissingPatterns(ds)
	}

	if opts.CheckDuplicates {
		detector := NewDuplicateDetector(DuplicateConfig{
			CheckFullRow: true,
			KeyColumns:   opts.KeyColumns,
		}, e.logger)
		report.Duplicates = detector.Analyze(ds)
	}

	if opts.CheckOutliers {
		method := opts.OutlierMethod
		if method == "" {
			method = MethodIQR
		}
		detector, err := NewOutlierDetector(OutlierConfig{
			Method:          method,
			IQRMultiplier:   e.iqrMultiplier,
			ZScoreThreshold: e.zScoreThreshold,
			UseMultivariate: opts.UseMultivariate,
		}, e.multivariate, e.logger)
		if err != nil {
			return nil, err
		}
		report.Outliers = detector.Analyze(ds)
	}

	scorer := NewScorer(e.weights, e.logger)
	report.QualityScore = scorer.CalculateScore(report.MissingValues, report.Duplicates, report.Outliers, nil)
	report.Recommendations = scorer.Recommendations(report.MissingValues, report.Duplicates, report.Outliers)
	report.Summary = summarizeReport(report)
	report.ResponseTimeSeconds = stats.Round2(time.Since(start).Seconds())

	return report, nil
}

func summarizeReport(report *models.QualityReport) models.ReportSummary {
	summary := models.ReportSummary{}

	if report.MissingValues != nil {
		summary.TotalIssues += len(report.MissingValues.Details)
	}
	if report.Duplicates != nil && report.Duplicates.TotalDuplicates > 0 {
		summary.TotalIssues++
	}
	if report.Outliers != nil {
		for _, detail := range report.Outliers.Details {
			if detail.OutlierCount > 0 {
				summary.TotalIssues++
			}
		}
	}

	for _, rec := range report.Recommendations {
		switch rec.Priority {
		case models.PriorityHigh:
			summary.HighPriorityIssues++
		case models.PriorityMedium:
			summary.MediumPriorityIssues++
		case models.PriorityLow:
			summary.LowPriorityIssues++
		}
	}

	return summary
}
