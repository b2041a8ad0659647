package quality

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/datawatch/datawatch/internal/dataset"
	"github.com/datawatch/datawatch/internal/utils/stats"
	"github.com/datawatch/datawatch/pkg/models"
)

// Remediation tags shared by the analyzers.
const (
	RecommendNoAction     = "no_action"
	RecommendInvestigate  = "investigate"
	RecommendImputeMean   = "impute_mean"
	RecommendImputeMedian = "impute_median"
	RecommendImputeMode   = "impute_mode"
	RecommendForwardFill  = "forward_fill"
	RecommendDropColumn   = "drop_column"
)

// MissingConfig holds the severity thresholds for missing value analysis.
type MissingConfig struct {
	WarnThreshold  float64 `json:"warn_threshold" yaml:"warn_threshold"`
	ErrorThreshold float64 `json:"error_threshold" yaml:"error_threshold"`
}

// DefaultMissingConfig returns the standard 10%/50% thresholds.
func DefaultMissingConfig() MissingConfig {
	return MissingConfig{WarnThreshold: 10.0, ErrorThreshold: 50.0}
}

// MissingAnalyzer computes per-column and aggregate null value statistics.
type MissingAnalyzer struct {
	config MissingConfig
	logger *logrus.Logger
}

// NewMissingAnalyzer creates a missing value analyzer with the given
// thresholds.
func NewMissingAnalyzer(config MissingConfig, logger *logrus.Logger) *MissingAnalyzer {
	if logger == nil {
		logger = logrus.New()
	}
	return &MissingAnalyzer{config: config, logger: logger}
}

// Analyze computes missing value statistics for every column. The detail
// list contains only columns with at least one null, sorted by missing
// percentage descending. Zero-row datasets report zero percentages.
func (a *MissingAnalyzer) Analyze(ds *dataset.Dataset) *models.MissingAnalysis {
	a.logger.WithFields(logrus.Fields{
		"rows":    ds.NumRows(),
		"columns": ds.NumColumns(),
	}).Info("Starting missing value analysis")

	totalMissing := 0
	var columnsWithMissing []string
	var details []models.MissingColumnDetail

	for _, col := range ds.Columns() {
		count := col.NullCount()
		totalMissing += count
		if count == 0 {
			continue
		}

		columnsWithMissing = append(columnsWithMissing, col.Name)

		percentage := 0.0
		if ds.NumRows() > 0 {
			percentage = stats.Round2(float64(count) / float64(ds.NumRows()) * 100)
		}

		details = append(details, models.MissingColumnDetail{
			Column:            col.Name,
			MissingCount:      count,
			MissingPercentage: percentage,
			Severity:          a.severity(percentage),
			DataType:          string(col.Type),
			Recommendation:    a.recommend(ds, &col, percentage),
		})
	}

	sort.SliceStable(details, func(i, j int) bool {
		return details[i].MissingPercentage > details[j].MissingPercentage
	})

	totalCells := ds.NumRows() * ds.NumColumns()
	overall := 0.0
	if totalCells > 0 {
		overall = stats.Round2(float64(totalMissing) / float64(totalCells) * 100)
	}

	result := &models.MissingAnalysis{
		TotalMissing:             totalMissing,
		TotalCells:               totalCells,
		OverallMissingPercentage: overall,
		ColumnsAffected:          len(columnsWithMissing),
		ColumnsWithMissing:       columnsWithMissing,
		Details:                  details,
		Summary:                  summarize(details),
	}

	a.logger.WithFields(logrus.Fields{
		"total_missing": totalMissing,
		"percentage":    overall,
	}).Info("Missing value analysis complete")

	return result
}

func (a *MissingAnalyzer) severity(percentage float64) models.Severity {
	switch {
	case percentage >= a.config.ErrorThreshold:
		return models.SeverityHigh
	case percentage >= a.config.WarnThreshold:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// recommend picks a remediation by column type. A column past the error
// threshold is recommended for dropping regardless of type.
func (a *MissingAnalyzer) recommend(ds *dataset.Dataset, col *dataset.Column, percentage float64) string {
	if percentage >= a.config.ErrorThreshold {
		return RecommendDropColumn
	}

	switch col.Type {
	case dataset.DTypeNumeric:
		values, err := ds.NumericValues(col.Name)
		if err != nil || len(values) == 0 {
			return RecommendImputeMedian
		}
		if math.Abs(stats.Skewness(values)) > 1 {
			return RecommendImputeMedian
		}
		return RecommendImputeMean
	case dataset.DTypeText, dataset.DTypeBoolean:
		return RecommendImputeMode
	case dataset.DTypeDatetime:
		return RecommendForwardFill
	default:
		return RecommendInvestigate
	}
}

func summarize(details []models.MissingColumnDetail) models.MissingSummary {
	if len(details) == 0 {
		return models.MissingSummary{}
	}

	summary := models.MissingSummary{
		WorstColumn:     details[0].Column,
		WorstPercentage: details[0].MissingPercentage,
	}
	for _, d := range details {
		switch d.Severity {
		case models.SeverityHigh:
			summary.HighSeverity++
		case models.SeverityMedium:
			summary.MediumSeverity++
		case models.SeverityLow:
			summary.LowSeverity++
		}
	}
	return summary
}

// MissingPatterns computes row-level missing value statistics, independent
// of the column-level analysis.
func (a *MissingAnalyzer) MissingPatterns(ds *dataset.Dataset) *models.MissingPatterns {
	result := &models.MissingPatterns{}
	if ds.NumRows() == 0 {
		return result
	}

	totalMissing := 0
	for i := 0; i < ds.NumRows(); i++ {
		n := ds.MissingInRow(i)
		totalMissing += n
		if n > 0 {
			result.RowsWithMissing++
		}
		if n > 1 {
			result.RowsWithMultipleMissing++
		}
		if n == ds.NumColumns() {
			result.CompletelyEmptyRows++
		}
		if n > result.MaxMissingPerRow {
			result.MaxMissingPerRow = n
		}
	}

	result.RowsWithMissingPercentage = stats.Round2(float64(result.RowsWithMissing) / float64(ds.NumRows()) * 100)
	result.AvgMissingPerRow = stats.Round2(float64(totalMissing) / float64(ds.NumRows()))
	return result
}
