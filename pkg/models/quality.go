package models

import "time"

// Severity classifies how serious a detected issue is. It is always a
// deterministic function of the issue percentage and the configured
// thresholds.
type Severity string

const (
	SeverityNone   Severity = "none"
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Priority orders recommendations for remediation.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// MissingColumnDetail describes missing values in a single column.
type MissingColumnDetail struct {
	Column            string   `json:"column"`
	MissingCount      int      `json:"missing_count"`
	MissingPercentage float64  `json:"missing_percentage"`
	Severity          Severity `json:"severity"`
	DataType          string   `json:"data_type"`
	Recommendation    string   `json:"recommendation"`
}

// MissingSummary aggregates per-column missing value severities.
type MissingSummary struct {
	HighSeverity    int     `json:"high_severity"`
	MediumSeverity  int     `json:"medium_severity"`
	LowSeverity     int     `json:"low_severity"`
	WorstColumn     string  `json:"worst_column,omitempty"`
	WorstPercentage float64 `json:"worst_percentage"`
}

// MissingAnalysis is the result of a missing value analysis over a dataset.
type MissingAnalysis struct {
	TotalMissing             int                   `json:"total_missing"`
	TotalCells               int                   `json:"total_cells"`
	OverallMissingPercentage float64               `json:"overall_missing_percentage"`
	ColumnsAffected          int                   `json:"columns_affected"`
	ColumnsWithMissing       []string              `json:"columns_with_missing"`
	Details                  []MissingColumnDetail `json:"details"`
	Summary                  MissingSummary        `json:"summary"`
}

// MissingPatterns describes row-level missing value patterns, computed
// independently of the column-level analysis.
type MissingPatterns struct {
	RowsWithMissing           int     `json:"rows_with_missing"`
	RowsWithMissingPercentage float64 `json:"rows_with_missing_percentage"`
	RowsWithMultipleMissing   int     `json:"rows_with_multiple_missing"`
	CompletelyEmptyRows       int     `json:"completely_empty_rows"`
	MaxMissingPerRow          int     `json:"max_missing_per_row"`
	AvgMissingPerRow          float64 `json:"avg_missing_per_row"`
}

// DuplicateGroup is one set of identical rows, with up to a few example rows.
type DuplicateGroup struct {
	Count int                      `json:"count"`
	Rows  []map[string]interface{} `json:"rows"`
}

// KeyDuplicateAnalysis restricts duplicate detection to a key column subset.
type KeyDuplicateAnalysis struct {
	Columns             []string `json:"columns"`
	DuplicateCount      int      `json:"duplicate_count"`
	DuplicatePercentage float64  `json:"duplicate_percentage"`
	UniqueCombinations  int      `json:"unique_combinations"`
}

// DuplicateAnalysis is the result of duplicate row detection.
// TotalDuplicates marks all occurrences of a repeated row, so
// TotalDuplicates + UniqueRows == TotalRows.
type DuplicateAnalysis struct {
	TotalRows           int                   `json:"total_rows"`
	TotalDuplicates     int                   `json:"total_duplicates"`
	DuplicatePercentage float64               `json:"duplicate_percentage"`
	DuplicateGroups     int                   `json:"duplicate_groups"`
	UniqueRows          int                   `json:"unique_rows"`
	CheckFullRow        bool                  `json:"check_full_row"`
	KeyColumns          []string              `json:"key_columns,omitempty"`
	KeyAnalysis         *KeyDuplicateAnalysis `json:"key_analysis,omitempty"`
	SampleDuplicates    []DuplicateGroup      `json:"sample_duplicates"`
	Recommendation      string                `json:"recommendation"`
	Severity            Severity              `json:"severity"`
}

// ColumnStatistics holds descriptive statistics for a numeric column.
type ColumnStatistics struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Q1     float64 `json:"q1"`
	Q3     float64 `json:"q3"`
}

// OutlierColumnDetail describes outliers detected in a single numeric column.
// Bounds are nil when the method reports none (pure z-score).
type OutlierColumnDetail struct {
	Column            string           `json:"column"`
	Method            string           `json:"method"`
	OutlierCount      int              `json:"outlier_count"`
	TotalValues       int              `json:"total_values"`
	OutlierPercentage float64          `json:"outlier_percentage"`
	LowerBound        *float64         `json:"lower_bound"`
	UpperBound        *float64         `json:"upper_bound"`
	SampleOutliers    []float64        `json:"sample_outliers"`
	Statistics        ColumnStatistics `json:"statistics"`
	Recommendation    string           `json:"recommendation"`
	Severity          Severity         `json:"severity"`
}

// MultivariateResult is the optional isolation-forest style row-level check.
// Err is set instead of results when the capability is unavailable or the
// dataset is too small; it is a soft failure, not an error return.
type MultivariateResult struct {
	Method            string  `json:"method,omitempty"`
	OutlierCount      int     `json:"outlier_count"`
	TotalRows         int     `json:"total_rows"`
	OutlierPercentage float64 `json:"outlier_percentage"`
	OutlierIndices    []int   `json:"outlier_indices,omitempty"`
	Err               string  `json:"error,omitempty"`
}

// OutlierAnalysis is the result of outlier detection over all numeric columns.
type OutlierAnalysis struct {
	TotalOutliers       int                   `json:"total_outliers"`
	TotalNumericValues  int                   `json:"total_numeric_values"`
	OutlierPercentage   float64               `json:"outlier_percentage"`
	ColumnsAnalyzed     int                   `json:"columns_analyzed"`
	ColumnsWithOutliers []string              `json:"columns_with_outliers"`
	Details             []OutlierColumnDetail `json:"details"`
	Method              string                `json:"method"`
	Multivariate        *MultivariateResult   `json:"multivariate,omitempty"`
}

// ComponentScore is one weighted component of the overall quality score.
type ComponentScore struct {
	Score        float64 `json:"score"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// ScoreBreakdown shows how each component contributed to the overall score.
type ScoreBreakdown struct {
	MissingValues     ComponentScore `json:"missing_values"`
	Duplicates        ComponentScore `json:"duplicates"`
	Outliers          ComponentScore `json:"outliers"`
	SchemaConsistency ComponentScore `json:"schema_consistency"`
}

// QualityScore is the aggregate weighted quality score for a dataset.
type QualityScore struct {
	OverallScore float64        `json:"overall_score"`
	Grade        string         `json:"grade"`
	Breakdown    ScoreBreakdown `json:"breakdown"`
}

// SchemaAnalysis is an optional schema-consistency input to the scorer.
type SchemaAnalysis struct {
	AllValid        bool     `json:"all_valid"`
	Inconsistencies []string `json:"inconsistencies"`
	TotalColumns    int      `json:"total_columns"`
}

// Recommendation is a single prioritized remediation suggestion.
type Recommendation struct {
	Priority Priority `json:"priority"`
	Category string   `json:"category"`
	Message  string   `json:"message"`
	Action   string   `json:"action"`
}

// DatasetInfo captures the shape of the analyzed dataset.
type DatasetInfo struct {
	Rows        int               `json:"rows"`
	Columns     int               `json:"columns"`
	ColumnNames []string          `json:"column_names"`
	DTypes      map[string]string `json:"dtypes"`
}

// ReportSummary counts issues by priority across all analyses.
type ReportSummary struct {
	TotalIssues          int `json:"total_issues"`
	HighPriorityIssues   int `json:"high_priority_issues"`
	MediumPriorityIssues int `json:"medium_priority_issues"`
	LowPriorityIssues    int `json:"low_priority_issues"`
}

// QualityReport is the durable record produced by one quality check. Reports
// are append-only: persisted once under ReportID and never mutated.
type QualityReport struct {
	ReportID            string           `json:"report_id"`
	FileID              string           `json:"file_id,omitempty"`
	Filename            string           `json:"filename"`
	Timestamp           time.Time        `json:"timestamp"`
	DatasetInfo         DatasetInfo      `json:"dataset_info"`
	MissingValues       *MissingAnalysis `json:"missing_values,omitempty"`
	MissingPatterns     *MissingPatterns `json:"missing_patterns,omitempty"`
	Duplicates          *DuplicateAnalysis `json:"duplicates,omitempty"`
	Outliers            *OutlierAnalysis `json:"outliers,omitempty"`
	QualityScore        *QualityScore    `json:"quality_score,omitempty"`
	Recommendations     []Recommendation `json:"recommendations"`
	Summary             ReportSummary    `json:"summary"`
	ResponseTimeSeconds float64          `json:"response_time_seconds,omitempty"`
}
