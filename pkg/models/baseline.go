package models

import "time"

// MissingValueCounts summarizes missing values inside dataset metadata.
type MissingValueCounts struct {
	Counts             map[string]int     `json:"counts"`
	Percentages        map[string]float64 `json:"percentages"`
	TotalMissing       int                `json:"total_missing"`
	ColumnsWithMissing []string           `json:"columns_with_missing"`
}

// NumericColumnSummary holds basic statistics for a numeric column. Fields
// are nil when every value in the column is null.
type NumericColumnSummary struct {
	Mean *float64 `json:"mean"`
	Std  *float64 `json:"std"`
	Min  *float64 `json:"min"`
	Max  *float64 `json:"max"`
}

// CategoricalColumnSummary holds cardinality information for a text column.
type CategoricalColumnSummary struct {
	UniqueValues int            `json:"unique_values"`
	TopValues    map[string]int `json:"top_values"`
}

// DuplicateCounts summarizes duplicate rows inside dataset metadata.
type DuplicateCounts struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Metadata is the full computed metadata for an ingested dataset file. It is
// what gets embedded into a baseline version at promotion time and what
// baseline comparisons operate on.
type Metadata struct {
	Filename           string                              `json:"filename"`
	FilePath           string                              `json:"file_path"`
	Timestamp          time.Time                           `json:"timestamp"`
	FileSizeBytes      int64                               `json:"file_size_bytes"`
	FileSizeMB         float64                             `json:"file_size_mb"`
	FileHash           string                              `json:"file_hash"`
	Rows               int                                 `json:"rows"`
	Columns            int                                 `json:"columns"`
	ColumnNames        []string                            `json:"column_names"`
	DTypes             map[string]string                   `json:"dtypes"`
	MissingValues      MissingValueCounts                  `json:"missing_values"`
	NumericSummary     map[string]NumericColumnSummary     `json:"numeric_summary,omitempty"`
	CategoricalSummary map[string]CategoricalColumnSummary `json:"categorical_summary,omitempty"`
	Duplicates         DuplicateCounts                     `json:"duplicates"`
	Description        string                              `json:"description,omitempty"`
	IsBaseline         bool                                `json:"is_baseline,omitempty"`
}

// BaselineVersion is an immutable reference snapshot of a dataset: the copied
// data file plus the metadata computed for it at promotion time.
type BaselineVersion struct {
	VersionID        string    `json:"version_id"`
	VersionNumber    int       `json:"version_number"`
	CreatedAt        time.Time `json:"created_at"`
	OriginalFilename string    `json:"original_filename"`
	BaselineFilename string    `json:"baseline_filename"`
	BaselinePath     string    `json:"baseline_path"`
	Description      string    `json:"description"`
	SourceMetadata   *Metadata `json:"source_metadata"`
}

// RowCountDiff reports a row count change relative to the baseline.
// ChangePercentage is nil when the baseline had zero rows.
type RowCountDiff struct {
	Baseline         int      `json:"baseline"`
	Current          int      `json:"current"`
	Change           int      `json:"change"`
	ChangePercentage *float64 `json:"change_percentage"`
}

// ColumnCountDiff reports a column count change relative to the baseline.
type ColumnCountDiff struct {
	Baseline int `json:"baseline"`
	Current  int `json:"current"`
	Change   int `json:"change"`
}

// ColumnSchemaDiff reports column name set differences.
type ColumnSchemaDiff struct {
	MissingColumns []string `json:"missing_columns"`
	ExtraColumns   []string `json:"extra_columns"`
}

// DTypeChange reports a dtype mismatch for a column present in both schemas.
type DTypeChange struct {
	Column        string `json:"column"`
	BaselineDType string `json:"baseline_dtype"`
	CurrentDType  string `json:"current_dtype"`
}

// ComparisonReport contains the differences between current dataset metadata
// and a baseline. Diff fields are nil when the corresponding value matches;
// the report is transient and never persisted on its own.
type ComparisonReport struct {
	HasBaseline         bool              `json:"has_baseline"`
	Message             string            `json:"message,omitempty"`
	BaselineVersion     string            `json:"baseline_version,omitempty"`
	ComparisonTimestamp time.Time         `json:"comparison_timestamp,omitempty"`
	RowCount            *RowCountDiff     `json:"row_count,omitempty"`
	ColumnCount         *ColumnCountDiff  `json:"column_count,omitempty"`
	ColumnSchema        *ColumnSchemaDiff `json:"column_schema,omitempty"`
	DataTypes           []DTypeChange     `json:"data_types,omitempty"`
}

// Differences counts the diff sections present in the report.
func (c *ComparisonReport) Differences() int {
	n := 0
	if c.RowCount != nil {
		n++
	}
	if c.ColumnCount != nil {
		n++
	}
	if c.ColumnSchema != nil {
		n++
	}
	if len(c.DataTypes) > 0 {
		n++
	}
	return n
}

// ValidationReport is the outcome of structural validation of an uploaded
// dataset, optionally against the latest baseline schema.
type ValidationReport struct {
	Filename     string   `json:"filename"`
	IsValid      bool     `json:"is_valid"`
	Warnings     []string `json:"warnings"`
	Errors       []string `json:"errors"`
	ChecksPassed []string `json:"checks_passed"`
}
