package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/datawatch/datawatch/internal/utils/stats"
	"github.com/datawatch/datawatch/pkg/errors"
	"github.com/datawatch/datawatch/pkg/models"
)

// Validation thresholds for ingested datasets.
const (
	MinRows               = 10
	MinColumns            = 1
	WarnMissingPercentage = 50.0

	// summaryColumnLimit caps how many numeric/categorical columns get a
	// statistics block in the metadata.
	summaryColumnLimit = 10

	topValueLimit = 5
)

// ComputeMetadata builds the full metadata record for a loaded dataset file.
// This is what baseline versions embed and what comparisons run against.
func (r *FileReader) ComputeMetadata(ds *Dataset, filename, path string) (*models.Metadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "cannot stat file")
	}

	hash, err := r.Hash(path)
	if err != nil {
		return nil, err
	}

	md := &models.Metadata{
		Filename:      filename,
		FilePath:      path,
		Timestamp:     time.Now(),
		FileSizeBytes: info.Size(),
		FileSizeMB:    stats.Round2(float64(info.Size()) / (1024 * 1024)),
		FileHash:      hash,
		Rows:          ds.NumRows(),
		Columns:       ds.NumColumns(),
		ColumnNames:   ds.ColumnNames(),
		DTypes:        ds.DTypes(),
	}

	md.MissingValues = missingCounts(ds)
	md.NumericSummary = numericSummary(ds)
	md.CategoricalSummary = categoricalSummary(ds)
	md.Duplicates = duplicateCounts(ds)

	r.logger.WithFields(map[string]interface{}{
		"file":    filename,
		"rows":    md.Rows,
		"columns": md.Columns,
		"hash":    md.FileHash,
	}).Info("Metadata computed")

	return md, nil
}

func missingCounts(ds *Dataset) models.MissingValueCounts {
	counts := make(map[string]int, ds.NumColumns())
	percentages := make(map[string]float64, ds.NumColumns())
	total := 0
	var withMissing []string

	for _, col := range ds.Columns() {
		n := col.NullCount()
		counts[col.Name] = n
		if ds.NumRows() > 0 {
			percentages[col.Name] = stats.Round2(float64(n) / float64(ds.NumRows()) * 100)
		} else {
			percentages[col.Name] = 0
		}
		total += n
		if n > 0 {
			withMissing = append(withMissing, col.Name)
		}
	}

	return models.MissingValueCounts{
		Counts:             counts,
		Percentages:        percentages,
		TotalMissing:       total,
		ColumnsWithMissing: withMissing,
	}
}

func numericSummary(ds *Dataset) map[string]models.NumericColumnSummary {
	numeric := ds.NumericColumns()
	if len(numeric) == 0 {
		return nil
	}
	if len(numeric) > summaryColumnLimit {
		numeric = numeric[:summaryColumnLimit]
	}

	summary := make(map[string]models.NumericColumnSummary, len(numeric))
	for _, name := range numeric {
		values, _ := ds.NumericValues(name)
		if len(values) == 0 {
			summary[name] = models.NumericColumnSummary{}
			continue
		}
		mean := stats.Mean(values)
		std := stats.StandardDeviation(values)
		min := stats.Min(values)
		max := stats.Max(values)
		summary[name] = models.NumericColumnSummary{
			Mean: &mean,
			Std:  &std,
			Min:  &min,
			Max:  &max,
		}
	}
	return summary
}

func categoricalSummary(ds *Dataset) map[string]models.CategoricalColumnSummary {
	var textCols []Column
	for _, col := range ds.Columns() {
		if col.Type == DTypeText {
			textCols = append(textCols, col)
		}
	}
	if len(textCols) == 0 {
		return nil
	}
	if len(textCols) > summaryColumnLimit {
		textCols = textCols[:summaryColumnLimit]
	}

	summary := make(map[string]models.CategoricalColumnSummary, len(textCols))
	for _, col := range textCols {
		freq := make(map[string]int)
		for _, v := range col.Values {
			if v != nil {
				freq[v.(string)]++
			}
		}

		values := make([]string, 0, len(freq))
		for v := range freq {
			values = append(values, v)
		}
		sort.Slice(values, func(i, j int) bool {
			if freq[values[i]] != freq[values[j]] {
				return freq[values[i]] > freq[values[j]]
			}
			return values[i] < values[j]
		})

		top := make(map[string]int, topValueLimit)
		for i, v := range values {
			if i >= topValueLimit {
				break
			}
			top[v] = freq[v]
		}

		summary[col.Name] = models.CategoricalColumnSummary{
			UniqueValues: len(freq),
			TopValues:    top,
		}
	}
	return summary
}

func duplicateCounts(ds *Dataset) models.DuplicateCounts {
	if ds.NumRows() == 0 {
		return models.DuplicateCounts{}
	}

	names := ds.ColumnNames()
	seen := make(map[string]int, ds.NumRows())
	for i := 0; i < ds.NumRows(); i++ {
		seen[ds.RowKey(i, names)]++
	}

	dupes := 0
	for _, n := range seen {
		if n > 1 {
			dupes += n - 1
		}
	}

	return models.DuplicateCounts{
		Count:      dupes,
		Percentage: stats.Round2(float64(dupes) / float64(ds.NumRows()) * 100),
	}
}

// Validate checks the structural integrity of an ingested dataset, and
// optionally its schema against the latest baseline's columns and dtypes.
// Schema mismatches are warnings, not errors.
func Validate(ds *Dataset, filename string, expectedColumns []string, expectedDTypes map[string]string) *models.ValidationReport {
	report := &models.ValidationReport{
		Filename:     filename,
		IsValid:      true,
		Warnings:     []string{},
		Errors:       []string{},
		ChecksPassed: []string{},
	}

	if ds.NumRows() < MinRows {
		report.Errors = append(report.Errors,
			fmt.Sprintf("insufficient rows: %d (minimum: %d)", ds.NumRows(), MinRows))
		report.IsValid = false
	} else {
		report.ChecksPassed = append(report.ChecksPassed,
			fmt.Sprintf("row count OK: %d rows", ds.NumRows()))
	}

	if ds.NumColumns() < MinColumns {
		report.Errors = append(report.Errors,
			fmt.Sprintf("insufficient columns: %d (minimum: %d)", ds.NumColumns(), MinColumns))
		report.IsValid = false
	} else {
		report.ChecksPassed = append(report.ChecksPassed,
			fmt.Sprintf("column count OK: %d columns", ds.NumColumns()))
	}

	var allNull, highMissing []string
	for _, col := range ds.Columns() {
		nulls := col.NullCount()
		if ds.NumRows() > 0 && nulls == ds.NumRows() {
			allNull = append(allNull, col.Name)
		}
		if ds.NumRows() > 0 && float64(nulls)/float64(ds.NumRows())*100 > WarnMissingPercentage {
			highMissing = append(highMissing, col.Name)
		}
	}
	if len(allNull) > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("columns with all null values: %s", strings.Join(allNull, ", ")))
	}
	if len(highMissing) > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("columns with >%.0f%% missing: %s", WarnMissingPercentage, strings.Join(highMissing, ", ")))
	}

	if expectedColumns != nil {
		expected := make(map[string]bool, len(expectedColumns))
		for _, name := range expectedColumns {
			expected[name] = true
		}
		current := make(map[string]bool, ds.NumColumns())
		for _, name := range ds.ColumnNames() {
			current[name] = true
		}

		var missing, extra []string
		for _, name := range expectedColumns {
			if !current[name] {
				missing = append(missing, name)
			}
		}
		for _, name := range ds.ColumnNames() {
			if !expected[name] {
				extra = append(extra, name)
			}
		}

		if len(missing) > 0 {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("missing expected columns: %s", strings.Join(missing, ", ")))
		}
		if len(extra) > 0 {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("extra columns not in baseline: %s", strings.Join(extra, ", ")))
		}
		if len(missing) == 0 && len(extra) == 0 {
			report.ChecksPassed = append(report.ChecksPassed, "column schema matches baseline")
		}
	}

	if expectedDTypes != nil {
		var mismatches []string
		dtypes := ds.DTypes()
		for _, col := range SortedColumnNames(expectedDTypes) {
			actual, present := dtypes[col]
			if present && actual != expectedDTypes[col] {
				mismatches = append(mismatches,
					fmt.Sprintf("%s: expected %s, got %s", col, expectedDTypes[col], actual))
			}
		}
		if len(mismatches) > 0 {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("data type mismatches: %s", strings.Join(mismatches, "; ")))
		}
	}

	return report
}

// FindDuplicateFile scans dir for a file with the same content hash,
// skipping temp files and the excluded path. Returns the matching path or
// empty string.
func (r *FileReader) FindDuplicateFile(dir, hash, excludePath string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "cannot list directory")
	}

	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), "temp_") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if path == excludePath {
			continue
		}
		existing, err := r.Hash(path)
		if err != nil {
			continue
		}
		if existing == hash {
			r.logger.WithField("file", entry.Name()).Warn("Duplicate file detected")
			return path, nil
		}
	}
	return "", nil
}

