package quality

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/datawatch/datawatch/internal/dataset"
	"github.com/datawatch/datawatch/internal/utils/stats"
	"github.com/datawatch/datawatch/pkg/models"
)

// Duplicate handling recommendations.
const (
	RecommendKeepFirst        = "keep_first"
	RecommendReviewAndRemove  = "review_and_remove"
	RecommendInvestigateCause = "investigate_cause"
	RecommendMajorIssue       = "major_issue_investigate"
)

// KeepPolicy selects which occurrence of a duplicate survives.
type KeepPolicy string

const (
	KeepFirst KeepPolicy = "first"
	KeepLast  KeepPolicy = "last"
	KeepNone  KeepPolicy = "none"
)

const (
	sampleGroupLimit   = 5
	sampleRowsPerGroup = 3
)

// DuplicateConfig controls duplicate detection.
type DuplicateConfig struct {
	CheckFullRow bool     `json:"check_full_row" yaml:"check_full_row"`
	KeyColumns   []string `json:"key_columns,omitempty" yaml:"key_columns,omitempty"`
}

// DefaultDuplicateConfig enables full-row checking with no key columns.
func DefaultDuplicateConfig() DuplicateConfig {
	return DuplicateConfig{CheckFullRow: true}
}

// DuplicateDetector finds identical rows, either across the full row or a
// key column subset.
type DuplicateDetector struct {
	config DuplicateConfig
	logger *logrus.Logger
}

// NewDuplicateDetector creates a duplicate detector.
func NewDuplicateDetector(config DuplicateConfig, logger *logrus.Logger) *DuplicateDetector {
	if logger == nil {
		logger = logrus.New()
	}
	return &DuplicateDetector{config: config, logger: logger}
}

// Analyze detects duplicate rows. Every occurrence of a repeated row counts
// as a duplicate, so TotalDuplicates + UniqueRows == TotalRows.
func (d *DuplicateDetector) Analyze(ds *dataset.Dataset) *models.DuplicateAnalysis {
	d.logger.WithField("rows", ds.NumRows()).Info("Starting duplicate analysis")

	totalRows := ds.NumRows()

	var (
		duplicateCount   int
		duplicateGroups  int
		sampleDuplicates []models.DuplicateGroup
	)

	if d.config.CheckFullRow && totalRows > 0 {
		groups := d.groupRows(ds, ds.ColumnNames())
		for _, rows := range groups {
			if len(rows) > 1 {
				duplicateCount += len(rows)
				duplicateGroups++
			}
		}
		sampleDuplicates = d.sampleGroups(ds, groups)
	}

	percentage := 0.0
	if totalRows > 0 {
		percentage = stats.Round2(float64(duplicateCount) / float64(totalRows) * 100)
	}

	var keyAnalysis *models.KeyDuplicateAnalysis
	if len(d.config.KeyColumns) > 0 && d.hasAllColumns(ds) {
		keyAnalysis = d.analyzeKeyColumns(ds)
	}

	result := &models.DuplicateAnalysis{
		TotalRows:           totalRows,
		TotalDuplicates:     duplicateCount,
		DuplicatePercentage: percentage,
		DuplicateGroups:     duplicateGroups,
		UniqueRows:          totalRows - duplicateCount,
		CheckFullRow:        d.config.CheckFullRow,
		KeyColumns:          d.config.KeyColumns,
		KeyAnalysis:         keyAnalysis,
		SampleDuplicates:    sampleDuplicates,
		Recommendation:      duplicateRecommendation(percentage),
		Severity:            duplicateSeverity(percentage),
	}

	d.logger.WithFields(logrus.Fields{
		"duplicates": duplicateCount,
		"percentage": percentage,
	}).Info("Duplicate analysis complete")

	return result
}

// groupRows maps row keys to the row indices sharing them, preserving first
// occurrence order via the returned ordering slice stored per group.
func (d *DuplicateDetector) groupRows(ds *dataset.Dataset, columns []string) map[string][]int {
	groups := make(map[string][]int, ds.NumRows())
	for i := 0; i < ds.NumRows(); i++ {
		key := ds.RowKey(i, columns)
		groups[key] = append(groups[key], i)
	}
	return groups
}

func (d *DuplicateDetector) sampleGroups(ds *dataset.Dataset, groups map[string][]int) []models.DuplicateGroup {
	// Order groups by first occurrence so samples are deterministic.
	var firstRows []int
	byFirst := make(map[int][]int)
	for _, rows := range groups {
		if len(rows) > 1 {
			firstRows = append(firstRows, rows[0])
			byFirst[rows[0]] = rows
		}
	}
	sort.Ints(firstRows)

	var samples []models.DuplicateGroup
	for _, first := range firstRows {
		if len(samples) >= sampleGroupLimit {
			break
		}
		rows := byFirst[first]
		group := models.DuplicateGroup{Count: len(rows)}
		for _, idx := range rows {
			if len(group.Rows) >= sampleRowsPerGroup {
				break
			}
			group.Rows = append(group.Rows, ds.Row(idx))
		}
		samples = append(samples, group)
	}
	return samples
}

func (d *DuplicateDetector) hasAllColumns(ds *dataset.Dataset) bool {
	for _, name := range d.config.KeyColumns {
		if !ds.HasColumn(name) {
			return false
		}
	}
	return true
}

func (d *DuplicateDetector) analyzeKeyColumns(ds *dataset.Dataset) *models.KeyDuplicateAnalysis {
	groups := d.groupRows(ds, d.config.KeyColumns)

	count := 0
	for _, rows := range groups {
		if len(rows) > 1 {
			count += len(rows)
		}
	}

	percentage := 0.0
	if ds.NumRows() > 0 {
		percentage = stats.Round2(float64(count) / float64(ds.NumRows()) * 100)
	}

	return &models.KeyDuplicateAnalysis{
		Columns:             d.config.KeyColumns,
		DuplicateCount:      count,
		DuplicatePercentage: percentage,
		UniqueCombinations:  len(groups),
	}
}

// DuplicateIndices returns the row indices considered duplicates under the
// keep policy: KeepFirst marks all but the first occurrence, KeepLast all
// but the last, KeepNone every occurrence.
func (d *DuplicateDetector) DuplicateIndices(ds *dataset.Dataset, keep KeepPolicy) []int {
	var columns []string
	if d.config.CheckFullRow {
		columns = ds.ColumnNames()
	} else if len(d.config.KeyColumns) > 0 {
		columns = d.config.KeyColumns
	} else {
		return nil
	}

	groups := d.groupRows(ds, columns)

	var indices []int
	for _, rows := range groups {
		if len(rows) < 2 {
			continue
		}
		switch keep {
		case KeepFirst:
			indices = append(indices, rows[1:]...)
		case KeepLast:
			indices = append(indices, rows[:len(rows)-1]...)
		default:
			indices = append(indices, rows...)
		}
	}
	sort.Ints(indices)
	return indices
}

// RemoveDuplicates drops duplicate rows under the keep policy. With inplace
// set the dataset is mutated and returned; otherwise a pruned copy is
// returned and the original is untouched.
func (d *DuplicateDetector) RemoveDuplicates(ds *dataset.Dataset, keep KeepPolicy, inplace bool) *dataset.Dataset {
	indices := d.DuplicateIndices(ds, keep)

	target := ds
	if !inplace {
		target = ds.Clone()
	}
	target.RemoveRows(indices)

	d.logger.WithFields(logrus.Fields{
		"removed": len(indices),
		"keep":    string(keep),
	}).Info("Removed duplicate rows")

	return target
}

func duplicateRecommendation(percentage float64) string {
	switch {
	case percentage == 0:
		return RecommendNoAction
	case percentage < 1:
		return RecommendKeepFirst
	case percentage < 5:
		return RecommendReviewAndRemove
	case percentage < 20:
		return RecommendInvestigateCause
	default:
		return RecommendMajorIssue
	}
}

func duplicateSeverity(percentage float64) models.Severity {
	switch {
	case percentage == 0:
		return models.SeverityNone
	case percentage < 1:
		return models.SeverityLow
	case percentage < 5:
		return models.SeverityMedium
	default:
		return models.SeverityHigh
	}
}
