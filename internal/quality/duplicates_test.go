package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawatch/datawatch/internal/dataset"
	"github.com/datawatch/datawatch/pkg/models"
)

func duplicateTestDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	// Rows 0, 2 and 4 are identical; rows 1 and 3 are identical.
	return mustDataset(t, []dataset.Column{
		{Name: "id", Type: dataset.DTypeNumeric, Values: []interface{}{1.0, 2.0, 1.0, 2.0, 1.0, 3.0}},
		{Name: "name", Type: dataset.DTypeText, Values: []interface{}{"a", "b", "a", "b", "a", "c"}},
	})
}

func TestDuplicateAnalyzeNone(t *testing.T) {
	ds := mustDataset(t, []dataset.Column{
		{Name: "id", Type: dataset.DTypeNumeric, Values: []interface{}{1.0, 2.0, 3.0}},
	})

	detector := NewDuplicateDetector(DefaultDuplicateConfig(), testLogger())
	result := detector.Analyze(ds)

	assert.Equal(t, 0, result.TotalDuplicates)
	assert.Equal(t, 3, result.UniqueRows)
	assert.Equal(t, 0.0, result.DuplicatePercentage)
	assert.Equal(t, RecommendNoAction, result.Recommendation)
	assert.Equal(t, models.SeverityNone, result.Severity)
}

func TestDuplicateAnalyzeFullRow(t *testing.T) {
	ds := duplicateTestDataset(t)

	detector := NewDuplicateDetector(DefaultDuplicateConfig(), testLogger())
	result := detector.Analyze(ds)

	// Every occurrence of a repeated row counts
	assert.Equal(t, 6, result.TotalRows)
	assert.Equal(t, 5, result.TotalDuplicates)
	assert.Equal(t, 2, result.DuplicateGroups)
	assert.Equal(t, 1, result.UniqueRows)
	assert.Equal(t, result.TotalRows, result.TotalDuplicates+result.UniqueRows)
	assert.Equal(t, 83.33, result.DuplicatePercentage)
	assert.Equal(t, RecommendMajorIssue, result.Recommendation)
	assert.Equal(t, models.SeverityHigh, result.Severity)

	// Samples are ordered by first occurrence and capped per group
	require.Len(t, result.SampleDuplicates, 2)
	assert.Equal(t, 3, result.SampleDuplicates[0].Count)
	assert.Equal(t, "a", result.SampleDuplicates[0].Rows[0]["name"])
	assert.Equal(t, 2, result.SampleDuplicates[1].Count)
	assert.Equal(t, "b", result.SampleDuplicates[1].Rows[0]["name"])
}

func TestDuplicateNullsGroupTogether(t *testing.T) {
	ds := mustDataset(t, []dataset.Column{
		{Name: "v", Type: dataset.DTypeText, Values: []interface{}{nil, nil, "x"}},
	})

	detector := NewDuplicateDetector(DefaultDuplicateConfig(), testLogger())
	result := detector.Analyze(ds)

	assert.Equal(t, 2, result.TotalDuplicates)
	assert.Equal(t, 1, result.DuplicateGroups)
}

func TestDuplicateRecommendationLadder(t *testing.T) {
	tests := []struct {
		percentage     float64
		recommendation string
		severity       models.Severity
	}{
		{0, RecommendNoAction, models.SeverityNone},
		{0.5, RecommendKeepFirst, models.SeverityLow},
		{1, RecommendReviewAndRemove, models.SeverityMedium},
		{4.9, RecommendReviewAndRemove, models.SeverityMedium},
		{5, RecommendInvestigateCause, models.SeverityHigh},
		{19.9, RecommendInvestigateCause, models.SeverityHigh},
		{20, RecommendMajorIssue, models.SeverityHigh},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.recommendation, duplicateRecommendation(tt.percentage), "percentage %v", tt.percentage)
		assert.Equal(t, tt.severity, duplicateSeverity(tt.percentage), "percentage %v", tt.percentage)
	}
}

func TestDuplicateKeyColumns(t *testing.T) {
	ds := mustDataset(t, []dataset.Column{
		{Name: "id", Type: dataset.DTypeNumeric, Values: []interface{}{1.0, 1.0, 2.0, 3.0}},
		{Name: "value", Type: dataset.DTypeText, Values: []interface{}{"a", "b", "c", "d"}},
	})

	detector := NewDuplicateDetector(DuplicateConfig{
		CheckFullRow: true,
		KeyColumns:   []string{"id"},
	}, testLogger())
	result := detector.Analyze(ds)

	// No full-row duplicates, but the id column repeats
	assert.Equal(t, 0, result.TotalDuplicates)
	require.NotNil(t, result.KeyAnalysis)
	assert.Equal(t, []string{"id"}, result.KeyAnalysis.Columns)
	assert.Equal(t, 2, result.KeyAnalysis.DuplicateCount)
	assert.Equal(t, 50.0, result.KeyAnalysis.DuplicatePercentage)
	assert.Equal(t, 3, result.KeyAnalysis.UniqueCombinations)
}

func TestDuplicateKeyColumnsMissingColumn(t *testing.T) {
	ds := mustDataset(t, []dataset.Column{
		{Name: "id", Type: dataset.DTypeNumeric, Values: []interface{}{1.0, 2.0}},
	})

	detector := NewDuplicateDetector(DuplicateConfig{
		CheckFullRow: true,
		KeyColumns:   []string{"missing"},
	}, testLogger())
	result := detector.Analyze(ds)

	assert.Nil(t, result.KeyAnalysis)
}

func TestDuplicateIndicesKeepPolicies(t *testing.T) {
	ds := duplicateTestDataset(t)
	detector := NewDuplicateDetector(DefaultDuplicateConfig(), testLogger())

	assert.Equal(t, []int{2, 3, 4}, detector.DuplicateIndices(ds, KeepFirst))
	assert.Equal(t, []int{0, 1, 2}, detector.DuplicateIndices(ds, KeepLast))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, detector.DuplicateIndices(ds, KeepNone))
}

func TestRemoveDuplicatesCopy(t *testing.T) {
	ds := duplicateTestDataset(t)
	detector := NewDuplicateDetector(DefaultDuplicateConfig(), testLogger())

	pruned := detector.RemoveDuplicates(ds, KeepFirst, false)

	assert.Equal(t, 3, pruned.NumRows())
	assert.Equal(t, 6, ds.NumRows(), "original untouched")

	col, ok := pruned.Column("name")
	require.True(t, ok)
	assert.Equal(t, []interface{}{"a", "b", "c"}, col.Values)
}

func TestRemoveDuplicatesInplace(t *testing.T) {
	ds := duplicateTestDataset(t)
	detector := NewDuplicateDetector(DefaultDuplicateConfig(), testLogger())

	result := detector.RemoveDuplicates(ds, KeepLast, true)

	assert.Same(t, ds, result)
	assert.Equal(t, 3, ds.NumRows())

	col, _ := ds.Column("name")
	assert.Equal(t, []interface{}{"b", "a", "c"}, col.Values)
}

func TestDuplicateAnalyzeZeroRows(t *testing.T) {
	ds := mustDataset(t, []dataset.Column{
		{Name: "a", Type: dataset.DTypeNumeric, Values: []interface{}{}},
	})

	detector := NewDuplicateDetector(DefaultDuplicateConfig(), testLogger())
	result := detector.Analyze(ds)

	assert.Equal(t, 0, result.TotalDuplicates)
	assert.Equal(t, 0, result.UniqueRows)
	assert.Equal(t, 0.0, result.DuplicatePercentage)
}
