package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metadataTestDataset(t *testing.T) *Dataset {
	t.Helper()
	ds, err := New([]Column{
		{Name: "id", Type: DTypeNumeric, Values: []interface{}{1.0, 2.0, 3.0, 1.0}},
		{Name: "score", Type: DTypeNumeric, Values: []interface{}{10.0, 20.0, nil, 10.0}},
		{Name: "city", Type: DTypeText, Values: []interface{}{"oslo", "oslo", "bergen", "oslo"}},
	})
	require.NoError(t, err)
	return ds
}

func TestComputeMetadata(t *testing.T) {
	reader := NewFileReader(testLogger())
	path := writeTestFile(t, "source.csv", "id,score,city\n1,10,oslo\n2,20,oslo\n3,,bergen\n1,10,oslo\n")

	ds := metadataTestDataset(t)
	md, err := reader.ComputeMetadata(ds, "source.csv", path)
	require.NoError(t, err)

	assert.Equal(t, "source.csv", md.Filename)
	assert.Equal(t, 4, md.Rows)
	assert.Equal(t, 3, md.Columns)
	assert.Equal(t, []string{"id", "score", "city"}, md.ColumnNames)
	assert.Len(t, md.FileHash, 16)
	assert.Greater(t, md.FileSizeBytes, int64(0))

	// Missing value counts
	assert.Equal(t, 1, md.MissingValues.TotalMissing)
	assert.Equal(t, 1, md.MissingValues.Counts["score"])
	assert.Equal(t, 25.0, md.MissingValues.Percentages["score"])
	assert.Equal(t, []string{"score"}, md.MissingValues.ColumnsWithMissing)

	// Numeric summary
	require.Contains(t, md.NumericSummary, "id")
	idSummary := md.NumericSummary["id"]
	require.NotNil(t, idSummary.Mean)
	assert.InDelta(t, 1.75, *idSummary.Mean, 1e-9)
	assert.Equal(t, 1.0, *idSummary.Min)
	assert.Equal(t, 3.0, *idSummary.Max)

	// Categorical summary
	require.Contains(t, md.CategoricalSummary, "city")
	city := md.CategoricalSummary["city"]
	assert.Equal(t, 2, city.UniqueValues)
	assert.Equal(t, 3, city.TopValues["oslo"])

	// One full-row duplicate pair: rows 0 and 3
	assert.Equal(t, 1, md.Duplicates.Count)
	assert.Equal(t, 25.0, md.Duplicates.Percentage)
}

func TestComputeMetadataMissingFile(t *testing.T) {
	reader := NewFileReader(testLogger())
	ds := metadataTestDataset(t)

	_, err := reader.ComputeMetadata(ds, "gone.csv", "/nonexistent/gone.csv")
	assert.Error(t, err)
}

func validDataset(t *testing.T) *Dataset {
	t.Helper()
	values := make([]interface{}, 12)
	for i := range values {
		values[i] = float64(i)
	}
	ds, err := New([]Column{
		{Name: "a", Type: DTypeNumeric, Values: values},
	})
	require.NoError(t, err)
	return ds
}

func TestValidateStructure(t *testing.T) {
	report := Validate(validDataset(t), "good.csv", nil, nil)

	assert.True(t, report.IsValid)
	assert.Empty(t, report.Errors)
	assert.Empty(t, report.Warnings)
	assert.Len(t, report.ChecksPassed, 2)
}

func TestValidateInsufficientRows(t *testing.T) {
	ds, err := New([]Column{
		{Name: "a", Type: DTypeNumeric, Values: []interface{}{1.0, 2.0}},
	})
	require.NoError(t, err)

	report := Validate(ds, "short.csv", nil, nil)

	assert.False(t, report.IsValid)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "insufficient rows")
}

func TestValidateAllNullColumnWarns(t *testing.T) {
	values := make([]interface{}, 12)
	ds, err := New([]Column{
		{Name: "ok", Type: DTypeNumeric, Values: func() []interface{} {
			v := make([]interface{}, 12)
			for i := range v {
				v[i] = float64(i)
			}
			return v
		}()},
		{Name: "empty", Type: DTypeText, Values: values},
	})
	require.NoError(t, err)

	report := Validate(ds, "nulls.csv", nil, nil)

	// All-null is a warning, not an error
	assert.True(t, report.IsValid)
	require.Len(t, report.Warnings, 2)
	assert.Contains(t, report.Warnings[0], "all null values")
	assert.Contains(t, report.Warnings[1], "missing")
}

func TestValidateSchemaAgainstBaseline(t *testing.T) {
	ds := validDataset(t)

	// Baseline expects column "b" and doesn't know "a"
	report := Validate(ds, "drift.csv", []string{"b"}, map[string]string{"b": "text"})

	assert.True(t, report.IsValid, "schema drift warns but stays valid")

	var sawMissing, sawExtra bool
	for _, w := range report.Warnings {
		if w == "missing expected columns: b" {
			sawMissing = true
		}
		if w == "extra columns not in baseline: a" {
			sawExtra = true
		}
	}
	assert.True(t, sawMissing)
	assert.True(t, sawExtra)
}

func TestValidateDTypeMismatch(t *testing.T) {
	ds := validDataset(t)

	report := Validate(ds, "drift.csv", []string{"a"}, map[string]string{"a": "text"})

	require.NotEmpty(t, report.Warnings)
	assert.Contains(t, report.Warnings[len(report.Warnings)-1], "a: expected text, got numeric")
}

func TestValidateMatchingSchemaPasses(t *testing.T) {
	ds := validDataset(t)

	report := Validate(ds, "same.csv", []string{"a"}, map[string]string{"a": "numeric"})

	assert.True(t, report.IsValid)
	assert.Empty(t, report.Warnings)
	assert.Contains(t, report.ChecksPassed, "column schema matches baseline")
}
