package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawatch/datawatch/internal/dataset"
	"github.com/datawatch/datawatch/pkg/models"
)

// outlierTestDataset has one obvious high outlier at 100 among small values.
func outlierTestDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	return mustDataset(t, []dataset.Column{
		{Name: "value", Type: dataset.DTypeNumeric, Values: []interface{}{
			10.0, 11.0, 12.0, 10.0, 11.0, 12.0, 10.0, 11.0, 100.0,
		}},
	})
}

func TestOutlierConfigValidate(t *testing.T) {
	assert.NoError(t, OutlierConfig{Method: MethodIQR}.Validate())
	assert.NoError(t, OutlierConfig{Method: MethodZScore}.Validate())
	assert.NoError(t, OutlierConfig{Method: MethodBoth}.Validate())

	err := OutlierConfig{Method: "mad"}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown outlier method")
}

func TestNewOutlierDetectorRejectsInvalidMethod(t *testing.T) {
	_, err := NewOutlierDetector(OutlierConfig{Method: "bogus"}, nil, testLogger())
	require.Error(t, err)
}

func TestOutlierAnalyzeIQR(t *testing.T) {
	ds := outlierTestDataset(t)

	detector, err := NewOutlierDetector(DefaultOutlierConfig(), nil, testLogger())
	require.NoError(t, err)

	result := detector.Analyze(ds)

	assert.Equal(t, 1, result.TotalOutliers)
	assert.Equal(t, 9, result.TotalNumericValues)
	assert.Equal(t, 11.11, result.OutlierPercentage)
	assert.Equal(t, []string{"value"}, result.ColumnsWithOutliers)
	assert.Equal(t, "iqr", result.Method)

	require.Len(t, result.Details, 1)
	detail := result.Details[0]
	assert.Equal(t, "value", detail.Column)
	assert.Equal(t, 1, detail.OutlierCount)
	assert.Equal(t, []float64{100.0}, detail.SampleOutliers)
	require.NotNil(t, detail.LowerBound)
	require.NotNil(t, detail.UpperBound)
	assert.Less(t, *detail.UpperBound, 100.0)
	assert.Equal(t, models.SeverityHigh, detail.Severity)
}

func TestOutlierAnalyzeZScore(t *testing.T) {
	ds := outlierTestDataset(t)

	detector, err := NewOutlierDetector(OutlierConfig{
		Method:          MethodZScore,
		ZScoreThreshold: 2.0,
	}, nil, testLogger())
	require.NoError(t, err)

	result := detector.Analyze(ds)

	assert.Equal(t, "z_score", result.Method)
	assert.Equal(t, 1, result.TotalOutliers)

	// z-score mode has no IQR bounds to report
	require.Len(t, result.Details, 1)
	assert.Nil(t, result.Details[0].LowerBound)
	assert.Nil(t, result.Details[0].UpperBound)
}

func TestOutlierZScoreConstantColumn(t *testing.T) {
	ds := mustDataset(t, []dataset.Column{
		{Name: "constant", Type: dataset.DTypeNumeric, Values: []interface{}{5.0, 5.0, 5.0, 5.0}},
	})

	detector, err := NewOutlierDetector(OutlierConfig{
		Method:          MethodZScore,
		ZScoreThreshold: 3.0,
	}, nil, testLogger())
	require.NoError(t, err)

	// Zero standard deviation flags nothing
	result := detector.Analyze(ds)
	assert.Equal(t, 0, result.TotalOutliers)
	assert.Empty(t, result.ColumnsWithOutliers)
}

func TestOutlierAnalyzeBothIsUnion(t *testing.T) {
	ds := outlierTestDataset(t)

	detector, err := NewOutlierDetector(OutlierConfig{
		Method:          MethodBoth,
		IQRMultiplier:   1.5,
		ZScoreThreshold: 10.0, // z-score alone flags nothing at this threshold
	}, nil, testLogger())
	require.NoError(t, err)

	result := detector.Analyze(ds)

	// The IQR side of the union still catches the spike
	assert.Equal(t, 1, result.TotalOutliers)
	require.Len(t, result.Details, 1)
	assert.NotNil(t, result.Details[0].LowerBound)
	assert.NotNil(t, result.Details[0].UpperBound)
}

func TestOutlierAnalyzeNoNumericColumns(t *testing.T) {
	ds := mustDataset(t, []dataset.Column{
		{Name: "name", Type: dataset.DTypeText, Values: []interface{}{"a", "b"}},
	})

	detector, err := NewOutlierDetector(DefaultOutlierConfig(), nil, testLogger())
	require.NoError(t, err)

	result := detector.Analyze(ds)

	assert.Equal(t, 0, result.TotalOutliers)
	assert.Equal(t, 0, result.ColumnsAnalyzed)
	assert.Empty(t, result.Details)
	assert.Equal(t, 0.0, result.OutlierPercentage)
}

func TestOutlierNullsIgnored(t *testing.T) {
	ds := mustDataset(t, []dataset.Column{
		{Name: "value", Type: dataset.DTypeNumeric, Values: []interface{}{
			10.0, nil, 11.0, 12.0, nil, 10.0, 11.0, 12.0, 10.0, 11.0, 100.0,
		}},
	})

	detector, err := NewOutlierDetector(DefaultOutlierConfig(), nil, testLogger())
	require.NoError(t, err)

	result := detector.Analyze(ds)

	require.Len(t, result.Details, 1)
	assert.Equal(t, 9, result.Details[0].TotalValues)
	assert.Equal(t, 1, result.Details[0].OutlierCount)
}

func TestSampleOutliers(t *testing.T) {
	// 5 smallest union 5 largest, deduplicated, sorted
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 8, 9, 10, 11, 12}, sampleOutliers(values))

	// Fewer than 10 distinct values stay deduplicated
	assert.Equal(t, []float64{1, 2}, sampleOutliers([]float64{1, 1, 2, 2}))

	assert.Equal(t, []float64{}, sampleOutliers(nil))
}

func TestOutlierMultivariateUnavailable(t *testing.T) {
	ds := mustDataset(t, []dataset.Column{
		{Name: "a", Type: dataset.DTypeNumeric, Values: []interface{}{1.0, 2.0, 3.0}},
		{Name: "b", Type: dataset.DTypeNumeric, Values: []interface{}{4.0, 5.0, 6.0}},
	})

	config := DefaultOutlierConfig()
	config.UseMultivariate = true
	detector, err := NewOutlierDetector(config, nil, testLogger())
	require.NoError(t, err)

	result := detector.Analyze(ds)

	require.NotNil(t, result.Multivariate)
	assert.Equal(t, "multivariate detection unavailable", result.Multivariate.Err)
}

func TestOutlierBounds(t *testing.T) {
	ds := mustDataset(t, []dataset.Column{
		{Name: "value", Type: dataset.DTypeNumeric, Values: []interface{}{1.0, 2.0, 3.0, 4.0}},
	})

	detector, err := NewOutlierDetector(DefaultOutlierConfig(), nil, testLogger())
	require.NoError(t, err)

	// Q1=1.75, Q3=3.25, IQR=1.5: bounds at -0.5 and 5.5
	lower, upper, err := detector.Bounds(ds, "value")
	require.NoError(t, err)
	assert.InDelta(t, -0.5, lower, 1e-9)
	assert.InDelta(t, 5.5, upper, 1e-9)

	_, _, err = detector.Bounds(ds, "missing")
	assert.Error(t, err)
}

func TestRemoveOutliers(t *testing.T) {
	ds := outlierTestDataset(t)

	detector, err := NewOutlierDetector(DefaultOutlierConfig(), nil, testLogger())
	require.NoError(t, err)

	pruned, err := detector.RemoveOutliers(ds, "value", false)
	require.NoError(t, err)

	assert.Equal(t, 8, pruned.NumRows())
	assert.Equal(t, 9, ds.NumRows(), "original untouched")

	values, err := pruned.NumericValues("value")
	require.NoError(t, err)
	assert.NotContains(t, values, 100.0)
}

func TestClipOutliers(t *testing.T) {
	ds := outlierTestDataset(t)

	detector, err := NewOutlierDetector(DefaultOutlierConfig(), nil, testLogger())
	require.NoError(t, err)

	lower, upper, err := detector.Bounds(ds, "value")
	require.NoError(t, err)

	clipped, err := detector.ClipOutliers(ds, "value", false)
	require.NoError(t, err)

	assert.Equal(t, 9, clipped.NumRows(), "clipping keeps every row")
	values, err := clipped.NumericValues("value")
	require.NoError(t, err)
	for _, v := range values {
		assert.GreaterOrEqual(t, v, lower)
		assert.LessOrEqual(t, v, upper)
	}

	original, err := ds.NumericValues("value")
	require.NoError(t, err)
	assert.Contains(t, original, 100.0, "original untouched")
}
