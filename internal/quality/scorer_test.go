package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawatch/datawatch/pkg/models"
)

func TestScorerPerfectData(t *testing.T) {
	scorer := NewScorer(DefaultScoringWeights(), testLogger())

	score := scorer.CalculateScore(
		&models.MissingAnalysis{},
		&models.DuplicateAnalysis{},
		&models.OutlierAnalysis{},
		nil)

	assert.Equal(t, 100.0, score.OverallScore)
	assert.Equal(t, "Excellent", score.Grade)
	assert.Equal(t, 100.0, score.Breakdown.MissingValues.Score)
	assert.Equal(t, 30.0, score.Breakdown.MissingValues.Weight)
	assert.Equal(t, 30.0, score.Breakdown.MissingValues.Contribution)
	assert.Equal(t, 100.0, score.Breakdown.SchemaConsistency.Score)
}

func TestScorerNilAnalysesScoreFull(t *testing.T) {
	scorer := NewScorer(DefaultScoringWeights(), testLogger())

	score := scorer.CalculateScore(nil, nil, nil, nil)

	assert.Equal(t, 100.0, score.OverallScore)
}

func TestScorerWeightedCombination(t *testing.T) {
	scorer := NewScorer(DefaultScoringWeights(), testLogger())

	score := scorer.CalculateScore(
		&models.MissingAnalysis{OverallMissingPercentage: 10},
		&models.DuplicateAnalysis{DuplicatePercentage: 20},
		&models.OutlierAnalysis{OutlierPercentage: 4},
		nil)

	// 90*0.30 + 80*0.25 + 96*0.25 + 100*0.20 = 91
	assert.Equal(t, 91.0, score.OverallScore)
	assert.Equal(t, "Excellent", score.Grade)
	assert.Equal(t, 90.0, score.Breakdown.MissingValues.Score)
	assert.Equal(t, 27.0, score.Breakdown.MissingValues.Contribution)
	assert.Equal(t, 80.0, score.Breakdown.Duplicates.Score)
	assert.Equal(t, 96.0, score.Breakdown.Outliers.Score)
}

func TestScorerOutlierPercentageCapped(t *testing.T) {
	scorer := NewScorer(DefaultScoringWeights(), testLogger())

	// Over 100% outliers (possible across multiple columns) floors at 0
	score := scorer.CalculateScore(nil, nil,
		&models.OutlierAnalysis{OutlierPercentage: 250}, nil)

	assert.Equal(t, 0.0, score.Breakdown.Outliers.Score)
	// 100*0.30 + 100*0.25 + 0*0.25 + 100*0.20 = 75
	assert.Equal(t, 75.0, score.OverallScore)
}

func TestScorerWeightNormalization(t *testing.T) {
	// 40/40/40/40 normalizes to 25 each
	scorer := NewScorer(ScoringWeights{Missing: 40, Duplicate: 40, Outlier: 40, Schema: 40}, testLogger())

	assert.Equal(t, 25.0, scorer.weights.Missing)
	assert.Equal(t, 25.0, scorer.weights.Duplicate)
	assert.Equal(t, 25.0, scorer.weights.Outlier)
	assert.Equal(t, 25.0, scorer.weights.Schema)

	score := scorer.CalculateScore(
		&models.MissingAnalysis{OverallMissingPercentage: 40},
		nil, nil, nil)

	// 60*0.25 + 100*0.75 = 90
	assert.Equal(t, 90.0, score.OverallScore)
}

func TestScorerGradeBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		grade string
	}{
		{95, "Excellent"},
		{90, "Excellent"},
		{89.99, "Very Good"},
		{80, "Very Good"},
		{79.99, "Good"},
		{70, "Good"},
		{69.99, "Fair"},
		{60, "Fair"},
		{59.99, "Poor"},
		{50, "Poor"},
		{49.99, "Critical"},
		{0, "Critical"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.grade, grade(tt.score), "score %v", tt.score)
	}
}

func TestScorerSchemaConsistency(t *testing.T) {
	scorer := NewScorer(DefaultScoringWeights(), testLogger())

	// 1 of 4 columns inconsistent: schema component scores 75
	score := scorer.CalculateScore(nil, nil, nil, &models.SchemaAnalysis{
		TotalColumns: 4,
		AllValid:     false,
		Inconsistencies: []string{"a: expected numeric, got text"},
	})

	assert.Equal(t, 75.0, score.Breakdown.SchemaConsistency.Score)
	// 100*0.30 + 100*0.25 + 100*0.25 + 75*0.20 = 95
	assert.Equal(t, 95.0, score.OverallScore)
}

func TestScorerRecommendationsPriorityOrder(t *testing.T) {
	scorer := NewScorer(DefaultScoringWeights(), testLogger())

	missing := &models.MissingAnalysis{
		OverallMissingPercentage: 12,
		Details: []models.MissingColumnDetail{
			{Column: "warned", MissingPercentage: 15, Severity: models.SeverityMedium, Recommendation: RecommendImputeMean},
			{Column: "fine", MissingPercentage: 2, Severity: models.SeverityLow, Recommendation: RecommendImputeMean},
			{Column: "bad", MissingPercentage: 60, Severity: models.SeverityHigh, Recommendation: RecommendDropColumn},
		},
	}
	duplicates := &models.DuplicateAnalysis{
		TotalDuplicates:     3,
		DuplicatePercentage: 3,
		Severity:            models.SeverityMedium,
		Recommendation:      RecommendReviewAndRemove,
	}
	outliers := &models.OutlierAnalysis{
		OutlierPercentage: 0.5,
		Details: []models.OutlierColumnDetail{
			{Column: "value", OutlierCount: 2, OutlierPercentage: 0.5, Severity: models.SeverityLow, Recommendation: RecommendInvestigate},
		},
	}

	recs := scorer.Recommendations(missing, duplicates, outliers)

	require.Len(t, recs, 4)
	// High first, then medium (stable), then low; low-severity missing columns are skipped
	assert.Equal(t, models.PriorityHigh, recs[0].Priority)
	assert.Contains(t, recs[0].Message, "bad")
	assert.Equal(t, models.PriorityMedium, recs[1].Priority)
	assert.Equal(t, "missing_values", recs[1].Category)
	assert.Equal(t, models.PriorityMedium, recs[2].Priority)
	assert.Equal(t, "duplicates", recs[2].Category)
	assert.Equal(t, models.PriorityLow, recs[3].Priority)
	assert.Equal(t, "outliers", recs[3].Category)
}

func TestScorerRecommendationsCleanData(t *testing.T) {
	scorer := NewScorer(DefaultScoringWeights(), testLogger())

	recs := scorer.Recommendations(
		&models.MissingAnalysis{},
		&models.DuplicateAnalysis{},
		&models.OutlierAnalysis{})

	assert.Empty(t, recs)
}
