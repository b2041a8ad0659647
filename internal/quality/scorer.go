package quality

import (
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/datawatch/datawatch/internal/utils/stats"
	"github.com/datawatch/datawatch/pkg/models"
)

// ScoringWeights distributes the overall quality score across the four
// components. Weights that do not sum to 100 are renormalized at
// construction.
type ScoringWeights struct {
	Missing   float64 `json:"missing" yaml:"missing"`
	Duplicate float64 `json:"duplicate" yaml:"duplicate"`
	Outlier   float64 `json:"outlier" yaml:"outlier"`
	Schema    float64 `json:"schema" yaml:"schema"`
}

// DefaultScoringWeights returns the standard 30/25/25/20 split.
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{Missing: 30, Duplicate: 25, Outlier: 25, Schema: 20}
}

// Scorer combines the analyzer outputs into one weighted 0-100 quality
// score with a letter grade and prioritized recommendations.
type Scorer struct {
	weights ScoringWeights
	logger  *logrus.Logger
}

// NewScorer creates a scorer, renormalizing the weights to sum to 100 when
// they do not.
func NewScorer(weights ScoringWeights, logger *logrus.Logger) *Scorer {
	if logger == nil {
		logger = logrus.New()
	}

	total := weights.Missing + weights.Duplicate + weights.Outlier + weights.Schema
	if math.Abs(total-100.0) > 0.01 && total > 0 {
		logger.WithField("total", total).Warn("Scoring weights do not sum to 100, normalizing")
		weights.Missing = weights.Missing / total * 100
		weights.Duplicate = weights.Duplicate / total * 100
		weights.Outlier = weights.Outlier / total * 100
		weights.Schema = weights.Schema / total * 100
	}

	return &Scorer{weights: weights, logger: logger}
}

// CalculateScore computes the weighted overall score. Each component score
// is max(0, 100 - issue percentage); the outlier percentage is capped at
// 100 first. A missing schema analysis scores 100.
func (s *Scorer) CalculateScore(missing *models.MissingAnalysis, duplicates *models.DuplicateAnalysis,
	outliers *models.OutlierAnalysis, schema *models.SchemaAnalysis) *models.QualityScore {

	missingScore := math.Max(0, 100-missingPct(missing))
	duplicateScore := math.Max(0, 100-duplicatePct(duplicates))
	outlierScore := math.Max(0, 100-math.Min(outlierPct(outliers), 100))

	schemaScore := 100.0
	if schema != nil {
		schemaScore = schemaConsistencyScore(schema)
	}

	overall := stats.Round2(
		missingScore*s.weights.Missing/100 +
			duplicateScore*s.weights.Duplicate/100 +
			outlierScore*s.weights.Outlier/100 +
			schemaScore*s.weights.Schema/100)

	result := &models.QualityScore{
		OverallScore: overall,
		Grade:        grade(overall),
		Breakdown: models.ScoreBreakdown{
			MissingValues:     component(missingScore, s.weights.Missing),
			Duplicates:        component(duplicateScore, s.weights.Duplicate),
			Outliers:          component(outlierScore, s.weights.Outlier),
			SchemaConsistency: component(schemaScore, s.weights.Schema),
		},
	}

	s.logger.WithFields(logrus.Fields{
		"score": overall,
		"grade": result.Grade,
	}).Info("Quality score calculated")

	return result
}

func component(score, weight float64) models.ComponentScore {
	return models.ComponentScore{
		Score:        stats.Round2(score),
		Weight:       weight,
		Contribution: stats.Round2(score * weight / 100),
	}
}

// schemaConsistencyScore is 100 when all columns are consistent, otherwise
// the consistent fraction scaled to 100, floored at 0.
func schemaConsistencyScore(schema *models.SchemaAnalysis) float64 {
	if schema.AllValid {
		return 100.0
	}

	total := schema.TotalColumns
	if total <= 0 {
		total = 1
	}
	return math.Max(0, float64(total-len(schema.Inconsistencies))/float64(total)*100)
}

func grade(score float64) string {
	switch {
	case score >= 90:
		return "Excellent"
	case score >= 80:
		return "Very Good"
	case score >= 70:
		return "Good"
	case score >= 60:
		return "Fair"
	case score >= 50:
		return "Poor"
	default:
		return "Critical"
	}
}

// Recommendations flattens the per-issue findings into one prioritized
// list: high before medium before low, stable within a priority.
func (s *Scorer) Recommendations(missing *models.MissingAnalysis, duplicates *models.DuplicateAnalysis,
	outliers *models.OutlierAnalysis) []models.Recommendation {

	var recommendations []models.Recommendation

	if missing != nil && missing.OverallMissingPercentage > 0 {
		for _, detail := range missing.Details {
			if detail.Severity != models.SeverityHigh && detail.Severity != models.SeverityMedium {
				continue
			}
			recommendations = append(recommendations, models.Recommendation{
				Priority: severityPriority(detail.Severity),
				Category: "missing_values",
				Message: fmt.Sprintf("Column '%s' has %v%% missing values",
					detail.Column, detail.MissingPercentage),
				Action: detail.Recommendation,
			})
		}
	}

	if duplicates != nil && duplicates.DuplicatePercentage > 0 {
		recommendations = append(recommendations, models.Recommendation{
			Priority: severityPriority(duplicates.Severity),
			Category: "duplicates",
			Message: fmt.Sprintf("%d duplicate rows detected (%v%%)",
				duplicates.TotalDuplicates, duplicates.DuplicatePercentage),
			Action: duplicates.Recommendation,
		})
	}

	if outliers != nil && outliers.OutlierPercentage > 0 {
		for _, detail := range outliers.Details {
			if detail.OutlierCount == 0 {
				continue
			}
			recommendations = append(recommendations, models.Recommendation{
				Priority: severityPriority(detail.Severity),
				Category: "outliers",
				Message: fmt.Sprintf("Column '%s' has %d outliers (%v%%)",
					detail.Column, detail.OutlierCount, detail.OutlierPercentage),
				Action: detail.Recommendation,
			})
		}
	}

	order := map[models.Priority]int{
		models.PriorityHigh:   0,
		models.PriorityMedium: 1,
		models.PriorityLow:    2,
	}
	sort.SliceStable(recommendations, func(i, j int) bool {
		return order[recommendations[i].Priority] < order[recommendations[j].Priority]
	})

	return recommendations
}

func severityPriority(severity models.Severity) models.Priority {
	switch severity {
	case models.SeverityHigh:
		return models.PriorityHigh
	case models.SeverityMedium:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

func missingPct(m *models.MissingAnalysis) float64 {
	if m == nil {
		return 0
	}
	return m.OverallMissingPercentage
}

func duplicatePct(d *models.DuplicateAnalysis) float64 {
	if d == nil {
		return 0
	}
	return d.DuplicatePercentage
}

func outlierPct(o *models.OutlierAnalysis) float64 {
	if o == nil {
		return 0
	}
	return o.OutlierPercentage
}
