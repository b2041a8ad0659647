package quality

import (
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/datawatch/datawatch/internal/dataset"
	"github.com/datawatch/datawatch/internal/utils/stats"
	"github.com/datawatch/datawatch/pkg/errors"
	"github.com/datawatch/datawatch/pkg/models"
)

// OutlierMethod selects the detection algorithm.
type OutlierMethod string

const (
	MethodIQR    OutlierMethod = "iqr"
	MethodZScore OutlierMethod = "z_score"
	MethodBoth   OutlierMethod = "both"
)

// Outlier handling recommendations.
const (
	RecommendTransformLog  = "transform_log"
	RecommendWinsorize     = "winsorize"
	RecommendClipBounds    = "clip_bounds"
	RecommendInvestigateDQ = "investigate_data_quality"
)

const sampleOutlierLimit = 10

// OutlierConfig controls outlier detection.
type OutlierConfig struct {
	Method          OutlierMethod `json:"method" yaml:"method"`
	IQRMultiplier   float64       `json:"iqr_multiplier" yaml:"iqr_multiplier"`
	ZScoreThreshold float64       `json:"z_score_threshold" yaml:"z_score_threshold"`
	UseMultivariate bool          `json:"use_multivariate" yaml:"use_multivariate"`
}

// DefaultOutlierConfig returns IQR detection with multiplier 1.5 and
// z-score threshold 3.0.
func DefaultOutlierConfig() OutlierConfig {
	return OutlierConfig{
		Method:          MethodIQR,
		IQRMultiplier:   1.5,
		ZScoreThreshold: 3.0,
	}
}

// Validate rejects unknown methods at configuration time.
func (c OutlierConfig) Validate() error {
	switch c.Method {
	case MethodIQR, MethodZScore, MethodBoth:
		return nil
	default:
		return errors.NewComputationError(errors.CodeInvalidMethod,
			fmt.Sprintf("unknown outlier method %q", c.Method))
	}
}

// MultivariateDetector is the capability seam for row-level multivariate
// anomaly detection. Implementations report a soft error in the result when
// the check cannot run; the detector itself never hard-fails the analysis.
type MultivariateDetector interface {
	Detect(rows [][]float64) *models.MultivariateResult
}

// OutlierDetector finds outliers in numeric columns via IQR bounds, z-scores
// or the union of both.
type OutlierDetector struct {
	config       OutlierConfig
	multivariate MultivariateDetector
	logger       *logrus.Logger
}

// NewOutlierDetector creates an outlier detector. multivariate may be nil;
// the optional multivariate step then reports itself unavailable.
func NewOutlierDetector(config OutlierConfig, multivariate MultivariateDetector, logger *logrus.Logger) (*OutlierDetector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &OutlierDetector{config: config, multivariate: multivariate, logger: logger}, nil
}

// Analyze detects outliers in every numeric column. Datasets without numeric
// columns yield an empty zero-outlier result.
func (o *OutlierDetector) Analyze(ds *dataset.Dataset) *models.OutlierAnalysis {
	o.logger.WithFields(logrus.Fields{
		"rows":   ds.NumRows(),
		"method": string(o.config.Method),
	}).Info("Starting outlier analysis")

	numericColumns := ds.NumericColumns()
	if len(numericColumns) == 0 {
		o.logger.Warn("No numeric columns found for outlier detection")
		return &models.OutlierAnalysis{
			ColumnsWithOutliers: []string{},
			Details:             []models.OutlierColumnDetail{},
			Method:              string(o.config.Method),
		}
	}

	var details []models.OutlierColumnDetail
	totalOutliers := 0
	var columnsWithOutliers []string

	for _, column := range numericColumns {
		detail := o.analyzeColumn(ds, column)
		if detail == nil {
			continue
		}
		details = append(details, *detail)
		totalOutliers += detail.OutlierCount
		if detail.OutlierCount > 0 {
			columnsWithOutliers = append(columnsWithOutliers, column)
		}
	}

	totalValues := ds.NumRows() * len(numericColumns)
	percentage := 0.0
	if totalValues > 0 {
		percentage = stats.Round2(float64(totalOutliers) / float64(totalValues) * 100)
	}

	result := &models.OutlierAnalysis{
		TotalOutliers:       totalOutliers,
		TotalNumericValues:  totalValues,
		OutlierPercentage:   percentage,
		ColumnsAnalyzed:     len(numericColumns),
		ColumnsWithOutliers: columnsWithOutliers,
		Details:             details,
		Method:              string(o.config.Method),
	}

	if o.config.UseMultivariate && len(numericColumns) > 1 {
		result.Multivariate = o.runMultivariate(ds, numericColumns)
	}

	o.logger.WithFields(logrus.Fields{
		"outliers":   totalOutliers,
		"percentage": percentage,
	}).Info("Outlier analysis complete")

	return result
}

// analyzeColumn inspects one numeric column after dropping nulls. Returns
// nil when the column has no populated values.
func (o *OutlierDetector) analyzeColumn(ds *dataset.Dataset, column string) *models.OutlierColumnDetail {
	values, err := ds.NumericValues(column)
	if err != nil || len(values) == 0 {
		return nil
	}

	var (
		mask       []bool
		lowerBound *float64
		upperBound *float64
	)

	switch o.config.Method {
	case MethodIQR:
		lower, upper := o.iqrBounds(values)
		mask = maskOutsideBounds(values, lower, upper)
		lowerBound, upperBound = &lower, &upper
	case MethodZScore:
		mask = o.zScoreMask(values)
	case MethodBoth:
		lower, upper := o.iqrBounds(values)
		iqrMask := maskOutsideBounds(values, lower, upper)
		zMask := o.zScoreMask(values)
		mask = make([]bool, len(values))
		for i := range mask {
			mask[i] = iqrMask[i] || zMask[i]
		}
		// Union mode reports the IQR bounds; z-score has none to offer.
		lowerBound, upperBound = &lower, &upper
	}

	var outlierValues []float64
	for i, flagged := range mask {
		if flagged {
			outlierValues = append(outlierValues, values[i])
		}
	}

	percentage := stats.Round2(float64(len(outlierValues)) / float64(len(values)) * 100)

	return &models.OutlierColumnDetail{
		Column:            column,
		Method:            string(o.config.Method),
		OutlierCount:      len(outlierValues),
		TotalValues:       len(values),
		OutlierPercentage: percentage,
		LowerBound:        lowerBound,
		UpperBound:        upperBound,
		SampleOutliers:    sampleOutliers(outlierValues),
		Statistics: models.ColumnStatistics{
			Mean:   stats.Mean(values),
			Median: stats.Median(values),
			Std:    stats.StandardDeviation(values),
			Min:    stats.Min(values),
			Max:    stats.Max(values),
			Q1:     stats.Quantile(values, 0.25),
			Q3:     stats.Quantile(values, 0.75),
		},
		Recommendation: o.recommend(percentage, values),
		Severity:       outlierSeverity(percentage),
	}
}

func (o *OutlierDetector) iqrBounds(values []float64) (float64, float64) {
	q1 := stats.Quantile(values, 0.25)
	q3 := stats.Quantile(values, 0.75)
	iqr := q3 - q1
	return q1 - o.config.IQRMultiplier*iqr, q3 + o.config.IQRMultiplier*iqr
}

// zScoreMask flags values whose z-score exceeds the threshold. A constant
// column (std 0) flags nothing.
func (o *OutlierDetector) zScoreMask(values []float64) []bool {
	mask := make([]bool, len(values))

	mean := stats.Mean(values)
	std := stats.StandardDeviation(values)
	if std == 0 {
		return mask
	}

	for i, v := range values {
		if math.Abs(v-mean)/std > o.config.ZScoreThreshold {
			mask[i] = true
		}
	}
	return mask
}

// sampleOutliers returns up to 10 representative outlier values: the union
// of the 5 smallest and 5 largest, deduplicated.
func sampleOutliers(outliers []float64) []float64 {
	if len(outliers) == 0 {
		return []float64{}
	}

	sorted := make([]float64, len(outliers))
	copy(sorted, outliers)
	sort.Float64s(sorted)

	seen := make(map[float64]bool)
	var samples []float64
	add := func(v float64) {
		if !seen[v] && len(samples) < sampleOutlierLimit {
			seen[v] = true
			samples = append(samples, v)
		}
	}

	for i := 0; i < len(sorted) && i < 5; i++ {
		add(sorted[i])
	}
	for i := len(sorted) - 1; i >= 0 && i >= len(sorted)-5; i-- {
		add(sorted[i])
	}

	sort.Float64s(samples)
	return samples
}

func (o *OutlierDetector) recommend(percentage float64, values []float64) string {
	switch {
	case percentage == 0:
		return RecommendNoAction
	case percentage < 1:
		return RecommendInvestigate
	case percentage < 5:
		if math.Abs(stats.Skewness(values)) > 1 {
			return RecommendTransformLog
		}
		return RecommendWinsorize
	case percentage < 10:
		return RecommendClipBounds
	default:
		return RecommendInvestigateDQ
	}
}

func outlierSeverity(percentage float64) models.Severity {
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

// runMultivariate assembles the complete numeric rows and delegates to the
// configured capability. A missing capability is a soft error in the result.
func (o *OutlierDetector) runMultivariate(ds *dataset.Dataset, columns []string) *models.MultivariateResult {
	if o.multivariate == nil {
		o.logger.Warn("Multivariate detector not configured, skipping")
		return &models.MultivariateResult{Err: "multivariate detection unavailable"}
	}

	var rows [][]float64
	for i := 0; i < ds.NumRows(); i++ {
		row := make([]float64, 0, len(columns))
		complete := true
		for _, name := range columns {
			col, _ := ds.Column(name)
			if col.IsNull(i) {
				complete = false
				break
			}
			row = append(row, col.Values[i].(float64))
		}
		if complete {
			rows = append(rows, row)
		}
	}

	return o.multivariate.Detect(rows)
}

// Bounds computes the outlier bounds for a numeric column under the
// configured method: IQR bounds for iqr/both, mean +/- threshold*std for
// z_score.
func (o *OutlierDetector) Bounds(ds *dataset.Dataset, column string) (float64, float64, error) {
	values, err := ds.NumericValues(column)
	if err != nil {
		return 0, 0, err
	}
	if len(values) == 0 {
		return 0, 0, errors.NewValidationError(errors.CodeEmptyDataset,
			fmt.Sprintf("column %q has no values", column))
	}

	if o.config.Method == MethodIQR || o.config.Method == MethodBoth {
		lower, upper := o.iqrBounds(values)
		return lower, upper, nil
	}

	mean := stats.Mean(values)
	std := stats.StandardDeviation(values)
	return mean - o.config.ZScoreThreshold*std, mean + o.config.ZScoreThreshold*std, nil
}

// RemoveOutliers drops every row whose value in column lies outside the
// computed bounds. Null cells are kept. With inplace set the dataset is
// mutated, otherwise a pruned copy is returned.
func (o *OutlierDetector) RemoveOutliers(ds *dataset.Dataset, column string, inplace bool) (*dataset.Dataset, error) {
	lower, upper, err := o.Bounds(ds, column)
	if err != nil {
		return nil, err
	}

	col, _ := ds.Column(column)
	var indices []int
	for i, v := range col.Values {
		if v == nil {
			continue
		}
		if f := v.(float64); f < lower || f > upper {
			indices = append(indices, i)
		}
	}

	target := ds
	if !inplace {
		target = ds.Clone()
	}
	target.RemoveRows(indices)
	return target, nil
}

// ClipOutliers winsorizes the column: values outside the bounds are replaced
// with the nearest bound. With inplace set the dataset is mutated, otherwise
// a modified copy is returned.
func (o *OutlierDetector) ClipOutliers(ds *dataset.Dataset, column string, inplace bool) (*dataset.Dataset, error) {
	lower, upper, err := o.Bounds(ds, column)
	if err != nil {
		return nil, err
	}

	target := ds
	if !inplace {
		target = ds.Clone()
	}

	col, _ := target.Column(column)
	for i, v := range col.Values {
		if v == nil {
			continue
		}
		if f := v.(float64); f < lower {
			col.Values[i] = lower
		} else if f > upper {
			col.Values[i] = upper
		}
	}
	return target, nil
}

func maskOutsideBounds(values []float64, lower, upper float64) []bool {
	mask := make([]bool, len(values))
	for i, v := range values {
		if v < lower || v > upper {
			mask[i] = true
		}
	}
	return mask
}
