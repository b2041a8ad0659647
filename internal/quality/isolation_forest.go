package quality

import (
	"math"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/datawatch/datawatch/internal/utils/stats"
	"github.com/datawatch/datawatch/pkg/models"
)

const (
	forestTrees         = 100
	forestSampleSize    = 256
	forestContamination = 0.1
	forestSeed          = 42
	minForestRows       = 10

	multivariateIndexLimit = 10
)

// IsolationForest is a multivariate anomaly detector over complete numeric
// rows. Rows that isolate in few random splits score as anomalous; the top
// contamination fraction is flagged. The seed is fixed so repeated runs on
// the same data flag the same rows.
type IsolationForest struct {
	trees         int
	sampleSize    int
	contamination float64
	seed          int64
	logger        *logrus.Logger
}

// NewIsolationForest creates an isolation forest with the standard
// parameters (100 trees, contamination 0.1, seed 42).
func NewIsolationForest(logger *logrus.Logger) *IsolationForest {
	if logger == nil {
		logger = logrus.New()
	}
	return &IsolationForest{
		trees:         forestTrees,
		sampleSize:    forestSampleSize,
		contamination: forestContamination,
		seed:          forestSeed,
		logger:        logger,
	}
}

type forestNode struct {
	feature    int
	splitValue float64
	left       *forestNode
	right      *forestNode
	size       int
}

// Detect scores the given complete rows and flags the top contamination
// fraction. Fewer than 10 rows is a soft error in the result.
func (f *IsolationForest) Detect(rows [][]float64) *models.MultivariateResult {
	if len(rows) < minForestRows {
		f.logger.Warn("Insufficient complete rows for isolation forest")
		return &models.MultivariateResult{Err: "insufficient data for isolation forest"}
	}

	rng := rand.New(rand.NewSource(f.seed))
	sampleSize := f.sampleSize
	if sampleSize > len(rows) {
		sampleSize = len(rows)
	}
	maxDepth := int(math.Ceil(math.Log2(float64(sampleSize))))

	trees := make([]*forestNode, f.trees)
	for i := range trees {
		sample := make([][]float64, sampleSize)
		for j := range sample {
			sample[j] = rows[rng.Intn(len(rows))]
		}
		trees[i] = buildTree(sample, 0, maxDepth, rng)
	}

	scores := make([]float64, len(rows))
	norm := avgPathLength(sampleSize)
	for i, row := range rows {
		sum := 0.0
		for _, tree := range trees {
			sum += pathLength(tree, row, 0)
		}
		scores[i] = math.Pow(2, -(sum/float64(f.trees))/norm)
	}

	flagged := int(math.Ceil(f.contamination * float64(len(rows))))
	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	indices := make([]int, 0, multivariateIndexLimit)
	outliers := order[:flagged]
	sort.Ints(outliers)
	for _, idx := range outliers {
		if len(indices) >= multivariateIndexLimit {
			break
		}
		indices = append(indices, idx)
	}

	percentage := stats.Round2(float64(flagged) / float64(len(rows)) * 100)

	return &models.MultivariateResult{
		Method:            "isolation_forest",
		OutlierCount:      flagged,
		TotalRows:         len(rows),
		OutlierPercentage: percentage,
		OutlierIndices:    indices,
	}
}

func buildTree(rows [][]float64, depth, maxDepth int, rng *rand.Rand) *forestNode {
	if depth >= maxDepth || len(rows) <= 1 {
		return &forestNode{size: len(rows)}
	}

	feature := rng.Intn(len(rows[0]))
	min, max := rows[0][feature], rows[0][feature]
	for _, row := range rows[1:] {
		if row[feature] < min {
			min = row[feature]
		}
		if row[feature] > max {
			max = row[feature]
		}
	}
	if min == max {
		return &forestNode{size: len(rows)}
	}

	split := min + rng.Float64()*(max-min)
	var left, right [][]float64
	for _, row := range rows {
		if row[feature] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}

	return &forestNode{
		feature:    feature,
		splitValue: split,
		left:       buildTree(left, depth+1, maxDepth, rng),
		right:      buildTree(right, depth+1, maxDepth, rng),
	}
}

func pathLength(node *forestNode, row []float64, depth int) float64 {
	if node.left == nil && node.right == nil {
		return float64(depth) + avgPathLength(node.size)
	}
	if row[node.feature] < node.splitValue {
		return pathLength(node.left, row, depth+1)
	}
	return pathLength(node.right, row, depth+1)
}

// avgPathLength is the expected path length of an unsuccessful BST search,
// used to normalize isolation depths.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	h := math.Log(float64(n-1)) + 0.5772156649
	return 2*h - 2*float64(n-1)/float64(n)
}
