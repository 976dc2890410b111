package detector

import (
	"errors"
	"math"
	"math/rand"
	"sort"
)

const eulerGamma = 0.5772156649

// isoNode is one node of an isolation tree. Leaves carry the number of
// training samples that reached them.
type isoNode struct {
	leaf    bool
	feature int
	split   float64
	size    int
	left    *isoNode
	right   *isoNode
}

// isolationForest is an ensemble of random isolation trees. Points that are
// isolated in few splits score close to 1.
type isolationForest struct {
	numTrees      int
	maxSamples    int
	contamination float64
	seed          int64

	trees      []*isoNode
	sampleSize int
	features   int
	threshold  float64
	fitted     bool
}

func newIsolationForest(numTrees, maxSamples int, contamination float64, seed int64) *isolationForest {
	return &isolationForest{
		numTrees:      numTrees,
		maxSamples:    maxSamples,
		contamination: contamination,
		seed:          seed,
	}
}

// fit grows the forest on rows and calibrates the decision threshold on the
// training scores. The receiver is left untouched on error.
func (f *isolationForest) fit(rows [][]float64) error {
	if len(rows) == 0 {
		return errors.New("no rows to fit")
	}
	width := len(rows[0])
	for _, row := range rows {
		if len(row) != width {
			return errors.New("ragged rows")
		}
	}

	psi := f.maxSamples
	if psi <= 0 || psi > len(rows) {
		psi = len(rows)
	}
	maxDepth := int(math.Ceil(math.Log2(math.Max(float64(psi), 2))))

	rng := rand.New(rand.NewSource(f.seed))
	trees := make([]*isoNode, 0, f.numTrees)
	for i := 0; i < f.numTrees; i++ {
		sample := sampleRows(rng, rows, psi)
		trees = append(trees, buildTree(rng, sample, 0, maxDepth))
	}

	f.trees = trees
	f.sampleSize = psi
	f.features = width
	f.fitted = true

	scores := make([]float64, len(rows))
	for i, row := range rows {
		scores[i] = f.score(row)
	}
	f.threshold = quantile(scores, 1-f.contamination)
	return nil
}

// score returns the anomaly score in (0, 1] for row.
func (f *isolationForest) score(row []float64) float64 {
	if len(f.trees) == 0 {
		return 0.5
	}
	total := 0.0
	for _, tree := range f.trees {
		total += pathLength(tree, row, 0)
	}
	avg := total / float64(len(f.trees))
	c := averagePathLength(f.sampleSize)
	if c == 0 {
		return 0.5
	}
	return math.Pow(2, -avg/c)
}

// predict reports whether row is an outlier.
func (f *isolationForest) predict(row []float64) (bool, float64) {
	s := f.score(row)
	return s > f.threshold, s
}

// sampleRows draws n rows without replacement (partial Fisher-Yates).
func sampleRows(rng *rand.Rand, rows [][]float64, n int) [][]float64 {
	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < n; i++ {
		j := i + rng.Intn(len(idx)-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = rows[idx[i]]
	}
	return out
}

func buildTree(rng *rand.Rand, rows [][]float64, depth, maxDepth int) *isoNode {
	if len(rows) <= 1 || depth >= maxDepth {
		return &isoNode{leaf: true, size: len(rows)}
	}

	// Only features with spread can separate the sample.
	candidates := make([]int, 0, len(rows[0]))
	for feature := range rows[0] {
		lo, hi := featureRange(rows, feature)
		if hi > lo {
			candidates = append(candidates, feature)
		}
	}
	if len(candidates) == 0 {
		return &isoNode{leaf: true, size: len(rows)}
	}

	feature := candidates[rng.Intn(len(candidates))]
	lo, hi := featureRange(rows, feature)
	split := lo + rng.Float64()*(hi-lo)

	var left, right [][]float64
	for _, row := range rows {
		if row[feature] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &isoNode{leaf: true, size: len(rows)}
	}

	return &isoNode{
		feature: feature,
		split:   split,
		size:    len(rows),
		left:    buildTree(rng, left, depth+1, maxDepth),
		right:   buildTree(rng, right, depth+1, maxDepth),
	}
}

func featureRange(rows [][]float64, feature int) (float64, float64) {
	lo, hi := rows[0][feature], rows[0][feature]
	for _, row := range rows[1:] {
		v := row[feature]
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func pathLength(node *isoNode, row []float64, depth int) float64 {
	for !node.leaf {
		if row[node.feature] < node.split {
			node = node.left
		} else {
			node = node.right
		}
		depth++
	}
	return float64(depth) + averagePathLength(node.size)
}

// averagePathLength is c(n), the mean path length of an unsuccessful BST
// search over n points.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}

// quantile returns the q-quantile of values using linear interpolation
// between closest ranks.
func quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
