package detector

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniformRows(seed int64, n, width int, scale float64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	rows := make([][]float64, n)
	for i := range rows {
		row := make([]float64, width)
		for j := range row {
			row[j] = rng.Float64() * scale
		}
		rows[i] = row
	}
	return rows
}

func TestAveragePathLength(t *testing.T) {
	assert.Equal(t, 0.0, averagePathLength(0))
	assert.Equal(t, 0.0, averagePathLength(1))
	assert.Equal(t, 1.0, averagePathLength(2))
	assert.InDelta(t, 2*(math.Log(255)+eulerGamma)-2*255.0/256.0, averagePathLength(256), 1e-12)
}

func TestQuantileInterpolates(t *testing.T) {
	values := []float64{4, 1, 3, 2}
	assert.Equal(t, 1.0, quantile(values, 0))
	assert.Equal(t, 4.0, quantile(values, 1))
	assert.InDelta(t, 2.5, quantile(values, 0.5), 1e-12)
	assert.InDelta(t, 3.7, quantile(values, 0.9), 1e-12)
	assert.Equal(t, []float64{4, 1, 3, 2}, values)
}

func TestSampleRowsWithoutReplacement(t *testing.T) {
	rows := uniformRows(1, 50, 1, 1)
	sample := sampleRows(rand.New(rand.NewSource(2)), rows, 20)
	require.Len(t, sample, 20)

	seen := map[float64]bool{}
	for _, row := range sample {
		assert.False(t, seen[row[0]])
		seen[row[0]] = true
	}
}

func TestForestFlagsAboutContaminationFraction(t *testing.T) {
	rows := uniformRows(3, 200, 3, 10)
	f := newIsolationForest(100, 256, 0.1, 42)
	require.NoError(t, f.fit(rows))
	assert.Equal(t, 200, f.sampleSize)

	flagged := 0
	for _, row := range rows {
		if outlier, _ := f.predict(row); outlier {
			flagged++
		}
	}
	assert.Greater(t, flagged, 0)
	assert.LessOrEqual(t, flagged, 20)
}

func TestForestScoresOutlierAboveCentre(t *testing.T) {
	rows := uniformRows(4, 200, 3, 10)
	f := newIsolationForest(100, 256, 0.1, 42)
	require.NoError(t, f.fit(rows))

	centre := f.score([]float64{5, 5, 5})
	outlier := f.score([]float64{1000, 1000, 1000})
	assert.Greater(t, outlier, centre)
}

func TestForestConstantDataBuildsLeaves(t *testing.T) {
	rows := [][]float64{{1, 1}, {1, 1}, {1, 1}}
	f := newIsolationForest(10, 256, 0.1, 42)
	require.NoError(t, f.fit(rows))
	for _, tree := range f.trees {
		assert.True(t, tree.leaf)
		assert.Equal(t, 3, tree.size)
	}
	outlier, _ := f.predict([]float64{1, 1})
	assert.False(t, outlier)
}

func TestForestFitRejectsRaggedRows(t *testing.T) {
	f := newIsolationForest(10, 256, 0.1, 42)
	require.Error(t, f.fit([][]float64{{1, 2}, {3}}))
	assert.False(t, f.fitted)
}
