package extractors

import (
	"math"

	"github.com/miradorstack/mirador-ids/internal/models"
)

// MetricExtractor flattens a resource metric sample into features.
type MetricExtractor struct{}

// NewMetricExtractor creates a metric feature extractor.
func NewMetricExtractor() *MetricExtractor {
	return &MetricExtractor{}
}

// Extract copies every finite metric value. NaN and infinities are dropped.
func (e *MetricExtractor) Extract(sample map[string]float64) models.FeatureVector {
	features := make(models.FeatureVector, len(sample))
	for name, value := range sample {
		if name == "" || math.IsNaN(value) || math.IsInf(value, 0) {
			continue
		}
		features[name] = value
	}
	return features
}
