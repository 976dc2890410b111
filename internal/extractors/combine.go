package extractors

import (
	"github.com/miradorstack/mirador-ids/internal/collector"
	"github.com/miradorstack/mirador-ids/internal/models"
)

// Combine unions log and metric features. Metric values win on key collisions.
func Combine(logs, metrics models.FeatureVector) models.FeatureVector {
	return models.Merge(logs, metrics)
}

// FromSnapshot runs both extractors over a snapshot and combines the result.
// Nil extractors fall back to the defaults.
func FromSnapshot(snap collector.Snapshot, logs *LogsExtractor, metrics *MetricExtractor) models.FeatureVector {
	if logs == nil {
		logs = NewLogsExtractor()
	}
	if metrics == nil {
		metrics = NewMetricExtractor()
	}
	return Combine(logs.Extract(snap.Logs), metrics.Extract(snap.Metrics))
}
