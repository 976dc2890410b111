package extractors

import (
	"strings"

	"github.com/miradorstack/mirador-ids/internal/collector"
	"github.com/miradorstack/mirador-ids/internal/models"
)

// LogsExtractor flattens aggregated log events into features.
type LogsExtractor struct{}

// NewLogsExtractor constructs a log feature extractor.
func NewLogsExtractor() *LogsExtractor {
	return &LogsExtractor{}
}

// Extract maps each event name to its count. Repeated event names are summed
// and unnamed events are ignored.
func (e *LogsExtractor) Extract(events []collector.LogEvent) models.FeatureVector {
	features := make(models.FeatureVector, len(events))
	for _, ev := range events {
		name := strings.TrimSpace(ev.Event)
		if name == "" {
			continue
		}
		features[name] += float64(ev.Count)
	}
	return features
}
