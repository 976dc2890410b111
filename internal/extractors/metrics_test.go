package extractors

import (
	"math"
	"testing"

	"github.com/miradorstack/mirador-ids/internal/collector"
	"github.com/miradorstack/mirador-ids/internal/models"
)

func TestMetricExtractorDropsNonFinite(t *testing.T) {
	extractor := NewMetricExtractor()

	features := extractor.Extract(map[string]float64{
		"cpu":          72.5,
		"memory":       math.NaN(),
		"network_conn": math.Inf(1),
		"":             4,
	})
	if len(features) != 1 {
		t.Fatalf("expected only finite named metrics, got %+v", features)
	}
	if features["cpu"] != 72.5 {
		t.Fatalf("unexpected cpu value: %v", features["cpu"])
	}
}

func TestLogsExtractorSumsDuplicates(t *testing.T) {
	extractor := NewLogsExtractor()

	features := extractor.Extract([]collector.LogEvent{
		{Event: "login_fail", Count: 2},
		{Event: "http_error", Count: 1},
		{Event: "login_fail", Count: 3},
		{Event: " ", Count: 9},
	})
	want := models.FeatureVector{"login_fail": 5, "http_error": 1}
	if len(features) != len(want) {
		t.Fatalf("unexpected features: %+v", features)
	}
	for k, v := range want {
		if features[k] != v {
			t.Fatalf("feature %s: want %v, got %v", k, v, features[k])
		}
	}
}

func TestCombineMetricsWin(t *testing.T) {
	combined := Combine(
		models.FeatureVector{"login_fail": 1, "cpu": 5},
		models.FeatureVector{"cpu": 80},
	)
	if combined["cpu"] != 80 || combined["login_fail"] != 1 || len(combined) != 2 {
		t.Fatalf("unexpected combined vector: %+v", combined)
	}
}

func TestFromSnapshot(t *testing.T) {
	snap := collector.Snapshot{
		Logs:    []collector.LogEvent{{Event: "login_fail", Count: 3}, {Event: "http_error", Count: 0}},
		Metrics: map[string]float64{"cpu": 12, "memory": 34, "network_conn": 120},
	}
	features := FromSnapshot(snap, nil, NewMetricExtractor())
	if got := features.Schema(); !got.Equal(models.Schema{"cpu", "http_error", "login_fail", "memory", "network_conn"}) {
		t.Fatalf("unexpected schema: %v", got)
	}
	if features["http_error"] != 0 {
		t.Fatalf("zero counts must be kept, got %+v", features)
	}
}
