package engine

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/miradorstack/mirador-ids/internal/models"
)

func writeRules(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	return path
}

func TestRuleEngineRecommend(t *testing.T) {
	path := writeRules(t, `rules:
  - id: brute-force
    match:
      - feature: login_fail
        above: 3
    recommendations: ["Lock the account", "Review auth logs"]
  - id: cpu-saturation
    match:
      - feature: cpu
        above: 90
      - feature: network_conn
        above: 150
    recommendations: ["Review auth logs", "Check for crypto-mining processes"]
  - id: idle
    match:
      - feature: cpu
        below: 5
    recommendations: ["Container may be stalled"]
`)

	engine, err := NewRuleEngine(path, slog.New(slog.NewTextHandler(os.Stdout, nil)))
	if err != nil {
		t.Fatalf("new rule engine: %v", err)
	}

	recs := engine.Recommend(models.FeatureVector{"login_fail": 5, "cpu": 95, "network_conn": 180})
	want := []string{"Lock the account", "Review auth logs", "Check for crypto-mining processes"}
	if len(recs) != len(want) {
		t.Fatalf("unexpected recommendations: %v", recs)
	}
	for i := range want {
		if recs[i] != want[i] {
			t.Fatalf("recommendation %d: want %q, got %q", i, want[i], recs[i])
		}
	}

	if recs := engine.Recommend(models.FeatureVector{"login_fail": 3, "cpu": 50}); len(recs) != 0 {
		t.Fatalf("bounds are exclusive, got %v", recs)
	}
}

func TestRuleEngineMissingFeatureDoesNotMatch(t *testing.T) {
	path := writeRules(t, `rules:
  - id: cpu
    match:
      - feature: cpu
        below: 5
    recommendations: ["x"]
`)
	engine, err := NewRuleEngine(path, nil)
	if err != nil {
		t.Fatalf("new rule engine: %v", err)
	}
	if recs := engine.Recommend(models.FeatureVector{"memory": 1}); len(recs) != 0 {
		t.Fatalf("expected no match, got %v", recs)
	}
}

func TestRuleEngineRejectsConditionWithoutFeature(t *testing.T) {
	path := writeRules(t, `rules:
  - id: broken
    match:
      - above: 1
`)
	if _, err := NewRuleEngine(path, nil); err == nil {
		t.Fatalf("expected error for condition without feature")
	}
}

func TestRuleEngineNoFile(t *testing.T) {
	engine, err := NewRuleEngine("non-existent", nil)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if engine != nil {
		t.Fatalf("expected nil engine when file missing")
	}
	if recs := engine.Recommend(models.FeatureVector{"cpu": 1}); recs != nil {
		t.Fatalf("nil engine should not recommend, got %v", recs)
	}
}

func TestDefaultRulePack(t *testing.T) {
	engine, err := NewRuleEngine(filepath.Join("..", "..", "configs", "rules", "default.yaml"), nil)
	if err != nil {
		t.Fatalf("load default rules: %v", err)
	}
	if engine == nil {
		t.Fatalf("default rule pack missing")
	}

	recs := engine.Recommend(models.FeatureVector{"login_fail": 40, "http_error": 1, "cpu": 95, "memory": 20, "network_conn": 100})
	if len(recs) != 3 {
		t.Fatalf("expected credential-stuffing and brute-force-under-load recommendations, got %v", recs)
	}

	if recs := engine.Recommend(models.FeatureVector{"login_fail": 1, "http_error": 1, "cpu": 20, "memory": 20, "network_conn": 100}); len(recs) != 0 {
		t.Fatalf("quiet window should not match, got %v", recs)
	}
}
