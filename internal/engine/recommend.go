package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/mirador-ids/internal/models"
)

// RuleEngine attaches triage recommendations to anomalous observations.
type RuleEngine struct {
	rules  []Rule
	logger *slog.Logger
}

// Rule represents a single recommendation rule. Every condition must hold.
type Rule struct {
	ID              string      `yaml:"id"`
	Match           []Condition `yaml:"match"`
	Recommendations []string    `yaml:"recommendations"`
}

// Condition bounds one feature. Unset bounds are ignored.
type Condition struct {
	Feature string   `yaml:"feature"`
	Above   *float64 `yaml:"above"`
	Below   *float64 `yaml:"below"`
}

// RuleConfigFile is the YAML root structure.
type RuleConfigFile struct {
	Rules []Rule `yaml:"rules"`
}

// NewRuleEngine loads rules from the provided path. If path is empty or the
// file does not exist, returns a nil engine.
func NewRuleEngine(path string, logger *slog.Logger) (*RuleEngine, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var cfg RuleConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse rules %s: %w", path, err)
	}
	for _, rule := range cfg.Rules {
		for _, cond := range rule.Match {
			if cond.Feature == "" {
				return nil, fmt.Errorf("rule %q: condition without feature", rule.ID)
			}
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleEngine{rules: cfg.Rules, logger: logger}, nil
}

// Recommend returns the de-duplicated recommendations of every matching rule.
func (e *RuleEngine) Recommend(features models.FeatureVector) []string {
	if e == nil {
		return nil
	}

	matched := make([]string, 0)
	for _, rule := range e.rules {
		if len(rule.Match) == 0 || !conditionsHold(rule.Match, features) {
			continue
		}
		e.logger.Debug("triage rule matched", slog.String("rule", rule.ID))
		matched = appendUnique(matched, rule.Recommendations...)
	}
	return matched
}

func conditionsHold(conds []Condition, features models.FeatureVector) bool {
	for _, cond := range conds {
		value, ok := features[cond.Feature]
		if !ok {
			return false
		}
		if cond.Above != nil && !(value > *cond.Above) {
			return false
		}
		if cond.Below != nil && !(value < *cond.Below) {
			return false
		}
	}
	return true
}

func appendUnique(existing []string, additions ...string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, rec := range existing {
		seen[rec] = struct{}{}
	}
	for _, item := range additions {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		existing = append(existing, item)
		seen[item] = struct{}{}
	}
	return existing
}
