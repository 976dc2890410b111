package models

import (
	"fmt"
	"sort"
	"strings"
)

// FeatureVector maps a signal name (log event or resource metric) to its value
// for one observation window.
type FeatureVector map[string]float64

// IsEmpty reports whether the vector carries no features.
func (v FeatureVector) IsEmpty() bool {
	return len(v) == 0
}

// Keys returns the feature names in sorted order.
func (v FeatureVector) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Schema returns the key set of the vector.
func (v FeatureVector) Schema() Schema {
	return Schema(v.Keys())
}

// Clone returns a shallow copy safe to hand to other goroutines.
func (v FeatureVector) Clone() FeatureVector {
	if v == nil {
		return nil
	}
	out := make(FeatureVector, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Values projects the vector onto the schema's coordinate order. Every schema
// key must be present and no extra keys are allowed.
func (v FeatureVector) Values(schema Schema) ([]float64, error) {
	if len(v) != len(schema) {
		return nil, fmt.Errorf("feature count %d does not match schema size %d", len(v), len(schema))
	}
	values := make([]float64, len(schema))
	for i, name := range schema {
		val, ok := v[name]
		if !ok {
			return nil, fmt.Errorf("feature %q missing", name)
		}
		values[i] = val
	}
	return values, nil
}

// Merge combines vectors left to right; later vectors win on key collisions.
func Merge(vectors ...FeatureVector) FeatureVector {
	size := 0
	for _, v := range vectors {
		size += len(v)
	}
	out := make(FeatureVector, size)
	for _, v := range vectors {
		for k, val := range v {
			out[k] = val
		}
	}
	return out
}

// Schema is the sorted set of feature names a model is fitted on.
type Schema []string

// Equal reports whether both schemas name the same features in the same order.
func (s Schema) Equal(other Schema) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

func (s Schema) String() string {
	return "[" + strings.Join(s, ",") + "]"
}

// Label is the binary outcome of a detection.
type Label string

const (
	LabelAnomalous Label = "anomalous"
	LabelNormal    Label = "normal"
)

// DetectionResult pairs a label with the vector that produced it.
type DetectionResult struct {
	Label    Label
	Score    float64
	Features FeatureVector
}

// Anomalous reports whether the result should raise an alert.
func (r DetectionResult) Anomalous() bool {
	return r.Label == LabelAnomalous
}
