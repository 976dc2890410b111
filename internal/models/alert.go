package models

import "time"

// AlertStatusAnomaly is the status carried by every raised alert.
const AlertStatusAnomaly = "ANOMALY_DETECTED"

// Alert records one anomalous detection.
type Alert struct {
	ID              string        `json:"id,omitempty"`
	Timestamp       string        `json:"timestamp"`
	Status          string        `json:"status"`
	Data            FeatureVector `json:"data"`
	Recommendations []string      `json:"recommendations,omitempty"`
}

// CycleResult summarises one collection → detection → alert pass.
type CycleResult struct {
	Detection DetectionResult
	Alert     *Alert
	Duration  time.Duration
}
