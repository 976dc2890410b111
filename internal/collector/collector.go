package collector

import (
	"context"
	"errors"
	"time"
)

// Default signal names produced by the built-in collectors.
const (
	EventLoginFail = "login_fail"
	EventHTTPError = "http_error"

	MetricCPU         = "cpu"
	MetricMemory      = "memory"
	MetricNetworkConn = "network_conn"
)

// ErrNoSnapshot is returned when a queue-backed collector has nothing to hand out.
var ErrNoSnapshot = errors.New("no snapshot available")

// LogEvent is an aggregated security log signal for one window.
type LogEvent struct {
	Event string `json:"event"`
	Count int    `json:"count"`
}

// Snapshot is one observation window of raw signals.
type Snapshot struct {
	Logs        []LogEvent         `json:"logs"`
	Metrics     map[string]float64 `json:"metrics"`
	CollectedAt time.Time          `json:"collected_at"`
}

// Collector produces raw signal snapshots.
type Collector interface {
	Collect(ctx context.Context) (Snapshot, error)
	Close() error
}
