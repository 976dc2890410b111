package alert

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/mirador-ids/internal/metrics"
	"github.com/miradorstack/mirador-ids/internal/models"
	"github.com/miradorstack/mirador-ids/internal/utils"
)

// Writer forwards alerts to an external destination.
type Writer interface {
	WriteAlerts(alerts []models.Alert) error
	Close() error
}

// Sink keeps the ordered in-memory alert log and fans alerts out to writers.
type Sink struct {
	logger  *slog.Logger
	writers []Writer
	now     func() time.Time
	newID   func() string

	mu     sync.RWMutex
	alerts []models.Alert
}

// NewSink constructs an alert sink forwarding to the given writers.
func NewSink(logger *slog.Logger, writers ...Writer) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		logger:  logger.With("component", "alert"),
		writers: writers,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Raise records an anomaly alert for features. Forwarding failures are logged
// and never fail the raise.
func (s *Sink) Raise(features models.FeatureVector, recommendations []string) models.Alert {
	alert := models.Alert{
		ID:              s.newID(),
		Timestamp:       utils.FormatAlertTime(s.now()),
		Status:          models.AlertStatusAnomaly,
		Data:            features.Clone(),
		Recommendations: append([]string(nil), recommendations...),
	}
	if len(alert.Recommendations) == 0 {
		alert.Recommendations = nil
	}

	s.mu.Lock()
	s.alerts = append(s.alerts, alert)
	s.mu.Unlock()

	metrics.ObserveAlert()
	s.logger.Warn("anomaly detected", "alert_id", alert.ID, "data", alert.Data)

	for _, w := range s.writers {
		if err := w.WriteAlerts([]models.Alert{alert}); err != nil {
			s.logger.Error("alert forwarding failed", "writer", fmt.Sprintf("%T", w), "alert_id", alert.ID, "error", err)
		}
	}
	return alert
}

// Alerts returns a copy of the alert log in insertion order.
func (s *Sink) Alerts() []models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

// Len returns the number of recorded alerts.
func (s *Sink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.alerts)
}

// Flush writes the whole alert log to path as an indented JSON array.
func (s *Sink) Flush(path string) error {
	alerts := s.Alerts()
	data, err := json.MarshalIndent(alerts, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal alerts: %w", err)
	}
	if err := utils.WriteFileAtomic(path, data, 0o644); err != nil {
		s.logger.Error("failed to save alerts", "path", path, "error", err)
		return fmt.Errorf("save alerts: %w", err)
	}
	s.logger.Info("alerts saved", "path", path, "count", len(alerts))
	return nil
}

// Close closes every writer and returns the first error.
func (s *Sink) Close() error {
	var first error
	for _, w := range s.writers {
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
