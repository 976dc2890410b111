package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/miradorstack/mirador-ids/internal/detector"
	"github.com/miradorstack/mirador-ids/internal/models"
	"github.com/miradorstack/mirador-ids/internal/utils"
)

const (
	rootMessage   = "Lightweight ML-IDS is running. Use /detect or /health endpoints."
	healthStatus  = "running"
	healthMessage = "IDS system is healthy."

	// StatusAnomaly and StatusNormal are the detect response statuses.
	StatusAnomaly = "anomaly"
	StatusNormal  = "normal"
)

// CycleRunner runs one collect → detect → alert pass.
type CycleRunner interface {
	RunCycle(ctx context.Context) (models.CycleResult, error)
}

// AlertLog exposes the recorded alerts.
type AlertLog interface {
	Alerts() []models.Alert
}

// MessageResponse is the readiness banner.
type MessageResponse struct {
	Message string `json:"message"`
}

// DetectResponse reports the outcome of an on-demand detection.
type DetectResponse struct {
	Status   string               `json:"status"`
	Features models.FeatureVector `json:"features"`
}

// AlertsResponse lists every alert raised so far.
type AlertsResponse struct {
	Alerts []models.Alert `json:"alerts"`
}

// HealthResponse is the liveness report.
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// IDSService implements the detection facade.
type IDSService struct {
	logger   *slog.Logger
	pipeline CycleRunner
	alerts   AlertLog
	cycles   *utils.CycleStats
}

// NewIDSService constructs the facade.
func NewIDSService(logger *slog.Logger, pipeline CycleRunner, alerts AlertLog) *IDSService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IDSService{
		logger:   logger,
		pipeline: pipeline,
		alerts:   alerts,
		cycles:   utils.NewCycleStats(1024),
	}
}

// Root returns the readiness banner.
func (s *IDSService) Root(ctx context.Context) MessageResponse {
	return MessageResponse{Message: rootMessage}
}

// Detect runs one detection cycle. Errors carry gRPC status codes: Unavailable
// when the model is not trained yet, Internal otherwise.
func (s *IDSService) Detect(ctx context.Context) (DetectResponse, error) {
	if s.pipeline == nil {
		return DetectResponse{}, status.Error(codes.FailedPrecondition, "pipeline not configured")
	}

	result, err := s.pipeline.RunCycle(ctx)
	if err != nil {
		if errors.Is(err, detector.ErrNotTrained) {
			return DetectResponse{}, status.Error(codes.Unavailable, err.Error())
		}
		s.logger.Error("detection failed", slog.Any("error", err))
		return DetectResponse{}, status.Error(codes.Internal, fmt.Sprintf("detection failed: %v", err))
	}

	s.cycles.Observe(result.Duration, result.Detection.Anomalous())
	if sum := s.cycles.Summary(); sum.Cycles%20 == 0 {
		s.logger.Info("on-demand detection stats",
			slog.Int("cycles", sum.Cycles),
			slog.Int("anomalies", sum.Anomalies),
			slog.Duration("p95", sum.P95))
	}

	resp := DetectResponse{Status: StatusNormal, Features: result.Detection.Features}
	if result.Detection.Anomalous() {
		resp.Status = StatusAnomaly
	}
	if resp.Features == nil {
		resp.Features = models.FeatureVector{}
	}
	return resp, nil
}

// Alerts returns every recorded alert in insertion order.
func (s *IDSService) Alerts(ctx context.Context) AlertsResponse {
	if s.alerts == nil {
		return AlertsResponse{Alerts: []models.Alert{}}
	}
	alerts := s.alerts.Alerts()
	if alerts == nil {
		alerts = []models.Alert{}
	}
	return AlertsResponse{Alerts: alerts}
}

// Health reports liveness.
func (s *IDSService) Health(ctx context.Context) HealthResponse {
	return HealthResponse{Status: healthStatus, Message: healthMessage}
}

// Stats summarises the on-demand detections served so far.
func (s *IDSService) Stats() utils.CycleSummary {
	return s.cycles.Summary()
}
