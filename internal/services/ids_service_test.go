package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/miradorstack/mirador-ids/internal/detector"
	"github.com/miradorstack/mirador-ids/internal/models"
)

type cycleStub struct {
	result models.CycleResult
	err    error
	calls  int
}

func (c *cycleStub) RunCycle(ctx context.Context) (models.CycleResult, error) {
	c.calls++
	return c.result, c.err
}

type alertLogStub struct {
	alerts []models.Alert
}

func (a alertLogStub) Alerts() []models.Alert { return a.alerts }

func TestRootAndHealth(t *testing.T) {
	service := NewIDSService(nil, nil, nil)

	if got := service.Root(context.Background()).Message; got != "Lightweight ML-IDS is running. Use /detect or /health endpoints." {
		t.Fatalf("unexpected root message: %q", got)
	}
	health := service.Health(context.Background())
	if health.Status != "running" || health.Message != "IDS system is healthy." {
		t.Fatalf("unexpected health: %+v", health)
	}
}

func TestDetectAnomaly(t *testing.T) {
	features := models.FeatureVector{"cpu": 99}
	runner := &cycleStub{result: models.CycleResult{
		Detection: models.DetectionResult{Label: models.LabelAnomalous, Features: features},
		Alert:     &models.Alert{ID: "a"},
		Duration:  3 * time.Millisecond,
	}}
	service := NewIDSService(nil, runner, nil)

	resp, err := service.Detect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != StatusAnomaly || resp.Features["cpu"] != 99 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	stats := service.Stats()
	if stats.Cycles != 1 || stats.Anomalies != 1 || stats.P95 != 3*time.Millisecond {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestDetectNormal(t *testing.T) {
	runner := &cycleStub{result: models.CycleResult{
		Detection: models.DetectionResult{Label: models.LabelNormal},
	}}
	resp, err := NewIDSService(nil, runner, nil).Detect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != StatusNormal || resp.Features == nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestDetectNotTrained(t *testing.T) {
	runner := &cycleStub{err: detector.ErrNotTrained}
	service := NewIDSService(nil, runner, nil)
	_, err := service.Detect(context.Background())
	if status.Code(err) != codes.Unavailable {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if stats := service.Stats(); stats.Cycles != 0 {
		t.Fatalf("failed cycles must not be counted, got %+v", stats)
	}
}

func TestDetectFailure(t *testing.T) {
	runner := &cycleStub{err: errors.New("collector down")}
	_, err := NewIDSService(nil, runner, nil).Detect(context.Background())
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected internal, got %v", err)
	}

	_, err = NewIDSService(nil, nil, nil).Detect(context.Background())
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected failed precondition, got %v", err)
	}
}

func TestAlertsNeverNil(t *testing.T) {
	service := NewIDSService(nil, nil, alertLogStub{})
	if resp := service.Alerts(context.Background()); resp.Alerts == nil {
		t.Fatalf("alerts must encode as an empty array")
	}

	service = NewIDSService(nil, nil, alertLogStub{alerts: []models.Alert{{ID: "a"}, {ID: "b"}}})
	resp := service.Alerts(context.Background())
	if len(resp.Alerts) != 2 || resp.Alerts[0].ID != "a" {
		t.Fatalf("unexpected alerts: %+v", resp.Alerts)
	}
}
