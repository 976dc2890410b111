package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/miradorstack/mirador-ids/internal/models"
	"github.com/miradorstack/mirador-ids/internal/services"
)

type serviceStub struct {
	detect    services.DetectResponse
	detectErr error
	alerts    []models.Alert
}

func (s *serviceStub) Root(ctx context.Context) services.MessageResponse {
	return services.MessageResponse{Message: "Lightweight ML-IDS is running. Use /detect or /health endpoints."}
}

func (s *serviceStub) Detect(ctx context.Context) (services.DetectResponse, error) {
	return s.detect, s.detectErr
}

func (s *serviceStub) Alerts(ctx context.Context) services.AlertsResponse {
	return services.AlertsResponse{Alerts: s.alerts}
}

func (s *serviceStub) Health(ctx context.Context) services.HealthResponse {
	return services.HealthResponse{Status: "running", Message: "IDS system is healthy."}
}

func serve(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRootAndHealthHandlers(t *testing.T) {
	h := NewHandler(&serviceStub{}, nil, nil)

	rec := serve(t, h, http.MethodGet, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var root map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &root); err != nil {
		t.Fatalf("decode root: %v", err)
	}
	if root["message"] != "Lightweight ML-IDS is running. Use /detect or /health endpoints." {
		t.Fatalf("unexpected root body: %v", root)
	}

	rec = serve(t, h, http.MethodGet, "/health")
	var health map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health["status"] != "running" || health["message"] != "IDS system is healthy." {
		t.Fatalf("unexpected health body: %v", health)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestDetectHandler(t *testing.T) {
	h := NewHandler(&serviceStub{detect: services.DetectResponse{
		Status:   "anomaly",
		Features: models.FeatureVector{"cpu": 97.5},
	}}, nil, nil)

	rec := serve(t, h, http.MethodGet, "/detect")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var body struct {
		Status   string             `json:"status"`
		Features map[string]float64 `json:"features"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode detect: %v", err)
	}
	if body.Status != "anomaly" || body.Features["cpu"] != 97.5 {
		t.Fatalf("unexpected detect body: %+v", body)
	}
}

func TestDetectHandlerNotTrained(t *testing.T) {
	h := NewHandler(&serviceStub{detectErr: status.Error(codes.Unavailable, "model not trained yet")}, nil, nil)

	rec := serve(t, h, http.MethodGet, "/detect")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if body.Error != "model_not_trained" || body.Message != "model not trained yet" {
		t.Fatalf("unexpected error body: %+v", body)
	}
}

func TestDetectHandlerInternalError(t *testing.T) {
	h := NewHandler(&serviceStub{detectErr: status.Error(codes.Internal, "boom")}, nil, nil)
	if rec := serve(t, h, http.MethodGet, "/detect"); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestLogsHandler(t *testing.T) {
	h := NewHandler(&serviceStub{alerts: []models.Alert{{
		ID:        "a",
		Timestamp: "2026-01-02 03:04:05",
		Status:    models.AlertStatusAnomaly,
		Data:      models.FeatureVector{"cpu": 99},
	}}}, nil, nil)

	rec := serve(t, h, http.MethodGet, "/logs")
	if !strings.Contains(rec.Body.String(), `"status":"ANOMALY_DETECTED"`) {
		t.Fatalf("unexpected logs body: %s", rec.Body.String())
	}
	var body struct {
		Alerts []models.Alert `json:"alerts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode logs: %v", err)
	}
	if len(body.Alerts) != 1 || body.Alerts[0].Data["cpu"] != 99 {
		t.Fatalf("unexpected alerts: %+v", body.Alerts)
	}
}

func TestNonGetIsRejected(t *testing.T) {
	h := NewHandler(&serviceStub{}, nil, nil)
	for _, path := range []string{"/", "/detect", "/logs", "/health"} {
		if rec := serve(t, h, http.MethodPost, path); rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("POST %s: expected 405, got %d", path, rec.Code)
		}
	}
	if rec := serve(t, h, http.MethodGet, "/unknown"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown path, got %d", rec.Code)
	}
}

func TestMetricsMountedWhenProvided(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("mirador_ids_alerts_total 0\n"))
	})
	h := NewHandler(&serviceStub{}, nil, metrics)
	rec := serve(t, h, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "mirador_ids_alerts_total") {
		t.Fatalf("metrics not served: %d %s", rec.Code, rec.Body.String())
	}

	h = NewHandler(&serviceStub{}, nil, nil)
	if rec := serve(t, h, http.MethodGet, "/metrics"); rec.Code != http.StatusNotFound {
		t.Fatalf("metrics should not be mounted, got %d", rec.Code)
	}
}
