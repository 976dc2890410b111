package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/miradorstack/mirador-ids/internal/services"
)

// Service is the facade the HTTP handlers expose.
type Service interface {
	Root(ctx context.Context) services.MessageResponse
	Detect(ctx context.Context) (services.DetectResponse, error)
	Alerts(ctx context.Context) services.AlertsResponse
	Health(ctx context.Context) services.HealthResponse
}

// ErrorResponse is the JSON body returned on failures.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewHandler routes the facade endpoints. metricsHandler is mounted at
// /metrics when non-nil. Non-GET requests are rejected with 405.
func NewHandler(svc Service, logger *slog.Logger, metricsHandler http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{svc: svc, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.root)
	mux.HandleFunc("GET /detect", h.detect)
	mux.HandleFunc("GET /logs", h.logs)
	mux.HandleFunc("GET /health", h.health)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}
	return mux
}

type handlers struct {
	svc    Service
	logger *slog.Logger
}

func (h *handlers) root(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.Root(r.Context()))
}

func (h *handlers) detect(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.Detect(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) logs(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.Alerts(r.Context()))
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.Health(r.Context()))
}

func (h *handlers) writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("failed to encode response", slog.Any("error", err))
	}
}

func (h *handlers) writeError(w http.ResponseWriter, err error) {
	st := status.Convert(err)
	code, name := httpStatusFromCode(st.Code())
	h.writeJSON(w, code, ErrorResponse{Error: name, Message: st.Message()})
}

// httpStatusFromCode maps facade status codes to HTTP statuses and stable
// machine-readable error names.
func httpStatusFromCode(code codes.Code) (int, string) {
	switch code {
	case codes.Unavailable:
		return http.StatusServiceUnavailable, "model_not_trained"
	case codes.InvalidArgument:
		return http.StatusBadRequest, "invalid_argument"
	case codes.FailedPrecondition:
		return http.StatusPreconditionFailed, "failed_precondition"
	case codes.DeadlineExceeded, codes.Canceled:
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
