package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/miradorstack/mirador-ids/internal/api"
	"github.com/miradorstack/mirador-ids/internal/metrics"
	"github.com/miradorstack/mirador-ids/internal/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the detection API",
	Long: `Start the HTTP facade (/, /detect, /logs, /health) and the gRPC health
service. A model is trained on startup unless one is restored from disk.
Alerts and the model are saved on shutdown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime()
		if err != nil {
			return err
		}
		defer rt.close()
		return serve(rt)
	},
}

func serve(rt *runtime) error {
	cfg, logger := rt.cfg, rt.logger
	logger.Info("starting mirador-ids", slog.String("address", cfg.Server.Address), slog.String("grpc_address", cfg.Server.GRPCAddress))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bootstrapErr := rt.pipeline.Bootstrap(ctx, cfg.Pipeline.BootstrapSamples)
	if bootstrapErr != nil {
		logger.Error("startup training failed, detection unavailable until a model is trained", slog.Any("error", bootstrapErr))
	}

	var metricsHandler http.Handler
	if cfg.Server.MetricsAddress == "" {
		metricsHandler = promhttp.Handler()
	}
	idsService := services.NewIDSService(logger, rt.pipeline, rt.sink)
	httpServer, err := api.NewHTTPServer(cfg.Server, api.NewHandler(idsService, logger, metricsHandler))
	if err != nil {
		logger.Error("failed to create HTTP server", slog.Any("error", err))
		return err
	}

	var grpcServer *api.Server
	if cfg.Server.GRPCAddress != "" {
		grpcServer, err = api.NewServer(cfg.Server)
		if err != nil {
			logger.Error("failed to create gRPC server", slog.Any("error", err))
			return err
		}
		grpcServer.SetServing(rt.detector.Trained())
		rt.pipeline.OnTrained(func() { grpcServer.SetServing(true) })
		go func() {
			if serveErr := grpcServer.Start(); serveErr != nil {
				logger.Error("gRPC server exited", slog.Any("error", serveErr))
				stop()
			}
		}()
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	if bootstrapErr != nil && cfg.Pipeline.BootstrapRetry > 0 {
		go func() {
			if err := rt.pipeline.RetryBootstrap(ctx, cfg.Pipeline.BootstrapSamples, cfg.Pipeline.BootstrapRetry); err != nil {
				logger.Error("bootstrap retry stopped", slog.Any("error", err))
			}
		}()
	}

	if cfg.Pipeline.Interval > 0 {
		go func() {
			logger.Info("scheduled detection enabled", slog.Duration("interval", cfg.Pipeline.Interval))
			if err := rt.pipeline.Run(ctx, cfg.Pipeline.Interval); err != nil {
				logger.Error("scheduled detection stopped", slog.Any("error", err))
			}
		}()
	}

	go func() {
		logger.Info("HTTP server listening", slog.String("address", httpServer.Address()))
		if serveErr := httpServer.Start(); serveErr != nil {
			logger.Error("HTTP server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received, saving alerts and model")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown", slog.Any("error", err))
	}
	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
	}

	if err := rt.sink.Flush(cfg.Alerts.FilePath); err != nil {
		logger.Error("failed to flush alerts", slog.Any("error", err))
	}
	rt.detector.Save()

	stats := idsService.Stats()
	logger.Info("mirador-ids stopped",
		slog.Int("alerts", rt.sink.Len()),
		slog.Int("detect_requests", stats.Cycles),
		slog.Int("detect_anomalies", stats.Anomalies),
		slog.Duration("detect_p95", stats.P95))
	return nil
}
