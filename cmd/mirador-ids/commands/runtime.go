package commands

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/miradorstack/mirador-ids/internal/alert"
	"github.com/miradorstack/mirador-ids/internal/collector"
	"github.com/miradorstack/mirador-ids/internal/config"
	"github.com/miradorstack/mirador-ids/internal/detector"
	"github.com/miradorstack/mirador-ids/internal/engine"
	"github.com/miradorstack/mirador-ids/internal/extractors"
	"github.com/miradorstack/mirador-ids/internal/utils"
)

// runtime holds the wired components shared by every subcommand.
type runtime struct {
	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
	collector collector.Collector
	detector  *detector.Detector
	sink      *alert.Sink
	pipeline  *engine.Pipeline
}

func loadRuntime() (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		return nil, err
	}

	logger, logCloser := utils.NewLogger(utils.LogOptions{
		Level:      cfg.Logging.Level,
		JSON:       cfg.Logging.JSON,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	slog.SetDefault(logger)

	rt, err := buildRuntime(cfg, logger)
	if err != nil {
		_ = logCloser.Close()
		return nil, err
	}
	rt.logCloser = logCloser
	return rt, nil
}

func buildRuntime(cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	coll, err := newCollector(cfg.Collector)
	if err != nil {
		return nil, fmt.Errorf("build collector: %w", err)
	}

	writers, err := newAlertWriters(cfg.Alerts.Forward)
	if err != nil {
		_ = coll.Close()
		return nil, fmt.Errorf("build alert forwarder: %w", err)
	}

	ruleEngine, err := engine.NewRuleEngine(cfg.Rules.Path, logger)
	if err != nil {
		_ = coll.Close()
		return nil, fmt.Errorf("load rule pack: %w", err)
	}

	det, restored := detector.New(detector.Config{
		ModelPath:     cfg.Detector.ModelPath,
		Contamination: cfg.Detector.Contamination,
		Seed:          cfg.Detector.Seed,
		Trees:         cfg.Detector.Trees,
		SampleSize:    cfg.Detector.SampleSize,
	}, logger)
	logger.Debug("model restore", slog.String("outcome", string(restored.Outcome)), slog.String("path", restored.Path))

	sink := alert.NewSink(logger, writers...)
	pipeline := engine.NewPipeline(
		logger,
		coll,
		det,
		sink,
		ruleEngine,
		extractors.NewMetricExtractor(),
		extractors.NewLogsExtractor(),
	)

	return &runtime{
		cfg:       cfg,
		logger:    logger,
		collector: coll,
		detector:  det,
		sink:      sink,
		pipeline:  pipeline,
	}, nil
}

func newCollector(cfg config.CollectorConfig) (collector.Collector, error) {
	switch cfg.Mode {
	case config.CollectorSimulated, "":
		return collector.NewSimulated(cfg.Seed), nil
	case config.CollectorHost:
		return collector.NewHost(cfg.Events, cfg.Host.CPUInterval), nil
	case config.CollectorHTTP:
		return collector.NewHTTPAgent(cfg.HTTP.BaseURL, cfg.HTTP.SnapshotPath, cfg.HTTP.Node, cfg.HTTP.Timeout), nil
	case config.CollectorRedis:
		return collector.NewRedisQueue(collector.RedisConfig{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			Key:          cfg.Redis.Key,
			BlockTimeout: cfg.Redis.BlockTimeout,
		})
	default:
		return nil, fmt.Errorf("unknown collector mode %q", cfg.Mode)
	}
}

func newAlertWriters(cfg config.ForwardConfig) ([]alert.Writer, error) {
	var (
		w   alert.Writer
		err error
	)
	switch cfg.Mode {
	case config.ForwardNone:
		return nil, nil
	case config.ForwardJSONL:
		w, err = alert.NewJSONLWriter(cfg.Path)
	case config.ForwardHTTP:
		w, err = alert.NewHTTPWriter(alert.HTTPConfig{URL: cfg.URL, Timeout: cfg.Timeout, Headers: cfg.Headers})
	case config.ForwardRedis:
		w, err = alert.NewRedisWriter(alert.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Key:      cfg.Redis.Key,
			Timeout:  cfg.Timeout,
		})
	case config.ForwardSQLite:
		w, err = alert.NewSQLiteWriter(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown forward mode %q", cfg.Mode)
	}
	if err != nil {
		return nil, err
	}
	return []alert.Writer{w}, nil
}

// close releases the collector, alert writers and log file.
func (r *runtime) close() {
	if err := r.collector.Close(); err != nil {
		r.logger.Warn("collector close", slog.Any("error", err))
	}
	if err := r.sink.Close(); err != nil {
		r.logger.Warn("alert writers close", slog.Any("error", err))
	}
	if r.logCloser != nil {
		_ = r.logCloser.Close()
	}
}
