package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/miradorstack/mirador-ids/internal/collector"
	"github.com/miradorstack/mirador-ids/internal/detector"
	"github.com/miradorstack/mirador-ids/internal/extractors"
	"github.com/miradorstack/mirador-ids/internal/metrics"
	"github.com/miradorstack/mirador-ids/internal/models"
	"github.com/miradorstack/mirador-ids/internal/utils"
)

// DefaultBootstrapSamples is the number of observations collected to train a
// model at startup when none was restored.
const DefaultBootstrapSamples = 20

// Detector is the anomaly model behaviour the pipeline depends on.
type Detector interface {
	Trained() bool
	Train(batch []models.FeatureVector) (detector.PersistResult, error)
	Evaluate(v models.FeatureVector) (models.DetectionResult, error)
}

// AlertSink records anomalous detections.
type AlertSink interface {
	Raise(features models.FeatureVector, recommendations []string) models.Alert
}

// Pipeline orchestrates collect → extract → detect → alert.
type Pipeline struct {
	logger           *slog.Logger
	collector        collector.Collector
	detector         Detector
	sink             AlertSink
	rulesEngine      *RuleEngine
	metricsExtractor *extractors.MetricExtractor
	logsExtractor    *extractors.LogsExtractor
	onTrained        []func()
	now              func() time.Time
}

// NewPipeline constructs a new detection pipeline.
func NewPipeline(
	logger *slog.Logger,
	coll collector.Collector,
	det Detector,
	sink AlertSink,
	rulesEngine *RuleEngine,
	metricsExtractor *extractors.MetricExtractor,
	logsExtractor *extractors.LogsExtractor,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if metricsExtractor == nil {
		metricsExtractor = extractors.NewMetricExtractor()
	}
	if logsExtractor == nil {
		logsExtractor = extractors.NewLogsExtractor()
	}

	return &Pipeline{
		logger:           logger,
		collector:        coll,
		detector:         det,
		sink:             sink,
		rulesEngine:      rulesEngine,
		metricsExtractor: metricsExtractor,
		logsExtractor:    logsExtractor,
		now:              time.Now,
	}
}

// OnTrained registers fn to run after every successful training. Register
// hooks before the pipeline is shared between goroutines.
func (p *Pipeline) OnTrained(fn func()) {
	if fn != nil {
		p.onTrained = append(p.onTrained, fn)
	}
}

// CollectFeatures gathers one snapshot and flattens it into a feature vector.
func (p *Pipeline) CollectFeatures(ctx context.Context) (models.FeatureVector, error) {
	if p.collector == nil {
		return nil, fmt.Errorf("collector not configured")
	}
	snap, err := p.collector.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect signals: %w", err)
	}
	return extractors.FromSnapshot(snap, p.logsExtractor, p.metricsExtractor), nil
}

// TrainingBatch collects n feature vectors.
func (p *Pipeline) TrainingBatch(ctx context.Context, n int) ([]models.FeatureVector, error) {
	batch := make([]models.FeatureVector, 0, max(n, 0))
	for i := 0; i < n; i++ {
		features, err := p.CollectFeatures(ctx)
		if err != nil {
			return nil, fmt.Errorf("training sample %d: %w", i, err)
		}
		batch = append(batch, features)
	}
	return batch, nil
}

// Bootstrap trains on n fresh samples unless a trained model was restored.
func (p *Pipeline) Bootstrap(ctx context.Context, n int) error {
	if p.detector.Trained() {
		p.logger.Info("loaded existing trained detector model")
		return nil
	}
	p.logger.Info("training anomaly detector on collected data", slog.Int("samples", n))
	if _, err := p.Retrain(ctx, n); err != nil {
		return err
	}
	p.logger.Info("detector training complete")
	return nil
}

// Retrain collects n samples and trains the detector unconditionally.
func (p *Pipeline) Retrain(ctx context.Context, n int) (detector.PersistResult, error) {
	batch, err := p.TrainingBatch(ctx, n)
	if err != nil {
		return detector.PersistResult{}, err
	}
	res, err := p.detector.Train(batch)
	if err != nil {
		return res, fmt.Errorf("train detector: %w", err)
	}
	if !res.OK() {
		p.logger.Warn("model trained but not persisted", slog.String("path", res.Path), slog.Any("error", res.Err))
	}
	for _, fn := range p.onTrained {
		fn()
	}
	return res, nil
}

// RetryBootstrap waits every between attempts to Bootstrap until one
// succeeds or ctx is cancelled. It is used when startup training failed.
func (p *Pipeline) RetryBootstrap(ctx context.Context, n int, every time.Duration) error {
	if every <= 0 {
		return fmt.Errorf("invalid bootstrap retry interval %s", every)
	}
	timer := time.NewTimer(every)
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
		err := p.Bootstrap(ctx, n)
		if err == nil {
			p.logger.Info("detector trained after retry", slog.Int("attempt", attempt))
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		p.logger.Warn("bootstrap training failed, will retry",
			slog.Int("attempt", attempt),
			slog.String("op", utils.OpOf(err)),
			slog.Duration("retry_in", every),
			slog.Any("error", err))
		timer.Reset(every)
	}
}

// RunCycle performs one detection pass and raises an alert on anomalies.
func (p *Pipeline) RunCycle(ctx context.Context) (models.CycleResult, error) {
	start := p.now()
	outcome := metrics.OutcomeSuccess
	defer func() {
		metrics.ObserveCycle(p.now().Sub(start), outcome)
	}()

	features, err := p.CollectFeatures(ctx)
	if err != nil {
		outcome = metrics.OutcomeError
		return models.CycleResult{Duration: p.now().Sub(start)}, err
	}

	detection, err := p.detector.Evaluate(features)
	if err != nil {
		outcome = metrics.OutcomeError
		return models.CycleResult{
			Detection: models.DetectionResult{Features: features},
			Duration:  p.now().Sub(start),
		}, err
	}
	metrics.ObserveDetection(string(detection.Label))

	result := models.CycleResult{Detection: detection}
	if detection.Anomalous() {
		recs := p.rulesEngine.Recommend(features)
		alert := p.sink.Raise(features, recs)
		result.Alert = &alert
	} else {
		p.logger.Info("normal behavior detected", slog.Any("features", features), slog.Float64("score", detection.Score))
	}
	result.Duration = p.now().Sub(start)
	return result, nil
}

// Run executes RunCycle every interval until ctx is cancelled. Cycle errors
// are logged and never stop the loop.
func (p *Pipeline) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid cycle interval %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := p.RunCycle(ctx); err != nil {
				switch {
				case errors.Is(err, collector.ErrNoSnapshot):
					p.logger.Debug("no snapshot available")
				case ctx.Err() != nil:
					return nil
				default:
					p.logger.Warn("detection cycle failed", slog.String("op", utils.OpOf(err)), slog.Any("error", err))
				}
			}
		}
	}
}
