package detector

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/miradorstack/mirador-ids/internal/metrics"
	"github.com/miradorstack/mirador-ids/internal/models"
	"github.com/miradorstack/mirador-ids/internal/utils"
)

var (
	// ErrNotTrained is returned when detection is requested before the model is fitted.
	ErrNotTrained = errors.New("model not trained yet")
	// ErrEmptyTrainingData is returned when a training batch carries no records or features.
	ErrEmptyTrainingData = errors.New("training data is empty")
	// ErrSchemaMismatch is returned when a vector's key set differs from the fitted schema.
	ErrSchemaMismatch = errors.New("feature schema mismatch")
)

// Config controls the estimator and where its artifact lives.
type Config struct {
	ModelPath     string
	Contamination float64
	Seed          int64
	Trees         int
	SampleSize    int
}

// DefaultConfig mirrors the stock isolation forest defaults.
func DefaultConfig() Config {
	return Config{
		ModelPath:     "detector_model.bin",
		Contamination: 0.1,
		Seed:          42,
		Trees:         100,
		SampleSize:    256,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Contamination <= 0 || c.Contamination > 0.5 {
		c.Contamination = def.Contamination
	}
	if c.Trees <= 0 {
		c.Trees = def.Trees
	}
	if c.SampleSize <= 0 {
		c.SampleSize = def.SampleSize
	}
	return c
}

// PersistOutcome classifies a save or load attempt.
type PersistOutcome string

const (
	PersistSaved   PersistOutcome = "saved"
	PersistLoaded  PersistOutcome = "loaded"
	PersistMissing PersistOutcome = "missing"
	PersistFailed  PersistOutcome = "failed"
	PersistSkipped PersistOutcome = "skipped"
)

// PersistResult reports what a persistence operation did. Persistence never
// returns an error to the caller; failures surface here instead.
type PersistResult struct {
	Op      string
	Outcome PersistOutcome
	Path    string
	Err     error
}

// OK reports whether the operation left the artifact and the model consistent.
func (r PersistResult) OK() bool {
	return r.Outcome != PersistFailed
}

// Detector is the anomaly model: an isolation forest with a trained flag,
// a fitted schema and a persistence path. It is safe for concurrent use.
type Detector struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.RWMutex
	forest  *isolationForest
	schema  models.Schema
	trained bool
}

// New builds an untrained detector and restores the artifact at
// cfg.ModelPath when one exists. Restore failures are logged and reported,
// never returned as errors.
func New(cfg Config, logger *slog.Logger) (*Detector, PersistResult) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	d := &Detector{
		cfg:    cfg,
		logger: logger.With("component", "detector"),
		forest: newIsolationForest(cfg.Trees, cfg.SampleSize, cfg.Contamination, cfg.Seed),
	}
	metrics.SetModelTrained(false)
	return d, d.Load()
}

// Trained reports whether the model has been fitted.
func (d *Detector) Trained() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.trained
}

// Schema returns the feature names the model was fitted on.
func (d *Detector) Schema() models.Schema {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append(models.Schema(nil), d.schema...)
}

// ModelPath returns the artifact location.
func (d *Detector) ModelPath() string {
	return d.cfg.ModelPath
}

// Train fits a fresh forest on batch and persists it. The schema is the key
// set of the first record; every record must match it. Validation failures
// leave the detector and the artifact untouched. A failed save does not undo
// training and is reported through the PersistResult.
func (d *Detector) Train(batch []models.FeatureVector) (PersistResult, error) {
	if len(batch) == 0 || batch[0].IsEmpty() {
		d.logger.Error("training data is empty, cannot train model")
		return PersistResult{Op: "save", Outcome: PersistSkipped, Path: d.cfg.ModelPath}, ErrEmptyTrainingData
	}

	schema := batch[0].Schema()
	rows := make([][]float64, len(batch))
	for i, record := range batch {
		values, err := record.Values(schema)
		if err != nil {
			d.logger.Error("training record does not match schema", "index", i, "schema", schema.String(), "error", err)
			return PersistResult{Op: "save", Outcome: PersistSkipped, Path: d.cfg.ModelPath},
				fmt.Errorf("%w: record %d: %v", ErrSchemaMismatch, i, err)
		}
		rows[i] = values
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	forest := newIsolationForest(d.cfg.Trees, d.cfg.SampleSize, d.cfg.Contamination, d.cfg.Seed)
	if err := forest.fit(rows); err != nil {
		return PersistResult{Op: "save", Outcome: PersistSkipped, Path: d.cfg.ModelPath}, fmt.Errorf("fit isolation forest: %w", err)
	}

	d.forest = forest
	d.schema = schema
	d.trained = true
	metrics.SetModelTrained(true)
	d.logger.Info("model trained", "records", len(batch), "features", len(schema), "threshold", forest.threshold)

	return d.saveLocked(), nil
}

// Detect labels a single observation.
func (d *Detector) Detect(v models.FeatureVector) (models.Label, error) {
	res, err := d.Evaluate(v)
	if err != nil {
		return "", err
	}
	return res.Label, nil
}

// Evaluate labels a single observation and returns its isolation score. An
// empty vector is normal and never reaches the estimator.
func (d *Detector) Evaluate(v models.FeatureVector) (models.DetectionResult, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.trained {
		d.logger.Error("model not trained yet")
		return models.DetectionResult{}, ErrNotTrained
	}
	if v.IsEmpty() {
		d.logger.Warn("empty feature set passed to detector")
		return models.DetectionResult{Label: models.LabelNormal, Features: v}, nil
	}

	values, err := v.Values(d.schema)
	if err != nil {
		return models.DetectionResult{}, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}

	outlier, score := d.forest.predict(values)
	label := models.LabelNormal
	if outlier {
		label = models.LabelAnomalous
	}
	return models.DetectionResult{Label: label, Score: score, Features: v}, nil
}

// Save writes the current estimator, fitted or not, to the model path.
func (d *Detector) Save() PersistResult {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.saveLocked()
}

func (d *Detector) saveLocked() PersistResult {
	res := PersistResult{Op: "save", Path: d.cfg.ModelPath}
	if d.cfg.ModelPath == "" {
		res.Outcome = PersistSkipped
		return res
	}

	data := encodeArtifact(d.forest, d.schema)
	if err := utils.WriteFileAtomic(d.cfg.ModelPath, data, 0o644); err != nil {
		res.Outcome = PersistFailed
		res.Err = err
		d.logger.Error("failed to save model", "path", d.cfg.ModelPath, "error", err)
	} else {
		res.Outcome = PersistSaved
		d.logger.Info("detector model saved", "path", d.cfg.ModelPath, "bytes", len(data))
	}
	metrics.ObservePersistence(res.Op, string(res.Outcome))
	return res
}

// Load replaces the estimator with the artifact at the model path. A missing
// file leaves the detector unchanged; so does any decode failure.
func (d *Detector) Load() PersistResult {
	res := PersistResult{Op: "load", Path: d.cfg.ModelPath}
	if d.cfg.ModelPath == "" {
		res.Outcome = PersistSkipped
		return res
	}

	data, err := os.ReadFile(d.cfg.ModelPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			res.Outcome = PersistMissing
			d.logger.Debug("no model artifact found", "path", d.cfg.ModelPath)
		} else {
			res.Outcome = PersistFailed
			res.Err = err
			d.logger.Error("failed to load model", "path", d.cfg.ModelPath, "error", err)
		}
		metrics.ObservePersistence(res.Op, string(res.Outcome))
		return res
	}

	forest, schema, err := decodeArtifact(data)
	if err != nil {
		res.Outcome = PersistFailed
		res.Err = err
		d.logger.Error("failed to load model", "path", d.cfg.ModelPath, "error", err)
		metrics.ObservePersistence(res.Op, string(res.Outcome))
		return res
	}

	d.mu.Lock()
	d.forest = forest
	d.schema = models.Schema(schema)
	d.trained = forest.fitted
	d.mu.Unlock()

	metrics.SetModelTrained(forest.fitted)
	metrics.ObservePersistence(res.Op, string(PersistLoaded))
	res.Outcome = PersistLoaded
	d.logger.Info("detector model loaded", "path", d.cfg.ModelPath, "trained", forest.fitted, "features", len(schema))
	return res
}
