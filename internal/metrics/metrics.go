package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels detection cycles that completed.
	OutcomeSuccess = "success"
	// OutcomeError labels failed cycles (collection, schema or untrained model).
	OutcomeError = "error"
)

var (
	cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_ids",
			Name:      "cycles_total",
			Help:      "Total number of detection cycles, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	cycleDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mirador_ids",
			Name:      "cycle_seconds",
			Help:      "Detection cycle latency in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	detectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_ids",
			Name:      "detections_total",
			Help:      "Detections performed, partitioned by label.",
		},
		[]string{"label"},
	)

	alertsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mirador_ids",
			Name:      "alerts_total",
			Help:      "Alerts raised by the sink.",
		},
	)

	modelTrained = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mirador_ids",
			Name:      "model_trained",
			Help:      "1 when the anomaly model is fitted, 0 otherwise.",
		},
	)

	persistenceTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_ids",
			Name:      "persistence_total",
			Help:      "Model artifact save/load attempts, partitioned by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)
)

// Register attaches mirador-ids collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		cyclesTotal,
		cycleDurationSeconds,
		detectionsTotal,
		alertsTotal,
		modelTrained,
		persistenceTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveCycle records a detection cycle duration and outcome label.
func ObserveCycle(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	cyclesTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	cycleDurationSeconds.Observe(duration.Seconds())
}

// ObserveDetection counts one labelled detection.
func ObserveDetection(label string) {
	detectionsTotal.WithLabelValues(label).Inc()
}

// ObserveAlert counts one raised alert.
func ObserveAlert() {
	alertsTotal.Inc()
}

// SetModelTrained mirrors the model's trained flag.
func SetModelTrained(trained bool) {
	if trained {
		modelTrained.Set(1)
		return
	}
	modelTrained.Set(0)
}

// ObservePersistence counts a save or load attempt.
func ObservePersistence(op, outcome string) {
	persistenceTotal.WithLabelValues(op, outcome).Inc()
}
