package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels scored batches.
	OutcomeSuccess = "success"
	// OutcomeError labels batches that failed in the pipeline or the model.
	OutcomeError = "error"
	// OutcomeCached labels batches answered from the cache.
	OutcomeCached = "cached"
)

var (
	batchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_forecast",
			Name:      "batches_total",
			Help:      "Total number of forecast batches handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	batchDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mirador_forecast",
			Name:      "batch_seconds",
			Help:      "Forecast batch latency in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	rowsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mirador_forecast",
			Name:      "rows_total",
			Help:      "Total number of records scored.",
		},
	)

	unknownCategoriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mirador_forecast",
			Name:      "unknown_categories_total",
			Help:      "Store types encoded with the unknown sentinel.",
		},
	)

	stageErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_forecast",
			Name:      "stage_errors_total",
			Help:      "Batches aborted, partitioned by pipeline stage.",
		},
		[]string{"stage"},
	)
)

// Register attaches forecast collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		batchesTotal,
		batchDurationSeconds,
		rowsTotal,
		unknownCategoriesTotal,
		stageErrorsTotal,
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

// ObserveBatch records a batch duration, outcome and row count.
func ObserveBatch(duration time.Duration, outcome string, rows, unknown int) {
	switch outcome {
	case OutcomeError, OutcomeCached:
	default:
		outcome = OutcomeSuccess
	}
	batchesTotal.WithLabelValues(outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	batchDurationSeconds.Observe(duration.Seconds())
	if rows > 0 && outcome != OutcomeError {
		rowsTotal.Add(float64(rows))
	}
	if unknown > 0 {
		unknownCategoriesTotal.Add(float64(unknown))
	}
}

// ObserveStageError counts a batch aborted in stage.
func ObserveStageError(stage string) {
	if stage == "" {
		stage = "unknown"
	}
	stageErrorsTotal.WithLabelValues(stage).Inc()
}
