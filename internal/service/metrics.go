package service

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"tumourscan/internal/detection"
)

// Metrics are the pipeline counters and inference timings.
type Metrics struct {
	tumourDetections    *prometheus.CounterVec
	biomarkerDetections *prometheus.CounterVec
	inferenceDuration   *prometheus.HistogramVec
}

// NewMetrics creates and registers the pipeline metrics on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		tumourDetections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tumour_detections_total",
				Help: "Tumour detection attempts by outcome.",
			},
			[]string{"outcome"},
		),
		biomarkerDetections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "biomarker_detections_total",
				Help: "Biomarker detection attempts by outcome.",
			},
			[]string{"outcome"},
		),
		inferenceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "inference_duration_seconds",
				Help:    "Time spent waiting for the inference provider.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 1.5, 2, 3, 5, 10, 30},
			},
			[]string{"kind"},
		),
	}

	for _, c := range []prometheus.Collector{m.tumourDetections, m.biomarkerDetections, m.inferenceDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustNewMetrics is NewMetrics for a fresh registry, where registration cannot collide.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	m, err := NewMetrics(reg)
	if err != nil {
		panic(err)
	}
	return m
}

const (
	outcomeDetected    = "detected"
	outcomeClear       = "clear"
	outcomeCreated     = "created"
	outcomeEmpty       = "empty"
	outcomeConflict    = "conflict"
	outcomeTimeout     = "timeout"
	outcomeUnavailable = "unavailable"
	outcomeFailed      = "failed"
)

// failureOutcome classifies an error for the outcome label.
func failureOutcome(err error) string {
	switch {
	case errors.Is(err, detection.ErrInferenceTimeout):
		return outcomeTimeout
	case errors.Is(err, detection.ErrProviderUnavailable):
		return outcomeUnavailable
	default:
		return outcomeFailed
	}
}
