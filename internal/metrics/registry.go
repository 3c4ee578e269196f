// Package metrics exposes Prometheus instrumentation for scoring, provider
// calls, configuration changes and training runs.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Step names timed by StartStepTimer
const (
	StepPredict = "predict"
	StepAnalyze = "analyze"
	StepCollect = "collect"
	StepTrain   = "train"
)

// Step results
const (
	ResultSuccess  = "success"
	ResultError    = "error"
	ResultDegraded = "degraded"
)

// Registry holds all viralrisk metrics
type Registry struct {
	reg *prometheus.Registry

	// Step duration metrics
	StepDuration *prometheus.HistogramVec
	StepErrors   *prometheus.CounterVec

	// Prediction metrics
	Predictions *prometheus.CounterVec
	RiskScore   prometheus.Histogram

	// Provider metrics
	ProviderRequests *prometheus.CounterVec
	ProviderCircuit  *prometheus.GaugeVec

	// Configuration metrics
	ConfigEvents   *prometheus.CounterVec
	ABAssignments  *prometheus.CounterVec
	ActiveVersion  *prometheus.GaugeVec
	versionMu      sync.Mutex
	currentVersion string

	// Training metrics
	TrainingRuns    *prometheus.CounterVec
	TrainingMacroF1 *prometheus.GaugeVec
	TrainingSamples prometheus.Gauge
}

// NewRegistry creates and registers all metrics on reg. A nil reg gets a
// fresh registry with the Go and process collectors attached.
func NewRegistry(reg *prometheus.Registry) *Registry {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	r := &Registry{
		reg: reg,

		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "viralrisk_step_duration_seconds",
				Help:    "Duration of each engine step in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 60.0},
			},
			[]string{"step", "result"},
		),

		StepErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "viralrisk_step_errors_total",
				Help: "Total number of engine step errors by step and error type",
			},
			[]string{"step", "error_type"},
		),

		Predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "viralrisk_predictions_total",
				Help: "Total number of predictions by risk tier and config source",
			},
			[]string{"tier", "source"},
		),

		RiskScore: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "viralrisk_risk_score",
				Help:    "Distribution of predicted risk scores",
				Buckets: prometheus.LinearBuckets(0.1, 0.1, 9),
			},
		),

		ProviderRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "viralrisk_provider_requests_total",
				Help: "Total number of classifier provider calls by provider and result",
			},
			[]string{"provider", "result"},
		),

		ProviderCircuit: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "viralrisk_provider_circuit_state",
				Help: "Provider circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"provider"},
		),

		ConfigEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "viralrisk_config_events_total",
				Help: "Total number of configuration lifecycle events by type",
			},
			[]string{"event"},
		),

		ABAssignments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "viralrisk_abtest_assignments_total",
				Help: "Total number of A/B test subject assignments by arm",
			},
			[]string{"arm"},
		),

		ActiveVersion: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "viralrisk_config_active_version",
				Help: "Set to 1 for the configuration version currently active",
			},
			[]string{"version"},
		),

		TrainingRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "viralrisk_training_runs_total",
				Help: "Total number of training runs by outcome",
			},
			[]string{"outcome"},
		),

		TrainingMacroF1: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "viralrisk_training_macro_f1",
				Help: "Validation macro F1 of the last training run",
			},
			[]string{"config"},
		),

		TrainingSamples: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "viralrisk_training_samples",
				Help: "Number of samples used by the last training run",
			},
		),
	}

	reg.MustRegister(
		r.StepDuration,
		r.StepErrors,
		r.Predictions,
		r.RiskScore,
		r.ProviderRequests,
		r.ProviderCircuit,
		r.ConfigEvents,
		r.ABAssignments,
		r.ActiveVersion,
		r.TrainingRuns,
		r.TrainingMacroF1,
		r.TrainingSamples,
	)

	return r
}

// StepTimer tracks execution time for an engine step
type StepTimer struct {
	metrics *Registry
	step    string
	start   time.Time
}

// StartStepTimer begins timing a step
func (r *Registry) StartStepTimer(step string) *StepTimer {
	return &StepTimer{metrics: r, step: step, start: time.Now()}
}

// Stop completes the step timing and records the metric
func (st *StepTimer) Stop(result string) {
	duration := time.Since(st.start)
	st.metrics.StepDuration.WithLabelValues(st.step, result).Observe(duration.Seconds())

	log.Debug().
		Str("step", st.step).
		Str("result", result).
		Dur("duration", duration).
		Msg("Engine step completed")
}

// RecordStepError records a failed step
func (r *Registry) RecordStepError(step, errorType string) {
	r.StepErrors.WithLabelValues(step, errorType).Inc()
}

// RecordPrediction counts a prediction. source is "current" or "abtest".
func (r *Registry) RecordPrediction(tier, source string, score float64) {
	r.Predictions.WithLabelValues(tier, source).Inc()
	r.RiskScore.Observe(score)
}

// RecordProviderCall counts a provider call outcome
func (r *Registry) RecordProviderCall(provider, result string) {
	r.ProviderRequests.WithLabelValues(provider, result).Inc()
}

// SetCircuitState publishes a gobreaker state name as a gauge value
func (r *Registry) SetCircuitState(provider, state string) {
	r.ProviderCircuit.WithLabelValues(provider).Set(circuitStateValue(state))
}

func circuitStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// RecordConfigEvent counts a configuration lifecycle event
func (r *Registry) RecordConfigEvent(event string) {
	r.ConfigEvents.WithLabelValues(event).Inc()
}

// RecordABAssignment counts one subject routed to arm
func (r *Registry) RecordABAssignment(arm string) {
	r.ABAssignments.WithLabelValues(arm).Inc()
}

// SetActiveVersion moves the active-version marker to id
func (r *Registry) SetActiveVersion(id string) {
	r.versionMu.Lock()
	defer r.versionMu.Unlock()
	if r.currentVersion != "" && r.currentVersion != id {
		r.ActiveVersion.DeleteLabelValues(r.currentVersion)
	}
	r.currentVersion = id
	r.ActiveVersion.WithLabelValues(id).Set(1)
}

// RecordTraining records the outcome of a training run
func (r *Registry) RecordTraining(outcome string, samples int, baselineF1, optimalF1 float64) {
	r.TrainingRuns.WithLabelValues(outcome).Inc()
	r.TrainingSamples.Set(float64(samples))
	r.TrainingMacroF1.WithLabelValues("baseline").Set(baselineF1)
	r.TrainingMacroF1.WithLabelValues("optimal").Set(optimalF1)
}

// Handler returns an HTTP handler serving this registry
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the underlying registry
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}
