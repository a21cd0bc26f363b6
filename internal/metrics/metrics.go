package metrics

import (
	"time"

	"fxagent/internal/model"
	"fxagent/internal/pkg/circuit"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fxagent"

// Metrics exposes Prometheus collectors that report workflow activity.
type Metrics struct {
	runsTotal     *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	runsActive    prometheus.Gauge
	taskDuration  *prometheus.HistogramVec
	riskDecisions *prometheus.CounterVec
	breakerState  *prometheus.GaugeVec
}

// MustNewMetrics registers the collectors with reg and panics on a
// registration conflict, like the promauto helpers.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "runs_total",
			Help:      "Finished runs by terminal state and action.",
		}, []string{"state", "action"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a run from start to terminal state.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 45, 90, 120},
		}, []string{"state"}),
		runsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "runs_active",
			Help:      "Runs currently in flight.",
		}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "task_duration_seconds",
			Help:      "Duration of each analysis task by outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"task", "status"}),
		riskDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "decisions_total",
			Help:      "Risk gate outcomes.",
		}, []string{"outcome"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "circuit_state",
			Help:      "Model circuit breaker state: 0 closed, 1 open, 2 half-open.",
		}, []string{"breaker"}),
	}
	reg.MustRegister(m.runsTotal, m.runDuration, m.runsActive, m.taskDuration, m.riskDecisions, m.breakerState)
	return m
}

func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.runsActive.Inc()
}

func (m *Metrics) RunFinished(state model.WorkflowState, action model.Action, d time.Duration) {
	if m == nil {
		return
	}
	if action == "" {
		action = "none"
	}
	m.runsActive.Dec()
	m.runsTotal.WithLabelValues(string(state), string(action)).Inc()
	m.runDuration.WithLabelValues(string(state)).Observe(d.Seconds())
}

func (m *Metrics) TaskFinished(r model.AgentResult) {
	if m == nil {
		return
	}
	m.taskDuration.WithLabelValues(r.Task, taskStatus(r)).Observe(float64(r.ElapsedMS) / 1000)
}

func (m *Metrics) RiskEvaluated(d model.RiskDecision) {
	if m == nil {
		return
	}
	outcome := "rejected"
	if d.Approved {
		outcome = "approved"
	}
	m.riskDecisions.WithLabelValues(outcome).Inc()
}

// BreakerStateChanged matches circuit.CircuitBreaker's state hook.
func (m *Metrics) BreakerStateChanged(name string, _, to circuit.State) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(float64(to))
}

func taskStatus(r model.AgentResult) string {
	switch {
	case r.Success:
		return "ok"
	case r.Error == "timeout" || r.Error == "cancelled":
		return r.Error
	default:
		return "error"
	}
}
