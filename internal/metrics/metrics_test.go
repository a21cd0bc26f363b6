package metrics

import (
	"testing"
	"time"

	"fxagent/internal/model"
	"fxagent/internal/pkg/circuit"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecordOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNewMetrics(reg)

	m.RunStarted()
	m.RunStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.runsActive))

	m.RunFinished(model.StateDone, model.ActionWait, time.Second)
	m.RunFinished(model.StateFailed, "", 2*time.Second)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.runsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("done", "WAIT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("failed", "none")))

	m.RiskEvaluated(model.RiskDecision{Approved: true})
	m.RiskEvaluated(model.RiskDecision{})
	m.RiskEvaluated(model.RiskDecision{})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.riskDecisions.WithLabelValues("approved")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.riskDecisions.WithLabelValues("rejected")))

	m.TaskFinished(model.Failed("news", "timeout"))
	assert.Equal(t, 1, testutil.CollectAndCount(m.taskDuration))
}

func TestTaskStatus(t *testing.T) {
	assert.Equal(t, "ok", taskStatus(model.Succeeded("t", 1, "")))
	assert.Equal(t, "timeout", taskStatus(model.Failed("t", "timeout")))
	assert.Equal(t, "error", taskStatus(model.Failed("t", "boom")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RunStarted()
		m.RunFinished(model.StateDone, model.ActionBuy, time.Second)
		m.TaskFinished(model.AgentResult{})
		m.RiskEvaluated(model.RiskDecision{})
	})
}

func TestBreakerStateGauge(t *testing.T) {
	m := MustNewMetrics(prometheus.NewRegistry())
	m.BreakerStateChanged("model:judge", circuit.StateClosed, circuit.StateOpen)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.breakerState.WithLabelValues("model:judge")))
	m.BreakerStateChanged("model:judge", circuit.StateOpen, circuit.StateHalfOpen)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.breakerState.WithLabelValues("model:judge")))

	var nilMetrics *Metrics
	nilMetrics.BreakerStateChanged("x", circuit.StateClosed, circuit.StateOpen)
}
