package workflow

import (
	"time"

	"fxagent/internal/model"
)

// Observer is told about every run, task and risk outcome.
type Observer interface {
	RunStarted()
	RunFinished(state model.WorkflowState, action model.Action, d time.Duration)
	TaskFinished(r model.AgentResult)
	RiskEvaluated(d model.RiskDecision)
}

type nopObserver struct{}

func (nopObserver) RunStarted() {}
func (nopObserver) RunFinished(model.WorkflowState, model.Action, time.Duration) {}
func (nopObserver) TaskFinished(model.AgentResult) {}
func (nopObserver) RiskEvaluated(model.RiskDecision) {}
