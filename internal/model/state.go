package model

import (
	"maps"
	"time"
)

// WorkflowState is the stage a run is currently in.
type WorkflowState string

const (
	StateStart        WorkflowState = "start"
	StateParsing      WorkflowState = "parsing"
	StateAnalyzing    WorkflowState = "analyzing"
	StateRiskCheck    WorkflowState = "risk_check"
	StateSynthesizing WorkflowState = "synthesizing"
	StateDone         WorkflowState = "done"
	StateFailed       WorkflowState = "failed"
)

var transitions = map[WorkflowState][]WorkflowState{
	StateStart:        {StateParsing, StateFailed},
	StateParsing:      {StateAnalyzing, StateFailed},
	StateAnalyzing:    {StateRiskCheck, StateFailed},
	StateRiskCheck:    {StateSynthesizing, StateDone, StateFailed},
	StateSynthesizing: {StateDone, StateFailed},
}

// CanTransition reports whether the workflow graph has an edge from -> to.
func CanTransition(from, to WorkflowState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s WorkflowState) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// Edges returns a copy of the workflow graph, for /info.
func Edges() map[WorkflowState][]WorkflowState {
	out := make(map[WorkflowState][]WorkflowState, len(transitions))
	for from, to := range transitions {
		out[from] = append([]WorkflowState(nil), to...)
	}
	return out
}

// AllStates lists every workflow state in graph order.
func AllStates() []WorkflowState {
	return []WorkflowState{StateStart, StateParsing, StateAnalyzing, StateRiskCheck, StateSynthesizing, StateDone, StateFailed}
}

// RunState is the record threaded through one run. Stages never modify it in
// place: they hand a Delta to Merge, which returns the next value.
type RunState struct {
	RunID      string                 `json:"run_id"`
	Query      QueryContext           `json:"query"`
	Results    map[string]AgentResult `json:"results"`
	Risk       *RiskDecision          `json:"risk,omitempty"`
	Decision   *FinalDecision         `json:"decision,omitempty"`
	State      WorkflowState          `json:"state"`
	Error      string                 `json:"error,omitempty"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at,omitempty"`
}

// NewRunState seeds a run in the start state.
func NewRunState(runID string, startedAt time.Time) RunState {
	return RunState{
		RunID:     runID,
		Results:   map[string]AgentResult{},
		State:     StateStart,
		StartedAt: startedAt,
	}
}

// Delta is a partial update produced by a stage. Nil fields are left alone.
type Delta struct {
	Query      *QueryContext
	Results    map[string]AgentResult
	Risk       *RiskDecision
	Decision   *FinalDecision
	State      WorkflowState
	Error      string
	FinishedAt time.Time
}

// Merge applies d and returns the new state; s itself is left untouched.
func (s RunState) Merge(d Delta) RunState {
	next := s
	next.Results = make(map[string]AgentResult, len(s.Results)+len(d.Results))
	maps.Copy(next.Results, s.Results)
	maps.Copy(next.Results, d.Results)
	if d.Query != nil {
		q := *d.Query
		next.Query = q
	}
	if d.Risk != nil {
		r := *d.Risk
		r.Reasons = append([]string{}, d.Risk.Reasons...)
		next.Risk = &r
	}
	if d.Decision != nil {
		dec := *d.Decision
		next.Decision = &dec
	}
	if d.State != "" {
		next.State = d.State
	}
	if d.Error != "" {
		next.Error = d.Error
	}
	if !d.FinishedAt.IsZero() {
		next.FinishedAt = d.FinishedAt
	}
	return next
}

// Result returns the named task result, if present.
func (s RunState) Result(task string) (AgentResult, bool) {
	r, ok := s.Results[task]
	return r, ok
}
