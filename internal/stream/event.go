package stream

import (
	"time"

	"fxagent/internal/model"
)

// EventType tags a streamed event.
type EventType string

const (
	EventStart       EventType = "start"
	EventQueryParsed EventType = "query_parsed"
	EventAgentUpdate EventType = "agent_update"
	EventRiskUpdate  EventType = "risk_update"
	EventDecision    EventType = "decision"
	EventComplete    EventType = "complete"
	EventError       EventType = "error"
)

// IsTerminal reports whether no event may follow this one.
func (t EventType) IsTerminal() bool {
	return t == EventComplete || t == EventError
}

// Event is one externally delivered stage transition. Seq starts at 1 and
// increases by one per event within a run.
type Event struct {
	Type      EventType `json:"type"`
	Seq       int64     `json:"seq"`
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

type StartData struct {
	RunID string `json:"run_id"`
	Query string `json:"query"`
}

type QueryParsedData struct {
	Context model.QueryContext `json:"context"`
}

type AgentUpdateData struct {
	Task      string `json:"task"`
	Success   bool   `json:"success"`
	Summary   string `json:"summary,omitempty"`
	Error     string `json:"error,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
}

// RiskUpdateData embeds the full risk decision.
type RiskUpdateData struct {
	model.RiskDecision
}

type DecisionData struct {
	model.FinalDecision
}

type CompleteData struct {
	State      model.WorkflowState `json:"state"`
	Action     model.Action        `json:"action,omitempty"`
	DurationMS int64               `json:"duration_ms"`
}

type ErrorData struct {
	Message string `json:"message"`
}

// NewAgentUpdate maps a task result into its event payload.
func NewAgentUpdate(r model.AgentResult, completed, total int) AgentUpdateData {
	return AgentUpdateData{
		Task:      r.Task,
		Success:   r.Success,
		Summary:   r.Summary,
		Error:     r.Error,
		ElapsedMS: r.ElapsedMS,
		Completed: completed,
		Total:     total,
	}
}
