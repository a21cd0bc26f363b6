package model

import (
	"fmt"
	"math"
	"strings"
)

// RiskDecision is the output of the risk gate. Reasons is empty iff Approved.
type RiskDecision struct {
	Approved     bool      `json:"approved"`
	Direction    Direction `json:"direction,omitempty"`
	Entry        float64   `json:"entry,omitempty"`
	StopLoss     float64   `json:"stop_loss,omitempty"`
	TakeProfit   float64   `json:"take_profit,omitempty"`
	PositionSize float64   `json:"position_size"`
	DollarRisk   float64   `json:"dollar_risk"`
	StopDistance float64   `json:"stop_distance_pips"`
	RewardRisk   float64   `json:"reward_risk"`
	Reasons      []string  `json:"reasons"`
}

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionWait Action = "WAIT"
)

// DecisionSource tells whether the final decision came from synthesis or was
// produced locally after a rejection.
type DecisionSource string

const (
	SourceSynthesis DecisionSource = "synthesis"
	SourceRiskGate  DecisionSource = "risk_gate"
)

type TradeParameters struct {
	Entry        float64 `json:"entry"`
	StopLoss     float64 `json:"stop_loss"`
	TakeProfit   float64 `json:"take_profit"`
	PositionSize float64 `json:"position_size"`
}

type Citation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// FinalDecision is the terminal trade recommendation of a run.
type FinalDecision struct {
	Action     Action           `json:"action"`
	Confidence float64          `json:"confidence"`
	Reasoning  string           `json:"reasoning"`
	KeyFactors []string         `json:"key_factors,omitempty"`
	Risks      []string         `json:"risks,omitempty"`
	Trade      *TradeParameters `json:"trade,omitempty"`
	Citations  []Citation       `json:"citations,omitempty"`
	Source     DecisionSource   `json:"source"`
}

// Validate checks the closed action set and the confidence range.
func (d FinalDecision) Validate() error {
	switch d.Action {
	case ActionBuy, ActionSell, ActionWait:
	default:
		return fmt.Errorf("unknown action %q", d.Action)
	}
	if math.IsNaN(d.Confidence) || d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", d.Confidence)
	}
	return nil
}

// WaitDecision is the local outcome of a rejected run; it never reaches the
// synthesis stage.
func WaitDecision(risk RiskDecision) FinalDecision {
	reasoning := "risk gate rejected the setup"
	if len(risk.Reasons) > 0 {
		reasoning = reasoning + ": " + strings.Join(risk.Reasons, "; ")
	}
	return FinalDecision{
		Action:     ActionWait,
		Confidence: 0,
		Reasoning:  reasoning,
		Risks:      append([]string(nil), risk.Reasons...),
		Source:     SourceRiskGate,
	}
}
