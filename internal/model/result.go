package model

import "time"

// AgentResult is the outcome of one analysis task. Payload is set only on
// success and Error only on failure; use Succeeded/Failed to build one.
type AgentResult struct {
	Task      string `json:"task"`
	Success   bool   `json:"success"`
	Payload   any    `json:"payload,omitempty"`
	Summary   string `json:"summary,omitempty"`
	Error     string `json:"error,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

func Succeeded(task string, payload any, summary string) AgentResult {
	return AgentResult{Task: task, Success: true, Payload: payload, Summary: summary}
}

func Failed(task, reason string) AgentResult {
	if reason == "" {
		reason = "unknown error"
	}
	return AgentResult{Task: task, Success: false, Error: reason}
}

// WithElapsed stamps the wall time the task took.
func (r AgentResult) WithElapsed(d time.Duration) AgentResult {
	r.ElapsedMS = d.Milliseconds()
	return r
}

// Direction is the side of a proposed trade.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
	DirectionNone Direction = "HOLD"
)

// TradeSetup is the entry/exit proposal the risk gate evaluates.
type TradeSetup struct {
	Direction  Direction `json:"direction"`
	Entry      float64   `json:"entry"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
}

// SetupSource is implemented by task payloads that carry a trade setup.
type SetupSource interface {
	TradeSetup() (TradeSetup, bool)
}
