package synthesis

import (
	"context"
	"fmt"
	"math"
	"strings"

	"fxagent/internal/model"
)

// Synthesizer turns an approved run into the final recommendation.
type Synthesizer interface {
	Synthesize(ctx context.Context, state model.RunState) (model.FinalDecision, error)
}

// Settings shared by every synthesizer.
type Settings struct {
	MinConfidence float64
}

// finalize applies the rules every decision must satisfy regardless of who
// produced it: confidence in [0,1], a side that matches the approved setup,
// trade levels from the risk gate, and the confidence floor.
func finalize(d model.FinalDecision, risk *model.RiskDecision, s Settings) model.FinalDecision {
	d.Source = model.SourceSynthesis
	d.Confidence = math.Round(clampConfidence(d.Confidence)*100) / 100
	switch d.Action {
	case model.ActionBuy, model.ActionSell:
	default:
		d.Action = model.ActionWait
	}
	if d.Action == model.ActionWait {
		d.Trade = nil
		return d
	}
	if risk == nil || !risk.Approved {
		return downgrade(d, "no approved setup")
	}
	if string(d.Action) != string(risk.Direction) {
		return downgrade(d, fmt.Sprintf("recommended %s contradicts the %s setup", d.Action, risk.Direction))
	}
	if d.Trade == nil || d.Trade.Entry <= 0 || d.Trade.StopLoss <= 0 || d.Trade.TakeProfit <= 0 {
		d.Trade = &model.TradeParameters{
			Entry:      risk.Entry,
			StopLoss:   risk.StopLoss,
			TakeProfit: risk.TakeProfit,
		}
	}
	// sizing is the gate's call
	d.Trade.PositionSize = risk.PositionSize
	if d.Confidence < s.MinConfidence {
		return downgrade(d, fmt.Sprintf("confidence %.2f is below the %.2f threshold", d.Confidence, s.MinConfidence))
	}
	return d
}

func downgrade(d model.FinalDecision, why string) model.FinalDecision {
	d.Risks = append(d.Risks, "downgraded to WAIT: "+why)
	d.Action = model.ActionWait
	d.Trade = nil
	return d
}

// clampConfidence accepts 0-1 or a 0-100 percentage.
func clampConfidence(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 && v <= 100 {
		v /= 100
	}
	return math.Min(v, 1)
}

func parseAction(s string) model.Action {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY", "LONG":
		return model.ActionBuy
	case "SELL", "SHORT":
		return model.ActionSell
	}
	return model.ActionWait
}
