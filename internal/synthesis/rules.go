package synthesis

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"fxagent/internal/analysis"
	"fxagent/internal/model"
)

const (
	weightTechnical   = 0.5
	weightNews        = 0.25
	weightFundamental = 0.25
)

// RulesSynthesizer combines the analyst outputs with fixed weights. It is
// used when no synthesis model is configured.
type RulesSynthesizer struct {
	settings Settings
}

func NewRulesSynthesizer(s Settings) *RulesSynthesizer {
	return &RulesSynthesizer{settings: s}
}

func (r *RulesSynthesizer) Synthesize(ctx context.Context, state model.RunState) (model.FinalDecision, error) {
	if err := ctx.Err(); err != nil {
		return model.FinalDecision{}, err
	}
	if state.Risk == nil || !state.Risk.Approved {
		return model.FinalDecision{}, fmt.Errorf("no approved risk decision")
	}
	var factors, risks []string
	var citations []model.Citation

	tech := 0.0
	if rep, ok := payload[*analysis.TechnicalReport](state, analysis.TaskTechnical); ok {
		tech = math.Max(-1, math.Min(1, float64(rep.Score)/3))
		factors = append(factors, fmt.Sprintf("technical %s: %s", rep.Overall, strings.Join(slices.Concat(rep.BuySignals, rep.SellSignals), ", ")))
	}
	news := 0.0
	if d, ok := payload[*analysis.NewsDigest](state, analysis.TaskNews); ok {
		news = d.Sentiment
		if d.Offline {
			risks = append(risks, "no live news coverage")
		} else {
			factors = append(factors, fmt.Sprintf("news %s: %s", d.Label, d.Summary))
		}
		citations = append(citations, d.Headlines...)
	} else {
		risks = append(risks, "news analysis unavailable")
	}
	fund := 0.0
	if v, ok := payload[*analysis.FundamentalView](state, analysis.TaskFundamental); ok {
		fund = v.Score
		factors = append(factors, fmt.Sprintf("fundamentals %s (%+.2f)", v.Outlook, v.Score))
	} else {
		risks = append(risks, "fundamental analysis unavailable")
	}

	combined := weightTechnical*tech + weightNews*news + weightFundamental*fund
	side := 1.0
	if state.Risk.Direction == model.DirectionSell {
		side = -1
	}
	agreement := combined * side
	d := model.FinalDecision{
		Action:     model.Action(state.Risk.Direction),
		Confidence: 0.5 + 0.5*agreement,
		KeyFactors: factors,
		Risks:      risks,
		Citations:  citations,
	}
	if agreement <= 0 {
		d.Action = model.ActionWait
		d.Reasoning = fmt.Sprintf("weighted view %+.2f does not support the %s setup", combined, state.Risk.Direction)
	} else {
		d.Reasoning = fmt.Sprintf("weighted view %+.2f supports the %s setup (R:R %.2f)", combined, state.Risk.Direction, state.Risk.RewardRisk)
	}
	return finalize(d, state.Risk, r.settings), nil
}

func payload[T any](state model.RunState, task string) (T, bool) {
	var zero T
	res, ok := state.Result(task)
	if !ok || !res.Success {
		return zero, false
	}
	v, ok := res.Payload.(T)
	return v, ok
}
