package risk

import (
	"fmt"
	"strings"

	"fxagent/internal/config"
	"fxagent/internal/model"

	"github.com/shopspring/decimal"
)

// Settings are the immutable thresholds the gate evaluates against.
type Settings struct {
	AccountBalance  float64
	MaxRiskPerTrade float64
	MinStopPips     float64
	MaxStopPips     float64
	MinRewardRisk   float64
	PipValuePerLot  float64
	SetupTask       string
	PipSizes        map[string]float64
}

func SettingsFromConfig(cfg config.RiskConfig) Settings {
	sizes := make(map[string]float64, len(cfg.PipSizes))
	// viper lowercases map keys
	for k, v := range cfg.PipSizes {
		sizes[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	return Settings{
		AccountBalance:  cfg.AccountBalance,
		MaxRiskPerTrade: cfg.MaxRiskPerTrade,
		MinStopPips:     cfg.MinStopPips,
		MaxStopPips:     cfg.MaxStopPips,
		MinRewardRisk:   cfg.MinRewardRisk,
		PipValuePerLot:  cfg.PipValuePerLot,
		SetupTask:       cfg.SetupTask,
		PipSizes:        sizes,
	}
}

// Gate decides whether the technical setup of a run may be traded. Evaluate
// depends only on its input and the settings.
type Gate struct {
	s Settings
}

func NewGate(s Settings) *Gate {
	if s.SetupTask == "" {
		s.SetupTask = "technical"
	}
	return &Gate{s: s}
}

func (g *Gate) Settings() Settings { return g.s }

// Evaluate fails closed: a missing or failed setup task is a rejection.
func (g *Gate) Evaluate(state model.RunState) model.RiskDecision {
	res, ok := state.Result(g.s.SetupTask)
	if !ok {
		return reject(fmt.Sprintf("%s analysis missing", g.s.SetupTask))
	}
	if !res.Success {
		return reject(fmt.Sprintf("%s analysis failed: %s", g.s.SetupTask, res.Error))
	}
	src, ok := res.Payload.(model.SetupSource)
	if !ok {
		return reject(fmt.Sprintf("%s analysis provided no trade setup", g.s.SetupTask))
	}
	setup, ok := src.TradeSetup()
	if !ok {
		return reject("no trade setup proposed")
	}
	return g.evaluateSetup(state.Query, setup)
}

func (g *Gate) evaluateSetup(qc model.QueryContext, setup model.TradeSetup) model.RiskDecision {
	out := model.RiskDecision{
		Direction:  setup.Direction,
		Entry:      setup.Entry,
		StopLoss:   setup.StopLoss,
		TakeProfit: setup.TakeProfit,
		Reasons:    []string{},
	}
	if setup.Direction != model.DirectionBuy && setup.Direction != model.DirectionSell {
		out.Reasons = append(out.Reasons, fmt.Sprintf("no directional signal (%s)", displayDirection(setup.Direction)))
		return out
	}
	if setup.Entry <= 0 || setup.StopLoss <= 0 {
		out.Reasons = append(out.Reasons, "entry and stop loss prices are required")
		return out
	}

	entry := decimal.NewFromFloat(setup.Entry)
	stop := decimal.NewFromFloat(setup.StopLoss)
	long := setup.Direction == model.DirectionBuy

	if (long && !stop.LessThan(entry)) || (!long && !stop.GreaterThan(entry)) {
		out.Reasons = append(out.Reasons, fmt.Sprintf("stop loss %s is on the wrong side of entry %s for %s", stop, entry, setup.Direction))
	}

	pip := PipSize(qc, entry, g.s.PipSizes)
	riskDist := entry.Sub(stop).Abs()
	pips := riskDist.Div(pip).Round(1)
	out.StopDistance = pips.InexactFloat64()

	minStop := decimal.NewFromFloat(g.s.MinStopPips)
	maxStop := decimal.NewFromFloat(g.s.MaxStopPips)
	switch {
	case !pips.IsPositive():
		out.Reasons = append(out.Reasons, "stop distance is zero")
	case pips.LessThan(minStop):
		out.Reasons = append(out.Reasons, fmt.Sprintf("stop distance %s pips is below the minimum of %s", pips, minStop))
	case pips.GreaterThan(maxStop):
		out.Reasons = append(out.Reasons, fmt.Sprintf("stop distance %s pips exceeds the maximum of %s", pips, maxStop))
	}

	if setup.TakeProfit <= 0 {
		out.Reasons = append(out.Reasons, "take profit is required")
	} else {
		target := decimal.NewFromFloat(setup.TakeProfit)
		if (long && !target.GreaterThan(entry)) || (!long && !target.LessThan(entry)) {
			out.Reasons = append(out.Reasons, fmt.Sprintf("take profit %s is on the wrong side of entry %s for %s", target, entry, setup.Direction))
		} else if riskDist.IsPositive() {
			rr := target.Sub(entry).Abs().Div(riskDist).Round(2)
			out.RewardRisk = rr.InexactFloat64()
			minRR := decimal.NewFromFloat(g.s.MinRewardRisk)
			if rr.LessThan(minRR) {
				out.Reasons = append(out.Reasons, fmt.Sprintf("reward:risk %s is below the minimum of %s", rr.StringFixed(2), minRR.StringFixed(2)))
			}
		}
	}

	if pips.IsPositive() && g.s.PipValuePerLot > 0 {
		dollarRisk := decimal.NewFromFloat(g.s.AccountBalance).Mul(decimal.NewFromFloat(g.s.MaxRiskPerTrade))
		size := dollarRisk.Div(pips.Mul(decimal.NewFromFloat(g.s.PipValuePerLot))).Round(2)
		out.DollarRisk = dollarRisk.Round(2).InexactFloat64()
		out.PositionSize = size.InexactFloat64()
	}

	out.Approved = len(out.Reasons) == 0
	return out
}

func reject(reason string) model.RiskDecision {
	return model.RiskDecision{Approved: false, Reasons: []string{reason}}
}

func displayDirection(d model.Direction) string {
	if d == "" {
		return string(model.DirectionNone)
	}
	return string(d)
}
