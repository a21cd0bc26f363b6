package risk

import (
	"testing"
	"time"

	"fxagent/internal/config"
	"fxagent/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type setupPayload struct {
	setup model.TradeSetup
	ok    bool
}

func (p setupPayload) TradeSetup() (model.TradeSetup, bool) { return p.setup, p.ok }

func defaultSettings() Settings {
	return Settings{
		AccountBalance:  10000,
		MaxRiskPerTrade: 0.02,
		MinStopPips:     10,
		MaxStopPips:     100,
		MinRewardRisk:   1.5,
		PipValuePerLot:  10,
		SetupTask:       "technical",
	}
}

func eurusd() model.QueryContext {
	return model.QueryContext{Base: "EUR", Quote: "USD", Category: model.CategoryForex}
}

func stateWith(qc model.QueryContext, setup model.TradeSetup) model.RunState {
	s := model.NewRunState("run", testTime)
	return s.Merge(model.Delta{
		Query: &qc,
		Results: map[string]model.AgentResult{
			"technical": model.Succeeded("technical", setupPayload{setup: setup, ok: true}, "setup"),
			"news":      model.Succeeded("news", "neutral", "neutral"),
		},
	})
}

func TestApprovedSetup(t *testing.T) {
	gate := NewGate(defaultSettings())
	dec := gate.Evaluate(stateWith(eurusd(), model.TradeSetup{
		Direction: model.DirectionBuy, Entry: 1.0850, StopLoss: 1.0810, TakeProfit: 1.0930,
	}))

	assert.True(t, dec.Approved)
	assert.NotNil(t, dec.Reasons)
	assert.Empty(t, dec.Reasons)
	assert.Equal(t, 40.0, dec.StopDistance)
	assert.Equal(t, 2.0, dec.RewardRisk)
	assert.Equal(t, 0.5, dec.PositionSize)
	assert.Equal(t, 200.0, dec.DollarRisk)
}

func TestStopTooTight(t *testing.T) {
	gate := NewGate(defaultSettings())
	dec := gate.Evaluate(stateWith(eurusd(), model.TradeSetup{
		Direction: model.DirectionBuy, Entry: 1.0850, StopLoss: 1.0845, TakeProfit: 1.0950,
	}))

	assert.False(t, dec.Approved)
	assert.Equal(t, 5.0, dec.StopDistance)
	require.NotEmpty(t, dec.Reasons)
	assert.Contains(t, dec.Reasons[0], "below the minimum of 10")
}

func TestStopTooWideAndPoorReward(t *testing.T) {
	gate := NewGate(defaultSettings())
	dec := gate.Evaluate(stateWith(eurusd(), model.TradeSetup{
		Direction: model.DirectionSell, Entry: 1.0850, StopLoss: 1.1000, TakeProfit: 1.0700,
	}))

	assert.False(t, dec.Approved)
	require.Len(t, dec.Reasons, 2)
	assert.Contains(t, dec.Reasons[0], "exceeds the maximum of 100")
	assert.Contains(t, dec.Reasons[1], "reward:risk 1.00")
}

func TestWrongSideStop(t *testing.T) {
	gate := NewGate(defaultSettings())
	dec := gate.Evaluate(stateWith(eurusd(), model.TradeSetup{
		Direction: model.DirectionBuy, Entry: 1.0850, StopLoss: 1.0890, TakeProfit: 1.0950,
	}))
	assert.False(t, dec.Approved)
	assert.Contains(t, dec.Reasons[0], "wrong side")
}

func TestMissingTakeProfit(t *testing.T) {
	gate := NewGate(defaultSettings())
	dec := gate.Evaluate(stateWith(eurusd(), model.TradeSetup{
		Direction: model.DirectionBuy, Entry: 1.0850, StopLoss: 1.0810,
	}))
	assert.False(t, dec.Approved)
	assert.Equal(t, []string{"take profit is required"}, dec.Reasons)
}

func TestFailsClosed(t *testing.T) {
	gate := NewGate(defaultSettings())
	qc := eurusd()

	cases := map[string]model.RunState{
		"missing": model.NewRunState("r", testTime).Merge(model.Delta{Query: &qc}),
		"failed": model.NewRunState("r", testTime).Merge(model.Delta{Query: &qc, Results: map[string]model.AgentResult{
			"technical": model.Failed("technical", "timeout"),
		}}),
		"wrong payload": model.NewRunState("r", testTime).Merge(model.Delta{Query: &qc, Results: map[string]model.AgentResult{
			"technical": model.Succeeded("technical", "text", ""),
		}}),
		"no setup": model.NewRunState("r", testTime).Merge(model.Delta{Query: &qc, Results: map[string]model.AgentResult{
			"technical": model.Succeeded("technical", setupPayload{ok: false}, ""),
		}}),
		"hold": stateWith(qc, model.TradeSetup{Direction: model.DirectionNone, Entry: 1.08}),
	}
	for name, st := range cases {
		t.Run(name, func(t *testing.T) {
			dec := gate.Evaluate(st)
			assert.False(t, dec.Approved)
			assert.Len(t, dec.Reasons, 1)
			assert.Zero(t, dec.PositionSize)
		})
	}
}

func TestEvaluateIsPure(t *testing.T) {
	gate := NewGate(defaultSettings())
	st := stateWith(eurusd(), model.TradeSetup{
		Direction: model.DirectionSell, Entry: 1.0850, StopLoss: 1.0900, TakeProfit: 1.0750,
	})
	first := gate.Evaluate(st)
	second := gate.Evaluate(st)
	assert.Equal(t, first, second)
	assert.Len(t, st.Results, 2)
	assert.Nil(t, st.Risk)
}

func TestPipSizes(t *testing.T) {
	entry := decimal.NewFromInt(100)
	assert.True(t, PipSize(eurusd(), entry, nil).Equal(decimal.RequireFromString("0.0001")))
	assert.True(t, PipSize(model.QueryContext{Base: "USD", Quote: "JPY", Category: model.CategoryForex}, entry, nil).Equal(decimal.RequireFromString("0.01")))
	assert.True(t, PipSize(model.QueryContext{Base: "XAU", Quote: "USD", Category: model.CategoryCommodity}, entry, nil).Equal(decimal.RequireFromString("0.1")))
	assert.True(t, PipSize(model.QueryContext{Base: "BTC", Quote: "USDT", Category: model.CategoryCrypto}, decimal.NewFromInt(60000), nil).Equal(decimal.NewFromInt(6)))
	assert.True(t, PipSize(eurusd(), entry, map[string]float64{"EUR/USD": 0.001}).Equal(decimal.RequireFromString("0.001")))
}

func TestJPYStopDistance(t *testing.T) {
	gate := NewGate(defaultSettings())
	qc := model.QueryContext{Base: "USD", Quote: "JPY", Category: model.CategoryForex}
	dec := gate.Evaluate(stateWith(qc, model.TradeSetup{
		Direction: model.DirectionBuy, Entry: 150.00, StopLoss: 149.60, TakeProfit: 150.80,
	}))
	assert.True(t, dec.Approved, dec.Reasons)
	assert.Equal(t, 40.0, dec.StopDistance)
}

func TestSettingsFromConfigNormalizesPipKeys(t *testing.T) {
	s := SettingsFromConfig(config.RiskConfig{PipSizes: map[string]float64{"xag/usd": 0.001, " wti ": 0.1}})
	assert.Equal(t, map[string]float64{"XAG/USD": 0.001, "WTI": 0.1}, s.PipSizes)
}
