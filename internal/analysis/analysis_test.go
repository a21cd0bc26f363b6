package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"fxagent/internal/analysis/indicator"
	"fxagent/internal/config"
	"fxagent/internal/gateway/provider"
	"fxagent/internal/market"
	"fxagent/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

func eurusd() model.QueryContext {
	return model.QueryContext{Base: "EUR", Quote: "USD", Category: model.CategoryForex}.Normalize()
}

func TestTechnicalAnalystProducesConsistentSetup(t *testing.T) {
	cfg := config.Default().Market
	ta := NewTechnicalAnalyst(market.NewSynthetic(clock), cfg)
	assert.Equal(t, TaskTechnical, ta.Name())

	res := ta.Run(context.Background(), eurusd())
	require.True(t, res.Success, res.Error)
	rep, ok := res.Payload.(*TechnicalReport)
	require.True(t, ok)
	assert.Equal(t, "EUR/USD", rep.Symbol)
	assert.Equal(t, cfg.Interval, rep.Interval)
	assert.Greater(t, rep.ATR, 0.0)
	assert.Contains(t, []string{"bullish", "bearish", "neutral"}, rep.Overall)

	setup, ok := rep.TradeSetup()
	require.True(t, ok)
	switch setup.Direction {
	case model.DirectionBuy:
		assert.Less(t, setup.StopLoss, setup.Entry)
		assert.Greater(t, setup.TakeProfit, setup.Entry)
	case model.DirectionSell:
		assert.Greater(t, setup.StopLoss, setup.Entry)
		assert.Less(t, setup.TakeProfit, setup.Entry)
	default:
		assert.Zero(t, setup.StopLoss)
		assert.Zero(t, setup.TakeProfit)
	}

	again := ta.Run(context.Background(), eurusd())
	assert.Equal(t, rep.Setup, again.Payload.(*TechnicalReport).Setup)
}

func TestTechnicalAnalystUsesQueryTimeframe(t *testing.T) {
	ta := NewTechnicalAnalyst(market.NewSynthetic(clock), config.Default().Market)
	qc := eurusd()
	qc.Timeframe = "4h"
	res := ta.Run(context.Background(), qc)
	require.True(t, res.Success)
	assert.Equal(t, "4h", res.Payload.(*TechnicalReport).Interval)
}

type brokenSource struct{}

func (brokenSource) Name() string { return "broken" }

func (brokenSource) FetchHistory(context.Context, market.Instrument, string, int) ([]market.Candle, error) {
	return nil, errors.New("feed down")
}

func TestTechnicalAnalystFailures(t *testing.T) {
	ta := NewTechnicalAnalyst(brokenSource{}, config.Default().Market)
	res := ta.Run(context.Background(), eurusd())
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "feed down")

	res = ta.Run(context.Background(), model.QueryContext{})
	assert.False(t, res.Success)
}

func TestVote(t *testing.T) {
	rep := &TechnicalReport{
		Indicators: indicator.Report{Values: map[string]indicator.IndicatorValue{
			"sma_fast": {Latest: 1.09},
			"sma_slow": {Latest: 1.08},
			"rsi":      {State: "neutral"},
			"macd":     {State: "bullish"},
			"bb_lower": {State: "inside"},
			"bb_upper": {State: "inside"},
		}},
	}
	rep.Pattern.Bias = "bearish"
	rep.vote()
	assert.Equal(t, 1, rep.Score)
	assert.Equal(t, "neutral", rep.Overall)
	assert.Equal(t, model.DirectionNone, rep.direction())

	rep.BuySignals, rep.SellSignals = nil, nil
	rep.Pattern.Bias = "bullish"
	rep.vote()
	assert.Equal(t, 3, rep.Score)
	assert.Equal(t, model.DirectionBuy, rep.direction())
}

func TestBuildSetup(t *testing.T) {
	buy := buildSetup(eurusd(), model.DirectionBuy, 1.085, 0.001)
	assert.Equal(t, model.TradeSetup{Direction: model.DirectionBuy, Entry: 1.085, StopLoss: 1.0835, TakeProfit: 1.088}, buy)

	jpy := model.QueryContext{Base: "USD", Quote: "JPY", Category: model.CategoryForex}
	sell := buildSetup(jpy, model.DirectionSell, 151.2344, 0.2)
	assert.Equal(t, model.TradeSetup{Direction: model.DirectionSell, Entry: 151.234, StopLoss: 151.534, TakeProfit: 150.634}, sell)

	hold := buildSetup(eurusd(), model.DirectionNone, 1.085, 0.001)
	assert.Zero(t, hold.StopLoss)
}

func TestPricePlaces(t *testing.T) {
	assert.Equal(t, int32(5), pricePlaces(eurusd(), dec(1.08)))
	assert.Equal(t, int32(3), pricePlaces(model.QueryContext{Base: "USD", Quote: "JPY", Category: model.CategoryForex}, dec(151)))
	assert.Equal(t, int32(2), pricePlaces(model.QueryContext{Base: "XAU", Quote: "USD", Category: model.CategoryCommodity}, dec(2300)))
	assert.Equal(t, int32(2), pricePlaces(model.QueryContext{Base: "BTC", Quote: "USDT", Category: model.CategoryCrypto}, dec(64000)))
}

func TestFundamentalAnalyst(t *testing.T) {
	fa, err := NewFundamentalAnalyst()
	require.NoError(t, err)
	assert.Equal(t, TaskFundamental, fa.Name())

	res := fa.Run(context.Background(), eurusd())
	require.True(t, res.Success)
	view := res.Payload.(*FundamentalView)
	assert.InDelta(t, -0.48, view.Score, 0.001)
	assert.Equal(t, "bearish", view.Outlook)
	assert.Equal(t, "EUR", view.Base.Code)
	assert.NotEmpty(t, view.Drivers)

	res = fa.Run(context.Background(), model.QueryContext{Base: "XAU", Quote: "USD", Category: model.CategoryCommodity})
	require.True(t, res.Success)
	assert.InDelta(t, 0.2, res.Payload.(*FundamentalView).Score, 0.001)
	assert.Equal(t, "bullish", res.Payload.(*FundamentalView).Outlook)

	res = fa.Run(context.Background(), model.QueryContext{Base: "BTC", Quote: "USDT", Category: model.CategoryCrypto})
	require.True(t, res.Success)
	assert.Equal(t, "neutral", res.Payload.(*FundamentalView).Outlook)

	res = fa.Run(context.Background(), model.QueryContext{Base: "FOO", Quote: "BAR"})
	assert.False(t, res.Success)
}

type replyModel struct {
	reply string
	err   error
}

func (m replyModel) ID() string { return "news" }

func (m replyModel) Call(context.Context, provider.ChatPayload) (string, error) {
	return m.reply, m.err
}

func TestNewsAnalyst(t *testing.T) {
	offline := NewNewsAnalyst(nil, clock).Run(context.Background(), eurusd())
	require.True(t, offline.Success)
	d := offline.Payload.(*NewsDigest)
	assert.True(t, d.Offline)
	assert.Zero(t, d.Sentiment)

	reply := "Here you go:\n```json\n" + `{"sentiment": 1.7, "summary": " ECB cut ", "key_events": ["ECB decision", ""],
		"headlines": [{"title": "ECB cuts", "url": "https://example.com/ecb"}, {}]}` + "\n```"
	res := NewNewsAnalyst(replyModel{reply: reply}, clock).Run(context.Background(), eurusd())
	require.True(t, res.Success, res.Error)
	d = res.Payload.(*NewsDigest)
	assert.Equal(t, 1.0, d.Sentiment)
	assert.Equal(t, "bullish", d.Label)
	assert.Equal(t, "ECB cut", d.Summary)
	assert.Equal(t, []string{"ECB decision"}, d.Events)
	assert.Equal(t, []model.Citation{{Title: "ECB cuts", URL: "https://example.com/ecb"}}, d.Headlines)

	res = NewNewsAnalyst(replyModel{reply: `{"summary":"x"}`}, clock).Run(context.Background(), eurusd())
	assert.False(t, res.Success)

	res = NewNewsAnalyst(replyModel{err: errors.New("quota")}, clock).Run(context.Background(), eurusd())
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "quota")
}

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }
