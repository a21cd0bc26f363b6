package analysis

import (
	"context"
	"fmt"
	"math"

	"fxagent/internal/analysis/indicator"
	"fxagent/internal/analysis/pattern"
	"fxagent/internal/config"
	"fxagent/internal/market"
	"fxagent/internal/model"
	"fxagent/internal/risk"

	"github.com/shopspring/decimal"
)

const (
	TaskTechnical   = "technical"
	TaskNews        = "news"
	TaskFundamental = "fundamental"
)

const (
	stopATR   = 1.5
	targetATR = 3.0
	// votes needed before the analyst commits to a side
	minVotes = 2
)

// TechnicalReport is the technical task payload. It carries the trade setup
// the risk gate evaluates.
type TechnicalReport struct {
	Symbol      string           `json:"symbol"`
	Interval    string           `json:"interval"`
	Indicators  indicator.Report `json:"indicators"`
	Pattern     pattern.Result   `json:"pattern"`
	BuySignals  []string         `json:"buy_signals"`
	SellSignals []string         `json:"sell_signals"`
	Overall     string           `json:"overall_signal"`
	Score       int              `json:"score"`
	ATR         float64          `json:"atr"`
	Setup       model.TradeSetup `json:"setup"`
}

func (r *TechnicalReport) TradeSetup() (model.TradeSetup, bool) {
	if r == nil || r.Setup.Entry <= 0 {
		return model.TradeSetup{}, false
	}
	return r.Setup, true
}

// TechnicalAnalyst reads candles and derives a directional view with an
// ATR-based stop and target.
type TechnicalAnalyst struct {
	source   market.Source
	interval string
	lookback int
	settings indicator.Settings
}

func NewTechnicalAnalyst(source market.Source, cfg config.MarketConfig) *TechnicalAnalyst {
	return &TechnicalAnalyst{source: source, interval: cfg.Interval, lookback: cfg.Lookback}
}

func (t *TechnicalAnalyst) Name() string { return TaskTechnical }

func (t *TechnicalAnalyst) Run(ctx context.Context, qc model.QueryContext) model.AgentResult {
	if !qc.HasSubject() {
		return model.Failed(TaskTechnical, "no instrument to analyze")
	}
	interval := t.interval
	if config.IsValidInterval(qc.Timeframe) {
		interval = qc.Timeframe
	}
	inst := market.InstrumentOf(qc)
	candles, err := t.source.FetchHistory(ctx, inst, interval, t.lookback)
	if err != nil {
		return model.Failed(TaskTechnical, fmt.Sprintf("market data unavailable: %v", err))
	}
	rep, err := indicator.ComputeAll(candles, t.settings)
	if err != nil {
		return model.Failed(TaskTechnical, err.Error())
	}
	out := &TechnicalReport{
		Symbol:     inst.Symbol(),
		Interval:   interval,
		Indicators: rep,
		Pattern:    pattern.Analyze(candles),
		ATR:        rep.Values["atr"].Latest,
	}
	out.vote()
	out.Setup = buildSetup(qc, out.direction(), rep.Close, out.ATR)

	summary := fmt.Sprintf("%s %s: %s (%d buy / %d sell signals), RSI %.1f, close %s",
		out.Symbol, interval, out.Overall, len(out.BuySignals), len(out.SellSignals),
		rep.Values["rsi"].Latest, formatPrice(qc, rep.Close))
	return model.Succeeded(TaskTechnical, out, summary)
}

func (r *TechnicalReport) vote() {
	v := r.Indicators.Values
	add := func(bull bool, bear bool, bullMsg, bearMsg string) {
		if bull {
			r.BuySignals = append(r.BuySignals, bullMsg)
		}
		if bear {
			r.SellSignals = append(r.SellSignals, bearMsg)
		}
	}
	fast, slow := v["sma_fast"].Latest, v["sma_slow"].Latest
	add(fast > slow, fast < slow, "SMA20 above SMA50", "SMA20 below SMA50")
	add(v["rsi"].State == "oversold", v["rsi"].State == "overbought", "RSI oversold", "RSI overbought")
	add(v["macd"].State == "bullish", v["macd"].State == "bearish", "MACD histogram positive", "MACD histogram negative")
	add(v["bb_lower"].State == "below_lower", v["bb_upper"].State == "above_upper", "close below lower Bollinger band", "close above upper Bollinger band")
	add(r.Pattern.Bias == "bullish", r.Pattern.Bias == "bearish", "regression trend rising", "regression trend falling")

	r.Score = len(r.BuySignals) - len(r.SellSignals)
	switch {
	case r.Score >= minVotes:
		r.Overall = "bullish"
	case r.Score <= -minVotes:
		r.Overall = "bearish"
	default:
		r.Overall = "neutral"
	}
}

func (r *TechnicalReport) direction() model.Direction {
	switch r.Overall {
	case "bullish":
		return model.DirectionBuy
	case "bearish":
		return model.DirectionSell
	}
	return model.DirectionNone
}

// buildSetup places the stop 1.5 ATR and the target 3 ATR from the last
// close, rounded to the instrument's quote precision.
func buildSetup(qc model.QueryContext, dir model.Direction, close, atr float64) model.TradeSetup {
	entry := decimal.NewFromFloat(close)
	places := pricePlaces(qc, entry)
	setup := model.TradeSetup{Direction: dir, Entry: entry.Round(places).InexactFloat64()}
	if atr <= 0 || dir == model.DirectionNone {
		return setup
	}
	a := decimal.NewFromFloat(atr)
	stopDist := a.Mul(decimal.NewFromFloat(stopATR))
	targetDist := a.Mul(decimal.NewFromFloat(targetATR))
	if dir == model.DirectionSell {
		stopDist, targetDist = stopDist.Neg(), targetDist.Neg()
	}
	setup.StopLoss = entry.Sub(stopDist).Round(places).InexactFloat64()
	setup.TakeProfit = entry.Add(targetDist).Round(places).InexactFloat64()
	return setup
}

// pricePlaces is one digit finer than a pip.
func pricePlaces(qc model.QueryContext, entry decimal.Decimal) int32 {
	pip := risk.PipSize(qc, entry, nil).InexactFloat64()
	if pip <= 0 {
		return 5
	}
	places := int32(math.Ceil(-math.Log10(pip)-1e-9)) + 1
	switch {
	case places < 2:
		return 2
	case places > 8:
		return 8
	}
	return places
}

func formatPrice(qc model.QueryContext, v float64) string {
	d := decimal.NewFromFloat(v)
	return d.StringFixed(pricePlaces(qc, d))
}
